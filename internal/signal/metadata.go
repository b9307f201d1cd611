package signal

import (
	"sort"
	"sync"
)

// Metadata is a concurrent key/value store attached to a signal and shared
// by everything holding the same *Signal.
type Metadata struct {
	mu     sync.RWMutex
	values map[string]any
}

func newMetadata() *Metadata {
	return &Metadata{values: make(map[string]any)}
}

// Set stores a value under key.
func (m *Metadata) Set(key string, value any) {
	m.mu.Lock()
	m.values[key] = value
	m.mu.Unlock()
}

// Get returns the value stored under key.
func (m *Metadata) Get(key string) (any, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.values[key]
	return v, ok
}

// Has reports whether key is set.
func (m *Metadata) Has(key string) bool {
	_, ok := m.Get(key)
	return ok
}

// Delete removes key and reports whether it was present.
func (m *Metadata) Delete(key string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.values[key]
	delete(m.values, key)
	return ok
}

// Clear removes every key.
func (m *Metadata) Clear() {
	m.mu.Lock()
	m.values = make(map[string]any)
	m.mu.Unlock()
}

// Keys returns the stored keys in sorted order.
func (m *Metadata) Keys() []string {
	m.mu.RLock()
	keys := make([]string, 0, len(m.values))
	for k := range m.values {
		keys = append(keys, k)
	}
	m.mu.RUnlock()
	sort.Strings(keys)
	return keys
}

// MetadataValue returns the value under key if it has type V.
func MetadataValue[V any](m *Metadata, key string) (V, bool) {
	var zero V
	raw, ok := m.Get(key)
	if !ok {
		return zero, false
	}
	v, ok := raw.(V)
	if !ok {
		return zero, false
	}
	return v, true
}
