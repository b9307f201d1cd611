package signal

import (
	"reflect"
	"sort"
	"sync"
)

type registryKey struct {
	name string
	typ  reflect.Type
}

// entry is the type-erased view of a registered signal.
type entry interface {
	Name() string
	PayloadType() reflect.Type
	ReceiverCount() int
	Metrics() MetricsSnapshot
	ResetMetrics()
	DisconnectAll()
}

// Registry hands out one shared Signal per (name, payload type).
// Signals with the same name but different payload types are independent.
type Registry struct {
	mu      sync.RWMutex
	signals map[registryKey]entry
	opts    []Option
}

// NewRegistry creates an empty registry. opts are applied to every signal
// the registry creates.
func NewRegistry(opts ...Option) *Registry {
	return &Registry{
		signals: make(map[registryKey]entry),
		opts:    opts,
	}
}

var (
	defaultRegistry     *Registry
	defaultRegistryOnce sync.Once
)

// DefaultRegistry returns the process-wide registry.
func DefaultRegistry() *Registry {
	defaultRegistryOnce.Do(func() {
		defaultRegistry = NewRegistry()
	})
	return defaultRegistry
}

// GetSignal returns the signal named name with payload T from the default
// registry, creating it on first use.
func GetSignal[T any](name string, opts ...Option) *Signal[T] {
	return Get[T](DefaultRegistry(), name, opts...)
}

// Get returns the signal named name with payload T, creating it on first use.
// opts are applied after the registry's options and only when the signal is
// created.
func Get[T any](r *Registry, name string, opts ...Option) *Signal[T] {
	key := registryKey{name: name, typ: reflect.TypeFor[T]()}

	r.mu.RLock()
	e, ok := r.signals[key]
	r.mu.RUnlock()
	if ok {
		return e.(*Signal[T])
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if e, ok := r.signals[key]; ok {
		return e.(*Signal[T])
	}
	all := make([]Option, 0, len(r.opts)+len(opts))
	all = append(all, r.opts...)
	all = append(all, opts...)
	s := New[T](name, all...)
	r.signals[key] = s
	return s
}

// Lookup returns the signal named name with payload T if it exists.
func Lookup[T any](r *Registry, name string) (*Signal[T], bool) {
	key := registryKey{name: name, typ: reflect.TypeFor[T]()}

	r.mu.RLock()
	defer r.mu.RUnlock()

	e, ok := r.signals[key]
	if !ok {
		return nil, false
	}
	return e.(*Signal[T]), true
}

// Register adds an existing signal. It returns the signal already
// registered under the same key, if any, and false in that case.
func Register[T any](r *Registry, s *Signal[T]) (*Signal[T], bool) {
	key := registryKey{name: s.name, typ: reflect.TypeFor[T]()}

	r.mu.Lock()
	defer r.mu.Unlock()

	if e, ok := r.signals[key]; ok {
		return e.(*Signal[T]), false
	}
	r.signals[key] = s
	return s, true
}

// Drop removes the signal named name with payload T from the registry.
// Holders of the signal keep a working handle.
func Drop[T any](r *Registry, name string) bool {
	key := registryKey{name: name, typ: reflect.TypeFor[T]()}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.signals[key]; !ok {
		return false
	}
	delete(r.signals, key)
	return true
}

// Clear removes every signal.
func (r *Registry) Clear() {
	r.mu.Lock()
	r.signals = make(map[registryKey]entry)
	r.mu.Unlock()
}

// Len returns the number of registered signals.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.signals)
}

// Names returns the distinct registered names in sorted order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	seen := make(map[string]struct{}, len(r.signals))
	for k := range r.signals {
		seen[k.name] = struct{}{}
	}
	r.mu.RUnlock()

	names := make([]string, 0, len(seen))
	for n := range seen {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// SignalStats describes one registered signal.
type SignalStats struct {
	Name        string          `json:"name"`
	PayloadType string          `json:"payload_type"`
	Receivers   int             `json:"receivers"`
	Metrics     MetricsSnapshot `json:"metrics"`
	SuccessRate float64         `json:"success_rate"`
}

// Stats returns a description of every registered signal sorted by name
// then payload type.
func (r *Registry) Stats() []SignalStats {
	entries := r.entries()

	stats := make([]SignalStats, 0, len(entries))
	for _, e := range entries {
		m := e.Metrics()
		stats = append(stats, SignalStats{
			Name:        e.Name(),
			PayloadType: e.PayloadType().String(),
			Receivers:   e.ReceiverCount(),
			Metrics:     m,
			SuccessRate: m.SuccessRate(),
		})
	}
	sort.Slice(stats, func(i, j int) bool {
		if stats[i].Name != stats[j].Name {
			return stats[i].Name < stats[j].Name
		}
		return stats[i].PayloadType < stats[j].PayloadType
	})
	return stats
}

// ResetMetrics resets the metrics of every signal called name and returns
// how many were reset.
func (r *Registry) ResetMetrics(name string) int {
	n := 0
	for _, e := range r.entries() {
		if e.Name() == name {
			e.ResetMetrics()
			n++
		}
	}
	return n
}

// DisconnectAll removes every receiver from every registered signal.
func (r *Registry) DisconnectAll() {
	for _, e := range r.entries() {
		e.DisconnectAll()
	}
}

func (r *Registry) entries() []entry {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]entry, 0, len(r.signals))
	for _, e := range r.signals {
		out = append(out, e)
	}
	return out
}
