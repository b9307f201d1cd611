package signal

import (
	"context"
	"sort"
	"sync"

	"github.com/google/uuid"
)

// Priority levels. Any int is a valid priority; higher runs first.
const (
	PriorityLow    = -100
	PriorityNormal = 0
	PriorityHigh   = 100
)

// ReceiverFunc handles a payload. A non-nil error marks the receiver as failed.
type ReceiverFunc[T any] func(ctx context.Context, payload T) error

// Predicate decides whether a receiver runs for a payload.
type Predicate[T any] func(payload T) bool

// ReceiverRef describes a connected receiver without exposing its function.
type ReceiverRef struct {
	// ID is assigned at connect time and is unique per slot.
	ID string

	// DispatchKey is the deduplication key, empty for anonymous receivers.
	DispatchKey string

	// Priority orders execution, higher first.
	Priority int

	// Sender is the sender filter, NoSender if unfiltered.
	Sender SenderType
}

// String returns the dispatch key if set, otherwise the slot ID.
func (r ReceiverRef) String() string {
	if r.DispatchKey != "" {
		return r.DispatchKey
	}
	return r.ID
}

type slot[T any] struct {
	ref       ReceiverRef
	receiver  ReceiverFunc[T]
	predicate Predicate[T]

	// alive is set for weak receivers and reports whether the owner is
	// still reachable.
	alive func() bool
}

func (s *slot[T]) dead() bool {
	return s.alive != nil && !s.alive()
}

// table holds slots sorted by descending priority, ties in connect order.
type table[T any] struct {
	mu    sync.RWMutex
	slots []*slot[T]
}

func newSlot[T any](r ReceiverFunc[T], sender SenderType, key string, priority int, p Predicate[T]) *slot[T] {
	return &slot[T]{
		ref: ReceiverRef{
			ID:          uuid.NewString(),
			DispatchKey: key,
			Priority:    priority,
			Sender:      sender,
		},
		receiver:  r,
		predicate: p,
	}
}

// add inserts s, replacing any slot with the same non-empty dispatch key.
// It reports whether a slot was replaced.
func (t *table[T]) add(s *slot[T]) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	replaced := false
	if s.ref.DispatchKey != "" {
		kept := t.slots[:0]
		for _, existing := range t.slots {
			if existing.ref.DispatchKey == s.ref.DispatchKey {
				replaced = true
				continue
			}
			kept = append(kept, existing)
		}
		// clear the tail so dropped slots can be collected
		for i := len(kept); i < len(t.slots); i++ {
			t.slots[i] = nil
		}
		t.slots = kept
	}

	t.slots = append(t.slots, s)
	sort.SliceStable(t.slots, func(i, j int) bool {
		return t.slots[i].ref.Priority > t.slots[j].ref.Priority
	})
	return replaced
}

// remove deletes the slot with the given dispatch key.
func (t *table[T]) remove(key string) bool {
	if key == "" {
		return false
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	for i, s := range t.slots {
		if s.ref.DispatchKey == key {
			t.slots = append(t.slots[:i], t.slots[i+1:]...)
			return true
		}
	}
	return false
}

func (t *table[T]) clear() {
	t.mu.Lock()
	t.slots = nil
	t.mu.Unlock()
}

// snapshot returns a copy of the live slots, pruning dead weak slots.
func (t *table[T]) snapshot() []*slot[T] {
	t.mu.RLock()
	out := make([]*slot[T], 0, len(t.slots))
	dead := false
	for _, s := range t.slots {
		if s.dead() {
			dead = true
			continue
		}
		out = append(out, s)
	}
	t.mu.RUnlock()

	if dead {
		t.prune()
	}
	return out
}

// prune removes weak slots whose owner was collected and returns how many
// were removed.
func (t *table[T]) prune() int {
	t.mu.RLock()
	found := false
	for _, s := range t.slots {
		if s.dead() {
			found = true
			break
		}
	}
	t.mu.RUnlock()
	if !found {
		return 0
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	kept := t.slots[:0]
	for _, s := range t.slots {
		if !s.dead() {
			kept = append(kept, s)
		}
	}
	removed := len(t.slots) - len(kept)
	for i := len(kept); i < len(t.slots); i++ {
		t.slots[i] = nil
	}
	t.slots = kept
	return removed
}

func (t *table[T]) find(id string) *slot[T] {
	t.mu.RLock()
	defer t.mu.RUnlock()

	for _, s := range t.slots {
		if s.ref.ID == id && !s.dead() {
			return s
		}
	}
	return nil
}

func (t *table[T]) len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.slots)
}

func (t *table[T]) refs() []ReceiverRef {
	t.mu.RLock()
	defer t.mu.RUnlock()

	out := make([]ReceiverRef, len(t.slots))
	for i, s := range t.slots {
		out[i] = s.ref
	}
	return out
}
