package history

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/dshills/signals/internal/signal"
)

// DefaultCapacity is used when NewStore is given a non-positive capacity.
const DefaultCapacity = 1000

// Record is one recorded send.
type Record[T any] struct {
	// Seq increases by one per recorded send and survives eviction.
	Seq uint64 `json:"seq" msgpack:"seq"`

	ID        string    `json:"id" msgpack:"id"`
	Payload   T         `json:"payload" msgpack:"payload"`
	Timestamp time.Time `json:"timestamp" msgpack:"timestamp"`
}

// Option configures a Store.
type Option func(*storeOptions)

type storeOptions struct {
	now func() time.Time
}

// WithClock overrides time.Now for record timestamps.
func WithClock(now func() time.Time) Option {
	return func(o *storeOptions) {
		if now != nil {
			o.now = now
		}
	}
}

// Store is a bounded, append-only log of sends. When full, the oldest
// record is evicted.
type Store[T any] struct {
	mu       sync.RWMutex
	records  []Record[T]
	capacity int
	seq      uint64
	evicted  uint64
	now      func() time.Time
}

// NewStore creates a store holding at most capacity records.
func NewStore[T any](capacity int, opts ...Option) *Store[T] {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	o := storeOptions{now: time.Now}
	for _, opt := range opts {
		opt(&o)
	}
	return &Store[T]{
		capacity: capacity,
		now:      o.now,
	}
}

// Append records payload and returns the new record.
func (s *Store[T]) Append(payload T) Record[T] {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.seq++
	rec := Record[T]{
		Seq:       s.seq,
		ID:        uuid.NewString(),
		Payload:   payload,
		Timestamp: s.now(),
	}
	s.records = append(s.records, rec)
	s.trimLocked()
	return rec
}

func (s *Store[T]) trimLocked() {
	if excess := len(s.records) - s.capacity; excess > 0 {
		s.evicted += uint64(excess)
		s.records = append([]Record[T](nil), s.records[excess:]...)
	}
}

// Records returns a copy of the records, oldest first.
func (s *Store[T]) Records() []Record[T] {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]Record[T], len(s.records))
	copy(out, s.records)
	return out
}

// Since returns the records with a sequence number greater than seq.
func (s *Store[T]) Since(seq uint64) []Record[T] {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []Record[T]
	for _, r := range s.records {
		if r.Seq > seq {
			out = append(out, r)
		}
	}
	return out
}

// Last returns up to n of the most recent records, oldest first.
func (s *Store[T]) Last(n int) []Record[T] {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if n <= 0 {
		return nil
	}
	if n > len(s.records) {
		n = len(s.records)
	}
	out := make([]Record[T], n)
	copy(out, s.records[len(s.records)-n:])
	return out
}

// Len returns the number of records held.
func (s *Store[T]) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records)
}

// Cap returns the store capacity.
func (s *Store[T]) Cap() int {
	return s.capacity
}

// Evicted returns how many records have been dropped for capacity.
func (s *Store[T]) Evicted() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.evicted
}

// Clear removes all records. Sequence numbers keep increasing.
func (s *Store[T]) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = nil
}

// Load replaces the contents with records, typically from Decode.
// Only the newest Cap() records are kept and new records continue after
// the highest loaded sequence number.
func (s *Store[T]) Load(records []Record[T]) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.records = make([]Record[T], len(records))
	copy(s.records, records)
	for _, r := range s.records {
		if r.Seq > s.seq {
			s.seq = r.Seq
		}
	}
	s.trimLocked()
}

// Middleware returns signal middleware that records every send in
// BeforeSend. Sends made by Replay are skipped.
func (s *Store[T]) Middleware() signal.Middleware[T] {
	return signal.MiddlewareFuncs[T]{
		BeforeSendFunc: func(ctx context.Context, payload T) bool {
			if !IsReplay(ctx) {
				s.Append(payload)
			}
			return true
		},
	}
}

// Attach adds the store's middleware to sig.
func (s *Store[T]) Attach(sig *signal.Signal[T]) {
	sig.Use(s.Middleware())
}
