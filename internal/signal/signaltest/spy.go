// Package signaltest provides helpers for testing code that sends signals.
package signaltest

import (
	"context"
	"sync"

	"github.com/dshills/signals/internal/signal"
)

// Call records one send observed by a Spy.
type Call[T any] struct {
	Payload         T
	ReceiversCalled int
	Errors          []error
}

// Spy is a middleware that records every send on the signals it is
// attached to.
//
//	spy := signaltest.NewSpy[Order]()
//	orders.Use(spy)
//	placeOrder(ctx)
//	if !spy.WasCalledWithCount(1) { ... }
type Spy[T any] struct {
	signal.NopMiddleware[T]

	mu    sync.Mutex
	calls []Call[T]
}

// NewSpy creates an empty spy.
func NewSpy[T any]() *Spy[T] {
	return &Spy[T]{}
}

// Attach creates a spy and adds it to sig.
func Attach[T any](sig *signal.Signal[T]) *Spy[T] {
	s := NewSpy[T]()
	sig.Use(s)
	return s
}

// AfterSend implements signal.Middleware.
func (s *Spy[T]) AfterSend(ctx context.Context, payload T, outcomes []signal.Outcome) {
	c := Call[T]{Payload: payload, ReceiversCalled: len(outcomes)}
	for _, o := range outcomes {
		if o.Err != nil {
			c.Errors = append(c.Errors, o.Err)
		}
	}

	s.mu.Lock()
	s.calls = append(s.calls, c)
	s.mu.Unlock()
}

// CallCount returns the number of sends observed.
func (s *Spy[T]) CallCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.calls)
}

// WasCalled reports whether any send was observed.
func (s *Spy[T]) WasCalled() bool {
	return s.CallCount() > 0
}

// WasCalledWithCount reports whether exactly n sends were observed.
func (s *Spy[T]) WasCalledWithCount(n int) bool {
	return s.CallCount() == n
}

// TotalReceiversCalled sums receiver executions over every send.
func (s *Spy[T]) TotalReceiversCalled() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	total := 0
	for _, c := range s.calls {
		total += c.ReceiversCalled
	}
	return total
}

// HasErrors reports whether any receiver failed.
func (s *Spy[T]) HasErrors() bool {
	return len(s.Errors()) > 0
}

// Errors returns every receiver error in observation order.
func (s *Spy[T]) Errors() []error {
	s.mu.Lock()
	defer s.mu.Unlock()
	var errs []error
	for _, c := range s.calls {
		errs = append(errs, c.Errors...)
	}
	return errs
}

// Instances returns every observed payload.
func (s *Spy[T]) Instances() []T {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]T, len(s.calls))
	for i, c := range s.calls {
		out[i] = c.Payload
	}
	return out
}

// LastInstance returns the most recent payload.
func (s *Spy[T]) LastInstance() (T, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var zero T
	if len(s.calls) == 0 {
		return zero, false
	}
	return s.calls[len(s.calls)-1].Payload, true
}

// Calls returns a copy of every recorded call.
func (s *Spy[T]) Calls() []Call[T] {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Call[T], len(s.calls))
	copy(out, s.calls)
	return out
}

// Reset forgets every recorded call.
func (s *Spy[T]) Reset() {
	s.mu.Lock()
	s.calls = nil
	s.mu.Unlock()
}
