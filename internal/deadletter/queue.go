package deadletter

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/dshills/signals/internal/signal"
)

// OverflowPolicy decides what a full queue does with a new entry.
type OverflowPolicy int

const (
	overflowUnset OverflowPolicy = iota

	// DropOldest evicts the oldest entry to make room.
	DropOldest

	// RejectNew refuses the new entry with ErrQueueFull.
	RejectNew
)

// String returns the policy name.
func (p OverflowPolicy) String() string {
	switch p {
	case DropOldest:
		return "drop_oldest"
	case RejectNew:
		return "reject_new"
	default:
		return "unset"
	}
}

// ParseOverflowPolicy parses "drop_oldest" or "reject_new".
func ParseOverflowPolicy(s string) (OverflowPolicy, error) {
	switch s {
	case "drop_oldest":
		return DropOldest, nil
	case "reject_new":
		return RejectNew, nil
	default:
		return overflowUnset, fmt.Errorf("%w: unknown overflow policy %q", ErrInvalidConfig, s)
	}
}

// Config controls a Queue.
type Config struct {
	// MaxRetries is the number of redeliveries before an entry is abandoned.
	MaxRetries int

	// MaxSize bounds the number of pending entries.
	MaxSize int

	// Overflow must be DropOldest or RejectNew.
	Overflow OverflowPolicy

	// Policy computes retry delays. Defaults to Immediate.
	Policy Policy

	// ExhaustedLimit bounds the list returned by Exhausted. Defaults to MaxSize.
	ExhaustedLimit int
}

// Entry is a failed receiver execution awaiting redelivery.
type Entry[T any] struct {
	ID          string
	Signal      string
	Receiver    signal.ReceiverRef
	Payload     T
	Err         error
	Attempts    int
	FailedAt    time.Time
	NextAttempt time.Time
}

// ExhaustedHandler is called for every abandoned entry.
type ExhaustedHandler[T any] func(ctx context.Context, entry Entry[T], err *DeadLetterError)

// Option configures a Queue.
type Option func(*options)

type options struct {
	now    func() time.Time
	logger zerolog.Logger
}

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(o *options) {
		if now != nil {
			o.now = now
		}
	}
}

// WithLogger sets the queue logger.
func WithLogger(l zerolog.Logger) Option {
	return func(o *options) {
		o.logger = l
	}
}

// Stats contains queue counters.
type Stats struct {
	Pending   int    `json:"pending"`
	Enqueued  uint64 `json:"enqueued"`
	Retried   uint64 `json:"retried"`
	Recovered uint64 `json:"recovered"`
	Exhausted uint64 `json:"exhausted"`
	Dropped   uint64 `json:"dropped"`
	Rejected  uint64 `json:"rejected"`
}

// ProcessResult summarizes one ProcessDue pass.
type ProcessResult struct {
	Retried   int
	Recovered int
	Exhausted int
}

// Queue is a bounded dead-letter queue for one signal.
type Queue[T any] struct {
	sig    *signal.Signal[T]
	cfg    Config
	now    func() time.Time
	logger zerolog.Logger

	mu        sync.Mutex
	entries   []*Entry[T]
	exhausted []Entry[T]

	handlersMu sync.RWMutex
	handlers   []ExhaustedHandler[T]

	enqueued       atomic.Uint64
	retried        atomic.Uint64
	recovered      atomic.Uint64
	exhaustedCount atomic.Uint64
	dropped        atomic.Uint64
	rejected       atomic.Uint64
}

// New creates a queue for sig.
func New[T any](sig *signal.Signal[T], cfg Config, opts ...Option) (*Queue[T], error) {
	if sig == nil {
		return nil, fmt.Errorf("%w: nil signal", ErrInvalidConfig)
	}
	if cfg.Overflow != DropOldest && cfg.Overflow != RejectNew {
		return nil, fmt.Errorf("%w: overflow policy must be set", ErrInvalidConfig)
	}
	if cfg.MaxSize <= 0 {
		return nil, fmt.Errorf("%w: max size must be positive", ErrInvalidConfig)
	}
	if cfg.MaxRetries < 0 {
		return nil, fmt.Errorf("%w: max retries cannot be negative", ErrInvalidConfig)
	}
	if cfg.Policy == nil {
		cfg.Policy = Immediate{}
	}
	if cfg.ExhaustedLimit <= 0 {
		cfg.ExhaustedLimit = cfg.MaxSize
	}

	o := options{now: time.Now, logger: zerolog.Nop()}
	for _, opt := range opts {
		opt(&o)
	}

	return &Queue[T]{
		sig:    sig,
		cfg:    cfg,
		now:    o.now,
		logger: o.logger.With().Str("signal", sig.Name()).Str("component", "deadletter").Logger(),
	}, nil
}

// Signal returns the wrapped signal.
func (q *Queue[T]) Signal() *signal.Signal[T] {
	return q.sig
}

// Attach captures failures of asynchronous sends on the wrapped signal.
func (q *Queue[T]) Attach() {
	q.sig.OnAsyncFailure(func(ctx context.Context, payload T, o signal.Outcome) {
		if _, err := q.Enqueue(payload, o); err != nil {
			q.logger.Warn().Err(err).Str("receiver", o.Receiver.String()).Msg("failed outcome not captured")
		}
	})
}

// OnExhausted registers a handler for abandoned entries.
func (q *Queue[T]) OnExhausted(h ExhaustedHandler[T]) {
	if h == nil {
		return
	}
	q.handlersMu.Lock()
	q.handlers = append(q.handlers, h)
	q.handlersMu.Unlock()
}

// SendRobust sends payload robustly and captures every failed outcome.
func (q *Queue[T]) SendRobust(ctx context.Context, payload T, sender signal.SenderType) []signal.Outcome {
	outcomes := q.sig.SendRobust(ctx, payload, sender)
	if err := q.Capture(ctx, payload, outcomes); err != nil {
		q.logger.Warn().Err(err).Msg("failed outcomes not captured")
	}
	return outcomes
}

// Capture enqueues every failed outcome. It returns the joined enqueue
// errors, if any.
func (q *Queue[T]) Capture(ctx context.Context, payload T, outcomes []signal.Outcome) error {
	var errs []error
	for _, o := range outcomes {
		if o.Err == nil {
			continue
		}
		if _, err := q.Enqueue(payload, o); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Enqueue adds a failed outcome. Outcomes that did not fail are ignored.
func (q *Queue[T]) Enqueue(payload T, o signal.Outcome) (*Entry[T], error) {
	if o.Err == nil {
		return nil, nil
	}

	now := q.now()
	e := &Entry[T]{
		ID:          uuid.NewString(),
		Signal:      q.sig.Name(),
		Receiver:    o.Receiver,
		Payload:     payload,
		Err:         o.Err,
		FailedAt:    now,
		NextAttempt: now.Add(q.cfg.Policy.Delay(1)),
	}

	if q.cfg.MaxRetries == 0 {
		q.exhaust(context.Background(), *e)
		return e, nil
	}

	if err := q.push(e); err != nil {
		return nil, err
	}
	q.enqueued.Add(1)
	return e, nil
}

func (q *Queue[T]) push(e *Entry[T]) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.entries) >= q.cfg.MaxSize {
		switch q.cfg.Overflow {
		case RejectNew:
			q.rejected.Add(1)
			return fmt.Errorf("signal %q: %w", q.sig.Name(), ErrQueueFull)
		case DropOldest:
			dropped := q.entries[0]
			q.entries[0] = nil
			q.entries = q.entries[1:]
			q.dropped.Add(1)
			q.logger.Warn().Str("entry", dropped.ID).Msg("dropped oldest entry")
		}
	}
	q.entries = append(q.entries, e)
	return nil
}

// takeDue removes and returns every entry due at now.
func (q *Queue[T]) takeDue(now time.Time) []*Entry[T] {
	q.mu.Lock()
	defer q.mu.Unlock()

	var due []*Entry[T]
	kept := q.entries[:0]
	for _, e := range q.entries {
		if !e.NextAttempt.After(now) {
			due = append(due, e)
			continue
		}
		kept = append(kept, e)
	}
	for i := len(kept); i < len(q.entries); i++ {
		q.entries[i] = nil
	}
	q.entries = kept
	return due
}

// ProcessDue redelivers every due entry once.
func (q *Queue[T]) ProcessDue(ctx context.Context) ProcessResult {
	var res ProcessResult

	for _, e := range q.takeDue(q.now()) {
		_, err := q.sig.Redeliver(ctx, e.Payload, e.Receiver.ID)
		e.Attempts++
		res.Retried++
		q.retried.Add(1)

		switch {
		case err == nil:
			res.Recovered++
			q.recovered.Add(1)
			q.logger.Debug().Str("entry", e.ID).Int("attempts", e.Attempts).Msg("entry recovered")
		case errors.Is(err, signal.ErrReceiverNotFound):
			e.Err = err
			res.Exhausted++
			q.exhaust(ctx, *e)
		case e.Attempts >= q.cfg.MaxRetries:
			e.Err = err
			res.Exhausted++
			q.exhaust(ctx, *e)
		default:
			e.Err = err
			e.NextAttempt = q.now().Add(q.cfg.Policy.Delay(e.Attempts + 1))
			if perr := q.push(e); perr != nil {
				res.Exhausted++
				q.exhaust(ctx, *e)
			}
		}
	}
	return res
}

// Run calls ProcessDue every interval until ctx is done. A non-positive
// interval returns ErrInvalidConfig.
func (q *Queue[T]) Run(ctx context.Context, interval time.Duration) error {
	if interval <= 0 {
		return fmt.Errorf("%w: retry interval must be positive, got %v", ErrInvalidConfig, interval)
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			q.ProcessDue(ctx)
		}
	}
}

func (q *Queue[T]) exhaust(ctx context.Context, e Entry[T]) {
	q.exhaustedCount.Add(1)
	dle := &DeadLetterError{
		EntryID:  e.ID,
		Signal:   e.Signal,
		Receiver: e.Receiver.String(),
		Attempts: e.Attempts,
		Err:      e.Err,
	}

	q.mu.Lock()
	q.exhausted = append(q.exhausted, e)
	if over := len(q.exhausted) - q.cfg.ExhaustedLimit; over > 0 {
		q.exhausted = append([]Entry[T](nil), q.exhausted[over:]...)
	}
	q.mu.Unlock()

	q.logger.Error().Err(dle).Str("entry", e.ID).Msg("entry exhausted")

	q.handlersMu.RLock()
	handlers := make([]ExhaustedHandler[T], len(q.handlers))
	copy(handlers, q.handlers)
	q.handlersMu.RUnlock()

	for _, h := range handlers {
		h(ctx, e, dle)
	}
}

// Len returns the number of pending entries.
func (q *Queue[T]) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.entries)
}

// Entries returns a copy of the pending entries, oldest first.
func (q *Queue[T]) Entries() []Entry[T] {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := make([]Entry[T], len(q.entries))
	for i, e := range q.entries {
		out[i] = *e
	}
	return out
}

// Exhausted returns the most recently abandoned entries, oldest first.
func (q *Queue[T]) Exhausted() []Entry[T] {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := make([]Entry[T], len(q.exhausted))
	copy(out, q.exhausted)
	return out
}

// Clear drops every pending and exhausted entry.
func (q *Queue[T]) Clear() {
	q.mu.Lock()
	q.entries = nil
	q.exhausted = nil
	q.mu.Unlock()
}

// Stats returns the queue counters.
func (q *Queue[T]) Stats() Stats {
	return Stats{
		Pending:   q.Len(),
		Enqueued:  q.enqueued.Load(),
		Retried:   q.retried.Load(),
		Recovered: q.recovered.Load(),
		Exhausted: q.exhaustedCount.Load(),
		Dropped:   q.dropped.Load(),
		Rejected:  q.rejected.Load(),
	}
}
