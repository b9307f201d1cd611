package throttle

import (
	"context"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/dshills/signals/internal/signal"
)

// Strategy selects the limiting algorithm.
type Strategy int

const (
	strategyUnset Strategy = iota
	FixedWindow
	SlidingWindow
	TokenBucket
	LeakyBucket
)

// String returns the strategy name.
func (s Strategy) String() string {
	switch s {
	case FixedWindow:
		return "fixed_window"
	case SlidingWindow:
		return "sliding_window"
	case TokenBucket:
		return "token_bucket"
	case LeakyBucket:
		return "leaky_bucket"
	default:
		return "unset"
	}
}

// ParseStrategy parses a strategy name such as "token_bucket".
func ParseStrategy(s string) (Strategy, error) {
	switch strings.ToLower(s) {
	case "fixed_window":
		return FixedWindow, nil
	case "sliding_window":
		return SlidingWindow, nil
	case "token_bucket":
		return TokenBucket, nil
	case "leaky_bucket":
		return LeakyBucket, nil
	default:
		return strategyUnset, fmt.Errorf("%w: unknown strategy %q", ErrInvalidConfig, s)
	}
}

// Mode decides what happens to a send over the limit.
type Mode int

const (
	modeUnset Mode = iota

	// Reject fails the send with a ThrottleError.
	Reject

	// Block waits for capacity or for the context to be done.
	Block
)

// String returns the mode name.
func (m Mode) String() string {
	switch m {
	case Reject:
		return "reject"
	case Block:
		return "block"
	default:
		return "unset"
	}
}

// ParseMode parses "reject" or "block".
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(s) {
	case "reject":
		return Reject, nil
	case "block":
		return Block, nil
	default:
		return modeUnset, fmt.Errorf("%w: unknown mode %q", ErrInvalidConfig, s)
	}
}

// Config controls a Throttle.
type Config struct {
	Strategy Strategy

	// Limit is the number of sends allowed per Window.
	Limit int

	Window time.Duration

	// Burst is the bucket depth for TokenBucket and LeakyBucket.
	// Defaults to Limit.
	Burst int

	// Mode must be Reject or Block.
	Mode Mode
}

// Validate checks the config.
func (c Config) Validate() error {
	if c.Limit <= 0 {
		return fmt.Errorf("%w: limit must be positive", ErrInvalidConfig)
	}
	if c.Window <= 0 {
		return fmt.Errorf("%w: window must be positive", ErrInvalidConfig)
	}
	if c.Burst < 0 {
		return fmt.Errorf("%w: burst cannot be negative", ErrInvalidConfig)
	}
	if c.Mode != Reject && c.Mode != Block {
		return fmt.Errorf("%w: mode must be set", ErrInvalidConfig)
	}
	switch c.Strategy {
	case FixedWindow, SlidingWindow, TokenBucket, LeakyBucket:
	default:
		return fmt.Errorf("%w: strategy must be set", ErrInvalidConfig)
	}
	return nil
}

// Option configures a Throttle.
type Option func(*options)

type options struct {
	now    func() time.Time
	logger zerolog.Logger
}

// WithClock overrides time.Now. Block mode still sleeps in real time.
func WithClock(now func() time.Time) Option {
	return func(o *options) {
		if now != nil {
			o.now = now
		}
	}
}

// WithLogger sets the throttle logger.
func WithLogger(l zerolog.Logger) Option {
	return func(o *options) {
		o.logger = l
	}
}

// Stats contains throttle counters.
type Stats struct {
	Admitted uint64 `json:"admitted"`
	Rejected uint64 `json:"rejected"`
	Waited   uint64 `json:"waited"`
}

// Throttle limits the send rate of one signal.
type Throttle[T any] struct {
	sig    *signal.Signal[T]
	cfg    Config
	lim    limiter
	now    func() time.Time
	logger zerolog.Logger

	admitted atomic.Uint64
	rejected atomic.Uint64
	waited   atomic.Uint64
}

// New creates a throttle around sig.
func New[T any](sig *signal.Signal[T], cfg Config, opts ...Option) (*Throttle[T], error) {
	if sig == nil {
		return nil, fmt.Errorf("%w: nil signal", ErrInvalidConfig)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if cfg.Burst == 0 {
		cfg.Burst = cfg.Limit
	}

	o := options{now: time.Now, logger: zerolog.Nop()}
	for _, opt := range opts {
		opt(&o)
	}

	return &Throttle[T]{
		sig:    sig,
		cfg:    cfg,
		lim:    newLimiter(cfg),
		now:    o.now,
		logger: o.logger.With().Str("signal", sig.Name()).Str("component", "throttle").Logger(),
	}, nil
}

func newLimiter(cfg Config) limiter {
	switch cfg.Strategy {
	case FixedWindow:
		return &fixedWindow{limit: cfg.Limit, window: cfg.Window}
	case SlidingWindow:
		return &slidingWindow{limit: cfg.Limit, window: cfg.Window}
	case TokenBucket:
		return newTokenBucket(cfg.Limit, cfg.Window, cfg.Burst)
	default:
		return newLeakyBucket(cfg.Limit, cfg.Window, cfg.Burst)
	}
}

// Signal returns the wrapped signal.
func (t *Throttle[T]) Signal() *signal.Signal[T] {
	return t.sig
}

// Config returns the effective configuration.
func (t *Throttle[T]) Config() Config {
	return t.cfg
}

// Admit takes capacity for one send. In Reject mode it returns a
// *ThrottleError when over the limit; in Block mode it waits, returning
// ctx.Err() if ctx ends first.
func (t *Throttle[T]) Admit(ctx context.Context) error {
	waited := false
	for {
		wait := t.lim.reserve(t.now())
		if wait <= 0 {
			t.admitted.Add(1)
			if waited {
				t.waited.Add(1)
			}
			return nil
		}

		if t.cfg.Mode == Reject {
			t.rejected.Add(1)
			t.logger.Debug().Dur("retry_after", wait).Msg("send rejected")
			return &ThrottleError{Signal: t.sig.Name(), Strategy: t.cfg.Strategy, RetryAfter: wait}
		}

		waited = true
		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
}

// Send admits then calls Signal.Send.
func (t *Throttle[T]) Send(ctx context.Context, payload T) ([]signal.Outcome, error) {
	if err := t.Admit(ctx); err != nil {
		return nil, err
	}
	return t.sig.Send(ctx, payload)
}

// SendWithSender admits then calls Signal.SendWithSender.
func (t *Throttle[T]) SendWithSender(ctx context.Context, payload T, sender signal.SenderType) ([]signal.Outcome, error) {
	if err := t.Admit(ctx); err != nil {
		return nil, err
	}
	return t.sig.SendWithSender(ctx, payload, sender)
}

// SendRobust admits then calls Signal.SendRobust. The error only reports
// throttling.
func (t *Throttle[T]) SendRobust(ctx context.Context, payload T, sender signal.SenderType) ([]signal.Outcome, error) {
	if err := t.Admit(ctx); err != nil {
		return nil, err
	}
	return t.sig.SendRobust(ctx, payload, sender), nil
}

// SendAsync admits then calls Signal.SendAsync.
func (t *Throttle[T]) SendAsync(ctx context.Context, payload T) error {
	if err := t.Admit(ctx); err != nil {
		return err
	}
	return t.sig.SendAsync(ctx, payload)
}

// Stats returns the throttle counters.
func (t *Throttle[T]) Stats() Stats {
	return Stats{
		Admitted: t.admitted.Load(),
		Rejected: t.rejected.Load(),
		Waited:   t.waited.Load(),
	}
}
