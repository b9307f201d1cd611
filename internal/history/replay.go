package history

import (
	"context"
	"fmt"
	"time"

	"github.com/dshills/signals/internal/signal"
)

type replayKey struct{}

// IsReplay reports whether ctx belongs to a send made by Replay.
func IsReplay(ctx context.Context) bool {
	v, _ := ctx.Value(replayKey{}).(bool)
	return v
}

func withReplay(ctx context.Context) context.Context {
	return context.WithValue(ctx, replayKey{}, true)
}

// Speed scales the gaps between replayed sends.
type Speed struct {
	instant    bool
	multiplier float64
}

var (
	// Instant replays without waiting.
	Instant = Speed{instant: true}

	// Realtime keeps the recorded gaps.
	Realtime = Speed{multiplier: 1}

	// Fast replays ten times faster than recorded.
	Fast = Speed{multiplier: 10}
)

// Custom replays m times faster than recorded. Replay rejects a
// non-positive m.
func Custom(m float64) Speed {
	return Speed{multiplier: m}
}

// String returns a readable form such as "10x".
func (s Speed) String() string {
	if s.instant {
		return "instant"
	}
	return fmt.Sprintf("%gx", s.multiplier)
}

func (s Speed) validate() error {
	if s.instant || s.multiplier > 0 {
		return nil
	}
	return fmt.Errorf("%w: %s", ErrInvalidSpeed, s)
}

func (s Speed) scale(gap time.Duration) time.Duration {
	if s.instant || gap <= 0 {
		return 0
	}
	return time.Duration(float64(gap) / s.multiplier)
}

// Result summarizes a replay.
type Result struct {
	// Sent is the number of records dispatched.
	Sent int

	// Failed is the number of records for which at least one receiver
	// failed.
	Failed int
}

// ReplayOption configures Replay.
type ReplayOption func(*replayConfig)

type replayConfig struct {
	failFast bool
	sender   signal.SenderType
}

// WithFailFast replays with Send and stops at the first failed record.
func WithFailFast() ReplayOption {
	return func(c *replayConfig) {
		c.failFast = true
	}
}

// WithReplaySender replays as the given sender.
func WithReplaySender(s signal.SenderType) ReplayOption {
	return func(c *replayConfig) {
		c.sender = s
	}
}

// Replay sends each record's payload on sig in order. It stops when ctx is
// done, returning what was sent so far with ctx.Err().
func Replay[T any](ctx context.Context, records []Record[T], sig *signal.Signal[T], speed Speed, opts ...ReplayOption) (Result, error) {
	var res Result
	if sig == nil {
		return res, signal.ErrNilSignal
	}
	if err := speed.validate(); err != nil {
		return res, err
	}

	var cfg replayConfig
	for _, opt := range opts {
		opt(&cfg)
	}

	ctx = withReplay(ctx)
	for i, rec := range records {
		if i > 0 {
			if err := sleep(ctx, speed.scale(rec.Timestamp.Sub(records[i-1].Timestamp))); err != nil {
				return res, err
			}
		} else if err := ctx.Err(); err != nil {
			return res, err
		}

		if cfg.failFast {
			_, err := sig.SendWithSender(ctx, rec.Payload, cfg.sender)
			res.Sent++
			if err != nil {
				res.Failed++
				return res, fmt.Errorf("replay record %d: %w", rec.Seq, err)
			}
			continue
		}

		outcomes := sig.SendRobust(ctx, rec.Payload, cfg.sender)
		res.Sent++
		for _, o := range outcomes {
			if o.Failed() {
				res.Failed++
				break
			}
		}
	}
	return res, nil
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
