package throttle

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/dshills/signals/internal/signal"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func countingSignal() (*signal.Signal[int], *atomic.Int32) {
	var n atomic.Int32
	sig := signal.New[int]("ticks")
	sig.Connect(func(ctx context.Context, v int) error {
		n.Add(1)
		return nil
	})
	return sig, &n
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name string
		cfg  Config
	}{
		{"no limit", Config{Strategy: FixedWindow, Window: time.Second, Mode: Reject}},
		{"no window", Config{Strategy: FixedWindow, Limit: 1, Mode: Reject}},
		{"no mode", Config{Strategy: FixedWindow, Limit: 1, Window: time.Second}},
		{"no strategy", Config{Limit: 1, Window: time.Second, Mode: Block}},
		{"negative burst", Config{Strategy: TokenBucket, Limit: 1, Window: time.Second, Burst: -1, Mode: Block}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := tt.cfg.Validate(); !errors.Is(err, ErrInvalidConfig) {
				t.Errorf("expected ErrInvalidConfig, got %v", err)
			}
		})
	}
}

func TestThrottle_RejectEveryStrategy(t *testing.T) {
	for _, strategy := range []Strategy{FixedWindow, SlidingWindow, TokenBucket, LeakyBucket} {
		t.Run(strategy.String(), func(t *testing.T) {
			sig, count := countingSignal()
			clock := &fakeClock{now: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}

			th, err := New(sig, Config{
				Strategy: strategy,
				Limit:    2,
				Window:   time.Second,
				Mode:     Reject,
			}, WithClock(clock.Now))
			if err != nil {
				t.Fatal(err)
			}

			for i := 0; i < 2; i++ {
				if _, err := th.Send(context.Background(), i); err != nil {
					t.Fatalf("send %d: unexpected error %v", i, err)
				}
			}

			_, err = th.Send(context.Background(), 3)
			if !errors.Is(err, ErrThrottled) {
				t.Fatalf("expected ErrThrottled, got %v", err)
			}
			var te *ThrottleError
			if !errors.As(err, &te) || te.RetryAfter <= 0 || te.Strategy != strategy {
				t.Errorf("unexpected throttle error %+v", te)
			}
			if count.Load() != 2 {
				t.Errorf("expected 2 deliveries, got %d", count.Load())
			}

			clock.Advance(time.Second)
			if _, err := th.Send(context.Background(), 4); err != nil {
				t.Errorf("expected admission after a full window, got %v", err)
			}

			stats := th.Stats()
			if stats.Admitted != 3 || stats.Rejected != 1 {
				t.Errorf("unexpected stats %+v", stats)
			}
		})
	}
}

func TestThrottle_Block(t *testing.T) {
	sig, count := countingSignal()
	th, err := New(sig, Config{
		Strategy: FixedWindow,
		Limit:    1,
		Window:   50 * time.Millisecond,
		Mode:     Block,
	})
	if err != nil {
		t.Fatal(err)
	}

	start := time.Now()
	for i := 0; i < 2; i++ {
		if _, err := th.Send(context.Background(), i); err != nil {
			t.Fatalf("unexpected error %v", err)
		}
	}
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Errorf("blocked for too long: %v", elapsed)
	}
	if count.Load() != 2 {
		t.Errorf("expected 2 deliveries, got %d", count.Load())
	}
	if th.Stats().Waited != 1 {
		t.Errorf("expected 1 waited send, got %d", th.Stats().Waited)
	}
}

func TestThrottle_BlockHonoursContext(t *testing.T) {
	sig, count := countingSignal()
	th, _ := New(sig, Config{
		Strategy: SlidingWindow,
		Limit:    1,
		Window:   time.Hour,
		Mode:     Block,
	})

	if _, err := th.Send(context.Background(), 1); err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err := th.Send(ctx, 2)
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("expected context.DeadlineExceeded, got %v", err)
	}
	if count.Load() != 1 {
		t.Errorf("expected 1 delivery, got %d", count.Load())
	}
}

func TestThrottle_SendVariants(t *testing.T) {
	sig, count := countingSignal()
	th, _ := New(sig, Config{Strategy: TokenBucket, Limit: 3, Window: time.Hour, Mode: Reject})

	if _, err := th.SendWithSender(context.Background(), 1, signal.NoSender); err != nil {
		t.Fatal(err)
	}
	if _, err := th.SendRobust(context.Background(), 2, signal.NoSender); err != nil {
		t.Fatal(err)
	}
	if err := th.SendAsync(context.Background(), 3); err != nil {
		t.Fatal(err)
	}
	sig.WaitAsync()

	if _, err := th.SendRobust(context.Background(), 4, signal.NoSender); !errors.Is(err, ErrThrottled) {
		t.Errorf("expected ErrThrottled, got %v", err)
	}
	if count.Load() != 3 {
		t.Errorf("expected 3 deliveries, got %d", count.Load())
	}
}

func TestParse(t *testing.T) {
	if s, err := ParseStrategy("Leaky_Bucket"); err != nil || s != LeakyBucket {
		t.Errorf("expected LeakyBucket, got %v, %v", s, err)
	}
	if _, err := ParseStrategy("magic"); !errors.Is(err, ErrInvalidConfig) {
		t.Errorf("expected ErrInvalidConfig, got %v", err)
	}
	if m, err := ParseMode("block"); err != nil || m != Block {
		t.Errorf("expected Block, got %v, %v", m, err)
	}
	if _, err := ParseMode(""); !errors.Is(err, ErrInvalidConfig) {
		t.Errorf("expected ErrInvalidConfig, got %v", err)
	}
}
