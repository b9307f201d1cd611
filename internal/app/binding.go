package app

import (
	"context"
	"fmt"
	"reflect"
	"sort"
	"time"

	"github.com/dshills/signals/internal/config"
	"github.com/dshills/signals/internal/deadletter"
	"github.com/dshills/signals/internal/history"
	"github.com/dshills/signals/internal/logging"
	"github.com/dshills/signals/internal/signal"
	"github.com/dshills/signals/internal/signal/middleware"
	"github.com/dshills/signals/internal/throttle"
)

// binding is the type-erased view of a Binding held by the App.
type binding interface {
	name() string
	payloadType() reflect.Type
	status() BindingStatus
	run(ctx context.Context) error
	wait()
}

// BindingStatus describes a bound signal for GET /status.
type BindingStatus struct {
	Name        string            `json:"name"`
	PayloadType string            `json:"payload_type"`
	Receivers   int               `json:"receivers"`
	Throttle    *throttle.Stats   `json:"throttle,omitempty"`
	DeadLetter  *deadletter.Stats `json:"dead_letter,omitempty"`
	History     *HistoryStatus    `json:"history,omitempty"`
}

// HistoryStatus summarizes a history store.
type HistoryStatus struct {
	Records  int    `json:"records"`
	Capacity int    `json:"capacity"`
	Evicted  uint64 `json:"evicted"`
}

// Binding is a registry signal with the add-ons its configuration section
// enables. Send through the Binding to apply throttling and dead-letter
// capture; sending on Signal() directly bypasses both.
type Binding[T any] struct {
	sig           *signal.Signal[T]
	throttle      *throttle.Throttle[T]
	dlq           *deadletter.Queue[T]
	history       *history.Store[T]
	retryInterval time.Duration
}

// Bind returns the binding for name, creating it from the signal's
// configuration section on first use. Custom names must pass
// signal.ValidateName.
func Bind[T any](a *App, name string) (*Binding[T], error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if existing, ok := a.bindings[name]; ok {
		b, ok := existing.(*Binding[T])
		if !ok {
			return nil, fmt.Errorf("bind %q as %v: %w (bound as %v)",
				name, reflect.TypeFor[T](), ErrBindingTypeMismatch, existing.payloadType())
		}
		return b, nil
	}

	if !signal.IsBuiltin(name) {
		if err := signal.ValidateName(name); err != nil {
			return nil, err
		}
	}

	b, err := newBinding[T](a, name, a.cfg.Signals[name])
	if err != nil {
		return nil, fmt.Errorf("bind %q: %w", name, err)
	}
	a.bindings[name] = b
	if a.running.Load() {
		a.startBindingLocked(b)
	}
	return b, nil
}

func newBinding[T any](a *App, name string, sc config.SignalConfig) (*Binding[T], error) {
	var opts []signal.Option
	if sc.RequireReceivers {
		opts = append(opts, signal.WithRequireReceivers())
	}
	sig := signal.Get[T](a.registry, name, opts...)
	b := &Binding[T]{sig: sig}
	logger := logging.Component(a.logger, "binding").With().Str("signal", name).Logger()

	// History goes first so that sends are recorded even when a later
	// middleware aborts them.
	if sc.History != nil {
		b.history = history.NewStore[T](sc.History.Capacity)
		b.history.Attach(sig)
	}
	if sc.Logging {
		sig.Use(middleware.Logging[T](logger, name))
	}
	if sc.Tracing {
		if tp := a.opts.TracerProvider; tp != nil {
			sig.Use(middleware.TracingWithTracer[T](tp.Tracer("github.com/dshills/signals"), name))
		} else {
			sig.Use(middleware.Tracing[T](name))
		}
	}
	if sc.Metrics {
		if mp := a.opts.MeterProvider; mp != nil {
			sig.Use(middleware.MetricsWithMeter[T](mp.Meter("github.com/dshills/signals"), name))
		} else {
			sig.Use(middleware.Metrics[T](name))
		}
	}

	if sc.Throttle != nil {
		tc, err := sc.Throttle.Build()
		if err != nil {
			return nil, err
		}
		b.throttle, err = throttle.New(sig, tc, throttle.WithLogger(logger))
		if err != nil {
			return nil, err
		}
	}

	if sc.DeadLetter != nil {
		dc, err := sc.DeadLetter.Build()
		if err != nil {
			return nil, err
		}
		b.dlq, err = deadletter.New(sig, dc, deadletter.WithLogger(logger))
		if err != nil {
			return nil, err
		}
		b.dlq.Attach()
		b.retryInterval = sc.DeadLetter.RetryInterval()
	}

	return b, nil
}

// Signal returns the underlying signal.
func (b *Binding[T]) Signal() *signal.Signal[T] { return b.sig }

// Throttle returns the throttle, or nil when none is configured.
func (b *Binding[T]) Throttle() *throttle.Throttle[T] { return b.throttle }

// DeadLetter returns the dead-letter queue, or nil when none is configured.
func (b *Binding[T]) DeadLetter() *deadletter.Queue[T] { return b.dlq }

// History returns the history store, or nil when none is configured.
func (b *Binding[T]) History() *history.Store[T] { return b.history }

func (b *Binding[T]) admit(ctx context.Context) error {
	if b.throttle == nil {
		return nil
	}
	return b.throttle.Admit(ctx)
}

// Send admits the send through the throttle and dispatches it fail-fast.
// A failed outcome is captured by the dead-letter queue.
func (b *Binding[T]) Send(ctx context.Context, payload T) ([]signal.Outcome, error) {
	return b.SendWithSender(ctx, payload, signal.NoSender)
}

// SendWithSender is Send with a sender.
func (b *Binding[T]) SendWithSender(ctx context.Context, payload T, sender signal.SenderType) ([]signal.Outcome, error) {
	if err := b.admit(ctx); err != nil {
		return nil, err
	}
	outcomes, err := b.sig.SendWithSender(ctx, payload, sender)
	if b.dlq != nil && err != nil {
		if cerr := b.dlq.Capture(ctx, payload, outcomes); cerr != nil {
			return outcomes, fmt.Errorf("%w (dead letter: %v)", err, cerr)
		}
	}
	return outcomes, err
}

// SendRobust admits the send and runs every receiver. Failed outcomes are
// captured by the dead-letter queue. The error only reports throttling.
func (b *Binding[T]) SendRobust(ctx context.Context, payload T, sender signal.SenderType) ([]signal.Outcome, error) {
	if err := b.admit(ctx); err != nil {
		return nil, err
	}
	if b.dlq != nil {
		return b.dlq.SendRobust(ctx, payload, sender), nil
	}
	return b.sig.SendRobust(ctx, payload, sender), nil
}

// SendAsync admits the send and schedules it on the worker pool. Failed
// outcomes reach the dead-letter queue through the signal's async failure
// handler.
func (b *Binding[T]) SendAsync(ctx context.Context, payload T) error {
	if err := b.admit(ctx); err != nil {
		return err
	}
	return b.sig.SendAsync(ctx, payload)
}

// Status returns the binding status.
func (b *Binding[T]) Status() BindingStatus {
	st := BindingStatus{
		Name:        b.sig.Name(),
		PayloadType: b.sig.PayloadType().String(),
		Receivers:   b.sig.ReceiverCount(),
	}
	if b.throttle != nil {
		ts := b.throttle.Stats()
		st.Throttle = &ts
	}
	if b.dlq != nil {
		ds := b.dlq.Stats()
		st.DeadLetter = &ds
	}
	if b.history != nil {
		st.History = &HistoryStatus{
			Records:  b.history.Len(),
			Capacity: b.history.Cap(),
			Evicted:  b.history.Evicted(),
		}
	}
	return st
}

func (b *Binding[T]) name() string              { return b.sig.Name() }
func (b *Binding[T]) payloadType() reflect.Type { return b.sig.PayloadType() }
func (b *Binding[T]) status() BindingStatus     { return b.Status() }
func (b *Binding[T]) wait()                     { b.sig.WaitAsync() }

func (b *Binding[T]) run(ctx context.Context) error {
	if b.dlq == nil {
		return nil
	}
	return b.dlq.Run(ctx, b.retryInterval)
}

// BindingStatus returns the status of every binding sorted by name.
func (a *App) BindingStatus() []BindingStatus {
	a.mu.RLock()
	out := make([]BindingStatus, 0, len(a.bindings))
	for _, b := range a.bindings {
		out = append(out, b.status())
	}
	a.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}
