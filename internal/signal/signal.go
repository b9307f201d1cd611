package signal

import (
	"context"
	"fmt"
	"reflect"
	"sync"
	"time"
	"weak"

	"github.com/rs/zerolog"

	"github.com/dshills/signals/internal/signal/dispatch"
)

// Outcome is the result of running one receiver.
type Outcome struct {
	// Receiver identifies the slot that ran.
	Receiver ReceiverRef

	// Duration is how long the receiver took.
	Duration time.Duration

	// Err is nil on success, otherwise a *ReceiverError.
	Err error
}

// Failed reports whether the receiver errored or panicked.
func (o Outcome) Failed() bool {
	return o.Err != nil
}

// Panicked reports whether the receiver panicked.
func (o Outcome) Panicked() bool {
	re, ok := o.Err.(*ReceiverError)
	return ok && re.Panicked
}

// AsyncFailureHandler receives failed outcomes of asynchronous sends.
type AsyncFailureHandler[T any] func(ctx context.Context, payload T, outcome Outcome)

// Signal dispatches payloads of type T to connected receivers.
// A *Signal is safe for concurrent use; copies of the pointer share all state.
type Signal[T any] struct {
	name string
	cfg  signalConfig

	receivers table[T]

	mwMu        sync.RWMutex
	middlewares []Middleware[T]

	asyncMu       sync.RWMutex
	asyncHandlers []AsyncFailureHandler[T]
	inflight      sync.WaitGroup

	metrics  *Collector
	meta     *Metadata
	executor *dispatch.Executor
	logger   zerolog.Logger
}

// New creates a standalone signal. Use a Registry to share signals by name.
func New[T any](name string, opts ...Option) *Signal[T] {
	cfg := defaultSignalConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	return newSignal[T](name, cfg)
}

func newSignal[T any](name string, cfg signalConfig) *Signal[T] {
	return &Signal[T]{
		name:     name,
		cfg:      cfg,
		metrics:  NewCollector(),
		meta:     newMetadata(),
		executor: dispatch.NewExecutor(),
		logger:   cfg.logger.With().Str("signal", name).Logger(),
	}
}

// Name returns the signal name.
func (s *Signal[T]) Name() string {
	return s.name
}

// PayloadType returns the reflect.Type of T.
func (s *Signal[T]) PayloadType() reflect.Type {
	return reflect.TypeFor[T]()
}

// Metadata returns the signal's shared key/value store.
func (s *Signal[T]) Metadata() *Metadata {
	return s.meta
}

// Connect adds an unfiltered receiver with normal priority.
func (s *Signal[T]) Connect(r ReceiverFunc[T]) error {
	return s.ConnectWithFullOptions(r, NoSender, "", PriorityNormal, nil)
}

// ConnectWithPriority adds a receiver with the given priority.
func (s *Signal[T]) ConnectWithPriority(r ReceiverFunc[T], priority int) error {
	return s.ConnectWithFullOptions(r, NoSender, "", priority, nil)
}

// ConnectWithOptions adds a receiver with a sender filter, dispatch key and
// priority.
func (s *Signal[T]) ConnectWithOptions(r ReceiverFunc[T], sender SenderType, dispatchKey string, priority int) error {
	return s.ConnectWithFullOptions(r, sender, dispatchKey, priority, nil)
}

// ConnectIf adds a receiver that only runs when p accepts the payload.
func (s *Signal[T]) ConnectIf(r ReceiverFunc[T], p Predicate[T]) error {
	return s.ConnectWithFullOptions(r, NoSender, "", PriorityNormal, p)
}

// ConnectWithFullOptions adds a receiver with every option. A receiver
// already connected under the same non-empty dispatch key is replaced.
func (s *Signal[T]) ConnectWithFullOptions(r ReceiverFunc[T], sender SenderType, dispatchKey string, priority int, p Predicate[T]) error {
	return s.connect(r, sender, dispatchKey, priority, p, nil)
}

func (s *Signal[T]) connect(r ReceiverFunc[T], sender SenderType, dispatchKey string, priority int, p Predicate[T], alive func() bool) error {
	if r == nil {
		return &RegistrationError{Signal: s.name, DispatchKey: dispatchKey, Err: ErrNilReceiver}
	}

	sl := newSlot(r, sender, dispatchKey, priority, p)
	sl.alive = alive
	if s.receivers.add(sl) {
		s.logger.Debug().Str("dispatch_key", dispatchKey).Msg("receiver replaced")
	}
	return nil
}

// Receive connects r to sig using declarative clauses.
//
//	signal.Receive(userSaved, audit,
//		signal.WithSender[*UserService](),
//		signal.WithDispatchKey("audit"),
//		signal.WithPriority(signal.PriorityHigh))
func Receive[T any](sig *Signal[T], r ReceiverFunc[T], opts ...ConnectOption) error {
	if sig == nil {
		return &RegistrationError{Err: ErrNilSignal}
	}

	cfg, pred, err := resolveConnect(sig, opts)
	if err != nil {
		return err
	}
	return sig.ConnectWithFullOptions(r, cfg.sender, cfg.key, cfg.priority, pred)
}

func resolveConnect[T any](sig *Signal[T], opts []ConnectOption) (connectConfig, Predicate[T], error) {
	var cfg connectConfig
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.predicate == nil {
		return cfg, nil, nil
	}
	p, ok := cfg.predicate.(Predicate[T])
	if !ok {
		return cfg, nil, &RegistrationError{
			Signal:      sig.name,
			DispatchKey: cfg.key,
			Err:         fmt.Errorf("%w: predicate is %T", ErrTypeMismatch, cfg.predicate),
		}
	}
	return cfg, p, nil
}

// WeakReceiverFunc handles a payload on behalf of an owner held weakly.
type WeakReceiverFunc[T, O any] func(ctx context.Context, owner *O, payload T) error

// ConnectWeak connects fn to sig without keeping owner reachable. Each send
// passes the owner to fn while it is alive. Once owner is garbage collected
// the receiver stops running and its slot is removed by the next send,
// HasReceivers or ClearDeadReceivers. fn must not capture owner itself.
func ConnectWeak[T, O any](sig *Signal[T], owner *O, fn WeakReceiverFunc[T, O], opts ...ConnectOption) error {
	if sig == nil {
		return &RegistrationError{Err: ErrNilSignal}
	}
	if owner == nil || fn == nil {
		return &RegistrationError{Signal: sig.name, Err: ErrNilReceiver}
	}
	cfg, pred, err := resolveConnect(sig, opts)
	if err != nil {
		return err
	}

	wp := weak.Make(owner)
	r := func(ctx context.Context, payload T) error {
		o := wp.Value()
		if o == nil {
			return nil
		}
		return fn(ctx, o, payload)
	}
	alive := func() bool { return wp.Value() != nil }
	return sig.connect(r, cfg.sender, cfg.key, cfg.priority, pred, alive)
}

// Disconnect removes the receiver with the given dispatch key.
func (s *Signal[T]) Disconnect(dispatchKey string) bool {
	return s.receivers.remove(dispatchKey)
}

// DisconnectAll removes every receiver.
func (s *Signal[T]) DisconnectAll() {
	s.receivers.clear()
}

// ReceiverCount returns the number of connected receivers. Weak receivers
// whose owner was collected are counted until they are pruned.
func (s *Signal[T]) ReceiverCount() int {
	return s.receivers.len()
}

// HasReceivers prunes dead weak receivers and reports whether any receiver
// remains connected.
func (s *Signal[T]) HasReceivers() bool {
	s.receivers.prune()
	return s.receivers.len() > 0
}

// ClearDeadReceivers removes weak receivers whose owner was collected and
// returns how many were removed.
func (s *Signal[T]) ClearDeadReceivers() int {
	return s.receivers.prune()
}

// Receivers returns the connected receivers in dispatch order.
func (s *Signal[T]) Receivers() []ReceiverRef {
	return s.receivers.refs()
}

// Use appends middleware to the pipeline.
func (s *Signal[T]) Use(mw ...Middleware[T]) {
	s.mwMu.Lock()
	s.middlewares = append(s.middlewares, mw...)
	s.mwMu.Unlock()
}

func (s *Signal[T]) middlewareSnapshot() []Middleware[T] {
	s.mwMu.RLock()
	defer s.mwMu.RUnlock()
	out := make([]Middleware[T], len(s.middlewares))
	copy(out, s.middlewares)
	return out
}

// OnAsyncFailure registers a handler for failed receivers of asynchronous
// sends.
func (s *Signal[T]) OnAsyncFailure(h AsyncFailureHandler[T]) {
	if h == nil {
		return
	}
	s.asyncMu.Lock()
	s.asyncHandlers = append(s.asyncHandlers, h)
	s.asyncMu.Unlock()
}

// Metrics returns a snapshot of the signal's metrics.
func (s *Signal[T]) Metrics() MetricsSnapshot {
	return s.metrics.Snapshot()
}

// ResetMetrics zeroes the signal's metrics.
func (s *Signal[T]) ResetMetrics() {
	s.metrics.Reset()
}

// Send dispatches payload without a sender, stopping at the first failure.
func (s *Signal[T]) Send(ctx context.Context, payload T) ([]Outcome, error) {
	return s.dispatch(ctx, payload, NoSender, true)
}

// SendWithSender dispatches payload as sender, stopping at the first
// failure. The outcomes collected up to and including the failure are
// returned alongside its error.
func (s *Signal[T]) SendWithSender(ctx context.Context, payload T, sender SenderType) ([]Outcome, error) {
	return s.dispatch(ctx, payload, sender, true)
}

// SendRobust dispatches payload to every eligible receiver regardless of
// failures and returns one outcome per executed receiver.
func (s *Signal[T]) SendRobust(ctx context.Context, payload T, sender SenderType) []Outcome {
	outcomes, _ := s.dispatch(ctx, payload, sender, false)
	return outcomes
}

// SendAsync dispatches payload robustly in the background. The returned
// error only reports that the send could not be scheduled. Receiver
// failures are visible through Metrics and OnAsyncFailure handlers.
func (s *Signal[T]) SendAsync(ctx context.Context, payload T) error {
	return s.SendAsyncWithSender(ctx, payload, NoSender)
}

// SendAsyncWithSender is SendAsync with a sender.
func (s *Signal[T]) SendAsyncWithSender(ctx context.Context, payload T, sender SenderType) error {
	ctx = context.WithoutCancel(ctx)
	job := func(ctx context.Context) {
		defer s.inflight.Done()
		outcomes := s.SendRobust(ctx, payload, sender)
		s.reportAsyncFailures(ctx, payload, outcomes)
	}

	s.inflight.Add(1)
	if s.cfg.pool == nil {
		go job(ctx)
		return nil
	}
	if err := s.cfg.pool.Enqueue(ctx, job); err != nil {
		s.inflight.Done()
		return fmt.Errorf("signal %q: %w", s.name, err)
	}
	return nil
}

// WaitAsync blocks until every scheduled asynchronous send has finished.
func (s *Signal[T]) WaitAsync() {
	s.inflight.Wait()
}

func (s *Signal[T]) reportAsyncFailures(ctx context.Context, payload T, outcomes []Outcome) {
	s.asyncMu.RLock()
	handlers := make([]AsyncFailureHandler[T], len(s.asyncHandlers))
	copy(handlers, s.asyncHandlers)
	s.asyncMu.RUnlock()

	for _, o := range outcomes {
		if o.Err == nil {
			continue
		}
		if len(handlers) == 0 {
			s.logger.Warn().Err(o.Err).Str("receiver", o.Receiver.String()).Msg("async receiver failed")
			continue
		}
		for _, h := range handlers {
			h(ctx, payload, o)
		}
	}
}

// Redeliver runs a single receiver again by slot ID. Receiver-level
// middleware and metrics apply; send-level hooks do not.
func (s *Signal[T]) Redeliver(ctx context.Context, payload T, receiverID string) (Outcome, error) {
	sl := s.receivers.find(receiverID)
	if sl == nil {
		return Outcome{}, fmt.Errorf("signal %q: %s: %w", s.name, receiverID, ErrReceiverNotFound)
	}

	mws := s.middlewareSnapshot()
	for _, mw := range mws {
		if !mw.BeforeReceiver(ctx, payload, sl.ref) {
			return Outcome{Receiver: sl.ref}, &DispatchError{Signal: s.name, Reason: ReasonAborted}
		}
	}

	o := s.invoke(ctx, payload, sl, mws)
	return o, o.Err
}

func (s *Signal[T]) dispatch(ctx context.Context, payload T, sender SenderType, failFast bool) ([]Outcome, error) {
	s.metrics.RecordSend()

	slots := s.receivers.snapshot()
	mws := s.middlewareSnapshot()

	for _, mw := range mws {
		if !mw.BeforeSend(ctx, payload) {
			s.metrics.RecordAbort()
			for _, m := range mws {
				m.AfterSend(ctx, payload, nil)
			}
			s.logger.Debug().Msg("send aborted by middleware")
			return nil, &DispatchError{Signal: s.name, Reason: ReasonAborted}
		}
	}

	var outcomes []Outcome
	var failure error

	for _, sl := range slots {
		if !sl.ref.Sender.accepts(sender) {
			continue
		}
		if sl.predicate != nil && !s.evalPredicate(sl, payload) {
			continue
		}
		if !allowReceiver(ctx, mws, payload, sl.ref) {
			continue
		}

		o := s.invoke(ctx, payload, sl, mws)
		outcomes = append(outcomes, o)
		if o.Err != nil && failFast {
			failure = o.Err
			break
		}
	}

	for _, mw := range mws {
		mw.AfterSend(ctx, payload, outcomes)
	}

	if failure != nil {
		return outcomes, failure
	}
	if s.cfg.requireReceivers && len(outcomes) == 0 {
		return nil, &DispatchError{Signal: s.name, Reason: ReasonNoReceivers}
	}
	return outcomes, nil
}

func allowReceiver[T any](ctx context.Context, mws []Middleware[T], payload T, ref ReceiverRef) bool {
	for _, mw := range mws {
		if !mw.BeforeReceiver(ctx, payload, ref) {
			return false
		}
	}
	return true
}

// evalPredicate treats a panicking predicate as a rejection.
func (s *Signal[T]) evalPredicate(sl *slot[T], payload T) (ok bool) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error().
				Str("receiver", sl.ref.String()).
				Interface("panic", r).
				Msg("predicate panicked")
			ok = false
		}
	}()
	return sl.predicate(payload)
}

func (s *Signal[T]) invoke(ctx context.Context, payload T, sl *slot[T], mws []Middleware[T]) Outcome {
	res := s.executor.Execute(ctx, func(ctx context.Context) error {
		return sl.receiver(ctx, payload)
	})

	o := Outcome{Receiver: sl.ref, Duration: res.Duration}
	switch {
	case res.Panicked:
		o.Err = &ReceiverError{
			Signal:     s.name,
			Receiver:   sl.ref,
			Err:        fmt.Errorf("panic: %v", res.PanicValue),
			Panicked:   true,
			PanicValue: res.PanicValue,
			Stack:      res.PanicStack,
		}
		s.logger.Error().
			Str("receiver", sl.ref.String()).
			Interface("panic", res.PanicValue).
			Bytes("stack", res.PanicStack).
			Msg("receiver panicked")
	case res.Err != nil:
		o.Err = &ReceiverError{Signal: s.name, Receiver: sl.ref, Err: res.Err}
	}

	s.metrics.RecordExecution(res.Duration, o.Err != nil, res.Panicked)

	for _, mw := range mws {
		mw.AfterReceiver(ctx, payload, sl.ref, o)
	}
	return o
}
