package signal

import "context"

// Middleware intercepts dispatch on a signal. All four hooks run in the
// order the middleware was added.
type Middleware[T any] interface {
	// BeforeSend runs once per send. Returning false aborts the send.
	BeforeSend(ctx context.Context, payload T) bool

	// AfterSend runs once per send with every outcome collected, including
	// after an abort (with no outcomes) or a fail-fast stop.
	AfterSend(ctx context.Context, payload T, outcomes []Outcome)

	// BeforeReceiver runs before each eligible receiver. Returning false
	// skips that receiver only.
	BeforeReceiver(ctx context.Context, payload T, receiver ReceiverRef) bool

	// AfterReceiver runs after each executed receiver.
	AfterReceiver(ctx context.Context, payload T, receiver ReceiverRef, outcome Outcome)
}

// NopMiddleware implements every hook as a pass-through. Embed it to
// override only the hooks you need.
type NopMiddleware[T any] struct{}

func (NopMiddleware[T]) BeforeSend(context.Context, T) bool { return true }

func (NopMiddleware[T]) AfterSend(context.Context, T, []Outcome) {}

func (NopMiddleware[T]) BeforeReceiver(context.Context, T, ReceiverRef) bool { return true }

func (NopMiddleware[T]) AfterReceiver(context.Context, T, ReceiverRef, Outcome) {}

// MiddlewareFuncs adapts optional functions to the Middleware interface.
// Nil fields pass through.
type MiddlewareFuncs[T any] struct {
	BeforeSendFunc     func(ctx context.Context, payload T) bool
	AfterSendFunc      func(ctx context.Context, payload T, outcomes []Outcome)
	BeforeReceiverFunc func(ctx context.Context, payload T, receiver ReceiverRef) bool
	AfterReceiverFunc  func(ctx context.Context, payload T, receiver ReceiverRef, outcome Outcome)
}

// BeforeSend implements Middleware.
func (m MiddlewareFuncs[T]) BeforeSend(ctx context.Context, payload T) bool {
	if m.BeforeSendFunc == nil {
		return true
	}
	return m.BeforeSendFunc(ctx, payload)
}

// AfterSend implements Middleware.
func (m MiddlewareFuncs[T]) AfterSend(ctx context.Context, payload T, outcomes []Outcome) {
	if m.AfterSendFunc != nil {
		m.AfterSendFunc(ctx, payload, outcomes)
	}
}

// BeforeReceiver implements Middleware.
func (m MiddlewareFuncs[T]) BeforeReceiver(ctx context.Context, payload T, receiver ReceiverRef) bool {
	if m.BeforeReceiverFunc == nil {
		return true
	}
	return m.BeforeReceiverFunc(ctx, payload, receiver)
}

// AfterReceiver implements Middleware.
func (m MiddlewareFuncs[T]) AfterReceiver(ctx context.Context, payload T, receiver ReceiverRef, outcome Outcome) {
	if m.AfterReceiverFunc != nil {
		m.AfterReceiverFunc(ctx, payload, receiver, outcome)
	}
}
