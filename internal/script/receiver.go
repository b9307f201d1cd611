package script

import (
	"context"
	"fmt"

	"github.com/dshills/signals/internal/signal"
)

// Receiver returns a receiver that calls the Lua function fn with the
// payload. The function fails the receiver by raising an error, returning
// false, or returning a string.
func Receiver[T any](e *Engine, fn string) signal.ReceiverFunc[T] {
	return func(ctx context.Context, payload T) error {
		results, err := e.Call(ctx, fn, payload)
		if err != nil {
			return err
		}
		if len(results) == 0 {
			return nil
		}
		switch r := results[0].(type) {
		case bool:
			if !r {
				return &ScriptError{Function: fn, Err: ErrRejected}
			}
		case string:
			return &ScriptError{Function: fn, Err: fmt.Errorf("%w: %s", ErrRejected, r)}
		}
		return nil
	}
}

// Predicate returns a predicate that calls the Lua function fn with the
// payload and accepts it when the first result is truthy. A failing call
// rejects the payload and is logged.
func Predicate[T any](e *Engine, fn string) signal.Predicate[T] {
	return func(payload T) bool {
		results, err := e.Call(context.Background(), fn, payload)
		if err != nil {
			e.logger.Warn().Err(err).Str("function", fn).Msg("lua predicate failed")
			return false
		}
		if len(results) == 0 {
			return false
		}
		switch r := results[0].(type) {
		case nil:
			return false
		case bool:
			return r
		default:
			return true
		}
	}
}

// Connect checks that the named functions exist and connects a Lua
// receiver to sig, gated by the optional Lua predicate.
func Connect[T any](e *Engine, sig *signal.Signal[T], receiverFn, predicateFn string, opts ...signal.ConnectOption) error {
	if !e.HasFunction(receiverFn) {
		return &ScriptError{Function: receiverFn, Err: ErrFunctionNotFound}
	}
	if predicateFn != "" {
		if !e.HasFunction(predicateFn) {
			return &ScriptError{Function: predicateFn, Err: ErrFunctionNotFound}
		}
		opts = append(opts, signal.When(Predicate[T](e, predicateFn)))
	}
	if err := signal.Receive(sig, Receiver[T](e, receiverFn), opts...); err != nil {
		return fmt.Errorf("connect lua %s: %w", receiverFn, err)
	}
	return nil
}
