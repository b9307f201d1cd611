package deadletter

import (
	"errors"
	"fmt"
)

// Sentinel errors for the deadletter package.
var (
	// ErrQueueFull is returned when a RejectNew queue is at capacity.
	ErrQueueFull = errors.New("dead letter queue is full")

	// ErrRetriesExhausted matches entries that failed every retry.
	ErrRetriesExhausted = errors.New("retries exhausted")

	// ErrInvalidConfig is returned by New for an unusable Config.
	ErrInvalidConfig = errors.New("invalid dead letter config")
)

// DeadLetterError reports an entry that will not be retried again.
type DeadLetterError struct {
	// EntryID is the ID of the abandoned entry.
	EntryID string

	// Signal is the name of the signal.
	Signal string

	// Receiver is the dispatch key or ID of the failing receiver.
	Receiver string

	// Attempts is the number of redeliveries made.
	Attempts int

	// Err is the last failure.
	Err error
}

// Error implements the error interface.
func (e *DeadLetterError) Error() string {
	return fmt.Sprintf("signal %q: receiver %s: gave up after %d retries: %v",
		e.Signal, e.Receiver, e.Attempts, e.Err)
}

// Unwrap returns the last failure.
func (e *DeadLetterError) Unwrap() error {
	return e.Err
}

// Is allows errors.Is to match ErrRetriesExhausted.
func (e *DeadLetterError) Is(target error) bool {
	return target == ErrRetriesExhausted
}
