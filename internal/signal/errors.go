package signal

import (
	"errors"
	"fmt"
)

// Sentinel errors for the signal package.
var (
	// ErrNilReceiver is returned when a nil receiver is connected.
	ErrNilReceiver = errors.New("receiver cannot be nil")

	// ErrNilSignal is returned when composing with a nil signal.
	ErrNilSignal = errors.New("signal cannot be nil")

	// ErrInvalidName is returned when a custom signal name is rejected.
	ErrInvalidName = errors.New("invalid signal name")

	// ErrTypeMismatch is returned when a connect option does not match the
	// signal's payload type.
	ErrTypeMismatch = errors.New("payload type mismatch")

	// ErrReceiverPanic matches receiver errors caused by a panic.
	ErrReceiverPanic = errors.New("receiver panicked")

	// ErrAborted matches sends aborted by middleware.
	ErrAborted = errors.New("send aborted by middleware")

	// ErrNoReceivers matches sends that reached no receiver on a signal
	// that requires at least one.
	ErrNoReceivers = errors.New("no receivers")

	// ErrReceiverNotFound is returned by Redeliver when the slot is gone.
	ErrReceiverNotFound = errors.New("receiver not found")
)

// RegistrationError reports a failed connect.
type RegistrationError struct {
	// Signal is the name of the signal.
	Signal string

	// DispatchKey is the dispatch key of the rejected receiver, if any.
	DispatchKey string

	// Err is the underlying error.
	Err error
}

// Error implements the error interface.
func (e *RegistrationError) Error() string {
	if e.DispatchKey != "" {
		return fmt.Sprintf("signal %q: register %q: %v", e.Signal, e.DispatchKey, e.Err)
	}
	return fmt.Sprintf("signal %q: register: %v", e.Signal, e.Err)
}

// Unwrap returns the underlying error.
func (e *RegistrationError) Unwrap() error {
	return e.Err
}

// ReceiverError wraps a failure of one receiver.
type ReceiverError struct {
	// Signal is the name of the signal being sent.
	Signal string

	// Receiver identifies the failing slot.
	Receiver ReceiverRef

	// Err is the error returned by the receiver, or a description of the panic.
	Err error

	// Panicked is true if the receiver panicked.
	Panicked bool

	// PanicValue is the value passed to panic().
	PanicValue any

	// Stack is the stack trace captured at the panic.
	Stack []byte
}

// Error implements the error interface.
func (e *ReceiverError) Error() string {
	return fmt.Sprintf("signal %q: receiver %s: %v", e.Signal, e.Receiver, e.Err)
}

// Unwrap returns the underlying error.
func (e *ReceiverError) Unwrap() error {
	return e.Err
}

// Is allows errors.Is to match a panicking receiver with ErrReceiverPanic.
func (e *ReceiverError) Is(target error) bool {
	return e.Panicked && target == ErrReceiverPanic
}

// DispatchReason explains why a send did not complete normally.
type DispatchReason int

const (
	// ReasonAborted means a BeforeSend hook returned false.
	ReasonAborted DispatchReason = iota

	// ReasonNoReceivers means no receiver ran and the signal requires one.
	ReasonNoReceivers
)

// String returns the reason name.
func (r DispatchReason) String() string {
	switch r {
	case ReasonAborted:
		return "aborted"
	case ReasonNoReceivers:
		return "no receivers"
	default:
		return "unknown"
	}
}

// DispatchError reports a send that did not reach its receivers.
type DispatchError struct {
	// Signal is the name of the signal being sent.
	Signal string

	// Reason is why the send stopped.
	Reason DispatchReason
}

// Error implements the error interface.
func (e *DispatchError) Error() string {
	return fmt.Sprintf("signal %q: dispatch %s", e.Signal, e.Reason)
}

// Is allows errors.Is to match ErrAborted and ErrNoReceivers.
func (e *DispatchError) Is(target error) bool {
	switch e.Reason {
	case ReasonAborted:
		return target == ErrAborted
	case ReasonNoReceivers:
		return target == ErrNoReceivers
	}
	return false
}
