package app

import (
	"errors"
	"fmt"
)

// Application errors.
var (
	// ErrAlreadyRunning indicates Start was called twice.
	ErrAlreadyRunning = errors.New("application already running")

	// ErrNotRunning indicates Shutdown was called before Start.
	ErrNotRunning = errors.New("application not running")

	// ErrBindingTypeMismatch indicates a name already bound with another
	// payload type.
	ErrBindingTypeMismatch = errors.New("signal bound with a different payload type")
)

// InitError reports a component that failed to start.
type InitError struct {
	Component string
	Err       error
}

func (e *InitError) Error() string {
	return fmt.Sprintf("init %s: %v", e.Component, e.Err)
}

// Unwrap returns the underlying error.
func (e *InitError) Unwrap() error {
	return e.Err
}
