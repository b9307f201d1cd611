package script

import (
	"errors"
	"fmt"
)

// Errors for script operations.
var (
	// ErrClosed is returned when operating on a closed engine.
	ErrClosed = errors.New("script engine is closed")

	// ErrFunctionNotFound is returned when a global function is missing.
	ErrFunctionNotFound = errors.New("lua function not found")

	// ErrRejected is wrapped by errors from receivers that returned false
	// or an error message.
	ErrRejected = errors.New("lua receiver rejected payload")
)

// ScriptError reports a failed Lua call.
type ScriptError struct {
	// Function is the global function name.
	Function string
	// Err is the underlying error.
	Err error
}

// Error implements the error interface.
func (e *ScriptError) Error() string {
	return fmt.Sprintf("lua %s: %v", e.Function, e.Err)
}

// Unwrap returns the underlying error.
func (e *ScriptError) Unwrap() error {
	return e.Err
}
