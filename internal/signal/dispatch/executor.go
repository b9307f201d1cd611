package dispatch

import (
	"context"
	"runtime/debug"
	"time"
)

// Task is a single unit of receiver work.
type Task func(ctx context.Context) error

// Result represents the outcome of a task execution.
type Result struct {
	// Err is the error returned by the task, if any.
	Err error

	// Panicked is true if the task panicked.
	Panicked bool

	// PanicValue is the value passed to panic(), if Panicked is true.
	PanicValue any

	// PanicStack is the stack trace at the point of panic.
	PanicStack []byte

	// Duration is how long the task took to execute.
	Duration time.Duration
}

// IsSuccess returns true if the task returned without error or panic.
func (r Result) IsSuccess() bool {
	return r.Err == nil && !r.Panicked
}

// IsError returns true if the task returned an error (not a panic).
func (r Result) IsError() bool {
	return r.Err != nil && !r.Panicked
}

// PanicHandler is called when a task panics during execution.
type PanicHandler func(panicValue any, stack []byte)

// Executor runs tasks with panic recovery and timing.
type Executor struct {
	panicHandler PanicHandler
}

// ExecutorOption configures an Executor.
type ExecutorOption func(*Executor)

// WithPanicHandler sets the callback invoked after a task panics.
func WithPanicHandler(h PanicHandler) ExecutorOption {
	return func(e *Executor) {
		e.panicHandler = h
	}
}

// NewExecutor creates a new executor with the given options.
func NewExecutor(opts ...ExecutorOption) *Executor {
	e := &Executor{}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Execute runs the task and returns its result.
// The context is passed through unchanged; a cancelled context does not
// prevent the task from running.
func (e *Executor) Execute(ctx context.Context, task Task) (result Result) {
	start := time.Now()

	defer func() {
		result.Duration = time.Since(start)

		if r := recover(); r != nil {
			stack := debug.Stack()

			result.Err = nil
			result.Panicked = true
			result.PanicValue = r
			result.PanicStack = stack

			if e.panicHandler != nil {
				func() {
					// a panicking panic handler must not escape either
					defer func() { _ = recover() }()
					e.panicHandler(r, stack)
				}()
			}
		}
	}()

	result.Err = task(ctx)
	return result
}
