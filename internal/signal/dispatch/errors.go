package dispatch

import "errors"

// Sentinel errors for the dispatch package.
var (
	// ErrAlreadyRunning is returned when Start is called on a running pool.
	ErrAlreadyRunning = errors.New("pool is already running")

	// ErrNotRunning is returned when operations are attempted on a stopped pool.
	ErrNotRunning = errors.New("pool is not running")

	// ErrQueueFull is returned when the pool queue is at capacity.
	ErrQueueFull = errors.New("dispatch queue is full")

	// ErrNilJob is returned when a nil job is enqueued.
	ErrNilJob = errors.New("job cannot be nil")
)
