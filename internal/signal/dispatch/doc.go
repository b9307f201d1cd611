// Package dispatch runs signal receivers.
//
// The Executor runs a single receiver invocation with panic recovery and
// timing. A panicking receiver is reported as a failed Result carrying the
// panic value and stack, so the goroutine that sent the signal keeps going.
//
// The Pool is a bounded worker pool used for asynchronous sends. Jobs are
// queued on a buffered channel and drained by a fixed number of workers.
// When the queue is full Enqueue returns ErrQueueFull instead of blocking,
// which gives callers explicit backpressure.
//
//	pool := dispatch.NewPool(dispatch.WithQueueSize(1024), dispatch.WithWorkerCount(4))
//	if err := pool.Start(); err != nil {
//		return err
//	}
//	defer pool.Stop(ctx)
//
//	if err := pool.Enqueue(ctx, job); errors.Is(err, dispatch.ErrQueueFull) {
//		// shed load
//	}
package dispatch
