package dispatch

import (
	"context"
	"runtime/debug"
	"sync"
	"sync/atomic"
	"time"
)

// Job is a unit of asynchronous work accepted by a Pool.
type Job func(ctx context.Context)

// Pool executes jobs asynchronously on a fixed set of workers.
// It provides bounded queuing and graceful shutdown.
type Pool struct {
	// Configuration
	queueSize   int
	workerCount int

	// State
	mu      sync.RWMutex // guards queue against concurrent close
	queue   chan poolJob
	running atomic.Bool
	wg      sync.WaitGroup

	panicHandler PanicHandler

	// Stats
	enqueued    atomic.Uint64
	processed   atomic.Uint64
	panicked    atomic.Uint64
	dropped     atomic.Uint64
	totalTimeNs atomic.Int64
}

type poolJob struct {
	ctx context.Context
	job Job
}

// PoolOption configures a Pool.
type PoolOption func(*Pool)

// WithQueueSize sets the job queue size.
func WithQueueSize(size int) PoolOption {
	return func(p *Pool) {
		if size > 0 {
			p.queueSize = size
		}
	}
}

// WithWorkerCount sets the number of worker goroutines.
func WithWorkerCount(count int) PoolOption {
	return func(p *Pool) {
		if count > 0 {
			p.workerCount = count
		}
	}
}

// WithPoolPanicHandler sets the handler for panics escaping a job.
func WithPoolPanicHandler(h PanicHandler) PoolOption {
	return func(p *Pool) {
		p.panicHandler = h
	}
}

// NewPool creates a new worker pool. The pool must be started before use.
func NewPool(opts ...PoolOption) *Pool {
	p := &Pool{
		queueSize:   1024,
		workerCount: 4,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Start starts the workers.
func (p *Pool) Start() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.running.Load() {
		return ErrAlreadyRunning
	}

	p.queue = make(chan poolJob, p.queueSize)
	p.running.Store(true)

	for i := 0; i < p.workerCount; i++ {
		p.wg.Add(1)
		go p.worker(p.queue)
	}

	return nil
}

// Stop stops accepting jobs and waits for queued jobs to finish or for ctx
// to be done, whichever comes first.
func (p *Pool) Stop(ctx context.Context) error {
	p.mu.Lock()
	if !p.running.Load() {
		p.mu.Unlock()
		return ErrNotRunning
	}
	p.running.Store(false)
	close(p.queue)
	p.mu.Unlock()

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Enqueue adds a job to the queue.
// Returns ErrQueueFull if the queue is at capacity and ErrNotRunning if the
// pool has not been started or was stopped.
func (p *Pool) Enqueue(ctx context.Context, job Job) error {
	if job == nil {
		return ErrNilJob
	}

	p.mu.RLock()
	defer p.mu.RUnlock()

	if !p.running.Load() {
		return ErrNotRunning
	}

	select {
	case p.queue <- poolJob{ctx: ctx, job: job}:
		p.enqueued.Add(1)
		return nil
	default:
		p.dropped.Add(1)
		return ErrQueueFull
	}
}

func (p *Pool) worker(queue <-chan poolJob) {
	defer p.wg.Done()

	for j := range queue {
		p.run(j)
	}
}

func (p *Pool) run(j poolJob) {
	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			p.panicked.Add(1)
			if p.panicHandler != nil {
				stack := debug.Stack()
				func() {
					defer func() { _ = recover() }()
					p.panicHandler(r, stack)
				}()
			}
		}
		p.processed.Add(1)
		p.totalTimeNs.Add(time.Since(start).Nanoseconds())
	}()

	j.job(j.ctx)
}

// QueueDepth returns the current number of jobs waiting in the queue.
func (p *Pool) QueueDepth() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if !p.running.Load() {
		return 0
	}
	return len(p.queue)
}

// IsRunning returns true if the pool is running.
func (p *Pool) IsRunning() bool {
	return p.running.Load()
}

// Stats returns pool statistics.
func (p *Pool) Stats() PoolStats {
	processed := p.processed.Load()
	totalNs := p.totalTimeNs.Load()

	var avgNs int64
	if processed > 0 {
		avgNs = totalNs / int64(processed)
	}

	return PoolStats{
		Enqueued:      p.enqueued.Load(),
		Processed:     processed,
		Panicked:      p.panicked.Load(),
		Dropped:       p.dropped.Load(),
		QueueDepth:    p.QueueDepth(),
		Workers:       p.workerCount,
		TotalDuration: time.Duration(totalNs),
		AvgDuration:   time.Duration(avgNs),
	}
}

// ResetStats resets all statistics to zero.
func (p *Pool) ResetStats() {
	p.enqueued.Store(0)
	p.processed.Store(0)
	p.panicked.Store(0)
	p.dropped.Store(0)
	p.totalTimeNs.Store(0)
}

// PoolStats contains statistics for a Pool.
type PoolStats struct {
	// Enqueued is the total number of jobs accepted.
	Enqueued uint64

	// Processed is the number of jobs that have finished.
	Processed uint64

	// Panicked is the number of jobs that panicked.
	Panicked uint64

	// Dropped is the number of jobs rejected because the queue was full.
	Dropped uint64

	// QueueDepth is the current number of jobs waiting.
	QueueDepth int

	// Workers is the configured worker count.
	Workers int

	// TotalDuration is the cumulative time spent running jobs.
	TotalDuration time.Duration

	// AvgDuration is the average job run time.
	AvgDuration time.Duration
}
