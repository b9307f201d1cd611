package signal

import (
	"math"
	"sync/atomic"
	"time"
)

// Collector accumulates dispatch metrics with atomic counters only.
type Collector struct {
	sends      atomic.Uint64
	aborted    atomic.Uint64
	executions atomic.Uint64
	failures   atomic.Uint64
	panics     atomic.Uint64
	totalNs    atomic.Int64
	minNs      atomic.Int64
	maxNs      atomic.Int64
}

// NewCollector creates an empty collector.
func NewCollector() *Collector {
	c := &Collector{}
	c.minNs.Store(math.MaxInt64)
	return c
}

// RecordSend counts one send call.
func (c *Collector) RecordSend() {
	c.sends.Add(1)
}

// RecordAbort counts one send aborted by middleware.
func (c *Collector) RecordAbort() {
	c.aborted.Add(1)
}

// RecordExecution counts one receiver execution.
func (c *Collector) RecordExecution(d time.Duration, failed, panicked bool) {
	c.executions.Add(1)
	if failed {
		c.failures.Add(1)
	}
	if panicked {
		c.panics.Add(1)
	}

	ns := d.Nanoseconds()
	c.totalNs.Add(ns)

	for {
		cur := c.minNs.Load()
		if ns >= cur || c.minNs.CompareAndSwap(cur, ns) {
			break
		}
	}
	for {
		cur := c.maxNs.Load()
		if ns <= cur || c.maxNs.CompareAndSwap(cur, ns) {
			break
		}
	}
}

// Reset zeroes every counter. Failures and panics are cleared before
// executions so a concurrent Snapshot never sees more failures than runs.
func (c *Collector) Reset() {
	c.panics.Store(0)
	c.failures.Store(0)
	c.sends.Store(0)
	c.aborted.Store(0)
	c.executions.Store(0)
	c.totalNs.Store(0)
	c.minNs.Store(math.MaxInt64)
	c.maxNs.Store(0)
}

// Snapshot returns the current values.
func (c *Collector) Snapshot() MetricsSnapshot {
	// RecordExecution bumps executions before failures, so loading in the
	// reverse order keeps failures <= executions. A Reset between the loads
	// can still break that, hence the clamp.
	panics := c.panics.Load()
	failures := c.failures.Load()
	executions := c.executions.Load()
	failures = min(failures, executions)
	panics = min(panics, failures)

	minNs := c.minNs.Load()
	if minNs == math.MaxInt64 {
		minNs = 0
	}
	return MetricsSnapshot{
		SendCount:          c.sends.Load(),
		AbortedSends:       c.aborted.Load(),
		ReceiverExecutions: executions,
		FailedExecutions:   failures,
		Panics:             panics,
		TotalExecutionTime: time.Duration(c.totalNs.Load()),
		MinExecutionTime:   time.Duration(minNs),
		MaxExecutionTime:   time.Duration(c.maxNs.Load()),
	}
}

// MetricsSnapshot is a point-in-time copy of a signal's metrics.
type MetricsSnapshot struct {
	// SendCount is the number of send calls, including aborted ones.
	SendCount uint64 `json:"send_count"`

	// AbortedSends is the number of sends stopped by BeforeSend.
	AbortedSends uint64 `json:"aborted_sends"`

	// ReceiverExecutions is the number of receiver runs.
	ReceiverExecutions uint64 `json:"receiver_executions"`

	// FailedExecutions is the number of receiver runs that errored or panicked.
	FailedExecutions uint64 `json:"failed_executions"`

	// Panics is the number of receiver runs that panicked.
	Panics uint64 `json:"panics"`

	// TotalExecutionTime is the summed receiver run time.
	TotalExecutionTime time.Duration `json:"total_execution_time"`

	// MinExecutionTime is the fastest receiver run, zero if none ran.
	MinExecutionTime time.Duration `json:"min_execution_time"`

	// MaxExecutionTime is the slowest receiver run.
	MaxExecutionTime time.Duration `json:"max_execution_time"`
}

// SuccessfulExecutions returns executions minus failures, never less than 0.
func (m MetricsSnapshot) SuccessfulExecutions() uint64 {
	if m.FailedExecutions >= m.ReceiverExecutions {
		return 0
	}
	return m.ReceiverExecutions - m.FailedExecutions
}

// AvgExecutionTime returns the mean receiver run time.
func (m MetricsSnapshot) AvgExecutionTime() time.Duration {
	if m.ReceiverExecutions == 0 {
		return 0
	}
	return m.TotalExecutionTime / time.Duration(m.ReceiverExecutions)
}

// SuccessRate returns the percentage of successful executions.
// It is 100 when nothing has run.
func (m MetricsSnapshot) SuccessRate() float64 {
	if m.ReceiverExecutions == 0 {
		return 100
	}
	return float64(m.SuccessfulExecutions()) / float64(m.ReceiverExecutions) * 100
}
