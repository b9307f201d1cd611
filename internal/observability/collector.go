// Package observability exports signal metrics to Prometheus.
package observability

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/dshills/signals/internal/signal"
	"github.com/dshills/signals/internal/signal/dispatch"
)

const namespace = "signals"

var signalLabels = []string{"signal", "payload_type"}

var (
	sendsDesc = prometheus.NewDesc(
		prometheus.BuildFQName(namespace, "", "sends_total"),
		"Total number of sends, including aborted ones",
		signalLabels, nil,
	)
	abortedDesc = prometheus.NewDesc(
		prometheus.BuildFQName(namespace, "", "aborted_sends_total"),
		"Total number of sends aborted by middleware",
		signalLabels, nil,
	)
	executionsDesc = prometheus.NewDesc(
		prometheus.BuildFQName(namespace, "receiver", "executions_total"),
		"Total number of receiver executions",
		signalLabels, nil,
	)
	failuresDesc = prometheus.NewDesc(
		prometheus.BuildFQName(namespace, "receiver", "failures_total"),
		"Total number of receiver executions that errored or panicked",
		signalLabels, nil,
	)
	panicsDesc = prometheus.NewDesc(
		prometheus.BuildFQName(namespace, "receiver", "panics_total"),
		"Total number of receiver panics",
		signalLabels, nil,
	)
	execSecondsDesc = prometheus.NewDesc(
		prometheus.BuildFQName(namespace, "receiver", "execution_seconds_total"),
		"Cumulative receiver execution time in seconds",
		signalLabels, nil,
	)
	maxExecDesc = prometheus.NewDesc(
		prometheus.BuildFQName(namespace, "receiver", "max_execution_seconds"),
		"Slowest receiver execution in seconds",
		signalLabels, nil,
	)
	receiversDesc = prometheus.NewDesc(
		prometheus.BuildFQName(namespace, "", "receivers"),
		"Number of connected receivers",
		signalLabels, nil,
	)
	successDesc = prometheus.NewDesc(
		prometheus.BuildFQName(namespace, "", "success_rate_percent"),
		"Percentage of receiver executions that succeeded",
		signalLabels, nil,
	)

	queueDepthDesc = prometheus.NewDesc(
		prometheus.BuildFQName(namespace, "async", "queue_depth"),
		"Asynchronous sends waiting for a worker",
		nil, nil,
	)
	jobsDesc = prometheus.NewDesc(
		prometheus.BuildFQName(namespace, "async", "jobs_total"),
		"Asynchronous sends by outcome",
		[]string{"outcome"}, nil,
	)
	workersDesc = prometheus.NewDesc(
		prometheus.BuildFQName(namespace, "async", "workers"),
		"Configured asynchronous workers",
		nil, nil,
	)
)

// Collector exports the metrics of every signal in a registry. Values are
// read at scrape time, so signals created later are picked up.
type Collector struct {
	registry *signal.Registry
	pool     *dispatch.Pool
}

// CollectorOption configures a Collector.
type CollectorOption func(*Collector)

// WithPool also exports the async worker pool statistics.
func WithPool(p *dispatch.Pool) CollectorOption {
	return func(c *Collector) {
		c.pool = p
	}
}

// NewCollector creates a collector for r.
func NewCollector(r *signal.Registry, opts ...CollectorOption) *Collector {
	c := &Collector{registry: r}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Describe implements prometheus.Collector.
func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	ch <- sendsDesc
	ch <- abortedDesc
	ch <- executionsDesc
	ch <- failuresDesc
	ch <- panicsDesc
	ch <- execSecondsDesc
	ch <- maxExecDesc
	ch <- receiversDesc
	ch <- successDesc
	if c.pool != nil {
		ch <- queueDepthDesc
		ch <- jobsDesc
		ch <- workersDesc
	}
}

// Collect implements prometheus.Collector.
func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	for _, s := range c.registry.Stats() {
		m := s.Metrics
		labels := []string{s.Name, s.PayloadType}
		counter := func(d *prometheus.Desc, v float64) {
			ch <- prometheus.MustNewConstMetric(d, prometheus.CounterValue, v, labels...)
		}
		gauge := func(d *prometheus.Desc, v float64) {
			ch <- prometheus.MustNewConstMetric(d, prometheus.GaugeValue, v, labels...)
		}

		counter(sendsDesc, float64(m.SendCount))
		counter(abortedDesc, float64(m.AbortedSends))
		counter(executionsDesc, float64(m.ReceiverExecutions))
		counter(failuresDesc, float64(m.FailedExecutions))
		counter(panicsDesc, float64(m.Panics))
		counter(execSecondsDesc, m.TotalExecutionTime.Seconds())
		gauge(maxExecDesc, m.MaxExecutionTime.Seconds())
		gauge(receiversDesc, float64(s.Receivers))
		gauge(successDesc, s.SuccessRate)
	}

	if c.pool != nil {
		ps := c.pool.Stats()
		ch <- prometheus.MustNewConstMetric(queueDepthDesc, prometheus.GaugeValue, float64(ps.QueueDepth))
		ch <- prometheus.MustNewConstMetric(workersDesc, prometheus.GaugeValue, float64(ps.Workers))
		ch <- prometheus.MustNewConstMetric(jobsDesc, prometheus.CounterValue, float64(ps.Processed), "processed")
		ch <- prometheus.MustNewConstMetric(jobsDesc, prometheus.CounterValue, float64(ps.Panicked), "panicked")
		ch <- prometheus.MustNewConstMetric(jobsDesc, prometheus.CounterValue, float64(ps.Dropped), "dropped")
	}
}
