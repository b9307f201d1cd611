package middleware

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/dshills/signals/internal/signal"
)

// meterName is the instrumentation scope name for signal metrics.
const meterName = "github.com/dshills/signals"

type metrics[T any] struct {
	signal.NopMiddleware[T]
	name       string
	sends      metric.Int64Counter
	executions metric.Int64Counter
	duration   metric.Float64Histogram
}

// Metrics returns middleware that records OpenTelemetry instruments using
// the global MeterProvider.
//
// Instruments:
//   - signal.sends (Int64Counter): sends, with attributes signal, status
//     ("ok", "error" or "empty")
//   - signal.receiver.executions (Int64Counter): receiver runs, with
//     attributes signal, status ("ok" or "error")
//   - signal.receiver.duration (Float64Histogram): receiver run time in
//     seconds, with the same attributes
func Metrics[T any](name string) signal.Middleware[T] {
	return MetricsWithMeter[T](otel.Meter(meterName), name)
}

// MetricsWithMeter returns metrics middleware using the provided meter.
func MetricsWithMeter[T any](meter metric.Meter, name string) signal.Middleware[T] {
	// the API returns usable no-op instruments alongside any error
	sends, _ := meter.Int64Counter(
		"signal.sends",
		metric.WithDescription("Total number of signal sends"),
		metric.WithUnit("{send}"),
	)
	executions, _ := meter.Int64Counter(
		"signal.receiver.executions",
		metric.WithDescription("Total number of receiver executions"),
		metric.WithUnit("{execution}"),
	)
	duration, _ := meter.Float64Histogram(
		"signal.receiver.duration",
		metric.WithDescription("Duration of receiver execution in seconds"),
		metric.WithUnit("s"),
	)

	return &metrics[T]{
		name:       name,
		sends:      sends,
		executions: executions,
		duration:   duration,
	}
}

func (m *metrics[T]) AfterSend(ctx context.Context, payload T, outcomes []signal.Outcome) {
	status := "ok"
	if len(outcomes) == 0 {
		status = "empty"
	}
	for _, o := range outcomes {
		if o.Err != nil {
			status = "error"
			break
		}
	}
	m.sends.Add(ctx, 1, metric.WithAttributes(
		attribute.String("signal", m.name),
		attribute.String("status", status),
	))
}

func (m *metrics[T]) AfterReceiver(ctx context.Context, payload T, r signal.ReceiverRef, o signal.Outcome) {
	status := "ok"
	if o.Err != nil {
		status = "error"
	}
	attrs := metric.WithAttributes(
		attribute.String("signal", m.name),
		attribute.String("status", status),
	)
	m.executions.Add(ctx, 1, attrs)
	m.duration.Record(ctx, o.Duration.Seconds(), attrs)
}
