// Package middleware provides signal middleware for logging, tracing and
// metrics.
//
//	orders.Use(
//		middleware.Logging[Order](logger, orders.Name()),
//		middleware.Tracing[Order](orders.Name()),
//		middleware.Metrics[Order](orders.Name()),
//	)
//
// Tracing and Metrics use the global OpenTelemetry providers. When none are
// configured they fall back to no-op instruments. The WithTracer and
// WithMeter variants take explicit providers, mostly for tests.
package middleware
