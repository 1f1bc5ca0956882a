package telemetry

import "context"

type (
	// NoopLogger discards every log line. Useful as the zero value wherever a
	// Logger is required but not under test.
	NoopLogger struct{}

	// NoopTracer starts spans that record nothing.
	NoopTracer struct{}

	// NoopMetrics records nothing.
	NoopMetrics struct{}

	noopSpan struct{}
)

// Debug implements Logger.
func (NoopLogger) Debug(context.Context, string, ...any) {}

// Info implements Logger.
func (NoopLogger) Info(context.Context, string, ...any) {}

// Warn implements Logger.
func (NoopLogger) Warn(context.Context, string, ...any) {}

// Error implements Logger.
func (NoopLogger) Error(context.Context, string, ...any) {}

// StartSpan implements Tracer.
func (NoopTracer) StartSpan(ctx context.Context, _ string) (context.Context, Span) {
	return ctx, noopSpan{}
}

func (noopSpan) SetAttribute(string, any) {}
func (noopSpan) RecordError(error)        {}
func (noopSpan) End()                     {}

// IncrCounter implements Metrics.
func (NoopMetrics) IncrCounter(string, int64, ...string) {}

// RecordDuration implements Metrics.
func (NoopMetrics) RecordDuration(string, float64, ...string) {}

// SetGauge implements Metrics.
func (NoopMetrics) SetGauge(string, float64, ...string) {}
