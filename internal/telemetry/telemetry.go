// Package telemetry defines the logging, tracing, and metrics interfaces used
// throughout the orchestration engine. Components depend on these narrow
// interfaces rather than on any concrete backend, so tests can supply no-op
// implementations while production wiring supplies OpenTelemetry- and
// clue-backed ones.
package telemetry

import "context"

type (
	// Logger emits structured log lines. Implementations must be safe for
	// concurrent use: the pipeline engine and resilience decorators log from
	// multiple goroutines when crafters run in parallel.
	Logger interface {
		Debug(ctx context.Context, msg string, keyvals ...any)
		Info(ctx context.Context, msg string, keyvals ...any)
		Warn(ctx context.Context, msg string, keyvals ...any)
		Error(ctx context.Context, msg string, keyvals ...any)
	}

	// Span represents an in-flight trace span. Callers must call End exactly
	// once.
	Span interface {
		// SetAttribute attaches a key-value pair to the span.
		SetAttribute(key string, value any)
		// RecordError attaches an error outcome to the span.
		RecordError(err error)
		// End closes the span.
		End()
	}

	// Tracer starts trace spans for long-running or externally observable
	// operations (provider calls, stage execution, breaker transitions).
	Tracer interface {
		StartSpan(ctx context.Context, name string) (context.Context, Span)
	}

	// Metrics records counters and gauges for operational dashboards.
	Metrics interface {
		// IncrCounter increments a named counter by delta, with optional
		// dimension tags supplied as alternating key/value strings.
		IncrCounter(name string, delta int64, tags ...string)
		// RecordDuration records a duration sample against a named histogram.
		RecordDuration(name string, seconds float64, tags ...string)
		// SetGauge sets a named gauge to an absolute value.
		SetGauge(name string, value float64, tags ...string)
	}
)
