// Package telemetry provides the ambient logging and tracing seams used
// throughout this module. Request-scoped metrics (counters, latency
// gauges) are surfaced directly by transport/http via a private Prometheus
// registry rather than through this package; Logger and Tracer here cover
// the cross-cutting concerns every package reaches for regardless of which
// transport is active.
package telemetry

import (
	"context"

	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Logger captures structured logging. The interface is intentionally
// small so callers that only need a couple of log lines (a policy
// registry, a stdio loop) can depend on it without pulling in a concrete
// backend.
type Logger interface {
	Debug(ctx context.Context, msg string, keyvals ...any)
	Info(ctx context.Context, msg string, keyvals ...any)
	Warn(ctx context.Context, msg string, keyvals ...any)
	Error(ctx context.Context, msg string, keyvals ...any)
}

// Tracer abstracts span creation so callers remain agnostic of the
// underlying OpenTelemetry provider. Only the tracing API is used here;
// wiring an SDK exporter is left to the process embedding this module.
type Tracer interface {
	Start(ctx context.Context, name string, opts ...trace.SpanStartOption) (context.Context, Span)
	Span(ctx context.Context) Span
}

// Span represents an in-flight tracing span.
type Span interface {
	End(opts ...trace.SpanEndOption)
	AddEvent(name string, attrs ...any)
	SetStatus(code codes.Code, description string)
	RecordError(err error, opts ...trace.EventOption)
}
