package log

import (
	"context"

	"go.opentelemetry.io/otel/trace"
)

type loggerKey struct{}

// SetContextLogger stores lg in ctx. When ctx carries a recording span the
// logger is wrapped so that entries are mirrored as span events.
// A nil logger is stored as a NoopLogger.
func SetContextLogger(ctx context.Context, lg Logger) context.Context {
	if lg == nil {
		lg = NewNoopLogger()
	}
	if span := trace.SpanFromContext(ctx); span.SpanContext().IsValid() {
		lg = NewSpanLogger(lg, NewOtelSpanEventRecorder(span))
	}
	return context.WithValue(ctx, loggerKey{}, lg)
}

// FromContext returns the logger stored in ctx, or a NoopLogger.
func FromContext(ctx context.Context) Logger {
	if lg, ok := ctx.Value(loggerKey{}).(Logger); ok {
		return lg
	}
	return NewNoopLogger()
}
