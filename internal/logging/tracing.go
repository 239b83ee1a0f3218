package logging

import (
	"context"

	"go.opentelemetry.io/otel/trace"
)

// Tracing carries correlation identifiers for log records written with a context.
type Tracing struct {
	RequestID     string
	TransactionID string
	SpanID        string
	SessionID     string
	UserID        string
	UserRole      string
}

type tracingKey struct{}

// WithTracing returns a context whose log records carry t. Record attributes
// with the same names still take precedence.
func WithTracing(ctx context.Context, t Tracing) context.Context {
	return context.WithValue(ctx, tracingKey{}, t)
}

// TracingFromContext merges identifiers set with WithTracing and, for
// fields still empty, the active OpenTelemetry span.
func TracingFromContext(ctx context.Context) Tracing {
	if ctx == nil {
		return Tracing{}
	}
	t, _ := ctx.Value(tracingKey{}).(Tracing)

	if sc := trace.SpanContextFromContext(ctx); sc.IsValid() {
		if t.TransactionID == "" {
			t.TransactionID = sc.TraceID().String()
		}
		if t.SpanID == "" {
			t.SpanID = sc.SpanID().String()
		}
	}
	return t
}
