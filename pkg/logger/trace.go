package logger

import (
	"context"

	"github.com/google/uuid"
)

type traceKey struct{}

// TraceIDHeader carries the request trace id in and out of the HTTP API.
const TraceIDHeader = "X-Trace-ID"

// NewTraceID returns a fresh random trace id.
func NewTraceID() string {
	return uuid.NewString()
}

// WithTraceID stores the trace id on the context.
func WithTraceID(ctx context.Context, traceID string) context.Context {
	if traceID == "" {
		return ctx
	}
	return context.WithValue(ctx, traceKey{}, traceID)
}

// TraceIDFrom returns the trace id stored on the context, or "".
func TraceIDFrom(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if v, ok := ctx.Value(traceKey{}).(string); ok {
		return v
	}
	return ""
}
