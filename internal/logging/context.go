package logging

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// ContextFields extracts correlation data from context.
func ContextFields(ctx context.Context) []zap.Field {
	fields := make([]zap.Field, 0, 4)

	// Trace correlation (from OpenTelemetry)
	if sc := trace.SpanContextFromContext(ctx); sc.IsValid() {
		fields = append(fields,
			zap.String("trace_id", sc.TraceID().String()),
			zap.String("span_id", sc.SpanID().String()),
		)
		if sc.IsSampled() {
			fields = append(fields, zap.Bool("trace_sampled", true))
		}
	}

	if id := InvocationIDFromContext(ctx); id != "" {
		fields = append(fields, zap.String("invocation.id", id))
	}

	return fields
}

type invocationCtxKey struct{}

// WithInvocationID tags ctx with the id of the current tracebuild process.
// Panics if id is not a UUID.
func WithInvocationID(ctx context.Context, id string) context.Context {
	if _, err := uuid.Parse(id); err != nil {
		panic(fmt.Sprintf("logging: invocation id: %v", err))
	}
	return context.WithValue(ctx, invocationCtxKey{}, id)
}

// InvocationIDFromContext extracts the invocation id from context.
func InvocationIDFromContext(ctx context.Context) string {
	if id, ok := ctx.Value(invocationCtxKey{}).(string); ok {
		return id
	}
	return ""
}

type loggerCtxKey struct{}

// WithLogger stores logger in context.
func WithLogger(ctx context.Context, logger *Logger) context.Context {
	return context.WithValue(ctx, loggerCtxKey{}, logger)
}

// FromContext retrieves logger from context.
// Returns a nop logger if not found.
func FromContext(ctx context.Context) *Logger {
	if l, ok := ctx.Value(loggerCtxKey{}).(*Logger); ok {
		return l
	}
	return NewNop()
}
