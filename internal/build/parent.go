package build

import (
	"context"

	"go.opentelemetry.io/otel/trace"
)

// SpanContext derives the remote parent for a span recorded against a build.
// The trace id always comes from the build. The span id comes from step when
// given, otherwise from the build, which makes the build span the parent.
func SpanContext(id ID, step *StepID) trace.SpanContext {
	spanID := id.SpanID()
	if step != nil {
		spanID = step.SpanID()
	}
	return trace.NewSpanContext(trace.SpanContextConfig{
		TraceID:    id.TraceID(),
		SpanID:     spanID,
		TraceFlags: trace.FlagsSampled,
		Remote:     true,
	})
}

// ParentContext returns ctx carrying the span context derived by SpanContext.
// Sampling is always on: being invoked at all means the span should be kept.
func ParentContext(ctx context.Context, id ID, step *StepID) context.Context {
	return trace.ContextWithRemoteSpanContext(ctx, SpanContext(id, step))
}
