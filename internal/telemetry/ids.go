package telemetry

import (
	"context"

	"go.opentelemetry.io/otel/trace"

	"github.com/fyrsmithlabs/tracebuild/internal/build"
)

type fixedIDsKey struct{}

type fixedIDs struct {
	traceID trace.TraceID
	spanID  trace.SpanID
}

// ContextWithSpanID makes a span started from ctx on a pipeline tracer use
// spanID instead of a random one.
func ContextWithSpanID(ctx context.Context, spanID trace.SpanID) context.Context {
	return context.WithValue(ctx, fixedIDsKey{}, fixedIDs{spanID: spanID})
}

// ContextWithIDs is ContextWithSpanID for root spans that also need a
// fixed trace id.
func ContextWithIDs(ctx context.Context, traceID trace.TraceID, spanID trace.SpanID) context.Context {
	return context.WithValue(ctx, fixedIDsKey{}, fixedIDs{traceID: traceID, spanID: spanID})
}

// idGenerator hands out ids requested through the context and random ones
// otherwise.
type idGenerator struct{}

// NewIDs implements sdktrace.IDGenerator.
func (idGenerator) NewIDs(ctx context.Context) (trace.TraceID, trace.SpanID) {
	random := build.GenerateID()
	traceID, spanID := random.TraceID(), random.SpanID()

	if ids, ok := ctx.Value(fixedIDsKey{}).(fixedIDs); ok {
		if ids.traceID.IsValid() {
			traceID = ids.traceID
		}
		if ids.spanID.IsValid() {
			spanID = ids.spanID
		}
	}
	return traceID, spanID
}

// NewSpanID implements sdktrace.IDGenerator.
func (idGenerator) NewSpanID(ctx context.Context, _ trace.TraceID) trace.SpanID {
	if ids, ok := ctx.Value(fixedIDsKey{}).(fixedIDs); ok && ids.spanID.IsValid() {
		return ids.spanID
	}
	return build.GenerateID().SpanID()
}
