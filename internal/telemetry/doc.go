// Package telemetry installs tracebuild's OpenTelemetry pipeline.
//
// # Backends
//
// Traces go to one of otlp (default), jaeger, stdout or none. Metrics go to
// one of otlp, prometheus, stdout or none (default). The otlp backends speak
// gRPC or HTTP/protobuf; jaeger is reached through the collector's OTLP/HTTP
// intake. The prometheus backend buffers everything in memory and pushes it
// once to a push gateway during Shutdown, since a single tracebuild
// invocation lives far shorter than any scrape interval.
//
// # Lifecycle
//
//	p := telemetry.Install(ctx, cfg, logger)
//	ctx, span := p.Tracer().Start(ctx, "cmd - make test")
//	// ...
//	span.End()
//	if err := p.Shutdown(ctx); err != nil {
//	    logger.Warn(ctx, "telemetry shutdown failed", zap.Error(err))
//	}
//
// Install never fails. When the configured exporters cannot be built the
// pipeline falls back to none and logs why. Shutdown runs once; the caller
// must not exit the process before it returns, which CheckShutdown asserts.
//
// # Explicit span ids
//
// Step and build reports create spans whose ids were chosen by the CI
// system. ContextWithSpanID and ContextWithIDs pass those ids to the
// pipeline's id generator for the next span started from the context.
//
// # Testing
//
// NewTestPipeline records spans in a tracetest.SpanRecorder and metrics in a
// ManualReader.
package telemetry
