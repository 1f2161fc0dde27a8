package orchestrator

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/tracebuild/internal/build"
	"github.com/fyrsmithlabs/tracebuild/internal/logging"
	"github.com/fyrsmithlabs/tracebuild/internal/supervisor"
	"github.com/fyrsmithlabs/tracebuild/internal/telemetry"
)

// Telemetry is the part of a telemetry pipeline the orchestrator uses.
type Telemetry interface {
	Tracer() trace.Tracer
	Meter() metric.Meter
}

// Orchestrator records tracebuild operations as spans and metrics.
type Orchestrator struct {
	tracer     trace.Tracer
	meter      metric.Meter
	logger     *logging.Logger
	supervisor *supervisor.Supervisor
	stderr     io.Writer
	now        func() time.Time
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithLogger sets the logger.
func WithLogger(l *logging.Logger) Option {
	return func(o *Orchestrator) { o.logger = l }
}

// WithSupervisor overrides the child process supervisor.
func WithSupervisor(s *supervisor.Supervisor) Option {
	return func(o *Orchestrator) { o.supervisor = s }
}

// WithStderr redirects user-facing error output (for testing).
func WithStderr(w io.Writer) Option {
	return func(o *Orchestrator) { o.stderr = w }
}

// WithClock overrides the wall clock (for testing).
func WithClock(now func() time.Time) Option {
	return func(o *Orchestrator) { o.now = now }
}

// New creates an Orchestrator recording into tel.
func New(tel Telemetry, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		tracer: tel.Tracer(),
		meter:  tel.Meter(),
		logger: logging.NewNop(),
		stderr: os.Stderr,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(o)
	}
	if o.supervisor == nil {
		o.supervisor = supervisor.New(supervisor.WithLogger(o.logger))
	}
	return o
}

// RunCommand runs req.Command under a client span and returns the exit code
// tracebuild should report. Failures to run the child are printed to stderr
// and recorded on the span; the span then carries no exit code.
func (o *Orchestrator) RunCommand(ctx context.Context, req CommandRequest) int {
	ctx = build.ParentContext(ctx, req.Build, req.Step)
	ctx, span := o.tracer.Start(ctx, req.spanName(),
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String(AttrCmdCommand, req.Command),
			attribute.StringSlice(AttrCmdArguments, req.Args),
		),
	)
	defer span.End()

	o.logger.Debug(ctx, "running command",
		zap.String("command", req.Command),
		logging.Args("args", req.Args),
	)

	start := o.now()
	res, err := o.supervisor.Run(ctx, req.Command, req.Args)
	exitCode := supervisor.ExitCode(res, err)
	elapsed := o.since(start)

	if err != nil {
		fmt.Fprintf(o.stderr, "error: %v\n", err)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	} else {
		span.SetAttributes(attribute.Int(AttrCmdExitCode, exitCode))
		if exitCode != 0 {
			span.SetStatus(codes.Error, fmt.Sprintf("exit code %d", exitCode))
		} else {
			span.SetStatus(codes.Ok, "")
		}
	}

	o.logger.Info(ctx, "command finished",
		zap.String("command", req.Command),
		zap.Int("exit_code", exitCode),
		zap.Duration("duration", elapsed),
		zap.Error(err),
	)

	o.recordDuration(ctx, MetricCmdDuration, "Duration of commands run by tracebuild", elapsed,
		attribute.String(LabelName, req.metricName()),
		attribute.Int(LabelExitCode, exitCode),
	)
	return exitCode
}

// ReportStep records a step that started at req.Start and ends now.
func (o *Orchestrator) ReportStep(ctx context.Context, req StepRequest) {
	ctx = build.ParentContext(ctx, req.Build, req.Parent)
	ctx = telemetry.ContextWithSpanID(ctx, req.ID.SpanID())

	end := o.now()
	start := startTime(req.Start, end)

	ctx, span := o.tracer.Start(ctx, req.spanName(),
		trace.WithSpanKind(trace.SpanKindInternal),
		trace.WithTimestamp(start),
	)
	if req.Status != build.StatusUnset {
		span.SetStatus(req.Status.Code(), "")
	}
	span.End(trace.WithTimestamp(end))

	o.logger.Info(ctx, "step reported",
		zap.Stringer("step_id", req.ID),
		zap.String("name", req.Name),
		zap.Stringer("status", req.Status),
	)

	var labels []attribute.KeyValue
	if req.Name != "" {
		labels = append(labels, attribute.String(LabelName, req.Name))
	}
	if req.Status != build.StatusUnset {
		labels = append(labels, attribute.String(LabelStatus, req.Status.String()))
	}
	o.recordDuration(ctx, MetricStepDuration, "Duration of reported steps", durationBetween(start, end), labels...)
}

// ReportBuild records the root span of a build that started at req.Start
// and ends now. Its trace and span ids are both taken from req.ID.
func (o *Orchestrator) ReportBuild(ctx context.Context, req BuildRequest) {
	ctx = telemetry.ContextWithIDs(ctx, req.ID.TraceID(), req.ID.SpanID())

	var attrs []attribute.KeyValue
	if req.Branch != "" {
		attrs = append(attrs, attribute.String(AttrBuildBranch, req.Branch))
	}
	if req.Commit != "" {
		attrs = append(attrs, attribute.String(AttrBuildCommit, req.Commit))
	}

	end := o.now()
	start := startTime(req.Start, end)

	ctx, span := o.tracer.Start(ctx, req.spanName(),
		trace.WithNewRoot(),
		trace.WithSpanKind(trace.SpanKindInternal),
		trace.WithTimestamp(start),
		trace.WithAttributes(attrs...),
	)
	if req.Status != build.StatusUnset {
		span.SetStatus(req.Status.Code(), "")
	}
	span.End(trace.WithTimestamp(end))

	o.logger.Info(ctx, "build reported",
		zap.Stringer("build_id", req.ID),
		zap.String("name", req.Name),
		zap.Stringer("status", req.Status),
	)

	var labels []attribute.KeyValue
	if req.Name != "" {
		labels = append(labels, attribute.String(LabelName, req.Name))
	}
	if req.Branch != "" {
		labels = append(labels, attribute.String(LabelBranch, req.Branch))
	}
	if req.Status != build.StatusUnset {
		labels = append(labels, attribute.String(LabelStatus, req.Status.String()))
	}
	o.recordDuration(ctx, MetricBuildDuration, "Duration of reported builds", durationBetween(start, end), labels...)
}

// recordDuration records d in seconds on the named histogram. Instrument
// errors are logged, never returned.
func (o *Orchestrator) recordDuration(ctx context.Context, name, description string, d time.Duration, labels ...attribute.KeyValue) {
	h, err := o.meter.Float64Histogram(name,
		metric.WithUnit("s"),
		metric.WithDescription(description),
		metric.WithExplicitBucketBoundaries(DurationBuckets...),
	)
	if err != nil {
		o.logger.Warn(ctx, "failed to record metric", zap.String("metric", name), zap.Error(err))
		return
	}
	h.Record(ctx, d.Seconds(), metric.WithAttributes(labels...))
}

func (o *Orchestrator) since(start time.Time) time.Duration {
	return durationBetween(start, o.now())
}

// startTime is ts, or end when no start was reported.
func startTime(ts build.Timestamp, end time.Time) time.Time {
	if ts.IsZero() {
		return end
	}
	return ts.Time()
}

// durationBetween is end-start, or zero when the clock went backwards or
// the reported start lies in the future.
func durationBetween(start, end time.Time) time.Duration {
	if d := end.Sub(start); d > 0 {
		return d
	}
	return 0
}
