package telemetry

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"
	"sync/atomic"

	"go.opentelemetry.io/otel/metric"
	metricnoop "go.opentelemetry.io/otel/metric/noop"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
	tracenoop "go.opentelemetry.io/otel/trace/noop"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/fyrsmithlabs/tracebuild/internal/logging"
)

const instrumentationName = "github.com/fyrsmithlabs/tracebuild"

var (
	// ErrUnsupportedExporter is returned for an exporter kind tracebuild
	// does not know.
	ErrUnsupportedExporter = errors.New("unsupported exporter")

	// ErrNotShutdown is returned by CheckShutdown until Shutdown completed.
	ErrNotShutdown = errors.New("telemetry pipeline has not been shut down")
)

// State is a Pipeline's lifecycle position.
type State int32

const (
	StateUninitialized State = iota
	StateInstalling
	StateInstalled
	StateShuttingDown
	StateShutdown
)

func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateInstalling:
		return "installing"
	case StateInstalled:
		return "installed"
	case StateShuttingDown:
		return "shutting_down"
	case StateShutdown:
		return "shutdown"
	default:
		return fmt.Sprintf("state(%d)", int32(s))
	}
}

// Option configures Install.
type Option func(*options)

type options struct {
	stdout io.Writer
}

// WithStdoutWriter redirects the stdout exporters (for testing).
func WithStdoutWriter(w io.Writer) Option {
	return func(o *options) { o.stdout = w }
}

// Pipeline owns the tracer and meter for one tracebuild invocation and
// everything needed to flush them.
//
// Telemetry failures never surface to the caller as install errors: a
// pipeline that cannot be built is replaced by the none exporters.
type Pipeline struct {
	cfg    *Config
	logger *logging.Logger

	tracerProvider trace.TracerProvider
	meterProvider  metric.MeterProvider
	sdkTracer      *sdktrace.TracerProvider // nil for none
	sdkMeter       *sdkmetric.MeterProvider // nil for none
	pusher         *pusher

	tracesExporter  string
	metricsExporter string

	state        atomic.Int32
	shutdownOnce sync.Once
	shutdownErr  error
}

// Install builds the exporters named in cfg. If that fails for any reason
// the failure is logged and the none exporters are installed instead.
func Install(ctx context.Context, cfg *Config, logger *logging.Logger, opts ...Option) *Pipeline {
	o := &options{stdout: os.Stdout}
	for _, opt := range opts {
		opt(o)
	}

	p := newPipeline(cfg, logger)
	if err := p.installChosen(ctx, o); err != nil {
		p.fallBack(ctx, err)
	}
	return p.installed(ctx)
}

// Fallback installs the none exporters for a configuration that could not
// be read at all. cause is logged the same way Install logs a failed
// attempt. cfg only supplies the service identity and shutdown timeout.
func Fallback(ctx context.Context, cfg *Config, logger *logging.Logger, cause error) *Pipeline {
	p := newPipeline(cfg, logger)
	p.fallBack(ctx, cause)
	return p.installed(ctx)
}

func newPipeline(cfg *Config, logger *logging.Logger) *Pipeline {
	if cfg == nil {
		cfg = NewDefaultConfig()
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	p := &Pipeline{cfg: cfg, logger: logger}
	p.state.Store(int32(StateInstalling))
	return p
}

func (p *Pipeline) fallBack(ctx context.Context, cause error) {
	p.logger.Warn(ctx, "telemetry pipeline install failed, falling back",
		zap.String("event", "PipelineInstallFailed"),
		zap.String("traces_exporter", p.cfg.TracesExporter),
		zap.String("metrics_exporter", p.cfg.MetricsExporter),
		zap.Error(cause),
	)
	p.installFallback(fallbackTraces(p.cfg.TracesExporter, cause), fallbackMetrics(p.cfg.MetricsExporter, cause))
}

func (p *Pipeline) installed(ctx context.Context) *Pipeline {
	p.state.Store(int32(StateInstalled))
	p.logger.Debug(ctx, "telemetry pipeline installed",
		zap.String("traces_exporter", p.tracesExporter),
		zap.String("metrics_exporter", p.metricsExporter),
	)
	return p
}

func (p *Pipeline) installChosen(ctx context.Context, o *options) error {
	if err := p.cfg.Validate(); err != nil {
		return fmt.Errorf("invalid telemetry config: %w", err)
	}

	spanExporter, err := newSpanExporter(ctx, p.cfg, o)
	if err != nil {
		return err
	}
	metrics, err := newMetricBackend(ctx, p.cfg, o)
	if err != nil {
		if spanExporter != nil {
			_ = spanExporter.Shutdown(ctx)
		}
		return err
	}

	res := newResource(p.cfg)

	if spanExporter != nil {
		p.sdkTracer = newSDKTracerProvider(res, sdktrace.WithBatcher(spanExporter,
			sdktrace.WithExportTimeout(p.cfg.OTLP.Timeout.Duration())))
		p.tracerProvider = p.sdkTracer
	} else {
		p.tracerProvider = tracenoop.NewTracerProvider()
	}

	if metrics.reader != nil {
		p.sdkMeter = sdkmetric.NewMeterProvider(
			sdkmetric.WithResource(res),
			sdkmetric.WithReader(metrics.reader),
		)
		p.meterProvider = p.sdkMeter
		p.pusher = metrics.pusher
	} else {
		p.meterProvider = metricnoop.NewMeterProvider()
	}

	p.tracesExporter = p.cfg.TracesExporter
	p.metricsExporter = p.cfg.MetricsExporter
	return nil
}

// newSDKTracerProvider applies the sampler and id generator every pipeline
// tracer uses.
func newSDKTracerProvider(res *resource.Resource, opts ...sdktrace.TracerProviderOption) *sdktrace.TracerProvider {
	opts = append(opts,
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sdktrace.ParentBased(sdktrace.AlwaysSample())),
		sdktrace.WithIDGenerator(idGenerator{}),
	)
	return sdktrace.NewTracerProvider(opts...)
}

func (p *Pipeline) installFallback(traces, metrics string) {
	p.sdkTracer = nil
	p.sdkMeter = nil
	p.pusher = nil
	p.tracerProvider = tracenoop.NewTracerProvider()
	p.meterProvider = metricnoop.NewMeterProvider()
	p.tracesExporter = traces
	p.metricsExporter = metrics
}

// fallbackTraces picks the traces backend used when kind failed to install.
func fallbackTraces(_ string, _ error) string { return ExporterNone }

// fallbackMetrics picks the metrics backend used when kind failed to install.
func fallbackMetrics(_ string, _ error) string { return ExporterNone }

// Tracer returns the invocation's tracer.
func (p *Pipeline) Tracer() trace.Tracer {
	return p.tracerProvider.Tracer(instrumentationName, trace.WithInstrumentationVersion(p.cfg.ServiceVersion))
}

// Meter returns the invocation's meter.
func (p *Pipeline) Meter() metric.Meter {
	return p.meterProvider.Meter(instrumentationName, metric.WithInstrumentationVersion(p.cfg.ServiceVersion))
}

// TracesExporter returns the traces backend actually installed.
func (p *Pipeline) TracesExporter() string { return p.tracesExporter }

// MetricsExporter returns the metrics backend actually installed.
func (p *Pipeline) MetricsExporter() string { return p.metricsExporter }

// State returns the current lifecycle state.
func (p *Pipeline) State() State { return State(p.state.Load()) }

// Shutdown pushes buffered metrics, then flushes and stops the tracer and
// meter providers concurrently. Only the first call does any work; later
// calls return its result. Errors are for logging: telemetry never changes
// tracebuild's exit code.
func (p *Pipeline) Shutdown(ctx context.Context) error {
	p.shutdownOnce.Do(func() {
		p.state.Store(int32(StateShuttingDown))
		p.shutdownErr = p.shutdown(ctx)
		p.state.Store(int32(StateShutdown))
	})
	return p.shutdownErr
}

func (p *Pipeline) shutdown(ctx context.Context) error {
	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.cfg.ShutdownTimeout.Duration())
		defer cancel()
	}

	var pushErr, traceErr, metricErr error

	// The manual reader cannot be collected once its provider is shut down.
	if p.pusher != nil {
		if err := p.pusher.push(ctx); err != nil {
			p.logger.Warn(ctx, "failed to push metrics",
				zap.String("event", "ExportPushFailed"),
				zap.Error(err),
			)
			pushErr = err
		}
	}

	var g errgroup.Group
	if p.sdkTracer != nil {
		g.Go(func() error {
			if err := p.sdkTracer.Shutdown(ctx); err != nil {
				traceErr = fmt.Errorf("trace provider shutdown: %w", err)
			}
			return nil
		})
	}
	if p.sdkMeter != nil {
		g.Go(func() error {
			if err := p.sdkMeter.Shutdown(ctx); err != nil {
				metricErr = fmt.Errorf("meter provider shutdown: %w", err)
			}
			return nil
		})
	}
	_ = g.Wait()

	return errors.Join(pushErr, traceErr, metricErr)
}

// CheckShutdown returns ErrNotShutdown unless Shutdown has completed.
func (p *Pipeline) CheckShutdown() error {
	if p.State() != StateShutdown {
		return fmt.Errorf("%w (state %s)", ErrNotShutdown, p.State())
	}
	return nil
}
