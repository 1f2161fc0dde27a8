package telemetry

import (
	"context"
	"crypto/tls"
	"fmt"

	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/exporters/stdout/stdoutmetric"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.24.0"
	"google.golang.org/grpc/credentials"
)

const (
	defaultTracesPath  = "/v1/traces"
	defaultMetricsPath = "/v1/metrics"
)

// newResource creates a resource describing the service.
func newResource(cfg *Config) *resource.Resource {
	// A standalone resource avoids schema URL conflicts with resource.Default()
	return resource.NewWithAttributes(
		semconv.SchemaURL,
		semconv.ServiceName(cfg.ServiceName),
		semconv.ServiceVersion(cfg.ServiceVersion),
	)
}

// newSpanExporter builds the exporter for the named traces backend.
// The none backend has no exporter and returns nil.
func newSpanExporter(ctx context.Context, cfg *Config, o *options) (sdktrace.SpanExporter, error) {
	switch cfg.TracesExporter {
	case ExporterOTLP:
		return newOTLPSpanExporter(ctx, cfg)
	case ExporterJaeger:
		return newJaegerSpanExporter(ctx, cfg)
	case ExporterStdout:
		exp, err := stdouttrace.New(stdouttrace.WithWriter(o.stdout), stdouttrace.WithPrettyPrint())
		if err != nil {
			return nil, fmt.Errorf("creating stdout trace exporter: %w", err)
		}
		return exp, nil
	case ExporterNone:
		return nil, nil
	default:
		return nil, fmt.Errorf("%w: traces exporter %q (supported: otlp, jaeger, stdout, none)",
			ErrUnsupportedExporter, cfg.TracesExporter)
	}
}

func newOTLPSpanExporter(ctx context.Context, cfg *Config) (sdktrace.SpanExporter, error) {
	ep, err := parseEndpoint(cfg.OTLP.tracesEndpoint(), cfg.OTLP.Insecure)
	if err != nil {
		return nil, fmt.Errorf("otlp traces endpoint: %w", err)
	}
	timeout := cfg.OTLP.Timeout.Duration()
	headers := cfg.OTLP.headers()

	var exporter sdktrace.SpanExporter
	switch cfg.OTLP.protocol() {
	case ProtocolHTTPProtobuf:
		opts := []otlptracehttp.Option{
			otlptracehttp.WithEndpoint(ep.hostPort),
			otlptracehttp.WithURLPath(signalPath(ep.path, cfg.OTLP.TracesEndpoint != "", defaultTracesPath)),
			otlptracehttp.WithTimeout(timeout),
		}
		if headers != nil {
			opts = append(opts, otlptracehttp.WithHeaders(headers))
		}
		if ep.insecure {
			opts = append(opts, otlptracehttp.WithInsecure())
		} else if cfg.OTLP.TLSSkipVerify {
			opts = append(opts, otlptracehttp.WithTLSClientConfig(&tls.Config{
				InsecureSkipVerify: true, //nolint:gosec // User explicitly requested
			}))
		}
		exporter, err = otlptracehttp.New(ctx, opts...)
	default:
		opts := []otlptracegrpc.Option{
			otlptracegrpc.WithEndpoint(ep.hostPort),
			otlptracegrpc.WithTimeout(timeout),
		}
		if headers != nil {
			opts = append(opts, otlptracegrpc.WithHeaders(headers))
		}
		if ep.insecure {
			opts = append(opts, otlptracegrpc.WithInsecure())
		} else if cfg.OTLP.TLSSkipVerify {
			opts = append(opts, otlptracegrpc.WithTLSCredentials(credentials.NewTLS(&tls.Config{
				InsecureSkipVerify: true, //nolint:gosec // User explicitly requested
			})))
		}
		exporter, err = otlptracegrpc.New(ctx, opts...)
	}
	if err != nil {
		return nil, fmt.Errorf("creating otlp trace exporter: %w", err)
	}
	return exporter, nil
}

// newJaegerSpanExporter targets a Jaeger collector's OTLP/HTTP intake.
func newJaegerSpanExporter(ctx context.Context, cfg *Config) (sdktrace.SpanExporter, error) {
	ep, err := parseEndpoint(cfg.Jaeger.Endpoint, cfg.Jaeger.Insecure)
	if err != nil {
		return nil, fmt.Errorf("jaeger endpoint: %w", err)
	}

	opts := []otlptracehttp.Option{
		otlptracehttp.WithEndpoint(ep.hostPort),
		otlptracehttp.WithURLPath(signalPath(ep.path, false, defaultTracesPath)),
		otlptracehttp.WithTimeout(cfg.OTLP.Timeout.Duration()),
	}
	if ep.insecure {
		opts = append(opts, otlptracehttp.WithInsecure())
	}

	exporter, err := otlptracehttp.New(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("creating jaeger trace exporter: %w", err)
	}
	return exporter, nil
}

// metricBackend is the reader feeding the meter provider plus, for the
// push gateway, the pusher that drains it at shutdown.
type metricBackend struct {
	reader sdkmetric.Reader
	pusher *pusher
}

// newMetricBackend builds the reader for the named metrics backend.
// The none backend has no reader.
func newMetricBackend(ctx context.Context, cfg *Config, o *options) (metricBackend, error) {
	switch cfg.MetricsExporter {
	case ExporterOTLP:
		exp, err := newOTLPMetricExporter(ctx, cfg)
		if err != nil {
			return metricBackend{}, err
		}
		return metricBackend{reader: sdkmetric.NewPeriodicReader(exp,
			sdkmetric.WithTimeout(cfg.OTLP.Timeout.Duration()))}, nil
	case ExporterStdout:
		exp, err := stdoutmetric.New(stdoutmetric.WithWriter(o.stdout), stdoutmetric.WithPrettyPrint())
		if err != nil {
			return metricBackend{}, fmt.Errorf("creating stdout metric exporter: %w", err)
		}
		return metricBackend{reader: sdkmetric.NewPeriodicReader(exp)}, nil
	case ExporterPrometheus:
		reader := sdkmetric.NewManualReader()
		return metricBackend{reader: reader, pusher: newPusher(cfg, reader)}, nil
	case ExporterNone:
		return metricBackend{}, nil
	default:
		return metricBackend{}, fmt.Errorf("%w: metrics exporter %q (supported: otlp, prometheus, stdout, none)",
			ErrUnsupportedExporter, cfg.MetricsExporter)
	}
}

func newOTLPMetricExporter(ctx context.Context, cfg *Config) (sdkmetric.Exporter, error) {
	ep, err := parseEndpoint(cfg.OTLP.metricsEndpoint(), cfg.OTLP.Insecure)
	if err != nil {
		return nil, fmt.Errorf("otlp metrics endpoint: %w", err)
	}
	timeout := cfg.OTLP.Timeout.Duration()
	headers := cfg.OTLP.headers()

	// Cumulative temporality for Prometheus-compatible backends
	cumulativeSelector := func(sdkmetric.InstrumentKind) metricdata.Temporality {
		return metricdata.CumulativeTemporality
	}

	var exporter sdkmetric.Exporter
	switch cfg.OTLP.protocol() {
	case ProtocolHTTPProtobuf:
		opts := []otlpmetrichttp.Option{
			otlpmetrichttp.WithEndpoint(ep.hostPort),
			otlpmetrichttp.WithURLPath(signalPath(ep.path, cfg.OTLP.MetricsEndpoint != "", defaultMetricsPath)),
			otlpmetrichttp.WithTimeout(timeout),
			otlpmetrichttp.WithTemporalitySelector(cumulativeSelector),
		}
		if headers != nil {
			opts = append(opts, otlpmetrichttp.WithHeaders(headers))
		}
		if ep.insecure {
			opts = append(opts, otlpmetrichttp.WithInsecure())
		} else if cfg.OTLP.TLSSkipVerify {
			opts = append(opts, otlpmetrichttp.WithTLSClientConfig(&tls.Config{
				InsecureSkipVerify: true, //nolint:gosec // User explicitly requested
			}))
		}
		exporter, err = otlpmetrichttp.New(ctx, opts...)
	default:
		opts := []otlpmetricgrpc.Option{
			otlpmetricgrpc.WithEndpoint(ep.hostPort),
			otlpmetricgrpc.WithTimeout(timeout),
			otlpmetricgrpc.WithTemporalitySelector(cumulativeSelector),
		}
		if headers != nil {
			opts = append(opts, otlpmetricgrpc.WithHeaders(headers))
		}
		if ep.insecure {
			opts = append(opts, otlpmetricgrpc.WithInsecure())
		} else if cfg.OTLP.TLSSkipVerify {
			opts = append(opts, otlpmetricgrpc.WithTLSCredentials(credentials.NewTLS(&tls.Config{
				InsecureSkipVerify: true, //nolint:gosec // User explicitly requested
			})))
		}
		exporter, err = otlpmetricgrpc.New(ctx, opts...)
	}
	if err != nil {
		return nil, fmt.Errorf("creating otlp metric exporter: %w", err)
	}
	return exporter, nil
}

// signalPath picks the HTTP path for one signal. A signal-specific endpoint
// is used verbatim; the shared endpoint gets the signal suffix appended.
func signalPath(path string, signalSpecific bool, suffix string) string {
	if signalSpecific && path != "" {
		return path
	}
	return path + suffix
}
