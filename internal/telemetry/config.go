package telemetry

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/fyrsmithlabs/tracebuild/internal/config"
)

// Exporter kinds accepted in TracesExporter and MetricsExporter.
const (
	ExporterOTLP       = "otlp"
	ExporterJaeger     = "jaeger"
	ExporterStdout     = "stdout"
	ExporterPrometheus = "prometheus"
	ExporterNone       = "none"
)

// OTLP wire protocols.
const (
	ProtocolGRPC         = "grpc"
	ProtocolHTTPProtobuf = "http/protobuf"
)

// Config holds telemetry configuration.
type Config struct {
	ServiceName     string           `koanf:"service_name"`
	ServiceVersion  string           `koanf:"service_version"`
	TracesExporter  string           `koanf:"traces_exporter"`
	MetricsExporter string           `koanf:"metrics_exporter"`
	OTLP            OTLPConfig       `koanf:"otlp"`
	Jaeger          JaegerConfig     `koanf:"jaeger"`
	Prometheus      PrometheusConfig `koanf:"prometheus"`
	ShutdownTimeout config.Duration  `koanf:"shutdown_timeout"`
}

// OTLPConfig configures the OTLP exporters.
type OTLPConfig struct {
	Endpoint        string          `koanf:"endpoint"`
	TracesEndpoint  string          `koanf:"traces_endpoint"`
	MetricsEndpoint string          `koanf:"metrics_endpoint"`
	Protocol        string          `koanf:"protocol"`
	Insecure        bool            `koanf:"insecure"` // Only consulted when the endpoint has no scheme
	TLSSkipVerify   bool            `koanf:"tls_skip_verify"`
	Timeout         config.Duration `koanf:"timeout"`
	Headers         config.Secret   `koanf:"headers"` // key=value,key2=value2
}

// JaegerConfig configures the Jaeger collector, reached over OTLP/HTTP.
type JaegerConfig struct {
	Endpoint string `koanf:"endpoint"`
	Insecure bool   `koanf:"insecure"`
}

// PrometheusConfig configures the push gateway.
type PrometheusConfig struct {
	Host string `koanf:"host"`
	Port int    `koanf:"port"`
}

// NewDefaultConfig returns the defaults used when nothing is configured.
func NewDefaultConfig() *Config {
	return &Config{
		ServiceName:     "tracebuild",
		ServiceVersion:  "dev",
		TracesExporter:  ExporterOTLP,
		MetricsExporter: ExporterNone,
		OTLP: OTLPConfig{
			Endpoint: "https://localhost:4317",
			Protocol: ProtocolGRPC,
			Timeout:  config.Duration(5 * time.Second),
		},
		Jaeger: JaegerConfig{
			Endpoint: "localhost:4318",
			Insecure: true,
		},
		Prometheus: PrometheusConfig{
			Host: "0.0.0.0",
			Port: 9464,
		},
		ShutdownTimeout: config.Duration(5 * time.Second),
	}
}

// Validate checks configuration for errors. Exporter kinds are not checked
// here: an unknown kind is an install failure, not a configuration error.
func (c *Config) Validate() error {
	if c.ServiceName == "" {
		return fmt.Errorf("service_name is required")
	}

	switch c.OTLP.Protocol {
	case "", ProtocolGRPC, ProtocolHTTPProtobuf:
	default:
		return fmt.Errorf("otlp.protocol must be %q or %q, got %q", ProtocolGRPC, ProtocolHTTPProtobuf, c.OTLP.Protocol)
	}

	if c.OTLP.Timeout.Duration() <= 0 {
		return fmt.Errorf("otlp.timeout must be positive")
	}

	if c.Prometheus.Port < 1 || c.Prometheus.Port > 65535 {
		return fmt.Errorf("prometheus.port must be between 1 and 65535, got %d", c.Prometheus.Port)
	}

	if c.ShutdownTimeout.Duration() <= 0 {
		return fmt.Errorf("shutdown_timeout must be positive")
	}

	return nil
}

// tracesEndpoint returns the traces-specific endpoint, else the shared one.
func (c *OTLPConfig) tracesEndpoint() string {
	if c.TracesEndpoint != "" {
		return c.TracesEndpoint
	}
	return c.Endpoint
}

// metricsEndpoint returns the metrics-specific endpoint, else the shared one.
func (c *OTLPConfig) metricsEndpoint() string {
	if c.MetricsEndpoint != "" {
		return c.MetricsEndpoint
	}
	return c.Endpoint
}

// protocol returns the configured protocol, defaulting to gRPC.
func (c *OTLPConfig) protocol() string {
	if c.Protocol == "" {
		return ProtocolGRPC
	}
	return c.Protocol
}

// headers parses the "k=v,k2=v2" header list. Malformed entries are skipped.
func (c *OTLPConfig) headers() map[string]string {
	if !c.Headers.IsSet() {
		return nil
	}
	out := make(map[string]string)
	for _, pair := range strings.Split(c.Headers.Value(), ",") {
		key, value, ok := strings.Cut(pair, "=")
		key = strings.TrimSpace(key)
		if !ok || key == "" {
			continue
		}
		if unescaped, err := url.QueryUnescape(strings.TrimSpace(value)); err == nil {
			value = unescaped
		}
		out[key] = value
	}
	return out
}

// endpoint is a parsed exporter target.
type endpoint struct {
	hostPort string
	path     string
	insecure bool
}

// parseEndpoint splits raw into host:port and path. An http:// scheme
// forces insecure, https:// forces TLS, and a bare host:port keeps
// insecureDefault.
func parseEndpoint(raw string, insecureDefault bool) (endpoint, error) {
	if !strings.Contains(raw, "://") {
		if raw == "" {
			return endpoint{}, fmt.Errorf("endpoint is empty")
		}
		return endpoint{hostPort: raw, insecure: insecureDefault}, nil
	}

	u, err := url.Parse(raw)
	if err != nil {
		return endpoint{}, fmt.Errorf("invalid endpoint %q: %w", raw, err)
	}
	if u.Host == "" {
		return endpoint{}, fmt.Errorf("invalid endpoint %q: missing host", raw)
	}

	ep := endpoint{hostPort: u.Host, path: strings.TrimSuffix(u.Path, "/")}
	switch u.Scheme {
	case "http":
		ep.insecure = true
	case "https":
		ep.insecure = false
	default:
		return endpoint{}, fmt.Errorf("invalid endpoint %q: unsupported scheme %q", raw, u.Scheme)
	}
	return ep, nil
}
