// Package config loads tracebuild's layered configuration.
//
// Values are resolved with the following precedence (highest first):
//  1. Environment variables listed in EnvKeys
//  2. The YAML file passed with --config
//  3. The defaults already present in the target struct
//
// Each invocation reads the environment once into a fresh koanf instance.
// Nothing is cached at package level.
package config

import "strings"

// EnvKeys maps the environment variables tracebuild understands onto
// configuration keys. Anything else in the environment is ignored.
var EnvKeys = map[string]string{
	"OTEL_SERVICE_NAME":                   "telemetry.service_name",
	"OTEL_TRACES_EXPORTER":                "telemetry.traces_exporter",
	"OTEL_METRICS_EXPORTER":               "telemetry.metrics_exporter",
	"OTEL_EXPORTER_OTLP_ENDPOINT":         "telemetry.otlp.endpoint",
	"OTEL_EXPORTER_OTLP_TRACES_ENDPOINT":  "telemetry.otlp.traces_endpoint",
	"OTEL_EXPORTER_OTLP_METRICS_ENDPOINT": "telemetry.otlp.metrics_endpoint",
	"OTEL_EXPORTER_OTLP_PROTOCOL":         "telemetry.otlp.protocol",
	"OTEL_EXPORTER_OTLP_INSECURE":         "telemetry.otlp.insecure",
	"OTEL_EXPORTER_OTLP_TIMEOUT":          "telemetry.otlp.timeout",
	"OTEL_EXPORTER_OTLP_HEADERS":          "telemetry.otlp.headers",
	"OTEL_EXPORTER_JAEGER_ENDPOINT":       "telemetry.jaeger.endpoint",
	"OTEL_EXPORTER_PROMETHEUS_HOST":       "telemetry.prometheus.host",
	"OTEL_EXPORTER_PROMETHEUS_PORT":       "telemetry.prometheus.port",
	"TRACEBUILD_SHUTDOWN_TIMEOUT":         "telemetry.shutdown_timeout",
	"TRACEBUILD_LOG_LEVEL":                "log.level",
	"TRACEBUILD_LOG_FORMAT":               "log.format",
}

// envKey translates an environment variable name into a configuration key.
// Unknown variables map to "", which koanf skips.
func envKey(name string) string {
	return EnvKeys[strings.ToUpper(name)]
}
