package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testOTLP struct {
	Endpoint string   `koanf:"endpoint"`
	Insecure bool     `koanf:"insecure"`
	Timeout  Duration `koanf:"timeout"`
	Headers  Secret   `koanf:"headers"`
}

type testPrometheus struct {
	Host string `koanf:"host"`
	Port int    `koanf:"port"`
}

type testTelemetry struct {
	ServiceName    string         `koanf:"service_name"`
	TracesExporter string         `koanf:"traces_exporter"`
	OTLP           testOTLP       `koanf:"otlp"`
	Prometheus     testPrometheus `koanf:"prometheus"`
}

type testLog struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
}

type testSettings struct {
	Log       testLog       `koanf:"log"`
	Telemetry testTelemetry `koanf:"telemetry"`
}

func defaultSettings() testSettings {
	return testSettings{
		Log: testLog{Level: "warn", Format: "console"},
		Telemetry: testTelemetry{
			ServiceName:    "tracebuild",
			TracesExporter: "otlp",
			OTLP: testOTLP{
				Endpoint: "https://localhost:4317",
				Timeout:  Duration(5 * time.Second),
			},
			Prometheus: testPrometheus{Host: "0.0.0.0", Port: 9464},
		},
	}
}

// clearEnv unsets every variable Read picks up for the duration of the test.
func clearEnv(t *testing.T) {
	t.Helper()
	for name := range EnvKeys {
		if value, ok := os.LookupEnv(name); ok {
			require.NoError(t, os.Unsetenv(name))
			t.Cleanup(func() { os.Setenv(name, value) })
		}
	}
}

// load reads path and decodes the whole tree onto target.
func load(path string, target any) error {
	src, err := Read(path)
	if err != nil {
		return err
	}
	return src.Unmarshal("", target)
}

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "tracebuild.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0600))
	return path
}

func TestLoad_DefaultsOnly(t *testing.T) {
	clearEnv(t)

	got := defaultSettings()
	require.NoError(t, load("", &got))
	assert.Equal(t, defaultSettings(), got)
}

func TestLoad_YAMLOverridesDefaults(t *testing.T) {
	clearEnv(t)

	path := writeConfig(t, `
log:
  level: debug
telemetry:
  traces_exporter: stdout
  otlp:
    endpoint: http://collector:4317
    timeout: 2s
  prometheus:
    port: 9091
`)

	got := defaultSettings()
	require.NoError(t, load(path, &got))

	assert.Equal(t, "debug", got.Log.Level)
	assert.Equal(t, "console", got.Log.Format, "unset fields keep defaults")
	assert.Equal(t, "stdout", got.Telemetry.TracesExporter)
	assert.Equal(t, "http://collector:4317", got.Telemetry.OTLP.Endpoint)
	assert.Equal(t, 2*time.Second, got.Telemetry.OTLP.Timeout.Duration())
	assert.Equal(t, "0.0.0.0", got.Telemetry.Prometheus.Host)
	assert.Equal(t, 9091, got.Telemetry.Prometheus.Port)
}

func TestLoad_EnvironmentOverridesYAML(t *testing.T) {
	clearEnv(t)

	path := writeConfig(t, `
telemetry:
  traces_exporter: stdout
  otlp:
    endpoint: http://from-yaml:4317
`)
	t.Setenv("OTEL_TRACES_EXPORTER", "none")
	t.Setenv("OTEL_EXPORTER_OTLP_ENDPOINT", "http://from-env:4317")
	t.Setenv("OTEL_EXPORTER_OTLP_INSECURE", "true")
	t.Setenv("OTEL_EXPORTER_OTLP_TIMEOUT", "1500")
	t.Setenv("OTEL_EXPORTER_OTLP_HEADERS", "x-api-key=hunter2")
	t.Setenv("OTEL_EXPORTER_PROMETHEUS_PORT", "9999")
	t.Setenv("TRACEBUILD_LOG_FORMAT", "json")

	got := defaultSettings()
	require.NoError(t, load(path, &got))

	assert.Equal(t, "none", got.Telemetry.TracesExporter)
	assert.Equal(t, "http://from-env:4317", got.Telemetry.OTLP.Endpoint)
	assert.True(t, got.Telemetry.OTLP.Insecure)
	assert.Equal(t, 1500*time.Millisecond, got.Telemetry.OTLP.Timeout.Duration())
	assert.Equal(t, "x-api-key=hunter2", got.Telemetry.OTLP.Headers.Value())
	assert.Equal(t, 9999, got.Telemetry.Prometheus.Port)
	assert.Equal(t, "json", got.Log.Format)
}

func TestLoad_IgnoresUnknownEnvironment(t *testing.T) {
	clearEnv(t)
	t.Setenv("TELEMETRY_SERVICE_NAME", "not-mapped")
	t.Setenv("LOG_LEVEL", "error")

	got := defaultSettings()
	require.NoError(t, load("", &got))
	assert.Equal(t, defaultSettings(), got)
}

func TestLoad_Errors(t *testing.T) {
	clearEnv(t)

	tests := []struct {
		name    string
		path    func(t *testing.T) string
		wantErr string
	}{
		{
			name:    "missing file",
			path:    func(t *testing.T) string { return filepath.Join(t.TempDir(), "absent.yaml") },
			wantErr: "failed to open config file",
		},
		{
			name:    "directory",
			path:    func(t *testing.T) string { return t.TempDir() },
			wantErr: "is a directory",
		},
		{
			name:    "invalid yaml",
			path:    func(t *testing.T) string { return writeConfig(t, "telemetry:\n  otlp: [unclosed\n") },
			wantErr: "failed to load config file",
		},
		{
			name: "too large",
			path: func(t *testing.T) string {
				return writeConfig(t, "# "+strings.Repeat("x", maxConfigFileSize)+"\n")
			},
			wantErr: "too large",
		},
		{
			name:    "bad duration",
			path:    func(t *testing.T) string { return writeConfig(t, "telemetry:\n  otlp:\n    timeout: soon\n") },
			wantErr: "failed to unmarshal config",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := defaultSettings()
			err := load(tt.path(t), &got)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestSource_MalformedValueOnlyFailsItsSection(t *testing.T) {
	tests := []struct {
		name  string
		env   string
		value string
	}{
		{name: "port", env: "OTEL_EXPORTER_PROMETHEUS_PORT", value: "abc"},
		{name: "timeout", env: "OTEL_EXPORTER_OTLP_TIMEOUT", value: "soon"},
		{name: "insecure", env: "OTEL_EXPORTER_OTLP_INSECURE", value: "yes"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearEnv(t)
			t.Setenv(tt.env, tt.value)
			t.Setenv("TRACEBUILD_LOG_LEVEL", "debug")

			src, err := Read("")
			require.NoError(t, err)

			got := defaultSettings()
			require.NoError(t, src.Unmarshal("log", &got.Log))
			assert.Equal(t, "debug", got.Log.Level)

			err = src.Unmarshal("telemetry", &got.Telemetry)
			require.Error(t, err)
			assert.Contains(t, err.Error(), "failed to unmarshal telemetry config")
		})
	}
}

func TestSource_MissingSectionKeepsDefaults(t *testing.T) {
	clearEnv(t)

	src, err := Read("")
	require.NoError(t, err)

	got := defaultSettings()
	require.NoError(t, src.Unmarshal("telemetry", &got.Telemetry))
	assert.Equal(t, defaultSettings().Telemetry, got.Telemetry)
}
