package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"

	"github.com/fyrsmithlabs/tracebuild/internal/logging"
	"github.com/fyrsmithlabs/tracebuild/internal/supervisor"
)

const (
	testBuildID = "0af7651916cd43dd8448eb211c80319cb7ad6b7169203331"
	testStepID  = "4bf92f3577b34da6a3ce929d0e0e4736a3ce929d0e0e4736"
	testParent  = "11111111111111111111111111111111aaaaaaaaaaaaaaaa"
)

// quietTelemetry disables every exporter for the rest of the test.
func quietTelemetry(t *testing.T) {
	t.Helper()
	t.Setenv("OTEL_TRACES_EXPORTER", "none")
	t.Setenv("OTEL_METRICS_EXPORTER", "none")
}

func runArgs(t *testing.T, args ...string) (int, string, string) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	code := run(context.Background(), args, &stdout, &stderr)
	return code, stdout.String(), stderr.String()
}

func TestRun_ID(t *testing.T) {
	code, out, _ := runArgs(t, "id")

	assert.Equal(t, 0, code)
	assert.Regexp(t, `^[0-9a-f]{48}\n$`, out)

	_, again, _ := runArgs(t, "id")
	assert.NotEqual(t, out, again)
}

func TestRun_Now(t *testing.T) {
	code, out, _ := runArgs(t, "now")

	assert.Equal(t, 0, code)
	assert.Regexp(t, `^[0-9]+\n$`, out)
}

func TestRun_Version(t *testing.T) {
	code, out, _ := runArgs(t, "version")

	assert.Equal(t, 0, code)
	assert.Equal(t, "tracebuild "+version+"\n", out)
}

func TestRun_UsageErrors(t *testing.T) {
	quietTelemetry(t)

	tests := []struct {
		name string
		args []string
	}{
		{"unknown command", []string{"deploy"}},
		{"cmd without build", []string{"cmd", "--", "true"}},
		{"cmd with malformed build", []string{"cmd", "--build", "xyz", "--", "true"}},
		{"cmd with malformed step", []string{"cmd", "--build", testBuildID, "--step", "abc", "--", "true"}},
		{"cmd without command", []string{"cmd", "--build", testBuildID}},
		{"step without start time", []string{"step", "--build", testBuildID, "--id", testStepID}},
		{"step with malformed start time", []string{"step", "--build", testBuildID, "--id", testStepID, "--start-time", "yesterday"}},
		{"build with malformed status", []string{"build", "--id", testBuildID, "--start-time", "1700000000", "--status", "flaky"}},
		{"build with short id", []string{"build", "--id", "b7ad6b7169203331", "--start-time", "1700000000"}},
		{"missing config file", []string{"--config", filepath.Join(t.TempDir(), "missing.yaml"), "build", "--id", testBuildID, "--start-time", "1700000000"}},
		{"invalid log level", []string{"--log-level", "loud", "build", "--id", testBuildID, "--start-time", "1700000000"}},
		{"invalid log format", []string{"--log-format", "xml", "build", "--id", testBuildID, "--start-time", "1700000000"}},
		{"id with arguments", []string{"id", "extra"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			code, out, errOut := runArgs(t, tt.args...)

			assert.Equal(t, exitUsage, code)
			assert.Empty(t, out)
			assert.True(t, strings.HasPrefix(errOut, "error: "), "stderr: %q", errOut)
		})
	}
}

func TestRun_Cmd(t *testing.T) {
	quietTelemetry(t)

	tests := []struct {
		name string
		args []string
		want int
	}{
		{"success", []string{"true"}, 0},
		{"failure", []string{"false"}, 1},
		{"exit code propagated", []string{"sh", "-c", "exit 4"}, 4},
		{"command flags are not parsed", []string{"sh", "-c", "exit 3", "--name", "ignored"}, 3},
		{"missing executable", []string{"tracebuild-test-no-such-command"}, supervisor.ExitOSErr},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			args := append([]string{"cmd", "--build", testBuildID, "--step", testStepID, "--name", "test", "--"}, tt.args...)
			code, _, _ := runArgs(t, args...)
			assert.Equal(t, tt.want, code)
		})
	}
}

func TestRun_CmdWithoutSeparator(t *testing.T) {
	quietTelemetry(t)

	code, _, _ := runArgs(t, "cmd", "--build", testBuildID, "sh", "-c", "exit 5")
	assert.Equal(t, 5, code)
}

func TestRun_CmdSpawnFailureMessage(t *testing.T) {
	quietTelemetry(t)

	code, _, errOut := runArgs(t, "cmd", "--build", testBuildID, "--", "tracebuild-test-no-such-command")

	assert.Equal(t, supervisor.ExitOSErr, code)
	assert.Contains(t, errOut, "error: ")
	assert.Contains(t, errOut, "tracebuild-test-no-such-command")
}

func TestRun_StepAndBuild(t *testing.T) {
	quietTelemetry(t)

	tests := []struct {
		name string
		args []string
	}{
		{"minimal step", []string{"step", "--build", testBuildID, "--id", testStepID, "--start-time", "1700000000"}},
		{"nested step", []string{"step", "--build", testBuildID, "--step", testParent, "--id", testStepID, "--start-time", "1700000000", "--name", "unit tests", "--status", "failure"}},
		{"minimal build", []string{"build", "--id", testBuildID, "--start-time", "1700000000"}},
		{"full build", []string{"build", "--id", testBuildID, "--start-time", "1700000000", "--name", "ci", "--branch", "main", "--commit", "abc123", "--status", "success"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			code, out, errOut := runArgs(t, tt.args...)

			assert.Equal(t, 0, code)
			assert.Empty(t, out)
			assert.Empty(t, errOut)
		})
	}
}

func TestRun_UnknownExporterFallsBack(t *testing.T) {
	t.Setenv("OTEL_TRACES_EXPORTER", "zipkin")
	t.Setenv("OTEL_METRICS_EXPORTER", "none")

	code, _, _ := runArgs(t, "cmd", "--build", testBuildID, "--", "sh", "-c", "exit 6")
	assert.Equal(t, 6, code)
}

func TestRun_MalformedTelemetrySettingsStillRunCommand(t *testing.T) {
	tests := []struct {
		name  string
		env   string
		value string
	}{
		{name: "prometheus port", env: "OTEL_EXPORTER_PROMETHEUS_PORT", value: "abc"},
		{name: "otlp timeout", env: "OTEL_EXPORTER_OTLP_TIMEOUT", value: "soon"},
		{name: "otlp insecure", env: "OTEL_EXPORTER_OTLP_INSECURE", value: "yes"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			quietTelemetry(t)
			t.Setenv(tt.env, tt.value)
			marker := filepath.Join(t.TempDir(), "ran")

			code, _, errOut := runArgs(t, "cmd", "--build", testBuildID, "--", "sh", "-c", `touch "$0"; exit 4`, marker)

			assert.Equal(t, 4, code)
			assert.FileExists(t, marker)
			assert.NotContains(t, errOut, "error:")
		})
	}
}

func TestRun_MalformedTelemetryConfigFileStillRunsCommand(t *testing.T) {
	quietTelemetry(t)
	path := filepath.Join(t.TempDir(), "tracebuild.yaml")
	require.NoError(t, os.WriteFile(path, []byte("telemetry:\n  prometheus:\n    port: high\n"), 0o600))

	code, _, _ := runArgs(t, "--config", path, "cmd", "--build", testBuildID, "--", "sh", "-c", "exit 9")
	assert.Equal(t, 9, code)
}

func TestLoadSettings(t *testing.T) {
	t.Run("defaults", func(t *testing.T) {
		c := &cli{}
		s, err := c.loadSettings()
		require.NoError(t, err)

		assert.Equal(t, zapcore.WarnLevel, s.Log.Level.Zap())
		assert.Equal(t, "tracebuild", s.Telemetry.ServiceName)
		assert.Equal(t, version, s.Telemetry.ServiceVersion)
	})

	t.Run("log flags override", func(t *testing.T) {
		t.Setenv("TRACEBUILD_LOG_LEVEL", "error")

		c := &cli{logLevel: "trace", logFormat: "json"}
		s, err := c.loadSettings()
		require.NoError(t, err)

		assert.Equal(t, logging.TraceLevel, s.Log.Level.Zap())
		assert.Equal(t, "json", s.Log.Format)
	})

	t.Run("trace level from environment", func(t *testing.T) {
		t.Setenv("TRACEBUILD_LOG_LEVEL", "trace")

		c := &cli{}
		s, err := c.loadSettings()
		require.NoError(t, err)

		assert.NoError(t, s.logErr)
		assert.Equal(t, logging.TraceLevel, s.Log.Level.Zap())
	})

	t.Run("malformed log environment resets log section", func(t *testing.T) {
		t.Setenv("TRACEBUILD_LOG_LEVEL", "loud")
		t.Setenv("TRACEBUILD_LOG_FORMAT", "xml")

		c := &cli{}
		s, err := c.loadSettings()
		require.NoError(t, err)

		assert.Error(t, s.logErr)
		assert.Equal(t, zapcore.WarnLevel, s.Log.Level.Zap())
		assert.Equal(t, "console", s.Log.Format)
	})

	t.Run("malformed telemetry environment resets telemetry section", func(t *testing.T) {
		t.Setenv("OTEL_SERVICE_NAME", "ci")
		t.Setenv("OTEL_EXPORTER_PROMETHEUS_PORT", "abc")

		c := &cli{}
		s, err := c.loadSettings()
		require.NoError(t, err)

		assert.Error(t, s.telemetryErr)
		assert.Equal(t, "tracebuild", s.Telemetry.ServiceName)
		assert.Equal(t, 9464, s.Telemetry.Prometheus.Port)
	})

	t.Run("config file", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "tracebuild.yaml")
		require.NoError(t, os.WriteFile(path, []byte("telemetry:\n  service_name: pipeline\n"), 0o600))

		c := &cli{configPath: path}
		s, err := c.loadSettings()
		require.NoError(t, err)

		assert.Equal(t, "pipeline", s.Telemetry.ServiceName)
	})

	t.Run("env file does not override environment", func(t *testing.T) {
		// Registered with t.Setenv so the variable is restored afterwards.
		t.Setenv("TRACEBUILD_LOG_FORMAT", "")
		require.NoError(t, os.Unsetenv("TRACEBUILD_LOG_FORMAT"))
		t.Setenv("OTEL_SERVICE_NAME", "from-env")

		path := filepath.Join(t.TempDir(), ".env")
		require.NoError(t, os.WriteFile(path, []byte("TRACEBUILD_LOG_FORMAT=json\nOTEL_SERVICE_NAME=from-file\n"), 0o600))

		c := &cli{envFile: path}
		s, err := c.loadSettings()
		require.NoError(t, err)

		assert.Equal(t, "json", s.Log.Format)
		assert.Equal(t, "from-env", s.Telemetry.ServiceName)
	})

	t.Run("missing env file", func(t *testing.T) {
		c := &cli{envFile: filepath.Join(t.TempDir(), "missing.env")}
		_, err := c.loadSettings()
		assert.Error(t, err)
	})
}
