package main

import (
	"context"
	"fmt"
	"io"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.opentelemetry.io/otel"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/tracebuild/internal/config"
	"github.com/fyrsmithlabs/tracebuild/internal/logging"
	"github.com/fyrsmithlabs/tracebuild/internal/orchestrator"
	"github.com/fyrsmithlabs/tracebuild/internal/telemetry"
)

// settings is the configuration of one invocation. Each section is decoded
// on its own so a malformed value never stops the command from running.
type settings struct {
	Log       logging.Config
	Telemetry telemetry.Config

	// logErr and telemetryErr hold why a section was reset to its defaults.
	logErr       error
	telemetryErr error
}

func defaultSettings() *settings {
	tel := telemetry.NewDefaultConfig()
	tel.ServiceVersion = version
	return &settings{
		Log:       *logging.NewDefaultConfig(),
		Telemetry: *tel,
	}
}

// loadSettings layers the env file, the config file and the environment over
// the defaults, then applies the log flags. Only problems with the command
// line itself are returned: an unreadable --env-file or --config, or a bad
// log flag.
func (c *cli) loadSettings() (*settings, error) {
	if c.envFile != "" {
		// godotenv never overrides variables that are already set.
		if err := godotenv.Load(c.envFile); err != nil {
			return nil, fmt.Errorf("failed to load env file: %w", err)
		}
	}

	src, err := config.Read(c.configPath)
	if err != nil {
		return nil, err
	}

	s := defaultSettings()
	defaults := defaultSettings()
	if err := src.Unmarshal("log", &s.Log); err != nil {
		s.Log, s.logErr = defaults.Log, err
	} else if err := s.Log.Validate(); err != nil {
		s.Log, s.logErr = defaults.Log, fmt.Errorf("invalid log config: %w", err)
	}
	if err := src.Unmarshal("telemetry", &s.Telemetry); err != nil {
		s.Telemetry, s.telemetryErr = defaults.Telemetry, err
	}

	if c.logLevel != "" {
		level, err := logging.LevelFromString(c.logLevel)
		if err != nil {
			return nil, fmt.Errorf("invalid --log-level %q: %w", c.logLevel, err)
		}
		s.Log.Level = logging.Level(level)
	}
	if c.logFormat != "" {
		s.Log.Format = c.logFormat
	}
	return s, nil
}

// session is an invocation with logging and telemetry installed.
type session struct {
	ctx      context.Context
	logger   *logging.Logger
	pipeline *telemetry.Pipeline
	stderr   io.Writer
}

// start installs logging and telemetry for cmd. Errors are configuration
// errors and are reported before anything is run.
func (c *cli) start(cmd *cobra.Command) (*session, error) {
	s, err := c.loadSettings()
	if err != nil {
		return nil, err
	}

	logger, err := logging.NewLogger(&s.Log)
	if err != nil {
		return nil, err
	}

	ctx := logging.WithInvocationID(cmd.Context(), uuid.NewString())
	ctx = logging.WithLogger(ctx, logger)
	logger.Debug(ctx, "starting", zap.String("command", cmd.Name()), zap.String("version", version))
	if s.logErr != nil {
		logger.Warn(ctx, "invalid log configuration, using defaults", zap.Error(s.logErr))
	}

	otel.SetErrorHandler(otel.ErrorHandlerFunc(func(err error) {
		logger.Warn(ctx, "opentelemetry error", zap.Error(err))
	}))

	var pipeline *telemetry.Pipeline
	if s.telemetryErr != nil {
		pipeline = telemetry.Fallback(ctx, &s.Telemetry, logger, s.telemetryErr)
	} else {
		pipeline = telemetry.Install(ctx, &s.Telemetry, logger)
	}

	return &session{
		ctx:      ctx,
		logger:   logger,
		pipeline: pipeline,
		stderr:   c.stderr,
	}, nil
}

func (s *session) orchestrator() *orchestrator.Orchestrator {
	return orchestrator.New(s.pipeline,
		orchestrator.WithLogger(s.logger),
		orchestrator.WithStderr(s.stderr),
	)
}

// finish flushes and shuts down the pipeline. Export problems are logged
// and never change the exit code.
func (s *session) finish() {
	ctx := context.WithoutCancel(s.ctx)
	if err := s.pipeline.Shutdown(ctx); err != nil {
		s.logger.Warn(ctx, "telemetry shutdown failed", zap.Error(err))
	}
	if err := s.pipeline.CheckShutdown(); err != nil {
		s.logger.Error(ctx, "telemetry pipeline still running at exit", zap.Error(err))
	}
	_ = s.logger.Sync()
}
