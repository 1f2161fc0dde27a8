// Package main implements tracebuild, a CLI that reports CI builds, steps
// and commands as OpenTelemetry traces and metrics.
package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

// exitUsage is reported for malformed invocations, matching cobra's own
// argument errors.
const exitUsage = 2

func main() {
	os.Exit(run(context.Background(), os.Args[1:], os.Stdout, os.Stderr))
}

// run executes one tracebuild invocation and returns its exit code. Any
// telemetry pipeline it installs has been shut down when it returns.
func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	c := &cli{stdout: stdout, stderr: stderr}
	root := c.newRootCmd()
	root.SetArgs(args)
	root.SetOut(stdout)
	root.SetErr(stderr)

	if err := root.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(stderr, "error: %v\n", err)
		return exitUsage
	}
	return c.exitCode
}

// cli holds the state of one invocation.
type cli struct {
	stdout io.Writer
	stderr io.Writer

	configPath string
	envFile    string
	logLevel   string
	logFormat  string

	exitCode int
}

func (c *cli) newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "tracebuild",
		Short: "Report CI builds, steps and commands as OpenTelemetry traces",
		Long: `tracebuild instruments builds in CI systems such as GitHub Actions or Travis CI.

A build is identified by an id generated up front with "tracebuild id". Steps
and commands are reported against that id, and the build itself is reported
last, once its outcome is known.

Examples:
  BUILD_ID=$(tracebuild id)
  BUILD_START=$(tracebuild now)

  STEP_ID=$(tracebuild id)
  STEP_START=$(tracebuild now)
  tracebuild cmd --build "$BUILD_ID" --step "$STEP_ID" -- make test
  tracebuild step --build "$BUILD_ID" --id "$STEP_ID" --start-time "$STEP_START" --name test

  tracebuild build --id "$BUILD_ID" --start-time "$BUILD_START" --branch main --status success

Exporters are configured through the standard OTEL_* environment variables.`,
		Version:       version,
		SilenceErrors: true,
		SilenceUsage:  true,
	}

	flags := root.PersistentFlags()
	flags.StringVar(&c.configPath, "config", "", "optional YAML configuration file")
	flags.StringVar(&c.envFile, "env-file", "", "optional dotenv file; never overrides variables already set")
	flags.StringVar(&c.logLevel, "log-level", "", "log level (trace, debug, info, warn, error)")
	flags.StringVar(&c.logFormat, "log-format", "", "log format (console, json)")

	root.AddCommand(
		c.newIDCmd(),
		c.newNowCmd(),
		c.newCmdCmd(),
		c.newStepCmd(),
		c.newBuildCmd(),
		c.newVersionCmd(),
	)
	return root
}
