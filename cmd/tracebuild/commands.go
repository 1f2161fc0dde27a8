package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/fyrsmithlabs/tracebuild/internal/build"
	"github.com/fyrsmithlabs/tracebuild/internal/orchestrator"
)

func (c *cli) newIDCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "id",
		Short: "Generate an id usable as a build or step id",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Fprintln(c.stdout, build.GenerateID())
			return nil
		},
	}
}

func (c *cli) newNowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "now",
		Short: "Print the current time as a build or step start time",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Fprintln(c.stdout, build.Now())
			return nil
		},
	}
}

func (c *cli) newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the tracebuild version",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Fprintf(c.stdout, "tracebuild %s\n", version)
			return nil
		},
	}
}

func (c *cli) newCmdCmd() *cobra.Command {
	var (
		buildID build.ID
		step    build.StepID
		name    string
	)

	cmd := &cobra.Command{
		Use:   "cmd --build ID [--step ID] [--name NAME] -- CMD [ARGS...]",
		Short: "Run a command and report it as a span",
		Long: `Run a command and report it as a span of the given build and optional step.

The command inherits tracebuild's standard streams. SIGTERM sent to tracebuild
is forwarded to it, and tracebuild exits with the command's exit code.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := c.start(cmd)
			if err != nil {
				return err
			}

			req := orchestrator.CommandRequest{
				Build:   buildID,
				Name:    name,
				Command: args[0],
				Args:    args[1:],
			}
			if cmd.Flags().Changed("step") {
				req.Step = &step
			}

			c.exitCode = s.orchestrator().RunCommand(s.ctx, req)
			s.finish()
			return nil
		},
	}

	flags := cmd.Flags()
	// Everything after the command name belongs to the command.
	flags.SetInterspersed(false)
	flags.Var(&buildID, "build", "build id")
	flags.Var(&step, "step", "optional parent step id")
	flags.StringVar(&name, "name", "", "optional name used instead of the command line")
	_ = cmd.MarkFlagRequired("build")
	return cmd
}

func (c *cli) newStepCmd() *cobra.Command {
	var (
		buildID build.ID
		parent  build.StepID
		id      build.StepID
		start   build.Timestamp
		name    string
		status  build.Status
	)

	cmd := &cobra.Command{
		Use:   "step --build ID --id ID --start-time TIME [--step ID] [--name NAME] [--status STATUS]",
		Short: "Report a finished step as a span",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := c.start(cmd)
			if err != nil {
				return err
			}

			req := orchestrator.StepRequest{
				Build:  buildID,
				ID:     id,
				Start:  start,
				Name:   name,
				Status: status,
			}
			if cmd.Flags().Changed("step") {
				req.Parent = &parent
			}

			s.orchestrator().ReportStep(s.ctx, req)
			s.finish()
			return nil
		},
	}

	flags := cmd.Flags()
	flags.Var(&buildID, "build", "build id")
	flags.Var(&parent, "step", "optional parent step id")
	flags.Var(&id, "id", "step id")
	flags.Var(&start, "start-time", "step start time in Unix seconds")
	flags.StringVar(&name, "name", "", "optional step name")
	flags.Var(&status, "status", "optional status (success, failure)")
	_ = cmd.MarkFlagRequired("build")
	_ = cmd.MarkFlagRequired("id")
	_ = cmd.MarkFlagRequired("start-time")
	return cmd
}

func (c *cli) newBuildCmd() *cobra.Command {
	var (
		id     build.ID
		start  build.Timestamp
		name   string
		branch string
		commit string
		status build.Status
	)

	cmd := &cobra.Command{
		Use:   "build --id ID --start-time TIME [--name NAME] [--branch BRANCH] [--commit SHA] [--status STATUS]",
		Short: "Report a finished build as the root span",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := c.start(cmd)
			if err != nil {
				return err
			}

			s.orchestrator().ReportBuild(s.ctx, orchestrator.BuildRequest{
				ID:     id,
				Start:  start,
				Name:   name,
				Branch: branch,
				Commit: commit,
				Status: status,
			})
			s.finish()
			return nil
		},
	}

	flags := cmd.Flags()
	flags.Var(&id, "id", "build id")
	flags.Var(&start, "start-time", "build start time in Unix seconds")
	flags.StringVar(&name, "name", "", "optional build name")
	flags.StringVar(&branch, "branch", "", "optional branch name")
	flags.StringVar(&commit, "commit", "", "optional commit SHA")
	flags.Var(&status, "status", "optional status (success, failure)")
	_ = cmd.MarkFlagRequired("id")
	_ = cmd.MarkFlagRequired("start-time")
	return cmd
}
