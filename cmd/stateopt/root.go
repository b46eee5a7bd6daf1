package main

import (
	"context"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/tailored-agentic-units/stateopt/config"
	"github.com/tailored-agentic-units/stateopt/observability"
)

// Command is the root command and the state shared by its subcommands.
type Command struct {
	// The currently active command.
	*cobra.Command

	root   *cobra.Command
	cfg    config.Config
	logger *slog.Logger
}

type runFunction func(c *Command, args []string) error

func mkRunE(c *Command, f runFunction) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		c.Command = cmd
		return f(c, args)
	}
}

func newRootCmd() *Command {
	cmd := &cobra.Command{
		Use:   "stateopt",
		Short: "stateopt optimizes workflow state machines.",
		Long: `stateopt rewrites workflow state machine definitions to remove
unreachable states, identity Pass states, chained Choice states and
single-use variable indirections without changing what the machine
computes.

Definitions are read as JSON, YAML or a protobuf google.protobuf.Struct,
chosen by file extension.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	c := &Command{Command: cmd, root: cmd, cfg: config.DefaultConfig()}

	addGlobalFlags(cmd.PersistentFlags())
	cmd.PersistentPreRunE = mkRunE(c, setup)

	cmd.AddCommand(
		newOptimizeCmd(c),
		newAnalyzeCmd(c),
		newRunCmd(c),
		newServeCmd(c),
	)
	return c
}

// Run executes the command line args.
func (c *Command) Run(ctx context.Context, args []string) error {
	c.root.SetArgs(args)
	return c.root.ExecuteContext(ctx)
}

// setup loads the configuration file and configures logging before any
// subcommand runs.
func setup(c *Command, args []string) error {
	if path := flagConfig.String(c); path != "" {
		cfg, err := config.Load(path)
		if err != nil {
			return err
		}
		c.cfg = *cfg
	}

	lvl, err := observability.ParseLevel(flagLogLevel.String(c))
	if err != nil {
		return err
	}
	level := lvl.SlogLevel()
	if flagVerbose.Bool(c) {
		level = slog.LevelDebug
	}
	c.logger = slog.New(slog.NewTextHandler(c.ErrOrStderr(), &slog.HandlerOptions{
		Level: level,
	}))
	observability.UseSlog(c.logger)
	return nil
}

// output opens the destination named by the out flag, or stdout.
func (c *Command) output(path string) (*os.File, func() error, error) {
	if path == "" || path == "-" {
		return nil, func() error { return nil }, nil
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, nil, err
	}
	return f, f.Close, nil
}
