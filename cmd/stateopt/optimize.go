package main

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/tailored-agentic-units/stateopt/codec"
	"github.com/tailored-agentic-units/stateopt/config"
	"github.com/tailored-agentic-units/stateopt/graph"
	"github.com/tailored-agentic-units/stateopt/optimize"
)

func newOptimizeCmd(c *Command) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "optimize <file>",
		Short: "optimize a machine definition",
		Long: `Optimize runs the optimizer passes over a machine definition and
writes the result.

The passes run in a fixed order: unreachable-state removal, choice-chain
joining, variable elimination and no-op Pass removal, followed by a final
reachability sweep. Each pass except the final sweep can be disabled with a
flag or in the configuration file.

Use - to read JSON from stdin.`,
		Args: cobra.ExactArgs(1),
		RunE: mkRunE(c, runOptimize),
	}
	addPassFlags(cmd.Flags())
	addOutFlags(cmd.Flags())
	return cmd
}

func runOptimize(c *Command, args []string) error {
	m, in, err := readMachine(c, args[0])
	if err != nil {
		return err
	}

	cfg := c.cfg.Optimize
	cfg.Merge(passOverrides(c))

	o, err := optimize.New(cfg)
	if err != nil {
		return err
	}
	out, res, err := o.OptimizeMachine(c.Context(), m)
	if err != nil {
		return err
	}

	c.logger.Info("optimized",
		"states_in", len(m.States),
		"states_out", len(out.States),
		"removed", len(res.Removed),
		"eliminated", len(res.Eliminated),
		"joined", len(res.Joined),
	)
	return writeMachine(c, out, in)
}

// passOverrides turns the --no-* flags into a partial configuration.
func passOverrides(c *Command) *config.OptimizeConfig {
	partial := &config.OptimizeConfig{}
	if flagNoVariables.Bool(c) {
		partial.OptimizeVariableAssignmentsNil = config.Bool(false)
	}
	if flagNoUnreachable.Bool(c) {
		partial.RemoveUnreachableStatesNil = config.Bool(false)
	}
	if flagNoChoices.Bool(c) {
		partial.JoinConsecutiveChoicesNil = config.Bool(false)
	}
	if flagNoNoOps.Bool(c) {
		partial.RemoveNoOpStatesNil = config.Bool(false)
	}
	return partial
}

// readMachine reads the definition named by path and returns its format.
func readMachine(c *Command, path string) (graph.Machine, codec.Format, error) {
	if path == "-" {
		m, err := codec.Read(c.InOrStdin(), codec.JSON)
		return m, codec.JSON, err
	}
	m, err := codec.ReadFile(path)
	if err != nil {
		return graph.Machine{}, "", err
	}
	return m, codec.FormatOf(path), nil
}

func writeMachine(c *Command, m graph.Machine, def codec.Format) error {
	f := def
	if name := flagFormat.String(c); name != "" {
		var err error
		if f, err = codec.ParseFormat(name); err != nil {
			return err
		}
	}

	file, closeFn, err := c.output(flagOutFile.String(c))
	if err != nil {
		return err
	}
	var w io.Writer = c.OutOrStdout()
	if file != nil {
		w = file
	}
	if err := codec.Write(w, m, f); err != nil {
		closeFn()
		return fmt.Errorf("failed to write machine: %w", err)
	}
	return closeFn()
}
