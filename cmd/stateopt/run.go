package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/tailored-agentic-units/stateopt/simulate"
)

func newRunCmd(c *Command) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run <file>",
		Short: "interpret a machine against an input document",
		Long: `Run interprets a machine definition against a JSON input document and
prints the output document. Task states return their input unchanged and
Wait states do not sleep.

Use it to compare a machine with its optimized form:

	stateopt run machine.json --input '{"n": 1}'
	stateopt optimize machine.json | stateopt run - --input '{"n": 1}'`,
		Args: cobra.ExactArgs(1),
		RunE: mkRunE(c, runRun),
	}
	cmd.Flags().String(string(flagInput), "{}", "input document as JSON")
	cmd.Flags().String(string(flagInputFile), "", "file holding the input document")
	cmd.Flags().Bool(string(flagTrace), false, "print the visited states")
	return cmd
}

func runRun(c *Command, args []string) error {
	m, _, err := readMachine(c, args[0])
	if err != nil {
		return err
	}
	if err := m.Validate(); err != nil {
		return err
	}

	raw := []byte(flagInput.String(c))
	if path := flagInputFile.String(c); path != "" {
		if raw, err = os.ReadFile(path); err != nil {
			return fmt.Errorf("failed to read input: %w", err)
		}
	}
	var input any
	if err := json.Unmarshal(raw, &input); err != nil {
		return fmt.Errorf("invalid input document: %w", err)
	}

	sim, err := simulate.New(c.cfg.Simulate, simulate.EchoHandler)
	if err != nil {
		return err
	}
	exec, err := sim.Execute(c.Context(), m, input)
	if err != nil {
		return err
	}

	if flagTrace.Bool(c) {
		fmt.Fprintf(c.ErrOrStderr(), "path: %s\n", strings.Join(exec.Path, " -> "))
	}
	enc := json.NewEncoder(c.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(exec.Output)
}
