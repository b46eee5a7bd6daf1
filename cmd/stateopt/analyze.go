package main

import (
	"encoding/json"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/tailored-agentic-units/stateopt/optimize"
)

func newAnalyzeCmd(c *Command) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "analyze <file>",
		Short: "report how states read and write variables",
		Long: `Analyze classifies every read and write of a variable slot in the
reachable states and prints the assignments and uses of each variable
root. Roots with exactly one assignment and one use are candidates for
elimination.`,
		Args: cobra.ExactArgs(1),
		RunE: mkRunE(c, runAnalyze),
	}
	cmd.Flags().Bool(string(flagJSON), false, "print the report as JSON")
	return cmd
}

func runAnalyze(c *Command, args []string) error {
	m, _, err := readMachine(c, args[0])
	if err != nil {
		return err
	}
	if err := m.Validate(); err != nil {
		return err
	}

	an, err := optimize.Analyze(m.StartAt, m.States)
	if err != nil {
		return err
	}
	summary := an.Summary()

	if flagJSON.Bool(c) {
		enc := json.NewEncoder(c.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(summary)
	}

	w := tabwriter.NewWriter(c.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ROOT\tASSIGNS\tUSES\tCANDIDATE")
	for _, s := range summary {
		fmt.Fprintf(w, "%s\t%d\t%d\t%t\n", s.Root, len(s.Assigns), len(s.Uses), s.Candidate)
	}
	if err := w.Flush(); err != nil {
		return err
	}

	if flagVerbose.Bool(c) {
		for _, s := range summary {
			fmt.Fprintf(c.OutOrStdout(), "\n%s\n", s.Root)
			for _, a := range s.Assigns {
				fmt.Fprintf(c.OutOrStdout(), "  assign %s\n", a)
			}
			for _, u := range s.Uses {
				fmt.Fprintf(c.OutOrStdout(), "  use    %s\n", u)
			}
		}
	}
	if len(an.WholeReads)+len(an.WholeWrites) > 0 {
		fmt.Fprintf(c.OutOrStdout(), "\nwhole document: %d reads, %d writes\n", len(an.WholeReads), len(an.WholeWrites))
	}
	return nil
}
