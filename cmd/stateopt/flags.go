package main

import (
	"fmt"

	"github.com/spf13/pflag"
)

type flagName string

const (
	flagAddr          flagName = "addr"
	flagConfig        flagName = "config"
	flagFormat        flagName = "format"
	flagInput         flagName = "input"
	flagInputFile     flagName = "input-file"
	flagJSON          flagName = "json"
	flagLogLevel      flagName = "log-level"
	flagNoChoices     flagName = "no-choices"
	flagNoNoOps       flagName = "no-noops"
	flagNoUnreachable flagName = "no-unreachable"
	flagNoVariables   flagName = "no-variables"
	flagOutFile       flagName = "output"
	flagTrace         flagName = "trace"
	flagVerbose       flagName = "verbose"
)

func addGlobalFlags(f *pflag.FlagSet) {
	f.StringP(string(flagConfig), "c", "", "configuration file (.json, .yaml or .yml)")
	f.String(string(flagLogLevel), "info", "lowest event level to log: trace, debug, info, warn or error")
	f.BoolP(string(flagVerbose), "v", false, "log every optimizer and simulator event (same as --log-level debug)")
}

func addOutFlags(f *pflag.FlagSet) {
	f.StringP(string(flagOutFile), "o", "", "output file, or - for stdout")
	f.String(string(flagFormat), "", "output format: json, yaml or proto (default: the input format)")
}

func addPassFlags(f *pflag.FlagSet) {
	f.Bool(string(flagNoVariables), false, "skip variable elimination")
	f.Bool(string(flagNoUnreachable), false, "skip the initial unreachable-state sweep")
	f.Bool(string(flagNoChoices), false, "skip choice-chain joining")
	f.Bool(string(flagNoNoOps), false, "skip no-op Pass removal")
}

func (f flagName) ensureAdded(cmd *Command) {
	if cmd.Flags().Lookup(string(f)) == nil {
		panic(fmt.Sprintf("command %q uses flag %q without adding it", cmd.Name(), f))
	}
}

func (f flagName) Bool(cmd *Command) bool {
	f.ensureAdded(cmd)
	v, _ := cmd.Flags().GetBool(string(f))
	return v
}

func (f flagName) String(cmd *Command) string {
	f.ensureAdded(cmd)
	v, _ := cmd.Flags().GetString(string(f))
	return v
}

func (f flagName) IsSet(cmd *Command) bool {
	f.ensureAdded(cmd)
	return cmd.Flags().Changed(string(f))
}
