package config

// OptimizeConfig selects the optimizer passes to run.
//
// Every pass defaults to enabled, so the toggles are *bool fields with a
// "Nil" suffix and accessors returning the default when unset. A partial
// configuration only needs to name the passes it disables:
//
//	partial := config.OptimizeConfig{RemoveNoOpStatesNil: config.Bool(false)}
//	cfg := config.DefaultOptimizeConfig()
//	cfg.Merge(&partial)
//	cfg.RemoveNoOpStates()          // false
//	cfg.JoinConsecutiveChoices()    // true
//
// The final unreachable-state sweep always runs; RemoveUnreachableStates
// only controls the sweep that runs before the other passes.
type OptimizeConfig struct {
	// OptimizeVariableAssignmentsNil enables variable elimination (default true)
	OptimizeVariableAssignmentsNil *bool `json:"optimize_variable_assignments,omitempty" yaml:"optimize_variable_assignments,omitempty"`

	// RemoveUnreachableStatesNil enables the initial reachability sweep (default true)
	RemoveUnreachableStatesNil *bool `json:"remove_unreachable_states,omitempty" yaml:"remove_unreachable_states,omitempty"`

	// JoinConsecutiveChoicesNil enables choice-chain joining (default true)
	JoinConsecutiveChoicesNil *bool `json:"join_consecutive_choices,omitempty" yaml:"join_consecutive_choices,omitempty"`

	// RemoveNoOpStatesNil enables no-op Pass removal (default true)
	RemoveNoOpStatesNil *bool `json:"remove_no_op_states,omitempty" yaml:"remove_no_op_states,omitempty"`

	// Observer names the registered observer receiving optimizer events
	Observer string `json:"observer,omitempty" yaml:"observer,omitempty"`
}

// DefaultOptimizeConfig returns a configuration with every pass enabled.
//
// Default values:
//   - All pass toggles: nil (enabled)
//   - Observer: "slog"
func DefaultOptimizeConfig() OptimizeConfig {
	return OptimizeConfig{
		Observer: "slog",
	}
}

// OptimizeVariableAssignments reports whether variable elimination runs.
func (c *OptimizeConfig) OptimizeVariableAssignments() bool {
	return boolOr(c.OptimizeVariableAssignmentsNil, true)
}

// RemoveUnreachableStates reports whether the initial reachability sweep runs.
func (c *OptimizeConfig) RemoveUnreachableStates() bool {
	return boolOr(c.RemoveUnreachableStatesNil, true)
}

// JoinConsecutiveChoices reports whether choice chains are joined.
func (c *OptimizeConfig) JoinConsecutiveChoices() bool {
	return boolOr(c.JoinConsecutiveChoicesNil, true)
}

// RemoveNoOpStates reports whether no-op Pass states are removed.
func (c *OptimizeConfig) RemoveNoOpStates() bool {
	return boolOr(c.RemoveNoOpStatesNil, true)
}

func (c *OptimizeConfig) Merge(source *OptimizeConfig) {
	if source.OptimizeVariableAssignmentsNil != nil {
		c.OptimizeVariableAssignmentsNil = source.OptimizeVariableAssignmentsNil
	}

	if source.RemoveUnreachableStatesNil != nil {
		c.RemoveUnreachableStatesNil = source.RemoveUnreachableStatesNil
	}

	if source.JoinConsecutiveChoicesNil != nil {
		c.JoinConsecutiveChoicesNil = source.JoinConsecutiveChoicesNil
	}

	if source.RemoveNoOpStatesNil != nil {
		c.RemoveNoOpStatesNil = source.RemoveNoOpStatesNil
	}

	if source.Observer != "" {
		c.Observer = source.Observer
	}
}

// Bool returns a pointer to v for populating *bool fields.
func Bool(v bool) *bool {
	return &v
}

func boolOr(v *bool, def bool) bool {
	if v == nil {
		return def
	}
	return *v
}
