package config

// SimulateConfig controls the reference interpreter.
type SimulateConfig struct {
	// MaxTransitions limits state transitions per run to stop runaway loops
	MaxTransitions int `json:"max_transitions,omitempty" yaml:"max_transitions,omitempty"`

	// Observer names the registered observer receiving simulator events
	Observer string `json:"observer,omitempty" yaml:"observer,omitempty"`
}

// DefaultSimulateConfig returns interpreter defaults.
//
// Default values:
//   - MaxTransitions: 10000
//   - Observer: "slog"
func DefaultSimulateConfig() SimulateConfig {
	return SimulateConfig{
		MaxTransitions: 10000,
		Observer:       "slog",
	}
}

func (c *SimulateConfig) Merge(source *SimulateConfig) {
	if source.MaxTransitions > 0 {
		c.MaxTransitions = source.MaxTransitions
	}

	if source.Observer != "" {
		c.Observer = source.Observer
	}
}
