package config_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/tailored-agentic-units/stateopt/config"
)

func TestOptimizeConfig_Defaults(t *testing.T) {
	cfg := config.DefaultOptimizeConfig()

	if cfg.Observer != "slog" {
		t.Errorf("DefaultOptimizeConfig().Observer = %v, want %v", cfg.Observer, "slog")
	}
	if !cfg.OptimizeVariableAssignments() || !cfg.RemoveUnreachableStates() ||
		!cfg.JoinConsecutiveChoices() || !cfg.RemoveNoOpStates() {
		t.Error("expected every pass enabled by default")
	}
}

func TestOptimizeConfig_Merge(t *testing.T) {
	tests := []struct {
		name    string
		partial config.OptimizeConfig
		check   func(t *testing.T, cfg config.OptimizeConfig)
	}{
		{
			name:    "empty partial keeps defaults",
			partial: config.OptimizeConfig{},
			check: func(t *testing.T, cfg config.OptimizeConfig) {
				if !cfg.RemoveNoOpStates() || cfg.Observer != "slog" {
					t.Errorf("defaults changed: %+v", cfg)
				}
			},
		},
		{
			name:    "disable one pass",
			partial: config.OptimizeConfig{RemoveNoOpStatesNil: config.Bool(false)},
			check: func(t *testing.T, cfg config.OptimizeConfig) {
				if cfg.RemoveNoOpStates() {
					t.Error("expected no-op removal disabled")
				}
				if !cfg.JoinConsecutiveChoices() || !cfg.OptimizeVariableAssignments() || !cfg.RemoveUnreachableStates() {
					t.Error("expected other passes enabled")
				}
			},
		},
		{
			name: "explicit true is kept",
			partial: config.OptimizeConfig{
				JoinConsecutiveChoicesNil: config.Bool(true),
				Observer:                  "noop",
			},
			check: func(t *testing.T, cfg config.OptimizeConfig) {
				if !cfg.JoinConsecutiveChoices() {
					t.Error("expected choices enabled")
				}
				if cfg.Observer != "noop" {
					t.Errorf("Observer = %v, want noop", cfg.Observer)
				}
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := config.DefaultOptimizeConfig()
			cfg.Merge(&tt.partial)
			tt.check(t, cfg)
		})
	}
}

func TestOptimizeConfig_MergeOverridesEarlierFalse(t *testing.T) {
	cfg := config.DefaultOptimizeConfig()
	cfg.Merge(&config.OptimizeConfig{OptimizeVariableAssignmentsNil: config.Bool(false)})
	cfg.Merge(&config.OptimizeConfig{OptimizeVariableAssignmentsNil: config.Bool(true)})

	if !cfg.OptimizeVariableAssignments() {
		t.Error("expected later explicit true to win")
	}
}

func TestSimulateConfig_Merge(t *testing.T) {
	cfg := config.DefaultSimulateConfig()
	if cfg.MaxTransitions != 10000 {
		t.Errorf("MaxTransitions = %d, want 10000", cfg.MaxTransitions)
	}

	cfg.Merge(&config.SimulateConfig{})
	if cfg.MaxTransitions != 10000 {
		t.Error("zero MaxTransitions should not override")
	}

	cfg.Merge(&config.SimulateConfig{MaxTransitions: 50, Observer: "noop"})
	if cfg.MaxTransitions != 50 || cfg.Observer != "noop" {
		t.Errorf("unexpected merge result: %+v", cfg)
	}
}

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("failed to write %s: %v", name, err)
	}
	return path
}

func TestLoad(t *testing.T) {
	tests := []struct {
		name    string
		file    string
		content string
	}{
		{
			name: "yaml",
			file: "stateopt.yaml",
			content: `optimize:
  remove_no_op_states: false
  observer: noop
simulate:
  max_transitions: 500
server:
  addr: ":9090"
`,
		},
		{
			name: "json",
			file: "stateopt.json",
			content: `{
  "optimize": {"remove_no_op_states": false, "observer": "noop"},
  "simulate": {"max_transitions": 500},
  "server": {"addr": ":9090"}
}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := config.Load(writeFile(t, tt.file, tt.content))
			if err != nil {
				t.Fatalf("Load() error = %v", err)
			}

			if cfg.Optimize.RemoveNoOpStates() {
				t.Error("expected no-op removal disabled")
			}
			if !cfg.Optimize.JoinConsecutiveChoices() {
				t.Error("expected unset pass to default to enabled")
			}
			if cfg.Optimize.Observer != "noop" {
				t.Errorf("Optimize.Observer = %v, want noop", cfg.Optimize.Observer)
			}
			if cfg.Simulate.MaxTransitions != 500 {
				t.Errorf("Simulate.MaxTransitions = %d, want 500", cfg.Simulate.MaxTransitions)
			}
			if cfg.Simulate.Observer != "slog" {
				t.Errorf("Simulate.Observer = %v, want default slog", cfg.Simulate.Observer)
			}
			if cfg.Server.Addr != ":9090" {
				t.Errorf("Server.Addr = %v, want :9090", cfg.Server.Addr)
			}
		})
	}
}

func TestLoad_Errors(t *testing.T) {
	if _, err := config.Load(filepath.Join(t.TempDir(), "missing.json")); err == nil {
		t.Error("expected error for missing file")
	}
	if _, err := config.Load(writeFile(t, "bad.json", "{")); err == nil {
		t.Error("expected error for malformed json")
	}
	if _, err := config.Load(writeFile(t, "bad.yml", "optimize: [")); err == nil {
		t.Error("expected error for malformed yaml")
	}
}
