package optimize_test

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"slices"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/tailored-agentic-units/stateopt/config"
	"github.com/tailored-agentic-units/stateopt/graph"
	"github.com/tailored-agentic-units/stateopt/observability"
	"github.com/tailored-agentic-units/stateopt/optimize"
	"github.com/tailored-agentic-units/stateopt/simulate"
)

func decode(t *testing.T, src string) graph.Machine {
	t.Helper()
	var m graph.Machine
	if err := json.Unmarshal([]byte(src), &m); err != nil {
		t.Fatalf("failed to decode machine: %v", err)
	}
	return m
}

func defaults() config.OptimizeConfig {
	cfg := config.DefaultOptimizeConfig()
	cfg.Observer = "noop"
	return cfg
}

// listHandler serves "fetch" with a fixed list and "double" by doubling a
// number. Other resources echo their input.
func listHandler() simulate.TaskHandler {
	return simulate.TaskFunc(func(ctx context.Context, resource string, input any) (any, error) {
		switch resource {
		case "fetch":
			return []any{1.0, 2.0, 3.0}, nil
		case "double":
			n, ok := input.(float64)
			if !ok {
				return nil, errors.New("not a number")
			}
			return n * 2, nil
		}
		return input, nil
	})
}

// assertEquivalent runs both machines on every input and requires the same
// output, or a failure from both.
func assertEquivalent(t *testing.T, orig, opt graph.Machine, handler simulate.TaskHandler, inputs ...any) {
	t.Helper()
	for _, in := range inputs {
		want, wantErr := simulate.Run(context.Background(), orig, in, handler)
		got, gotErr := simulate.Run(context.Background(), opt, in, handler)

		if (wantErr != nil) != (gotErr != nil) {
			t.Errorf("input %v: original error %v, optimized error %v", in, wantErr, gotErr)
			continue
		}
		if diff := cmp.Diff(want, got); diff != "" {
			t.Errorf("input %v: output mismatch (-original +optimized):\n%s", in, diff)
		}
	}
}

func TestOptimize_NoOpBetweenStates(t *testing.T) {
	m := decode(t, `{
	  "StartAt": "S1",
	  "States": {
	    "S1": {"Type": "Task", "Resource": "work", "Next": "S2"},
	    "S2": {"Type": "Pass", "Next": "S3"},
	    "S3": {"Type": "Succeed"}
	  }
	}`)

	out, err := optimize.Graph(m.StartAt, m.States, &config.OptimizeConfig{Observer: "noop"})
	if err != nil {
		t.Fatalf("Graph failed: %v", err)
	}

	want := graph.States{
		"S1": &graph.TaskState{Resource: "work", Next: "S3"},
		"S3": &graph.SucceedState{},
	}
	if diff := cmp.Diff(want, out); diff != "" {
		t.Errorf("states mismatch (-want +got):\n%s", diff)
	}
}

func TestGraph_Observer(t *testing.T) {
	rec := observability.NewRecorder()
	observability.RegisterObserver("slog", rec)
	t.Cleanup(func() { observability.UseSlog(slog.Default()) })

	m := decode(t, `{"StartAt": "A", "States": {"A": {"Type": "Pass", "Next": "B"}, "B": {"Type": "Succeed"}}}`)

	if _, err := optimize.Graph(m.StartAt, m.States, nil); err != nil {
		t.Fatalf("Graph failed: %v", err)
	}
	if n := len(rec.Events()); n != 0 {
		t.Errorf("default Graph call emitted %d events, want none", n)
	}

	if _, err := optimize.Graph(m.StartAt, m.States, &config.OptimizeConfig{Observer: "slog"}); err != nil {
		t.Fatalf("Graph failed: %v", err)
	}
	if len(rec.Filter(optimize.EventOptimizeComplete)) != 1 {
		t.Errorf("named observer should receive %s", optimize.EventOptimizeComplete)
	}
}

func TestOptimize_Pipeline(t *testing.T) {
	m := decode(t, `{
	  "StartAt": "Start",
	  "States": {
	    "Start": {"Type": "Task", "Resource": "init", "Next": "A"},
	    "A": {"Type": "Pass", "Result": "L", "ResultPath": "$.a", "Next": "Gap"},
	    "Gap": {"Type": "Pass", "Next": "B"},
	    "B": {"Type": "Pass", "InputPath": "$.a", "ResultPath": "$.b", "Next": "C"},
	    "C": {"Type": "Succeed", "OutputPath": "$.b"},
	    "Orphan": {"Type": "Pass", "End": true}
	  }
	}`)

	rec := observability.NewRecorder()
	o := optimize.NewWithObserver(defaults(), rec)

	res, err := o.Optimize(t.Context(), m.StartAt, m.States)
	if err != nil {
		t.Fatalf("Optimize failed: %v", err)
	}

	if res.RunID == "" {
		t.Error("RunID should be set")
	}
	if diff := cmp.Diff([]string{"A", "Gap", "Orphan"}, res.Removed); diff != "" {
		t.Errorf("removed mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"$.a"}, res.Eliminated); diff != "" {
		t.Errorf("eliminated mismatch (-want +got):\n%s", diff)
	}

	want := graph.States{
		"Start": &graph.TaskState{Resource: "init", Next: "B"},
		"B":     &graph.PassState{Result: "L", ResultPath: graph.PathOf("$.b"), Next: "C"},
		"C":     &graph.SucceedState{OutputPath: graph.PathOf("$.b")},
	}
	if diff := cmp.Diff(want, res.States); diff != "" {
		t.Errorf("states mismatch (-want +got):\n%s", diff)
	}

	types := rec.Types()
	if types[0] != optimize.EventOptimizeStart || types[len(types)-1] != optimize.EventOptimizeComplete {
		t.Errorf("events should open with %s and close with %s, got %v",
			optimize.EventOptimizeStart, optimize.EventOptimizeComplete, types)
	}

	var passes []string
	for _, e := range rec.Filter(optimize.EventOptimizePass) {
		passes = append(passes, e.Data["pass"].(string))
	}
	wantPasses := []string{
		optimize.PassRemoveUnreachable,
		optimize.PassJoinChoices,
		optimize.PassEliminate,
		optimize.PassRemoveNoOps,
		optimize.PassFinalSweep,
	}
	if diff := cmp.Diff(wantPasses, passes); diff != "" {
		t.Errorf("passes mismatch (-want +got):\n%s", diff)
	}

	var removedBy []string
	for _, e := range rec.Filter(optimize.EventStateRemoved) {
		removedBy = append(removedBy, e.Data["state"].(string)+"@"+e.Data["pass"].(string))
	}
	wantRemovedBy := []string{
		"Orphan@" + optimize.PassRemoveUnreachable,
		"A@" + optimize.PassEliminate,
		"Gap@" + optimize.PassRemoveNoOps,
	}
	if diff := cmp.Diff(wantRemovedBy, removedBy); diff != "" {
		t.Errorf("removal events mismatch (-want +got):\n%s", diff)
	}

	if n := len(rec.Filter(optimize.EventVariableEliminated)); n != 1 {
		t.Errorf("got %d elimination events, want 1", n)
	}

	if _, ok := m.States["Gap"]; !ok {
		t.Error("input graph was modified")
	}
	assertEquivalent(t, m, graph.Machine{StartAt: m.StartAt, States: res.States}, nil, map[string]any{"k": "v"})
}

func TestOptimize_Toggles(t *testing.T) {
	def := `{
	  "StartAt": "Start",
	  "States": {
	    "Start": {"Type": "Task", "Resource": "init", "Next": "A"},
	    "A": {"Type": "Pass", "Result": "L", "ResultPath": "$.a", "Next": "Gap"},
	    "Gap": {"Type": "Pass", "Next": "B"},
	    "B": {"Type": "Pass", "InputPath": "$.a", "ResultPath": "$.b", "Next": "C"},
	    "C": {"Type": "Succeed", "OutputPath": "$.b"},
	    "Orphan": {"Type": "Pass", "End": true}
	  }
	}`

	tests := []struct {
		name    string
		partial config.OptimizeConfig
		want    []string
	}{
		{
			name:    "all passes",
			partial: config.OptimizeConfig{},
			want:    []string{"B", "C", "Start"},
		},
		{
			name:    "no elimination",
			partial: config.OptimizeConfig{OptimizeVariableAssignmentsNil: config.Bool(false)},
			want:    []string{"A", "B", "C", "Start"},
		},
		{
			name:    "no no-op removal",
			partial: config.OptimizeConfig{RemoveNoOpStatesNil: config.Bool(false)},
			want:    []string{"B", "C", "Gap", "Start"},
		},
		{
			name: "final sweep only",
			partial: config.OptimizeConfig{
				OptimizeVariableAssignmentsNil: config.Bool(false),
				RemoveUnreachableStatesNil:     config.Bool(false),
				JoinConsecutiveChoicesNil:      config.Bool(false),
				RemoveNoOpStatesNil:            config.Bool(false),
			},
			want: []string{"A", "B", "C", "Gap", "Start"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := decode(t, def)
			partial := tt.partial
			partial.Observer = "noop"

			out, err := optimize.Graph(m.StartAt, m.States, &partial)
			if err != nil {
				t.Fatalf("Graph failed: %v", err)
			}

			var names []string
			for name := range out {
				names = append(names, name)
			}
			slices.Sort(names)
			if diff := cmp.Diff(tt.want, names); diff != "" {
				t.Errorf("states mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestOptimize_NestedMachines(t *testing.T) {
	m := decode(t, `{
	  "StartAt": "Each",
	  "States": {
	    "Each": {
	      "Type": "Map",
	      "Iterator": {
	        "StartAt": "Work",
	        "States": {
	          "Work": {"Type": "Task", "Resource": "double", "Next": "Skip"},
	          "Skip": {"Type": "Pass", "Next": "Done"},
	          "Done": {"Type": "Succeed"}
	        }
	      },
	      "Next": "Both"
	    },
	    "Both": {
	      "Type": "Parallel",
	      "Branches": [
	        {"StartAt": "L", "States": {"L": {"Type": "Pass", "Next": "LEnd"}, "LEnd": {"Type": "Succeed"}}},
	        {"StartAt": "R", "States": {"R": {"Type": "Task", "Resource": "echo", "Next": "RSkip"}, "RSkip": {"Type": "Pass", "Next": "REnd"}, "REnd": {"Type": "Succeed"}}}
	      ],
	      "End": true
	    }
	  }
	}`)

	o := optimize.NewWithObserver(defaults(), nil)
	opt, res, err := o.OptimizeMachine(t.Context(), m)
	if err != nil {
		t.Fatalf("OptimizeMachine failed: %v", err)
	}

	if diff := cmp.Diff([]string{"Both[1]/RSkip", "Each/Skip"}, res.Removed); diff != "" {
		t.Errorf("removed mismatch (-want +got):\n%s", diff)
	}

	it := opt.States["Each"].(*graph.MapState).Iterator
	if next := it.States["Work"].(*graph.TaskState).Next; next != "Done" {
		t.Errorf("Work.Next = %q, want Done", next)
	}
	branches := opt.States["Both"].(*graph.ParallelState).Branches
	if _, ok := branches[0].States["L"]; !ok {
		t.Error("start state of a branch should be kept")
	}
	if err := opt.Validate(); err != nil {
		t.Errorf("optimized machine is invalid: %v", err)
	}

	if _, ok := m.States["Each"].(*graph.MapState).Iterator.States["Skip"]; !ok {
		t.Error("input iterator was modified")
	}
	assertEquivalent(t, m, opt, listHandler(), []any{1.0, 2.0})
}

func TestOptimize_Behavior(t *testing.T) {
	m := decode(t, orderFlow)

	handler := simulate.Resources{
		"svc": simulate.TaskFunc(func(ctx context.Context, resource string, input any) (any, error) {
			req := input.(map[string]any)
			return map[string]any{"ok": req["label"] == "x", "total": req["sum"]}, nil
		}),
	}

	o := optimize.NewWithObserver(defaults(), nil)
	opt, res, err := o.OptimizeMachine(t.Context(), m)
	if err != nil {
		t.Fatalf("OptimizeMachine failed: %v", err)
	}

	if diff := cmp.Diff([]string{"$.cfg"}, res.Eliminated); diff != "" {
		t.Errorf("eliminated mismatch (-want +got):\n%s", diff)
	}
	copyState := opt.States["Copy"].(*graph.PassState)
	if copyState.Result != 1.0 || copyState.InputPath != nil {
		t.Errorf("Copy = {Result: %v, InputPath: %v}, want the literal 1", copyState.Result, copyState.InputPath)
	}
	call := opt.States["Call"].(*graph.TaskState)
	if !call.Catch[0].ResultPath.IsNull() {
		t.Errorf("unread catch result should be discarded, got %v", call.Catch[0].ResultPath)
	}

	assertEquivalent(t, m, opt, handler, map[string]any{}, map[string]any{"n": 9.0})
}

func TestOptimize_InvalidInput(t *testing.T) {
	states := graph.States{
		"A": &graph.PassState{Next: "Missing"},
	}

	o := optimize.NewWithObserver(defaults(), nil)
	if _, err := o.Optimize(t.Context(), "A", states); !errors.Is(err, graph.ErrMissingState) {
		t.Errorf("got error %v, want %v", err, graph.ErrMissingState)
	}
}

func TestOptimize_Cancelled(t *testing.T) {
	m := decode(t, choiceChain)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	o := optimize.NewWithObserver(defaults(), nil)
	if _, err := o.Optimize(ctx, m.StartAt, m.States); !errors.Is(err, context.Canceled) {
		t.Errorf("got error %v, want %v", err, context.Canceled)
	}
}

func TestNew_UnknownObserver(t *testing.T) {
	cfg := config.DefaultOptimizeConfig()
	cfg.Observer = "missing"

	if _, err := optimize.New(cfg); err == nil {
		t.Error("expected error for unknown observer")
	}
}
