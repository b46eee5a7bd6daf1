package server_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http/httptest"
	"testing"

	"connectrpc.com/connect"
	"github.com/google/go-cmp/cmp"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/tailored-agentic-units/stateopt/config"
	"github.com/tailored-agentic-units/stateopt/graph"
	"github.com/tailored-agentic-units/stateopt/observability"
	"github.com/tailored-agentic-units/stateopt/optimize"
	"github.com/tailored-agentic-units/stateopt/server"
	"github.com/tailored-agentic-units/stateopt/simulate"
)

const pipeline = `{
  "StartAt": "S1",
  "States": {
    "S1": {"Type": "Task", "Resource": "work", "Next": "S2"},
    "S2": {"Type": "Pass", "Next": "S3"},
    "S3": {"Type": "Succeed"}
  }
}`

func decode(t *testing.T, src string) graph.Machine {
	t.Helper()
	var m graph.Machine
	if err := json.Unmarshal([]byte(src), &m); err != nil {
		t.Fatalf("failed to decode machine: %v", err)
	}
	return m
}

func newTestServer(t *testing.T, cfg config.Config, opts ...server.Option) *httptest.Server {
	t.Helper()
	opts = append([]server.Option{server.WithObserver(observability.NoOpObserver{})}, opts...)
	srv, err := server.New(cfg, opts...)
	if err != nil {
		t.Fatalf("failed to create server: %v", err)
	}
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return ts
}

func TestOptimize(t *testing.T) {
	ts := newTestServer(t, config.DefaultConfig())
	client := server.NewClient(ts.Client(), ts.URL)

	res, err := client.Optimize(context.Background(), decode(t, pipeline), nil)
	if err != nil {
		t.Fatalf("Optimize failed: %v", err)
	}

	if res.RunID == "" {
		t.Error("RunID should be set")
	}
	if diff := cmp.Diff([]string{"S2"}, res.Removed); diff != "" {
		t.Errorf("removed mismatch (-want +got):\n%s", diff)
	}
	want := graph.States{
		"S1": &graph.TaskState{Resource: "work", Next: "S3"},
		"S3": &graph.SucceedState{},
	}
	if diff := cmp.Diff(want, res.Machine.States); diff != "" {
		t.Errorf("states mismatch (-want +got):\n%s", diff)
	}

	if len(res.Events) < 2 {
		t.Fatalf("got %d events, want at least 2", len(res.Events))
	}
	first, last := res.Events[0], res.Events[len(res.Events)-1]
	if first.Type != string(optimize.EventOptimizeStart) || last.Type != string(optimize.EventOptimizeComplete) {
		t.Errorf("events should open with %s and close with %s, got %s and %s",
			optimize.EventOptimizeStart, optimize.EventOptimizeComplete, first.Type, last.Type)
	}
	if last.Level != observability.LevelInfo {
		t.Errorf("complete event level = %s, want %s", last.Level, observability.LevelInfo)
	}
}

func TestOptimize_Options(t *testing.T) {
	ts := newTestServer(t, config.DefaultConfig())
	client := server.NewClient(ts.Client(), ts.URL)

	opts := &config.OptimizeConfig{RemoveNoOpStatesNil: config.Bool(false)}
	res, err := client.Optimize(context.Background(), decode(t, pipeline), opts)
	if err != nil {
		t.Fatalf("Optimize failed: %v", err)
	}

	if len(res.Removed) != 0 {
		t.Errorf("removed %v, want none", res.Removed)
	}
	if _, ok := res.Machine.States["S2"]; !ok {
		t.Error("S2 should be kept when no-op removal is disabled")
	}
}

func TestOptimize_InvalidMachine(t *testing.T) {
	ts := newTestServer(t, config.DefaultConfig())
	client := server.NewClient(ts.Client(), ts.URL)

	m := graph.Machine{StartAt: "A", States: graph.States{"A": &graph.PassState{Next: "Missing"}}}
	_, err := client.Optimize(context.Background(), m, nil)

	if code := connect.CodeOf(err); code != connect.CodeInvalidArgument {
		t.Errorf("got code %v, want %v", code, connect.CodeInvalidArgument)
	}
}

func TestAnalyze(t *testing.T) {
	ts := newTestServer(t, config.DefaultConfig())
	client := server.NewClient(ts.Client(), ts.URL)

	m := decode(t, `{
	  "StartAt": "Start",
	  "States": {
	    "Start": {"Type": "Pass", "Result": "L", "ResultPath": "$.a", "Next": "Use"},
	    "Use": {"Type": "Pass", "InputPath": "$.a", "ResultPath": "$.b", "Next": "Done"},
	    "Done": {"Type": "Succeed", "OutputPath": "$.b"}
	  }
	}`)

	roots, err := client.Analyze(context.Background(), m)
	if err != nil {
		t.Fatalf("Analyze failed: %v", err)
	}

	type row struct {
		Root      string
		Assigns   int
		Uses      int
		Candidate bool
	}
	var got []row
	for _, r := range roots {
		got = append(got, row{r.Root, len(r.Assigns), len(r.Uses), r.Candidate})
	}
	want := []row{
		{"$.a", 1, 1, true},
		{"$.b", 1, 1, true},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("roots mismatch (-want +got):\n%s", diff)
	}
}

func TestSimulate(t *testing.T) {
	ts := newTestServer(t, config.DefaultConfig())
	client := server.NewClient(ts.Client(), ts.URL)

	res, err := client.Simulate(context.Background(), decode(t, pipeline), map[string]any{"k": "v"})
	if err != nil {
		t.Fatalf("Simulate failed: %v", err)
	}

	if diff := cmp.Diff(map[string]any{"k": "v"}, res.Output); diff != "" {
		t.Errorf("output mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"S1", "S2", "S3"}, res.Path); diff != "" {
		t.Errorf("path mismatch (-want +got):\n%s", diff)
	}
	if res.Transitions != 3 {
		t.Errorf("Transitions = %d, want 3", res.Transitions)
	}
}

func TestSimulate_Errors(t *testing.T) {
	loop := `{"StartAt": "Spin", "States": {"Spin": {"Type": "Pass", "Next": "Spin"}}}`
	fail := `{"StartAt": "Boom", "States": {"Boom": {"Type": "Fail", "Error": "Boom"}}}`

	cfg := config.DefaultConfig()
	cfg.Simulate.MaxTransitions = 5
	ts := newTestServer(t, cfg)
	client := server.NewClient(ts.Client(), ts.URL)

	tests := []struct {
		name string
		def  string
		want connect.Code
	}{
		{"machine error", fail, connect.CodeFailedPrecondition},
		{"transition budget", loop, connect.CodeResourceExhausted},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := client.Simulate(context.Background(), decode(t, tt.def), nil)
			if code := connect.CodeOf(err); code != tt.want {
				t.Errorf("got code %v (%v), want %v", code, err, tt.want)
			}
		})
	}
}

func TestSimulate_TaskHandler(t *testing.T) {
	handler := simulate.TaskFunc(func(ctx context.Context, resource string, input any) (any, error) {
		return "done", nil
	})
	ts := newTestServer(t, config.DefaultConfig(), server.WithTaskHandler(handler))
	client := server.NewClient(ts.Client(), ts.URL)

	res, err := client.Simulate(context.Background(), decode(t, pipeline), map[string]any{})
	if err != nil {
		t.Fatalf("Simulate failed: %v", err)
	}
	if res.Output != "done" {
		t.Errorf("got %v, want done", res.Output)
	}
}

func TestMissingMachine(t *testing.T) {
	ts := newTestServer(t, config.DefaultConfig())

	for _, procedure := range []string{server.OptimizeProcedure, server.AnalyzeProcedure, server.SimulateProcedure} {
		t.Run(procedure, func(t *testing.T) {
			c := connect.NewClient[structpb.Struct, structpb.Struct](ts.Client(), ts.URL+procedure)
			_, err := c.CallUnary(context.Background(), connect.NewRequest(&structpb.Struct{}))
			if code := connect.CodeOf(err); code != connect.CodeInvalidArgument {
				t.Errorf("got code %v, want %v", code, connect.CodeInvalidArgument)
			}
		})
	}
}

func TestNew_UnknownObserver(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Optimize.Observer = "missing"

	if _, err := server.New(cfg); err == nil {
		t.Error("expected error for unknown observer")
	}
}

func TestListenAndServe_Shutdown(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Server.Addr = "127.0.0.1:0"
	srv, err := server.New(cfg, server.WithObserver(observability.NoOpObserver{}))
	if err != nil {
		t.Fatalf("failed to create server: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := srv.ListenAndServe(ctx); err != nil && !errors.Is(err, context.Canceled) {
		t.Errorf("ListenAndServe returned %v", err)
	}
}
