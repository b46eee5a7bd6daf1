package simulate_test

import (
	"context"
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/uuid"

	"github.com/tailored-agentic-units/stateopt/graph"
	"github.com/tailored-agentic-units/stateopt/simulate"
)

// evalExpr runs a Pass state whose payload holds expr and returns the
// value it produced.
func evalExpr(expr string, input any) (any, error) {
	m := single(&graph.PassState{
		Parameters: map[string]any{"v.$": expr},
		OutputPath: graph.PathOf("$.v"),
		End:        true,
	})
	return simulate.Run(context.Background(), m, input, nil)
}

func TestIntrinsics(t *testing.T) {
	input := map[string]any{
		"name": "x",
		"n":    3.0,
		"list": []any{1.0, 2.0},
		"obj":  map[string]any{"a": 1.0},
		"str":  `{"a":1}`,
	}

	tests := []struct {
		name string
		expr string
		want any
	}{
		{"format", "States.Format('{} is {}', $.name, $.n)", "x is 3"},
		{"format escaped braces", `States.Format('\{\} {}', 'x')`, "{} x"},
		{"format quote", `States.Format('it\'s {}', $.name)`, "it's x"},
		{"array", "States.Array(1, 'a', $.n)", []any{1.0, "a", 3.0}},
		{"array empty", "States.Array()", []any{}},
		{"array length", "States.ArrayLength($.list)", 2.0},
		{"array get item", "States.ArrayGetItem($.list, 1)", 2.0},
		{"array contains", "States.ArrayContains($.list, 2)", true},
		{"array contains missing", "States.ArrayContains($.list, 'a')", false},
		{"json to string", "States.JsonToString($.obj)", `{"a":1}`},
		{"string to json", "States.StringToJson($.str)", map[string]any{"a": 1.0}},
		{"math add", "States.MathAdd($.n, -1)", 2.0},
		{"string split", "States.StringSplit('a,b,,c', ',')", []any{"a", "b", "c"}},
		{"nested call", "States.ArrayLength(States.Array(1, 2, 3))", 3.0},
		{"path with brackets", "States.ArrayGetItem($['list'], 0)", 1.0},
		{"context argument", "States.Format('in {}', $$.State.Name)", "in S"},
		{"path", "$.obj.a", 1.0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := evalExpr(tt.expr, input)
			if err != nil {
				t.Fatalf("Run failed: %v", err)
			}
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("result mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestIntrinsics_UUID(t *testing.T) {
	got, err := evalExpr("States.UUID()", map[string]any{})
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	s, ok := got.(string)
	if !ok {
		t.Fatalf("got %T, want string", got)
	}
	if _, err := uuid.Parse(s); err != nil {
		t.Errorf("%q is not a UUID: %v", s, err)
	}
}

func TestIntrinsics_Errors(t *testing.T) {
	tests := []struct {
		name string
		expr string
		want string
	}{
		{"index out of range", "States.ArrayGetItem($.list, 5)", simulate.ErrorIntrinsicFailed},
		{"unknown function", "States.Reverse($.list)", simulate.ErrorIntrinsicFailed},
		{"wrong argument count", "States.ArrayLength($.list, 1)", simulate.ErrorIntrinsicFailed},
		{"too few format arguments", "States.Format('{} {}', 'a')", simulate.ErrorIntrinsicFailed},
		{"not a number", "States.MathAdd('a', 1)", simulate.ErrorIntrinsicFailed},
		{"unterminated string", "States.Format('abc)", simulate.ErrorIntrinsicFailed},
		{"trailing text", "States.UUID() extra", simulate.ErrorIntrinsicFailed},
		{"missing path", "States.ArrayLength($.none)", simulate.ErrorRuntime},
	}

	input := map[string]any{"list": []any{1.0}}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := evalExpr(tt.expr, input)

			var se *simulate.StatesError
			if !errors.As(err, &se) {
				t.Fatalf("got error %v, want *StatesError", err)
			}
			if se.Name != tt.want {
				t.Errorf("got %s, want %s", se.Name, tt.want)
			}
		})
	}
}
