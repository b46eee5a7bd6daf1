package jsonpath_test

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/tailored-agentic-units/stateopt/jsonpath"
)

func sampleDocument() map[string]any {
	return map[string]any{
		"a": map[string]any{
			"b": []any{1.0, 2.0, 3.0},
		},
		"items": []any{
			map[string]any{"p": 5.0, "name": "small"},
			map[string]any{"p": 15.0, "name": "large"},
		},
		"target": 15.0,
	}
}

func TestGet(t *testing.T) {
	tests := []struct {
		path string
		want any
	}{
		{"$", sampleDocument()},
		{"$.a.b[1]", 2.0},
		{"$.a.b[*]", []any{1.0, 2.0, 3.0}},
		{"$.a.b[0:2]", []any{1.0, 2.0}},
		{"$.a.b[-1:]", []any{3.0}},
		{"$.items[*].name", []any{"small", "large"}},
		{"$.items[?(@.p > 10)].name", []any{"large"}},
		{"$.items[?(@.p == $.target)].p", []any{15.0}},
		{"$.items[?(@.name == 'small')].p", []any{5.0}},
		{"$.items[?(@.missing)]", []any{}},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			got, err := jsonpath.Get(sampleDocument(), tt.path)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("Get mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestGet_Missing(t *testing.T) {
	for _, path := range []string{"$.missing", "$.a.b[7]", "$.target.x"} {
		t.Run(path, func(t *testing.T) {
			_, err := jsonpath.Get(sampleDocument(), path)
			if !errors.Is(err, jsonpath.ErrPathNotFound) {
				t.Errorf("expected ErrPathNotFound, got %v", err)
			}
		})
	}
}

func TestSet(t *testing.T) {
	doc := map[string]any{"a": 1.0, "l": []any{1.0, 2.0}}

	got, err := jsonpath.Set(doc, "$.b.c", 2.0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := map[string]any{
		"a": 1.0,
		"l": []any{1.0, 2.0},
		"b": map[string]any{"c": 2.0},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Set mismatch (-want +got):\n%s", diff)
	}
	if _, ok := doc["b"]; ok {
		t.Error("Set modified its input")
	}

	got, err = jsonpath.Set(doc, "$.l[1]", "x")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if diff := cmp.Diff([]any{1.0, "x"}, got.(map[string]any)["l"]); diff != "" {
		t.Errorf("Set index mismatch (-want +got):\n%s", diff)
	}
	if doc["l"].([]any)[1] != 2.0 {
		t.Error("Set modified the input array")
	}

	got, err = jsonpath.Set(doc, "$", "replaced")
	if err != nil || got != "replaced" {
		t.Errorf("Set($) = %v, %v", got, err)
	}
}

func TestSet_Errors(t *testing.T) {
	doc := map[string]any{"a": 1.0, "l": []any{1.0}}
	tests := []struct {
		path string
		want error
	}{
		{"$.a.x", jsonpath.ErrTypeMismatch},
		{"$.a[0]", jsonpath.ErrTypeMismatch},
		{"$.l[5]", jsonpath.ErrPathNotFound},
		{"$.l[*]", jsonpath.ErrIndefinitePath},
		{"a", jsonpath.ErrNotReference},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			_, err := jsonpath.Set(doc, tt.path, 1.0)
			if !errors.Is(err, tt.want) {
				t.Errorf("expected %v, got %v", tt.want, err)
			}
		})
	}
}
