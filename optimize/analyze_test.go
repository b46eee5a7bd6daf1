package optimize_test

import (
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/tailored-agentic-units/stateopt/optimize"
)

const orderFlow = `{
  "StartAt": "Init",
  "States": {
    "Init": {"Type": "Pass", "Result": {"n": 1}, "ResultPath": "$.cfg", "Next": "Copy"},
    "Copy": {"Type": "Pass", "InputPath": "$.cfg.n", "ResultPath": "$.n", "Next": "Build"},
    "Build": {
      "Type": "Pass",
      "Parameters": {"count.$": "$.n", "label": "x", "sum.$": "States.MathAdd($.n, 1)"},
      "ResultPath": "$.req",
      "Next": "Call"
    },
    "Call": {
      "Type": "Task",
      "Resource": "svc",
      "InputPath": "$.req",
      "ResultPath": "$.resp",
      "Catch": [{"ErrorEquals": ["States.ALL"], "ResultPath": "$.err", "Next": "Failed"}],
      "Next": "Check"
    },
    "Check": {
      "Type": "Choice",
      "Choices": [{"Variable": "$.resp.ok", "BooleanEquals": true, "Next": "Done"}],
      "Default": "Failed"
    },
    "Done": {"Type": "Succeed", "OutputPath": "$.resp"},
    "Failed": {"Type": "Fail", "Error": "CallFailed"}
  }
}`

type usageRow struct {
	Kind  string
	State string
	Read  string
	Write string
}

func rows(usages []*optimize.Usage) []usageRow {
	out := make([]usageRow, len(usages))
	for i, u := range usages {
		out[i] = usageRow{Kind: u.Kind.String(), State: u.State, Read: u.Read, Write: u.Write}
	}
	return out
}

func TestAnalyze_Usages(t *testing.T) {
	m := decode(t, orderFlow)

	an, err := optimize.Analyze(m.StartAt, m.States)
	if err != nil {
		t.Fatalf("Analyze failed: %v", err)
	}

	var order []string
	for _, e := range an.Order {
		order = append(order, e.Name)
	}
	wantOrder := []string{"Init", "Copy", "Build", "Call", "Check", "Failed", "Done"}
	if diff := cmp.Diff(wantOrder, order); diff != "" {
		t.Errorf("order mismatch (-want +got):\n%s", diff)
	}

	want := []usageRow{
		{"LiteralAssignment", "Init", "", "$.cfg"},
		{"Assignment", "Copy", "$.cfg.n", "$.n"},
		{"PropertyAssignment", "Build", "$.n", "$.req.count"},
		{"LiteralPropAssignment", "Build", "", "$.req.label"},
		{"Intrinsic", "Build", "$.n", "$.req.sum"},
		{"StateInput", "Call", "$.req", ""},
		{"StateOutput", "Call", "", "$.resp"},
		{"StateOutput", "Call", "", "$.err"},
		{"Condition", "Check", "$.resp.ok", ""},
		{"ReturnUsage", "Done", "$.resp", ""},
	}
	if diff := cmp.Diff(want, rows(an.Usages)); diff != "" {
		t.Errorf("usages mismatch (-want +got):\n%s", diff)
	}

	if len(an.WholeReads) != 0 || len(an.WholeWrites) != 0 {
		t.Errorf("got %d whole reads and %d whole writes, want none", len(an.WholeReads), len(an.WholeWrites))
	}
}

func TestAnalyze_FilteredInput(t *testing.T) {
	m := decode(t, `{
	  "StartAt": "A",
	  "States": {
	    "A": {"Type": "Pass", "Result": [{"v": 2}], "ResultPath": "$.a", "Next": "B"},
	    "B": {"Type": "Pass", "InputPath": "$.a[?(@.v > 1)]", "ResultPath": "$.b", "Next": "C"},
	    "C": {"Type": "Succeed", "OutputPath": "$.b"}
	  }
	}`)

	an, err := optimize.Analyze(m.StartAt, m.States)
	if err != nil {
		t.Fatalf("Analyze failed: %v", err)
	}

	var got []usageRow
	for _, r := range rows(an.Usages) {
		if r.State == "B" && r.Read == "$.a[?(@.v > 1)]" {
			got = append(got, r)
		}
	}
	if len(got) != 1 || got[0].Kind != "FilterPropAssignment" {
		t.Errorf("filtered input of B = %v, want one FilterPropAssignment", got)
	}
}

func TestAnalyze_Summary(t *testing.T) {
	m := decode(t, orderFlow)

	an, err := optimize.Analyze(m.StartAt, m.States)
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
	for _, s := range an.Summary() {
		got = append(got, row{s.Root, len(s.Assigns), len(s.Uses), s.Candidate})
	}

	want := []row{
		{"$.cfg", 1, 1, true},
		{"$.err", 1, 0, false},
		{"$.n", 1, 2, false},
		{"$.req", 3, 1, false},
		{"$.resp", 1, 2, false},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("summary mismatch (-want +got):\n%s", diff)
	}
}

func TestAnalyze_WholeDocument(t *testing.T) {
	m := decode(t, `{
	  "StartAt": "Call",
	  "States": {
	    "Call": {"Type": "Task", "Resource": "svc", "Next": "Done"},
	    "Done": {"Type": "Succeed"}
	  }
	}`)

	an, err := optimize.Analyze(m.StartAt, m.States)
	if err != nil {
		t.Fatalf("Analyze failed: %v", err)
	}

	if len(an.Roots) != 0 {
		t.Errorf("got roots %v, want none", an.Roots)
	}
	wantReads := []usageRow{
		{"StateInput", "Call", "$", ""},
		{"ReturnUsage", "Done", "$", ""},
	}
	if diff := cmp.Diff(wantReads, rows(an.WholeReads)); diff != "" {
		t.Errorf("whole reads mismatch (-want +got):\n%s", diff)
	}
	wantWrites := []usageRow{{"StateOutput", "Call", "", "$"}}
	if diff := cmp.Diff(wantWrites, rows(an.WholeWrites)); diff != "" {
		t.Errorf("whole writes mismatch (-want +got):\n%s", diff)
	}
}

func TestAnalyze_WaitAndMap(t *testing.T) {
	m := decode(t, `{
	  "StartAt": "Pause",
	  "States": {
	    "Pause": {"Type": "Wait", "SecondsPath": "$.delay", "Next": "Each"},
	    "Each": {
	      "Type": "Map",
	      "ItemsPath": "$.items",
	      "Iterator": {"StartAt": "Work", "States": {"Work": {"Type": "Task", "Resource": "work", "End": true}}},
	      "ResultPath": "$.results",
	      "End": true
	    }
	  }
	}`)

	an, err := optimize.Analyze(m.StartAt, m.States)
	if err != nil {
		t.Fatalf("Analyze failed: %v", err)
	}

	want := []usageRow{
		{"StateInput", "Pause", "$.delay", ""},
		{"StateInput", "Each", "$.items", ""},
		{"StateOutput", "Each", "", "$.results"},
		{"ReturnUsage", "Each", "$.results", ""},
		{"ReturnUsage", "Each", "$", ""},
	}
	if diff := cmp.Diff(want, rows(an.Usages)); diff != "" {
		t.Errorf("usages mismatch (-want +got):\n%s", diff)
	}
}

func TestUsageKind_String(t *testing.T) {
	tests := []struct {
		kind optimize.UsageKind
		want string
	}{
		{optimize.Assignment, "Assignment"},
		{optimize.FilterPropAssignment, "FilterPropAssignment"},
		{optimize.ReturnUsage, "ReturnUsage"},
		{optimize.UsageKind(99), "UsageKind(99)"},
	}

	for _, tt := range tests {
		if got := tt.kind.String(); got != tt.want {
			t.Errorf("String() = %q, want %q", got, tt.want)
		}
	}
}
