package optimize

import (
	"fmt"
	"strings"
)

// UsageKind classifies how a state touches a variable slot. The set is
// closed; the analyzer emits one kind per slot occurrence.
type UsageKind int

const (
	// Assignment copies one slot into another (a Pass without a payload).
	Assignment UsageKind = iota
	// PropertyAssignment copies a slot into a field of a Pass payload.
	PropertyAssignment
	// LiteralAssignment stores a constant into a slot.
	LiteralAssignment
	// LiteralPropAssignment stores a constant field of a Pass payload.
	LiteralPropAssignment
	// Intrinsic reads a slot inside an intrinsic function call.
	Intrinsic
	// Filter reads a slot through a filter expression.
	Filter
	// FilterPropAssignment copies a filtered slot into a Pass payload field.
	FilterPropAssignment
	// StateOutput is an opaque write by Task, Map, Parallel or Catch.
	StateOutput
	// StateInput is an opaque read of a whole slot.
	StateInput
	// StateInputProps is an opaque read through a Task, Map or Parallel payload field.
	StateInputProps
	// Condition reads a slot inside a Choice predicate.
	Condition
	// ReturnUsage marks a slot observed as the output of the machine.
	ReturnUsage
)

var usageKindNames = [...]string{
	Assignment:            "Assignment",
	PropertyAssignment:    "PropertyAssignment",
	LiteralAssignment:     "LiteralAssignment",
	LiteralPropAssignment: "LiteralPropAssignment",
	Intrinsic:             "Intrinsic",
	Filter:                "Filter",
	FilterPropAssignment:  "FilterPropAssignment",
	StateOutput:           "StateOutput",
	StateInput:            "StateInput",
	StateInputProps:       "StateInputProps",
	Condition:             "Condition",
	ReturnUsage:           "ReturnUsage",
}

func (k UsageKind) String() string {
	if k >= 0 && int(k) < len(usageKindNames) {
		return usageKindNames[k]
	}
	return fmt.Sprintf("UsageKind(%d)", int(k))
}

// IsLiteral reports whether the usage stores a constant.
func (k UsageKind) IsLiteral() bool {
	return k == LiteralAssignment || k == LiteralPropAssignment
}

// FieldPath locates the state field a usage came from, e.g.
// ["Parameters", "user", "id.$"] or ["Catch", 0]. Elements are strings or
// ints.
type FieldPath []any

func (f FieldPath) String() string {
	parts := make([]string, len(f))
	for i, e := range f {
		parts[i] = fmt.Sprint(e)
	}
	return strings.Join(parts, "/")
}

// Usage is one state's interaction with one variable slot.
//
// Read is the absolute slot the state reads, Write the absolute slot it
// writes; either may be empty. A slot equal to "$" addresses the whole
// document. Index is the topological index of State.
type Usage struct {
	Kind  UsageKind
	State string
	Index int
	Read  string
	Write string
	Field FieldPath

	// Value holds the constant of literal kinds.
	Value any

	// Expr holds the intrinsic call text for Intrinsic usages.
	Expr string
}

func (u *Usage) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s@%s[%d]", u.Kind, u.State, u.Index)
	if u.Read != "" {
		fmt.Fprintf(&b, " read=%s", u.Read)
	}
	if u.Write != "" {
		fmt.Fprintf(&b, " write=%s", u.Write)
	}
	if len(u.Field) > 0 {
		fmt.Fprintf(&b, " field=%s", u.Field)
	}
	return b.String()
}

// VariableStats collects the assignments and uses of one variable root in
// topological order. Pointers are shared with Analysis.Usages: an
// Assignment usage appears in the use list of its source root and in the
// assignment list of its target root.
type VariableStats struct {
	Root    string
	Assigns []*Usage
	Uses    []*Usage
}
