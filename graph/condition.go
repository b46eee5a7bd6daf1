package graph

import "strings"

// Operator is a Choice comparison operator. Operators with a "Path" suffix
// compare against the value at another path instead of a literal.
type Operator string

const (
	StringEquals                   Operator = "StringEquals"
	StringEqualsPath               Operator = "StringEqualsPath"
	StringLessThan                 Operator = "StringLessThan"
	StringLessThanPath             Operator = "StringLessThanPath"
	StringGreaterThan              Operator = "StringGreaterThan"
	StringGreaterThanPath          Operator = "StringGreaterThanPath"
	StringLessThanEquals           Operator = "StringLessThanEquals"
	StringLessThanEqualsPath       Operator = "StringLessThanEqualsPath"
	StringGreaterThanEquals        Operator = "StringGreaterThanEquals"
	StringGreaterThanEqualsPath    Operator = "StringGreaterThanEqualsPath"
	StringMatches                  Operator = "StringMatches"
	NumericEquals                  Operator = "NumericEquals"
	NumericEqualsPath              Operator = "NumericEqualsPath"
	NumericLessThan                Operator = "NumericLessThan"
	NumericLessThanPath            Operator = "NumericLessThanPath"
	NumericGreaterThan             Operator = "NumericGreaterThan"
	NumericGreaterThanPath         Operator = "NumericGreaterThanPath"
	NumericLessThanEquals          Operator = "NumericLessThanEquals"
	NumericLessThanEqualsPath      Operator = "NumericLessThanEqualsPath"
	NumericGreaterThanEquals       Operator = "NumericGreaterThanEquals"
	NumericGreaterThanEqualsPath   Operator = "NumericGreaterThanEqualsPath"
	BooleanEquals                  Operator = "BooleanEquals"
	BooleanEqualsPath              Operator = "BooleanEqualsPath"
	TimestampEquals                Operator = "TimestampEquals"
	TimestampEqualsPath            Operator = "TimestampEqualsPath"
	TimestampLessThan              Operator = "TimestampLessThan"
	TimestampLessThanPath          Operator = "TimestampLessThanPath"
	TimestampGreaterThan           Operator = "TimestampGreaterThan"
	TimestampGreaterThanPath       Operator = "TimestampGreaterThanPath"
	TimestampLessThanEquals        Operator = "TimestampLessThanEquals"
	TimestampLessThanEqualsPath    Operator = "TimestampLessThanEqualsPath"
	TimestampGreaterThanEquals     Operator = "TimestampGreaterThanEquals"
	TimestampGreaterThanEqualsPath Operator = "TimestampGreaterThanEqualsPath"
	IsNull                         Operator = "IsNull"
	IsPresent                      Operator = "IsPresent"
	IsNumeric                      Operator = "IsNumeric"
	IsString                       Operator = "IsString"
	IsBoolean                      Operator = "IsBoolean"
	IsTimestamp                    Operator = "IsTimestamp"
)

var operators = map[Operator]bool{}

func init() {
	for _, op := range []Operator{
		StringEquals, StringEqualsPath, StringLessThan, StringLessThanPath,
		StringGreaterThan, StringGreaterThanPath, StringLessThanEquals,
		StringLessThanEqualsPath, StringGreaterThanEquals, StringGreaterThanEqualsPath,
		StringMatches,
		NumericEquals, NumericEqualsPath, NumericLessThan, NumericLessThanPath,
		NumericGreaterThan, NumericGreaterThanPath, NumericLessThanEquals,
		NumericLessThanEqualsPath, NumericGreaterThanEquals, NumericGreaterThanEqualsPath,
		BooleanEquals, BooleanEqualsPath,
		TimestampEquals, TimestampEqualsPath, TimestampLessThan, TimestampLessThanPath,
		TimestampGreaterThan, TimestampGreaterThanPath, TimestampLessThanEquals,
		TimestampLessThanEqualsPath, TimestampGreaterThanEquals, TimestampGreaterThanEqualsPath,
		IsNull, IsPresent, IsNumeric, IsString, IsBoolean, IsTimestamp,
	} {
		operators[op] = true
	}
}

// IsOperator reports whether name is a known comparison operator.
func IsOperator(name string) bool {
	return operators[Operator(name)]
}

// IsPath reports whether the operand is a path to compare against.
func (o Operator) IsPath() bool {
	return strings.HasSuffix(string(o), "Path")
}

// Base returns the operator without its "Path" suffix.
func (o Operator) Base() Operator {
	return Operator(strings.TrimSuffix(string(o), "Path"))
}

// Condition is a Choice predicate. Exactly one of the forms is populated:
// a comparison (Variable, Operator, Value), a conjunction (And), a
// disjunction (Or) or a negation (Not).
type Condition struct {
	Variable string
	Operator Operator
	Value    any
	And      []Condition
	Or       []Condition
	Not      *Condition
}

// Compare builds a comparison condition.
func Compare(variable string, op Operator, value any) Condition {
	return Condition{Variable: variable, Operator: op, Value: value}
}

// And conjoins conditions, flattening nested conjunctions.
func And(conds ...Condition) Condition {
	var out []Condition
	for _, c := range conds {
		if c.And != nil {
			out = append(out, c.And...)
			continue
		}
		out = append(out, c)
	}
	if len(out) == 1 {
		return out[0]
	}
	return Condition{And: out}
}

// Or disjoins conditions, flattening nested disjunctions.
func Or(conds ...Condition) Condition {
	var out []Condition
	for _, c := range conds {
		if c.Or != nil {
			out = append(out, c.Or...)
			continue
		}
		out = append(out, c)
	}
	if len(out) == 1 {
		return out[0]
	}
	return Condition{Or: out}
}

// Not negates c. A double negation collapses.
func Not(c Condition) Condition {
	if c.Not != nil {
		return c.Not.Clone()
	}
	inner := c
	return Condition{Not: &inner}
}

// References returns every path the condition reads, including the
// operands of "Path" operators, in order of appearance.
func (c Condition) References() []string {
	var refs []string
	c.walk(func(cmp Condition) {
		if cmp.Variable != "" {
			refs = append(refs, cmp.Variable)
		}
		if cmp.Operator.IsPath() {
			if s, ok := cmp.Value.(string); ok {
				refs = append(refs, s)
			}
		}
	})
	return refs
}

func (c Condition) walk(fn func(Condition)) {
	switch {
	case c.And != nil:
		for _, sub := range c.And {
			sub.walk(fn)
		}
	case c.Or != nil:
		for _, sub := range c.Or {
			sub.walk(fn)
		}
	case c.Not != nil:
		c.Not.walk(fn)
	default:
		fn(c)
	}
}

// Clone returns a deep copy of c.
func (c Condition) Clone() Condition {
	out := Condition{
		Variable: c.Variable,
		Operator: c.Operator,
		Value:    CloneValue(c.Value),
	}
	if c.And != nil {
		out.And = make([]Condition, len(c.And))
		for i, sub := range c.And {
			out.And[i] = sub.Clone()
		}
	}
	if c.Or != nil {
		out.Or = make([]Condition, len(c.Or))
		for i, sub := range c.Or {
			out.Or[i] = sub.Clone()
		}
	}
	if c.Not != nil {
		n := c.Not.Clone()
		out.Not = &n
	}
	return out
}
