package simulate

import (
	"regexp"
	"strings"
	"time"

	"github.com/tailored-agentic-units/stateopt/graph"
	"github.com/tailored-agentic-units/stateopt/jsonpath"
)

// evaluate reports whether c holds for input. And and Or short-circuit. A
// comparison whose variable or operand path is missing is false.
func evaluate(c graph.Condition, input any) (bool, error) {
	switch {
	case c.And != nil:
		for _, sub := range c.And {
			ok, err := evaluate(sub, input)
			if err != nil || !ok {
				return false, err
			}
		}
		return true, nil
	case c.Or != nil:
		for _, sub := range c.Or {
			ok, err := evaluate(sub, input)
			if err != nil || ok {
				return ok, err
			}
		}
		return false, nil
	case c.Not != nil:
		ok, err := evaluate(*c.Not, input)
		return !ok, err
	}
	return compare(c, input)
}

func compare(c graph.Condition, input any) (bool, error) {
	v, err := jsonpath.Get(input, c.Variable)
	present := err == nil

	switch c.Operator {
	case graph.IsPresent:
		return present == truth(c.Value), nil
	case graph.IsNull:
		return (present && v == nil) == truth(c.Value), nil
	case graph.IsNumeric:
		_, ok := number(v)
		return (present && ok) == truth(c.Value), nil
	case graph.IsString:
		_, ok := v.(string)
		return (present && ok) == truth(c.Value), nil
	case graph.IsBoolean:
		_, ok := v.(bool)
		return (present && ok) == truth(c.Value), nil
	case graph.IsTimestamp:
		_, ok := timestamp(v)
		return (present && ok) == truth(c.Value), nil
	}
	if !present {
		return false, nil
	}

	operand := c.Value
	if c.Operator.IsPath() {
		ref, ok := c.Value.(string)
		if !ok {
			return false, runtimeError("operand of %s must be a path", c.Operator)
		}
		if operand, err = jsonpath.Get(input, ref); err != nil {
			return false, nil
		}
	}

	switch c.Operator.Base() {
	case graph.StringEquals:
		return strings2(v, operand, func(a, b string) bool { return a == b }), nil
	case graph.StringLessThan:
		return strings2(v, operand, func(a, b string) bool { return a < b }), nil
	case graph.StringGreaterThan:
		return strings2(v, operand, func(a, b string) bool { return a > b }), nil
	case graph.StringLessThanEquals:
		return strings2(v, operand, func(a, b string) bool { return a <= b }), nil
	case graph.StringGreaterThanEquals:
		return strings2(v, operand, func(a, b string) bool { return a >= b }), nil
	case graph.StringMatches:
		s, ok := v.(string)
		pattern, pok := operand.(string)
		if !ok || !pok {
			return false, nil
		}
		re, err := wildcard(pattern)
		if err != nil {
			return false, runtimeError("invalid pattern %q", pattern)
		}
		return re.MatchString(s), nil

	case graph.NumericEquals:
		return numbers2(v, operand, func(a, b float64) bool { return a == b }), nil
	case graph.NumericLessThan:
		return numbers2(v, operand, func(a, b float64) bool { return a < b }), nil
	case graph.NumericGreaterThan:
		return numbers2(v, operand, func(a, b float64) bool { return a > b }), nil
	case graph.NumericLessThanEquals:
		return numbers2(v, operand, func(a, b float64) bool { return a <= b }), nil
	case graph.NumericGreaterThanEquals:
		return numbers2(v, operand, func(a, b float64) bool { return a >= b }), nil

	case graph.BooleanEquals:
		a, aok := v.(bool)
		b, bok := operand.(bool)
		return aok && bok && a == b, nil

	case graph.TimestampEquals:
		return timestamps2(v, operand, func(a, b time.Time) bool { return a.Equal(b) }), nil
	case graph.TimestampLessThan:
		return timestamps2(v, operand, func(a, b time.Time) bool { return a.Before(b) }), nil
	case graph.TimestampGreaterThan:
		return timestamps2(v, operand, func(a, b time.Time) bool { return a.After(b) }), nil
	case graph.TimestampLessThanEquals:
		return timestamps2(v, operand, func(a, b time.Time) bool { return !a.After(b) }), nil
	case graph.TimestampGreaterThanEquals:
		return timestamps2(v, operand, func(a, b time.Time) bool { return !a.Before(b) }), nil
	}
	return false, runtimeError("unknown operator %q", c.Operator)
}

func truth(v any) bool {
	b, _ := v.(bool)
	return b
}

func number(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	}
	return 0, false
}

func timestamp(v any) (time.Time, bool) {
	s, ok := v.(string)
	if !ok {
		return time.Time{}, false
	}
	t, err := time.Parse(time.RFC3339, s)
	return t, err == nil
}

func strings2(a, b any, fn func(string, string) bool) bool {
	x, xok := a.(string)
	y, yok := b.(string)
	return xok && yok && fn(x, y)
}

func numbers2(a, b any, fn func(float64, float64) bool) bool {
	x, xok := number(a)
	y, yok := number(b)
	return xok && yok && fn(x, y)
}

func timestamps2(a, b any, fn func(time.Time, time.Time) bool) bool {
	x, xok := timestamp(a)
	y, yok := timestamp(b)
	return xok && yok && fn(x, y)
}

// wildcard compiles a StringMatches pattern: "*" matches any run of
// characters and "\*" a literal asterisk.
func wildcard(pattern string) (*regexp.Regexp, error) {
	var b strings.Builder
	b.WriteString("^")
	for i := 0; i < len(pattern); i++ {
		switch c := pattern[i]; {
		case c == '\\' && i+1 < len(pattern):
			i++
			b.WriteString(jsonpath.Escape(pattern[i : i+1]))
		case c == '*':
			b.WriteString(".*")
		default:
			b.WriteString(jsonpath.Escape(pattern[i : i+1]))
		}
	}
	b.WriteString("$")
	return regexp.Compile(b.String())
}
