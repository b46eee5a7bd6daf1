package optimize

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/tailored-agentic-units/stateopt/graph"
	"github.com/tailored-agentic-units/stateopt/jsonpath"
)

// rewriteLiteral replaces the read of u with the constant val. It reports
// false when the usage cannot carry a literal.
func (e *eliminator) rewriteLiteral(u *Usage, val any) (bool, error) {
	s, ok := e.states[u.State]
	if !ok {
		return false, nil
	}

	var out graph.State
	switch u.Kind {
	case Assignment:
		p, ok := s.(*graph.PassState)
		if !ok || val == nil {
			return false, nil
		}
		c := graph.Clone(p).(*graph.PassState)
		c.Result = graph.CloneValue(val)
		c.InputPath = nil
		c.Parameters = nil
		out = c

	case PropertyAssignment, StateInputProps:
		if !inputIsRoot(s) || graph.HasTemplateKeys(val) {
			return false, nil
		}
		next, changed, err := updateParameters(s, u.Field, func(m map[string]any, key string) bool {
			name := graph.TemplateKeyName(key)
			if _, exists := m[name]; exists {
				return false
			}
			delete(m, key)
			m[name] = graph.CloneValue(val)
			return true
		})
		if err != nil || !changed {
			return false, err
		}
		out = next

	case Intrinsic:
		if !inputIsRoot(s) {
			return false, nil
		}
		if isFormatTemplate(u.Expr, u.Read) {
			return false, nil
		}
		lit, ok := formatIntrinsicArg(val)
		if !ok {
			return false, nil
		}
		next, changed, err := updateParameters(s, u.Field, replaceInExpr(u.Read, lit))
		if err != nil || !changed {
			return false, err
		}
		out = next

	case StateInput:
		next, err := inputLiteral(s, u.Field.first(), val)
		if err != nil || next == nil {
			return false, err
		}
		out = next

	default:
		return false, nil
	}

	e.states[u.State] = out
	return true, nil
}

func inputLiteral(s graph.State, field string, val any) (graph.State, error) {
	switch field {
	case "InputPath":
		obj, ok := val.(map[string]any)
		if !ok || graph.HasTemplateKeys(obj) {
			return nil, nil
		}
		switch st := s.(type) {
		case *graph.TaskState:
			c := graph.Clone(st).(*graph.TaskState)
			c.Parameters = graph.CloneValue(obj)
			c.InputPath = nil
			return c, nil
		case *graph.ParallelState:
			c := graph.Clone(st).(*graph.ParallelState)
			c.Parameters = graph.CloneValue(obj)
			c.InputPath = nil
			return c, nil
		}

	case "ItemsPath":
		// eliminateRoot skips literal item sources, so reaching this means
		// the caller's guard was bypassed.
		if _, ok := s.(*graph.MapState); ok {
			return nil, fmt.Errorf("%w: %v", ErrLiteralItems, val)
		}

	case "SecondsPath":
		w, ok := s.(*graph.WaitState)
		if !ok || !inputIsRoot(s) {
			return nil, nil
		}
		n, ok := val.(float64)
		if !ok || n < 0 || n != float64(int(n)) {
			return nil, nil
		}
		c := graph.Clone(w).(*graph.WaitState)
		secs := int(n)
		c.Seconds = &secs
		c.SecondsPath = ""
		return c, nil

	case "TimestampPath":
		w, ok := s.(*graph.WaitState)
		if !ok || !inputIsRoot(s) {
			return nil, nil
		}
		ts, ok := val.(string)
		if !ok {
			return nil, nil
		}
		c := graph.Clone(w).(*graph.WaitState)
		c.Timestamp = ts
		c.TimestampPath = ""
		return c, nil
	}
	return nil, nil
}

// rewriteReference redirects the read of u to the slot read. It reports
// false when the usage cannot be redirected.
func (e *eliminator) rewriteReference(u *Usage, read string) (bool, error) {
	s, ok := e.states[u.State]
	if !ok {
		return false, nil
	}

	var out graph.State
	switch u.Kind {
	case Assignment:
		p, ok := s.(*graph.PassState)
		if !ok || u.Field.first() != "InputPath" {
			return false, nil
		}
		c := graph.Clone(p).(*graph.PassState)
		c.InputPath = graph.PathOf(read)
		out = c

	case PropertyAssignment, StateInputProps:
		if !inputIsRoot(s) {
			return false, nil
		}
		next, changed, err := updateParameters(s, u.Field, func(m map[string]any, key string) bool {
			if !graph.IsTemplateKey(key) {
				return false
			}
			m[key] = read
			return true
		})
		if err != nil || !changed {
			return false, err
		}
		out = next

	case Intrinsic:
		if !inputIsRoot(s) {
			return false, nil
		}
		next, changed, err := updateParameters(s, u.Field, replaceInExpr(u.Read, read))
		if err != nil || !changed {
			return false, err
		}
		out = next

	case StateInput:
		out = inputReference(s, u.Field.first(), read)
		if out == nil {
			return false, nil
		}

	default:
		return false, nil
	}

	e.states[u.State] = out
	return true, nil
}

func inputReference(s graph.State, field, read string) graph.State {
	switch field {
	case "InputPath":
		switch st := s.(type) {
		case *graph.TaskState:
			c := graph.Clone(st).(*graph.TaskState)
			c.InputPath = graph.PathOf(read)
			return c
		case *graph.ParallelState:
			c := graph.Clone(st).(*graph.ParallelState)
			c.InputPath = graph.PathOf(read)
			return c
		}

	case "ItemsPath":
		if m, ok := s.(*graph.MapState); ok && inputIsRoot(s) {
			c := graph.Clone(m).(*graph.MapState)
			c.ItemsPath = read
			return c
		}

	case "SecondsPath":
		if w, ok := s.(*graph.WaitState); ok && inputIsRoot(s) {
			c := graph.Clone(w).(*graph.WaitState)
			c.SecondsPath = read
			return c
		}

	case "TimestampPath":
		if w, ok := s.(*graph.WaitState); ok && inputIsRoot(s) {
			c := graph.Clone(w).(*graph.WaitState)
			c.TimestampPath = read
			return c
		}
	}
	return nil
}

func replaceInExpr(old, replacement string) func(map[string]any, string) bool {
	return func(m map[string]any, key string) bool {
		expr, ok := m[key].(string)
		if !ok {
			return false
		}
		out, n := jsonpath.ReplaceReference(expr, old, replacement)
		if n != 1 {
			return false
		}
		m[key] = out
		return true
	}
}

// updateParameters applies fn to the payload object holding the field
// addressed by f (["Parameters", k1, ..., key]) on a copy of s.
func updateParameters(s graph.State, f FieldPath, fn func(m map[string]any, key string) bool) (graph.State, bool, error) {
	if f.first() != "Parameters" || len(f) < 2 {
		return nil, false, nil
	}
	c := graph.Clone(s)

	var params *any
	switch st := c.(type) {
	case *graph.PassState:
		params = &st.Parameters
	case *graph.TaskState:
		params = &st.Parameters
	case *graph.MapState:
		params = &st.Parameters
	case *graph.ParallelState:
		params = &st.Parameters
	default:
		return nil, false, nil
	}

	m, ok := (*params).(map[string]any)
	if !ok {
		return nil, false, nil
	}
	keys := f[1:]
	for i, k := range keys {
		key, ok := k.(string)
		// The analyzer only builds payload fields from object keys.
		if !ok {
			return nil, false, fmt.Errorf("%w: %v", ErrNonStringKey, k)
		}
		if i == len(keys)-1 {
			if !fn(m, key) {
				return nil, false, nil
			}
			return c, true, nil
		}
		next, ok := m[key].(map[string]any)
		if !ok {
			return nil, false, nil
		}
		m = next
	}
	return nil, false, nil
}

func inputIsRoot(s graph.State) bool {
	var ip *graph.OptionalPath
	switch st := s.(type) {
	case *graph.PassState:
		ip = st.InputPath
	case *graph.TaskState:
		ip = st.InputPath
	case *graph.MapState:
		ip = st.InputPath
	case *graph.ParallelState:
		ip = st.InputPath
	case *graph.ChoiceState:
		ip = st.InputPath
	case *graph.WaitState:
		ip = st.InputPath
	case *graph.SucceedState:
		ip = st.InputPath
	}
	if ip == nil {
		return true
	}
	return ip.IsSet() && jsonpath.Normalize(ip.Path) == jsonpath.Root
}

// isFormatTemplate reports whether ref is the template argument of a
// States.Format call in expr. A literal there would have its placeholders
// escaped.
func isFormatTemplate(expr, ref string) bool {
	for _, tok := range jsonpath.Scan(expr) {
		if jsonpath.Normalize(tok.Text) != ref {
			continue
		}
		before := strings.TrimSpace(expr[:tok.Start])
		if strings.HasSuffix(before, graph.IntrinsicPrefix+"Format(") {
			return true
		}
	}
	return false
}

var intrinsicEscaper = strings.NewReplacer(`\`, `\\`, `'`, `\'`, `{`, `\{`, `}`, `\}`)

// formatIntrinsicArg formats a constant as an intrinsic call argument.
// Objects have no argument syntax.
func formatIntrinsicArg(v any) (string, bool) {
	switch t := v.(type) {
	case nil:
		return "null", true
	case string:
		return "'" + intrinsicEscaper.Replace(t) + "'", true
	case bool:
		return strconv.FormatBool(t), true
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64), true
	case int:
		return strconv.Itoa(t), true
	case []any:
		args := make([]string, len(t))
		for i, e := range t {
			a, ok := formatIntrinsicArg(e)
			if !ok {
				return "", false
			}
			args[i] = a
		}
		return graph.IntrinsicPrefix + "Array(" + strings.Join(args, ", ") + ")", true
	}
	return "", false
}
