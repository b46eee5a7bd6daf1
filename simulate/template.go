package simulate

import (
	"encoding/json"
	"fmt"
	"reflect"
	"strings"

	"github.com/google/uuid"

	"github.com/tailored-agentic-units/stateopt/graph"
	"github.com/tailored-agentic-units/stateopt/jsonpath"
)

// payload evaluates a payload template against input. Keys ending in ".$"
// take the value of their path, context reference or intrinsic call; other
// values are copied. Arrays are copied without evaluation.
func (sc *stateContext) payload(tmpl, input any) (any, error) {
	m, ok := tmpl.(map[string]any)
	if !ok {
		return graph.CloneValue(tmpl), nil
	}

	out := make(map[string]any, len(m))
	for k, v := range m {
		if graph.IsTemplateKey(k) {
			expr, ok := v.(string)
			if !ok {
				return nil, runtimeError("template field %s must be a string", k)
			}
			val, err := sc.expr(expr, input)
			if err != nil {
				return nil, err
			}
			out[graph.TemplateKeyName(k)] = val
			continue
		}
		if sub, ok := v.(map[string]any); ok {
			val, err := sc.payload(sub, input)
			if err != nil {
				return nil, err
			}
			out[k] = val
			continue
		}
		out[k] = graph.CloneValue(v)
	}
	return out, nil
}

func (sc *stateContext) expr(s string, input any) (any, error) {
	switch {
	case jsonpath.IsContextReference(s):
		return sc.contextValue(s)
	case graph.IsIntrinsic(s):
		c, err := parseIntrinsic(s)
		if err != nil {
			return nil, &StatesError{Name: ErrorIntrinsicFailed, Cause: err.Error()}
		}
		return sc.call(c, input)
	case jsonpath.IsReference(s):
		v, err := jsonpath.Get(input, s)
		if err != nil {
			return nil, runtimeError("path %s: %v", s, err)
		}
		return graph.CloneValue(v), nil
	}
	return nil, runtimeError("%q is not a path or intrinsic call", s)
}

func (sc *stateContext) contextValue(ref string) (any, error) {
	obj := map[string]any{
		"Execution": map[string]any{
			"Id":    sc.exec.id,
			"Input": sc.exec.input,
		},
		"State": map[string]any{
			"Name": sc.name,
		},
	}
	if sc.mapItem != nil {
		obj["Map"] = map[string]any{"Item": sc.mapItem}
	}
	v, err := jsonpath.Get(obj, jsonpath.Root+strings.TrimPrefix(ref, "$$"))
	if err != nil {
		return nil, runtimeError("context path %s: %v", ref, err)
	}
	return graph.CloneValue(v), nil
}

type argKind int

const (
	argLiteral argKind = iota
	argString
	argPath
	argContext
	argCall
)

// intrinsicArg is one parsed argument of an intrinsic call. Raw holds the
// undecoded text of string literals; States.Format reads its placeholders
// from it.
type intrinsicArg struct {
	kind  argKind
	value any
	raw   string
	call  *intrinsicCall
}

type intrinsicCall struct {
	name string
	args []intrinsicArg
}

func parseIntrinsic(s string) (*intrinsicCall, error) {
	p := &intrinsicParser{src: strings.TrimSpace(s)}
	c, err := p.call()
	if err != nil {
		return nil, err
	}
	p.space()
	if p.pos != len(p.src) {
		return nil, fmt.Errorf("unexpected %q after intrinsic call", p.src[p.pos:])
	}
	return c, nil
}

type intrinsicParser struct {
	src string
	pos int
}

func (p *intrinsicParser) space() {
	for p.pos < len(p.src) && (p.src[p.pos] == ' ' || p.src[p.pos] == '\t') {
		p.pos++
	}
}

func (p *intrinsicParser) call() (*intrinsicCall, error) {
	open := strings.IndexByte(p.src[p.pos:], '(')
	if open < 0 {
		return nil, fmt.Errorf("missing ( in %q", p.src)
	}
	name := strings.TrimSpace(p.src[p.pos : p.pos+open])
	if !strings.HasPrefix(name, graph.IntrinsicPrefix) {
		return nil, fmt.Errorf("unknown function %q", name)
	}
	p.pos += open + 1

	c := &intrinsicCall{name: name}
	p.space()
	if p.pos < len(p.src) && p.src[p.pos] == ')' {
		p.pos++
		return c, nil
	}
	for {
		a, err := p.arg()
		if err != nil {
			return nil, err
		}
		c.args = append(c.args, a)
		p.space()
		if p.pos >= len(p.src) {
			return nil, fmt.Errorf("unterminated call to %s", name)
		}
		switch p.src[p.pos] {
		case ',':
			p.pos++
		case ')':
			p.pos++
			return c, nil
		default:
			return nil, fmt.Errorf("unexpected %q in call to %s", p.src[p.pos], name)
		}
	}
}

func (p *intrinsicParser) arg() (intrinsicArg, error) {
	p.space()
	if p.pos >= len(p.src) {
		return intrinsicArg{}, fmt.Errorf("missing argument")
	}
	rest := p.src[p.pos:]

	switch {
	case rest[0] == '\'':
		var raw, val strings.Builder
		for i := 1; i < len(rest); i++ {
			switch rest[i] {
			case '\\':
				if i+1 < len(rest) {
					raw.WriteByte('\\')
					raw.WriteByte(rest[i+1])
					val.WriteByte(rest[i+1])
					i++
				}
			case '\'':
				p.pos += i + 1
				return intrinsicArg{kind: argString, value: val.String(), raw: raw.String()}, nil
			default:
				raw.WriteByte(rest[i])
				val.WriteByte(rest[i])
			}
		}
		return intrinsicArg{}, fmt.Errorf("unterminated string in %q", p.src)

	case strings.HasPrefix(rest, graph.IntrinsicPrefix):
		c, err := p.call()
		if err != nil {
			return intrinsicArg{}, err
		}
		return intrinsicArg{kind: argCall, call: c}, nil

	case rest[0] == '$':
		end := argEnd(rest)
		ref := strings.TrimSpace(rest[:end])
		p.pos += end
		if jsonpath.IsContextReference(ref) {
			return intrinsicArg{kind: argContext, raw: ref}, nil
		}
		return intrinsicArg{kind: argPath, raw: ref}, nil
	}

	end := argEnd(rest)
	tok := strings.TrimSpace(rest[:end])
	p.pos += end
	var v any
	if err := json.Unmarshal([]byte(tok), &v); err != nil {
		return intrinsicArg{}, fmt.Errorf("invalid argument %q", tok)
	}
	return intrinsicArg{kind: argLiteral, value: v}, nil
}

// argEnd returns the offset of the "," or ")" ending the argument at the
// start of s, skipping brackets and quoted strings inside paths.
func argEnd(s string) int {
	depth := 0
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '\'', '"':
			q := s[i]
			for i++; i < len(s) && s[i] != q; i++ {
				if s[i] == '\\' {
					i++
				}
			}
		case '[', '(':
			depth++
		case ']':
			depth--
		case ')':
			if depth == 0 {
				return i
			}
			depth--
		case ',':
			if depth == 0 {
				return i
			}
		}
	}
	return len(s)
}

func (sc *stateContext) argValue(a intrinsicArg, input any) (any, error) {
	switch a.kind {
	case argPath:
		v, err := jsonpath.Get(input, a.raw)
		if err != nil {
			return nil, runtimeError("path %s: %v", a.raw, err)
		}
		return graph.CloneValue(v), nil
	case argContext:
		return sc.contextValue(a.raw)
	case argCall:
		return sc.call(a.call, input)
	}
	return a.value, nil
}

func (sc *stateContext) call(c *intrinsicCall, input any) (any, error) {
	args := make([]any, len(c.args))
	for i, a := range c.args {
		v, err := sc.argValue(a, input)
		if err != nil {
			return nil, err
		}
		args[i] = v
	}

	fail := func(format string, a ...any) error {
		return &StatesError{Name: ErrorIntrinsicFailed, Cause: c.name + ": " + fmt.Sprintf(format, a...)}
	}
	want := func(n int) error {
		if len(args) != n {
			return fail("expected %d arguments, got %d", n, len(args))
		}
		return nil
	}

	switch strings.TrimPrefix(c.name, graph.IntrinsicPrefix) {
	case "Format":
		if len(args) == 0 {
			return nil, fail("missing template")
		}
		tmpl := c.args[0].raw
		if c.args[0].kind != argString {
			s, ok := args[0].(string)
			if !ok {
				return nil, fail("template must be a string")
			}
			tmpl = s
		}
		out, err := format(tmpl, args[1:])
		if err != nil {
			return nil, fail("%v", err)
		}
		return out, nil

	case "Array":
		return append([]any{}, args...), nil

	case "JsonToString":
		if err := want(1); err != nil {
			return nil, err
		}
		b, err := json.Marshal(args[0])
		if err != nil {
			return nil, fail("%v", err)
		}
		return string(b), nil

	case "StringToJson":
		if err := want(1); err != nil {
			return nil, err
		}
		s, ok := args[0].(string)
		if !ok {
			return nil, fail("argument must be a string")
		}
		var v any
		if err := json.Unmarshal([]byte(s), &v); err != nil {
			return nil, fail("%v", err)
		}
		return v, nil

	case "ArrayLength":
		if err := want(1); err != nil {
			return nil, err
		}
		a, ok := args[0].([]any)
		if !ok {
			return nil, fail("argument must be an array")
		}
		return float64(len(a)), nil

	case "ArrayGetItem":
		if err := want(2); err != nil {
			return nil, err
		}
		a, ok := args[0].([]any)
		idx, iok := args[1].(float64)
		if !ok || !iok || idx < 0 || int(idx) >= len(a) || idx != float64(int(idx)) {
			return nil, fail("invalid array or index")
		}
		return a[int(idx)], nil

	case "ArrayContains":
		if err := want(2); err != nil {
			return nil, err
		}
		a, ok := args[0].([]any)
		if !ok {
			return nil, fail("first argument must be an array")
		}
		for _, e := range a {
			if reflect.DeepEqual(e, args[1]) {
				return true, nil
			}
		}
		return false, nil

	case "MathAdd":
		if err := want(2); err != nil {
			return nil, err
		}
		x, xok := args[0].(float64)
		y, yok := args[1].(float64)
		if !xok || !yok {
			return nil, fail("arguments must be numbers")
		}
		return x + y, nil

	case "StringSplit":
		if err := want(2); err != nil {
			return nil, err
		}
		s, sok := args[0].(string)
		sep, dok := args[1].(string)
		if !sok || !dok {
			return nil, fail("arguments must be strings")
		}
		parts := strings.FieldsFunc(s, func(r rune) bool { return strings.ContainsRune(sep, r) })
		out := make([]any, len(parts))
		for i, part := range parts {
			out[i] = part
		}
		return out, nil

	case "UUID":
		if err := want(0); err != nil {
			return nil, err
		}
		return uuid.NewString(), nil
	}
	return nil, fail("unknown function")
}

// format fills the "{}" placeholders of tmpl. A backslash escapes the next
// character. String arguments are inserted as is, others as JSON.
func format(tmpl string, args []any) (string, error) {
	var b strings.Builder
	next := 0
	for i := 0; i < len(tmpl); i++ {
		switch {
		case tmpl[i] == '\\' && i+1 < len(tmpl):
			i++
			b.WriteByte(tmpl[i])
		case tmpl[i] == '{' && i+1 < len(tmpl) && tmpl[i+1] == '}':
			if next >= len(args) {
				return "", fmt.Errorf("not enough arguments for template")
			}
			if s, ok := args[next].(string); ok {
				b.WriteString(s)
			} else {
				enc, err := json.Marshal(args[next])
				if err != nil {
					return "", err
				}
				b.Write(enc)
			}
			next++
			i++
		default:
			b.WriteByte(tmpl[i])
		}
	}
	if next != len(args) {
		return "", fmt.Errorf("%d arguments for %d placeholders", len(args), next)
	}
	return b.String(), nil
}
