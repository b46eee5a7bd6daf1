package jsonpath

import (
	"encoding/json"
	"fmt"
	"maps"
	"reflect"
	"slices"
	"strconv"
	"strings"
)

// Get evaluates path against doc. Documents are the generic values produced
// by encoding/json: map[string]any, []any, string, float64, bool and nil.
func Get(doc any, path string) (any, error) {
	p, err := Parse(path)
	if err != nil {
		return nil, err
	}
	return p.Get(doc)
}

// Set returns a copy of doc with value stored at path. Missing intermediate
// objects are created; the input document is never modified.
func Set(doc any, path string, value any) (any, error) {
	p, err := Parse(path)
	if err != nil {
		return nil, err
	}
	return p.Set(doc, value)
}

// Get evaluates the path against doc. A definite path yields the single
// addressed value and fails when any segment is missing; an indefinite path
// yields the array of all matches.
func (p Path) Get(doc any) (any, error) {
	return p.get(doc, doc)
}

func (p Path) get(root, doc any) (any, error) {
	if p.Definite() {
		cur := doc
		for _, seg := range p {
			next, ok := step(cur, seg)
			if !ok {
				return nil, fmt.Errorf("%w: %s", ErrPathNotFound, p)
			}
			cur = next
		}
		return cur, nil
	}

	nodes := []any{doc}
	for _, seg := range p {
		var next []any
		for _, n := range nodes {
			switch seg.Kind {
			case Field, Index:
				if v, ok := step(n, seg); ok {
					next = append(next, v)
				}
			case Wildcard:
				next = append(next, children(n)...)
			case Slice:
				next = append(next, sliceOf(n, seg.Expr)...)
			case Filter:
				for _, c := range children(n) {
					ok, err := matchFilter(root, c, seg.Expr)
					if err != nil {
						return nil, err
					}
					if ok {
						next = append(next, c)
					}
				}
			}
		}
		nodes = next
	}
	if nodes == nil {
		nodes = []any{}
	}
	return nodes, nil
}

// Set returns a copy of doc with value stored at the path.
func (p Path) Set(doc any, value any) (any, error) {
	if !p.Definite() {
		return nil, fmt.Errorf("%w: %s", ErrIndefinitePath, p)
	}
	return set(doc, p, value)
}

func set(doc any, p Path, value any) (any, error) {
	if len(p) == 0 {
		return value, nil
	}

	seg := p[0]
	switch seg.Kind {
	case Field:
		var m map[string]any
		switch d := doc.(type) {
		case map[string]any:
			m = d
		case nil:
			m = map[string]any{}
		default:
			return nil, fmt.Errorf("%w: cannot set field %q on %T", ErrTypeMismatch, seg.Name, doc)
		}
		child, err := set(m[seg.Name], p[1:], value)
		if err != nil {
			return nil, err
		}
		out := maps.Clone(m)
		out[seg.Name] = child
		return out, nil

	case Index:
		a, ok := doc.([]any)
		if !ok {
			return nil, fmt.Errorf("%w: cannot index %T", ErrTypeMismatch, doc)
		}
		if seg.Index < 0 || seg.Index >= len(a) {
			return nil, fmt.Errorf("%w: index %d out of range", ErrPathNotFound, seg.Index)
		}
		child, err := set(a[seg.Index], p[1:], value)
		if err != nil {
			return nil, err
		}
		out := slices.Clone(a)
		out[seg.Index] = child
		return out, nil
	}
	return nil, fmt.Errorf("%w: %s", ErrIndefinitePath, p)
}

func step(doc any, seg Segment) (any, bool) {
	switch seg.Kind {
	case Field:
		m, ok := doc.(map[string]any)
		if !ok {
			return nil, false
		}
		v, ok := m[seg.Name]
		return v, ok
	case Index:
		a, ok := doc.([]any)
		if !ok || seg.Index < 0 || seg.Index >= len(a) {
			return nil, false
		}
		return a[seg.Index], true
	}
	return nil, false
}

func children(doc any) []any {
	switch d := doc.(type) {
	case []any:
		return d
	case map[string]any:
		keys := slices.Sorted(maps.Keys(d))
		out := make([]any, 0, len(keys))
		for _, k := range keys {
			out = append(out, d[k])
		}
		return out
	}
	return nil
}

func sliceOf(doc any, expr string) []any {
	a, ok := doc.([]any)
	if !ok {
		return nil
	}
	parts := strings.SplitN(expr, ":", 2)
	bound := func(s string, def int) int {
		s = strings.TrimSpace(s)
		if s == "" {
			return def
		}
		n, err := strconv.Atoi(s)
		if err != nil {
			return def
		}
		if n < 0 {
			n += len(a)
		}
		return min(max(n, 0), len(a))
	}
	start, end := bound(parts[0], 0), bound(parts[1], len(a))
	if start >= end {
		return nil
	}
	return a[start:end]
}

var comparisonOperators = []string{"==", "!=", "<=", ">=", "<", ">"}

// matchFilter evaluates a single-comparison filter predicate such as
// "@.price < 10" or "@.id == $.target" against node.
func matchFilter(root, node any, expr string) (bool, error) {
	left, op, right := splitComparison(expr)
	lv, lok := filterOperand(root, node, left)
	if op == "" {
		return lok && truthy(lv), nil
	}
	rv, rok := filterOperand(root, node, right)
	if !lok || !rok {
		return false, nil
	}

	switch op {
	case "==":
		return reflect.DeepEqual(lv, rv), nil
	case "!=":
		return !reflect.DeepEqual(lv, rv), nil
	}

	var c int
	switch l := lv.(type) {
	case float64:
		r, ok := rv.(float64)
		if !ok {
			return false, nil
		}
		switch {
		case l < r:
			c = -1
		case l > r:
			c = 1
		}
	case string:
		r, ok := rv.(string)
		if !ok {
			return false, nil
		}
		c = strings.Compare(l, r)
	default:
		return false, nil
	}

	switch op {
	case "<":
		return c < 0, nil
	case "<=":
		return c <= 0, nil
	case ">":
		return c > 0, nil
	default:
		return c >= 0, nil
	}
}

func splitComparison(expr string) (string, string, string) {
	for i := 0; i < len(expr); i++ {
		c := expr[i]
		if c == '\'' || c == '"' {
			j := skipQuoted(expr, i)
			if j < 0 {
				break
			}
			i = j
			continue
		}
		for _, op := range comparisonOperators {
			if strings.HasPrefix(expr[i:], op) {
				return strings.TrimSpace(expr[:i]), op, strings.TrimSpace(expr[i+len(op):])
			}
		}
	}
	return strings.TrimSpace(expr), "", ""
}

func filterOperand(root, node any, s string) (any, bool) {
	switch {
	case strings.HasPrefix(s, "@"):
		p, err := Parse(Root + s[1:])
		if err != nil {
			return nil, false
		}
		v, err := p.Get(node)
		return v, err == nil
	case IsReference(s):
		v, err := Get(root, s)
		return v, err == nil
	case strings.HasPrefix(s, "'") && strings.HasSuffix(s, "'") && len(s) >= 2:
		return unescapeQuoted(s[1 : len(s)-1]), true
	}
	var v any
	if err := json.Unmarshal([]byte(s), &v); err != nil {
		return nil, false
	}
	return v, true
}

func truthy(v any) bool {
	switch t := v.(type) {
	case nil:
		return false
	case bool:
		return t
	}
	return true
}
