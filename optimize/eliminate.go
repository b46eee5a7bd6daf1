package optimize

import (
	"cmp"
	"maps"
	"slices"

	"github.com/tailored-agentic-units/stateopt/graph"
	"github.com/tailored-agentic-units/stateopt/jsonpath"
)

// Eliminate removes single-assignment, single-use variables. The use is
// rewritten to read the assignment's source (a literal or another slot)
// directly, and assignments left without uses are dropped: transparent
// Pass states are spliced out, other states keep running with their
// ResultPath set to null.
//
// It returns the names of the dropped states and the rewritten graph.
func Eliminate(start string, states graph.States) ([]string, graph.States, error) {
	res, err := eliminate(start, states)
	if err != nil {
		return nil, nil, err
	}
	return res.dropped, res.states, nil
}

type eliminationResult struct {
	states     graph.States
	dropped    []string
	eliminated []string
}

type eliminator struct {
	start  string
	states graph.States
	an     *Analysis
}

func eliminate(start string, states graph.States) (*eliminationResult, error) {
	an, err := Analyze(start, states)
	if err != nil {
		return nil, err
	}
	e := &eliminator{start: start, states: states.Clone(), an: an}

	var eliminated []string
	for _, root := range e.candidates() {
		ok, err := e.eliminateRoot(root)
		if err != nil {
			return nil, err
		}
		if ok {
			eliminated = append(eliminated, root)
		}
	}

	dropped := e.sweep()
	return &eliminationResult{states: e.states, dropped: dropped, eliminated: eliminated}, nil
}

// candidates orders the assigned roots by the topological index of their
// first assignment, ties broken by name.
func (e *eliminator) candidates() []string {
	var roots []string
	for _, root := range e.an.Roots {
		if len(e.an.Stats[root].Assigns) > 0 {
			roots = append(roots, root)
		}
	}
	slices.SortStableFunc(roots, func(a, b string) int {
		ia := e.an.Stats[a].Assigns[0].Index
		ib := e.an.Stats[b].Assigns[0].Index
		if c := cmp.Compare(ia, ib); c != 0 {
			return c
		}
		return cmp.Compare(a, b)
	})
	return roots
}

func (e *eliminator) eliminateRoot(root string) (bool, error) {
	st := e.an.Stats[root]
	if len(st.Assigns) != 1 || len(st.Uses) != 1 {
		return false, nil
	}
	a, u := st.Assigns[0], st.Uses[0]

	if a.State == u.State || u.Index <= a.Index {
		return false, nil
	}
	if !jsonpath.IsPrefix(a.Write, u.Read) {
		return false, nil
	}
	if !e.dominates(a.State, u.State) || e.observedWhole(a) {
		return false, nil
	}
	if e.interferes(a, u, e.an.WholeWrites) {
		return false, nil
	}

	suffix, ok := jsonpath.Suffix(u.Read, a.Write)
	if !ok {
		return false, nil
	}

	switch {
	case a.Kind.IsLiteral():
		if u.Kind == StateInput && u.Field.first() == "ItemsPath" {
			return false, nil
		}
		if !suffix.Definite() {
			return false, nil
		}
		val, err := suffix.Get(a.Value)
		if err != nil {
			return false, nil
		}
		changed, err := e.rewriteLiteral(u, val)
		if err != nil || !changed {
			return false, err
		}
		e.retireLiteral(root, u, val)
		return true, nil

	case a.Kind == Assignment || a.Kind == PropertyAssignment:
		src := a.Read
		srcRoot, ok := variableRoot(src)
		if !ok || srcRoot == root {
			return false, nil
		}
		srcPath, err := jsonpath.Parse(src)
		if err != nil || (len(suffix) > 0 && !srcPath.Definite()) {
			return false, nil
		}
		if e.interferes(a, u, e.an.Stats[srcRoot].Assigns) {
			return false, nil
		}
		read, ok := jsonpath.ReplacePrefix(u.Read, a.Write, src)
		if !ok {
			return false, nil
		}
		changed, err := e.rewriteReference(u, read)
		if err != nil || !changed {
			return false, err
		}
		e.retireReference(root, u, read)
		return true, nil
	}
	return false, nil
}

// dominates reports whether every path from the start state to use passes
// through def.
func (e *eliminator) dominates(def, use string) bool {
	return !graph.ReachableAvoiding(e.start, e.states, def)[use]
}

// observedWhole reports whether a whole-document read can run after the
// assignment and observe the slot it wrote.
func (e *eliminator) observedWhole(a *Usage) bool {
	for _, w := range e.an.WholeReads {
		if graph.Reaches(e.states, a.State, w.State, "") {
			return true
		}
	}
	return false
}

// interferes reports whether one of writes may run between the assignment
// and the use. A write whose topological index lies strictly between the
// two always interferes; so does a write that is reachable from the
// assignment and reaches the use without passing through it again.
func (e *eliminator) interferes(a, u *Usage, writes []*Usage) bool {
	for _, w := range writes {
		if w == a {
			continue
		}
		if a.Index < w.Index && w.Index < u.Index {
			return true
		}
		if w.State != a.State && !graph.Reaches(e.states, a.State, w.State, "") {
			continue
		}
		if graph.Reaches(e.states, w.State, u.State, a.State) {
			return true
		}
	}
	return false
}

func (e *eliminator) retireUse(root string, u *Usage) {
	st := e.an.Stats[root]
	st.Uses = slices.DeleteFunc(st.Uses, func(x *Usage) bool { return x == u })
}

func (e *eliminator) retireLiteral(root string, u *Usage, val any) {
	e.retireUse(root, u)
	u.Read = ""
	switch u.Kind {
	case Assignment:
		u.Kind = LiteralAssignment
		u.Value = val
		u.Field = FieldPath{"Result"}
	case PropertyAssignment:
		u.Kind = LiteralPropAssignment
		u.Value = val
		if n := len(u.Field); n > 0 {
			if key, ok := u.Field[n-1].(string); ok {
				u.Field[n-1] = graph.TemplateKeyName(key)
			}
		}
	}
}

func (e *eliminator) retireReference(root string, u *Usage, read string) {
	e.retireUse(root, u)
	u.Read = read
	if r, ok := variableRoot(read); ok {
		st := e.an.stats(r)
		st.Uses = append(st.Uses, u)
		slices.SortStableFunc(st.Uses, func(x, y *Usage) int { return cmp.Compare(x.Index, y.Index) })
	}
}

// sweep removes the assignments of roots left without uses.
func (e *eliminator) sweep() []string {
	redirect := make(map[string]string)
	discard := make(map[string][]FieldPath)

	for _, root := range e.an.Roots {
		st := e.an.Stats[root]
		if len(st.Uses) > 0 {
			continue
		}
		for _, a := range st.Assigns {
			if e.observedWhole(a) {
				continue
			}
			if p, ok := e.states[a.State].(*graph.PassState); ok {
				if a.State != e.start && p.OutputPath == nil && p.Next != "" && !p.End {
					redirect[a.State] = p.Next
					continue
				}
				discard[a.State] = append(discard[a.State], FieldPath{"ResultPath"})
				continue
			}
			discard[a.State] = append(discard[a.State], a.Field)
		}
	}

	out, dropped := graph.Bypass(e.states, redirect)
	removed := make(map[string]bool, len(dropped))
	for _, name := range dropped {
		removed[name] = true
	}
	for name := range redirect {
		if !removed[name] {
			discard[name] = append(discard[name], FieldPath{"ResultPath"})
		}
	}

	for _, name := range slices.Sorted(maps.Keys(discard)) {
		if removed[name] {
			continue
		}
		st, ok := out[name]
		if !ok {
			continue
		}
		out[name] = discardResults(st, discard[name])
	}
	e.states = out
	return dropped
}

// discardResults returns a copy of s with the ResultPath of each field
// (the state's own or a Catch handler's) set to null.
func discardResults(s graph.State, fields []FieldPath) graph.State {
	c := graph.Clone(s)
	for _, f := range fields {
		switch f.first() {
		case "ResultPath", "Result", "Parameters", "InputPath":
			setResultPath(c, graph.NullPath())
		case "Catch":
			if len(f) < 2 {
				continue
			}
			i, ok := f[1].(int)
			if !ok {
				continue
			}
			if catchers := catchersOf(c); i >= 0 && i < len(catchers) {
				catchers[i].ResultPath = graph.NullPath()
			}
		}
	}
	return c
}

func setResultPath(s graph.State, rp *graph.OptionalPath) {
	switch st := s.(type) {
	case *graph.PassState:
		st.ResultPath = rp
	case *graph.TaskState:
		st.ResultPath = rp
	case *graph.MapState:
		st.ResultPath = rp
	case *graph.ParallelState:
		st.ResultPath = rp
	}
}

func catchersOf(s graph.State) []graph.Catcher {
	switch st := s.(type) {
	case *graph.TaskState:
		return st.Catch
	case *graph.MapState:
		return st.Catch
	case *graph.ParallelState:
		return st.Catch
	}
	return nil
}

func (f FieldPath) first() string {
	if len(f) == 0 {
		return ""
	}
	s, _ := f[0].(string)
	return s
}
