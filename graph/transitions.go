package graph

import "slices"

// VisitTransitions calls fn for every outgoing transition of s in
// declaration order: Next, Choice rules, Default, then Catch handlers.
// Nested machines are not visited; they have their own namespace.
func VisitTransitions(s State, fn func(target string)) {
	visit := func(name string) {
		if name != "" {
			fn(name)
		}
	}
	visitCatch := func(catchers []Catcher) {
		for _, c := range catchers {
			visit(c.Next)
		}
	}

	switch st := s.(type) {
	case *PassState:
		visit(st.Next)
	case *TaskState:
		visit(st.Next)
		visitCatch(st.Catch)
	case *MapState:
		visit(st.Next)
		visitCatch(st.Catch)
	case *ParallelState:
		visit(st.Next)
		visitCatch(st.Catch)
	case *ChoiceState:
		for _, r := range st.Choices {
			visit(r.Next)
		}
		visit(st.Default)
	case *WaitState:
		visit(st.Next)
	}
}

// Transitions returns the outgoing transitions of s.
func Transitions(s State) []string {
	var out []string
	VisitTransitions(s, func(target string) {
		out = append(out, target)
	})
	return out
}

// Retarget returns s with every transition target t replaced by fn(t). The
// original state is returned unchanged when fn maps every target to itself.
func Retarget(s State, fn func(string) string) State {
	changed := false
	VisitTransitions(s, func(target string) {
		if fn(target) != target {
			changed = true
		}
	})
	if !changed {
		return s
	}

	remap := func(name string) string {
		if name == "" {
			return name
		}
		return fn(name)
	}
	remapCatch := func(catchers []Catcher) {
		for i := range catchers {
			catchers[i].Next = remap(catchers[i].Next)
		}
	}

	c := Clone(s)
	switch st := c.(type) {
	case *PassState:
		st.Next = remap(st.Next)
	case *TaskState:
		st.Next = remap(st.Next)
		remapCatch(st.Catch)
	case *MapState:
		st.Next = remap(st.Next)
		remapCatch(st.Catch)
	case *ParallelState:
		st.Next = remap(st.Next)
		remapCatch(st.Catch)
	case *ChoiceState:
		for i := range st.Choices {
			st.Choices[i].Next = remap(st.Choices[i].Next)
		}
		st.Default = remap(st.Default)
	case *WaitState:
		st.Next = remap(st.Next)
	}
	return c
}

// Bypass removes the states named in redirect, retargeting every transition
// into a removed state to its redirect target. Chains of removed states are
// followed transitively. A state whose chain runs into a cycle of removed
// states cannot be resolved to an exit; it is kept, and so are the
// transitions into it.
//
// Bypass returns the new map and the names that were removed.
func Bypass(states States, redirect map[string]string) (States, []string) {
	resolved := make(map[string]string, len(redirect))
	for name := range redirect {
		if target, ok := resolveRedirect(name, redirect); ok {
			resolved[name] = target
		}
	}
	if len(resolved) == 0 {
		return states, nil
	}

	retarget := func(t string) string {
		if r, ok := resolved[t]; ok {
			return r
		}
		return t
	}

	out := make(States, len(states))
	var removed []string
	for name, st := range states {
		if _, ok := resolved[name]; ok {
			removed = append(removed, name)
			continue
		}
		out[name] = Retarget(st, retarget)
	}
	slices.Sort(removed)
	return out, removed
}

func resolveRedirect(name string, redirect map[string]string) (string, bool) {
	visited := map[string]bool{name: true}
	current := redirect[name]
	for {
		next, ok := redirect[current]
		if !ok {
			return current, true
		}
		if visited[current] {
			return "", false
		}
		visited[current] = true
		current = next
	}
}
