package graph

// Reachable returns the names of the states reachable from start by
// following every Next, Choice rule, Default and Catch transition.
// Transitions to names missing from states are not followed.
func Reachable(start string, states States) map[string]bool {
	return reachable(start, states, "")
}

// ReachableAvoiding is like Reachable but never enters the state named
// blocked. It answers whether every path from start to a state passes
// through blocked.
func ReachableAvoiding(start string, states States, blocked string) map[string]bool {
	return reachable(start, states, blocked)
}

func reachable(start string, states States, blocked string) map[string]bool {
	visited := make(map[string]bool)
	if start == blocked {
		return visited
	}

	var visit func(name string)
	visit = func(name string) {
		if visited[name] || name == blocked {
			return
		}
		st, ok := states[name]
		if !ok {
			return
		}
		visited[name] = true
		VisitTransitions(st, visit)
	}
	visit(start)
	return visited
}

// RemoveUnreachableStates returns the states reachable from start.
func RemoveUnreachableStates(start string, states States) States {
	reach := Reachable(start, states)
	out := make(States, len(reach))
	for name := range reach {
		out[name] = states[name]
	}
	return out
}

// Reaches reports whether a path of at least one transition leads from
// from to to without entering avoid. A state reaches itself only through a
// cycle.
func Reaches(states States, from, to, avoid string) bool {
	st, ok := states[from]
	if !ok {
		return false
	}
	visited := make(map[string]bool)
	found := false

	var visit func(name string)
	visit = func(name string) {
		if found || visited[name] || name == avoid {
			return
		}
		if name == to {
			found = true
			return
		}
		next, ok := states[name]
		if !ok {
			return
		}
		visited[name] = true
		VisitTransitions(next, visit)
	}
	VisitTransitions(st, visit)
	return found
}
