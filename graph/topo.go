package graph

// Entry is a named state in a topological order.
type Entry struct {
	Name  string
	State State
}

type mark int

const (
	unvisited mark = iota
	inProgress
	done
)

// TopologicalSort orders the states reachable from start so that, ignoring
// back edges, every state precedes its successors. Cycles are expected
// (loops, retries): an edge into a state that is still in progress adds no
// ordering constraint. The order is a timestamp for comparing program
// points, not a schedule.
func TopologicalSort(start string, states States) []Entry {
	marks := make(map[string]mark, len(states))
	var post []string

	var visit func(name string)
	visit = func(name string) {
		if marks[name] != unvisited {
			return
		}
		st, ok := states[name]
		if !ok {
			return
		}
		marks[name] = inProgress
		VisitTransitions(st, visit)
		marks[name] = done
		post = append(post, name)
	}
	visit(start)

	order := make([]Entry, len(post))
	for i, name := range post {
		order[len(post)-1-i] = Entry{Name: name, State: states[name]}
	}
	return order
}

// Indexes maps each state name in order to its position.
func Indexes(order []Entry) map[string]int {
	idx := make(map[string]int, len(order))
	for i, e := range order {
		idx[e.Name] = i
	}
	return idx
}
