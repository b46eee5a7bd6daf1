// Package graph models compiled workflow machines: named states linked by
// transitions, plus the structural algorithms the optimizer builds on.
//
// # State Model
//
// A Machine holds a start state name and a States map. State is a sealed
// interface implemented by *PassState, *TaskState, *MapState,
// *ParallelState, *ChoiceState, *WaitState, *SucceedState and *FailState.
// Code that handles states switches over the variants exhaustively and
// treats an unknown variant as an internal error.
//
// Path fields that distinguish "absent" from "null" use *OptionalPath:
//
//	st := &graph.PassState{
//	    InputPath:  graph.PathOf("$.heap0"),
//	    ResultPath: graph.NullPath(), // discard
//	    Next:       "Done",
//	}
//
// # Traversal
//
// VisitTransitions enumerates the outgoing transitions of a state. It is the
// single primitive behind Reachable, TopologicalSort, Retarget and Bypass.
//
//	reach := graph.Reachable(m.StartAt, m.States)
//	order := graph.TopologicalSort(m.StartAt, m.States)
//
// # Immutability
//
// Rewrites never modify a state in place: they Clone it, change the copy
// and return a new States map.
package graph
