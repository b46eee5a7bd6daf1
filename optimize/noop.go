package optimize

import "github.com/tailored-agentic-units/stateopt/graph"

// RemoveNoOpStates splices out every Pass state, other than start, whose
// only effect is its Next transition. Transitions into a removed state are
// retargeted to the first state after the chain of no-ops. A cycle made
// only of no-ops has no exit; it is left in place together with the
// no-ops leading into it.
//
// It returns the rewritten graph and the names of the removed states.
func RemoveNoOpStates(start string, states graph.States) (graph.States, []string) {
	redirect := make(map[string]string)
	for name, s := range states {
		if name == start {
			continue
		}
		if p, ok := s.(*graph.PassState); ok && isNoOp(p) {
			redirect[name] = p.Next
		}
	}
	return graph.Bypass(states, redirect)
}

func isNoOp(p *graph.PassState) bool {
	return p.Next != "" &&
		!p.End &&
		p.InputPath == nil &&
		p.OutputPath == nil &&
		p.ResultPath == nil &&
		p.Parameters == nil &&
		p.Result == nil
}
