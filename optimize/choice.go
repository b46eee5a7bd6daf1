package optimize

import (
	"maps"
	"slices"

	"github.com/tailored-agentic-units/stateopt/graph"
)

// JoinConsecutiveChoices merges Choice states into the Choice states that
// transition to them. A rule P leading to a Choice with rules Q1..Qn and
// default D becomes the rules P&&Q1 .. P&&Qn followed by P&&!(Q1||..||Qn)
// leading to D. A Default leading to a Choice adopts its rules and default.
//
// Only Choice states with a Default and without InputPath or OutputPath are
// merged. The downstream states are kept; a later reachability sweep drops
// them once nothing transitions to them.
//
// It returns the rewritten graph and the names of the Choice states that
// absorbed another.
func JoinConsecutiveChoices(states graph.States) (graph.States, []string) {
	j := &choiceJoiner{
		states: states,
		memo:   make(map[string]*graph.ChoiceState),
	}

	out := states.Clone()
	for _, name := range slices.Sorted(maps.Keys(states)) {
		if _, ok := states[name].(*graph.ChoiceState); !ok {
			continue
		}
		if c := j.visit(name); c != nil {
			out[name] = c
		}
	}
	slices.Sort(j.joined)
	return out, j.joined
}

type choiceJoiner struct {
	states graph.States

	// memo holds the rewritten Choice states. A nil entry marks a state
	// whose rewrite is in progress.
	memo   map[string]*graph.ChoiceState
	joined []string
}

func (j *choiceJoiner) visit(name string) *graph.ChoiceState {
	if c, ok := j.memo[name]; ok {
		return c
	}
	orig, ok := j.states[name].(*graph.ChoiceState)
	if !ok {
		return nil
	}

	j.memo[name] = nil
	c := j.join(name, orig)
	j.memo[name] = c
	return c
}

func (j *choiceJoiner) join(name string, orig *graph.ChoiceState) *graph.ChoiceState {
	if orig.InputPath != nil || orig.OutputPath != nil {
		return orig
	}

	changed := false
	var rules []graph.ChoiceRule
	for _, r := range orig.Choices {
		t := j.mergeable(name, r.Next)
		if t == nil {
			rules = append(rules, graph.ChoiceRule{Condition: r.Condition.Clone(), Next: r.Next})
			continue
		}

		nested := make([]graph.Condition, 0, len(t.Choices))
		for _, tr := range t.Choices {
			nested = append(nested, tr.Condition)
			rules = append(rules, graph.ChoiceRule{
				Condition: graph.And(r.Condition.Clone(), tr.Condition.Clone()),
				Next:      tr.Next,
			})
		}
		rules = append(rules, graph.ChoiceRule{
			Condition: graph.And(r.Condition.Clone(), graph.Not(graph.Or(cloneConditions(nested)...))),
			Next:      t.Default,
		})
		changed = true
	}

	def := orig.Default
	if t := j.mergeable(name, orig.Default); t != nil {
		for _, tr := range t.Choices {
			rules = append(rules, graph.ChoiceRule{Condition: tr.Condition.Clone(), Next: tr.Next})
		}
		def = t.Default
		changed = true
	}

	if !changed {
		return orig
	}
	j.joined = append(j.joined, name)

	c := graph.Clone(orig).(*graph.ChoiceState)
	c.Choices = rules
	c.Default = def
	return c
}

// mergeable returns the rewritten Choice state named target when it can be
// merged into self.
func (j *choiceJoiner) mergeable(self, target string) *graph.ChoiceState {
	if target == "" || target == self {
		return nil
	}
	t := j.visit(target)
	if t == nil || t.Default == "" || len(t.Choices) == 0 {
		return nil
	}
	if t.InputPath != nil || t.OutputPath != nil {
		return nil
	}
	return t
}

func cloneConditions(conds []graph.Condition) []graph.Condition {
	out := make([]graph.Condition, len(conds))
	for i, c := range conds {
		out[i] = c.Clone()
	}
	return out
}
