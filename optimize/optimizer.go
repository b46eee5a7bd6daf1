package optimize

import (
	"context"
	"fmt"
	"maps"
	"slices"

	"github.com/google/uuid"

	"github.com/tailored-agentic-units/stateopt/config"
	"github.com/tailored-agentic-units/stateopt/graph"
	"github.com/tailored-agentic-units/stateopt/observability"
)

const source = "optimize.Optimizer"

// Pass names reported in events.
const (
	PassRemoveUnreachable = "remove_unreachable_states"
	PassJoinChoices       = "join_consecutive_choices"
	PassEliminate         = "optimize_variable_assignments"
	PassRemoveNoOps       = "remove_no_op_states"
	PassFinalSweep        = "final_sweep"
)

// Optimizer runs the configured passes over a state graph.
//
// The pipeline order is fixed: unreachable-state removal, choice-chain
// joining, variable elimination, no-op removal and a final reachability
// sweep that always runs. Every pass consumes the graph produced by the
// previous one; the input graph is never modified.
type Optimizer struct {
	cfg      config.OptimizeConfig
	observer observability.Observer
}

// New creates an Optimizer, resolving the observer named in cfg.
func New(cfg config.OptimizeConfig) (*Optimizer, error) {
	observer, err := observability.GetObserver(cfg.Observer)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve observer: %w", err)
	}
	return &Optimizer{cfg: cfg, observer: observer}, nil
}

// NewWithObserver creates an Optimizer reporting to observer. A nil
// observer discards events.
func NewWithObserver(cfg config.OptimizeConfig, observer observability.Observer) *Optimizer {
	if observer == nil {
		observer = observability.NoOpObserver{}
	}
	return &Optimizer{cfg: cfg, observer: observer}
}

// Result is the outcome of one optimization run.
type Result struct {
	RunID  string
	States graph.States

	// Removed lists the states that no longer exist, sorted. States of
	// nested machines are prefixed with the owning state's name and "/".
	Removed []string

	// Eliminated lists the variable roots that were bypassed.
	Eliminated []string

	// Joined lists the Choice states that absorbed a downstream Choice.
	Joined []string
}

// Graph optimizes states with every pass enabled unless partial disables
// it. partial may be nil. Events are discarded unless partial names an
// observer.
func Graph(start string, states graph.States, partial *config.OptimizeConfig) (graph.States, error) {
	cfg := config.DefaultOptimizeConfig()
	cfg.Observer = "noop"
	if partial != nil {
		cfg.Merge(partial)
	}
	o, err := New(cfg)
	if err != nil {
		return nil, err
	}
	res, err := o.Optimize(context.Background(), start, states)
	if err != nil {
		return nil, err
	}
	return res.States, nil
}

// Optimize runs the pipeline over the graph rooted at start. The input must
// be a valid graph; the output is validated before it is returned.
func (o *Optimizer) Optimize(ctx context.Context, start string, states graph.States) (*Result, error) {
	if err := graph.Validate(start, states); err != nil {
		return nil, fmt.Errorf("invalid input graph: %w", err)
	}

	r := &run{
		Optimizer: o,
		id:        uuid.NewString(),
	}

	observability.Emit(ctx, o.observer, EventOptimizeStart, observability.LevelVerbose, source, map[string]any{
		"run_id":              r.id,
		"start":               start,
		"states":              len(states),
		PassRemoveUnreachable: o.cfg.RemoveUnreachableStates(),
		PassJoinChoices:       o.cfg.JoinConsecutiveChoices(),
		PassEliminate:         o.cfg.OptimizeVariableAssignments(),
		PassRemoveNoOps:       o.cfg.RemoveNoOpStates(),
	})

	out, err := r.optimize(ctx, "", start, states)
	if err != nil {
		return nil, err
	}
	if err := graph.Validate(start, out); err != nil {
		return nil, fmt.Errorf("optimized graph is invalid: %w", err)
	}

	slices.Sort(r.removed)
	res := &Result{
		RunID:      r.id,
		States:     out,
		Removed:    r.removed,
		Eliminated: r.eliminated,
		Joined:     r.joined,
	}

	observability.Emit(ctx, o.observer, EventOptimizeComplete, observability.LevelInfo, source, map[string]any{
		"run_id":     r.id,
		"states_in":  len(states),
		"states_out": len(out),
		"removed":    len(res.Removed),
		"eliminated": len(res.Eliminated),
		"joined":     len(res.Joined),
	})
	return res, nil
}

// OptimizeMachine optimizes a complete machine definition.
func (o *Optimizer) OptimizeMachine(ctx context.Context, m graph.Machine) (graph.Machine, *Result, error) {
	res, err := o.Optimize(ctx, m.StartAt, m.States)
	if err != nil {
		return graph.Machine{}, nil, err
	}
	out := m
	out.States = res.States
	return out, res, nil
}

// run carries the bookkeeping of one Optimize call across nested machines.
type run struct {
	*Optimizer
	id         string
	removed    []string
	eliminated []string
	joined     []string
}

func (r *run) optimize(ctx context.Context, scope, start string, states graph.States) (graph.States, error) {
	cur, err := r.nested(ctx, scope, states)
	if err != nil {
		return nil, err
	}

	type pass struct {
		name    string
		enabled bool
		apply   func(graph.States) (graph.States, error)
	}
	passes := []pass{
		{PassRemoveUnreachable, r.cfg.RemoveUnreachableStates(), func(s graph.States) (graph.States, error) {
			return graph.RemoveUnreachableStates(start, s), nil
		}},
		{PassJoinChoices, r.cfg.JoinConsecutiveChoices(), func(s graph.States) (graph.States, error) {
			out, joined := JoinConsecutiveChoices(s)
			for _, name := range joined {
				observability.Emit(ctx, r.observer, EventChoicesJoined, observability.LevelVerbose, source, map[string]any{
					"run_id": r.id,
					"scope":  scope,
					"state":  name,
				})
			}
			r.joined = append(r.joined, scoped(scope, joined)...)
			return out, nil
		}},
		{PassEliminate, r.cfg.OptimizeVariableAssignments(), func(s graph.States) (graph.States, error) {
			res, err := eliminate(start, s)
			if err != nil {
				return nil, err
			}
			for _, root := range res.eliminated {
				observability.Emit(ctx, r.observer, EventVariableEliminated, observability.LevelVerbose, source, map[string]any{
					"run_id":   r.id,
					"scope":    scope,
					"variable": root,
				})
			}
			r.eliminated = append(r.eliminated, scoped(scope, res.eliminated)...)
			return res.states, nil
		}},
		{PassRemoveNoOps, r.cfg.RemoveNoOpStates(), func(s graph.States) (graph.States, error) {
			out, _ := RemoveNoOpStates(start, s)
			return out, nil
		}},
		{PassFinalSweep, true, func(s graph.States) (graph.States, error) {
			return graph.RemoveUnreachableStates(start, s), nil
		}},
	}

	for _, p := range passes {
		if !p.enabled {
			continue
		}
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("optimization cancelled before %s: %w", p.name, err)
		}

		next, err := p.apply(cur)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", p.name, err)
		}
		r.report(ctx, scope, p.name, cur, next)
		cur = next
	}
	return cur, nil
}

// nested optimizes the iterator of every Map state and the branches of
// every Parallel state as independent graphs.
func (r *run) nested(ctx context.Context, scope string, states graph.States) (graph.States, error) {
	out := states
	cloned := false
	set := func(name string, s graph.State) {
		if !cloned {
			out = states.Clone()
			cloned = true
		}
		out[name] = s
	}

	for _, name := range slices.Sorted(maps.Keys(states)) {
		switch st := states[name].(type) {
		case *graph.MapState:
			it, err := r.optimize(ctx, scope+name+"/", st.Iterator.StartAt, st.Iterator.States)
			if err != nil {
				return nil, err
			}
			c := graph.Clone(st).(*graph.MapState)
			c.Iterator.States = it
			set(name, c)
		case *graph.ParallelState:
			c := graph.Clone(st).(*graph.ParallelState)
			for i, b := range c.Branches {
				bs, err := r.optimize(ctx, fmt.Sprintf("%s%s[%d]/", scope, name, i), b.StartAt, b.States)
				if err != nil {
					return nil, err
				}
				c.Branches[i].States = bs
			}
			set(name, c)
		}
	}
	return out, nil
}

func (r *run) report(ctx context.Context, scope, pass string, before, after graph.States) {
	var removed []string
	for name := range before {
		if _, ok := after[name]; !ok {
			removed = append(removed, name)
		}
	}
	slices.Sort(removed)

	for _, name := range removed {
		observability.Emit(ctx, r.observer, EventStateRemoved, observability.LevelVerbose, source, map[string]any{
			"run_id": r.id,
			"pass":   pass,
			"state":  scope + name,
		})
	}
	r.removed = append(r.removed, scoped(scope, removed)...)

	observability.Emit(ctx, r.observer, EventOptimizePass, observability.LevelVerbose, source, map[string]any{
		"run_id":        r.id,
		"scope":         scope,
		"pass":          pass,
		"states_before": len(before),
		"states_after":  len(after),
	})
}

func scoped(scope string, names []string) []string {
	if scope == "" {
		return names
	}
	out := make([]string, len(names))
	for i, n := range names {
		out[i] = scope + n
	}
	return out
}
