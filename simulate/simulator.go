package simulate

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/tailored-agentic-units/stateopt/config"
	"github.com/tailored-agentic-units/stateopt/graph"
	"github.com/tailored-agentic-units/stateopt/observability"
)

const source = "simulate.Simulator"

// Simulator interprets machine definitions against JSON documents.
type Simulator struct {
	maxTransitions int
	handler        TaskHandler
	observer       observability.Observer
}

// New creates a Simulator, resolving the observer named in cfg. A nil
// handler echoes task inputs.
func New(cfg config.SimulateConfig, handler TaskHandler) (*Simulator, error) {
	observer, err := observability.GetObserver(cfg.Observer)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve observer: %w", err)
	}
	return NewWithObserver(cfg, handler, observer), nil
}

// NewWithObserver creates a Simulator reporting to observer.
func NewWithObserver(cfg config.SimulateConfig, handler TaskHandler, observer observability.Observer) *Simulator {
	if handler == nil {
		handler = EchoHandler
	}
	if observer == nil {
		observer = observability.NoOpObserver{}
	}
	maxTransitions := cfg.MaxTransitions
	if maxTransitions <= 0 {
		maxTransitions = config.DefaultSimulateConfig().MaxTransitions
	}
	return &Simulator{
		maxTransitions: maxTransitions,
		handler:        handler,
		observer:       observer,
	}
}

// Run interprets m against input with default settings and no observer.
func Run(ctx context.Context, m graph.Machine, input any, handler TaskHandler) (any, error) {
	sim := NewWithObserver(config.DefaultSimulateConfig(), handler, nil)
	exec, err := sim.Execute(ctx, m, input)
	if err != nil {
		return nil, err
	}
	return exec.Output, nil
}

// Execution is the outcome of a successful run.
type Execution struct {
	ID     string
	Output any

	// Path lists the top-level states visited, in order.
	Path []string

	Transitions int
}

// Execute interprets m against input.
//
// The loop starts at m.StartAt, runs the current state and follows its
// transition until a state ends the machine. Map iterations and Parallel
// branches run as nested machines and share the transition budget. A
// failure is returned as *ExecutionError; errors raised by Fail states and
// task handlers unwrap to *StatesError.
func (s *Simulator) Execute(ctx context.Context, m graph.Machine, input any) (*Execution, error) {
	x := &execution{
		Simulator: s,
		id:        uuid.NewString(),
		input:     input,
	}

	observability.Emit(ctx, s.observer, EventSimulateStart, observability.LevelVerbose, source, map[string]any{
		"run_id":   x.id,
		"start_at": m.StartAt,
		"states":   len(m.States),
	})

	out, path, err := x.run(ctx, m, input)
	if err != nil {
		return nil, err
	}

	observability.Emit(ctx, s.observer, EventSimulateComplete, observability.LevelVerbose, source, map[string]any{
		"run_id":      x.id,
		"transitions": x.transitions,
		"path_length": len(path),
	})
	return &Execution{ID: x.id, Output: out, Path: path, Transitions: x.transitions}, nil
}

// execution is the state of one Execute call.
type execution struct {
	*Simulator
	id          string
	input       any
	transitions int
}

// run interprets one machine, top-level or nested.
func (x *execution) run(ctx context.Context, m graph.Machine, input any) (any, []string, error) {
	current := m.StartAt
	doc := input
	visited := make(map[string]int)
	var path []string

	fail := func(err error) (any, []string, error) {
		return nil, path, &ExecutionError{StateName: current, Path: path, Err: err}
	}

	for {
		if err := ctx.Err(); err != nil {
			return fail(fmt.Errorf("execution cancelled: %w", err))
		}

		x.transitions++
		if x.transitions > x.maxTransitions {
			return fail(fmt.Errorf("%w (%d)", ErrMaxTransitions, x.maxTransitions))
		}

		visited[current]++
		path = append(path, current)
		if visited[current] > 1 {
			observability.Emit(ctx, x.observer, EventSimulateCycle, observability.LevelVerbose, source, map[string]any{
				"run_id":      x.id,
				"state":       current,
				"visit_count": visited[current],
			})
		}

		st, ok := m.States[current]
		if !ok {
			return fail(fmt.Errorf("%w: %s", graph.ErrMissingState, current))
		}

		sc := &stateContext{exec: x, name: current}
		out, next, err := sc.step(ctx, st, doc)

		observability.Emit(ctx, x.observer, EventSimulateState, observability.LevelVerbose, source, map[string]any{
			"run_id": x.id,
			"state":  current,
			"type":   string(st.Type()),
			"next":   next,
			"error":  err != nil,
		})

		if err != nil {
			return fail(err)
		}
		if next == "" {
			return out, path, nil
		}
		doc = out
		current = next
	}
}
