package simulate

import (
	"context"
	"errors"
	"time"

	"github.com/tailored-agentic-units/stateopt/graph"
	"github.com/tailored-agentic-units/stateopt/jsonpath"
	"github.com/tailored-agentic-units/stateopt/observability"
)

// stateContext evaluates one state of a run.
type stateContext struct {
	exec *execution
	name string

	// mapItem is {"Index", "Value"} while a Map state builds the input of
	// an iteration.
	mapItem map[string]any
}

// step runs s against doc and returns the state's output and the name of
// the next state. An empty next ends the machine.
func (sc *stateContext) step(ctx context.Context, s graph.State, doc any) (any, string, error) {
	switch st := s.(type) {
	case *graph.PassState:
		return sc.pass(st, doc)

	case *graph.TaskState:
		return sc.withRecovery(ctx, doc, st.Retry, st.Catch, st.ResultPath, st.OutputPath, st.Next, func() (any, error) {
			input, err := selectPath(doc, st.InputPath)
			if err != nil {
				return nil, err
			}
			if st.Parameters != nil {
				if input, err = sc.payload(st.Parameters, input); err != nil {
					return nil, err
				}
			}
			res, err := sc.exec.handler.Invoke(ctx, st.Resource, input)
			if err != nil {
				if ctx.Err() != nil {
					return nil, err
				}
				return nil, asStatesError(err)
			}
			return sc.selectResult(st.ResultSelector, res)
		})

	case *graph.MapState:
		return sc.withRecovery(ctx, doc, st.Retry, st.Catch, st.ResultPath, st.OutputPath, st.Next, func() (any, error) {
			return sc.mapItems(ctx, st, doc)
		})

	case *graph.ParallelState:
		return sc.withRecovery(ctx, doc, st.Retry, st.Catch, st.ResultPath, st.OutputPath, st.Next, func() (any, error) {
			return sc.parallel(ctx, st, doc)
		})

	case *graph.ChoiceState:
		return sc.choice(st, doc)

	case *graph.WaitState:
		return sc.wait(st, doc)

	case *graph.SucceedState:
		input, err := selectPath(doc, st.InputPath)
		if err != nil {
			return nil, "", err
		}
		out, err := selectPath(input, st.OutputPath)
		return out, "", err

	case *graph.FailState:
		return nil, "", &StatesError{Name: st.Error, Cause: st.Cause}
	}
	return nil, "", runtimeError("unsupported state type %T", s)
}

func (sc *stateContext) pass(st *graph.PassState, doc any) (any, string, error) {
	input, err := selectPath(doc, st.InputPath)
	if err != nil {
		return nil, "", err
	}

	var result any
	switch {
	case st.Result != nil:
		result = graph.CloneValue(st.Result)
	case st.Parameters != nil:
		if result, err = sc.payload(st.Parameters, input); err != nil {
			return nil, "", err
		}
	default:
		result = input
	}

	out, err := placeResult(doc, st.ResultPath, result)
	if err != nil {
		return nil, "", err
	}
	out, err = selectPath(out, st.OutputPath)
	if err != nil {
		return nil, "", err
	}
	return out, st.Next, nil
}

func (sc *stateContext) mapItems(ctx context.Context, st *graph.MapState, doc any) (any, error) {
	input, err := selectPath(doc, st.InputPath)
	if err != nil {
		return nil, err
	}
	itemsPath := st.ItemsPath
	if itemsPath == "" {
		itemsPath = jsonpath.Root
	}
	v, err := jsonpath.Get(input, itemsPath)
	if err != nil {
		return nil, runtimeError("items path %s: %v", itemsPath, err)
	}
	items, ok := v.([]any)
	if !ok {
		return nil, runtimeError("items path %s does not select an array", itemsPath)
	}

	results := make([]any, len(items))
	for i, item := range items {
		iterInput := graph.CloneValue(item)
		if st.Parameters != nil {
			ic := &stateContext{exec: sc.exec, name: sc.name, mapItem: map[string]any{
				"Index": float64(i),
				"Value": item,
			}}
			if iterInput, err = ic.payload(st.Parameters, input); err != nil {
				return nil, err
			}
		}
		out, _, err := sc.exec.run(ctx, st.Iterator, iterInput)
		if err != nil {
			return nil, nestedError(err)
		}
		results[i] = out
	}
	return sc.selectResult(st.ResultSelector, results)
}

func (sc *stateContext) parallel(ctx context.Context, st *graph.ParallelState, doc any) (any, error) {
	input, err := selectPath(doc, st.InputPath)
	if err != nil {
		return nil, err
	}
	if st.Parameters != nil {
		if input, err = sc.payload(st.Parameters, input); err != nil {
			return nil, err
		}
	}

	results := make([]any, len(st.Branches))
	for i, b := range st.Branches {
		out, _, err := sc.exec.run(ctx, b, graph.CloneValue(input))
		if err != nil {
			return nil, nestedError(err)
		}
		results[i] = out
	}
	return sc.selectResult(st.ResultSelector, results)
}

func (sc *stateContext) choice(st *graph.ChoiceState, doc any) (any, string, error) {
	input, err := selectPath(doc, st.InputPath)
	if err != nil {
		return nil, "", err
	}

	next := st.Default
	for _, r := range st.Choices {
		ok, err := evaluate(r.Condition, input)
		if err != nil {
			return nil, "", err
		}
		if ok {
			next = r.Next
			break
		}
	}
	if next == "" {
		return nil, "", &StatesError{Name: ErrorNoChoiceMatched, Cause: "no choice rule matched and no default is set"}
	}

	out, err := selectPath(input, st.OutputPath)
	if err != nil {
		return nil, "", err
	}
	return out, next, nil
}

// wait checks the wait duration without sleeping.
func (sc *stateContext) wait(st *graph.WaitState, doc any) (any, string, error) {
	input, err := selectPath(doc, st.InputPath)
	if err != nil {
		return nil, "", err
	}

	if st.SecondsPath != "" {
		v, err := jsonpath.Get(input, st.SecondsPath)
		if err != nil {
			return nil, "", runtimeError("seconds path %s: %v", st.SecondsPath, err)
		}
		if n, ok := v.(float64); !ok || n < 0 {
			return nil, "", runtimeError("seconds path %s does not select a non-negative number", st.SecondsPath)
		}
	}
	ts := st.Timestamp
	if st.TimestampPath != "" {
		v, err := jsonpath.Get(input, st.TimestampPath)
		if err != nil {
			return nil, "", runtimeError("timestamp path %s: %v", st.TimestampPath, err)
		}
		s, ok := v.(string)
		if !ok {
			return nil, "", runtimeError("timestamp path %s does not select a string", st.TimestampPath)
		}
		ts = s
	}
	if ts != "" {
		if _, err := time.Parse(time.RFC3339, ts); err != nil {
			return nil, "", runtimeError("invalid timestamp %q", ts)
		}
	}

	out, err := selectPath(input, st.OutputPath)
	if err != nil {
		return nil, "", err
	}
	return out, st.Next, nil
}

// withRecovery runs invoke, retrying and catching named errors as the state's
// Retry and Catch fields direct, and places the result in doc.
func (sc *stateContext) withRecovery(
	ctx context.Context,
	doc any,
	retry []graph.Retrier,
	catch []graph.Catcher,
	rp, op *graph.OptionalPath,
	next string,
	invoke func() (any, error),
) (any, string, error) {
	attempts := make([]int, len(retry))
	for {
		res, err := invoke()
		if err == nil {
			out, err := placeResult(doc, rp, res)
			if err != nil {
				return nil, "", err
			}
			out, err = selectPath(out, op)
			if err != nil {
				return nil, "", err
			}
			return out, next, nil
		}

		var se *StatesError
		if !errors.As(err, &se) {
			return nil, "", err
		}

		if i := retrier(retry, se.Name); i >= 0 && attempts[i] < maxAttempts(retry[i]) {
			attempts[i]++
			observability.Emit(ctx, sc.exec.observer, EventSimulateRetry, observability.LevelVerbose, source, map[string]any{
				"run_id":  sc.exec.id,
				"state":   sc.name,
				"error":   se.Name,
				"attempt": attempts[i],
			})
			continue
		}

		for _, c := range catch {
			if !matches(c.ErrorEquals, se.Name) {
				continue
			}
			out, err := placeResult(doc, c.ResultPath, map[string]any{
				"Error": se.Name,
				"Cause": se.Cause,
			})
			if err != nil {
				return nil, "", err
			}
			observability.Emit(ctx, sc.exec.observer, EventSimulateCatch, observability.LevelVerbose, source, map[string]any{
				"run_id": sc.exec.id,
				"state":  sc.name,
				"error":  se.Name,
				"next":   c.Next,
			})
			return out, c.Next, nil
		}
		return nil, "", se
	}
}

func retrier(retry []graph.Retrier, name string) int {
	for i, r := range retry {
		if matches(r.ErrorEquals, name) {
			return i
		}
	}
	return -1
}

func maxAttempts(r graph.Retrier) int {
	if r.MaxAttempts == nil {
		return 3
	}
	return *r.MaxAttempts
}

// nestedError surfaces the machine error of a failed nested run so the
// enclosing state can catch it. Other failures stay fatal.
func nestedError(err error) error {
	var se *StatesError
	if errors.As(err, &se) {
		return se
	}
	return err
}

func (sc *stateContext) selectResult(selector, result any) (any, error) {
	if selector == nil {
		return result, nil
	}
	return sc.payload(selector, result)
}

// selectPath applies an InputPath or OutputPath.
func selectPath(doc any, p *graph.OptionalPath) (any, error) {
	switch {
	case p == nil:
		return doc, nil
	case p.Null:
		return map[string]any{}, nil
	}
	v, err := jsonpath.Get(doc, p.Path)
	if err != nil {
		return nil, runtimeError("path %s: %v", p.Path, err)
	}
	return v, nil
}

// placeResult applies a ResultPath: the result replaces doc, is discarded,
// or is stored at the path in a copy of doc.
func placeResult(doc any, rp *graph.OptionalPath, result any) (any, error) {
	switch {
	case rp == nil:
		return result, nil
	case rp.Null:
		return doc, nil
	}
	if jsonpath.Normalize(rp.Path) == jsonpath.Root {
		return result, nil
	}
	out, err := jsonpath.Set(doc, rp.Path, result)
	if err != nil {
		return nil, runtimeError("result path %s: %v", rp.Path, err)
	}
	return out, nil
}
