package simulate

import "context"

// TaskHandler performs the work of Task states.
type TaskHandler interface {
	Invoke(ctx context.Context, resource string, input any) (any, error)
}

// TaskFunc adapts a function to TaskHandler.
type TaskFunc func(ctx context.Context, resource string, input any) (any, error)

func (f TaskFunc) Invoke(ctx context.Context, resource string, input any) (any, error) {
	return f(ctx, resource, input)
}

// EchoHandler returns every task's input as its result.
var EchoHandler TaskHandler = TaskFunc(func(ctx context.Context, resource string, input any) (any, error) {
	return input, nil
})

// Resources dispatches on the task resource. Unknown resources fail with
// States.TaskFailed.
type Resources map[string]TaskHandler

func (r Resources) Invoke(ctx context.Context, resource string, input any) (any, error) {
	h, ok := r[resource]
	if !ok {
		return nil, &StatesError{Name: ErrorTaskFailed, Cause: "unknown resource " + resource}
	}
	return h.Invoke(ctx, resource, input)
}
