package simulate

import (
	"errors"
	"fmt"
	"slices"
)

// ErrMaxTransitions reports that a run exceeded its transition budget.
var ErrMaxTransitions = errors.New("max transitions exceeded")

// Error names raised by the interpreter itself.
const (
	ErrorAll             = "States.ALL"
	ErrorRuntime         = "States.Runtime"
	ErrorTaskFailed      = "States.TaskFailed"
	ErrorNoChoiceMatched = "States.NoChoiceMatched"
	ErrorIntrinsicFailed = "States.IntrinsicFailure"
)

// ExecutionError captures where a run failed.
//
//   - StateName: the state that failed
//   - Path: the states visited up to and including the failure
//   - Err: the underlying error, often a *StatesError
type ExecutionError struct {
	StateName string
	Path      []string
	Err       error
}

// Error implements the error interface.
func (e *ExecutionError) Error() string {
	return fmt.Sprintf("execution failed at state %s: %v", e.StateName, e.Err)
}

// Unwrap enables error unwrapping for errors.Is and errors.As.
func (e *ExecutionError) Unwrap() error {
	return e.Err
}

// StatesError is a named machine error: raised by a Fail state, returned by
// a task handler, or produced by the interpreter. Catch and Retry match on
// Name.
type StatesError struct {
	Name  string
	Cause string
}

func (e *StatesError) Error() string {
	if e.Cause == "" {
		return e.Name
	}
	return e.Name + ": " + e.Cause
}

func runtimeError(format string, args ...any) *StatesError {
	return &StatesError{Name: ErrorRuntime, Cause: fmt.Sprintf(format, args...)}
}

// asStatesError converts any error to a named machine error. Errors that
// are not *StatesError become States.TaskFailed.
func asStatesError(err error) *StatesError {
	var se *StatesError
	if errors.As(err, &se) {
		return se
	}
	return &StatesError{Name: ErrorTaskFailed, Cause: err.Error()}
}

// matches reports whether a Catch or Retry ErrorEquals list covers name.
// States.ALL matches every error except States.Runtime.
func matches(errorEquals []string, name string) bool {
	if slices.Contains(errorEquals, name) {
		return true
	}
	return name != ErrorRuntime && slices.Contains(errorEquals, ErrorAll)
}
