package graph

import (
	"fmt"
	"maps"
	"slices"
)

// Validate checks the structural invariants of a machine:
//   - the start state exists
//   - every Next, Default, Choice rule and Catch target exists
//   - states that continue have exactly one of Next and End
//   - Choice states have at least one rule
//   - nested Map and Parallel machines are valid
func Validate(start string, states States) error {
	if start == "" {
		return ErrEmptyStart
	}
	if _, ok := states[start]; !ok {
		return fmt.Errorf("%w: start state %s", ErrMissingState, start)
	}

	for _, name := range slices.Sorted(maps.Keys(states)) {
		if err := validateState(name, states[name], states); err != nil {
			return err
		}
	}
	return nil
}

// Validate checks the machine's structural invariants.
func (m Machine) Validate() error {
	return Validate(m.StartAt, m.States)
}

func validateState(name string, s State, states States) error {
	var missing string
	VisitTransitions(s, func(target string) {
		if _, ok := states[target]; !ok && missing == "" {
			missing = target
		}
	})
	if missing != "" {
		return fmt.Errorf("%w: %s transitions to %s", ErrMissingState, name, missing)
	}

	checkNext := func(next string, end bool) error {
		if (next == "") == !end {
			return fmt.Errorf("%w: %s must set exactly one of Next and End", ErrInvalidTransition, name)
		}
		return nil
	}

	switch st := s.(type) {
	case *PassState:
		return checkNext(st.Next, st.End)
	case *TaskState:
		return checkNext(st.Next, st.End)
	case *WaitState:
		return checkNext(st.Next, st.End)
	case *MapState:
		if err := checkNext(st.Next, st.End); err != nil {
			return err
		}
		if err := st.Iterator.Validate(); err != nil {
			return fmt.Errorf("%s iterator: %w", name, err)
		}
	case *ParallelState:
		if err := checkNext(st.Next, st.End); err != nil {
			return err
		}
		for i, b := range st.Branches {
			if err := b.Validate(); err != nil {
				return fmt.Errorf("%s branch %d: %w", name, i, err)
			}
		}
	case *ChoiceState:
		if len(st.Choices) == 0 {
			return fmt.Errorf("%w: choice %s has no rules", ErrInvalidTransition, name)
		}
	case *SucceedState, *FailState:
	default:
		return fmt.Errorf("%w: %s is %T", ErrUnknownStateType, name, s)
	}
	return nil
}
