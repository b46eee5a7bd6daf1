package graph

import "errors"

// Sentinel errors for decoding and validating machines.
var (
	ErrUnknownStateType  = errors.New("unknown state type")
	ErrInvalidCondition  = errors.New("invalid condition")
	ErrEmptyStart        = errors.New("start state is empty")
	ErrMissingState      = errors.New("state does not exist")
	ErrInvalidTransition = errors.New("invalid transition")
)
