package optimize

import "errors"

// Sentinel errors for internal-consistency violations. Optimizations that
// are merely unsupported are skipped, never reported.
var (
	ErrUnhandledState = errors.New("unhandled state type")
	ErrNonStringKey   = errors.New("non-string key in payload template")
	ErrLiteralItems   = errors.New("map items cannot be a literal")
)
