// Package config provides configuration structures for the optimizer, the
// reference interpreter and the RPC server.
//
// Configuration only exists during initialization: constructors such as
// optimize.New resolve names (observers) and copy values into runtime
// objects.
//
// # Configuration Merging
//
// Every type supports a Merge pattern so loaded configs layer over
// defaults:
//
//	cfg := config.DefaultConfig()
//	loaded, _ := config.Parse(data, ".yaml")
//	cfg.Merge(loaded)
//
// Merge semantics by field type:
//
//   - Strings: Merge if source is non-empty
//   - Integers: Merge if source is greater than zero
//   - Pointers: Merge if source is non-nil
//   - Nested configs: Recursive merge
//
// # Boolean Fields with Non-False Defaults
//
// The optimizer toggles default to true. They are *bool fields with a "Nil"
// suffix plus an accessor with the plain name:
//
//	type OptimizeConfig struct {
//	    RemoveNoOpStatesNil *bool `json:"remove_no_op_states"`
//	}
//
//	func (c *OptimizeConfig) RemoveNoOpStates() bool // nil -> true
//
// A partial JSON config such as {"remove_no_op_states": false} then
// disables one pass without silently disabling the others.
package config
