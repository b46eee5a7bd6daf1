// Package optimize rewrites workflow state graphs to remove redundant states
// and variable indirections without changing their observable behavior.
//
// # Passes
//
// The Optimizer runs a fixed pipeline. Each pass is a pure function from one
// graph.States map to a new one:
//
//   - Unreachable-state removal keeps the states reachable from the start.
//   - JoinConsecutiveChoices merges chained Choice states by conjoining
//     their predicates.
//   - Eliminate bypasses variables that are assigned once and used once.
//   - RemoveNoOpStates splices out Pass states that only transition.
//   - A final reachability sweep always runs.
//
// Every pass except the final sweep can be disabled through
// config.OptimizeConfig:
//
//	partial := config.OptimizeConfig{RemoveNoOpStatesNil: config.Bool(false)}
//	states, err := optimize.Graph("Start", states, &partial)
//
// # Variable analysis
//
// Analyze classifies every read and write of a document slot into a
// UsageKind and groups the usages by variable root, the first segment of
// the slot. Usages carry the topological index of their state; an
// assignment whose index lies strictly between a definition and its use
// blocks the elimination. Reads and writes of the whole document touch
// every root and are tracked separately.
//
// Elimination is conservative. Variables with several assignments or uses
// are left alone, as are uses through filters and the machine's output.
// Skipping is always behavior-preserving.
package optimize
