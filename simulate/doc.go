// Package simulate is a reference interpreter for workflow machines.
//
// It runs a graph.Machine against a JSON document and returns the output
// the machine would produce. Task states are delegated to a TaskHandler;
// Wait states validate their duration without sleeping. The optimizer's
// tests use it to check that an optimized graph produces the same outputs
// as the original for a set of sample documents.
//
// Document flow follows the usual path fields: InputPath selects the
// effective input, the result is placed into the raw input at ResultPath
// (a null ResultPath discards it) and OutputPath selects the output.
//
//	sim, err := simulate.New(config.DefaultSimulateConfig(), simulate.EchoHandler)
//	exec, err := sim.Execute(ctx, machine, map[string]any{"n": 1.0})
//	fmt.Println(exec.Output, exec.Path)
package simulate
