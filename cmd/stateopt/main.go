// Command stateopt optimizes, analyzes and runs workflow state machines.
//
//	stateopt optimize machine.json -o optimized.yaml --format yaml
//	stateopt analyze machine.json
//	stateopt run machine.json --input '{"n": 1}'
//	stateopt serve --addr :8080
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := newRootCmd().Run(ctx, os.Args[1:]); err != nil {
		fmt.Fprintln(os.Stderr, err)
		stop()
		os.Exit(1)
	}
}
