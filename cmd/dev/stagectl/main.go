// Command stagectl drives the stage change workflow against a running API: it loads a
// case and its pipeline, runs the same dialog the frontend runs, and submits.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"

	"caseflow/pkg/config"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	cmd := newRootCommand(config.Load())
	if err := cmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
