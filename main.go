// switcherd bridges line-based TCP clients to a video switcher.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"switcherd/cmd"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(),
		os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := cmd.Execute(ctx, os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "switcherd: %v\n", err)
		os.Exit(1)
	}
}
