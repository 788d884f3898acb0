// Command tb is a command-line client for the travel blog API.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
)

// Build information, set via ldflags.
var (
	version   = "dev"
	buildDate = "unknown"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app := newApp(os.Stdin, os.Stdout, os.Stderr)
	if err := app.RunContext(ctx, os.Args); err != nil {
		report(os.Stderr, err)
		stop()
		os.Exit(1)
	}
}
