package main

import (
	"context"
	"os/signal"
	"syscall"
)

func main() {
	// A cancelled context aborts in-flight API calls and stops any
	// pending retry waits.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	Execute(ctx)
}
