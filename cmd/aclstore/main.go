package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/openmined/aclstore/internal/logging"
)

var (
	// logLevel is raised or lowered once the configuration is read.
	logLevel = new(slog.LevelVar)
	console  = logging.Console(os.Stderr, logLevel)
)

func main() {
	slog.SetDefault(slog.New(console))

	// Setup root context with signal handling
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}
