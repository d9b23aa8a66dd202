package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spec-kit/druginsight-api/cmd/authctl/commands"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := commands.Execute(ctx); err != nil {
		commands.PrintErr("Error: %v", err)
		os.Exit(1)
	}
}
