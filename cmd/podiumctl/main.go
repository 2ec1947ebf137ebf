package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/okian/podium/internal/cli"
	"github.com/okian/podium/pkg/logger"
)

func main() {
	if err := logger.InitWithWriter(os.Stderr); err != nil {
		os.Stderr.WriteString("failed to initialize logging: " + err.Error() + "\n")
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := cli.Execute(ctx); err != nil {
		os.Stderr.WriteString("podiumctl: " + err.Error() + "\n")
		stop()
		os.Exit(1)
	}
}
