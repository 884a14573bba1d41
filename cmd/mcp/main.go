package main

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/InnerAnimal/meaux-infra/internal/catalog"
	"github.com/InnerAnimal/meaux-infra/internal/mcp"
	"github.com/InnerAnimal/meaux-infra/pkg/config"
	"github.com/InnerAnimal/meaux-infra/pkg/logger"
)

const serverVersion = "1.0.0"

func main() {
	cfg, err := config.Load(os.Getenv("INFRA_CONFIG"))
	// Stdout carries the protocol; all logging goes to stderr.
	log := logger.New(os.Stderr, "mcp", slog.LevelInfo)
	if err != nil {
		log.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	registry, _ := catalog.Build(cfg, log)
	server := mcp.NewServer(registry, log, "meaux-infra", serverVersion)

	if err := server.Serve(ctx, os.Stdin, os.Stdout); err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, io.EOF) {
			return
		}
		log.Error("server error", "error", err)
		os.Exit(1)
	}
}
