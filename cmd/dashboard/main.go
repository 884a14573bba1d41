package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/InnerAnimal/meaux-infra/internal/catalog"
	"github.com/InnerAnimal/meaux-infra/internal/dashboard"
	"github.com/InnerAnimal/meaux-infra/internal/ws"
	"github.com/InnerAnimal/meaux-infra/pkg/config"
	"github.com/InnerAnimal/meaux-infra/pkg/logger"
)

func main() {
	cfg, err := config.Load(os.Getenv("INFRA_CONFIG"))
	log := logger.New(os.Stdout, "dashboard", slog.LevelInfo)
	if err != nil {
		log.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	_, orch := catalog.Build(cfg, log)

	limiter := dashboard.NewMemoryRateLimiter()
	if addr := strings.TrimSpace(cfg.RateLimitRedisAddr); addr != "" {
		redisLimiter, err := dashboard.NewRedisRateLimiter(addr, cfg.RateLimitRedisPass, cfg.RateLimitRedisDB, log)
		if err != nil {
			log.Warn("redis rate limiter unavailable", "error", err)
		} else {
			limiter.Close()
			limiter = redisLimiter
		}
	}

	hub := ws.NewHub()
	server := dashboard.NewServer(log, cfg, orch, hub, limiter)
	defer server.Close()

	go server.Broadcast(ctx)

	srv := &http.Server{
		Addr:              cfg.DashboardAddr,
		Handler:           server,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errorCh := make(chan error, 1)
	go func() {
		log.Info("dashboard server starting", "addr", cfg.DashboardAddr)
		errorCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Error("graceful shutdown failed", "error", err)
		}
		log.Info("dashboard server stopped")
	case err := <-errorCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("server error", "error", err)
			os.Exit(1)
		}
	}
}
