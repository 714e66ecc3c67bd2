package cmd

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/nextlevelbuilder/replygate/internal/config"
	"github.com/nextlevelbuilder/replygate/internal/gateway"
	"github.com/nextlevelbuilder/replygate/internal/telemetry"
)

func runGateway() {
	setupLogging()

	cfg, err := config.Load(resolveConfigPath())
	if err != nil {
		slog.Error("config.load_failed", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownTelemetry, err := telemetry.Setup(ctx, cfg.Telemetry, Version)
	if err != nil {
		// Tracing is observability, not correctness: run without it.
		slog.Warn("telemetry.setup_failed", "error", err)
	}
	defer func() {
		flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		shutdownTelemetry(flushCtx)
	}()

	srv, err := gateway.NewServer(cfg)
	if err != nil {
		slog.Error("gateway.init_failed", "error", err)
		os.Exit(1)
	}

	if err := srv.Start(ctx); err != nil {
		slog.Error("gateway.stopped", "error", err)
		os.Exit(1)
	}
}
