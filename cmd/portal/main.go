package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/schoolhub/portal/config"
	"github.com/schoolhub/portal/internal/bootstrap"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	logger := bootstrap.InitLogger(false)
	err := run(ctx, logger)
	stop()
	if err != nil {
		logger.ErrorContext(ctx, "fatal error", "error", err)
		os.Exit(1) //nolint:forbidigo // Main entrypoint should exit with non-zero status on fatal errors.
	}
}

func run(ctx context.Context, logger *slog.Logger) error {
	cfg, err := bootstrap.LoadConfig()
	if err != nil {
		return err
	}

	if cfg.IsDev {
		logger = bootstrap.InitLogger(true)
	}

	// Log startup info
	logStartupInfo(ctx, logger, &cfg)

	portal, err := bootstrap.NewPortal(ctx, &cfg, logger)
	if err != nil {
		return err
	}
	return portal.Run(ctx)
}

func logStartupInfo(ctx context.Context, logger *slog.Logger, cfg *config.AppConfig) {
	logger.InfoContext(ctx, "starting portal",
		"addr", cfg.HTTP.Addr,
		"gateway", cfg.Gateway.BaseURL,
		"credential_store", string(cfg.Credentials.Backend),
		"dev", cfg.IsDev,
	)
}
