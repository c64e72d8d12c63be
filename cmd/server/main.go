package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/mcoot/presencechat/internal/api"
	"github.com/mcoot/presencechat/internal/config"
	"github.com/mcoot/presencechat/internal/factory"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("invalid configuration", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// Set up logging with JSON output
	logger := cfg.NewLogger(os.Stdout)
	slog.SetDefault(logger)

	// Handle graceful shutdown
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Create application factory
	app, err := factory.New(ctx, factory.ConfigFrom(cfg, logger))
	if err != nil {
		logger.Error("failed to create application", slog.String("error", err.Error()))
		os.Exit(1)
	}
	defer func() {
		if err := app.Close(); err != nil {
			logger.Error("failed to close application", slog.String("error", err.Error()))
		}
	}()

	app.Sweeper.Start(ctx)

	// Create API router
	router := api.NewRouter(api.RouterConfig{
		Logger:              logger,
		Registry:            app.Registry,
		Ledger:              app.Ledger,
		Store:               app.Storage,
		Metrics:             app.Metrics,
		AllowedOrigins:      cfg.AllowedOrigins(),
		DefaultMessageLimit: cfg.DefaultMessageLimit,
	})

	// Create server
	serverConfig := api.DefaultServerConfig()
	serverConfig.Host = cfg.Host
	serverConfig.Port = cfg.Port
	server := api.NewServer(router, serverConfig, logger)
	if err := server.Listen(); err != nil {
		logger.Error("failed to listen", slog.String("error", err.Error()))
		return
	}

	// Start server in goroutine
	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Start()
	}()

	logger.Info("server started",
		slog.String("addr", server.Addr()),
		slog.String("storage", cfg.StorageType),
	)

	// Wait for shutdown or error
	select {
	case err := <-errCh:
		if err != nil {
			logger.Error("server error", slog.String("error", err.Error()))
			return
		}
	case <-ctx.Done():
		logger.Info("shutdown signal received")
		if err := server.Shutdown(context.Background()); err != nil {
			logger.Error("shutdown error", slog.String("error", err.Error()))
			return
		}
	}

	logger.Info("server stopped")
}
