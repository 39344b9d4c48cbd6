package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/upb/butterfly-chat/backend/app"
	"github.com/upb/butterfly-chat/backend/config"
	"github.com/upb/butterfly-chat/backend/internal/observability"
	"github.com/upb/butterfly-chat/backend/routes"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "chat-api: %v\n", err)
		os.Exit(1)
	}
}

// run loads configuration, wires dependencies and serves until SIGINT or SIGTERM
func run() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, logger, err := setup(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	if err := serve(ctx, cfg, logger); err != nil {
		logger.Error("server exited with error", zap.Error(err))
		return err
	}
	return nil
}

// setup loads the configuration, .env files included, and builds the logger from it
func setup(ctx context.Context) (*config.Config, *zap.Logger, error) {
	cfg, err := config.New(ctx)
	if err != nil {
		return nil, nil, err
	}

	logger, err := initLogger(cfg.Observability)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to initialize logger: %w", err)
	}
	return cfg, logger, nil
}

func serve(ctx context.Context, cfg *config.Config, logger *zap.Logger) error {
	deps, err := app.NewDependencies(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := deps.Close(context.Background()); err != nil {
			logger.Error("failed to close dependencies", zap.Error(err))
		}
	}()

	srv := &http.Server{
		Addr:         cfg.Server.Address(),
		Handler:      routes.SetupRoutes(deps),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("chat api listening",
			zap.String("addr", srv.Addr),
			zap.String("environment", cfg.Environment))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("server error: %w", err)
	case <-ctx.Done():
	}

	logger.Info("shutting down server", zap.Duration("timeout", cfg.Server.ShutdownTimeout))
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("graceful shutdown failed: %w", err)
	}
	logger.Info("server stopped")
	return nil
}

// initLogger builds the process logger
func initLogger(cfg config.ObservabilityConfig) (*zap.Logger, error) {
	return observability.NewLogger(cfg.LogLevel, cfg.LogFormat)
}
