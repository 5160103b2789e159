package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/saturnino-fabrica-de-software/proctor/internal/api"
	"github.com/saturnino-fabrica-de-software/proctor/internal/api/middleware"
	"github.com/saturnino-fabrica-de-software/proctor/internal/app"
	"github.com/saturnino-fabrica-de-software/proctor/internal/config"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	// Initialize logger
	logger := config.NewLogger(cfg)
	slog.SetDefault(logger)

	logger.Info("starting Proctor API",
		slog.String("environment", cfg.Environment),
		slog.Int("port", cfg.Port),
		slog.String("detector_backend", cfg.DetectorBackend),
	)
	if cfg.APIKey == "" {
		logger.Warn("API_KEY not set, /v1 is unauthenticated")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	stack, err := app.New(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("failed to build monitoring stack: %w", err)
	}
	if err := stack.Start(ctx); err != nil {
		stack.Close(context.Background())
		return err
	}

	deps := &api.Dependencies{
		Sessions: stack.Sessions,
		Hub:      stack.Hub,
		Metrics:  stack.Metrics,
		APIKey:   cfg.APIKey,
		RateLimit: middleware.RateLimiterConfig{
			Max:    cfg.RateLimit,
			Window: cfg.RateLimitWindow,
		},
	}
	// a nil *pgxpool.Pool must stay a nil interface
	if stack.DB != nil {
		deps.DB = stack.DB
	}
	if stack.Sound != nil {
		deps.Sound = stack.Sound
	}

	router := api.NewRouter(logger, deps)
	router.Setup()

	// Start server in goroutine
	errChan := make(chan error, 1)
	go func() {
		addr := fmt.Sprintf(":%d", cfg.Port)
		logger.Info("server listening", slog.String("addr", addr))
		if err := router.Listen(addr); err != nil {
			errChan <- err
		}
	}()

	// Wait for shutdown signal or error
	select {
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	case err := <-errChan:
		stack.Close(context.Background())
		return fmt.Errorf("server error: %w", err)
	}

	logger.Info("shutting down server...")
	if err := router.Shutdown(); err != nil {
		logger.Error("shutdown error", slog.Any("error", err))
	}

	// sessions still open are closed and persisted before the pool goes away
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	stack.Close(shutdownCtx)

	logger.Info("server stopped")

	return nil
}
