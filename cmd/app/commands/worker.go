package commands

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"golang.org/x/sync/errgroup"

	"github.com/memorylib/integrator/internal/app"
	"github.com/memorylib/integrator/internal/article/subscriber"
	"github.com/memorylib/integrator/internal/config"
)

// RunWorker starts the pull subscription worker with graceful shutdown support.
// The worker receives integration instructions from the configured subscription
// and processes them one at a time. Blocks until receiving SIGINT/SIGTERM or
// encountering a fatal receive error.
func RunWorker(ctx context.Context, version string) error {
	// Load configuration
	cfg := config.Load()

	if cfg.SubscriptionURL == "" {
		return errors.New("SUBSCRIPTION_URL must be set to run the worker")
	}

	// Create DI container
	container := app.NewContainer(cfg)

	// Get logger from container
	logger := container.Logger()
	logger.Info("starting worker",
		slog.String("version", version),
		slog.String("subscription_url", cfg.SubscriptionURL),
	)

	// Ensure cleanup on exit
	defer closeContainer(container, logger)

	integrationUseCase, err := container.IntegrationUseCase()
	if err != nil {
		return fmt.Errorf("failed to initialize integration use case: %w", err)
	}

	// Setup graceful shutdown
	ctx, cancel := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer cancel()

	sub, err := subscriber.Open(ctx, cfg.SubscriptionURL, integrationUseCase, logger)
	if err != nil {
		return fmt.Errorf("failed to open subscription: %w", err)
	}

	g, gCtx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return sub.Run(gCtx)
	})

	// Flush pending acks once the group context is canceled.
	g.Go(func() error {
		<-gCtx.Done()
		logger.Info("shutdown signal received")

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.DBConnMaxLifetime)
		defer shutdownCancel()

		if err := sub.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("subscriber shutdown: %w", err)
		}
		return nil
	})

	return g.Wait()
}
