package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"scontrini/internal/amqp"
	"scontrini/internal/config"
	applog "scontrini/internal/log"
	"scontrini/internal/worker"
)

func main() {
	// Load .env file for local development (ignore errors in production/docker)
	_ = godotenv.Load()

	// Setup structured logging
	logger := applog.New(applog.Config{
		Level:     slog.LevelInfo,
		Component: applog.ComponentWorker,
	})
	applog.SetDefault(logger)

	logger.Info("Starting alerts-worker")

	// Load and validate configuration
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		logger.Error("Configuration validation failed", "error", err)
		os.Exit(1)
	}
	if cfg.AMQPURL == "" {
		logger.Error("AMQP_URL is required for the alerts worker")
		os.Exit(1)
	}

	// Initialize AMQP client for consuming alert messages
	amqpClient, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
	if err != nil {
		logger.Error("Failed to initialize AMQP client", "error", err)
		os.Exit(1)
	}
	defer amqpClient.Close()

	// Setup graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	alertsWorker := worker.NewAlertsWorker(nil)

	go func() {
		err := amqpClient.ConsumeBudgetAlerts(ctx, func(msg *amqp.BudgetAlertMessage) error {
			return alertsWorker.HandleAlertMessage(ctx, msg)
		})
		if err != nil && err != context.Canceled {
			logger.Error("Alert consumption failed", "error", err)
		}
		cancel()
	}()

	// Handle shutdown signals
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigChan:
		logger.Info("Shutdown signal received", "signal", sig.String())
	case <-ctx.Done():
		logger.Info("Context cancelled")
	}

	cancel()

	// Give the worker time to finish its current delivery
	logger.Info("Shutting down worker...")
	time.Sleep(2 * time.Second)

	processed, failed := alertsWorker.Stats()
	logger.Info("Worker shutdown complete", "processed", processed, "failed", failed)
}
