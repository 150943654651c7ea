package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"scontrini/internal/backend"
	"scontrini/internal/cache"
	"scontrini/internal/config"
	apphttp "scontrini/internal/http"
	applog "scontrini/internal/log"
	"scontrini/internal/services"
)

func main() {
	// Load .env file for local development (ignore errors in production/docker)
	_ = godotenv.Load()

	// Setup structured logging
	logger := applog.New(applog.Config{
		Level:     slog.LevelInfo,
		Component: applog.ComponentApp,
	})
	applog.SetDefault(logger)

	// Load and validate configuration
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		logger.Error("Configuration validation failed", "error", err)
		os.Exit(1)
	}

	// Build the ledger backend from config
	backendCfg, err := backend.FromAppConfig(cfg)
	if err != nil {
		logger.Error("Invalid backend configuration", "error", err)
		os.Exit(1)
	}

	factory := backend.NewFactory(logger.Logger)
	result, err := factory.CreateBackend(context.Background(), backendCfg)
	if err != nil {
		logger.Error("Failed to create backend", "error", err, "backend", cfg.DataBackend)
		os.Exit(1)
	}
	if result.Cleanup != nil {
		defer func() {
			if err := result.Cleanup(); err != nil {
				logger.Error("Backend cleanup failed", "error", err)
			}
		}()
	}

	// Per-user summary cache with periodic expiry cleanup
	summaries := cache.NewLRU[services.SpendingSummary](cfg.CacheSize, cfg.CacheTTL)
	cacheManager := cache.NewManager()
	cacheManager.Register(summaries)
	cacheManager.StartCleanup(cfg.CacheTTL)
	defer cacheManager.Stop()

	// Alerts are optional; passing a nil publisher disables them
	var alerts services.AlertPublisher
	if result.Alerts != nil {
		alerts = result.Alerts
	}

	receipts := services.NewReceiptService(result.Store, summaries)
	reports := services.NewReportService(result.Store, summaries, alerts)

	srv := apphttp.NewServer(":"+cfg.Port, receipts, reports, logger)
	defer srv.Stop()

	// Graceful shutdown handling
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		sig := <-sigChan
		logger.Info("Shutdown signal received", "signal", sig.String())

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer shutdownCancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("Server shutdown error", "error", err)
		}
		cancel()
	}()

	logger.Info("Starting scontrini server",
		"port", cfg.Port,
		"backend", cfg.DataBackend,
		"alerts_enabled", result.Alerts != nil)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error("Server error", "error", err, "port", cfg.Port)
		os.Exit(1)
	}

	<-ctx.Done()
	logger.Info("Server stopped gracefully")
}
