package backend

import (
	"context"
	"fmt"
	"log/slog"

	"scontrini/internal/amqp"
	"scontrini/internal/ledger/memory"
	"scontrini/internal/storage"
)

// DefaultFactory implements the Factory interface
type DefaultFactory struct {
	logger *slog.Logger
}

// NewFactory creates a new backend factory
func NewFactory(logger *slog.Logger) Factory {
	if logger == nil {
		logger = slog.Default()
	}
	return &DefaultFactory{
		logger: logger,
	}
}

// CreateBackend implements Factory.CreateBackend
func (f *DefaultFactory) CreateBackend(ctx context.Context, config Config) (*Result, error) {
	if !config.Type.IsValid() {
		return nil, fmt.Errorf("invalid backend type: %s", config.Type)
	}

	switch config.Type {
	case SQLiteBackend:
		return f.createSQLiteBackend(config)
	case MemoryBackend:
		return f.createMemoryBackend(config)
	default:
		return nil, fmt.Errorf("unsupported backend type: %s", config.Type)
	}
}

func (f *DefaultFactory) createSQLiteBackend(config Config) (*Result, error) {
	repo, err := storage.NewSQLiteRepository(config.SQLiteDBPath)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize SQLite repository: %w", err)
	}

	alerts := f.connectAlerts(config)

	f.logger.Info("Initialized SQLite backend",
		"db_path", config.SQLiteDBPath,
		"amqp_enabled", alerts != nil)

	return &Result{
		Store:   repo,
		Alerts:  alerts,
		Cleanup: cleanup(repo.Close, alerts),
	}, nil
}

func (f *DefaultFactory) createMemoryBackend(config Config) (*Result, error) {
	store := memory.New()

	alerts := f.connectAlerts(config)

	f.logger.Info("Initialized memory backend", "amqp_enabled", alerts != nil)

	return &Result{
		Store:   store,
		Alerts:  alerts,
		Cleanup: cleanup(nil, alerts),
	}, nil
}

// connectAlerts opens the AMQP alert publisher when configured. A failed
// connection degrades to alert-less operation instead of aborting startup.
func (f *DefaultFactory) connectAlerts(config Config) *amqp.Client {
	if config.AMQPURL == "" {
		return nil
	}

	client, err := amqp.NewClient(config.AMQPURL, config.AMQPExchange, config.AMQPQueue)
	if err != nil {
		f.logger.Warn("Failed to initialize AMQP client, continuing without alerts", "error", err)
		return nil
	}

	f.logger.Info("Initialized AMQP client",
		"exchange", config.AMQPExchange,
		"queue", config.AMQPQueue)
	return client
}

func cleanup(closeStore func() error, alerts *amqp.Client) CleanupFunc {
	return func() error {
		var firstErr error
		if alerts != nil {
			if err := alerts.Close(); err != nil {
				firstErr = err
			}
		}
		if closeStore != nil {
			if err := closeStore(); err != nil && firstErr == nil {
				firstErr = err
			}
		}
		return firstErr
	}
}
