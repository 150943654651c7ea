package backend

import (
	"context"

	"scontrini/internal/amqp"
	"scontrini/internal/ledger"
)

// CleanupFunc represents a cleanup function for resources
type CleanupFunc func() error

// Result contains the ledger store, the optional alert publisher and an
// optional cleanup function.
type Result struct {
	Store   ledger.Store
	Alerts  *amqp.Client
	Cleanup CleanupFunc
}

// Factory creates ledger backends based on configuration
type Factory interface {
	// CreateBackend creates a backend instance based on the provided config
	CreateBackend(ctx context.Context, config Config) (*Result, error)
}

// Config holds configuration for backend creation
type Config struct {
	// Backend type
	Type BackendType

	// SQLite specific
	SQLiteDBPath string

	// AMQP alert publishing (optional)
	AMQPURL      string
	AMQPExchange string
	AMQPQueue    string
}

// BackendType represents the type of ledger backend
type BackendType string

const (
	SQLiteBackend BackendType = "sqlite"
	MemoryBackend BackendType = "memory"
)

// String implements fmt.Stringer
func (bt BackendType) String() string {
	return string(bt)
}

// IsValid returns true if the backend type is valid
func (bt BackendType) IsValid() bool {
	switch bt {
	case SQLiteBackend, MemoryBackend:
		return true
	default:
		return false
	}
}
