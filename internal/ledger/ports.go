// Package ledger defines the persistence contract the analytics engine
// consumes. Implementations live in internal/storage (SQLite) and
// internal/ledger/memory. Every call is scoped by the owning user; no
// implementation may return another user's rows.
package ledger

import (
	"context"
	"time"

	"scontrini/internal/core"
)

// ReceiptSource supplies a user's receipts for aggregation, ordered by ID.
type ReceiptSource interface {
	ListReceipts(ctx context.Context, userID string) ([]core.Receipt, error)
}

// ItemSource supplies line items belonging to a user's receipts.
type ItemSource interface {
	ListItems(ctx context.Context, userID string) ([]core.Item, error)

	// ListCategoryItemsSince returns items whose category exactly equals
	// the given string and whose parent receipt has a known purchase date
	// on or after since. Receipts without a purchase date never match.
	ListCategoryItemsSince(ctx context.Context, userID, category string, since time.Time) ([]core.Item, error)
}

// ReceiptStore is the ingestion-side write contract. Deleting a receipt
// deletes its items.
type ReceiptStore interface {
	ReceiptSource

	CreateReceipt(ctx context.Context, r core.Receipt, items []core.Item) (core.Receipt, error)
	GetReceipt(ctx context.Context, userID string, id int64) (core.Receipt, []core.Item, error)
	DeleteReceipt(ctx context.Context, userID string, id int64) error
}

// BudgetStore owns Budget rows. GetBudgetByCategory and the mutating calls
// return core.ErrNotFound when no row matches both the ID (or category) and
// the user, so ownership mismatch is indistinguishable from nonexistence.
type BudgetStore interface {
	ListBudgets(ctx context.Context, userID string) ([]core.Budget, error)
	GetBudgetByCategory(ctx context.Context, userID, category string) (core.Budget, error)
	CreateBudget(ctx context.Context, b core.Budget) (core.Budget, error)
	UpdateBudgetLimit(ctx context.Context, userID string, id int64, limit core.Money) error
	UpdateBudgetTracking(ctx context.Context, userID string, id int64, spent core.Money, lastReset time.Time) error
	DeleteBudget(ctx context.Context, userID string, id int64) error
}

// Store is the full ledger surface wired by the backend factory.
type Store interface {
	ReceiptStore
	ItemSource
	BudgetStore

	Close() error
}
