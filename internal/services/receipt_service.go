package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"scontrini/internal/cache"
	"scontrini/internal/core"
	"scontrini/internal/ledger"
)

// ReceiptService is the structured-record ingestion boundary: upstream
// extraction hands it receipts with line items already parsed. Writes
// invalidate the owner's cached summary so analytics never serve stale
// aggregates after an ingest.
type ReceiptService struct {
	store     ledger.ReceiptStore
	items     ledger.ItemSource
	summaries cache.Cache[SpendingSummary]
	now       func() time.Time
}

func NewReceiptService(store ledger.Store, summaries cache.Cache[SpendingSummary]) *ReceiptService {
	return &ReceiptService{store: store, items: store, summaries: summaries, now: time.Now}
}

// Create records a receipt and its items for the given user.
func (s *ReceiptService) Create(ctx context.Context, userID string, r core.Receipt, items []core.Item) (core.Receipt, error) {
	r.UserID = userID
	r.UploadedAt = s.now().UTC()
	if err := r.Validate(); err != nil {
		return core.Receipt{}, err
	}
	for _, it := range items {
		if err := it.Validate(); err != nil {
			return core.Receipt{}, err
		}
	}

	created, err := s.store.CreateReceipt(ctx, r, items)
	if err != nil {
		return core.Receipt{}, fmt.Errorf("create receipt: %w", err)
	}

	s.invalidate(userID)
	slog.InfoContext(ctx, "Receipt recorded",
		"receipt_id", created.ID,
		"user_id", userID,
		"store", created.StoreName,
		"total_cents", created.Total.Cents,
		"items", len(items))
	return created, nil
}

// List returns all of a user's receipts along with their items, grouped by
// receipt ID.
func (s *ReceiptService) List(ctx context.Context, userID string) ([]core.Receipt, map[int64][]core.Item, error) {
	receipts, err := s.store.ListReceipts(ctx, userID)
	if err != nil {
		return nil, nil, fmt.Errorf("list receipts: %w", err)
	}
	items, err := s.items.ListItems(ctx, userID)
	if err != nil {
		return nil, nil, fmt.Errorf("list items: %w", err)
	}

	byReceipt := make(map[int64][]core.Item, len(receipts))
	for _, it := range items {
		byReceipt[it.ReceiptID] = append(byReceipt[it.ReceiptID], it)
	}
	return receipts, byReceipt, nil
}

// Get returns one of the caller's receipts with its items.
func (s *ReceiptService) Get(ctx context.Context, userID string, id int64) (core.Receipt, []core.Item, error) {
	return s.store.GetReceipt(ctx, userID, id)
}

// Delete removes a receipt; the ledger deletes its items with it.
func (s *ReceiptService) Delete(ctx context.Context, userID string, id int64) error {
	if err := s.store.DeleteReceipt(ctx, userID, id); err != nil {
		return err
	}
	s.invalidate(userID)
	slog.InfoContext(ctx, "Receipt deleted", "receipt_id", id, "user_id", userID)
	return nil
}

func (s *ReceiptService) invalidate(userID string) {
	if s.summaries != nil {
		s.summaries.Delete(userID)
	}
}
