// Package memory provides an in-memory ledger store. It backs the default
// backend for local development and the test suites of the layers above.
package memory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"scontrini/internal/core"
)

type Store struct {
	mu       sync.Mutex
	nextID   int64
	receipts []core.Receipt
	items    []core.Item
	budgets  []core.Budget
}

func New() *Store {
	return &Store{nextID: 1}
}

func (s *Store) id() int64 {
	id := s.nextID
	s.nextID++
	return id
}

func (s *Store) ListReceipts(_ context.Context, userID string) ([]core.Receipt, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []core.Receipt
	for _, r := range s.receipts {
		if r.UserID == userID {
			out = append(out, r)
		}
	}
	return out, nil
}

func (s *Store) ListItems(_ context.Context, userID string) ([]core.Item, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	owned := s.receiptOwners(userID)
	var out []core.Item
	for _, it := range s.items {
		if owned[it.ReceiptID] {
			out = append(out, it)
		}
	}
	return out, nil
}

func (s *Store) ListCategoryItemsSince(_ context.Context, userID, category string, since time.Time) ([]core.Item, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	qualifying := make(map[int64]bool)
	for _, r := range s.receipts {
		if r.UserID == userID && r.HasPurchaseDate() && !r.PurchaseDate.Before(since) {
			qualifying[r.ID] = true
		}
	}

	var out []core.Item
	for _, it := range s.items {
		if qualifying[it.ReceiptID] && it.Category == category {
			out = append(out, it)
		}
	}
	return out, nil
}

func (s *Store) CreateReceipt(_ context.Context, r core.Receipt, items []core.Item) (core.Receipt, error) {
	if err := r.Validate(); err != nil {
		return core.Receipt{}, err
	}
	for _, it := range items {
		if err := it.Validate(); err != nil {
			return core.Receipt{}, err
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	r.ID = s.id()
	if r.UploadedAt.IsZero() {
		r.UploadedAt = time.Now().UTC()
	}
	s.receipts = append(s.receipts, r)

	for _, it := range items {
		it.ID = s.id()
		it.ReceiptID = r.ID
		s.items = append(s.items, it)
	}
	return r, nil
}

func (s *Store) GetReceipt(_ context.Context, userID string, id int64) (core.Receipt, []core.Item, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, r := range s.receipts {
		if r.ID == id && r.UserID == userID {
			var items []core.Item
			for _, it := range s.items {
				if it.ReceiptID == id {
					items = append(items, it)
				}
			}
			return r, items, nil
		}
	}
	return core.Receipt{}, nil, core.ErrNotFound
}

func (s *Store) DeleteReceipt(_ context.Context, userID string, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	idx := -1
	for i, r := range s.receipts {
		if r.ID == id && r.UserID == userID {
			idx = i
			break
		}
	}
	if idx < 0 {
		return core.ErrNotFound
	}
	s.receipts = append(s.receipts[:idx], s.receipts[idx+1:]...)

	kept := s.items[:0]
	for _, it := range s.items {
		if it.ReceiptID != id {
			kept = append(kept, it)
		}
	}
	s.items = kept
	return nil
}

func (s *Store) ListBudgets(_ context.Context, userID string) ([]core.Budget, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []core.Budget
	for _, b := range s.budgets {
		if b.UserID == userID {
			out = append(out, b)
		}
	}
	return out, nil
}

func (s *Store) GetBudgetByCategory(_ context.Context, userID, category string) (core.Budget, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, b := range s.budgets {
		if b.UserID == userID && b.Category == category {
			return b, nil
		}
	}
	return core.Budget{}, core.ErrNotFound
}

func (s *Store) CreateBudget(_ context.Context, b core.Budget) (core.Budget, error) {
	if err := b.Validate(); err != nil {
		return core.Budget{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	// Same uniqueness rule as the sqlite schema: one budget per
	// (user, category).
	for _, existing := range s.budgets {
		if existing.UserID == b.UserID && existing.Category == b.Category {
			return core.Budget{}, fmt.Errorf("budget for category %q already exists", b.Category)
		}
	}

	b.ID = s.id()
	if b.LastReset.IsZero() {
		b.LastReset = time.Now().UTC()
	}
	s.budgets = append(s.budgets, b)
	return b, nil
}

func (s *Store) UpdateBudgetLimit(_ context.Context, userID string, id int64, limit core.Money) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i, b := range s.budgets {
		if b.ID == id && b.UserID == userID {
			s.budgets[i].MonthlyLimit = limit
			return nil
		}
	}
	return core.ErrNotFound
}

func (s *Store) UpdateBudgetTracking(_ context.Context, userID string, id int64, spent core.Money, lastReset time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i, b := range s.budgets {
		if b.ID == id && b.UserID == userID {
			s.budgets[i].CurrentSpent = spent
			s.budgets[i].LastReset = lastReset
			return nil
		}
	}
	return core.ErrNotFound
}

func (s *Store) DeleteBudget(_ context.Context, userID string, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i, b := range s.budgets {
		if b.ID == id && b.UserID == userID {
			s.budgets = append(s.budgets[:i], s.budgets[i+1:]...)
			return nil
		}
	}
	return core.ErrNotFound
}

func (s *Store) Close() error { return nil }

// receiptOwners returns the set of receipt IDs owned by userID.
// Callers must hold s.mu.
func (s *Store) receiptOwners(userID string) map[int64]bool {
	owned := make(map[int64]bool)
	for _, r := range s.receipts {
		if r.UserID == userID {
			owned[r.ID] = true
		}
	}
	return owned
}
