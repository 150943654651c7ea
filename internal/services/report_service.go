package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"scontrini/internal/cache"
	"scontrini/internal/core"
	"scontrini/internal/ledger"
)

// AlertPublisher receives budget threshold crossings detected during a
// tracker pass. Publishing is best-effort; the facade never fails a request
// because an alert could not be delivered.
type AlertPublisher interface {
	PublishBudgetAlert(ctx context.Context, userID, category, previous, current string, spent, limit core.Money) error
}

// ReportService is the single entry surface consumers (HTTP handlers,
// exporters, insight generators) call for analytics and budget state. All
// reads are side-effect-free except GetBudgetStatus, which runs the budget
// tracker's reset-and-recompute pass before reading.
type ReportService struct {
	receipts  ledger.ReceiptSource
	items     ledger.ItemSource
	budgets   ledger.BudgetStore
	tracker   *BudgetTracker
	agg       *Aggregator
	summaries cache.Cache[SpendingSummary]
	alerts    AlertPublisher
	now       func() time.Time
}

// NewReportService wires the facade. summaries and alerts may be nil: the
// service then skips caching and alert publishing respectively.
func NewReportService(store ledger.Store, summaries cache.Cache[SpendingSummary], alerts AlertPublisher) *ReportService {
	return &ReportService{
		receipts:  store,
		items:     store,
		budgets:   store,
		tracker:   NewBudgetTracker(store, store),
		agg:       NewAggregator(),
		summaries: summaries,
		alerts:    alerts,
		now:       time.Now,
	}
}

// GetSummary returns the aggregate spending view for one user. Receipts and
// items are fetched in parallel; the result is cached until the user's
// ledger changes or the entry expires.
func (s *ReportService) GetSummary(ctx context.Context, userID string) (SpendingSummary, error) {
	if s.summaries != nil {
		if summary, ok := s.summaries.Get(userID); ok {
			return summary, nil
		}
	}

	var (
		receipts []core.Receipt
		items    []core.Item
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		receipts, err = s.receipts.ListReceipts(gctx, userID)
		return err
	})
	g.Go(func() error {
		var err error
		items, err = s.items.ListItems(gctx, userID)
		return err
	})
	if err := g.Wait(); err != nil {
		return SpendingSummary{}, fmt.Errorf("load ledger for summary: %w", err)
	}

	summary := s.agg.Summary(receipts, items)
	if s.summaries != nil {
		s.summaries.Set(userID, summary)
	}
	return summary, nil
}

// GetCategoryBreakdown returns the per-category totals, shares and top
// items for one user.
func (s *ReportService) GetCategoryBreakdown(ctx context.Context, userID string) (map[string]CategoryDetail, error) {
	items, err := s.items.ListItems(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("load items for breakdown: %w", err)
	}
	return s.agg.CategoryBreakdown(items), nil
}

// GetBudgetStatus refreshes all of the user's budgets (lazy month reset plus
// recompute) and returns their classified state. Threshold crossings are
// handed to the alert publisher.
func (s *ReportService) GetBudgetStatus(ctx context.Context, userID string) ([]BudgetStatus, error) {
	statuses, alerts, err := s.tracker.Statuses(ctx, userID)
	if err != nil {
		return nil, err
	}
	s.publishAlerts(ctx, userID, alerts)
	return statuses, nil
}

// UpsertBudget creates a budget for (user, category), or updates the limit
// of the existing one. At most one budget per category ever exists for a
// user; this write path is where that invariant is enforced.
func (s *ReportService) UpsertBudget(ctx context.Context, userID, category string, limit core.Money) (BudgetStatus, error) {
	b := core.Budget{UserID: userID, Category: category, MonthlyLimit: limit}
	if err := b.Validate(); err != nil {
		return BudgetStatus{}, err
	}

	existing, err := s.budgets.GetBudgetByCategory(ctx, userID, category)
	switch {
	case err == nil:
		if err := s.budgets.UpdateBudgetLimit(ctx, userID, existing.ID, limit); err != nil {
			return BudgetStatus{}, fmt.Errorf("update budget limit: %w", err)
		}
		existing.MonthlyLimit = limit
		return newBudgetStatus(existing), nil
	case errors.Is(err, core.ErrNotFound):
		b.LastReset = s.now().UTC()
		created, err := s.budgets.CreateBudget(ctx, b)
		if err != nil {
			return BudgetStatus{}, fmt.Errorf("create budget: %w", err)
		}
		return newBudgetStatus(created), nil
	default:
		return BudgetStatus{}, fmt.Errorf("look up budget: %w", err)
	}
}

// DeleteBudget removes one of the caller's budgets. A budget that does not
// exist and a budget owned by someone else are both reported as
// core.ErrNotFound.
func (s *ReportService) DeleteBudget(ctx context.Context, userID string, id int64) error {
	if err := s.budgets.DeleteBudget(ctx, userID, id); err != nil {
		if errors.Is(err, core.ErrNotFound) {
			return core.ErrNotFound
		}
		return fmt.Errorf("delete budget: %w", err)
	}
	return nil
}

func (s *ReportService) publishAlerts(ctx context.Context, userID string, alerts []BudgetAlert) {
	if s.alerts == nil || len(alerts) == 0 {
		return
	}
	for _, a := range alerts {
		err := s.alerts.PublishBudgetAlert(ctx, userID, a.Budget.Category, a.Previous, a.Current,
			a.Budget.CurrentSpent, a.Budget.MonthlyLimit)
		if err != nil {
			slog.WarnContext(ctx, "Failed to publish budget alert",
				"error", err,
				"user_id", userID,
				"category", a.Budget.Category,
				"status", a.Current)
		}
	}
}
