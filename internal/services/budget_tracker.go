package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"scontrini/internal/core"
	"scontrini/internal/ledger"
)

// Budget status labels, classified from the unrounded percentage of the
// monthly limit that has been spent.
const (
	StatusOK      = "ok"
	StatusWarning = "warning"
	StatusOver    = "over"
)

type (
	// BudgetStatus is the externally visible state of one budget after a
	// tracker pass.
	BudgetStatus struct {
		ID             int64   `json:"id"`
		Category       string  `json:"category"`
		MonthlyLimit   float64 `json:"monthly_limit"`
		CurrentSpent   float64 `json:"current_spent"`
		PercentageUsed float64 `json:"percentage_used"`
		Remaining      float64 `json:"remaining"`
		Status         string  `json:"status"`
	}

	// BudgetAlert records a budget whose status worsened during a tracker
	// pass, e.g. ok -> warning or warning -> over.
	BudgetAlert struct {
		Budget   core.Budget
		Previous string
		Current  string
	}
)

// BudgetTracker owns the budget lifecycle: the lazy monthly reset, the
// recomputation of current_spent from ledger items and status
// classification. It is the only writer of budget tracking state. There is
// no scheduler; every entry point runs the reset check itself, so a budget
// untouched across a month boundary is caught up on its next read.
type BudgetTracker struct {
	budgets ledger.BudgetStore
	items   ledger.ItemSource
	now     func() time.Time
}

func NewBudgetTracker(budgets ledger.BudgetStore, items ledger.ItemSource) *BudgetTracker {
	return &BudgetTracker{budgets: budgets, items: items, now: time.Now}
}

// Refresh runs the reset-and-recompute pass over all of a user's budgets and
// persists the result. current_spent is always recomputed from items, never
// trusted, so running Refresh twice in the same month with unchanged ledger
// data converges on the same value. The returned alerts cover budgets whose
// status worsened compared to the state stored before the pass.
func (t *BudgetTracker) Refresh(ctx context.Context, userID string) ([]core.Budget, []BudgetAlert, error) {
	budgets, err := t.budgets.ListBudgets(ctx, userID)
	if err != nil {
		return nil, nil, fmt.Errorf("list budgets: %w", err)
	}

	now := t.now().UTC()
	monthStart := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)

	var alerts []BudgetAlert
	out := make([]core.Budget, 0, len(budgets))
	for _, b := range budgets {
		_, prevStatus := classify(b.CurrentSpent, b.MonthlyLimit)

		if stale(b.LastReset, now) {
			b.CurrentSpent = core.Money{}
			b.LastReset = now
		}

		items, err := t.items.ListCategoryItemsSince(ctx, userID, b.Category, monthStart)
		if err != nil {
			return nil, nil, fmt.Errorf("list items for category %q: %w", b.Category, err)
		}
		var spent int64
		for _, it := range items {
			spent += it.LineTotal().Cents
		}
		b.CurrentSpent = core.Money{Cents: spent}

		if err := t.budgets.UpdateBudgetTracking(ctx, userID, b.ID, b.CurrentSpent, b.LastReset); err != nil {
			return nil, nil, fmt.Errorf("persist budget %d: %w", b.ID, err)
		}

		if _, status := classify(b.CurrentSpent, b.MonthlyLimit); worsened(prevStatus, status) {
			alerts = append(alerts, BudgetAlert{Budget: b, Previous: prevStatus, Current: status})
		}
		out = append(out, b)
	}

	if len(alerts) > 0 {
		slog.InfoContext(ctx, "Budget thresholds crossed", "user_id", userID, "alerts", len(alerts))
	}
	return out, alerts, nil
}

// Statuses runs Refresh and classifies the result into response records.
func (t *BudgetTracker) Statuses(ctx context.Context, userID string) ([]BudgetStatus, []BudgetAlert, error) {
	budgets, alerts, err := t.Refresh(ctx, userID)
	if err != nil {
		return nil, nil, err
	}

	statuses := make([]BudgetStatus, 0, len(budgets))
	for _, b := range budgets {
		statuses = append(statuses, newBudgetStatus(b))
	}
	return statuses, alerts, nil
}

func newBudgetStatus(b core.Budget) BudgetStatus {
	pct, status := classify(b.CurrentSpent, b.MonthlyLimit)
	return BudgetStatus{
		ID:             b.ID,
		Category:       b.Category,
		MonthlyLimit:   b.MonthlyLimit.Amount(),
		CurrentSpent:   b.CurrentSpent.Amount(),
		PercentageUsed: roundTo(pct, 1),
		Remaining:      b.MonthlyLimit.Sub(b.CurrentSpent).Amount(),
		Status:         status,
	}
}

// stale reports whether lastReset belongs to a calendar month other than
// now's. Both year and month are compared, so June 2024 is stale in
// June 2025.
func stale(lastReset, now time.Time) bool {
	lr := lastReset.UTC()
	return lr.Year() != now.Year() || lr.Month() != now.Month()
}

// classify returns the unrounded percentage of the limit spent and the
// status label. A zero limit yields 0%, never a division by zero. The over
// boundary is strictly greater than 100: a budget spent to the cent is
// "warning", not "over".
func classify(spent, limit core.Money) (float64, string) {
	var pct float64
	if limit.Cents > 0 {
		pct = float64(spent.Cents) / float64(limit.Cents) * 100
	}
	switch {
	case pct > 100:
		return pct, StatusOver
	case pct > 80:
		return pct, StatusWarning
	default:
		return pct, StatusOK
	}
}

// worsened reports whether the status moved up the severity ladder.
func worsened(previous, current string) bool {
	return severity(current) > severity(previous)
}

func severity(status string) int {
	switch status {
	case StatusOver:
		return 2
	case StatusWarning:
		return 1
	default:
		return 0
	}
}
