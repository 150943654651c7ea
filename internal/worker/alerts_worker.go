package worker

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"scontrini/internal/amqp"
	"scontrini/internal/services"
)

// AlertsWorker consumes budget alert messages and delivers notifications.
// The default sink writes structured log lines; a Notifier can be swapped in
// to push to an external channel.
type AlertsWorker struct {
	notifier Notifier

	mu        sync.Mutex
	processed int64
	failed    int64
}

// Notifier delivers a rendered notification for a budget alert.
type Notifier interface {
	Notify(ctx context.Context, subject, body string) error
}

func NewAlertsWorker(notifier Notifier) *AlertsWorker {
	return &AlertsWorker{notifier: notifier}
}

// HandleAlertMessage processes a single budget alert message from AMQP
func (w *AlertsWorker) HandleAlertMessage(ctx context.Context, msg *amqp.BudgetAlertMessage) error {
	slog.InfoContext(ctx, "Processing budget alert",
		"user_id", msg.UserID,
		"category", msg.Category,
		"previous", msg.Previous,
		"current", msg.Current)

	subject, body := renderAlert(msg)

	if w.notifier != nil {
		if err := w.notifier.Notify(ctx, subject, body); err != nil {
			w.mu.Lock()
			w.failed++
			w.mu.Unlock()
			return fmt.Errorf("deliver notification: %w", err)
		}
	} else {
		slog.WarnContext(ctx, subject,
			"user_id", msg.UserID,
			"category", msg.Category,
			"current_spent", msg.CurrentSpent,
			"monthly_limit", msg.MonthlyLimit,
			"timestamp", msg.Timestamp)
	}

	w.mu.Lock()
	w.processed++
	w.mu.Unlock()

	return nil
}

// Stats returns the number of processed and failed alert deliveries.
func (w *AlertsWorker) Stats() (processed, failed int64) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.processed, w.failed
}

func renderAlert(msg *amqp.BudgetAlertMessage) (subject, body string) {
	switch msg.Current {
	case services.StatusOver:
		subject = fmt.Sprintf("Budget exceeded: %s", msg.Category)
	case services.StatusWarning:
		subject = fmt.Sprintf("Budget warning: %s", msg.Category)
	default:
		subject = fmt.Sprintf("Budget update: %s", msg.Category)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Spending in %q moved from %s to %s.\n", msg.Category, msg.Previous, msg.Current)
	fmt.Fprintf(&b, "Spent %.2f of %.2f this month.", msg.CurrentSpent, msg.MonthlyLimit)

	return subject, b.String()
}
