package worker

import (
	"context"
	"errors"
	"strings"
	"testing"

	"scontrini/internal/amqp"
	"scontrini/internal/services"
)

type recordingNotifier struct {
	subjects []string
	bodies   []string
	err      error
}

func (n *recordingNotifier) Notify(_ context.Context, subject, body string) error {
	if n.err != nil {
		return n.err
	}
	n.subjects = append(n.subjects, subject)
	n.bodies = append(n.bodies, body)
	return nil
}

func alertMessage(current string) *amqp.BudgetAlertMessage {
	return amqp.NewBudgetAlertMessage("alice", "Groceries", services.StatusOK, current, 85.00, 100.00)
}

func TestHandleAlertMessageNotifies(t *testing.T) {
	notifier := &recordingNotifier{}
	w := NewAlertsWorker(notifier)

	if err := w.HandleAlertMessage(context.Background(), alertMessage(services.StatusWarning)); err != nil {
		t.Fatalf("HandleAlertMessage: %v", err)
	}

	if len(notifier.subjects) != 1 {
		t.Fatalf("notifications = %d, want 1", len(notifier.subjects))
	}
	if notifier.subjects[0] != "Budget warning: Groceries" {
		t.Errorf("subject = %q, want budget warning", notifier.subjects[0])
	}
	if !strings.Contains(notifier.bodies[0], "85.00 of 100.00") {
		t.Errorf("body = %q, want spent/limit amounts", notifier.bodies[0])
	}

	processed, failed := w.Stats()
	if processed != 1 || failed != 0 {
		t.Errorf("stats = (%d, %d), want (1, 0)", processed, failed)
	}
}

func TestHandleAlertMessageSubjectPerStatus(t *testing.T) {
	tests := []struct {
		status      string
		wantSubject string
	}{
		{services.StatusOver, "Budget exceeded: Groceries"},
		{services.StatusWarning, "Budget warning: Groceries"},
		{services.StatusOK, "Budget update: Groceries"},
	}

	for _, tt := range tests {
		t.Run(tt.status, func(t *testing.T) {
			subject, _ := renderAlert(alertMessage(tt.status))
			if subject != tt.wantSubject {
				t.Errorf("subject = %q, want %q", subject, tt.wantSubject)
			}
		})
	}
}

func TestHandleAlertMessageNotifierFailure(t *testing.T) {
	notifier := &recordingNotifier{err: errors.New("smtp down")}
	w := NewAlertsWorker(notifier)

	if err := w.HandleAlertMessage(context.Background(), alertMessage(services.StatusOver)); err == nil {
		t.Fatal("HandleAlertMessage error = nil, want delivery failure")
	}

	processed, failed := w.Stats()
	if processed != 0 || failed != 1 {
		t.Errorf("stats = (%d, %d), want (0, 1)", processed, failed)
	}
}

func TestHandleAlertMessageWithoutNotifierLogs(t *testing.T) {
	w := NewAlertsWorker(nil)

	if err := w.HandleAlertMessage(context.Background(), alertMessage(services.StatusOver)); err != nil {
		t.Fatalf("HandleAlertMessage: %v", err)
	}

	processed, _ := w.Stats()
	if processed != 1 {
		t.Errorf("processed = %d, want 1", processed)
	}
}
