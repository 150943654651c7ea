package amqp

import (
	"encoding/json"
	"time"
)

// BudgetAlertMessage is published when a budget tracker pass moves a budget
// up the severity ladder. Amounts are carried as decimal values since the
// consumer side only formats them.
type BudgetAlertMessage struct {
	UserID       string    `json:"user_id"`
	Category     string    `json:"category"`
	Previous     string    `json:"previous"`
	Current      string    `json:"current"`
	CurrentSpent float64   `json:"current_spent"`
	MonthlyLimit float64   `json:"monthly_limit"`
	Timestamp    time.Time `json:"timestamp"`
}

func NewBudgetAlertMessage(userID, category, previous, current string, spent, limit float64) *BudgetAlertMessage {
	return &BudgetAlertMessage{
		UserID:       userID,
		Category:     category,
		Previous:     previous,
		Current:      current,
		CurrentSpent: spent,
		MonthlyLimit: limit,
		Timestamp:    time.Now(),
	}
}

func (m *BudgetAlertMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

func BudgetAlertMessageFromJSON(data []byte) (*BudgetAlertMessage, error) {
	var msg BudgetAlertMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}
