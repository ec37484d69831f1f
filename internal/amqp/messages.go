package amqp

import (
	"encoding/json"
	"time"

	"github.com/Anubhavtyagi-13/Personal-Expense-Tracker/internal/core"
)

// ExpenseCreatedMessage announces a newly stored expense. Amount is the
// canonical decimal string so consumers never see float rounding.
type ExpenseCreatedMessage struct {
	ID          string    `json:"id"`
	Amount      string    `json:"amount"`
	Category    string    `json:"category"`
	Description string    `json:"description"`
	Date        string    `json:"date"`
	CreatedAt   time.Time `json:"created_at"`
	Timestamp   time.Time `json:"timestamp"`
}

func NewExpenseCreatedMessage(e core.Expense) *ExpenseCreatedMessage {
	return &ExpenseCreatedMessage{
		ID:          e.ID,
		Amount:      e.Amount.String(),
		Category:    e.Category,
		Description: e.Description,
		Date:        e.Date.String(),
		CreatedAt:   e.CreatedAt,
		Timestamp:   time.Now(),
	}
}

// ToJSON converts the message to JSON bytes
func (m *ExpenseCreatedMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// ExpenseCreatedMessageFromJSON parses a message body.
func ExpenseCreatedMessageFromJSON(data []byte) (*ExpenseCreatedMessage, error) {
	var msg ExpenseCreatedMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}
