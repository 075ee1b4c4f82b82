package amqp

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"rewards/internal/core"
)

// TransactionRecordedMessage carries a purchase to be stored by the worker.
// Amount and date travel as text so no precision is lost.
type TransactionRecordedMessage struct {
	MessageID  string    `json:"messageId"`
	CustomerID int64     `json:"customerId"`
	Amount     string    `json:"amount"`
	Date       string    `json:"date"`
	Timestamp  time.Time `json:"timestamp"`
}

// NewTransactionRecordedMessage creates a message with a fresh id.
func NewTransactionRecordedMessage(tx core.Transaction) *TransactionRecordedMessage {
	return &TransactionRecordedMessage{
		MessageID:  uuid.NewString(),
		CustomerID: tx.CustomerID,
		Amount:     tx.Amount.StringFixed(2),
		Date:       tx.Date.String(),
		Timestamp:  time.Now().UTC(),
	}
}

func (m *TransactionRecordedMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// TransactionRecordedMessageFromJSON decodes a message body.
func TransactionRecordedMessageFromJSON(data []byte) (*TransactionRecordedMessage, error) {
	var msg TransactionRecordedMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}

// Transaction validates the payload and converts it to a domain transaction
// without an id. Invalid payloads yield a *core.ValidationError.
func (m *TransactionRecordedMessage) Transaction() (core.Transaction, error) {
	if m.CustomerID <= 0 {
		return core.Transaction{}, core.NewValidationError(fmt.Sprintf("message %s: customerId must be positive", m.MessageID))
	}
	amount, err := parseAmount(m.Amount)
	if err != nil || !core.FitsAmountScale(amount) {
		return core.Transaction{}, core.NewValidationError(fmt.Sprintf("message %s: invalid amount %q", m.MessageID, m.Amount))
	}
	date, err := core.ParseDate(m.Date)
	if err != nil {
		return core.Transaction{}, core.NewValidationError(fmt.Sprintf("message %s: invalid date %q", m.MessageID, m.Date))
	}
	return core.Transaction{CustomerID: m.CustomerID, Amount: amount, Date: date}, nil
}
