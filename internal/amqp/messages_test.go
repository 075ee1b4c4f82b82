package amqp

import (
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"rewards/internal/core"
)

func TestNewTransactionRecordedMessage(t *testing.T) {
	tx := core.Transaction{CustomerID: 7, Amount: decimal.RequireFromString("45.5"), Date: core.NewDate(2024, 2, 29)}

	msg := NewTransactionRecordedMessage(tx)

	if msg.MessageID == "" {
		t.Error("MessageID should be set")
	}
	if other := NewTransactionRecordedMessage(tx); other.MessageID == msg.MessageID {
		t.Error("MessageID should be unique per message")
	}
	if msg.Amount != "45.50" || msg.Date != "2024-02-29" || msg.CustomerID != 7 {
		t.Errorf("NewTransactionRecordedMessage() = %+v", msg)
	}
	if time.Since(msg.Timestamp) > time.Second {
		t.Error("Timestamp should be recent")
	}
}

func TestTransactionRecordedMessage_JSON(t *testing.T) {
	msg := &TransactionRecordedMessage{
		MessageID:  "abc",
		CustomerID: 2,
		Amount:     "200.00",
		Date:       "2023-03-10",
		Timestamp:  time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC),
	}

	body, err := msg.ToJSON()
	if err != nil {
		t.Fatalf("ToJSON() error = %v", err)
	}
	want := `{"messageId":"abc","customerId":2,"amount":"200.00","date":"2023-03-10","timestamp":"2024-01-01T12:00:00Z"}`
	if string(body) != want {
		t.Errorf("ToJSON() = %s, want %s", body, want)
	}

	parsed, err := TransactionRecordedMessageFromJSON(body)
	if err != nil {
		t.Fatalf("TransactionRecordedMessageFromJSON() error = %v", err)
	}
	tx, err := parsed.Transaction()
	if err != nil {
		t.Fatalf("Transaction() error = %v", err)
	}
	if tx.CustomerID != 2 || !tx.Amount.Equal(decimal.NewFromInt(200)) || tx.Date != core.NewDate(2023, 3, 10) {
		t.Errorf("Transaction() = %+v", tx)
	}
}

func TestTransactionRecordedMessage_Invalid(t *testing.T) {
	if _, err := TransactionRecordedMessageFromJSON([]byte(`{"customerId":"one"}`)); err == nil {
		t.Error("TransactionRecordedMessageFromJSON() should fail with invalid JSON")
	}

	tests := []struct {
		name string
		msg  TransactionRecordedMessage
	}{
		{"zero customer", TransactionRecordedMessage{CustomerID: 0, Amount: "1", Date: "2023-01-01"}},
		{"bad amount", TransactionRecordedMessage{CustomerID: 1, Amount: "x", Date: "2023-01-01"}},
		{"amount below cent", TransactionRecordedMessage{CustomerID: 1, Amount: "99.995", Date: "2023-01-01"}},
		{"bad date", TransactionRecordedMessage{CustomerID: 1, Amount: "1", Date: "2023-13-01"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := tt.msg.Transaction()
			var verr *core.ValidationError
			if !errors.As(err, &verr) {
				t.Errorf("Transaction() error = %v, want ValidationError", err)
			}
		})
	}
}
