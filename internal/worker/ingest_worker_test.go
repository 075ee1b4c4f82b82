package worker

import (
	"context"
	"errors"
	"testing"

	"github.com/golang/mock/gomock"

	"rewards/internal/amqp"
	"rewards/internal/core"
	"rewards/internal/ledger/memory"
	"rewards/internal/ledger/mocks"
	"rewards/internal/log"
)

func message(id string, customer int64, amount, date string) *amqp.TransactionRecordedMessage {
	return &amqp.TransactionRecordedMessage{MessageID: id, CustomerID: customer, Amount: amount, Date: date}
}

func TestIngestWorker_StoresMessages(t *testing.T) {
	store := memory.New(nil)
	w := NewIngestWorker(store, log.Discard())
	ctx := context.Background()

	if err := w.HandleTransactionRecorded(ctx, message("m-1", 1, "120.00", "2023-01-15")); err != nil {
		t.Fatalf("HandleTransactionRecorded() error = %v", err)
	}
	// Redelivery of the same message is not stored twice.
	if err := w.HandleTransactionRecorded(ctx, message("m-1", 1, "120.00", "2023-01-15")); err != nil {
		t.Fatalf("HandleTransactionRecorded() redelivery error = %v", err)
	}
	if err := w.HandleTransactionRecorded(ctx, message("m-2", 1, "80.00", "2023-02-20")); err != nil {
		t.Fatalf("HandleTransactionRecorded() error = %v", err)
	}

	if store.Len() != 2 {
		t.Errorf("store holds %d transactions, want 2", store.Len())
	}
	stats := w.Stats()
	if stats.Stored != 2 || stats.Duplicates != 1 {
		t.Errorf("Stats() = %+v, want 2 stored and 1 duplicate", stats)
	}
}

func TestIngestWorker_RejectsInvalidPayload(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	// The writer must not be reached for invalid payloads.
	w := NewIngestWorker(mocks.NewMockTransactionWriter(ctrl), log.Discard())

	err := w.HandleTransactionRecorded(context.Background(), message("m-3", 0, "10", "2023-01-01"))
	var verr *core.ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("HandleTransactionRecorded() error = %v, want ValidationError", err)
	}
	if w.Stats().Rejected != 1 {
		t.Errorf("Rejected = %d, want 1", w.Stats().Rejected)
	}
}

func TestIngestWorker_WriterFailureIsRetryable(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	dbErr := errors.New("database is locked")
	writer := mocks.NewMockTransactionWriter(ctrl)
	writer.EXPECT().RecordTransaction(gomock.Any(), gomock.Any()).Return(core.Transaction{}, dbErr)
	writer.EXPECT().RecordTransaction(gomock.Any(), gomock.Any()).DoAndReturn(
		func(_ context.Context, tx core.Transaction) (core.Transaction, error) {
			tx.ID = 10
			return tx, nil
		})

	w := NewIngestWorker(writer, log.Discard())
	msg := message("m-4", 2, "200", "2023-03-10")

	err := w.HandleTransactionRecorded(context.Background(), msg)
	var verr *core.ValidationError
	if !errors.Is(err, dbErr) || errors.As(err, &verr) {
		t.Fatalf("HandleTransactionRecorded() error = %v, want wrapped writer error", err)
	}
	// A failed attempt does not mark the message as seen.
	if err := w.HandleTransactionRecorded(context.Background(), msg); err != nil {
		t.Fatalf("HandleTransactionRecorded() retry error = %v", err)
	}
	if stats := w.Stats(); stats.Failed != 1 || stats.Stored != 1 {
		t.Errorf("Stats() = %+v, want 1 failed and 1 stored", stats)
	}
}

type fakeConsumer struct {
	messages []*amqp.TransactionRecordedMessage
}

func (f *fakeConsumer) ConsumeTransactions(ctx context.Context, handler amqp.Handler) error {
	for _, m := range f.messages {
		if err := handler(ctx, m); err != nil {
			return err
		}
	}
	return context.Canceled
}

func TestIngestWorker_Run(t *testing.T) {
	store := memory.New(nil)
	w := NewIngestWorker(store, log.Discard())
	consumer := &fakeConsumer{messages: []*amqp.TransactionRecordedMessage{
		message("a", 1, "120", "2023-01-15"),
		message("b", 2, "200", "2023-03-10"),
	}}

	if err := w.Run(context.Background(), consumer); !errors.Is(err, context.Canceled) {
		t.Errorf("Run() error = %v, want context.Canceled", err)
	}
	if store.Len() != 2 {
		t.Errorf("store holds %d transactions, want 2", store.Len())
	}
}
