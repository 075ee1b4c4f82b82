package worker

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"rewards/internal/amqp"
	"rewards/internal/cache"
	"rewards/internal/ledger"
	"rewards/internal/log"
)

// Redelivered messages seen within this window are not stored twice.
const (
	seenMessages   = 10000
	seenMessageTTL = 24 * time.Hour
)

// Stats counts messages handled by the worker.
type Stats struct {
	Stored     int64
	Duplicates int64
	Rejected   int64
	Failed     int64
}

// IngestWorker stores purchases delivered by the transaction queue.
type IngestWorker struct {
	writer ledger.TransactionWriter
	seen   *cache.LRUCache[int64]
	logger *log.StructuredLogger

	stored, duplicates, rejected, failed atomic.Int64
}

func NewIngestWorker(writer ledger.TransactionWriter, logger *log.Logger) *IngestWorker {
	if logger == nil {
		logger = log.New(log.DefaultConfig())
	}
	return &IngestWorker{
		writer: writer,
		seen:   cache.NewLRUCache[int64](seenMessages, seenMessageTTL),
		logger: log.NewStructuredLogger(logger.WithComponent(log.ComponentWorker)),
	}
}

// HandleTransactionRecorded validates and stores one message. A
// *core.ValidationError tells the consumer to drop the message.
func (w *IngestWorker) HandleTransactionRecorded(ctx context.Context, msg *amqp.TransactionRecordedMessage) error {
	if id, ok := w.seen.Get(msg.MessageID); ok {
		w.duplicates.Add(1)
		slog.InfoContext(ctx, "Skipping already stored message",
			"message_id", msg.MessageID,
			"transaction_id", id)
		return nil
	}

	tx, err := msg.Transaction()
	if err != nil {
		w.rejected.Add(1)
		return err
	}

	stored, err := w.writer.RecordTransaction(ctx, tx)
	if err != nil {
		w.failed.Add(1)
		return fmt.Errorf("record transaction: %w", err)
	}

	if msg.MessageID != "" {
		w.seen.Set(msg.MessageID, stored.ID)
	}
	w.stored.Add(1)
	w.logger.LogTransactionRecorded(ctx, stored, "amqp")
	return nil
}

// Run consumes the queue until ctx is cancelled.
func (w *IngestWorker) Run(ctx context.Context, consumer Consumer) error {
	slog.InfoContext(ctx, "Ingest worker started")
	err := consumer.ConsumeTransactions(ctx, w.HandleTransactionRecorded)
	stats := w.Stats()
	slog.InfoContext(ctx, "Ingest worker stopped",
		"stored", stats.Stored,
		"duplicates", stats.Duplicates,
		"rejected", stats.Rejected,
		"failed", stats.Failed)
	return err
}

// Consumer delivers queue messages to a handler.
type Consumer interface {
	ConsumeTransactions(ctx context.Context, handler amqp.Handler) error
}

func (w *IngestWorker) Stats() Stats {
	return Stats{
		Stored:     w.stored.Load(),
		Duplicates: w.duplicates.Load(),
		Rejected:   w.rejected.Load(),
		Failed:     w.failed.Load(),
	}
}
