package services

import (
	"context"
	"fmt"
	"io"

	"github.com/shopspring/decimal"

	"rewards/internal/core"
	"rewards/internal/ledger"
	"rewards/internal/log"
)

// TransactionPublisher queues a purchase for asynchronous persistence and
// returns the message id.
type TransactionPublisher interface {
	PublishTransactionRecorded(ctx context.Context, tx core.Transaction) (string, error)
}

// RecordInput is a purchase as submitted by a client.
type RecordInput struct {
	CustomerID int64
	Amount     string
	Date       string
}

// RecordOutcome tells how a purchase was accepted.
type RecordOutcome struct {
	// Queued is true when the purchase was published for the worker to store.
	Queued      bool
	MessageID   string
	Transaction core.Transaction
}

// TransactionService records purchases, either directly through a ledger
// writer or by publishing them to the ingestion queue.
type TransactionService struct {
	writer    ledger.TransactionWriter
	publisher TransactionPublisher
	logger    *log.StructuredLogger
}

func NewTransactionService(writer ledger.TransactionWriter, publisher TransactionPublisher, logger *log.Logger) *TransactionService {
	if logger == nil {
		logger = log.New(log.DefaultConfig())
	}
	return &TransactionService{
		writer:    writer,
		publisher: publisher,
		logger:    log.NewStructuredLogger(logger.WithComponent(log.ComponentLedger)),
	}
}

// Validate converts client input into a transaction.
func (in RecordInput) Validate() (core.Transaction, error) {
	if in.CustomerID <= 0 {
		return core.Transaction{}, core.NewValidationError("customerId must be a positive integer")
	}
	amount, err := decimal.NewFromString(in.Amount)
	if err != nil {
		return core.Transaction{}, core.NewValidationError("amount must be a decimal number")
	}
	if !core.FitsAmountScale(amount) {
		return core.Transaction{}, core.NewValidationError("amount must have at most two decimal places")
	}
	date, err := core.ParseDate(in.Date)
	if err != nil {
		return core.Transaction{}, core.NewValidationError("date must use the YYYY-MM-DD format")
	}
	return core.Transaction{CustomerID: in.CustomerID, Amount: amount, Date: date}, nil
}

// Record validates and accepts a purchase. Publishing is preferred over a
// direct write when both are available.
func (s *TransactionService) Record(ctx context.Context, in RecordInput) (RecordOutcome, error) {
	tx, err := in.Validate()
	if err != nil {
		return RecordOutcome{}, err
	}

	switch {
	case s.publisher != nil:
		id, err := s.publisher.PublishTransactionRecorded(ctx, tx)
		if err != nil {
			return RecordOutcome{}, &core.InfrastructureError{Op: "publish transaction", Err: err}
		}
		return RecordOutcome{Queued: true, MessageID: id, Transaction: tx}, nil
	case s.writer != nil:
		stored, err := s.writer.RecordTransaction(ctx, tx)
		if err != nil {
			return RecordOutcome{}, &core.InfrastructureError{Op: "record transaction", Err: err}
		}
		s.logger.LogTransactionRecorded(ctx, stored, "http")
		return RecordOutcome{Transaction: stored}, nil
	default:
		return RecordOutcome{}, ledger.ErrUnsupported
	}
}

// Writable reports whether the service can accept purchases at all.
func (s *TransactionService) Writable() bool {
	return s.publisher != nil || s.writer != nil
}

// Close closes the publisher when it holds a connection.
func (s *TransactionService) Close() error {
	if closer, ok := s.publisher.(io.Closer); ok && closer != nil {
		if err := closer.Close(); err != nil {
			return fmt.Errorf("close publisher: %w", err)
		}
	}
	return nil
}
