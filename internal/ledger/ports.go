package ledger

import (
	"context"
	"errors"

	"rewards/internal/core"
)

// ErrUnsupported is returned when a backend cannot serve an operation.
var ErrUnsupported = errors.New("operation not supported by ledger backend")

// Ports for outbound adapters.
//
//go:generate mockgen -destination=mocks/mock_ledger.go -package=mocks -source=ports.go
type (
	// TransactionSource returns purchases inside an inclusive date window.
	TransactionSource interface {
		// ListCustomerTransactions returns the customer's transactions in [rng.Start, rng.End].
		ListCustomerTransactions(ctx context.Context, customerID int64, rng core.DateRange) ([]core.Transaction, error)
		// ListTransactions returns every customer's transactions in [rng.Start, rng.End].
		ListTransactions(ctx context.Context, rng core.DateRange) ([]core.Transaction, error)
	}

	// CustomerLister returns the customers with at least one transaction in a window.
	CustomerLister interface {
		ListCustomerIDs(ctx context.Context, rng core.DateRange) ([]int64, error)
	}

	// TransactionWriter persists a purchase and returns it with its assigned id.
	TransactionWriter interface {
		RecordTransaction(ctx context.Context, tx core.Transaction) (core.Transaction, error)
	}

	// Pinger checks that the backend is reachable.
	Pinger interface {
		Ping(ctx context.Context) error
	}
)
