package storage

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/shopspring/decimal"

	"rewards/internal/core"
	"rewards/internal/ledger"

	_ "modernc.org/sqlite"
)

// Ensure interface conformance
var (
	_ ledger.TransactionSource = (*SQLiteRepository)(nil)
	_ ledger.CustomerLister    = (*SQLiteRepository)(nil)
	_ ledger.TransactionWriter = (*SQLiteRepository)(nil)
	_ ledger.Pinger            = (*SQLiteRepository)(nil)
)

type SQLiteRepository struct {
	db      *sql.DB
	queries *Queries
}

func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	// SQLite allows a single writer.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := RunMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLiteRepository{
		db:      db,
		queries: New(db),
	}, nil
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// Ping implements ledger.Pinger
func (r *SQLiteRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

// ListCustomerTransactions implements ledger.TransactionSource
func (r *SQLiteRepository) ListCustomerTransactions(ctx context.Context, customerID int64, rng core.DateRange) ([]core.Transaction, error) {
	rows, err := r.queries.ListCustomerTransactions(ctx, ListCustomerTransactionsParams{
		CustomerID: customerID,
		StartDate:  rng.Start.String(),
		EndDate:    rng.End.String(),
	})
	if err != nil {
		return nil, fmt.Errorf("list customer transactions: %w", err)
	}
	return RowsToCore(rows)
}

// ListTransactions implements ledger.TransactionSource
func (r *SQLiteRepository) ListTransactions(ctx context.Context, rng core.DateRange) ([]core.Transaction, error) {
	rows, err := r.queries.ListTransactions(ctx, ListTransactionsParams{
		StartDate: rng.Start.String(),
		EndDate:   rng.End.String(),
	})
	if err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}
	return RowsToCore(rows)
}

// ListCustomerIDs implements ledger.CustomerLister
func (r *SQLiteRepository) ListCustomerIDs(ctx context.Context, rng core.DateRange) ([]int64, error) {
	ids, err := r.queries.ListCustomerIDs(ctx, ListTransactionsParams{
		StartDate: rng.Start.String(),
		EndDate:   rng.End.String(),
	})
	if err != nil {
		return nil, fmt.Errorf("list customer ids: %w", err)
	}
	return ids, nil
}

// RecordTransaction implements ledger.TransactionWriter. The customer is
// registered on first use.
func (r *SQLiteRepository) RecordTransaction(ctx context.Context, tx core.Transaction) (core.Transaction, error) {
	dbTx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return core.Transaction{}, fmt.Errorf("begin transaction: %w", err)
	}
	defer dbTx.Rollback()

	q := r.queries.WithTx(dbTx)
	if err := q.EnsureCustomer(ctx, tx.CustomerID); err != nil {
		return core.Transaction{}, fmt.Errorf("ensure customer: %w", err)
	}
	row, err := q.CreateTransaction(ctx, CreateTransactionParams{
		CustomerID: tx.CustomerID,
		Amount:     tx.Amount.StringFixed(2),
		Date:       tx.Date.String(),
	})
	if err != nil {
		return core.Transaction{}, fmt.Errorf("create transaction: %w", err)
	}
	if err := dbTx.Commit(); err != nil {
		return core.Transaction{}, fmt.Errorf("commit transaction: %w", err)
	}

	slog.InfoContext(ctx, "Transaction saved to SQLite",
		"id", row.ID,
		"customer_id", row.CustomerID,
		"amount", row.Amount,
		"date", row.Date)

	return row.ToCore()
}

// Seed upserts transactions by id in a single database transaction and
// returns how many were written.
func (r *SQLiteRepository) Seed(ctx context.Context, txs []core.Transaction) (int, error) {
	dbTx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin transaction: %w", err)
	}
	defer dbTx.Rollback()

	q := r.queries.WithTx(dbTx)
	for _, tx := range txs {
		if err := q.EnsureCustomer(ctx, tx.CustomerID); err != nil {
			return 0, fmt.Errorf("ensure customer %d: %w", tx.CustomerID, err)
		}
		if err := q.UpsertTransaction(ctx, FromCore(tx)); err != nil {
			return 0, fmt.Errorf("upsert transaction %d: %w", tx.ID, err)
		}
	}
	if err := dbTx.Commit(); err != nil {
		return 0, fmt.Errorf("commit seed: %w", err)
	}

	slog.InfoContext(ctx, "Ledger seeded", "transaction_count", len(txs))
	return len(txs), nil
}

// Count returns the number of stored transactions.
func (r *SQLiteRepository) Count(ctx context.Context) (int64, error) {
	n, err := r.queries.CountTransactions(ctx)
	if err != nil {
		return 0, fmt.Errorf("count transactions: %w", err)
	}
	return n, nil
}

// FromCore converts a domain transaction into its row form.
func FromCore(tx core.Transaction) Transaction {
	return Transaction{
		ID:         tx.ID,
		CustomerID: tx.CustomerID,
		Amount:     tx.Amount.StringFixed(2),
		Date:       tx.Date.String(),
	}
}

// ToCore converts a stored row into a domain transaction.
func (t Transaction) ToCore() (core.Transaction, error) {
	amount, err := decimal.NewFromString(t.Amount)
	if err != nil {
		return core.Transaction{}, fmt.Errorf("transaction %d: invalid amount %q: %w", t.ID, t.Amount, err)
	}
	date, err := core.ParseDate(t.Date)
	if err != nil {
		return core.Transaction{}, fmt.Errorf("transaction %d: %w", t.ID, err)
	}
	return core.Transaction{ID: t.ID, CustomerID: t.CustomerID, Amount: amount, Date: date}, nil
}

// RowsToCore converts stored rows into domain transactions.
func RowsToCore(rows []Transaction) ([]core.Transaction, error) {
	out := make([]core.Transaction, 0, len(rows))
	for _, row := range rows {
		tx, err := row.ToCore()
		if err != nil {
			return nil, err
		}
		out = append(out, tx)
	}
	return out, nil
}
