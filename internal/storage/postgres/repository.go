package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"rewards/internal/core"
	"rewards/internal/ledger"
	"rewards/internal/storage"
)

// Ensure interface conformance
var (
	_ ledger.TransactionSource = (*Repository)(nil)
	_ ledger.CustomerLister    = (*Repository)(nil)
	_ ledger.TransactionWriter = (*Repository)(nil)
	_ ledger.Pinger            = (*Repository)(nil)
)

// Dates and amounts are selected as text so rows share the SQLite row type.
const selectColumns = `SELECT id, customer_id, amount::text, to_char(date, 'YYYY-MM-DD') FROM transactions`

const (
	queryCustomerTransactions = selectColumns + `
WHERE customer_id = $1 AND date BETWEEN $2::date AND $3::date
ORDER BY date, id`

	queryTransactions = selectColumns + `
WHERE date BETWEEN $1::date AND $2::date
ORDER BY date, id`

	queryCustomerIDs = `SELECT DISTINCT customer_id FROM transactions
WHERE date BETWEEN $1::date AND $2::date
ORDER BY customer_id`

	ensureCustomer = `INSERT INTO customers (id) VALUES ($1) ON CONFLICT (id) DO NOTHING`

	insertTransaction = `INSERT INTO transactions (customer_id, amount, date)
VALUES ($1, $2::numeric, $3::date)
RETURNING id, customer_id, amount::text, to_char(date, 'YYYY-MM-DD')`

	upsertTransaction = `INSERT INTO transactions (id, customer_id, amount, date)
VALUES ($1, $2, $3::numeric, $4::date)
ON CONFLICT (id) DO UPDATE SET
    customer_id = EXCLUDED.customer_id,
    amount = EXCLUDED.amount,
    date = EXCLUDED.date`

	// Keeps BIGSERIAL ahead of ids written explicitly by Seed.
	resetSequence = `SELECT setval(pg_get_serial_sequence('transactions', 'id'), COALESCE(MAX(id), 1)) FROM transactions`
)

// Repository is the PostgreSQL ledger.
type Repository struct {
	db *DB
}

// Open connects to connStr, applies migrations and returns the repository.
func Open(connStr string) (*Repository, error) {
	if err := RunMigrations(connStr); err != nil {
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	db, err := New(connStr)
	if err != nil {
		return nil, err
	}
	return NewRepository(db), nil
}

func NewRepository(db *DB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) Close() error {
	return r.db.Close()
}

// Ping implements ledger.Pinger
func (r *Repository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

// ListCustomerTransactions implements ledger.TransactionSource
func (r *Repository) ListCustomerTransactions(ctx context.Context, customerID int64, rng core.DateRange) ([]core.Transaction, error) {
	rows, err := r.db.QueryContext(ctx, queryCustomerTransactions, customerID, rng.Start.String(), rng.End.String())
	if err != nil {
		return nil, fmt.Errorf("list customer transactions: %w", err)
	}
	return scan(rows)
}

// ListTransactions implements ledger.TransactionSource
func (r *Repository) ListTransactions(ctx context.Context, rng core.DateRange) ([]core.Transaction, error) {
	rows, err := r.db.QueryContext(ctx, queryTransactions, rng.Start.String(), rng.End.String())
	if err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}
	return scan(rows)
}

// ListCustomerIDs implements ledger.CustomerLister
func (r *Repository) ListCustomerIDs(ctx context.Context, rng core.DateRange) ([]int64, error) {
	rows, err := r.db.QueryContext(ctx, queryCustomerIDs, rng.Start.String(), rng.End.String())
	if err != nil {
		return nil, fmt.Errorf("list customer ids: %w", err)
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan customer id: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate customer ids: %w", err)
	}
	return ids, nil
}

// RecordTransaction implements ledger.TransactionWriter
func (r *Repository) RecordTransaction(ctx context.Context, tx core.Transaction) (core.Transaction, error) {
	var row storage.Transaction
	err := r.inTx(ctx, func(dbTx *sql.Tx) error {
		if _, err := dbTx.ExecContext(ctx, ensureCustomer, tx.CustomerID); err != nil {
			return fmt.Errorf("ensure customer: %w", err)
		}
		in := storage.FromCore(tx)
		return dbTx.QueryRowContext(ctx, insertTransaction, in.CustomerID, in.Amount, in.Date).
			Scan(&row.ID, &row.CustomerID, &row.Amount, &row.Date)
	})
	if err != nil {
		return core.Transaction{}, fmt.Errorf("record transaction: %w", err)
	}

	slog.InfoContext(ctx, "Transaction saved to PostgreSQL",
		"id", row.ID,
		"customer_id", row.CustomerID,
		"amount", row.Amount,
		"date", row.Date)

	return row.ToCore()
}

// Seed upserts transactions by id and returns how many were written.
func (r *Repository) Seed(ctx context.Context, txs []core.Transaction) (int, error) {
	err := r.inTx(ctx, func(dbTx *sql.Tx) error {
		for _, tx := range txs {
			if _, err := dbTx.ExecContext(ctx, ensureCustomer, tx.CustomerID); err != nil {
				return fmt.Errorf("ensure customer %d: %w", tx.CustomerID, err)
			}
			row := storage.FromCore(tx)
			if _, err := dbTx.ExecContext(ctx, upsertTransaction, row.ID, row.CustomerID, row.Amount, row.Date); err != nil {
				return fmt.Errorf("upsert transaction %d: %w", tx.ID, err)
			}
		}
		_, err := dbTx.ExecContext(ctx, resetSequence)
		return err
	})
	if err != nil {
		return 0, fmt.Errorf("seed: %w", err)
	}

	slog.InfoContext(ctx, "Ledger seeded", "transaction_count", len(txs))
	return len(txs), nil
}

func (r *Repository) inTx(ctx context.Context, fn func(*sql.Tx) error) error {
	dbTx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer dbTx.Rollback()

	if err := fn(dbTx); err != nil {
		return err
	}
	return dbTx.Commit()
}

func scan(rows *sql.Rows) ([]core.Transaction, error) {
	defer rows.Close()

	var out []storage.Transaction
	for rows.Next() {
		var row storage.Transaction
		if err := rows.Scan(&row.ID, &row.CustomerID, &row.Amount, &row.Date); err != nil {
			return nil, fmt.Errorf("scan transaction: %w", err)
		}
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate transactions: %w", err)
	}
	return storage.RowsToCore(out)
}
