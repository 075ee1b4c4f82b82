package storage

import (
	"context"
	"database/sql"
)

// DBTX is satisfied by both *sql.DB and *sql.Tx.
type DBTX interface {
	ExecContext(context.Context, string, ...interface{}) (sql.Result, error)
	QueryContext(context.Context, string, ...interface{}) (*sql.Rows, error)
	QueryRowContext(context.Context, string, ...interface{}) *sql.Row
}

func New(db DBTX) *Queries {
	return &Queries{db: db}
}

type Queries struct {
	db DBTX
}

func (q *Queries) WithTx(tx *sql.Tx) *Queries {
	return &Queries{db: tx}
}

// Transaction is a row of the transactions table.
type Transaction struct {
	ID         int64
	CustomerID int64
	Amount     string
	Date       string
}

const ensureCustomer = `INSERT OR IGNORE INTO customers (id) VALUES (?)`

func (q *Queries) EnsureCustomer(ctx context.Context, id int64) error {
	_, err := q.db.ExecContext(ctx, ensureCustomer, id)
	return err
}

const createTransaction = `INSERT INTO transactions (customer_id, amount, date)
VALUES (?, ?, ?)
RETURNING id, customer_id, amount, date`

type CreateTransactionParams struct {
	CustomerID int64
	Amount     string
	Date       string
}

func (q *Queries) CreateTransaction(ctx context.Context, arg CreateTransactionParams) (Transaction, error) {
	row := q.db.QueryRowContext(ctx, createTransaction, arg.CustomerID, arg.Amount, arg.Date)
	var i Transaction
	err := row.Scan(&i.ID, &i.CustomerID, &i.Amount, &i.Date)
	return i, err
}

const upsertTransaction = `INSERT INTO transactions (id, customer_id, amount, date)
VALUES (?, ?, ?, ?)
ON CONFLICT(id) DO UPDATE SET
    customer_id = excluded.customer_id,
    amount = excluded.amount,
    date = excluded.date`

func (q *Queries) UpsertTransaction(ctx context.Context, arg Transaction) error {
	_, err := q.db.ExecContext(ctx, upsertTransaction, arg.ID, arg.CustomerID, arg.Amount, arg.Date)
	return err
}

const listCustomerTransactions = `SELECT id, customer_id, amount, date
FROM transactions
WHERE customer_id = ? AND date BETWEEN ? AND ?
ORDER BY date, id`

type ListCustomerTransactionsParams struct {
	CustomerID int64
	StartDate  string
	EndDate    string
}

func (q *Queries) ListCustomerTransactions(ctx context.Context, arg ListCustomerTransactionsParams) ([]Transaction, error) {
	rows, err := q.db.QueryContext(ctx, listCustomerTransactions, arg.CustomerID, arg.StartDate, arg.EndDate)
	if err != nil {
		return nil, err
	}
	return scanTransactions(rows)
}

const listTransactions = `SELECT id, customer_id, amount, date
FROM transactions
WHERE date BETWEEN ? AND ?
ORDER BY date, id`

type ListTransactionsParams struct {
	StartDate string
	EndDate   string
}

func (q *Queries) ListTransactions(ctx context.Context, arg ListTransactionsParams) ([]Transaction, error) {
	rows, err := q.db.QueryContext(ctx, listTransactions, arg.StartDate, arg.EndDate)
	if err != nil {
		return nil, err
	}
	return scanTransactions(rows)
}

const listCustomerIDs = `SELECT DISTINCT customer_id
FROM transactions
WHERE date BETWEEN ? AND ?
ORDER BY customer_id`

func (q *Queries) ListCustomerIDs(ctx context.Context, arg ListTransactionsParams) ([]int64, error) {
	rows, err := q.db.QueryContext(ctx, listCustomerIDs, arg.StartDate, arg.EndDate)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		items = append(items, id)
	}
	if err := rows.Close(); err != nil {
		return nil, err
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const countTransactions = `SELECT COUNT(*) FROM transactions`

func (q *Queries) CountTransactions(ctx context.Context) (int64, error) {
	row := q.db.QueryRowContext(ctx, countTransactions)
	var count int64
	err := row.Scan(&count)
	return count, err
}

func scanTransactions(rows *sql.Rows) ([]Transaction, error) {
	defer rows.Close()
	var items []Transaction
	for rows.Next() {
		var i Transaction
		if err := rows.Scan(&i.ID, &i.CustomerID, &i.Amount, &i.Date); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Close(); err != nil {
		return nil, err
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}
