package sheets

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"

	"rewards/internal/cache"
	"rewards/internal/core"
	"rewards/internal/ledger"
)

// Ensure interface conformance
var (
	_ ledger.TransactionSource = (*Client)(nil)
	_ ledger.Pinger            = (*Client)(nil)
)

// Config describes where the ledger sheet lives and how to authenticate.
type Config struct {
	SpreadsheetID string
	// SheetName holds one purchase per row in columns A:D
	// (id, customerId, amount, date) below a header row.
	SheetName       string
	CredentialsJSON string
	CredentialsFile string
	// CacheTTL bounds how long raw rows are reused. Zero disables caching.
	CacheTTL time.Duration
}

// valuesReader fetches a range of cell values.
type valuesReader interface {
	Values(ctx context.Context, rng string) ([][]interface{}, error)
	Ping(ctx context.Context) error
}

// Client is a read-only ledger backed by a Google Sheet.
type Client struct {
	reader valuesReader
	sheet  string
	rows   *cache.LRUCache[[][]interface{}]
}

// New creates a Sheets ledger using service account credentials.
func New(ctx context.Context, cfg Config) (*Client, error) {
	if strings.TrimSpace(cfg.SpreadsheetID) == "" {
		return nil, errors.New("missing GOOGLE_SPREADSHEET_ID")
	}
	svc, err := newSheetsService(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("sheets service: %w", err)
	}
	return newClient(&apiReader{svc: svc, spreadsheetID: cfg.SpreadsheetID}, cfg.SheetName, cfg.CacheTTL), nil
}

func newClient(reader valuesReader, sheet string, ttl time.Duration) *Client {
	if strings.TrimSpace(sheet) == "" {
		sheet = "Transactions"
	}
	c := &Client{reader: reader, sheet: sheet}
	if ttl > 0 {
		c.rows = cache.NewLRUCache[[][]interface{}](4, ttl)
	}
	return c
}

// newSheetsService initializes a Sheets Service using Service Account credentials.
// Falls back to GOOGLE_APPLICATION_CREDENTIALS when neither inline JSON nor a file is configured.
func newSheetsService(ctx context.Context, cfg Config) (*gsheet.Service, error) {
	serviceAccountJSON := strings.TrimSpace(cfg.CredentialsJSON)
	serviceAccountFile := strings.TrimSpace(cfg.CredentialsFile)
	if serviceAccountJSON == "" && serviceAccountFile == "" {
		serviceAccountFile = strings.TrimSpace(os.Getenv("GOOGLE_APPLICATION_CREDENTIALS"))
	}

	var credentialsJSON []byte
	switch {
	case serviceAccountJSON != "":
		slog.InfoContext(ctx, "Using inline JSON credentials")
		credentialsJSON = []byte(serviceAccountJSON)
	case serviceAccountFile != "":
		slog.InfoContext(ctx, "Reading credentials from file", "path", serviceAccountFile)
		data, err := os.ReadFile(serviceAccountFile)
		if err != nil {
			return nil, fmt.Errorf("read service account file: %w", err)
		}
		credentialsJSON = data
	default:
		return nil, errors.New("missing service account credentials (set GOOGLE_SERVICE_ACCOUNT_JSON, GOOGLE_SERVICE_ACCOUNT_FILE, or GOOGLE_APPLICATION_CREDENTIALS)")
	}

	service, err := gsheet.NewService(ctx,
		goption.WithCredentialsJSON(credentialsJSON),
		goption.WithScopes(gsheet.SpreadsheetsReadonlyScope))
	if err != nil {
		return nil, fmt.Errorf("create sheets service: %w", err)
	}
	return service, nil
}

// ListCustomerTransactions implements ledger.TransactionSource
func (c *Client) ListCustomerTransactions(ctx context.Context, customerID int64, rng core.DateRange) ([]core.Transaction, error) {
	all, err := c.transactions(ctx)
	if err != nil {
		return nil, err
	}
	return filter(all, func(tx core.Transaction) bool {
		return tx.CustomerID == customerID && rng.Contains(tx.Date)
	}), nil
}

// ListTransactions implements ledger.TransactionSource
func (c *Client) ListTransactions(ctx context.Context, rng core.DateRange) ([]core.Transaction, error) {
	all, err := c.transactions(ctx)
	if err != nil {
		return nil, err
	}
	return filter(all, func(tx core.Transaction) bool {
		return rng.Contains(tx.Date)
	}), nil
}

// Ping implements ledger.Pinger
func (c *Client) Ping(ctx context.Context) error {
	return c.reader.Ping(ctx)
}

// InvalidateCache drops cached rows so the next read hits the API.
func (c *Client) InvalidateCache() {
	if c.rows != nil {
		c.rows.Delete(c.rangeA1())
	}
}

// RowCache exposes the row cache for periodic cleanup, or nil when caching
// is disabled.
func (c *Client) RowCache() cache.Cleaner {
	if c.rows == nil {
		return nil
	}
	return c.rows
}

// CacheStats reports row cache usage.
func (c *Client) CacheStats() cache.Stats {
	if c.rows == nil {
		return cache.Stats{}
	}
	return c.rows.Stats()
}

func (c *Client) rangeA1() string {
	return fmt.Sprintf("%s!A2:D", c.sheet)
}

func (c *Client) transactions(ctx context.Context) ([]core.Transaction, error) {
	rng := c.rangeA1()
	if c.rows != nil {
		if values, ok := c.rows.Get(rng); ok {
			return parseTransactionRows(ctx, values), nil
		}
	}

	values, err := c.reader.Values(ctx, rng)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", rng, err)
	}
	if c.rows != nil {
		c.rows.Set(rng, values)
	}
	return parseTransactionRows(ctx, values), nil
}

func filter(txs []core.Transaction, keep func(core.Transaction) bool) []core.Transaction {
	out := make([]core.Transaction, 0)
	for _, tx := range txs {
		if keep(tx) {
			out = append(out, tx)
		}
	}
	return out
}

// apiReader reads through the Sheets v4 API.
type apiReader struct {
	svc           *gsheet.Service
	spreadsheetID string
}

func (r *apiReader) Values(ctx context.Context, rng string) ([][]interface{}, error) {
	resp, err := r.svc.Spreadsheets.Values.Get(r.spreadsheetID, rng).
		ValueRenderOption("UNFORMATTED_VALUE").
		DateTimeRenderOption("FORMATTED_STRING").
		Context(ctx).
		Do()
	if err != nil {
		return nil, err
	}
	return resp.Values, nil
}

func (r *apiReader) Ping(ctx context.Context) error {
	if _, err := r.svc.Spreadsheets.Get(r.spreadsheetID).Fields("spreadsheetId").Context(ctx).Do(); err != nil {
		return fmt.Errorf("get spreadsheet: %w", err)
	}
	return nil
}
