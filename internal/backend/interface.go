package backend

import (
	"context"
	"time"

	"rewards/internal/cache"
	"rewards/internal/core"
	"rewards/internal/ledger"
)

// Seeder bulk-loads transactions keeping their ids.
type Seeder interface {
	Seed(ctx context.Context, txs []core.Transaction) (int, error)
}

// CleanupFunc represents a cleanup function for resources
type CleanupFunc func() error

// BackendResult holds the ledger a backend exposes. Writer, Seeder and Cache
// are nil when the backend does not support them.
type BackendResult struct {
	Type   BackendType
	Source ledger.TransactionSource
	Writer ledger.TransactionWriter
	Pinger ledger.Pinger
	Seeder Seeder
	// Cache is the row cache to register with a cache.Manager.
	Cache      cache.Cleaner
	CacheStats func() cache.Stats
	Cleanup    CleanupFunc
}

// Close runs the cleanup function, if any.
func (r *BackendResult) Close() error {
	if r == nil || r.Cleanup == nil {
		return nil
	}
	return r.Cleanup()
}

// Factory creates backends based on configuration
type Factory interface {
	// CreateBackend creates a backend instance based on the provided config
	CreateBackend(ctx context.Context, config Config) (*BackendResult, error)
}

// Config holds configuration for backend creation
type Config struct {
	// Backend type
	Type BackendType

	// Memory backend specific
	SeedFile string

	// SQL specific
	SQLiteDBPath string
	PostgresURL  string

	// Google Sheets specific
	GoogleSpreadsheetID      string
	GoogleSheetName          string
	GoogleServiceAccountJSON string
	GoogleServiceAccountFile string
	SheetsCacheTTL           time.Duration

	// DynamoDB specific
	DynamoTable    string
	AWSRegion      string
	DynamoEndpoint string
}

// BackendType represents the type of backend
type BackendType string

const (
	MemoryBackend   BackendType = "memory"
	SQLiteBackend   BackendType = "sqlite"
	PostgresBackend BackendType = "postgres"
	SheetsBackend   BackendType = "sheets"
	DynamoBackend   BackendType = "dynamo"
)

// String implements fmt.Stringer
func (bt BackendType) String() string {
	return string(bt)
}

// IsValid returns true if the backend type is valid
func (bt BackendType) IsValid() bool {
	switch bt {
	case MemoryBackend, SQLiteBackend, PostgresBackend, SheetsBackend, DynamoBackend:
		return true
	default:
		return false
	}
}
