package backend

import (
	"context"
	"fmt"

	"rewards/internal/ledger/dynamo"
	"rewards/internal/ledger/memory"
	"rewards/internal/ledger/sheets"
	"rewards/internal/log"
	"rewards/internal/storage"
	"rewards/internal/storage/postgres"
)

// DefaultFactory implements the Factory interface
type DefaultFactory struct {
	logger *log.Logger
}

// NewFactory creates a new backend factory
func NewFactory(logger *log.Logger) Factory {
	if logger == nil {
		logger = log.New(log.DefaultConfig())
	}
	return &DefaultFactory{
		logger: logger.WithComponent(log.ComponentBackend),
	}
}

// CreateBackend implements Factory.CreateBackend
func (f *DefaultFactory) CreateBackend(ctx context.Context, config Config) (*BackendResult, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	var (
		result *BackendResult
		err    error
	)
	switch config.Type {
	case MemoryBackend:
		result, err = f.createMemoryBackend(config)
	case SQLiteBackend:
		result, err = f.createSQLiteBackend(config)
	case PostgresBackend:
		result, err = f.createPostgresBackend(config)
	case SheetsBackend:
		result, err = f.createSheetsBackend(ctx, config)
	case DynamoBackend:
		result, err = f.createDynamoBackend(ctx, config)
	default:
		return nil, fmt.Errorf("unsupported backend type: %s", config.Type)
	}
	if err != nil {
		return nil, err
	}
	result.Type = config.Type
	return result, nil
}

func (f *DefaultFactory) createMemoryBackend(config Config) (*BackendResult, error) {
	store, err := memory.NewFromFile(config.SeedFile)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize memory ledger: %w", err)
	}

	f.logger.Info("Initialized memory backend",
		"seed_file", config.SeedFile,
		log.FieldTransactionCount, store.Len())

	return &BackendResult{
		Source: store,
		Writer: store,
		Pinger: store,
	}, nil
}

func (f *DefaultFactory) createSQLiteBackend(config Config) (*BackendResult, error) {
	repo, err := storage.NewSQLiteRepository(config.SQLiteDBPath)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize SQLite repository: %w", err)
	}

	f.logger.Info("Initialized SQLite backend", "db_path", config.SQLiteDBPath)

	return &BackendResult{
		Source:  repo,
		Writer:  repo,
		Pinger:  repo,
		Seeder:  repo,
		Cleanup: repo.Close,
	}, nil
}

func (f *DefaultFactory) createPostgresBackend(config Config) (*BackendResult, error) {
	repo, err := postgres.Open(config.PostgresURL)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize PostgreSQL repository: %w", err)
	}

	f.logger.Info("Initialized PostgreSQL backend")

	return &BackendResult{
		Source:  repo,
		Writer:  repo,
		Pinger:  repo,
		Seeder:  repo,
		Cleanup: repo.Close,
	}, nil
}

func (f *DefaultFactory) createSheetsBackend(ctx context.Context, config Config) (*BackendResult, error) {
	cli, err := sheets.New(ctx, sheets.Config{
		SpreadsheetID:   config.GoogleSpreadsheetID,
		SheetName:       config.GoogleSheetName,
		CredentialsJSON: config.GoogleServiceAccountJSON,
		CredentialsFile: config.GoogleServiceAccountFile,
		CacheTTL:        config.SheetsCacheTTL,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize Google Sheets client: %w", err)
	}

	f.logger.Info("Initialized Google Sheets backend",
		"sheet", config.GoogleSheetName,
		"cache_ttl", config.SheetsCacheTTL)

	// Read-only: no Writer or Seeder.
	return &BackendResult{
		Source:     cli,
		Pinger:     cli,
		Cache:      cli.RowCache(),
		CacheStats: cli.CacheStats,
	}, nil
}

func (f *DefaultFactory) createDynamoBackend(ctx context.Context, config Config) (*BackendResult, error) {
	client, err := dynamo.NewClient(ctx, config.AWSRegion, config.DynamoEndpoint)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize DynamoDB client: %w", err)
	}
	repo := dynamo.NewRepository(
		dynamo.WithDynamoDBClient(client),
		dynamo.WithTableName(config.DynamoTable),
	)
	if err := repo.EnsureTable(ctx); err != nil {
		return nil, fmt.Errorf("failed to prepare DynamoDB table: %w", err)
	}

	f.logger.Info("Initialized DynamoDB backend",
		"table", config.DynamoTable,
		"region", config.AWSRegion,
		"endpoint", config.DynamoEndpoint)

	return &BackendResult{
		Source: repo,
		Writer: repo,
		Pinger: repo,
		Seeder: repo,
	}, nil
}
