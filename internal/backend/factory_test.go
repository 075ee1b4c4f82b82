package backend

import (
	"context"
	"path/filepath"
	"strings"
	"testing"

	"rewards/internal/config"
	"rewards/internal/core"
	"rewards/internal/ledger"
	"rewards/internal/log"
)

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		config  Config
		wantErr string
	}{
		{"memory needs nothing", Config{Type: MemoryBackend}, ""},
		{"unknown type", Config{Type: "oracle"}, "invalid backend type"},
		{"sqlite without path", Config{Type: SQLiteBackend}, "SQLite database path"},
		{"postgres without url", Config{Type: PostgresBackend}, "postgres connection URL"},
		{"sheets without id", Config{Type: SheetsBackend, GoogleServiceAccountFile: "sa.json"}, "Spreadsheet ID"},
		{"sheets without credentials", Config{Type: SheetsBackend, GoogleSpreadsheetID: "abc"}, "GoogleServiceAccountJSON"},
		{"dynamo without region", Config{Type: DynamoBackend, DynamoTable: "transactions"}, "AWS region"},
		{"dynamo without anything", Config{Type: DynamoBackend}, "dynamo backend: DynamoDB table name is required\ndynamo backend: AWS region is required"},
		{"dynamo ok", Config{Type: DynamoBackend, DynamoTable: "transactions", AWSRegion: "eu-west-1"}, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.config.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("Validate() error = %v, want nil", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Validate() error = %v, want containing %q", err, tt.wantErr)
			}
		})
	}
}

func TestFromAppConfig(t *testing.T) {
	if _, err := FromAppConfig(nil); err == nil {
		t.Error("FromAppConfig(nil) error = nil, want error")
	}

	if _, err := FromAppConfig(&config.Config{DataBackend: "oracle"}); err == nil {
		t.Error("FromAppConfig(oracle) error = nil, want error")
	}

	got, err := FromAppConfig(&config.Config{
		DataBackend:  config.BackendDynamo,
		DynamoTable:  "ledger",
		AWSRegion:    "eu-west-1",
		SQLiteDBPath: "ignored.db",
	})
	if err != nil {
		t.Fatalf("FromAppConfig() error = %v", err)
	}
	if got.Type != DynamoBackend || got.DynamoTable != "ledger" || got.AWSRegion != "eu-west-1" {
		t.Errorf("FromAppConfig() = %+v", got)
	}
}

func TestGetBackendTypeStrings(t *testing.T) {
	got := strings.Join(GetBackendTypeStrings(), ",")
	if got != "memory,sqlite,postgres,sheets,dynamo" {
		t.Errorf("GetBackendTypeStrings() = %s", got)
	}
}

func TestCreateBackend_Memory(t *testing.T) {
	f := NewFactory(log.Discard())

	result, err := f.CreateBackend(context.Background(), Config{
		Type:     MemoryBackend,
		SeedFile: filepath.Join(t.TempDir(), "missing.yaml"),
	})
	if err != nil {
		t.Fatalf("CreateBackend() error = %v", err)
	}
	defer result.Close()

	if result.Type != MemoryBackend {
		t.Errorf("Type = %s, want memory", result.Type)
	}
	if result.Writer == nil || result.Pinger == nil {
		t.Fatal("memory backend should be writable and pingable")
	}
	if result.Seeder != nil || result.Cache != nil {
		t.Error("memory backend should have no seeder or cache")
	}
	if _, ok := result.Source.(ledger.CustomerLister); !ok {
		t.Error("memory source should list customers")
	}

	rng := core.DateRange{Start: core.NewDate(2023, 1, 1), End: core.NewDate(2023, 3, 31)}
	txs, err := result.Source.ListTransactions(context.Background(), rng)
	if err != nil {
		t.Fatalf("ListTransactions() error = %v", err)
	}
	if len(txs) != len(ledger.DefaultSeed()) {
		t.Errorf("ListTransactions() returned %d rows, want default seed", len(txs))
	}
}

func TestCreateBackend_SQLite(t *testing.T) {
	f := NewFactory(log.Discard())
	ctx := context.Background()

	result, err := f.CreateBackend(ctx, Config{
		Type:         SQLiteBackend,
		SQLiteDBPath: filepath.Join(t.TempDir(), "rewards.db"),
	})
	if err != nil {
		t.Fatalf("CreateBackend() error = %v", err)
	}
	defer func() {
		if err := result.Close(); err != nil {
			t.Errorf("Close() error = %v", err)
		}
	}()

	if err := result.Pinger.Ping(ctx); err != nil {
		t.Fatalf("Ping() error = %v", err)
	}
	n, err := result.Seeder.Seed(ctx, ledger.DefaultSeed())
	if err != nil {
		t.Fatalf("Seed() error = %v", err)
	}
	if n != len(ledger.DefaultSeed()) {
		t.Errorf("Seed() = %d, want %d", n, len(ledger.DefaultSeed()))
	}

	rng := core.DateRange{Start: core.NewDate(2023, 1, 1), End: core.NewDate(2023, 3, 31)}
	txs, err := result.Source.ListCustomerTransactions(ctx, 1, rng)
	if err != nil {
		t.Fatalf("ListCustomerTransactions() error = %v", err)
	}
	if len(txs) != 2 {
		t.Errorf("ListCustomerTransactions() returned %d rows, want 2", len(txs))
	}
}

func TestCreateBackend_InvalidConfig(t *testing.T) {
	f := NewFactory(nil)
	if _, err := f.CreateBackend(context.Background(), Config{Type: PostgresBackend}); err == nil {
		t.Error("CreateBackend() error = nil, want validation error")
	}
}

func TestBackendResultClose_Nil(t *testing.T) {
	var r *BackendResult
	if err := r.Close(); err != nil {
		t.Errorf("Close() on nil = %v", err)
	}
}
