package dynamo

import (
	"context"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/ory/dockertest"
	"github.com/shopspring/decimal"

	"rewards/internal/core"
	"rewards/internal/ledger"
)

func newIntegrationRepository(t *testing.T) *Repository {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping integration test")
	}

	pool, err := dockertest.NewPool("")
	if err != nil {
		t.Fatalf("could not connect to docker: %v", err)
	}
	resource, err := pool.Run("public.ecr.aws/aws-dynamodb-local/aws-dynamodb-local", "1.19.0", []string{})
	if err != nil {
		t.Fatalf("could not start resource: %v", err)
	}
	t.Cleanup(func() {
		if err := pool.Purge(resource); err != nil {
			t.Fatalf("could not purge resource: %v", err)
		}
	})

	t.Setenv("AWS_ACCESS_KEY_ID", "local")
	t.Setenv("AWS_SECRET_ACCESS_KEY", "local")

	client, err := NewClient(context.Background(), "us-east-1", "http://localhost:"+resource.GetPort("8000/tcp"))
	if err != nil {
		t.Fatalf("could not load config: %v", err)
	}

	pool.MaxWait = 60 * time.Second
	if err := pool.Retry(func() error {
		_, err := client.ListTables(context.Background(), &dynamodb.ListTablesInput{})
		return err
	}); err != nil {
		t.Fatalf("could not connect to dynamo container: %v", err)
	}

	repo := NewRepository(WithDynamoDBClient(client), WithTableName("transactions"))
	if err := repo.EnsureTable(context.Background()); err != nil {
		t.Fatalf("EnsureTable() error = %v", err)
	}
	return repo
}

func TestRepository_Integration(t *testing.T) {
	repo := newIntegrationRepository(t)
	ctx := context.Background()

	if _, err := repo.Seed(ctx, ledger.DefaultSeed()); err != nil {
		t.Fatalf("Seed() error = %v", err)
	}
	if err := repo.Ping(ctx); err != nil {
		t.Fatalf("Ping() error = %v", err)
	}

	t.Run("inclusive bounds", func(t *testing.T) {
		rng := core.DateRange{Start: core.NewDate(2023, 1, 15), End: core.NewDate(2023, 2, 20)}
		got, err := repo.ListCustomerTransactions(ctx, 1, rng)
		if err != nil {
			t.Fatalf("ListCustomerTransactions() error = %v", err)
		}
		if len(got) != 2 || got[0].ID != 1 || got[1].ID != 2 {
			t.Fatalf("ListCustomerTransactions() = %+v, want ids 1 and 2", got)
		}
	})

	t.Run("scan window", func(t *testing.T) {
		rng := core.DateRange{Start: core.NewDate(2023, 1, 1), End: core.NewDate(2023, 3, 31)}
		all, err := repo.ListTransactions(ctx, rng)
		if err != nil {
			t.Fatalf("ListTransactions() error = %v", err)
		}
		if len(all) != 3 {
			t.Errorf("ListTransactions() returned %d, want 3", len(all))
		}
		ids, err := repo.ListCustomerIDs(ctx, rng)
		if err != nil {
			t.Fatalf("ListCustomerIDs() error = %v", err)
		}
		if len(ids) != 2 || ids[0] != 1 || ids[1] != 2 {
			t.Errorf("ListCustomerIDs() = %v, want [1 2]", ids)
		}
	})

	t.Run("record continues after seed", func(t *testing.T) {
		stored, err := repo.RecordTransaction(ctx, core.Transaction{
			CustomerID: 4,
			Amount:     decimal.NewFromInt(99),
			Date:       core.NewDate(2023, 3, 2),
		})
		if err != nil {
			t.Fatalf("RecordTransaction() error = %v", err)
		}
		if stored.ID != 4 {
			t.Errorf("RecordTransaction() id = %d, want 4", stored.ID)
		}
	})
}
