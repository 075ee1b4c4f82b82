package postgres

import (
	"database/sql"
	"embed"
	"fmt"
	"log/slog"

	migratepg "github.com/golang-migrate/migrate/v4/database/postgres"

	"rewards/internal/storage"
)

//go:embed migrations/*.sql
var migrations embed.FS

// Schema is the embedded PostgreSQL ledger schema.
var Schema = storage.Schema{FS: migrations, Dir: "migrations"}

// RunMigrations applies Schema over a dedicated connection.
func RunMigrations(connStr string) error {
	db, err := sql.Open("postgres", connStr)
	if err != nil {
		return fmt.Errorf("open migration database: %w", err)
	}

	driver, err := migratepg.WithInstance(db, &migratepg.Config{})
	if err != nil {
		db.Close()
		return fmt.Errorf("create postgres driver: %w", err)
	}

	version, err := storage.ApplySchema(Schema, "postgres", driver)
	if err != nil {
		return err
	}
	slog.Debug("Ledger schema ready", "backend", "postgres", "version", version)
	return nil
}
