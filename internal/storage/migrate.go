package storage

import (
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database"
	"github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
)

//go:embed migrations/*.sql
var sqliteMigrations embed.FS

// Schema is a directory of golang-migrate files for one ledger database.
type Schema struct {
	FS  fs.FS
	Dir string
}

// SQLiteSchema is the embedded SQLite ledger schema.
var SQLiteSchema = Schema{FS: sqliteMigrations, Dir: "migrations"}

// ApplySchema brings the database behind driver to the latest version of
// schema and returns that version. Closing the migrator closes driver.
func ApplySchema(schema Schema, databaseName string, driver database.Driver) (uint, error) {
	src, err := iofs.New(schema.FS, schema.Dir)
	if err != nil {
		return 0, fmt.Errorf("open %s schema: %w", databaseName, err)
	}

	m, err := migrate.NewWithInstance("iofs", src, databaseName, driver)
	if err != nil {
		return 0, fmt.Errorf("create %s migrator: %w", databaseName, err)
	}
	defer m.Close()

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return 0, fmt.Errorf("migrate %s ledger: %w", databaseName, err)
	}

	version, dirty, err := m.Version()
	if err != nil {
		return 0, fmt.Errorf("read %s schema version: %w", databaseName, err)
	}
	if dirty {
		return version, fmt.Errorf("%s schema version %d is dirty", databaseName, version)
	}
	return version, nil
}

// RunMigrations applies SQLiteSchema to the file at dbPath through its own
// connection, leaving the repository pool open.
func RunMigrations(dbPath string) error {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return fmt.Errorf("open migration database: %w", err)
	}

	driver, err := sqlite.WithInstance(db, &sqlite.Config{})
	if err != nil {
		db.Close()
		return fmt.Errorf("create sqlite driver: %w", err)
	}

	version, err := ApplySchema(SQLiteSchema, "sqlite", driver)
	if err != nil {
		return err
	}
	slog.Debug("Ledger schema ready", "backend", "sqlite", "version", version)
	return nil
}
