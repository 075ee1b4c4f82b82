package backend

import (
	"errors"
	"fmt"

	"rewards/internal/config"
)

// FromAppConfig converts the application config to backend config
func FromAppConfig(appConfig *config.Config) (Config, error) {
	if appConfig == nil {
		return Config{}, fmt.Errorf("app config is nil")
	}

	backendType := BackendType(appConfig.DataBackend)
	if !backendType.IsValid() {
		return Config{}, fmt.Errorf("invalid backend type in config: %s", appConfig.DataBackend)
	}

	return Config{
		Type: backendType,

		SeedFile: appConfig.SeedFile,

		SQLiteDBPath: appConfig.SQLiteDBPath,
		PostgresURL:  appConfig.PostgresURL,

		GoogleSpreadsheetID:      appConfig.GoogleSpreadsheetID,
		GoogleSheetName:          appConfig.GoogleSheetName,
		GoogleServiceAccountJSON: appConfig.GoogleServiceAccountJSON,
		GoogleServiceAccountFile: appConfig.GoogleServiceAccountFile,
		SheetsCacheTTL:           appConfig.SheetsCacheTTL,

		DynamoTable:    appConfig.DynamoTable,
		AWSRegion:      appConfig.AWSRegion,
		DynamoEndpoint: appConfig.DynamoEndpoint,
	}, nil
}

// requirement is one setting a backend cannot start without.
type requirement struct {
	missing bool
	message string
}

// requirements lists what each backend type needs. A missing memory seed
// file falls back to the built-in seed, so memory needs nothing.
func (c Config) requirements() []requirement {
	switch c.Type {
	case SQLiteBackend:
		return []requirement{
			{c.SQLiteDBPath == "", "SQLite database path is required"},
		}
	case PostgresBackend:
		return []requirement{
			{c.PostgresURL == "", "postgres connection URL is required"},
		}
	case SheetsBackend:
		return []requirement{
			{c.GoogleSpreadsheetID == "", "Google Spreadsheet ID is required"},
			{c.GoogleServiceAccountJSON == "" && c.GoogleServiceAccountFile == "", "either GoogleServiceAccountJSON or GoogleServiceAccountFile must be provided"},
		}
	case DynamoBackend:
		return []requirement{
			{c.DynamoTable == "", "DynamoDB table name is required"},
			{c.AWSRegion == "", "AWS region is required"},
		}
	}
	return nil
}

// Validate reports every missing setting for the selected backend.
func (c Config) Validate() error {
	if !c.Type.IsValid() {
		return fmt.Errorf("invalid backend type: %s", c.Type)
	}

	var errs []error
	for _, req := range c.requirements() {
		if req.missing {
			errs = append(errs, fmt.Errorf("%s backend: %s", c.Type, req.message))
		}
	}
	return errors.Join(errs...)
}

// GetBackendTypes returns all valid backend types
func GetBackendTypes() []BackendType {
	return []BackendType{MemoryBackend, SQLiteBackend, PostgresBackend, SheetsBackend, DynamoBackend}
}

// GetBackendTypeStrings returns all valid backend type strings
func GetBackendTypeStrings() []string {
	types := GetBackendTypes()
	strings := make([]string, len(types))
	for i, t := range types {
		strings[i] = t.String()
	}
	return strings
}
