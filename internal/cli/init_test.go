package cli

import (
	"context"
	"log/slog"
	"path/filepath"
	"testing"

	"rewards/internal/config"
	"rewards/internal/log"
)

func TestSetupLogger(t *testing.T) {
	previous := slog.Default()
	t.Cleanup(func() { slog.SetDefault(previous) })

	logger := SetupLogger("debug", "json")
	if logger.Component() != log.ComponentApp {
		t.Errorf("Component() = %q, want app", logger.Component())
	}
	if !logger.Enabled(context.Background(), slog.LevelDebug) {
		t.Error("debug level is not enabled")
	}
}

func TestInitAMQP_Disabled(t *testing.T) {
	if client := InitAMQP(log.Discard(), &config.Config{}, false); client != nil {
		t.Errorf("InitAMQP() = %v, want nil without AMQP_URL", client)
	}
}

func TestInitBackend_Memory(t *testing.T) {
	cfg := &config.Config{
		DataBackend: config.BackendMemory,
		SeedFile:    filepath.Join(t.TempDir(), "missing.yaml"),
	}

	result := InitBackend(context.Background(), log.Discard(), cfg)
	defer result.Close()

	if result.Source == nil || result.Writer == nil {
		t.Fatalf("InitBackend() = %+v, want a writable memory ledger", result)
	}
	if err := result.Pinger.Ping(context.Background()); err != nil {
		t.Errorf("Ping() error = %v", err)
	}
}
