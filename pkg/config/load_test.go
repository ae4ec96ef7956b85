package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write config file: %v", err)
	}
	return path
}

func TestLoadConfig_ValidFile(t *testing.T) {
	path := writeConfig(t, `
server:
  listen_address: "0.0.0.0:9090"
  read_timeout: "60s"

store:
  backend: "sqlite"
  sqlite:
    path: "./test-reports.db"
    driver: "sqlite3"
    wal_mode: false

lifecycle:
  recovery_window: "24h"
  stage_requirements:
    stage1: ["customer_name"]

reclamation:
  schedule: "*/15 * * * *"
  batch_size: 50

telemetry:
  logging:
    level: "debug"
    format: "text"

security:
  authentication:
    keys:
      - key: "ops-key"
        user_id: "ops"
        role: "operator"
      - key: "old-key"
        user_id: "ann"
        role: "inspector"
        enabled: false
`)

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("failed to load config: %v", err)
	}

	if cfg.Server.ListenAddress != "0.0.0.0:9090" {
		t.Errorf("expected listen address %q, got %q", "0.0.0.0:9090", cfg.Server.ListenAddress)
	}
	if cfg.Server.ReadTimeout != 60*time.Second {
		t.Errorf("expected read timeout %v, got %v", 60*time.Second, cfg.Server.ReadTimeout)
	}
	if cfg.Server.WriteTimeout != DefaultWriteTimeout {
		t.Errorf("expected default write timeout, got %v", cfg.Server.WriteTimeout)
	}
	if cfg.Store.SQLite.Driver != "sqlite3" {
		t.Errorf("expected driver %q, got %q", "sqlite3", cfg.Store.SQLite.Driver)
	}
	if cfg.Store.SQLite.WALMode {
		t.Error("explicit wal_mode: false should be kept")
	}
	if cfg.Lifecycle.RecoveryWindow != 24*time.Hour {
		t.Errorf("expected recovery window 24h, got %v", cfg.Lifecycle.RecoveryWindow)
	}
	if cfg.Lifecycle.StaleAfter != DefaultStaleAfter {
		t.Errorf("expected default stale threshold, got %v", cfg.Lifecycle.StaleAfter)
	}
	if got := cfg.Lifecycle.StageRequirements["stage1"]; len(got) != 1 || got[0] != "customer_name" {
		t.Errorf("unexpected stage1 requirements: %v", got)
	}
	if cfg.Reclamation.BatchSize != 50 {
		t.Errorf("expected batch size 50, got %d", cfg.Reclamation.BatchSize)
	}
	if cfg.Reclamation.MaxPerRun != DefaultReclamationMaxPerRun {
		t.Errorf("expected default max per run, got %d", cfg.Reclamation.MaxPerRun)
	}
	if !cfg.Reclamation.Enabled {
		t.Error("reclamation should be enabled by default")
	}

	keys := cfg.Security.Authentication.Keys
	if len(keys) != 2 {
		t.Fatalf("expected 2 keys, got %d", len(keys))
	}
	if !keys[0].IsEnabled() {
		t.Error("keys are enabled unless disabled")
	}
	if keys[1].IsEnabled() {
		t.Error("explicitly disabled key reported as enabled")
	}
	if len(cfg.Security.Authentication.Sources) != 2 {
		t.Errorf("expected default key sources, got %v", cfg.Security.Authentication.Sources)
	}
}

func TestLoadConfig_EmptyFileUsesDefaults(t *testing.T) {
	cfg, err := LoadConfig(writeConfig(t, ""))
	if err != nil {
		t.Fatalf("failed to load config: %v", err)
	}

	if cfg.Store.Backend != DefaultStoreBackend {
		t.Errorf("expected backend %q, got %q", DefaultStoreBackend, cfg.Store.Backend)
	}
	if !cfg.Store.SQLite.WALMode {
		t.Error("WAL mode should default to true")
	}
	if cfg.Lifecycle.RecoveryWindow != 48*time.Hour {
		t.Errorf("expected 48h recovery window, got %v", cfg.Lifecycle.RecoveryWindow)
	}
	if cfg.Reclamation.Schedule != "0 3 * * *" {
		t.Errorf("expected default schedule, got %q", cfg.Reclamation.Schedule)
	}
	if !cfg.Telemetry.Logging.RedactPII {
		t.Error("PII redaction should default to true")
	}
}

func TestLoadConfig_Errors(t *testing.T) {
	tests := []struct {
		name    string
		content string
		wantVal bool
	}{
		{
			name:    "invalid yaml",
			content: "server: [unclosed",
		},
		{
			name:    "invalid backend",
			content: "store:\n  backend: mysql\n",
			wantVal: true,
		},
		{
			name:    "postgres without dsn",
			content: "store:\n  backend: postgres\n",
			wantVal: true,
		},
		{
			name:    "invalid schedule",
			content: "reclamation:\n  schedule: \"every day\"\n",
			wantVal: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadConfig(writeConfig(t, tt.content))
			if err == nil {
				t.Fatal("expected error")
			}
			var ve ValidationError
			if got := errors.As(err, &ve); got != tt.wantVal {
				t.Errorf("errors.As(ValidationError) = %v, want %v (err: %v)", got, tt.wantVal, err)
			}
		})
	}
}

func TestLoadConfig_MissingFile(t *testing.T) {
	if _, err := LoadConfig(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestLoadConfigWithEnvOverrides(t *testing.T) {
	path := writeConfig(t, `
server:
  listen_address: "127.0.0.1:8080"
reclamation:
  batch_size: 50
`)

	t.Setenv("REPORTKEEPER_SERVER_LISTEN_ADDRESS", "0.0.0.0:7070")
	t.Setenv("REPORTKEEPER_RECLAMATION_BATCH_SIZE", "25")
	t.Setenv("REPORTKEEPER_RECLAMATION_ENABLED", "false")
	t.Setenv("REPORTKEEPER_LIFECYCLE_STALE_AFTER", "240h")
	t.Setenv("REPORTKEEPER_STORE_BACKEND", "memory")
	t.Setenv("REPORTKEEPER_RECLAMATION_MAX_PER_RUN", "not-a-number")

	cfg, err := LoadConfigWithEnvOverrides(path)
	if err != nil {
		t.Fatalf("failed to load config: %v", err)
	}

	if cfg.Server.ListenAddress != "0.0.0.0:7070" {
		t.Errorf("expected env listen address, got %q", cfg.Server.ListenAddress)
	}
	if cfg.Reclamation.BatchSize != 25 {
		t.Errorf("expected env batch size 25, got %d", cfg.Reclamation.BatchSize)
	}
	if cfg.Reclamation.Enabled {
		t.Error("expected reclamation disabled by env")
	}
	if cfg.Lifecycle.StaleAfter != 240*time.Hour {
		t.Errorf("expected stale threshold 240h, got %v", cfg.Lifecycle.StaleAfter)
	}
	if cfg.Store.Backend != "memory" {
		t.Errorf("expected memory backend, got %q", cfg.Store.Backend)
	}
	if cfg.Reclamation.MaxPerRun != DefaultReclamationMaxPerRun {
		t.Errorf("unparseable override should be ignored, got %d", cfg.Reclamation.MaxPerRun)
	}
}

func TestLoadConfigWithEnvOverrides_InvalidOverride(t *testing.T) {
	path := writeConfig(t, "")
	t.Setenv("REPORTKEEPER_TELEMETRY_LOGGING_LEVEL", "verbose")

	if _, err := LoadConfigWithEnvOverrides(path); err == nil {
		t.Fatal("expected validation error after env override")
	}
}

func TestLoadConfigWithEnvOverrides_Postgres(t *testing.T) {
	path := writeConfig(t, "")
	t.Setenv("REPORTKEEPER_STORE_BACKEND", "postgres")
	t.Setenv("REPORTKEEPER_STORE_POSTGRES_DSN", "${secret:postgres-dsn}")
	t.Setenv("REPORTKEEPER_STORE_POSTGRES_MAX_OPEN_CONNS", "20")

	cfg, err := LoadConfigWithEnvOverrides(path)
	if err != nil {
		t.Fatalf("failed to load config: %v", err)
	}
	if cfg.Store.Postgres.DSN != "${secret:postgres-dsn}" {
		t.Errorf("DSN = %q", cfg.Store.Postgres.DSN)
	}
	if cfg.Store.Postgres.MaxOpenConns != 20 {
		t.Errorf("MaxOpenConns = %d, want 20", cfg.Store.Postgres.MaxOpenConns)
	}
	if cfg.Store.Postgres.ConnMaxLifetime != DefaultPostgresConnMaxLifetime {
		t.Errorf("ConnMaxLifetime = %v", cfg.Store.Postgres.ConnMaxLifetime)
	}
}

func TestLoadConfig_PostgresSection(t *testing.T) {
	path := writeConfig(t, `
store:
  backend: "postgres"
  postgres:
    dsn: "postgres://rk@localhost:5432/reports?sslmode=disable"
    max_open_conns: 12
    conn_max_lifetime: "10m"
`)

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("failed to load config: %v", err)
	}
	pg := cfg.Store.Postgres
	if pg.DSN != "postgres://rk@localhost:5432/reports?sslmode=disable" {
		t.Errorf("DSN = %q", pg.DSN)
	}
	if pg.MaxOpenConns != 12 {
		t.Errorf("MaxOpenConns = %d, want 12", pg.MaxOpenConns)
	}
	if pg.MaxIdleConns != DefaultPostgresMaxIdleConns {
		t.Errorf("MaxIdleConns = %d, want default %d", pg.MaxIdleConns, DefaultPostgresMaxIdleConns)
	}
	if pg.ConnMaxLifetime != 10*time.Minute {
		t.Errorf("ConnMaxLifetime = %v, want 10m", pg.ConnMaxLifetime)
	}
}
