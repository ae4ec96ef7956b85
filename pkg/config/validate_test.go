package config

import (
	"errors"
	"strings"
	"testing"
	"time"
)

func TestValidate_ValidConfig(t *testing.T) {
	if err := Validate(MinimalConfig()); err != nil {
		t.Errorf("expected valid config to pass validation, got error: %v", err)
	}
}

func TestValidate_MultipleErrors(t *testing.T) {
	err := Validate(&Config{})
	if err == nil {
		t.Fatal("expected validation to fail")
	}

	var ve ValidationError
	if !errors.As(err, &ve) {
		t.Fatalf("expected ValidationError, got %T", err)
	}
	if len(ve.Errors) < 2 {
		t.Errorf("expected multiple errors, got %d", len(ve.Errors))
	}
	if !strings.Contains(ve.Error(), "validation failed with") {
		t.Errorf("error message should mention multiple errors: %s", ve.Error())
	}
}

func TestValidate_Fields(t *testing.T) {
	tests := []struct {
		name       string
		mutate     func(*Config)
		errorField string
	}{
		{
			name:       "listen address without port",
			mutate:     func(c *Config) { c.Server.ListenAddress = "localhost" },
			errorField: "server.listen_address",
		},
		{
			name:       "negative read timeout",
			mutate:     func(c *Config) { c.Server.ReadTimeout = -time.Second },
			errorField: "server.read_timeout",
		},
		{
			name:       "cors without origins",
			mutate:     func(c *Config) { c.Server.CORS.Enabled = true },
			errorField: "server.cors.allowed_origins",
		},
		{
			name: "rate limit without burst",
			mutate: func(c *Config) {
				c.Server.RateLimit = RateLimitConfig{Enabled: true, RequestsPerSecond: 5, Burst: 0}
			},
			errorField: "server.rate_limit.burst",
		},
		{
			name:       "tls without cert",
			mutate:     func(c *Config) { c.Server.TLS = TLSConfig{Enabled: true, KeyFile: "key.pem", MinVersion: "1.3"} },
			errorField: "server.tls.cert_file",
		},
		{
			name: "tls 1.1",
			mutate: func(c *Config) {
				c.Server.TLS = TLSConfig{Enabled: true, CertFile: "cert.pem", KeyFile: "key.pem", MinVersion: "1.1"}
			},
			errorField: "server.tls.min_version",
		},
		{
			name:       "unknown backend",
			mutate:     func(c *Config) { c.Store.Backend = "mysql" },
			errorField: "store.backend",
		},
		{
			name:       "postgres without dsn",
			mutate:     func(c *Config) { c.Store.Backend = "postgres" },
			errorField: "store.postgres.dsn",
		},
		{
			name: "unknown driver",
			mutate: func(c *Config) {
				c.Store.Backend = "sqlite"
				c.Store.SQLite.Driver = "pgx"
			},
			errorField: "store.sqlite.driver",
		},
		{
			name: "idle above open",
			mutate: func(c *Config) {
				c.Store.Backend = "sqlite"
				c.Store.SQLite.MaxIdleConns = 10
			},
			errorField: "store.sqlite.max_idle_conns",
		},
		{
			name:       "zero recovery window",
			mutate:     func(c *Config) { c.Lifecycle.RecoveryWindow = 0 },
			errorField: "lifecycle.recovery_window",
		},
		{
			name:       "negative stale threshold",
			mutate:     func(c *Config) { c.Lifecycle.StaleAfter = -time.Hour },
			errorField: "lifecycle.stale_after",
		},
		{
			name:       "terminal stage requirements",
			mutate:     func(c *Config) { c.Lifecycle.StageRequirements["stage3"] = []string{"x"} },
			errorField: "lifecycle.stage_requirements.stage3",
		},
		{
			name:       "blank requirement",
			mutate:     func(c *Config) { c.Lifecycle.StageRequirements["stage1"] = []string{" "} },
			errorField: "lifecycle.stage_requirements.stage1",
		},
		{
			name:       "bad cron",
			mutate:     func(c *Config) { c.Reclamation.Schedule = "61 * * * *" },
			errorField: "reclamation.schedule",
		},
		{
			name:       "zero batch size",
			mutate:     func(c *Config) { c.Reclamation.BatchSize = 0 },
			errorField: "reclamation.batch_size",
		},
		{
			name:       "zero max per run",
			mutate:     func(c *Config) { c.Reclamation.MaxPerRun = 0 },
			errorField: "reclamation.max_per_run",
		},
		{
			name: "archive without path",
			mutate: func(c *Config) {
				c.Reclamation.ArchiveBeforeDelete = true
				c.Reclamation.ArchivePath = ""
			},
			errorField: "reclamation.archive_path",
		},
		{
			name: "s3 archive without bucket",
			mutate: func(c *Config) {
				c.Reclamation.ArchiveBeforeDelete = true
				c.Reclamation.ArchiveBackend = "s3"
			},
			errorField: "reclamation.archive_s3.bucket",
		},
		{
			name:       "unknown archive backend",
			mutate:     func(c *Config) { c.Reclamation.ArchiveBackend = "gcs" },
			errorField: "reclamation.archive_backend",
		},
		{
			name:       "unknown lock backend",
			mutate:     func(c *Config) { c.Reclamation.Lock.Backend = "etcd" },
			errorField: "reclamation.lock.backend",
		},
		{
			name: "redis lock with short ttl",
			mutate: func(c *Config) {
				c.Reclamation.Lock.Backend = "redis"
				c.Reclamation.Lock.TTL = time.Millisecond
			},
			errorField: "reclamation.lock.ttl",
		},
		{
			name:       "bad log level",
			mutate:     func(c *Config) { c.Telemetry.Logging.Level = "trace" },
			errorField: "telemetry.logging.level",
		},
		{
			name:       "bad log format",
			mutate:     func(c *Config) { c.Telemetry.Logging.Format = "console" },
			errorField: "telemetry.logging.format",
		},
		{
			name: "bad redact pattern",
			mutate: func(c *Config) {
				c.Telemetry.Logging.RedactPatterns = []RedactPattern{{Name: "x", Pattern: "("}}
			},
			errorField: "telemetry.logging.redact_patterns[0].pattern",
		},
		{
			name:       "relative metrics path",
			mutate:     func(c *Config) { c.Telemetry.Metrics.Path = "metrics" },
			errorField: "telemetry.metrics.path",
		},
		{
			name: "bad source type",
			mutate: func(c *Config) {
				c.Security.Authentication.Sources = []APIKeySource{{Type: "cookie", Name: "k"}}
			},
			errorField: "security.authentication.sources[0].type",
		},
		{
			name: "unknown role",
			mutate: func(c *Config) {
				c.Security.Authentication.Keys = []APIKeyConfig{{Key: "k", UserID: "u", Role: "admin"}}
			},
			errorField: "security.authentication.keys[0].role",
		},
		{
			name: "duplicate key",
			mutate: func(c *Config) {
				c.Security.Authentication.Keys = []APIKeyConfig{
					{Key: "k", UserID: "a", Role: "inspector"},
					{Key: "k", UserID: "b", Role: "inspector"},
				}
			},
			errorField: "security.authentication.keys[1].key",
		},
		{
			name:       "unknown sampler",
			mutate:     func(c *Config) { c.Telemetry.Tracing.Sampler = "sometimes" },
			errorField: "telemetry.tracing.sampler",
		},
		{
			name:       "sample ratio above one",
			mutate:     func(c *Config) { c.Telemetry.Tracing.SampleRatio = 1.5 },
			errorField: "telemetry.tracing.sample_ratio",
		},
		{
			name:       "tracing without endpoint",
			mutate:     func(c *Config) { c.Telemetry.Tracing.Enabled = true },
			errorField: "telemetry.tracing.endpoint",
		},
		{
			name: "branch manager without branch",
			mutate: func(c *Config) {
				c.Security.Authentication.Keys = []APIKeyConfig{{Key: "k", UserID: "u", Role: "branch_manager"}}
			},
			errorField: "security.authentication.keys[0].branch_id",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := MinimalConfig()
			tt.mutate(cfg)

			err := Validate(cfg)
			if err == nil {
				t.Fatal("expected validation error")
			}
			var ve ValidationError
			if !errors.As(err, &ve) {
				t.Fatalf("expected ValidationError, got %T", err)
			}
			found := false
			for _, fe := range ve.Errors {
				if fe.Field == tt.errorField {
					found = true
					break
				}
			}
			if !found {
				t.Errorf("expected error for field %q, got: %v", tt.errorField, ve.Errors)
			}
		})
	}
}

func TestValidate_DisabledReclamationSkipsSchedule(t *testing.T) {
	cfg := NewTestConfig().WithSchedule("not cron").Build()
	cfg.Reclamation.Enabled = false

	if err := Validate(cfg); err != nil {
		t.Errorf("schedule should not be checked when reclamation is disabled: %v", err)
	}
}

func TestValidationError_Error(t *testing.T) {
	tests := []struct {
		name string
		err  ValidationError
		want string
	}{
		{
			name: "no errors",
			err:  ValidationError{},
			want: "configuration validation failed",
		},
		{
			name: "single error",
			err:  ValidationError{Errors: []FieldError{{Field: "a.b", Message: "bad"}}},
			want: "configuration validation failed: a.b: bad",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.Error(); got != tt.want {
				t.Errorf("Error() = %q, want %q", got, tt.want)
			}
		})
	}
}
