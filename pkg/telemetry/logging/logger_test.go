package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"

	"mercator-hq/reportkeeper/pkg/config"
)

func newTestLogger(t *testing.T, cfg Config) (*slog.Logger, *bytes.Buffer) {
	t.Helper()
	buf := &bytes.Buffer{}
	cfg.Writer = buf
	logger, err := New(cfg)
	if err != nil {
		t.Fatalf("New() failed: %v", err)
	}
	return logger, buf
}

func decode(t *testing.T, buf *bytes.Buffer) map[string]any {
	t.Helper()
	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("failed to decode log line %q: %v", buf.String(), err)
	}
	return entry
}

func TestNew(t *testing.T) {
	tests := []struct {
		name    string
		config  Config
		wantErr bool
	}{
		{name: "json", config: Config{Level: "info", Format: "json"}},
		{name: "text", config: Config{Level: "debug", Format: "text"}},
		{name: "defaults", config: Config{}},
		{name: "invalid level", config: Config{Level: "trace"}, wantErr: true},
		{name: "invalid format", config: Config{Format: "console"}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.config.Writer = &bytes.Buffer{}
			logger, err := New(tt.config)
			if (err != nil) != tt.wantErr {
				t.Fatalf("New() error = %v, wantErr %v", err, tt.wantErr)
			}
			if !tt.wantErr && logger == nil {
				t.Error("expected non-nil logger")
			}
		})
	}
}

func TestLogger_LevelFiltering(t *testing.T) {
	logger, buf := newTestLogger(t, Config{Level: "warn"})

	logger.Info("hidden")
	if buf.Len() != 0 {
		t.Errorf("info should be filtered at warn level, got %q", buf.String())
	}

	logger.Warn("shown")
	if !strings.Contains(buf.String(), "shown") {
		t.Errorf("warn should be logged, got %q", buf.String())
	}
}

func TestLogger_ContextFields(t *testing.T) {
	logger, buf := newTestLogger(t, Config{Level: "info"})

	ctx := WithRequestID(context.Background(), "req-1")
	ctx = WithRunID(ctx, "run-9")
	ctx = WithUser(ctx, "ann")
	logger.InfoContext(ctx, "report recovered", "stage", "stage2")

	entry := decode(t, buf)
	for key, want := range map[string]string{
		"request_id": "req-1",
		"run_id":     "run-9",
		"user":       "ann",
		"stage":      "stage2",
	} {
		if entry[key] != want {
			t.Errorf("%s = %v, want %q", key, entry[key], want)
		}
	}
	if _, ok := entry["report_id"]; ok {
		t.Error("unset context field should not be logged")
	}
}

func TestLogger_Redaction(t *testing.T) {
	logger, buf := newTestLogger(t, Config{Level: "info", RedactPII: true})

	logger.With("api_key", "rk_live_0123456789").Info("contact ann@example.com",
		"note", "call 555-123-4567",
		"customer_name", "Ada Lovelace",
		"count", 3,
	)

	entry := decode(t, buf)
	if msg := entry["msg"]; msg != "contact ***@example.com" {
		t.Errorf("msg = %v", msg)
	}
	if entry["api_key"] != "rk_l***" {
		t.Errorf("api_key = %v", entry["api_key"])
	}
	if entry["note"] != "call ***-***-****" {
		t.Errorf("note = %v", entry["note"])
	}
	if entry["customer_name"] != "Ada ***" {
		t.Errorf("customer_name = %v", entry["customer_name"])
	}
	if entry["count"] != float64(3) {
		t.Errorf("non-string attrs should pass through, got %v", entry["count"])
	}
}

func TestLogger_NoRedaction(t *testing.T) {
	logger, buf := newTestLogger(t, Config{Level: "info", RedactPII: false})

	logger.Info("contact ann@example.com")
	if !strings.Contains(buf.String(), "ann@example.com") {
		t.Errorf("redaction disabled but output was changed: %q", buf.String())
	}
}

func TestLogger_TextFormat(t *testing.T) {
	logger, buf := newTestLogger(t, Config{Level: "info", Format: "text"})

	logger.Info("hello", "k", "v")
	if !strings.Contains(buf.String(), "msg=hello") || !strings.Contains(buf.String(), "k=v") {
		t.Errorf("unexpected text output: %q", buf.String())
	}
}

func TestFromConfig(t *testing.T) {
	cfg := FromConfig(config.LoggingConfig{
		Level:          "debug",
		Format:         "text",
		AddSource:      true,
		RedactPII:      true,
		RedactPatterns: []config.RedactPattern{{Name: "x", Pattern: "x", Replacement: "y"}},
	})

	if cfg.Level != "debug" || cfg.Format != "text" || !cfg.AddSource || !cfg.RedactPII || len(cfg.RedactPatterns) != 1 {
		t.Errorf("unexpected config: %+v", cfg)
	}
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"INFO", slog.LevelInfo},
		{"", slog.LevelInfo},
		{"warning", slog.LevelWarn},
		{"error", slog.LevelError},
	}
	for _, tt := range tests {
		got, err := ParseLevel(tt.in)
		if err != nil || got != tt.want {
			t.Errorf("ParseLevel(%q) = %v, %v; want %v", tt.in, got, err, tt.want)
		}
	}
}
