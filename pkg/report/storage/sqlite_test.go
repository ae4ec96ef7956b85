package storage

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"mercator-hq/reportkeeper/pkg/report"
)

// createTempDB creates a temporary SQLite database for testing. Tests use the
// pure Go driver so they run without cgo.
func createTempDB(t *testing.T) (*SQLiteStore, string) {
	t.Helper()

	dbPath := filepath.Join(t.TempDir(), "reports.db")

	config := &SQLiteConfig{
		Path:         dbPath,
		Driver:       DriverPureGo,
		MaxOpenConns: 4,
		MaxIdleConns: 2,
		WALMode:      true,
		BusyTimeout:  5 * time.Second,
	}

	store, err := NewSQLiteStore(config)
	if err != nil {
		t.Fatalf("Failed to create SQLite store: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	return store, dbPath
}

func TestSQLiteStore_Contract(t *testing.T) {
	runStoreContract(t, func(t *testing.T) report.Store {
		store, _ := createTempDB(t)
		return store
	})
}

func TestSQLiteStore_Initialize(t *testing.T) {
	_, dbPath := createTempDB(t)

	if _, err := os.Stat(dbPath); os.IsNotExist(err) {
		t.Error("Database file was not created")
	}
}

// TestSQLiteStore_Reopen verifies data and schema survive a reopen.
func TestSQLiteStore_Reopen(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "reports.db")
	config := &SQLiteConfig{Path: dbPath, Driver: DriverPureGo, WALMode: true}

	store, err := NewSQLiteStore(config)
	if err != nil {
		t.Fatalf("NewSQLiteStore() failed: %v", err)
	}
	mustCreate(t, store, newDeleted("r1", base))
	if err := store.Close(); err != nil {
		t.Fatalf("Close() failed: %v", err)
	}

	store, err = NewSQLiteStore(config)
	if err != nil {
		t.Fatalf("reopen failed: %v", err)
	}
	defer store.Close()

	got, err := store.Get(context.Background(), "r1")
	if err != nil {
		t.Fatalf("Get() after reopen failed: %v", err)
	}
	if !got.IsDeleted || !got.DeletedAt.Equal(base) {
		t.Errorf("deleted state not preserved: %+v", got)
	}
}

func TestNewSQLiteStore_InvalidConfig(t *testing.T) {
	tests := []struct {
		name   string
		config *SQLiteConfig
	}{
		{"empty path", &SQLiteConfig{Driver: DriverPureGo}},
		{"unknown driver", &SQLiteConfig{Path: filepath.Join(t.TempDir(), "x.db"), Driver: "postgres"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := NewSQLiteStore(tt.config); err == nil {
				t.Error("NewSQLiteStore() should fail")
			}
		})
	}
}

func TestBuildDSN(t *testing.T) {
	tests := []struct {
		driver string
		want   string
	}{
		{DriverCGO, "r.db?_busy_timeout=2000&_foreign_keys=on&_journal_mode=WAL"},
		{DriverPureGo, "r.db?_pragma=busy_timeout(2000)&_pragma=journal_mode(WAL)"},
	}

	for _, tt := range tests {
		t.Run(tt.driver, func(t *testing.T) {
			got, err := buildDSN(&SQLiteConfig{Path: "r.db", Driver: tt.driver, WALMode: true, BusyTimeout: 2 * time.Second})
			if err != nil {
				t.Fatalf("buildDSN() failed: %v", err)
			}
			if got != tt.want {
				t.Errorf("buildDSN() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestDialect_Rebind(t *testing.T) {
	q := "UPDATE reports SET stage = ? WHERE id = ? AND is_deleted = ?"

	if got := sqliteDialect.rebind(q); got != q {
		t.Errorf("sqlite rebind changed the query: %q", got)
	}
	want := "UPDATE reports SET stage = $1 WHERE id = $2 AND is_deleted = $3"
	if got := postgresDialect.rebind(q); got != want {
		t.Errorf("postgres rebind = %q, want %q", got, want)
	}
}

func TestDialect_SetClause(t *testing.T) {
	at := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	patch := report.Patch{MarkDeleted: &at, Content: map[string]any{"k": "v"}}

	tests := []struct {
		d        dialect
		want     string
		wantArgs int
	}{
		{sqliteDialect, "is_deleted = 1, deleted_at = ?, content = json_set(content, ?, json(?))", 3},
		{postgresDialect, "is_deleted = TRUE, deleted_at = ?, content = content || ?::jsonb", 2},
	}

	for _, tt := range tests {
		got, args, err := tt.d.setClause(patch)
		if err != nil {
			t.Fatalf("%s: %v", tt.d.name, err)
		}
		if got != tt.want {
			t.Errorf("%s: set clause = %q, want %q", tt.d.name, got, tt.want)
		}
		if len(args) != tt.wantArgs {
			t.Errorf("%s: got %d args, want %d", tt.d.name, len(args), tt.wantArgs)
		}
	}
}

func TestSQLiteMergeContent(t *testing.T) {
	expr, args, err := sqliteMergeContent(map[string]any{"b": nil, "a": map[string]any{"x": 1}})
	if err != nil {
		t.Fatal(err)
	}
	if expr != "json_set(content, ?, json(?), ?, json(?))" {
		t.Errorf("expr = %q", expr)
	}
	want := []any{`$."a"`, `{"x":1}`, `$."b"`, "null"}
	if fmt.Sprint(args) != fmt.Sprint(want) {
		t.Errorf("args = %v, want %v", args, want)
	}

	large := make(map[string]any, jsonSetPairs+1)
	for i := range jsonSetPairs + 1 {
		large[fmt.Sprintf("k%03d", i)] = i
	}
	expr, args, err = sqliteMergeContent(large)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(expr, "json_set(json_set(content, ") || len(args) != 2*(jsonSetPairs+1) {
		t.Errorf("large patch: expr prefix %q, %d args", expr[:min(len(expr), 30)], len(args))
	}

	if _, _, err := sqliteMergeContent(map[string]any{`say "hi"`: 1}); err == nil {
		t.Error("expected error for a key containing a double quote")
	}
}
