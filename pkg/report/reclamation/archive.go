package reclamation

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"mercator-hq/reportkeeper/pkg/report"
)

// ArchiveEntry is one line of an archive file.
type ArchiveEntry struct {
	RunID      string                  `json:"run_id"`
	ArchivedAt time.Time               `json:"archived_at"`
	Reason     report.ExpirationReason `json:"reason"`
	Report     *report.Report          `json:"report"`
}

// ArchiveSink stores reports ahead of hard deletion. Write returns where
// the entries went (a file path or object key). A report is only
// hard-deleted after Write succeeded for it.
type ArchiveSink interface {
	Write(ctx context.Context, entries []ArchiveEntry, now time.Time) (string, error)
}

// Archiver appends reports to daily JSON-lines files before they are
// hard-deleted.
type Archiver struct {
	dir string
	mu  sync.Mutex
}

// NewArchiver creates an archiver writing under dir.
func NewArchiver(dir string) *Archiver {
	return &Archiver{dir: dir}
}

// Path returns the archive file for day.
func (a *Archiver) Path(day time.Time) string {
	return filepath.Join(a.dir, fmt.Sprintf("reports-%s.jsonl", day.UTC().Format("2006-01-02")))
}

// Write appends entries to the archive file for now. The file is synced
// before returning so a crash after a hard delete cannot lose the copy.
func (a *Archiver) Write(ctx context.Context, entries []ArchiveEntry, now time.Time) (string, error) {
	if len(entries) == 0 {
		return "", nil
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	if err := os.MkdirAll(a.dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create archive directory: %w", err)
	}

	path := a.Path(now)
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o600)
	if err != nil {
		return "", fmt.Errorf("failed to open archive file: %w", err)
	}
	defer f.Close()

	enc := json.NewEncoder(f)
	for _, e := range entries {
		if err := enc.Encode(e); err != nil {
			return "", fmt.Errorf("failed to write archive entry for report %s: %w", e.Report.ID, err)
		}
	}

	if err := f.Sync(); err != nil {
		return "", fmt.Errorf("failed to sync archive file: %w", err)
	}
	return path, nil
}
