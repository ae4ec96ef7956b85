package cli

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"mercator-hq/reportkeeper/pkg/report"
	"mercator-hq/reportkeeper/pkg/report/reclamation"
)

func sampleReports() ReportTable {
	edited := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	deleted := edited.Add(time.Hour)
	return ReportTable{
		{ID: "r1", OwnerID: "alice", BranchID: "b1", Stage: report.StageOnSite, LastEdited: edited},
		{ID: "r2", OwnerID: "bob", BranchID: "b1", Stage: report.StageOffice, LastEdited: edited,
			IsDeleted: true, DeletedAt: &deleted, ExpirationReason: report.ReasonStaleDraft},
	}
}

func TestTextFormatter(t *testing.T) {
	buf := &bytes.Buffer{}
	if err := (&TextFormatter{}).FormatTo(buf, "test message"); err != nil {
		t.Fatalf("FormatTo() error = %v", err)
	}
	if buf.String() != "test message\n" {
		t.Errorf("FormatTo() = %q", buf.String())
	}
}

func TestTextFormatter_Table(t *testing.T) {
	buf := &bytes.Buffer{}
	if err := (&TextFormatter{}).FormatTo(buf, sampleReports()); err != nil {
		t.Fatalf("FormatTo() error = %v", err)
	}

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 3 {
		t.Fatalf("got %d lines, want header + 2 rows:\n%s", len(lines), buf.String())
	}
	if !strings.HasPrefix(lines[0], "ID") {
		t.Errorf("header = %q", lines[0])
	}
	if !strings.Contains(lines[1], "-") {
		t.Errorf("live report should show '-' for deleted at: %q", lines[1])
	}
	if !strings.Contains(lines[2], "stale-draft") || !strings.Contains(lines[2], "2025-06-01T13:00:00Z") {
		t.Errorf("deleted row = %q", lines[2])
	}
}

func TestJSONFormatter_Table(t *testing.T) {
	buf := &bytes.Buffer{}
	if err := (&JSONFormatter{Indent: true}).FormatTo(buf, sampleReports()); err != nil {
		t.Fatalf("FormatTo() error = %v", err)
	}

	var got []report.Report
	if err := json.Unmarshal(buf.Bytes(), &got); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if len(got) != 2 || got[1].ExpirationReason != report.ReasonStaleDraft {
		t.Errorf("decoded = %+v", got)
	}
}

func TestCSVFormatter(t *testing.T) {
	buf := &bytes.Buffer{}
	if err := (&CSVFormatter{}).FormatTo(buf, sampleReports()); err != nil {
		t.Fatalf("FormatTo() error = %v", err)
	}

	records, err := csv.NewReader(buf).ReadAll()
	if err != nil {
		t.Fatal(err)
	}
	if len(records) != 3 || records[2][0] != "r2" {
		t.Errorf("records = %v", records)
	}

	if err := (&CSVFormatter{}).FormatTo(&bytes.Buffer{}, "plain"); err == nil {
		t.Error("CSV of a non-table value should fail")
	}
}

func TestSummaryTable(t *testing.T) {
	s := &reclamation.Summary{RunID: "run-1", Trigger: reclamation.TriggerCLI, SoftDeleted: 2, Error: "store down"}

	buf := &bytes.Buffer{}
	if err := (&TextFormatter{}).FormatTo(buf, SummaryTable{s}); err != nil {
		t.Fatal(err)
	}
	out := buf.String()
	for _, want := range []string{"run-1", "soft_deleted", "store down"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}

	buf.Reset()
	if err := (&JSONFormatter{}).FormatTo(buf, SummaryTable{s}); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(buf.String(), `"softDeleted":2`) {
		t.Errorf("json = %s", buf.String())
	}
}

func TestNewFormatter(t *testing.T) {
	for _, format := range []OutputFormat{FormatText, FormatJSON, FormatCSV, ""} {
		if _, err := NewFormatter(format); err != nil {
			t.Errorf("NewFormatter(%q) error = %v", format, err)
		}
	}
	if _, err := NewFormatter("junit"); err == nil {
		t.Error("NewFormatter(junit) should fail")
	}
}
