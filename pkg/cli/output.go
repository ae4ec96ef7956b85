package cli

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"mercator-hq/reportkeeper/pkg/report"
	"mercator-hq/reportkeeper/pkg/report/reclamation"
)

// OutputFormat represents the output format for command results.
type OutputFormat string

const (
	// FormatText is an aligned text table (default).
	FormatText OutputFormat = "text"
	// FormatJSON is JSON output.
	FormatJSON OutputFormat = "json"
	// FormatCSV is CSV output.
	FormatCSV OutputFormat = "csv"
)

// Formatter formats command output.
type Formatter interface {
	FormatTo(w io.Writer, data any) error
}

// Table is tabular command output.
type Table interface {
	Header() []string
	Rows() [][]string
}

// TextFormatter formats output as plain text.
type TextFormatter struct{}

// FormatTo writes data to w, as an aligned table when data is a Table.
func (f *TextFormatter) FormatTo(w io.Writer, data any) error {
	table, ok := data.(Table)
	if !ok {
		_, err := fmt.Fprintf(w, "%v\n", data)
		return err
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, strings.Join(table.Header(), "\t"))
	for _, row := range table.Rows() {
		fmt.Fprintln(tw, strings.Join(row, "\t"))
	}
	return tw.Flush()
}

// JSONFormatter formats output as JSON. Tables are written as their
// underlying value.
type JSONFormatter struct {
	Indent bool
}

// FormatTo writes data to writer in JSON format.
func (f *JSONFormatter) FormatTo(w io.Writer, data any) error {
	if v, ok := data.(interface{ Value() any }); ok {
		data = v.Value()
	}
	encoder := json.NewEncoder(w)
	if f.Indent {
		encoder.SetIndent("", "  ")
	}
	return encoder.Encode(data)
}

// CSVFormatter formats Tables as CSV.
type CSVFormatter struct{}

// FormatTo writes data to writer in CSV format.
func (f *CSVFormatter) FormatTo(w io.Writer, data any) error {
	table, ok := data.(Table)
	if !ok {
		return fmt.Errorf("CSV output is not supported for %T", data)
	}

	csvWriter := csv.NewWriter(w)
	if err := csvWriter.Write(table.Header()); err != nil {
		return err
	}
	if err := csvWriter.WriteAll(table.Rows()); err != nil {
		return err
	}
	return csvWriter.Error()
}

// NewFormatter creates a new formatter for the specified format.
func NewFormatter(format OutputFormat) (Formatter, error) {
	switch format {
	case FormatText, "":
		return &TextFormatter{}, nil
	case FormatJSON:
		return &JSONFormatter{Indent: true}, nil
	case FormatCSV:
		return &CSVFormatter{}, nil
	default:
		return nil, fmt.Errorf("unknown output format %q (expected text, json or csv)", format)
	}
}

// ReportTable renders reports one per row.
type ReportTable []*report.Report

// Header implements Table.
func (t ReportTable) Header() []string {
	return []string{"ID", "OWNER", "BRANCH", "STAGE", "LAST EDITED", "DELETED AT", "REASON"}
}

// Rows implements Table.
func (t ReportTable) Rows() [][]string {
	rows := make([][]string, 0, len(t))
	for _, r := range t {
		rows = append(rows, []string{
			r.ID,
			r.OwnerID,
			r.BranchID,
			string(r.Stage),
			formatTime(&r.LastEdited),
			formatTime(r.DeletedAt),
			string(r.ExpirationReason),
		})
	}
	return rows
}

// Value returns the reports for JSON output.
func (t ReportTable) Value() any { return []*report.Report(t) }

// SummaryTable renders a reclamation summary as field/value rows.
type SummaryTable struct {
	*reclamation.Summary
}

// Header implements Table.
func (t SummaryTable) Header() []string {
	return []string{"FIELD", "VALUE"}
}

// Rows implements Table.
func (t SummaryTable) Rows() [][]string {
	s := t.Summary
	rows := [][]string{
		{"run_id", s.RunID},
		{"trigger", string(s.Trigger)},
		{"started_at", formatTime(&s.StartedAt)},
		{"soft_deleted", fmt.Sprint(s.SoftDeleted)},
		{"hard_deleted", fmt.Sprint(s.HardDeleted)},
		{"examined", fmt.Sprint(s.Examined)},
		{"skipped", fmt.Sprint(s.Skipped)},
		{"errors", fmt.Sprint(s.Errors)},
		{"batches", fmt.Sprint(s.Batches)},
		{"cap_reached", fmt.Sprint(s.CapReached)},
		{"elapsed_ms", fmt.Sprint(s.ElapsedMs)},
	}
	if len(s.FailedIDs) > 0 {
		rows = append(rows, []string{"failed_ids", strings.Join(s.FailedIDs, " ")})
	}
	if s.Error != "" {
		rows = append(rows, []string{"error", s.Error})
	}
	return rows
}

// Value returns the summary for JSON output.
func (t SummaryTable) Value() any { return t.Summary }

func formatTime(t *time.Time) string {
	if t == nil || t.IsZero() {
		return "-"
	}
	return t.UTC().Format(time.RFC3339)
}
