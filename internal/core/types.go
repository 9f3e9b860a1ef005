// Package core provides the CSV import/export pipeline for attendees and meetings.
// This package has no HTTP or storage dependencies and can be used by any frontend.
package core

import (
	"strings"
	"time"
)

// Kind identifies the category of entity a CSV file populates.
type Kind string

const (
	KindAttendees Kind = "attendees"
	KindMeetings  Kind = "meetings"
)

// ParseKind converts a caller-supplied string into a Kind.
// Returns ErrUnknownImportKind if no schema is registered for it.
func ParseKind(s string) (Kind, error) {
	k := Kind(strings.ToLower(strings.TrimSpace(s)))
	if _, err := GetSchema(k); err != nil {
		return "", err
	}
	return k, nil
}

// ValidateFunc checks one trimmed, non-empty cell value. It returns the
// normalized value, or an error whose text is shown to the user as-is.
type ValidateFunc func(raw string) (string, error)

// ColumnSpec defines validation rules for a single CSV column.
type ColumnSpec struct {
	Name     string       // Column header name (matched case-insensitively)
	Required bool         // Blank values are rejected with "<name> is required"
	Default  string       // Used when the value is blank and the column is optional
	Validate ValidateFunc // Optional; nil accepts any value
	Example  []string     // Example values for templates, one per example row
}

// RowRule checks relationships between columns. It runs on every row after
// the column checks; rec holds only the columns that passed, so a rule
// skips itself when an input it needs is absent.
type RowRule func(rec Record) []FieldError

// ImportSchema declares the expected columns for one import kind.
// Schemas are immutable once registered.
type ImportSchema struct {
	Kind    Kind
	Label   string
	Columns []ColumnSpec
	Rules   []RowRule
}

// ColumnNames returns the header names in declared order.
func (s *ImportSchema) ColumnNames() []string {
	names := make([]string, len(s.Columns))
	for i, c := range s.Columns {
		names[i] = c.Name
	}
	return names
}

// HeaderIndex maps column names (lowercase) to their position in the CSV row.
type HeaderIndex map[string]int

// Record is a normalized row keyed by schema column name.
type Record map[string]string

// Values returns the record's values in the given column order.
// Missing columns render as empty strings.
func (r Record) Values(columns []string) []string {
	out := make([]string, len(columns))
	for i, c := range columns {
		out[i] = r[c]
	}
	return out
}

// RawRow is one tokenized data row.
type RawRow struct {
	Index  int      // 1-based position among counted data rows
	Line   int      // Source line where the record starts
	Fields []string // Fields as read, untrimmed
	Err    error    // Non-nil when the row could not be tokenized cleanly
}

// FieldError describes one problem with one column of a row.
// Column is empty for row-level problems such as a column count mismatch.
type FieldError struct {
	Column  string `json:"column,omitempty"`
	Message string `json:"message"`
}

func (e FieldError) Error() string {
	if e.Column != "" {
		return e.Column + ": " + e.Message
	}
	return e.Message
}

// ValidatedRow is the outcome of validating one RawRow. A row is accepted
// exactly when FieldErrors is empty.
type ValidatedRow struct {
	Index       int          `json:"row"`
	Line        int          `json:"line"`
	Record      Record       `json:"record,omitempty"`
	Fields      []string     `json:"data,omitempty"`
	FieldErrors []FieldError `json:"errors,omitempty"`
}

// Accepted reports whether the row passed validation.
func (v ValidatedRow) Accepted() bool {
	return len(v.FieldErrors) == 0
}

// Reason joins the row's field errors for single-line display.
func (v ValidatedRow) Reason() string {
	parts := make([]string, len(v.FieldErrors))
	for i, fe := range v.FieldErrors {
		parts[i] = fe.Error()
	}
	return strings.Join(parts, "; ")
}

// ImportResult is the aggregate outcome of one import run.
type ImportResult struct {
	Kind       Kind           `json:"kind"`
	FileName   string         `json:"fileName,omitempty"`
	Header     []string       `json:"header"`
	Success    int            `json:"success"`
	Errors     int            `json:"errors"`
	Total      int            `json:"total"`
	Incomplete bool           `json:"incomplete"`
	Rejected   []ValidatedRow `json:"rejected"`
	Accepted   []Record       `json:"-"`
	Duration   time.Duration  `json:"duration"`

	// MissingColumns lists required columns absent from the header.
	MissingColumns []string `json:"missingColumns,omitempty"`
}

// ImportPhase indicates the current stage of an import session.
type ImportPhase string

const (
	PhaseStarting   ImportPhase = "starting"
	PhaseValidating ImportPhase = "validating"
	PhaseComplete   ImportPhase = "complete"
	PhaseFailed     ImportPhase = "failed"
	PhaseCancelled  ImportPhase = "cancelled"
)

// Terminal reports whether no further progress will follow this phase.
func (p ImportPhase) Terminal() bool {
	return p == PhaseComplete || p == PhaseFailed || p == PhaseCancelled
}

// ImportProgress represents the current state of an import session.
type ImportProgress struct {
	ImportID string      `json:"importId"`
	Kind     Kind        `json:"kind"`
	FileName string      `json:"fileName"`
	Phase    ImportPhase `json:"phase"`
	Fraction float64     `json:"fraction"`
	Error    string      `json:"error,omitempty"` // Non-empty if Phase is PhaseFailed
}

// Percent returns the progress as a percentage (0-100).
func (p ImportProgress) Percent() int {
	if p.Phase == PhaseComplete {
		return 100
	}
	pct := int(p.Fraction * 100)
	if pct > 100 {
		return 100
	}
	if pct < 0 {
		return 0
	}
	return pct
}

// ExportFormat selects the rendering of an export.
type ExportFormat string

const (
	FormatCSV   ExportFormat = "csv"
	FormatExcel ExportFormat = "excel"
	FormatPDF   ExportFormat = "pdf"
)

// Extension returns the file extension for the format, without the dot.
func (f ExportFormat) Extension() string {
	switch f {
	case FormatExcel:
		return "xlsx"
	case FormatPDF:
		return "pdf"
	default:
		return "csv"
	}
}

// ContentType returns the MIME type served with the format.
func (f ExportFormat) ContentType() string {
	switch f {
	case FormatExcel:
		return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	case FormatPDF:
		return "application/pdf"
	default:
		return "text/csv"
	}
}

// ParseExportFormat accepts csv, excel (or xlsx) and pdf. Blank means csv.
func ParseExportFormat(s string) (ExportFormat, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "csv":
		return FormatCSV, true
	case "excel", "xlsx":
		return FormatExcel, true
	case "pdf":
		return FormatPDF, true
	}
	return "", false
}

// ExportRequest selects the records to export and their rendering.
// Dates are YYYY-MM-DD.
type ExportRequest struct {
	StartDate string
	EndDate   string
	Format    ExportFormat
}

// ExportFile is rendered export content ready for download.
type ExportFile struct {
	Filename    string
	ContentType string
	Content     string
	Records     int
}
