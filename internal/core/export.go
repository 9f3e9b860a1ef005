package core

// export.go renders fetched schedule records for download.
//
// All three formats are delimited text. The excel variant is the CSV body
// under an .xlsx name and the pdf variant is a titled, pipe-separated
// listing; neither is a binary document.

import (
	"context"
	"encoding/csv"
	"fmt"
	"strings"
	"time"
)

// ExportKind is the schema whose column order exports follow.
const ExportKind = KindMeetings

// RecordFetcher retrieves the records an export covers.
type RecordFetcher interface {
	FetchRecords(ctx context.Context, startDate, endDate string) ([]Record, error)
}

// ValidateExportRequest checks the date range and format of req.
// Failures wrap ErrInvalidDateRange.
func ValidateExportRequest(req ExportRequest) error {
	start, err := time.Parse(DateLayout, req.StartDate)
	if err != nil {
		return &InvalidDateRangeError{StartDate: req.StartDate, EndDate: req.EndDate, Reason: "start date must be YYYY-MM-DD"}
	}
	end, err := time.Parse(DateLayout, req.EndDate)
	if err != nil {
		return &InvalidDateRangeError{StartDate: req.StartDate, EndDate: req.EndDate, Reason: "end date must be YYYY-MM-DD"}
	}
	if start.After(end) {
		return &InvalidDateRangeError{StartDate: req.StartDate, EndDate: req.EndDate, Reason: "start date is after end date"}
	}
	return nil
}

// ExportFilename returns schedules_export_<start>_to_<end>.<ext>.
func ExportFilename(req ExportRequest) string {
	return fmt.Sprintf("schedules_export_%s_to_%s.%s", req.StartDate, req.EndDate, req.Format.Extension())
}

// ExportRecords renders records in the export schema's column order.
func ExportRecords(req ExportRequest, records []Record) (*ExportFile, error) {
	if err := ValidateExportRequest(req); err != nil {
		return nil, err
	}
	if req.Format == "" {
		req.Format = FormatCSV
	}

	schema, err := GetSchema(ExportKind)
	if err != nil {
		return nil, err
	}
	columns := schema.ColumnNames()

	var content string
	switch req.Format {
	case FormatPDF:
		content = renderPipeListing(columns, records)
	case FormatCSV, FormatExcel:
		content, err = renderCSV(columns, records)
		if err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("unsupported export format %q", req.Format)
	}

	return &ExportFile{
		Filename:    ExportFilename(req),
		ContentType: req.Format.ContentType(),
		Content:     content,
		Records:     len(records),
	}, nil
}

func renderCSV(columns []string, records []Record) (string, error) {
	var b strings.Builder
	w := csv.NewWriter(&b)
	w.Write(columns)
	for _, rec := range records {
		w.Write(rec.Values(columns))
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return "", fmt.Errorf("render export: %w", err)
	}
	return b.String(), nil
}

func renderPipeListing(columns []string, records []Record) string {
	var b strings.Builder
	b.WriteString("PDF Export\n\n")
	b.WriteString(strings.Join(columns, " | "))
	b.WriteByte('\n')
	for _, rec := range records {
		b.WriteString(strings.Join(rec.Values(columns), " | "))
		b.WriteByte('\n')
	}
	return b.String()
}

// Exporter validates export requests and renders fetched records.
type Exporter struct {
	fetcher RecordFetcher
}

// NewExporter creates an Exporter reading from fetcher.
func NewExporter(fetcher RecordFetcher) *Exporter {
	return &Exporter{fetcher: fetcher}
}

// Export validates req, fetches its records, and renders them. An invalid
// range fails before the fetcher is called.
func (e *Exporter) Export(ctx context.Context, req ExportRequest) (*ExportFile, error) {
	if err := ValidateExportRequest(req); err != nil {
		return nil, err
	}

	records, err := e.fetcher.FetchRecords(ctx, req.StartDate, req.EndDate)
	if err != nil {
		return nil, fmt.Errorf("fetch records: %w", err)
	}
	return ExportRecords(req, records)
}
