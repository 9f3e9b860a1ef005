package core

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"
)

// Tokenizer splits a CSV stream into a header and a lazy sequence of rows.
// Quoted fields may contain commas, doubled quotes and line breaks. The
// header's field count fixes the expected width of every data row; a row
// with a different width is yielded with ErrColumnCountMismatch instead of
// stopping the run. Rows whose fields are all blank are skipped and do not
// consume an index.
//
// Only one row is held at a time. A Tokenizer is single-pass and not safe
// for concurrent use.
type Tokenizer struct {
	reader *csv.Reader
	header []string
	row    RawRow
	index  int
	err    error
}

// Tokenize reads the header row from r and returns a Tokenizer positioned
// before the first data row. It fails with *InvalidFileError when r is
// empty, unreadable, or its header cannot be parsed.
func Tokenize(r io.Reader) (*Tokenizer, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1 // width is checked against the header per row

	for {
		rec, err := cr.Read()
		if err == io.EOF {
			return nil, &InvalidFileError{Reason: "file is empty or has no header row"}
		}
		if err != nil {
			var pe *csv.ParseError
			if errors.As(err, &pe) {
				return nil, &InvalidFileError{Reason: "malformed header row", Err: pe.Err}
			}
			return nil, readFailure(err)
		}
		if isEmptyRow(rec) {
			continue
		}
		header := make([]string, len(rec))
		for i, h := range rec {
			header[i] = strings.TrimSpace(h)
		}
		return &Tokenizer{reader: cr, header: header}, nil
	}
}

// Header returns the trimmed header fields.
func (t *Tokenizer) Header() []string {
	return t.header
}

// Next advances to the next data row. It returns false at end of input or
// on a fatal read error; check Err afterwards.
func (t *Tokenizer) Next() bool {
	if t.err != nil {
		return false
	}

	for {
		rec, err := t.reader.Read()
		if err == io.EOF {
			return false
		}
		if err != nil {
			var pe *csv.ParseError
			if !errors.As(err, &pe) {
				t.err = readFailure(err)
				return false
			}
			t.index++
			t.row = RawRow{
				Index: t.index,
				Line:  pe.StartLine,
				Err:   fmt.Errorf("malformed row: %w", pe.Err),
			}
			return true
		}

		if isEmptyRow(rec) {
			continue
		}

		line, _ := t.reader.FieldPos(0)
		t.index++
		t.row = RawRow{Index: t.index, Line: line, Fields: rec}
		if len(rec) != len(t.header) {
			t.row.Err = ErrColumnCountMismatch
		}
		return true
	}
}

// Row returns the row produced by the last successful call to Next.
func (t *Tokenizer) Row() RawRow {
	return t.row
}

// Err returns the fatal error that stopped iteration, if any.
func (t *Tokenizer) Err() error {
	return t.err
}

func readFailure(err error) error {
	if errors.Is(err, errFileTooLarge) {
		return &InvalidFileError{Reason: "file too large", Err: err}
	}
	return &InvalidFileError{Reason: "unreadable file", Err: err}
}

// isEmptyRow returns true if all fields are empty or whitespace.
func isEmptyRow(row []string) bool {
	for _, cell := range row {
		if strings.TrimSpace(cell) != "" {
			return false
		}
	}
	return true
}
