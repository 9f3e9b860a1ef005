package core

// validation.go turns tokenized rows into accepted records or field errors.
//
// Columns are located by header name, so files with reordered or extra
// columns validate the same way as the template. Every column of a row is
// checked before the row is classified; a caller sees all problems with a
// row in one pass. Validation is pure and safe to run on many goroutines.

import (
	"strings"
)

// RowValidator validates rows of one file against an import schema.
type RowValidator struct {
	schema    *ImportSchema
	headerIdx HeaderIndex
}

// NewRowValidator creates a validator for the given schema and file header.
func NewRowValidator(schema *ImportSchema, header []string) *RowValidator {
	return &RowValidator{
		schema:    schema,
		headerIdx: MakeHeaderIndex(header),
	}
}

// MissingColumns returns required schema columns absent from the header.
func (v *RowValidator) MissingColumns() []string {
	var missing []string
	for _, col := range v.schema.Columns {
		if _, ok := v.headerIdx[strings.ToLower(col.Name)]; !ok && col.Required {
			missing = append(missing, col.Name)
		}
	}
	return missing
}

// Validate classifies a single row. The result carries either a Record or
// one or more FieldErrors, never both.
func (v *RowValidator) Validate(raw RawRow) ValidatedRow {
	out := ValidatedRow{Index: raw.Index, Line: raw.Line}

	if raw.Err != nil {
		out.Fields = raw.Fields
		out.FieldErrors = []FieldError{{Message: raw.Err.Error()}}
		return out
	}

	rec := make(Record, len(v.schema.Columns))
	var errs []FieldError

	for _, col := range v.schema.Columns {
		value := ""
		if pos, ok := v.headerIdx[strings.ToLower(col.Name)]; ok && pos < len(raw.Fields) {
			value = CleanCell(raw.Fields[pos])
		}

		if value == "" {
			if col.Required {
				errs = append(errs, FieldError{Column: col.Name, Message: col.Name + " is required"})
				continue
			}
			rec[col.Name] = col.Default
			continue
		}

		if col.Validate != nil {
			normalized, err := col.Validate(value)
			if err != nil {
				errs = append(errs, FieldError{Column: col.Name, Message: err.Error()})
				continue
			}
			value = normalized
		}
		rec[col.Name] = value
	}

	for _, rule := range v.schema.Rules {
		errs = append(errs, rule(rec)...)
	}

	if len(errs) > 0 {
		out.Fields = raw.Fields
		out.FieldErrors = errs
		return out
	}

	out.Record = rec
	return out
}

// MakeHeaderIndex maps lowercased, trimmed header names to their position.
// The first occurrence of a duplicated name wins.
func MakeHeaderIndex(header []string) HeaderIndex {
	idx := make(HeaderIndex, len(header))
	for i, h := range header {
		key := strings.ToLower(strings.TrimSpace(h))
		if _, dup := idx[key]; !dup {
			idx[key] = i
		}
	}
	return idx
}

// CleanCell trims surrounding whitespace and stray NUL bytes from a value.
func CleanCell(s string) string {
	return strings.TrimSpace(strings.ReplaceAll(s, "\x00", ""))
}
