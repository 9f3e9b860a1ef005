package core

import (
	"errors"
	"fmt"
)

var (
	// ErrUnknownImportKind is returned when no schema is registered for a kind.
	ErrUnknownImportKind = errors.New("unknown import kind")

	// ErrInvalidDateRange is wrapped by InvalidDateRangeError.
	ErrInvalidDateRange = errors.New("invalid date range")

	// ErrColumnCountMismatch marks a data row whose field count differs from the header.
	ErrColumnCountMismatch = errors.New("column count mismatch")

	// ErrTooManyImports is returned when the concurrent import limit is reached.
	ErrTooManyImports = errors.New("too many concurrent imports, please try again later")

	// ErrImportNotFound is returned for unknown or expired import ids.
	ErrImportNotFound = errors.New("import not found")

	// ErrImportNotFinished is returned when a result is required but the run is still going.
	ErrImportNotFinished = errors.New("import still in progress")

	// ErrImportIncomplete is returned when submitting records from a cancelled run.
	ErrImportIncomplete = errors.New("import was cancelled before completion")

	// ErrAlreadySubmitted is returned when a run's records were already submitted.
	ErrAlreadySubmitted = errors.New("import was already submitted")
)

// InvalidFileError reports a file that cannot be imported at all: wrong type,
// unreadable, too large, or missing its header row. No partial result exists.
type InvalidFileError struct {
	Reason string
	Err    error
}

func (e *InvalidFileError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("invalid file: %s: %v", e.Reason, e.Err)
	}
	return "invalid file: " + e.Reason
}

func (e *InvalidFileError) Unwrap() error {
	return e.Err
}

// InvalidDateRangeError reports an export request whose range is malformed
// or whose start date is after its end date.
type InvalidDateRangeError struct {
	StartDate string
	EndDate   string
	Reason    string
}

func (e *InvalidDateRangeError) Error() string {
	return fmt.Sprintf("invalid date range %q to %q: %s", e.StartDate, e.EndDate, e.Reason)
}

func (e *InvalidDateRangeError) Unwrap() error {
	return ErrInvalidDateRange
}

// IsFatal reports whether err aborts a whole import rather than a single row.
func IsFatal(err error) bool {
	var fileErr *InvalidFileError
	return errors.As(err, &fileErr) || errors.Is(err, ErrUnknownImportKind)
}
