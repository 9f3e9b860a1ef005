package core

// error_messages.go maps technical errors to user-facing messages with codes
// that users can quote to support staff.
//
// # Error Codes Reference
//
// File errors (FILE001-FILE099), fatal to the whole import:
//
//	FILE001 - File too large
//	FILE002 - Malformed header row
//	FILE003 - Not a CSV file
//	FILE004 - No file provided
//	FILE005 - Empty file or missing header row
//	FILE006 - File could not be read
//
// Import errors (IMP001-IMP099):
//
//	IMP001 - Unknown import kind
//	IMP002 - Too many imports in progress
//	IMP003 - Import session not found or expired
//	IMP004 - Import still in progress
//	IMP005 - Import was cancelled before completion
//	IMP006 - Request cancelled
//	IMP007 - Request timed out
//	IMP008 - Records already submitted
//
// Export errors (EXP001-EXP099):
//
//	EXP001 - Invalid date range
//	EXP002 - Unsupported export format
//
// Row errors (VAL001-VAL099), reported per rejected row and never fatal:
//
//	VAL001 - Column count mismatch
//	VAL002 - Required value missing
//	VAL003 - Invalid date
//	VAL004 - Invalid time
//	VAL005 - Invalid email
//	VAL006 - Invalid status
//	VAL007 - Malformed row (quoting)
//
// Remote API errors (API001-API099):
//
//	API001 - Admin API unreachable
//	API002 - Admin API rejected the request
//
// RATE001 is returned for throttled requests and ERR000 when nothing matches.
//
// Sentinel and typed errors are matched first with errors.Is/As. Everything
// else falls back to case-insensitive substring patterns, first match wins.

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// UserMessage provides user-friendly error information with actionable guidance.
type UserMessage struct {
	Message string // What happened (user-friendly)
	Action  string // What to do about it
	Code    string // Error code for support reference
}

var (
	msgFileTooLarge = UserMessage{
		Message: "File exceeds the maximum size limit",
		Action:  "Split the file into smaller files",
		Code:    "FILE001",
	}
	msgMalformedHeader = UserMessage{
		Message: "The header row could not be parsed",
		Action:  "Download the template and compare the first line of your file",
		Code:    "FILE002",
	}
	msgNotCSV = UserMessage{
		Message: "The selected file is not a CSV file",
		Action:  "Save the file as CSV (comma-separated) and upload it again",
		Code:    "FILE003",
	}
	msgEmptyFile = UserMessage{
		Message: "The uploaded file is empty",
		Action:  "Upload a CSV file with a header row",
		Code:    "FILE005",
	}
	msgUnreadable = UserMessage{
		Message: "The file could not be read",
		Action:  "Check the file is not corrupted and try again",
		Code:    "FILE006",
	}
	msgUnknownKind = UserMessage{
		Message: "This import type is not supported",
		Action:  "Choose attendees or meetings",
		Code:    "IMP001",
	}
	msgTooManyImports = UserMessage{
		Message: "Too many imports in progress",
		Action:  "Please wait a moment and try again",
		Code:    "IMP002",
	}
	msgImportNotFound = UserMessage{
		Message: "Import session not found",
		Action:  "The import may have expired. Please start a new import",
		Code:    "IMP003",
	}
	msgImportRunning = UserMessage{
		Message: "The import is still running",
		Action:  "Wait for the import to finish",
		Code:    "IMP004",
	}
	msgImportIncomplete = UserMessage{
		Message: "The import was cancelled before it finished",
		Action:  "Run the import again to completion before submitting",
		Code:    "IMP005",
	}
	msgCancelled = UserMessage{
		Message: "Request was cancelled",
		Action:  "Please try again",
		Code:    "IMP006",
	}
	msgTimeout = UserMessage{
		Message: "Request timed out",
		Action:  "Try a smaller file or check your connection",
		Code:    "IMP007",
	}
	msgAlreadySubmitted = UserMessage{
		Message: "These records were already submitted",
		Action:  "Start a new import to submit the file again",
		Code:    "IMP008",
	}
	msgDateRange = UserMessage{
		Message: "The export date range is invalid",
		Action:  "Use YYYY-MM-DD dates with the start on or before the end",
		Code:    "EXP001",
	}
)

// errorPattern defines a pattern to match and its corresponding user message.
type errorPattern struct {
	pattern string
	msg     UserMessage
}

// errorPatterns maps technical error text (case-insensitive) to user messages.
// The first matching pattern wins, so specific patterns come first.
var errorPatterns = []errorPattern{
	{"file too large", msgFileTooLarge},
	{"no file provided", UserMessage{
		Message: "No file was selected",
		Action:  "Please select a CSV file to upload",
		Code:    "FILE004",
	}},
	{"unsupported export format", UserMessage{
		Message: "The export format is not supported",
		Action:  "Choose csv, excel or pdf",
		Code:    "EXP002",
	}},
	{"column count mismatch", UserMessage{
		Message: "The row has a different number of columns than the header",
		Action:  "Check for missing or extra commas in the row",
		Code:    "VAL001",
	}},
	{"is required", UserMessage{
		Message: "A required value is empty",
		Action:  "Fill in every required column",
		Code:    "VAL002",
	}},
	{"invalid date", UserMessage{
		Message: "Invalid date format detected",
		Action:  "Use YYYY-MM-DD",
		Code:    "VAL003",
	}},
	{"invalid time", UserMessage{
		Message: "Invalid time format detected",
		Action:  "Use 24-hour HH:MM",
		Code:    "VAL004",
	}},
	{"invalid email", UserMessage{
		Message: "Invalid email address",
		Action:  "Check the email column for typos",
		Code:    "VAL005",
	}},
	{"status must be one of", UserMessage{
		Message: "Invalid meeting status",
		Action:  "Use scheduled, in-progress, completed or cancelled",
		Code:    "VAL006",
	}},
	{"malformed row", UserMessage{
		Message: "The row has unbalanced quotes",
		Action:  "Wrap fields containing commas in double quotes and double any inner quotes",
		Code:    "VAL007",
	}},
	{"connection refused", UserMessage{
		Message: "Unable to reach the admin API",
		Action:  "Please try again in a few moments",
		Code:    "API001",
	}},
	{"admin api", UserMessage{
		Message: "The admin API rejected the request",
		Action:  "Review the rejected records and try again",
		Code:    "API002",
	}},
	{"rate limit", UserMessage{
		Message: "Too many requests",
		Action:  "Please wait a moment before trying again",
		Code:    "RATE001",
	}},
}

// defaultMessage is returned when nothing matches (ERR000). Support staff
// should check application logs for the original technical error.
var defaultMessage = UserMessage{
	Message: "An unexpected error occurred",
	Action:  "Please try again or contact support",
	Code:    "ERR000",
}

// MapError converts a technical error to a user-friendly message.
//
// Example:
//
//	_, err := GetSchema("rooms")
//	msg := MapError(err)
//	// msg.Code == "IMP001"
func MapError(err error) UserMessage {
	if err == nil {
		return UserMessage{}
	}

	if msg, ok := mapKnownError(err); ok {
		return msg
	}

	errStr := strings.ToLower(err.Error())
	for _, ep := range errorPatterns {
		if strings.Contains(errStr, ep.pattern) {
			return ep.msg
		}
	}
	return defaultMessage
}

func mapKnownError(err error) (UserMessage, bool) {
	var fileErr *InvalidFileError
	if errors.As(err, &fileErr) {
		switch {
		case errors.Is(err, errFileTooLarge) || fileErr.Reason == "file too large":
			return msgFileTooLarge, true
		case strings.Contains(fileErr.Reason, "header"):
			if fileErr.Err == nil {
				return msgEmptyFile, true
			}
			return msgMalformedHeader, true
		case strings.Contains(fileErr.Reason, "not a CSV"):
			return msgNotCSV, true
		default:
			return msgUnreadable, true
		}
	}

	switch {
	case errors.Is(err, ErrUnknownImportKind):
		return msgUnknownKind, true
	case errors.Is(err, ErrTooManyImports):
		return msgTooManyImports, true
	case errors.Is(err, ErrImportNotFound):
		return msgImportNotFound, true
	case errors.Is(err, ErrImportNotFinished):
		return msgImportRunning, true
	case errors.Is(err, ErrImportIncomplete):
		return msgImportIncomplete, true
	case errors.Is(err, ErrAlreadySubmitted):
		return msgAlreadySubmitted, true
	case errors.Is(err, ErrInvalidDateRange):
		return msgDateRange, true
	case errors.Is(err, context.Canceled):
		return msgCancelled, true
	case errors.Is(err, context.DeadlineExceeded):
		return msgTimeout, true
	}
	return UserMessage{}, false
}

// FormatUserError creates a formatted error string for display.
// The format is: "Message (Code: XXX). Action"
func FormatUserError(err error) string {
	msg := MapError(err)
	if msg.Message == "" {
		return ""
	}
	return fmt.Sprintf("%s (Code: %s). %s", msg.Message, msg.Code, msg.Action)
}

// IsUserFacing reports whether err maps to a specific message rather than
// the generic ERR000 fallback.
func IsUserFacing(err error) bool {
	if err == nil {
		return false
	}
	return MapError(err).Code != defaultMessage.Code
}

// UserError pairs a technical error with its user-friendly message.
// The original error is preserved for logging.
type UserError struct {
	Technical error       // Original technical error for logging
	User      UserMessage // User-friendly message for display
}

func (e *UserError) Error() string {
	return e.User.Message
}

func (e *UserError) Unwrap() error {
	return e.Technical
}

// NewUserError maps err to a UserError. Returns nil if err is nil.
func NewUserError(err error) *UserError {
	if err == nil {
		return nil
	}
	return &UserError{
		Technical: err,
		User:      MapError(err),
	}
}
