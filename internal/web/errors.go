package web

// errors.go provides unified error response handling for the web layer.
//
// The error flow:
//  1. Handler encounters an error
//  2. Calls s.respondError(w, r, err)
//  3. Error is mapped via core.MapError to a user-friendly message and code
//  4. The code picks the HTTP status unless the handler passes one
//  5. Technical error + context is logged with request ID for correlation

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/JonMunkholm/schedule-import/internal/core"
	"github.com/JonMunkholm/schedule-import/internal/logging"
)

// ErrorResponse represents the JSON structure for API error responses.
// Includes both machine-readable (Code) and human-readable (Message, Action) fields.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Action  string `json:"action,omitempty"`
	Code    string `json:"code"`
}

// statusByCode maps error codes to HTTP status codes.
var statusByCode = map[string]int{
	"FILE001": http.StatusRequestEntityTooLarge,
	"FILE002": http.StatusBadRequest,
	"FILE003": http.StatusUnsupportedMediaType,
	"FILE004": http.StatusBadRequest,
	"FILE005": http.StatusBadRequest,
	"FILE006": http.StatusBadRequest,
	"IMP001":  http.StatusNotFound,
	"IMP002":  http.StatusServiceUnavailable,
	"IMP003":  http.StatusNotFound,
	"IMP004":  http.StatusConflict,
	"IMP005":  http.StatusConflict,
	"IMP006":  http.StatusBadRequest,
	"IMP007":  http.StatusGatewayTimeout,
	"IMP008":  http.StatusConflict,
	"EXP001":  http.StatusBadRequest,
	"EXP002":  http.StatusBadRequest,
	"API001":  http.StatusBadGateway,
	"API002":  http.StatusBadGateway,
	"RATE001": http.StatusTooManyRequests,
}

// statusFor returns the HTTP status for a mapped error.
func statusFor(msg core.UserMessage) int {
	if status, ok := statusByCode[msg.Code]; ok {
		return status
	}
	return http.StatusInternalServerError
}

// respondError logs the technical error server-side and writes the mapped
// user-facing message as JSON. Errors with no specific mapping are logged
// at error level whatever their status.
func (s *Server) respondError(w http.ResponseWriter, r *http.Request, err error) {
	userErr := core.NewUserError(err)
	msg := userErr.User
	status := statusFor(msg)

	logger := logging.FromContext(r.Context())
	args := []any{
		"path", r.URL.Path,
		"method", r.Method,
		"status", status,
		"error", userErr.Technical.Error(),
		"code", msg.Code,
	}
	switch {
	case !core.IsUserFacing(err):
		logger.Error("unhandled request error", args...)
	case status >= http.StatusInternalServerError:
		logger.Error("request error", args...)
	default:
		logger.Warn("request error", args...)
	}

	writeErrorMessage(w, msg, status)
}

// writeErrorMessage writes a JSON error response.
func writeErrorMessage(w http.ResponseWriter, msg core.UserMessage, status int) {
	writeJSON(w, status, ErrorResponse{
		Error:   msg.Message,
		Message: msg.Message,
		Action:  msg.Action,
		Code:    msg.Code,
	})
}

// writeJSON encodes v as JSON and writes it with status.
// Logs encoding errors since headers are already sent.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Warn("json encode error", "error", err)
	}
}
