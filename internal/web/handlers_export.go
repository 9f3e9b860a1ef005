package web

import (
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/JonMunkholm/schedule-import/internal/core"
	"github.com/JonMunkholm/schedule-import/internal/history"
)

// handleExport renders schedules in [startDate, endDate] as a download.
func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	format, ok := core.ParseExportFormat(q.Get("format"))
	if !ok {
		s.respondError(w, r, fmt.Errorf("unsupported export format %q", q.Get("format")))
		return
	}

	file, err := s.service.Export(r.Context(), core.ExportRequest{
		StartDate: q.Get("startDate"),
		EndDate:   q.Get("endDate"),
		Format:    format,
	})
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	w.Header().Set("Content-Type", file.ContentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, file.Filename))
	w.Header().Set("X-Record-Count", strconv.Itoa(file.Records))
	io.WriteString(w, file.Content)
}

// handleHistory lists ledger entries, newest first.
func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	if s.history == nil {
		writeErrorMessage(w, core.UserMessage{
			Message: "Import history is disabled",
			Action:  "Configure DATABASE_URL to keep an import ledger",
			Code:    "ERR000",
		}, http.StatusNotFound)
		return
	}

	q := r.URL.Query()
	f := history.Filter{
		Limit:  parseIntParam(r, "limit", history.DefaultListLimit),
		Offset: parseIntParam(r, "offset", 0),
	}
	if raw := q.Get("kind"); raw != "" {
		kind, err := core.ParseKind(raw)
		if err != nil {
			s.respondError(w, r, err)
			return
		}
		f.Kind = kind
	}

	runs, err := s.history.List(r.Context(), f)
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"runs":   runs,
		"limit":  f.Limit,
		"offset": f.Offset,
	})
}

// parseIntParam parses a non-negative integer query parameter with a default value.
func parseIntParam(r *http.Request, name string, defaultVal int) int {
	val := r.URL.Query().Get(name)
	if val == "" {
		return defaultVal
	}
	i, err := strconv.Atoi(val)
	if err != nil || i < 0 {
		return defaultVal
	}
	return i
}
