package web

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/JonMunkholm/schedule-import/internal/core"
	"github.com/JonMunkholm/schedule-import/internal/logging"
)

var (
	errNoFile      = errors.New("no file provided")
	errRateLimited = errors.New("rate limit exceeded")
)

// multipartOverhead is the allowance for form boundaries and part headers
// on top of the file size limit.
const multipartOverhead = 1 << 20

type columnResponse struct {
	Name     string `json:"name"`
	Required bool   `json:"required"`
	Default  string `json:"default,omitempty"`
}

type kindResponse struct {
	Kind     core.Kind        `json:"kind"`
	Label    string           `json:"label"`
	Columns  []columnResponse `json:"columns"`
	Template string           `json:"template"`
}

// handleListKinds returns the import kinds and their columns.
func (s *Server) handleListKinds(w http.ResponseWriter, r *http.Request) {
	schemas := s.service.ListSchemas()
	out := make([]kindResponse, 0, len(schemas))
	for _, schema := range schemas {
		cols := make([]columnResponse, len(schema.Columns))
		for i, c := range schema.Columns {
			cols[i] = columnResponse{Name: c.Name, Required: c.Required, Default: c.Default}
		}
		out = append(out, kindResponse{
			Kind:     schema.Kind,
			Label:    schema.Label,
			Columns:  cols,
			Template: "/api/templates/" + string(schema.Kind),
		})
	}
	writeJSON(w, http.StatusOK, out)
}

// handleDownloadTemplate serves the example CSV for a kind.
func (s *Server) handleDownloadTemplate(w http.ResponseWriter, r *http.Request) {
	kind, err := core.ParseKind(chi.URLParam(r, "kind"))
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	content, err := core.GenerateTemplate(kind)
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, core.TemplateFilename(kind)))
	io.WriteString(w, content)
}

// handleStartImport streams the multipart "file" part to a spool file and
// starts a background import run.
func (s *Server) handleStartImport(w http.ResponseWriter, r *http.Request) {
	kind, err := core.ParseKind(chi.URLParam(r, "kind"))
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	maxSize := s.cfg.Import.MaxFileSize
	r.Body = http.MaxBytesReader(w, r.Body, maxSize+multipartOverhead)

	mr, err := r.MultipartReader()
	if err != nil {
		s.respondError(w, r, errNoFile)
		return
	}

	var spooled *core.SpooledFile
	for {
		part, err := mr.NextPart()
		if err == io.EOF {
			break
		}
		if err != nil {
			s.respondError(w, r, &core.InvalidFileError{Reason: "unreadable file", Err: err})
			return
		}
		if part.FormName() != "file" || part.FileName() == "" {
			part.Close()
			continue
		}

		spooled, err = core.SpoolFile(part, s.cfg.Import.SpoolDir, part.FileName(), part.Header.Get("Content-Type"), maxSize)
		part.Close()
		if err != nil {
			s.respondError(w, r, err)
			return
		}
		break
	}
	if spooled == nil {
		s.respondError(w, r, errNoFile)
		return
	}

	importID, err := s.service.StartImport(r.Context(), spooled, kind)
	if err != nil {
		spooled.Remove()
		s.respondError(w, r, err)
		return
	}

	logging.WithFields(r.Context(), "import_id", importID, "kind", kind).
		Info("import accepted", "file", spooled.Name(), "size", spooled.Size())

	writeJSON(w, http.StatusAccepted, map[string]string{
		"import_id": importID,
		"progress":  "/api/imports/" + importID + "/progress",
	})
}

type rejectedRowResponse struct {
	Row    int               `json:"row"`
	Line   int               `json:"line"`
	Reason string            `json:"reason"`
	Errors []core.FieldError `json:"errors"`
	Data   []string          `json:"data,omitempty"`
}

type resultResponse struct {
	ImportID   string                `json:"importId"`
	Kind       core.Kind             `json:"kind"`
	FileName   string                `json:"fileName"`
	Phase      core.ImportPhase      `json:"phase"`
	Success    int                   `json:"success"`
	Errors     int                   `json:"errors"`
	Total      int                   `json:"total"`
	Incomplete bool                  `json:"incomplete"`
	Missing    []string              `json:"missingColumns,omitempty"`
	Rejected   []rejectedRowResponse `json:"rejected"`
	DurationMS int64                 `json:"durationMs"`
}

func toResultResponse(p core.ImportProgress, res *core.ImportResult) resultResponse {
	rejected := make([]rejectedRowResponse, len(res.Rejected))
	for i, row := range res.Rejected {
		rejected[i] = rejectedRowResponse{
			Row:    row.Index,
			Line:   row.Line,
			Reason: row.Reason(),
			Errors: row.FieldErrors,
			Data:   row.Fields,
		}
	}
	return resultResponse{
		ImportID:   p.ImportID,
		Kind:       res.Kind,
		FileName:   res.FileName,
		Phase:      p.Phase,
		Success:    res.Success,
		Errors:     res.Errors,
		Total:      res.Total,
		Incomplete: res.Incomplete,
		Missing:    res.MissingColumns,
		Rejected:   rejected,
		DurationMS: res.Duration.Milliseconds(),
	}
}

// finishedResult returns the result of a finished run, or
// core.ErrImportNotFinished while it is still going.
func (s *Server) finishedResult(r *http.Request, importID string) (core.ImportProgress, *core.ImportResult, error) {
	p, err := s.service.Progress(importID)
	if err != nil {
		return p, nil, err
	}
	if !p.Phase.Terminal() {
		return p, nil, core.ErrImportNotFinished
	}
	res, err := s.service.Result(r.Context(), importID)
	return p, res, err
}

// handleImportResult returns the run outcome, or 202 with the current
// progress while it is still running.
func (s *Server) handleImportResult(w http.ResponseWriter, r *http.Request) {
	importID := chi.URLParam(r, "importID")

	p, res, err := s.finishedResult(r, importID)
	if errors.Is(err, core.ErrImportNotFinished) {
		writeJSON(w, http.StatusAccepted, p)
		return
	}
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, toResultResponse(p, res))
}

// handleCancelImport requests cooperative cancellation of a run.
func (s *Server) handleCancelImport(w http.ResponseWriter, r *http.Request) {
	importID := chi.URLParam(r, "importID")

	if err := s.service.Cancel(importID); err != nil {
		s.respondError(w, r, err)
		return
	}

	writeJSON(w, http.StatusAccepted, map[string]string{"status": "cancelling"})
}

// handleRejectedRows downloads rejected rows as CSV with the original
// header, prefixed by the source line and the joined errors.
func (s *Server) handleRejectedRows(w http.ResponseWriter, r *http.Request) {
	importID := chi.URLParam(r, "importID")

	_, res, err := s.finishedResult(r, importID)
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="rejected_%s_%s.csv"`, res.Kind, importID))

	cw := csv.NewWriter(w)
	cw.Write(append([]string{"_line", "_errors"}, res.Header...))
	for _, row := range res.Rejected {
		cw.Write(append([]string{strconv.Itoa(row.Line), row.Reason()}, row.Fields...))
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		logging.FromContext(r.Context()).Warn("rejected rows export failed", "import_id", importID, "error", err)
	}
}

// handleSubmitImport sends the accepted records of a finished run to the
// admin API.
func (s *Server) handleSubmitImport(w http.ResponseWriter, r *http.Request) {
	importID := chi.URLParam(r, "importID")

	result, err := s.service.Submit(r.Context(), importID)
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, result)
}
