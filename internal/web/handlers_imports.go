package web

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/JonMunkholm/hrpipe/internal/core"
	"github.com/JonMunkholm/hrpipe/internal/hr"
	"github.com/JonMunkholm/hrpipe/internal/logging"
)

// multipartMemory is how much of an upload is buffered in memory; the rest
// spills to a temp file.
const multipartMemory = 8 << 20

// handleImport runs one import from the multipart "file" field. The job is
// returned even when the run stopped early; the status then reflects why.
func (s *Server) handleImport(w http.ResponseWriter, r *http.Request) {
	kind, err := core.ParseKind(chi.URLParam(r, "kind"))
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.Import.MaxFileSize)
	if err := r.ParseMultipartForm(min(multipartMemory, s.cfg.Import.MaxFileSize)); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) || strings.Contains(err.Error(), "request body too large") {
			limit := &http.MaxBytesError{Limit: s.cfg.Import.MaxFileSize}
			s.respondError(w, r, fmt.Errorf("file too large: %w", limit))
			return
		}
		s.respondError(w, r, fmt.Errorf("%w: multipart form: %v", errBadRequest, err))
		return
	}
	defer r.MultipartForm.RemoveAll()

	var form importForm
	form.Delimiter = r.FormValue("delimiter")
	if err := validateRequest(&form); err != nil {
		s.respondError(w, r, err)
		return
	}
	delim, _ := parseDelimiter(form.Delimiter)

	file, header, err := r.FormFile("file")
	if err != nil {
		s.respondError(w, r, fmt.Errorf("%w: no file provided", errBadRequest))
		return
	}
	defer file.Close()

	job, err := s.imports.Import(r.Context(), core.ImportRequest{
		Kind:        kind,
		FileName:    header.Filename,
		Body:        file,
		Size:        header.Size,
		InitiatedBy: caller(r).UserID,
		Delimiter:   delim,
	})
	switch {
	case err == nil:
		writeJSON(w, job)
	case job != nil:
		logging.FromContext(r.Context()).Warn("import ended early",
			"job_id", job.ID,
			"processed_rows", job.ProcessedRows,
			"error", err,
		)
		writeJSONStatus(w, statusFor(err), job)
	default:
		s.respondError(w, r, err)
	}
}

// handleTemplate returns the column layout as JSON, or as a CSV file with
// ?format=csv.
func (s *Server) handleTemplate(w http.ResponseWriter, r *http.Request) {
	var q templateQuery
	if err := bindQuery(r, &q); err != nil {
		s.respondError(w, r, err)
		return
	}

	tmpl, err := s.imports.Template(chi.URLParam(r, "kind"))
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	if q.Format != "csv" {
		writeJSON(w, tmpl)
		return
	}
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", attachment(tmpl.Kind+"_template.csv"))
	if err := tmpl.WriteCSV(w); err != nil {
		logging.FromContext(r.Context()).Error("write template", "kind", tmpl.Kind, "error", err)
	}
}

func (s *Server) handleListJobs(w http.ResponseWriter, r *http.Request) {
	var q jobsQuery
	if err := bindQuery(r, &q); err != nil {
		s.respondError(w, r, err)
		return
	}

	jobs, err := s.imports.Jobs(r.Context(), q.Kind, q.Limit)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	if jobs == nil {
		jobs = []hr.ImportJob{}
	}
	writeJSON(w, map[string]any{"jobs": jobs})
}

func (s *Server) handleGetJob(w http.ResponseWriter, r *http.Request) {
	job, err := s.imports.Job(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	writeJSON(w, job)
}

func attachment(name string) string {
	return fmt.Sprintf("attachment; filename=%q", name)
}
