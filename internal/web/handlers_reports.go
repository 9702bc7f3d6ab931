package web

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/JonMunkholm/hrpipe/internal/export"
	"github.com/JonMunkholm/hrpipe/internal/hr"
	"github.com/JonMunkholm/hrpipe/internal/logging"
	"github.com/JonMunkholm/hrpipe/internal/report"
)

// handleExport streams a CSV export. Parameters are checked before the
// first byte goes out, so a bad request still gets a JSON error.
func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	kind, err := export.ParseKind(chi.URLParam(r, "kind"))
	if err != nil {
		s.respondError(w, r, fmt.Errorf("%w: %w", errBadRequest, err))
		return
	}

	var q exportQuery
	if err := bindQuery(r, &q); err != nil {
		s.respondError(w, r, err)
		return
	}

	req := export.Request{Kind: kind, Staff: q.filter()}
	switch kind {
	case export.Attendance, export.Leaves:
		req.Range, err = hr.ParseDateRange(q.Start, q.End)
	case export.Payroll:
		if q.Period == "" {
			err = fmt.Errorf("%w: period is required", hr.ErrInvalidPeriod)
		} else {
			req.Period, err = hr.ParseMonth(q.Period)
		}
	}
	if err == nil {
		err = req.Validate()
	}
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	cw := &csvResponse{w: w, fileName: req.FileName()}
	if err := s.exporter.Export(r.Context(), cw, req); err != nil {
		if !cw.started {
			s.respondError(w, r, err)
			return
		}
		// Headers are gone; the client sees a truncated file.
		logging.FromContext(r.Context()).Error("export interrupted",
			"kind", kind.String(),
			"bytes", cw.written,
			"error", err,
		)
		return
	}
	if !cw.started {
		cw.writeHeader()
	}
}

// csvResponse sets the download headers on the first write.
type csvResponse struct {
	w        http.ResponseWriter
	fileName string
	started  bool
	written  int64
}

func (c *csvResponse) writeHeader() {
	c.started = true
	c.w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	c.w.Header().Set("Content-Disposition", attachment(c.fileName))
	c.w.WriteHeader(http.StatusOK)
}

func (c *csvResponse) Write(p []byte) (int, error) {
	if !c.started {
		c.writeHeader()
	}
	n, err := c.w.Write(p)
	c.written += int64(n)
	return n, err
}

func (s *Server) handleAttendanceReport(w http.ResponseWriter, r *http.Request) {
	var q attendanceReportQuery
	if err := bindQuery(r, &q); err != nil {
		s.respondError(w, r, err)
		return
	}
	month, err := hr.ParseMonth(q.Month)
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	rep, err := s.reports.AttendanceReport(r.Context(), q.filter(), month)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	if rep.Summaries == nil {
		rep.Summaries = []report.AttendanceSummary{}
	}
	writeJSON(w, rep)
}

func (s *Server) handleLeaveReport(w http.ResponseWriter, r *http.Request) {
	var q leaveReportQuery
	if err := bindQuery(r, &q); err != nil {
		s.respondError(w, r, err)
		return
	}

	rep, err := s.reports.LeaveReport(r.Context(), report.LeaveQuery{
		Year:       hr.AccountingYear(q.Year),
		Month:      q.Month,
		CategoryID: q.CategoryID,
		StaffID:    q.StaffID,
	})
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	if rep.Requests == nil {
		rep.Requests = []hr.TimeOffRequest{}
	}
	if rep.ByCategory == nil {
		rep.ByCategory = []report.CategoryLeaveSummary{}
	}
	writeJSON(w, rep)
}

// balancesResponse is the body of both balance lookups.
type balancesResponse struct {
	Year int `json:"year"`
	report.StaffLeaveBalances
}

// handleMyBalances looks up the caller's own balances. The staff member
// comes from the token, never from the request.
func (s *Server) handleMyBalances(w http.ResponseWriter, r *http.Request) {
	id := caller(r)
	if id.StaffID == 0 {
		s.respondError(w, r, fmt.Errorf("user %s is not linked to a staff record: %w", id.UserID, hr.ErrNotFound))
		return
	}
	s.writeBalances(w, r, id.StaffID)
}

func (s *Server) handleStaffBalances(w http.ResponseWriter, r *http.Request) {
	staffID, err := strconv.ParseInt(chi.URLParam(r, "staffID"), 10, 64)
	if err != nil || staffID <= 0 {
		s.respondError(w, r, fmt.Errorf("%w: staff id must be a positive number", errBadRequest))
		return
	}
	s.writeBalances(w, r, staffID)
}

func (s *Server) writeBalances(w http.ResponseWriter, r *http.Request, staffID int64) {
	var q balanceQuery
	if err := bindQuery(r, &q); err != nil {
		s.respondError(w, r, err)
		return
	}
	year, err := s.accountingYear(q.Year)
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	b, err := s.reports.StaffLeaveBalances(r.Context(), staffID, year)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	if b.Balances == nil {
		b.Balances = []report.LeaveBalance{}
	}
	writeJSON(w, balancesResponse{Year: int(year), StaffLeaveBalances: *b})
}

// handleHealth reports liveness and import slot usage. It is unauthenticated
// and carries no data beyond counts.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, map[string]any{
		"status":  "ok",
		"time":    s.now().UTC().Format(time.RFC3339),
		"imports": s.imports.Limiter().Status(),
	})
}
