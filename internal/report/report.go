// Package report derives attendance summaries and leave balances from
// persisted work logs and time-off requests.
//
// Every computation has the same shape: load the population, scan the
// matching records once, group them by staff (or category) id and fold each
// group into a summary. Nothing is persisted and the engine never reads the
// wall clock; periods and accounting years are always passed in.
package report

import (
	"context"
	"fmt"

	"github.com/JonMunkholm/hrpipe/internal/hr"
)

// Source reads the records the engine aggregates.
type Source interface {
	ListStaff(ctx context.Context, filter hr.StaffFilter) ([]hr.Staff, error)
	WorkLogs(ctx context.Context, filter hr.WorkLogFilter) ([]hr.WorkLog, error)
	LeaveCategories(ctx context.Context) ([]hr.LeaveCategory, error)
	TimeOffRequests(ctx context.Context, filter hr.TimeOffFilter) ([]hr.TimeOffRequest, error)
}

// Engine computes reports. It holds no state between calls and is safe for
// concurrent use.
type Engine struct {
	src Source
}

// NewEngine creates an Engine reading from src.
func NewEngine(src Source) *Engine {
	return &Engine{src: src}
}

// AttendanceSummary is one staff member's attendance over a period.
type AttendanceSummary struct {
	StaffID   int64  `json:"staff_id"`
	StaffCode string `json:"staff_code"`
	StaffName string `json:"staff_name"`

	Present  int `json:"present"`
	Absent   int `json:"absent"`
	HalfDay  int `json:"half_day"`
	OnLeave  int `json:"on_leave"`
	Holiday  int `json:"holiday"`
	LateDays int `json:"late_days"`

	LateMinutes       int `json:"late_minutes"`
	OvertimeMinutes   int `json:"overtime_minutes"`
	EarlyLeaveMinutes int `json:"early_leave_minutes"`
}

func newAttendanceSummary(s hr.Staff) AttendanceSummary {
	return AttendanceSummary{StaffID: s.ID, StaffCode: s.Code, StaffName: s.FullName()}
}

// add folds one work log into the summary. Negative minute values are
// ignored so the sums never go below zero.
func (a *AttendanceSummary) add(w hr.WorkLog) {
	switch w.Status {
	case hr.AttendancePresent:
		a.Present++
	case hr.AttendanceAbsent:
		a.Absent++
	case hr.AttendanceHalfDay:
		a.HalfDay++
	case hr.AttendanceOnLeave:
		a.OnLeave++
	case hr.AttendanceHoliday:
		a.Holiday++
	}
	if w.LateMinutes > 0 {
		a.LateDays++
	}
	a.LateMinutes += max(0, w.LateMinutes)
	a.OvertimeMinutes += max(0, w.OvertimeMinutes)
	a.EarlyLeaveMinutes += max(0, w.EarlyLeaveMinutes)
}

// Count returns the day count for status.
func (a AttendanceSummary) Count(status hr.AttendanceStatus) int {
	switch status {
	case hr.AttendancePresent:
		return a.Present
	case hr.AttendanceAbsent:
		return a.Absent
	case hr.AttendanceHalfDay:
		return a.HalfDay
	case hr.AttendanceOnLeave:
		return a.OnLeave
	case hr.AttendanceHoliday:
		return a.Holiday
	}
	return 0
}

// AttendanceSummaries returns one summary per staff member matching filter,
// in population order. Staff without work logs in the period get an
// all-zero summary.
func (e *Engine) AttendanceSummaries(ctx context.Context, filter hr.StaffFilter, period hr.DateRange) ([]AttendanceSummary, error) {
	if period.IsZero() || period.Start.After(period.End) {
		return nil, fmt.Errorf("%w: attendance period is required", hr.ErrInvalidPeriod)
	}

	staff, err := e.src.ListStaff(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("list staff: %w", err)
	}

	summaries := make([]AttendanceSummary, len(staff))
	byID := make(map[int64]*AttendanceSummary, len(staff))
	for i, s := range staff {
		summaries[i] = newAttendanceSummary(s)
		byID[s.ID] = &summaries[i]
	}
	if len(staff) == 0 {
		return summaries, nil
	}

	logs, err := e.src.WorkLogs(ctx, hr.WorkLogFilter{Staff: filter, Range: period})
	if err != nil {
		return nil, fmt.Errorf("load work logs: %w", err)
	}
	for _, w := range logs {
		sum, ok := byID[w.StaffID]
		if !ok || !period.Contains(w.LogDate) {
			continue
		}
		sum.add(w)
	}

	return summaries, nil
}

// AttendanceReport is the monthly attendance view.
type AttendanceReport struct {
	Month     string              `json:"month"`
	Start     string              `json:"start"`
	End       string              `json:"end"`
	Days      int                 `json:"days"`
	Summaries []AttendanceSummary `json:"summaries"`
}

// AttendanceReport summarizes attendance for one calendar month.
func (e *Engine) AttendanceReport(ctx context.Context, filter hr.StaffFilter, month hr.Month) (*AttendanceReport, error) {
	if month.IsZero() {
		return nil, fmt.Errorf("%w: month is required", hr.ErrInvalidPeriod)
	}
	period := month.Range()

	summaries, err := e.AttendanceSummaries(ctx, filter, period)
	if err != nil {
		return nil, err
	}

	return &AttendanceReport{
		Month:     month.String(),
		Start:     period.Start.Format(hr.DateLayout),
		End:       period.End.Format(hr.DateLayout),
		Days:      period.Days(),
		Summaries: summaries,
	}, nil
}
