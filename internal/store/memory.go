package store

import (
	"cmp"
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/JonMunkholm/hrpipe/internal/core"
	"github.com/JonMunkholm/hrpipe/internal/export"
	"github.com/JonMunkholm/hrpipe/internal/hr"
	"github.com/JonMunkholm/hrpipe/internal/report"
)

var (
	_ core.ImportStore   = (*Memory)(nil)
	_ core.JobRepository = (*Memory)(nil)
	_ report.Source      = (*Memory)(nil)
	_ export.Source      = (*Memory)(nil)
)

type workLogKey struct {
	staffID int64
	date    time.Time
}

// Memory is a process-local store. It enforces the same unique keys as the
// Postgres schema and is safe for concurrent use.
type Memory struct {
	mu sync.RWMutex

	lastID     int64
	staff      []hr.Staff
	workLogs   map[workLogKey]hr.WorkLog
	holidays   map[time.Time]hr.Holiday
	categories []hr.LeaveCategory
	timeOff    []hr.TimeOffRequest
	slips      []hr.SalarySlip

	jobs     map[string]hr.ImportJob
	jobOrder []string
}

// NewMemory creates an empty store.
func NewMemory() *Memory {
	return &Memory{
		workLogs: make(map[workLogKey]hr.WorkLog),
		holidays: make(map[time.Time]hr.Holiday),
		jobs:     make(map[string]hr.ImportJob),
	}
}

func (m *Memory) nextID() int64 {
	m.lastID++
	return m.lastID
}

func (m *Memory) staffIndex(match func(hr.Staff) bool) int {
	return slices.IndexFunc(m.staff, match)
}

func (m *Memory) staffByID(id int64) (hr.Staff, bool) {
	i := m.staffIndex(func(s hr.Staff) bool { return s.ID == id })
	if i < 0 {
		return hr.Staff{}, false
	}
	return m.staff[i], true
}

// ----------------------------------------------------------------------------
// Import writes
// ----------------------------------------------------------------------------

func (m *Memory) StaffIDByCode(_ context.Context, code string) (int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	i := m.staffIndex(func(s hr.Staff) bool { return s.Code == code })
	if i < 0 {
		return 0, fmt.Errorf("staff %s: %w", code, hr.ErrNotFound)
	}
	return m.staff[i].ID, nil
}

func (m *Memory) InsertStaff(_ context.Context, s *hr.Staff) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.insertStaffLocked(s)
}

func (m *Memory) insertStaffLocked(s *hr.Staff) error {
	if s.Code != "" && m.staffIndex(func(x hr.Staff) bool { return x.Code == s.Code }) >= 0 {
		return fmt.Errorf("%w: staff_code", ErrDuplicate)
	}
	s.ID = m.nextID()
	if s.Code == "" {
		s.Code = fmt.Sprintf("EMP%03d", s.ID)
	}
	m.staff = append(m.staff, *s)
	return nil
}

func (m *Memory) UpsertStaffByEmail(_ context.Context, s *hr.Staff) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	i := -1
	if s.PersonalEmail != "" {
		i = m.staffIndex(func(x hr.Staff) bool { return x.PersonalEmail == s.PersonalEmail })
	}
	if i < 0 {
		return m.insertStaffLocked(s)
	}

	existing := m.staff[i]
	if s.Code == "" {
		s.Code = existing.Code
	} else if j := m.staffIndex(func(x hr.Staff) bool { return x.Code == s.Code }); j >= 0 && j != i {
		return fmt.Errorf("%w: staff_code", ErrDuplicate)
	}
	s.ID = existing.ID
	s.LocationID, s.OfficeLocation = existing.LocationID, existing.OfficeLocation
	s.DivisionID, s.Division = existing.DivisionID, existing.Division
	s.JobTitle = existing.JobTitle
	m.staff[i] = *s
	return nil
}

func (m *Memory) UpsertWorkLog(_ context.Context, w *hr.WorkLog) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.staffByID(w.StaffID); !ok {
		return fmt.Errorf("staff id %d: %w", w.StaffID, hr.ErrNotFound)
	}
	key := workLogKey{w.StaffID, hr.DateOf(w.LogDate)}
	if old, ok := m.workLogs[key]; ok {
		w.ID = old.ID
	} else {
		w.ID = m.nextID()
	}
	m.workLogs[key] = *w
	return nil
}

func (m *Memory) UpsertHoliday(_ context.Context, h *hr.Holiday) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := hr.DateOf(h.Date)
	if old, ok := m.holidays[key]; ok {
		h.ID = old.ID
	} else {
		h.ID = m.nextID()
	}
	m.holidays[key] = *h
	return nil
}

// ----------------------------------------------------------------------------
// Seeding for records the pipeline reads but never imports
// ----------------------------------------------------------------------------

// AddStaff inserts s with its org fields intact and returns the stored copy.
func (m *Memory) AddStaff(s hr.Staff) (hr.Staff, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if s.EmploymentStatus == "" {
		s.EmploymentStatus = hr.EmploymentActive
	}
	err := m.insertStaffLocked(&s)
	return s, err
}

// AddLeaveCategory stores c and returns it with an id.
func (m *Memory) AddLeaveCategory(c hr.LeaveCategory) hr.LeaveCategory {
	m.mu.Lock()
	defer m.mu.Unlock()
	c.ID = m.nextID()
	m.categories = append(m.categories, c)
	return c
}

// AddTimeOff stores r. Staff and category names are filled in from their ids.
func (m *Memory) AddTimeOff(r hr.TimeOffRequest) (hr.TimeOffRequest, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.staffByID(r.StaffID)
	if !ok {
		return r, fmt.Errorf("staff id %d: %w", r.StaffID, hr.ErrNotFound)
	}
	ci := slices.IndexFunc(m.categories, func(c hr.LeaveCategory) bool { return c.ID == r.CategoryID })
	if ci < 0 {
		return r, fmt.Errorf("leave category %d: %w", r.CategoryID, hr.ErrNotFound)
	}
	if r.ApprovalStatus == "" {
		r.ApprovalStatus = hr.ApprovalPending
	}
	r.ID = m.nextID()
	r.StaffCode, r.StaffName = s.Code, s.FullName()
	r.CategoryName = m.categories[ci].Name
	m.timeOff = append(m.timeOff, r)
	return r, nil
}

// AddSalarySlip stores slip for an existing staff member.
func (m *Memory) AddSalarySlip(slip hr.SalarySlip) (hr.SalarySlip, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.staffByID(slip.StaffID)
	if !ok {
		return slip, fmt.Errorf("staff id %d: %w", slip.StaffID, hr.ErrNotFound)
	}
	slip.ID = m.nextID()
	slip.StaffCode, slip.StaffName = s.Code, s.FullName()
	m.slips = append(m.slips, slip)
	return slip, nil
}

// Holidays returns every stored holiday ordered by date.
func (m *Memory) Holidays() []hr.Holiday {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]hr.Holiday, 0, len(m.holidays))
	for _, h := range m.holidays {
		out = append(out, h)
	}
	slices.SortFunc(out, func(a, b hr.Holiday) int { return a.Date.Compare(b.Date) })
	return out
}

// ----------------------------------------------------------------------------
// Reads
// ----------------------------------------------------------------------------

func (m *Memory) ListStaff(_ context.Context, filter hr.StaffFilter) ([]hr.Staff, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]hr.Staff, 0)
	for _, s := range m.staff {
		if filter.Match(s) {
			out = append(out, s)
		}
	}
	return out, nil
}

func (m *Memory) EachStaff(ctx context.Context, filter hr.StaffFilter, fn func(hr.Staff) error) error {
	staff, err := m.ListStaff(ctx, filter)
	if err != nil {
		return err
	}
	return yieldAll(staff, fn)
}

func (m *Memory) WorkLogs(_ context.Context, filter hr.WorkLogFilter) ([]hr.WorkLog, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]hr.WorkLog, 0)
	for _, w := range m.workLogs {
		s, ok := m.staffByID(w.StaffID)
		if !ok || !filter.Staff.Match(s) {
			continue
		}
		if !filter.Range.IsZero() && !filter.Range.Contains(w.LogDate) {
			continue
		}
		w.StaffCode, w.StaffName = s.Code, s.FullName()
		out = append(out, w)
	}
	slices.SortFunc(out, func(a, b hr.WorkLog) int {
		return cmp.Or(a.LogDate.Compare(b.LogDate), cmp.Compare(a.StaffCode, b.StaffCode))
	})
	return out, nil
}

func (m *Memory) EachWorkLog(ctx context.Context, filter hr.WorkLogFilter, fn func(hr.WorkLog) error) error {
	logs, err := m.WorkLogs(ctx, filter)
	if err != nil {
		return err
	}
	return yieldAll(logs, fn)
}

func (m *Memory) LeaveCategories(context.Context) ([]hr.LeaveCategory, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return slices.Clone(m.categories), nil
}

func (m *Memory) TimeOffRequests(_ context.Context, filter hr.TimeOffFilter) ([]hr.TimeOffRequest, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]hr.TimeOffRequest, 0)
	for _, r := range m.timeOff {
		s, ok := m.staffByID(r.StaffID)
		if !ok || !filter.Staff.Match(s) {
			continue
		}
		if filter.CategoryID != 0 && r.CategoryID != filter.CategoryID {
			continue
		}
		if filter.Status != "" && r.ApprovalStatus != filter.Status {
			continue
		}
		if !filter.StartRange.IsZero() && !filter.StartRange.Contains(r.StartDate) {
			continue
		}
		out = append(out, r)
	}
	slices.SortStableFunc(out, func(a, b hr.TimeOffRequest) int {
		return cmp.Or(a.StartDate.Compare(b.StartDate), cmp.Compare(a.ID, b.ID))
	})
	return out, nil
}

func (m *Memory) EachTimeOff(ctx context.Context, filter hr.TimeOffFilter, fn func(hr.TimeOffRequest) error) error {
	reqs, err := m.TimeOffRequests(ctx, filter)
	if err != nil {
		return err
	}
	return yieldAll(reqs, fn)
}

func (m *Memory) EachSalarySlip(_ context.Context, filter hr.SalaryFilter, fn func(hr.SalarySlip) error) error {
	m.mu.RLock()
	out := make([]hr.SalarySlip, 0)
	for _, slip := range m.slips {
		s, ok := m.staffByID(slip.StaffID)
		if !ok || !filter.Staff.Match(s) {
			continue
		}
		if !filter.Period.IsZero() && slip.Period != filter.Period {
			continue
		}
		out = append(out, slip)
	}
	m.mu.RUnlock()

	slices.SortStableFunc(out, func(a, b hr.SalarySlip) int { return cmp.Compare(a.StaffCode, b.StaffCode) })
	return yieldAll(out, fn)
}

func yieldAll[T any](recs []T, fn func(T) error) error {
	for _, r := range recs {
		if err := fn(r); err != nil {
			return err
		}
	}
	return nil
}

// ----------------------------------------------------------------------------
// Import jobs
// ----------------------------------------------------------------------------

func cloneJob(j hr.ImportJob) hr.ImportJob {
	j.Errors = slices.Clone(j.Errors)
	j.Source.Columns = slices.Clone(j.Source.Columns)
	if j.CompletedAt != nil {
		t := *j.CompletedAt
		j.CompletedAt = &t
	}
	return j
}

func (m *Memory) Create(_ context.Context, job *hr.ImportJob) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.jobs[job.ID]; ok {
		return fmt.Errorf("%w: import job %s", ErrDuplicate, job.ID)
	}
	m.jobs[job.ID] = cloneJob(*job)
	m.jobOrder = append(m.jobOrder, job.ID)
	return nil
}

func (m *Memory) Finalize(_ context.Context, job *hr.ImportJob) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	stored, ok := m.jobs[job.ID]
	if !ok {
		return core.ErrJobNotFound
	}
	if stored.Status != hr.JobProcessing {
		return core.ErrJobFinalized
	}
	m.jobs[job.ID] = cloneJob(*job)
	return nil
}

func (m *Memory) Get(_ context.Context, id string) (*hr.ImportJob, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	job, ok := m.jobs[id]
	if !ok {
		return nil, core.ErrJobNotFound
	}
	job = cloneJob(job)
	return &job, nil
}

// List returns the newest jobs first.
func (m *Memory) List(_ context.Context, kind string, limit int) ([]hr.ImportJob, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]hr.ImportJob, 0)
	for i := len(m.jobOrder) - 1; i >= 0; i-- {
		if limit > 0 && len(out) >= limit {
			break
		}
		job := m.jobs[m.jobOrder[i]]
		if kind == "" || job.Kind == kind {
			out = append(out, cloneJob(job))
		}
	}
	return out, nil
}

func (m *Memory) PruneCompleted(_ context.Context, before time.Time) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	refs := make([]string, 0)
	kept := m.jobOrder[:0]
	for _, id := range m.jobOrder {
		job := m.jobs[id]
		if job.Done() && job.CompletedAt != nil && job.CompletedAt.Before(before) {
			if job.SourceRef != "" {
				refs = append(refs, job.SourceRef)
			}
			delete(m.jobs, id)
			continue
		}
		kept = append(kept, id)
	}
	m.jobOrder = kept
	return refs, nil
}
