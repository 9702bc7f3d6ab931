package report

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/JonMunkholm/hrpipe/internal/hr"
)

// LeaveBalance is one staff member's standing in one leave category.
// Remaining is Allocated minus Used and may be negative.
type LeaveBalance struct {
	CategoryID     int64           `json:"category_id"`
	CategoryName   string          `json:"category_name"`
	AnnualQuota    decimal.Decimal `json:"annual_quota"`
	CarriedForward decimal.Decimal `json:"carried_forward"`
	Allocated      decimal.Decimal `json:"allocated"`
	Used           decimal.Decimal `json:"used"`
	Remaining      decimal.Decimal `json:"remaining"`
}

// StaffLeaveBalances groups the balances of one staff member.
type StaffLeaveBalances struct {
	StaffID   int64          `json:"staff_id"`
	StaffCode string         `json:"staff_code"`
	StaffName string         `json:"staff_name"`
	Balances  []LeaveBalance `json:"balances"`
}

// usage is approved days per category, split into the accounting year and
// the year before it.
type usage struct {
	current  map[int64]decimal.Decimal
	previous map[int64]decimal.Decimal
}

func newUsage() *usage {
	return &usage{
		current:  make(map[int64]decimal.Decimal),
		previous: make(map[int64]decimal.Decimal),
	}
}

// add counts r when it is approved and starts in year or the year before.
func (u *usage) add(r hr.TimeOffRequest, year hr.AccountingYear) {
	if r.ApprovalStatus != hr.ApprovalApproved {
		return
	}
	switch {
	case year.Range().Contains(r.StartDate):
		u.current[r.CategoryID] = u.current[r.CategoryID].Add(r.TotalDays)
	case year.Previous().Range().Contains(r.StartDate):
		u.previous[r.CategoryID] = u.previous[r.CategoryID].Add(r.TotalDays)
	}
}

func (u *usage) balances(categories []hr.LeaveCategory) []LeaveBalance {
	out := make([]LeaveBalance, len(categories))
	for i, c := range categories {
		carried := decimal.Zero
		if c.CarryForward {
			unused := decimal.Max(decimal.Zero, c.AnnualQuota.Sub(u.previous[c.ID]))
			carried = decimal.Min(c.MaxCarryForward, unused)
		}
		allocated := c.AnnualQuota.Add(carried)
		used := u.current[c.ID]

		out[i] = LeaveBalance{
			CategoryID:     c.ID,
			CategoryName:   c.Name,
			AnnualQuota:    c.AnnualQuota,
			CarriedForward: carried,
			Allocated:      allocated,
			Used:           used,
			Remaining:      allocated.Sub(used),
		}
	}
	return out
}

// lookback widens the request window to the previous year when any
// category carries unused days forward.
func lookback(categories []hr.LeaveCategory, year hr.AccountingYear) hr.DateRange {
	window := year.Range()
	for _, c := range categories {
		if c.CarryForward {
			window.Start = year.Previous().Range().Start
			break
		}
	}
	return window
}

// LeaveBalances returns one balance per leave category for a staff member.
// Only approved requests starting inside the accounting year count as used.
func (e *Engine) LeaveBalances(ctx context.Context, staffID int64, year hr.AccountingYear) ([]LeaveBalance, error) {
	categories, err := e.src.LeaveCategories(ctx)
	if err != nil {
		return nil, fmt.Errorf("list leave categories: %w", err)
	}

	requests, err := e.src.TimeOffRequests(ctx, hr.TimeOffFilter{
		Staff:      hr.StaffFilter{StaffID: staffID},
		Status:     hr.ApprovalApproved,
		StartRange: lookback(categories, year),
	})
	if err != nil {
		return nil, fmt.Errorf("load time-off requests: %w", err)
	}

	u := newUsage()
	for _, r := range requests {
		if r.StaffID == staffID {
			u.add(r, year)
		}
	}
	return u.balances(categories), nil
}

// StaffLeaveBalances returns the balances of one staff member with their
// code and name, or hr.ErrNotFound when no such staff member exists.
func (e *Engine) StaffLeaveBalances(ctx context.Context, staffID int64, year hr.AccountingYear) (*StaffLeaveBalances, error) {
	all, err := e.AllLeaveBalances(ctx, hr.StaffFilter{StaffID: staffID}, year)
	if err != nil {
		return nil, err
	}
	if len(all) == 0 {
		return nil, fmt.Errorf("staff %d: %w", staffID, hr.ErrNotFound)
	}
	return &all[0], nil
}

// AllLeaveBalances returns balances for every staff member matching filter,
// in population order.
func (e *Engine) AllLeaveBalances(ctx context.Context, filter hr.StaffFilter, year hr.AccountingYear) ([]StaffLeaveBalances, error) {
	staff, err := e.src.ListStaff(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("list staff: %w", err)
	}
	categories, err := e.src.LeaveCategories(ctx)
	if err != nil {
		return nil, fmt.Errorf("list leave categories: %w", err)
	}

	byStaff := make(map[int64]*usage, len(staff))
	for _, s := range staff {
		byStaff[s.ID] = newUsage()
	}

	if len(staff) > 0 {
		requests, err := e.src.TimeOffRequests(ctx, hr.TimeOffFilter{
			Staff:      filter,
			Status:     hr.ApprovalApproved,
			StartRange: lookback(categories, year),
		})
		if err != nil {
			return nil, fmt.Errorf("load time-off requests: %w", err)
		}
		for _, r := range requests {
			if u, ok := byStaff[r.StaffID]; ok {
				u.add(r, year)
			}
		}
	}

	out := make([]StaffLeaveBalances, len(staff))
	for i, s := range staff {
		out[i] = StaffLeaveBalances{
			StaffID:   s.ID,
			StaffCode: s.Code,
			StaffName: s.FullName(),
			Balances:  byStaff[s.ID].balances(categories),
		}
	}
	return out, nil
}

// LeaveQuery selects requests for the leave report. Month zero covers the
// whole year; zero ids match everything.
type LeaveQuery struct {
	Year       hr.AccountingYear
	Month      int
	CategoryID int64
	StaffID    int64
}

// Range returns the start-date window of the query.
func (q LeaveQuery) Range() (hr.DateRange, error) {
	if _, err := hr.ParseAccountingYear(int(q.Year)); err != nil {
		return hr.DateRange{}, err
	}
	if q.Month == 0 {
		return q.Year.Range(), nil
	}
	if q.Month < 1 || q.Month > 12 {
		return hr.DateRange{}, fmt.Errorf("%w: month %d out of range", hr.ErrInvalidPeriod, q.Month)
	}
	return hr.Month{Year: int(q.Year), Month: time.Month(q.Month)}.Range(), nil
}

// LeaveSummary counts requests by approval status.
type LeaveSummary struct {
	Total        int             `json:"total"`
	Approved     int             `json:"approved"`
	Pending      int             `json:"pending"`
	Declined     int             `json:"declined"`
	ApprovedDays decimal.Decimal `json:"approved_days"`
	Staff        int             `json:"staff"`
}

func (s *LeaveSummary) add(r hr.TimeOffRequest) {
	s.Total++
	switch r.ApprovalStatus {
	case hr.ApprovalApproved:
		s.Approved++
		s.ApprovedDays = s.ApprovedDays.Add(r.TotalDays)
	case hr.ApprovalPending:
		s.Pending++
	case hr.ApprovalDeclined:
		s.Declined++
	}
}

// CategoryLeaveSummary is the summary for one leave category.
type CategoryLeaveSummary struct {
	CategoryID   int64  `json:"category_id"`
	CategoryName string `json:"category_name"`
	LeaveSummary
}

// LeaveReport is the leave view for a year or month.
type LeaveReport struct {
	Year       int                    `json:"year"`
	Month      int                    `json:"month,omitempty"`
	Start      string                 `json:"start"`
	End        string                 `json:"end"`
	Summary    LeaveSummary           `json:"summary"`
	ByCategory []CategoryLeaveSummary `json:"by_category"`
	Requests   []hr.TimeOffRequest    `json:"requests"`
}

// LeaveReport returns request counts and the raw requests starting in the
// query window. Every leave category appears in ByCategory unless the query
// names one.
func (e *Engine) LeaveReport(ctx context.Context, q LeaveQuery) (*LeaveReport, error) {
	window, err := q.Range()
	if err != nil {
		return nil, err
	}

	categories, err := e.src.LeaveCategories(ctx)
	if err != nil {
		return nil, fmt.Errorf("list leave categories: %w", err)
	}
	requests, err := e.src.TimeOffRequests(ctx, hr.TimeOffFilter{
		Staff:      hr.StaffFilter{StaffID: q.StaffID},
		CategoryID: q.CategoryID,
		StartRange: window,
	})
	if err != nil {
		return nil, fmt.Errorf("load time-off requests: %w", err)
	}

	rep := &LeaveReport{
		Year:     int(q.Year),
		Month:    q.Month,
		Start:    window.Start.Format(hr.DateLayout),
		End:      window.End.Format(hr.DateLayout),
		Requests: []hr.TimeOffRequest{},
	}

	byCategory := make(map[int64]*CategoryLeaveSummary, len(categories))
	rep.ByCategory = make([]CategoryLeaveSummary, 0, len(categories))
	for _, c := range categories {
		if q.CategoryID != 0 && c.ID != q.CategoryID {
			continue
		}
		rep.ByCategory = append(rep.ByCategory, CategoryLeaveSummary{CategoryID: c.ID, CategoryName: c.Name})
	}
	for i := range rep.ByCategory {
		byCategory[rep.ByCategory[i].CategoryID] = &rep.ByCategory[i]
	}

	staff := make(map[int64]bool)
	catStaff := make(map[int64]map[int64]bool)
	for _, r := range requests {
		if !window.Contains(r.StartDate) ||
			(q.StaffID != 0 && r.StaffID != q.StaffID) ||
			(q.CategoryID != 0 && r.CategoryID != q.CategoryID) {
			continue
		}
		rep.Requests = append(rep.Requests, r)
		rep.Summary.add(r)
		staff[r.StaffID] = true

		if cs, ok := byCategory[r.CategoryID]; ok {
			cs.add(r)
			if catStaff[r.CategoryID] == nil {
				catStaff[r.CategoryID] = make(map[int64]bool)
			}
			catStaff[r.CategoryID][r.StaffID] = true
		}
	}

	rep.Summary.Staff = len(staff)
	for i := range rep.ByCategory {
		rep.ByCategory[i].Staff = len(catStaff[rep.ByCategory[i].CategoryID])
	}
	return rep, nil
}
