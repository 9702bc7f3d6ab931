package report

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/JonMunkholm/hrpipe/internal/hr"
)

// fakeSource filters like a store would, except that it ignores the status
// filter so the engine's own approved-only rule is exercised.
type fakeSource struct {
	staff      []hr.Staff
	logs       []hr.WorkLog
	categories []hr.LeaveCategory
	requests   []hr.TimeOffRequest
	err        error
}

func (f *fakeSource) ListStaff(_ context.Context, filter hr.StaffFilter) ([]hr.Staff, error) {
	if f.err != nil {
		return nil, f.err
	}
	var out []hr.Staff
	for _, s := range f.staff {
		if filter.Match(s) {
			out = append(out, s)
		}
	}
	return out, nil
}

func (f *fakeSource) WorkLogs(_ context.Context, filter hr.WorkLogFilter) ([]hr.WorkLog, error) {
	var out []hr.WorkLog
	for _, w := range f.logs {
		if filter.Range.Contains(w.LogDate) {
			out = append(out, w)
		}
	}
	return out, nil
}

func (f *fakeSource) LeaveCategories(context.Context) ([]hr.LeaveCategory, error) {
	return f.categories, nil
}

func (f *fakeSource) TimeOffRequests(_ context.Context, filter hr.TimeOffFilter) ([]hr.TimeOffRequest, error) {
	var out []hr.TimeOffRequest
	for _, r := range f.requests {
		if filter.Staff.StaffID != 0 && r.StaffID != filter.Staff.StaffID {
			continue
		}
		if !filter.StartRange.IsZero() && !filter.StartRange.Contains(r.StartDate) {
			continue
		}
		out = append(out, r)
	}
	return out, nil
}

func day(m time.Month, d int) time.Time { return hr.Date(2024, m, d) }

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

var testStaff = []hr.Staff{
	{ID: 1, Code: "EMP001", FirstName: "Ada", LastName: "Lovelace", LocationID: 10, EmploymentStatus: hr.EmploymentActive},
	{ID: 2, Code: "EMP002", FirstName: "Grace", LastName: "Hopper", LocationID: 20, EmploymentStatus: hr.EmploymentActive},
	{ID: 3, Code: "EMP003", FirstName: "Alan", LastName: "Turing", LocationID: 10, EmploymentStatus: hr.EmploymentTerminated},
}

func TestAttendanceSummaries(t *testing.T) {
	src := &fakeSource{
		staff: testStaff,
		logs: []hr.WorkLog{
			{StaffID: 1, LogDate: day(time.March, 1), Status: hr.AttendancePresent, LateMinutes: 15, OvertimeMinutes: 30},
			{StaffID: 1, LogDate: day(time.March, 4), Status: hr.AttendancePresent, EarlyLeaveMinutes: 20},
			{StaffID: 1, LogDate: day(time.March, 5), Status: hr.AttendanceAbsent},
			{StaffID: 1, LogDate: day(time.March, 6), Status: hr.AttendanceHalfDay},
			{StaffID: 1, LogDate: day(time.March, 7), Status: hr.AttendanceOnLeave},
			{StaffID: 1, LogDate: day(time.March, 8), Status: hr.AttendanceHoliday},
			{StaffID: 1, LogDate: day(time.March, 11), Status: hr.AttendancePresent, LateMinutes: -5},
			{StaffID: 1, LogDate: day(time.April, 1), Status: hr.AttendancePresent},
			{StaffID: 3, LogDate: day(time.March, 1), Status: hr.AttendancePresent, LateMinutes: 5},
			{StaffID: 99, LogDate: day(time.March, 1), Status: hr.AttendancePresent},
		},
	}
	e := NewEngine(src)

	got, err := e.AttendanceSummaries(context.Background(), hr.StaffFilter{LocationID: 10}, hr.Month{Year: 2024, Month: time.March}.Range())
	if err != nil {
		t.Fatalf("AttendanceSummaries() error = %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("len = %d, want 2 (location 10 only)", len(got))
	}

	byID := map[int64]AttendanceSummary{}
	for _, s := range got {
		byID[s.StaffID] = s
	}

	ada := byID[1]
	want := AttendanceSummary{
		StaffID: 1, StaffCode: "EMP001", StaffName: "Ada Lovelace",
		Present: 3, Absent: 1, HalfDay: 1, OnLeave: 1, Holiday: 1, LateDays: 1,
		LateMinutes: 15, OvertimeMinutes: 30, EarlyLeaveMinutes: 20,
	}
	if ada != want {
		t.Errorf("Ada = %+v\nwant  %+v", ada, want)
	}
	if ada.Count(hr.AttendancePresent) != 3 || ada.Count("unknown") != 0 {
		t.Errorf("Count() mismatch: %+v", ada)
	}

	if alan := byID[3]; alan.Present != 1 || alan.LateDays != 1 || alan.LateMinutes != 5 {
		t.Errorf("Alan = %+v", alan)
	}
}

func TestAttendanceSummariesZeroRows(t *testing.T) {
	e := NewEngine(&fakeSource{staff: testStaff})

	got, err := e.AttendanceSummaries(context.Background(), hr.StaffFilter{StaffID: 2}, hr.Month{Year: 2024, Month: time.March}.Range())
	if err != nil {
		t.Fatalf("AttendanceSummaries() error = %v", err)
	}
	want := AttendanceSummary{StaffID: 2, StaffCode: "EMP002", StaffName: "Grace Hopper"}
	if len(got) != 1 || got[0] != want {
		t.Errorf("AttendanceSummaries() = %+v, want [%+v]", got, want)
	}
}

func TestAttendanceSummariesErrors(t *testing.T) {
	e := NewEngine(&fakeSource{staff: testStaff})

	if _, err := e.AttendanceSummaries(context.Background(), hr.StaffFilter{}, hr.DateRange{}); !errors.Is(err, hr.ErrInvalidPeriod) {
		t.Errorf("zero range error = %v, want ErrInvalidPeriod", err)
	}

	storeErr := errors.New("connection refused")
	e = NewEngine(&fakeSource{err: storeErr})
	if _, err := e.AttendanceSummaries(context.Background(), hr.StaffFilter{}, hr.Month{Year: 2024, Month: 1}.Range()); !errors.Is(err, storeErr) {
		t.Errorf("store error = %v, want wrapped %v", err, storeErr)
	}
}

func TestAttendanceReport(t *testing.T) {
	e := NewEngine(&fakeSource{staff: testStaff})

	rep, err := e.AttendanceReport(context.Background(), hr.StaffFilter{}, hr.Month{Year: 2024, Month: time.February})
	if err != nil {
		t.Fatalf("AttendanceReport() error = %v", err)
	}
	if rep.Month != "2024-02" || rep.Start != "2024-02-01" || rep.End != "2024-02-29" || rep.Days != 29 {
		t.Errorf("report period = %s %s..%s (%d days)", rep.Month, rep.Start, rep.End, rep.Days)
	}
	if len(rep.Summaries) != 3 {
		t.Errorf("summaries = %d, want 3", len(rep.Summaries))
	}

	if _, err := e.AttendanceReport(context.Background(), hr.StaffFilter{}, hr.Month{}); !errors.Is(err, hr.ErrInvalidPeriod) {
		t.Errorf("zero month error = %v, want ErrInvalidPeriod", err)
	}
}

var testCategories = []hr.LeaveCategory{
	{ID: 1, Name: "Annual", AnnualQuota: dec("20"), CarryForward: true, MaxCarryForward: dec("5")},
	{ID: 2, Name: "Sick", AnnualQuota: dec("10")},
}

func request(staff, category int64, start time.Time, days string, status hr.ApprovalStatus) hr.TimeOffRequest {
	return hr.TimeOffRequest{
		StaffID: staff, CategoryID: category, StartDate: start, EndDate: start,
		TotalDays: dec(days), ApprovalStatus: status,
	}
}

func TestLeaveBalancesApprovedOnly(t *testing.T) {
	src := &fakeSource{
		staff:      testStaff,
		categories: testCategories,
		requests: []hr.TimeOffRequest{
			request(1, 2, day(time.February, 1), "2", hr.ApprovalApproved),
			request(1, 2, day(time.March, 1), "1.5", hr.ApprovalApproved),
			request(1, 2, day(time.April, 1), "3", hr.ApprovalPending),
			request(1, 2, day(time.May, 1), "4", hr.ApprovalDeclined),
			request(1, 2, hr.Date(2025, time.January, 2), "1", hr.ApprovalApproved),
			request(2, 2, day(time.February, 1), "7", hr.ApprovalApproved),
		},
	}

	got, err := NewEngine(src).LeaveBalances(context.Background(), 1, 2024)
	if err != nil {
		t.Fatalf("LeaveBalances() error = %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("len = %d, want one per category", len(got))
	}

	sick := got[1]
	if !sick.Used.Equal(dec("3.5")) {
		t.Errorf("Used = %s, want 3.5 (approved only)", sick.Used)
	}
	if !sick.Allocated.Equal(dec("10")) || !sick.Remaining.Equal(sick.Allocated.Sub(sick.Used)) {
		t.Errorf("sick = %+v", sick)
	}
}

func TestLeaveBalancesRemainingUnclamped(t *testing.T) {
	src := &fakeSource{
		categories: []hr.LeaveCategory{{ID: 2, Name: "Sick", AnnualQuota: dec("3")}},
		requests: []hr.TimeOffRequest{
			request(1, 2, day(time.June, 3), "5", hr.ApprovalApproved),
		},
	}

	got, err := NewEngine(src).LeaveBalances(context.Background(), 1, 2024)
	if err != nil {
		t.Fatalf("LeaveBalances() error = %v", err)
	}
	if !got[0].Remaining.Equal(dec("-2")) {
		t.Errorf("Remaining = %s, want -2", got[0].Remaining)
	}
}

func TestLeaveBalancesCarryForward(t *testing.T) {
	tests := []struct {
		name        string
		prevUsed    string
		wantCarried string
	}{
		{name: "capped at max", prevUsed: "4", wantCarried: "5"},
		{name: "less than max", prevUsed: "17", wantCarried: "3"},
		{name: "overdrawn carries nothing", prevUsed: "25", wantCarried: "0"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			src := &fakeSource{
				categories: testCategories,
				requests: []hr.TimeOffRequest{
					request(1, 1, hr.Date(2023, time.August, 1), tt.prevUsed, hr.ApprovalApproved),
					request(1, 1, hr.Date(2023, time.September, 1), "9", hr.ApprovalDeclined),
					request(1, 1, day(time.March, 1), "2", hr.ApprovalApproved),
					request(1, 2, hr.Date(2023, time.August, 1), "1", hr.ApprovalApproved),
				},
			}

			got, err := NewEngine(src).LeaveBalances(context.Background(), 1, 2024)
			if err != nil {
				t.Fatalf("LeaveBalances() error = %v", err)
			}

			annual := got[0]
			wantAllocated := dec("20").Add(dec(tt.wantCarried))
			if !annual.CarriedForward.Equal(dec(tt.wantCarried)) || !annual.Allocated.Equal(wantAllocated) {
				t.Errorf("carried %s allocated %s, want %s / %s", annual.CarriedForward, annual.Allocated, tt.wantCarried, wantAllocated)
			}
			if !annual.Used.Equal(dec("2")) {
				t.Errorf("Used = %s, want 2 (previous year excluded)", annual.Used)
			}

			sick := got[1]
			if !sick.CarriedForward.IsZero() || !sick.Allocated.Equal(dec("10")) || !sick.Used.IsZero() {
				t.Errorf("sick = %+v, want no carry-forward and no usage", sick)
			}
		})
	}
}

func TestLeaveBalancesYearIsExplicit(t *testing.T) {
	src := &fakeSource{
		categories: []hr.LeaveCategory{{ID: 2, Name: "Sick", AnnualQuota: dec("10")}},
		requests: []hr.TimeOffRequest{
			request(1, 2, hr.Date(2022, time.May, 1), "4", hr.ApprovalApproved),
		},
	}
	e := NewEngine(src)

	for year, want := range map[hr.AccountingYear]string{2022: "4", 2023: "0"} {
		got, err := e.LeaveBalances(context.Background(), 1, year)
		if err != nil {
			t.Fatalf("LeaveBalances(%d) error = %v", year, err)
		}
		if !got[0].Used.Equal(dec(want)) {
			t.Errorf("LeaveBalances(%d) used = %s, want %s", year, got[0].Used, want)
		}
	}
}

func TestAllLeaveBalances(t *testing.T) {
	src := &fakeSource{
		staff:      testStaff,
		categories: testCategories,
		requests: []hr.TimeOffRequest{
			request(1, 2, day(time.March, 1), "1", hr.ApprovalApproved),
			request(2, 2, day(time.March, 1), "2", hr.ApprovalApproved),
			request(3, 2, day(time.March, 1), "3", hr.ApprovalApproved),
		},
	}

	got, err := NewEngine(src).AllLeaveBalances(context.Background(), hr.StaffFilter{Status: hr.EmploymentActive}, 2024)
	if err != nil {
		t.Fatalf("AllLeaveBalances() error = %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("len = %d, want 2 active staff", len(got))
	}
	for _, sb := range got {
		want := map[int64]string{1: "1", 2: "2"}[sb.StaffID]
		if len(sb.Balances) != 2 || !sb.Balances[1].Used.Equal(dec(want)) {
			t.Errorf("staff %d balances = %+v, want sick used %s", sb.StaffID, sb.Balances, want)
		}
	}
}

func TestStaffLeaveBalances(t *testing.T) {
	src := &fakeSource{
		staff:      testStaff,
		categories: testCategories,
		requests: []hr.TimeOffRequest{
			request(2, 2, day(time.March, 1), "2", hr.ApprovalApproved),
		},
	}
	e := NewEngine(src)

	got, err := e.StaffLeaveBalances(context.Background(), 2, 2024)
	if err != nil {
		t.Fatalf("StaffLeaveBalances() error = %v", err)
	}
	if got.StaffCode != "EMP002" || got.StaffName != "Grace Hopper" {
		t.Errorf("staff = %s %q, want EMP002 Grace Hopper", got.StaffCode, got.StaffName)
	}
	if !got.Balances[1].Used.Equal(dec("2")) {
		t.Errorf("sick used = %s, want 2", got.Balances[1].Used)
	}

	if _, err := e.StaffLeaveBalances(context.Background(), 99, 2024); !errors.Is(err, hr.ErrNotFound) {
		t.Errorf("unknown staff error = %v, want hr.ErrNotFound", err)
	}
}

func TestLeaveReport(t *testing.T) {
	src := &fakeSource{
		staff:      testStaff,
		categories: testCategories,
		requests: []hr.TimeOffRequest{
			request(1, 1, day(time.March, 4), "3", hr.ApprovalApproved),
			request(1, 2, day(time.March, 10), "1", hr.ApprovalPending),
			request(2, 1, day(time.March, 20), "2.5", hr.ApprovalApproved),
			request(2, 2, day(time.March, 28), "1", hr.ApprovalDeclined),
			request(2, 2, day(time.April, 2), "1", hr.ApprovalApproved),
		},
	}
	e := NewEngine(src)

	rep, err := e.LeaveReport(context.Background(), LeaveQuery{Year: 2024, Month: 3})
	if err != nil {
		t.Fatalf("LeaveReport() error = %v", err)
	}

	wantSummary := LeaveSummary{Total: 4, Approved: 2, Pending: 1, Declined: 1, ApprovedDays: dec("5.5"), Staff: 2}
	if rep.Summary.Total != wantSummary.Total || rep.Summary.Approved != wantSummary.Approved ||
		rep.Summary.Pending != wantSummary.Pending || rep.Summary.Declined != wantSummary.Declined ||
		!rep.Summary.ApprovedDays.Equal(wantSummary.ApprovedDays) || rep.Summary.Staff != wantSummary.Staff {
		t.Errorf("Summary = %+v, want %+v", rep.Summary, wantSummary)
	}
	if len(rep.Requests) != 4 || rep.Start != "2024-03-01" || rep.End != "2024-03-31" {
		t.Errorf("requests %d window %s..%s", len(rep.Requests), rep.Start, rep.End)
	}
	if len(rep.ByCategory) != 2 {
		t.Fatalf("ByCategory = %d, want 2", len(rep.ByCategory))
	}
	annual := rep.ByCategory[0]
	if annual.CategoryName != "Annual" || annual.Approved != 2 || !annual.ApprovedDays.Equal(dec("5.5")) || annual.Staff != 2 {
		t.Errorf("Annual = %+v", annual)
	}

	rep, err = e.LeaveReport(context.Background(), LeaveQuery{Year: 2024, CategoryID: 2, StaffID: 2})
	if err != nil {
		t.Fatalf("LeaveReport(filtered) error = %v", err)
	}
	if rep.Summary.Total != 2 || len(rep.ByCategory) != 1 || rep.ByCategory[0].CategoryID != 2 {
		t.Errorf("filtered report = %+v", rep)
	}
}

func TestLeaveQueryRange(t *testing.T) {
	tests := []struct {
		q       LeaveQuery
		want    string
		wantErr bool
	}{
		{q: LeaveQuery{Year: 2024}, want: "2024-01-01..2024-12-31"},
		{q: LeaveQuery{Year: 2024, Month: 2}, want: "2024-02-01..2024-02-29"},
		{q: LeaveQuery{Year: 2024, Month: 13}, wantErr: true},
		{q: LeaveQuery{Year: 24}, wantErr: true},
	}

	for _, tt := range tests {
		got, err := tt.q.Range()
		if tt.wantErr {
			if !errors.Is(err, hr.ErrInvalidPeriod) {
				t.Errorf("Range(%+v) error = %v, want ErrInvalidPeriod", tt.q, err)
			}
			continue
		}
		if s := got.Start.Format(hr.DateLayout) + ".." + got.End.Format(hr.DateLayout); err != nil || s != tt.want {
			t.Errorf("Range(%+v) = %s, %v; want %s", tt.q, s, err, tt.want)
		}
	}
}
