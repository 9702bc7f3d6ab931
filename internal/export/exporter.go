package export

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/JonMunkholm/hrpipe/internal/hr"
)

// ErrUnknownKind is returned for an unsupported export name.
var ErrUnknownKind = errors.New("unknown export kind")

// Kind identifies an export.
type Kind uint8

const (
	Staff Kind = iota
	Attendance
	Leaves
	Payroll

	numKinds
)

var kindNames = [numKinds]string{
	Staff:      "staff",
	Attendance: "attendance",
	Leaves:     "leaves",
	Payroll:    "payroll",
}

// ParseKind resolves an export name.
func ParseKind(name string) (Kind, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	for k, n := range kindNames {
		if n == name {
			return Kind(k), nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownKind, name)
}

func (k Kind) String() string {
	if k >= numKinds {
		return fmt.Sprintf("Kind(%d)", uint8(k))
	}
	return kindNames[k]
}

// Source streams records in a stable order.
type Source interface {
	EachStaff(ctx context.Context, filter hr.StaffFilter, fn func(hr.Staff) error) error
	EachWorkLog(ctx context.Context, filter hr.WorkLogFilter, fn func(hr.WorkLog) error) error
	EachTimeOff(ctx context.Context, filter hr.TimeOffFilter, fn func(hr.TimeOffRequest) error) error
	EachSalarySlip(ctx context.Context, filter hr.SalaryFilter, fn func(hr.SalarySlip) error) error
}

var staffColumns = []Column[hr.Staff]{
	{"staff_code", func(s hr.Staff) string { return s.Code }},
	{"first_name", func(s hr.Staff) string { return s.FirstName }},
	{"last_name", func(s hr.Staff) string { return s.LastName }},
	{"personal_email", func(s hr.Staff) string { return s.PersonalEmail }},
	{"phone_number", func(s hr.Staff) string { return s.PhoneNumber }},
	{"date_of_birth", func(s hr.Staff) string { return hr.FormatDate(s.DateOfBirth) }},
	{"gender", func(s hr.Staff) string { return s.Gender }},
	{"hire_date", func(s hr.Staff) string { return formatDate(s.HireDate) }},
	{"base_salary", func(s hr.Staff) string { return formatMoney(s.BaseSalary) }},
	{"employment_status", func(s hr.Staff) string { return string(s.EmploymentStatus) }},
	{"office_location", func(s hr.Staff) string { return s.OfficeLocation }},
	{"division", func(s hr.Staff) string { return s.Division }},
	{"job_title", func(s hr.Staff) string { return s.JobTitle }},
}

var attendanceColumns = []Column[hr.WorkLog]{
	{"staff_code", func(w hr.WorkLog) string { return w.StaffCode }},
	{"staff_name", func(w hr.WorkLog) string { return w.StaffName }},
	{"log_date", func(w hr.WorkLog) string { return formatDate(w.LogDate) }},
	{"status", func(w hr.WorkLog) string { return string(w.Status) }},
	{"clock_in", func(w hr.WorkLog) string { return w.ClockIn.String() }},
	{"clock_out", func(w hr.WorkLog) string { return w.ClockOut.String() }},
	{"late_minutes", func(w hr.WorkLog) string { return formatInt(w.LateMinutes) }},
	{"overtime_minutes", func(w hr.WorkLog) string { return formatInt(w.OvertimeMinutes) }},
	{"early_leave_minutes", func(w hr.WorkLog) string { return formatInt(w.EarlyLeaveMinutes) }},
}

var leaveColumns = []Column[hr.TimeOffRequest]{
	{"staff_code", func(r hr.TimeOffRequest) string { return r.StaffCode }},
	{"staff_name", func(r hr.TimeOffRequest) string { return r.StaffName }},
	{"category", func(r hr.TimeOffRequest) string { return r.CategoryName }},
	{"start_date", func(r hr.TimeOffRequest) string { return formatDate(r.StartDate) }},
	{"end_date", func(r hr.TimeOffRequest) string { return formatDate(r.EndDate) }},
	{"total_days", func(r hr.TimeOffRequest) string { return formatDays(r.TotalDays) }},
	{"approval_status", func(r hr.TimeOffRequest) string { return string(r.ApprovalStatus) }},
	{"reason", func(r hr.TimeOffRequest) string { return r.Reason }},
}

var payrollColumns = []Column[hr.SalarySlip]{
	{"staff_code", func(s hr.SalarySlip) string { return s.StaffCode }},
	{"staff_name", func(s hr.SalarySlip) string { return s.StaffName }},
	{"period", func(s hr.SalarySlip) string { return s.Period.String() }},
	{"basic_salary", func(s hr.SalarySlip) string { return formatMoney(s.BasicSalary) }},
	{"allowances", func(s hr.SalarySlip) string { return formatMoney(s.Allowances) }},
	{"deductions", func(s hr.SalarySlip) string { return formatMoney(s.Deductions) }},
	{"net_salary", func(s hr.SalarySlip) string { return formatMoney(s.NetSalary) }},
	{"payment_status", func(s hr.SalarySlip) string { return s.PaymentStatus }},
}

// Columns returns the header of an export kind.
func Columns(k Kind) []string {
	switch k {
	case Staff:
		return Header(staffColumns)
	case Attendance:
		return Header(attendanceColumns)
	case Leaves:
		return Header(leaveColumns)
	case Payroll:
		return Header(payrollColumns)
	}
	return nil
}

// Request selects the records of one export. Attendance and Leaves need
// Range; Payroll needs Period.
type Request struct {
	Kind   Kind
	Staff  hr.StaffFilter
	Range  hr.DateRange
	Period hr.Month
}

// Validate checks the period parameters the kind requires.
func (r Request) Validate() error {
	switch r.Kind {
	case Staff:
		return nil
	case Attendance, Leaves:
		if r.Range.IsZero() {
			return fmt.Errorf("%w: %s export requires start and end dates", hr.ErrInvalidPeriod, r.Kind)
		}
		if r.Range.Start.After(r.Range.End) {
			return fmt.Errorf("%w: start is after end", hr.ErrInvalidPeriod)
		}
		return nil
	case Payroll:
		if r.Period.IsZero() {
			return fmt.Errorf("%w: payroll export requires a YYYY-MM period", hr.ErrInvalidPeriod)
		}
		return nil
	}
	return fmt.Errorf("%w: %s", ErrUnknownKind, r.Kind)
}

// FileName suggests a download name for the export.
func (r Request) FileName() string {
	switch r.Kind {
	case Attendance, Leaves:
		return fmt.Sprintf("%s_%s_%s.csv", r.Kind, formatDate(r.Range.Start), formatDate(r.Range.End))
	case Payroll:
		return fmt.Sprintf("payroll_%s.csv", r.Period)
	}
	return r.Kind.String() + ".csv"
}

// Exporter writes exports from a Source.
type Exporter struct {
	src Source
}

// New creates an Exporter.
func New(src Source) *Exporter {
	return &Exporter{src: src}
}

// Export validates req and streams the matching records to w.
func (e *Exporter) Export(ctx context.Context, w io.Writer, req Request) error {
	if err := req.Validate(); err != nil {
		return err
	}

	switch req.Kind {
	case Staff:
		return Write(w, staffColumns, func(yield func(hr.Staff) error) error {
			return e.src.EachStaff(ctx, req.Staff, yield)
		})
	case Attendance:
		filter := hr.WorkLogFilter{Staff: req.Staff, Range: req.Range}
		return Write(w, attendanceColumns, func(yield func(hr.WorkLog) error) error {
			return e.src.EachWorkLog(ctx, filter, yield)
		})
	case Leaves:
		filter := hr.TimeOffFilter{Staff: req.Staff, StartRange: req.Range}
		return Write(w, leaveColumns, func(yield func(hr.TimeOffRequest) error) error {
			return e.src.EachTimeOff(ctx, filter, yield)
		})
	default:
		filter := hr.SalaryFilter{Staff: req.Staff, Period: req.Period}
		return Write(w, payrollColumns, func(yield func(hr.SalarySlip) error) error {
			return e.src.EachSalarySlip(ctx, filter, yield)
		})
	}
}
