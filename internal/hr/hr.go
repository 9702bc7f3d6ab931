// Package hr defines the records exchanged by the import, aggregation and
// export pipeline. The store that owns these records lives outside the
// pipeline; only the fields the pipeline reads or writes are modelled here.
package hr

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// ErrNotFound is returned by stores when a lookup key does not resolve.
var ErrNotFound = errors.New("not found")

// EmploymentStatus is the lifecycle state of a staff member.
type EmploymentStatus string

const (
	EmploymentActive     EmploymentStatus = "active"
	EmploymentInactive   EmploymentStatus = "inactive"
	EmploymentOnLeave    EmploymentStatus = "on_leave"
	EmploymentTerminated EmploymentStatus = "terminated"
)

var employmentStatuses = []EmploymentStatus{
	EmploymentActive, EmploymentInactive, EmploymentOnLeave, EmploymentTerminated,
}

// ParseEmploymentStatus matches s case-insensitively against the known statuses.
func ParseEmploymentStatus(s string) (EmploymentStatus, error) {
	v := EmploymentStatus(strings.ToLower(strings.TrimSpace(s)))
	for _, st := range employmentStatuses {
		if v == st {
			return st, nil
		}
	}
	return "", fmt.Errorf("invalid employment_status %q", s)
}

// Gender values accepted on import.
const (
	GenderMale   = "male"
	GenderFemale = "female"
	GenderOther  = "other"
)

// ParseGender normalizes s; blank is allowed and stays blank.
func ParseGender(s string) (string, error) {
	v := strings.ToLower(strings.TrimSpace(s))
	switch v {
	case "":
		return "", nil
	case "m":
		return GenderMale, nil
	case "f":
		return GenderFemale, nil
	case GenderMale, GenderFemale, GenderOther:
		return v, nil
	}
	return "", fmt.Errorf("invalid gender %q", s)
}

// Staff is the import/export projection of an employee.
type Staff struct {
	ID               int64
	Code             string
	FirstName        string
	LastName         string
	PersonalEmail    string
	PhoneNumber      string
	DateOfBirth      *time.Time
	Gender           string
	HireDate         time.Time
	BaseSalary       decimal.Decimal
	EmploymentStatus EmploymentStatus

	LocationID     int64
	OfficeLocation string
	DivisionID     int64
	Division       string
	JobTitle       string
}

// FullName joins first and last name.
func (s Staff) FullName() string {
	return strings.TrimSpace(s.FirstName + " " + s.LastName)
}

// StaffFilter selects a staff population. Zero fields match everything.
type StaffFilter struct {
	LocationID int64
	DivisionID int64
	StaffID    int64
	Status     EmploymentStatus
}

// Match reports whether s belongs to the filtered population.
func (f StaffFilter) Match(s Staff) bool {
	if f.StaffID != 0 && s.ID != f.StaffID {
		return false
	}
	if f.LocationID != 0 && s.LocationID != f.LocationID {
		return false
	}
	if f.DivisionID != 0 && s.DivisionID != f.DivisionID {
		return false
	}
	if f.Status != "" && s.EmploymentStatus != f.Status {
		return false
	}
	return true
}

// AttendanceStatus is the day classification of a work log.
type AttendanceStatus string

const (
	AttendancePresent AttendanceStatus = "present"
	AttendanceAbsent  AttendanceStatus = "absent"
	AttendanceHalfDay AttendanceStatus = "half_day"
	AttendanceOnLeave AttendanceStatus = "on_leave"
	AttendanceHoliday AttendanceStatus = "holiday"
)

// AttendanceStatuses lists every status in reporting order.
var AttendanceStatuses = []AttendanceStatus{
	AttendancePresent, AttendanceAbsent, AttendanceHalfDay, AttendanceOnLeave, AttendanceHoliday,
}

// ParseAttendanceStatus matches s case-insensitively. "half day" and
// "half-day" are accepted for half_day.
func ParseAttendanceStatus(s string) (AttendanceStatus, error) {
	v := strings.ToLower(strings.TrimSpace(s))
	v = strings.NewReplacer(" ", "_", "-", "_").Replace(v)
	for _, st := range AttendanceStatuses {
		if AttendanceStatus(v) == st {
			return st, nil
		}
	}
	return "", fmt.Errorf("invalid status %q", s)
}

// WorkLog is one staff member's attendance for one day.
// (StaffID, LogDate) is unique.
type WorkLog struct {
	ID                int64
	StaffID           int64
	StaffCode         string
	StaffName         string
	LogDate           time.Time
	Status            AttendanceStatus
	ClockIn           ClockTime
	ClockOut          ClockTime
	LateMinutes       int
	OvertimeMinutes   int
	EarlyLeaveMinutes int
}

// WorkLogFilter selects work logs of a staff population within a date range.
type WorkLogFilter struct {
	Staff StaffFilter
	Range DateRange
}

// Holiday is a company holiday; Date is unique.
type Holiday struct {
	ID         int64
	Title      string
	Date       time.Time
	IsOptional bool
}

// LeaveCategory is a kind of leave with a yearly allocation.
type LeaveCategory struct {
	ID              int64
	Name            string
	AnnualQuota     decimal.Decimal
	CarryForward    bool
	MaxCarryForward decimal.Decimal
}

// ApprovalStatus is the review state of a time-off request.
type ApprovalStatus string

const (
	ApprovalPending  ApprovalStatus = "pending"
	ApprovalApproved ApprovalStatus = "approved"
	ApprovalDeclined ApprovalStatus = "declined"
)

// TimeOffRequest is a leave request for a date span.
type TimeOffRequest struct {
	ID             int64           `json:"id"`
	StaffID        int64           `json:"staff_id"`
	StaffCode      string          `json:"staff_code"`
	StaffName      string          `json:"staff_name"`
	CategoryID     int64           `json:"category_id"`
	CategoryName   string          `json:"category"`
	StartDate      time.Time       `json:"start_date"`
	EndDate        time.Time       `json:"end_date"`
	TotalDays      decimal.Decimal `json:"total_days"`
	ApprovalStatus ApprovalStatus  `json:"approval_status"`
	Reason         string          `json:"reason,omitempty"`
}

// TimeOffFilter selects time-off requests. StartRange bounds the request's
// start date; a zero range leaves it unbounded.
type TimeOffFilter struct {
	Staff      StaffFilter
	CategoryID int64
	Status     ApprovalStatus
	StartRange DateRange
}

// SalarySlip is one staff member's payroll result for a month.
type SalarySlip struct {
	ID            int64
	StaffID       int64
	StaffCode     string
	StaffName     string
	Period        Month
	BasicSalary   decimal.Decimal
	Allowances    decimal.Decimal
	Deductions    decimal.Decimal
	NetSalary     decimal.Decimal
	PaymentStatus string
}

// SalaryFilter selects salary slips for one period.
type SalaryFilter struct {
	Staff  StaffFilter
	Period Month
}
