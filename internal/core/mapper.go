package core

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"github.com/JonMunkholm/hrpipe/internal/hr"
)

// StaffNotFoundError is the row failure for an unresolvable staff code.
type StaffNotFoundError struct {
	Code string
}

func (e *StaffNotFoundError) Error() string {
	return "Staff not found: " + e.Code
}

// Is lets callers match the failure with errors.Is(err, hr.ErrNotFound).
func (e *StaffNotFoundError) Is(target error) bool { return target == hr.ErrNotFound }

func requiredField(col string) error {
	return fmt.Errorf("%s is required", col)
}

func invalidField(col, value string) error {
	return fmt.Errorf("invalid %s: %q", col, value)
}

// MapperOptions configures defaulting and derivation rules.
type MapperOptions struct {
	// Shift is the working window late/overtime/early-leave minutes are
	// measured against.
	Shift hr.Shift

	// StaffUpsertByEmail switches staff rows from insert to upsert.
	StaffUpsertByEmail bool

	// Now supplies the import timestamp; defaults to time.Now.
	Now func() time.Time
}

// Mapper converts field maps into domain records, applying the import
// defaulting policy:
//
//   - blank employment_status is active
//   - blank hire_date is the import date
//   - blank attendance status is present
//   - blank is_optional is false
//   - blank numbers are zero and blank optional dates are nil
type Mapper struct {
	lookup      StaffLookup
	shift       hr.Shift
	upsertStaff bool
	now         func() time.Time
}

// NewMapper creates a Mapper resolving staff codes through lookup.
func NewMapper(lookup StaffLookup, opts MapperOptions) *Mapper {
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	return &Mapper{
		lookup:      lookup,
		shift:       opts.Shift,
		upsertStaff: opts.StaffUpsertByEmail,
		now:         now,
	}
}

// MapStaff builds a staff record. Office location, division and job title
// are not read; they stay unset until assigned in the HR system.
func (m *Mapper) MapStaff(f Fields) (hr.Staff, error) {
	now := m.now()
	s := hr.Staff{
		Code:          strings.ToUpper(f.Get("staff_code")),
		FirstName:     f.Get("first_name"),
		LastName:      f.Get("last_name"),
		PersonalEmail: strings.ToLower(f.Get("personal_email")),
		PhoneNumber:   f.Get("phone_number"),
	}

	if s.FirstName == "" {
		return hr.Staff{}, requiredField("first_name")
	}
	if s.LastName == "" {
		return hr.Staff{}, requiredField("last_name")
	}
	if s.PersonalEmail != "" {
		if _, err := mail.ParseAddress(s.PersonalEmail); err != nil {
			return hr.Staff{}, invalidField("personal_email", s.PersonalEmail)
		}
	}

	dob, err := parseDate(f.Get("date_of_birth"), now)
	if err != nil {
		return hr.Staff{}, invalidField("date_of_birth", f.Get("date_of_birth"))
	}
	s.DateOfBirth = dob

	if s.Gender, err = hr.ParseGender(f.Get("gender")); err != nil {
		return hr.Staff{}, err
	}

	hire, err := parseDate(f.Get("hire_date"), now)
	if err != nil {
		return hr.Staff{}, invalidField("hire_date", f.Get("hire_date"))
	}
	if hire == nil {
		s.HireDate = hr.DateOf(now)
	} else {
		s.HireDate = *hire
	}

	if s.BaseSalary, err = parseDecimal(f.Get("base_salary")); err != nil {
		return hr.Staff{}, invalidField("base_salary", f.Get("base_salary"))
	}
	if s.BaseSalary.IsNegative() {
		return hr.Staff{}, errors.New("base_salary must not be negative")
	}

	s.EmploymentStatus = hr.EmploymentActive
	if v := f.Get("employment_status"); v != "" {
		if s.EmploymentStatus, err = hr.ParseEmploymentStatus(v); err != nil {
			return hr.Staff{}, err
		}
	}

	return s, nil
}

// MapWorkLog builds a work log, resolving staff_code to a staff id.
// Late, overtime and early-leave minutes are derived for present days with
// both clock times.
func (m *Mapper) MapWorkLog(ctx context.Context, f Fields) (hr.WorkLog, error) {
	code := strings.ToUpper(f.Get("staff_code"))
	if code == "" {
		return hr.WorkLog{}, requiredField("staff_code")
	}

	raw := f.Get("log_date")
	if raw == "" {
		return hr.WorkLog{}, requiredField("log_date")
	}
	date, err := parseDate(raw, m.now())
	if err != nil {
		return hr.WorkLog{}, invalidField("log_date", raw)
	}

	w := hr.WorkLog{StaffCode: code, LogDate: *date, Status: hr.AttendancePresent}
	if v := f.Get("status"); v != "" {
		if w.Status, err = hr.ParseAttendanceStatus(v); err != nil {
			return hr.WorkLog{}, err
		}
	}

	if w.ClockIn, err = hr.ParseClockTime(f.Get("clock_in")); err != nil {
		return hr.WorkLog{}, invalidField("clock_in", f.Get("clock_in"))
	}
	if w.ClockOut, err = hr.ParseClockTime(f.Get("clock_out")); err != nil {
		return hr.WorkLog{}, invalidField("clock_out", f.Get("clock_out"))
	}
	if w.ClockIn.Valid && w.ClockOut.Valid && w.ClockOut.Minutes < w.ClockIn.Minutes {
		return hr.WorkLog{}, fmt.Errorf("clock_out %s is before clock_in %s", w.ClockOut, w.ClockIn)
	}

	if w.Status == hr.AttendancePresent {
		w.LateMinutes, w.OvertimeMinutes, w.EarlyLeaveMinutes = m.shift.Deviations(w.ClockIn, w.ClockOut)
	}

	// Resolve last so format errors are reported without a store round trip.
	id, err := m.lookup.StaffIDByCode(ctx, code)
	if errors.Is(err, hr.ErrNotFound) {
		return hr.WorkLog{}, &StaffNotFoundError{Code: code}
	}
	if err != nil {
		return hr.WorkLog{}, fmt.Errorf("lookup staff %s: %w", code, err)
	}
	w.StaffID = id

	return w, nil
}

// MapHoliday builds a holiday record.
func (m *Mapper) MapHoliday(f Fields) (hr.Holiday, error) {
	h := hr.Holiday{Title: f.Get("title")}
	if h.Title == "" {
		return hr.Holiday{}, requiredField("title")
	}

	raw := f.Get("holiday_date")
	if raw == "" {
		return hr.Holiday{}, requiredField("holiday_date")
	}
	date, err := parseDate(raw, m.now())
	if err != nil {
		return hr.Holiday{}, invalidField("holiday_date", raw)
	}
	h.Date = *date
	h.IsOptional = parseYesNo(f.Get("is_optional"))

	return h, nil
}
