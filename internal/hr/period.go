package hr

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// DateLayout is the wire format for calendar dates.
const DateLayout = "2006-01-02"

// MonthLayout is the wire format for reporting and payroll periods.
const MonthLayout = "2006-01"

// ErrInvalidPeriod wraps every malformed month, year or date range.
var ErrInvalidPeriod = errors.New("invalid period")

// Date returns midnight UTC for the given calendar day.
func Date(year int, month time.Month, day int) time.Time {
	return time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
}

// DateOf drops the time of day from t, keeping t's calendar day.
func DateOf(t time.Time) time.Time {
	return Date(t.Year(), t.Month(), t.Day())
}

// FormatDate renders t as YYYY-MM-DD, or "" for nil.
func FormatDate(t *time.Time) string {
	if t == nil || t.IsZero() {
		return ""
	}
	return t.Format(DateLayout)
}

// ParseDate parses a strict YYYY-MM-DD value.
func ParseDate(s string) (time.Time, error) {
	t, err := time.Parse(DateLayout, strings.TrimSpace(s))
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: date %q must be YYYY-MM-DD", ErrInvalidPeriod, s)
	}
	return t, nil
}

// Month is a calendar month.
type Month struct {
	Year  int
	Month time.Month
}

// ParseMonth parses a YYYY-MM value.
func ParseMonth(s string) (Month, error) {
	t, err := time.Parse(MonthLayout, strings.TrimSpace(s))
	if err != nil {
		return Month{}, fmt.Errorf("%w: month %q must be YYYY-MM", ErrInvalidPeriod, s)
	}
	return Month{Year: t.Year(), Month: t.Month()}, nil
}

func (m Month) String() string {
	return fmt.Sprintf("%04d-%02d", m.Year, int(m.Month))
}

// IsZero reports whether m is unset.
func (m Month) IsZero() bool { return m.Year == 0 && m.Month == 0 }

// Range returns the first and last day of the month.
func (m Month) Range() DateRange {
	first := Date(m.Year, m.Month, 1)
	return DateRange{Start: first, End: first.AddDate(0, 1, -1)}
}

// Days returns the number of days in the month.
func (m Month) Days() int {
	return m.Range().Days()
}

// DateRange is a closed interval of calendar days.
type DateRange struct {
	Start time.Time
	End   time.Time
}

// NewDateRange builds a range, rejecting start after end.
func NewDateRange(start, end time.Time) (DateRange, error) {
	start, end = DateOf(start), DateOf(end)
	if start.After(end) {
		return DateRange{}, fmt.Errorf("%w: start %s is after end %s",
			ErrInvalidPeriod, start.Format(DateLayout), end.Format(DateLayout))
	}
	return DateRange{Start: start, End: end}, nil
}

// ParseDateRange parses two YYYY-MM-DD bounds. Both are required.
func ParseDateRange(start, end string) (DateRange, error) {
	if strings.TrimSpace(start) == "" || strings.TrimSpace(end) == "" {
		return DateRange{}, fmt.Errorf("%w: start and end dates are required", ErrInvalidPeriod)
	}
	s, err := ParseDate(start)
	if err != nil {
		return DateRange{}, err
	}
	e, err := ParseDate(end)
	if err != nil {
		return DateRange{}, err
	}
	return NewDateRange(s, e)
}

// IsZero reports whether the range is unset.
func (r DateRange) IsZero() bool { return r.Start.IsZero() && r.End.IsZero() }

// Contains reports whether t's calendar day lies within the range.
func (r DateRange) Contains(t time.Time) bool {
	d := DateOf(t)
	return !d.Before(r.Start) && !d.After(r.End)
}

// Days returns the number of calendar days in the range, both ends included.
func (r DateRange) Days() int {
	if r.IsZero() {
		return 0
	}
	return int(r.End.Sub(r.Start).Hours()/24) + 1
}

// AccountingYear is the calendar year leave allocation and usage are reckoned against.
type AccountingYear int

// ResolveAccountingYear returns the configured year, or now's year when
// configured is zero.
func ResolveAccountingYear(configured int, now time.Time) AccountingYear {
	if configured > 0 {
		return AccountingYear(configured)
	}
	return AccountingYear(now.Year())
}

// ParseAccountingYear validates a four-digit year.
func ParseAccountingYear(year int) (AccountingYear, error) {
	if year < 1900 || year > 9999 {
		return 0, fmt.Errorf("%w: year %d out of range", ErrInvalidPeriod, year)
	}
	return AccountingYear(year), nil
}

// Range returns January 1 through December 31.
func (y AccountingYear) Range() DateRange {
	return DateRange{Start: Date(int(y), time.January, 1), End: Date(int(y), time.December, 31)}
}

// Previous returns the year before y.
func (y AccountingYear) Previous() AccountingYear { return y - 1 }
