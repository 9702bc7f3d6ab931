package hr

import (
	"fmt"
	"strings"
	"time"
)

// ClockTime is a time of day with minute precision. The zero value means
// no time was recorded.
type ClockTime struct {
	Minutes int
	Valid   bool
}

// NewClockTime builds a valid ClockTime from hours and minutes.
func NewClockTime(hour, minute int) ClockTime {
	return ClockTime{Minutes: hour*60 + minute, Valid: true}
}

var clockLayouts = []string{"15:04", "15:04:05", "3:04 PM", "3:04PM", "3:04:05 PM"}

// ParseClockTime accepts 24-hour and 12-hour forms. Blank yields an invalid
// ClockTime and no error.
func ParseClockTime(s string) (ClockTime, error) {
	s = strings.ToUpper(strings.TrimSpace(s))
	if s == "" {
		return ClockTime{}, nil
	}
	for _, layout := range clockLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return NewClockTime(t.Hour(), t.Minute()), nil
		}
	}
	return ClockTime{}, fmt.Errorf("invalid time %q", s)
}

// String renders HH:MM, or "" when invalid.
func (c ClockTime) String() string {
	if !c.Valid {
		return ""
	}
	return fmt.Sprintf("%02d:%02d", c.Minutes/60, c.Minutes%60)
}

// Shift is the expected working window used to derive late, overtime and
// early-leave minutes.
type Shift struct {
	Start        ClockTime
	End          ClockTime
	GraceMinutes int
}

// Deviations returns late, overtime and early-leave minutes for the given
// clock times. All three are zero unless both times and the shift are valid.
func (s Shift) Deviations(in, out ClockTime) (late, overtime, early int) {
	if !in.Valid || !out.Valid || !s.Start.Valid || !s.End.Valid {
		return 0, 0, 0
	}
	if in.Minutes > s.Start.Minutes+s.GraceMinutes {
		late = in.Minutes - s.Start.Minutes
	}
	if out.Minutes > s.End.Minutes {
		overtime = out.Minutes - s.End.Minutes
	}
	if out.Minutes < s.End.Minutes {
		early = s.End.Minutes - out.Minutes
	}
	return late, overtime, early
}
