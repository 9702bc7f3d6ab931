package core

// convert.go coerces raw cell text into typed values.
//
// User files are messy: dates come in US, EU and ISO layouts, salaries carry
// currency symbols and thousands separators, and spreadsheet exports wrap
// values in ="..." to stop reformatting. Blank input is never an error here;
// callers decide what blank means for their field.

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// TwoDigitYearPivot defines how 2-digit years are interpreted: years that
// would land more than this many years after the reference date are moved
// back a century.
var TwoDigitYearPivot = 20

var (
	fourDigitYearLayouts = []string{
		"2006-01-02", "2006/01/02", "2006.01.02",
		"1/2/2006", "01/02/2006", "1-2-2006", "01-02-2006", "1.2.2006", "01.02.2006",
		"Jan 2, 2006", "January 2, 2006", "2 Jan 2006", "02-Jan-2006",
		"20060102",
		time.RFC3339,
		"2006-01-02 15:04:05",
	}
	twoDigitYearLayouts = []string{
		"1/2/06", "01/02/06", "1-2-06", "1.2.06", "01.02.06", "02-Jan-06",
	}
)

// parseDate parses s using the accepted layouts. It returns nil for blank
// input. ref anchors the two-digit year pivot.
func parseDate(s string, ref time.Time) (*time.Time, error) {
	s = cleanCell(s)
	if s == "" {
		return nil, nil
	}

	for _, layout := range fourDigitYearLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			d := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
			return &d, nil
		}
	}

	pivotYear := ref.Year() + TwoDigitYearPivot
	for _, layout := range twoDigitYearLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			if t.Year() > pivotYear {
				t = t.AddDate(-100, 0, 0)
			}
			d := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
			return &d, nil
		}
	}

	return nil, fmt.Errorf("unrecognized date %q", s)
}

// parseDecimal parses a numeric cell. Blank yields zero. Currency symbols,
// thousands separators and accounting negatives "(123.45)" are accepted.
func parseDecimal(s string) (decimal.Decimal, error) {
	s = cleanCell(s)
	if s == "" {
		return decimal.Zero, nil
	}

	negative := false
	if strings.HasPrefix(s, "(") && strings.HasSuffix(s, ")") {
		negative = true
		s = strings.TrimSpace(s[1 : len(s)-1])
	}

	s = strings.NewReplacer("$", "", "€", "", "£", "", "₹", "", ",", "", " ", "").Replace(s)

	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, fmt.Errorf("invalid number %q", s)
	}
	if negative {
		d = d.Neg()
	}
	return d, nil
}

// parseYesNo reads a yes/no flag case-insensitively. Anything that is not an
// affirmative value, including blank, is false.
func parseYesNo(s string) bool {
	switch strings.ToLower(cleanCell(s)) {
	case "yes", "y", "true", "t", "1":
		return true
	}
	return false
}

// cleanCell removes common spreadsheet artifacts: surrounding whitespace,
// the ="value" formula wrapper and stray surrounding quotes.
func cleanCell(s string) string {
	s = strings.TrimSpace(s)

	if strings.HasPrefix(s, `="`) && strings.HasSuffix(s, `"`) && len(s) >= 3 {
		s = s[2 : len(s)-1]
	}
	if len(s) >= 2 && strings.HasPrefix(s, `"`) && strings.HasSuffix(s, `"`) {
		s = s[1 : len(s)-1]
	}

	return strings.TrimSpace(s)
}
