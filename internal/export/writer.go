// Package export streams HR records to CSV with fixed column contracts.
package export

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/shopspring/decimal"

	"github.com/JonMunkholm/hrpipe/internal/hr"
)

// FlushEvery is how many rows are buffered before the writer flushes.
var FlushEvery = 500

// Column is one output column: a header name and how to render a record.
type Column[T any] struct {
	Name  string
	Value func(T) string
}

// Header returns the column names.
func Header[T any](cols []Column[T]) []string {
	names := make([]string, len(cols))
	for i, c := range cols {
		names[i] = c.Name
	}
	return names
}

// Write writes the header and then one row per record yielded by each.
// Records are never collected; each drives the iteration and stops it by
// returning an error.
func Write[T any](w io.Writer, cols []Column[T], each func(yield func(T) error) error) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(Header(cols)); err != nil {
		return fmt.Errorf("write header: %w", err)
	}

	row := make([]string, len(cols))
	n := 0
	err := each(func(rec T) error {
		for i, c := range cols {
			row[i] = c.Value(rec)
		}
		if err := cw.Write(row); err != nil {
			return err
		}
		n++
		if FlushEvery > 0 && n%FlushEvery == 0 {
			cw.Flush()
			return cw.Error()
		}
		return nil
	})
	if err != nil {
		return err
	}

	cw.Flush()
	return cw.Error()
}

func formatDate(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format(hr.DateLayout)
}

func formatMoney(d decimal.Decimal) string { return d.StringFixed(2) }

func formatDays(d decimal.Decimal) string { return d.String() }

func formatInt(n int) string { return strconv.Itoa(n) }
