// Package store persists HR records. Postgres is the production
// implementation on a pgx pool; Memory keeps everything in process for
// tests and dry runs. Both satisfy the import, report and export ports.
package store

import (
	"errors"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/shopspring/decimal"

	"github.com/JonMunkholm/hrpipe/internal/hr"
)

// ErrDuplicate is returned when a write collides with a unique key.
var ErrDuplicate = errors.New("duplicate value")

// whereBuilder accumulates AND-ed conditions with positional arguments.
type whereBuilder struct {
	conds []string
	args  []any
}

// add appends "col = $n" unless value is the zero value of its type.
func (wb *whereBuilder) add(col string, value any) {
	switch v := value.(type) {
	case string:
		if v == "" {
			return
		}
	case int64:
		if v == 0 {
			return
		}
	}
	wb.args = append(wb.args, value)
	wb.conds = append(wb.conds, fmt.Sprintf("%s = $%d", col, len(wb.args)))
}

// addDateRange bounds col to r inclusively. A zero range adds nothing.
func (wb *whereBuilder) addDateRange(col string, r hr.DateRange) {
	if r.IsZero() {
		return
	}
	wb.args = append(wb.args, r.Start, r.End)
	n := len(wb.args)
	wb.conds = append(wb.conds, fmt.Sprintf("%s BETWEEN $%d AND $%d", col, n-1, n))
}

func (wb *whereBuilder) addStaff(f hr.StaffFilter) {
	wb.add("s.id", f.StaffID)
	wb.add("s.office_location_id", f.LocationID)
	wb.add("s.division_id", f.DivisionID)
	wb.add("s.employment_status", string(f.Status))
}

func (wb *whereBuilder) build() (string, []any) {
	if len(wb.conds) == 0 {
		return "", wb.args
	}
	return " WHERE " + strings.Join(wb.conds, " AND "), wb.args
}

func toNumeric(d decimal.Decimal) pgtype.Numeric {
	return pgtype.Numeric{Int: d.Coefficient(), Exp: d.Exponent(), Valid: true}
}

func fromNumeric(n pgtype.Numeric) decimal.Decimal {
	if !n.Valid || n.Int == nil {
		return decimal.Zero
	}
	return decimal.NewFromBigInt(new(big.Int).Set(n.Int), n.Exp)
}

func toDate(t *time.Time) pgtype.Date {
	if t == nil || t.IsZero() {
		return pgtype.Date{}
	}
	return pgtype.Date{Time: *t, Valid: true}
}

func fromDate(d pgtype.Date) *time.Time {
	if !d.Valid {
		return nil
	}
	t := hr.DateOf(d.Time)
	return &t
}

const microsPerMinute = int64(time.Minute / time.Microsecond)

func toTime(c hr.ClockTime) pgtype.Time {
	if !c.Valid {
		return pgtype.Time{}
	}
	return pgtype.Time{Microseconds: int64(c.Minutes) * microsPerMinute, Valid: true}
}

func fromTime(t pgtype.Time) hr.ClockTime {
	if !t.Valid {
		return hr.ClockTime{}
	}
	return hr.ClockTime{Minutes: int(t.Microseconds / microsPerMinute), Valid: true}
}

func nullText(s string) pgtype.Text {
	return pgtype.Text{String: s, Valid: s != ""}
}

// translateError turns constraint violations into messages that read well
// as row errors.
func translateError(err error) error {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return err
	}
	switch pgErr.Code {
	case "23505":
		return fmt.Errorf("%w: %s", ErrDuplicate, constraintField(pgErr.ConstraintName))
	case "23514":
		return fmt.Errorf("value out of range: %s", pgErr.ConstraintName)
	}
	return err
}

// constraintField extracts the column from names like
// "staff_members_staff_code_key".
func constraintField(name string) string {
	for _, col := range []string{"staff_code", "personal_email", "holiday_date"} {
		if strings.Contains(name, col) {
			return col
		}
	}
	return name
}
