package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/JonMunkholm/hrpipe/internal/core"
	"github.com/JonMunkholm/hrpipe/internal/export"
	"github.com/JonMunkholm/hrpipe/internal/hr"
	"github.com/JonMunkholm/hrpipe/internal/report"
)

// DBTX is satisfied by both *pgxpool.Pool and pgx.Tx.
type DBTX interface {
	Exec(context.Context, string, ...any) (pgconn.CommandTag, error)
	Query(context.Context, string, ...any) (pgx.Rows, error)
	QueryRow(context.Context, string, ...any) pgx.Row
}

var (
	_ core.ImportStore = (*Postgres)(nil)
	_ report.Source    = (*Postgres)(nil)
	_ export.Source    = (*Postgres)(nil)
)

// Postgres stores HR records in PostgreSQL.
type Postgres struct {
	pool *pgxpool.Pool
}

// NewPostgres wraps an open pool. The caller owns the pool.
func NewPostgres(pool *pgxpool.Pool) *Postgres {
	return &Postgres{pool: pool}
}

// ----------------------------------------------------------------------------
// Import writes
// ----------------------------------------------------------------------------

func (p *Postgres) StaffIDByCode(ctx context.Context, code string) (int64, error) {
	var id int64
	err := p.pool.QueryRow(ctx, `SELECT id FROM staff_members WHERE staff_code = $1`, code).Scan(&id)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, fmt.Errorf("staff %s: %w", code, hr.ErrNotFound)
	}
	return id, err
}

const staffInsertColumns = `staff_code, first_name, last_name, personal_email, phone_number,
	date_of_birth, gender, hire_date, base_salary, employment_status`

func staffArgs(s *hr.Staff) []any {
	return []any{
		nullText(s.Code), s.FirstName, s.LastName, nullText(s.PersonalEmail), s.PhoneNumber,
		toDate(s.DateOfBirth), s.Gender, s.HireDate, toNumeric(s.BaseSalary), string(s.EmploymentStatus),
	}
}

// InsertStaff inserts s and assigns EMP + zero-padded id when s has no code.
// A repeated personal email is accepted and creates another staff member.
func (p *Postgres) InsertStaff(ctx context.Context, s *hr.Staff) error {
	err := pgx.BeginFunc(ctx, p.pool, func(tx pgx.Tx) error {
		return insertStaff(ctx, tx, s)
	})
	return translateError(err)
}

func insertStaff(ctx context.Context, tx pgx.Tx, s *hr.Staff) error {
	query := `INSERT INTO staff_members (` + staffInsertColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING id`

	if err := tx.QueryRow(ctx, query, staffArgs(s)...).Scan(&s.ID); err != nil {
		return err
	}
	return assignStaffCode(ctx, tx, s)
}

// UpsertStaffByEmail updates the oldest staff member with s.PersonalEmail,
// or inserts one. An existing code is kept when s carries none.
func (p *Postgres) UpsertStaffByEmail(ctx context.Context, s *hr.Staff) error {
	update := `UPDATE staff_members SET
			staff_code        = COALESCE($1, staff_code),
			first_name        = $2,
			last_name         = $3,
			personal_email    = $4,
			phone_number      = $5,
			date_of_birth     = $6,
			gender            = $7,
			hire_date         = $8,
			base_salary       = $9,
			employment_status = $10,
			updated_at        = now()
		WHERE id = $11
		RETURNING COALESCE(staff_code, '')`

	err := pgx.BeginFunc(ctx, p.pool, func(tx pgx.Tx) error {
		var id int64
		err := tx.QueryRow(ctx,
			`SELECT id FROM staff_members WHERE personal_email = $1 ORDER BY id LIMIT 1 FOR UPDATE`,
			s.PersonalEmail,
		).Scan(&id)
		if errors.Is(err, pgx.ErrNoRows) {
			return insertStaff(ctx, tx, s)
		}
		if err != nil {
			return err
		}

		s.ID = id
		if err := tx.QueryRow(ctx, update, append(staffArgs(s), id)...).Scan(&s.Code); err != nil {
			return err
		}
		return assignStaffCode(ctx, tx, s)
	})
	return translateError(err)
}

func assignStaffCode(ctx context.Context, tx pgx.Tx, s *hr.Staff) error {
	if s.Code != "" {
		return nil
	}
	s.Code = fmt.Sprintf("EMP%03d", s.ID)
	_, err := tx.Exec(ctx, `UPDATE staff_members SET staff_code = $2 WHERE id = $1`, s.ID, s.Code)
	return err
}

// UpsertWorkLog writes w keyed on (staff_member_id, log_date).
func (p *Postgres) UpsertWorkLog(ctx context.Context, w *hr.WorkLog) error {
	query := `INSERT INTO work_logs
			(staff_member_id, log_date, status, clock_in, clock_out,
			 late_minutes, overtime_minutes, early_leave_minutes)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (staff_member_id, log_date) DO UPDATE SET
			status              = EXCLUDED.status,
			clock_in            = EXCLUDED.clock_in,
			clock_out           = EXCLUDED.clock_out,
			late_minutes        = EXCLUDED.late_minutes,
			overtime_minutes    = EXCLUDED.overtime_minutes,
			early_leave_minutes = EXCLUDED.early_leave_minutes,
			updated_at          = now()
		RETURNING id`

	err := p.pool.QueryRow(ctx, query,
		w.StaffID, w.LogDate, string(w.Status), toTime(w.ClockIn), toTime(w.ClockOut),
		w.LateMinutes, w.OvertimeMinutes, w.EarlyLeaveMinutes,
	).Scan(&w.ID)
	return translateError(err)
}

// UpsertHoliday writes h keyed on holiday_date.
func (p *Postgres) UpsertHoliday(ctx context.Context, h *hr.Holiday) error {
	query := `INSERT INTO company_holidays (title, holiday_date, is_optional)
		VALUES ($1, $2, $3)
		ON CONFLICT (holiday_date) DO UPDATE SET
			title       = EXCLUDED.title,
			is_optional = EXCLUDED.is_optional
		RETURNING id`

	err := p.pool.QueryRow(ctx, query, h.Title, h.Date, h.IsOptional).Scan(&h.ID)
	return translateError(err)
}

// ----------------------------------------------------------------------------
// Reads
// ----------------------------------------------------------------------------

// each runs query and hands every scanned row to fn without collecting.
func each[T any](ctx context.Context, db DBTX, query string, args []any, scan func(pgx.Rows) (T, error), fn func(T) error) error {
	rows, err := db.Query(ctx, query, args...)
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		rec, err := scan(rows)
		if err != nil {
			return err
		}
		if err := fn(rec); err != nil {
			return err
		}
	}
	return rows.Err()
}

func collect[T any](eachFn func(fn func(T) error) error) ([]T, error) {
	out := make([]T, 0)
	err := eachFn(func(rec T) error {
		out = append(out, rec)
		return nil
	})
	return out, err
}

const staffSelect = `SELECT s.id, COALESCE(s.staff_code, ''), s.first_name, s.last_name,
		COALESCE(s.personal_email, ''), s.phone_number, s.date_of_birth, s.gender,
		s.hire_date, s.base_salary, s.employment_status,
		COALESCE(s.office_location_id, 0), COALESCE(l.name, ''),
		COALESCE(s.division_id, 0), COALESCE(d.name, ''), COALESCE(t.name, '')
	FROM staff_members s
	LEFT JOIN office_locations l ON l.id = s.office_location_id
	LEFT JOIN divisions d ON d.id = s.division_id
	LEFT JOIN job_titles t ON t.id = s.job_title_id`

func scanStaff(rows pgx.Rows) (hr.Staff, error) {
	var (
		s      hr.Staff
		dob    pgtype.Date
		salary pgtype.Numeric
		status string
	)
	err := rows.Scan(
		&s.ID, &s.Code, &s.FirstName, &s.LastName,
		&s.PersonalEmail, &s.PhoneNumber, &dob, &s.Gender,
		&s.HireDate, &salary, &status,
		&s.LocationID, &s.OfficeLocation,
		&s.DivisionID, &s.Division, &s.JobTitle,
	)
	if err != nil {
		return hr.Staff{}, err
	}
	s.DateOfBirth = fromDate(dob)
	s.BaseSalary = fromNumeric(salary)
	s.EmploymentStatus = hr.EmploymentStatus(status)
	return s, nil
}

// EachStaff streams the filtered staff ordered by id.
func (p *Postgres) EachStaff(ctx context.Context, filter hr.StaffFilter, fn func(hr.Staff) error) error {
	var wb whereBuilder
	wb.addStaff(filter)
	where, args := wb.build()
	return each(ctx, p.pool, staffSelect+where+" ORDER BY s.id", args, scanStaff, fn)
}

func (p *Postgres) ListStaff(ctx context.Context, filter hr.StaffFilter) ([]hr.Staff, error) {
	return collect(func(fn func(hr.Staff) error) error { return p.EachStaff(ctx, filter, fn) })
}

const workLogSelect = `SELECT w.id, w.staff_member_id, COALESCE(s.staff_code, ''),
		concat_ws(' ', s.first_name, s.last_name), w.log_date, w.status,
		w.clock_in, w.clock_out, w.late_minutes, w.overtime_minutes, w.early_leave_minutes
	FROM work_logs w
	JOIN staff_members s ON s.id = w.staff_member_id`

func scanWorkLog(rows pgx.Rows) (hr.WorkLog, error) {
	var (
		w       hr.WorkLog
		status  string
		in, out pgtype.Time
	)
	err := rows.Scan(
		&w.ID, &w.StaffID, &w.StaffCode, &w.StaffName, &w.LogDate, &status,
		&in, &out, &w.LateMinutes, &w.OvertimeMinutes, &w.EarlyLeaveMinutes,
	)
	if err != nil {
		return hr.WorkLog{}, err
	}
	w.Status = hr.AttendanceStatus(status)
	w.ClockIn = fromTime(in)
	w.ClockOut = fromTime(out)
	return w, nil
}

// EachWorkLog streams the filtered logs ordered by date, then staff code.
func (p *Postgres) EachWorkLog(ctx context.Context, filter hr.WorkLogFilter, fn func(hr.WorkLog) error) error {
	var wb whereBuilder
	wb.addStaff(filter.Staff)
	wb.addDateRange("w.log_date", filter.Range)
	where, args := wb.build()
	return each(ctx, p.pool, workLogSelect+where+" ORDER BY w.log_date, s.staff_code", args, scanWorkLog, fn)
}

func (p *Postgres) WorkLogs(ctx context.Context, filter hr.WorkLogFilter) ([]hr.WorkLog, error) {
	return collect(func(fn func(hr.WorkLog) error) error { return p.EachWorkLog(ctx, filter, fn) })
}

func (p *Postgres) LeaveCategories(ctx context.Context) ([]hr.LeaveCategory, error) {
	query := `SELECT id, name, annual_quota, carry_forward, max_carry_forward
		FROM leave_categories ORDER BY id`

	scan := func(rows pgx.Rows) (hr.LeaveCategory, error) {
		var (
			c               hr.LeaveCategory
			quota, maxCarry pgtype.Numeric
		)
		if err := rows.Scan(&c.ID, &c.Name, &quota, &c.CarryForward, &maxCarry); err != nil {
			return hr.LeaveCategory{}, err
		}
		c.AnnualQuota = fromNumeric(quota)
		c.MaxCarryForward = fromNumeric(maxCarry)
		return c, nil
	}
	return collect(func(fn func(hr.LeaveCategory) error) error {
		return each(ctx, p.pool, query, nil, scan, fn)
	})
}

const timeOffSelect = `SELECT r.id, r.staff_member_id, COALESCE(s.staff_code, ''),
		concat_ws(' ', s.first_name, s.last_name), r.leave_category_id, c.name,
		r.start_date, r.end_date, r.total_days, r.approval_status, r.reason
	FROM time_off_requests r
	JOIN staff_members s ON s.id = r.staff_member_id
	JOIN leave_categories c ON c.id = r.leave_category_id`

func scanTimeOff(rows pgx.Rows) (hr.TimeOffRequest, error) {
	var (
		r      hr.TimeOffRequest
		days   pgtype.Numeric
		status string
	)
	err := rows.Scan(
		&r.ID, &r.StaffID, &r.StaffCode, &r.StaffName, &r.CategoryID, &r.CategoryName,
		&r.StartDate, &r.EndDate, &days, &status, &r.Reason,
	)
	if err != nil {
		return hr.TimeOffRequest{}, err
	}
	r.TotalDays = fromNumeric(days)
	r.ApprovalStatus = hr.ApprovalStatus(status)
	return r, nil
}

// EachTimeOff streams the filtered requests ordered by start date.
func (p *Postgres) EachTimeOff(ctx context.Context, filter hr.TimeOffFilter, fn func(hr.TimeOffRequest) error) error {
	var wb whereBuilder
	wb.addStaff(filter.Staff)
	wb.add("r.leave_category_id", filter.CategoryID)
	wb.add("r.approval_status", string(filter.Status))
	wb.addDateRange("r.start_date", filter.StartRange)
	where, args := wb.build()
	return each(ctx, p.pool, timeOffSelect+where+" ORDER BY r.start_date, r.id", args, scanTimeOff, fn)
}

func (p *Postgres) TimeOffRequests(ctx context.Context, filter hr.TimeOffFilter) ([]hr.TimeOffRequest, error) {
	return collect(func(fn func(hr.TimeOffRequest) error) error { return p.EachTimeOff(ctx, filter, fn) })
}

const salarySelect = `SELECT p.id, p.staff_member_id, COALESCE(s.staff_code, ''),
		concat_ws(' ', s.first_name, s.last_name), p.period,
		p.basic_salary, p.allowances, p.deductions, p.net_salary, p.payment_status
	FROM salary_slips p
	JOIN staff_members s ON s.id = p.staff_member_id`

func scanSalarySlip(rows pgx.Rows) (hr.SalarySlip, error) {
	var (
		slip                         hr.SalarySlip
		period                       pgtype.Date
		basic, allow, deduct, netPay pgtype.Numeric
	)
	err := rows.Scan(
		&slip.ID, &slip.StaffID, &slip.StaffCode, &slip.StaffName, &period,
		&basic, &allow, &deduct, &netPay, &slip.PaymentStatus,
	)
	if err != nil {
		return hr.SalarySlip{}, err
	}
	slip.Period = hr.Month{Year: period.Time.Year(), Month: period.Time.Month()}
	slip.BasicSalary = fromNumeric(basic)
	slip.Allowances = fromNumeric(allow)
	slip.Deductions = fromNumeric(deduct)
	slip.NetSalary = fromNumeric(netPay)
	return slip, nil
}

// EachSalarySlip streams the slips of one period ordered by staff code.
func (p *Postgres) EachSalarySlip(ctx context.Context, filter hr.SalaryFilter, fn func(hr.SalarySlip) error) error {
	var wb whereBuilder
	wb.addStaff(filter.Staff)
	if !filter.Period.IsZero() {
		wb.add("p.period", filter.Period.Range().Start)
	}
	where, args := wb.build()
	return each(ctx, p.pool, salarySelect+where+" ORDER BY s.staff_code, p.id", args, scanSalarySlip, fn)
}
