package core

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"slices"
	"strings"

	"github.com/JonMunkholm/hrpipe/internal/hr"
)

// ErrUnknownKind is returned for an import kind name that is not supported.
var ErrUnknownKind = errors.New("unknown import kind")

// Kind identifies what an import file contains. The set is closed: every
// Kind below numKinds has an entry in kindSpecs.
type Kind uint8

const (
	StaffMembers Kind = iota
	WorkLogs
	CompanyHolidays

	numKinds
)

// kindSpec carries everything the runner needs for one kind.
type kindSpec struct {
	name     string
	columns  []string
	required []string
	example  []string
	mapRow   func(ctx context.Context, m *Mapper, f Fields) (record, error)
}

var kindSpecs = [numKinds]kindSpec{
	StaffMembers: {
		name: "staff_members",
		columns: []string{
			"first_name", "last_name", "personal_email", "phone_number", "date_of_birth",
			"gender", "hire_date", "base_salary", "employment_status", "staff_code",
		},
		required: []string{"first_name", "last_name"},
		example: []string{
			"Jane", "Doe", "jane.doe@example.com", "+1-555-0100", "1990-04-12",
			"female", "2024-01-15", "55000.00", "active", "EMP001",
		},
		mapRow: mapStaffRow,
	},
	WorkLogs: {
		name:     "work_logs",
		columns:  []string{"staff_code", "log_date", "status", "clock_in", "clock_out"},
		required: []string{"staff_code", "log_date"},
		example:  []string{"EMP001", "2024-03-01", "present", "09:02", "17:45"},
		mapRow:   mapWorkLogRow,
	},
	CompanyHolidays: {
		name:     "company_holidays",
		columns:  []string{"title", "holiday_date", "is_optional"},
		required: []string{"title", "holiday_date"},
		example:  []string{"New Year's Day", "2024-01-01", "no"},
		mapRow:   mapHolidayRow,
	},
}

// Kinds returns every supported kind.
func Kinds() []Kind {
	kinds := make([]Kind, 0, numKinds)
	for k := Kind(0); k < numKinds; k++ {
		kinds = append(kinds, k)
	}
	return kinds
}

// ParseKind resolves a kind name such as "work_logs".
func ParseKind(name string) (Kind, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	for k := Kind(0); k < numKinds; k++ {
		if kindSpecs[k].name == name {
			return k, nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownKind, name)
}

// Valid reports whether k is a supported kind.
func (k Kind) Valid() bool { return k < numKinds }

func (k Kind) String() string {
	if !k.Valid() {
		return fmt.Sprintf("Kind(%d)", uint8(k))
	}
	return kindSpecs[k].name
}

// Columns returns the template column list.
func (k Kind) Columns() []string { return slices.Clone(kindSpecs[k].columns) }

// RequiredColumns returns the columns a file must carry to be accepted.
func (k Kind) RequiredColumns() []string { return slices.Clone(kindSpecs[k].required) }

// MarshalText implements encoding.TextMarshaler.
func (k Kind) MarshalText() ([]byte, error) {
	if !k.Valid() {
		return nil, fmt.Errorf("%w: %d", ErrUnknownKind, uint8(k))
	}
	return []byte(k.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (k *Kind) UnmarshalText(b []byte) error {
	parsed, err := ParseKind(string(b))
	if err != nil {
		return err
	}
	*k = parsed
	return nil
}

// Template describes the expected file layout for a kind.
type Template struct {
	Kind    string   `json:"kind"`
	Columns []string `json:"columns"`
	Example []string `json:"example"`
}

// Template returns the column list and one example row.
func (k Kind) Template() Template {
	spec := kindSpecs[k]
	return Template{
		Kind:    spec.name,
		Columns: slices.Clone(spec.columns),
		Example: slices.Clone(spec.example),
	}
}

// WriteCSV writes the template as a two-line CSV file.
func (t Template) WriteCSV(w io.Writer) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(t.Columns); err != nil {
		return err
	}
	if err := cw.Write(t.Example); err != nil {
		return err
	}
	cw.Flush()
	return cw.Error()
}

// record is a mapped row ready to be written.
type record interface {
	save(ctx context.Context, s ImportStore) error
}

type staffRecord struct {
	staff  hr.Staff
	upsert bool
}

func (r *staffRecord) save(ctx context.Context, s ImportStore) error {
	if r.upsert {
		return s.UpsertStaffByEmail(ctx, &r.staff)
	}
	return s.InsertStaff(ctx, &r.staff)
}

type workLogRecord struct{ log hr.WorkLog }

func (r *workLogRecord) save(ctx context.Context, s ImportStore) error {
	return s.UpsertWorkLog(ctx, &r.log)
}

type holidayRecord struct{ holiday hr.Holiday }

func (r *holidayRecord) save(ctx context.Context, s ImportStore) error {
	return s.UpsertHoliday(ctx, &r.holiday)
}

func mapStaffRow(_ context.Context, m *Mapper, f Fields) (record, error) {
	staff, err := m.MapStaff(f)
	if err != nil {
		return nil, err
	}
	if m.upsertStaff && staff.PersonalEmail == "" {
		return nil, errors.New("personal_email is required to update existing staff")
	}
	return &staffRecord{staff: staff, upsert: m.upsertStaff}, nil
}

func mapWorkLogRow(ctx context.Context, m *Mapper, f Fields) (record, error) {
	log, err := m.MapWorkLog(ctx, f)
	if err != nil {
		return nil, err
	}
	return &workLogRecord{log: log}, nil
}

func mapHolidayRow(_ context.Context, m *Mapper, f Fields) (record, error) {
	h, err := m.MapHoliday(f)
	if err != nil {
		return nil, err
	}
	return &holidayRecord{holiday: h}, nil
}
