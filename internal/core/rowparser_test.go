package core

import (
	"errors"
	"io"
	"slices"
	"strings"
	"testing"
)

func TestNewHeaderNormalizes(t *testing.T) {
	h := NewHeader([]string{" First Name ", "LAST_NAME", "\ufeffstaff_code", "Personal  Email", "last_name"})

	want := []string{"first_name", "last_name", "staff_code", "personal_email", "last_name"}
	if got := h.Names(); !slices.Equal(got, want) {
		t.Errorf("Names() = %v, want %v", got, want)
	}
	if missing := h.Missing([]string{"first_name", "hire_date", "staff_code"}); !slices.Equal(missing, []string{"hire_date"}) {
		t.Errorf("Missing() = %v, want [hire_date]", missing)
	}

	f, err := ParseLine(h, "Ada,Lovelace,EMP1,ada@example.com,Byron", ',')
	if err != nil {
		t.Fatalf("ParseLine() error = %v", err)
	}
	if got := f.Get("last_name"); got != "Lovelace" {
		t.Errorf("duplicate column: Get(last_name) = %q, want first occurrence", got)
	}
}

func TestParseLine(t *testing.T) {
	h := NewHeader([]string{"a", "b", "c"})

	tests := []struct {
		name string
		line string
		want []string
	}{
		{name: "exact", line: "1,2,3", want: []string{"1", "2", "3"}},
		{name: "short row padded", line: "1", want: []string{"1", "", ""}},
		{name: "long row truncated", line: "1,2,3,4,5", want: []string{"1", "2", "3"}},
		{name: "quoted comma", line: `"x, y",2,3`, want: []string{"x, y", "2", "3"}},
		{name: "empty line", line: "", want: []string{"", "", ""}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f, err := ParseLine(h, tt.line, ',')
			if err != nil {
				t.Fatalf("ParseLine() error = %v", err)
			}
			if got := f.Raw(); !slices.Equal(got, tt.want) {
				t.Errorf("Raw() = %q, want %q", got, tt.want)
			}
		})
	}

	if _, err := ParseLine(h, `1,"unterminated`, ','); err == nil {
		t.Error("ParseLine() with bad quoting: want error")
	}
}

func TestFieldsGetCleansCells(t *testing.T) {
	f, _ := ParseLine(NewHeader([]string{"code", "date"}), `  ="EMP001" ,  2024-01-01  `, ',')

	if got := f.Get("code"); got != "EMP001" {
		t.Errorf("Get(code) = %q, want EMP001", got)
	}
	if got := f.Get("date"); got != "2024-01-01" {
		t.Errorf("Get(date) = %q", got)
	}
	if got := f.Get("absent"); got != "" {
		t.Errorf("Get(absent) = %q, want empty", got)
	}

	var cols []string
	f.Each(func(col, _ string) { cols = append(cols, col) })
	if !slices.Equal(cols, []string{"code", "date"}) {
		t.Errorf("Each visited %v", cols)
	}
}

func TestRowReaderLinesAndRepairs(t *testing.T) {
	input := "\n" + // blank leading line
		"a,b\n" + // line 2
		"1,2\n" + // line 3
		"\n" + // line 4
		" , \n" + // line 5, all blank
		"3\n" + // line 6, short
		"\"multi\nline\",4\n" + // lines 7-8
		"5,6,7\n" // line 9, long

	rr, err := NewRowReader(strings.NewReader(input), ',')
	if err != nil {
		t.Fatalf("NewRowReader() error = %v", err)
	}

	type want struct {
		line     int
		a        string
		repaired bool
	}
	wants := []want{
		{3, "1", false},
		{6, "3", true},
		{7, "multi\nline", false},
		{9, "5", true},
	}

	for _, w := range wants {
		row, err := rr.Next()
		if err != nil {
			t.Fatalf("Next() error = %v", err)
		}
		if row.Line != w.line || row.Fields.Get("a") != w.a || row.Repaired != w.repaired {
			t.Errorf("row = {line %d, a %q, repaired %v}, want %+v", row.Line, row.Fields.Get("a"), row.Repaired, w)
		}
	}

	if _, err := rr.Next(); err != io.EOF {
		t.Errorf("final Next() error = %v, want io.EOF", err)
	}
	if rr.BytesRead() != int64(len(input)) {
		t.Errorf("BytesRead() = %d, want %d", rr.BytesRead(), len(input))
	}
}

func TestRowReaderMalformedRowContinues(t *testing.T) {
	rr, err := NewRowReader(strings.NewReader("a,b\n1,2\nx\"y,3\n4,5\n"), ',')
	if err != nil {
		t.Fatalf("NewRowReader() error = %v", err)
	}

	if _, err := rr.Next(); err != nil {
		t.Fatalf("row 1: %v", err)
	}

	_, err = rr.Next()
	var rowErr *RowError
	if !errors.As(err, &rowErr) {
		t.Fatalf("row 2 error = %v, want *RowError", err)
	}
	if rowErr.Line != 3 {
		t.Errorf("RowError.Line = %d, want 3", rowErr.Line)
	}

	row, err := rr.Next()
	if err != nil {
		t.Fatalf("row 3: %v", err)
	}
	if row.Line != 4 || row.Fields.Get("b") != "5" {
		t.Errorf("row after error = line %d b %q", row.Line, row.Fields.Get("b"))
	}
}

func TestNewRowReaderEmpty(t *testing.T) {
	for _, input := range []string{"", "\n\n", " , \n"} {
		if _, err := NewRowReader(strings.NewReader(input), ','); !errors.Is(err, ErrEmptyFile) {
			t.Errorf("NewRowReader(%q) error = %v, want ErrEmptyFile", input, err)
		}
	}
}

func TestRowReaderSemicolon(t *testing.T) {
	rr, err := NewRowReader(strings.NewReader("title;holiday_date\nX;2024-01-01\n"), ';')
	if err != nil {
		t.Fatalf("NewRowReader() error = %v", err)
	}
	row, err := rr.Next()
	if err != nil {
		t.Fatalf("Next() error = %v", err)
	}
	if row.Fields.Get("holiday_date") != "2024-01-01" {
		t.Errorf("holiday_date = %q", row.Fields.Get("holiday_date"))
	}
}
