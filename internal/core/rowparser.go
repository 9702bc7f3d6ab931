package core

// rowparser.go turns delimited text into ordered field maps.
//
// The header is read once; its column count and order apply to every
// following row. Rows with too few fields are padded with empty strings and
// rows with too many are truncated, so a ragged line degrades its own data
// instead of stopping the batch. Malformed quoting is reported as a
// *RowError carrying the line number and the next call continues reading.

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"slices"
	"strings"
)

// ErrEmptyFile is returned when a source has no header row.
var ErrEmptyFile = errors.New("empty file: no header row")

// Header is the normalized column list of an import file.
type Header struct {
	names []string
	index map[string]int
}

// NewHeader normalizes raw column names: whitespace is trimmed, inner
// spaces become underscores and names are lower-cased, so "First Name"
// matches first_name. The first occurrence of a duplicate name wins.
func NewHeader(raw []string) Header {
	h := Header{
		names: make([]string, len(raw)),
		index: make(map[string]int, len(raw)),
	}
	for i, name := range raw {
		n := normalizeColumn(name)
		h.names[i] = n
		if _, dup := h.index[n]; n != "" && !dup {
			h.index[n] = i
		}
	}
	return h
}

func normalizeColumn(s string) string {
	s = strings.TrimPrefix(cleanCell(s), "\ufeff")
	return strings.ToLower(strings.Join(strings.Fields(s), "_"))
}

// Names returns the normalized column names in file order.
func (h Header) Names() []string { return slices.Clone(h.names) }

// Len returns the number of columns.
func (h Header) Len() int { return len(h.names) }

// Has reports whether the header contains col.
func (h Header) Has(col string) bool {
	_, ok := h.index[col]
	return ok
}

// Missing returns the columns of want not present in the header.
func (h Header) Missing(want []string) []string {
	var missing []string
	for _, col := range want {
		if !h.Has(col) {
			missing = append(missing, col)
		}
	}
	return missing
}

// fit pads or truncates values to the header width.
func (h Header) fit(values []string) (Fields, bool) {
	n := len(h.names)
	switch {
	case len(values) == n:
		return Fields{header: h, values: values}, false
	case len(values) > n:
		return Fields{header: h, values: values[:n]}, true
	default:
		padded := make([]string, n)
		copy(padded, values)
		return Fields{header: h, values: padded}, true
	}
}

// Fields is one row keyed by header column, in header order.
type Fields struct {
	header Header
	values []string
}

// Get returns the cleaned value of col, or "" when the column is absent.
func (f Fields) Get(col string) string {
	i, ok := f.header.index[col]
	if !ok {
		return ""
	}
	return cleanCell(f.values[i])
}

// Raw returns the values exactly as read, in header order.
func (f Fields) Raw() []string { return slices.Clone(f.values) }

// Each calls fn for every column in header order.
func (f Fields) Each(fn func(col, value string)) {
	for i, name := range f.header.names {
		fn(name, f.values[i])
	}
}

// ParseLine parses a single delimited line against h.
func ParseLine(h Header, line string, comma rune) (Fields, error) {
	r := csv.NewReader(strings.NewReader(line))
	r.Comma = comma
	r.FieldsPerRecord = -1

	values, err := r.Read()
	if err == io.EOF {
		values = nil
	} else if err != nil {
		return Fields{}, fmt.Errorf("parse line: %w", err)
	}

	fields, _ := h.fit(values)
	return fields, nil
}

// Row is one data row read from a source.
type Row struct {
	// Line is the 1-based line where the record starts; the header is line 1
	// in a file without leading blank lines.
	Line     int
	Fields   Fields
	Repaired bool
}

// RowError reports a row that could not be split into fields.
type RowError struct {
	Line int
	Err  error
}

func (e *RowError) Error() string {
	return fmt.Sprintf("line %d: %v", e.Line, e.Err)
}

func (e *RowError) Unwrap() error { return e.Err }

// RowReader streams rows from a delimited source.
type RowReader struct {
	csv     *csv.Reader
	counter *CountingReader
	header  Header
}

// NewRowReader normalizes the stream encoding and reads the header. Leading
// blank lines are skipped. A source with no header returns ErrEmptyFile.
func NewRowReader(r io.Reader, comma rune) (*RowReader, error) {
	counter := NewCountingReader(r)

	cr := csv.NewReader(NewSourceReader(counter))
	cr.Comma = comma
	cr.FieldsPerRecord = -1

	for {
		record, err := cr.Read()
		if err == io.EOF {
			return nil, ErrEmptyFile
		}
		if err != nil {
			return nil, fmt.Errorf("read header: %w", err)
		}
		if isBlankRecord(record) {
			continue
		}
		return &RowReader{csv: cr, counter: counter, header: NewHeader(record)}, nil
	}
}

// Header returns the parsed header.
func (rr *RowReader) Header() Header { return rr.header }

// BytesRead returns the number of source bytes consumed.
func (rr *RowReader) BytesRead() int64 { return rr.counter.BytesRead() }

// Next returns the next non-blank row. It returns io.EOF at the end of the
// source, a *RowError for a malformed row, and any other error when the
// source itself fails.
func (rr *RowReader) Next() (Row, error) {
	for {
		record, err := rr.csv.Read()
		if err == io.EOF {
			return Row{}, io.EOF
		}
		if err != nil {
			var pe *csv.ParseError
			if errors.As(err, &pe) {
				return Row{}, &RowError{Line: pe.StartLine, Err: pe.Err}
			}
			return Row{}, err
		}
		if isBlankRecord(record) {
			continue
		}

		line, _ := rr.csv.FieldPos(0)
		fields, repaired := rr.header.fit(record)
		return Row{Line: line, Fields: fields, Repaired: repaired}, nil
	}
}

func isBlankRecord(record []string) bool {
	for _, v := range record {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}
