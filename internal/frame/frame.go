// Package frame provides the column-ordered tabular frame passed between
// data sources, feature sets, and endpoints. Cells are either string,
// float64, or nil (missing). CSV is the interchange format on the inference
// path; Parquet is the storage format for offline feature data and stored
// dataframes.
package frame

import (
	"fmt"
	"math"
	"strconv"
)

// Frame is an ordered set of named columns with row-major cell storage.
type Frame struct {
	Columns []string
	Rows    [][]any
}

// New creates an empty frame with the given columns.
func New(columns ...string) *Frame {
	return &Frame{Columns: columns}
}

// NumRows returns the row count.
func (f *Frame) NumRows() int { return len(f.Rows) }

// NumColumns returns the column count.
func (f *Frame) NumColumns() int { return len(f.Columns) }

// ColumnIndex returns the index of a named column, or -1.
func (f *Frame) ColumnIndex(name string) int {
	for i, c := range f.Columns {
		if c == name {
			return i
		}
	}
	return -1
}

// HasColumns reports whether every named column is present.
func (f *Frame) HasColumns(names []string) bool {
	for _, n := range names {
		if f.ColumnIndex(n) < 0 {
			return false
		}
	}
	return true
}

// MissingColumns returns the named columns not present in the frame.
func (f *Frame) MissingColumns(names []string) []string {
	var missing []string
	for _, n := range names {
		if f.ColumnIndex(n) < 0 {
			missing = append(missing, n)
		}
	}
	return missing
}

// AppendRow adds a row. The row length must match the column count.
func (f *Frame) AppendRow(row []any) error {
	if len(row) != len(f.Columns) {
		return fmt.Errorf("row has %d cells, frame has %d columns", len(row), len(f.Columns))
	}
	f.Rows = append(f.Rows, row)
	return nil
}

// Slice returns a frame sharing rows [i, j). Bounds are clamped.
func (f *Frame) Slice(i, j int) *Frame {
	if i < 0 {
		i = 0
	}
	if j > len(f.Rows) {
		j = len(f.Rows)
	}
	if i > j {
		i = j
	}
	return &Frame{Columns: f.Columns, Rows: f.Rows[i:j]}
}

// Append concatenates another frame's rows. Columns must match exactly.
func (f *Frame) Append(other *Frame) error {
	if len(other.Columns) != len(f.Columns) {
		return fmt.Errorf("column count mismatch: %d vs %d", len(other.Columns), len(f.Columns))
	}
	for i, c := range f.Columns {
		if other.Columns[i] != c {
			return fmt.Errorf("column mismatch at %d: %q vs %q", i, other.Columns[i], c)
		}
	}
	f.Rows = append(f.Rows, other.Rows...)
	return nil
}

// Column returns the cells of a named column.
func (f *Frame) Column(name string) ([]any, error) {
	idx := f.ColumnIndex(name)
	if idx < 0 {
		return nil, fmt.Errorf("no such column: %q", name)
	}
	out := make([]any, len(f.Rows))
	for i, row := range f.Rows {
		out[i] = row[idx]
	}
	return out, nil
}

// Float64Column returns a named column as float64 values. String cells are
// parsed; missing or unparseable cells become NaN.
func (f *Frame) Float64Column(name string) ([]float64, error) {
	cells, err := f.Column(name)
	if err != nil {
		return nil, err
	}
	out := make([]float64, len(cells))
	for i, c := range cells {
		out[i] = CellFloat(c)
	}
	return out, nil
}

// StringColumn returns a named column rendered as strings.
func (f *Frame) StringColumn(name string) ([]string, error) {
	cells, err := f.Column(name)
	if err != nil {
		return nil, err
	}
	out := make([]string, len(cells))
	for i, c := range cells {
		out[i] = CellString(c)
	}
	return out, nil
}

// AddColumn appends a column. The value count must match the row count
// (or the frame must be empty).
func (f *Frame) AddColumn(name string, values []any) error {
	if len(f.Rows) > 0 && len(values) != len(f.Rows) {
		return fmt.Errorf("column %q has %d values, frame has %d rows", name, len(values), len(f.Rows))
	}
	f.Columns = append(f.Columns, name)
	if len(f.Rows) == 0 {
		for _, v := range values {
			f.Rows = append(f.Rows, []any{v})
		}
		return nil
	}
	for i := range f.Rows {
		f.Rows[i] = append(f.Rows[i], values[i])
	}
	return nil
}

// Select returns a new frame with only the named columns, in order.
func (f *Frame) Select(names []string) (*Frame, error) {
	idxs := make([]int, len(names))
	for i, n := range names {
		idx := f.ColumnIndex(n)
		if idx < 0 {
			return nil, fmt.Errorf("no such column: %q", n)
		}
		idxs[i] = idx
	}
	out := &Frame{Columns: append([]string(nil), names...)}
	for _, row := range f.Rows {
		newRow := make([]any, len(idxs))
		for i, idx := range idxs {
			newRow[i] = row[idx]
		}
		out.Rows = append(out.Rows, newRow)
	}
	return out, nil
}

// ConvertNumeric converts string columns to float64 columns wherever every
// non-empty cell parses as a number (hard conversion), and turns empty
// strings into missing cells (soft conversion). Mixed columns keep their
// string values.
func (f *Frame) ConvertNumeric() {
	for col := range f.Columns {
		numeric := true
		for _, row := range f.Rows {
			s, ok := row[col].(string)
			if !ok {
				if row[col] == nil {
					continue
				}
				if _, isFloat := row[col].(float64); isFloat {
					continue
				}
				numeric = false
				break
			}
			if s == "" {
				continue
			}
			if _, err := strconv.ParseFloat(s, 64); err != nil {
				numeric = false
				break
			}
		}
		for _, row := range f.Rows {
			s, ok := row[col].(string)
			if !ok {
				continue
			}
			if s == "" {
				row[col] = nil
				continue
			}
			if numeric {
				v, _ := strconv.ParseFloat(s, 64)
				row[col] = v
			}
		}
	}
}

// CellFloat coerces a cell to float64. Missing or unparseable cells are NaN.
func CellFloat(c any) float64 {
	switch v := c.(type) {
	case float64:
		return v
	case string:
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
		return math.NaN()
	default:
		return math.NaN()
	}
}

// CellString renders a cell for CSV output. Missing cells render empty.
func CellString(c any) string {
	switch v := c.(type) {
	case nil:
		return ""
	case string:
		return v
	case float64:
		return strconv.FormatFloat(v, 'g', -1, 64)
	default:
		return fmt.Sprintf("%v", v)
	}
}
