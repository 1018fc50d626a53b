package frame

import (
	"encoding/csv"
	"fmt"
	"io"
)

// FromCSV parses CSV with a header row into a frame. All cells are strings;
// call ConvertNumeric to type them.
func FromCSV(r io.Reader) (*Frame, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1

	header, err := cr.Read()
	if err == io.EOF {
		return nil, fmt.Errorf("csv has no header row")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read csv header: %w", err)
	}

	f := &Frame{Columns: header}
	for {
		record, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read csv record: %w", err)
		}
		if len(record) != len(header) {
			return nil, fmt.Errorf("csv record has %d fields, header has %d", len(record), len(header))
		}
		row := make([]any, len(record))
		for i, v := range record {
			row[i] = v
		}
		f.Rows = append(f.Rows, row)
	}
	return f, nil
}

// ToCSV writes the frame as CSV with a header row.
func (f *Frame) ToCSV(w io.Writer) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(f.Columns); err != nil {
		return fmt.Errorf("failed to write csv header: %w", err)
	}
	record := make([]string, len(f.Columns))
	for _, row := range f.Rows {
		for i, c := range row {
			record[i] = CellString(c)
		}
		if err := cw.Write(record); err != nil {
			return fmt.Errorf("failed to write csv record: %w", err)
		}
	}
	cw.Flush()
	return cw.Error()
}
