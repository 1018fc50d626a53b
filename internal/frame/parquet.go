package frame

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/xitongsys/parquet-go-source/buffer"
	"github.com/xitongsys/parquet-go/parquet"
	"github.com/xitongsys/parquet-go/reader"
	"github.com/xitongsys/parquet-go/writer"
)

// parquetSchema builds a parquet-go JSON schema for the frame. Columns are
// DOUBLE when every non-missing cell is (or parses as) a number, UTF8
// otherwise. All fields are OPTIONAL so missing cells survive the round trip.
func (f *Frame) parquetSchema() string {
	fields := make([]string, 0, len(f.Columns))
	for i, col := range f.Columns {
		typ := "DOUBLE"
		for _, row := range f.Rows {
			if row[i] == nil {
				continue
			}
			if _, ok := row[i].(float64); ok {
				continue
			}
			typ = "UTF8"
			break
		}
		if typ == "UTF8" {
			fields = append(fields, fmt.Sprintf(
				`{"Tag": "name=%s, type=BYTE_ARRAY, convertedtype=UTF8, repetitiontype=OPTIONAL"}`, col))
		} else {
			fields = append(fields, fmt.Sprintf(
				`{"Tag": "name=%s, type=DOUBLE, repetitiontype=OPTIONAL"}`, col))
		}
	}
	return fmt.Sprintf(`{"Tag": "name=parquet_go_root, repetitiontype=REQUIRED", "Fields": [%s]}`,
		strings.Join(fields, ", "))
}

// WriteParquet serializes the frame to Parquet (snappy). Numeric typing
// should already be applied (ConvertNumeric) so columns get DOUBLE schema.
func (f *Frame) WriteParquet() ([]byte, error) {
	pf := buffer.NewBufferFile()
	pw, err := writer.NewJSONWriter(f.parquetSchema(), pf, 2)
	if err != nil {
		return nil, fmt.Errorf("failed to create parquet writer: %w", err)
	}
	pw.CompressionType = parquet.CompressionCodec_SNAPPY

	for _, row := range f.Rows {
		rec := make(map[string]any, len(f.Columns))
		for i, col := range f.Columns {
			if row[i] == nil {
				continue
			}
			rec[col] = row[i]
		}
		line, err := json.Marshal(rec)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal parquet row: %w", err)
		}
		if err := pw.Write(string(line)); err != nil {
			_ = pw.WriteStop()
			return nil, fmt.Errorf("failed to write parquet row: %w", err)
		}
	}
	if err := pw.WriteStop(); err != nil {
		return nil, fmt.Errorf("failed to finish parquet file: %w", err)
	}
	if err := pf.Close(); err != nil {
		return nil, fmt.Errorf("failed to close parquet buffer: %w", err)
	}
	return pf.Bytes(), nil
}

// ReadParquet deserializes a Parquet object written by WriteParquet.
func ReadParquet(data []byte) (*Frame, error) {
	pf := buffer.NewBufferFileFromBytes(data)
	pr, err := reader.NewParquetReader(pf, nil, 2)
	if err != nil {
		return nil, fmt.Errorf("failed to open parquet reader: %w", err)
	}
	defer pr.ReadStop()

	// Column order comes from the schema; index 0 is the root element.
	// ExName is the original column name, InName the Go field name the
	// reader's generated structs use.
	var columns, inNames []string
	for _, info := range pr.SchemaHandler.Infos[1:] {
		columns = append(columns, info.ExName)
		inNames = append(inNames, info.InName)
	}

	num := int(pr.GetNumRows())
	rows, err := pr.ReadByNumber(num)
	if err != nil {
		return nil, fmt.Errorf("failed to read parquet rows: %w", err)
	}

	f := &Frame{Columns: columns}
	for _, r := range rows {
		// The reader returns dynamically generated structs; route through
		// JSON to get at the fields by column name.
		blob, err := json.Marshal(r)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal parquet row: %w", err)
		}
		var rec map[string]any
		if err := json.Unmarshal(blob, &rec); err != nil {
			return nil, fmt.Errorf("failed to unmarshal parquet row: %w", err)
		}
		row := make([]any, len(columns))
		for i := range columns {
			v, ok := rec[inNames[i]]
			if !ok || v == nil {
				row[i] = nil
				continue
			}
			row[i] = v
		}
		f.Rows = append(f.Rows, row)
	}
	return f, nil
}
