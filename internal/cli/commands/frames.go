package commands

import (
	"github.com/sageworks-ml/sageworks/internal/cli/output"
	"github.com/sageworks-ml/sageworks/internal/frame"
)

// renderFrame prints a frame as a table, or as JSON rows in JSON mode.
func renderFrame(r *output.Renderer, f *frame.Frame) error {
	if r.EffectiveMode() == output.ModeJSON {
		rows := make([]map[string]any, 0, f.NumRows())
		for _, row := range f.Rows {
			m := make(map[string]any, len(f.Columns))
			for i, col := range f.Columns {
				m[col] = row[i]
			}
			rows = append(rows, m)
		}
		return r.JSON(rows)
	}

	cells := make([][]string, 0, f.NumRows())
	for _, row := range f.Rows {
		out := make([]string, len(row))
		for i, c := range row {
			out[i] = frame.CellString(c)
		}
		cells = append(cells, out)
	}
	r.Table(f.Columns, cells)
	return nil
}
