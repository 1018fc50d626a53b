package datasource

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/sageworks-ml/sageworks/internal/frame"
	"github.com/sageworks-ml/sageworks/internal/query"
)

// statDelimiter separates column and stat names in aggregate aliases.
const statDelimiter = "___"

// maxCorrelationColumns caps the pairwise correlation query width.
const maxCorrelationColumns = 20

// maxOutlierColumns caps the outlier scan width.
const maxOutlierColumns = 40

// maxOutlierRows caps the returned outlier frame.
const maxOutlierRows = 200

// Stats holds the descriptive statistics of one numeric column.
type Stats struct {
	Min    float64 `json:"min"`
	Q1     float64 `json:"q1"`
	Median float64 `json:"median"`
	Q3     float64 `json:"q3"`
	Max    float64 `json:"max"`
	Mean   float64 `json:"mean"`
	StdDev float64 `json:"stddev"`
}

// ColumnStat holds the per-column statistics summary. Numeric columns
// carry descriptive stats and a zero count, string columns carry value
// counts.
type ColumnStat struct {
	Dtype       string           `json:"dtype"`
	Unique      int64            `json:"unique"`
	Nulls       int64            `json:"nulls"`
	NumZeros    int64            `json:"num_zeros,omitempty"`
	Stats       *Stats           `json:"descriptive_stats,omitempty"`
	ValueCounts map[string]int64 `json:"value_counts,omitempty"`
}

// numericType reports whether a query engine type holds numbers.
func numericType(dtype string) bool {
	t := strings.ToUpper(dtype)
	switch {
	case strings.HasPrefix(t, "DECIMAL"):
		return true
	case t == "TINYINT" || t == "SMALLINT" || t == "INTEGER" || t == "BIGINT" ||
		t == "HUGEINT" || t == "FLOAT" || t == "DOUBLE" || t == "REAL":
		return true
	default:
		return false
	}
}

// stringType reports whether a query engine type holds text or booleans.
func stringType(dtype string) bool {
	t := strings.ToUpper(dtype)
	return strings.HasPrefix(t, "VARCHAR") || t == "BOOLEAN"
}

// numericColumns returns the numeric column names of the backing table.
func (ds *DataSource) numericColumns(ctx context.Context) ([]string, error) {
	meta, err := ds.Metadata(ctx)
	if err != nil {
		return nil, err
	}
	var cols []string
	for _, c := range meta.Columns {
		if numericType(c.Type) {
			cols = append(cols, c.Name)
		}
	}
	return cols, nil
}

// DescriptiveStats computes min/quartiles/max/mean/stddev for every
// numeric column in a single query.
func (ds *DataSource) DescriptiveStats(ctx context.Context) (map[string]Stats, error) {
	cols, err := ds.numericColumns(ctx)
	if err != nil {
		return nil, err
	}
	if len(cols) == 0 {
		return map[string]Stats{}, nil
	}

	var exprs []string
	for _, c := range cols {
		qc := query.QuoteIdentifier(c)
		for _, agg := range []struct{ expr, stat string }{
			{fmt.Sprintf("min(%s)", qc), "min"},
			{fmt.Sprintf("quantile_cont(%s, 0.25)", qc), "q1"},
			{fmt.Sprintf("quantile_cont(%s, 0.5)", qc), "median"},
			{fmt.Sprintf("quantile_cont(%s, 0.75)", qc), "q3"},
			{fmt.Sprintf("max(%s)", qc), "max"},
			{fmt.Sprintf("avg(%s)", qc), "mean"},
			{fmt.Sprintf("coalesce(stddev(%s), 0)", qc), "stddev"},
		} {
			exprs = append(exprs, fmt.Sprintf(`%s AS %s`,
				agg.expr, query.QuoteIdentifier(c+statDelimiter+agg.stat)))
		}
	}
	sql := fmt.Sprintf(`SELECT %s FROM %s`,
		strings.Join(exprs, ", "), query.QuoteIdentifier(ds.name))

	f, err := ds.Query(ctx, sql)
	if err != nil {
		return nil, err
	}
	if f.NumRows() != 1 {
		return nil, fmt.Errorf("descriptive stats query returned %d rows", f.NumRows())
	}

	stats := make(map[string]Stats, len(cols))
	for i, alias := range f.Columns {
		col, stat, ok := strings.Cut(alias, statDelimiter)
		if !ok {
			continue
		}
		v, _ := f.Rows[0][i].(float64)
		s := stats[col]
		switch stat {
		case "min":
			s.Min = v
		case "q1":
			s.Q1 = v
		case "median":
			s.Median = v
		case "q3":
			s.Q3 = v
		case "max":
			s.Max = v
		case "mean":
			s.Mean = v
		case "stddev":
			s.StdDev = v
		}
		stats[col] = s
	}
	return stats, nil
}

// ValueCounts computes the most and least frequent values for every
// string column. NULL values count under the "NaN" key.
func (ds *DataSource) ValueCounts(ctx context.Context) (map[string]map[string]int64, error) {
	meta, err := ds.Metadata(ctx)
	if err != nil {
		return nil, err
	}

	counts := make(map[string]map[string]int64)
	for _, c := range meta.Columns {
		if !stringType(c.Type) {
			continue
		}
		qc := query.QuoteIdentifier(c.Name)
		qt := query.QuoteIdentifier(ds.name)
		sql := fmt.Sprintf(
			`(SELECT %[1]s AS value, count(*) AS count FROM %[2]s GROUP BY %[1]s ORDER BY count DESC LIMIT 20)
			UNION ALL
			(SELECT %[1]s AS value, count(*) AS count FROM %[2]s GROUP BY %[1]s ORDER BY count ASC LIMIT 20)`,
			qc, qt)
		f, err := ds.Query(ctx, sql)
		if err != nil {
			return nil, err
		}
		colCounts := make(map[string]int64)
		for _, row := range f.Rows {
			value := "NaN"
			if row[0] != nil {
				value = frame.CellString(row[0])
			}
			count, _ := row[1].(float64)
			colCounts[value] = int64(count)
		}
		counts[c.Name] = colCounts
	}
	return counts, nil
}

// Correlations computes the pairwise Pearson correlations between the
// numeric columns. Pairs without a defined correlation are omitted.
func (ds *DataSource) Correlations(ctx context.Context) (map[string]map[string]float64, error) {
	cols, err := ds.numericColumns(ctx)
	if err != nil {
		return nil, err
	}
	if len(cols) > maxCorrelationColumns {
		ds.p.Logger.Warn("too many numeric columns for correlations, truncating",
			"columns", len(cols), "limit", maxCorrelationColumns)
		cols = cols[:maxCorrelationColumns]
	}
	if len(cols) < 2 {
		return map[string]map[string]float64{}, nil
	}

	var exprs []string
	for _, a := range cols {
		for _, b := range cols {
			if a == b {
				continue
			}
			exprs = append(exprs, fmt.Sprintf(`corr(%s, %s) AS %s`,
				query.QuoteIdentifier(a), query.QuoteIdentifier(b),
				query.QuoteIdentifier(a+statDelimiter+b)))
		}
	}
	sql := fmt.Sprintf(`SELECT %s FROM %s`,
		strings.Join(exprs, ", "), query.QuoteIdentifier(ds.name))

	f, err := ds.Query(ctx, sql)
	if err != nil {
		return nil, err
	}
	if f.NumRows() != 1 {
		return nil, fmt.Errorf("correlation query returned %d rows", f.NumRows())
	}

	corr := make(map[string]map[string]float64)
	for i, alias := range f.Columns {
		a, b, ok := strings.Cut(alias, statDelimiter)
		if !ok {
			continue
		}
		v, isFloat := f.Rows[0][i].(float64)
		if !isFloat {
			continue
		}
		if corr[a] == nil {
			corr[a] = make(map[string]float64)
		}
		corr[a][b] = v
	}
	return corr, nil
}

// ColumnStats combines type, uniqueness, null, zero, descriptive, and
// value count information per column.
func (ds *DataSource) ColumnStats(ctx context.Context) (map[string]ColumnStat, error) {
	meta, err := ds.Metadata(ctx)
	if err != nil {
		return nil, err
	}
	descriptive, err := ds.DescriptiveStats(ctx)
	if err != nil {
		return nil, err
	}
	valueCounts, err := ds.ValueCounts(ctx)
	if err != nil {
		return nil, err
	}

	// The per-column counts are independent scalar queries, so they
	// fan out over the engine's connection pool.
	results := make([]ColumnStat, len(meta.Columns))
	qt := query.QuoteIdentifier(ds.name)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(4)
	for i, c := range meta.Columns {
		g.Go(func() error {
			qc := query.QuoteIdentifier(c.Name)
			cs := ColumnStat{Dtype: c.Type}

			unique, err := ds.scalarInt(gctx,
				fmt.Sprintf(`SELECT COUNT(DISTINCT %s) FROM %s`, qc, qt))
			if err != nil {
				return err
			}
			cs.Unique = unique

			nulls, err := ds.scalarInt(gctx,
				fmt.Sprintf(`SELECT COUNT(*) FROM %s WHERE %s IS NULL`, qt, qc))
			if err != nil {
				return err
			}
			cs.Nulls = nulls

			if numericType(c.Type) {
				zeros, err := ds.scalarInt(gctx,
					fmt.Sprintf(`SELECT COUNT(*) FROM %s WHERE %s = 0`, qt, qc))
				if err != nil {
					return err
				}
				cs.NumZeros = zeros
				if s, ok := descriptive[c.Name]; ok {
					cs.Stats = &s
				}
			}
			if vc, ok := valueCounts[c.Name]; ok {
				cs.ValueCounts = vc
			}
			results[i] = cs
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	stats := make(map[string]ColumnStat, len(meta.Columns))
	for i, c := range meta.Columns {
		stats[c.Name] = results[i]
	}
	return stats, nil
}

// scalarInt runs a single-value query and returns it as int64.
func (ds *DataSource) scalarInt(ctx context.Context, sql string) (int64, error) {
	f, err := ds.Query(ctx, sql)
	if err != nil {
		return 0, err
	}
	if f.NumRows() != 1 || f.NumColumns() != 1 {
		return 0, fmt.Errorf("expected a scalar result, got %dx%d", f.NumRows(), f.NumColumns())
	}
	v, _ := f.Rows[0][0].(float64)
	return int64(v), nil
}

// Outliers returns the rows falling outside scale * IQR of the quartile
// bounds for any numeric column, with an outlier_group column naming the
// violated bound ("<column>_min" or "<column>_max"). Unary and binary
// columns are skipped. Pass scale <= 0 for the default of 1.5.
func (ds *DataSource) Outliers(ctx context.Context, scale float64) (*frame.Frame, error) {
	if scale <= 0 {
		scale = 1.5
	}
	meta, err := ds.Metadata(ctx)
	if err != nil {
		return nil, err
	}
	descriptive, err := ds.DescriptiveStats(ctx)
	if err != nil {
		return nil, err
	}

	type bound struct {
		column string
		lower  float64
		upper  float64
	}
	var bounds []bound
	for _, c := range meta.Columns {
		if !numericType(c.Type) {
			continue
		}
		s, ok := descriptive[c.Name]
		if !ok {
			continue
		}
		unique, err := ds.scalarInt(ctx, fmt.Sprintf(`SELECT COUNT(DISTINCT %s) FROM %s`,
			query.QuoteIdentifier(c.Name), query.QuoteIdentifier(ds.name)))
		if err != nil {
			return nil, err
		}
		// Unary and binary columns have no meaningful outliers.
		if unique <= 2 {
			continue
		}
		iqr := s.Q3 - s.Q1
		bounds = append(bounds, bound{
			column: c.Name,
			lower:  s.Q1 - iqr*scale,
			upper:  s.Q3 + iqr*scale,
		})
	}
	if len(bounds) > maxOutlierColumns {
		ds.p.Logger.Warn("too many numeric columns for outliers, truncating",
			"columns", len(bounds), "limit", maxOutlierColumns)
		bounds = bounds[:maxOutlierColumns]
	}

	allColumns, err := ds.ColumnNames(ctx)
	if err != nil {
		return nil, err
	}
	result := frame.New(append(append([]string{}, allColumns...), "outlier_group")...)
	if len(bounds) == 0 {
		return result, nil
	}

	for _, b := range bounds {
		qc := query.QuoteIdentifier(b.column)
		sql := fmt.Sprintf(`SELECT * FROM %s WHERE %s < %v OR %s > %v LIMIT 5000`,
			query.QuoteIdentifier(ds.name), qc, b.lower, qc, b.upper)
		f, err := ds.Query(ctx, sql)
		if err != nil {
			return nil, err
		}
		idx := f.ColumnIndex(b.column)
		if idx < 0 {
			continue
		}
		for _, row := range f.Rows {
			group := b.column + "_max"
			if v, ok := row[idx].(float64); ok && v < b.lower {
				group = b.column + "_min"
			}
			result.AppendRow(append(append([]any{}, row...), group))
		}
	}

	result = dedupeRows(result, len(allColumns))
	if result.NumRows() > maxOutlierRows {
		ds.p.Logger.Warn("outlier frame too large, sampling down",
			"rows", result.NumRows(), "limit", maxOutlierRows)
		result = result.Slice(0, maxOutlierRows)
	}
	sortByGroup(result)
	return result, nil
}

// SmartSample returns a sample of the data source augmented with its
// outlier rows, deduplicated.
func (ds *DataSource) SmartSample(ctx context.Context) (*frame.Frame, error) {
	sample, err := ds.Sample(ctx, 100)
	if err != nil {
		return nil, err
	}
	outliers, err := ds.Outliers(ctx, 1.5)
	if err != nil {
		return nil, err
	}

	combined := frame.New(sample.Columns...)
	for _, row := range sample.Rows {
		combined.AppendRow(append([]any{}, row...))
	}
	for _, row := range outliers.Rows {
		// Strip the outlier_group column.
		combined.AppendRow(append([]any{}, row[:len(sample.Columns)]...))
	}
	return dedupeRows(combined, combined.NumColumns()), nil
}

// dedupeRows removes duplicate rows, comparing the first n cells.
func dedupeRows(f *frame.Frame, n int) *frame.Frame {
	seen := make(map[string]bool, f.NumRows())
	out := frame.New(f.Columns...)
	for _, row := range f.Rows {
		var key strings.Builder
		for _, cell := range row[:n] {
			key.WriteString(frame.CellString(cell))
			key.WriteByte('\x1f')
		}
		if seen[key.String()] {
			continue
		}
		seen[key.String()] = true
		out.AppendRow(row)
	}
	return out
}

// sortByGroup sorts a frame by its trailing outlier_group column.
func sortByGroup(f *frame.Frame) {
	last := f.NumColumns() - 1
	sort.SliceStable(f.Rows, func(i, j int) bool {
		return frame.CellString(f.Rows[i][last]) < frame.CellString(f.Rows[j][last])
	})
}
