package datasource

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sageworks-ml/sageworks/internal/artifact"
	"github.com/sageworks-ml/sageworks/internal/platform"
	"github.com/sageworks-ml/sageworks/internal/storage"
	"github.com/sageworks-ml/sageworks/internal/testutil"
)

func newTestPlatform(t *testing.T) *platform.Platform {
	t.Helper()
	dir := t.TempDir()
	p, err := platform.New(context.Background(), platform.Options{
		Bucket:      "sageworks-test",
		CatalogPath: filepath.Join(dir, "catalog.db"),
		Storage:     storage.Config{LocalRoot: filepath.Join(dir, "store")},
		Logger:      testutil.NewTestLogger(t),
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = p.Close() })
	return p
}

func writeTestCSV(t *testing.T, contents string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.csv")
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o644))
	return path
}

const abaloneCSV = `length,diameter,height,sex,class_number_of_rings
0.455,0.365,0.095,M,15
0.35,0.265,0.09,M,7
0.53,0.42,0.135,F,9
0.44,0.365,0.125,F,10
0.33,0.255,0.08,I,7
0.425,0.3,0.095,F,8
0.53,0.415,0.15,M,20
0.545,0.425,0.125,F,16
`

func createTestDataSource(t *testing.T, p *platform.Platform) *DataSource {
	t.Helper()
	ds, err := FromSource(context.Background(), p, writeTestCSV(t, abaloneCSV), "Abalone-Data")
	require.NoError(t, err)
	return ds
}

func TestFromSourceCompliantNameAndSummary(t *testing.T) {
	p := newTestPlatform(t)
	ds := createTestDataSource(t, p)

	assert.Equal(t, "abalone_data", ds.Name())

	exists, err := ds.Exists()
	require.NoError(t, err)
	assert.True(t, exists)

	summary, err := ds.Summary()
	require.NoError(t, err)
	assert.Equal(t, artifact.KindDataSource, summary.Kind)
	assert.Equal(t, artifact.StatusReady, summary.Status)
	assert.Contains(t, summary.Tags, "abalone")
	assert.Greater(t, summary.SizeBytes, int64(0))
}

func TestFromSourceRejectsEmptyName(t *testing.T) {
	p := newTestPlatform(t)
	path := writeTestCSV(t, abaloneCSV)

	_, err := FromSource(context.Background(), p, path, "!!!")
	require.ErrorIs(t, err, artifact.ErrEmptyName)

	// Nothing reached the catalog.
	recs, err := p.Catalog.ListArtifacts(artifact.KindDataSource)
	require.NoError(t, err)
	assert.Empty(t, recs)
}

func TestQueryAndShape(t *testing.T) {
	p := newTestPlatform(t)
	ds := createTestDataSource(t, p)
	ctx := context.Background()

	rows, err := ds.NumRows(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(8), rows)

	cols, err := ds.ColumnNames(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"length", "diameter", "height", "sex", "class_number_of_rings"}, cols)

	f, err := ds.Query(ctx, `SELECT sex, count(*) AS n FROM abalone_data GROUP BY sex ORDER BY sex`)
	require.NoError(t, err)
	assert.Equal(t, 3, f.NumRows())
}

func TestEnsureTableReloadsFromBucket(t *testing.T) {
	p := newTestPlatform(t)
	createTestDataSource(t, p)
	ctx := context.Background()

	// Simulate a fresh process: the catalog knows the artifact but the
	// query engine has no table.
	require.NoError(t, p.Query.DropTable(ctx, "abalone_data"))

	ds := New(p, "abalone_data")
	rows, err := ds.NumRows(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(8), rows)
}

func TestDescriptiveStats(t *testing.T) {
	p := newTestPlatform(t)
	ds := createTestDataSource(t, p)

	stats, err := ds.DescriptiveStats(context.Background())
	require.NoError(t, err)

	rings, ok := stats["class_number_of_rings"]
	require.True(t, ok)
	assert.Equal(t, 7.0, rings.Min)
	assert.Equal(t, 20.0, rings.Max)
	assert.InDelta(t, 11.5, rings.Mean, 0.001)
	assert.Greater(t, rings.StdDev, 0.0)

	// String columns are excluded.
	_, ok = stats["sex"]
	assert.False(t, ok)
}

func TestValueCounts(t *testing.T) {
	p := newTestPlatform(t)
	ds := createTestDataSource(t, p)

	counts, err := ds.ValueCounts(context.Background())
	require.NoError(t, err)

	sex, ok := counts["sex"]
	require.True(t, ok)
	assert.Equal(t, int64(4), sex["F"])
	assert.Equal(t, int64(3), sex["M"])
	assert.Equal(t, int64(1), sex["I"])
}

func TestCorrelations(t *testing.T) {
	p := newTestPlatform(t)
	ds := createTestDataSource(t, p)

	corr, err := ds.Correlations(context.Background())
	require.NoError(t, err)

	// Length and diameter are strongly correlated in the abalone data.
	require.Contains(t, corr, "length")
	assert.Greater(t, corr["length"]["diameter"], 0.9)
	// The matrix is symmetric.
	assert.InDelta(t, corr["length"]["diameter"], corr["diameter"]["length"], 1e-9)
}

func TestColumnStats(t *testing.T) {
	p := newTestPlatform(t)
	ds := createTestDataSource(t, p)

	stats, err := ds.ColumnStats(context.Background())
	require.NoError(t, err)

	sex := stats["sex"]
	assert.Equal(t, int64(3), sex.Unique)
	assert.Equal(t, int64(0), sex.Nulls)
	assert.NotNil(t, sex.ValueCounts)
	assert.Nil(t, sex.Stats)

	rings := stats["class_number_of_rings"]
	assert.Equal(t, int64(0), rings.Nulls)
	require.NotNil(t, rings.Stats)
	assert.Equal(t, 7.0, rings.Stats.Min)
}

func TestOutliers(t *testing.T) {
	p := newTestPlatform(t)
	ctx := context.Background()

	// One wild value in an otherwise tight distribution.
	var csv = "id,value\n"
	for i := 0; i < 20; i++ {
		csv += fmt.Sprintf("%d,%d\n", i, 10+i%3)
	}
	csv += "99,1000\n"
	ds, err := FromSource(ctx, p, writeTestCSV(t, csv), "outlier_data")
	require.NoError(t, err)

	outliers, err := ds.Outliers(ctx, 1.5)
	require.NoError(t, err)
	assert.Equal(t, []string{"id", "value", "outlier_group"}, outliers.Columns)
	require.GreaterOrEqual(t, outliers.NumRows(), 1)

	groupIdx := outliers.ColumnIndex("outlier_group")
	groups := make(map[string]bool)
	for _, row := range outliers.Rows {
		groups[row[groupIdx].(string)] = true
	}
	assert.True(t, groups["value_max"] || groups["id_max"])
}

func TestSmartSampleDeduplicates(t *testing.T) {
	p := newTestPlatform(t)
	ds := createTestDataSource(t, p)

	sample, err := ds.SmartSample(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"length", "diameter", "height", "sex", "class_number_of_rings"}, sample.Columns)
	// All 8 rows fit in the sample and duplicates collapse.
	assert.LessOrEqual(t, sample.NumRows(), 8)
	assert.Greater(t, sample.NumRows(), 0)
}

func TestDelete(t *testing.T) {
	p := newTestPlatform(t)
	ds := createTestDataSource(t, p)
	ctx := context.Background()

	require.NoError(t, ds.Delete(ctx))

	exists, err := ds.Exists()
	require.NoError(t, err)
	assert.False(t, exists)

	objects, err := p.Store.ListPrefix(ctx, p.Bucket, p.Layout.DataSourcePrefix("abalone_data"))
	require.NoError(t, err)
	assert.Empty(t, objects)
}
