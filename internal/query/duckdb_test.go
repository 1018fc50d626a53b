package query

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestAdapter(t *testing.T) Adapter {
	t.Helper()
	a, err := New("duckdb")
	require.NoError(t, err)
	require.NoError(t, a.Connect(context.Background(), Config{Type: "duckdb", Path: ":memory:"}))
	t.Cleanup(func() { _ = a.Close() })
	return a
}

func TestRegistryUnknownAdapter(t *testing.T) {
	_, err := New("bigquery")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "bigquery")
}

func TestExecAndQueryFrame(t *testing.T) {
	a := newTestAdapter(t)
	ctx := context.Background()

	require.NoError(t, a.Exec(ctx, `CREATE TABLE readings (id INTEGER, name VARCHAR, value DOUBLE)`))
	require.NoError(t, a.Exec(ctx, `INSERT INTO readings VALUES (1, 'alpha', 1.5), (2, 'beta', NULL)`))

	f, err := a.QueryFrame(ctx, `SELECT * FROM readings ORDER BY id`)
	require.NoError(t, err)
	assert.Equal(t, []string{"id", "name", "value"}, f.Columns)
	require.Equal(t, 2, f.NumRows())

	assert.Equal(t, float64(1), f.Rows[0][0])
	assert.Equal(t, "alpha", f.Rows[0][1])
	assert.Equal(t, 1.5, f.Rows[0][2])
	assert.Nil(t, f.Rows[1][2])
}

func TestTableMetadata(t *testing.T) {
	a := newTestAdapter(t)
	ctx := context.Background()

	require.NoError(t, a.Exec(ctx, `CREATE TABLE abalone (length DOUBLE, rings INTEGER)`))
	require.NoError(t, a.Exec(ctx, `INSERT INTO abalone VALUES (0.455, 15), (0.35, 7), (0.53, 9)`))

	meta, err := a.TableMetadata(ctx, "abalone")
	require.NoError(t, err)
	assert.Equal(t, "abalone", meta.Name)
	assert.Equal(t, int64(3), meta.RowCount)
	require.Len(t, meta.Columns, 2)
	assert.Equal(t, "length", meta.Columns[0].Name)
	assert.Equal(t, "rings", meta.Columns[1].Name)

	_, err = a.TableMetadata(ctx, "missing_table")
	assert.Error(t, err)
}

func TestLoadCSV(t *testing.T) {
	a := newTestAdapter(t)
	ctx := context.Background()

	csvPath := filepath.Join(t.TempDir(), "sample.csv")
	require.NoError(t, os.WriteFile(csvPath, []byte("id,score\n1,0.9\n2,0.4\n"), 0o644))

	require.NoError(t, a.LoadCSV(ctx, "sample", csvPath))

	f, err := a.QueryFrame(ctx, `SELECT COUNT(*) AS n FROM sample`)
	require.NoError(t, err)
	assert.Equal(t, float64(2), f.Rows[0][0])

	require.NoError(t, a.DropTable(ctx, "sample"))
	_, err = a.TableMetadata(ctx, "sample")
	assert.Error(t, err)
}

func TestQuoteIdentifier(t *testing.T) {
	assert.Equal(t, `"abalone"`, QuoteIdentifier("abalone"))
	assert.Equal(t, `"main"."abalone"`, QuoteIdentifier("main.abalone"))
	assert.Equal(t, `"odd""name"`, QuoteIdentifier(`odd"name`))
}
