package dfstore

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sageworks-ml/sageworks/internal/frame"
	"github.com/sageworks-ml/sageworks/internal/platform"
	"github.com/sageworks-ml/sageworks/internal/storage"
	"github.com/sageworks-ml/sageworks/internal/testutil"
)

func newTestStore(t *testing.T) *Store {
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
	return New(p)
}

func testFrame() *frame.Frame {
	f := frame.New("name", "value")
	f.AppendRow([]any{"alpha", 1.5})
	f.AppendRow([]any{"beta", 2.5})
	return f
}

func TestUpsertGetRoundTrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.Upsert(ctx, "experiments/baseline", testFrame()))

	got, err := s.Get(ctx, "experiments/baseline")
	require.NoError(t, err)
	assert.Equal(t, []string{"name", "value"}, got.Columns)
	require.Equal(t, 2, got.NumRows())
	assert.Equal(t, "alpha", got.Rows[0][0])
	assert.Equal(t, 2.5, got.Rows[1][1])
}

func TestGetMissing(t *testing.T) {
	s := newTestStore(t)
	_, err := s.Get(context.Background(), "nope")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestExists(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	ok, err := s.Exists(ctx, "results")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, s.Upsert(ctx, "results", testFrame()))
	ok, err = s.Exists(ctx, "results")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestListByPrefix(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.Upsert(ctx, "experiments/a", testFrame()))
	require.NoError(t, s.Upsert(ctx, "experiments/b", testFrame()))
	require.NoError(t, s.Upsert(ctx, "reports/q1", testFrame()))

	entries, err := s.List(ctx, "experiments")
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "experiments/a", entries[0].Location)
	assert.Equal(t, "experiments/b", entries[1].Location)
	assert.False(t, entries[0].LastModified.IsZero())
	assert.Greater(t, entries[0].SizeBytes, int64(0))

	all, err := s.List(ctx, "")
	require.NoError(t, err)
	assert.Len(t, all, 3)
}

func TestDelete(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.Upsert(ctx, "temp", testFrame()))
	require.NoError(t, s.Delete(ctx, "temp"))

	ok, err := s.Exists(ctx, "temp")
	require.NoError(t, err)
	assert.False(t, ok)

	// Deleting again is a no-op.
	require.NoError(t, s.Delete(ctx, "temp"))
}
