package paramstore

import (
	"context"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

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

func TestUpsertGetRoundTrip(t *testing.T) {
	s := newTestStore(t)

	require.NoError(t, s.Upsert("abalone/scale", 2.5))
	var scale float64
	require.NoError(t, s.Get("abalone/scale", &scale))
	assert.Equal(t, 2.5, scale)

	require.NoError(t, s.Upsert("abalone/config", map[string]any{
		"target":   "rings",
		"features": []string{"length", "diameter"},
	}))
	var cfg map[string]any
	require.NoError(t, s.Get("abalone/config", &cfg))
	assert.Equal(t, "rings", cfg["target"])
}

func TestUpsertOverwrites(t *testing.T) {
	s := newTestStore(t)

	require.NoError(t, s.Upsert("k", "one"))
	require.NoError(t, s.Upsert("k", "two"))

	var v string
	require.NoError(t, s.Get("k", &v))
	assert.Equal(t, "two", v)
}

func TestLargeValueCompressed(t *testing.T) {
	s := newTestStore(t)

	// Highly repetitive, compresses well under the limit.
	big := strings.Repeat("sageworks ", 2000)
	require.Greater(t, len(big), MaxValueBytes)
	require.NoError(t, s.Upsert("big", big))

	var got string
	require.NoError(t, s.Get("big", &got))
	assert.Equal(t, big, got)
}

func TestIncompressibleValueRejected(t *testing.T) {
	s := newTestStore(t)

	// Pseudo-random printable text barely compresses at all.
	payload := make([]byte, 4*MaxValueBytes)
	state := uint64(0x9e3779b97f4a7c15)
	for i := range payload {
		state = state*6364136223846793005 + 1442695040888963407
		payload[i] = byte(33 + (state>>33)%90)
	}
	err := s.Upsert("noise", string(payload))
	require.ErrorIs(t, err, ErrTooLarge)
}

func TestListPrefix(t *testing.T) {
	s := newTestStore(t)

	require.NoError(t, s.Upsert("abalone/target", "rings"))
	require.NoError(t, s.Upsert("abalone/scale", 1.5))
	require.NoError(t, s.Upsert("wine/target", "quality"))

	names, err := s.List("abalone/")
	require.NoError(t, err)
	assert.Equal(t, []string{"abalone/scale", "abalone/target"}, names)

	all, err := s.List("")
	require.NoError(t, err)
	assert.Len(t, all, 3)
}

func TestDelete(t *testing.T) {
	s := newTestStore(t)

	require.NoError(t, s.Upsert("gone", 1))
	require.NoError(t, s.Delete("gone"))

	var v int
	require.ErrorIs(t, s.Get("gone", &v), ErrNotFound)
	require.ErrorIs(t, s.Delete("gone"), ErrNotFound)
}
