package meta

import (
	"context"
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

func register(t *testing.T, p *platform.Platform, kind artifact.Kind, name, input string) {
	t.Helper()
	require.NoError(t, p.Catalog.RegisterArtifact(&artifact.Record{
		Kind: kind, Name: name, Input: input,
	}))
	require.NoError(t, p.Catalog.UpsertMeta(kind, name, artifact.Meta{
		artifact.MetaStatus: artifact.StatusReady,
		artifact.MetaTags:   artifact.JoinTags([]string{"test"}),
	}))
}

func TestListingsByKind(t *testing.T) {
	p := newTestPlatform(t)
	m := New(p)

	register(t, p, artifact.KindDataSource, "abalone_data", "/data/abalone.csv")
	register(t, p, artifact.KindDataSource, "wine_data", "/data/wine.csv")
	register(t, p, artifact.KindFeatureSet, "abalone_features", "abalone_data")
	register(t, p, artifact.KindModel, "abalone-regression", "abalone_features")
	register(t, p, artifact.KindEndpoint, "abalone-regression-end", "abalone-regression")

	ds, err := m.DataSources()
	require.NoError(t, err)
	require.Len(t, ds, 2)
	assert.Equal(t, "abalone_data", ds[0].Name)
	assert.Equal(t, artifact.StatusReady, ds[0].Status)

	fs, err := m.FeatureSets()
	require.NoError(t, err)
	require.Len(t, fs, 1)
	assert.Equal(t, "abalone_data", fs[0].Input)

	models, err := m.Models()
	require.NoError(t, err)
	assert.Len(t, models, 1)

	eps, err := m.Endpoints()
	require.NoError(t, err)
	assert.Len(t, eps, 1)

	all, err := m.All()
	require.NoError(t, err)
	assert.Len(t, all[artifact.KindDataSource], 2)
	assert.Len(t, all[artifact.KindEndpoint], 1)
}

func TestListingsFlagIncompleteMetadata(t *testing.T) {
	p := newTestPlatform(t)
	m := New(p)

	// Missing sageworks_input metadata means the data source still
	// needs onboarding.
	require.NoError(t, p.Catalog.RegisterArtifact(&artifact.Record{
		Kind: artifact.KindDataSource, Name: "half_baked", Input: "/data/raw.csv",
	}))
	require.NoError(t, p.Catalog.UpsertMeta(artifact.KindDataSource, "half_baked", artifact.Meta{
		artifact.MetaStatus: artifact.StatusInitializing,
	}))

	require.NoError(t, p.Catalog.RegisterArtifact(&artifact.Record{
		Kind: artifact.KindDataSource, Name: "fully_baked", Input: "/data/raw.csv",
	}))
	require.NoError(t, p.Catalog.UpsertMeta(artifact.KindDataSource, "fully_baked", artifact.Meta{
		artifact.MetaStatus: artifact.StatusReady,
		artifact.MetaInput:  "/data/raw.csv",
	}))

	ds, err := m.DataSources()
	require.NoError(t, err)
	require.Len(t, ds, 2)

	byName := map[string][]string{}
	for _, s := range ds {
		byName[s.Name] = s.HealthTags
	}
	assert.Contains(t, byName["half_baked"], "needs_onboard")
	assert.Empty(t, byName["fully_baked"])
}

func TestEmptyAccount(t *testing.T) {
	m := New(newTestPlatform(t))

	ds, err := m.DataSources()
	require.NoError(t, err)
	assert.Empty(t, ds)

	pipes, err := m.Pipelines(context.Background())
	require.NoError(t, err)
	assert.Empty(t, pipes)
}
