package model

import (
	"context"
	"encoding/json"
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

// registerTestModel registers a model artifact directly, the way the
// features-to-model transform does.
func registerTestModel(t *testing.T, p *platform.Platform, name string) *Model {
	t.Helper()
	ctx := context.Background()
	m := New(p, name)

	require.NoError(t, p.Catalog.RegisterArtifact(&artifact.Record{
		Kind:  artifact.KindModel,
		Name:  m.Name(),
		Input: "abalone_features",
	}))
	require.NoError(t, p.Catalog.UpsertMeta(artifact.KindModel, m.Name(), artifact.Meta{
		artifact.MetaStatus: artifact.StatusReady,
		MetaModelType:       string(Regressor),
		MetaModelTarget:     "rings",
		MetaModelFeatures:   artifact.JoinTags([]string{"length", "diameter"}),
	}))

	params := &LinearParameters{
		ModelType:    Regressor,
		Target:       "rings",
		Features:     []string{"length", "diameter"},
		Intercept:    1.0,
		Coefficients: []float64{2.0, 3.0},
	}
	data, err := json.Marshal(params)
	require.NoError(t, err)
	require.NoError(t, p.Store.PutObject(ctx, p.Bucket, p.Layout.ModelKey(m.Name(), ParamsFile), data))
	return m
}

func TestModelAccessors(t *testing.T) {
	p := newTestPlatform(t)
	m := registerTestModel(t, p, "Abalone_Regression")

	assert.Equal(t, "abalone-regression", m.Name())

	mt, err := m.Type()
	require.NoError(t, err)
	assert.Equal(t, Regressor, mt)

	target, err := m.Target()
	require.NoError(t, err)
	assert.Equal(t, "rings", target)

	features, err := m.Features()
	require.NoError(t, err)
	assert.Equal(t, []string{"length", "diameter"}, features)

	params, err := m.Parameters(context.Background())
	require.NoError(t, err)
	assert.InDelta(t, 27.0, params.Predict([]float64{10, 2}), 1e-9)
}

func TestTrainingMetricsRoundTrip(t *testing.T) {
	p := newTestPlatform(t)
	m := registerTestModel(t, p, "metrics-model")

	metrics, err := m.TrainingMetrics()
	require.NoError(t, err)
	assert.Nil(t, metrics)

	in := []Metrics{{"MAE": 1.2, "RMSE": 1.9, "R2": 0.87}}
	require.NoError(t, m.SetTrainingMetrics(in, nil))

	out, err := m.TrainingMetrics()
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.InDelta(t, 0.87, out[0]["R2"], 1e-9)
}

func TestInferenceMetricsKeptApart(t *testing.T) {
	p := newTestPlatform(t)
	m := registerTestModel(t, p, "apart-model")

	trained := []Metrics{{"RMSE": 1.9}}
	require.NoError(t, m.SetTrainingMetrics(trained, nil))
	require.NoError(t, m.SetInferenceMetrics([]Metrics{{"RMSE": 2.4}}, nil))

	training, err := m.TrainingMetrics()
	require.NoError(t, err)
	assert.Equal(t, trained, training)

	inference, err := m.InferenceMetrics()
	require.NoError(t, err)
	require.Len(t, inference, 1)
	assert.InDelta(t, 2.4, inference[0]["RMSE"], 1e-9)
}

func TestConfusionMatrixRoundTrip(t *testing.T) {
	p := newTestPlatform(t)
	m := registerTestModel(t, p, "cm-model")

	cm := map[string]map[string]int{
		"low":  {"low": 8, "high": 2},
		"high": {"low": 1, "high": 9},
	}
	require.NoError(t, m.SetTrainingMetrics([]Metrics{{"fscore": 0.9}}, cm))

	out, err := m.ConfusionMatrix()
	require.NoError(t, err)
	assert.Equal(t, 9, out["high"]["high"])
}

func TestDeleteBlockedByEndpoints(t *testing.T) {
	p := newTestPlatform(t)
	m := registerTestModel(t, p, "served-model")
	ctx := context.Background()

	require.NoError(t, p.Catalog.RegisterEndpoint(m.Name(), "served-model-end"))
	err := m.Delete(ctx)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "served-model-end")

	require.NoError(t, p.Catalog.UnregisterEndpoint("served-model-end"))
	require.NoError(t, m.Delete(ctx))

	exists, err := m.Exists()
	require.NoError(t, err)
	assert.False(t, exists)
}
