package transform

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sageworks-ml/sageworks/internal/artifact"
	"github.com/sageworks-ml/sageworks/internal/endpoint"
	"github.com/sageworks-ml/sageworks/internal/model"
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

// writeTestCSV writes a linear dataset y = 2a + 3b + 1 with some noise
// columns and returns the file path.
func writeTestCSV(t *testing.T, rows int) string {
	t.Helper()
	var b strings.Builder
	b.WriteString("sample_id,a,b,species,y\n")
	for i := 0; i < rows; i++ {
		a := float64(i%17) / 4
		bb := float64(i%11) / 3
		fmt.Fprintf(&b, "s%d,%g,%g,%s,%g\n", i, a, bb, []string{"red", "blue"}[i%2], 2*a+3*bb+1)
	}
	path := filepath.Join(t.TempDir(), "linear.csv")
	require.NoError(t, os.WriteFile(path, []byte(b.String()), 0o644))
	return path
}

func TestCSVToDataSource(t *testing.T) {
	p := newTestPlatform(t)
	ctx := context.Background()

	ds, err := CSVToDataSource(ctx, p, writeTestCSV(t, 40), "Linear-Data")
	require.NoError(t, err)
	assert.Equal(t, "linear_data", ds.Name())

	rows, err := ds.NumRows(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(40), rows)
}

func TestS3ToDataSourceRejectsLocalPath(t *testing.T) {
	p := newTestPlatform(t)
	_, err := S3ToDataSource(context.Background(), p, "/tmp/data.csv", "bad")
	require.Error(t, err)
}

func TestDataToFeatures(t *testing.T) {
	p := newTestPlatform(t)
	ctx := context.Background()

	_, err := CSVToDataSource(ctx, p, writeTestCSV(t, 40), "linear_data")
	require.NoError(t, err)

	fs, err := DataToFeatures(ctx, p, "linear_data", "linear_features", DataToFeaturesOptions{
		IDColumn:    "sample_id",
		DropColumns: []string{"species"},
	})
	require.NoError(t, err)

	cols, err := fs.ColumnNames(ctx)
	require.NoError(t, err)
	assert.NotContains(t, cols, "species")
	assert.Contains(t, cols, "event_time")

	summary, err := fs.Summary()
	require.NoError(t, err)
	assert.Equal(t, "linear_data", summary.Input)
}

func TestDataToFeaturesMissingSource(t *testing.T) {
	p := newTestPlatform(t)
	_, err := DataToFeatures(context.Background(), p, "nope", "out", DataToFeaturesOptions{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not found")
}

func buildFeatureSet(t *testing.T, p *platform.Platform) {
	t.Helper()
	ctx := context.Background()
	_, err := CSVToDataSource(ctx, p, writeTestCSV(t, 120), "linear_data")
	require.NoError(t, err)
	_, err = DataToFeatures(ctx, p, "linear_data", "linear_features", DataToFeaturesOptions{
		IDColumn:    "sample_id",
		DropColumns: []string{"species"},
	})
	require.NoError(t, err)
}

func TestFeaturesToModel(t *testing.T) {
	p := newTestPlatform(t)
	ctx := context.Background()
	buildFeatureSet(t, p)

	m, err := FeaturesToModel(ctx, p, "linear_features", "Linear-Model", FeaturesToModelOptions{
		ModelType:    model.Regressor,
		TargetColumn: "y",
		FeatureList:  []string{"a", "b"},
	})
	require.NoError(t, err)
	assert.Equal(t, "linear-model", m.Name())

	mt, err := m.Type()
	require.NoError(t, err)
	assert.Equal(t, model.Regressor, mt)

	features, err := m.Features()
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, features)

	params, err := m.Parameters(ctx)
	require.NoError(t, err)
	assert.InDelta(t, 1.0, params.Intercept, 0.05)
	assert.InDelta(t, 2.0, params.Coefficients[0], 0.05)
	assert.InDelta(t, 3.0, params.Coefficients[1], 0.05)

	script, err := m.TrainingScript(ctx)
	require.NoError(t, err)
	assert.Contains(t, script, `"y"`)
	assert.NotContains(t, script, "{{")

	metrics, err := m.TrainingMetrics()
	require.NoError(t, err)
	require.Len(t, metrics, 1)
	assert.Less(t, metrics[0]["RMSE"], 0.01)

	summary, err := m.Summary()
	require.NoError(t, err)
	assert.Equal(t, "linear_features", summary.Input)
	assert.Equal(t, artifact.StatusReady, summary.Status)
}

func TestFeaturesToModelDefaultFeatureList(t *testing.T) {
	p := newTestPlatform(t)
	ctx := context.Background()
	buildFeatureSet(t, p)

	m, err := FeaturesToModel(ctx, p, "linear_features", "auto-model", FeaturesToModelOptions{
		ModelType:    model.Regressor,
		TargetColumn: "y",
	})
	require.NoError(t, err)

	// id, event_time, training, and the target are never features.
	features, err := m.Features()
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"a", "b"}, features)
}

func TestFeaturesToModelClassifier(t *testing.T) {
	p := newTestPlatform(t)
	ctx := context.Background()

	var b strings.Builder
	b.WriteString("a,b,label\n")
	for i := 0; i < 100; i++ {
		if i%2 == 0 {
			fmt.Fprintf(&b, "%g,%g,low\n", float64(i%10)/100, float64(i%7)/100)
		} else {
			fmt.Fprintf(&b, "%g,%g,high\n", 5+float64(i%10)/100, 5+float64(i%7)/100)
		}
	}
	path := filepath.Join(t.TempDir(), "classes.csv")
	require.NoError(t, os.WriteFile(path, []byte(b.String()), 0o644))

	_, err := CSVToDataSource(ctx, p, path, "class_data")
	require.NoError(t, err)
	_, err = DataToFeatures(ctx, p, "class_data", "class_features", DataToFeaturesOptions{})
	require.NoError(t, err)

	m, err := FeaturesToModel(ctx, p, "class_features", "class-model", FeaturesToModelOptions{
		ModelType:    model.Classifier,
		TargetColumn: "label",
		FeatureList:  []string{"a", "b"},
	})
	require.NoError(t, err)

	metrics, err := m.TrainingMetrics()
	require.NoError(t, err)
	require.NotEmpty(t, metrics)

	cm, err := m.ConfusionMatrix()
	require.NoError(t, err)
	assert.Zero(t, cm["low"]["high"])
	assert.Zero(t, cm["high"]["low"])
}

func TestFeaturesToModelRequiresTarget(t *testing.T) {
	p := newTestPlatform(t)
	_, err := FeaturesToModel(context.Background(), p, "fs", "m", FeaturesToModelOptions{
		ModelType: model.Regressor,
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "target column")
}

func TestModelToEndpoint(t *testing.T) {
	p := newTestPlatform(t)
	ctx := context.Background()
	buildFeatureSet(t, p)

	_, err := FeaturesToModel(ctx, p, "linear_features", "linear-model", FeaturesToModelOptions{
		ModelType:    model.Regressor,
		TargetColumn: "y",
		FeatureList:  []string{"a", "b"},
	})
	require.NoError(t, err)

	e, err := ModelToEndpoint(ctx, p, "linear-model", "linear-end", ModelToEndpointOptions{
		URL:        "http://localhost:8080",
		Serverless: true,
	})
	require.NoError(t, err)

	url, err := e.URL()
	require.NoError(t, err)
	assert.Equal(t, "http://localhost:8080", url)

	modelName, err := e.ModelName()
	require.NoError(t, err)
	assert.Equal(t, "linear-model", modelName)

	meta, err := p.Catalog.GetMeta(artifact.KindEndpoint, "linear-end")
	require.NoError(t, err)
	assert.Equal(t, "true", meta[endpoint.MetaServerless])
	assert.Equal(t, "2048", meta[endpoint.MetaServerlessMemory])
	assert.Equal(t, "5", meta[endpoint.MetaServerlessConcurrency])

	served, err := model.New(p, "linear-model").Endpoints()
	require.NoError(t, err)
	assert.Equal(t, []string{"linear-end"}, served)
}

func TestModelToEndpointMissingModel(t *testing.T) {
	p := newTestPlatform(t)
	_, err := ModelToEndpoint(context.Background(), p, "ghost", "end", ModelToEndpointOptions{
		URL: "http://localhost:9",
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not found")
}
