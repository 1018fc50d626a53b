package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sageworks-ml/sageworks/internal/datasource"
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

func writeLinearCSV(t *testing.T) string {
	t.Helper()
	var b strings.Builder
	b.WriteString("a,b,y\n")
	for i := 0; i < 100; i++ {
		a := float64(i%13) / 4
		bb := float64(i%7) / 3
		fmt.Fprintf(&b, "%g,%g,%g\n", a, bb, 2*a+3*bb+1)
	}
	path := filepath.Join(t.TempDir(), "linear.csv")
	require.NoError(t, os.WriteFile(path, []byte(b.String()), 0o644))
	return path
}

func linearDefinition(csvPath string) *Definition {
	return &Definition{
		Name: "linear_pipeline_v1",
		DataSource: &Step{
			Name:  "linear_data",
			Input: csvPath,
		},
		FeatureSet: &Step{
			Name:  "linear_features",
			Input: "linear_data",
		},
		Model: &Step{
			Name:         "linear-model",
			Input:        "linear_features",
			ModelType:    "regressor",
			TargetColumn: "y",
			FeatureList:  []string{"a", "b"},
		},
		Endpoint: &Step{
			Name:       "linear-end",
			Input:      "linear-model",
			URL:        "http://localhost:8080",
			Serverless: true,
		},
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Definition)
		wantErr string
	}{
		{"valid", func(d *Definition) {}, ""},
		{"missing name", func(d *Definition) { d.Name = "" }, "name is required"},
		{"step without name", func(d *Definition) { d.Model.Name = "" }, "stage model"},
		{"step without input", func(d *Definition) { d.FeatureSet.Input = "" }, "stage feature_set"},
		{"model without type", func(d *Definition) { d.Model.ModelType = "" }, "model_type"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			def := linearDefinition("/tmp/x.csv")
			tt.mutate(def)
			err := def.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
			} else {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
			}
		})
	}
}

func TestPublishGetDelete(t *testing.T) {
	p := newTestPlatform(t)
	ctx := context.Background()
	m := NewManager(p)

	def := linearDefinition("/data/linear.csv")
	require.NoError(t, m.Publish(ctx, def))

	got, err := m.Get(ctx, "linear_pipeline_v1")
	require.NoError(t, err)
	assert.Equal(t, def, got)

	entries, err := m.List(ctx)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "linear_pipeline_v1", entries[0].Name)
	assert.False(t, entries[0].LastModified.IsZero())

	require.NoError(t, m.Delete(ctx, "linear_pipeline_v1"))
	_, err = m.Get(ctx, "linear_pipeline_v1")
	require.ErrorIs(t, err, ErrNotFound)
	require.ErrorIs(t, m.Delete(ctx, "linear_pipeline_v1"), ErrNotFound)
}

func TestPublishFileDefaultsName(t *testing.T) {
	p := newTestPlatform(t)
	ctx := context.Background()
	m := NewManager(p)

	def := linearDefinition("/data/linear.csv")
	def.Name = ""
	data, err := json.Marshal(def)
	require.NoError(t, err)
	path := filepath.Join(t.TempDir(), "wine_pipeline.json")
	require.NoError(t, os.WriteFile(path, data, 0o644))

	published, err := m.PublishFile(ctx, path)
	require.NoError(t, err)
	assert.Equal(t, "wine_pipeline", published.Name)

	got, err := m.Get(ctx, "wine_pipeline")
	require.NoError(t, err)
	assert.Equal(t, "wine_pipeline", got.Name)
}

func TestExecuteFullChain(t *testing.T) {
	p := newTestPlatform(t)
	ctx := context.Background()

	def := linearDefinition(writeLinearCSV(t))
	require.NoError(t, NewExecutor(p).Execute(ctx, def))

	ds := datasource.New(p, "linear_data")
	rows, err := ds.NumRows(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(100), rows)

	m := model.New(p, "linear-model")
	params, err := m.Parameters(ctx)
	require.NoError(t, err)
	assert.InDelta(t, 2.0, params.Coefficients[0], 0.05)

	endpoints, err := m.Endpoints()
	require.NoError(t, err)
	assert.Equal(t, []string{"linear-end"}, endpoints)
}

func TestExecutePartialSubset(t *testing.T) {
	p := newTestPlatform(t)
	ctx := context.Background()

	def := linearDefinition(writeLinearCSV(t))
	ex := NewExecutor(p)
	require.NoError(t, ex.ExecutePartial(ctx, def, []string{"data_source", "feature_set"}))

	// The model stage did not run.
	exists, err := model.New(p, "linear-model").Exists()
	require.NoError(t, err)
	assert.False(t, exists)

	// The remaining stages pick up where the first run stopped.
	require.NoError(t, ex.ExecutePartial(ctx, def, []string{"model", "endpoint"}))
	exists, err = model.New(p, "linear-model").Exists()
	require.NoError(t, err)
	assert.True(t, exists)
}

func TestExecuteFailsFast(t *testing.T) {
	p := newTestPlatform(t)
	ctx := context.Background()

	def := linearDefinition(filepath.Join(t.TempDir(), "missing.csv"))
	err := NewExecutor(p).Execute(ctx, def)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "stage data_source")
}

func TestCreateFromEndpoint(t *testing.T) {
	p := newTestPlatform(t)
	ctx := context.Background()

	def := linearDefinition(writeLinearCSV(t))
	require.NoError(t, NewExecutor(p).Execute(ctx, def))

	rebuilt, err := CreateFromEndpoint(p, "linear-end")
	require.NoError(t, err)
	assert.Equal(t, "linear-end_pipeline", rebuilt.Name)
	assert.Equal(t, "linear_data", rebuilt.FeatureSet.Input)
	assert.Equal(t, "linear_features", rebuilt.Model.Input)
	assert.Equal(t, "regressor", rebuilt.Model.ModelType)
	assert.Equal(t, "y", rebuilt.Model.TargetColumn)
	assert.Equal(t, []string{"a", "b"}, rebuilt.Model.FeatureList)
	assert.Equal(t, "http://localhost:8080", rebuilt.Endpoint.URL)
}
