package scriptgen

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTemplateFor(t *testing.T) {
	tests := []struct {
		name    string
		params  Params
		want    string
		wantErr bool
	}{
		{"regressor", Params{ModelType: "regressor"}, "xgb_model.template", false},
		{"classifier", Params{ModelType: "classifier"}, "xgb_model.template", false},
		{"quantiles", Params{ModelType: "quantile_regressor"}, "quant_regression.template", false},
		{"custom class", Params{ModelType: "clusterer", ModelClass: "KMeans"}, "scikit_learn.template", false},
		{"unsupported", Params{ModelType: "transformer"}, "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := TemplateFor(tt.params)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestGenerateRegressor(t *testing.T) {
	script, err := Generate(Params{
		ModelType:          "regressor",
		TargetColumn:       "class_number_of_rings",
		FeatureList:        []string{"length", "diameter", "height"},
		ModelMetricsS3Path: "s3://sageworks-bucket/models/training/abalone-regression",
		TrainAllData:       false,
	})
	require.NoError(t, err)

	assert.Contains(t, script, `"class_number_of_rings"`)
	assert.Contains(t, script, `["length","diameter","height"]`)
	assert.Contains(t, script, `s3://sageworks-bucket/models/training/abalone-regression`)
	assert.Contains(t, script, `"train_all_data": False`)
	assert.NotContains(t, script, "{{")
}

func TestGenerateCustomClass(t *testing.T) {
	script, err := Generate(Params{
		ModelType:    "clusterer",
		ModelClass:   "KMeans",
		ModelImports: "from sklearn.cluster import KMeans",
		FeatureList:  []string{"alcohol", "hue"},
	})
	require.NoError(t, err)

	assert.Contains(t, script, "from sklearn.cluster import KMeans")
	assert.Contains(t, script, "model = KMeans()")
	assert.NotContains(t, script, "{{")
}
