package model

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sageworks-ml/sageworks/internal/frame"
)

func regressionFrame() *frame.Frame {
	// y = 2*a + 3*b + 1
	f := frame.New("a", "b", "y")
	for i := 0; i < 30; i++ {
		a := float64(i)
		b := float64(i%7) * 0.5
		f.AppendRow([]any{a, b, 2*a + 3*b + 1})
	}
	return f
}

func TestTrainRegressorRecoversCoefficients(t *testing.T) {
	params, err := Train(regressionFrame(), Regressor, "y", []string{"a", "b"})
	require.NoError(t, err)

	assert.Equal(t, Regressor, params.ModelType)
	require.Len(t, params.Coefficients, 2)
	assert.InDelta(t, 2.0, params.Coefficients[0], 0.01)
	assert.InDelta(t, 3.0, params.Coefficients[1], 0.01)
	assert.InDelta(t, 1.0, params.Intercept, 0.1)

	pred := params.Predict([]float64{10, 2})
	assert.InDelta(t, 27.0, pred, 0.1)
}

func TestTrainRegressorSkipsRowsWithMissingValues(t *testing.T) {
	f := regressionFrame()
	f.AppendRow([]any{nil, 1.0, 5.0})
	f.AppendRow([]any{1.0, 2.0, nil})

	params, err := Train(f, Regressor, "y", []string{"a", "b"})
	require.NoError(t, err)
	assert.InDelta(t, 2.0, params.Coefficients[0], 0.01)
}

func TestTrainMissingColumns(t *testing.T) {
	_, err := Train(regressionFrame(), Regressor, "y", []string{"a", "nope"})
	assert.Error(t, err)

	_, err = Train(regressionFrame(), Regressor, "nope", []string{"a", "b"})
	assert.Error(t, err)
}

func TestTrainQuantileRegressor(t *testing.T) {
	params, err := Train(regressionFrame(), QuantileRegressor, "y", []string{"a", "b"})
	require.NoError(t, err)

	assert.Equal(t, QuantileRegressor, params.ModelType)
	require.Len(t, params.Quantiles, 5)
	assert.LessOrEqual(t, params.Quantiles["q_05"], params.Quantiles["q_50"])
	assert.LessOrEqual(t, params.Quantiles["q_50"], params.Quantiles["q_95"])
}

func TestTrainClassifierSeparatesClasses(t *testing.T) {
	f := frame.New("x1", "x2", "label")
	for i := 0; i < 20; i++ {
		jitter := float64(i%5) * 0.01
		f.AppendRow([]any{0.0 + jitter, 0.0 + jitter, "low"})
		f.AppendRow([]any{5.0 + jitter, 5.0 + jitter, "high"})
	}

	params, err := Train(f, Classifier, "label", []string{"x1", "x2"})
	require.NoError(t, err)
	assert.Equal(t, []string{"high", "low"}, params.Classes)

	best, scores := params.ClassScores([]float64{5, 5})
	assert.Equal(t, "high", params.Classes[best])

	probs := Softmax(scores)
	var sum float64
	for _, p := range probs {
		sum += p
	}
	assert.InDelta(t, 1.0, sum, 1e-9)
	assert.Greater(t, probs[0], probs[1])

	best, _ = params.ClassScores([]float64{0, 0})
	assert.Equal(t, "low", params.Classes[best])
}

func TestTrainClassifierSingleClass(t *testing.T) {
	f := frame.New("x", "label")
	for i := 0; i < 10; i++ {
		f.AppendRow([]any{float64(i), "only"})
	}
	_, err := Train(f, Classifier, "label", []string{"x"})
	assert.Error(t, err)
}

func TestTrainUnsupportedType(t *testing.T) {
	_, err := Train(regressionFrame(), Transformer, "y", []string{"a"})
	assert.Error(t, err)
}

func TestEmpiricalQuantile(t *testing.T) {
	sorted := []float64{1, 2, 3, 4, 5}
	assert.Equal(t, 1.0, empiricalQuantile(sorted, 0))
	assert.Equal(t, 3.0, empiricalQuantile(sorted, 0.5))
	assert.Equal(t, 5.0, empiricalQuantile(sorted, 1))
	assert.InDelta(t, 2.0, empiricalQuantile(sorted, 0.25), 1e-9)
}

func TestParseType(t *testing.T) {
	assert.Equal(t, Regressor, ParseType("regressor"))
	assert.Equal(t, Classifier, ParseType("Classifier"))
	assert.Equal(t, QuantileRegressor, ParseType("quantile_regressor"))
	assert.Equal(t, Unknown, ParseType("mystery"))
	assert.Equal(t, Unknown, ParseType(""))
}

func TestSolveSingularMatrix(t *testing.T) {
	// Two identical feature columns make the normal equations singular
	// without regularization; ridge keeps them solvable.
	f := frame.New("a", "dup", "y")
	for i := 0; i < 10; i++ {
		v := float64(i)
		f.AppendRow([]any{v, v, 2 * v})
	}
	params, err := Train(f, Regressor, "y", []string{"a", "dup"})
	require.NoError(t, err)
	assert.InDelta(t, 2.0, params.Coefficients[0]+params.Coefficients[1], 0.01)
	assert.False(t, math.IsNaN(params.Intercept))
}
