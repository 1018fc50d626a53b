package model

import (
	"fmt"
	"math"
	"sort"

	"github.com/sageworks-ml/sageworks/internal/frame"
)

// LinearParameters is the trained parameter bundle stored as model.json
// in a model's bucket prefix. The serving layer evaluates it directly.
// Production deployments replace this bundle with whatever the external
// training job writes; this baseline trainer keeps the full pipeline
// runnable without one.
type LinearParameters struct {
	ModelType Type     `json:"model_type"`
	Target    string   `json:"target"`
	Features  []string `json:"features"`

	// Regression parameters.
	Intercept    float64   `json:"intercept,omitempty"`
	Coefficients []float64 `json:"coefficients,omitempty"`

	// Classification parameters: one-vs-rest linear scores per class.
	Classes         []string    `json:"classes,omitempty"`
	ClassIntercepts []float64   `json:"class_intercepts,omitempty"`
	ClassWeights    [][]float64 `json:"class_weights,omitempty"`

	// Quantile offsets added to the median prediction, keyed q_05..q_95.
	Quantiles map[string]float64 `json:"quantiles,omitempty"`
}

// ridgeLambda is the regularization strength of the baseline trainer.
const ridgeLambda = 1e-3

// quantileLevels are the prediction quantiles of the baseline
// quantile regressor.
var quantileLevels = map[string]float64{
	"q_05": 0.05,
	"q_25": 0.25,
	"q_50": 0.50,
	"q_75": 0.75,
	"q_95": 0.95,
}

// Train fits the baseline linear model on a frame. Rows with missing
// feature or target values are skipped.
func Train(f *frame.Frame, modelType Type, target string, features []string) (*LinearParameters, error) {
	if missing := f.MissingColumns(features); len(missing) > 0 {
		return nil, fmt.Errorf("training data missing feature columns: %v", missing)
	}
	if f.ColumnIndex(target) < 0 {
		return nil, fmt.Errorf("training data missing target column %q", target)
	}

	switch modelType {
	case Regressor:
		return trainRegressor(f, target, features)
	case QuantileRegressor:
		return trainQuantileRegressor(f, target, features)
	case Classifier:
		return trainClassifier(f, target, features)
	default:
		return nil, fmt.Errorf("baseline trainer does not support model type %q", modelType)
	}
}

// designMatrix extracts the feature rows and a per-row validity mask.
func designMatrix(f *frame.Frame, features []string) ([][]float64, []bool) {
	idx := make([]int, len(features))
	for i, name := range features {
		idx[i] = f.ColumnIndex(name)
	}

	x := make([][]float64, f.NumRows())
	valid := make([]bool, f.NumRows())
	for r, row := range f.Rows {
		vec := make([]float64, len(features))
		ok := true
		for i, c := range idx {
			v, isFloat := row[c].(float64)
			if !isFloat || math.IsNaN(v) {
				ok = false
				break
			}
			vec[i] = v
		}
		x[r] = vec
		valid[r] = ok
	}
	return x, valid
}

func trainRegressor(f *frame.Frame, target string, features []string) (*LinearParameters, error) {
	x, valid := designMatrix(f, features)
	tIdx := f.ColumnIndex(target)

	var rows [][]float64
	var y []float64
	for r := range x {
		tv, ok := f.Rows[r][tIdx].(float64)
		if !valid[r] || !ok || math.IsNaN(tv) {
			continue
		}
		rows = append(rows, x[r])
		y = append(y, tv)
	}
	if len(rows) <= len(features) {
		return nil, fmt.Errorf("not enough training rows (%d) for %d features", len(rows), len(features))
	}

	weights, err := ridge(rows, y)
	if err != nil {
		return nil, err
	}
	return &LinearParameters{
		ModelType:    Regressor,
		Target:       target,
		Features:     features,
		Intercept:    weights[len(features)],
		Coefficients: weights[:len(features)],
	}, nil
}

func trainQuantileRegressor(f *frame.Frame, target string, features []string) (*LinearParameters, error) {
	params, err := trainRegressor(f, target, features)
	if err != nil {
		return nil, err
	}
	params.ModelType = QuantileRegressor

	// Offsets come from the empirical residual distribution.
	x, valid := designMatrix(f, features)
	tIdx := f.ColumnIndex(target)
	var residuals []float64
	for r := range x {
		tv, ok := f.Rows[r][tIdx].(float64)
		if !valid[r] || !ok || math.IsNaN(tv) {
			continue
		}
		residuals = append(residuals, tv-params.Predict(x[r]))
	}
	sort.Float64s(residuals)

	params.Quantiles = make(map[string]float64, len(quantileLevels))
	for name, level := range quantileLevels {
		params.Quantiles[name] = empiricalQuantile(residuals, level)
	}
	return params, nil
}

func trainClassifier(f *frame.Frame, target string, features []string) (*LinearParameters, error) {
	x, valid := designMatrix(f, features)
	tIdx := f.ColumnIndex(target)

	var rows [][]float64
	var labels []string
	classSet := map[string]bool{}
	for r := range x {
		if !valid[r] || f.Rows[r][tIdx] == nil {
			continue
		}
		label := frame.CellString(f.Rows[r][tIdx])
		rows = append(rows, x[r])
		labels = append(labels, label)
		classSet[label] = true
	}
	if len(rows) <= len(features) {
		return nil, fmt.Errorf("not enough training rows (%d) for %d features", len(rows), len(features))
	}
	if len(classSet) < 2 {
		return nil, fmt.Errorf("classifier target %q has fewer than two classes", target)
	}

	classes := make([]string, 0, len(classSet))
	for c := range classSet {
		classes = append(classes, c)
	}
	sort.Strings(classes)

	params := &LinearParameters{
		ModelType: Classifier,
		Target:    target,
		Features:  features,
		Classes:   classes,
	}
	// One-vs-rest: a ridge fit against each class indicator.
	for _, class := range classes {
		y := make([]float64, len(labels))
		for i, label := range labels {
			if label == class {
				y[i] = 1
			}
		}
		weights, err := ridge(rows, y)
		if err != nil {
			return nil, err
		}
		params.ClassWeights = append(params.ClassWeights, weights[:len(features)])
		params.ClassIntercepts = append(params.ClassIntercepts, weights[len(features)])
	}
	return params, nil
}

// Predict evaluates the linear model for one feature vector. For
// classifiers it returns the index of the winning class as a float.
func (p *LinearParameters) Predict(x []float64) float64 {
	if p.ModelType == Classifier {
		best, _ := p.ClassScores(x)
		return float64(best)
	}
	sum := p.Intercept
	for i, c := range p.Coefficients {
		sum += c * x[i]
	}
	return sum
}

// ClassScores returns the winning class index and the per-class linear
// scores for a classifier.
func (p *LinearParameters) ClassScores(x []float64) (int, []float64) {
	scores := make([]float64, len(p.Classes))
	best := 0
	for k := range p.Classes {
		s := p.ClassIntercepts[k]
		for i, w := range p.ClassWeights[k] {
			s += w * x[i]
		}
		scores[k] = s
		if s > scores[best] {
			best = k
		}
	}
	return best, scores
}

// Softmax converts linear scores into probabilities.
func Softmax(scores []float64) []float64 {
	maxScore := math.Inf(-1)
	for _, s := range scores {
		maxScore = math.Max(maxScore, s)
	}
	var sum float64
	probs := make([]float64, len(scores))
	for i, s := range scores {
		probs[i] = math.Exp(s - maxScore)
		sum += probs[i]
	}
	for i := range probs {
		probs[i] /= sum
	}
	return probs
}

// ridge solves the regularized least squares problem with an appended
// bias column and returns len(features)+1 weights, bias last.
func ridge(x [][]float64, y []float64) ([]float64, error) {
	n := len(x[0]) + 1

	// Normal equations: (X'X + lambda*I) w = X'y.
	a := make([][]float64, n)
	for i := range a {
		a[i] = make([]float64, n+1)
	}
	for r, row := range x {
		aug := append(append([]float64{}, row...), 1)
		for i := 0; i < n; i++ {
			for j := 0; j < n; j++ {
				a[i][j] += aug[i] * aug[j]
			}
			a[i][n] += aug[i] * y[r]
		}
	}
	for i := 0; i < n-1; i++ {
		// The bias term is not regularized.
		a[i][i] += ridgeLambda
	}
	return solve(a)
}

// solve runs Gaussian elimination with partial pivoting on an augmented
// matrix [A|b].
func solve(a [][]float64) ([]float64, error) {
	n := len(a)
	for col := 0; col < n; col++ {
		pivot := col
		for r := col + 1; r < n; r++ {
			if math.Abs(a[r][col]) > math.Abs(a[pivot][col]) {
				pivot = r
			}
		}
		if math.Abs(a[pivot][col]) < 1e-12 {
			return nil, fmt.Errorf("singular design matrix, check for constant or duplicate features")
		}
		a[col], a[pivot] = a[pivot], a[col]

		for r := col + 1; r < n; r++ {
			factor := a[r][col] / a[col][col]
			for c := col; c <= n; c++ {
				a[r][c] -= factor * a[col][c]
			}
		}
	}

	w := make([]float64, n)
	for i := n - 1; i >= 0; i-- {
		sum := a[i][n]
		for j := i + 1; j < n; j++ {
			sum -= a[i][j] * w[j]
		}
		w[i] = sum / a[i][i]
	}
	return w, nil
}

// empiricalQuantile returns the level quantile of sorted values by
// linear interpolation.
func empiricalQuantile(sorted []float64, level float64) float64 {
	if len(sorted) == 0 {
		return 0
	}
	pos := level * float64(len(sorted)-1)
	lo := int(math.Floor(pos))
	hi := int(math.Ceil(pos))
	if lo == hi {
		return sorted[lo]
	}
	frac := pos - float64(lo)
	return sorted[lo]*(1-frac) + sorted[hi]*frac
}
