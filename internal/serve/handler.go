// Package serve implements the model serving container surface: a POST
// /invocations plus GET /ping HTTP server with pluggable model handlers,
// hot reload of the model directory, and serverless freeze behavior.
package serve

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/sageworks-ml/sageworks/internal/frame"
	"github.com/sageworks-ml/sageworks/internal/model"
)

// ContentTypeCSV is the wire format for invocation payloads and results.
const ContentTypeCSV = "text/csv"

// ModelFn loads a model from the model directory.
type ModelFn func(modelDir string) (any, error)

// InputFn decodes a request body into a frame.
type InputFn func(data []byte, contentType string) (*frame.Frame, error)

// PredictFn runs the model over the input frame and returns the output
// frame, usually the input plus prediction columns.
type PredictFn func(m any, f *frame.Frame) (*frame.Frame, error)

// OutputFn encodes the output frame for the response.
type OutputFn func(f *frame.Frame) ([]byte, string, error)

// Handler bundles the four customization points of a serving container.
type Handler struct {
	ModelFn   ModelFn
	InputFn   InputFn
	PredictFn PredictFn
	OutputFn  OutputFn
}

// LinearHandler returns the built-in handler that evaluates the linear
// parameter bundle written by the baseline trainer.
func LinearHandler() Handler {
	return Handler{
		ModelFn:   loadLinearModel,
		InputFn:   decodeCSV,
		PredictFn: predictLinear,
		OutputFn:  encodeCSV,
	}
}

// loadLinearModel reads model.json from the model directory.
func loadLinearModel(modelDir string) (any, error) {
	data, err := os.ReadFile(filepath.Join(modelDir, model.ParamsFile))
	if err != nil {
		return nil, fmt.Errorf("failed to read model bundle: %w", err)
	}
	var params model.LinearParameters
	if err := json.Unmarshal(data, &params); err != nil {
		return nil, fmt.Errorf("failed to decode model bundle: %w", err)
	}
	if len(params.Features) == 0 {
		return nil, fmt.Errorf("model bundle has no feature columns")
	}
	return &params, nil
}

// decodeCSV parses a CSV request body.
func decodeCSV(data []byte, contentType string) (*frame.Frame, error) {
	if contentType != "" && contentType != ContentTypeCSV {
		return nil, fmt.Errorf("unsupported content type %q, expected %s", contentType, ContentTypeCSV)
	}
	f, err := frame.FromCSV(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to parse csv payload: %w", err)
	}
	f.ConvertNumeric()
	return f, nil
}

// encodeCSV renders the output frame as CSV.
func encodeCSV(f *frame.Frame) ([]byte, string, error) {
	var buf bytes.Buffer
	if err := f.ToCSV(&buf); err != nil {
		return nil, "", err
	}
	return buf.Bytes(), ContentTypeCSV, nil
}

// predictLinear appends prediction columns to the input frame. Rows
// with unparseable feature values produce empty predictions.
func predictLinear(m any, f *frame.Frame) (*frame.Frame, error) {
	params, ok := m.(*model.LinearParameters)
	if !ok {
		return nil, fmt.Errorf("model is not a linear parameter bundle")
	}
	if missing := f.MissingColumns(params.Features); len(missing) > 0 {
		return nil, fmt.Errorf("payload missing feature columns: %v", missing)
	}

	idx := make([]int, len(params.Features))
	for i, name := range params.Features {
		idx[i] = f.ColumnIndex(name)
	}

	predictions := make([]any, f.NumRows())
	probaColumns := make(map[string][]any)
	if params.ModelType == model.Classifier {
		for _, class := range params.Classes {
			probaColumns[class] = make([]any, f.NumRows())
		}
	}
	quantColumns := make(map[string][]any)
	if params.ModelType == model.QuantileRegressor {
		for name := range params.Quantiles {
			quantColumns[name] = make([]any, f.NumRows())
		}
	}

	for r, row := range f.Rows {
		vec := make([]float64, len(idx))
		valid := true
		for i, c := range idx {
			v, isFloat := row[c].(float64)
			if !isFloat {
				valid = false
				break
			}
			vec[i] = v
		}
		if !valid {
			continue
		}

		switch params.ModelType {
		case model.Classifier:
			best, scores := params.ClassScores(vec)
			predictions[r] = params.Classes[best]
			for k, p := range model.Softmax(scores) {
				probaColumns[params.Classes[k]][r] = p
			}
		case model.QuantileRegressor:
			median := params.Predict(vec)
			predictions[r] = median
			for name, offset := range params.Quantiles {
				quantColumns[name][r] = median + offset
			}
		default:
			predictions[r] = params.Predict(vec)
		}
	}

	if err := f.AddColumn("prediction", predictions); err != nil {
		return nil, err
	}
	for _, class := range params.Classes {
		if err := f.AddColumn(class+"_proba", probaColumns[class]); err != nil {
			return nil, err
		}
	}
	for _, name := range quantileOrder(params) {
		if err := f.AddColumn(name, quantColumns[name]); err != nil {
			return nil, err
		}
	}
	return f, nil
}

// quantileOrder returns the quantile column names in ascending order.
func quantileOrder(params *model.LinearParameters) []string {
	if params.ModelType != model.QuantileRegressor {
		return nil
	}
	names := make([]string, 0, len(params.Quantiles))
	for name := range params.Quantiles {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
