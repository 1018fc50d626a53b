// Package transform implements the pipeline steps that turn one
// artifact kind into the next: raw data to DataSource, DataSource to
// FeatureSet, FeatureSet to Model, and Model to Endpoint.
package transform

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"strings"

	"github.com/sageworks-ml/sageworks/internal/artifact"
	"github.com/sageworks-ml/sageworks/internal/datasource"
	"github.com/sageworks-ml/sageworks/internal/endpoint"
	"github.com/sageworks-ml/sageworks/internal/featureset"
	"github.com/sageworks-ml/sageworks/internal/frame"
	"github.com/sageworks-ml/sageworks/internal/model"
	"github.com/sageworks-ml/sageworks/internal/platform"
	"github.com/sageworks-ml/sageworks/internal/scriptgen"
	"github.com/sageworks-ml/sageworks/internal/storage"
)

// Serverless endpoint deployment defaults.
const (
	DefaultMemorySizeMB   = 2048
	DefaultMaxConcurrency = 5
)

// CSVToDataSource loads a local CSV file into a new data source.
func CSVToDataSource(ctx context.Context, p *platform.Platform, path, name string) (*datasource.DataSource, error) {
	return datasource.FromSource(ctx, p, path, name)
}

// S3ToDataSource loads an s3:// object into a new data source.
func S3ToDataSource(ctx context.Context, p *platform.Platform, uri, name string) (*datasource.DataSource, error) {
	if !strings.HasPrefix(uri, "s3://") {
		return nil, fmt.Errorf("not an s3 uri: %q", uri)
	}
	return datasource.FromSource(ctx, p, uri, name)
}

// DataToFeaturesOptions tunes the data source to feature set step.
type DataToFeaturesOptions struct {
	IDColumn        string
	EventTimeColumn string
	DropColumns     []string
}

// DataToFeatures converts a data source into a feature set.
func DataToFeatures(ctx context.Context, p *platform.Platform, dsName, fsName string,
	opts DataToFeaturesOptions) (*featureset.FeatureSet, error) {

	ds := datasource.New(p, dsName)
	exists, err := ds.Exists()
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, fmt.Errorf("data source %s not found", ds.Name())
	}

	f, err := ds.ToFrame(ctx)
	if err != nil {
		return nil, err
	}
	if len(opts.DropColumns) > 0 {
		keep := make([]string, 0, len(f.Columns))
		drop := make(map[string]bool, len(opts.DropColumns))
		for _, c := range opts.DropColumns {
			drop[c] = true
		}
		for _, c := range f.Columns {
			if !drop[c] {
				keep = append(keep, c)
			}
		}
		f, err = f.Select(keep)
		if err != nil {
			return nil, err
		}
	}

	p.Logger.Info("transforming data source to feature set",
		"data_source", ds.Name(), "feature_set", fsName, "rows", f.NumRows())
	return featureset.FromFrame(ctx, p, f, fsName, ds.Name(), opts.IDColumn, opts.EventTimeColumn)
}

// FeaturesToModelOptions tunes the feature set to model step.
type FeaturesToModelOptions struct {
	ModelType model.Type

	// TargetColumn is required for supervised model types.
	TargetColumn string

	// FeatureList defaults to every numeric column that is not the id,
	// event time, training, or target column.
	FeatureList []string

	// TrainAllData trains on all rows instead of the training split.
	TrainAllData bool
}

// FeaturesToModel trains a model from a feature set: it generates the
// training entry-point script, fits the baseline parameter bundle, and
// registers the model with its validation metrics.
func FeaturesToModel(ctx context.Context, p *platform.Platform, fsName, modelName string,
	opts FeaturesToModelOptions) (*model.Model, error) {

	if opts.ModelType == "" || opts.ModelType == model.Unknown {
		return nil, fmt.Errorf("model type is required")
	}
	if opts.TargetColumn == "" && opts.ModelType != model.Unsupervised {
		return nil, fmt.Errorf("target column is required for %s models", opts.ModelType)
	}

	fs := featureset.New(p, fsName)
	exists, err := fs.Exists()
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, fmt.Errorf("feature set %s not found", fs.Name())
	}

	m := model.New(p, modelName)
	if err := artifact.ValidateName(m.Name()); err != nil {
		return nil, fmt.Errorf("invalid model name %q: %w", modelName, err)
	}
	data, err := fs.TrainingData(ctx)
	if err != nil {
		return nil, err
	}

	features := opts.FeatureList
	if len(features) == 0 {
		features, err = defaultFeatureList(fs, data, opts.TargetColumn)
		if err != nil {
			return nil, err
		}
	}

	// The generated script is what an external training job executes;
	// the baseline fit below keeps the pipeline runnable without one.
	metricsPath := storage.URI(p.Bucket, p.Layout.ModelKey(m.Name(), "training"))
	script, err := scriptgen.Generate(scriptgen.Params{
		ModelType:          string(opts.ModelType),
		TargetColumn:       opts.TargetColumn,
		FeatureList:        features,
		ModelMetricsS3Path: metricsPath,
		TrainAllData:       opts.TrainAllData,
	})
	if err != nil {
		return nil, err
	}
	scriptKey := p.Layout.ModelKey(m.Name(), model.ScriptFile)
	if err := p.Store.PutObject(ctx, p.Bucket, scriptKey, []byte(script)); err != nil {
		return nil, fmt.Errorf("failed to store training script: %w", err)
	}

	trainRows, holdout, err := splitTraining(data, opts.TrainAllData)
	if err != nil {
		return nil, err
	}
	p.Logger.Info("training model", "model", m.Name(), "type", opts.ModelType,
		"train_rows", trainRows.NumRows(), "holdout_rows", holdout.NumRows())

	params, err := model.Train(trainRows, opts.ModelType, opts.TargetColumn, features)
	if err != nil {
		return nil, err
	}
	bundle, err := json.Marshal(params)
	if err != nil {
		return nil, err
	}
	if err := p.Store.PutObject(ctx, p.Bucket, p.Layout.ModelKey(m.Name(), model.ParamsFile), bundle); err != nil {
		return nil, fmt.Errorf("failed to store model bundle: %w", err)
	}
	featureJSON, err := json.Marshal(features)
	if err != nil {
		return nil, err
	}
	if err := p.Store.PutObject(ctx, p.Bucket, p.Layout.ModelKey(m.Name(), model.FeaturesFile), featureJSON); err != nil {
		return nil, fmt.Errorf("failed to store feature columns: %w", err)
	}

	size := int64(len(bundle) + len(script))
	if err := p.Catalog.RegisterArtifact(&artifact.Record{
		Kind:      artifact.KindModel,
		Name:      m.Name(),
		Input:     fs.Name(),
		SizeBytes: size,
	}); err != nil {
		return nil, fmt.Errorf("failed to register model: %w", err)
	}
	meta := artifact.Meta{
		artifact.MetaStatus:     artifact.StatusReady,
		artifact.MetaInput:      fs.Name(),
		artifact.MetaTags:       artifact.JoinTags(strings.Split(m.Name(), "-")),
		model.MetaModelType:     string(opts.ModelType),
		model.MetaModelTarget:   opts.TargetColumn,
		model.MetaModelFeatures: artifact.JoinTags(features),
	}
	if err := p.Catalog.UpsertMeta(artifact.KindModel, m.Name(), meta); err != nil {
		return nil, fmt.Errorf("failed to store model metadata: %w", err)
	}

	if holdout.NumRows() > 0 {
		if err := validateModel(m, params, holdout, opts.TargetColumn); err != nil {
			p.Logger.Warn("model validation failed", "model", m.Name(), "error", err)
		}
	}
	return m, nil
}

// defaultFeatureList picks every numeric column that is not structural.
func defaultFeatureList(fs *featureset.FeatureSet, data *frame.Frame, target string) ([]string, error) {
	idColumn, err := fs.IDColumn()
	if err != nil {
		return nil, err
	}
	eventColumn, err := fs.EventTimeColumn()
	if err != nil {
		return nil, err
	}
	excluded := map[string]bool{
		idColumn:                  true,
		eventColumn:               true,
		target:                    true,
		featureset.TrainingColumn: true,
	}

	var features []string
	for i, name := range data.Columns {
		if excluded[name] {
			continue
		}
		if columnIsNumeric(data, i) {
			features = append(features, name)
		}
	}
	if len(features) == 0 {
		return nil, fmt.Errorf("no numeric feature columns found")
	}
	return features, nil
}

// columnIsNumeric reports whether every non-nil cell in a column is a
// float.
func columnIsNumeric(f *frame.Frame, col int) bool {
	sawValue := false
	for _, row := range f.Rows {
		switch v := row[col].(type) {
		case nil:
			continue
		case float64:
			if !math.IsNaN(v) {
				sawValue = true
			}
		default:
			return false
		}
	}
	return sawValue
}

// splitTraining divides the training frame into fit and holdout rows.
func splitTraining(data *frame.Frame, trainAll bool) (trainRows, holdout *frame.Frame, err error) {
	idx := data.ColumnIndex(featureset.TrainingColumn)
	if idx < 0 {
		return nil, nil, fmt.Errorf("training column missing")
	}
	if trainAll {
		return data, data.Slice(0, 0), nil
	}

	trainRows = frame.New(data.Columns...)
	holdout = frame.New(data.Columns...)
	for _, row := range data.Rows {
		target := holdout
		if v, ok := row[idx].(float64); ok && v == 1 {
			target = trainRows
		}
		if err := target.AppendRow(row); err != nil {
			return nil, nil, err
		}
	}
	return trainRows, holdout, nil
}

// validateModel scores the holdout rows with the freshly fitted bundle
// and registers the resulting metrics on the model.
func validateModel(m *model.Model, params *model.LinearParameters, holdout *frame.Frame, target string) error {
	idx := make([]int, len(params.Features))
	for i, name := range params.Features {
		idx[i] = holdout.ColumnIndex(name)
	}
	tIdx := holdout.ColumnIndex(target)

	switch params.ModelType {
	case model.Classifier:
		var actual, predicted []string
		probabilities := make(map[string][]float64)
		for _, row := range holdout.Rows {
			vec, ok := featureVector(row, idx)
			if !ok || row[tIdx] == nil {
				continue
			}
			best, scores := params.ClassScores(vec)
			actual = append(actual, frame.CellString(row[tIdx]))
			predicted = append(predicted, params.Classes[best])
			for k, prob := range model.Softmax(scores) {
				class := params.Classes[k]
				probabilities[class] = append(probabilities[class], prob)
			}
		}
		_, metrics, err := endpoint.ClassificationMetrics(actual, predicted, probabilities)
		if err != nil {
			return err
		}
		return m.SetTrainingMetrics(metrics, endpoint.ConfusionMatrix(actual, predicted))

	default:
		var actual, predicted []float64
		for _, row := range holdout.Rows {
			vec, ok := featureVector(row, idx)
			if !ok {
				continue
			}
			tv, isFloat := row[tIdx].(float64)
			if !isFloat {
				continue
			}
			actual = append(actual, tv)
			predicted = append(predicted, params.Predict(vec))
		}
		metrics, err := endpoint.RegressionMetrics(actual, predicted)
		if err != nil {
			return err
		}
		return m.SetTrainingMetrics([]model.Metrics{metrics}, nil)
	}
}

// featureVector extracts the feature cells of one row.
func featureVector(row []any, idx []int) ([]float64, bool) {
	vec := make([]float64, len(idx))
	for i, c := range idx {
		v, ok := row[c].(float64)
		if !ok || math.IsNaN(v) {
			return nil, false
		}
		vec[i] = v
	}
	return vec, true
}

// ModelToEndpointOptions tunes the model to endpoint step.
type ModelToEndpointOptions struct {
	// URL is the serving container's base URL.
	URL string

	// Serverless deploys with scale-to-zero semantics.
	Serverless     bool
	MemorySizeMB   int
	MaxConcurrency int
}

// ModelToEndpoint registers an endpoint serving a model.
func ModelToEndpoint(ctx context.Context, p *platform.Platform, modelName, endpointName string,
	opts ModelToEndpointOptions) (*endpoint.Endpoint, error) {

	m := model.New(p, modelName)
	exists, err := m.Exists()
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, fmt.Errorf("model %s not found", m.Name())
	}
	if opts.URL == "" {
		return nil, fmt.Errorf("endpoint url is required")
	}
	if opts.MemorySizeMB == 0 {
		opts.MemorySizeMB = DefaultMemorySizeMB
	}
	if opts.MaxConcurrency == 0 {
		opts.MaxConcurrency = DefaultMaxConcurrency
	}

	e := endpoint.New(p, endpointName)
	if err := artifact.ValidateName(e.Name()); err != nil {
		return nil, fmt.Errorf("invalid endpoint name %q: %w", endpointName, err)
	}
	if err := p.Catalog.RegisterArtifact(&artifact.Record{
		Kind:  artifact.KindEndpoint,
		Name:  e.Name(),
		Input: m.Name(),
	}); err != nil {
		return nil, fmt.Errorf("failed to register endpoint: %w", err)
	}
	meta := artifact.Meta{
		artifact.MetaStatus:                artifact.StatusReady,
		artifact.MetaInput:                 m.Name(),
		artifact.MetaTags:                  artifact.JoinTags(strings.Split(e.Name(), "-")),
		endpoint.MetaEndpointURL:           opts.URL,
		endpoint.MetaServerless:            fmt.Sprintf("%t", opts.Serverless),
		endpoint.MetaServerlessMemory:      fmt.Sprintf("%d", opts.MemorySizeMB),
		endpoint.MetaServerlessConcurrency: fmt.Sprintf("%d", opts.MaxConcurrency),
	}
	if err := p.Catalog.UpsertMeta(artifact.KindEndpoint, e.Name(), meta); err != nil {
		return nil, fmt.Errorf("failed to store endpoint metadata: %w", err)
	}
	if err := p.Catalog.RegisterEndpoint(m.Name(), e.Name()); err != nil {
		return nil, err
	}

	p.Logger.Info("endpoint deployed", "endpoint", e.Name(), "model", m.Name(),
		"serverless", opts.Serverless, "memory_mb", opts.MemorySizeMB,
		"max_concurrency", opts.MaxConcurrency)
	return e, nil
}
