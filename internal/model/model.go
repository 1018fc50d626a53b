// Package model implements the Model artifact: a trained model bundle
// stored in the artifact bucket along with its training metrics.
package model

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/sageworks-ml/sageworks/internal/artifact"
	"github.com/sageworks-ml/sageworks/internal/platform"
)

// Type is the enumerated model type.
type Type string

const (
	Classifier        Type = "classifier"
	Regressor         Type = "regressor"
	QuantileRegressor Type = "quantile_regressor"
	Unsupervised      Type = "unsupervised"
	Transformer       Type = "transformer"
	Unknown           Type = "unknown"
)

// ParseType maps a string onto a model type, defaulting to Unknown.
func ParseType(s string) Type {
	switch Type(strings.ToLower(s)) {
	case Classifier, Regressor, QuantileRegressor, Unsupervised, Transformer:
		return Type(strings.ToLower(s))
	default:
		return Unknown
	}
}

// Metadata keys specific to models.
const (
	MetaModelType       = "sageworks_model_type"
	MetaModelTarget     = "sageworks_model_target"
	MetaModelFeatures   = "sageworks_model_features"
	MetaTrainingMetrics = "sageworks_training_metrics"
	MetaTrainingCM      = "sageworks_training_cm"

	// Inference metrics live under their own keys so endpoint runs
	// never clobber the metrics recorded at training time.
	MetaInferenceMetrics = "sageworks_inference_metrics"
	MetaInferenceCM      = "sageworks_inference_cm"
)

// ExpectedMeta is the metadata a fully onboarded model carries.
var ExpectedMeta = append(artifact.ExpectedMeta, MetaTrainingMetrics)

// Bundle file names inside a model's bucket prefix.
const (
	ParamsFile   = "model.json"
	FeaturesFile = "feature_columns.json"
	ScriptFile   = "generated_model_script.py"
)

// Model is a handle to a registered model artifact.
type Model struct {
	p    *platform.Platform
	name string
}

// New attaches to a model by name. The name is converted to its
// compliant form.
func New(p *platform.Platform, name string) *Model {
	return &Model{p: p, name: artifact.CompliantName(name, "-", p.Logger)}
}

// Name returns the compliant artifact name.
func (m *Model) Name() string { return m.name }

// Exists reports whether the model is registered.
func (m *Model) Exists() (bool, error) {
	return m.p.Catalog.ArtifactExists(artifact.KindModel, m.name)
}

// Summary returns the generic artifact summary.
func (m *Model) Summary() (artifact.Summary, error) {
	rec, err := m.p.Catalog.GetArtifact(artifact.KindModel, m.name)
	if err != nil {
		return artifact.Summary{}, err
	}
	meta, err := m.p.Catalog.GetMeta(artifact.KindModel, m.name)
	if err != nil {
		return artifact.Summary{}, err
	}
	return artifact.Summarize(rec, meta, ExpectedMeta), nil
}

// meta fetches the model's metadata map.
func (m *Model) meta() (artifact.Meta, error) {
	return m.p.Catalog.GetMeta(artifact.KindModel, m.name)
}

// Type returns the model type, Unknown when unset.
func (m *Model) Type() (Type, error) {
	meta, err := m.meta()
	if err != nil {
		return Unknown, err
	}
	return ParseType(meta[MetaModelType]), nil
}

// Target returns the model's target column, empty for unsupervised models.
func (m *Model) Target() (string, error) {
	meta, err := m.meta()
	if err != nil {
		return "", err
	}
	return meta[MetaModelTarget], nil
}

// Features returns the model's feature columns.
func (m *Model) Features() ([]string, error) {
	meta, err := m.meta()
	if err != nil {
		return nil, err
	}
	return artifact.SplitTags(meta[MetaModelFeatures]), nil
}

// Metrics holds one row of training metrics. Regression models produce
// a single row, classifiers one row per class label.
type Metrics map[string]float64

// metricsAt decodes the metrics rows stored under one metadata key,
// nil when none are recorded.
func (m *Model) metricsAt(key string) ([]Metrics, error) {
	meta, err := m.meta()
	if err != nil {
		return nil, err
	}
	raw := meta[key]
	if raw == "" {
		return nil, nil
	}
	var metrics []Metrics
	if err := json.Unmarshal([]byte(raw), &metrics); err != nil {
		return nil, fmt.Errorf("failed to decode %s: %w", key, err)
	}
	return metrics, nil
}

// confusionAt decodes the confusion matrix stored under one metadata
// key, nil when none is recorded.
func (m *Model) confusionAt(key string) (map[string]map[string]int, error) {
	meta, err := m.meta()
	if err != nil {
		return nil, err
	}
	raw := meta[key]
	if raw == "" {
		return nil, nil
	}
	var cm map[string]map[string]int
	if err := json.Unmarshal([]byte(raw), &cm); err != nil {
		return nil, fmt.Errorf("failed to decode %s: %w", key, err)
	}
	return cm, nil
}

// setMetrics stores metrics rows and, for classifiers, the confusion
// matrix under the given metadata keys.
func (m *Model) setMetrics(metricsKey, cmKey string, metrics []Metrics, cm map[string]map[string]int) error {
	encoded, err := json.Marshal(metrics)
	if err != nil {
		return fmt.Errorf("failed to encode %s: %w", metricsKey, err)
	}
	meta := artifact.Meta{metricsKey: string(encoded)}
	if cm != nil {
		cmEncoded, err := json.Marshal(cm)
		if err != nil {
			return fmt.Errorf("failed to encode %s: %w", cmKey, err)
		}
		meta[cmKey] = string(cmEncoded)
	}
	return m.p.Catalog.UpsertMeta(artifact.KindModel, m.name, meta)
}

// TrainingMetrics returns the stored training metrics, nil when the
// model has none yet.
func (m *Model) TrainingMetrics() ([]Metrics, error) {
	return m.metricsAt(MetaTrainingMetrics)
}

// ConfusionMatrix returns the training confusion matrix for
// classifiers, nil otherwise. Keyed actual label to predicted label to
// count.
func (m *Model) ConfusionMatrix() (map[string]map[string]int, error) {
	return m.confusionAt(MetaTrainingCM)
}

// SetTrainingMetrics stores the training metrics and, for classifiers,
// the confusion matrix in the model's metadata.
func (m *Model) SetTrainingMetrics(metrics []Metrics, cm map[string]map[string]int) error {
	return m.setMetrics(MetaTrainingMetrics, MetaTrainingCM, metrics, cm)
}

// InferenceMetrics returns the metrics of the most recent endpoint
// inference run, nil when the model has never been evaluated.
func (m *Model) InferenceMetrics() ([]Metrics, error) {
	return m.metricsAt(MetaInferenceMetrics)
}

// InferenceConfusionMatrix returns the confusion matrix of the most
// recent endpoint inference run for classifiers, nil otherwise.
func (m *Model) InferenceConfusionMatrix() (map[string]map[string]int, error) {
	return m.confusionAt(MetaInferenceCM)
}

// SetInferenceMetrics stores the metrics of an endpoint inference run,
// leaving the training metrics untouched.
func (m *Model) SetInferenceMetrics(metrics []Metrics, cm map[string]map[string]int) error {
	return m.setMetrics(MetaInferenceMetrics, MetaInferenceCM, metrics, cm)
}

// Parameters loads the trained parameter bundle from the bucket.
func (m *Model) Parameters(ctx context.Context) (*LinearParameters, error) {
	data, err := m.p.Store.GetObject(ctx, m.p.Bucket, m.p.Layout.ModelKey(m.name, ParamsFile))
	if err != nil {
		return nil, fmt.Errorf("model bundle missing for %s: %w", m.name, err)
	}
	var params LinearParameters
	if err := json.Unmarshal(data, &params); err != nil {
		return nil, fmt.Errorf("failed to decode model bundle: %w", err)
	}
	return &params, nil
}

// TrainingScript loads the generated training script from the bucket.
func (m *Model) TrainingScript(ctx context.Context) (string, error) {
	data, err := m.p.Store.GetObject(ctx, m.p.Bucket, m.p.Layout.ModelKey(m.name, ScriptFile))
	if err != nil {
		return "", fmt.Errorf("training script missing for %s: %w", m.name, err)
	}
	return string(data), nil
}

// Endpoints returns the endpoints serving this model.
func (m *Model) Endpoints() ([]string, error) {
	return m.p.Catalog.EndpointsForModel(m.name)
}

// Delete removes the model: its bucket objects and its catalog entry.
// A model still backing endpoints cannot be deleted.
func (m *Model) Delete(ctx context.Context) error {
	endpoints, err := m.Endpoints()
	if err != nil {
		return err
	}
	if len(endpoints) > 0 {
		return fmt.Errorf("model %s still has endpoints: %s", m.name, strings.Join(endpoints, ", "))
	}
	if err := m.p.Store.RemovePrefix(ctx, m.p.Bucket, m.p.Layout.ModelPrefix(m.name)); err != nil {
		return fmt.Errorf("failed to remove model objects: %w", err)
	}
	if err := m.p.Catalog.DeleteArtifact(artifact.KindModel, m.name); err != nil {
		return err
	}
	m.p.Logger.Info("model deleted", "name", m.name)
	return nil
}
