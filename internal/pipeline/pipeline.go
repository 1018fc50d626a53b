// Package pipeline stores and executes pipeline definitions. A pipeline
// is a JSON document describing the artifact chain DataSource ->
// FeatureSet -> Model -> Endpoint; definitions live in the bucket under
// pipelines/ and the executor replays the chain through the transforms.
package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/sageworks-ml/sageworks/internal/platform"
	"github.com/sageworks-ml/sageworks/internal/storage"
)

// ErrNotFound is returned when a pipeline definition does not exist.
var ErrNotFound = storage.ErrNotFound

// Step configures one stage of a pipeline.
type Step struct {
	Name  string   `json:"name"`
	Input string   `json:"input"`
	Tags  []string `json:"tags,omitempty"`

	// Feature set options.
	IDColumn        string   `json:"id_column,omitempty"`
	EventTimeColumn string   `json:"event_time_column,omitempty"`
	DropColumns     []string `json:"drop_columns,omitempty"`

	// Model options.
	ModelType    string   `json:"model_type,omitempty"`
	TargetColumn string   `json:"target_column,omitempty"`
	FeatureList  []string `json:"feature_list,omitempty"`

	// Endpoint options.
	URL        string `json:"url,omitempty"`
	Serverless bool   `json:"serverless,omitempty"`
}

// Definition is a stored pipeline. Steps may be nil; the executor skips
// missing stages.
type Definition struct {
	Name       string `json:"name"`
	DataSource *Step  `json:"data_source,omitempty"`
	FeatureSet *Step  `json:"feature_set,omitempty"`
	Model      *Step  `json:"model,omitempty"`
	Endpoint   *Step  `json:"endpoint,omitempty"`
}

// StageNames lists the pipeline stages in execution order.
var StageNames = []string{"data_source", "feature_set", "model", "endpoint"}

// Stage returns the step for the named stage, or nil when the stage is
// absent or the name is unknown.
func (d *Definition) Stage(name string) *Step {
	switch name {
	case "data_source":
		return d.DataSource
	case "feature_set":
		return d.FeatureSet
	case "model":
		return d.Model
	case "endpoint":
		return d.Endpoint
	}
	return nil
}

// Validate checks a definition for the mistakes the executor cannot
// recover from.
func (d *Definition) Validate() error {
	if d.Name == "" {
		return errors.New("pipeline name is required")
	}
	for _, s := range []struct {
		stage string
		step  *Step
	}{
		{"data_source", d.DataSource},
		{"feature_set", d.FeatureSet},
		{"model", d.Model},
		{"endpoint", d.Endpoint},
	} {
		if s.step == nil {
			continue
		}
		if s.step.Name == "" {
			return fmt.Errorf("stage %s: name is required", s.stage)
		}
		if s.step.Input == "" {
			return fmt.Errorf("stage %s: input is required", s.stage)
		}
	}
	if d.Model != nil && d.Model.ModelType == "" {
		return errors.New("stage model: model_type is required")
	}
	return nil
}

// Entry describes one published pipeline.
type Entry struct {
	Name         string    `json:"name"`
	SizeBytes    int64     `json:"size_bytes"`
	LastModified time.Time `json:"last_modified"`
}

// Manager lists, publishes, and deletes pipeline definitions.
type Manager struct {
	p *platform.Platform
}

// NewManager returns a manager over the platform bucket.
func NewManager(p *platform.Platform) *Manager {
	return &Manager{p: p}
}

// List returns every published pipeline, sorted by name.
func (m *Manager) List(ctx context.Context) ([]Entry, error) {
	infos, err := m.p.Store.ListPrefix(ctx, m.p.Bucket, storage.PrefixPipelines+"/")
	if err != nil {
		return nil, fmt.Errorf("failed to list pipelines: %w", err)
	}
	entries := make([]Entry, 0, len(infos))
	for _, info := range infos {
		rest, ok := strings.CutPrefix(info.Key, storage.PrefixPipelines+"/")
		if !ok {
			continue
		}
		name, ok := strings.CutSuffix(rest, ".json")
		if !ok {
			continue
		}
		entries = append(entries, Entry{
			Name:         name,
			SizeBytes:    info.SizeBytes,
			LastModified: info.LastModified,
		})
	}
	return entries, nil
}

// Publish stores a definition, overwriting any existing pipeline with
// the same name.
func (m *Manager) Publish(ctx context.Context, def *Definition) error {
	if err := def.Validate(); err != nil {
		return fmt.Errorf("invalid pipeline: %w", err)
	}
	data, err := json.MarshalIndent(def, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode pipeline %q: %w", def.Name, err)
	}
	key := m.p.Layout.PipelineKey(def.Name)
	if err := m.p.Store.PutObject(ctx, m.p.Bucket, key, data); err != nil {
		return fmt.Errorf("failed to store pipeline %q: %w", def.Name, err)
	}
	m.p.Logger.Info("pipeline published", "pipeline", def.Name,
		"location", storage.URI(m.p.Bucket, key))
	return nil
}

// PublishFile loads a definition from a local JSON file and publishes
// it. A definition without a name takes the file's base name.
func (m *Manager) PublishFile(ctx context.Context, path string) (*Definition, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read pipeline file: %w", err)
	}
	var def Definition
	if err := json.Unmarshal(data, &def); err != nil {
		return nil, fmt.Errorf("failed to decode pipeline file %s: %w", path, err)
	}
	if def.Name == "" {
		base := strings.TrimSuffix(path[strings.LastIndex(path, "/")+1:], ".json")
		def.Name = base
	}
	if err := m.Publish(ctx, &def); err != nil {
		return nil, err
	}
	return &def, nil
}

// Get loads a published definition.
func (m *Manager) Get(ctx context.Context, name string) (*Definition, error) {
	data, err := m.p.Store.GetObject(ctx, m.p.Bucket, m.p.Layout.PipelineKey(name))
	if err != nil {
		return nil, fmt.Errorf("pipeline %q: %w", name, err)
	}
	var def Definition
	if err := json.Unmarshal(data, &def); err != nil {
		return nil, fmt.Errorf("failed to decode pipeline %q: %w", name, err)
	}
	if def.Name == "" {
		def.Name = name
	}
	return &def, nil
}

// Delete removes a published definition.
func (m *Manager) Delete(ctx context.Context, name string) error {
	key := m.p.Layout.PipelineKey(name)
	if _, err := m.p.Store.StatObject(ctx, m.p.Bucket, key); err != nil {
		return fmt.Errorf("pipeline %q: %w", name, err)
	}
	return m.p.Store.RemoveObject(ctx, m.p.Bucket, key)
}
