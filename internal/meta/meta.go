// Package meta provides account-level views across all artifacts,
// answering "what exists" without instantiating each artifact.
package meta

import (
	"context"
	"fmt"

	"github.com/sageworks-ml/sageworks/internal/artifact"
	"github.com/sageworks-ml/sageworks/internal/datasource"
	"github.com/sageworks-ml/sageworks/internal/endpoint"
	"github.com/sageworks-ml/sageworks/internal/featureset"
	"github.com/sageworks-ml/sageworks/internal/model"
	"github.com/sageworks-ml/sageworks/internal/pipeline"
	"github.com/sageworks-ml/sageworks/internal/platform"
)

// expectedMeta maps each artifact kind to the metadata its health
// check requires.
var expectedMeta = map[artifact.Kind][]string{
	artifact.KindDataSource: datasource.ExpectedMeta,
	artifact.KindFeatureSet: featureset.ExpectedMeta,
	artifact.KindModel:      model.ExpectedMeta,
	artifact.KindEndpoint:   endpoint.ExpectedMeta,
}

// Meta lists the platform's artifacts.
type Meta struct {
	p *platform.Platform
}

// New returns a Meta view over a platform.
func New(p *platform.Platform) *Meta {
	return &Meta{p: p}
}

// list summarizes every artifact of one kind.
func (m *Meta) list(kind artifact.Kind) ([]artifact.Summary, error) {
	recs, err := m.p.Catalog.ListArtifacts(kind)
	if err != nil {
		return nil, fmt.Errorf("failed to list %s artifacts: %w", kind, err)
	}
	summaries := make([]artifact.Summary, 0, len(recs))
	for _, rec := range recs {
		meta, err := m.p.Catalog.GetMeta(kind, rec.Name)
		if err != nil {
			return nil, fmt.Errorf("failed to load %s %q metadata: %w", kind, rec.Name, err)
		}
		summaries = append(summaries, artifact.Summarize(rec, meta, expectedMeta[kind]))
	}
	return summaries, nil
}

// DataSources lists every data source.
func (m *Meta) DataSources() ([]artifact.Summary, error) {
	return m.list(artifact.KindDataSource)
}

// FeatureSets lists every feature set.
func (m *Meta) FeatureSets() ([]artifact.Summary, error) {
	return m.list(artifact.KindFeatureSet)
}

// Models lists every model.
func (m *Meta) Models() ([]artifact.Summary, error) {
	return m.list(artifact.KindModel)
}

// Endpoints lists every endpoint.
func (m *Meta) Endpoints() ([]artifact.Summary, error) {
	return m.list(artifact.KindEndpoint)
}

// Pipelines lists every published pipeline.
func (m *Meta) Pipelines(ctx context.Context) ([]pipeline.Entry, error) {
	return pipeline.NewManager(m.p).List(ctx)
}

// All returns every artifact of every kind, keyed by kind.
func (m *Meta) All() (map[artifact.Kind][]artifact.Summary, error) {
	out := make(map[artifact.Kind][]artifact.Summary, 4)
	for _, kind := range []artifact.Kind{
		artifact.KindDataSource,
		artifact.KindFeatureSet,
		artifact.KindModel,
		artifact.KindEndpoint,
	} {
		summaries, err := m.list(kind)
		if err != nil {
			return nil, err
		}
		out[kind] = summaries
	}
	return out, nil
}
