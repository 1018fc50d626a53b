package pipeline

import (
	"context"
	"fmt"
	"strings"

	"github.com/sageworks-ml/sageworks/internal/artifact"
	"github.com/sageworks-ml/sageworks/internal/endpoint"
	"github.com/sageworks-ml/sageworks/internal/model"
	"github.com/sageworks-ml/sageworks/internal/platform"
	"github.com/sageworks-ml/sageworks/internal/transform"
)

// Executor replays a pipeline definition through the transforms.
type Executor struct {
	p *platform.Platform
}

// NewExecutor returns an executor bound to a platform.
func NewExecutor(p *platform.Platform) *Executor {
	return &Executor{p: p}
}

// Execute runs every stage of a pipeline in order, failing fast on the
// first stage error.
func (e *Executor) Execute(ctx context.Context, def *Definition) error {
	return e.ExecutePartial(ctx, def, nil)
}

// ExecutePartial runs a subset of a pipeline's stages. A nil or empty
// subset runs everything. Stage order is always data_source,
// feature_set, model, endpoint; skipped stages must already exist as
// artifacts for the later stages to find their inputs.
func (e *Executor) ExecutePartial(ctx context.Context, def *Definition, subset []string) error {
	if err := def.Validate(); err != nil {
		return fmt.Errorf("invalid pipeline: %w", err)
	}
	wanted := make(map[string]bool, len(subset))
	for _, s := range subset {
		wanted[s] = true
	}
	runs := func(stage string) bool { return len(wanted) == 0 || wanted[stage] }

	e.p.Logger.Info("executing pipeline", "pipeline", def.Name, "subset", subset)

	if def.DataSource != nil && runs("data_source") {
		if err := e.runDataSource(ctx, def.DataSource); err != nil {
			return fmt.Errorf("pipeline %s stage data_source: %w", def.Name, err)
		}
	}
	if def.FeatureSet != nil && runs("feature_set") {
		step := def.FeatureSet
		_, err := transform.DataToFeatures(ctx, e.p, step.Input, step.Name, transform.DataToFeaturesOptions{
			IDColumn:        step.IDColumn,
			EventTimeColumn: step.EventTimeColumn,
			DropColumns:     step.DropColumns,
		})
		if err != nil {
			return fmt.Errorf("pipeline %s stage feature_set: %w", def.Name, err)
		}
	}
	if def.Model != nil && runs("model") {
		step := def.Model
		_, err := transform.FeaturesToModel(ctx, e.p, step.Input, step.Name, transform.FeaturesToModelOptions{
			ModelType:    model.ParseType(step.ModelType),
			TargetColumn: step.TargetColumn,
			FeatureList:  step.FeatureList,
		})
		if err != nil {
			return fmt.Errorf("pipeline %s stage model: %w", def.Name, err)
		}
	}
	if def.Endpoint != nil && runs("endpoint") {
		step := def.Endpoint
		_, err := transform.ModelToEndpoint(ctx, e.p, step.Input, step.Name, transform.ModelToEndpointOptions{
			URL:        step.URL,
			Serverless: step.Serverless,
		})
		if err != nil {
			return fmt.Errorf("pipeline %s stage endpoint: %w", def.Name, err)
		}
	}
	return nil
}

func (e *Executor) runDataSource(ctx context.Context, step *Step) error {
	var err error
	if strings.HasPrefix(step.Input, "s3://") {
		_, err = transform.S3ToDataSource(ctx, e.p, step.Input, step.Name)
	} else {
		_, err = transform.CSVToDataSource(ctx, e.p, step.Input, step.Name)
	}
	return err
}

// CreateFromEndpoint builds a pipeline definition by walking an
// endpoint's input chain back to its data source.
func CreateFromEndpoint(p *platform.Platform, endpointName string) (*Definition, error) {
	epRec, epMeta, err := stage(p, artifact.KindEndpoint, endpointName)
	if err != nil {
		return nil, err
	}
	mRec, mMeta, err := stage(p, artifact.KindModel, epRec.Input)
	if err != nil {
		return nil, err
	}
	fsRec, fsMeta, err := stage(p, artifact.KindFeatureSet, mRec.Input)
	if err != nil {
		return nil, err
	}
	dsRec, dsMeta, err := stage(p, artifact.KindDataSource, fsRec.Input)
	if err != nil {
		return nil, err
	}

	return &Definition{
		Name: endpointName + "_pipeline",
		DataSource: &Step{
			Name:  dsRec.Name,
			Input: dsRec.Input,
			Tags:  artifact.SplitTags(dsMeta[artifact.MetaTags]),
		},
		FeatureSet: &Step{
			Name:  fsRec.Name,
			Input: fsRec.Input,
			Tags:  artifact.SplitTags(fsMeta[artifact.MetaTags]),
		},
		Model: &Step{
			Name:         mRec.Name,
			Input:        mRec.Input,
			Tags:         artifact.SplitTags(mMeta[artifact.MetaTags]),
			ModelType:    mMeta[model.MetaModelType],
			TargetColumn: mMeta[model.MetaModelTarget],
			FeatureList:  artifact.SplitTags(mMeta[model.MetaModelFeatures]),
		},
		Endpoint: &Step{
			Name:  epRec.Name,
			Input: epRec.Input,
			Tags:  artifact.SplitTags(epMeta[artifact.MetaTags]),
			URL:   epMeta[endpoint.MetaEndpointURL],
		},
	}, nil
}

func stage(p *platform.Platform, kind artifact.Kind, name string) (*artifact.Record, artifact.Meta, error) {
	rec, err := p.Catalog.GetArtifact(kind, name)
	if err != nil {
		return nil, nil, fmt.Errorf("%s %q: %w", kind, name, err)
	}
	meta, err := p.Catalog.GetMeta(kind, name)
	if err != nil {
		return nil, nil, fmt.Errorf("%s %q metadata: %w", kind, name, err)
	}
	return rec, meta, nil
}
