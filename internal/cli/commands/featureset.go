package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/sageworks-ml/sageworks/internal/cli/output"
	"github.com/sageworks-ml/sageworks/internal/featureset"
	"github.com/sageworks-ml/sageworks/internal/meta"
	"github.com/sageworks-ml/sageworks/internal/model"
	"github.com/sageworks-ml/sageworks/internal/transform"
)

// NewFeatureSetCommand creates the featureset command group.
func NewFeatureSetCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "featureset",
		Aliases: []string{"fs"},
		Short:   "Manage feature sets",
	}
	cmd.AddCommand(
		newFeatureSetList(),
		newFeatureSetShow(),
		newFeatureSetQuery(),
		newFeatureSetDelete(),
		newFeatureSetToModel(),
	)
	return cmd
}

func newFeatureSetList() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List feature sets",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cc, cleanup, err := NewCommandContext(cmd)
			if err != nil {
				return err
			}
			defer cleanup()

			summaries, err := meta.New(cc.Platform).FeatureSets()
			if err != nil {
				return err
			}
			if cc.Renderer.EffectiveMode() == output.ModeJSON {
				return cc.Renderer.JSON(summaries)
			}
			renderSummaries(cc.Renderer, summaries)
			return nil
		},
	}
}

func newFeatureSetShow() *cobra.Command {
	return &cobra.Command{
		Use:   "show <name>",
		Short: "Show a feature set's details",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cc, cleanup, err := NewCommandContext(cmd)
			if err != nil {
				return err
			}
			defer cleanup()

			fs := featureset.New(cc.Platform, args[0])
			summary, err := fs.Summary()
			if err != nil {
				return err
			}
			idColumn, err := fs.IDColumn()
			if err != nil {
				return err
			}
			eventColumn, err := fs.EventTimeColumn()
			if err != nil {
				return err
			}
			rows, err := fs.NumRows(cmd.Context())
			if err != nil {
				return err
			}

			r := cc.Renderer
			if r.EffectiveMode() == output.ModeJSON {
				return r.JSON(map[string]any{
					"summary":           summary,
					"id_column":         idColumn,
					"event_time_column": eventColumn,
					"rows":              rows,
				})
			}
			r.Header(1, summary.Name)
			r.StatusLine("Input", summary.Input)
			r.StatusLine("Status", summary.Status)
			r.StatusLine("ID column", idColumn)
			r.StatusLine("Event time column", eventColumn)
			r.StatusLine("Rows", fmt.Sprintf("%d", rows))
			return nil
		},
	}
}

func newFeatureSetQuery() *cobra.Command {
	return &cobra.Command{
		Use:   "query <name> <sql>",
		Short: "Run SQL against a feature set's offline store",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			cc, cleanup, err := NewCommandContext(cmd)
			if err != nil {
				return err
			}
			defer cleanup()

			f, err := featureset.New(cc.Platform, args[0]).Query(cmd.Context(), args[1])
			if err != nil {
				return err
			}
			return renderFrame(cc.Renderer, f)
		},
	}
}

func newFeatureSetDelete() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <name>",
		Short: "Delete a feature set and its offline store",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cc, cleanup, err := NewCommandContext(cmd)
			if err != nil {
				return err
			}
			defer cleanup()

			if err := featureset.New(cc.Platform, args[0]).Delete(cmd.Context()); err != nil {
				return err
			}
			cc.Renderer.Success("feature set deleted: " + args[0])
			return nil
		},
	}
}

func newFeatureSetToModel() *cobra.Command {
	var (
		modelType    string
		target       string
		features     []string
		trainAllData bool
	)
	cmd := &cobra.Command{
		Use:   "to-model <name> <model-name>",
		Short: "Train a model from a feature set",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			cc, cleanup, err := NewCommandContext(cmd)
			if err != nil {
				return err
			}
			defer cleanup()

			m, err := transform.FeaturesToModel(cmd.Context(), cc.Platform, args[0], args[1],
				transform.FeaturesToModelOptions{
					ModelType:    model.ParseType(modelType),
					TargetColumn: target,
					FeatureList:  features,
					TrainAllData: trainAllData,
				})
			if err != nil {
				return err
			}
			cc.Renderer.Success("model created: " + m.Name())
			return nil
		},
	}
	cmd.Flags().StringVar(&modelType, "model-type", "regressor", "Model type (regressor|classifier|quantile_regressor)")
	cmd.Flags().StringVar(&target, "target", "", "Target column")
	cmd.Flags().StringSliceVar(&features, "features", nil, "Feature columns (default: all numeric)")
	cmd.Flags().BoolVar(&trainAllData, "train-all-data", false, "Train on all rows instead of the training split")
	return cmd
}
