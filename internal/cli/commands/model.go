package commands

import (
	"fmt"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/sageworks-ml/sageworks/internal/cli/output"
	"github.com/sageworks-ml/sageworks/internal/meta"
	"github.com/sageworks-ml/sageworks/internal/model"
	"github.com/sageworks-ml/sageworks/internal/transform"
)

// NewModelCommand creates the model command group.
func NewModelCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "model",
		Short: "Manage models",
	}
	cmd.AddCommand(
		newModelList(),
		newModelShow(),
		newModelMetrics(),
		newModelScript(),
		newModelDelete(),
		newModelToEndpoint(),
	)
	return cmd
}

func newModelList() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List models",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cc, cleanup, err := NewCommandContext(cmd)
			if err != nil {
				return err
			}
			defer cleanup()

			summaries, err := meta.New(cc.Platform).Models()
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

func newModelShow() *cobra.Command {
	return &cobra.Command{
		Use:   "show <name>",
		Short: "Show a model's details",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cc, cleanup, err := NewCommandContext(cmd)
			if err != nil {
				return err
			}
			defer cleanup()

			m := model.New(cc.Platform, args[0])
			summary, err := m.Summary()
			if err != nil {
				return err
			}
			modelType, err := m.Type()
			if err != nil {
				return err
			}
			target, err := m.Target()
			if err != nil {
				return err
			}
			features, err := m.Features()
			if err != nil {
				return err
			}
			endpoints, err := m.Endpoints()
			if err != nil {
				return err
			}

			r := cc.Renderer
			if r.EffectiveMode() == output.ModeJSON {
				return r.JSON(map[string]any{
					"summary":   summary,
					"type":      modelType,
					"target":    target,
					"features":  features,
					"endpoints": endpoints,
				})
			}
			r.Header(1, summary.Name)
			r.StatusLine("Input", summary.Input)
			r.StatusLine("Type", string(modelType))
			r.StatusLine("Target", target)
			r.StatusLine("Features", strings.Join(features, ", "))
			r.StatusLine("Endpoints", strings.Join(endpoints, ", "))
			return nil
		},
	}
}

func newModelMetrics() *cobra.Command {
	return &cobra.Command{
		Use:   "metrics <name>",
		Short: "Show a model's training metrics and confusion matrix",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cc, cleanup, err := NewCommandContext(cmd)
			if err != nil {
				return err
			}
			defer cleanup()

			m := model.New(cc.Platform, args[0])
			metrics, err := m.TrainingMetrics()
			if err != nil {
				return err
			}
			cm, err := m.ConfusionMatrix()
			if err != nil {
				return err
			}
			inference, err := m.InferenceMetrics()
			if err != nil {
				return err
			}
			inferenceCM, err := m.InferenceConfusionMatrix()
			if err != nil {
				return err
			}

			r := cc.Renderer
			if r.EffectiveMode() == output.ModeJSON {
				return r.JSON(map[string]any{
					"metrics":                    metrics,
					"confusion_matrix":           cm,
					"inference_metrics":          inference,
					"inference_confusion_matrix": inferenceCM,
				})
			}

			r.Header(2, "Training Metrics")
			renderMetrics(r, metrics)
			if len(cm) > 0 {
				r.Println()
				r.Header(2, "Confusion Matrix")
				renderConfusionMatrix(r, cm)
			}
			if len(inference) > 0 {
				r.Println()
				r.Header(2, "Inference Metrics")
				renderMetrics(r, inference)
			}
			if len(inferenceCM) > 0 {
				r.Println()
				r.Header(2, "Inference Confusion Matrix")
				renderConfusionMatrix(r, inferenceCM)
			}
			return nil
		},
	}
}

func newModelScript() *cobra.Command {
	return &cobra.Command{
		Use:   "script <name>",
		Short: "Print a model's generated training script",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cc, cleanup, err := NewCommandContext(cmd)
			if err != nil {
				return err
			}
			defer cleanup()

			script, err := model.New(cc.Platform, args[0]).TrainingScript(cmd.Context())
			if err != nil {
				return err
			}
			cc.Renderer.Println(script)
			return nil
		},
	}
}

func newModelDelete() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <name>",
		Short: "Delete a model (refused while endpoints serve it)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cc, cleanup, err := NewCommandContext(cmd)
			if err != nil {
				return err
			}
			defer cleanup()

			if err := model.New(cc.Platform, args[0]).Delete(cmd.Context()); err != nil {
				return err
			}
			cc.Renderer.Success("model deleted: " + args[0])
			return nil
		},
	}
}

func newModelToEndpoint() *cobra.Command {
	var opts transform.ModelToEndpointOptions
	cmd := &cobra.Command{
		Use:   "to-endpoint <name> <endpoint-name>",
		Short: "Deploy a model behind an endpoint",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			cc, cleanup, err := NewCommandContext(cmd)
			if err != nil {
				return err
			}
			defer cleanup()

			e, err := transform.ModelToEndpoint(cmd.Context(), cc.Platform, args[0], args[1], opts)
			if err != nil {
				return err
			}
			cc.Renderer.Success("endpoint created: " + e.Name())
			return nil
		},
	}
	cmd.Flags().StringVar(&opts.URL, "url", "", "Serving container base URL (required)")
	cmd.Flags().BoolVar(&opts.Serverless, "serverless", true, "Deploy with scale-to-zero semantics")
	cmd.Flags().IntVar(&opts.MemorySizeMB, "memory", transform.DefaultMemorySizeMB, "Memory size in MB")
	cmd.Flags().IntVar(&opts.MaxConcurrency, "max-concurrency", transform.DefaultMaxConcurrency, "Max concurrent invocations")
	_ = cmd.MarkFlagRequired("url")
	return cmd
}

// renderMetrics prints metric maps as a table, one row per run.
func renderMetrics(r *output.Renderer, metrics []model.Metrics) {
	if len(metrics) == 0 {
		r.Muted("(no metrics recorded)")
		return
	}
	keys := make([]string, 0, len(metrics[0]))
	for k := range metrics[0] {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	rows := make([][]string, 0, len(metrics))
	for _, m := range metrics {
		row := make([]string, len(keys))
		for i, k := range keys {
			row[i] = fmt.Sprintf("%.4f", m[k])
		}
		rows = append(rows, row)
	}
	r.Table(keys, rows)
}

// renderConfusionMatrix prints actual-by-predicted counts.
func renderConfusionMatrix(r *output.Renderer, cm map[string]map[string]int) {
	labels := make([]string, 0, len(cm))
	for label := range cm {
		labels = append(labels, label)
	}
	sort.Strings(labels)

	headers := append([]string{"actual \\ predicted"}, labels...)
	rows := make([][]string, 0, len(labels))
	for _, actual := range labels {
		row := make([]string, 0, len(labels)+1)
		row = append(row, actual)
		for _, predicted := range labels {
			row = append(row, fmt.Sprintf("%d", cm[actual][predicted]))
		}
		rows = append(rows, row)
	}
	r.Table(headers, rows)
}
