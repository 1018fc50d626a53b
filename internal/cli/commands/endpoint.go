package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/sageworks-ml/sageworks/internal/cli/output"
	"github.com/sageworks-ml/sageworks/internal/endpoint"
	"github.com/sageworks-ml/sageworks/internal/meta"
)

// NewEndpointCommand creates the endpoint command group.
func NewEndpointCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "endpoint",
		Short: "Manage endpoints and run inference",
	}
	cmd.AddCommand(
		newEndpointList(),
		newEndpointShow(),
		newEndpointInference(),
		newEndpointMetrics(),
		newEndpointDelete(),
	)
	return cmd
}

func newEndpointList() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List endpoints",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cc, cleanup, err := NewCommandContext(cmd)
			if err != nil {
				return err
			}
			defer cleanup()

			summaries, err := meta.New(cc.Platform).Endpoints()
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

func newEndpointShow() *cobra.Command {
	return &cobra.Command{
		Use:   "show <name>",
		Short: "Show an endpoint's details and health",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cc, cleanup, err := NewCommandContext(cmd)
			if err != nil {
				return err
			}
			defer cleanup()

			e := endpoint.New(cc.Platform, args[0])
			summary, err := e.Summary()
			if err != nil {
				return err
			}
			url, err := e.URL()
			if err != nil {
				return err
			}
			healthy := "up"
			if err := e.Ping(cmd.Context()); err != nil {
				healthy = "down: " + err.Error()
			}

			r := cc.Renderer
			if r.EffectiveMode() == output.ModeJSON {
				return r.JSON(map[string]any{
					"summary": summary,
					"url":     url,
					"health":  healthy,
				})
			}
			r.Header(1, summary.Name)
			r.StatusLine("Model", summary.Input)
			r.StatusLine("URL", url)
			r.StatusLine("Health", healthy)
			return nil
		},
	}
}

func newEndpointInference() *cobra.Command {
	var capture string
	cmd := &cobra.Command{
		Use:   "inference <name>",
		Short: "Run inference on the model's holdout rows and record metrics",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cc, cleanup, err := NewCommandContext(cmd)
			if err != nil {
				return err
			}
			defer cleanup()

			e := endpoint.New(cc.Platform, args[0])
			result, err := e.AutoInference(cmd.Context(), capture)
			if err != nil {
				return err
			}

			r := cc.Renderer
			if r.EffectiveMode() == output.ModeJSON {
				return r.JSON(result)
			}
			r.Success(fmt.Sprintf("inference complete: %d rows", result.Predictions.NumRows()))
			renderMetrics(r, result.Metrics)
			return nil
		},
	}
	cmd.Flags().StringVar(&capture, "capture", "auto_inference", "Capture name for the inference run")
	return cmd
}

func newEndpointMetrics() *cobra.Command {
	return &cobra.Command{
		Use:   "metrics <name>",
		Short: "Show an endpoint's recorded inference runs",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cc, cleanup, err := NewCommandContext(cmd)
			if err != nil {
				return err
			}
			defer cleanup()

			runs, err := cc.Platform.Catalog.ListInferenceRuns(args[0])
			if err != nil {
				return err
			}
			r := cc.Renderer
			if r.EffectiveMode() == output.ModeJSON {
				return r.JSON(runs)
			}
			if len(runs) == 0 {
				r.Muted("(no inference runs recorded)")
				return nil
			}
			rows := make([][]string, 0, len(runs))
			for _, run := range runs {
				rows = append(rows, []string{
					run.ID, run.CaptureKey, fmt.Sprintf("%d", run.Rows),
					run.StartedAt.Format("2006-01-02 15:04:05"), run.Duration.String(),
				})
			}
			r.Table([]string{"Run", "Capture", "Rows", "Started", "Duration"}, rows)
			return nil
		},
	}
}

func newEndpointDelete() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <name>",
		Short: "Delete an endpoint and its captured inference runs",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cc, cleanup, err := NewCommandContext(cmd)
			if err != nil {
				return err
			}
			defer cleanup()

			if err := endpoint.New(cc.Platform, args[0]).Delete(cmd.Context()); err != nil {
				return err
			}
			cc.Renderer.Success("endpoint deleted: " + args[0])
			return nil
		},
	}
}
