package commands

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/sageworks-ml/sageworks/internal/cli/output"
	"github.com/sageworks-ml/sageworks/internal/pipeline"
)

// NewPipelineCommand creates the pipeline command group.
func NewPipelineCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "pipeline",
		Aliases: []string{"pipe"},
		Short:   "Publish and run artifact pipelines",
	}
	cmd.AddCommand(
		newPipelineList(),
		newPipelinePublish(),
		newPipelineShow(),
		newPipelineRun(),
		newPipelineFromEndpoint(),
		newPipelineDelete(),
	)
	return cmd
}

func newPipelineList() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List published pipelines",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cc, cleanup, err := NewCommandContext(cmd)
			if err != nil {
				return err
			}
			defer cleanup()

			entries, err := pipeline.NewManager(cc.Platform).List(cmd.Context())
			if err != nil {
				return err
			}

			r := cc.Renderer
			if r.EffectiveMode() == output.ModeJSON {
				return r.JSON(entries)
			}
			if len(entries) == 0 {
				r.Muted("no pipelines published")
				return nil
			}
			rows := make([][]string, 0, len(entries))
			for _, e := range entries {
				rows = append(rows, []string{
					e.Name,
					strconv.FormatInt(e.SizeBytes, 10),
					e.LastModified.Format("2006-01-02 15:04:05"),
				})
			}
			r.Table([]string{"Name", "Bytes", "Modified"}, rows)
			return nil
		},
	}
}

func newPipelinePublish() *cobra.Command {
	return &cobra.Command{
		Use:   "publish <file>",
		Short: "Publish a pipeline definition from a JSON file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cc, cleanup, err := NewCommandContext(cmd)
			if err != nil {
				return err
			}
			defer cleanup()

			def, err := pipeline.NewManager(cc.Platform).PublishFile(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			cc.Renderer.Success("pipeline published: " + def.Name)
			return nil
		},
	}
}

func newPipelineShow() *cobra.Command {
	return &cobra.Command{
		Use:   "show <name>",
		Short: "Show a pipeline definition",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cc, cleanup, err := NewCommandContext(cmd)
			if err != nil {
				return err
			}
			defer cleanup()

			def, err := pipeline.NewManager(cc.Platform).Get(cmd.Context(), args[0])
			if err != nil {
				return err
			}

			r := cc.Renderer
			if r.EffectiveMode() == output.ModeJSON {
				return r.JSON(def)
			}
			r.Header(1, def.Name)
			for _, name := range pipeline.StageNames {
				step := def.Stage(name)
				if step == nil {
					continue
				}
				r.StatusLine(name, fmt.Sprintf("%s (input: %s)", step.Name, step.Input))
			}
			return nil
		},
	}
}

func newPipelineRun() *cobra.Command {
	var subset []string
	cmd := &cobra.Command{
		Use:   "run <name>",
		Short: "Execute a published pipeline end to end",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cc, cleanup, err := NewCommandContext(cmd)
			if err != nil {
				return err
			}
			defer cleanup()

			def, err := pipeline.NewManager(cc.Platform).Get(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			exec := pipeline.NewExecutor(cc.Platform)
			if len(subset) > 0 {
				err = exec.ExecutePartial(cmd.Context(), def, subset)
			} else {
				err = exec.Execute(cmd.Context(), def)
			}
			if err != nil {
				return err
			}
			cc.Renderer.Success("pipeline complete: " + def.Name)
			return nil
		},
	}
	cmd.Flags().StringSliceVar(&subset, "subset", nil,
		"Stages to run (datasource, featureset, model, endpoint)")
	return cmd
}

func newPipelineFromEndpoint() *cobra.Command {
	var publish bool
	cmd := &cobra.Command{
		Use:   "from-endpoint <endpoint>",
		Short: "Build a pipeline definition from a deployed endpoint's lineage",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cc, cleanup, err := NewCommandContext(cmd)
			if err != nil {
				return err
			}
			defer cleanup()

			def, err := pipeline.CreateFromEndpoint(cc.Platform, args[0])
			if err != nil {
				return err
			}
			if publish {
				if err := pipeline.NewManager(cc.Platform).Publish(cmd.Context(), def); err != nil {
					return err
				}
				cc.Renderer.Success("pipeline published: " + def.Name)
				return nil
			}
			return cc.Renderer.JSON(def)
		},
	}
	cmd.Flags().BoolVar(&publish, "publish", false, "Publish the definition instead of printing it")
	return cmd
}

func newPipelineDelete() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <name>",
		Short: "Delete a published pipeline",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cc, cleanup, err := NewCommandContext(cmd)
			if err != nil {
				return err
			}
			defer cleanup()

			if err := pipeline.NewManager(cc.Platform).Delete(cmd.Context(), args[0]); err != nil {
				return err
			}
			cc.Renderer.Success("pipeline deleted: " + args[0])
			return nil
		},
	}
}
