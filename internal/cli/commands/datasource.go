package commands

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"github.com/sageworks-ml/sageworks/internal/cli/output"
	"github.com/sageworks-ml/sageworks/internal/datasource"
	"github.com/sageworks-ml/sageworks/internal/meta"
	"github.com/sageworks-ml/sageworks/internal/transform"
)

// NewDataSourceCommand creates the datasource command group.
func NewDataSourceCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "datasource",
		Aliases: []string{"ds"},
		Short:   "Manage data sources",
	}
	cmd.AddCommand(
		newDataSourceCreate(),
		newDataSourceList(),
		newDataSourceShow(),
		newDataSourceQuery(),
		newDataSourceSample(),
		newDataSourceDelete(),
		newDataSourceToFeatures(),
	)
	return cmd
}

func newDataSourceCreate() *cobra.Command {
	return &cobra.Command{
		Use:   "create <source> <name>",
		Short: "Create a data source from a local CSV file or s3:// URI",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			cc, cleanup, err := NewCommandContext(cmd)
			if err != nil {
				return err
			}
			defer cleanup()

			ds, err := datasource.FromSource(cmd.Context(), cc.Platform, args[0], args[1])
			if err != nil {
				return err
			}
			cc.Renderer.Success("data source created: " + ds.Name())
			return nil
		},
	}
}

func newDataSourceList() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List data sources",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cc, cleanup, err := NewCommandContext(cmd)
			if err != nil {
				return err
			}
			defer cleanup()

			summaries, err := meta.New(cc.Platform).DataSources()
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

func newDataSourceShow() *cobra.Command {
	return &cobra.Command{
		Use:   "show <name>",
		Short: "Show a data source's details and column statistics",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cc, cleanup, err := NewCommandContext(cmd)
			if err != nil {
				return err
			}
			defer cleanup()

			ds := datasource.New(cc.Platform, args[0])
			summary, err := ds.Summary()
			if err != nil {
				return err
			}
			stats, err := ds.ColumnStats(cmd.Context())
			if err != nil {
				return err
			}

			r := cc.Renderer
			if r.EffectiveMode() == output.ModeJSON {
				return r.JSON(map[string]any{"summary": summary, "column_stats": stats})
			}

			r.Header(1, summary.Name)
			r.StatusLine("Input", summary.Input)
			r.StatusLine("Status", summary.Status)
			r.StatusLine("Size", fmt.Sprintf("%d bytes", summary.SizeBytes))
			r.Println()

			columns := make([]string, 0, len(stats))
			for name := range stats {
				columns = append(columns, name)
			}
			sort.Strings(columns)
			rows := make([][]string, 0, len(columns))
			for _, name := range columns {
				cs := stats[name]
				rows = append(rows, []string{
					name, cs.Dtype,
					fmt.Sprintf("%d", cs.Unique), fmt.Sprintf("%d", cs.Nulls),
				})
			}
			r.Table([]string{"Column", "Type", "Unique", "Nulls"}, rows)
			return nil
		},
	}
}

func newDataSourceQuery() *cobra.Command {
	return &cobra.Command{
		Use:   "query <name> <sql>",
		Short: "Run SQL against a data source",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			cc, cleanup, err := NewCommandContext(cmd)
			if err != nil {
				return err
			}
			defer cleanup()

			f, err := datasource.New(cc.Platform, args[0]).Query(cmd.Context(), args[1])
			if err != nil {
				return err
			}
			return renderFrame(cc.Renderer, f)
		},
	}
}

func newDataSourceSample() *cobra.Command {
	var rows int
	cmd := &cobra.Command{
		Use:   "sample <name>",
		Short: "Show a row sample from a data source",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cc, cleanup, err := NewCommandContext(cmd)
			if err != nil {
				return err
			}
			defer cleanup()

			f, err := datasource.New(cc.Platform, args[0]).Sample(cmd.Context(), rows)
			if err != nil {
				return err
			}
			return renderFrame(cc.Renderer, f)
		},
	}
	cmd.Flags().IntVar(&rows, "rows", 10, "Number of rows to sample")
	return cmd
}

func newDataSourceDelete() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <name>",
		Short: "Delete a data source and its stored objects",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cc, cleanup, err := NewCommandContext(cmd)
			if err != nil {
				return err
			}
			defer cleanup()

			if err := datasource.New(cc.Platform, args[0]).Delete(cmd.Context()); err != nil {
				return err
			}
			cc.Renderer.Success("data source deleted: " + args[0])
			return nil
		},
	}
}

func newDataSourceToFeatures() *cobra.Command {
	var opts transform.DataToFeaturesOptions
	cmd := &cobra.Command{
		Use:   "to-features <name> <feature-set-name>",
		Short: "Convert a data source into a feature set",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			cc, cleanup, err := NewCommandContext(cmd)
			if err != nil {
				return err
			}
			defer cleanup()

			fs, err := transform.DataToFeatures(cmd.Context(), cc.Platform, args[0], args[1], opts)
			if err != nil {
				return err
			}
			cc.Renderer.Success("feature set created: " + fs.Name())
			return nil
		},
	}
	cmd.Flags().StringVar(&opts.IDColumn, "id-column", "", "Existing id column (default: synthesized)")
	cmd.Flags().StringVar(&opts.EventTimeColumn, "event-time-column", "", "Existing event time column (default: now)")
	cmd.Flags().StringSliceVar(&opts.DropColumns, "drop", nil, "Columns to drop")
	return cmd
}
