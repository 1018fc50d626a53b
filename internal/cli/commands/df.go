package commands

import (
	"os"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/sageworks-ml/sageworks/internal/cli/output"
	"github.com/sageworks-ml/sageworks/internal/dfstore"
	"github.com/sageworks-ml/sageworks/internal/frame"
)

// NewDFCommand creates the df command group over the dataframe store.
func NewDFCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "df",
		Short: "Store and retrieve named dataframes",
	}
	cmd.AddCommand(
		newDFList(),
		newDFGet(),
		newDFPut(),
		newDFDelete(),
	)
	return cmd
}

func newDFList() *cobra.Command {
	var prefix string
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List stored dataframes",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cc, cleanup, err := NewCommandContext(cmd)
			if err != nil {
				return err
			}
			defer cleanup()

			entries, err := dfstore.New(cc.Platform).List(cmd.Context(), prefix)
			if err != nil {
				return err
			}

			r := cc.Renderer
			if r.EffectiveMode() == output.ModeJSON {
				return r.JSON(entries)
			}
			if len(entries) == 0 {
				r.Muted("no dataframes stored")
				return nil
			}
			rows := make([][]string, 0, len(entries))
			for _, e := range entries {
				rows = append(rows, []string{
					e.Location,
					strconv.FormatInt(e.SizeBytes, 10),
					e.LastModified.Format("2006-01-02 15:04:05"),
				})
			}
			r.Table([]string{"Location", "Bytes", "Modified"}, rows)
			return nil
		},
	}
	cmd.Flags().StringVar(&prefix, "prefix", "", "Only list locations under this prefix")
	return cmd
}

func newDFGet() *cobra.Command {
	var csvPath string
	cmd := &cobra.Command{
		Use:   "get <location>",
		Short: "Print a stored dataframe",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cc, cleanup, err := NewCommandContext(cmd)
			if err != nil {
				return err
			}
			defer cleanup()

			f, err := dfstore.New(cc.Platform).Get(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if csvPath != "" {
				out, err := os.Create(csvPath)
				if err != nil {
					return err
				}
				defer out.Close()
				if err := f.ToCSV(out); err != nil {
					return err
				}
				cc.Renderer.Success("dataframe written: " + csvPath)
				return nil
			}
			return renderFrame(cc.Renderer, f)
		},
	}
	cmd.Flags().StringVar(&csvPath, "csv", "", "Write the dataframe to a CSV file instead of printing it")
	return cmd
}

func newDFPut() *cobra.Command {
	return &cobra.Command{
		Use:   "put <location> <csv-file>",
		Short: "Store a CSV file as a dataframe",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			cc, cleanup, err := NewCommandContext(cmd)
			if err != nil {
				return err
			}
			defer cleanup()

			in, err := os.Open(args[1])
			if err != nil {
				return err
			}
			defer in.Close()

			f, err := frame.FromCSV(in)
			if err != nil {
				return err
			}
			if err := dfstore.New(cc.Platform).Upsert(cmd.Context(), args[0], f); err != nil {
				return err
			}
			cc.Renderer.Success("dataframe stored: " + args[0])
			return nil
		},
	}
}

func newDFDelete() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <location>",
		Short: "Delete a stored dataframe",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cc, cleanup, err := NewCommandContext(cmd)
			if err != nil {
				return err
			}
			defer cleanup()

			if err := dfstore.New(cc.Platform).Delete(cmd.Context(), args[0]); err != nil {
				return err
			}
			cc.Renderer.Success("dataframe deleted: " + args[0])
			return nil
		},
	}
}
