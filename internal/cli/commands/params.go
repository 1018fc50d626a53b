package commands

import (
	"encoding/json"

	"github.com/spf13/cobra"

	"github.com/sageworks-ml/sageworks/internal/cli/output"
	"github.com/sageworks-ml/sageworks/internal/paramstore"
)

// NewParamsCommand creates the params command group over the named
// parameter store.
func NewParamsCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "params",
		Short: "Read and write named JSON parameters",
	}
	cmd.AddCommand(
		newParamsList(),
		newParamsGet(),
		newParamsSet(),
		newParamsDelete(),
	)
	return cmd
}

func newParamsList() *cobra.Command {
	var prefix string
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List parameter names",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cc, cleanup, err := NewCommandContext(cmd)
			if err != nil {
				return err
			}
			defer cleanup()

			names, err := paramstore.New(cc.Platform).List(prefix)
			if err != nil {
				return err
			}

			r := cc.Renderer
			if r.EffectiveMode() == output.ModeJSON {
				return r.JSON(names)
			}
			if len(names) == 0 {
				r.Muted("no parameters")
				return nil
			}
			for _, name := range names {
				r.Println(name)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&prefix, "prefix", "", "Only list names under this prefix")
	return cmd
}

func newParamsGet() *cobra.Command {
	return &cobra.Command{
		Use:   "get <name>",
		Short: "Print a parameter's JSON value",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cc, cleanup, err := NewCommandContext(cmd)
			if err != nil {
				return err
			}
			defer cleanup()

			var value any
			if err := paramstore.New(cc.Platform).Get(args[0], &value); err != nil {
				return err
			}
			return cc.Renderer.JSON(value)
		},
	}
}

func newParamsSet() *cobra.Command {
	return &cobra.Command{
		Use:   "set <name> <json-value>",
		Short: "Store a parameter value",
		Long: `Set stores a JSON value under a name. The value argument is parsed as
JSON first; an argument that is not valid JSON is stored as a plain
string.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			cc, cleanup, err := NewCommandContext(cmd)
			if err != nil {
				return err
			}
			defer cleanup()

			var value any
			if err := json.Unmarshal([]byte(args[1]), &value); err != nil {
				value = args[1]
			}
			if err := paramstore.New(cc.Platform).Upsert(args[0], value); err != nil {
				return err
			}
			cc.Renderer.Success("parameter set: " + args[0])
			return nil
		},
	}
}

func newParamsDelete() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <name>",
		Short: "Delete a parameter",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cc, cleanup, err := NewCommandContext(cmd)
			if err != nil {
				return err
			}
			defer cleanup()

			if err := paramstore.New(cc.Platform).Delete(args[0]); err != nil {
				return err
			}
			cc.Renderer.Success("parameter deleted: " + args[0])
			return nil
		},
	}
}
