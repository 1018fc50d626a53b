package commands

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/sageworks-ml/sageworks/internal/cli/config"
	"github.com/sageworks-ml/sageworks/internal/cli/output"
)

// NewConfigCommand creates the config command.
func NewConfigCommand() *cobra.Command {
	var create bool
	var bucketBase string

	cmd := &cobra.Command{
		Use:   "config",
		Short: "Show or bootstrap the SageWorks configuration",
		Long: `Show the resolved configuration, or bootstrap a new sageworks.yaml
with --create. The generated bucket name gets a random uuid suffix so it
is globally unique.`,
		Example: `  # Show the resolved configuration
  sageworks config

  # Write a starter sageworks.yaml in the current directory
  sageworks config --create --bucket-base my-company-sageworks`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if create {
				return runConfigCreate(cmd, bucketBase)
			}
			return runConfigShow(cmd)
		},
	}
	cmd.Flags().BoolVar(&create, "create", false, "Write a starter sageworks.yaml")
	cmd.Flags().StringVar(&bucketBase, "bucket-base", "sageworks", "Bucket name base for --create")
	return cmd
}

func runConfigCreate(cmd *cobra.Command, bucketBase string) error {
	bucket := config.BucketName(bucketBase)
	path := filepath.Join(".", "sageworks.yaml")
	if err := config.WriteDefault(path, bucket); err != nil {
		return err
	}
	r := output.NewRenderer(cmd.OutOrStdout(), cmd.ErrOrStderr(), output.ModeAuto)
	r.Success(fmt.Sprintf("wrote %s (bucket: %s)", path, bucket))
	return nil
}

func runConfigShow(cmd *cobra.Command) error {
	cfg := config.Current()
	if cfg == nil {
		var err error
		cfg, err = config.LoadConfig("", cmd.Root().PersistentFlags())
		if err != nil {
			return err
		}
	}
	r := output.NewRenderer(cmd.OutOrStdout(), cmd.ErrOrStderr(), output.Mode(cfg.OutputFormat))

	if r.EffectiveMode() == output.ModeJSON {
		return r.JSON(cfg)
	}

	r.Header(1, "SageWorks Configuration")
	if used := config.GetConfigFileUsed(); used != "" {
		r.StatusLine("Config file", used)
	} else {
		r.Muted("No config file found (defaults + environment)")
	}
	r.StatusLine("Bucket", cfg.Bucket)
	r.StatusLine("Catalog", cfg.CatalogPath)
	r.StatusLine("Query engine", fmt.Sprintf("%s (%s)", cfg.QueryType, cfg.QueryPath))
	if cfg.StorageEndpoint != "" {
		r.StatusLine("Storage", cfg.StorageEndpoint)
	} else {
		r.StatusLine("Storage", "local: "+cfg.LocalRoot)
	}
	r.StatusLine("Log group", cfg.LogGroup)
	return nil
}
