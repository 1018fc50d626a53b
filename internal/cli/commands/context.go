// Package commands implements the sageworks CLI subcommands.
package commands

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/sageworks-ml/sageworks/internal/cli/config"
	"github.com/sageworks-ml/sageworks/internal/cli/output"
	"github.com/sageworks-ml/sageworks/internal/cloudwatch"
	"github.com/sageworks-ml/sageworks/internal/platform"
	"github.com/sageworks-ml/sageworks/internal/storage"
)

// logStream is the stream CLI log records are teed into.
const logStream = "sageworks-cli"

// CommandContext bundles what every command needs: the resolved config,
// a renderer, and a connected platform.
type CommandContext struct {
	Config   *config.Config
	Renderer *output.Renderer
	Platform *platform.Platform
	Logger   *slog.Logger
}

// NewCommandContext builds the command context and connects the
// platform. The returned cleanup closes the platform.
func NewCommandContext(cmd *cobra.Command) (*CommandContext, func(), error) {
	cfg := config.Current()
	if cfg == nil {
		var err error
		cfg, err = config.LoadConfig("", cmd.Root().PersistentFlags())
		if err != nil {
			return nil, nil, err
		}
	}
	if cfg.Bucket == "" {
		return nil, nil, fmt.Errorf("no bucket configured: set SAGEWORKS_BUCKET or run " +
			"`sageworks config --create`")
	}

	r := output.NewRenderer(cmd.OutOrStdout(), cmd.ErrOrStderr(), output.Mode(cfg.OutputFormat))

	base := slog.Handler(slog.DiscardHandler)
	if cfg.Verbose {
		base = slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelDebug})
	}

	if dir := filepath.Dir(cfg.CatalogPath); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return nil, nil, fmt.Errorf("failed to create catalog directory: %w", err)
		}
	}

	// The store-teed handler is attached after the platform connects,
	// so bring-up logging stays local.
	logger := slog.New(base)
	p, err := platform.New(cmd.Context(), platform.Options{
		Bucket:      cfg.Bucket,
		CatalogPath: cfg.CatalogPath,
		QueryType:   cfg.QueryType,
		QueryPath:   cfg.QueryPath,
		Storage: storage.Config{
			EndpointURL:     cfg.StorageEndpoint,
			AccessKeyID:     cfg.AccessKeyID,
			SecretAccessKey: cfg.SecretAccessKey,
			Region:          cfg.Region,
			LocalRoot:       cfg.LocalRoot,
		},
		Logger: logger,
	})
	if err != nil {
		return nil, nil, err
	}

	logStore := cloudwatch.NewStore(p.Store, p.Bucket)
	p.Logger = slog.New(cloudwatch.NewHandler(base, logStore, cfg.LogGroup, logStream))

	cc := &CommandContext{
		Config:   cfg,
		Renderer: r,
		Platform: p,
		Logger:   p.Logger,
	}
	cleanup := func() { _ = p.Close() }
	return cc, cleanup, nil
}
