package commands

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/sageworks-ml/sageworks/internal/model"
	"github.com/sageworks-ml/sageworks/internal/serve"
)

// NewServeCommand creates the serve command, which runs a local serving
// container over a model bundle directory.
func NewServeCommand() *cobra.Command {
	var (
		modelDir    string
		modelName   string
		port        int
		watch       bool
		freezeAfter time.Duration
	)
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run a serving container for a trained model bundle",
		Long: `Serve exposes /ping and /invocations over a model bundle directory,
mirroring the contract of a hosted inference container. The bundle
directory defaults to the SM_MODEL_DIR environment variable. With
--model, the bundle of a registered model is downloaded into the
directory first.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if modelDir == "" {
				modelDir = os.Getenv("SM_MODEL_DIR")
			}
			if modelDir == "" {
				modelDir = "."
			}

			logger := slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), nil))
			if modelName != "" {
				cc, cleanup, err := NewCommandContext(cmd)
				if err != nil {
					return err
				}
				if err := downloadBundle(cmd, cc, modelName, modelDir); err != nil {
					cleanup()
					return err
				}
				logger = cc.Logger
				cleanup()
			}

			srv := serve.NewServer(serve.Config{
				ModelDir:    modelDir,
				Port:        port,
				Watch:       watch,
				FreezeAfter: freezeAfter,
				Logger:      logger,
			})
			if err := srv.Load(); err != nil {
				return fmt.Errorf("load model bundle: %w", err)
			}
			logger.Info("serving", "model_dir", modelDir, "port", port)
			return srv.Serve(cmd.Context())
		},
	}
	cmd.Flags().StringVar(&modelDir, "model-dir", "", "Model bundle directory (default $SM_MODEL_DIR)")
	cmd.Flags().StringVar(&modelName, "model", "", "Registered model to download into the bundle directory")
	cmd.Flags().IntVar(&port, "port", 8080, "Port to listen on")
	cmd.Flags().BoolVar(&watch, "watch", false, "Reload the model when the bundle changes on disk")
	cmd.Flags().DurationVar(&freezeAfter, "freeze-after", 0, "Unload the model after this idle duration (0 disables)")
	return cmd
}

// downloadBundle pulls a registered model's parameter and feature files
// into dir so the serving container can load them.
func downloadBundle(cmd *cobra.Command, cc *CommandContext, name, dir string) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	for _, file := range []string{model.ParamsFile, model.FeaturesFile} {
		key := cc.Platform.Layout.ModelKey(name, file)
		data, err := cc.Platform.Store.GetObject(cmd.Context(), cc.Platform.Bucket, key)
		if err != nil {
			return fmt.Errorf("download %s for model %s: %w", file, name, err)
		}
		if err := os.WriteFile(filepath.Join(dir, file), data, 0o644); err != nil {
			return err
		}
	}
	return nil
}
