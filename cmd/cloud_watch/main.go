// Package main provides cloud_watch, a log group tail for SageWorks
// artifact buckets.
package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/sageworks-ml/sageworks/internal/cli/config"
	"github.com/sageworks-ml/sageworks/internal/cloudwatch"
	"github.com/sageworks-ml/sageworks/internal/storage"
)

func main() {
	if err := newCommand().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func newCommand() *cobra.Command {
	var (
		cfgFile      string
		group        string
		startMinutes int
		endMinutes   int
		poll         time.Duration
		search       string
		before       int
		after        int
		streamFilter string
		follow       bool
		sortByStream bool
	)
	cmd := &cobra.Command{
		Use:   "cloud_watch",
		Short: "Tail and search SageWorks log groups",
		Long: `cloud_watch prints the log events shipped to the artifact bucket by
SageWorks commands and serving containers. By default it prints the
last hour of the default log group; with --follow it polls for new
events until interrupted.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadConfig(cfgFile, cmd.Flags())
			if err != nil {
				return err
			}
			if cfg.Bucket == "" {
				return fmt.Errorf("no artifact bucket configured: set SAGEWORKS_BUCKET or run `sageworks config --create`")
			}

			store, err := storage.Open(storage.Config{
				EndpointURL:     cfg.StorageEndpoint,
				AccessKeyID:     cfg.AccessKeyID,
				SecretAccessKey: cfg.SecretAccessKey,
				Region:          cfg.Region,
				LocalRoot:       cfg.LocalRoot,
			})
			if err != nil {
				return err
			}

			if group == "" {
				group = cfg.LogGroup
			}
			mcfg := cloudwatch.MonitorConfig{
				Group:        group,
				Start:        time.Now().Add(-time.Duration(startMinutes) * time.Minute),
				PollInterval: poll,
				Search:       search,
				Before:       before,
				After:        after,
				StreamFilter: streamFilter,
				SortByStream: sortByStream,
				Out:          cmd.OutOrStdout(),
			}
			if !follow {
				end := time.Now()
				if endMinutes > 0 {
					end = end.Add(-time.Duration(endMinutes) * time.Minute)
				}
				mcfg.End = end
			}

			monitor := cloudwatch.NewMonitor(cloudwatch.NewStore(store, cfg.Bucket), mcfg)
			return monitor.Run(cmd.Context())
		},
	}

	cmd.Flags().StringVar(&cfgFile, "config", "", "config file (default: ./sageworks.yaml)")
	cmd.Flags().StringVar(&group, "log-group", "", "Log group to monitor (default from config)")
	cmd.Flags().IntVar(&startMinutes, "start-time", 60, "Start this many minutes ago")
	cmd.Flags().IntVar(&endMinutes, "end-time", 0, "End this many minutes ago (0 means now)")
	cmd.Flags().DurationVar(&poll, "poll", 10*time.Second, "Poll interval in follow mode")
	cmd.Flags().StringVar(&search, "search", "",
		"Level term (ALL, IMPORTANT, WARNING, MONITOR, ERROR) or literal substring")
	cmd.Flags().IntVar(&before, "before", 0, "Context lines before each match")
	cmd.Flags().IntVar(&after, "after", 0, "Context lines after each match")
	cmd.Flags().StringVar(&streamFilter, "stream-filter", "", "Only streams whose name contains this substring")
	cmd.Flags().BoolVarP(&follow, "follow", "f", false, "Poll for new events until interrupted")
	cmd.Flags().BoolVar(&sortByStream, "sort-by-stream", false, "Order events by stream instead of time")
	return cmd
}
