package main

import (
	"errors"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/couchcryptid/outage-overlay/internal/adapter/fixture"
	"github.com/couchcryptid/outage-overlay/internal/adapter/httpfetch"
	"github.com/couchcryptid/outage-overlay/internal/observability"
	"github.com/couchcryptid/outage-overlay/internal/pipeline"
	"github.com/spf13/cobra"
)

// newSnapshotCmd records the live payloads of one run into a directory that
// --fixtures-dir can replay later.
func newSnapshotCmd(opts *options) *cobra.Command {
	var dir string

	cmd := &cobra.Command{
		Use:          "snapshot",
		Short:        "Record upstream payloads for offline replay",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if dir == "" {
				return errors.New("--dir is required")
			}
			cfg, err := loadConfig(cmd, opts)
			if err != nil {
				return err
			}

			logger := observability.NewLogger(cfg)
			metrics := newMetrics()

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			recorder, err := fixture.NewRecorder(httpfetch.New(cfg.UserAgent, cfg.HTTPTimeout, metrics, logger), dir, logger)
			if err != nil {
				return err
			}

			res, err := newRunner(cfg, recorder, metrics, logger).Run(ctx, pipeline.Request{
				Window: cfg.Window(),
				Ports:  cfg.Ports,
				Metric: cfg.Metric,
			})
			if err != nil {
				logger.Error("snapshot failed", "error", err)
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Recorded %d sources and %d ports into %s (%d incidents, %d daily records)\n",
				len(res.Counts), len(res.Ports), dir, len(res.Table), len(res.Records))
			return nil
		},
	}
	cmd.Flags().StringVar(&dir, "dir", "", "directory to write payloads into")
	return cmd
}
