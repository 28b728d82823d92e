package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os/signal"
	"strings"
	"syscall"

	"github.com/couchcryptid/outage-overlay/internal/adapter/dshield"
	"github.com/couchcryptid/outage-overlay/internal/adapter/fixture"
	httpadapter "github.com/couchcryptid/outage-overlay/internal/adapter/http"
	"github.com/couchcryptid/outage-overlay/internal/adapter/httpfetch"
	kafkaadapter "github.com/couchcryptid/outage-overlay/internal/adapter/kafka"
	"github.com/couchcryptid/outage-overlay/internal/adapter/report"
	"github.com/couchcryptid/outage-overlay/internal/adapter/status"
	"github.com/couchcryptid/outage-overlay/internal/config"
	"github.com/couchcryptid/outage-overlay/internal/domain"
	"github.com/couchcryptid/outage-overlay/internal/observability"
	"github.com/couchcryptid/outage-overlay/internal/pipeline"
	"github.com/spf13/cobra"
)

// newMetrics registers the process metrics. Tests swap it for an
// unregistered set.
var newMetrics = observability.NewMetrics

func runOverlay(cmd *cobra.Command, opts *options) error {
	cfg, err := loadConfig(cmd, opts)
	if err != nil {
		return err
	}

	logger := observability.NewLogger(cfg)
	metrics := newMetrics()

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	runner := newRunner(cfg, newGetter(cfg, metrics, logger), metrics, logger)

	var srv *httpadapter.Server
	if cfg.HTTPAddr != "" {
		srv = httpadapter.NewServer(cfg.HTTPAddr, runner, runner, logger)
		go func() {
			if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("http server error", "error", err)
			}
		}()
		defer shutdownServer(srv, cfg, logger)
	}

	res, err := runner.Run(ctx, pipeline.Request{Window: cfg.Window(), Ports: cfg.Ports, Metric: cfg.Metric})
	if err != nil {
		logger.Error("overlay run failed", "error", err)
		return err
	}

	if err := writeArtifacts(cfg, res, logger); err != nil {
		logger.Error("writing outputs failed", "error", err)
		return err
	}
	if err := report.WriteSummary(cmd.OutOrStdout(), report.Summary{
		Window:     res.Window,
		Metric:     res.Metric,
		Rows:       res.Table,
		Series:     res.Series,
		EmptyPorts: res.EmptyPorts,
	}); err != nil {
		return err
	}

	if cfg.PublishEnabled() {
		if err := publish(ctx, cfg, res, metrics, logger); err != nil {
			logger.Error("publishing failed", "error", err)
			return err
		}
	}

	if srv != nil {
		logger.Info("run complete, serving results until interrupted", "addr", cfg.HTTPAddr)
		<-ctx.Done()
		logger.Info("shutting down")
	}
	return nil
}

// loadConfig reads the environment, applies flag overrides and validates
// the result.
func loadConfig(cmd *cobra.Command, opts *options) (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if err := opts.apply(cmd, cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (o *options) apply(cmd *cobra.Command, cfg *config.Config) error {
	changed := cmd.Flags().Changed

	if changed("end") {
		end, err := config.ParseDate(o.end)
		if err != nil {
			return fmt.Errorf("--end: %w", err)
		}
		cfg.SetEnd(end)
	}
	if changed("start") {
		start, err := config.ParseDate(o.start)
		if err != nil {
			return fmt.Errorf("--start: %w", err)
		}
		cfg.SetStart(start)
	}
	if changed("ports") {
		ports, err := config.ParsePorts(strings.Join(o.ports, ","))
		if err != nil {
			return fmt.Errorf("--ports: %w", err)
		}
		cfg.Ports = ports
	}
	if changed("botnet-metric") {
		cfg.Metric = domain.Metric(o.metric)
	}
	if changed("user-agent") {
		cfg.UserAgent = o.userAgent
	}
	if o.debug {
		cfg.LogLevel = "debug"
	}

	// Output flags only exist on the root command.
	if cmd.Flags().Lookup("out-csv") != nil {
		if changed("out-csv") {
			cfg.OutCSV = o.outCSV
		}
		if changed("out-series") {
			cfg.OutSeries = o.outSeries
		}
		if changed("out-plot") {
			cfg.OutPlot = o.outPlot
		}
		if changed("fixtures-dir") {
			cfg.FixturesDir = o.fixturesDir
		}
		if changed("http-addr") {
			cfg.HTTPAddr = o.httpAddr
		}
	}
	return nil
}

// newGetter returns the payload source: saved fixtures when a fixtures
// directory is configured, the network otherwise.
func newGetter(cfg *config.Config, metrics *observability.Metrics, logger *slog.Logger) httpfetch.Getter {
	if cfg.FixturesDir != "" {
		logger.Info("replaying saved payloads", "dir", cfg.FixturesDir)
		return fixture.NewDir(cfg.FixturesDir)
	}
	return httpfetch.New(cfg.UserAgent, cfg.HTTPTimeout, metrics, logger)
}

func newRunner(cfg *config.Config, getter httpfetch.Getter, metrics *observability.Metrics, logger *slog.Logger) *pipeline.Runner {
	sources := []pipeline.IncidentSource{
		status.NewAWS(getter, cfg.AWSFeedURL, logger),
		status.NewCloudflare(getter, cfg.CloudflareIncidentsURL, logger),
		status.NewGCP(getter, cfg.GCPIncidentsURL, logger),
	}
	history := dshield.NewClient(getter, cfg.DShieldBaseURL, logger)
	return pipeline.New(sources, history, cfg.FetchConcurrency, logger, metrics)
}

// writeArtifacts writes the incident CSV, the series CSV and the chart. It
// runs only after a successful run so a failed run leaves no partial output.
func writeArtifacts(cfg *config.Config, res pipeline.Result, logger *slog.Logger) error {
	if err := report.WriteFile(cfg.OutCSV, func(w io.Writer) error {
		return report.WriteIncidentsCSV(w, res.Table)
	}); err != nil {
		return err
	}
	logger.Info("incident table written", "path", cfg.OutCSV, "rows", len(res.Table))

	if cfg.OutSeries != "" {
		if err := report.WriteFile(cfg.OutSeries, func(w io.Writer) error {
			return report.WriteSeriesCSV(w, res.Series)
		}); err != nil {
			return err
		}
		logger.Info("daily series written", "path", cfg.OutSeries, "days", len(res.Series))
	}

	if cfg.OutPlot != "" {
		p, err := report.OverlayPlot(res.Table, res.Series, res.Window, res.Metric)
		if err != nil {
			return err
		}
		if err := report.SavePlot(p, cfg.OutPlot); err != nil {
			return err
		}
		logger.Info("overlay chart written", "path", cfg.OutPlot)
	}
	return nil
}

func publish(ctx context.Context, cfg *config.Config, res pipeline.Result, metrics *observability.Metrics, logger *slog.Logger) error {
	writer := kafkaadapter.NewWriter(cfg, metrics, logger)
	defer func() {
		if err := writer.Close(); err != nil {
			logger.Error("kafka writer close error", "error", err)
		}
	}()

	if err := writer.PublishIncidents(ctx, res.Table, res.GeneratedAt); err != nil {
		return err
	}
	return writer.PublishSeries(ctx, res.Series, res.Metric, res.GeneratedAt)
}

func shutdownServer(srv *httpadapter.Server, cfg *config.Config, logger *slog.Logger) {
	ctx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("http server shutdown error", "error", err)
	}
	logger.Info("shutdown complete")
}
