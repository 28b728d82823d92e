package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/couchcryptid/outage-overlay/internal/domain"
	"github.com/couchcryptid/outage-overlay/internal/observability"
)

// IncidentSource returns one provider's incidents clamped to a window.
type IncidentSource interface {
	Provider() domain.Provider
	Incidents(ctx context.Context, window domain.Window) (domain.Aggregation, error)
}

// HistorySource returns the daily records of one port.
type HistorySource interface {
	PortHistory(ctx context.Context, port int, metric domain.Metric, window domain.Window) ([]domain.DailyRecord, error)
}

// Request is one overlay run's parameters.
type Request struct {
	Window domain.Window
	Ports  []int
	Metric domain.Metric
}

// Result is the assembled output of a run.
type Result struct {
	Window      domain.Window
	Metric      domain.Metric
	Ports       []int
	Incidents   []domain.Incident
	Table       []domain.IncidentRow
	Records     []domain.DailyRecord
	Series      domain.DailySeries
	Counts      map[domain.Provider]int
	EmptyPorts  []int
	GeneratedAt time.Time
}

// Runner fetches every source, normalizes the payloads and assembles the
// incident table and the daily series.
type Runner struct {
	sources     []IncidentSource
	history     HistorySource
	concurrency int
	logger      *slog.Logger
	metrics     *observability.Metrics

	ready atomic.Bool
	mu    sync.RWMutex
	last  *Result
}

// New creates a Runner. concurrency bounds the number of in-flight fetches.
func New(sources []IncidentSource, history HistorySource, concurrency int, logger *slog.Logger, metrics *observability.Metrics) *Runner {
	if concurrency <= 0 {
		concurrency = 1
	}
	return &Runner{
		sources:     sources,
		history:     history,
		concurrency: concurrency,
		logger:      logger,
		metrics:     metrics,
	}
}

// CheckReadiness returns nil once a run has completed successfully.
func (r *Runner) CheckReadiness(_ context.Context) error {
	if !r.ready.Load() {
		return errors.New("no overlay run has completed yet")
	}
	return nil
}

// Last returns the most recent successful result.
func (r *Runner) Last() (Result, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.last == nil {
		return Result{}, false
	}
	return *r.last, true
}

// Run executes one overlay run. Any upstream failure aborts the run and
// cancels the remaining fetches.
func (r *Runner) Run(ctx context.Context, req Request) (Result, error) {
	start := time.Now()
	res, err := r.run(ctx, req)
	r.metrics.RunDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		r.metrics.Runs.WithLabelValues("error").Inc()
		return Result{}, err
	}
	r.metrics.Runs.WithLabelValues("success").Inc()

	r.mu.Lock()
	r.last = &res
	r.mu.Unlock()
	r.ready.Store(true)
	return res, nil
}

func (r *Runner) run(ctx context.Context, req Request) (Result, error) {
	req, err := normalizeRequest(req)
	if err != nil {
		return Result{}, err
	}

	r.logger.Info("run started",
		"start", req.Window.Start.Format("2006-01-02"),
		"end", req.Window.End.Format("2006-01-02"),
		"ports", req.Ports,
		"metric", req.Metric,
	)

	fetched, err := r.collect(ctx, req)
	if err != nil {
		return Result{}, err
	}

	res := Result{
		Window:      req.Window,
		Metric:      req.Metric,
		Ports:       req.Ports,
		Counts:      make(map[domain.Provider]int, len(r.sources)),
		GeneratedAt: domain.Now(),
	}

	groups := make([][]domain.Incident, len(fetched.aggregations))
	for i, agg := range fetched.aggregations {
		p := r.sources[i].Provider()
		groups[i] = agg.Incidents
		res.Counts[p] = len(agg.Incidents)
		r.metrics.Incidents.WithLabelValues(string(p)).Add(float64(len(agg.Incidents)))
		r.metrics.SkippedEntries.WithLabelValues(string(p)).Add(float64(agg.Skipped))
	}
	res.Incidents = domain.AssembleIncidents(groups...)
	res.Table = domain.IncidentTable(res.Incidents)

	r.logger.Info("incidents fetched", providerCounts(r.sources, res.Counts)...)

	for i, records := range fetched.histories {
		port := req.Ports[i]
		r.metrics.DailyRecords.WithLabelValues(fmt.Sprint(port)).Add(float64(len(records)))
		if len(records) == 0 {
			res.EmptyPorts = append(res.EmptyPorts, port)
			r.metrics.EmptyPorts.Inc()
		}
		res.Records = append(res.Records, records...)
	}
	if len(res.EmptyPorts) == len(req.Ports) {
		r.logger.Warn("all ports returned empty histories; the daily series will be empty",
			"ports", req.Ports, "metric", req.Metric)
	}

	res.Series = domain.BuildDailySeries(res.Records, req.Window)
	r.logger.Info("run complete",
		"incidents", len(res.Table),
		"records", len(res.Records),
		"series_days", len(res.Series),
		"series_total", res.Series.Sum(),
	)
	return res, nil
}

// normalizeRequest validates the request and collapses duplicate ports.
func normalizeRequest(req Request) (Request, error) {
	if _, err := domain.ParseMetric(string(req.Metric)); err != nil {
		return Request{}, err
	}
	w, err := domain.NewWindow(req.Window.Start, req.Window.End)
	if err != nil {
		return Request{}, err
	}
	req.Window = w

	seen := make(map[int]bool, len(req.Ports))
	ports := make([]int, 0, len(req.Ports))
	for _, p := range req.Ports {
		if !seen[p] {
			seen[p] = true
			ports = append(ports, p)
		}
	}
	if len(ports) == 0 {
		return Request{}, errors.New("at least one port is required")
	}
	req.Ports = ports
	return req, nil
}

func providerCounts(sources []IncidentSource, counts map[domain.Provider]int) []any {
	attrs := make([]any, 0, 2*len(sources))
	for _, s := range sources {
		attrs = append(attrs, string(s.Provider()), counts[s.Provider()])
	}
	return attrs
}
