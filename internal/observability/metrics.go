package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "outage_overlay"

// Metrics holds the Prometheus counters, histograms, and gauges for an overlay run.
type Metrics struct {
	// Upstream fetch metrics.
	FetchRequests *prometheus.CounterVec   // labels: source, outcome={success,error,rejected}
	FetchDuration *prometheus.HistogramVec // labels: source
	BreakerState  *prometheus.GaugeVec     // labels: source; 0=closed, 1=half-open, 2=open

	// Normalization metrics.
	Incidents      *prometheus.CounterVec // labels: provider
	SkippedEntries *prometheus.CounterVec // labels: source
	DailyRecords   *prometheus.CounterVec // labels: port
	EmptyPorts     prometheus.Counter

	// Run metrics.
	RunDuration prometheus.Histogram
	Runs        *prometheus.CounterVec // labels: outcome={success,error}
	Published   *prometheus.CounterVec // labels: kind={incident,series}
}

func newMetrics() *Metrics {
	return &Metrics{
		FetchRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "fetch_requests_total",
			Help:      "Upstream fetches by source and outcome.",
		}, []string{"source", "outcome"}),
		FetchDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "fetch_duration_seconds",
			Help:      "Upstream fetch duration in seconds.",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
		}, []string{"source"}),
		BreakerState: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "circuit_breaker_state",
			Help:      "Circuit breaker state per upstream source: 0 closed, 1 half-open, 2 open.",
		}, []string{"source"}),
		Incidents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "incidents_total",
			Help:      "Incidents kept after clamping, by provider.",
		}, []string{"provider"}),
		SkippedEntries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "skipped_entries_total",
			Help:      "Raw entries dropped for a missing identifier or timestamp, by source.",
		}, []string{"source"}),
		DailyRecords: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "daily_records_total",
			Help:      "Daily porthistory records parsed, by port.",
		}, []string{"port"}),
		EmptyPorts: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "empty_ports_total",
			Help:      "Ports whose porthistory resolved to no records.",
		}),
		RunDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "run_duration_seconds",
			Help:      "Duration of a complete fetch-normalize-assemble run.",
			Buckets:   []float64{0.1, 0.5, 1, 2.5, 5, 10, 30, 60, 120},
		}),
		Runs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "runs_total",
			Help:      "Completed runs by outcome.",
		}, []string{"outcome"}),
		Published: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "published_messages_total",
			Help:      "Messages published to Kafka by kind.",
		}, []string{"kind"}),
	}
}

func (m *Metrics) collectors() []prometheus.Collector {
	return []prometheus.Collector{
		m.FetchRequests,
		m.FetchDuration,
		m.BreakerState,
		m.Incidents,
		m.SkippedEntries,
		m.DailyRecords,
		m.EmptyPorts,
		m.RunDuration,
		m.Runs,
		m.Published,
	}
}

// NewMetrics creates and registers all run metrics with the default Prometheus registry.
func NewMetrics() *Metrics {
	m := newMetrics()
	prometheus.MustRegister(m.collectors()...)
	return m
}

// NewMetricsForTesting creates Metrics that are not registered anywhere, to
// avoid "already registered" panics when called from multiple tests.
func NewMetricsForTesting() *Metrics {
	return newMetrics()
}
