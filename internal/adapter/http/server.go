package http

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/couchcryptid/outage-overlay/internal/adapter/report"
	"github.com/couchcryptid/outage-overlay/internal/domain"
	"github.com/couchcryptid/outage-overlay/internal/pipeline"
	sharedobs "github.com/couchcryptid/storm-data-shared/observability"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// ResultProvider returns the most recent successful overlay run.
type ResultProvider interface {
	Last() (pipeline.Result, bool)
}

// Server exposes health, readiness, metrics and the last run's output.
type Server struct {
	httpServer *http.Server
	results    ResultProvider
	logger     *slog.Logger
}

// NewServer creates an HTTP server with /healthz, /readyz, /metrics,
// /api/incidents and /api/series routes.
func NewServer(addr string, ready sharedobs.ReadinessChecker, results ResultProvider, logger *slog.Logger) *Server {
	mux := http.NewServeMux()

	s := &Server{
		httpServer: &http.Server{
			Addr:         addr,
			Handler:      mux,
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 10 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
		results: results,
		logger:  logger,
	}

	mux.HandleFunc("GET /healthz", sharedobs.LivenessHandler())
	mux.HandleFunc("GET /readyz", sharedobs.ReadinessHandler(ready))
	mux.Handle("GET /metrics", promhttp.Handler())
	mux.HandleFunc("GET /api/incidents", s.handleIncidents)
	mux.HandleFunc("GET /api/series", s.handleSeries)

	return s
}

// Start begins listening. Returns http.ErrServerClosed on graceful shutdown.
func (s *Server) Start() error {
	s.logger.Info("http server starting", "addr", s.httpServer.Addr)
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully drains connections within the given context deadline.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// ServeHTTP delegates to the underlying handler, useful for testing.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.httpServer.Handler.ServeHTTP(w, r)
}

type incidentsResponse struct {
	Start       string                  `json:"start"`
	End         string                  `json:"end"`
	GeneratedAt time.Time               `json:"generated_at"`
	Counts      map[domain.Provider]int `json:"counts"`
	Incidents   []domain.IncidentRow    `json:"incidents"`
}

type seriesPoint struct {
	Date  string `json:"date"`
	Total int64  `json:"new_devices"`
}

type seriesResponse struct {
	Metric     domain.Metric `json:"metric"`
	Ports      []int         `json:"ports"`
	EmptyPorts []int         `json:"empty_ports"`
	Series     []seriesPoint `json:"series"`
}

// handleIncidents serves the incident table. ?provider= filters by provider.
func (s *Server) handleIncidents(w http.ResponseWriter, r *http.Request) {
	res, ok := s.last(w)
	if !ok {
		return
	}

	rows := res.Table
	if p := r.URL.Query().Get("provider"); p != "" {
		rows = make([]domain.IncidentRow, 0, len(res.Table))
		for _, row := range res.Table {
			if string(row.Provider) == p {
				rows = append(rows, row)
			}
		}
	}
	if rows == nil {
		rows = []domain.IncidentRow{}
	}

	sharedobs.WriteJSON(w, http.StatusOK, incidentsResponse{
		Start:       res.Window.Start.Format("2006-01-02"),
		End:         res.Window.End.Format("2006-01-02"),
		GeneratedAt: res.GeneratedAt,
		Counts:      res.Counts,
		Incidents:   rows,
	})
}

// handleSeries serves the daily series as JSON, or CSV with ?format=csv.
func (s *Server) handleSeries(w http.ResponseWriter, r *http.Request) {
	res, ok := s.last(w)
	if !ok {
		return
	}

	if r.URL.Query().Get("format") == "csv" {
		w.Header().Set("Content-Type", "text/csv")
		if err := report.WriteSeriesCSV(w, res.Series); err != nil {
			s.logger.Warn("series csv write failed", "error", err)
		}
		return
	}

	points := make([]seriesPoint, len(res.Series))
	for i, p := range res.Series {
		points[i] = seriesPoint{Date: p.Date.Format("2006-01-02"), Total: p.Total}
	}
	empty := res.EmptyPorts
	if empty == nil {
		empty = []int{}
	}
	sharedobs.WriteJSON(w, http.StatusOK, seriesResponse{
		Metric:     res.Metric,
		Ports:      res.Ports,
		EmptyPorts: empty,
		Series:     points,
	})
}

func (s *Server) last(w http.ResponseWriter) (pipeline.Result, bool) {
	res, ok := s.results.Last()
	if !ok {
		sharedobs.WriteJSON(w, http.StatusServiceUnavailable, map[string]string{
			"error": "no overlay run has completed yet",
		})
	}
	return res, ok
}
