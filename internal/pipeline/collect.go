package pipeline

import (
	"context"

	"github.com/couchcryptid/outage-overlay/internal/domain"
	"golang.org/x/sync/errgroup"
)

// fetched holds raw per-source results, indexed like Runner.sources and
// Request.Ports.
type fetched struct {
	aggregations []domain.Aggregation
	histories    [][]domain.DailyRecord
}

// collect runs every provider and port fetch under one bounded errgroup.
// The first error cancels the rest.
func (r *Runner) collect(ctx context.Context, req Request) (fetched, error) {
	out := fetched{
		aggregations: make([]domain.Aggregation, len(r.sources)),
		histories:    make([][]domain.DailyRecord, len(req.Ports)),
	}

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(r.concurrency)

	for i, src := range r.sources {
		g.Go(func() error {
			agg, err := src.Incidents(ctx, req.Window)
			if err != nil {
				r.logger.Error("incident fetch failed", "provider", string(src.Provider()), "error", err)
				return err
			}
			out.aggregations[i] = agg
			return nil
		})
	}

	for i, port := range req.Ports {
		g.Go(func() error {
			records, err := r.history.PortHistory(ctx, port, req.Metric, req.Window)
			if err != nil {
				r.logger.Error("port history fetch failed", "port", port, "error", err)
				return err
			}
			out.histories[i] = records
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return fetched{}, err
	}
	return out, nil
}
