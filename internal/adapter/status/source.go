// Package status fetches provider status payloads and turns them into
// clamped incidents.
package status

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/couchcryptid/outage-overlay/internal/adapter/httpfetch"
	"github.com/couchcryptid/outage-overlay/internal/domain"
)

// Fixture file names for each provider payload.
const (
	AWSFixture        = "aws.rss"
	CloudflareFixture = "cloudflare.json"
	GCPFixture        = "gcp.json"
)

// Source fetches one provider's raw payload and aggregates it.
// It implements pipeline.IncidentSource.
type Source struct {
	getter     httpfetch.Getter
	request    httpfetch.Request
	aggregator domain.Aggregator
	logger     *slog.Logger
}

// NewSource wires a getter and an aggregator for one provider endpoint.
func NewSource(getter httpfetch.Getter, req httpfetch.Request, agg domain.Aggregator, logger *slog.Logger) *Source {
	return &Source{
		getter:     getter,
		request:    req,
		aggregator: agg,
		logger:     logger.With("provider", string(agg.Provider())),
	}
}

// NewAWS reads the AWS Health Dashboard RSS feed.
func NewAWS(getter httpfetch.Getter, url string, logger *slog.Logger) *Source {
	return NewSource(getter, httpfetch.Request{
		Source: "aws",
		Name:   AWSFixture,
		URL:    url,
		Accept: "application/rss+xml, application/xml;q=0.9, */*;q=0.8",
	}, domain.NewAWSAggregator(), logger)
}

// NewCloudflare reads the Cloudflare Statuspage incidents document.
func NewCloudflare(getter httpfetch.Getter, url string, logger *slog.Logger) *Source {
	return NewSource(getter, httpfetch.Request{
		Source: "cloudflare",
		Name:   CloudflareFixture,
		URL:    url,
		Accept: "application/json",
	}, domain.NewStatuspageAggregator(), logger)
}

// NewGCP reads the Google Cloud incidents.json array.
func NewGCP(getter httpfetch.Getter, url string, logger *slog.Logger) *Source {
	return NewSource(getter, httpfetch.Request{
		Source: "gcp",
		Name:   GCPFixture,
		URL:    url,
		Accept: "application/json",
	}, domain.NewGCPAggregator(), logger)
}

// Provider reports which status page the source reads.
func (s *Source) Provider() domain.Provider { return s.aggregator.Provider() }

// Incidents fetches the payload and returns incidents clamped to window.
func (s *Source) Incidents(ctx context.Context, window domain.Window) (domain.Aggregation, error) {
	payload, err := s.getter.Get(ctx, s.request)
	if err != nil {
		return domain.Aggregation{}, fmt.Errorf("fetch %s incidents: %w", s.Provider(), err)
	}

	agg, err := s.aggregator.Aggregate(payload, window)
	if err != nil {
		return domain.Aggregation{}, err
	}

	if agg.Skipped > 0 {
		s.logger.Debug("entries skipped", "count", agg.Skipped)
	}
	s.logger.Debug("incidents aggregated",
		"kept", len(agg.Incidents),
		"outside_window", agg.Outside,
		"bytes", len(payload),
	)
	return agg, nil
}
