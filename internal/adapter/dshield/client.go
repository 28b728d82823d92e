// Package dshield reads SANS ISC (DShield) port history as a daily
// botnet-activity proxy.
package dshield

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/couchcryptid/outage-overlay/internal/adapter/httpfetch"
	"github.com/couchcryptid/outage-overlay/internal/domain"
	"github.com/tidwall/gjson"
)

// diagnosticBytes is how much of an unrecognized payload is logged.
const diagnosticBytes = 800

// ErrMalformedPayload is returned when the response is not JSON.
var ErrMalformedPayload = errors.New("malformed porthistory payload")

// FixtureName is the fixture file name for a port's payload.
func FixtureName(port int) string {
	return "dshield_" + strconv.Itoa(port) + ".json"
}

// Client fetches porthistory series.
// It implements pipeline.HistorySource.
type Client struct {
	getter  httpfetch.Getter
	baseURL string
	logger  *slog.Logger
}

// NewClient creates a client for the ISC API rooted at baseURL.
func NewClient(getter httpfetch.Getter, baseURL string, logger *slog.Logger) *Client {
	return &Client{getter: getter, baseURL: baseURL, logger: logger}
}

// PortHistory returns the daily records for one port over the window's
// calendar dates. The metric is validated before any request is made.
func (c *Client) PortHistory(ctx context.Context, port int, metric domain.Metric, window domain.Window) ([]domain.DailyRecord, error) {
	if _, err := domain.ParseMetric(string(metric)); err != nil {
		return nil, err
	}

	start := window.Start.UTC().Format("2006-01-02")
	end := window.End.UTC().Format("2006-01-02")
	req := httpfetch.Request{
		Source: "dshield",
		Name:   FixtureName(port),
		URL:    fmt.Sprintf("%s/api/porthistory/%d/%s/%s?json", c.baseURL, port, start, end),
		Accept: "application/json",
	}

	c.logger.Debug("porthistory request", "port", port, "metric", metric, "url", req.URL)
	payload, err := c.getter.Get(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("fetch porthistory for port %d: %w", port, err)
	}
	if !gjson.ValidBytes(payload) {
		return nil, fmt.Errorf("port %d: %w", port, ErrMalformedPayload)
	}

	doc := gjson.ParseBytes(payload)
	records, stats := domain.ParseDailyRecords(doc, port, metric)
	if stats.Entries == 0 {
		c.logDiagnostics(port, doc, payload)
	}
	c.logger.Debug("porthistory parsed",
		"port", port,
		"shape", string(stats.Shape),
		"entries", stats.Entries,
		"skipped", stats.Skipped,
		"records", len(records),
	)

	if len(records) == 0 {
		c.logger.Warn("porthistory returned no rows",
			"port", port,
			"metric", metric,
			"start", start,
			"end", end,
		)
	}
	return records, nil
}

func (c *Client) logDiagnostics(port int, doc gjson.Result, payload []byte) {
	if doc.IsObject() {
		var keys []string
		total := 0
		doc.ForEach(func(k, _ gjson.Result) bool {
			total++
			if len(keys) < 10 {
				keys = append(keys, k.String())
			}
			return true
		})
		c.logger.Debug("porthistory payload", "port", port, "type", "object", "keys_count", total, "sample_keys", keys)
	} else {
		c.logger.Debug("porthistory payload", "port", port, "type", doc.Type.String())
	}

	raw := payload
	if len(raw) > diagnosticBytes {
		raw = raw[:diagnosticBytes]
	}
	c.logger.Debug("porthistory raw response", "port", port, "head", string(raw))
}
