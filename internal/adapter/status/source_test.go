package status

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/couchcryptid/outage-overlay/internal/adapter/httpfetch"
	"github.com/couchcryptid/outage-overlay/internal/domain"
	"github.com/couchcryptid/outage-overlay/internal/observability"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testFeed = `<?xml version="1.0" encoding="UTF-8"?>
<rss version="2.0"><channel><title>AWS</title>
<item><title>Increased Error Rates</title><guid>http://status.aws.amazon.com/#lambda-us-east-1_1704096000</guid><pubDate>Mon, 01 Jan 2024 02:00:00 PST</pubDate></item>
<item><title>[RESOLVED] Increased Error Rates</title><guid>http://status.aws.amazon.com/#lambda-us-east-1_1704096000</guid><pubDate>Mon, 01 Jan 2024 03:15:00 PST</pubDate></item>
</channel></rss>`

const testStatuspage = `{"incidents":[{"id":"cf1","name":"DNS delays","impact":"minor",
"created_at":"2024-01-01T05:00:00Z","resolved_at":"2024-01-01T06:00:00Z","shortlink":"https://stspg.io/cf1"}]}`

const testGCP = `[{"number":"7","begin":"2024-01-01T07:00:00+00:00","end":"2024-01-01T07:30:00+00:00",
"title":"BigQuery latency","severity":"low","uri":"incidents/7"}]`

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testWindow() domain.Window {
	return domain.Window{
		Start: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		End:   time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC),
	}
}

func newUpstream(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/rss/all.rss", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/rss+xml")
		_, _ = w.Write([]byte(testFeed))
	})
	mux.HandleFunc("/api/v2/incidents.json", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(testStatuspage))
	})
	mux.HandleFunc("/incidents.json", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(testGCP))
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func TestSources_FetchAndAggregate(t *testing.T) {
	srv := newUpstream(t)
	fetcher := httpfetch.New("test", 5*time.Second, observability.NewMetricsForTesting(), discardLogger())

	tests := []struct {
		name     string
		source   *Source
		provider domain.Provider
		id       string
		start    time.Time
		end      time.Time
		severity string
	}{
		{
			name:     "aws",
			source:   NewAWS(fetcher, srv.URL+"/rss/all.rss", discardLogger()),
			provider: domain.ProviderAWS,
			id:       "lambda-us-east-1_1704096000",
			start:    time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC),
			end:      time.Date(2024, 1, 1, 11, 15, 0, 0, time.UTC),
			severity: "resolved",
		},
		{
			name:     "cloudflare",
			source:   NewCloudflare(fetcher, srv.URL+"/api/v2/incidents.json", discardLogger()),
			provider: domain.ProviderCloudflare,
			id:       "cf1",
			start:    time.Date(2024, 1, 1, 5, 0, 0, 0, time.UTC),
			end:      time.Date(2024, 1, 1, 6, 0, 0, 0, time.UTC),
			severity: "minor",
		},
		{
			name:     "gcp",
			source:   NewGCP(fetcher, srv.URL+"/incidents.json", discardLogger()),
			provider: domain.ProviderGCP,
			id:       "7",
			start:    time.Date(2024, 1, 1, 7, 0, 0, 0, time.UTC),
			end:      time.Date(2024, 1, 1, 7, 30, 0, 0, time.UTC),
			severity: "low",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.provider, tt.source.Provider())

			agg, err := tt.source.Incidents(context.Background(), testWindow())
			require.NoError(t, err)
			require.Len(t, agg.Incidents, 1)

			inc := agg.Incidents[0]
			assert.Equal(t, tt.provider, inc.Provider)
			assert.Equal(t, tt.id, inc.IncidentID)
			assert.Equal(t, tt.start, inc.Start)
			assert.Equal(t, tt.end, inc.End)
			assert.Equal(t, tt.severity, inc.Severity)
		})
	}
}

type failingGetter struct{ err error }

func (f failingGetter) Get(context.Context, httpfetch.Request) ([]byte, error) { return nil, f.err }

func TestSource_FetchError(t *testing.T) {
	upstream := errors.New("connection refused")
	src := NewGCP(failingGetter{err: upstream}, "http://unused", discardLogger())

	_, err := src.Incidents(context.Background(), testWindow())
	require.Error(t, err)
	assert.ErrorIs(t, err, upstream)
	assert.Contains(t, err.Error(), "fetch GCP incidents")
}

type recordingGetter struct{ got httpfetch.Request }

func (r *recordingGetter) Get(_ context.Context, req httpfetch.Request) ([]byte, error) {
	r.got = req
	return []byte(`{"incidents":[]}`), nil
}

func TestSource_RequestShape(t *testing.T) {
	g := &recordingGetter{}
	src := NewCloudflare(g, "https://example.test/incidents.json", discardLogger())

	agg, err := src.Incidents(context.Background(), testWindow())
	require.NoError(t, err)
	assert.Empty(t, agg.Incidents)
	assert.Equal(t, httpfetch.Request{
		Source: "cloudflare",
		Name:   CloudflareFixture,
		URL:    "https://example.test/incidents.json",
		Accept: "application/json",
	}, g.got)
}
