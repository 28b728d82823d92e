package httpfetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/couchcryptid/outage-overlay/internal/observability"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/sony/gobreaker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testUserAgent = "outage-overlay-test"

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testFetcher() *Fetcher {
	f := New(testUserAgent, 5*time.Second, observability.NewMetricsForTesting(), discardLogger())
	f.attempts = 1
	return f
}

func TestFetcher_Get_Success(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, testUserAgent, r.Header.Get("User-Agent"))
		assert.Equal(t, "application/json", r.Header.Get("Accept"))
		_, _ = w.Write([]byte(`{"ok":true}`))
	}))
	defer srv.Close()

	f := testFetcher()
	body, err := f.Get(context.Background(), Request{Source: "gcp", URL: srv.URL, Accept: "application/json"})
	require.NoError(t, err)
	assert.JSONEq(t, `{"ok":true}`, string(body))
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.FetchRequests.WithLabelValues("gcp", "success")))
}

func TestFetcher_Get_StatusError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte(strings.Repeat("x", 2000)))
	}))
	defer srv.Close()

	f := testFetcher()
	_, err := f.Get(context.Background(), Request{Source: "dshield", URL: srv.URL})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUpstreamStatus)

	var statusErr *StatusError
	require.True(t, errors.As(err, &statusErr))
	assert.Equal(t, http.StatusTooManyRequests, statusErr.Code)
	assert.Len(t, statusErr.Body, maxErrorBody)
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.FetchRequests.WithLabelValues("dshield", "error")))
}

func TestFetcher_Get_BodyTooLarge(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(strings.Repeat("x", 65)))
	}))
	defer srv.Close()

	f := testFetcher()
	f.maxBody = 64
	_, err := f.Get(context.Background(), Request{Source: "aws", URL: srv.URL})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrBodyTooLarge)
	assert.Contains(t, err.Error(), "aws response exceeds 64 bytes")
}

func TestFetcher_Get_BodyAtLimit(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(strings.Repeat("x", 64)))
	}))
	defer srv.Close()

	f := testFetcher()
	f.maxBody = 64
	body, err := f.Get(context.Background(), Request{Source: "aws", URL: srv.URL})
	require.NoError(t, err)
	assert.Len(t, body, 64)
}

func TestFetcher_Get_ContextCancelled(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := testFetcher().Get(ctx, Request{Source: "aws", URL: srv.URL})
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestFetcher_BreakerOpensAfterConsecutiveFailures(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	f := testFetcher()
	req := Request{Source: "cloudflare", URL: srv.URL}
	for i := 0; i < 3; i++ {
		_, err := f.Get(context.Background(), req)
		require.ErrorIs(t, err, ErrUpstreamStatus)
	}

	_, err := f.Get(context.Background(), req)
	require.Error(t, err)
	assert.ErrorIs(t, err, gobreaker.ErrOpenState)
	assert.Equal(t, int32(3), hits.Load(), "open breaker must not reach the server")
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.FetchRequests.WithLabelValues("cloudflare", "rejected")))
	assert.Equal(t, float64(gobreaker.StateOpen), testutil.ToFloat64(f.metrics.BreakerState.WithLabelValues("cloudflare")))

	// Other sources keep their own breaker.
	_, err = f.Get(context.Background(), Request{Source: "gcp", URL: srv.URL})
	assert.ErrorIs(t, err, ErrUpstreamStatus)
}

func TestFetcher_RetriesTransientStatus(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if hits.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte("<rss/>"))
	}))
	defer srv.Close()

	f := testFetcher()
	f.attempts, f.backoff = 3, time.Millisecond

	body, err := f.Get(context.Background(), Request{Source: "aws", URL: srv.URL})
	require.NoError(t, err)
	assert.Equal(t, "<rss/>", string(body))
	assert.Equal(t, int32(3), hits.Load())
}

func TestFetcher_DoesNotRetryClientErrors(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	f := testFetcher()
	f.attempts, f.backoff = 3, time.Millisecond

	_, err := f.Get(context.Background(), Request{Source: "dshield", URL: srv.URL})
	require.ErrorIs(t, err, ErrUpstreamStatus)
	assert.Equal(t, int32(1), hits.Load())
}

func TestRetryable(t *testing.T) {
	cancelled, cancel := context.WithCancel(context.Background())
	cancel()

	tests := []struct {
		name string
		ctx  context.Context
		err  error
		want bool
	}{
		{"server error", context.Background(), &StatusError{Code: http.StatusBadGateway}, true},
		{"rate limited", context.Background(), &StatusError{Code: http.StatusTooManyRequests}, true},
		{"not found", context.Background(), &StatusError{Code: http.StatusNotFound}, false},
		{"transport", context.Background(), fmt.Errorf("aws request: %w", &url.Error{Op: "Get", Err: errors.New("connection reset")}), true},
		{"other", context.Background(), errors.New("read body"), false},
		{"cancelled", cancelled, &StatusError{Code: http.StatusBadGateway}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, retryable(tt.ctx, tt.err))
		})
	}
}
