package httpfetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/couchcryptid/outage-overlay/internal/observability"
	"github.com/couchcryptid/storm-data-shared/retry"
	"github.com/sony/gobreaker"
)

// maxBodyBytes caps how much of an upstream response is read into memory.
const maxBodyBytes = 32 << 20

// maxErrorBody is how much of a non-2xx body is kept in a StatusError.
const maxErrorBody = 512

// Retry defaults for transient failures.
const (
	defaultAttempts = 3
	initialBackoff  = 500 * time.Millisecond
	maxBackoff      = 5 * time.Second
)

// ErrUpstreamStatus is matched by every *StatusError.
var ErrUpstreamStatus = errors.New("unexpected upstream status")

// ErrBodyTooLarge is returned when a response body exceeds the read limit.
var ErrBodyTooLarge = errors.New("response body too large")

// Request describes one upstream payload.
type Request struct {
	// Source labels metrics and selects the circuit breaker ("aws", "dshield").
	Source string
	// Name is the fixture file name the payload is stored under.
	Name   string
	URL    string
	Accept string
}

// Getter returns the raw bytes for a request.
type Getter interface {
	Get(ctx context.Context, req Request) ([]byte, error)
}

// StatusError is returned for a non-2xx upstream response.
type StatusError struct {
	URL  string
	Code int
	Body string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("GET %s: status %d: %s", e.URL, e.Code, e.Body)
}

func (e *StatusError) Unwrap() error { return ErrUpstreamStatus }

// Fetcher performs GET requests with a fixed User-Agent, a per-request
// timeout and one circuit breaker per source. Transient failures (transport
// errors, 429 and 5xx) are retried with exponential backoff.
type Fetcher struct {
	httpClient *http.Client
	userAgent  string
	metrics    *observability.Metrics
	logger     *slog.Logger
	attempts   int
	backoff    time.Duration
	maxBody    int64

	mu       sync.Mutex
	breakers map[string]*gobreaker.CircuitBreaker
}

// New creates a Fetcher.
func New(userAgent string, timeout time.Duration, metrics *observability.Metrics, logger *slog.Logger) *Fetcher {
	return &Fetcher{
		httpClient: &http.Client{Timeout: timeout},
		userAgent:  userAgent,
		metrics:    metrics,
		logger:     logger,
		attempts:   defaultAttempts,
		backoff:    initialBackoff,
		maxBody:    maxBodyBytes,
		breakers:   make(map[string]*gobreaker.CircuitBreaker),
	}
}

// Get fetches req.URL through the source's circuit breaker.
func (f *Fetcher) Get(ctx context.Context, req Request) ([]byte, error) {
	start := time.Now()
	out, err := f.breaker(req.Source).Execute(func() (interface{}, error) {
		return f.doWithRetry(ctx, req)
	})
	f.metrics.FetchDuration.WithLabelValues(req.Source).Observe(time.Since(start).Seconds())

	switch {
	case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
		f.metrics.FetchRequests.WithLabelValues(req.Source, "rejected").Inc()
		return nil, fmt.Errorf("%s request rejected: %w", req.Source, err)
	case err != nil:
		f.metrics.FetchRequests.WithLabelValues(req.Source, "error").Inc()
		return nil, err
	}
	f.metrics.FetchRequests.WithLabelValues(req.Source, "success").Inc()
	return out.([]byte), nil
}

func (f *Fetcher) doWithRetry(ctx context.Context, r Request) ([]byte, error) {
	backoff := f.backoff
	for attempt := 1; ; attempt++ {
		body, err := f.do(ctx, r)
		if err == nil || attempt >= f.attempts || !retryable(ctx, err) {
			return body, err
		}
		f.logger.Warn("upstream request failed, retrying",
			"source", r.Source, "attempt", attempt, "backoff", backoff, "error", err)
		if !retry.SleepWithContext(ctx, backoff) {
			return nil, fmt.Errorf("%s request: %w", r.Source, ctx.Err())
		}
		backoff = retry.NextBackoff(backoff, maxBackoff)
	}
}

// retryable reports whether err is worth another attempt.
func retryable(ctx context.Context, err error) bool {
	if ctx.Err() != nil {
		return false
	}
	var statusErr *StatusError
	if errors.As(err, &statusErr) {
		return statusErr.Code == http.StatusTooManyRequests || statusErr.Code >= 500
	}
	var urlErr *url.Error
	return errors.As(err, &urlErr)
}

func (f *Fetcher) do(ctx context.Context, r Request) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, r.URL, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", f.userAgent)
	if r.Accept != "" {
		req.Header.Set("Accept", r.Accept)
	}

	f.logger.Debug("upstream request", "source", r.Source, "url", r.URL)
	resp, err := f.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s request: %w", r.Source, err)
	}
	defer resp.Body.Close()
	f.logger.Debug("upstream response", "source", r.Source, "status", resp.StatusCode)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return nil, &StatusError{URL: r.URL, Code: resp.StatusCode, Body: string(body)}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, f.maxBody+1))
	if err != nil {
		return nil, fmt.Errorf("read %s response: %w", r.Source, err)
	}
	if int64(len(body)) > f.maxBody {
		return nil, fmt.Errorf("%s response exceeds %d bytes: %w", r.Source, f.maxBody, ErrBodyTooLarge)
	}
	return body, nil
}

func (f *Fetcher) breaker(source string) *gobreaker.CircuitBreaker {
	f.mu.Lock()
	defer f.mu.Unlock()

	if cb, ok := f.breakers[source]; ok {
		return cb
	}
	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        source,
		MaxRequests: 1,
		Interval:    time.Minute,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 3
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			f.logger.Warn("circuit breaker state change", "source", name, "from", from.String(), "to", to.String())
			f.metrics.BreakerState.WithLabelValues(name).Set(float64(to))
		},
	})
	f.breakers[source] = cb
	return cb
}
