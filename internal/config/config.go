package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/couchcryptid/outage-overlay/internal/domain"
	sharedcfg "github.com/couchcryptid/storm-data-shared/config"
)

// DateLayout is the calendar date format accepted for the window bounds.
const DateLayout = "2006-01-02"

// defaultWindowDays is the look-back used when no start date is given.
const defaultWindowDays = 30

// Default upstream endpoints.
const (
	DefaultAWSFeedURL             = "https://status.aws.amazon.com/rss/all.rss"
	DefaultCloudflareIncidentsURL = "https://www.cloudflarestatus.com/api/v2/incidents.json"
	DefaultGCPIncidentsURL        = "https://status.cloud.google.com/incidents.json"
	DefaultDShieldBaseURL         = "https://isc.sans.edu"
)

// Config holds all run settings, populated from environment variables and
// optionally overridden by command-line flags.
type Config struct {
	Start     time.Time
	End       time.Time
	Ports     []int
	Metric    domain.Metric
	UserAgent string

	OutCSV      string
	OutSeries   string
	OutPlot     string
	FixturesDir string

	HTTPTimeout      time.Duration
	FetchConcurrency int

	HTTPAddr        string
	LogLevel        string
	LogFormat       string
	ShutdownTimeout time.Duration

	// Publishing is disabled when KafkaBrokers is empty.
	KafkaBrokers       []string
	KafkaIncidentTopic string
	KafkaSeriesTopic   string

	AWSFeedURL             string
	CloudflareIncidentsURL string
	GCPIncidentsURL        string
	DShieldBaseURL         string

	// startDefaulted is set when Start was derived from End.
	startDefaulted bool
}

// Load reads configuration from environment variables, applying defaults where unset.
func Load() (*Config, error) {
	shutdownTimeout, err := sharedcfg.ParseShutdownTimeout()
	if err != nil {
		return nil, err
	}

	httpTimeout, err := time.ParseDuration(sharedcfg.EnvOrDefault("HTTP_TIMEOUT", "45s"))
	if err != nil || httpTimeout <= 0 {
		return nil, errors.New("invalid HTTP_TIMEOUT")
	}

	concurrency, err := strconv.Atoi(sharedcfg.EnvOrDefault("FETCH_CONCURRENCY", "4"))
	if err != nil || concurrency <= 0 {
		return nil, errors.New("invalid FETCH_CONCURRENCY")
	}

	ports, err := ParsePorts(sharedcfg.EnvOrDefault("OVERLAY_PORTS", "23,2323,7547,5555"))
	if err != nil {
		return nil, fmt.Errorf("invalid OVERLAY_PORTS: %w", err)
	}

	end := domain.Today()
	if v := os.Getenv("OVERLAY_END"); v != "" {
		if end, err = ParseDate(v); err != nil {
			return nil, fmt.Errorf("invalid OVERLAY_END: %w", err)
		}
	}
	start := end.AddDate(0, 0, -defaultWindowDays)
	startDefaulted := true
	if v := os.Getenv("OVERLAY_START"); v != "" {
		if start, err = ParseDate(v); err != nil {
			return nil, fmt.Errorf("invalid OVERLAY_START: %w", err)
		}
		startDefaulted = false
	}

	var brokers []string
	if v := os.Getenv("KAFKA_BROKERS"); v != "" {
		brokers = sharedcfg.ParseBrokers(v)
	}

	cfg := &Config{
		Start:     start,
		End:       end,
		Ports:     ports,
		Metric:    domain.Metric(sharedcfg.EnvOrDefault("OVERLAY_METRIC", string(domain.MetricSources))),
		UserAgent: sharedcfg.EnvOrDefault("OVERLAY_USER_AGENT", "outage-overlay (contact: you@example.com)"),

		OutCSV:      sharedcfg.EnvOrDefault("OVERLAY_OUT_CSV", "outages.csv"),
		OutSeries:   sharedcfg.EnvOrDefault("OVERLAY_OUT_SERIES", "botnet_daily.csv"),
		OutPlot:     sharedcfg.EnvOrDefault("OVERLAY_OUT_PLOT", "overlay.png"),
		FixturesDir: os.Getenv("OVERLAY_FIXTURES_DIR"),

		HTTPTimeout:      httpTimeout,
		FetchConcurrency: concurrency,

		HTTPAddr:        os.Getenv("HTTP_ADDR"),
		LogLevel:        sharedcfg.EnvOrDefault("LOG_LEVEL", "info"),
		LogFormat:       sharedcfg.EnvOrDefault("LOG_FORMAT", "text"),
		ShutdownTimeout: shutdownTimeout,

		KafkaBrokers:       brokers,
		KafkaIncidentTopic: sharedcfg.EnvOrDefault("KAFKA_INCIDENT_TOPIC", "outage-incidents"),
		KafkaSeriesTopic:   sharedcfg.EnvOrDefault("KAFKA_SERIES_TOPIC", "botnet-daily-series"),

		AWSFeedURL:             sharedcfg.EnvOrDefault("AWS_FEED_URL", DefaultAWSFeedURL),
		CloudflareIncidentsURL: sharedcfg.EnvOrDefault("CLOUDFLARE_INCIDENTS_URL", DefaultCloudflareIncidentsURL),
		GCPIncidentsURL:        sharedcfg.EnvOrDefault("GCP_INCIDENTS_URL", DefaultGCPIncidentsURL),
		DShieldBaseURL:         strings.TrimRight(sharedcfg.EnvOrDefault("DSHIELD_BASE_URL", DefaultDShieldBaseURL), "/"),

		startDefaulted: startDefaulted,
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the settings that flags can override. It is called again
// after flags are applied.
func (c *Config) Validate() error {
	if _, err := domain.ParseMetric(string(c.Metric)); err != nil {
		return err
	}
	if _, err := domain.NewWindow(c.Start, c.End); err != nil {
		return err
	}
	if len(c.Ports) == 0 {
		return errors.New("at least one port is required")
	}
	for _, p := range c.Ports {
		if p < 1 || p > 65535 {
			return fmt.Errorf("port %d out of range", p)
		}
	}
	if c.FetchConcurrency <= 0 {
		return errors.New("FETCH_CONCURRENCY must be positive")
	}
	if c.HTTPTimeout <= 0 {
		return errors.New("HTTP_TIMEOUT must be positive")
	}
	if c.OutCSV == "" {
		return errors.New("incident CSV output path is required")
	}
	if len(c.KafkaBrokers) > 0 {
		if c.KafkaIncidentTopic == "" {
			return errors.New("KAFKA_INCIDENT_TOPIC is required when KAFKA_BROKERS is set")
		}
		if c.KafkaSeriesTopic == "" {
			return errors.New("KAFKA_SERIES_TOPIC is required when KAFKA_BROKERS is set")
		}
	}
	return nil
}

// SetEnd moves the window end. A start that was never given explicitly keeps
// its default distance from the end.
func (c *Config) SetEnd(end time.Time) {
	if c.startDefaulted {
		c.Start = end.AddDate(0, 0, -defaultWindowDays)
	}
	c.End = end
}

// SetStart sets an explicit window start.
func (c *Config) SetStart(start time.Time) {
	c.Start = start
	c.startDefaulted = false
}

// Window returns the query window. Validate must have succeeded.
func (c *Config) Window() domain.Window {
	return domain.Window{Start: c.Start.UTC(), End: c.End.UTC()}
}

// PublishEnabled reports whether normalized output is published to Kafka.
func (c *Config) PublishEnabled() bool {
	return len(c.KafkaBrokers) > 0
}

// ParseDate parses a YYYY-MM-DD date as midnight UTC.
func ParseDate(s string) (time.Time, error) {
	t, err := time.Parse(DateLayout, strings.TrimSpace(s))
	if err != nil {
		return time.Time{}, fmt.Errorf("expected YYYY-MM-DD, got %q", s)
	}
	return t.UTC(), nil
}

// ParsePorts parses a comma- or space-separated port list. Duplicates are
// dropped, keeping the first occurrence.
func ParsePorts(s string) ([]int, error) {
	fields := strings.FieldsFunc(s, func(r rune) bool { return r == ',' || r == ' ' || r == '\t' })
	return DedupePorts(fields)
}

// DedupePorts converts port strings to numbers, dropping duplicates.
func DedupePorts(values []string) ([]int, error) {
	seen := make(map[int]bool, len(values))
	ports := make([]int, 0, len(values))
	for _, v := range values {
		p, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return nil, fmt.Errorf("invalid port %q", v)
		}
		if seen[p] {
			continue
		}
		seen[p] = true
		ports = append(ports, p)
	}
	return ports, nil
}
