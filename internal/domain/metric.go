package domain

import (
	"errors"
	"fmt"
	"strings"
)

// ErrInvalidMetric is returned for a porthistory metric outside the supported set.
var ErrInvalidMetric = errors.New("unsupported dshield metric")

// Metric is a DShield porthistory column.
type Metric string

const (
	MetricRecords Metric = "records"
	MetricSources Metric = "sources"
	MetricTargets Metric = "targets"
	MetricTCP     Metric = "tcp"
	MetricUDP     Metric = "udp"
)

// Metrics lists the supported metrics in sorted order.
var Metrics = []Metric{MetricRecords, MetricSources, MetricTargets, MetricTCP, MetricUDP}

// ParseMetric validates a metric name. Matching is exact.
func ParseMetric(s string) (Metric, error) {
	for _, m := range Metrics {
		if string(m) == s {
			return m, nil
		}
	}
	allowed := make([]string, len(Metrics))
	for i, m := range Metrics {
		allowed[i] = string(m)
	}
	return "", fmt.Errorf("%w: %q (allowed: %s)", ErrInvalidMetric, s, strings.Join(allowed, ", "))
}
