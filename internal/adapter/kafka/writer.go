package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/couchcryptid/outage-overlay/internal/config"
	"github.com/couchcryptid/outage-overlay/internal/domain"
	"github.com/couchcryptid/outage-overlay/internal/observability"
	kafkago "github.com/segmentio/kafka-go"
)

// Message kinds carried in the "kind" header.
const (
	KindIncident = "incident"
	KindSeries   = "series"
)

// messageWriter is the subset of *kafkago.Writer used here.
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafkago.Message) error
	Close() error
}

// Writer publishes normalized incidents and the daily series.
type Writer struct {
	writer        messageWriter
	incidentTopic string
	seriesTopic   string
	metrics       *observability.Metrics
	logger        *slog.Logger
}

// NewWriter creates a Kafka producer for the configured brokers. The topic is
// set per message so one producer serves both outputs.
func NewWriter(cfg *config.Config, metrics *observability.Metrics, logger *slog.Logger) *Writer {
	w := &kafkago.Writer{
		Addr:                   kafkago.TCP(cfg.KafkaBrokers...),
		Balancer:               &kafkago.Hash{},
		RequiredAcks:           kafkago.RequireAll,
		AllowAutoTopicCreation: true,
	}
	return &Writer{
		writer:        w,
		incidentTopic: cfg.KafkaIncidentTopic,
		seriesTopic:   cfg.KafkaSeriesTopic,
		metrics:       metrics,
		logger:        logger,
	}
}

// PublishIncidents writes one message per incident row, keyed by provider
// and incident ID.
func (w *Writer) PublishIncidents(ctx context.Context, rows []domain.IncidentRow, generatedAt time.Time) error {
	if len(rows) == 0 {
		return nil
	}
	msgs := make([]kafkago.Message, len(rows))
	for i := range rows {
		msg, err := incidentMessage(w.incidentTopic, rows[i], generatedAt)
		if err != nil {
			return err
		}
		msgs[i] = msg
	}
	if err := w.writer.WriteMessages(ctx, msgs...); err != nil {
		return fmt.Errorf("publish incidents: %w", err)
	}
	w.metrics.Published.WithLabelValues(KindIncident).Add(float64(len(msgs)))
	w.logger.Info("incidents published", "topic", w.incidentTopic, "count", len(msgs))
	return nil
}

// PublishSeries writes one message per day, keyed by date.
func (w *Writer) PublishSeries(ctx context.Context, series domain.DailySeries, metric domain.Metric, generatedAt time.Time) error {
	if len(series) == 0 {
		return nil
	}
	msgs := make([]kafkago.Message, len(series))
	for i, p := range series {
		msg, err := seriesMessage(w.seriesTopic, p, metric, generatedAt)
		if err != nil {
			return err
		}
		msgs[i] = msg
	}
	if err := w.writer.WriteMessages(ctx, msgs...); err != nil {
		return fmt.Errorf("publish series: %w", err)
	}
	w.metrics.Published.WithLabelValues(KindSeries).Add(float64(len(msgs)))
	w.logger.Info("series published", "topic", w.seriesTopic, "count", len(msgs))
	return nil
}

// Close flushes pending messages and closes the underlying writer.
func (w *Writer) Close() error {
	return w.writer.Close()
}

// IncidentKey is the message key of an incident row.
func IncidentKey(r domain.IncidentRow) string {
	return string(r.Provider) + "/" + r.IncidentID
}

func incidentMessage(topic string, row domain.IncidentRow, generatedAt time.Time) (kafkago.Message, error) {
	data, err := json.Marshal(row)
	if err != nil {
		return kafkago.Message{}, fmt.Errorf("serialize incident %s: %w", IncidentKey(row), err)
	}
	return kafkago.Message{
		Topic: topic,
		Key:   []byte(IncidentKey(row)),
		Value: data,
		Headers: []kafkago.Header{
			{Key: "kind", Value: []byte(KindIncident)},
			{Key: "provider", Value: []byte(row.Provider)},
			{Key: "generated_at", Value: []byte(generatedAt.UTC().Format(time.RFC3339))},
		},
	}, nil
}

// seriesValue is the JSON body of a series message.
type seriesValue struct {
	Date   string        `json:"date"`
	Total  int64         `json:"new_devices"`
	Metric domain.Metric `json:"metric"`
}

func seriesMessage(topic string, p domain.DailyPoint, metric domain.Metric, generatedAt time.Time) (kafkago.Message, error) {
	date := p.Date.Format("2006-01-02")
	data, err := json.Marshal(seriesValue{Date: date, Total: p.Total, Metric: metric})
	if err != nil {
		return kafkago.Message{}, fmt.Errorf("serialize series point %s: %w", date, err)
	}
	return kafkago.Message{
		Topic: topic,
		Key:   []byte(date),
		Value: data,
		Headers: []kafkago.Header{
			{Key: "kind", Value: []byte(KindSeries)},
			{Key: "metric", Value: []byte(metric)},
			{Key: "generated_at", Value: []byte(generatedAt.UTC().Format(time.RFC3339))},
		},
	}, nil
}
