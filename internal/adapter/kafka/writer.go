package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/couchcryptid/polygon-weather-dashboard/internal/config"
	"github.com/couchcryptid/polygon-weather-dashboard/internal/domain"
	kafkago "github.com/segmentio/kafka-go"
)

// Writer publishes polygon lifecycle events to a Kafka topic.
// It implements dashboard.EventPublisher and pipeline.BatchLoader.
type Writer struct {
	writer *kafkago.Writer
	logger *slog.Logger
}

// NewWriter creates a Kafka producer for the configured event topic.
func NewWriter(cfg *config.Config, logger *slog.Logger) *Writer {
	w := &kafkago.Writer{
		Addr:         kafkago.TCP(cfg.KafkaBrokers...),
		Topic:        cfg.KafkaTopic,
		Balancer:     &kafkago.Hash{},
		RequiredAcks: kafkago.RequireAll,
		BatchTimeout: 50 * time.Millisecond,
	}
	return &Writer{writer: w, logger: logger}
}

// Publish writes a single event and blocks until the broker acknowledges it.
// It is the dashboard's publisher when the outbox is disabled. Events for the
// same polygon share a key and therefore a partition, so consumers see them in
// order.
func (w *Writer) Publish(ctx context.Context, event domain.PolygonEvent) error {
	msg, err := serializeToMessage(event)
	if err != nil {
		return err
	}
	if err := w.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("write polygon event: %w", err)
	}
	w.logger.Debug("polygon event published", "type", event.Type, "polygon_id", event.Polygon.ID)
	return nil
}

// LoadBatch serializes and publishes multiple events in a single
// WriteMessages call.
func (w *Writer) LoadBatch(ctx context.Context, events []domain.PolygonEvent) error {
	if len(events) == 0 {
		return nil
	}
	msgs := make([]kafkago.Message, len(events))
	for i := range events {
		msg, err := serializeToMessage(events[i])
		if err != nil {
			return err
		}
		msgs[i] = msg
	}
	if err := w.writer.WriteMessages(ctx, msgs...); err != nil {
		return fmt.Errorf("write %d polygon events: %w", len(msgs), err)
	}
	return nil
}

func (w *Writer) Close() error {
	return w.writer.Close()
}

// serializeToMessage marshals a PolygonEvent into a Kafka message.
func serializeToMessage(event domain.PolygonEvent) (kafkago.Message, error) {
	data, err := json.Marshal(event)
	if err != nil {
		return kafkago.Message{}, fmt.Errorf("serialize polygon event: %w", err)
	}
	return kafkago.Message{
		Key:   []byte(event.Polygon.ID),
		Value: data,
		Headers: []kafkago.Header{
			{Key: "event_type", Value: []byte(event.Type)},
			{Key: "occurred_at", Value: []byte(event.OccurredAt.Format(time.RFC3339))},
		},
	}, nil
}
