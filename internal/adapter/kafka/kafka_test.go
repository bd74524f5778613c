package kafka

import (
	"encoding/json"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/couchcryptid/polygon-weather-dashboard/internal/config"
	"github.com/couchcryptid/polygon-weather-dashboard/internal/dashboard"
	"github.com/couchcryptid/polygon-weather-dashboard/internal/domain"
	kafkago "github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Writer is the dashboard's publisher when the outbox is disabled.
var _ dashboard.EventPublisher = (*Writer)(nil)

func TestSerializeToMessage(t *testing.T) {
	now := time.Date(2024, 7, 15, 12, 0, 0, 0, time.UTC)
	value := 21.5
	event := domain.PolygonEvent{
		Type: domain.PolygonCreated,
		Polygon: domain.Polygon{
			ID:           "poly-1",
			Name:         "Polygon 1",
			Coordinates:  []domain.Coordinate{{Lat: 51.5, Lng: -0.09}, {Lat: 51.51, Lng: -0.08}, {Lat: 51.5, Lng: -0.07}},
			DataSourceID: "temperature",
			CurrentValue: &value,
			Color:        "#f59e0b",
		},
		OccurredAt: now,
	}

	msg, err := serializeToMessage(event)
	require.NoError(t, err)

	assert.Equal(t, []byte("poly-1"), msg.Key)
	assert.Contains(t, string(msg.Value), `"type":"created"`)
	assert.Len(t, msg.Headers, 2)
	assert.Equal(t, "event_type", msg.Headers[0].Key)
	assert.Equal(t, []byte("created"), msg.Headers[0].Value)
	assert.Equal(t, "occurred_at", msg.Headers[1].Key)
	assert.Equal(t, []byte(now.Format(time.RFC3339)), msg.Headers[1].Value)

	var decoded domain.PolygonEvent
	require.NoError(t, json.Unmarshal(msg.Value, &decoded))
	assert.Equal(t, "temperature", decoded.Polygon.DataSourceID)
	require.NotNil(t, decoded.Polygon.CurrentValue)
	assert.InDelta(t, 21.5, *decoded.Polygon.CurrentValue, 1e-9)
}

func TestSerializeToMessage_DeletedWithoutValue(t *testing.T) {
	event := domain.PolygonEvent{
		Type:    domain.PolygonDeleted,
		Polygon: domain.Polygon{ID: "poly-2"},
	}

	msg, err := serializeToMessage(event)
	require.NoError(t, err)

	assert.Equal(t, []byte("deleted"), msg.Headers[0].Value)
	assert.NotContains(t, string(msg.Value), "currentValue")
}

func TestNewWriter(t *testing.T) {
	cfg := &config.Config{
		KafkaBrokers: []string{"broker1:9092", "broker2:9092"},
		KafkaTopic:   "polygon-events",
	}
	w := NewWriter(cfg, slog.New(slog.NewTextHandler(io.Discard, nil)))
	t.Cleanup(func() { _ = w.Close() })

	assert.Equal(t, "polygon-events", w.writer.Topic)
	assert.Equal(t, kafkago.RequireAll, w.writer.RequiredAcks)
	assert.IsType(t, &kafkago.Hash{}, w.writer.Balancer)
}

func TestLoadBatch_EmptyIsNoop(t *testing.T) {
	cfg := &config.Config{KafkaBrokers: []string{"127.0.0.1:1"}, KafkaTopic: "polygon-events"}
	w := NewWriter(cfg, slog.New(slog.NewTextHandler(io.Discard, nil)))
	t.Cleanup(func() { _ = w.Close() })

	require.NoError(t, w.LoadBatch(t.Context(), nil))
}
