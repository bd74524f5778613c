package observability

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewLogger_JSON(t *testing.T) {
	var buf bytes.Buffer
	logger := newLogger(&buf, "info", "json")

	logger.Debug("hidden")
	logger.Info("visible", "polygon_id", "abc")

	var rec map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &rec))
	assert.Equal(t, "visible", rec["msg"])
	assert.Equal(t, "abc", rec["polygon_id"])
}

func TestNewLogger_TextDebug(t *testing.T) {
	var buf bytes.Buffer
	logger := newLogger(&buf, "debug", "text")

	logger.Debug("drawing discarded")
	assert.Contains(t, buf.String(), "level=DEBUG")
	assert.Contains(t, buf.String(), "drawing discarded")
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, slog.LevelDebug, parseLevel("DEBUG"))
	assert.Equal(t, slog.LevelWarn, parseLevel("warn"))
	assert.Equal(t, slog.LevelError, parseLevel("error"))
	assert.Equal(t, slog.LevelInfo, parseLevel("bogus"))
}

func TestNewMetricsForTesting_Usable(t *testing.T) {
	m := NewMetricsForTesting()

	m.WeatherRequests.WithLabelValues("fallback").Inc()
	m.PolygonEvents.WithLabelValues("created").Add(2)
	m.Polygons.Set(3)

	assert.InDelta(t, 1.0, value(t, m.WeatherRequests.WithLabelValues("fallback")), 0)
	assert.InDelta(t, 2.0, value(t, m.PolygonEvents.WithLabelValues("created")), 0)
	assert.InDelta(t, 3.0, value(t, m.Polygons), 0)
}

func value(t *testing.T, c prometheus.Metric) float64 {
	t.Helper()
	var m dto.Metric
	require.NoError(t, c.Write(&m))
	switch {
	case m.Counter != nil:
		return m.Counter.GetValue()
	case m.Gauge != nil:
		return m.Gauge.GetValue()
	}
	t.Fatalf("unsupported metric type")
	return 0
}
