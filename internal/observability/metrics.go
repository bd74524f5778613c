package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "polygon_dashboard"

// Metrics holds the Prometheus counters, histograms, and gauges for the dashboard.
type Metrics struct {
	ServiceRunning prometheus.Gauge
	Polygons       prometheus.Gauge
	PolygonEvents  *prometheus.CounterVec // labels: type={created,updated,deleted}
	PublishErrors  prometheus.Counter
	MapClients     prometheus.Gauge

	// Event outbox metrics.
	EventsQueued    prometheus.Gauge
	EventsDropped   prometheus.Counter
	EventsDelivered prometheus.Counter
	EventBatchSize  prometheus.Histogram

	// Weather fetch metrics.
	WeatherRequests    *prometheus.CounterVec // labels: outcome={success,error,fallback}
	WeatherCache       *prometheus.CounterVec // labels: result={hit,miss}
	WeatherAPIDuration prometheus.Histogram
	WeatherBreakerOpen prometheus.Gauge
}

// NewMetrics creates and registers all dashboard metrics with the default Prometheus registry.
func NewMetrics() *Metrics {
	m := &Metrics{
		ServiceRunning: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "service_running",
			Help:      "1 when the dashboard is serving, 0 when shut down.",
		}),
		Polygons: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "polygons",
			Help:      "Number of polygons currently on the map.",
		}),
		PolygonEvents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "polygon_events_total",
			Help:      "Polygon lifecycle events by type.",
		}, []string{"type"}),
		PublishErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "publish_errors_total",
			Help:      "Polygon events that could not be published.",
		}),
		MapClients: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "map_clients",
			Help:      "Connected map view websocket clients.",
		}),
		EventsQueued: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "events_queued",
			Help:      "Polygon events waiting in the outbox.",
		}),
		EventsDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_dropped_total",
			Help:      "Polygon events rejected because the outbox was full.",
		}),
		EventsDelivered: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_delivered_total",
			Help:      "Polygon events written to the broker.",
		}),
		EventBatchSize: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "event_batch_size",
			Help:      "Number of polygon events per broker write.",
			Buckets:   []float64{1, 2, 5, 10, 25, 50, 100},
		}),
		WeatherRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "weather_requests_total",
			Help:      "Weather archive requests by outcome.",
		}, []string{"outcome"}),
		WeatherCache: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "weather_cache_total",
			Help:      "Weather cache lookups by result.",
		}, []string{"result"}),
		WeatherAPIDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "weather_api_duration_seconds",
			Help:      "Open-Meteo archive request duration in seconds.",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		}),
		WeatherBreakerOpen: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "weather_breaker_open",
			Help:      "1 when the weather circuit breaker is open, 0 otherwise.",
		}),
	}

	prometheus.MustRegister(
		m.ServiceRunning,
		m.Polygons,
		m.PolygonEvents,
		m.PublishErrors,
		m.MapClients,
		m.EventsQueued,
		m.EventsDropped,
		m.EventsDelivered,
		m.EventBatchSize,
		m.WeatherRequests,
		m.WeatherCache,
		m.WeatherAPIDuration,
		m.WeatherBreakerOpen,
	)

	return m
}

// NewMetricsForTesting creates Metrics with a fresh registry to avoid
// "already registered" panics when called from multiple tests.
func NewMetricsForTesting() *Metrics {
	return &Metrics{
		ServiceRunning:     prometheus.NewGauge(prometheus.GaugeOpts{Namespace: namespace, Name: "service_running"}),
		Polygons:           prometheus.NewGauge(prometheus.GaugeOpts{Namespace: namespace, Name: "polygons"}),
		PolygonEvents:      prometheus.NewCounterVec(prometheus.CounterOpts{Namespace: namespace, Name: "polygon_events_total"}, []string{"type"}),
		PublishErrors:      prometheus.NewCounter(prometheus.CounterOpts{Namespace: namespace, Name: "publish_errors_total"}),
		MapClients:         prometheus.NewGauge(prometheus.GaugeOpts{Namespace: namespace, Name: "map_clients"}),
		EventsQueued:       prometheus.NewGauge(prometheus.GaugeOpts{Namespace: namespace, Name: "events_queued"}),
		EventsDropped:      prometheus.NewCounter(prometheus.CounterOpts{Namespace: namespace, Name: "events_dropped_total"}),
		EventsDelivered:    prometheus.NewCounter(prometheus.CounterOpts{Namespace: namespace, Name: "events_delivered_total"}),
		EventBatchSize:     prometheus.NewHistogram(prometheus.HistogramOpts{Namespace: namespace, Name: "event_batch_size"}),
		WeatherRequests:    prometheus.NewCounterVec(prometheus.CounterOpts{Namespace: namespace, Name: "weather_requests_total"}, []string{"outcome"}),
		WeatherCache:       prometheus.NewCounterVec(prometheus.CounterOpts{Namespace: namespace, Name: "weather_cache_total"}, []string{"result"}),
		WeatherAPIDuration: prometheus.NewHistogram(prometheus.HistogramOpts{Namespace: namespace, Name: "weather_api_duration_seconds"}),
		WeatherBreakerOpen: prometheus.NewGauge(prometheus.GaugeOpts{Namespace: namespace, Name: "weather_breaker_open"}),
	}
}
