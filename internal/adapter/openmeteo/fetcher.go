package openmeteo

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/couchcryptid/polygon-weather-dashboard/internal/domain"
	"github.com/couchcryptid/polygon-weather-dashboard/internal/observability"
	"github.com/sony/gobreaker/v2"
)

// Fetcher guards a weather source with a circuit breaker and substitutes
// synthetic data on any failure. It only returns an error when the caller's
// context is done.
type Fetcher struct {
	source  domain.WeatherFetcher
	breaker *gobreaker.CircuitBreaker[domain.HourlyData]
	synth   *Synthesizer
	metrics *observability.Metrics
	logger  *slog.Logger
}

// NewFetcher wraps source with the default breaker settings.
func NewFetcher(source domain.WeatherFetcher, synth *Synthesizer, metrics *observability.Metrics, logger *slog.Logger) *Fetcher {
	return NewFetcherWithSettings(source, synth, metrics, logger, gobreaker.Settings{
		Name:        "open-meteo",
		MaxRequests: 1,
		Interval:    60 * time.Second,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures > 5
		},
	})
}

// NewFetcherWithSettings is NewFetcher with caller-provided breaker settings.
// OnStateChange and IsSuccessful are always overridden.
func NewFetcherWithSettings(source domain.WeatherFetcher, synth *Synthesizer, metrics *observability.Metrics, logger *slog.Logger, st gobreaker.Settings) *Fetcher {
	st.OnStateChange = func(name string, from, to gobreaker.State) {
		logger.Info("circuit breaker state change", "breaker", name, "from", from.String(), "to", to.String())
		if to == gobreaker.StateOpen {
			metrics.WeatherBreakerOpen.Set(1)
		} else {
			metrics.WeatherBreakerOpen.Set(0)
		}
	}
	// A caller giving up says nothing about the health of the archive.
	st.IsSuccessful = func(err error) bool {
		return err == nil || errors.Is(err, context.Canceled)
	}

	return &Fetcher{
		source:  source,
		breaker: gobreaker.NewCircuitBreaker[domain.HourlyData](st),
		synth:   synth,
		metrics: metrics,
		logger:  logger,
	}
}

// FetchHourly implements domain.WeatherFetcher.
func (f *Fetcher) FetchHourly(ctx context.Context, lat, lon float64, start, end time.Time) (domain.HourlyData, error) {
	data, err := f.breaker.Execute(func() (domain.HourlyData, error) {
		return f.source.FetchHourly(ctx, lat, lon, start, end)
	})
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return domain.HourlyData{}, ctxErr
		}
		f.logger.Warn("weather fetch failed, using synthetic data",
			"lat", lat,
			"lon", lon,
			"error", err,
		)
		f.metrics.WeatherRequests.WithLabelValues("fallback").Inc()
		return f.synth.Generate(start, end), nil
	}

	f.fillMissing(&data, start, end)
	return data, nil
}

// fillMissing substitutes synthetic series for fields absent from a response.
func (f *Fetcher) fillMissing(data *domain.HourlyData, start, end time.Time) {
	n := len(data.Time)
	if n == 0 {
		n = Hours(start, end)
	}
	if data.Values == nil {
		data.Values = make(map[string]domain.Series, len(domain.HourlyFields))
	}
	for _, field := range domain.HourlyFields {
		if _, ok := data.Values[field]; ok {
			continue
		}
		f.logger.Warn("weather field missing, using synthetic series", "field", field)
		data.Values[field] = f.synth.Series(field, n)
	}
}
