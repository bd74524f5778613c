package openmeteo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/couchcryptid/polygon-weather-dashboard/internal/domain"
	"github.com/couchcryptid/polygon-weather-dashboard/internal/observability"
)

// DefaultBaseURL is the Open-Meteo historical archive endpoint.
const DefaultBaseURL = "https://archive-api.open-meteo.com/v1/archive"

const (
	dateLayout = "2006-01-02"
	timeLayout = "2006-01-02T15:04"
)

var errMissingHourly = errors.New("response has no hourly block")

// Client implements domain.WeatherFetcher using the Open-Meteo archive API.
type Client struct {
	httpClient *http.Client
	baseURL    string
	metrics    *observability.Metrics
	logger     *slog.Logger
}

// NewClient creates an Open-Meteo archive client.
func NewClient(baseURL string, timeout time.Duration, metrics *observability.Metrics, logger *slog.Logger) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Client{
		httpClient: &http.Client{
			Timeout: timeout,
		},
		baseURL: baseURL,
		metrics: metrics,
		logger:  logger,
	}
}

// FetchHourly requests every dashboard field for the days spanned by start and end.
// Dates are taken in UTC. Null samples in the response become NaN.
func (c *Client) FetchHourly(ctx context.Context, lat, lon float64, start, end time.Time) (domain.HourlyData, error) {
	params := url.Values{
		"latitude":   {strconv.FormatFloat(lat, 'f', -1, 64)},
		"longitude":  {strconv.FormatFloat(lon, 'f', -1, 64)},
		"start_date": {start.UTC().Format(dateLayout)},
		"end_date":   {end.UTC().Format(dateLayout)},
		"hourly":     {strings.Join(domain.HourlyFields, ",")},
	}

	begin := time.Now()
	data, err := c.doRequest(ctx, c.baseURL+"?"+params.Encode())
	c.metrics.WeatherAPIDuration.Observe(time.Since(begin).Seconds())
	if err != nil {
		c.metrics.WeatherRequests.WithLabelValues("error").Inc()
		return domain.HourlyData{}, err
	}
	c.metrics.WeatherRequests.WithLabelValues("success").Inc()
	c.logger.Debug("weather fetched", "lat", lat, "lon", lon, "samples", len(data.Time))
	return data, nil
}

func (c *Client) doRequest(ctx context.Context, fullURL string) (domain.HourlyData, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fullURL, nil)
	if err != nil {
		return domain.HourlyData{}, fmt.Errorf("create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return domain.HourlyData{}, fmt.Errorf("archive request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return domain.HourlyData{}, fmt.Errorf("open-meteo API error: status %d: %s", resp.StatusCode, body)
	}

	var archive Archive
	if err := json.NewDecoder(resp.Body).Decode(&archive); err != nil {
		return domain.HourlyData{}, fmt.Errorf("decode response: %w", err)
	}
	return archive.HourlyData()
}

// Archive is the Open-Meteo archive response body. Hourly holds the "time"
// axis plus one array per requested field.
type Archive struct {
	Latitude    float64                    `json:"latitude"`
	Longitude   float64                    `json:"longitude"`
	Timezone    string                     `json:"timezone,omitempty"`
	HourlyUnits map[string]string          `json:"hourly_units,omitempty"`
	Hourly      map[string]json.RawMessage `json:"hourly"`
}

var hourlyUnits = map[string]string{
	"time":                    "iso8601",
	domain.FieldTemperature:   "°C",
	domain.FieldHumidity:      "%",
	domain.FieldWindSpeed:     "km/h",
	domain.FieldPrecipitation: "mm",
}

// NewArchive encodes data in the archive wire format. NaN samples are written
// as null.
func NewArchive(lat, lon float64, data domain.HourlyData) (Archive, error) {
	a := Archive{
		Latitude:    lat,
		Longitude:   lon,
		Timezone:    "GMT",
		HourlyUnits: hourlyUnits,
		Hourly:      make(map[string]json.RawMessage, len(data.Values)+1),
	}

	stamps := make([]string, len(data.Time))
	for i, t := range data.Time {
		stamps[i] = t.UTC().Format(timeLayout)
	}
	raw, err := json.Marshal(stamps)
	if err != nil {
		return Archive{}, fmt.Errorf("encode time axis: %w", err)
	}
	a.Hourly["time"] = raw

	for field, series := range data.Values {
		samples := make([]*float64, len(series))
		for i, v := range series {
			if math.IsNaN(v) {
				continue
			}
			samples[i] = &v
		}
		raw, err := json.Marshal(samples)
		if err != nil {
			return Archive{}, fmt.Errorf("encode %s: %w", field, err)
		}
		a.Hourly[field] = raw
	}
	return a, nil
}

// HourlyData decodes the hourly block. Timestamps are read as UTC and null
// samples become NaN. Fields absent from the block are absent from the result.
func (r Archive) HourlyData() (domain.HourlyData, error) {
	if r.Hourly == nil {
		return domain.HourlyData{}, errMissingHourly
	}

	var data domain.HourlyData
	if raw, ok := r.Hourly["time"]; ok {
		var stamps []string
		if err := json.Unmarshal(raw, &stamps); err != nil {
			return domain.HourlyData{}, fmt.Errorf("decode time axis: %w", err)
		}
		data.Time = make([]time.Time, len(stamps))
		for i, s := range stamps {
			t, err := time.ParseInLocation(timeLayout, s, time.UTC)
			if err != nil {
				return domain.HourlyData{}, fmt.Errorf("parse time %q: %w", s, err)
			}
			data.Time[i] = t
		}
	}

	data.Values = make(map[string]domain.Series, len(domain.HourlyFields))
	for _, field := range domain.HourlyFields {
		raw, ok := r.Hourly[field]
		if !ok {
			continue
		}
		var samples []*float64
		if err := json.Unmarshal(raw, &samples); err != nil {
			return domain.HourlyData{}, fmt.Errorf("decode %s: %w", field, err)
		}
		series := make(domain.Series, len(samples))
		for i, v := range samples {
			if v == nil {
				series[i] = math.NaN()
				continue
			}
			series[i] = *v
		}
		data.Values[field] = series
	}
	return data, nil
}
