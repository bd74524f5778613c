package domain

import (
	"context"
	"math"
	"time"
)

// Series is an hourly sample sequence. Missing samples are NaN.
type Series []float64

// HourlyData is an hourly weather response aligned to Time.
type HourlyData struct {
	Time   []time.Time
	Values map[string]Series

	// Synthetic is true when the data was generated locally instead of
	// fetched from the weather API.
	Synthetic bool
}

// Field returns the series for an API field name, or nil if absent.
func (d HourlyData) Field(name string) Series {
	if d.Values == nil {
		return nil
	}
	return d.Values[name]
}

// WeatherFetcher retrieves hourly weather series for a point and date span.
type WeatherFetcher interface {
	FetchHourly(ctx context.Context, lat, lon float64, start, end time.Time) (HourlyData, error)
}

// Average returns the mean of the non-NaN samples in s, or 0 when none remain.
func Average(s Series) float64 {
	var sum float64
	var n int
	for _, v := range s {
		if math.IsNaN(v) {
			continue
		}
		sum += v
		n++
	}
	if n == 0 {
		return 0
	}
	return sum / float64(n)
}

// Measurement is an averaged value and the color its data source assigns.
type Measurement struct {
	Value float64 `json:"value"`
	Color string  `json:"color"`
}

// Measure averages a data source's field in data and evaluates its color.
func Measure(data HourlyData, ds DataSource) Measurement {
	v := Average(data.Field(ds.Field))
	return Measurement{Value: v, Color: ds.Color(v)}
}
