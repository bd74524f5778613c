//go:build openmeteo

package openmeteo

import (
	"context"
	"testing"
	"time"

	"github.com/couchcryptid/polygon-weather-dashboard/internal/domain"
	"github.com/couchcryptid/polygon-weather-dashboard/internal/observability"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// These tests hit the real Open-Meteo archive API.
// Run with: go test -tags=openmeteo ./internal/adapter/openmeteo/ -v -count=1

func TestSmoke_FetchHourly(t *testing.T) {
	c := NewClient(DefaultBaseURL, 10*time.Second, observability.NewMetricsForTesting(), discardLogger())

	// The archive lags real time by several days.
	end := time.Now().UTC().AddDate(0, 0, -10)
	start := end.AddDate(0, 0, -1)

	data, err := c.FetchHourly(context.Background(), 51.505, -0.09, start, end)
	require.NoError(t, err)

	assert.Len(t, data.Time, 48, "two whole days of hourly samples")
	for _, field := range domain.HourlyFields {
		assert.Len(t, data.Field(field), len(data.Time), field)
	}
	assert.InDelta(t, 15, domain.Average(data.Field(domain.FieldTemperature)), 25, "London temperature should be plausible")
}
