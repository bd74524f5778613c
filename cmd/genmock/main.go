// Command genmock writes reproducible fixtures for local development and
// manual testing: an Open-Meteo archive response served by a mock weather
// server, and the polygon events the dashboard would publish for a set of
// sample polygons measured against that response.
//
// Usage:
//
//	go run ./cmd/genmock \
//	  -weather-out data/mock/openmeteo_archive.json \
//	  -events-out data/mock/polygon_events.json
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	"github.com/couchcryptid/polygon-weather-dashboard/internal/adapter/openmeteo"
	"github.com/couchcryptid/polygon-weather-dashboard/internal/domain"
	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
)

// generatedAt is the fixed clock used for event timestamps and the timeline.
var generatedAt = time.Date(2024, time.July, 15, 12, 0, 0, 0, time.UTC)

// samplePolygon is a named shape drawn around central London.
type samplePolygon struct {
	name         string
	dataSourceID string
	coords       []domain.Coordinate
}

var samples = []samplePolygon{
	{
		name:         "Hyde Park",
		dataSourceID: "temperature",
		coords: []domain.Coordinate{
			{Lat: 51.5112, Lng: -0.1760}, {Lat: 51.5103, Lng: -0.1530},
			{Lat: 51.5028, Lng: -0.1527}, {Lat: 51.5033, Lng: -0.1790},
		},
	},
	{
		name:         "Regent's Park",
		dataSourceID: "humidity",
		coords: []domain.Coordinate{
			{Lat: 51.5354, Lng: -0.1620}, {Lat: 51.5310, Lng: -0.1445},
			{Lat: 51.5220, Lng: -0.1490}, {Lat: 51.5236, Lng: -0.1625},
			{Lat: 51.5300, Lng: -0.1680},
		},
	},
	{
		name:         "City of London",
		dataSourceID: "wind",
		coords: []domain.Coordinate{
			{Lat: 51.5185, Lng: -0.1080}, {Lat: 51.5200, Lng: -0.0780},
			{Lat: 51.5090, Lng: -0.0760},
		},
	},
	{
		name:         "Greenwich",
		dataSourceID: "precipitation",
		coords: []domain.Coordinate{
			{Lat: 51.4826, Lng: -0.0077}, {Lat: 51.4800, Lng: 0.0050},
			{Lat: 51.4720, Lng: 0.0010}, {Lat: 51.4745, Lng: -0.0120},
		},
	},
}

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	weatherOut := flag.String("weather-out", "", "output path for the Open-Meteo archive fixture")
	eventsOut := flag.String("events-out", "", "output path for the polygon events fixture")
	seed := flag.Uint64("seed", 42, "seed for the synthetic weather series")
	lat := flag.Float64("lat", 51.5074, "fixture latitude")
	lon := flag.Float64("lon", -0.1278, "fixture longitude")
	flag.Parse()

	if *weatherOut == "" || *eventsOut == "" {
		flag.Usage()
		return fmt.Errorf("missing required flags: -weather-out, -events-out")
	}

	// Set a fixed clock for reproducible timestamps.
	domain.SetClock(clockwork.NewFakeClockAt(generatedAt))
	defer domain.SetClock(nil)

	// The archive answers in whole UTC days; cover the full default range
	// selection (now-24h to now+24h).
	tl := domain.NewTimeline()
	if err := tl.SetMode(domain.ModeRange); err != nil {
		return err
	}
	sel := tl.Selection()
	dayStart := sel.Start.Truncate(24 * time.Hour)
	dayEnd := sel.End.Truncate(24 * time.Hour).Add(24 * time.Hour)

	data := openmeteo.NewSeededSynthesizer(*seed).Generate(dayStart, dayEnd)
	data.Synthetic = false
	archive, err := openmeteo.NewArchive(*lat, *lon, data)
	if err != nil {
		return fmt.Errorf("encode archive: %w", err)
	}
	if err := writeJSON(*weatherOut, archive); err != nil {
		return fmt.Errorf("writing weather fixture: %w", err)
	}
	log.Printf("wrote weather fixture: %s (%d hours from %s)", *weatherOut, len(data.Time), dayStart.Format(time.DateOnly))

	events, err := buildEvents(data)
	if err != nil {
		return err
	}
	if err := writeJSON(*eventsOut, events); err != nil {
		return fmt.Errorf("writing events fixture: %w", err)
	}
	log.Printf("wrote events fixture: %s (%d events)", *eventsOut, len(events))

	printStats(data, events)
	return nil
}

// buildEvents measures each sample polygon against data and returns one
// created event per polygon. IDs are derived from the polygon name so reruns
// produce identical output.
func buildEvents(data domain.HourlyData) ([]domain.PolygonEvent, error) {
	sources := domain.DefaultDataSources()
	byID := make(map[string]domain.DataSource, len(sources))
	for _, ds := range sources {
		byID[ds.ID] = ds
	}

	events := make([]domain.PolygonEvent, 0, len(samples))
	for _, s := range samples {
		ds, ok := byID[s.dataSourceID]
		if !ok {
			return nil, fmt.Errorf("sample %q: %w", s.name, domain.ErrDataSourceNotFound)
		}
		m := domain.Measure(data, ds)
		value := m.Value
		p := domain.Polygon{
			ID:           uuid.NewSHA1(uuid.NameSpaceURL, []byte("polygon:"+s.name)).String(),
			Name:         s.name,
			Coordinates:  s.coords,
			DataSourceID: ds.ID,
			CurrentValue: &value,
			Color:        m.Color,
		}
		events = append(events, domain.NewPolygonEvent(domain.PolygonCreated, p))
	}
	return events, nil
}

func writeJSON(path string, v any) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	data = append(data, '\n')
	return os.WriteFile(path, data, 0o600)
}

func printStats(data domain.HourlyData, events []domain.PolygonEvent) {
	fmt.Println("\n=== Stats for updating test assertions ===")
	fmt.Printf("Hours: %d\n", len(data.Time))
	for _, ds := range domain.DefaultDataSources() {
		m := domain.Measure(data, ds)
		fmt.Printf("%-22s avg=%7.2f %-5s color=%s\n", ds.Name, m.Value, ds.Unit, m.Color)
	}

	fmt.Println("\nPolygons:")
	for _, e := range events {
		fmt.Printf("  %s  %-16s %-14s %d points  value=%.2f color=%s\n",
			e.Polygon.ID[:8], e.Polygon.Name, e.Polygon.DataSourceID,
			len(e.Polygon.Coordinates), *e.Polygon.CurrentValue, e.Polygon.Color)
	}
}
