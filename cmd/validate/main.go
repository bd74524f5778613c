// Command validate checks the fixtures written by genmock: the shape of the
// Open-Meteo archive response, the structural rules every polygon event must
// satisfy, and that each event's value and color match a fresh measurement of
// the archive with the default data sources.
//
// Usage:
//
//	go run ./cmd/validate \
//	  -weather-json data/mock/openmeteo_archive.json \
//	  -events-json data/mock/polygon_events.json
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"math"
	"os"
	"time"

	"github.com/couchcryptid/polygon-weather-dashboard/internal/adapter/openmeteo"
	"github.com/couchcryptid/polygon-weather-dashboard/internal/domain"
)

// phase tracks pass/fail for a validation phase.
type phase struct {
	name   string
	errors []string
}

func (p *phase) errorf(format string, args ...any) {
	p.errors = append(p.errors, fmt.Sprintf(format, args...))
}

func (p *phase) passed() bool { return len(p.errors) == 0 }

// fieldBounds are the physically plausible limits for each hourly field.
var fieldBounds = map[string][2]float64{
	domain.FieldTemperature:   {-90, 60},
	domain.FieldHumidity:      {0, 100},
	domain.FieldWindSpeed:     {0, 400},
	domain.FieldPrecipitation: {0, 500},
}

func main() {
	weatherJSON := flag.String("weather-json", "", "path to the Open-Meteo archive fixture")
	eventsJSON := flag.String("events-json", "", "path to the polygon events fixture")
	flag.Parse()

	if *weatherJSON == "" || *eventsJSON == "" {
		flag.Usage()
		os.Exit(1)
	}

	if code := run(*weatherJSON, *eventsJSON); code != 0 {
		os.Exit(code)
	}
}

func run(weatherPath, eventsPath string) int {
	fmt.Println("=== Polygon Dashboard Fixture Validation ===")
	fmt.Println()

	archive, err := loadJSON[openmeteo.Archive](weatherPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: load weather JSON: %v\n", err)
		return 1
	}
	data, err := archive.HourlyData()
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: decode hourly block: %v\n", err)
		return 1
	}

	events, err := loadJSON[[]domain.PolygonEvent](eventsPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: load events JSON: %v\n", err)
		return 1
	}

	sources := domain.DefaultDataSources()
	phases := []*phase{
		validateArchive(data),
		validateEvents(events, sources),
		validateMeasurements(events, data, sources),
	}

	fmt.Println()
	allPassed := true
	for _, p := range phases {
		status := "\033[32mPASS\033[0m"
		if !p.passed() {
			status = fmt.Sprintf("\033[31mFAIL (%d errors)\033[0m", len(p.errors))
			allPassed = false
		}
		fmt.Printf("  %-42s %s\n", p.name, status)
	}

	fmt.Println()
	fmt.Printf("Records: %d hours, %d events\n", len(data.Time), len(events))
	printAverages(data, sources)

	for _, p := range phases {
		if p.passed() {
			continue
		}
		fmt.Printf("\n--- %s ---\n", p.name)
		for i, e := range p.errors {
			fmt.Printf("  [%d] %s\n", i+1, e)
		}
	}

	if allPassed {
		fmt.Println("\nAll validations passed.")
		return 0
	}
	fmt.Println("\nValidation FAILED.")
	return 1
}

func loadJSON[T any](path string) (T, error) {
	var v T
	raw, err := os.ReadFile(path)
	if err != nil {
		return v, err
	}
	if err := json.Unmarshal(raw, &v); err != nil {
		return v, err
	}
	return v, nil
}

// ── Phase 1: Archive shape ──

func validateArchive(data domain.HourlyData) *phase {
	p := &phase{name: "Phase 1: Archive Shape (hourly block)"}

	if len(data.Time) == 0 {
		p.errorf("time axis is empty")
		return p
	}
	for i := 1; i < len(data.Time); i++ {
		if step := data.Time[i].Sub(data.Time[i-1]); step != time.Hour {
			p.errorf("time[%d]: step %s from previous sample (want 1h)", i, step)
		}
	}

	for _, field := range domain.HourlyFields {
		series, ok := data.Values[field]
		if !ok {
			p.errorf("%s: missing from hourly block", field)
			continue
		}
		if len(series) != len(data.Time) {
			p.errorf("%s: %d samples for %d timestamps", field, len(series), len(data.Time))
		}
		bounds := fieldBounds[field]
		for i, v := range series {
			if math.IsNaN(v) {
				continue
			}
			if v < bounds[0] || v > bounds[1] {
				p.errorf("%s[%d]: %g outside [%g, %g]", field, i, v, bounds[0], bounds[1])
			}
		}
	}
	return p
}

// ── Phase 2: Event structure ──

func validateEvents(events []domain.PolygonEvent, sources []domain.DataSource) *phase {
	p := &phase{name: "Phase 2: Event Structure (polygons)"}

	known := make(map[string]bool, len(sources))
	for _, ds := range sources {
		known[ds.ID] = true
	}
	seen := map[string]bool{}

	for i, e := range events {
		pf := func(format string, args ...any) {
			p.errorf("event %d (%s): "+format, append([]any{i, e.Polygon.ID}, args...)...)
		}

		switch e.Type {
		case domain.PolygonCreated, domain.PolygonUpdated, domain.PolygonDeleted:
		default:
			pf("unknown event type %q", e.Type)
		}
		if e.OccurredAt.IsZero() {
			pf("occurred_at is zero")
		}

		poly := e.Polygon
		if poly.ID == "" {
			pf("polygon id is empty")
		} else if e.Type == domain.PolygonCreated {
			if seen[poly.ID] {
				pf("polygon created twice")
			}
			seen[poly.ID] = true
		}
		if poly.Name == "" {
			pf("polygon name is empty")
		}
		if n := len(poly.Coordinates); n < domain.MinPolygonPoints || n > domain.MaxPolygonPoints {
			pf("%d vertices (want %d-%d)", n, domain.MinPolygonPoints, domain.MaxPolygonPoints)
		}
		for j, c := range poly.Coordinates {
			if c.Lat < -90 || c.Lat > 90 || c.Lng < -180 || c.Lng > 180 {
				pf("vertex %d (%g, %g) outside WGS-84 bounds", j, c.Lat, c.Lng)
			}
		}
		if !known[poly.DataSourceID] {
			pf("unknown data source %q", poly.DataSourceID)
		}
		if poly.CurrentValue != nil && poly.Color == "" {
			pf("value set without a color")
		}
	}
	return p
}

// ── Phase 3: Measurement consistency ──

func validateMeasurements(events []domain.PolygonEvent, data domain.HourlyData, sources []domain.DataSource) *phase {
	p := &phase{name: "Phase 3: Measurements (value and color)"}

	byID := make(map[string]domain.DataSource, len(sources))
	for _, ds := range sources {
		byID[ds.ID] = ds
	}

	for i, e := range events {
		ds, ok := byID[e.Polygon.DataSourceID]
		if !ok || e.Polygon.CurrentValue == nil {
			continue
		}
		want := domain.Measure(data, ds)
		if got := *e.Polygon.CurrentValue; math.Abs(got-want.Value) > 1e-9 {
			p.errorf("event %d (%s): value %g, measured %g", i, e.Polygon.ID, got, want.Value)
		}
		if e.Polygon.Color != want.Color {
			p.errorf("event %d (%s): color %s, rules give %s", i, e.Polygon.ID, e.Polygon.Color, want.Color)
		}
	}
	return p
}

func printAverages(data domain.HourlyData, sources []domain.DataSource) {
	fmt.Println("\nAverages over the fixture:")
	for _, ds := range sources {
		m := domain.Measure(data, ds)
		fmt.Printf("  %-22s %7.2f %-5s %s\n", ds.Name, m.Value, ds.Unit, m.Color)
	}
}
