package domain

import (
	"errors"
	"time"
)

var (
	ErrPolygonNotFound    = errors.New("polygon not found")
	ErrDataSourceNotFound = errors.New("data source not found")
	ErrRuleNotFound       = errors.New("color rule not found")
	ErrInvalidOperator    = errors.New("invalid color rule operator")
	ErrHourOutOfRange     = errors.New("hour offset out of range")
	ErrInvalidMode        = errors.New("invalid timeline mode")
	ErrUnknownPreset      = errors.New("unknown timeline preset")
)

// Coordinate is a WGS-84 latitude/longitude pair as delivered by map clicks.
type Coordinate struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// Polygon is a user-drawn region colored by its data source's rules.
type Polygon struct {
	ID           string       `json:"id"`
	Name         string       `json:"name"`
	Coordinates  []Coordinate `json:"coordinates"`
	DataSourceID string       `json:"dataSourceId"`

	// Set after a successful weather fetch; nil when the fetch failed.
	CurrentValue *float64 `json:"currentValue,omitempty"`
	Color        string   `json:"color,omitempty"`
}

// Clone returns a copy that shares no slices or pointers with p.
func (p Polygon) Clone() Polygon {
	out := p
	out.Coordinates = append([]Coordinate(nil), p.Coordinates...)
	if p.CurrentValue != nil {
		v := *p.CurrentValue
		out.CurrentValue = &v
	}
	return out
}

// TimeMode selects between a single instant and a start/end range.
type TimeMode string

const (
	ModeSingle TimeMode = "single"
	ModeRange  TimeMode = "range"
)

// ParseTimeMode validates a mode string.
func ParseTimeMode(s string) (TimeMode, error) {
	switch TimeMode(s) {
	case ModeSingle, ModeRange:
		return TimeMode(s), nil
	default:
		return "", ErrInvalidMode
	}
}

// TimeRange is the active timeline selection. In single mode Start == End.
type TimeRange struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
	Mode  TimeMode  `json:"mode"`
}

// PolygonEventType labels a polygon lifecycle event.
type PolygonEventType string

const (
	PolygonCreated PolygonEventType = "created"
	PolygonUpdated PolygonEventType = "updated"
	PolygonDeleted PolygonEventType = "deleted"
)

// PolygonEvent describes a change to the dashboard's polygon set.
type PolygonEvent struct {
	Type       PolygonEventType `json:"type"`
	Polygon    Polygon          `json:"polygon"`
	OccurredAt time.Time        `json:"occurred_at"`
}

// NewPolygonEvent stamps an event with the package clock.
func NewPolygonEvent(t PolygonEventType, p Polygon) PolygonEvent {
	return PolygonEvent{Type: t, Polygon: p.Clone(), OccurredAt: clock.Now().UTC()}
}
