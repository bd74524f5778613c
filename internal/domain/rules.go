package domain

import (
	"math"
	"slices"
)

// DefaultColor is returned when no color rule matches a value.
const DefaultColor = "#3b82f6"

// equalityTolerance is the absolute difference under which "=" holds.
const equalityTolerance = 0.1

// Operator is the comparison a ColorRule applies to a value.
type Operator string

const (
	OpLess         Operator = "<"
	OpLessEqual    Operator = "<="
	OpEqual        Operator = "="
	OpGreater      Operator = ">"
	OpGreaterEqual Operator = ">="
)

// ParseOperator validates an operator string.
func ParseOperator(s string) (Operator, error) {
	switch op := Operator(s); op {
	case OpLess, OpLessEqual, OpEqual, OpGreater, OpGreaterEqual:
		return op, nil
	default:
		return "", ErrInvalidOperator
	}
}

// Holds reports whether value compares true against threshold.
func (op Operator) Holds(value, threshold float64) bool {
	switch op {
	case OpLess:
		return value < threshold
	case OpLessEqual:
		return value <= threshold
	case OpGreater:
		return value > threshold
	case OpGreaterEqual:
		return value >= threshold
	case OpEqual:
		return math.Abs(value-threshold) < equalityTolerance
	default:
		return false
	}
}

// ColorRule assigns Color to values for which Operator holds against Value.
type ColorRule struct {
	ID       string   `json:"id"`
	Color    string   `json:"color"`
	Operator Operator `json:"operator"`
	Value    float64  `json:"value"`
}

// DataSource is a weather variable with its API field and color rules.
type DataSource struct {
	ID         string      `json:"id"`
	Name       string      `json:"name"`
	Field      string      `json:"field"`
	Unit       string      `json:"unit"`
	ColorRules []ColorRule `json:"colorRules"`
}

// Clone returns a copy whose rule slice is independent of ds.
func (ds DataSource) Clone() DataSource {
	out := ds
	out.ColorRules = append([]ColorRule(nil), ds.ColorRules...)
	return out
}

// Color evaluates value against the data source's rules.
func (ds DataSource) Color(value float64) string {
	return EvaluateColor(value, ds.ColorRules)
}

// EvaluateColor returns the color of the first rule, in ascending threshold
// order, whose comparison holds for value. The input slice is not modified.
// Rules with equal thresholds keep their relative order.
func EvaluateColor(value float64, rules []ColorRule) string {
	sorted := slices.Clone(rules)
	slices.SortStableFunc(sorted, func(a, b ColorRule) int {
		switch {
		case a.Value < b.Value:
			return -1
		case a.Value > b.Value:
			return 1
		default:
			return 0
		}
	})

	for _, r := range sorted {
		if r.Operator.Holds(value, r.Value) {
			return r.Color
		}
	}
	return DefaultColor
}

// Field names requested from the weather API, in request order.
const (
	FieldTemperature   = "temperature_2m"
	FieldHumidity      = "relative_humidity_2m"
	FieldWindSpeed     = "wind_speed_10m"
	FieldPrecipitation = "precipitation"
)

// HourlyFields lists every field the dashboard requests.
var HourlyFields = []string{FieldTemperature, FieldHumidity, FieldWindSpeed, FieldPrecipitation}

// DefaultDataSources returns a fresh copy of the built-in registry.
func DefaultDataSources() []DataSource {
	return []DataSource{
		{
			ID:    "temperature",
			Name:  "Temperature (°C)",
			Field: FieldTemperature,
			Unit:  "°C",
			ColorRules: []ColorRule{
				{ID: "1", Color: "#3b82f6", Operator: OpLess, Value: 10},
				{ID: "2", Color: "#f59e0b", Operator: OpLess, Value: 25},
				{ID: "3", Color: "#ef4444", Operator: OpGreaterEqual, Value: 25},
			},
		},
		{
			ID:    "humidity",
			Name:  "Humidity (%)",
			Field: FieldHumidity,
			Unit:  "%",
			ColorRules: []ColorRule{
				{ID: "4", Color: "#ef4444", Operator: OpLess, Value: 30},
				{ID: "5", Color: "#22c55e", Operator: OpLess, Value: 70},
				{ID: "6", Color: "#3b82f6", Operator: OpGreaterEqual, Value: 70},
			},
		},
		{
			ID:    "wind",
			Name:  "Wind Speed (km/h)",
			Field: FieldWindSpeed,
			Unit:  "km/h",
			ColorRules: []ColorRule{
				{ID: "7", Color: "#22c55e", Operator: OpLess, Value: 10},
				{ID: "8", Color: "#f59e0b", Operator: OpLess, Value: 25},
				{ID: "9", Color: "#3b82f6", Operator: OpGreaterEqual, Value: 25},
			},
		},
		{
			ID:    "precipitation",
			Name:  "Precipitation (mm)",
			Field: FieldPrecipitation,
			Unit:  "mm",
			ColorRules: []ColorRule{
				{ID: "10", Color: "#22c55e", Operator: OpLess, Value: 1},
				{ID: "11", Color: "#f59e0b", Operator: OpLess, Value: 5},
				{ID: "12", Color: "#3b82f6", Operator: OpGreaterEqual, Value: 5},
			},
		},
	}
}
