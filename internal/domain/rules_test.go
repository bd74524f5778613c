package domain

import (
	"slices"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func temperatureRules() []ColorRule {
	return []ColorRule{
		{ID: "1", Color: "blue", Operator: OpLess, Value: 10},
		{ID: "2", Color: "amber", Operator: OpLess, Value: 25},
		{ID: "3", Color: "red", Operator: OpGreaterEqual, Value: 25},
	}
}

func TestEvaluateColor_Thresholds(t *testing.T) {
	rules := temperatureRules()

	cases := []struct {
		value float64
		want  string
	}{
		{-5, "blue"},
		{9.99, "blue"},
		{10, "amber"},
		{24.9, "amber"},
		{25, "red"},
		{40, "red"},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, EvaluateColor(tc.value, rules), "value %v", tc.value)
	}
}

func TestEvaluateColor_OrderIndependent(t *testing.T) {
	rules := temperatureRules()
	reversed := slices.Clone(rules)
	slices.Reverse(reversed)
	shuffled := []ColorRule{rules[1], rules[2], rules[0]}

	for _, v := range []float64{-100, 0, 9.5, 10, 17, 24.99, 25, 26, 1000} {
		want := EvaluateColor(v, rules)
		assert.Equal(t, want, EvaluateColor(v, reversed), "value %v", v)
		assert.Equal(t, want, EvaluateColor(v, shuffled), "value %v", v)
	}
}

func TestEvaluateColor_LowestMatchingThresholdWins(t *testing.T) {
	// Both "<" rules cover 5; the lower threshold is evaluated first.
	rules := []ColorRule{
		{ID: "a", Color: "wide", Operator: OpLess, Value: 50},
		{ID: "b", Color: "narrow", Operator: OpLess, Value: 10},
	}
	assert.Equal(t, "narrow", EvaluateColor(5, rules))
	assert.Equal(t, "wide", EvaluateColor(20, rules))
}

func TestEvaluateColor_EqualityTolerance(t *testing.T) {
	rules := []ColorRule{{ID: "eq", Color: "green", Operator: OpEqual, Value: 20}}

	assert.Equal(t, "green", EvaluateColor(20, rules))
	assert.Equal(t, "green", EvaluateColor(20.09, rules))
	assert.Equal(t, "green", EvaluateColor(19.91, rules))
	assert.Equal(t, DefaultColor, EvaluateColor(20.1, rules))
	assert.Equal(t, DefaultColor, EvaluateColor(19.85, rules))
}

func TestEvaluateColor_NoMatchFallsBack(t *testing.T) {
	rules := []ColorRule{{ID: "gt", Color: "red", Operator: OpGreater, Value: 100}}
	assert.Equal(t, DefaultColor, EvaluateColor(50, rules))
	assert.Equal(t, DefaultColor, EvaluateColor(50, nil))
}

func TestEvaluateColor_OperatorsAtBoundary(t *testing.T) {
	cases := []struct {
		op   Operator
		want bool
	}{
		{OpLess, false},
		{OpLessEqual, true},
		{OpEqual, true},
		{OpGreater, false},
		{OpGreaterEqual, true},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, tc.op.Holds(5, 5), "operator %s", tc.op)
	}
	assert.False(t, Operator("!=").Holds(1, 2))
}

func TestEvaluateColor_EqualThresholdsKeepInsertionOrder(t *testing.T) {
	// Which of two same-threshold rules wins is unspecified; it must only be stable.
	rules := []ColorRule{
		{ID: "first", Color: "first", Operator: OpLessEqual, Value: 10},
		{ID: "second", Color: "second", Operator: OpLessEqual, Value: 10},
	}
	for range 5 {
		assert.Equal(t, "first", EvaluateColor(3, rules))
	}
}

func TestEvaluateColor_DoesNotReorderInput(t *testing.T) {
	rules := []ColorRule{
		{ID: "3", Color: "red", Operator: OpGreaterEqual, Value: 25},
		{ID: "1", Color: "blue", Operator: OpLess, Value: 10},
	}
	_ = EvaluateColor(5, rules)
	assert.Equal(t, "3", rules[0].ID)
}

func TestParseOperator(t *testing.T) {
	for _, s := range []string{"<", "<=", "=", ">", ">="} {
		op, err := ParseOperator(s)
		require.NoError(t, err)
		assert.Equal(t, Operator(s), op)
	}

	_, err := ParseOperator("==")
	require.ErrorIs(t, err, ErrInvalidOperator)
}

func TestDefaultDataSources(t *testing.T) {
	sources := DefaultDataSources()
	require.Len(t, sources, 4)

	fields := make([]string, 0, len(sources))
	for _, ds := range sources {
		fields = append(fields, ds.Field)
		assert.Len(t, ds.ColorRules, 3, ds.ID)
	}
	assert.Equal(t, HourlyFields, fields)

	// Callers get independent copies.
	sources[0].ColorRules[0].Color = "mutated"
	assert.Equal(t, "#3b82f6", DefaultDataSources()[0].ColorRules[0].Color)
}

func TestDataSource_Color(t *testing.T) {
	humidity := DefaultDataSources()[1]
	assert.Equal(t, "#ef4444", humidity.Color(20))
	assert.Equal(t, "#22c55e", humidity.Color(50))
	assert.Equal(t, "#3b82f6", humidity.Color(85))
}
