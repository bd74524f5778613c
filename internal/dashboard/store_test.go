package dashboard

import (
	"testing"

	"github.com/couchcryptid/polygon-weather-dashboard/internal/domain"
	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func triangle() []domain.Coordinate {
	return []domain.Coordinate{{Lat: 1, Lng: 1}, {Lat: 2, Lng: 1}, {Lat: 1, Lng: 2}}
}

func ptr[T any](v T) *T { return &v }

func TestStore_AddPolygonAssignsIDAndName(t *testing.T) {
	s := NewStore(domain.DefaultDataSources())

	p1, err := s.AddPolygon(domain.Polygon{Coordinates: triangle(), DataSourceID: "temperature"})
	require.NoError(t, err)
	p2, err := s.AddPolygon(domain.Polygon{Coordinates: triangle(), DataSourceID: "wind"})
	require.NoError(t, err)

	assert.NotEmpty(t, p1.ID)
	assert.NotEqual(t, p1.ID, p2.ID)
	assert.Equal(t, "Polygon 1", p1.Name)
	assert.Equal(t, "Polygon 2", p2.Name)
	assert.Equal(t, 2, s.Len())
}

func TestStore_AddPolygonRejectsBadVertexCount(t *testing.T) {
	s := NewStore(nil)

	_, err := s.AddPolygon(domain.Polygon{Coordinates: triangle()[:2]})
	require.ErrorIs(t, err, ErrInvalidPolygon)

	tooMany := make([]domain.Coordinate, domain.MaxPolygonPoints+1)
	_, err = s.AddPolygon(domain.Polygon{Coordinates: tooMany})
	require.ErrorIs(t, err, ErrInvalidPolygon)
}

func TestStore_ReturnsCopies(t *testing.T) {
	s := NewStore(domain.DefaultDataSources())
	p, err := s.AddPolygon(domain.Polygon{Coordinates: triangle()})
	require.NoError(t, err)

	p.Coordinates[0].Lat = 99
	list := s.Polygons()
	list[0].Name = "mutated"

	got, err := s.Polygon(p.ID)
	require.NoError(t, err)
	assert.Equal(t, 1.0, got.Coordinates[0].Lat)
	assert.Equal(t, "Polygon 1", got.Name)

	ds := s.DataSources()
	ds[0].ColorRules[0].Color = "#000000"
	fresh, err := s.DataSource(ds[0].ID)
	require.NoError(t, err)
	assert.Equal(t, "#3b82f6", fresh.ColorRules[0].Color)
}

func TestStore_UpdatePolygon(t *testing.T) {
	s := NewStore(domain.DefaultDataSources())
	p, err := s.AddPolygon(domain.Polygon{Coordinates: triangle(), DataSourceID: "temperature"})
	require.NoError(t, err)

	p, err = s.UpdatePolygon(p.ID, PolygonUpdate{Measurement: &domain.Measurement{Value: 21, Color: "#f59e0b"}})
	require.NoError(t, err)
	require.NotNil(t, p.CurrentValue)
	assert.Equal(t, 21.0, *p.CurrentValue)

	p, err = s.UpdatePolygon(p.ID, PolygonUpdate{Name: ptr("Field A")})
	require.NoError(t, err)
	assert.Equal(t, "Field A", p.Name)
	assert.NotNil(t, p.CurrentValue, "rename keeps the value")

	p, err = s.UpdatePolygon(p.ID, PolygonUpdate{DataSourceID: ptr("humidity")})
	require.NoError(t, err)
	assert.Equal(t, "humidity", p.DataSourceID)
	assert.Nil(t, p.CurrentValue, "changing source clears the stale value")
	assert.Empty(t, p.Color)

	_, err = s.UpdatePolygon(p.ID, PolygonUpdate{DataSourceID: ptr("snow")})
	require.ErrorIs(t, err, domain.ErrDataSourceNotFound)

	_, err = s.UpdatePolygon("missing", PolygonUpdate{Name: ptr("x")})
	require.ErrorIs(t, err, domain.ErrPolygonNotFound)
}

func TestStore_UpdatePolygonRejectsStaleSource(t *testing.T) {
	s := NewStore(domain.DefaultDataSources())
	p, err := s.AddPolygon(domain.Polygon{Coordinates: triangle(), DataSourceID: "temperature"})
	require.NoError(t, err)
	_, err = s.UpdatePolygon(p.ID, PolygonUpdate{DataSourceID: ptr("humidity")})
	require.NoError(t, err)

	got, err := s.UpdatePolygon(p.ID, PolygonUpdate{
		Measurement:    &domain.Measurement{Value: 30, Color: "#ef4444"},
		ExpectedSource: "temperature",
	})
	require.ErrorIs(t, err, ErrSourceChanged)
	assert.Equal(t, "humidity", got.DataSourceID)
	assert.Nil(t, got.CurrentValue)
	assert.Empty(t, got.Color)

	got, err = s.UpdatePolygon(p.ID, PolygonUpdate{
		Measurement:    &domain.Measurement{Value: 80, Color: "#3b82f6"},
		ExpectedSource: "humidity",
	})
	require.NoError(t, err)
	require.NotNil(t, got.CurrentValue)
	assert.Equal(t, 80.0, *got.CurrentValue)
}

func TestStore_DeletePolygonClearsSelection(t *testing.T) {
	s := NewStore(nil)
	p, err := s.AddPolygon(domain.Polygon{Coordinates: triangle()})
	require.NoError(t, err)
	require.NoError(t, s.Select(p.ID))

	deleted, err := s.DeletePolygon(p.ID)
	require.NoError(t, err)
	assert.Equal(t, p.ID, deleted.ID)
	assert.Empty(t, s.Selected())
	assert.Empty(t, s.Polygons())

	_, err = s.DeletePolygon(p.ID)
	require.ErrorIs(t, err, domain.ErrPolygonNotFound)
}

func TestStore_Select(t *testing.T) {
	s := NewStore(nil)
	require.ErrorIs(t, s.Select("missing"), domain.ErrPolygonNotFound)
	require.NoError(t, s.Select(""))
}

func TestStore_TimeRangeAndDrawing(t *testing.T) {
	s := NewStore(nil)
	tr := domain.TimeRange{Start: fixedNow, End: fixedNow, Mode: domain.ModeSingle}

	s.SetTimeRange(tr)
	s.SetDrawing(true)

	assert.Equal(t, tr, s.TimeRange())
	assert.True(t, s.Drawing())
}

func TestStore_Rules(t *testing.T) {
	s := NewStore(domain.DefaultDataSources())

	rule, err := s.AddRule("temperature", domain.ColorRule{Color: "#a855f7", Operator: domain.OpGreaterEqual, Value: 35})
	require.NoError(t, err)
	assert.NotEmpty(t, rule.ID)

	ds, err := s.DataSource("temperature")
	require.NoError(t, err)
	require.Len(t, ds.ColorRules, 4)
	assert.Empty(t, cmp.Diff(rule, ds.ColorRules[3]))

	require.NoError(t, s.RemoveRule("temperature", "1"))
	ds, _ = s.DataSource("temperature")
	ids := make([]string, 0, len(ds.ColorRules))
	for _, r := range ds.ColorRules {
		ids = append(ids, r.ID)
	}
	assert.Equal(t, []string{"2", "3", rule.ID}, ids)

	require.ErrorIs(t, s.RemoveRule("temperature", "1"), domain.ErrRuleNotFound)
	require.ErrorIs(t, s.RemoveRule("snow", "1"), domain.ErrDataSourceNotFound)

	_, err = s.AddRule("temperature", domain.ColorRule{Color: "#000", Operator: "!=", Value: 1})
	require.ErrorIs(t, err, domain.ErrInvalidOperator)
	_, err = s.AddRule("snow", domain.ColorRule{Color: "#000", Operator: domain.OpLess, Value: 1})
	require.ErrorIs(t, err, domain.ErrDataSourceNotFound)
}
