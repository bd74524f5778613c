package dashboard

import (
	"errors"
	"fmt"
	"sync"

	"github.com/couchcryptid/polygon-weather-dashboard/internal/domain"
	"github.com/google/uuid"
)

// ErrInvalidPolygon is returned when a polygon's vertex count is outside [3,12].
var ErrInvalidPolygon = errors.New("polygon must have between 3 and 12 vertices")

// ErrSourceChanged is returned when an update was computed for a data source
// the polygon no longer belongs to.
var ErrSourceChanged = errors.New("polygon data source changed")

// PolygonUpdate is a partial polygon change. Nil fields are left untouched.
type PolygonUpdate struct {
	Name         *string
	DataSourceID *string
	Measurement  *domain.Measurement
	Color        *string

	// ExpectedSource, when set, rejects the whole update with ErrSourceChanged
	// unless the polygon still belongs to that data source.
	ExpectedSource string
}

// Store is the single source of truth for dashboard state. All methods are
// safe for concurrent use and return copies.
type Store struct {
	mu          sync.RWMutex
	polygons    []domain.Polygon
	dataSources []domain.DataSource
	timeRange   domain.TimeRange
	drawing     bool
	selected    string
}

// NewStore creates a store over a data source registry.
func NewStore(sources []domain.DataSource) *Store {
	ds := make([]domain.DataSource, len(sources))
	for i := range sources {
		ds[i] = sources[i].Clone()
	}
	return &Store{dataSources: ds}
}

// AddPolygon stores p, assigning an id and a "Polygon N" name when unset.
func (s *Store) AddPolygon(p domain.Polygon) (domain.Polygon, error) {
	if n := len(p.Coordinates); n < domain.MinPolygonPoints || n > domain.MaxPolygonPoints {
		return domain.Polygon{}, ErrInvalidPolygon
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	p = p.Clone()
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	if p.Name == "" {
		p.Name = fmt.Sprintf("Polygon %d", len(s.polygons)+1)
	}
	s.polygons = append(s.polygons, p)
	return p.Clone(), nil
}

// UpdatePolygon applies u to the polygon with the given id. Changing the data
// source clears the stale value and color unless u also carries a measurement.
func (s *Store) UpdatePolygon(id string, u PolygonUpdate) (domain.Polygon, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.indexLocked(id)
	if i < 0 {
		return domain.Polygon{}, domain.ErrPolygonNotFound
	}
	p := &s.polygons[i]

	if u.ExpectedSource != "" && u.ExpectedSource != p.DataSourceID {
		return p.Clone(), ErrSourceChanged
	}
	if u.DataSourceID != nil && *u.DataSourceID != p.DataSourceID {
		if s.sourceIndexLocked(*u.DataSourceID) < 0 {
			return domain.Polygon{}, domain.ErrDataSourceNotFound
		}
		p.DataSourceID = *u.DataSourceID
		p.CurrentValue = nil
		p.Color = ""
	}
	if u.Name != nil {
		p.Name = *u.Name
	}
	if u.Measurement != nil {
		v := u.Measurement.Value
		p.CurrentValue = &v
		p.Color = u.Measurement.Color
	}
	if u.Color != nil {
		p.Color = *u.Color
	}
	return p.Clone(), nil
}

// DeletePolygon removes a polygon and clears the selection if it pointed at it.
func (s *Store) DeletePolygon(id string) (domain.Polygon, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.indexLocked(id)
	if i < 0 {
		return domain.Polygon{}, domain.ErrPolygonNotFound
	}
	p := s.polygons[i]
	s.polygons = append(s.polygons[:i], s.polygons[i+1:]...)
	if s.selected == id {
		s.selected = ""
	}
	return p, nil
}

// Polygons returns all polygons in creation order.
func (s *Store) Polygons() []domain.Polygon {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]domain.Polygon, len(s.polygons))
	for i := range s.polygons {
		out[i] = s.polygons[i].Clone()
	}
	return out
}

// Polygon returns one polygon by id.
func (s *Store) Polygon(id string) (domain.Polygon, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	i := s.indexLocked(id)
	if i < 0 {
		return domain.Polygon{}, domain.ErrPolygonNotFound
	}
	return s.polygons[i].Clone(), nil
}

// Len returns the number of polygons.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.polygons)
}

// SetTimeRange replaces the active time range.
func (s *Store) SetTimeRange(tr domain.TimeRange) {
	s.mu.Lock()
	s.timeRange = tr
	s.mu.Unlock()
}

// TimeRange returns the active time range.
func (s *Store) TimeRange() domain.TimeRange {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.timeRange
}

// SetDrawing sets the drawing-mode flag.
func (s *Store) SetDrawing(on bool) {
	s.mu.Lock()
	s.drawing = on
	s.mu.Unlock()
}

// Drawing reports whether drawing mode is on.
func (s *Store) Drawing() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.drawing
}

// Select marks a polygon as selected. An empty id clears the selection.
func (s *Store) Select(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if id != "" && s.indexLocked(id) < 0 {
		return domain.ErrPolygonNotFound
	}
	s.selected = id
	return nil
}

// Selected returns the selected polygon id, or "" when none is selected.
func (s *Store) Selected() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.selected
}

// DataSources returns the registry in configuration order.
func (s *Store) DataSources() []domain.DataSource {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]domain.DataSource, len(s.dataSources))
	for i := range s.dataSources {
		out[i] = s.dataSources[i].Clone()
	}
	return out
}

// DataSource returns one data source by id.
func (s *Store) DataSource(id string) (domain.DataSource, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	i := s.sourceIndexLocked(id)
	if i < 0 {
		return domain.DataSource{}, domain.ErrDataSourceNotFound
	}
	return s.dataSources[i].Clone(), nil
}

// AddRule appends a color rule to a data source, assigning an id when unset.
func (s *Store) AddRule(dataSourceID string, rule domain.ColorRule) (domain.ColorRule, error) {
	if _, err := domain.ParseOperator(string(rule.Operator)); err != nil {
		return domain.ColorRule{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.sourceIndexLocked(dataSourceID)
	if i < 0 {
		return domain.ColorRule{}, domain.ErrDataSourceNotFound
	}
	if rule.ID == "" {
		rule.ID = uuid.NewString()
	}
	s.dataSources[i].ColorRules = append(s.dataSources[i].ColorRules, rule)
	return rule, nil
}

// RemoveRule deletes a color rule from a data source.
func (s *Store) RemoveRule(dataSourceID, ruleID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.sourceIndexLocked(dataSourceID)
	if i < 0 {
		return domain.ErrDataSourceNotFound
	}
	rules := s.dataSources[i].ColorRules
	for j := range rules {
		if rules[j].ID == ruleID {
			s.dataSources[i].ColorRules = append(rules[:j:j], rules[j+1:]...)
			return nil
		}
	}
	return domain.ErrRuleNotFound
}

func (s *Store) indexLocked(id string) int {
	for i := range s.polygons {
		if s.polygons[i].ID == id {
			return i
		}
	}
	return -1
}

func (s *Store) sourceIndexLocked(id string) int {
	for i := range s.dataSources {
		if s.dataSources[i].ID == id {
			return i
		}
	}
	return -1
}
