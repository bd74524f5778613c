package dashboard

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/couchcryptid/polygon-weather-dashboard/internal/domain"
	"github.com/couchcryptid/polygon-weather-dashboard/internal/observability"
	"golang.org/x/sync/errgroup"
)

// ErrDrawingBusy is returned when drawing starts while the previous polygon is
// still being completed.
var ErrDrawingBusy = errors.New("previous polygon is still being completed")

// refreshConcurrency bounds the weather requests issued by RefreshPolygons.
const refreshConcurrency = 8

// DrawingStatus is a snapshot of the drawing session.
type DrawingStatus struct {
	Active       bool                `json:"active"`
	State        domain.DrawingState `json:"state"`
	DataSourceID string              `json:"dataSourceId,omitempty"`
	Points       []domain.Coordinate `json:"points"`
}

// PolygonPatch is a user edit of a polygon.
type PolygonPatch struct {
	Name         *string
	DataSourceID *string
}

// SourceMeasurement is one data source's average over the active time range.
type SourceMeasurement struct {
	DataSourceID string  `json:"dataSourceId"`
	Name         string  `json:"name"`
	Unit         string  `json:"unit"`
	Value        float64 `json:"value"`
	Color        string  `json:"color"`
}

// WeatherSummary is the per-source preview for a point.
type WeatherSummary struct {
	Lat       float64             `json:"lat"`
	Lng       float64             `json:"lng"`
	Range     domain.TimeRange    `json:"range"`
	Synthetic bool                `json:"synthetic"`
	Sources   []SourceMeasurement `json:"sources"`
}

// Option configures a Service.
type Option func(*Service)

// WithTimeline replaces the default timeline, typically to inject a clock.
func WithTimeline(tl *domain.Timeline) Option {
	return func(s *Service) { s.timeline = tl }
}

// Service mediates between the store, the timeline, the drawing session, the
// map surface, the weather fetcher and the event publisher.
type Service struct {
	store     *Store
	surface   domain.Surface
	fetcher   domain.WeatherFetcher
	publisher EventPublisher
	logger    *slog.Logger
	metrics   *observability.Metrics
	running   atomic.Bool

	// mu serializes the timeline and the drawing session. Once draining is
	// set no new background recolor is started.
	mu       sync.Mutex
	timeline *domain.Timeline
	session  *domain.DrawingSession
	draining bool

	// Background recolors run under ctx and are tracked by wg.
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewService wires a Service and registers it for clicks on surface.
func NewService(store *Store, surface domain.Surface, fetcher domain.WeatherFetcher, publisher EventPublisher, logger *slog.Logger, metrics *observability.Metrics, opts ...Option) *Service {
	ctx, cancel := context.WithCancel(context.Background())
	s := &Service{
		store:     store,
		surface:   surface,
		fetcher:   fetcher,
		publisher: publisher,
		logger:    logger,
		metrics:   metrics,
		timeline:  domain.NewTimeline(),
		session:   domain.NewDrawingSession(surface),
		ctx:       ctx,
		cancel:    cancel,
	}
	for _, opt := range opts {
		opt(s)
	}

	store.SetTimeRange(s.timeline.Selection())
	surface.OnClick(func(c domain.Coordinate) {
		s.Click(s.ctx, c)
	})
	return s
}

// Run marks the service live until ctx is cancelled. Background work keeps
// running until Shutdown.
func (s *Service) Run(ctx context.Context) error {
	s.logger.Info("dashboard started", "data_sources", len(s.store.DataSources()))
	s.running.Store(true)
	s.metrics.ServiceRunning.Set(1)
	defer s.metrics.ServiceRunning.Set(0)

	<-ctx.Done()
	s.running.Store(false)
	s.logger.Info("dashboard stopping", "reason", ctx.Err())
	return nil
}

// Shutdown stops starting background recolors, cancels the ones in flight and
// waits for them to return or for ctx to expire. Timeline changes made after
// Shutdown still update the selection but no longer recolor.
func (s *Service) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	s.draining = true
	s.mu.Unlock()
	s.cancel()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Wait blocks until every background recolor started so far has finished.
// It must not race with timeline changes; use Shutdown for that.
func (s *Service) Wait() {
	s.wg.Wait()
}

// CheckReadiness returns nil once the service is running with a non-empty
// data source registry.
func (s *Service) CheckReadiness(_ context.Context) error {
	if len(s.store.DataSources()) == 0 {
		return errors.New("no data sources configured")
	}
	if !s.running.Load() {
		return errors.New("dashboard is not running")
	}
	return nil
}

// --- drawing ---

// StartDrawing enters drawing mode. An empty dataSourceID selects the first
// configured data source.
func (s *Service) StartDrawing(dataSourceID string) error {
	if dataSourceID == "" {
		sources := s.store.DataSources()
		if len(sources) == 0 {
			return domain.ErrDataSourceNotFound
		}
		dataSourceID = sources[0].ID
	} else if _, err := s.store.DataSource(dataSourceID); err != nil {
		return err
	}

	s.mu.Lock()
	ok := s.session.Start(dataSourceID)
	s.mu.Unlock()
	if !ok {
		return ErrDrawingBusy
	}
	s.store.SetDrawing(true)
	s.logger.Debug("drawing started", "data_source", dataSourceID)
	return nil
}

// CancelDrawing abandons the drawing in progress. It reports whether there was one.
func (s *Service) CancelDrawing() bool {
	s.mu.Lock()
	ok := s.session.Cancel()
	s.mu.Unlock()
	if ok {
		s.store.SetDrawing(false)
		s.logger.Debug("drawing cancelled")
	}
	return ok
}

// Drawing returns the drawing session state.
func (s *Service) Drawing() DrawingStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	return DrawingStatus{
		Active:       s.store.Drawing(),
		State:        s.session.State(),
		DataSourceID: s.session.DataSourceID(),
		Points:       s.session.Points(),
	}
}

// Click feeds a map click to the drawing session. When the click closes the
// shape, the polygon is measured, stored and drawn, and returned with ok=true.
func (s *Service) Click(ctx context.Context, c domain.Coordinate) (domain.Polygon, bool) {
	s.mu.Lock()
	shape, ok := s.session.Click(c)
	s.mu.Unlock()
	if !ok {
		return domain.Polygon{}, false
	}

	p, err := s.complete(ctx, shape)

	s.mu.Lock()
	s.session.Finish()
	s.mu.Unlock()
	s.store.SetDrawing(false)

	if err != nil {
		s.logger.Debug("discarding drawn shape", "points", len(shape.Points), "error", err)
		return domain.Polygon{}, false
	}
	return p, true
}

func (s *Service) complete(ctx context.Context, shape domain.CompletedShape) (domain.Polygon, error) {
	p := domain.Polygon{
		Coordinates:  shape.Points,
		DataSourceID: shape.DataSourceID,
	}

	ds, err := s.store.DataSource(shape.DataSourceID)
	if err == nil {
		center := s.surface.BoundsCenter(shape.Points)
		m, err := s.measure(ctx, center, s.store.TimeRange(), ds)
		if err != nil {
			s.logger.Warn("weather unavailable for new polygon", "error", err)
		} else {
			v := m.Value
			p.CurrentValue = &v
			p.Color = m.Color
		}
	}

	p, err = s.store.AddPolygon(p)
	if err != nil {
		return domain.Polygon{}, err
	}
	s.draw(p)
	s.metrics.Polygons.Set(float64(s.store.Len()))
	s.publish(ctx, domain.PolygonCreated, p)
	s.logger.Info("polygon created", "polygon_id", p.ID, "name", p.Name, "data_source", p.DataSourceID)
	return p, nil
}

// --- timeline ---

// Timeline returns the timeline handles and selection.
func (s *Service) Timeline() domain.TimelineState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.timeline.State()
}

// SetTimelineMode switches between single and range selection.
func (s *Service) SetTimelineMode(m domain.TimeMode) (domain.TimelineState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.timeline.SetMode(m); err != nil {
		return s.timeline.State(), err
	}
	return s.selectionChangedLocked(), nil
}

// SetHour moves the single-mode handle.
func (s *Service) SetHour(h int) (domain.TimelineState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.timeline.SetHour(h); err != nil {
		return s.timeline.State(), err
	}
	return s.selectionChangedLocked(), nil
}

// SetRangeStart moves the range start handle. Rejected moves return false and
// change nothing.
func (s *Service) SetRangeStart(v int) (domain.TimelineState, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.timeline.SetRangeStart(v) {
		return s.timeline.State(), false
	}
	return s.selectionChangedLocked(), true
}

// SetRangeEnd moves the range end handle. Rejected moves return false and
// change nothing.
func (s *Service) SetRangeEnd(v int) (domain.TimelineState, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.timeline.SetRangeEnd(v) {
		return s.timeline.State(), false
	}
	return s.selectionChangedLocked(), true
}

// ApplyPreset moves the active handles to a named preset.
func (s *Service) ApplyPreset(p domain.Preset) (domain.TimelineState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.timeline.ApplyPreset(p); err != nil {
		return s.timeline.State(), err
	}
	return s.selectionChangedLocked(), nil
}

// selectionChangedLocked publishes the new selection to the store and starts
// a recolor of every polygon. Recolors are neither cancelled nor fenced: when
// selections change quickly, whichever response resolves last wins.
func (s *Service) selectionChangedLocked() domain.TimelineState {
	st := s.timeline.State()
	s.store.SetTimeRange(st.Selection)
	if s.draining {
		return st
	}

	for _, p := range s.store.Polygons() {
		s.wg.Add(1)
		go func(p domain.Polygon) {
			defer s.wg.Done()
			if err := s.recompute(s.ctx, p, st.Selection); err != nil {
				s.logger.Warn("recolor failed", "polygon_id", p.ID, "error", err)
			}
		}(p)
	}
	return st
}

// --- polygons ---

// Polygons returns every polygon.
func (s *Service) Polygons() []domain.Polygon {
	return s.store.Polygons()
}

// Polygon returns one polygon.
func (s *Service) Polygon(id string) (domain.Polygon, error) {
	return s.store.Polygon(id)
}

// UpdatePolygon renames a polygon or moves it to another data source. A data
// source change recomputes the value and color before returning.
func (s *Service) UpdatePolygon(ctx context.Context, id string, patch PolygonPatch) (domain.Polygon, error) {
	before, err := s.store.Polygon(id)
	if err != nil {
		return domain.Polygon{}, err
	}

	p, err := s.store.UpdatePolygon(id, PolygonUpdate{Name: patch.Name, DataSourceID: patch.DataSourceID})
	if err != nil {
		return domain.Polygon{}, err
	}

	if p.DataSourceID != before.DataSourceID {
		if err := s.recompute(ctx, p, s.store.TimeRange()); err != nil {
			s.logger.Warn("recompute after data source change failed", "polygon_id", id, "error", err)
			s.draw(p)
			s.publish(ctx, domain.PolygonUpdated, p)
			return p, nil
		}
		return s.store.Polygon(id)
	}

	s.publish(ctx, domain.PolygonUpdated, p)
	return p, nil
}

// DeletePolygon removes a polygon and its map layer.
func (s *Service) DeletePolygon(ctx context.Context, id string) error {
	p, err := s.store.DeletePolygon(id)
	if err != nil {
		return err
	}
	s.surface.RemoveLayer(domain.LayerID(p.ID))
	s.metrics.Polygons.Set(float64(s.store.Len()))
	s.publish(ctx, domain.PolygonDeleted, p)
	s.logger.Info("polygon deleted", "polygon_id", id)
	return nil
}

// RefreshPolygons recomputes every polygon for the current time range and
// returns the result.
func (s *Service) RefreshPolygons(ctx context.Context) ([]domain.Polygon, error) {
	tr := s.store.TimeRange()
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(refreshConcurrency)
	for _, p := range s.store.Polygons() {
		g.Go(func() error {
			return s.recompute(gctx, p, tr)
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return s.store.Polygons(), nil
}

// Select marks a polygon as selected; an empty id clears the selection.
func (s *Service) Select(id string) error {
	return s.store.Select(id)
}

// Selected returns the selected polygon id.
func (s *Service) Selected() string {
	return s.store.Selected()
}

// recompute measures p for tr and stores, draws and publishes the result.
// A polygon whose data source no longer exists, or which was deleted or moved
// to another data source while the fetch was in flight, is skipped.
func (s *Service) recompute(ctx context.Context, p domain.Polygon, tr domain.TimeRange) error {
	ds, err := s.store.DataSource(p.DataSourceID)
	if err != nil {
		s.logger.Debug("skipping polygon with unknown data source", "polygon_id", p.ID, "data_source", p.DataSourceID)
		return nil
	}

	m, err := s.measure(ctx, s.surface.BoundsCenter(p.Coordinates), tr, ds)
	if err != nil {
		return err
	}

	updated, err := s.store.UpdatePolygon(p.ID, PolygonUpdate{Measurement: &m, ExpectedSource: ds.ID})
	if errors.Is(err, domain.ErrPolygonNotFound) || errors.Is(err, ErrSourceChanged) {
		s.logger.Debug("discarding stale measurement", "polygon_id", p.ID, "data_source", ds.ID, "error", err)
		return nil
	}
	if err != nil {
		return err
	}
	s.draw(updated)
	s.publish(ctx, domain.PolygonUpdated, updated)
	return nil
}

// --- data sources and rules ---

// DataSources returns the registry.
func (s *Service) DataSources() []domain.DataSource {
	return s.store.DataSources()
}

// DataSource returns one data source.
func (s *Service) DataSource(id string) (domain.DataSource, error) {
	return s.store.DataSource(id)
}

// AddRule adds a color rule and recolors the data source's polygons from
// their last computed values.
func (s *Service) AddRule(ctx context.Context, dataSourceID string, rule domain.ColorRule) (domain.ColorRule, error) {
	r, err := s.store.AddRule(dataSourceID, rule)
	if err != nil {
		return domain.ColorRule{}, err
	}
	s.restyle(ctx, dataSourceID)
	return r, nil
}

// RemoveRule removes a color rule and recolors the data source's polygons.
func (s *Service) RemoveRule(ctx context.Context, dataSourceID, ruleID string) error {
	if err := s.store.RemoveRule(dataSourceID, ruleID); err != nil {
		return err
	}
	s.restyle(ctx, dataSourceID)
	return nil
}

// restyle re-evaluates colors without fetching.
func (s *Service) restyle(ctx context.Context, dataSourceID string) {
	ds, err := s.store.DataSource(dataSourceID)
	if err != nil {
		return
	}
	for _, p := range s.store.Polygons() {
		if p.DataSourceID != dataSourceID || p.CurrentValue == nil {
			continue
		}
		color := ds.Color(*p.CurrentValue)
		if color == p.Color {
			continue
		}
		updated, err := s.store.UpdatePolygon(p.ID, PolygonUpdate{Color: &color, ExpectedSource: dataSourceID})
		if err != nil {
			continue
		}
		s.draw(updated)
		s.publish(ctx, domain.PolygonUpdated, updated)
	}
}

// WeatherSummary averages every data source at a point over the active range.
func (s *Service) WeatherSummary(ctx context.Context, lat, lng float64) (WeatherSummary, error) {
	tr := s.store.TimeRange()
	data, err := s.fetcher.FetchHourly(ctx, lat, lng, tr.Start, tr.End)
	if err != nil {
		return WeatherSummary{}, err
	}

	sources := s.store.DataSources()
	out := WeatherSummary{
		Lat:       lat,
		Lng:       lng,
		Range:     tr,
		Synthetic: data.Synthetic,
		Sources:   make([]SourceMeasurement, 0, len(sources)),
	}
	for _, ds := range sources {
		m := domain.Measure(data, ds)
		out.Sources = append(out.Sources, SourceMeasurement{
			DataSourceID: ds.ID,
			Name:         ds.Name,
			Unit:         ds.Unit,
			Value:        m.Value,
			Color:        m.Color,
		})
	}
	return out, nil
}

// --- helpers ---

func (s *Service) measure(ctx context.Context, at domain.Coordinate, tr domain.TimeRange, ds domain.DataSource) (domain.Measurement, error) {
	data, err := s.fetcher.FetchHourly(ctx, at.Lat, at.Lng, tr.Start, tr.End)
	if err != nil {
		return domain.Measurement{}, err
	}
	return domain.Measure(data, ds), nil
}

func (s *Service) draw(p domain.Polygon) {
	color := p.Color
	if color == "" {
		color = domain.DefaultColor
	}
	s.surface.DrawPolygon(p.ID, p.Coordinates, color)
}

func (s *Service) publish(ctx context.Context, t domain.PolygonEventType, p domain.Polygon) {
	s.metrics.PolygonEvents.WithLabelValues(string(t)).Inc()
	if err := s.publisher.Publish(ctx, domain.NewPolygonEvent(t, p)); err != nil {
		s.metrics.PublishErrors.Inc()
		s.logger.Warn("publish polygon event failed", "type", t, "polygon_id", p.ID, "error", err)
	}
}
