package domain

const (
	// ClosureDistance is how close, in meters, a click must land to the first
	// point to close the polygon.
	ClosureDistance = 100.0

	MinPolygonPoints = 3
	MaxPolygonPoints = 12
)

// DrawingState is a phase of the polygon drawing interaction.
type DrawingState int

const (
	StateIdle DrawingState = iota
	StateDrawing
	StateCompleting
)

func (s DrawingState) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateDrawing:
		return "drawing"
	case StateCompleting:
		return "completing"
	default:
		return "unknown"
	}
}

// MarshalText renders the state name in JSON payloads.
func (s DrawingState) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// CompletedShape is the outcome of a drawing session that reached closure.
type CompletedShape struct {
	Points       []Coordinate
	DataSourceID string
}

// DrawingSession tracks the clicks of one polygon being drawn. It is not safe
// for concurrent use; callers serialize access.
type DrawingSession struct {
	surface      Surface
	state        DrawingState
	points       []Coordinate
	layers       []LayerID
	dataSourceID string
}

// NewDrawingSession creates an idle session drawing feedback on surface.
func NewDrawingSession(surface Surface) *DrawingSession {
	return &DrawingSession{surface: surface}
}

// State returns the current phase.
func (s *DrawingSession) State() DrawingState { return s.state }

// DataSourceID returns the data source chosen when drawing started.
func (s *DrawingSession) DataSourceID() string { return s.dataSourceID }

// Points returns a copy of the points collected so far.
func (s *DrawingSession) Points() []Coordinate {
	return append([]Coordinate(nil), s.points...)
}

// Start enters Drawing, discarding any stale points and feedback layers.
// It returns false while a completed shape is still being processed.
func (s *DrawingSession) Start(dataSourceID string) bool {
	if s.state == StateCompleting {
		return false
	}
	s.clear()
	s.dataSourceID = dataSourceID
	s.state = StateDrawing
	return true
}

// Click appends c while Drawing. When the click closes the shape, the session
// moves to Completing and the full point sequence is returned with ok=true.
// Clicks in any other state are ignored.
func (s *DrawingSession) Click(c Coordinate) (shape CompletedShape, ok bool) {
	if s.state != StateDrawing {
		return CompletedShape{}, false
	}

	s.points = append(s.points, c)
	s.layers = append(s.layers, s.surface.DrawMarker(c))
	if len(s.points) > 1 {
		s.layers = append(s.layers, s.surface.DrawPolyline(s.Points()))
	}

	if len(s.points) < MinPolygonPoints {
		return CompletedShape{}, false
	}
	closed := s.surface.Distance(c, s.points[0]) < ClosureDistance
	if !closed && len(s.points) < MaxPolygonPoints {
		return CompletedShape{}, false
	}

	shape = CompletedShape{Points: s.Points(), DataSourceID: s.dataSourceID}
	s.clear()
	s.state = StateCompleting
	return shape, true
}

// Cancel abandons an in-progress drawing. It reports whether anything was
// cancelled.
func (s *DrawingSession) Cancel() bool {
	if s.state != StateDrawing {
		return false
	}
	s.clear()
	s.state = StateIdle
	return true
}

// Finish returns a Completing session to Idle once the shape is handled.
func (s *DrawingSession) Finish() {
	if s.state == StateCompleting {
		s.state = StateIdle
		s.dataSourceID = ""
	}
}

func (s *DrawingSession) clear() {
	for _, id := range s.layers {
		s.surface.RemoveLayer(id)
	}
	s.layers = nil
	s.points = nil
}
