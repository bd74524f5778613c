package domain

// LayerID identifies something drawn on the map surface.
type LayerID string

// ClickHandler receives the geographic coordinate of a map click.
type ClickHandler func(Coordinate)

// Surface is the slice of a map rendering library the dashboard depends on.
type Surface interface {
	// OnClick registers the handler for map clicks, replacing any previous one.
	OnClick(h ClickHandler)

	// Distance returns the distance between two coordinates in meters.
	Distance(a, b Coordinate) float64

	// BoundsCenter returns the center of the bounding box of coords.
	BoundsCenter(coords []Coordinate) Coordinate

	DrawMarker(c Coordinate) LayerID
	DrawPolyline(coords []Coordinate) LayerID

	// DrawPolygon draws or restyles the polygon layer keyed by id.
	DrawPolygon(id string, coords []Coordinate, color string) LayerID

	RemoveLayer(id LayerID)
}
