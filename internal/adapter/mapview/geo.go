package mapview

import (
	"math"

	"github.com/couchcryptid/polygon-weather-dashboard/internal/domain"
)

// earthRadius matches the spherical model browser map libraries measure with.
const earthRadius = 6371000.0

func haversine(a, b domain.Coordinate) float64 {
	rad := math.Pi / 180
	lat1, lat2 := a.Lat*rad, b.Lat*rad
	sinDLat := math.Sin((b.Lat - a.Lat) * rad / 2)
	sinDLng := math.Sin((b.Lng - a.Lng) * rad / 2)
	h := sinDLat*sinDLat + math.Cos(lat1)*math.Cos(lat2)*sinDLng*sinDLng
	return 2 * earthRadius * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))
}

func boundsCenter(coords []domain.Coordinate) domain.Coordinate {
	if len(coords) == 0 {
		return domain.Coordinate{}
	}
	minLat, maxLat := coords[0].Lat, coords[0].Lat
	minLng, maxLng := coords[0].Lng, coords[0].Lng
	for _, c := range coords[1:] {
		minLat = math.Min(minLat, c.Lat)
		maxLat = math.Max(maxLat, c.Lat)
		minLng = math.Min(minLng, c.Lng)
		maxLng = math.Max(maxLng, c.Lng)
	}
	return domain.Coordinate{Lat: (minLat + maxLat) / 2, Lng: (minLng + maxLng) / 2}
}
