package geo

import (
	"math"

	"field-route-service/internal/domain"
	"github.com/golang/geo/s1"
	"github.com/golang/geo/s2"
)

// Bounds returns the lat/lng rectangle enclosing path. Paths crossing the
// antimeridian yield West > East.
func Bounds(path []domain.Coordinate) (domain.BoundingBox, bool) {
	if len(path) == 0 {
		return domain.BoundingBox{}, false
	}

	rect := s2.EmptyRect()
	for _, c := range path {
		rect = rect.AddPoint(s2.LatLngFromDegrees(c.Latitude, c.Longitude))
	}

	return domain.BoundingBox{
		North: s1.Angle(rect.Lat.Hi).Degrees(),
		South: s1.Angle(rect.Lat.Lo).Degrees(),
		East:  s1.Angle(rect.Lng.Hi).Degrees(),
		West:  s1.Angle(rect.Lng.Lo).Degrees(),
	}, true
}

// Center returns the midpoint of the box.
func Center(b domain.BoundingBox) domain.Coordinate {
	rect := s2.RectFromLatLng(s2.LatLngFromDegrees(b.South, b.West)).
		AddPoint(s2.LatLngFromDegrees(b.North, b.East))
	c := rect.Center()
	return domain.Coordinate{Latitude: c.Lat.Degrees(), Longitude: c.Lng.Degrees()}
}

// Contains reports whether c lies inside b.
func Contains(b domain.BoundingBox, c domain.Coordinate) bool {
	if c.Latitude < b.South || c.Latitude > b.North {
		return false
	}
	if b.West <= b.East {
		return c.Longitude >= b.West && c.Longitude <= b.East
	}
	return c.Longitude >= b.West || c.Longitude <= b.East
}

// RouteStats computes point count, length, bounds and centre of a route.
// It returns nil for routes with fewer than 2 points.
func RouteStats(route *domain.Route) *domain.RouteStats {
	if route == nil || len(route.Path) < 2 {
		return nil
	}

	box, _ := Bounds(route.Path)
	return &domain.RouteStats{
		PointCount:          len(route.Path),
		TotalDistanceMeters: math.Round(PathLength(route.Path)),
		BoundingBox:         box,
		Center:              Center(box),
	}
}
