package domain

// Polyline extracted from a KML LineString placemark.
// Routes are owned by the ParsedDocument that produced them and are read-only
// after creation.
type Route struct {
	ID          string       `json:"id"`
	Name        string       `json:"name"`
	Path        []Coordinate `json:"path"`
	PointCount  int          `json:"point_count"`
	Style       string       `json:"style,omitempty"`
	Description string       `json:"description,omitempty"`
	// Zone is the zone the route belongs to, 0 when unknown.
	Zone  int         `json:"zone,omitempty"`
	Stats *RouteStats `json:"stats,omitempty"`
}

type BoundingBox struct {
	North float64 `json:"north"`
	South float64 `json:"south"`
	East  float64 `json:"east"`
	West  float64 `json:"west"`
}

// Derived metrics for a route path; computed on demand, never persisted on its own.
type RouteStats struct {
	PointCount          int         `json:"point_count"`
	TotalDistanceMeters float64     `json:"total_distance_meters"`
	BoundingBox         BoundingBox `json:"bounding_box"`
	Center              Coordinate  `json:"center"`
}

// Road-following path between waypoints. Fallback is set when the
// path is the straight line through the original waypoints.
type RoadPath struct {
	Coordinates     []Coordinate `json:"coordinates"`
	DistanceMeters  float64      `json:"distance_meters"`
	DurationSeconds float64      `json:"duration_seconds"`
	Fallback        bool         `json:"fallback"`
	Provider        string       `json:"provider,omitempty"`
}
