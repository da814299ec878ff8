package domain

import (
	"math"
	"strings"
	"time"
)

// Postal delivery stop. Persisted stops get their id from storage;
// manual stops carry a generated "manual_<ts>_<rand>" id until synced.
type Stop struct {
	ID          string    `json:"id"`
	ZoneID      int       `json:"zone_id"`
	Plan        Plan      `json:"plan"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	Latitude    float64   `json:"latitude"`
	Longitude   float64   `json:"longitude"`
	IsManual    bool      `json:"is_manual"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Key returns the zone/plan partition the stop belongs to.
func (s *Stop) Key() ZoneKey { return ZoneKey{Zone: s.ZoneID, Plan: s.Plan} }

// Coordinate returns the stop position.
func (s *Stop) Coordinate() Coordinate {
	return Coordinate{Latitude: s.Latitude, Longitude: s.Longitude}
}

// HasPosition reports whether the stop has usable coordinates.
func (s *Stop) HasPosition() bool {
	return validLatLon(s.Latitude, s.Longitude)
}

// Validate checks the fields storage requires and normalizes the plan.
func (s *Stop) Validate() error {
	if s.ZoneID <= 0 {
		return &FieldError{Field: "zone_id", Reason: "must be a positive integer"}
	}
	p, err := ParsePlan(string(s.Plan))
	if err != nil {
		return err
	}
	s.Plan = p
	if strings.TrimSpace(s.Name) == "" {
		return &FieldError{Field: "name", Reason: "must not be empty"}
	}
	if !finite(s.Latitude) || s.Latitude < -90 || s.Latitude > 90 {
		return &FieldError{Field: "lat", Reason: "must be within [-90, 90]"}
	}
	if !finite(s.Longitude) || s.Longitude < -180 || s.Longitude > 180 {
		return &FieldError{Field: "lng", Reason: "must be within [-180, 180]"}
	}
	return nil
}

// Stop plus its live distance from the user, recomputed on every GPS fix.
type MarkerView struct {
	Stop     *Stop `json:"stop"`
	Distance int   `json:"distance"`
}

func finite(f float64) bool { return !math.IsNaN(f) && !math.IsInf(f, 0) }

func validLatLon(lat, lon float64) bool {
	return finite(lat) && finite(lon) && lat >= -90 && lat <= 90 && lon >= -180 && lon <= 180
}
