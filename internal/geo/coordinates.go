package geo

import (
	"math"
	"strconv"
	"strings"

	"field-route-service/internal/domain"
)

// IsValidLatLon reports whether lat/lon are finite and within WGS84 ranges.
func IsValidLatLon(lat, lon float64) bool {
	if math.IsNaN(lat) || math.IsNaN(lon) || math.IsInf(lat, 0) || math.IsInf(lon, 0) {
		return false
	}
	return lat >= -90 && lat <= 90 && lon >= -180 && lon <= 180
}

// ParseCoordinateLine parses one KML tuple "lon,lat[,alt]".
// A missing or unparsable altitude defaults to 0.
func ParseCoordinateLine(text string) (domain.Coordinate, bool) {
	parts := strings.Split(strings.TrimSpace(text), ",")
	if len(parts) < 2 {
		return domain.Coordinate{}, false
	}

	lon, err := strconv.ParseFloat(strings.TrimSpace(parts[0]), 64)
	if err != nil {
		return domain.Coordinate{}, false
	}
	lat, err := strconv.ParseFloat(strings.TrimSpace(parts[1]), 64)
	if err != nil {
		return domain.Coordinate{}, false
	}
	if !IsValidLatLon(lat, lon) {
		return domain.Coordinate{}, false
	}

	var alt float64
	if len(parts) >= 3 {
		if v, err := strconv.ParseFloat(strings.TrimSpace(parts[2]), 64); err == nil && !math.IsNaN(v) && !math.IsInf(v, 0) {
			alt = v
		}
	}

	return domain.Coordinate{Latitude: lat, Longitude: lon, Altitude: alt}, true
}

// ParseCoordinateBlock parses a whitespace-separated list of tuples.
// Invalid tuples are dropped silently.
func ParseCoordinateBlock(text string) []domain.Coordinate {
	fields := strings.Fields(text)
	out := make([]domain.Coordinate, 0, len(fields))
	for _, f := range fields {
		if c, ok := ParseCoordinateLine(f); ok {
			out = append(out, c)
		}
	}
	return out
}

// FormatCoordinateBlock renders a path in KML tuple form, one tuple per line.
func FormatCoordinateBlock(path []domain.Coordinate) string {
	var b strings.Builder
	for i, c := range path {
		if i > 0 {
			b.WriteByte('\n')
		}
		b.WriteString(strconv.FormatFloat(c.Longitude, 'f', -1, 64))
		b.WriteByte(',')
		b.WriteString(strconv.FormatFloat(c.Latitude, 'f', -1, 64))
		b.WriteByte(',')
		b.WriteString(strconv.FormatFloat(c.Altitude, 'f', -1, 64))
	}
	return b.String()
}
