package kml

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"field-route-service/internal/domain"
	"field-route-service/internal/geo"
)

// Size thresholds. Documents above MaxTotalPoints are rejected.
const (
	LongRoutePoints    = 10000
	DenseRoutePoints   = 20000
	WarnTotalPoints    = 50000
	MaxTotalPoints     = 100000
	maxReportedIndices = 5
)

// Validate checks a parsed document for structural errors, coordinate
// defects and size limits. It never mutates doc.
func Validate(doc *domain.ParsedDocument) domain.ValidationResult {
	v := &validation{}
	if doc == nil {
		v.errorf("parsed document is missing")
		return v.result(domain.ValidationStats{})
	}

	v.structure(doc)
	v.routes(doc.Routes)
	v.stops(doc.Stops)
	stats := statsFor(doc)
	v.performance(doc.Routes, stats)

	return v.result(stats)
}

// ValidateRoute checks a single route in isolation.
func ValidateRoute(route *domain.Route) domain.RouteValidationResult {
	v := &validation{}
	var stats domain.RouteValidationStats

	switch {
	case route == nil:
		v.errorf("route is missing")
	case len(route.Path) < 2:
		v.errorf("route has %d points, need at least 2", len(route.Path))
		stats.PointCount = len(route.Path)
	default:
		if strings.TrimSpace(route.Name) == "" {
			v.warnf("route has no name")
		}
		stats.PointCount = len(route.Path)
		stats.ValidPoints = v.coordinates("Route", route.Path)
		if len(route.Path) > LongRoutePoints {
			v.warnf("route is very long (%d points)", len(route.Path))
		}
	}

	return domain.RouteValidationResult{
		IsValid:  len(v.errs) == 0,
		Errors:   v.errs,
		Warnings: v.warns,
		Stats:    stats,
	}
}

type validation struct {
	errs  []string
	warns []string
}

func (v *validation) errorf(format string, args ...any) {
	v.errs = append(v.errs, fmt.Sprintf(format, args...))
}

func (v *validation) warnf(format string, args ...any) {
	v.warns = append(v.warns, fmt.Sprintf(format, args...))
}

func (v *validation) result(stats domain.ValidationStats) domain.ValidationResult {
	errs, warns := v.errs, v.warns
	if errs == nil {
		errs = []string{}
	}
	if warns == nil {
		warns = []string{}
	}
	return domain.ValidationResult{
		IsValid:  len(errs) == 0,
		Errors:   errs,
		Warnings: warns,
		Stats:    stats,
	}
}

func (v *validation) structure(doc *domain.ParsedDocument) {
	if doc.Metadata == nil {
		v.errorf("document metadata is missing")
	} else if strings.TrimSpace(doc.Metadata.Name) == "" {
		v.warnf("document has no name")
	}

	switch {
	case doc.Routes == nil:
		v.errorf("routes are missing")
	case len(doc.Routes) == 0:
		v.errorf("no routes found in document")
	}
}

func (v *validation) routes(routes []*domain.Route) {
	for i, r := range routes {
		label := fmt.Sprintf("Route %d", i+1)
		if r == nil {
			v.errorf("%s: route is missing", label)
			continue
		}
		if strings.TrimSpace(r.Name) == "" {
			v.warnf("%s: route has no name", label)
		}
		if r.Path == nil {
			v.errorf("%s: path is missing", label)
			continue
		}
		if len(r.Path) < 2 {
			v.errorf("%s: path has %d points, need at least 2", label, len(r.Path))
			continue
		}

		v.coordinates(label, r.Path)

		if len(r.Path) > LongRoutePoints {
			v.warnf("%s: route is very long (%d points)", label, len(r.Path))
		}
	}
}

// coordinates reports invalid points and returns the number of valid ones.
func (v *validation) coordinates(label string, path []domain.Coordinate) int {
	var bad []int
	for i, c := range path {
		if !geo.IsValidLatLon(c.Latitude, c.Longitude) {
			bad = append(bad, i)
		}
	}
	valid := len(path) - len(bad)

	if valid == 0 {
		v.errorf("%s: no valid coordinates", label)
	} else if len(bad) > 0 {
		v.warnf("%s: %d invalid coordinates at indices %s", label, len(bad), formatIndices(bad))
	}
	if valid < 2 {
		v.errorf("%s: only %d valid coordinates, need at least 2", label, valid)
	}
	return valid
}

func (v *validation) stops(stops []*domain.Stop) {
	for i, s := range stops {
		label := fmt.Sprintf("Stop %d", i+1)
		if s == nil {
			v.errorf("%s: stop is missing", label)
			continue
		}
		if strings.TrimSpace(s.Name) == "" {
			v.warnf("%s: stop has no name", label)
		}
		if !s.HasPosition() {
			v.errorf("%s: invalid coordinates (%g, %g)", label, s.Latitude, s.Longitude)
		}
	}
}

func (v *validation) performance(routes []*domain.Route, stats domain.ValidationStats) {
	if stats.TotalPoints > WarnTotalPoints {
		v.warnf("document has many points (%d), rendering may be slow", stats.TotalPoints)
	}
	if stats.TotalPoints > MaxTotalPoints {
		v.errorf("document exceeds the size limit of %d points (%d)", MaxTotalPoints, stats.TotalPoints)
	}
	for i, r := range routes {
		if r != nil && len(r.Path) > DenseRoutePoints {
			v.warnf("Route %d: route is very dense (%d points)", i+1, len(r.Path))
		}
	}
}

func statsFor(doc *domain.ParsedDocument) domain.ValidationStats {
	stats := domain.ValidationStats{
		RouteCount: len(doc.Routes),
		StopCount:  len(doc.Stops),
	}
	for _, r := range doc.Routes {
		if r != nil && len(r.Path) >= 2 {
			stats.ValidRoutes++
			stats.TotalPoints += len(r.Path)
		}
	}
	if stats.RouteCount > 0 {
		stats.AveragePointsPerRoute = int(math.Round(float64(stats.TotalPoints) / float64(stats.RouteCount)))
	}
	return stats
}

func formatIndices(idx []int) string {
	n := min(len(idx), maxReportedIndices)
	parts := make([]string, n)
	for i := range n {
		parts[i] = strconv.Itoa(idx[i])
	}
	s := strings.Join(parts, ", ")
	if len(idx) > maxReportedIndices {
		s += "..."
	}
	return s
}
