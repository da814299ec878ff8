package kml

import (
	"strings"
	"testing"

	"field-route-service/internal/domain"
)

func line(n int) []domain.Coordinate {
	path := make([]domain.Coordinate, n)
	for i := range path {
		path[i] = domain.Coordinate{Latitude: 44.9 + float64(i%1000)*1e-5, Longitude: 9.5}
	}
	return path
}

func docWith(routes ...*domain.Route) *domain.ParsedDocument {
	return &domain.ParsedDocument{
		Metadata: &domain.DocumentMetadata{Name: "Zona 9 Sottozona B"},
		Routes:   routes,
		Stops:    []*domain.Stop{},
	}
}

func containsAny(list []string, sub string) bool {
	for _, s := range list {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}

func TestValidateStructure(t *testing.T) {
	res := Validate(nil)
	if res.IsValid || len(res.Errors) != 1 {
		t.Fatalf("nil document: %+v", res)
	}

	res = Validate(&domain.ParsedDocument{})
	if res.IsValid {
		t.Fatal("expected missing metadata and routes to be invalid")
	}
	if !containsAny(res.Errors, "metadata") || !containsAny(res.Errors, "routes are missing") {
		t.Fatalf("errors = %v", res.Errors)
	}

	doc := docWith(&domain.Route{Name: "a", Path: line(2)})
	doc.Metadata.Name = ""
	res = Validate(doc)
	if !res.IsValid {
		t.Fatalf("unnamed document should only warn, errors = %v", res.Errors)
	}
	if !containsAny(res.Warnings, "no name") {
		t.Fatalf("warnings = %v", res.Warnings)
	}
}

func TestValidateRoutes(t *testing.T) {
	bad := line(8)
	for i := 1; i < 8; i++ {
		bad[i].Latitude = 95
	}

	doc := docWith(
		nil,
		&domain.Route{Name: "", Path: line(3)},
		&domain.Route{Name: "short", Path: line(1)},
		&domain.Route{Name: "nil path"},
		&domain.Route{Name: "mostly bad", Path: bad},
	)
	res := Validate(doc)
	if res.IsValid {
		t.Fatal("expected invalid")
	}

	for _, want := range []string{"Route 1: route is missing", "Route 3: path has 1 points", "Route 4: path is missing", "Route 5: only 1 valid"} {
		if !containsAny(res.Errors, want) {
			t.Fatalf("missing error %q in %v", want, res.Errors)
		}
	}
	if !containsAny(res.Warnings, "Route 2: route has no name") {
		t.Fatalf("warnings = %v", res.Warnings)
	}
	if !containsAny(res.Warnings, "7 invalid coordinates at indices 1, 2, 3, 4, 5...") {
		t.Fatalf("warnings = %v", res.Warnings)
	}

	if res.Stats.RouteCount != 5 || res.Stats.ValidRoutes != 2 {
		t.Fatalf("stats = %+v", res.Stats)
	}
	if res.Stats.TotalPoints != 11 || res.Stats.AveragePointsPerRoute != 2 {
		t.Fatalf("stats = %+v", res.Stats)
	}
}

func TestValidateStops(t *testing.T) {
	doc := docWith(&domain.Route{Name: "a", Path: line(2)})
	doc.Stops = []*domain.Stop{
		{Name: "ok", Latitude: 44.9, Longitude: 9.5},
		{Name: "", Latitude: 44.9, Longitude: 9.5},
		{Name: "far", Latitude: 120, Longitude: 9.5},
		nil,
	}
	res := Validate(doc)
	if res.IsValid {
		t.Fatal("expected invalid")
	}
	if !containsAny(res.Errors, "Stop 3: invalid coordinates") || !containsAny(res.Errors, "Stop 4: stop is missing") {
		t.Fatalf("errors = %v", res.Errors)
	}
	if !containsAny(res.Warnings, "Stop 2: stop has no name") {
		t.Fatalf("warnings = %v", res.Warnings)
	}
	if res.Stats.StopCount != 4 {
		t.Fatalf("stop count = %d", res.Stats.StopCount)
	}
}

func TestValidateSizeLimits(t *testing.T) {
	res := Validate(docWith(&domain.Route{Name: "huge", Path: line(100001)}))
	if res.IsValid {
		t.Fatal("expected oversized document to be invalid")
	}
	if !containsAny(res.Errors, "size limit") {
		t.Fatalf("errors = %v", res.Errors)
	}
	for _, want := range []string{"many points", "very long", "very dense"} {
		if !containsAny(res.Warnings, want) {
			t.Fatalf("missing warning %q in %v", want, res.Warnings)
		}
	}

	res = Validate(docWith(&domain.Route{Name: "big", Path: line(60000)}))
	if !res.IsValid {
		t.Fatalf("60000 points should only warn, errors = %v", res.Errors)
	}
}

func TestValidateInvalidPointNeverHelps(t *testing.T) {
	paths := [][]domain.Coordinate{line(1), line(2), line(5)}
	for _, p := range paths {
		before := Validate(docWith(&domain.Route{Name: "r", Path: p}))

		extended := append(append([]domain.Coordinate{}, p...), domain.Coordinate{Latitude: 200, Longitude: 9})
		after := Validate(docWith(&domain.Route{Name: "r", Path: extended}))

		if !before.IsValid && after.IsValid {
			t.Fatalf("adding an invalid point made a %d-point route valid", len(p))
		}
	}
}

func TestValidateRoute(t *testing.T) {
	res := ValidateRoute(&domain.Route{Name: "r", Path: line(4)})
	if !res.IsValid || res.Stats.ValidPoints != 4 {
		t.Fatalf("res = %+v", res)
	}

	res = ValidateRoute(nil)
	if res.IsValid {
		t.Fatal("expected nil route to be invalid")
	}
}

func TestReport(t *testing.T) {
	res := Validate(docWith(&domain.Route{Name: "short", Path: line(1)}))
	out := Report("Zona9_SottozonaB.kml", res)
	for _, want := range []string{"Zona9_SottozonaB.kml", "INVALID", "Errors (", "path has 1 points"} {
		if !strings.Contains(out, want) {
			t.Fatalf("report missing %q:\n%s", want, out)
		}
	}
}

func TestToGeoJSON(t *testing.T) {
	doc := docWith(&domain.Route{ID: "r1", Name: "r", Path: line(3), PointCount: 3}, &domain.Route{Name: "short", Path: line(1)})
	doc.Stops = []*domain.Stop{{ID: "7", Name: "Bar", Latitude: 44.9, Longitude: 9.5}}

	fc := ToGeoJSON(doc)
	if len(fc.Features) != 2 {
		t.Fatalf("expected 2 features, got %d", len(fc.Features))
	}
	if fc.Features[0].Geometry.GeoJSONType() != "LineString" {
		t.Fatalf("first feature = %s", fc.Features[0].Geometry.GeoJSONType())
	}
	if fc.Features[1].Properties["name"] != "Bar" {
		t.Fatalf("stop feature = %+v", fc.Features[1].Properties)
	}
}
