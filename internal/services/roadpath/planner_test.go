package roadpath

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"math"
	"testing"

	"field-route-service/internal/adapters/routing"
	"field-route-service/internal/domain"
	"field-route-service/internal/geo"
)

func testLogger() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

var wps = []domain.Coordinate{
	{Latitude: 45.0597, Longitude: 9.4353},
	{Latitude: 45.0612, Longitude: 9.4398},
	{Latitude: 45.0630, Longitude: 9.4420},
}

func TestComputeUsesRouter(t *testing.T) {
	road := []domain.Coordinate{wps[0], {Latitude: 45.0605, Longitude: 9.4370}, wps[2]}
	router := routing.NewMockRouter(road, 900)

	p := NewPlanner(router, testLogger())
	path, err := p.Compute(context.Background(), wps)
	if err != nil {
		t.Fatalf("Compute: %v", err)
	}
	if path.Fallback {
		t.Fatal("did not expect fallback")
	}
	if path.DistanceMeters != 900 || len(path.Coordinates) != 3 {
		t.Fatalf("unexpected path %+v", path)
	}
	if router.Calls != 1 {
		t.Fatalf("expected 1 router call, got %d", router.Calls)
	}
}

func TestComputeFallsBack(t *testing.T) {
	tests := []struct {
		name   string
		router *routing.MockRouter
	}{
		{"error", &routing.MockRouter{Err: errors.New("upstream 503")}},
		{"empty path", &routing.MockRouter{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := NewPlanner(tt.router, testLogger())
			path, err := p.Compute(context.Background(), wps)
			if err != nil {
				t.Fatalf("Compute: %v", err)
			}
			assertStraight(t, path)
		})
	}
}

func TestComputeWithoutRouter(t *testing.T) {
	p := NewPlanner(nil, testLogger())
	if p.Provider() != StraightLine {
		t.Fatalf("provider = %q", p.Provider())
	}
	path, err := p.Compute(context.Background(), wps)
	if err != nil {
		t.Fatalf("Compute: %v", err)
	}
	assertStraight(t, path)
}

func TestComputeRejectsBadInput(t *testing.T) {
	p := NewPlanner(nil, testLogger())

	if _, err := p.Compute(context.Background(), wps[:1]); !domain.IsFieldError(err) {
		t.Fatalf("expected FieldError for one waypoint, got %v", err)
	}
	bad := []domain.Coordinate{wps[0], {Latitude: 91, Longitude: 0}}
	if _, err := p.Compute(context.Background(), bad); !domain.IsFieldError(err) {
		t.Fatalf("expected FieldError for out of range point, got %v", err)
	}
}

func assertStraight(t *testing.T, path domain.RoadPath) {
	t.Helper()
	if !path.Fallback || path.Provider != StraightLine {
		t.Fatalf("expected straight-line fallback, got %+v", path)
	}
	if len(path.Coordinates) != len(wps) {
		t.Fatalf("expected %d points, got %d", len(wps), len(path.Coordinates))
	}
	want := geo.PathLength(wps)
	if math.Abs(path.DistanceMeters-want) > 1e-6 {
		t.Fatalf("distance = %v, want %v", path.DistanceMeters, want)
	}
}
