package routing

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"googlemaps.github.io/maps"
)

func TestGoogleRouterRoute(t *testing.T) {
	line := maps.Encode([]maps.LatLng{{Lat: 45.06, Lng: 9.43}, {Lat: 45.07, Lng: 9.44}})

	var gotWaypoints string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotWaypoints = r.URL.Query().Get("waypoints")
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"status": "OK",
			"routes": []any{map[string]any{
				"overview_polyline": map[string]any{"points": line},
				"legs": []any{
					map[string]any{
						"distance": map[string]any{"value": 700, "text": "0.7 km"},
						"duration": map[string]any{"value": 60, "text": "1 min"},
					},
					map[string]any{
						"distance": map[string]any{"value": 300, "text": "0.3 km"},
						"duration": map[string]any{"value": 30, "text": "1 min"},
					},
				},
			}},
		})
	}))
	defer srv.Close()

	g, err := NewGoogleRouter("key", maps.WithBaseURL(srv.URL))
	if err != nil {
		t.Fatalf("NewGoogleRouter: %v", err)
	}

	path, err := g.Route(context.Background(), waypoints(30))
	if err != nil {
		t.Fatalf("Route: %v", err)
	}

	if n := len(strings.Split(gotWaypoints, "|")); n != MaxGoogleWaypoints-2 {
		t.Errorf("expected %d intermediate waypoints, got %d", MaxGoogleWaypoints-2, n)
	}
	if len(path.Coordinates) != 2 {
		t.Fatalf("expected 2 decoded points, got %d", len(path.Coordinates))
	}
	if path.DistanceMeters != 1000 || path.DurationSeconds != 90 {
		t.Errorf("totals = %v m / %v s", path.DistanceMeters, path.DurationSeconds)
	}
	if path.Provider != "google" {
		t.Errorf("provider = %q", path.Provider)
	}
}

func TestGoogleRouterNoRoute(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"status":"ZERO_RESULTS","routes":[]}`))
	}))
	defer srv.Close()

	g, _ := NewGoogleRouter("key", maps.WithBaseURL(srv.URL))
	if _, err := g.Route(context.Background(), waypoints(2)); err == nil {
		t.Fatal("expected error")
	}
}
