package routing

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"googlemaps.github.io/maps"

	"field-route-service/internal/domain"
	"field-route-service/internal/platform/obs"
	"field-route-service/internal/ports"
)

// MaxGoogleWaypoints bounds origin + intermediate waypoints + destination.
const MaxGoogleWaypoints = 25

// GoogleRouter implements RoadRouter with the Google Directions API.
type GoogleRouter struct {
	client *maps.Client
	mode   maps.Mode
}

// NewGoogleRouter creates a router with the given API key. Extra client
// options (e.g. maps.WithBaseURL) are passed through.
func NewGoogleRouter(apiKey string, opts ...maps.ClientOption) (*GoogleRouter, error) {
	if apiKey == "" {
		return nil, errors.New("google maps api key is empty")
	}
	client, err := maps.NewClient(append([]maps.ClientOption{maps.WithAPIKey(apiKey)}, opts...)...)
	if err != nil {
		return nil, fmt.Errorf("failed to create maps client: %w", err)
	}
	return &GoogleRouter{client: client, mode: maps.TravelModeDriving}, nil
}

var _ ports.RoadRouter = (*GoogleRouter)(nil)

func (g *GoogleRouter) Name() string { return "google" }

func (g *GoogleRouter) Route(ctx context.Context, waypoints []domain.Coordinate) (_ domain.RoadPath, err error) {
	defer obs.Time(ctx, "google.Route")(&err)

	if len(waypoints) < 2 {
		return domain.RoadPath{}, &domain.FieldError{Field: "waypoints", Reason: "need at least 2"}
	}

	points := Decimate(waypoints, MaxGoogleWaypoints)
	r := &maps.DirectionsRequest{
		Origin:      latLng(points[0]),
		Destination: latLng(points[len(points)-1]),
		Mode:        g.mode,
	}
	for _, p := range points[1 : len(points)-1] {
		r.Waypoints = append(r.Waypoints, latLng(p))
	}

	routes, _, err := g.client.Directions(ctx, r)
	if err != nil {
		return domain.RoadPath{}, fmt.Errorf("maps api error: %w", err)
	}
	if len(routes) == 0 {
		return domain.RoadPath{}, errors.New("no route found")
	}

	route := routes[0]
	decoded, err := route.OverviewPolyline.Decode()
	if err != nil {
		return domain.RoadPath{}, fmt.Errorf("decode overview polyline: %w", err)
	}

	path := domain.RoadPath{
		Coordinates: make([]domain.Coordinate, 0, len(decoded)),
		Provider:    g.Name(),
	}
	for _, ll := range decoded {
		path.Coordinates = append(path.Coordinates, domain.Coordinate{Latitude: ll.Lat, Longitude: ll.Lng})
	}
	for _, leg := range route.Legs {
		path.DistanceMeters += float64(leg.Distance.Meters)
		path.DurationSeconds += leg.Duration.Seconds()
	}
	return path, nil
}

func latLng(c domain.Coordinate) string {
	return strconv.FormatFloat(c.Latitude, 'f', 6, 64) + "," + strconv.FormatFloat(c.Longitude, 'f', 6, 64)
}
