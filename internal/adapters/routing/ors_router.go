package routing

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"

	"field-route-service/internal/domain"
	"field-route-service/internal/platform/obs"
	"field-route-service/internal/ports"
)

// MaxORSWaypoints is the most waypoints sent in one directions request.
const MaxORSWaypoints = 50

// ORSRouter implements RoadRouter using the OpenRouteService directions
// API. Responses are memoized in an optional persistent cache.
//
// The router is safe for concurrent use.
type ORSRouter struct {
	session     *http.Client
	apiKey      string
	baseURL     string
	profile     string
	cache       ports.RoadPathCache
	logger      *slog.Logger
	maxAttempts int
	backoff     time.Duration
}

type ORSOption func(*ORSRouter)

// WithBaseURL points the router at another ORS deployment.
func WithBaseURL(u string) ORSOption { return func(o *ORSRouter) { o.baseURL = u } }

func WithProfile(p string) ORSOption { return func(o *ORSRouter) { o.profile = p } }

func WithCache(c ports.RoadPathCache) ORSOption { return func(o *ORSRouter) { o.cache = c } }

func WithHTTPClient(c *http.Client) ORSOption { return func(o *ORSRouter) { o.session = c } }

func WithLogger(l *slog.Logger) ORSOption { return func(o *ORSRouter) { o.logger = l } }

// WithRetry sets the attempt count and initial backoff.
func WithRetry(attempts int, backoff time.Duration) ORSOption {
	return func(o *ORSRouter) { o.maxAttempts, o.backoff = attempts, backoff }
}

func NewORSRouter(apiKey string, opts ...ORSOption) (*ORSRouter, error) {
	if apiKey == "" {
		return nil, errors.New("ORS api key is empty")
	}

	o := &ORSRouter{
		session:     &http.Client{Timeout: 10 * time.Second},
		apiKey:      apiKey,
		baseURL:     "https://api.openrouteservice.org",
		profile:     "driving-car",
		logger:      slog.Default(),
		maxAttempts: 4,
		backoff:     200 * time.Millisecond,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o, nil
}

var _ ports.RoadRouter = (*ORSRouter)(nil)

func (o *ORSRouter) Name() string { return "ors" }

type directionsRequest struct {
	Coordinates [][]float64 `json:"coordinates"`
}

type directionsSummary struct {
	Distance float64 `json:"distance"`
	Duration float64 `json:"duration"`
}

// Route returns the road path through waypoints, decimated to
// MaxORSWaypoints.
func (o *ORSRouter) Route(ctx context.Context, waypoints []domain.Coordinate) (_ domain.RoadPath, err error) {
	defer obs.Time(ctx, "ors.Route")(&err)

	if len(waypoints) < 2 {
		return domain.RoadPath{}, &domain.FieldError{Field: "waypoints", Reason: "need at least 2"}
	}

	points := Decimate(waypoints, MaxORSWaypoints)
	key := o.cacheKey(points)

	if o.cache != nil {
		if p, ok, err := o.cache.Get(ctx, key); err != nil {
			o.logger.Warn("road path cache read failed", "err", err)
		} else if ok {
			return p, nil
		}
	}

	path, err := o.fetchDirections(ctx, points)
	if err != nil {
		return domain.RoadPath{}, err
	}

	if o.cache != nil {
		if err := o.cache.Put(ctx, key, path); err != nil {
			o.logger.Warn("road path cache write failed", "err", err)
		}
	}
	return path, nil
}

func (o *ORSRouter) fetchDirections(ctx context.Context, points []domain.Coordinate) (domain.RoadPath, error) {
	endpoint := fmt.Sprintf("%s/v2/directions/%s/geojson", o.baseURL, o.profile)

	body := directionsRequest{Coordinates: make([][]float64, 0, len(points))}
	for _, p := range points {
		body.Coordinates = append(body.Coordinates, p.CoordsToList())
	}
	payload, err := json.Marshal(body)
	if err != nil {
		return domain.RoadPath{}, fmt.Errorf("marshal directions request: %w", err)
	}

	raw, err := o.postDirections(ctx, endpoint, payload)
	if err != nil {
		return domain.RoadPath{}, fmt.Errorf("directions request failed: %w", err)
	}

	fc, err := geojson.UnmarshalFeatureCollection(raw)
	if err != nil {
		return domain.RoadPath{}, fmt.Errorf("decode directions response: %w", err)
	}
	if len(fc.Features) == 0 {
		return domain.RoadPath{}, errors.New("directions response has no route")
	}

	f := fc.Features[0]
	ls, ok := f.Geometry.(orb.LineString)
	if !ok || len(ls) < 2 {
		return domain.RoadPath{}, fmt.Errorf("directions geometry is %T, want a LineString", f.Geometry)
	}

	coords := make([]domain.Coordinate, 0, len(ls))
	for _, pt := range ls {
		coords = append(coords, domain.Coordinate{Latitude: pt.Lat(), Longitude: pt.Lon()})
	}

	var summary directionsSummary
	if s, ok := f.Properties["summary"]; ok {
		b, _ := json.Marshal(s)
		_ = json.Unmarshal(b, &summary)
	}

	return domain.RoadPath{
		Coordinates:     coords,
		DistanceMeters:  summary.Distance,
		DurationSeconds: summary.Duration,
		Provider:        o.Name(),
	}, nil
}

func (o *ORSRouter) cacheKey(points []domain.Coordinate) string {
	h := sha256.New()
	h.Write([]byte(o.profile))
	for _, p := range points {
		h.Write([]byte("|"))
		h.Write(strconv.AppendFloat(nil, p.Latitude, 'f', 6, 64))
		h.Write([]byte(","))
		h.Write(strconv.AppendFloat(nil, p.Longitude, 'f', 6, 64))
	}
	return "ors:" + hex.EncodeToString(h.Sum(nil))
}

// Decimate keeps at most max points, evenly spaced, always including the
// first and last.
func Decimate(points []domain.Coordinate, max int) []domain.Coordinate {
	if max < 2 || len(points) <= max {
		return points
	}
	out := make([]domain.Coordinate, 0, max)
	step := float64(len(points)-1) / float64(max-1)
	for i := 0; i < max-1; i++ {
		out = append(out, points[int(float64(i)*step)])
	}
	return append(out, points[len(points)-1])
}
