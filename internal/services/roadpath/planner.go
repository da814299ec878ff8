package roadpath

import (
	"context"
	"fmt"
	"log/slog"

	"field-route-service/internal/domain"
	"field-route-service/internal/geo"
	"field-route-service/internal/platform/obs"
	"field-route-service/internal/platform/report"
	"field-route-service/internal/ports"
)

// StraightLine is the provider name of fallback paths.
const StraightLine = "straight_line"

// Planner turns waypoints into a road-following path. Provider failures
// never surface to the caller: the waypoints themselves are returned as a
// straight-line path flagged Fallback.
type Planner struct {
	router ports.RoadRouter
	logger *slog.Logger
}

// NewPlanner accepts a nil router, in which case every path is a fallback.
func NewPlanner(router ports.RoadRouter, logger *slog.Logger) *Planner {
	if logger == nil {
		logger = slog.Default()
	}
	return &Planner{router: router, logger: logger}
}

func (p *Planner) Provider() string {
	if p.router == nil {
		return StraightLine
	}
	return p.router.Name()
}

// Compute returns the road path through waypoints. Only invalid input is
// reported as an error.
func (p *Planner) Compute(ctx context.Context, waypoints []domain.Coordinate) (_ domain.RoadPath, err error) {
	defer obs.Time(ctx, "roadpath.Compute")(&err)

	if len(waypoints) < 2 {
		return domain.RoadPath{}, &domain.FieldError{Field: "waypoints", Reason: fmt.Sprintf("need at least 2, got %d", len(waypoints))}
	}
	for i, w := range waypoints {
		if !geo.IsValidLatLon(w.Latitude, w.Longitude) {
			return domain.RoadPath{}, &domain.FieldError{Field: "waypoints", Reason: fmt.Sprintf("point %d is out of range", i)}
		}
	}

	if p.router == nil {
		return straight(waypoints), nil
	}

	path, rerr := p.router.Route(ctx, waypoints)
	if rerr == nil && len(path.Coordinates) >= 2 {
		return path, nil
	}
	if rerr == nil {
		rerr = fmt.Errorf("%s returned %d points", p.router.Name(), len(path.Coordinates))
	}

	provider := p.router.Name()
	obs.RoadPathFallbacks.WithLabelValues(provider).Inc()
	p.logger.Warn("road routing failed, using straight line", "provider", provider, "waypoints", len(waypoints), "err", rerr)
	report.Warning(fmt.Errorf("road path via %s: %w", provider, rerr), map[string]string{"provider": provider})

	return straight(waypoints), nil
}

func straight(waypoints []domain.Coordinate) domain.RoadPath {
	coords := make([]domain.Coordinate, len(waypoints))
	copy(coords, waypoints)
	return domain.RoadPath{
		Coordinates:    coords,
		DistanceMeters: geo.PathLength(coords),
		Fallback:       true,
		Provider:       StraightLine,
	}
}
