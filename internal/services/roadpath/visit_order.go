package roadpath

import (
	"context"
	"fmt"
	"math"
	"time"

	"field-route-service/internal/domain"
	"field-route-service/internal/geo"
)

// VisitStop is one stop of a VisitPlan with the straight-line leg that
// reaches it.
type VisitStop struct {
	Stop      *domain.Stop `json:"stop"`
	LegMeters float64      `json:"leg_meters"`
	ArriveAt  time.Time    `json:"arrive_at"`
}

type VisitPlan struct {
	DepartAt             time.Time       `json:"depart_at"`
	Stops                []VisitStop     `json:"stops"`
	TotalDistanceMeters  float64         `json:"total_distance_meters"`
	TotalDurationSeconds float64         `json:"total_duration_seconds"`
	Path                 domain.RoadPath `json:"path"`
}

// NearestNeighborOrder orders stops greedily, always moving to the closest
// unvisited stop. Stops without a valid position are dropped. Ties go to
// the smaller id so the order is deterministic.
func NearestNeighborOrder(start domain.Coordinate, stops []*domain.Stop) []*domain.Stop {
	remaining := make([]*domain.Stop, 0, len(stops))
	for _, s := range stops {
		if s != nil && s.HasPosition() {
			remaining = append(remaining, s)
		}
	}

	ordered := make([]*domain.Stop, 0, len(remaining))
	current := start
	for len(remaining) > 0 {
		best := -1
		bestDist := math.Inf(1)
		for i, s := range remaining {
			d := geo.Haversine(current, s.Coordinate())
			if d < bestDist || (d == bestDist && s.ID < remaining[best].ID) {
				best, bestDist = i, d
			}
		}
		next := remaining[best]
		ordered = append(ordered, next)
		current = next.Coordinate()
		remaining = append(remaining[:best], remaining[best+1:]...)
	}
	return ordered
}

// PlanVisit orders stops from start and computes the road path through
// them. Arrival times assume speedKmh along each straight-line leg.
func (p *Planner) PlanVisit(ctx context.Context, start domain.Coordinate, stops []*domain.Stop, departAt time.Time, speedKmh float64) (*VisitPlan, error) {
	if !geo.IsValidLatLon(start.Latitude, start.Longitude) {
		return nil, &domain.FieldError{Field: "start", Reason: "out of range"}
	}
	if speedKmh <= 0 {
		return nil, &domain.FieldError{Field: "speed", Reason: "must be positive"}
	}

	ordered := NearestNeighborOrder(start, stops)
	plan := &VisitPlan{DepartAt: departAt, Stops: make([]VisitStop, 0, len(ordered))}
	if len(ordered) == 0 {
		return plan, nil
	}

	metersPerSecond := speedKmh * 1000 / 3600
	at := departAt
	current := start
	waypoints := []domain.Coordinate{start}
	for _, s := range ordered {
		leg := geo.Haversine(current, s.Coordinate())
		at = at.Add(time.Duration(leg / metersPerSecond * float64(time.Second)))
		plan.Stops = append(plan.Stops, VisitStop{Stop: s, LegMeters: math.Round(leg), ArriveAt: at})
		current = s.Coordinate()
		waypoints = append(waypoints, current)
	}

	path, err := p.Compute(ctx, waypoints)
	if err != nil {
		return nil, fmt.Errorf("plan visit: %w", err)
	}
	plan.Path = path
	plan.TotalDistanceMeters = path.DistanceMeters
	plan.TotalDurationSeconds = path.DurationSeconds
	if plan.TotalDurationSeconds == 0 {
		plan.TotalDurationSeconds = math.Round(at.Sub(departAt).Seconds())
	}
	return plan, nil
}
