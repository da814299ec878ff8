package ports

import (
	"context"
	"field-route-service/internal/domain"
)

// Port: a third-party service that snaps waypoints to roads.
type RoadRouter interface {
	// Return the road-following path through waypoints.
	Route(ctx context.Context, waypoints []domain.Coordinate) (domain.RoadPath, error)
	// Provider name used in logs and metrics.
	Name() string
}

// Port: persistent memo of computed road paths, keyed by a waypoint digest.
type RoadPathCache interface {
	Get(ctx context.Context, key string) (_ domain.RoadPath, ok bool, err error)
	Put(ctx context.Context, key string, path domain.RoadPath) error
}
