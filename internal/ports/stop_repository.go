package ports

import (
	"context"
	"field-route-service/internal/domain"
)

// Port: persistent stop records partitioned by zone/plan.
type StopRepository interface {
	// Validate and insert a stop, returning it with its storage id.
	InsertStop(ctx context.Context, stop *domain.Stop) (*domain.Stop, error)
	// Return the stops of one zone/plan ordered by name.
	StopsByZone(ctx context.Context, key domain.ZoneKey) ([]*domain.Stop, error)
	// Return every stop flagged as manual.
	ManualStops(ctx context.Context) ([]*domain.Stop, error)
	GetStop(ctx context.Context, id string) (*domain.Stop, error)
	UpdateStop(ctx context.Context, stop *domain.Stop) error
	DeleteStop(ctx context.Context, id string) error
}
