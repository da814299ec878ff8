package routing

import (
	"context"
	"errors"

	"field-route-service/internal/domain"
)

// MockRouter returns a fixed path or error and counts calls.
type MockRouter struct {
	Path  domain.RoadPath
	Err   error
	Calls int
}

func NewMockRouter(path []domain.Coordinate, meters float64) *MockRouter {
	return &MockRouter{Path: domain.RoadPath{Coordinates: path, DistanceMeters: meters, Provider: "mock"}}
}

func (m *MockRouter) Name() string { return "mock" }

func (m *MockRouter) Route(ctx context.Context, waypoints []domain.Coordinate) (domain.RoadPath, error) {
	m.Calls++
	if err := ctx.Err(); err != nil {
		return domain.RoadPath{}, err
	}
	if m.Err != nil {
		return domain.RoadPath{}, m.Err
	}
	if len(waypoints) < 2 {
		return domain.RoadPath{}, errors.New("need at least 2 waypoints")
	}
	return m.Path, nil
}
