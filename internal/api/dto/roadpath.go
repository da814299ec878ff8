package dto

import "field-route-service/internal/domain"

type RoadPathRequest struct {
	Waypoints []domain.Coordinate `json:"waypoints"`
}
