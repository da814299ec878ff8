package dto

import "field-route-service/internal/domain"

type CredentialsRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type SaveRouteRequest struct {
	Name        string              `json:"name"`
	Description string              `json:"description"`
	Zone        int                 `json:"zone"`
	Plan        string              `json:"plan"`
	Path        []domain.Coordinate `json:"path"`
	Stops       []domain.SyncedStop `json:"stops"`
	IsPublic    bool                `json:"is_public"`
}

type ListRoutesResponse struct {
	Routes []*domain.SyncedRoute `json:"routes"`
}

// UpdateRouteRequest carries the fields to change; absent fields are kept.
type UpdateRouteRequest struct {
	Name        *string              `json:"name"`
	Description *string              `json:"description"`
	IsPublic    *bool                `json:"is_public"`
	Path        *[]domain.Coordinate `json:"path"`
}
