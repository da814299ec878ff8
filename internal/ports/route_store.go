package ports

import (
	"context"
	"field-route-service/internal/domain"
)

// Port: remote storage for shared route records.
type RouteStore interface {
	SaveRoute(ctx context.Context, route *domain.SyncedRoute) error
	GetRoute(ctx context.Context, id string) (*domain.SyncedRoute, error)
	// Return the routes owned by userID, plus public ones when includePublic is set.
	ListRoutes(ctx context.Context, userID string, includePublic bool) ([]*domain.SyncedRoute, error)
	DeleteRoute(ctx context.Context, id string) error
}

// Port: remote account and session records.
type AccountStore interface {
	CreateAccount(ctx context.Context, acc *domain.Account) error
	AccountByEmail(ctx context.Context, email string) (*domain.Account, error)
	SaveSession(ctx context.Context, s domain.Session) error
	SessionByToken(ctx context.Context, token string) (*domain.Session, error)
	DeleteSession(ctx context.Context, token string) error
}
