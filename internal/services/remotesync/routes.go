package remotesync

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"github.com/google/uuid"

	"field-route-service/internal/domain"
	"field-route-service/internal/geo"
	"field-route-service/internal/platform/obs"
)

// RoutePatch holds the fields UpdateRoute may change; nil means unchanged.
type RoutePatch struct {
	Name        *string
	Description *string
	IsPublic    *bool
	Path        *[]domain.Coordinate
}

// SaveRoute stores a new route owned by the session user.
func (s *Service) SaveRoute(ctx context.Context, token string, route domain.SyncedRoute) (_ *domain.SyncedRoute, err error) {
	defer obs.Time(ctx, "sync.SaveRoute")(&err)

	sess, err := s.Authenticate(ctx, token)
	if err != nil {
		return nil, err
	}
	if err := validateRoute(&route); err != nil {
		return nil, err
	}

	now := s.now()
	route.ID = uuid.NewString()
	route.UserID = sess.UserID
	route.CreatedAt, route.UpdatedAt = now, now
	if route.Stops == nil {
		route.Stops = []domain.SyncedStop{}
	}

	if err := s.routes.SaveRoute(ctx, &route); err != nil {
		return nil, fmt.Errorf("save route: %w", err)
	}
	s.logger.Info("route synced", "route_id", route.ID, "user_id", sess.UserID)
	return &route, nil
}

// GetRoutes lists the session user's routes, plus public ones when
// includePublic is set.
func (s *Service) GetRoutes(ctx context.Context, token string, includePublic bool) ([]*domain.SyncedRoute, error) {
	sess, err := s.Authenticate(ctx, token)
	if err != nil {
		return nil, err
	}
	routes, err := s.routes.ListRoutes(ctx, sess.UserID, includePublic)
	if err != nil {
		return nil, fmt.Errorf("get routes: %w", err)
	}
	return routes, nil
}

// GetRoute returns a route the session user owns or that is public.
func (s *Service) GetRoute(ctx context.Context, token, id string) (*domain.SyncedRoute, error) {
	sess, err := s.Authenticate(ctx, token)
	if err != nil {
		return nil, err
	}
	r, err := s.routes.GetRoute(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get route: %w", err)
	}
	if r.UserID != sess.UserID && !r.IsPublic {
		return nil, fmt.Errorf("get route %s: %w", id, domain.ErrNotFound)
	}
	return r, nil
}

func (s *Service) UpdateRoute(ctx context.Context, token, id string, p RoutePatch) (*domain.SyncedRoute, error) {
	return s.mutate(ctx, token, id, func(r *domain.SyncedRoute) error {
		if p.Name != nil {
			r.Name = *p.Name
		}
		if p.Description != nil {
			r.Description = *p.Description
		}
		if p.IsPublic != nil {
			r.IsPublic = *p.IsPublic
		}
		if p.Path != nil {
			r.Path = *p.Path
		}
		return validateRoute(r)
	})
}

// DeleteRoute removes a route owned by the session user.
func (s *Service) DeleteRoute(ctx context.Context, token, id string) error {
	if _, err := s.owned(ctx, token, id); err != nil {
		return err
	}
	if err := s.routes.DeleteRoute(ctx, id); err != nil {
		return fmt.Errorf("delete route: %w", err)
	}
	return nil
}

func (s *Service) AddStopToRoute(ctx context.Context, token, routeID string, stop domain.SyncedStop) (*domain.SyncedRoute, error) {
	return s.mutate(ctx, token, routeID, func(r *domain.SyncedRoute) error {
		if strings.TrimSpace(stop.Name) == "" {
			return &domain.FieldError{Field: "name", Reason: "must not be empty"}
		}
		if !geo.IsValidLatLon(stop.Latitude, stop.Longitude) {
			return &domain.FieldError{Field: "latitude", Reason: "stop coordinates are out of range"}
		}
		if stop.ID == "" {
			stop.ID = uuid.NewString()
		}
		r.Stops = append(r.Stops, stop)
		return nil
	})
}

func (s *Service) RemoveStopFromRoute(ctx context.Context, token, routeID, stopID string) (*domain.SyncedRoute, error) {
	return s.mutate(ctx, token, routeID, func(r *domain.SyncedRoute) error {
		i := slices.IndexFunc(r.Stops, func(st domain.SyncedStop) bool { return st.ID == stopID })
		if i < 0 {
			return fmt.Errorf("stop %s: %w", stopID, domain.ErrNotFound)
		}
		r.Stops = slices.Delete(r.Stops, i, i+1)
		return nil
	})
}

// mutate applies fn to an owned route and saves it.
func (s *Service) mutate(ctx context.Context, token, id string, fn func(*domain.SyncedRoute) error) (_ *domain.SyncedRoute, err error) {
	defer obs.Time(ctx, "sync.UpdateRoute")(&err)

	r, err := s.owned(ctx, token, id)
	if err != nil {
		return nil, err
	}
	if err := fn(r); err != nil {
		return nil, err
	}
	r.UpdatedAt = s.now()
	if err := s.routes.SaveRoute(ctx, r); err != nil {
		return nil, fmt.Errorf("update route %s: %w", id, err)
	}
	return r, nil
}

// owned returns route id when the session user owns it. Other users'
// routes are reported as not found.
func (s *Service) owned(ctx context.Context, token, id string) (*domain.SyncedRoute, error) {
	sess, err := s.Authenticate(ctx, token)
	if err != nil {
		return nil, err
	}
	r, err := s.routes.GetRoute(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("route %s: %w", id, err)
	}
	if r.UserID != sess.UserID {
		return nil, fmt.Errorf("route %s: %w", id, domain.ErrNotFound)
	}
	return r, nil
}

func validateRoute(r *domain.SyncedRoute) error {
	if strings.TrimSpace(r.Name) == "" {
		return &domain.FieldError{Field: "name", Reason: "must not be empty"}
	}
	key, err := domain.NewZoneKey(r.ZoneID, string(r.Plan))
	if err != nil {
		return err
	}
	r.Plan = key.Plan
	for i, c := range r.Path {
		if !geo.IsValidLatLon(c.Latitude, c.Longitude) {
			return &domain.FieldError{Field: "path", Reason: fmt.Sprintf("point %d is out of range", i)}
		}
	}
	return nil
}
