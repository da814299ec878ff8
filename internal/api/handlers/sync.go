package handlers

import (
	"net/http"

	"field-route-service/internal/api/dto"
	"field-route-service/internal/domain"
	"field-route-service/internal/services/remotesync"
)

// SyncHandler exposes remote route sharing. Route endpoints require a
// bearer session token.
type SyncHandler struct {
	Sync *remotesync.Service
}

func (h *SyncHandler) SignUp(w http.ResponseWriter, r *http.Request) {
	var req dto.CredentialsRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	sess, err := h.Sync.SignUp(r.Context(), req.Email, req.Password)
	if err != nil {
		writeServiceError(w, r, "sign up", err)
		return
	}
	writeJSON(w, r, http.StatusCreated, sess)
}

func (h *SyncHandler) SignIn(w http.ResponseWriter, r *http.Request) {
	var req dto.CredentialsRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	sess, err := h.Sync.SignIn(r.Context(), req.Email, req.Password)
	if err != nil {
		writeServiceError(w, r, "sign in", err)
		return
	}
	writeJSON(w, r, http.StatusOK, sess)
}

func (h *SyncHandler) SignOut(w http.ResponseWriter, r *http.Request) {
	if err := h.Sync.SignOut(r.Context(), bearerToken(r)); err != nil {
		writeServiceError(w, r, "sign out", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ListRoutes returns the caller's routes, plus public ones with ?public=true.
func (h *SyncHandler) ListRoutes(w http.ResponseWriter, r *http.Request) {
	routes, err := h.Sync.GetRoutes(r.Context(), bearerToken(r), r.URL.Query().Get("public") == "true")
	if err != nil {
		writeServiceError(w, r, "list routes", err)
		return
	}
	if routes == nil {
		routes = []*domain.SyncedRoute{}
	}
	writeJSON(w, r, http.StatusOK, dto.ListRoutesResponse{Routes: routes})
}

func (h *SyncHandler) GetRoute(w http.ResponseWriter, r *http.Request) {
	route, err := h.Sync.GetRoute(r.Context(), bearerToken(r), param(r, "id"))
	if err != nil {
		writeServiceError(w, r, "get route", err)
		return
	}
	writeJSON(w, r, http.StatusOK, route)
}

func (h *SyncHandler) SaveRoute(w http.ResponseWriter, r *http.Request) {
	var req dto.SaveRouteRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	route, err := h.Sync.SaveRoute(r.Context(), bearerToken(r), domain.SyncedRoute{
		Name:        req.Name,
		Description: req.Description,
		ZoneID:      req.Zone,
		Plan:        domain.Plan(req.Plan),
		Path:        req.Path,
		Stops:       req.Stops,
		IsPublic:    req.IsPublic,
	})
	if err != nil {
		writeServiceError(w, r, "save route", err)
		return
	}
	writeJSON(w, r, http.StatusCreated, route)
}

func (h *SyncHandler) DeleteRoute(w http.ResponseWriter, r *http.Request) {
	if err := h.Sync.DeleteRoute(r.Context(), bearerToken(r), param(r, "id")); err != nil {
		writeServiceError(w, r, "delete route", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *SyncHandler) UpdateRoute(w http.ResponseWriter, r *http.Request) {
	var req dto.UpdateRouteRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	route, err := h.Sync.UpdateRoute(r.Context(), bearerToken(r), param(r, "id"), remotesync.RoutePatch{
		Name:        req.Name,
		Description: req.Description,
		IsPublic:    req.IsPublic,
		Path:        req.Path,
	})
	if err != nil {
		writeServiceError(w, r, "update route", err)
		return
	}
	writeJSON(w, r, http.StatusOK, route)
}

func (h *SyncHandler) AddStop(w http.ResponseWriter, r *http.Request) {
	var stop domain.SyncedStop
	if !decodeJSON(w, r, &stop) {
		return
	}
	route, err := h.Sync.AddStopToRoute(r.Context(), bearerToken(r), param(r, "id"), stop)
	if err != nil {
		writeServiceError(w, r, "add route stop", err)
		return
	}
	writeJSON(w, r, http.StatusOK, route)
}

func (h *SyncHandler) RemoveStop(w http.ResponseWriter, r *http.Request) {
	route, err := h.Sync.RemoveStopFromRoute(r.Context(), bearerToken(r), param(r, "id"), param(r, "stop_id"))
	if err != nil {
		writeServiceError(w, r, "remove route stop", err)
		return
	}
	writeJSON(w, r, http.StatusOK, route)
}
