package handlers

import (
	"net/http"

	"field-route-service/internal/api/dto"
	"field-route-service/internal/services/roadpath"
)

type RoadPathHandler struct {
	Planner *roadpath.Planner
}

// Compute returns a road-following path through the requested waypoints,
// or the straight line when the router is unavailable.
func (h *RoadPathHandler) Compute(w http.ResponseWriter, r *http.Request) {
	var req dto.RoadPathRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	path, err := h.Planner.Compute(r.Context(), req.Waypoints)
	if err != nil {
		writeServiceError(w, r, "road path", err)
		return
	}
	writeJSON(w, r, http.StatusOK, path)
}
