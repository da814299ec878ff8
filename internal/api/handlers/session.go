package handlers

import (
	"net/http"
	"time"

	"field-route-service/internal/api/dto"
	"field-route-service/internal/domain"
	"field-route-service/internal/services/coordinator"
	"field-route-service/internal/services/manualstops"
)

// SessionHandler drives the live field session: location, manual stops
// and navigation selection.
type SessionHandler struct {
	Coordinator *coordinator.Coordinator
}

func (h *SessionHandler) Stats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.Coordinator.Stats(r.Context())
	if err != nil {
		writeServiceError(w, r, "stats", err)
		return
	}
	writeJSON(w, r, http.StatusOK, stats)
}

func (h *SessionHandler) Export(w http.ResponseWriter, r *http.Request) {
	body, err := h.Coordinator.Export(r.Context())
	if err != nil {
		writeServiceError(w, r, "export", err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Content-Disposition", `attachment; filename="session-export.json"`)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(body)
}

func (h *SessionHandler) Reset(w http.ResponseWriter, r *http.Request) {
	h.Coordinator.Reset()
	w.WriteHeader(http.StatusNoContent)
}

func (h *SessionHandler) Location(w http.ResponseWriter, r *http.Request) {
	var req dto.LocationRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	res := h.Coordinator.UpdateUserLocation(domain.Fix{
		Latitude:  req.Latitude,
		Longitude: req.Longitude,
		Accuracy:  req.Accuracy,
		Timestamp: req.Timestamp,
	})
	writeJSON(w, r, http.StatusOK, res)
}

func (h *SessionHandler) AddManualStop(w http.ResponseWriter, r *http.Request) {
	var req dto.ManualStopRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	stop, err := h.Coordinator.AddManualStop(manualstops.Input{
		Name:        req.Name,
		Description: req.Description,
		Latitude:    req.Latitude,
		Longitude:   req.Longitude,
		Zone:        req.Zone,
		Plan:        req.Plan,
	})
	if err != nil {
		writeServiceError(w, r, "add manual stop", err)
		return
	}
	writeJSON(w, r, http.StatusCreated, stop)
}

func (h *SessionHandler) RemoveManualStop(w http.ResponseWriter, r *http.Request) {
	if !h.Coordinator.RemoveManualStop(param(r, "id")) {
		writeError(w, r, http.StatusNotFound, "manual stop not found")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *SessionHandler) Select(w http.ResponseWriter, r *http.Request) {
	var req dto.SelectionRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	info, err := h.Coordinator.SelectStop(req.StopID)
	if err != nil {
		writeServiceError(w, r, "select stop", err)
		return
	}
	writeJSON(w, r, http.StatusOK, map[string]any{"stop_id": req.StopID, "navigation": info})
}

func (h *SessionHandler) Deselect(w http.ResponseWriter, r *http.Request) {
	h.Coordinator.DeselectStop()
	w.WriteHeader(http.StatusNoContent)
}

func (h *SessionHandler) PlanVisit(w http.ResponseWriter, r *http.Request) {
	var req dto.VisitPlanRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	var depart time.Time
	if req.DepartAt != nil {
		depart = *req.DepartAt
	}
	plan, err := h.Coordinator.PlanVisit(r.Context(), depart)
	if err != nil {
		writeServiceError(w, r, "plan visit", err)
		return
	}
	writeJSON(w, r, http.StatusOK, plan)
}
