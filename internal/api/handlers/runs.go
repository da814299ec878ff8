package handlers

import (
	"net/http"

	"field-route-service/internal/api/dto"
	"field-route-service/internal/domain"
	"field-route-service/internal/services/runs"
)

// RunHandler exposes the run lifecycle.
type RunHandler struct {
	Runs *runs.Service
}

func (h *RunHandler) Start(w http.ResponseWriter, r *http.Request) {
	var req dto.StartRunRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	run, err := h.Runs.StartRun(r.Context(), req.Zone, req.Plan, req.Notes)
	if err != nil {
		writeServiceError(w, r, "start run", err)
		return
	}
	writeJSON(w, r, http.StatusCreated, run)
}

func (h *RunHandler) Active(w http.ResponseWriter, r *http.Request) {
	run, err := h.Runs.ActiveRun(r.Context())
	if err != nil {
		writeServiceError(w, r, "active run", err)
		return
	}
	if run == nil {
		writeError(w, r, http.StatusNotFound, domain.ErrNoActiveRun.Error())
		return
	}
	writeJSON(w, r, http.StatusOK, run)
}

func (h *RunHandler) Complete(w http.ResponseWriter, r *http.Request) {
	id, err := int64Param(r, "id")
	if err != nil {
		writeServiceError(w, r, "complete run", err)
		return
	}
	var summary domain.RunSummary
	if !decodeJSON(w, r, &summary) {
		return
	}
	if err := h.Runs.CompleteRun(r.Context(), id, summary); err != nil {
		writeServiceError(w, r, "complete run", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *RunHandler) Stats(w http.ResponseWriter, r *http.Request) {
	id, err := int64Param(r, "id")
	if err != nil {
		writeServiceError(w, r, "run stats", err)
		return
	}
	stats, err := h.Runs.Stats(r.Context(), id)
	if err != nil {
		writeServiceError(w, r, "run stats", err)
		return
	}
	writeJSON(w, r, http.StatusOK, dto.RunStatsResponse{RunID: id, Stats: stats})
}

func (h *RunHandler) AttachStop(w http.ResponseWriter, r *http.Request) {
	id, err := int64Param(r, "id")
	if err != nil {
		writeServiceError(w, r, "attach stop", err)
		return
	}
	var req dto.AttachStopRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	rs, err := h.Runs.AttachStop(r.Context(), id, req.StopID, req.Status)
	if err != nil {
		writeServiceError(w, r, "attach stop", err)
		return
	}
	writeJSON(w, r, http.StatusCreated, rs)
}

// CompleteStop records completion of :stop_id in the active run.
func (h *RunHandler) CompleteStop(w http.ResponseWriter, r *http.Request) {
	var c domain.StopCompletion
	if !decodeJSON(w, r, &c) {
		return
	}
	if err := h.Runs.CompleteStop(r.Context(), param(r, "stop_id"), c); err != nil {
		writeServiceError(w, r, "complete stop", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
