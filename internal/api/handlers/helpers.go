package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/julienschmidt/httprouter"

	"field-route-service/internal/domain"
	"field-route-service/internal/platform/obs"
	"field-route-service/internal/platform/report"
)

// maxBodyBytes bounds request bodies; route uploads are the largest.
const maxBodyBytes = 1 << 20

func writeJSON(w http.ResponseWriter, r *http.Request, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.ErrorContext(r.Context(), "encode failed", "req_id", obs.RequestID(r.Context()), "method", r.Method, "path", r.URL.Path, "err", err)
	}
}

func writeError(w http.ResponseWriter, r *http.Request, status int, msg string) {
	writeJSON(w, r, status, map[string]string{"error": msg})
}

// writeServiceError maps a service error to its HTTP status. Unexpected
// errors are logged, reported and hidden behind a generic message.
func writeServiceError(w http.ResponseWriter, r *http.Request, op string, err error) {
	status := statusFor(err)
	if status != http.StatusInternalServerError {
		writeError(w, r, status, err.Error())
		return
	}

	reqID := obs.RequestID(r.Context())
	slog.ErrorContext(r.Context(), op+" failed", "req_id", reqID, "err", err)
	report.ErrorWith(err, map[string]string{"op": op, "req_id": reqID})
	writeError(w, r, status, "internal server error")
}

func statusFor(err error) int {
	switch {
	case domain.IsFieldError(err):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrNoActiveRun), errors.Is(err, domain.ErrActiveRunExists):
		return http.StatusConflict
	case errors.Is(err, domain.ErrNotAuthenticated), errors.Is(err, domain.ErrInvalidCredentials):
		return http.StatusUnauthorized
	case errors.Is(err, domain.ErrSyncDisabled):
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}

// decodeJSON reads exactly one JSON object into v, rejecting unknown
// fields. It writes the 400 response itself and reports false on failure.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	defer r.Body.Close()
	dec.DisallowUnknownFields()

	if err := dec.Decode(v); err != nil {
		writeError(w, r, http.StatusBadRequest, "invalid json body")
		return false
	}
	if err := dec.Decode(&struct{}{}); err != io.EOF {
		writeError(w, r, http.StatusBadRequest, "body must contain only one JSON object")
		return false
	}
	return true
}

func param(r *http.Request, name string) string {
	return httprouter.ParamsFromContext(r.Context()).ByName(name)
}

// zoneParams parses the :zone and :plan path segments.
func zoneParams(r *http.Request) (domain.ZoneKey, error) {
	zone, err := strconv.Atoi(param(r, "zone"))
	if err != nil {
		return domain.ZoneKey{}, &domain.FieldError{Field: "zone", Reason: "must be an integer"}
	}
	return domain.NewZoneKey(zone, param(r, "plan"))
}

func int64Param(r *http.Request, name string) (int64, error) {
	v, err := strconv.ParseInt(param(r, name), 10, 64)
	if err != nil || v <= 0 {
		return 0, &domain.FieldError{Field: name, Reason: "must be a positive integer"}
	}
	return v, nil
}

// bearerToken extracts the session token from "Authorization: Bearer <t>".
func bearerToken(r *http.Request) string {
	h := r.Header.Get("Authorization")
	scheme, token, ok := strings.Cut(h, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return ""
	}
	return strings.TrimSpace(token)
}
