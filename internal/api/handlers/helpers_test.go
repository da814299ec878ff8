package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"field-route-service/internal/domain"
)

func TestStatusFor(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"field error", &domain.FieldError{Field: "plan", Reason: "bad"}, http.StatusBadRequest},
		{"wrapped field error", fmt.Errorf("start run: %w", &domain.FieldError{Field: "zone", Reason: "bad"}), http.StatusBadRequest},
		{"not found", fmt.Errorf("get stop: %w", domain.ErrNotFound), http.StatusNotFound},
		{"no active run", domain.ErrNoActiveRun, http.StatusConflict},
		{"active run exists", fmt.Errorf("start: %w", domain.ErrActiveRunExists), http.StatusConflict},
		{"not authenticated", domain.ErrNotAuthenticated, http.StatusUnauthorized},
		{"invalid credentials", domain.ErrInvalidCredentials, http.StatusUnauthorized},
		{"sync disabled", domain.ErrSyncDisabled, http.StatusServiceUnavailable},
		{"unexpected", errors.New("disk on fire"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := statusFor(tt.err); got != tt.want {
				t.Fatalf("statusFor(%v) = %d, want %d", tt.err, got, tt.want)
			}
		})
	}
}

func TestWriteServiceErrorHidesInternalErrors(t *testing.T) {
	rr := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/x", nil)

	writeServiceError(rr, req, "op", errors.New("pq: password authentication failed"))

	if rr.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", rr.Code)
	}
	if got := rr.Body.String(); got != "{\"error\":\"internal server error\"}\n" {
		t.Fatalf("unexpected body %q", got)
	}
}

func TestBearerToken(t *testing.T) {
	tests := []struct {
		header string
		want   string
	}{
		{"Bearer abc", "abc"},
		{"bearer  abc ", "abc"},
		{"Basic abc", ""},
		{"abc", ""},
		{"", ""},
	}
	for _, tt := range tests {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		if tt.header != "" {
			req.Header.Set("Authorization", tt.header)
		}
		if got := bearerToken(req); got != tt.want {
			t.Fatalf("bearerToken(%q) = %q, want %q", tt.header, got, tt.want)
		}
	}
}
