package dto

import "field-route-service/internal/domain"

type StartRunRequest struct {
	Zone  int    `json:"zone"`
	Plan  string `json:"plan"`
	Notes string `json:"notes"`
}

type AttachStopRequest struct {
	StopID string `json:"stop_id"`
	Status string `json:"status"`
}

type RunStatsResponse struct {
	RunID int64           `json:"run_id"`
	Stats domain.RunStats `json:"stats"`
}
