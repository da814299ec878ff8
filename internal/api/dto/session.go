package dto

import "time"

type LocationRequest struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	Accuracy  float64 `json:"accuracy"`
	Timestamp int64   `json:"timestamp"`
}

type ManualStopRequest struct {
	Name        string  `json:"name"`
	Description string  `json:"description"`
	Latitude    float64 `json:"latitude"`
	Longitude   float64 `json:"longitude"`
	Zone        int     `json:"zone"`
	Plan        string  `json:"plan"`
}

type SelectionRequest struct {
	StopID string `json:"stop_id"`
}

// VisitPlanRequest departs now when DepartAt is omitted.
type VisitPlanRequest struct {
	DepartAt *time.Time `json:"depart_at"`
}
