package domain

import "time"

type RunStatus string

const (
	RunActive    RunStatus = "active"
	RunCompleted RunStatus = "completed"
	RunPaused    RunStatus = "paused"
)

type RunStopStatus string

const (
	RunStopPending   RunStopStatus = "pending"
	RunStopCompleted RunStopStatus = "completed"
	RunStopFailed    RunStopStatus = "failed"
	RunStopSkipped   RunStopStatus = "skipped"
)

// ParseRunStopStatus accepts the four known statuses; empty means pending.
func ParseRunStopStatus(s string) (RunStopStatus, error) {
	switch st := RunStopStatus(s); st {
	case "":
		return RunStopPending, nil
	case RunStopPending, RunStopCompleted, RunStopFailed, RunStopSkipped:
		return st, nil
	}
	return "", &FieldError{Field: "status", Reason: "must be one of pending, completed, failed, skipped"}
}

// Work session over one zone/plan. At most one run is active at a time.
type Run struct {
	ID            int64      `json:"id"`
	ZoneID        int        `json:"zone_id"`
	Plan          Plan       `json:"plan"`
	Status        RunStatus  `json:"status"`
	StartedAt     time.Time  `json:"started_at"`
	EndedAt       *time.Time `json:"ended_at,omitempty"`
	TotalDistance *float64   `json:"total_distance,omitempty"`
	TotalTime     *int64     `json:"total_time,omitempty"`
	Notes         string     `json:"notes"`
}

// Join between a run and a stop, carrying the completion GPS fix.
type RunStop struct {
	ID          int64         `json:"id"`
	RunID       int64         `json:"run_id"`
	StopID      string        `json:"stop_id"`
	Status      RunStopStatus `json:"status"`
	CompletedAt *time.Time    `json:"completed_at,omitempty"`
	Notes       string        `json:"notes"`
	Latitude    *float64      `json:"latitude,omitempty"`
	Longitude   *float64      `json:"longitude,omitempty"`
	Accuracy    *float64      `json:"accuracy,omitempty"`
}

// Completion data recorded when a field worker finishes a stop.
type StopCompletion struct {
	Latitude  *float64 `json:"latitude,omitempty"`
	Longitude *float64 `json:"longitude,omitempty"`
	Accuracy  *float64 `json:"accuracy,omitempty"`
	Notes     string   `json:"notes"`
}

// Closing data for a run.
type RunSummary struct {
	TotalDistance *float64 `json:"total_distance,omitempty"`
	TotalTime     *int64   `json:"total_time,omitempty"`
	Notes         string   `json:"notes"`
}

// Per-status counts of the stops attached to a run.
type RunStats struct {
	Pending   int `json:"pending"`
	Completed int `json:"completed"`
	Failed    int `json:"failed"`
	Skipped   int `json:"skipped"`
}

// Add increments the counter for status. Unknown statuses are ignored.
func (s *RunStats) Add(status RunStopStatus, n int) {
	switch status {
	case RunStopPending:
		s.Pending += n
	case RunStopCompleted:
		s.Completed += n
	case RunStopFailed:
		s.Failed += n
	case RunStopSkipped:
		s.Skipped += n
	}
}
