package ports

import (
	"context"
	"field-route-service/internal/domain"
	"time"
)

// Port: work sessions and the stops attached to them.
type RunRepository interface {
	// Insert an active run. Fails with domain.ErrActiveRunExists when another
	// run is already active.
	StartRun(ctx context.Context, run *domain.Run) (*domain.Run, error)
	CompleteRun(ctx context.Context, runID int64, summary domain.RunSummary, endedAt time.Time) error
	// Return the active run, or nil when none is active.
	ActiveRun(ctx context.Context) (*domain.Run, error)
	GetRun(ctx context.Context, runID int64) (*domain.Run, error)
	RunsByZone(ctx context.Context, key domain.ZoneKey) ([]*domain.Run, error)
	AddStopToRun(ctx context.Context, runID int64, stopID string, status domain.RunStopStatus) (*domain.RunStop, error)
	// Mark the run stop completed with the recorded fix.
	CompleteStopInRun(ctx context.Context, runID int64, stopID string, c domain.StopCompletion, at time.Time) error
	// Count run stops per status.
	RunStopStats(ctx context.Context, runID int64) (domain.RunStats, error)
}
