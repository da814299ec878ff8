package ports

import "context"

// Row counts across the relational store.
type StorageStats struct {
	Zones       int `json:"zones"`
	Stops       int `json:"stops"`
	ManualStops int `json:"manual_stops"`
	Runs        int `json:"runs"`
	ActiveRuns  int `json:"active_runs"`
	RunStops    int `json:"run_stops"`
}

// Port: aggregate counts for diagnostics.
type StatsProvider interface {
	Stats(ctx context.Context) (StorageStats, error)
}
