package coordinator

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"field-route-service/internal/domain"
	"field-route-service/internal/platform/obs"
	"field-route-service/internal/ports"
	"field-route-service/internal/services/kmlload"
	"field-route-service/internal/services/manualstops"
	"field-route-service/internal/services/navigation"
	"field-route-service/internal/services/proximity"
	"field-route-service/internal/services/roadpath"
	"field-route-service/internal/services/zonestate"
)

// LocationUpdate is what the map needs after a GPS fix.
type LocationUpdate struct {
	Usable     bool                      `json:"usable"`
	Markers    []domain.MarkerView       `json:"markers"`
	Nearest    *proximity.Nearest        `json:"nearest,omitempty"`
	Navigation *proximity.NavigationInfo `json:"navigation,omitempty"`
}

// UpdateUserLocation records fix, refreshes navigation for the selected
// stop and recomputes the visible markers of the current zone.
func (c *Coordinator) UpdateUserLocation(fix domain.Fix) LocationUpdate {
	c.mu.Lock()
	f := fix
	c.lastFix = &f
	c.mu.Unlock()

	out := LocationUpdate{
		Usable:     c.d.Proximity.Usable(&fix),
		Markers:    []domain.MarkerView{},
		Navigation: c.d.Navigation.UpdateLocation(fix),
	}

	st := c.d.Zones.State()
	if len(st.Stops) > 0 {
		out.Markers = c.d.Proximity.VisibleStops(&fix, st.Stops, 0)
		out.Nearest = c.d.Proximity.NearestStop(&fix, st.Stops)
	}
	c.d.Zones.UpdateMarkers(out.Markers)
	obs.VisibleMarkers.Set(float64(len(out.Markers)))
	return out
}

// SelectStop selects a stop of the current zone for navigation and
// returns the navigation info computed against the last fix.
func (c *Coordinator) SelectStop(id string) (*proximity.NavigationInfo, error) {
	st := c.d.Zones.State()
	for _, s := range st.Stops {
		if s.ID == id {
			c.d.Zones.SelectStop(s)
			return c.d.Navigation.State().Info, nil
		}
	}
	return nil, fmt.Errorf("select stop %s: %w", id, domain.ErrNotFound)
}

func (c *Coordinator) DeselectStop() { c.d.Zones.DeselectStop() }

// AddManualStop creates a manual stop and, when it belongs to the current
// zone, shows it on the map. Storage is updated through the Added event.
func (c *Coordinator) AddManualStop(in manualstops.Input) (*domain.Stop, error) {
	stop, err := c.d.Manual.Add(in)
	if err != nil {
		return nil, err
	}
	if st := c.d.Zones.State(); st.IsLoaded && st.Key() == stop.Key() {
		c.d.Zones.AddManualStop(*stop)
	}
	return stop, nil
}

// RemoveManualStop drops a manual stop from the collection, the map and
// storage. A stop only known from storage is deleted there directly.
func (c *Coordinator) RemoveManualStop(id string) bool {
	removed := c.d.Manual.Remove(id)
	onMap := c.d.Zones.RemoveManualStop(id)
	if onMap && !removed {
		c.persist("delete", &domain.Stop{ID: id, IsManual: true})
	}
	return removed || onMap
}

func (c *Coordinator) StartRun(ctx context.Context, zone int, plan, notes string) (*domain.Run, error) {
	return c.d.Runs.StartRun(ctx, zone, plan, notes)
}

func (c *Coordinator) CompleteStop(ctx context.Context, stopID string, comp domain.StopCompletion) error {
	return c.d.Runs.CompleteStop(ctx, stopID, comp)
}

// CompleteStats aggregates every component's view of the session.
type CompleteStats struct {
	Database    *ports.StorageStats `json:"database,omitempty"`
	Map         zonestate.Stats     `json:"map"`
	ManualStops manualstops.Stats   `json:"manual_stops"`
	Navigation  navigation.State    `json:"navigation"`
	KMLCache    kmlload.CacheStats  `json:"kml_cache"`
	Timestamp   time.Time           `json:"timestamp"`
}

func (c *Coordinator) Stats(ctx context.Context) (CompleteStats, error) {
	out := CompleteStats{
		Map:         c.d.Zones.Stats(),
		ManualStops: c.d.Manual.Stats(),
		Navigation:  c.d.Navigation.State(),
		KMLCache:    c.d.Loader.CacheStats(),
		Timestamp:   c.now(),
	}
	if c.d.StorageStats != nil {
		db, err := c.d.StorageStats.Stats(ctx)
		if err != nil {
			return CompleteStats{}, fmt.Errorf("stats: %w", err)
		}
		out.Database = &db
	}
	return out, nil
}

const exportVersion = "3.0.0"

type exportData struct {
	ManualStops []*domain.Stop `json:"manual_stops"`
	Runs        []*domain.Run  `json:"runs"`
}

type exportDoc struct {
	Version    string        `json:"version"`
	ExportedAt time.Time     `json:"exported_at"`
	Stats      CompleteStats `json:"stats"`
	Data       exportData    `json:"data"`
}

// Export returns an indented JSON snapshot of the session: stats, stored
// manual stops and the runs of the current zone.
func (c *Coordinator) Export(ctx context.Context) ([]byte, error) {
	stats, err := c.Stats(ctx)
	if err != nil {
		return nil, fmt.Errorf("export: %w", err)
	}

	data := exportData{ManualStops: []*domain.Stop{}, Runs: []*domain.Run{}}
	if c.d.Stops != nil {
		if data.ManualStops, err = c.d.Stops.ManualStops(ctx); err != nil {
			return nil, fmt.Errorf("export: manual stops: %w", err)
		}
	}
	if st := c.d.Zones.State(); st.IsLoaded {
		if data.Runs, err = c.d.Runs.RunsByZone(ctx, st.Key()); err != nil {
			return nil, fmt.Errorf("export: runs: %w", err)
		}
	}

	return json.MarshalIndent(exportDoc{
		Version:    exportVersion,
		ExportedAt: c.now(),
		Stats:      stats,
		Data:       data,
	}, "", "  ")
}

// Reset clears the in-memory session: map state, navigation, manual stops
// and the KML cache. Storage is left untouched.
func (c *Coordinator) Reset() {
	c.d.Zones.Reset()
	c.d.Navigation.Close()
	c.d.Manual.Reset()
	c.d.Loader.ClearCache()

	c.mu.Lock()
	c.lastFix = nil
	c.mu.Unlock()
	c.logger.Info("session reset")
}

// PlanVisit orders the stops of the current zone from the last fix and
// returns the path through them.
func (c *Coordinator) PlanVisit(ctx context.Context, departAt time.Time) (*roadpath.VisitPlan, error) {
	fix := c.LastFix()
	if fix == nil {
		return nil, &domain.FieldError{Field: "location", Reason: "unknown, send a location update first"}
	}
	st := c.d.Zones.State()
	if !st.IsLoaded {
		return nil, fmt.Errorf("plan visit: no zone loaded: %w", domain.ErrNotFound)
	}

	planner := c.d.RoadPath
	if planner == nil {
		planner = roadpath.NewPlanner(nil, c.logger)
	}
	if departAt.IsZero() {
		departAt = c.now()
	}
	return planner.PlanVisit(ctx, fix.Coordinate(), st.Stops, departAt, c.d.Proximity.Config().WalkingSpeedKmh)
}
