package coordinator

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"field-route-service/internal/domain"
	"field-route-service/internal/events"
	"field-route-service/internal/platform/obs"
	"field-route-service/internal/platform/report"
	"field-route-service/internal/ports"
	"field-route-service/internal/services/kmlload"
	"field-route-service/internal/services/manualstops"
	"field-route-service/internal/services/navigation"
	"field-route-service/internal/services/proximity"
	"field-route-service/internal/services/roadpath"
	"field-route-service/internal/services/runs"
	"field-route-service/internal/services/zonestate"
)

// persistTimeout bounds storage writes triggered by manual stop events.
const persistTimeout = 5 * time.Second

// Deps are the collaborators a Coordinator drives. StorageStats and
// RoadPath may be nil.
type Deps struct {
	Loader       *kmlload.Loader
	Stops        ports.StopRepository
	KMLCache     ports.KMLCacheRepository
	StorageStats ports.StatsProvider
	Zones        *zonestate.Manager
	Manual       *manualstops.Service
	Navigation   *navigation.Tracker
	Proximity    *proximity.Engine
	Runs         *runs.Service
	RoadPath     *roadpath.Planner
	Logger       *slog.Logger
	Now          func() time.Time
}

// Coordinator is the field worker session: it loads zones, keeps markers
// and navigation in step with GPS fixes, and mirrors manual stops into
// storage.
type Coordinator struct {
	d      Deps
	logger *slog.Logger
	now    func() time.Time

	mu      sync.Mutex
	lastFix *domain.Fix

	unsubscribe []func()
}

func New(d Deps) *Coordinator {
	if d.Logger == nil {
		d.Logger = slog.Default()
	}
	if d.Now == nil {
		d.Now = time.Now
	}
	c := &Coordinator{d: d, logger: d.Logger, now: d.Now}
	c.wire()
	return c
}

func (c *Coordinator) wire() {
	c.unsubscribe = append(c.unsubscribe,
		events.On(c.d.Manual.Bus(), func(e manualstops.Added) { c.persist("insert", e.Stop) }),
		events.On(c.d.Manual.Bus(), func(e manualstops.Updated) { c.persist("update", e.New) }),
		events.On(c.d.Manual.Bus(), func(e manualstops.Removed) { c.persist("delete", e.Stop) }),
		events.On(c.d.Zones.Bus(), func(e zonestate.StopSelected) {
			c.d.Navigation.Select(e.Stop, c.LastFix())
		}),
		events.On(c.d.Zones.Bus(), func(zonestate.StopDeselected) { c.d.Navigation.Deselect() }),
	)
}

// persist mirrors a manual stop change into storage. Failures are logged
// and reported, never returned to the caller that changed the stop.
func (c *Coordinator) persist(op string, stop *domain.Stop) {
	if c.d.Stops == nil || stop == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), persistTimeout)
	defer cancel()

	var err error
	switch op {
	case "insert":
		_, err = c.d.Stops.InsertStop(ctx, stop)
	case "update":
		err = c.d.Stops.UpdateStop(ctx, stop)
	case "delete":
		err = c.d.Stops.DeleteStop(ctx, stop.ID)
		if errors.Is(err, domain.ErrNotFound) {
			err = nil
		}
	}
	if err != nil {
		c.logger.Error("manual stop sync failed", "op", op, "id", stop.ID, "err", err)
		report.ErrorWith(fmt.Errorf("manual stop %s %s: %w", op, stop.ID, err), map[string]string{"op": op})
		return
	}
	c.logger.Debug("manual stop synced", "op", op, "id", stop.ID)
}

// Close detaches the event wiring and stops navigation tracking.
func (c *Coordinator) Close() {
	for _, u := range c.unsubscribe {
		u()
	}
	c.unsubscribe = nil
	c.d.Navigation.Close()
}

func (c *Coordinator) LastFix() *domain.Fix {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.lastFix == nil {
		return nil
	}
	f := *c.lastFix
	return &f
}

// ZoneLoadResult is the outcome of LoadZone. Failures are reported in the
// result, not as an error.
type ZoneLoadResult struct {
	Success    bool                     `json:"success"`
	Zone       int                      `json:"zone"`
	Plan       domain.Plan              `json:"plan"`
	Routes     []*domain.Route          `json:"routes"`
	Stops      []*domain.Stop           `json:"stops"`
	Validation *domain.ValidationResult `json:"validation,omitempty"`
	Metadata   kmlload.LoadMetadata     `json:"metadata"`
	Error      string                   `json:"error,omitempty"`
	Err        error                    `json:"-"`
}

func failed(zone int, plan domain.Plan, err error) *ZoneLoadResult {
	return &ZoneLoadResult{Zone: zone, Plan: plan, Err: err, Error: err.Error()}
}

// LoadZone loads the KML for zone/plan, merges stored and manual stops,
// switches the map state and persists the parsed document.
func (c *Coordinator) LoadZone(ctx context.Context, zone int, plan string) *ZoneLoadResult {
	var err error
	defer obs.Time(ctx, "coordinator.LoadZone")(&err)

	key, err := domain.NewZoneKey(zone, plan)
	if err != nil {
		return failed(zone, domain.Plan(plan), err)
	}

	loaded := c.d.Loader.Load(ctx, key, false)
	if !loaded.Success {
		err = fmt.Errorf("load kml: %w", loaded.Err)
		return failed(key.Zone, key.Plan, err)
	}

	stops, err := c.zoneStops(ctx, key)
	if err != nil {
		return failed(key.Zone, key.Plan, err)
	}

	data := &zonestate.ZoneData{Routes: loaded.Document.Routes, Stops: stops}
	if err = c.d.Zones.SwitchToZone(ctx, key, data); err != nil {
		report.ErrorWith(err, map[string]string{"zone": key.String()})
		return failed(key.Zone, key.Plan, err)
	}

	c.saveKMLCache(ctx, key, loaded)

	st := c.d.Zones.State()
	c.logger.Info("zone ready", "key", key.String(), "routes", len(st.Routes), "stops", len(st.Stops))
	return &ZoneLoadResult{
		Success:    true,
		Zone:       key.Zone,
		Plan:       key.Plan,
		Routes:     st.Routes,
		Stops:      st.Stops,
		Validation: loaded.Validation,
		Metadata:   loaded.Metadata,
	}
}

// zoneStops returns the stored stops of key plus the in-memory manual
// stops not yet present in storage.
func (c *Coordinator) zoneStops(ctx context.Context, key domain.ZoneKey) ([]*domain.Stop, error) {
	var stored []*domain.Stop
	if c.d.Stops != nil {
		var err error
		stored, err = c.d.Stops.StopsByZone(ctx, key)
		if err != nil {
			return nil, fmt.Errorf("load stops for %s: %w", key, err)
		}
	}

	seen := make(map[string]struct{}, len(stored))
	out := make([]*domain.Stop, 0, len(stored))
	for _, s := range stored {
		seen[s.ID] = struct{}{}
		out = append(out, s)
	}
	for _, s := range c.d.Manual.List(key.Zone, string(key.Plan)) {
		if _, dup := seen[s.ID]; !dup {
			out = append(out, s)
		}
	}
	return out, nil
}

func (c *Coordinator) saveKMLCache(ctx context.Context, key domain.ZoneKey, loaded *kmlload.LoadResult) {
	if c.d.KMLCache == nil {
		return
	}
	parsed, err := json.Marshal(loaded.Document)
	if err == nil {
		err = c.d.KMLCache.SaveKMLCache(ctx, ports.KMLCacheEntry{
			Key:          key,
			Content:      loaded.Content,
			ParsedData:   parsed,
			FileSize:     loaded.Metadata.FileSizeChars,
			LastModified: c.now(),
		})
	}
	if err != nil {
		c.logger.Warn("kml cache save failed", "key", key.String(), "err", err)
		report.Warning(fmt.Errorf("save kml cache %s: %w", key, err), map[string]string{"zone": key.String()})
	}
}

// CachedDocument returns the parsed document persisted by the last
// successful LoadZone of zone/plan.
func (c *Coordinator) CachedDocument(ctx context.Context, zone int, plan string) (*domain.ParsedDocument, error) {
	key, err := domain.NewZoneKey(zone, plan)
	if err != nil {
		return nil, err
	}
	if c.d.KMLCache == nil {
		return nil, fmt.Errorf("cached document %s: %w", key, domain.ErrNotFound)
	}
	entry, ok, err := c.d.KMLCache.GetKMLCache(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("cached document %s: %w", key, err)
	}
	if !ok {
		return nil, fmt.Errorf("cached document %s: %w", key, domain.ErrNotFound)
	}
	var doc domain.ParsedDocument
	if err := json.Unmarshal(entry.ParsedData, &doc); err != nil {
		return nil, fmt.Errorf("cached document %s: decode: %w", key, err)
	}
	return &doc, nil
}
