package zonestate

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"field-route-service/internal/domain"
	"field-route-service/internal/events"
)

// Manager owns the single current zone State. Every mutation goes through
// setState, which publishes StateChanged alongside the specific event.
// Events are published after the state lock is released.
type Manager struct {
	// switchMu serializes zone switches end to end.
	switchMu sync.Mutex

	mu    sync.Mutex
	state State

	bus    *events.Bus[Event]
	logger *slog.Logger
	now    func() time.Time
}

func NewManager(logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{
		bus:    events.NewBus[Event](logger),
		logger: logger,
		now:    time.Now,
	}
}

// Subscribe registers fn for every event and returns its unsubscribe func.
func (m *Manager) Subscribe(fn func(Event)) func() { return m.bus.Subscribe(fn) }

// Bus exposes the event bus for typed subscriptions with events.On.
func (m *Manager) Bus() *events.Bus[Event] { return m.bus }

// State returns a copy of the current state.
func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state.clone()
}

func (m *Manager) IsZoneLoaded(key domain.ZoneKey) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state.IsLoaded && m.state.Key() == key
}

// setState applies mutate under the lock and returns the StateChanged
// event, if anything changed. Callers hold m.mu.
func (m *Manager) setState(mutate func(*State)) []Event {
	old := m.state.clone()
	mutate(&m.state)
	changes := diff(&old, &m.state)
	if len(changes) == 0 {
		return nil
	}
	return []Event{StateChanged{Old: old, New: m.state.clone(), Changes: changes}}
}

func (m *Manager) publish(evs []Event) {
	for _, e := range evs {
		m.bus.Publish(e)
	}
}

// SwitchToZone replaces the current state with data filtered to key. When
// key is already loaded the data is refreshed in place. On failure the
// state is left empty and not loading, and the error is returned.
func (m *Manager) SwitchToZone(ctx context.Context, key domain.ZoneKey, data *ZoneData) error {
	if key.Zone <= 0 {
		return &domain.FieldError{Field: "zone", Reason: "must be a positive integer"}
	}
	plan, err := domain.ParsePlan(string(key.Plan))
	if err != nil {
		return err
	}
	key.Plan = plan

	m.switchMu.Lock()
	defer m.switchMu.Unlock()

	if m.IsZoneLoaded(key) {
		return m.UpdateZoneData(key, data)
	}

	m.mu.Lock()
	prev := m.state.Key()
	selected := m.state.SelectedStop
	m.mu.Unlock()

	m.logger.Info("switching zone", "from", prev.String(), "to", key.String())

	hadZone := prev.Zone > 0 && prev.Plan != ""
	if hadZone {
		m.bus.Publish(BeforeCleanup{Key: prev})
	}
	m.mu.Lock()
	evs := m.setState(func(s *State) {
		*s = State{Zone: s.Zone, Plan: s.Plan}
	})
	m.mu.Unlock()
	if selected != nil {
		evs = append(evs, StopDeselected{Stop: selected})
	}
	m.publish(evs)
	if hadZone {
		m.bus.Publish(AfterCleanup{Key: prev})
	}

	m.mu.Lock()
	evs = m.setState(func(s *State) {
		s.Zone, s.Plan = key.Zone, key.Plan
		s.IsLoading = true
	})
	m.mu.Unlock()
	m.publish(evs)

	if err := m.load(ctx, key, data); err != nil {
		m.mu.Lock()
		evs = m.setState(func(s *State) {
			s.IsLoading = false
			s.IsLoaded = false
		})
		m.mu.Unlock()
		m.publish(evs)

		m.logger.Error("zone switch failed", "key", key.String(), "err", err)
		return fmt.Errorf("switch to zone %s: %w", key, err)
	}
	return nil
}

func (m *Manager) load(ctx context.Context, key domain.ZoneKey, data *ZoneData) error {
	if data == nil {
		return errors.New("zone data is missing")
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	routes, stops := filterFor(key, *data)

	m.mu.Lock()
	evs := m.setState(func(s *State) {
		s.Routes = routes
		s.Stops = stops
		s.Markers = nil
		s.IsLoading = false
		s.IsLoaded = true
	})
	m.mu.Unlock()

	evs = append(evs, DataLoaded{Key: key, RouteCount: len(routes), StopCount: len(stops)})
	m.publish(evs)

	m.logger.Info("zone loaded", "key", key.String(), "routes", len(routes), "stops", len(stops))
	return nil
}

// UpdateZoneData refreshes routes and stops of the loaded zone in place,
// keeping the selection when the selected stop is still present.
func (m *Manager) UpdateZoneData(key domain.ZoneKey, data *ZoneData) error {
	if data == nil {
		return errors.New("update zone data: zone data is missing")
	}

	m.mu.Lock()
	if !m.state.IsLoaded || m.state.Key() != key {
		cur := m.state.Key()
		m.mu.Unlock()
		return fmt.Errorf("update zone data: zone %s is not loaded (current %s)", key, cur)
	}

	routes, stops := filterFor(key, *data)
	evs := m.setState(func(s *State) {
		s.Routes = routes
		s.Stops = stops
		s.Markers = pruneMarkers(s.Markers, stops)
		if s.SelectedStop != nil && !containsStop(stops, s.SelectedStop.ID) {
			s.SelectedStop = nil
		}
	})
	m.mu.Unlock()

	evs = append(evs, DataUpdated{Key: key, RouteCount: len(routes), StopCount: len(stops)})
	m.publish(evs)
	return nil
}

// AddManualStop appends a copy of stop to the current stops, assigning an
// id and timestamps when missing. It does not persist the stop.
func (m *Manager) AddManualStop(stop domain.Stop) *domain.Stop {
	now := m.now()
	if stop.ID == "" {
		stop.ID = fmt.Sprintf("manual_%d_%s", now.UnixMilli(), strings.ReplaceAll(uuid.NewString(), "-", "")[:9])
	}
	stop.IsManual = true
	if stop.CreatedAt.IsZero() {
		stop.CreatedAt = now
	}
	stop.UpdatedAt = now
	added := &stop

	m.mu.Lock()
	evs := m.setState(func(s *State) {
		s.Stops = append(slicesClone(s.Stops), added)
	})
	m.mu.Unlock()

	m.publish(append(evs, ManualStopAdded{Stop: added}))
	return added
}

// RemoveManualStop drops the manual stop with id and reports whether it was present.
func (m *Manager) RemoveManualStop(id string) bool {
	m.mu.Lock()
	var removed *domain.Stop
	evs := m.setState(func(s *State) {
		kept := make([]*domain.Stop, 0, len(s.Stops))
		for _, st := range s.Stops {
			if removed == nil && st.ID == id && st.IsManual {
				removed = st
				continue
			}
			kept = append(kept, st)
		}
		s.Stops = kept
		if removed != nil {
			s.Markers = pruneMarkers(s.Markers, kept)
		}
		if removed != nil && s.SelectedStop != nil && s.SelectedStop.ID == id {
			s.SelectedStop = nil
		}
	})
	m.mu.Unlock()

	if removed == nil {
		return false
	}
	m.publish(append(evs, ManualStopRemoved{Stop: removed}))
	return true
}

func (m *Manager) SelectStop(stop *domain.Stop) {
	if stop == nil {
		m.DeselectStop()
		return
	}

	m.mu.Lock()
	evs := m.setState(func(s *State) { s.SelectedStop = stop })
	m.mu.Unlock()

	m.publish(append(evs, StopSelected{Stop: stop}))
}

func (m *Manager) DeselectStop() {
	m.mu.Lock()
	prev := m.state.SelectedStop
	evs := m.setState(func(s *State) { s.SelectedStop = nil })
	m.mu.Unlock()

	if prev == nil {
		return
	}
	m.publish(append(evs, StopDeselected{Stop: prev}))
}

// UpdateMarkers replaces the derived marker list.
func (m *Manager) UpdateMarkers(markers []domain.MarkerView) {
	m.mu.Lock()
	evs := m.setState(func(s *State) { s.Markers = markers })
	m.mu.Unlock()

	m.publish(append(evs, MarkersUpdated{Markers: markers}))
}

// Reset discards the current zone entirely.
func (m *Manager) Reset() {
	m.switchMu.Lock()
	defer m.switchMu.Unlock()

	m.mu.Lock()
	prev := m.state.SelectedStop
	evs := m.setState(func(s *State) { *s = State{} })
	m.mu.Unlock()

	if prev != nil {
		evs = append(evs, StopDeselected{Stop: prev})
	}
	m.publish(evs)
}

func (m *Manager) Stats() Stats {
	m.mu.Lock()
	defer m.mu.Unlock()

	st := Stats{
		Zone:         m.state.Zone,
		Plan:         m.state.Plan,
		Status:       m.state.Status(),
		RouteCount:   len(m.state.Routes),
		StopCount:    len(m.state.Stops),
		MarkerCount:  len(m.state.Markers),
		HasSelection: m.state.SelectedStop != nil,
	}
	for _, s := range m.state.Stops {
		if s.IsManual {
			st.ManualStops++
		}
	}
	for _, r := range m.state.Routes {
		st.TotalPoints += len(r.Path)
	}
	return st
}

func containsStop(stops []*domain.Stop, id string) bool {
	for _, s := range stops {
		if s.ID == id {
			return true
		}
	}
	return false
}

// pruneMarkers keeps the markers whose stop is still in stops.
func pruneMarkers(markers []domain.MarkerView, stops []*domain.Stop) []domain.MarkerView {
	if len(markers) == 0 {
		return markers
	}
	out := make([]domain.MarkerView, 0, len(markers))
	for _, mk := range markers {
		if mk.Stop != nil && containsStop(stops, mk.Stop.ID) {
			out = append(out, mk)
		}
	}
	return out
}

func slicesClone(s []*domain.Stop) []*domain.Stop {
	out := make([]*domain.Stop, len(s), len(s)+1)
	copy(out, s)
	return out
}
