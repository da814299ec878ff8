package zonestate

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"slices"
	"strings"
	"testing"

	"field-route-service/internal/domain"
	"field-route-service/internal/events"
)

var (
	key9B = domain.ZoneKey{Zone: 9, Plan: domain.PlanB}
	key9A = domain.ZoneKey{Zone: 9, Plan: domain.PlanA}
)

type recorder struct {
	events []Event
}

func (r *recorder) names() []string {
	out := make([]string, 0, len(r.events))
	for _, e := range r.events {
		out = append(out, strings.TrimPrefix(fmt.Sprintf("%T", e), "zonestate."))
	}
	return out
}

func newTestManager() (*Manager, *recorder) {
	m := NewManager(slog.New(slog.NewTextHandler(io.Discard, nil)))
	rec := &recorder{}
	m.Subscribe(func(e Event) { rec.events = append(rec.events, e) })
	return m, rec
}

func zoneData() *ZoneData {
	return &ZoneData{
		Routes: []*domain.Route{
			{ID: "r-any", Zone: 0},
			{ID: "r-9", Zone: 9},
			{ID: "r-3", Zone: 3},
		},
		Stops: []*domain.Stop{
			{ID: "s-9b", ZoneID: 9, Plan: domain.PlanB, Latitude: 44.9, Longitude: 9.5},
			{ID: "s-9a", ZoneID: 9, Plan: domain.PlanA, Latitude: 44.9, Longitude: 9.5},
			{ID: "s-3b", ZoneID: 3, Plan: domain.PlanB, Latitude: 44.9, Longitude: 9.5},
		},
	}
}

func ids[T any](items []T, id func(T) string) []string {
	out := make([]string, 0, len(items))
	for _, it := range items {
		out = append(out, id(it))
	}
	return out
}

func routeIDs(rs []*domain.Route) []string {
	return ids(rs, func(r *domain.Route) string { return r.ID })
}
func stopIDs(ss []*domain.Stop) []string { return ids(ss, func(s *domain.Stop) string { return s.ID }) }

func TestSwitchToZoneFiltersData(t *testing.T) {
	m, rec := newTestManager()

	if err := m.SwitchToZone(context.Background(), key9B, zoneData()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	st := m.State()
	if st.Status() != StatusLoaded || st.Key() != key9B {
		t.Fatalf("state = %+v", st)
	}
	if got := routeIDs(st.Routes); !slices.Equal(got, []string{"r-any", "r-9"}) {
		t.Fatalf("routes = %v", got)
	}
	if got := stopIDs(st.Stops); !slices.Equal(got, []string{"s-9b"}) {
		t.Fatalf("stops = %v", got)
	}

	names := rec.names()
	if names[len(names)-1] != "DataLoaded" {
		t.Fatalf("events = %v", names)
	}
	if slices.Contains(names, "BeforeCleanup") || slices.Contains(names, "AfterCleanup") {
		t.Fatalf("first switch has nothing to clean up, events = %v", names)
	}
}

func TestSwitchToZoneNormalizesPlan(t *testing.T) {
	m, _ := newTestManager()

	if err := m.SwitchToZone(context.Background(), domain.ZoneKey{Zone: 9, Plan: "b"}, zoneData()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	st := m.State()
	if st.Key() != key9B || !m.IsZoneLoaded(key9B) {
		t.Fatalf("key = %v", st.Key())
	}
	if got := stopIDs(st.Stops); !slices.Equal(got, []string{"s-9b"}) {
		t.Fatalf("stops = %v", got)
	}
}

func TestMarkersFollowStops(t *testing.T) {
	m, _ := newTestManager()
	ctx := context.Background()
	if err := m.SwitchToZone(ctx, key9B, zoneData()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	added := m.AddManualStop(domain.Stop{Name: "Portone", ZoneID: 9, Plan: domain.PlanB, Latitude: 44.96, Longitude: 9.58})
	stored := m.State().Stops[0]
	m.UpdateMarkers([]domain.MarkerView{{Stop: added, Distance: 5}, {Stop: stored, Distance: 40}})

	if !m.RemoveManualStop(added.ID) {
		t.Fatal("expected manual stop to be removed")
	}
	st := m.State()
	if len(st.Markers) != 1 || st.Markers[0].Stop.ID != stored.ID {
		t.Fatalf("markers = %+v", st.Markers)
	}

	if err := m.UpdateZoneData(key9B, &ZoneData{}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if st := m.State(); len(st.Markers) != 0 || m.Stats().MarkerCount != 0 {
		t.Fatalf("markers = %+v", st.Markers)
	}
}

func TestSwitchToZoneDiscardsStaleState(t *testing.T) {
	m, rec := newTestManager()
	ctx := context.Background()

	if err := m.SwitchToZone(ctx, key9B, zoneData()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	m.SelectStop(m.State().Stops[0])
	rec.events = nil

	data2 := &ZoneData{
		Routes: []*domain.Route{{ID: "r-9a", Zone: 9}},
		Stops: []*domain.Stop{
			{ID: "s-9a-new", ZoneID: 9, Plan: domain.PlanA},
			{ID: "s-9b-new", ZoneID: 9, Plan: domain.PlanB},
		},
	}
	if err := m.SwitchToZone(ctx, key9A, data2); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	st := m.State()
	if got := routeIDs(st.Routes); !slices.Equal(got, []string{"r-9a"}) {
		t.Fatalf("routes = %v", got)
	}
	if got := stopIDs(st.Stops); !slices.Equal(got, []string{"s-9a-new"}) {
		t.Fatalf("stops = %v", got)
	}
	if st.SelectedStop != nil || len(st.Markers) != 0 {
		t.Fatalf("stale selection or markers: %+v", st)
	}

	var before, after *domain.ZoneKey
	for _, e := range rec.events {
		switch ev := e.(type) {
		case BeforeCleanup:
			before = &ev.Key
		case AfterCleanup:
			after = &ev.Key
		}
	}
	if before == nil || after == nil || *before != key9B || *after != key9B {
		t.Fatalf("cleanup events = %v / %v, want 9_B", before, after)
	}
	if !slices.Contains(rec.names(), "StopDeselected") {
		t.Fatalf("expected StopDeselected, got %v", rec.names())
	}
}

func TestSwitchToSameZoneUpdatesInPlace(t *testing.T) {
	m, rec := newTestManager()
	ctx := context.Background()

	if err := m.SwitchToZone(ctx, key9B, zoneData()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	rec.events = nil

	more := zoneData()
	more.Stops = append(more.Stops, &domain.Stop{ID: "s-9b-2", ZoneID: 9, Plan: domain.PlanB})
	if err := m.SwitchToZone(ctx, key9B, more); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	names := rec.names()
	if slices.Contains(names, "BeforeCleanup") {
		t.Fatalf("same-zone switch must not tear down, events = %v", names)
	}
	if !slices.Contains(names, "DataUpdated") {
		t.Fatalf("events = %v", names)
	}
	if len(m.State().Stops) != 2 {
		t.Fatalf("stops = %v", stopIDs(m.State().Stops))
	}
}

func TestSwitchToZoneFailureReverts(t *testing.T) {
	m, _ := newTestManager()

	err := m.SwitchToZone(context.Background(), key9B, nil)
	if err == nil {
		t.Fatal("expected error")
	}
	st := m.State()
	if st.IsLoaded || st.IsLoading {
		t.Fatalf("state = %+v", st)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := m.SwitchToZone(ctx, key9A, zoneData()); err == nil {
		t.Fatal("expected error for cancelled context")
	}
	if m.State().Status() != StatusEmpty {
		t.Fatalf("status = %s", m.State().Status())
	}

	if err := m.SwitchToZone(context.Background(), domain.ZoneKey{Zone: 0, Plan: domain.PlanA}, zoneData()); !domain.IsFieldError(err) {
		t.Fatalf("expected FieldError, got %v", err)
	}
}

func TestStateChangedCarriesChanges(t *testing.T) {
	m, _ := newTestManager()
	if err := m.SwitchToZone(context.Background(), key9B, zoneData()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var changes [][]string
	events.On(m.Bus(), func(e StateChanged) { changes = append(changes, e.Changes) })

	stop := m.State().Stops[0]
	m.SelectStop(stop)
	m.SelectStop(stop)
	m.UpdateMarkers([]domain.MarkerView{{Stop: stop, Distance: 12}})

	if len(changes) != 2 {
		t.Fatalf("changes = %v, want 2 entries", changes)
	}
	if !slices.Equal(changes[0], []string{"selected_stop"}) || !slices.Equal(changes[1], []string{"markers"}) {
		t.Fatalf("changes = %v", changes)
	}
}

func TestManualStopsAndSelection(t *testing.T) {
	m, rec := newTestManager()
	if err := m.SwitchToZone(context.Background(), key9B, zoneData()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	rec.events = nil

	added := m.AddManualStop(domain.Stop{Name: "Cancello verde", ZoneID: 9, Plan: domain.PlanB, Latitude: 44.96, Longitude: 9.58})
	if !strings.HasPrefix(added.ID, "manual_") || !added.IsManual || added.CreatedAt.IsZero() {
		t.Fatalf("added = %+v", added)
	}
	if len(m.State().Stops) != 2 {
		t.Fatalf("stops = %v", stopIDs(m.State().Stops))
	}

	m.SelectStop(added)
	if !m.RemoveManualStop(added.ID) {
		t.Fatal("expected manual stop to be removed")
	}
	if m.State().SelectedStop != nil {
		t.Fatal("removing the selected stop must clear the selection")
	}
	if m.RemoveManualStop("s-9b") {
		t.Fatal("stored stops are not manual")
	}

	names := rec.names()
	for _, want := range []string{"ManualStopAdded", "StopSelected", "ManualStopRemoved"} {
		if !slices.Contains(names, want) {
			t.Fatalf("missing %s in %v", want, names)
		}
	}

	st := m.Stats()
	if st.StopCount != 1 || st.ManualStops != 0 || st.Status != StatusLoaded {
		t.Fatalf("stats = %+v", st)
	}

	m.Reset()
	if m.State().Status() != StatusEmpty || m.IsZoneLoaded(key9B) {
		t.Fatalf("state after reset = %+v", m.State())
	}
}
