package zonestate

import (
	"slices"

	"field-route-service/internal/domain"
)

type Status string

const (
	StatusEmpty   Status = "empty"
	StatusLoading Status = "loading"
	StatusLoaded  Status = "loaded"
)

// State is the map's current view of one zone/plan.
type State struct {
	Zone         int                 `json:"zone"`
	Plan         domain.Plan         `json:"plan"`
	Routes       []*domain.Route     `json:"routes"`
	Stops        []*domain.Stop      `json:"stops"`
	Markers      []domain.MarkerView `json:"markers"`
	SelectedStop *domain.Stop        `json:"selected_stop"`
	IsLoaded     bool                `json:"is_loaded"`
	IsLoading    bool                `json:"is_loading"`
}

func (s State) Key() domain.ZoneKey { return domain.ZoneKey{Zone: s.Zone, Plan: s.Plan} }

func (s State) Status() Status {
	switch {
	case s.IsLoading:
		return StatusLoading
	case s.IsLoaded:
		return StatusLoaded
	}
	return StatusEmpty
}

func (s State) clone() State {
	s.Routes = slices.Clone(s.Routes)
	s.Stops = slices.Clone(s.Stops)
	s.Markers = slices.Clone(s.Markers)
	return s
}

// fields lists the comparable parts of State by name. Slices compare by
// element identity, not deep content.
var fields = []struct {
	name  string
	equal func(a, b *State) bool
}{
	{"zone", func(a, b *State) bool { return a.Zone == b.Zone }},
	{"plan", func(a, b *State) bool { return a.Plan == b.Plan }},
	{"routes", func(a, b *State) bool { return slices.Equal(a.Routes, b.Routes) }},
	{"stops", func(a, b *State) bool { return slices.Equal(a.Stops, b.Stops) }},
	{"markers", func(a, b *State) bool { return slices.Equal(a.Markers, b.Markers) }},
	{"selected_stop", func(a, b *State) bool { return a.SelectedStop == b.SelectedStop }},
	{"is_loaded", func(a, b *State) bool { return a.IsLoaded == b.IsLoaded }},
	{"is_loading", func(a, b *State) bool { return a.IsLoading == b.IsLoading }},
}

func diff(old, cur *State) []string {
	var changes []string
	for _, f := range fields {
		if !f.equal(old, cur) {
			changes = append(changes, f.name)
		}
	}
	return changes
}

// ZoneData is the input to a zone switch. It is filtered to the target
// zone before it reaches the state.
type ZoneData struct {
	Routes []*domain.Route
	Stops  []*domain.Stop
}

// filterFor keeps routes of unknown zone or of key's zone, and stops of
// exactly key.
func filterFor(key domain.ZoneKey, data ZoneData) ([]*domain.Route, []*domain.Stop) {
	routes := make([]*domain.Route, 0, len(data.Routes))
	for _, r := range data.Routes {
		if r != nil && (r.Zone == 0 || r.Zone == key.Zone) {
			routes = append(routes, r)
		}
	}

	stops := make([]*domain.Stop, 0, len(data.Stops))
	for _, s := range data.Stops {
		if s != nil && s.ZoneID == key.Zone && s.Plan == key.Plan {
			stops = append(stops, s)
		}
	}
	return routes, stops
}

type Stats struct {
	Zone         int         `json:"zone"`
	Plan         domain.Plan `json:"plan"`
	Status       Status      `json:"status"`
	RouteCount   int         `json:"route_count"`
	StopCount    int         `json:"stop_count"`
	ManualStops  int         `json:"manual_stops"`
	MarkerCount  int         `json:"marker_count"`
	HasSelection bool        `json:"has_selection"`
	TotalPoints  int         `json:"total_points"`
}
