package proximity

import (
	"fmt"
	"math"
	"sort"

	"field-route-service/internal/domain"
	"field-route-service/internal/geo"
)

// Config holds the proximity thresholds.
type Config struct {
	// RadiusMeters is the default visibility radius.
	RadiusMeters float64
	// MaxAccuracyMeters rejects fixes whose reported accuracy is worse.
	MaxAccuracyMeters float64
	WalkingSpeedKmh   float64
}

func DefaultConfig() Config {
	return Config{RadiusMeters: 200, MaxAccuracyMeters: 50, WalkingSpeedKmh: 5}
}

// Engine computes which stops are near a GPS fix. It holds no mutable
// state and is safe for concurrent use.
type Engine struct {
	cfg Config
}

func NewEngine(cfg Config) *Engine {
	def := DefaultConfig()
	if cfg.RadiusMeters <= 0 {
		cfg.RadiusMeters = def.RadiusMeters
	}
	if cfg.MaxAccuracyMeters <= 0 {
		cfg.MaxAccuracyMeters = def.MaxAccuracyMeters
	}
	if cfg.WalkingSpeedKmh <= 0 {
		cfg.WalkingSpeedKmh = def.WalkingSpeedKmh
	}
	return &Engine{cfg: cfg}
}

func (e *Engine) Config() Config { return e.cfg }

// Usable reports whether fix is present, has valid coordinates and an
// acceptable accuracy. An accuracy of 0 means unknown and is accepted.
func (e *Engine) Usable(fix *domain.Fix) bool {
	if fix == nil || !geo.IsValidLatLon(fix.Latitude, fix.Longitude) {
		return false
	}
	return fix.Accuracy <= e.cfg.MaxAccuracyMeters
}

// VisibleStops returns the stops within radiusMeters of fix, nearest first.
// A radius <= 0 uses the configured default.
func (e *Engine) VisibleStops(fix *domain.Fix, stops []*domain.Stop, radiusMeters float64) []domain.MarkerView {
	if !e.Usable(fix) {
		return []domain.MarkerView{}
	}
	if radiusMeters <= 0 {
		radiusMeters = e.cfg.RadiusMeters
	}

	here := fix.Coordinate()
	type hit struct {
		stop *domain.Stop
		dist float64
	}
	hits := make([]hit, 0)
	for _, s := range stops {
		if s == nil || !s.HasPosition() {
			continue
		}
		d := geo.Haversine(here, s.Coordinate())
		if d <= radiusMeters {
			hits = append(hits, hit{stop: s, dist: d})
		}
	}

	sort.SliceStable(hits, func(i, j int) bool { return hits[i].dist < hits[j].dist })

	out := make([]domain.MarkerView, len(hits))
	for i, h := range hits {
		out[i] = domain.MarkerView{Stop: h.stop, Distance: int(math.Round(h.dist))}
	}
	return out
}

type Nearest struct {
	Stop      *domain.Stop `json:"stop"`
	Distance  int          `json:"distance"`
	Bearing   float64      `json:"bearing"`
	Direction string       `json:"direction"`
}

// NearestStop returns the closest stop with valid coordinates, or nil.
func (e *Engine) NearestStop(fix *domain.Fix, stops []*domain.Stop) *Nearest {
	if !e.Usable(fix) {
		return nil
	}

	here := fix.Coordinate()
	var best *domain.Stop
	bestDist := math.Inf(1)
	for _, s := range stops {
		if s == nil || !s.HasPosition() {
			continue
		}
		if d := geo.Haversine(here, s.Coordinate()); d < bestDist {
			best, bestDist = s, d
		}
	}
	if best == nil {
		return nil
	}

	b := geo.Bearing(here, best.Coordinate())
	return &Nearest{
		Stop:      best,
		Distance:  int(math.Round(bestDist)),
		Bearing:   math.Round(b),
		Direction: geo.BearingToCardinal(b),
	}
}

type NavigationInfo struct {
	Distance     int     `json:"distance"`
	DistanceText string  `json:"distance_text"`
	Bearing      float64 `json:"bearing"`
	Direction    string  `json:"direction"`
	ETA          int     `json:"eta"`
	ETAText      string  `json:"eta_text"`
	CanNavigate  bool    `json:"can_navigate"`
	Reason       string  `json:"reason,omitempty"`
	Accuracy     float64 `json:"accuracy,omitempty"`
}

// NavigationInfo describes how to reach stop from fix on foot. Navigation
// does not apply the accuracy gate; a poor fix still yields directions.
func (e *Engine) NavigationInfo(stop *domain.Stop, fix *domain.Fix) NavigationInfo {
	if fix == nil || !geo.IsValidLatLon(fix.Latitude, fix.Longitude) {
		return NavigationInfo{Reason: "location unavailable"}
	}
	if stop == nil || !stop.HasPosition() {
		return NavigationInfo{Reason: "stop has no valid coordinates"}
	}

	here := fix.Coordinate()
	d := geo.Haversine(here, stop.Coordinate())
	b := geo.Bearing(here, stop.Coordinate())
	eta := e.etaMinutes(d)

	return NavigationInfo{
		Distance:     int(math.Round(d)),
		DistanceText: FormatDistance(d),
		Bearing:      math.Round(b),
		Direction:    geo.BearingToCardinal(b),
		ETA:          eta,
		ETAText:      FormatETA(eta),
		CanNavigate:  true,
		Accuracy:     fix.Accuracy,
	}
}

func (e *Engine) etaMinutes(meters float64) int {
	metersPerMinute := e.cfg.WalkingSpeedKmh * 1000 / 60
	return int(math.Round(meters / metersPerMinute))
}

// FormatDistance renders meters below 1 km and one-decimal kilometers above.
func FormatDistance(meters float64) string {
	if meters < 1000 {
		return fmt.Sprintf("%dm", int(math.Round(meters)))
	}
	return fmt.Sprintf("%.1fkm", meters/1000)
}

// FormatETA renders a walking time in minutes.
func FormatETA(minutes int) string {
	switch {
	case minutes < 1:
		return "< 1 min"
	case minutes < 60:
		return fmt.Sprintf("%d min", minutes)
	}
	h, m := minutes/60, minutes%60
	if m == 0 {
		return fmt.Sprintf("%dh", h)
	}
	return fmt.Sprintf("%dh %dm", h, m)
}

type NearbyStats struct {
	Count           int     `json:"count"`
	NearestDistance *int    `json:"nearest_distance"`
	AverageDistance *int    `json:"average_distance"`
	TotalStops      int     `json:"total_stops"`
	Radius          float64 `json:"radius"`
}

// NearbyStats summarizes the stops visible from fix.
func (e *Engine) NearbyStats(fix *domain.Fix, stops []*domain.Stop, radiusMeters float64) NearbyStats {
	if radiusMeters <= 0 {
		radiusMeters = e.cfg.RadiusMeters
	}
	visible := e.VisibleStops(fix, stops, radiusMeters)
	stats := NearbyStats{Count: len(visible), TotalStops: len(stops), Radius: radiusMeters}
	if len(visible) == 0 {
		return stats
	}

	nearest := visible[0].Distance
	sum := 0
	for _, v := range visible {
		sum += v.Distance
	}
	avg := int(math.Round(float64(sum) / float64(len(visible))))
	stats.NearestDistance = &nearest
	stats.AverageDistance = &avg
	return stats
}

// FilterByZone keeps the stops belonging to key.
func FilterByZone(stops []*domain.Stop, key domain.ZoneKey) []*domain.Stop {
	out := make([]*domain.Stop, 0, len(stops))
	for _, s := range stops {
		if s != nil && s.ZoneID == key.Zone && s.Plan == key.Plan {
			out = append(out, s)
		}
	}
	return out
}
