package obs

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	KMLLoadDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "field_route_kml_load_duration_seconds",
		Help:    "Time spent reading, parsing and validating a KML file",
		Buckets: prometheus.ExponentialBuckets(0.001, 4, 8),
	}, []string{"outcome"})

	KMLCacheRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "field_route_kml_cache_requests_total",
		Help: "KML load requests by cache result (hit, miss, shared)",
	}, []string{"result"})
)

var (
	VisibleMarkers = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "field_route_visible_markers",
		Help: "Number of stop markers visible after the last location update",
	})

	RunsStarted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "field_route_runs_started_total",
		Help: "Number of runs started",
	})

	StopsCompleted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "field_route_stops_completed_total",
		Help: "Number of stops completed within a run",
	})
)

var (
	RoadPathFallbacks = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "field_route_road_path_fallbacks_total",
		Help: "Road path requests answered with the straight-line fallback",
	}, []string{"provider"})

	OperationDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "field_route_operation_duration_seconds",
		Help:    "Duration of timed service operations",
		Buckets: prometheus.DefBuckets,
	}, []string{"op"})
)
