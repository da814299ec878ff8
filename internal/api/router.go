package api

import (
	"log/slog"
	"net/http"

	"github.com/julienschmidt/httprouter"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"field-route-service/internal/api/handlers"
	"field-route-service/internal/services/coordinator"
	"field-route-service/internal/services/kmlload"
	"field-route-service/internal/services/remotesync"
	"field-route-service/internal/services/roadpath"
	"field-route-service/internal/services/runs"
)

// Deps are the services the HTTP layer dispatches to.
type Deps struct {
	Loader      *kmlload.Loader
	Coordinator *coordinator.Coordinator
	Runs        *runs.Service
	RoadPath    *roadpath.Planner
	Sync        *remotesync.Service
	Logger      *slog.Logger
}

// NewRouter wires HTTP handlers with their dependencies and returns an http.Handler.
// Handlers stay unaware of concrete adapters.
func NewRouter(d Deps) http.Handler {
	if d.Logger == nil {
		d.Logger = slog.Default()
	}

	zones := &handlers.ZoneHandler{Loader: d.Loader, Coordinator: d.Coordinator}
	session := &handlers.SessionHandler{Coordinator: d.Coordinator}
	runHandler := &handlers.RunHandler{Runs: d.Runs}
	road := &handlers.RoadPathHandler{Planner: d.RoadPath}
	sync := &handlers.SyncHandler{Sync: d.Sync}

	router := httprouter.New()

	router.HandlerFunc(http.MethodGet, "/health", handlers.Health)
	router.Handler(http.MethodGet, "/metrics", promhttp.Handler())

	router.HandlerFunc(http.MethodGet, "/zones", zones.List)
	router.HandlerFunc(http.MethodGet, "/zones/:zone/:plan/kml", zones.KML)
	router.HandlerFunc(http.MethodGet, "/zones/:zone/:plan/validation", zones.Validation)
	router.HandlerFunc(http.MethodGet, "/zones/:zone/:plan/geojson", zones.GeoJSON)
	router.HandlerFunc(http.MethodGet, "/zones/:zone/:plan/cached", zones.Cached)
	router.HandlerFunc(http.MethodPost, "/zones/:zone/:plan/activate", zones.Activate)

	router.HandlerFunc(http.MethodGet, "/stats", session.Stats)
	router.HandlerFunc(http.MethodGet, "/export", session.Export)
	router.HandlerFunc(http.MethodPost, "/reset", session.Reset)
	router.HandlerFunc(http.MethodPost, "/location", session.Location)
	router.HandlerFunc(http.MethodPost, "/stops/manual", session.AddManualStop)
	router.HandlerFunc(http.MethodDelete, "/stops/manual/:id", session.RemoveManualStop)
	router.HandlerFunc(http.MethodPost, "/selection", session.Select)
	router.HandlerFunc(http.MethodDelete, "/selection", session.Deselect)
	router.HandlerFunc(http.MethodPost, "/visit-plan", session.PlanVisit)

	router.HandlerFunc(http.MethodPost, "/runs", runHandler.Start)
	router.HandlerFunc(http.MethodPost, "/runs/:id/complete", runHandler.Complete)
	router.HandlerFunc(http.MethodGet, "/runs/:id/stats", runHandler.Stats)
	router.HandlerFunc(http.MethodPost, "/runs/:id/stops", runHandler.AttachStop)
	router.HandlerFunc(http.MethodGet, "/active-run", runHandler.Active)
	router.HandlerFunc(http.MethodPost, "/active-run/stops/:stop_id/complete", runHandler.CompleteStop)

	router.HandlerFunc(http.MethodPost, "/road-path", road.Compute)

	router.HandlerFunc(http.MethodPost, "/sync/signup", sync.SignUp)
	router.HandlerFunc(http.MethodPost, "/sync/signin", sync.SignIn)
	router.HandlerFunc(http.MethodPost, "/sync/signout", sync.SignOut)
	router.HandlerFunc(http.MethodGet, "/sync/routes", sync.ListRoutes)
	router.HandlerFunc(http.MethodPost, "/sync/routes", sync.SaveRoute)
	router.HandlerFunc(http.MethodGet, "/sync/routes/:id", sync.GetRoute)
	router.HandlerFunc(http.MethodPatch, "/sync/routes/:id", sync.UpdateRoute)
	router.HandlerFunc(http.MethodDelete, "/sync/routes/:id", sync.DeleteRoute)
	router.HandlerFunc(http.MethodPost, "/sync/routes/:id/stops", sync.AddStop)
	router.HandlerFunc(http.MethodDelete, "/sync/routes/:id/stops/:stop_id", sync.RemoveStop)

	return sentryMiddleware(requestIDMiddleware(loggingMiddleware(d.Logger, router)))
}
