package api

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"testing/fstest"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"golang.org/x/crypto/bcrypt"

	"field-route-service/internal/adapters/cache"
	"field-route-service/internal/adapters/kmlfile"
	syncstore "field-route-service/internal/adapters/remotesync"
	"field-route-service/internal/adapters/repositories"
	"field-route-service/internal/adapters/routing"
	"field-route-service/internal/domain"
	"field-route-service/internal/platform/db"
	"field-route-service/internal/services/coordinator"
	"field-route-service/internal/services/kmlload"
	"field-route-service/internal/services/manualstops"
	"field-route-service/internal/services/navigation"
	"field-route-service/internal/services/proximity"
	"field-route-service/internal/services/remotesync"
	"field-route-service/internal/services/roadpath"
	"field-route-service/internal/services/runs"
	"field-route-service/internal/services/zonestate"
)

const zone9B = `<kml><Document><name>Zona 9 Sottozona B</name>
<Placemark><name>Giro</name><LineString><coordinates>9.58337,44.96544,0 9.58333,44.96549,0 9.58331,44.96552,0</coordinates></LineString></Placemark>
</Document></kml>`

type testServer struct {
	handler http.Handler
	store   *repositories.Store
}

func newTestServer(t *testing.T, withSync bool) *testServer {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	conn, err := db.OpenSQLite(":memory:")
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	if err := repositories.InitSchema(conn, repositories.SQLite); err != nil {
		t.Fatalf("init schema: %v", err)
	}
	store := repositories.NewStore(conn, repositories.SQLite)

	loader := kmlload.NewLoader(kmlfile.NewFSSource(fstest.MapFS{
		"Zona9_SottozonaB.kml": {Data: []byte(zone9B), ModTime: time.Now()},
	}), kmlload.Options{Logger: logger})
	engine := proximity.NewEngine(proximity.DefaultConfig())
	runSvc := runs.NewService(store, logger)

	router := routing.NewMockRouter([]domain.Coordinate{
		{Latitude: 44.96544, Longitude: 9.58337},
		{Latitude: 44.9655, Longitude: 9.5834},
		{Latitude: 44.96552, Longitude: 9.58331},
	}, 42)
	planner := roadpath.NewPlanner(router, logger)

	coord := coordinator.New(coordinator.Deps{
		Loader:       loader,
		Stops:        store,
		KMLCache:     cache.NewSqliteKMLCache(conn),
		StorageStats: store,
		Zones:        zonestate.NewManager(logger),
		Manual:       manualstops.NewService(manualstops.Options{Logger: logger}),
		Navigation:   navigation.NewTracker(engine, time.Hour, logger),
		Proximity:    engine,
		Runs:         runSvc,
		RoadPath:     planner,
		Logger:       logger,
	})
	t.Cleanup(coord.Close)

	var syncSvc *remotesync.Service
	if withSync {
		mr := miniredis.RunT(t)
		rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
		t.Cleanup(func() { rdb.Close() })
		rs := syncstore.NewRedisStore(rdb)
		syncSvc = remotesync.NewService(rs, rs, remotesync.Options{Cost: bcrypt.MinCost, Logger: logger})
	} else {
		syncSvc = remotesync.NewService(nil, nil, remotesync.Options{Logger: logger})
	}

	h := NewRouter(Deps{
		Loader:      loader,
		Coordinator: coord,
		Runs:        runSvc,
		RoadPath:    planner,
		Sync:        syncSvc,
		Logger:      logger,
	})
	return &testServer{handler: h, store: store}
}

func (s *testServer) do(t *testing.T, method, path, body, token string) *httptest.ResponseRecorder {
	t.Helper()
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, r)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rr := httptest.NewRecorder()
	s.handler.ServeHTTP(rr, req)
	return rr
}

func decode(t *testing.T, rr *httptest.ResponseRecorder, v any) {
	t.Helper()
	if err := json.NewDecoder(bytes.NewReader(rr.Body.Bytes())).Decode(v); err != nil {
		t.Fatalf("decode %q: %v", rr.Body.String(), err)
	}
}

func expectStatus(t *testing.T, rr *httptest.ResponseRecorder, want int) {
	t.Helper()
	if rr.Code != want {
		t.Fatalf("expected %d, got %d: %s", want, rr.Code, rr.Body.String())
	}
}

func TestHealthAndMetrics(t *testing.T) {
	s := newTestServer(t, false)

	rr := s.do(t, http.MethodGet, "/health", "", "")
	expectStatus(t, rr, http.StatusOK)
	if rr.Header().Get("X-Request-ID") == "" {
		t.Fatal("expected a request id header")
	}

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("X-Request-ID", "abc")
	rr = httptest.NewRecorder()
	s.handler.ServeHTTP(rr, req)
	if got := rr.Header().Get("X-Request-ID"); got != "abc" {
		t.Fatalf("expected propagated request id, got %q", got)
	}

	rr = s.do(t, http.MethodGet, "/metrics", "", "")
	expectStatus(t, rr, http.StatusOK)
	if !strings.Contains(rr.Body.String(), "go_goroutines") {
		t.Fatal("metrics exposition missing default collectors")
	}

	rr = s.do(t, http.MethodPost, "/health", "", "")
	expectStatus(t, rr, http.StatusMethodNotAllowed)
}

func TestZoneEndpoints(t *testing.T) {
	s := newTestServer(t, false)

	rr := s.do(t, http.MethodGet, "/zones", "", "")
	expectStatus(t, rr, http.StatusOK)
	var list struct {
		Files []struct {
			Zone     int    `json:"zone"`
			Plan     string `json:"plan"`
			FileName string `json:"file_name"`
		} `json:"files"`
	}
	decode(t, rr, &list)
	if len(list.Files) != 1 || list.Files[0].Zone != 9 || list.Files[0].Plan != "B" {
		t.Fatalf("unexpected files %+v", list.Files)
	}

	var summary struct {
		Name        string `json:"name"`
		RouteCount  int    `json:"route_count"`
		TotalPoints int    `json:"total_points"`
		Cached      bool   `json:"cached"`
	}
	rr = s.do(t, http.MethodGet, "/zones/9/b/kml", "", "")
	expectStatus(t, rr, http.StatusOK)
	decode(t, rr, &summary)
	if summary.Name != "Zona 9 Sottozona B" || summary.RouteCount != 1 || summary.TotalPoints != 3 || summary.Cached {
		t.Fatalf("unexpected summary %+v", summary)
	}

	rr = s.do(t, http.MethodGet, "/zones/9/B/kml", "", "")
	decode(t, rr, &summary)
	if !summary.Cached {
		t.Fatal("second load should come from cache")
	}
	rr = s.do(t, http.MethodGet, "/zones/9/B/kml?force=true", "", "")
	decode(t, rr, &summary)
	if summary.Cached {
		t.Fatal("forced load must bypass the cache")
	}

	tests := []struct {
		name string
		path string
		want int
	}{
		{"bad plan", "/zones/9/C/kml", http.StatusBadRequest},
		{"bad zone", "/zones/nine/B/kml", http.StatusBadRequest},
		{"missing file", "/zones/3/A/kml", http.StatusNotFound},
		{"missing validation", "/zones/3/A/validation", http.StatusNotFound},
		{"not activated", "/zones/9/B/cached", http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			expectStatus(t, s.do(t, http.MethodGet, tt.path, "", ""), tt.want)
		})
	}

	rr = s.do(t, http.MethodGet, "/zones/9/B/validation", "", "")
	expectStatus(t, rr, http.StatusOK)
	var v struct {
		Validation domain.ValidationResult `json:"validation"`
		Report     string                  `json:"report"`
	}
	decode(t, rr, &v)
	if !v.Validation.IsValid || v.Report == "" {
		t.Fatalf("unexpected validation %+v", v)
	}

	rr = s.do(t, http.MethodGet, "/zones/9/B/geojson", "", "")
	expectStatus(t, rr, http.StatusOK)
	if ct := rr.Header().Get("Content-Type"); ct != "application/geo+json" {
		t.Fatalf("unexpected content type %q", ct)
	}
	if !strings.Contains(rr.Body.String(), `"LineString"`) {
		t.Fatalf("geojson missing route: %s", rr.Body.String())
	}

	rr = s.do(t, http.MethodPost, "/zones/9/B/activate", "", "")
	expectStatus(t, rr, http.StatusOK)
	expectStatus(t, s.do(t, http.MethodGet, "/zones/9/B/cached", "", ""), http.StatusOK)
}

func TestSessionEndpoints(t *testing.T) {
	s := newTestServer(t, false)
	expectStatus(t, s.do(t, http.MethodPost, "/zones/9/B/activate", "", ""), http.StatusOK)

	rr := s.do(t, http.MethodPost, "/stops/manual", `{"name":"Edicola","latitude":44.96552,"longitude":9.58331,"zone":9,"plan":"B"}`, "")
	expectStatus(t, rr, http.StatusCreated)
	var stop domain.Stop
	decode(t, rr, &stop)
	if !stop.IsManual || !strings.HasPrefix(stop.ID, "manual_") {
		t.Fatalf("unexpected stop %+v", stop)
	}

	rr = s.do(t, http.MethodPost, "/location", `{"latitude":44.96544,"longitude":9.58337,"accuracy":10}`, "")
	expectStatus(t, rr, http.StatusOK)
	var loc struct {
		Usable  bool                `json:"usable"`
		Markers []domain.MarkerView `json:"markers"`
	}
	decode(t, rr, &loc)
	if !loc.Usable || len(loc.Markers) != 1 || loc.Markers[0].Stop.ID != stop.ID {
		t.Fatalf("unexpected location update %+v", loc)
	}

	rr = s.do(t, http.MethodPost, "/selection", `{"stop_id":"`+stop.ID+`"}`, "")
	expectStatus(t, rr, http.StatusOK)
	expectStatus(t, s.do(t, http.MethodPost, "/selection", `{"stop_id":"nope"}`, ""), http.StatusNotFound)
	expectStatus(t, s.do(t, http.MethodDelete, "/selection", "", ""), http.StatusNoContent)

	rr = s.do(t, http.MethodPost, "/visit-plan", `{}`, "")
	expectStatus(t, rr, http.StatusOK)
	var plan struct {
		Stops []struct {
			Stop domain.Stop `json:"stop"`
		} `json:"stops"`
		Path domain.RoadPath `json:"path"`
	}
	decode(t, rr, &plan)
	if len(plan.Stops) != 1 || plan.Stops[0].Stop.ID != stop.ID || plan.Path.Provider != "mock" {
		t.Fatalf("unexpected visit plan %+v", plan)
	}

	expectStatus(t, s.do(t, http.MethodPost, "/stops/manual", `{"name":"","latitude":44,"longitude":9,"zone":9,"plan":"B"}`, ""), http.StatusBadRequest)
	expectStatus(t, s.do(t, http.MethodPost, "/stops/manual", `{"name":"x","extra":1}`, ""), http.StatusBadRequest)
	expectStatus(t, s.do(t, http.MethodPost, "/stops/manual", `{"name":"x"}{"name":"y"}`, ""), http.StatusBadRequest)

	rr = s.do(t, http.MethodGet, "/stats", "", "")
	expectStatus(t, rr, http.StatusOK)
	var stats coordinator.CompleteStats
	decode(t, rr, &stats)
	if stats.Database == nil || stats.Database.ManualStops != 1 || stats.Map.StopCount != 1 {
		t.Fatalf("unexpected stats %+v", stats)
	}

	rr = s.do(t, http.MethodGet, "/export", "", "")
	expectStatus(t, rr, http.StatusOK)
	if !strings.Contains(rr.Body.String(), `"version": "3.0.0"`) {
		t.Fatalf("unexpected export %s", rr.Body.String())
	}

	expectStatus(t, s.do(t, http.MethodDelete, "/stops/manual/"+stop.ID, "", ""), http.StatusNoContent)
	expectStatus(t, s.do(t, http.MethodDelete, "/stops/manual/"+stop.ID, "", ""), http.StatusNotFound)

	expectStatus(t, s.do(t, http.MethodPost, "/reset", "", ""), http.StatusNoContent)
}

func TestRunEndpoints(t *testing.T) {
	s := newTestServer(t, false)

	expectStatus(t, s.do(t, http.MethodGet, "/active-run", "", ""), http.StatusNotFound)
	expectStatus(t, s.do(t, http.MethodPost, "/active-run/stops/s1/complete", `{}`, ""), http.StatusConflict)

	rr := s.do(t, http.MethodPost, "/runs", `{"zone":9,"plan":"B"}`, "")
	expectStatus(t, rr, http.StatusCreated)
	var run domain.Run
	decode(t, rr, &run)

	expectStatus(t, s.do(t, http.MethodPost, "/runs", `{"zone":9,"plan":"A"}`, ""), http.StatusConflict)
	expectStatus(t, s.do(t, http.MethodPost, "/runs", `{"zone":9,"plan":"X"}`, ""), http.StatusBadRequest)

	rr = s.do(t, http.MethodGet, "/active-run", "", "")
	expectStatus(t, rr, http.StatusOK)
	var active domain.Run
	decode(t, rr, &active)
	if active.ID != run.ID {
		t.Fatalf("expected active run %d, got %d", run.ID, active.ID)
	}

	runPath := "/runs/" + strconv.FormatInt(run.ID, 10)
	expectStatus(t, s.do(t, http.MethodPost, runPath+"/stops", `{"stop_id":"s2"}`, ""), http.StatusCreated)
	expectStatus(t, s.do(t, http.MethodPost, "/active-run/stops/s1/complete", `{"notes":"ok"}`, ""), http.StatusNoContent)

	rr = s.do(t, http.MethodGet, runPath+"/stats", "", "")
	expectStatus(t, rr, http.StatusOK)
	var st struct {
		Stats domain.RunStats `json:"stats"`
	}
	decode(t, rr, &st)
	if st.Stats.Completed != 1 || st.Stats.Pending != 1 {
		t.Fatalf("unexpected run stats %+v", st.Stats)
	}

	expectStatus(t, s.do(t, http.MethodPost, runPath+"/complete", `{"total_distance":1200}`, ""), http.StatusNoContent)
	expectStatus(t, s.do(t, http.MethodGet, "/active-run", "", ""), http.StatusNotFound)
	expectStatus(t, s.do(t, http.MethodGet, "/runs/0/stats", "", ""), http.StatusBadRequest)
	expectStatus(t, s.do(t, http.MethodPost, "/runs/999/complete", `{}`, ""), http.StatusNotFound)
}

func TestRoadPathEndpoint(t *testing.T) {
	s := newTestServer(t, false)

	rr := s.do(t, http.MethodPost, "/road-path", `{"waypoints":[{"latitude":44.96544,"longitude":9.58337},{"latitude":44.96552,"longitude":9.58331}]}`, "")
	expectStatus(t, rr, http.StatusOK)
	var path domain.RoadPath
	decode(t, rr, &path)
	if path.Fallback || path.Provider != "mock" || len(path.Coordinates) != 3 {
		t.Fatalf("unexpected road path %+v", path)
	}

	expectStatus(t, s.do(t, http.MethodPost, "/road-path", `{"waypoints":[{"latitude":44.9,"longitude":9.5}]}`, ""), http.StatusBadRequest)
	expectStatus(t, s.do(t, http.MethodPost, "/road-path", `not json`, ""), http.StatusBadRequest)
}

func TestSyncEndpoints(t *testing.T) {
	disabled := newTestServer(t, false)
	expectStatus(t, disabled.do(t, http.MethodPost, "/sync/signup", `{"email":"a@b.it","password":"secret1"}`, ""), http.StatusServiceUnavailable)

	s := newTestServer(t, true)

	expectStatus(t, s.do(t, http.MethodGet, "/sync/routes", "", ""), http.StatusUnauthorized)

	rr := s.do(t, http.MethodPost, "/sync/signup", `{"email":"Rider@Example.com","password":"secret1"}`, "")
	expectStatus(t, rr, http.StatusCreated)
	var sess domain.Session
	decode(t, rr, &sess)
	if sess.Token == "" || sess.Email != "rider@example.com" {
		t.Fatalf("unexpected session %+v", sess)
	}

	expectStatus(t, s.do(t, http.MethodPost, "/sync/signin", `{"email":"rider@example.com","password":"wrong!!"}`, ""), http.StatusUnauthorized)
	expectStatus(t, s.do(t, http.MethodPost, "/sync/signup", `{"email":"not-an-email","password":"secret1"}`, ""), http.StatusBadRequest)

	body := `{"name":"Giro mattina","zone":9,"plan":"B","path":[{"latitude":44.96544,"longitude":9.58337},{"latitude":44.96552,"longitude":9.58331}]}`
	rr = s.do(t, http.MethodPost, "/sync/routes", body, sess.Token)
	expectStatus(t, rr, http.StatusCreated)
	var route domain.SyncedRoute
	decode(t, rr, &route)

	rr = s.do(t, http.MethodGet, "/sync/routes", "", sess.Token)
	expectStatus(t, rr, http.StatusOK)
	var list struct {
		Routes []domain.SyncedRoute `json:"routes"`
	}
	decode(t, rr, &list)
	if len(list.Routes) != 1 || list.Routes[0].ID != route.ID {
		t.Fatalf("unexpected routes %+v", list.Routes)
	}

	rr = s.do(t, http.MethodPatch, "/sync/routes/"+route.ID, `{"is_public":true}`, sess.Token)
	expectStatus(t, rr, http.StatusOK)

	rr = s.do(t, http.MethodPost, "/sync/routes/"+route.ID+"/stops", `{"name":"Bar","latitude":44.9655,"longitude":9.5833}`, sess.Token)
	expectStatus(t, rr, http.StatusOK)
	decode(t, rr, &route)
	if len(route.Stops) != 1 || !route.IsPublic {
		t.Fatalf("unexpected route after updates %+v", route)
	}
	expectStatus(t, s.do(t, http.MethodDelete, "/sync/routes/"+route.ID+"/stops/"+route.Stops[0].ID, "", sess.Token), http.StatusOK)

	expectStatus(t, s.do(t, http.MethodDelete, "/sync/routes/"+route.ID, "", sess.Token), http.StatusNoContent)
	expectStatus(t, s.do(t, http.MethodGet, "/sync/routes/"+route.ID, "", sess.Token), http.StatusNotFound)

	expectStatus(t, s.do(t, http.MethodPost, "/sync/signout", "", sess.Token), http.StatusNoContent)
	expectStatus(t, s.do(t, http.MethodGet, "/sync/routes", "", sess.Token), http.StatusUnauthorized)
}
