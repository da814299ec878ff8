package repositories

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"field-route-service/internal/domain"
	"field-route-service/internal/platform/db"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()

	conn, err := db.OpenSQLite(":memory:")
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(func() { conn.Close() })

	if err := InitSchema(conn, SQLite); err != nil {
		t.Fatalf("init schema: %v", err)
	}
	return NewStore(conn, SQLite)
}

func TestRebind(t *testing.T) {
	q := "SELECT * FROM stops WHERE zone_id = ? AND plan = ?"
	if got := SQLite.Rebind(q); got != q {
		t.Fatalf("sqlite rebind changed query: %q", got)
	}
	want := "SELECT * FROM stops WHERE zone_id = $1 AND plan = $2"
	if got := Postgres.Rebind(q); got != want {
		t.Fatalf("postgres rebind = %q, want %q", got, want)
	}
	if _, err := ParseDialect("mysql"); err == nil {
		t.Fatal("expected error for unknown driver")
	}
}

func TestInitSchemaIsIdempotent(t *testing.T) {
	s := newTestStore(t)
	if err := InitSchema(s.DB, SQLite); err != nil {
		t.Fatalf("second init: %v", err)
	}
}

func TestStopCRUD(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	in := &domain.Stop{ZoneID: 9, Plan: "b", Name: "Ufficio Postale", Latitude: 45.0597, Longitude: 9.4353}
	got, err := s.InsertStop(ctx, in)
	if err != nil {
		t.Fatalf("InsertStop: %v", err)
	}
	if got.ID == "" || got.Plan != domain.PlanB {
		t.Fatalf("unexpected stop %+v", got)
	}

	manual := &domain.Stop{ID: "manual_1_abc", ZoneID: 9, Plan: "B", Name: "Bar Centrale", Latitude: 45.06, Longitude: 9.44, IsManual: true}
	if _, err := s.InsertStop(ctx, manual); err != nil {
		t.Fatalf("InsertStop manual: %v", err)
	}

	key, _ := domain.NewZoneKey(9, "B")
	stops, err := s.StopsByZone(ctx, key)
	if err != nil {
		t.Fatalf("StopsByZone: %v", err)
	}
	if len(stops) != 2 || stops[0].Name != "Bar Centrale" {
		t.Fatalf("expected 2 stops ordered by name, got %+v", stops)
	}

	manuals, err := s.ManualStops(ctx)
	if err != nil {
		t.Fatalf("ManualStops: %v", err)
	}
	if len(manuals) != 1 || manuals[0].ID != "manual_1_abc" || !manuals[0].IsManual {
		t.Fatalf("unexpected manual stops %+v", manuals)
	}

	got.Name = "Poste Italiane"
	if err := s.UpdateStop(ctx, got); err != nil {
		t.Fatalf("UpdateStop: %v", err)
	}
	reread, err := s.GetStop(ctx, got.ID)
	if err != nil {
		t.Fatalf("GetStop: %v", err)
	}
	if reread.Name != "Poste Italiane" {
		t.Fatalf("update not persisted: %+v", reread)
	}

	if err := s.DeleteStop(ctx, got.ID); err != nil {
		t.Fatalf("DeleteStop: %v", err)
	}
	if _, err := s.GetStop(ctx, got.ID); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if err := s.DeleteStop(ctx, got.ID); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound on second delete, got %v", err)
	}
}

func TestInsertStopValidates(t *testing.T) {
	s := newTestStore(t)
	_, err := s.InsertStop(context.Background(), &domain.Stop{ZoneID: 9, Plan: "B", Name: "x", Latitude: 95})
	var fe *domain.FieldError
	if !errors.As(err, &fe) || fe.Field != "lat" {
		t.Fatalf("expected lat FieldError, got %v", err)
	}
}

func TestRunLifecycle(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	active, err := s.ActiveRun(ctx)
	if err != nil || active != nil {
		t.Fatalf("expected no active run, got %+v, %v", active, err)
	}

	run, err := s.StartRun(ctx, &domain.Run{ZoneID: 9, Plan: "B", Notes: "morning"})
	if err != nil {
		t.Fatalf("StartRun: %v", err)
	}
	if run.ID == 0 || run.Status != domain.RunActive {
		t.Fatalf("unexpected run %+v", run)
	}

	if _, err := s.StartRun(ctx, &domain.Run{ZoneID: 9, Plan: "A"}); !errors.Is(err, domain.ErrActiveRunExists) {
		t.Fatalf("expected ErrActiveRunExists, got %v", err)
	}

	if _, err := s.AddStopToRun(ctx, run.ID, "s1", domain.RunStopPending); err != nil {
		t.Fatalf("AddStopToRun: %v", err)
	}
	if _, err := s.AddStopToRun(ctx, run.ID, "s2", domain.RunStopSkipped); err != nil {
		t.Fatalf("AddStopToRun: %v", err)
	}
	again, err := s.AddStopToRun(ctx, run.ID, "s1", domain.RunStopFailed)
	if err != nil {
		t.Fatalf("AddStopToRun twice: %v", err)
	}
	if again.Status != domain.RunStopPending {
		t.Fatalf("re-attach must keep the existing row, got %q", again.Status)
	}
	if _, err := s.AddStopToRun(ctx, 999, "s1", domain.RunStopPending); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound for unknown run, got %v", err)
	}

	lat, lng := 45.06, 9.44
	if err := s.CompleteStopInRun(ctx, run.ID, "s1", domain.StopCompletion{Latitude: &lat, Longitude: &lng, Notes: "ok"}, time.Now()); err != nil {
		t.Fatalf("CompleteStopInRun: %v", err)
	}
	if err := s.CompleteStopInRun(ctx, run.ID, "nope", domain.StopCompletion{}, time.Now()); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound for unattached stop, got %v", err)
	}

	stats, err := s.RunStopStats(ctx, run.ID)
	if err != nil {
		t.Fatalf("RunStopStats: %v", err)
	}
	if stats != (domain.RunStats{Completed: 1, Skipped: 1}) {
		t.Fatalf("unexpected stats %+v", stats)
	}

	dist := 1234.5
	if err := s.CompleteRun(ctx, run.ID, domain.RunSummary{TotalDistance: &dist}, time.Now()); err != nil {
		t.Fatalf("CompleteRun: %v", err)
	}
	done, err := s.GetRun(ctx, run.ID)
	if err != nil {
		t.Fatalf("GetRun: %v", err)
	}
	if done.Status != domain.RunCompleted || done.EndedAt == nil || *done.TotalDistance != dist || done.Notes != "morning" {
		t.Fatalf("unexpected completed run %+v", done)
	}

	if _, err := s.StartRun(ctx, &domain.Run{ZoneID: 9, Plan: "A"}); err != nil {
		t.Fatalf("StartRun after completion: %v", err)
	}

	key, _ := domain.NewZoneKey(9, "B")
	runs, err := s.RunsByZone(ctx, key)
	if err != nil || len(runs) != 1 {
		t.Fatalf("RunsByZone = %d runs, %v", len(runs), err)
	}
}

func TestActiveRunUniqueIndex(t *testing.T) {
	s := newTestStore(t)
	insert := `INSERT INTO runs (zone_id, plan, status, started_at) VALUES (9, 'B', 'active', 1);`
	if _, err := s.DB.Exec(insert); err != nil {
		t.Fatalf("first insert: %v", err)
	}
	_, err := s.DB.Exec(insert)
	if !isUniqueViolation(err) {
		t.Fatalf("expected unique violation, got %v", err)
	}
}

func TestSettings(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	tests := []struct {
		key   string
		value any
		want  any
	}{
		{"map_style", "satellite", "satellite"},
		{"marker_radius", 250, 250.0},
		{"auto_center", false, false},
	}
	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			if err := s.SetSetting(ctx, tt.key, tt.value); err != nil {
				t.Fatalf("SetSetting: %v", err)
			}
			got, err := s.GetSetting(ctx, tt.key)
			if err != nil {
				t.Fatalf("GetSetting: %v", err)
			}
			if got != tt.want {
				t.Fatalf("got %#v, want %#v", got, tt.want)
			}
		})
	}

	if err := s.SetSetting(ctx, "layers", []string{"stops", "routes"}); err != nil {
		t.Fatalf("SetSetting json: %v", err)
	}
	got, err := s.GetSetting(ctx, "layers")
	if err != nil {
		t.Fatalf("GetSetting json: %v", err)
	}
	if l, ok := got.([]any); !ok || len(l) != 2 || l[1] != "routes" {
		t.Fatalf("unexpected json setting %#v", got)
	}

	if _, err := s.GetSetting(ctx, "missing"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestSeed(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	path := filepath.Join(t.TempDir(), "stops.json")
	data := `[
		{"zone_id": 9, "plan": "B", "name": "Municipio", "latitude": 45.0597, "longitude": 9.4353},
		{"id": "fixed", "zone_id": 9, "plan": "a", "name": "Stazione", "latitude": 45.0580, "longitude": 9.4330}
	]`
	if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
		t.Fatal(err)
	}

	for i := 0; i < 2; i++ {
		if err := Seed(s.DB, SQLite, path); err != nil {
			t.Fatalf("Seed run %d: %v", i+1, err)
		}
	}

	stats, err := s.Stats(ctx)
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}
	if stats.Zones != 1 || stats.Stops != 2 || stats.ManualStops != 0 {
		t.Fatalf("unexpected stats after seeding twice: %+v", stats)
	}

	z, err := s.GetZone(ctx, 9)
	if err != nil || z.Name != "Castel San Giovanni" {
		t.Fatalf("GetZone = %+v, %v", z, err)
	}
	radius, err := s.GetSetting(ctx, "marker_radius")
	if err != nil || radius != 200.0 {
		t.Fatalf("marker_radius = %v, %v", radius, err)
	}
	if _, err := s.GetStop(ctx, "fixed"); err != nil {
		t.Fatalf("GetStop fixed: %v", err)
	}
}

func TestSeedRejectsInvalidStops(t *testing.T) {
	s := newTestStore(t)
	path := filepath.Join(t.TempDir(), "stops.json")
	_ = os.WriteFile(path, []byte(`[{"zone_id": 0, "plan": "B", "name": "x"}]`), 0o644)

	if err := Seed(s.DB, SQLite, path); err == nil {
		t.Fatal("expected error")
	}
}

func TestZones(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	if err := s.InsertZone(ctx, domain.Zone{ID: 3, Name: "Sarmato"}); err != nil {
		t.Fatalf("InsertZone: %v", err)
	}
	if err := s.InsertZone(ctx, domain.Zone{ID: 0, Name: "bad"}); !domain.IsFieldError(err) {
		t.Fatalf("expected FieldError, got %v", err)
	}
	zones, err := s.ListZones(ctx)
	if err != nil || len(zones) != 1 {
		t.Fatalf("ListZones = %+v, %v", zones, err)
	}
	if _, err := s.GetZone(ctx, 4); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestNilDB(t *testing.T) {
	s := &Store{Dialect: SQLite, Now: time.Now}
	if _, err := s.ActiveRun(context.Background()); err == nil {
		t.Fatal("expected error for nil DB")
	}
}
