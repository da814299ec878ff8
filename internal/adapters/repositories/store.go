package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"field-route-service/internal/platform/obs"
	"field-route-service/internal/ports"
)

// Store is the relational implementation of the stop, run, settings and
// zone repositories. The same queries serve SQLite and Postgres.
type Store struct {
	DB      *sql.DB
	Dialect Dialect
	Now     func() time.Time
}

func NewStore(db *sql.DB, d Dialect) *Store {
	return &Store{DB: db, Dialect: d, Now: time.Now}
}

var (
	_ ports.StopRepository     = (*Store)(nil)
	_ ports.RunRepository      = (*Store)(nil)
	_ ports.SettingsRepository = (*Store)(nil)
	_ ports.ZoneRepository     = (*Store)(nil)
	_ ports.StatsProvider      = (*Store)(nil)
)

func (s *Store) check() error {
	if s.DB == nil {
		return errors.New("store: DB is nil")
	}
	return nil
}

func (s *Store) q(query string) string { return s.Dialect.Rebind(query) }

// Stats counts rows across the store.
func (s *Store) Stats(ctx context.Context) (_ ports.StorageStats, err error) {
	defer obs.Time(ctx, "store.Stats")(&err)

	if err := s.check(); err != nil {
		return ports.StorageStats{}, err
	}

	var st ports.StorageStats
	counts := []struct {
		dst   *int
		query string
	}{
		{&st.Zones, `SELECT COUNT(*) FROM zones;`},
		{&st.Stops, `SELECT COUNT(*) FROM stops;`},
		{&st.ManualStops, `SELECT COUNT(*) FROM stops WHERE is_manual = TRUE;`},
		{&st.Runs, `SELECT COUNT(*) FROM runs;`},
		{&st.ActiveRuns, `SELECT COUNT(*) FROM runs WHERE status = 'active';`},
		{&st.RunStops, `SELECT COUNT(*) FROM run_stops;`},
	}
	for _, c := range counts {
		if err := s.DB.QueryRowContext(ctx, c.query).Scan(c.dst); err != nil {
			return ports.StorageStats{}, fmt.Errorf("stats: %w", err)
		}
	}
	return st, nil
}

func millis(t time.Time) int64 { return t.UnixMilli() }

func fromMillis(ms int64) time.Time { return time.UnixMilli(ms).UTC() }

func nullMillis(ms sql.NullInt64) *time.Time {
	if !ms.Valid {
		return nil
	}
	t := fromMillis(ms.Int64)
	return &t
}

func nullFloat(f sql.NullFloat64) *float64 {
	if !f.Valid {
		return nil
	}
	v := f.Float64
	return &v
}
