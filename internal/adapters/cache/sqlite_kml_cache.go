package cache

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"field-route-service/internal/domain"
	"field-route-service/internal/platform/obs"
	"field-route-service/internal/ports"
)

// SQLite backed store of raw KML text and its parsed JSON form, one row
// per zone/plan.
type SqliteKMLCache struct {
	DB *sql.DB
}

func NewSqliteKMLCache(db *sql.DB) *SqliteKMLCache {
	return &SqliteKMLCache{DB: db}
}

var _ ports.KMLCacheRepository = (*SqliteKMLCache)(nil)

func (s *SqliteKMLCache) SaveKMLCache(ctx context.Context, e ports.KMLCacheEntry) (err error) {
	defer obs.Time(ctx, "kml.cache.Save")(&err)

	if s.DB == nil {
		return errors.New("kml cache: db is nil")
	}
	if e.Key.Zone <= 0 || e.Key.Plan == "" {
		return fmt.Errorf("insert kml cache: invalid key %q", e.Key)
	}

	_, err = s.DB.ExecContext(ctx, `
	INSERT OR REPLACE INTO kml_cache (
        zone_id,
        plan,
        content,
        parsed_data,
        file_size,
        last_modified
    )
    VALUES (?, ?, ?, ?, ?, ?);
	`, e.Key.Zone, string(e.Key.Plan), e.Content, e.ParsedData, e.FileSize, e.LastModified.UnixMilli())
	if err != nil {
		return fmt.Errorf("insert kml cache key=%s: %w", e.Key, err)
	}
	return nil
}

func (s *SqliteKMLCache) GetKMLCache(ctx context.Context, key domain.ZoneKey) (_ *ports.KMLCacheEntry, ok bool, err error) {
	defer obs.Time(ctx, "kml.cache.Get")(&err)

	if s.DB == nil {
		return nil, false, errors.New("kml cache: db is nil")
	}

	row := s.DB.QueryRowContext(ctx, `
	SELECT
        content,
        parsed_data,
        file_size,
        last_modified
    FROM kml_cache
    WHERE zone_id = ? AND plan = ?;
	`, key.Zone, string(key.Plan))

	return scanKMLEntry(key, row)
}

func scanKMLEntry(key domain.ZoneKey, row *sql.Row) (*ports.KMLCacheEntry, bool, error) {
	e := &ports.KMLCacheEntry{Key: key}
	var modified int64
	err := row.Scan(&e.Content, &e.ParsedData, &e.FileSize, &modified)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("get kml cache: scan row: %w", err)
	}
	e.LastModified = time.UnixMilli(modified)
	return e, true, nil
}
