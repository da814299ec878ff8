package cache

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"field-route-service/internal/domain"
	"field-route-service/internal/platform/obs"
	"field-route-service/internal/ports"
)

// SQLKMLCache is the Postgres-backed KML cache.
type SQLKMLCache struct {
	DB *sql.DB
}

func NewSQLKMLCache(db *sql.DB) *SQLKMLCache {
	return &SQLKMLCache{DB: db}
}

var _ ports.KMLCacheRepository = (*SQLKMLCache)(nil)

func (s *SQLKMLCache) SaveKMLCache(ctx context.Context, e ports.KMLCacheEntry) (err error) {
	defer obs.Time(ctx, "kml.cache.Save")(&err)

	if s.DB == nil {
		return errors.New("kml cache: db is nil")
	}
	if e.Key.Zone <= 0 || e.Key.Plan == "" {
		return fmt.Errorf("insert kml cache: invalid key %q", e.Key)
	}

	_, err = s.DB.ExecContext(ctx, `
	INSERT INTO kml_cache (zone_id, plan, content, parsed_data, file_size, last_modified)
    VALUES ($1, $2, $3, $4, $5, $6)
    ON CONFLICT (zone_id, plan) DO UPDATE SET
        content = EXCLUDED.content,
        parsed_data = EXCLUDED.parsed_data,
        file_size = EXCLUDED.file_size,
        last_modified = EXCLUDED.last_modified;
	`, e.Key.Zone, string(e.Key.Plan), e.Content, e.ParsedData, e.FileSize, e.LastModified.UnixMilli())
	if err != nil {
		return fmt.Errorf("insert kml cache key=%s: %w", e.Key, err)
	}
	return nil
}

func (s *SQLKMLCache) GetKMLCache(ctx context.Context, key domain.ZoneKey) (_ *ports.KMLCacheEntry, ok bool, err error) {
	defer obs.Time(ctx, "kml.cache.Get")(&err)

	if s.DB == nil {
		return nil, false, errors.New("kml cache: db is nil")
	}

	row := s.DB.QueryRowContext(ctx, `
	SELECT content, parsed_data, file_size, last_modified
    FROM kml_cache
    WHERE zone_id = $1 AND plan = $2;
	`, key.Zone, string(key.Plan))

	return scanKMLEntry(key, row)
}
