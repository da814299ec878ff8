package cache

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"field-route-service/internal/domain"
	"field-route-service/internal/platform/obs"
	"field-route-service/internal/ports"
)

// SQLRoadPathCache is the Postgres-backed road path cache.
type SQLRoadPathCache struct {
	DB  *sql.DB
	Now func() time.Time
}

func NewSQLRoadPathCache(db *sql.DB) *SQLRoadPathCache {
	return &SQLRoadPathCache{DB: db, Now: time.Now}
}

var _ ports.RoadPathCache = (*SQLRoadPathCache)(nil)

func (s *SQLRoadPathCache) Get(ctx context.Context, key string) (_ domain.RoadPath, ok bool, err error) {
	defer obs.Time(ctx, "roadpath.cache.Get")(&err)

	if s.DB == nil {
		return domain.RoadPath{}, false, errors.New("road path cache: db is nil")
	}
	if strings.TrimSpace(key) == "" {
		return domain.RoadPath{}, false, errors.New("get road path cache: key must not be empty")
	}

	row := s.DB.QueryRowContext(ctx, `
	SELECT provider, path_json, distance_meters, duration_seconds
    FROM road_path_cache
    WHERE cache_key = $1;
	`, key)

	return scanRoadPath(row)
}

func (s *SQLRoadPathCache) Put(ctx context.Context, key string, path domain.RoadPath) (err error) {
	defer obs.Time(ctx, "roadpath.cache.Put")(&err)

	if s.DB == nil {
		return errors.New("road path cache: db is nil")
	}
	if strings.TrimSpace(key) == "" {
		return errors.New("insert road path cache: key must not be empty")
	}

	coords, err := json.Marshal(path.Coordinates)
	if err != nil {
		return fmt.Errorf("insert road path cache: encode path: %w", err)
	}

	_, err = s.DB.ExecContext(ctx, `
	INSERT INTO road_path_cache (
        cache_key, provider, path_json, distance_meters, duration_seconds, created_at
    )
    VALUES ($1, $2, $3, $4, $5, $6)
    ON CONFLICT (cache_key) DO UPDATE SET
        provider = EXCLUDED.provider,
        path_json = EXCLUDED.path_json,
        distance_meters = EXCLUDED.distance_meters,
        duration_seconds = EXCLUDED.duration_seconds,
        created_at = EXCLUDED.created_at;
	`, key, path.Provider, string(coords), path.DistanceMeters, path.DurationSeconds, s.Now().UnixMilli())
	if err != nil {
		return fmt.Errorf("insert road path cache key=%q: %w", key, err)
	}
	return nil
}
