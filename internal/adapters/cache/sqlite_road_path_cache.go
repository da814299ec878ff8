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

// SQLite backed cache for road paths returned by a routing provider.
// Keys are digests of the requested waypoints computed by the router.
type SqliteRoadPathCache struct {
	DB  *sql.DB
	Now func() time.Time
}

func NewSqliteRoadPathCache(db *sql.DB) *SqliteRoadPathCache {
	return &SqliteRoadPathCache{DB: db, Now: time.Now}
}

var _ ports.RoadPathCache = (*SqliteRoadPathCache)(nil)

func (s *SqliteRoadPathCache) Get(ctx context.Context, key string) (_ domain.RoadPath, ok bool, err error) {
	defer obs.Time(ctx, "roadpath.cache.Get")(&err)

	if s.DB == nil {
		return domain.RoadPath{}, false, errors.New("road path cache: db is nil")
	}
	if strings.TrimSpace(key) == "" {
		return domain.RoadPath{}, false, errors.New("get road path cache: key must not be empty")
	}

	row := s.DB.QueryRowContext(ctx, `
	SELECT
        provider,
        path_json,
        distance_meters,
        duration_seconds
    FROM road_path_cache
    WHERE cache_key = ?;
	`, key)

	return scanRoadPath(row)
}

func (s *SqliteRoadPathCache) Put(ctx context.Context, key string, path domain.RoadPath) (err error) {
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
	INSERT OR REPLACE INTO road_path_cache (
        cache_key,
        provider,
        path_json,
        distance_meters,
        duration_seconds,
        created_at
    )
    VALUES (?, ?, ?, ?, ?, ?);
	`, key, path.Provider, string(coords), path.DistanceMeters, path.DurationSeconds, s.Now().UnixMilli())
	if err != nil {
		return fmt.Errorf("insert road path cache key=%q: %w", key, err)
	}
	return nil
}

func scanRoadPath(row *sql.Row) (domain.RoadPath, bool, error) {
	var (
		p      domain.RoadPath
		coords string
	)
	err := row.Scan(&p.Provider, &coords, &p.DistanceMeters, &p.DurationSeconds)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.RoadPath{}, false, nil
	}
	if err != nil {
		return domain.RoadPath{}, false, fmt.Errorf("get road path cache: scan row: %w", err)
	}
	if err := json.Unmarshal([]byte(coords), &p.Coordinates); err != nil {
		return domain.RoadPath{}, false, fmt.Errorf("get road path cache: decode path: %w", err)
	}
	return p, true, nil
}
