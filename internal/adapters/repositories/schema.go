package repositories

import (
	"database/sql"
	"errors"
	"fmt"
)

// Initialize the database schema for dialect d.
func InitSchema(db *sql.DB, d Dialect) error {
	if db == nil {
		return errors.New("init schema: DB is nil")
	}

	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("init schema: begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	createZonesQuery := `
	CREATE TABLE IF NOT EXISTS zones (
		id INTEGER PRIMARY KEY,
		name TEXT NOT NULL,
		description TEXT NOT NULL DEFAULT '',
		created_at BIGINT NOT NULL
	);
	`

	createStopsQuery := `
	CREATE TABLE IF NOT EXISTS stops (
		id TEXT PRIMARY KEY,
		zone_id INTEGER NOT NULL,
		plan TEXT NOT NULL CHECK (plan IN ('A', 'B')),
		name TEXT NOT NULL,
		description TEXT NOT NULL DEFAULT '',
		latitude DOUBLE PRECISION NOT NULL,
		longitude DOUBLE PRECISION NOT NULL,
		is_manual BOOLEAN NOT NULL DEFAULT FALSE,
		created_at BIGINT NOT NULL,
		updated_at BIGINT NOT NULL
	);
	`

	createRunsQuery := fmt.Sprintf(`
	CREATE TABLE IF NOT EXISTS runs (
		id %s,
		zone_id INTEGER NOT NULL,
		plan TEXT NOT NULL,
		status TEXT NOT NULL CHECK (status IN ('active', 'completed', 'paused')),
		started_at BIGINT NOT NULL,
		ended_at BIGINT,
		total_distance DOUBLE PRECISION,
		total_time BIGINT,
		notes TEXT NOT NULL DEFAULT ''
	);
	`, d.serialKey())

	createRunStopsQuery := fmt.Sprintf(`
	CREATE TABLE IF NOT EXISTS run_stops (
		id %s,
		run_id BIGINT NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
		stop_id TEXT NOT NULL,
		status TEXT NOT NULL,
		completed_at BIGINT,
		notes TEXT NOT NULL DEFAULT '',
		latitude DOUBLE PRECISION,
		longitude DOUBLE PRECISION,
		accuracy DOUBLE PRECISION,
		UNIQUE (run_id, stop_id)
	);
	`, d.serialKey())

	createSettingsQuery := `
	CREATE TABLE IF NOT EXISTS settings (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL,
		type TEXT NOT NULL
	);
	`

	createKMLCacheQuery := fmt.Sprintf(`
	CREATE TABLE IF NOT EXISTS kml_cache (
		zone_id INTEGER NOT NULL,
		plan TEXT NOT NULL,
		content TEXT NOT NULL,
		parsed_data %s,
		file_size INTEGER NOT NULL,
		last_modified BIGINT NOT NULL,
		PRIMARY KEY (zone_id, plan)
	);
	`, d.blob())

	createRoadPathCacheQuery := `
	CREATE TABLE IF NOT EXISTS road_path_cache (
		cache_key TEXT PRIMARY KEY,
		provider TEXT NOT NULL,
		path_json TEXT NOT NULL,
		distance_meters DOUBLE PRECISION NOT NULL,
		duration_seconds DOUBLE PRECISION NOT NULL,
		created_at BIGINT NOT NULL
	);
	`

	createIndexQueries := []string{
		`CREATE INDEX IF NOT EXISTS idx_stops_zone_plan ON stops(zone_id, plan);`,
		`CREATE INDEX IF NOT EXISTS idx_runs_zone_plan ON runs(zone_id, plan);`,
		`CREATE INDEX IF NOT EXISTS idx_run_stops_run ON run_stops(run_id);`,
		// At most one active run.
		`CREATE UNIQUE INDEX IF NOT EXISTS idx_runs_single_active ON runs(status) WHERE status = 'active';`,
	}

	statements := []string{
		createZonesQuery,
		createStopsQuery,
		createRunsQuery,
		createRunStopsQuery,
		createSettingsQuery,
		createKMLCacheQuery,
		createRoadPathCacheQuery,
	}
	statements = append(statements, createIndexQueries...)

	for i, stmt := range statements {
		if _, err := tx.Exec(stmt); err != nil {
			return fmt.Errorf("init schema: exec statement #%d: %w", i+1, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("init schema: commit tx: %w", err)
	}

	return nil
}
