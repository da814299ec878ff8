package repositories

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"field-route-service/internal/domain"
)

// DefaultZone is the service zone seeded on first start.
var DefaultZone = domain.Zone{ID: 9, Name: "Castel San Giovanni", Description: "Zona 9"}

// DefaultSettings are inserted when missing; existing values are kept.
var DefaultSettings = map[string]any{
	"marker_radius":          200.0,
	"gps_accuracy_threshold": 50.0,
	"auto_center":            true,
	"map_style":              "standard",
}

type StopSeed struct {
	ID          string  `json:"id"`
	ZoneID      int     `json:"zone_id"`
	Plan        string  `json:"plan"`
	Name        string  `json:"name"`
	Description string  `json:"description"`
	Latitude    float64 `json:"latitude"`
	Longitude   float64 `json:"longitude"`
}

// Populate the database with the default zone, settings and the stops
// listed in a JSON file. Seeding is idempotent.
func Seed(db *sql.DB, d Dialect, jsonPath string) error {
	bytes, err := os.ReadFile(jsonPath)
	if err != nil {
		return fmt.Errorf("seed stops: read %q: %w", jsonPath, err)
	}

	var data []StopSeed
	if err := json.Unmarshal(bytes, &data); err != nil {
		return fmt.Errorf("seed stops: parse json: %w", err)
	}

	rows := make([]domain.Stop, 0, len(data))
	for i, item := range data {
		s := domain.Stop{
			ID:          strings.TrimSpace(item.ID),
			ZoneID:      item.ZoneID,
			Plan:        domain.Plan(item.Plan),
			Name:        strings.TrimSpace(item.Name),
			Description: item.Description,
			Latitude:    item.Latitude,
			Longitude:   item.Longitude,
		}
		if err := s.Validate(); err != nil {
			return fmt.Errorf("seed stops: item at index %d: %w", i+1, err)
		}
		if s.ID == "" {
			s.ID = fmt.Sprintf("seed_%d_%s_%d", s.ZoneID, s.Plan, i+1)
		}
		rows = append(rows, s)
	}

	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("seed: begin tx: %w", err)
	}
	defer tx.Rollback()

	now := time.Now().UnixMilli()

	if _, err := tx.Exec(d.Rebind(`
	INSERT INTO zones (id, name, description, created_at)
	VALUES (?, ?, ?, ?)
	ON CONFLICT (id) DO NOTHING;
	`), DefaultZone.ID, DefaultZone.Name, DefaultZone.Description, now); err != nil {
		return fmt.Errorf("seed zones: insert zone %d: %w", DefaultZone.ID, err)
	}

	for key, v := range DefaultSettings {
		value, typ, err := encodeSetting(v)
		if err != nil {
			return fmt.Errorf("seed settings: %s: %w", key, err)
		}
		if _, err := tx.Exec(d.Rebind(`
		INSERT INTO settings (key, value, type)
		VALUES (?, ?, ?)
		ON CONFLICT (key) DO NOTHING;
		`), key, value, typ); err != nil {
			return fmt.Errorf("seed settings: insert %s: %w", key, err)
		}
	}

	stmt, err := tx.Prepare(d.Rebind(`
	INSERT INTO stops (
		id,
		zone_id,
		plan,
		name,
		description,
		latitude,
		longitude,
		is_manual,
		created_at,
		updated_at
	)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT (id) DO NOTHING;
	`))
	if err != nil {
		return fmt.Errorf("seed stops: prepare insert: %w", err)
	}
	defer stmt.Close()

	for _, s := range rows {
		if _, err := stmt.Exec(s.ID, s.ZoneID, string(s.Plan), s.Name, s.Description, s.Latitude, s.Longitude, false, now, now); err != nil {
			return fmt.Errorf("seed stops: insert id=%s: %w", s.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("seed: commit tx: %w", err)
	}

	return nil
}
