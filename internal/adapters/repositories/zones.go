package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"field-route-service/internal/domain"
)

func (s *Store) InsertZone(ctx context.Context, z domain.Zone) error {
	if err := s.check(); err != nil {
		return err
	}
	if z.ID <= 0 {
		return &domain.FieldError{Field: "id", Reason: "must be a positive integer"}
	}
	if strings.TrimSpace(z.Name) == "" {
		return &domain.FieldError{Field: "name", Reason: "must not be empty"}
	}

	_, err := s.DB.ExecContext(ctx, s.q(`
	INSERT INTO zones (id, name, description, created_at)
	VALUES (?, ?, ?, ?)
	ON CONFLICT (id) DO UPDATE SET
		name = excluded.name,
		description = excluded.description;
	`), z.ID, z.Name, z.Description, millis(s.Now()))
	if err != nil {
		return fmt.Errorf("insert zone %d: %w", z.ID, err)
	}
	return nil
}

func (s *Store) ListZones(ctx context.Context) ([]domain.Zone, error) {
	if err := s.check(); err != nil {
		return nil, err
	}
	rows, err := s.DB.QueryContext(ctx, `
	SELECT id, name, description
	FROM zones
	ORDER BY id;
	`)
	if err != nil {
		return nil, fmt.Errorf("list zones: query zones table: %w", err)
	}
	defer rows.Close()

	zones := make([]domain.Zone, 0, 8)
	for rows.Next() {
		var z domain.Zone
		if err := rows.Scan(&z.ID, &z.Name, &z.Description); err != nil {
			return nil, fmt.Errorf("list zones: scan row: %w", err)
		}
		zones = append(zones, z)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list zones: row iteration: %w", err)
	}
	return zones, nil
}

func (s *Store) GetZone(ctx context.Context, id int) (*domain.Zone, error) {
	if err := s.check(); err != nil {
		return nil, err
	}
	var z domain.Zone
	err := s.DB.QueryRowContext(ctx, s.q(`SELECT id, name, description FROM zones WHERE id = ?;`), id).
		Scan(&z.ID, &z.Name, &z.Description)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("get zone %d: %w", id, domain.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get zone %d: %w", id, err)
	}
	return &z, nil
}
