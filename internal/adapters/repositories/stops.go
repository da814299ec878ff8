package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"field-route-service/internal/domain"
	"field-route-service/internal/platform/obs"
)

const stopColumns = `
		id,
		zone_id,
		plan,
		name,
		description,
		latitude,
		longitude,
		is_manual,
		created_at,
		updated_at`

// InsertStop validates and inserts stop. A stop without an id gets a uuid;
// manual stops keep their generated id.
func (s *Store) InsertStop(ctx context.Context, stop *domain.Stop) (_ *domain.Stop, err error) {
	defer obs.Time(ctx, "store.InsertStop")(&err)

	if err := s.check(); err != nil {
		return nil, err
	}
	if stop == nil {
		return nil, &domain.FieldError{Field: "stop", Reason: "must not be nil"}
	}

	out := *stop
	if err := out.Validate(); err != nil {
		return nil, err
	}
	if strings.TrimSpace(out.ID) == "" {
		out.ID = uuid.NewString()
	}
	now := s.Now()
	if out.CreatedAt.IsZero() {
		out.CreatedAt = now
	}
	out.UpdatedAt = now

	_, err = s.DB.ExecContext(ctx, s.q(`
	INSERT INTO stops (`+stopColumns+`
	)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?);
	`), out.ID, out.ZoneID, string(out.Plan), out.Name, out.Description,
		out.Latitude, out.Longitude, out.IsManual, millis(out.CreatedAt), millis(out.UpdatedAt))
	if err != nil {
		return nil, fmt.Errorf("insert stop id=%s: %w", out.ID, err)
	}
	return &out, nil
}

// StopsByZone returns the stops of key ordered by name.
func (s *Store) StopsByZone(ctx context.Context, key domain.ZoneKey) (_ []*domain.Stop, err error) {
	defer obs.Time(ctx, "store.StopsByZone")(&err)

	if err := s.check(); err != nil {
		return nil, err
	}
	rows, err := s.DB.QueryContext(ctx, s.q(`
	SELECT`+stopColumns+`
	FROM stops
	WHERE zone_id = ? AND plan = ?
	ORDER BY name, id;
	`), key.Zone, string(key.Plan))
	if err != nil {
		return nil, fmt.Errorf("stops by zone %s: query stops table: %w", key, err)
	}
	return scanStops(rows)
}

func (s *Store) ManualStops(ctx context.Context) ([]*domain.Stop, error) {
	if err := s.check(); err != nil {
		return nil, err
	}
	rows, err := s.DB.QueryContext(ctx, `
	SELECT`+stopColumns+`
	FROM stops
	WHERE is_manual = TRUE
	ORDER BY created_at, id;
	`)
	if err != nil {
		return nil, fmt.Errorf("manual stops: query stops table: %w", err)
	}
	return scanStops(rows)
}

func (s *Store) GetStop(ctx context.Context, id string) (*domain.Stop, error) {
	if err := s.check(); err != nil {
		return nil, err
	}
	row := s.DB.QueryRowContext(ctx, s.q(`
	SELECT`+stopColumns+`
	FROM stops
	WHERE id = ?;
	`), id)

	st, err := scanStop(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("get stop %s: %w", id, domain.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get stop %s: %w", id, err)
	}
	return st, nil
}

func (s *Store) UpdateStop(ctx context.Context, stop *domain.Stop) error {
	if err := s.check(); err != nil {
		return err
	}
	if stop == nil {
		return &domain.FieldError{Field: "stop", Reason: "must not be nil"}
	}
	if err := stop.Validate(); err != nil {
		return err
	}
	stop.UpdatedAt = s.Now()

	res, err := s.DB.ExecContext(ctx, s.q(`
	UPDATE stops SET
		zone_id = ?,
		plan = ?,
		name = ?,
		description = ?,
		latitude = ?,
		longitude = ?,
		updated_at = ?
	WHERE id = ?;
	`), stop.ZoneID, string(stop.Plan), stop.Name, stop.Description,
		stop.Latitude, stop.Longitude, millis(stop.UpdatedAt), stop.ID)
	if err != nil {
		return fmt.Errorf("update stop %s: %w", stop.ID, err)
	}
	return expectRow(res, "update stop "+stop.ID)
}

func (s *Store) DeleteStop(ctx context.Context, id string) error {
	if err := s.check(); err != nil {
		return err
	}
	res, err := s.DB.ExecContext(ctx, s.q(`DELETE FROM stops WHERE id = ?;`), id)
	if err != nil {
		return fmt.Errorf("delete stop %s: %w", id, err)
	}
	return expectRow(res, "delete stop "+id)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanStop(r rowScanner) (*domain.Stop, error) {
	var (
		st               domain.Stop
		plan             string
		created, updated int64
	)
	if err := r.Scan(&st.ID, &st.ZoneID, &plan, &st.Name, &st.Description,
		&st.Latitude, &st.Longitude, &st.IsManual, &created, &updated); err != nil {
		return nil, err
	}
	st.Plan = domain.Plan(plan)
	st.CreatedAt = fromMillis(created)
	st.UpdatedAt = fromMillis(updated)
	return &st, nil
}

func scanStops(rows *sql.Rows) ([]*domain.Stop, error) {
	defer rows.Close()

	stops := make([]*domain.Stop, 0, 64)
	for rows.Next() {
		st, err := scanStop(rows)
		if err != nil {
			return nil, fmt.Errorf("scan stop row: %w", err)
		}
		stops = append(stops, st)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("stop row iteration: %w", err)
	}
	return stops, nil
}

func expectRow(res sql.Result, op string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s: rows affected: %w", op, err)
	}
	if n == 0 {
		return fmt.Errorf("%s: %w", op, domain.ErrNotFound)
	}
	return nil
}
