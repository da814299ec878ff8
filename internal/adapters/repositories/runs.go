package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"field-route-service/internal/domain"
	"field-route-service/internal/platform/obs"
)

const runColumns = `
		id,
		zone_id,
		plan,
		status,
		started_at,
		ended_at,
		total_distance,
		total_time,
		notes`

// StartRun inserts run as active. The active-run check and the insert share
// one transaction, and the partial unique index rejects a concurrent
// second insert.
func (s *Store) StartRun(ctx context.Context, run *domain.Run) (_ *domain.Run, err error) {
	defer obs.Time(ctx, "store.StartRun")(&err)

	if err := s.check(); err != nil {
		return nil, err
	}
	if run == nil {
		return nil, &domain.FieldError{Field: "run", Reason: "must not be nil"}
	}
	key, err := domain.NewZoneKey(run.ZoneID, string(run.Plan))
	if err != nil {
		return nil, err
	}

	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("start run: begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var activeID int64
	err = tx.QueryRowContext(ctx, `SELECT id FROM runs WHERE status = 'active' LIMIT 1;`).Scan(&activeID)
	switch {
	case err == nil:
		return nil, fmt.Errorf("start run: run %d is active: %w", activeID, domain.ErrActiveRunExists)
	case !errors.Is(err, sql.ErrNoRows):
		return nil, fmt.Errorf("start run: query active run: %w", err)
	}

	out := *run
	out.ZoneID, out.Plan = key.Zone, key.Plan
	out.Status = domain.RunActive
	if out.StartedAt.IsZero() {
		out.StartedAt = s.Now()
	}

	err = tx.QueryRowContext(ctx, s.q(`
	INSERT INTO runs (
		zone_id,
		plan,
		status,
		started_at,
		notes
	)
	VALUES (?, ?, ?, ?, ?)
	RETURNING id;
	`), out.ZoneID, string(out.Plan), string(out.Status), millis(out.StartedAt), out.Notes).Scan(&out.ID)
	if isUniqueViolation(err) {
		return nil, fmt.Errorf("start run: %w", domain.ErrActiveRunExists)
	}
	if err != nil {
		return nil, fmt.Errorf("start run: insert: %w", err)
	}

	if err := tx.Commit(); err != nil {
		if isUniqueViolation(err) {
			return nil, fmt.Errorf("start run: %w", domain.ErrActiveRunExists)
		}
		return nil, fmt.Errorf("start run: commit tx: %w", err)
	}
	return &out, nil
}

// CompleteRun marks runID completed. Summary notes, when set, replace the
// run notes.
func (s *Store) CompleteRun(ctx context.Context, runID int64, summary domain.RunSummary, endedAt time.Time) (err error) {
	defer obs.Time(ctx, "store.CompleteRun")(&err)

	if err := s.check(); err != nil {
		return err
	}

	var totalTime sql.NullInt64
	if summary.TotalTime != nil {
		totalTime = sql.NullInt64{Int64: *summary.TotalTime, Valid: true}
	}

	res, err := s.DB.ExecContext(ctx, s.q(`
	UPDATE runs SET
		status = 'completed',
		ended_at = ?,
		total_distance = ?,
		total_time = ?,
		notes = CASE WHEN ? = '' THEN notes ELSE ? END
	WHERE id = ?;
	`), millis(endedAt), toNullFloat(summary.TotalDistance), totalTime, summary.Notes, summary.Notes, runID)
	if err != nil {
		return fmt.Errorf("complete run %d: %w", runID, err)
	}
	return expectRow(res, fmt.Sprintf("complete run %d", runID))
}

// ActiveRun returns the active run, or nil when there is none.
func (s *Store) ActiveRun(ctx context.Context) (*domain.Run, error) {
	if err := s.check(); err != nil {
		return nil, err
	}
	row := s.DB.QueryRowContext(ctx, `
	SELECT`+runColumns+`
	FROM runs
	WHERE status = 'active'
	ORDER BY started_at DESC
	LIMIT 1;
	`)
	run, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("active run: %w", err)
	}
	return run, nil
}

func (s *Store) GetRun(ctx context.Context, runID int64) (*domain.Run, error) {
	if err := s.check(); err != nil {
		return nil, err
	}
	row := s.DB.QueryRowContext(ctx, s.q(`
	SELECT`+runColumns+`
	FROM runs
	WHERE id = ?;
	`), runID)
	run, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("get run %d: %w", runID, domain.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get run %d: %w", runID, err)
	}
	return run, nil
}

// RunsByZone returns the runs of key, newest first.
func (s *Store) RunsByZone(ctx context.Context, key domain.ZoneKey) ([]*domain.Run, error) {
	if err := s.check(); err != nil {
		return nil, err
	}
	rows, err := s.DB.QueryContext(ctx, s.q(`
	SELECT`+runColumns+`
	FROM runs
	WHERE zone_id = ? AND plan = ?
	ORDER BY started_at DESC, id DESC;
	`), key.Zone, string(key.Plan))
	if err != nil {
		return nil, fmt.Errorf("runs by zone %s: query runs table: %w", key, err)
	}
	defer rows.Close()

	runs := make([]*domain.Run, 0, 16)
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("runs by zone %s: scan row: %w", key, err)
		}
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("runs by zone %s: row iteration: %w", key, err)
	}
	return runs, nil
}

// AddStopToRun attaches stopID to runID. Attaching the same stop twice
// returns the existing row unchanged.
func (s *Store) AddStopToRun(ctx context.Context, runID int64, stopID string, status domain.RunStopStatus) (_ *domain.RunStop, err error) {
	defer obs.Time(ctx, "store.AddStopToRun")(&err)

	if _, err := s.GetRun(ctx, runID); err != nil {
		return nil, err
	}

	_, err = s.DB.ExecContext(ctx, s.q(`
	INSERT INTO run_stops (run_id, stop_id, status)
	VALUES (?, ?, ?)
	ON CONFLICT (run_id, stop_id) DO NOTHING;
	`), runID, stopID, string(status))
	if err != nil {
		return nil, fmt.Errorf("add stop %s to run %d: %w", stopID, runID, err)
	}

	row := s.DB.QueryRowContext(ctx, s.q(`
	SELECT id, run_id, stop_id, status, completed_at, notes, latitude, longitude, accuracy
	FROM run_stops
	WHERE run_id = ? AND stop_id = ?;
	`), runID, stopID)

	var (
		rs            domain.RunStop
		st            string
		completedAt   sql.NullInt64
		lat, lng, acc sql.NullFloat64
	)
	if err := row.Scan(&rs.ID, &rs.RunID, &rs.StopID, &st, &completedAt, &rs.Notes, &lat, &lng, &acc); err != nil {
		return nil, fmt.Errorf("add stop %s to run %d: read back: %w", stopID, runID, err)
	}
	rs.Status = domain.RunStopStatus(st)
	rs.CompletedAt = nullMillis(completedAt)
	rs.Latitude, rs.Longitude, rs.Accuracy = nullFloat(lat), nullFloat(lng), nullFloat(acc)
	return &rs, nil
}

// CompleteStopInRun records the completion of stopID within runID. It
// fails with domain.ErrNotFound when the stop is not attached to the run.
func (s *Store) CompleteStopInRun(ctx context.Context, runID int64, stopID string, c domain.StopCompletion, at time.Time) (err error) {
	defer obs.Time(ctx, "store.CompleteStopInRun")(&err)

	if err := s.check(); err != nil {
		return err
	}

	res, err := s.DB.ExecContext(ctx, s.q(`
	UPDATE run_stops SET
		status = 'completed',
		completed_at = ?,
		latitude = ?,
		longitude = ?,
		accuracy = ?,
		notes = ?
	WHERE run_id = ? AND stop_id = ?;
	`), millis(at), toNullFloat(c.Latitude), toNullFloat(c.Longitude), toNullFloat(c.Accuracy), c.Notes, runID, stopID)
	if err != nil {
		return fmt.Errorf("complete stop %s in run %d: %w", stopID, runID, err)
	}
	return expectRow(res, fmt.Sprintf("complete stop %s in run %d", stopID, runID))
}

func (s *Store) RunStopStats(ctx context.Context, runID int64) (_ domain.RunStats, err error) {
	defer obs.Time(ctx, "store.RunStopStats")(&err)

	if err := s.check(); err != nil {
		return domain.RunStats{}, err
	}
	rows, err := s.DB.QueryContext(ctx, s.q(`
	SELECT status, COUNT(*)
	FROM run_stops
	WHERE run_id = ?
	GROUP BY status;
	`), runID)
	if err != nil {
		return domain.RunStats{}, fmt.Errorf("run stop stats %d: %w", runID, err)
	}
	defer rows.Close()

	var stats domain.RunStats
	for rows.Next() {
		var st string
		var n int
		if err := rows.Scan(&st, &n); err != nil {
			return domain.RunStats{}, fmt.Errorf("run stop stats %d: scan row: %w", runID, err)
		}
		stats.Add(domain.RunStopStatus(st), n)
	}
	if err := rows.Err(); err != nil {
		return domain.RunStats{}, fmt.Errorf("run stop stats %d: row iteration: %w", runID, err)
	}
	return stats, nil
}

func scanRun(r rowScanner) (*domain.Run, error) {
	var (
		run           domain.Run
		plan, status  string
		started       int64
		ended         sql.NullInt64
		totalDistance sql.NullFloat64
		totalTime     sql.NullInt64
	)
	if err := r.Scan(&run.ID, &run.ZoneID, &plan, &status, &started, &ended, &totalDistance, &totalTime, &run.Notes); err != nil {
		return nil, err
	}
	run.Plan = domain.Plan(plan)
	run.Status = domain.RunStatus(status)
	run.StartedAt = fromMillis(started)
	run.EndedAt = nullMillis(ended)
	run.TotalDistance = nullFloat(totalDistance)
	if totalTime.Valid {
		v := totalTime.Int64
		run.TotalTime = &v
	}
	return &run, nil
}

func toNullFloat(f *float64) sql.NullFloat64 {
	if f == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *f, Valid: true}
}
