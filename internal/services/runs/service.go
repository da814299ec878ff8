package runs

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"field-route-service/internal/domain"
	"field-route-service/internal/events"
	"field-route-service/internal/platform/obs"
	"field-route-service/internal/ports"
)

// Event is the closed set of notifications the Service publishes.
type Event interface{ runEvent() }

type RunStarted struct{ Run *domain.Run }

type RunCompleted struct {
	RunID   int64
	Summary domain.RunSummary
}

type StopCompleted struct {
	RunID      int64
	StopID     string
	Completion domain.StopCompletion
	At         time.Time
}

func (RunStarted) runEvent()    {}
func (RunCompleted) runEvent()  {}
func (StopCompleted) runEvent() {}

// Service coordinates work sessions over the run repository.
type Service struct {
	repo   ports.RunRepository
	bus    *events.Bus[Event]
	logger *slog.Logger
	now    func() time.Time
}

func NewService(repo ports.RunRepository, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		repo:   repo,
		bus:    events.NewBus[Event](logger),
		logger: logger,
		now:    time.Now,
	}
}

func (s *Service) Subscribe(fn func(Event)) func() { return s.bus.Subscribe(fn) }
func (s *Service) Bus() *events.Bus[Event]         { return s.bus }

// StartRun opens a run for zone/plan. It fails with domain.ErrActiveRunExists
// while another run is active.
func (s *Service) StartRun(ctx context.Context, zone int, plan, notes string) (_ *domain.Run, err error) {
	defer obs.Time(ctx, "runs.StartRun")(&err)

	key, err := domain.NewZoneKey(zone, plan)
	if err != nil {
		return nil, err
	}

	active, err := s.repo.ActiveRun(ctx)
	if err != nil {
		return nil, fmt.Errorf("start run: get active run: %w", err)
	}
	if active != nil {
		return nil, fmt.Errorf("start run: run %d is active: %w", active.ID, domain.ErrActiveRunExists)
	}

	run, err := s.repo.StartRun(ctx, &domain.Run{
		ZoneID:    key.Zone,
		Plan:      key.Plan,
		Status:    domain.RunActive,
		StartedAt: s.now(),
		Notes:     strings.TrimSpace(notes),
	})
	if err != nil {
		return nil, fmt.Errorf("start run: %w", err)
	}

	obs.RunsStarted.Inc()
	s.logger.Info("run started", "run_id", run.ID, "key", key.String())
	s.bus.Publish(RunStarted{Run: run})
	return run, nil
}

// CompleteRun closes runID with summary.
func (s *Service) CompleteRun(ctx context.Context, runID int64, summary domain.RunSummary) (err error) {
	defer obs.Time(ctx, "runs.CompleteRun")(&err)

	if runID <= 0 {
		return &domain.FieldError{Field: "run_id", Reason: "must be a positive integer"}
	}
	if err := s.repo.CompleteRun(ctx, runID, summary, s.now()); err != nil {
		return fmt.Errorf("complete run %d: %w", runID, err)
	}

	s.logger.Info("run completed", "run_id", runID)
	s.bus.Publish(RunCompleted{RunID: runID, Summary: summary})
	return nil
}

// AttachStop adds stopID to runID with status (pending when empty).
func (s *Service) AttachStop(ctx context.Context, runID int64, stopID string, status string) (*domain.RunStop, error) {
	if runID <= 0 {
		return nil, &domain.FieldError{Field: "run_id", Reason: "must be a positive integer"}
	}
	if strings.TrimSpace(stopID) == "" {
		return nil, &domain.FieldError{Field: "stop_id", Reason: "must not be empty"}
	}
	st, err := domain.ParseRunStopStatus(status)
	if err != nil {
		return nil, err
	}

	rs, err := s.repo.AddStopToRun(ctx, runID, stopID, st)
	if err != nil {
		return nil, fmt.Errorf("attach stop %s to run %d: %w", stopID, runID, err)
	}
	return rs, nil
}

// CompleteStop marks stopID completed in the active run. A stop that was
// never attached to the run is attached first.
func (s *Service) CompleteStop(ctx context.Context, stopID string, c domain.StopCompletion) (err error) {
	defer obs.Time(ctx, "runs.CompleteStop")(&err)

	if strings.TrimSpace(stopID) == "" {
		return &domain.FieldError{Field: "stop_id", Reason: "must not be empty"}
	}
	if err := validateCompletion(c); err != nil {
		return err
	}

	active, err := s.repo.ActiveRun(ctx)
	if err != nil {
		return fmt.Errorf("complete stop: get active run: %w", err)
	}
	if active == nil {
		return domain.ErrNoActiveRun
	}

	at := s.now()
	err = s.repo.CompleteStopInRun(ctx, active.ID, stopID, c, at)
	if errors.Is(err, domain.ErrNotFound) {
		if _, err = s.repo.AddStopToRun(ctx, active.ID, stopID, domain.RunStopPending); err == nil {
			err = s.repo.CompleteStopInRun(ctx, active.ID, stopID, c, at)
		}
	}
	if err != nil {
		return fmt.Errorf("complete stop %s in run %d: %w", stopID, active.ID, err)
	}

	obs.StopsCompleted.Inc()
	s.logger.Info("stop completed", "run_id", active.ID, "stop_id", stopID)
	s.bus.Publish(StopCompleted{RunID: active.ID, StopID: stopID, Completion: c, At: at})
	return nil
}

// Stats counts the stops of runID per status.
func (s *Service) Stats(ctx context.Context, runID int64) (domain.RunStats, error) {
	if runID <= 0 {
		return domain.RunStats{}, &domain.FieldError{Field: "run_id", Reason: "must be a positive integer"}
	}
	st, err := s.repo.RunStopStats(ctx, runID)
	if err != nil {
		return domain.RunStats{}, fmt.Errorf("run stats %d: %w", runID, err)
	}
	return st, nil
}

// ActiveRun returns the active run or nil.
func (s *Service) ActiveRun(ctx context.Context) (*domain.Run, error) {
	return s.repo.ActiveRun(ctx)
}

func (s *Service) RunsByZone(ctx context.Context, key domain.ZoneKey) ([]*domain.Run, error) {
	return s.repo.RunsByZone(ctx, key)
}

func validateCompletion(c domain.StopCompletion) error {
	if c.Latitude != nil && (*c.Latitude < -90 || *c.Latitude > 90) {
		return &domain.FieldError{Field: "latitude", Reason: "must be within [-90, 90]"}
	}
	if c.Longitude != nil && (*c.Longitude < -180 || *c.Longitude > 180) {
		return &domain.FieldError{Field: "longitude", Reason: "must be within [-180, 180]"}
	}
	if c.Accuracy != nil && *c.Accuracy < 0 {
		return &domain.FieldError{Field: "accuracy", Reason: "must not be negative"}
	}
	return nil
}
