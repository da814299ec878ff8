package manualstops

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"field-route-service/internal/domain"
	"field-route-service/internal/events"
)

// Event is the closed set of notifications the Service publishes.
type Event interface{ manualStopEvent() }

type Added struct {
	Stop  *domain.Stop
	Total int
}

type Removed struct {
	Stop  *domain.Stop
	Total int
}

type Updated struct {
	Old   *domain.Stop
	New   *domain.Stop
	Total int
}

type Imported struct {
	Imported int
	Valid    int
	Total    int
}

type Cleared struct{ Count int }

func (Added) manualStopEvent()    {}
func (Removed) manualStopEvent()  {}
func (Updated) manualStopEvent()  {}
func (Imported) manualStopEvent() {}
func (Cleared) manualStopEvent()  {}

// Input describes a stop created by the field worker.
type Input struct {
	Name        string  `json:"name"`
	Description string  `json:"description"`
	Latitude    float64 `json:"latitude"`
	Longitude   float64 `json:"longitude"`
	Zone        int     `json:"zone"`
	Plan        string  `json:"plan"`
}

// Patch holds the optional fields of an update.
type Patch struct {
	Name        *string  `json:"name,omitempty"`
	Description *string  `json:"description,omitempty"`
	Latitude    *float64 `json:"latitude,omitempty"`
	Longitude   *float64 `json:"longitude,omitempty"`
}

// ErrCapacity is returned by Add when the collection is full.
var ErrCapacity = errors.New("manual stop capacity reached")

// Service holds the manual stops created at runtime until they are
// persisted or cleared. It is safe for concurrent use.
type Service struct {
	mu       sync.RWMutex
	stops    []*domain.Stop
	capacity int

	bus    *events.Bus[Event]
	logger *slog.Logger
	now    func() time.Time
}

type Options struct {
	// Capacity bounds the collection. Zero means unbounded.
	Capacity int
	Logger   *slog.Logger
	Now      func() time.Time
}

func NewService(opts Options) *Service {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	return &Service{
		capacity: opts.Capacity,
		bus:      events.NewBus[Event](logger),
		logger:   logger,
		now:      now,
	}
}

func (s *Service) Subscribe(fn func(Event)) func() { return s.bus.Subscribe(fn) }
func (s *Service) Bus() *events.Bus[Event]         { return s.bus }

func (s *Service) newID() string {
	suffix := strings.ReplaceAll(uuid.NewString(), "-", "")[:9]
	return fmt.Sprintf("manual_%d_%s", s.now().UnixMilli(), suffix)
}

// Add validates in and stores a new manual stop.
func (s *Service) Add(in Input) (*domain.Stop, error) {
	now := s.now()
	stop := &domain.Stop{
		ZoneID:      in.Zone,
		Plan:        domain.Plan(in.Plan),
		Name:        strings.TrimSpace(in.Name),
		Description: strings.TrimSpace(in.Description),
		Latitude:    in.Latitude,
		Longitude:   in.Longitude,
		IsManual:    true,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := stop.Validate(); err != nil {
		return nil, err
	}
	stop.ID = s.newID()

	s.mu.Lock()
	if s.capacity > 0 && len(s.stops) >= s.capacity {
		s.mu.Unlock()
		return nil, ErrCapacity
	}
	s.stops = append(s.stops, stop)
	total := len(s.stops)
	s.mu.Unlock()

	s.logger.Info("manual stop added", "id", stop.ID, "name", stop.Name, "key", stop.Key().String())
	s.bus.Publish(Added{Stop: stop, Total: total})
	return stop, nil
}

// Remove deletes the stop with id and reports whether it existed.
func (s *Service) Remove(id string) bool {
	s.mu.Lock()
	idx := s.indexOf(id)
	if idx < 0 {
		s.mu.Unlock()
		return false
	}
	removed := s.stops[idx]
	s.stops = append(s.stops[:idx:idx], s.stops[idx+1:]...)
	total := len(s.stops)
	s.mu.Unlock()

	s.bus.Publish(Removed{Stop: removed, Total: total})
	return true
}

// Update applies p to the stop with id. The id and manual flag never change.
func (s *Service) Update(id string, p Patch) (*domain.Stop, error) {
	s.mu.Lock()
	idx := s.indexOf(id)
	if idx < 0 {
		s.mu.Unlock()
		return nil, fmt.Errorf("update manual stop %s: %w", id, domain.ErrNotFound)
	}

	old := s.stops[idx]
	next := *old
	if p.Name != nil {
		next.Name = strings.TrimSpace(*p.Name)
	}
	if p.Description != nil {
		next.Description = strings.TrimSpace(*p.Description)
	}
	if p.Latitude != nil {
		next.Latitude = *p.Latitude
	}
	if p.Longitude != nil {
		next.Longitude = *p.Longitude
	}
	if err := next.Validate(); err != nil {
		s.mu.Unlock()
		return nil, err
	}
	next.ID = id
	next.IsManual = true
	next.UpdatedAt = s.now()

	s.stops[idx] = &next
	total := len(s.stops)
	s.mu.Unlock()

	s.bus.Publish(Updated{Old: old, New: &next, Total: total})
	return &next, nil
}

// List returns the stops, optionally filtered by zone (> 0) and plan.
func (s *Service) List(zone int, plan string) []*domain.Stop {
	plan = strings.ToUpper(strings.TrimSpace(plan))

	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*domain.Stop, 0, len(s.stops))
	for _, st := range s.stops {
		if zone > 0 && st.ZoneID != zone {
			continue
		}
		if plan != "" && string(st.Plan) != plan {
			continue
		}
		out = append(out, st)
	}
	return out
}

func (s *Service) Get(id string) (*domain.Stop, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if idx := s.indexOf(id); idx >= 0 {
		return s.stops[idx], true
	}
	return nil, false
}

func (s *Service) IsManual(id string) bool {
	_, ok := s.Get(id)
	return ok
}

// Search matches term against names and descriptions, case-insensitively.
// An empty term returns every stop.
func (s *Service) Search(term string) []*domain.Stop {
	term = strings.ToLower(strings.TrimSpace(term))

	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*domain.Stop, 0)
	for _, st := range s.stops {
		if term == "" ||
			strings.Contains(strings.ToLower(st.Name), term) ||
			strings.Contains(strings.ToLower(st.Description), term) {
			out = append(out, st)
		}
	}
	return out
}

type Stats struct {
	Total      int            `json:"total"`
	ByZone     map[string]int `json:"by_zone"`
	AddedToday int            `json:"added_today"`
	LastAdded  *time.Time     `json:"last_added"`
}

func (s *Service) Stats() Stats {
	now := s.now()
	y, m, d := now.Date()
	today := time.Date(y, m, d, 0, 0, 0, 0, now.Location())

	s.mu.RLock()
	defer s.mu.RUnlock()

	st := Stats{Total: len(s.stops), ByZone: make(map[string]int)}
	for _, stop := range s.stops {
		st.ByZone[stop.Key().String()]++
		if !stop.CreatedAt.Before(today) {
			st.AddedToday++
		}
	}
	if n := len(s.stops); n > 0 {
		last := s.stops[n-1].CreatedAt
		st.LastAdded = &last
	}
	return st
}

type exportDoc struct {
	ManualStops []*domain.Stop `json:"manual_stops"`
	ExportedAt  time.Time      `json:"exported_at"`
	Count       int            `json:"count"`
}

// Export serializes every stop as indented JSON.
func (s *Service) Export() ([]byte, error) {
	s.mu.RLock()
	doc := exportDoc{ManualStops: append([]*domain.Stop{}, s.stops...), ExportedAt: s.now(), Count: len(s.stops)}
	s.mu.RUnlock()

	b, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("export manual stops: %w", err)
	}
	return b, nil
}

type ImportResult struct {
	Imported int `json:"imported"`
	Valid    int `json:"valid"`
	Skipped  int `json:"skipped"`
}

// Import appends the valid stops of an Export document. Stops without an
// id, without the manual flag, or with invalid fields are skipped.
func (s *Service) Import(data []byte) (ImportResult, error) {
	var doc exportDoc
	if err := json.Unmarshal(data, &doc); err != nil {
		return ImportResult{}, fmt.Errorf("import manual stops: %w", err)
	}
	if doc.ManualStops == nil {
		return ImportResult{}, errors.New("import manual stops: manual_stops list is missing")
	}

	valid := make([]*domain.Stop, 0, len(doc.ManualStops))
	for _, st := range doc.ManualStops {
		if st == nil || st.ID == "" || !st.IsManual {
			continue
		}
		if err := st.Validate(); err != nil {
			continue
		}
		valid = append(valid, st)
	}

	s.mu.Lock()
	if s.capacity > 0 && len(s.stops)+len(valid) > s.capacity {
		valid = valid[:max(0, s.capacity-len(s.stops))]
	}
	s.stops = append(s.stops, valid...)
	total := len(s.stops)
	s.mu.Unlock()

	res := ImportResult{Imported: len(doc.ManualStops), Valid: len(valid), Skipped: len(doc.ManualStops) - len(valid)}
	s.logger.Info("manual stops imported", "imported", res.Imported, "valid", res.Valid)
	s.bus.Publish(Imported{Imported: res.Imported, Valid: res.Valid, Total: total})
	return res, nil
}

// Reset removes every stop. Subscriptions are kept.
func (s *Service) Reset() {
	s.mu.Lock()
	n := len(s.stops)
	s.stops = nil
	s.mu.Unlock()

	s.bus.Publish(Cleared{Count: n})
}

func (s *Service) indexOf(id string) int {
	for i, st := range s.stops {
		if st.ID == id {
			return i
		}
	}
	return -1
}
