package navigation

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"field-route-service/internal/domain"
	"field-route-service/internal/events"
	"field-route-service/internal/services/proximity"
)

// Event is the closed set of notifications the Tracker publishes.
type Event interface{ navigationEvent() }

type StopSelected struct {
	Stop *domain.Stop
	Info proximity.NavigationInfo
}

type NavigationUpdated struct {
	Stop *domain.Stop
	Info proximity.NavigationInfo
}

type StopDeselected struct{ Stop *domain.Stop }

func (StopSelected) navigationEvent()      {}
func (NavigationUpdated) navigationEvent() {}
func (StopDeselected) navigationEvent()    {}

type State struct {
	Selected *domain.Stop              `json:"selected"`
	Info     *proximity.NavigationInfo `json:"info"`
	Fix      *domain.Fix               `json:"fix"`
	Tracking bool                      `json:"tracking"`
}

// Tracker follows the selected stop and refreshes its navigation info on
// a fixed interval while a fix is known. Every Select must eventually be
// paired with Deselect or Close.
type Tracker struct {
	engine   *proximity.Engine
	interval time.Duration
	bus      *events.Bus[Event]
	logger   *slog.Logger

	mu       sync.Mutex
	selected *domain.Stop
	fix      *domain.Fix
	info     *proximity.NavigationInfo
	cancel   context.CancelFunc
	done     chan struct{}

	// publishing is the done channel of the refresh goroutine currently
	// delivering NavigationUpdated, nil otherwise.
	publishing chan struct{}
}

func NewTracker(engine *proximity.Engine, interval time.Duration, logger *slog.Logger) *Tracker {
	if logger == nil {
		logger = slog.Default()
	}
	if interval <= 0 {
		interval = time.Second
	}
	return &Tracker{
		engine:   engine,
		interval: interval,
		bus:      events.NewBus[Event](logger),
		logger:   logger,
	}
}

func (t *Tracker) Subscribe(fn func(Event)) func() { return t.bus.Subscribe(fn) }
func (t *Tracker) Bus() *events.Bus[Event]         { return t.bus }

// Select starts following stop. fix may be nil when no position is known yet.
func (t *Tracker) Select(stop *domain.Stop, fix *domain.Fix) proximity.NavigationInfo {
	t.stopTracking()

	info := t.engine.NavigationInfo(stop, fix)

	t.mu.Lock()
	t.selected = stop
	if fix != nil {
		f := *fix
		t.fix = &f
	}
	t.info = &info
	start := t.fix != nil
	t.mu.Unlock()

	if start {
		t.startTracking()
	}
	t.bus.Publish(StopSelected{Stop: stop, Info: info})
	return info
}

// UpdateLocation records fix and, when a stop is selected, returns fresh
// navigation info. It returns nil when nothing is selected.
func (t *Tracker) UpdateLocation(fix domain.Fix) *proximity.NavigationInfo {
	t.mu.Lock()
	t.fix = &fix
	stop := t.selected
	if stop == nil {
		t.mu.Unlock()
		return nil
	}
	info := t.engine.NavigationInfo(stop, &fix)
	t.info = &info
	tracking := t.cancel != nil
	t.mu.Unlock()

	if !tracking {
		t.startTracking()
	}
	t.bus.Publish(NavigationUpdated{Stop: stop, Info: info})
	return &info
}

// Deselect stops following the current stop.
func (t *Tracker) Deselect() {
	t.stopTracking()

	t.mu.Lock()
	prev := t.selected
	t.selected = nil
	t.info = nil
	t.mu.Unlock()

	if prev != nil {
		t.bus.Publish(StopDeselected{Stop: prev})
	}
}

func (t *Tracker) State() State {
	t.mu.Lock()
	defer t.mu.Unlock()
	return State{Selected: t.selected, Info: t.info, Fix: t.fix, Tracking: t.cancel != nil}
}

// Close stops any refresh goroutine and clears the selection.
func (t *Tracker) Close() {
	t.Deselect()
	t.mu.Lock()
	t.fix = nil
	t.mu.Unlock()
}

func (t *Tracker) startTracking() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.cancel != nil {
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	t.cancel, t.done = cancel, done

	go t.run(ctx, done)
}

func (t *Tracker) stopTracking() {
	t.mu.Lock()
	cancel, done := t.cancel, t.done
	t.cancel, t.done = nil, nil
	inHandler := done != nil && t.publishing == done
	t.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	// A subscriber of a refresh runs on the goroutine that closes done.
	if inHandler {
		return
	}
	<-done
}

func (t *Tracker) run(ctx context.Context, done chan struct{}) {
	defer close(done)

	ticker := time.NewTicker(t.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			t.refresh(ctx, done)
		}
	}
}

func (t *Tracker) refresh(ctx context.Context, done chan struct{}) {
	t.mu.Lock()
	stop, fix := t.selected, t.fix
	if stop == nil || fix == nil || ctx.Err() != nil {
		t.mu.Unlock()
		return
	}
	info := t.engine.NavigationInfo(stop, fix)
	t.info = &info
	t.publishing = done
	t.mu.Unlock()

	defer func() {
		t.mu.Lock()
		if t.publishing == done {
			t.publishing = nil
		}
		t.mu.Unlock()
	}()
	t.bus.Publish(NavigationUpdated{Stop: stop, Info: info})
}
