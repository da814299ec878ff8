// Package events provides a small typed publish/subscribe bus used by the
// stateful services to notify observers.
package events

import (
	"log/slog"
	"sync"
)

// Bus delivers events of type E to subscribers synchronously, in
// subscription order. A panicking handler is logged and skipped.
type Bus[E any] struct {
	mu       sync.RWMutex
	nextID   int
	handlers map[int]func(E)
	order    []int
	logger   *slog.Logger
}

func NewBus[E any](logger *slog.Logger) *Bus[E] {
	if logger == nil {
		logger = slog.Default()
	}
	return &Bus[E]{handlers: make(map[int]func(E)), logger: logger}
}

// Subscribe registers fn and returns a func that removes it.
func (b *Bus[E]) Subscribe(fn func(E)) (unsubscribe func()) {
	b.mu.Lock()
	id := b.nextID
	b.nextID++
	b.handlers[id] = fn
	b.order = append(b.order, id)
	b.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			b.mu.Lock()
			defer b.mu.Unlock()
			delete(b.handlers, id)
			for i, v := range b.order {
				if v == id {
					b.order = append(b.order[:i:i], b.order[i+1:]...)
					break
				}
			}
		})
	}
}

// Publish calls every current subscriber with e. It must not be called
// while holding a lock a handler may need.
func (b *Bus[E]) Publish(e E) {
	b.mu.RLock()
	fns := make([]func(E), 0, len(b.order))
	for _, id := range b.order {
		fns = append(fns, b.handlers[id])
	}
	b.mu.RUnlock()

	for _, fn := range fns {
		b.call(fn, e)
	}
}

func (b *Bus[E]) call(fn func(E), e E) {
	defer func() {
		if r := recover(); r != nil {
			b.logger.Error("event handler panicked", "event", e, "panic", r)
		}
	}()
	fn(e)
}

// Len returns the number of subscribers.
func (b *Bus[E]) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.order)
}

// On subscribes fn to the events on b whose dynamic type is T.
func On[T any, E any](b *Bus[E], fn func(T)) (unsubscribe func()) {
	return b.Subscribe(func(e E) {
		if t, ok := any(e).(T); ok {
			fn(t)
		}
	})
}
