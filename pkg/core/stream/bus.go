package stream

import (
	"context"
	"sync"
	"time"
)

// Bus carries events from both provider adapters to the session loop.
// Publish blocks until the event is consumed or the bus is closed, so events
// from one adapter keep their delivery order and are never silently dropped
// while the session is live.
type Bus struct {
	ch   chan Event
	done chan struct{}
	once sync.Once
	now  func() time.Time
}

// NewBus creates a bus with the given buffer capacity.
func NewBus(capacity int, now func() time.Time) *Bus {
	if capacity <= 0 {
		capacity = 256
	}
	if now == nil {
		now = time.Now
	}
	return &Bus{
		ch:   make(chan Event, capacity),
		done: make(chan struct{}),
		now:  now,
	}
}

// Publish delivers e. It returns false if the bus closed or ctx ended first.
func (b *Bus) Publish(ctx context.Context, e Event) bool {
	if e.At.IsZero() {
		e.At = b.now()
	}
	select {
	case <-b.done:
		return false
	default:
	}
	select {
	case b.ch <- e:
		return true
	case <-b.done:
		return false
	case <-ctx.Done():
		return false
	}
}

// Events returns the receive side of the bus. It is never closed; select on
// Done to observe shutdown.
func (b *Bus) Events() <-chan Event { return b.ch }

// Done is closed by Close.
func (b *Bus) Done() <-chan struct{} { return b.done }

// Close stops accepting events and releases blocked publishers.
func (b *Bus) Close() {
	b.once.Do(func() { close(b.done) })
}
