// Package present delivers presentation events to whatever displays them: a
// local console, or an overlay connected over server-sent events.
package present

import (
	"sync"
	"sync/atomic"

	"github.com/vango-go/vai-wingman/pkg/core/live"
)

// Fanout presents every event to each presenter in order.
type Fanout []live.Presenter

func (f Fanout) Present(e live.Event) {
	for _, p := range f {
		p.Present(e)
	}
}

// Broadcaster fans events out to subscribers without blocking the caller. A
// subscriber whose buffer is full misses the event; Dropped counts those.
type Broadcaster struct {
	buffer int

	mu     sync.Mutex
	subs   map[uint64]chan live.Event
	nextID uint64

	dropped atomic.Int64
}

// NewBroadcaster returns a Broadcaster with per-subscriber buffer size.
func NewBroadcaster(buffer int) *Broadcaster {
	if buffer <= 0 {
		buffer = 64
	}
	return &Broadcaster{buffer: buffer, subs: make(map[uint64]chan live.Event)}
}

// Present implements live.Presenter.
func (b *Broadcaster) Present(e live.Event) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, ch := range b.subs {
		select {
		case ch <- e:
		default:
			b.dropped.Add(1)
		}
	}
}

// Subscribe returns a channel of events and a cancel func that closes it.
func (b *Broadcaster) Subscribe() (<-chan live.Event, func()) {
	ch := make(chan live.Event, b.buffer)
	b.mu.Lock()
	id := b.nextID
	b.nextID++
	b.subs[id] = ch
	b.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			b.mu.Lock()
			delete(b.subs, id)
			b.mu.Unlock()
			close(ch)
		})
	}
}

// Subscribers returns the current subscriber count.
func (b *Broadcaster) Subscribers() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subs)
}

// Dropped returns how many deliveries were skipped for full buffers.
func (b *Broadcaster) Dropped() int64 { return b.dropped.Load() }

var (
	_ live.Presenter = (*Broadcaster)(nil)
	_ live.Presenter = Fanout(nil)
)
