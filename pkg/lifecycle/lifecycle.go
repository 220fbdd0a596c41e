// Package lifecycle tracks liveness obligations: work that must run to
// completion before the process may exit, such as a session's shutdown.
package lifecycle

import (
	"context"
	"sync"
	"sync/atomic"
)

// Lifecycle holds the process draining flag and the set of outstanding
// obligations. The zero value is ready to use; a nil *Lifecycle is a no-op.
type Lifecycle struct {
	draining atomic.Bool

	mu     sync.Mutex
	holds  map[uint64]string
	nextID uint64
	wg     sync.WaitGroup
}

// SetDraining marks the process as shutting down.
func (l *Lifecycle) SetDraining(draining bool) {
	if l == nil {
		return
	}
	l.draining.Store(draining)
}

func (l *Lifecycle) IsDraining() bool {
	if l == nil {
		return false
	}
	return l.draining.Load()
}

// Hold registers an obligation named for diagnostics. The returned release
// func is idempotent.
func (l *Lifecycle) Hold(name string) (release func()) {
	if l == nil {
		return func() {}
	}

	l.mu.Lock()
	if l.holds == nil {
		l.holds = make(map[uint64]string)
	}
	l.nextID++
	id := l.nextID
	l.holds[id] = name
	l.wg.Add(1)
	l.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			l.mu.Lock()
			delete(l.holds, id)
			l.mu.Unlock()
			l.wg.Done()
		})
	}
}

// Pending returns the names of outstanding obligations.
func (l *Lifecycle) Pending() []string {
	if l == nil {
		return nil
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]string, 0, len(l.holds))
	for _, name := range l.holds {
		out = append(out, name)
	}
	return out
}

// Count returns the number of outstanding obligations.
func (l *Lifecycle) Count() int {
	if l == nil {
		return 0
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.holds)
}

// Wait blocks until every obligation is released or ctx ends. It reports
// whether all obligations resolved.
func (l *Lifecycle) Wait(ctx context.Context) bool {
	if l == nil {
		return true
	}
	if ctx == nil {
		l.wg.Wait()
		return true
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		l.wg.Wait()
	}()

	select {
	case <-done:
		return true
	case <-ctx.Done():
		return false
	}
}
