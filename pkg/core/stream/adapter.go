package stream

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/vango-go/vai-wingman/pkg/core/audio"
)

// ErrOutOfOrderFrame is the panic value raised when frames reach an adapter out
// of sequence order. Ordering is guaranteed by the framer; a violation is a bug.
var ErrOutOfOrderFrame = errors.New("audio frame out of sequence order")

// Conn is one live provider connection.
type Conn interface {
	// Send writes one frame of PCM16 audio.
	Send(pcm []byte) error
	// Done is closed when the connection drops or is closed.
	Done() <-chan struct{}
	// Err returns why the connection ended, if it ended abnormally.
	Err() error
	Close() error
}

// Dialer opens provider connections. Emit publishes decoded provider events;
// the adapter stamps origin and time.
type Dialer interface {
	Name() string
	Dial(ctx context.Context, emit func(Event)) (Conn, error)
}

// ReconnectPolicy is the exponential backoff applied after a connection drops.
type ReconnectPolicy struct {
	InitialInterval time.Duration
	Multiplier      float64
	MaxInterval     time.Duration
	// MaxAttempts bounds reconnect attempts per drop. After that the stream is lost.
	MaxAttempts int
	// Jitter is the randomization factor. Zero keeps intervals deterministic.
	Jitter float64
}

// DefaultReconnectPolicy waits 1s, 2s, 4s, 8s and 16s before its five attempts.
func DefaultReconnectPolicy() ReconnectPolicy {
	return ReconnectPolicy{
		InitialInterval: time.Second,
		Multiplier:      2,
		MaxInterval:     30 * time.Second,
		MaxAttempts:     5,
	}
}

func (p ReconnectPolicy) backOff(ctx context.Context) backoff.BackOff {
	exp := backoff.NewExponentialBackOff()
	exp.InitialInterval = p.InitialInterval
	exp.Multiplier = p.Multiplier
	exp.MaxInterval = p.MaxInterval
	exp.RandomizationFactor = p.Jitter
	exp.MaxElapsedTime = 0
	exp.Reset()

	var b backoff.BackOff = exp
	if p.MaxAttempts > 0 {
		b = backoff.WithMaxRetries(b, uint64(p.MaxAttempts))
	}
	return backoff.WithContext(b, ctx)
}

// AdapterConfig configures an Adapter.
type AdapterConfig struct {
	Origin Origin
	Dialer Dialer
	Bus    *Bus
	Policy ReconnectPolicy
	// QueueSize bounds frames waiting to be written. Default: 256 (~30s at 128ms frames).
	QueueSize int
	Logger    *slog.Logger
}

// Stats are per-adapter counters.
type Stats struct {
	FramesSent    int64
	FramesDropped int64
	Reconnects    int64
}

// Adapter owns one provider stream for the lifetime of a session: the live
// connection, an ordered send queue, and the reconnect supervisor.
type Adapter struct {
	origin Origin
	dialer Dialer
	bus    *Bus
	policy ReconnectPolicy
	logger *slog.Logger

	queue chan audio.Frame

	mu   sync.Mutex
	conn Conn

	lastSeq atomic.Uint64
	closed  atomic.Bool

	sent       atomic.Int64
	dropped    atomic.Int64
	reconnects atomic.Int64

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewAdapter validates cfg and returns an unconnected adapter.
func NewAdapter(cfg AdapterConfig) (*Adapter, error) {
	if cfg.Origin == "" {
		return nil, fmt.Errorf("origin is required")
	}
	if cfg.Dialer == nil {
		return nil, fmt.Errorf("%s dialer is required", cfg.Origin)
	}
	if cfg.Bus == nil {
		return nil, fmt.Errorf("event bus is required")
	}
	if cfg.Policy.InitialInterval <= 0 {
		cfg.Policy = DefaultReconnectPolicy()
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 256
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Adapter{
		origin: cfg.Origin,
		dialer: cfg.Dialer,
		bus:    cfg.Bus,
		policy: cfg.Policy,
		logger: cfg.Logger.With("origin", string(cfg.Origin), "provider", cfg.Dialer.Name()),
		queue:  make(chan audio.Frame, cfg.QueueSize),
	}, nil
}

// Origin returns the adapter's event origin.
func (a *Adapter) Origin() Origin { return a.origin }

// Connect dials the provider once. Failure here is fatal to session start;
// only later drops are retried.
func (a *Adapter) Connect(ctx context.Context) error {
	a.ctx, a.cancel = context.WithCancel(context.Background())

	conn, err := a.dialer.Dial(ctx, a.emit)
	if err != nil {
		a.cancel()
		return err
	}
	a.setConn(conn)
	a.publishStatus(StatusConnected, 0, nil)

	a.wg.Add(2)
	go a.writeLoop()
	go a.supervise(conn)
	return nil
}

// Send queues a frame for the provider. Frames must arrive in strictly
// increasing sequence order. When the queue is full or the stream is
// reconnecting the frame is dropped and counted.
func (a *Adapter) Send(fr audio.Frame) {
	if prev := a.lastSeq.Load(); fr.Seq <= prev {
		panic(fmt.Errorf("%w: %s got seq %d after %d", ErrOutOfOrderFrame, a.origin, fr.Seq, prev))
	}
	a.lastSeq.Store(fr.Seq)
	if a.closed.Load() {
		return
	}

	data := make([]byte, len(fr.Data))
	copy(data, fr.Data)
	fr.Data = data

	select {
	case a.queue <- fr:
	default:
		a.dropped.Add(1)
	}
}

// Stats returns a snapshot of the adapter counters.
func (a *Adapter) Stats() Stats {
	return Stats{
		FramesSent:    a.sent.Load(),
		FramesDropped: a.dropped.Load(),
		Reconnects:    a.reconnects.Load(),
	}
}

// Close tears the stream down and waits for its goroutines.
func (a *Adapter) Close() error {
	if a.closed.Swap(true) {
		return nil
	}
	if a.cancel != nil {
		a.cancel()
	}
	var err error
	if conn := a.currentConn(); conn != nil {
		err = conn.Close()
	}
	a.wg.Wait()
	return err
}

func (a *Adapter) emit(e Event) {
	e.Origin = a.origin
	a.bus.Publish(a.ctx, e)
}

func (a *Adapter) publishStatus(status Status, attempt int, err error) {
	a.bus.Publish(a.ctx, Event{Origin: a.origin, Status: &StatusEvent{Status: status, Attempt: attempt, Err: err}})
}

func (a *Adapter) setConn(c Conn) {
	a.mu.Lock()
	a.conn = c
	a.mu.Unlock()
}

func (a *Adapter) currentConn() Conn {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.conn
}

func (a *Adapter) writeLoop() {
	defer a.wg.Done()
	for {
		select {
		case <-a.ctx.Done():
			return
		case fr := <-a.queue:
			conn := a.currentConn()
			if conn == nil {
				a.dropped.Add(1)
				continue
			}
			if err := conn.Send(fr.Data); err != nil {
				a.dropped.Add(1)
				a.logger.Debug("provider send failed", "seq", fr.Seq, "error", err)
				continue
			}
			a.sent.Add(1)
		}
	}
}

func (a *Adapter) supervise(conn Conn) {
	defer a.wg.Done()
	for {
		select {
		case <-a.ctx.Done():
			return
		case <-conn.Done():
		}
		if a.closed.Load() {
			return
		}

		a.setConn(nil)
		a.logger.Warn("provider stream dropped", "error", conn.Err())
		_ = conn.Close()

		next, err := a.reconnect()
		if err != nil {
			if a.closed.Load() {
				return
			}
			a.logger.Error("provider stream lost", "error", err)
			a.publishStatus(StatusLost, a.policy.MaxAttempts, err)
			return
		}
		if a.closed.Load() {
			_ = next.Close()
			return
		}
		a.reconnects.Add(1)
		a.setConn(next)
		a.publishStatus(StatusConnected, 0, nil)
		conn = next
	}
}

// reconnect dials until it succeeds or the policy gives up. Every attempt,
// the first included, waits its backoff interval.
func (a *Adapter) reconnect() (Conn, error) {
	b := a.policy.backOff(a.ctx)
	var lastErr error
	for attempt := 1; ; attempt++ {
		wait := b.NextBackOff()
		if wait == backoff.Stop {
			if lastErr == nil {
				lastErr = a.ctx.Err()
			}
			return nil, fmt.Errorf("reconnect after %d attempts: %w", attempt-1, lastErr)
		}
		t := time.NewTimer(wait)
		select {
		case <-a.ctx.Done():
			t.Stop()
			return nil, fmt.Errorf("reconnect: %w", a.ctx.Err())
		case <-t.C:
		}

		a.publishStatus(StatusReconnecting, attempt, nil)
		conn, err := a.dialer.Dial(a.ctx, a.emit)
		if err == nil {
			return conn, nil
		}
		a.logger.Warn("provider reconnect failed", "attempt", attempt, "error", err)
		lastErr = err
	}
}
