package audio

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"
)

// ErrSourcesEnded is the capture-lost reason when every source reached EOF.
var ErrSourcesEnded = errors.New("all capture sources ended")

// CaptureConfig configures a Capture.
type CaptureConfig struct {
	// Format is the target format. Default: DefaultFormat().
	Format Format
	// FrameBytes is the rolling-buffer flush threshold. Default: DefaultFrameBytes.
	FrameBytes int
	// FrameBuffer is the capacity of the Frames channel. Default: 64.
	FrameBuffer int
	Logger      *slog.Logger
}

// Capture reads one or more sources, normalizes each to the target format,
// mixes them into a single mono stream and frames it.
type Capture struct {
	format Format
	framer *Framer
	logger *slog.Logger

	frames chan Frame
	lost   chan struct{}
	done   chan struct{}

	cancel   context.CancelFunc
	stopping atomic.Bool

	mu  sync.Mutex
	err error
}

type sourceChunk struct {
	idx     int
	samples []float32
	at      time.Time
	err     error
}

// StartCapture begins reading every source. Frames are delivered in strictly
// increasing sequence order on Frames().
func StartCapture(ctx context.Context, cfg CaptureConfig, sources ...Source) (*Capture, error) {
	if len(sources) == 0 {
		return nil, errors.New("at least one capture source is required")
	}
	if cfg.Format == (Format{}) {
		cfg.Format = DefaultFormat()
	}
	if cfg.Format.Channels != 1 {
		return nil, fmt.Errorf("target format must be mono, got %d channels", cfg.Format.Channels)
	}
	if cfg.FrameBytes <= 0 {
		cfg.FrameBytes = DefaultFrameBytes
	}
	if cfg.FrameBuffer <= 0 {
		cfg.FrameBuffer = 64
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	framer, err := NewFramer(cfg.Format, cfg.FrameBytes)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithCancel(ctx)
	c := &Capture{
		format: cfg.Format,
		framer: framer,
		logger: cfg.Logger,
		frames: make(chan Frame, cfg.FrameBuffer),
		lost:   make(chan struct{}),
		done:   make(chan struct{}),
		cancel: cancel,
	}

	chunks := make(chan sourceChunk, 4*len(sources))
	for i, src := range sources {
		go c.readSource(ctx, i, src, chunks)
	}
	go c.mixLoop(ctx, len(sources), chunks)
	return c, nil
}

// Frames returns the framed, normalized audio. It is closed when capture ends.
func (c *Capture) Frames() <-chan Frame { return c.frames }

// Lost is closed when capture ends for any reason other than Stop.
func (c *Capture) Lost() <-chan struct{} { return c.lost }

// Err returns the capture-lost reason.
func (c *Capture) Err() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.err
}

// Format returns the target format of emitted frames.
func (c *Capture) Format() Format { return c.format }

// Stop ends capture without signalling Lost and waits for the mixer to exit.
func (c *Capture) Stop() error {
	c.stopping.Store(true)
	c.cancel()
	<-c.done
	return nil
}

func (c *Capture) readSource(ctx context.Context, idx int, src Source, out chan<- sourceChunk) {
	var rs *Resampler
	for {
		b, err := src.Read(ctx)
		if err != nil {
			select {
			case out <- sourceChunk{idx: idx, err: err}:
			case <-ctx.Done():
			}
			return
		}
		if len(b.Samples) == 0 {
			continue
		}
		mono := Downmix(b.Samples, b.Channels)
		if b.SampleRate <= 0 {
			b.SampleRate = c.format.SampleRate
		}
		if rs == nil || rs.srcRate != b.SampleRate {
			rs = NewResampler(b.SampleRate, c.format.SampleRate)
		}
		normalized := rs.Process(mono)
		if len(normalized) == 0 {
			continue
		}
		select {
		case out <- sourceChunk{idx: idx, samples: normalized, at: b.CapturedAt}:
		case <-ctx.Done():
			return
		}
	}
}

func (c *Capture) mixLoop(ctx context.Context, n int, chunks <-chan sourceChunk) {
	defer close(c.done)

	pending := make([][]float32, n)
	active := make([]bool, n)
	for i := range active {
		active[i] = true
	}
	// A source may trail the leader by at most one frame before it is padded with silence.
	maxLag := c.framer.frameBytes / c.format.BytesPerSample()
	var (
		startAt time.Time
		mixed   int64
	)

	frame := func(samples []float32) []Frame {
		at := startAt.Add(time.Duration(mixed * int64(time.Second) / int64(c.format.SampleRate)))
		mixed += int64(len(samples))
		return c.framer.Write(ToPCM16(samples), at)
	}
	emit := func(samples []float32) bool {
		for _, fr := range frame(samples) {
			select {
			case c.frames <- fr:
			case <-ctx.Done():
				return false
			}
		}
		return true
	}
	// stop ends a requested capture, handing on whatever audio is still buffered.
	stop := func() {
		if c.stopping.Load() {
			tail := frame(mixPending(pending, active, true, 0))
			if fr, ok := c.framer.Flush(); ok {
				tail = append(tail, fr)
			}
			for _, fr := range tail {
				select {
				case c.frames <- fr:
				default:
					c.logger.Debug("capture tail dropped", "seq", fr.Seq)
				}
			}
		}
		c.finish(nil)
	}

	for {
		select {
		case <-ctx.Done():
			stop()
			return
		case ch := <-chunks:
			if ch.err != nil {
				switch {
				case errors.Is(ch.err, io.EOF):
					active[ch.idx] = false
					c.logger.Debug("capture source ended", "source_index", ch.idx)
				case ctx.Err() != nil:
					stop()
					return
				default:
					c.finish(ch.err)
					return
				}
			} else {
				if startAt.IsZero() {
					startAt = ch.at
				}
				pending[ch.idx] = append(pending[ch.idx], ch.samples...)
			}

			anyActive := false
			for _, a := range active {
				anyActive = anyActive || a
			}
			if out := mixPending(pending, active, !anyActive, maxLag); len(out) > 0 {
				if !emit(out) {
					stop()
					return
				}
			}
			if !anyActive {
				if fr, ok := c.framer.Flush(); ok {
					select {
					case c.frames <- fr:
					case <-ctx.Done():
					}
				}
				c.finish(ErrSourcesEnded)
				return
			}
		}
	}
}

// mixPending sums the samples every active source has delivered so far and
// consumes them. Ended sources contribute what they still hold. When the
// leading source is more than maxLag samples ahead of the slowest active one,
// the excess is mixed anyway and the trailing sources count as silent for it.
// When drain is set, everything pending is mixed.
func mixPending(pending [][]float32, active []bool, drain bool, maxLag int) []float32 {
	m, lead := -1, 0
	for i, p := range pending {
		if len(p) > lead {
			lead = len(p)
		}
		if active[i] && (m < 0 || len(p) < m) {
			m = len(p)
		}
	}
	switch {
	case drain || m < 0:
		m = lead
	case lead-m > maxLag:
		m = lead - maxLag
	}
	if m <= 0 {
		return nil
	}

	out := make([]float32, m)
	for i, p := range pending {
		k := min(m, len(p))
		for j := 0; j < k; j++ {
			out[j] += p[j]
		}
		pending[i] = p[k:]
	}
	for j, v := range out {
		if v > 1 {
			out[j] = 1
		} else if v < -1 {
			out[j] = -1
		}
	}
	return out
}

func (c *Capture) finish(err error) {
	close(c.frames)
	if c.stopping.Load() || err == nil {
		return
	}
	c.mu.Lock()
	c.err = err
	c.mu.Unlock()
	c.logger.Warn("capture lost", "error", err)
	close(c.lost)
}
