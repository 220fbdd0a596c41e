package audio

import (
	"context"
	"errors"
	"io"
	"time"
)

// ErrPermissionRevoked is returned by a source whose capture permission was withdrawn.
var ErrPermissionRevoked = errors.New("capture permission revoked")

// Block is one read from a capture source: interleaved float samples in
// [-1, 1] at the source's native rate and channel count.
type Block struct {
	Samples    []float32
	Channels   int
	SampleRate int
	CapturedAt time.Time
}

// Source is a live audio input such as a local input device or remote/system audio.
// Read blocks until the next block is available and returns io.EOF when the source ends.
type Source interface {
	Name() string
	Read(ctx context.Context) (Block, error)
}

// PCMReaderSource reads raw interleaved PCM16 from an io.Reader.
type PCMReaderSource struct {
	name       string
	r          io.Reader
	channels   int
	sampleRate int
	blockBytes int
	realtime   bool
	now        func() time.Time
	sleep      func(context.Context, time.Duration) error
}

// PCMReaderOptions configures a PCMReaderSource.
type PCMReaderOptions struct {
	Name       string
	Channels   int
	SampleRate int
	// BlockDuration is the amount of audio returned per Read. Default: 20ms.
	BlockDuration time.Duration
	// Realtime paces reads to the audio clock, as a live device would.
	Realtime bool
	Now      func() time.Time
}

// NewPCMReaderSource wraps r as a capture source.
func NewPCMReaderSource(r io.Reader, opts PCMReaderOptions) *PCMReaderSource {
	if opts.Channels <= 0 {
		opts.Channels = 1
	}
	if opts.SampleRate <= 0 {
		opts.SampleRate = 16000
	}
	if opts.BlockDuration <= 0 {
		opts.BlockDuration = 20 * time.Millisecond
	}
	if opts.Name == "" {
		opts.Name = "pcm"
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	frameSize := opts.Channels * 2
	samples := int(int64(opts.SampleRate) * int64(opts.BlockDuration) / int64(time.Second))
	if samples <= 0 {
		samples = 1
	}
	return &PCMReaderSource{
		name:       opts.Name,
		r:          r,
		channels:   opts.Channels,
		sampleRate: opts.SampleRate,
		blockBytes: samples * frameSize,
		realtime:   opts.Realtime,
		now:        opts.Now,
		sleep:      sleepCtx,
	}
}

// Name returns the source label.
func (s *PCMReaderSource) Name() string { return s.name }

// Read returns the next block of samples.
func (s *PCMReaderSource) Read(ctx context.Context) (Block, error) {
	if err := ctx.Err(); err != nil {
		return Block{}, err
	}
	buf := make([]byte, s.blockBytes)
	n, err := io.ReadFull(s.r, buf)
	if n == 0 {
		if err == nil || errors.Is(err, io.ErrUnexpectedEOF) {
			err = io.EOF
		}
		return Block{}, err
	}
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
		return Block{}, err
	}
	n -= n % (s.channels * 2)

	at := s.now()
	block := Block{
		Samples:    PCM16ToFloat(buf[:n]),
		Channels:   s.channels,
		SampleRate: s.sampleRate,
		CapturedAt: at,
	}
	if s.realtime {
		d := time.Duration(int64(n/(s.channels*2)) * int64(time.Second) / int64(s.sampleRate))
		if err := s.sleep(ctx, d); err != nil {
			return Block{}, err
		}
	}
	return block, nil
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
