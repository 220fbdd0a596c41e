package main

import (
	"bufio"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"sync"

	"github.com/vango-go/vai-wingman/pkg/core"
	"github.com/vango-go/vai-wingman/pkg/core/audio"
	"github.com/vango-go/vai-wingman/pkg/core/live"
)

// inputSurface is the capture surface of a CLI session: the input stream and
// the terminal it was started from. It is gone once vanish is called, which
// listen does on SIGHUP.
type inputSurface struct {
	id   string
	gone chan struct{}
	once sync.Once
}

func newInputSurface(input string) *inputSurface {
	id := "stdin"
	if input != "" && input != "-" {
		id = "file:" + filepath.Base(input)
	}
	return &inputSurface{id: id, gone: make(chan struct{})}
}

func (s *inputSurface) ID() string            { return s.id }
func (s *inputSurface) Gone() <-chan struct{} { return s.gone }
func (s *inputSurface) vanish()               { s.once.Do(func() { close(s.gone) }) }

// captureOpener captures a WAV or raw PCM16 stream from a file or stdin.
type captureOpener struct {
	input string
	stdin io.Reader
	// pcm describes raw input; WAV input carries its own format.
	pcm audio.PCMReaderOptions
	cfg audio.CaptureConfig
}

func (o *captureOpener) Open(ctx context.Context, s live.Surface) (live.Capture, error) {
	r, closer, err := o.openInput()
	if err != nil {
		return nil, core.NewCaptureDeniedError(s.ID(), err)
	}
	src, err := o.source(r)
	if err != nil {
		_ = closer.Close()
		return nil, core.NewCaptureDeniedError(s.ID(), err)
	}
	// Capture outlives the start request; it ends through Stop or EOF.
	c, err := audio.StartCapture(context.WithoutCancel(ctx), o.cfg, src)
	if err != nil {
		_ = closer.Close()
		return nil, core.NewCaptureDeniedError(s.ID(), err)
	}
	return &inputCapture{Capture: c, closer: closer}, nil
}

func (o *captureOpener) openInput() (io.Reader, io.Closer, error) {
	if o.input == "" || o.input == "-" {
		if o.stdin == nil {
			return nil, nil, errors.New("no input stream")
		}
		return o.stdin, io.NopCloser(nil), nil
	}
	f, err := os.Open(o.input)
	if err != nil {
		return nil, nil, err
	}
	return f, f, nil
}

// source sniffs the RIFF magic to tell WAV from raw PCM.
func (o *captureOpener) source(r io.Reader) (audio.Source, error) {
	br := bufio.NewReader(r)
	opts := o.pcm
	if opts.Name == "" {
		opts.Name = "input"
	}
	if magic, err := br.Peek(4); err == nil && string(magic) == "RIFF" {
		src, _, err := audio.NewWAVSource(br, opts)
		if err != nil {
			return nil, err
		}
		return src, nil
	}
	return audio.NewPCMReaderSource(br, opts), nil
}

// inputCapture closes the input once capture is stopped.
type inputCapture struct {
	*audio.Capture
	closer io.Closer
	once   sync.Once
}

func (c *inputCapture) Stop() error {
	err := c.Capture.Stop()
	c.once.Do(func() {
		if cerr := c.closer.Close(); cerr != nil && err == nil {
			err = cerr
		}
	})
	return err
}
