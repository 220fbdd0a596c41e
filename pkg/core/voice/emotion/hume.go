package emotion

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/vango-go/vai-wingman/pkg/core"
	"github.com/vango-go/vai-wingman/pkg/core/audio"
	"github.com/vango-go/vai-wingman/pkg/core/stream"
)

const humeStreamURL = "wss://api.hume.ai/v0/stream/models"

// Options configures the prosody dialer.
type Options struct {
	APIKey string
	URL    string
	// Window is how much audio is batched into one prediction request.
	// Default: 3s.
	Window time.Duration
	Format audio.Format
	Logger *slog.Logger
}

// Hume dials Hume's streaming expression measurement API.
type Hume struct {
	opts   Options
	dialer websocket.Dialer
}

// NewHume creates a dialer. A missing API key is a configuration error.
func NewHume(opts Options) (*Hume, error) {
	if opts.APIKey == "" {
		return nil, core.NewCredentialMissingError("emotion")
	}
	if opts.URL == "" {
		opts.URL = humeStreamURL
	}
	if opts.Window <= 0 {
		opts.Window = 3 * time.Second
	}
	if !opts.Format.Valid() {
		opts.Format = audio.DefaultFormat()
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Hume{
		opts:   opts,
		dialer: websocket.Dialer{HandshakeTimeout: 10 * time.Second},
	}, nil
}

// Name returns the provider identifier.
func (h *Hume) Name() string { return "hume" }

// Dial opens a stream. ctx bounds the handshake only.
func (h *Hume) Dial(ctx context.Context, emit func(stream.Event)) (stream.Conn, error) {
	headers := http.Header{}
	headers.Set("X-Hume-Api-Key", h.opts.APIKey)

	conn, resp, err := h.dialer.DialContext(ctx, h.opts.URL, headers)
	if err != nil {
		return nil, stream.HandshakeError(h.Name(), resp, err)
	}

	s := &session{
		conn:        conn,
		emit:        emit,
		format:      h.opts.Format,
		windowBytes: h.opts.Format.BytesForDurationMs(int(h.opts.Window / time.Millisecond)),
		logger:      h.opts.Logger,
		done:        make(chan struct{}),
	}
	go s.readLoop()
	return s, nil
}

// session batches frames into fixed windows; each window is one request and
// yields one emotion sample.
type session struct {
	conn        *websocket.Conn
	emit        func(stream.Event)
	format      audio.Format
	windowBytes int
	logger      *slog.Logger

	writeMu sync.Mutex
	buf     []byte
	// offset is the stream position, in seconds, of buf's first byte.
	offset float64
	// pending holds the start offsets of windows awaiting a prediction.
	pendingMu sync.Mutex
	pending   []float64

	closed atomic.Bool
	done   chan struct{}
	errMu  sync.Mutex
	err    error
}

// Send appends PCM and ships every complete window.
func (s *session) Send(pcm []byte) error {
	if s.closed.Load() {
		return fmt.Errorf("session closed")
	}
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	s.buf = append(s.buf, pcm...)
	for len(s.buf) >= s.windowBytes {
		window := s.buf[:s.windowBytes]
		if err := s.sendWindow(window); err != nil {
			return err
		}
		s.offset += s.format.Duration(len(window)).Seconds()
		s.buf = append(s.buf[:0], s.buf[s.windowBytes:]...)
	}
	return nil
}

func (s *session) sendWindow(pcm []byte) error {
	req := streamRequest{
		Models: map[string]struct{}{"prosody": {}},
		Data:   base64.StdEncoding.EncodeToString(audio.EncodeWAV(pcm, s.format)),
	}
	body, err := json.Marshal(req)
	if err != nil {
		return err
	}
	s.pendingMu.Lock()
	s.pending = append(s.pending, s.offset)
	s.pendingMu.Unlock()
	return s.conn.WriteMessage(websocket.TextMessage, body)
}

func (s *session) Done() <-chan struct{} { return s.done }

func (s *session) Err() error {
	s.errMu.Lock()
	defer s.errMu.Unlock()
	return s.err
}

// Close drops any partial window and closes the socket.
func (s *session) Close() error {
	if s.closed.Swap(true) {
		return nil
	}
	s.writeMu.Lock()
	_ = s.conn.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	s.writeMu.Unlock()
	return s.conn.Close()
}

func (s *session) fail(err error) {
	s.errMu.Lock()
	if s.err == nil {
		s.err = err
	}
	s.errMu.Unlock()
}

func (s *session) nextOffset() float64 {
	s.pendingMu.Lock()
	defer s.pendingMu.Unlock()
	if len(s.pending) == 0 {
		return 0
	}
	off := s.pending[0]
	s.pending = s.pending[1:]
	return off
}

func (s *session) readLoop() {
	defer close(s.done)

	for {
		_, data, err := s.conn.ReadMessage()
		if err != nil {
			if !s.closed.Load() && !websocket.IsCloseError(err, websocket.CloseNormalClosure) {
				s.fail(err)
			}
			return
		}

		var msg streamResponse
		if err := json.Unmarshal(data, &msg); err != nil {
			s.logger.Debug("hume: undecodable message", "error", err)
			continue
		}
		if msg.Error != "" {
			// Per-request errors (for example an unreadable window) leave the
			// stream usable; authentication errors end it.
			s.nextOffset()
			if msg.Code == "E0300" || msg.Code == "E0301" {
				s.fail(errors.New("hume: " + msg.Error))
				return
			}
			s.logger.Debug("hume: request error", "code", msg.Code, "error", msg.Error)
			continue
		}

		offset := s.nextOffset()
		if msg.Prosody == nil || len(msg.Prosody.Predictions) == 0 {
			// No speech detected in the window.
			continue
		}
		for _, p := range msg.Prosody.Predictions {
			sample := Classify(p.Emotions)
			sample.Begin = offset + p.Time.Begin
			sample.End = offset + p.Time.End
			s.emit(stream.Event{Emotion: &sample})
		}
	}
}

type streamRequest struct {
	Models map[string]struct{} `json:"models"`
	Data   string              `json:"data"`
}

type streamResponse struct {
	Error   string `json:"error"`
	Code    string `json:"code"`
	Prosody *struct {
		Warning     string `json:"warning"`
		Predictions []struct {
			Time struct {
				Begin float64 `json:"begin"`
				End   float64 `json:"end"`
			} `json:"time"`
			Emotions []Label `json:"emotions"`
		} `json:"predictions"`
	} `json:"prosody"`
}
