package stt

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/vango-go/vai-wingman/pkg/core"
	"github.com/vango-go/vai-wingman/pkg/core/stream"
)

const deepgramListenURL = "wss://api.deepgram.com/v1/listen"

// Deepgram dials Deepgram's live transcription websocket.
type Deepgram struct {
	opts   Options
	dialer websocket.Dialer
}

// NewDeepgram creates a dialer. A missing API key is a configuration error.
func NewDeepgram(opts Options) (*Deepgram, error) {
	if opts.APIKey == "" {
		return nil, core.NewCredentialMissingError("stt")
	}
	return &Deepgram{
		opts:   opts.withDefaults(),
		dialer: websocket.Dialer{HandshakeTimeout: 10 * time.Second},
	}, nil
}

// Name returns the provider identifier.
func (d *Deepgram) Name() string { return "deepgram" }

// ListenURL returns the websocket URL with the stream parameters encoded.
func (d *Deepgram) ListenURL() (string, error) {
	base := d.opts.URL
	if base == "" {
		base = deepgramListenURL
	}
	u, err := url.Parse(base)
	if err != nil {
		return "", fmt.Errorf("parse listen URL: %w", err)
	}
	q := u.Query()
	q.Set("model", d.opts.Model)
	q.Set("language", d.opts.Language)
	q.Set("encoding", "linear16")
	q.Set("sample_rate", strconv.Itoa(d.opts.SampleRate))
	q.Set("channels", strconv.Itoa(d.opts.Channels))
	q.Set("diarize", strconv.FormatBool(d.opts.Diarize))
	q.Set("punctuate", "true")
	q.Set("smart_format", "true")
	q.Set("interim_results", "true")
	q.Set("endpointing", strconv.Itoa(d.opts.EndpointingMs))
	q.Set("utterance_end_ms", strconv.Itoa(d.opts.UtteranceEndMs))
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// Dial opens a stream. ctx bounds the handshake only; the returned connection
// lives until Close or until the provider drops it.
func (d *Deepgram) Dial(ctx context.Context, emit func(stream.Event)) (stream.Conn, error) {
	target, err := d.ListenURL()
	if err != nil {
		return nil, err
	}
	headers := http.Header{}
	headers.Set("Authorization", "Token "+d.opts.APIKey)

	conn, resp, err := d.dialer.DialContext(ctx, target, headers)
	if err != nil {
		return nil, stream.HandshakeError(d.Name(), resp, err)
	}

	s := &session{
		conn:   conn,
		emit:   emit,
		logger: d.opts.Logger,
		done:   make(chan struct{}),
		stop:   make(chan struct{}),
	}
	go s.readLoop()
	if d.opts.KeepAlive > 0 {
		go s.keepAlive(d.opts.KeepAlive)
	}
	return s, nil
}

// session is one live Deepgram websocket.
type session struct {
	conn    *websocket.Conn
	emit    func(stream.Event)
	logger  *slog.Logger
	writeMu sync.Mutex
	closed  atomic.Bool

	done chan struct{}
	stop chan struct{}

	errMu sync.Mutex
	err   error

	// lastSpeaker is the speaker of the most recent result; UtteranceEnd
	// carries no speaker of its own. Only touched by readLoop.
	lastSpeaker int
}

func (s *session) Send(pcm []byte) error {
	if s.closed.Load() {
		return fmt.Errorf("session closed")
	}
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	return s.conn.WriteMessage(websocket.BinaryMessage, pcm)
}

func (s *session) Done() <-chan struct{} { return s.done }

func (s *session) Err() error {
	s.errMu.Lock()
	defer s.errMu.Unlock()
	return s.err
}

// Close asks the provider to flush and closes the socket.
func (s *session) Close() error {
	if s.closed.Swap(true) {
		return nil
	}
	close(s.stop)

	s.writeMu.Lock()
	_ = s.conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"CloseStream"}`))
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

func (s *session) keepAlive(every time.Duration) {
	t := time.NewTicker(every)
	defer t.Stop()
	for {
		select {
		case <-s.stop:
			return
		case <-s.done:
			return
		case <-t.C:
			s.writeMu.Lock()
			err := s.conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"KeepAlive"}`))
			s.writeMu.Unlock()
			if err != nil {
				return
			}
		}
	}
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

		var msg listenMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			s.logger.Debug("deepgram: undecodable message", "error", err)
			continue
		}

		switch msg.Type {
		case "Results":
			if ev, ok := s.transcript(msg); ok {
				s.emit(stream.Event{Transcript: ev})
			}
		case "UtteranceEnd":
			s.emit(stream.Event{Transcript: &stream.TranscriptEvent{
				SpeakerID: s.lastSpeaker,
				Final:     true,
				EndOfTurn: true,
				End:       msg.LastWordEnd,
			}})
		case "Error":
			s.fail(errors.New("deepgram: " + msg.Description))
			return
		}
	}
}

// transcript maps a Results message. Empty non-final results carry nothing
// and are dropped; an empty speech_final still closes the turn.
func (s *session) transcript(msg listenMessage) (*stream.TranscriptEvent, bool) {
	var ch resultsChannel
	if err := json.Unmarshal(msg.Channel, &ch); err != nil || len(ch.Alternatives) == 0 {
		return nil, false
	}
	alt := ch.Alternatives[0]
	if alt.Transcript == "" && !msg.SpeechFinal {
		return nil, false
	}

	ev := &stream.TranscriptEvent{
		SpeakerID:  s.lastSpeaker,
		Text:       alt.Transcript,
		Final:      msg.IsFinal,
		EndOfTurn:  msg.SpeechFinal,
		Confidence: alt.Confidence,
		Start:      msg.Start,
		End:        msg.Start + msg.Duration,
	}
	if n := len(alt.Words); n > 0 {
		if sp := alt.Words[n-1].Speaker; sp != nil {
			ev.SpeakerID = *sp
		}
		ev.Start = alt.Words[0].Start
		ev.End = alt.Words[n-1].End
	}
	s.lastSpeaker = ev.SpeakerID
	return ev, true
}

type listenMessage struct {
	Type        string  `json:"type"`
	IsFinal     bool    `json:"is_final"`
	SpeechFinal bool    `json:"speech_final"`
	Start       float64 `json:"start"`
	Duration    float64 `json:"duration"`
	LastWordEnd float64 `json:"last_word_end"`
	Description string  `json:"description"`
	// Channel is an object on Results and an index array on UtteranceEnd.
	Channel json.RawMessage `json:"channel"`
}

type resultsChannel struct {
	Alternatives []struct {
		Transcript string  `json:"transcript"`
		Confidence float64 `json:"confidence"`
		Words      []struct {
			Word       string  `json:"word"`
			Start      float64 `json:"start"`
			End        float64 `json:"end"`
			Confidence float64 `json:"confidence"`
			Speaker    *int    `json:"speaker"`
		} `json:"words"`
	} `json:"alternatives"`
}
