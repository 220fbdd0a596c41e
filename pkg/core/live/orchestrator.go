package live

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"github.com/vango-go/vai-wingman/pkg/core"
	"github.com/vango-go/vai-wingman/pkg/core/stream"
	"github.com/vango-go/vai-wingman/pkg/core/suggest"
)

// Dependencies are the orchestrator's collaborators. Capture, STT, Emotion,
// Suggester and Credentials are required; the rest may be nil.
type Dependencies struct {
	Capture     CaptureOpener
	STT         stream.Dialer
	Emotion     stream.Dialer
	Suggester   Suggester
	Summarizer  Summarizer
	Settings    Settings
	Persister   Persister
	Presenter   Presenter
	Credentials Credentials
	Obligations Obligations

	Logger *slog.Logger
	Now    func() time.Time
	NewID  func() string
	Tracer trace.Tracer
}

// Orchestrator owns the process-wide session singleton.
type Orchestrator struct {
	cfg    Config
	deps   Dependencies
	logger *slog.Logger

	// startMu serializes Start, including any forced shutdown of a stale session.
	startMu sync.Mutex

	mu    sync.Mutex
	state State
	sess  *session
}

// NewOrchestrator validates deps and returns an idle orchestrator.
func NewOrchestrator(cfg Config, deps Dependencies) (*Orchestrator, error) {
	switch {
	case deps.Capture == nil:
		return nil, errors.New("live: capture opener is required")
	case deps.STT == nil:
		return nil, errors.New("live: stt dialer is required")
	case deps.Emotion == nil:
		return nil, errors.New("live: emotion dialer is required")
	case deps.Suggester == nil:
		return nil, errors.New("live: suggester is required")
	case deps.Credentials == nil:
		return nil, errors.New("live: credentials are required")
	}
	if deps.Presenter == nil {
		deps.Presenter = nopPresenter{}
	}
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}
	if deps.NewID == nil {
		deps.NewID = uuid.NewString
	}
	if deps.Tracer == nil {
		deps.Tracer = otel.Tracer("github.com/vango-go/vai-wingman/pkg/core/live")
	}
	return &Orchestrator{
		cfg:    cfg.withDefaults(),
		deps:   deps,
		logger: deps.Logger,
		state:  StateIdle,
	}, nil
}

// State returns the current lifecycle state.
func (o *Orchestrator) State() State {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.state
}

// SessionID returns the live session's id, or "" when idle.
func (o *Orchestrator) SessionID() string {
	if s := o.current(); s != nil {
		return s.id
	}
	return ""
}

// Preview returns the live session's interim transcript text.
func (o *Orchestrator) Preview() string {
	s := o.current()
	if s == nil {
		return ""
	}
	p, _ := s.preview.Load().(string)
	return p
}

// Start brings up a session on surface and returns its id. If a session is
// already active on a live surface its id is returned and nothing is
// re-initialized. A session whose surface is gone is shut down first.
//
// Configuration failures return a *core.Error and leave the orchestrator idle.
func (o *Orchestrator) Start(ctx context.Context, surface Surface) (string, error) {
	o.startMu.Lock()
	defer o.startMu.Unlock()

	if s := o.current(); s != nil {
		if !closed(s.stopping) && !closed(s.surface.Gone()) {
			return s.id, nil
		}
		o.logger.Info("terminating stale session", "session_id", s.id)
		o.shutdown(s, ReasonStale)
	}

	o.setState(StateStarting)
	s, err := o.bringUp(ctx, surface)
	if err != nil {
		o.setState(StateIdle)
		o.logger.Warn("session start failed", "error", err)
		return "", err
	}

	o.mu.Lock()
	o.sess = s
	o.state = StateActive
	o.mu.Unlock()

	go o.pump(s)
	go o.loop(s)
	go o.watch(s)

	o.logger.Info("session active",
		"session_id", s.id,
		"surface", s.surface.ID(),
		"persona", s.persona.ID,
		"speaker_filter", s.speakerFilter,
	)
	return s.id, nil
}

// Stop runs the shutdown protocol for the live session and returns once
// summary, persistence and notification have all resolved. It is idempotent:
// concurrent and repeated callers observe the same result. With no session it
// returns a zero StopResult.
func (o *Orchestrator) Stop(ctx context.Context) StopResult {
	o.startMu.Lock()
	s := o.current()
	o.startMu.Unlock()
	if s == nil {
		return StopResult{}
	}
	return o.shutdownCtx(ctx, s, ReasonRequested)
}

func (o *Orchestrator) current() *session {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.sess
}

func (o *Orchestrator) setState(st State) {
	o.mu.Lock()
	o.state = st
	o.mu.Unlock()
}

func (o *Orchestrator) bringUp(ctx context.Context, surface Surface) (*session, error) {
	for _, name := range []string{CredentialSTT, CredentialEmotion, CredentialCompletion} {
		if strings.TrimSpace(o.deps.Credentials.Credential(name)) == "" {
			return nil, core.NewCredentialMissingError(name)
		}
	}
	if surface == nil {
		return nil, core.NewCaptureDeniedError("", errors.New("no capture surface"))
	}
	if closed(surface.Gone()) {
		return nil, core.NewCaptureDeniedError(surface.ID(), errors.New("capture surface is gone"))
	}

	persona, speakerFilter := o.readSessionSettings(ctx)
	s := newSession(o.deps.NewID(), surface, o.deps.Now(), persona, speakerFilter)
	s.gate = NewGate(speakerFilter, o.deps.Suggester.Provider(),
		NewCooldown(o.cfg.Cooldowns, o.cfg.DefaultCooldown), o.deps.Now)
	s.bus = stream.NewBus(256, o.deps.Now)

	logger := o.logger.With("session_id", s.id)
	var err error
	s.stt, err = stream.NewAdapter(stream.AdapterConfig{
		Origin: stream.OriginSTT, Dialer: o.deps.STT, Bus: s.bus, Policy: o.cfg.Policy, Logger: logger,
	})
	if err != nil {
		s.bus.Close()
		return nil, core.NewAdapterConnectError(string(stream.OriginSTT), err)
	}
	s.emotion, err = stream.NewAdapter(stream.AdapterConfig{
		Origin: stream.OriginEmotion, Dialer: o.deps.Emotion, Bus: s.bus, Policy: o.cfg.Policy, Logger: logger,
	})
	if err != nil {
		s.bus.Close()
		return nil, core.NewAdapterConnectError(string(stream.OriginEmotion), err)
	}

	if err := s.stt.Connect(ctx); err != nil {
		s.bus.Close()
		return nil, core.NewAdapterConnectError(string(stream.OriginSTT), err)
	}
	if err := s.emotion.Connect(ctx); err != nil {
		_ = s.stt.Close()
		s.bus.Close()
		return nil, core.NewAdapterConnectError(string(stream.OriginEmotion), err)
	}

	capture, err := o.deps.Capture.Open(ctx, surface)
	if err != nil {
		_ = s.stt.Close()
		_ = s.emotion.Close()
		s.bus.Close()
		if core.IsConfigError(err) {
			return nil, err
		}
		return nil, core.NewCaptureDeniedError(surface.ID(), err)
	}
	s.capture = capture
	return s, nil
}

func (o *Orchestrator) readSessionSettings(ctx context.Context) (suggest.Persona, bool) {
	persona := suggest.Persona{}
	if o.deps.Settings == nil {
		return persona, true
	}
	vals, err := o.deps.Settings.Read(ctx, KeyActivePersona, KeySpeakerFilter)
	if err != nil {
		o.logger.Warn("settings read failed; using defaults", "error", err)
		return persona, true
	}
	speakerFilter := true
	if v, ok := vals[KeySpeakerFilter]; ok && v != "" {
		speakerFilter = settingBool(vals, KeySpeakerFilter)
	}

	persona.ID = strings.TrimSpace(vals[KeyActivePersona])
	if persona.ID == "" {
		return persona, speakerFilter
	}
	pv, err := o.deps.Settings.Read(ctx, PersonaInstructionsKey(persona.ID), PersonaDocumentsKey(persona.ID))
	if err != nil {
		o.logger.Warn("persona read failed; using default instructions", "persona", persona.ID, "error", err)
		return persona, speakerFilter
	}
	persona.Instructions = pv[PersonaInstructionsKey(persona.ID)]
	persona.DocumentIDs = splitList(pv[PersonaDocumentsKey(persona.ID)])
	return persona, speakerFilter
}

// pump forwards captured frames to both adapters until capture ends.
func (o *Orchestrator) pump(s *session) {
	defer close(s.pumpDone)
	for fr := range s.capture.Frames() {
		s.stt.Send(fr)
		s.emotion.Send(fr)
	}
}

// watch turns surface disappearance or capture loss into a shutdown.
func (o *Orchestrator) watch(s *session) {
	var reason StopReason
	select {
	case <-s.stopping:
		return
	case <-s.surface.Gone():
		reason = ReasonSurfaceGone
	case <-s.capture.Lost():
		reason = ReasonCaptureLost
		o.logger.Warn("capture lost", "session_id", s.id, "error", s.capture.Err())
	}
	o.shutdown(s, reason)
}

type nopPresenter struct{}

func (nopPresenter) Present(Event) {}

func closed(ch <-chan struct{}) bool {
	if ch == nil {
		return false
	}
	select {
	case <-ch:
		return true
	default:
		return false
	}
}
