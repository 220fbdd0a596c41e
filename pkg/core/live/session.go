package live

import (
	"context"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/vango-go/vai-wingman/pkg/core/stream"
	"github.com/vango-go/vai-wingman/pkg/core/suggest"
)

// session is one live session. Fields under "loop-owned" are touched only by
// the loop goroutine until loopDone is closed, and only by the shutdown
// protocol afterwards.
type session struct {
	id            string
	surface       Surface
	start         time.Time
	persona       suggest.Persona
	speakerFilter bool

	bus     *stream.Bus
	stt     *stream.Adapter
	emotion *stream.Adapter
	capture Capture
	gate    *Gate

	// loop-owned
	seg      *Segmenter
	tracker  *SpeakerTracker
	log      []Utterance
	context  []Utterance
	emotions map[string]int
	counters Counters

	preview    atomic.Value
	lateDrops  atomic.Int64
	results    chan suggestionResult
	stopping   chan struct{}
	quit       chan struct{}
	loopDone   chan struct{}
	pumpDone   chan struct{}
	stopOnce   sync.Once
	stopDone   chan struct{}
	stopResult StopResult
}

type suggestionResult struct {
	trigger  Utterance
	provider string
	result   suggest.Result
	err      error
}

func newSession(id string, surface Surface, start time.Time, persona suggest.Persona, speakerFilter bool) *session {
	s := &session{
		id:            id,
		surface:       surface,
		start:         start,
		persona:       persona,
		speakerFilter: speakerFilter,
		seg:           NewSegmenter(),
		tracker:       NewSpeakerTracker(),
		emotions:      make(map[string]int),
		results:       make(chan suggestionResult),
		stopping:      make(chan struct{}),
		quit:          make(chan struct{}),
		loopDone:      make(chan struct{}),
		pumpDone:      make(chan struct{}),
		stopDone:      make(chan struct{}),
	}
	s.preview.Store("")
	return s
}

// loop is the session's single logical thread. Every mutation of the
// transcript log, the segmenter, the speaker tracker and the cooldown happens
// here, one event at a time.
func (o *Orchestrator) loop(s *session) {
	defer close(s.loopDone)
	for {
		select {
		case ev := <-s.bus.Events():
			o.handle(s, ev)
		case r := <-s.results:
			o.handleResult(s, r)
		case <-s.quit:
			o.drain(s)
			return
		}
	}
}

// drain consumes whatever is already buffered on the bus, then closes the
// open turn into the log without triggering a suggestion.
func (o *Orchestrator) drain(s *session) {
	for {
		select {
		case ev := <-s.bus.Events():
			o.handle(s, ev)
			continue
		case r := <-s.results:
			o.handleResult(s, r)
			continue
		default:
		}
		break
	}
	if seg, ok := s.seg.Flush(); ok {
		o.appendUtterance(s, seg)
	}
	s.preview.Store("")
}

func (o *Orchestrator) handle(s *session, ev stream.Event) {
	switch {
	case ev.Transcript != nil:
		segs := s.seg.Push(*ev.Transcript, ev.At)
		if !ev.Transcript.Final {
			s.preview.Store(s.seg.Preview())
			o.deps.Presenter.Present(&TranscriptUpdateEvent{
				SessionID: s.id,
				Interim:   true,
				Preview:   s.seg.Preview(),
			})
			return
		}
		s.preview.Store(s.seg.Preview())
		for _, seg := range segs {
			u := o.appendUtterance(s, seg)
			o.gateUtterance(s, u)
		}

	case ev.Emotion != nil:
		sample := *ev.Emotion
		s.emotions[string(sample.State)]++
		o.deps.Presenter.Present(&TranscriptUpdateEvent{SessionID: s.id, Emotion: &sample})

	case ev.Status != nil:
		st := ev.Status
		switch st.Status {
		case stream.StatusLost:
			o.logger.Warn("provider stream lost; continuing without it",
				"session_id", s.id, "origin", string(ev.Origin), "error", st.Err)
		case stream.StatusReconnecting:
			o.logger.Debug("provider stream reconnecting",
				"session_id", s.id, "origin", string(ev.Origin), "attempt", st.Attempt)
		default:
			o.logger.Debug("provider stream status",
				"session_id", s.id, "origin", string(ev.Origin), "status", string(st.Status))
		}
	}
}

func (o *Orchestrator) appendUtterance(s *session, seg Segment) Utterance {
	role, self := s.tracker.Observe(seg.SpeakerID, seg.Text, len(strings.Fields(seg.Text)))
	at := seg.At
	if at.IsZero() {
		at = o.deps.Now()
	}
	u := Utterance{
		ID:        o.deps.NewID(),
		SpeakerID: seg.SpeakerID,
		Speaker:   SpeakerLabel(seg.SpeakerID),
		Role:      role,
		IsSelf:    self,
		Text:      seg.Text,
		Timestamp: at,
	}
	s.log = append(s.log, u)
	o.deps.Presenter.Present(&TranscriptUpdateEvent{SessionID: s.id, Utterance: &u})
	return u
}

func (o *Orchestrator) gateUtterance(s *session, u Utterance) {
	// Snapshot prior turns before this one joins the rolling context.
	prior := make([]suggest.Turn, 0, len(s.context))
	for _, c := range s.context {
		prior = append(prior, c.Turn())
	}
	s.context = append(s.context, u)
	if n := len(s.context) - o.cfg.MaxContextTurns; n > 0 {
		s.context = append(s.context[:0:0], s.context[n:]...)
	}

	if closed(s.stopping) {
		return
	}
	switch v := s.gate.Admit(u); v {
	case VerdictSelf:
		s.counters.DroppedSelf++
		return
	case VerdictCooldown:
		s.counters.DroppedCooldown++
		o.logger.Debug("suggestion dropped by cooldown", "session_id", s.id, "utterance", u.ID)
		return
	}

	req := suggest.Request{Utterance: u.Turn(), Context: prior, Persona: s.persona}
	provider := o.deps.Suggester.Provider()
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), o.cfg.SuggestTimeout)
		defer cancel()
		res, err := o.deps.Suggester.Run(ctx, req)
		select {
		case s.results <- suggestionResult{trigger: u, provider: provider, result: res, err: err}:
		case <-s.loopDone:
			s.lateDrops.Add(1)
		}
	}()
}

func (o *Orchestrator) handleResult(s *session, r suggestionResult) {
	switch {
	case closed(s.stopping):
		s.counters.DroppedAfterStop++
	case r.err != nil:
		s.counters.SuggestionFailures++
		o.logger.Warn("suggestion failed", "session_id", s.id, "provider", r.provider, "error", r.err)
	case r.result.IsSilent():
		s.counters.DroppedSilent++
	default:
		s.counters.SuggestionsShown++
		o.deps.Presenter.Present(&SuggestionEvent{
			SessionID: s.id,
			Trigger:   r.trigger,
			Result:    r.result,
			Provider:  r.provider,
		})
	}
}
