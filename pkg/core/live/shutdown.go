package live

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/vango-go/vai-wingman/pkg/core/stream"
	"github.com/vango-go/vai-wingman/pkg/core/summary"
)

var shutdownKeys = []string{KeySummaryEnabled, KeyPersistEnabled, KeyKeyMoments, KeyPersistDestination}

func (o *Orchestrator) shutdown(s *session, reason StopReason) StopResult {
	return o.shutdownCtx(context.Background(), s, reason)
}

// shutdownCtx runs the shutdown protocol once per session. Later and
// concurrent callers block until the first run resolves and get its result.
// ctx contributes values only; its cancellation does not abort the protocol.
func (o *Orchestrator) shutdownCtx(ctx context.Context, s *session, reason StopReason) StopResult {
	s.stopOnce.Do(func() {
		s.stopResult = o.runShutdown(context.WithoutCancel(ctx), s, reason)
		close(s.stopDone)
	})
	<-s.stopDone
	return s.stopResult
}

func (o *Orchestrator) runShutdown(ctx context.Context, s *session, reason StopReason) StopResult {
	// The surface identity is taken before anything else is touched.
	surfaceID := s.surface.ID()

	if o.deps.Obligations != nil {
		release := o.deps.Obligations.Hold("shutdown:" + s.id)
		defer release()
	}
	ctx, span := o.deps.Tracer.Start(ctx, "live.shutdown")
	defer span.End()
	span.SetAttributes(
		attribute.String("live.session_id", s.id),
		attribute.String("live.reason", string(reason)),
	)

	o.setState(StateStopping)
	close(s.stopping)
	logger := o.logger.With("session_id", s.id, "reason", string(reason))
	logger.Info("session stopping", "surface", surfaceID)

	// Stop capture and let the loop consume what is already buffered.
	if err := s.capture.Stop(); err != nil {
		logger.Warn("capture stop failed", "error", err)
	}
	<-s.pumpDone
	close(s.quit)
	<-s.loopDone
	s.bus.Close()
	end := o.deps.Now()

	vals := o.readShutdownSettings(ctx, logger)
	meta := o.metadata(s, end)
	transcript := s.log

	outcome := o.decideOutcome(ctx, s, vals, logger)
	span.SetAttributes(attribute.String("live.outcome", string(outcome.Kind)))
	if outcome.Kind == OutcomeError {
		span.RecordError(outcome.Err)
		span.SetStatus(codes.Error, "summary failed")
	}

	rec := Record{SessionID: s.id, Transcript: transcript, Metadata: meta, Summary: outcome.Summary}
	persist := o.persist(ctx, vals, rec, logger)

	o.notify(s, outcome, persist)

	if err := s.stt.Close(); err != nil {
		logger.Debug("stt adapter close", "error", err)
	}
	if err := s.emotion.Close(); err != nil {
		logger.Debug("emotion adapter close", "error", err)
	}
	s.log, s.context = nil, nil

	o.mu.Lock()
	if o.sess == s {
		o.sess = nil
	}
	o.state = StateIdle
	o.mu.Unlock()

	logger.Info("session stopped",
		"outcome", string(outcome.Kind),
		"persisted", persist.Saved(),
		"utterances", meta.TranscriptsCount,
		"suggestions", meta.SuggestionsCount,
		"dropped_cooldown", meta.Counters.DroppedCooldown,
		"dropped_after_stop", meta.Counters.DroppedAfterStop,
	)
	return StopResult{
		SessionID:  s.id,
		SurfaceID:  surfaceID,
		Reason:     reason,
		Outcome:    outcome,
		Persist:    persist,
		Transcript: transcript,
		Metadata:   meta,
	}
}

// readShutdownSettings reads every shutdown toggle in one batch. A failed
// read leaves every toggle off.
func (o *Orchestrator) readShutdownSettings(ctx context.Context, logger *slog.Logger) map[string]string {
	if o.deps.Settings == nil {
		return map[string]string{}
	}
	vals, err := o.deps.Settings.Read(ctx, shutdownKeys...)
	if err != nil {
		logger.Warn("shutdown settings read failed; summary and persistence disabled", "error", err)
		return map[string]string{}
	}
	return vals
}

func (o *Orchestrator) decideOutcome(ctx context.Context, s *session, vals map[string]string, logger *slog.Logger) TeardownOutcome {
	if !settingBool(vals, KeySummaryEnabled) {
		return TeardownOutcome{Kind: OutcomeDisabled, Reason: "summary disabled"}
	}
	if o.deps.Summarizer == nil || strings.TrimSpace(o.deps.Credentials.Credential(CredentialSummary)) == "" {
		return TeardownOutcome{Kind: OutcomeDisabled, Reason: "summary credential missing"}
	}
	if len(s.log) < o.cfg.MinUtterances {
		return TeardownOutcome{
			Kind:   OutcomeSkipped,
			Reason: fmt.Sprintf("%d utterances, need %d", len(s.log), o.cfg.MinUtterances),
		}
	}

	o.deps.Presenter.Present(&LoadingEvent{SessionID: s.id})

	sctx, cancel := context.WithTimeout(ctx, o.cfg.SummaryTimeout)
	defer cancel()
	sum, err := o.deps.Summarizer.Summarize(sctx, summary.Request{
		Transcript:   transcriptLines(s.log, s.start),
		KeyMoments:   settingBool(vals, KeyKeyMoments),
		Instructions: s.persona.Instructions,
	})
	if err == nil && sum == nil {
		err = summary.ErrInvalidSummary
	}
	if err != nil {
		logger.Warn("summary failed", "error", err)
		return TeardownOutcome{Kind: OutcomeError, Err: err}
	}
	return TeardownOutcome{Kind: OutcomeSuccess, Summary: sum}
}

func (o *Orchestrator) persist(ctx context.Context, vals map[string]string, rec Record, logger *slog.Logger) PersistResult {
	dest := strings.TrimSpace(vals[KeyPersistDestination])
	if !settingBool(vals, KeyPersistEnabled) || dest == "" || o.deps.Persister == nil {
		return PersistResult{}
	}
	pctx, cancel := context.WithTimeout(ctx, o.cfg.PersistTimeout)
	defer cancel()
	locator, err := o.deps.Persister.Save(pctx, dest, rec)
	if err != nil {
		logger.Warn("transcript persistence failed", "destination", dest, "error", err)
		return PersistResult{Attempted: true, Error: err.Error(), err: err}
	}
	logger.Info("transcript persisted", "locator", locator)
	return PersistResult{Attempted: true, Locator: locator}
}

// notify sends exactly one terminal presentation event.
func (o *Orchestrator) notify(s *session, outcome TeardownOutcome, persist PersistResult) {
	switch outcome.Kind {
	case OutcomeSuccess:
		o.deps.Presenter.Present(&SummaryEvent{SessionID: s.id, Summary: *outcome.Summary, Persist: persist})
	case OutcomeError:
		o.deps.Presenter.Present(&SummaryErrorEvent{
			SessionID: s.id,
			Message:   summaryErrorMessage(persist),
			Persist:   persist,
		})
	default:
		o.deps.Presenter.Present(&HiddenEvent{SessionID: s.id, Outcome: outcome.Kind, Persist: persist})
	}
}

func summaryErrorMessage(p PersistResult) string {
	switch {
	case p.Saved():
		return "Couldn't generate a summary. The transcript was still saved."
	case p.Attempted:
		return "Couldn't generate a summary, and the transcript could not be saved."
	default:
		return "Couldn't generate a summary."
	}
}

func (o *Orchestrator) metadata(s *session, end time.Time) Metadata {
	c := s.counters
	c.DroppedAfterStop += int(s.lateDrops.Load())
	c.FramesSent = map[string]int64{}
	c.FramesDropped = map[string]int64{}
	c.Reconnects = map[string]int64{}
	for _, a := range []*stream.Adapter{s.stt, s.emotion} {
		st := a.Stats()
		origin := string(a.Origin())
		c.FramesSent[origin] = st.FramesSent
		c.FramesDropped[origin] = st.FramesDropped
		c.Reconnects[origin] = st.Reconnects
	}
	var emotions map[string]int
	if len(s.emotions) > 0 {
		emotions = make(map[string]int, len(s.emotions))
		for k, v := range s.emotions {
			emotions[k] = v
		}
	}
	return Metadata{
		Start:                s.start,
		End:                  end,
		DurationSeconds:      end.Sub(s.start).Seconds(),
		SpeakersCount:        s.tracker.Speakers(),
		TranscriptsCount:     len(s.log),
		SuggestionsCount:     c.SuggestionsShown,
		SpeakerFilterEnabled: s.speakerFilter,
		PersonaID:            s.persona.ID,
		Emotions:             emotions,
		Counters:             c,
	}
}

func transcriptLines(log []Utterance, start time.Time) []summary.Line {
	lines := make([]summary.Line, 0, len(log))
	for _, u := range log {
		lines = append(lines, summary.Line{
			Timestamp: Elapsed(u.Timestamp.Sub(start)),
			Speaker:   u.Speaker,
			Text:      u.Text,
		})
	}
	return lines
}

// Elapsed formats d as HH:MM:SS. Negative durations clamp to zero.
func Elapsed(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	sec := int(d / time.Second)
	return fmt.Sprintf("%02d:%02d:%02d", sec/3600, sec/60%60, sec%60)
}
