package live

import (
	"time"

	"github.com/vango-go/vai-wingman/pkg/core/summary"
)

// OutcomeKind tags how summary generation resolved at session end.
type OutcomeKind string

const (
	OutcomeDisabled OutcomeKind = "disabled"
	OutcomeSkipped  OutcomeKind = "skipped"
	OutcomeSuccess  OutcomeKind = "success"
	OutcomeError    OutcomeKind = "error"
)

// TeardownOutcome is produced exactly once per session end.
type TeardownOutcome struct {
	Kind OutcomeKind
	// Summary is set only for OutcomeSuccess.
	Summary *summary.Summary
	// Reason explains disabled and skipped outcomes.
	Reason string
	// Err is set only for OutcomeError.
	Err error
}

// PersistResult is tracked independently of the TeardownOutcome.
type PersistResult struct {
	Attempted bool   `json:"attempted"`
	Locator   string `json:"locator,omitempty"`
	Error     string `json:"error,omitempty"`
	err       error
}

// Err returns the persistence failure, if any.
func (p PersistResult) Err() error { return p.err }

// Saved reports whether persistence was attempted and succeeded.
func (p PersistResult) Saved() bool { return p.Attempted && p.err == nil }

// Counters are per-session diagnostics.
type Counters struct {
	FramesSent         map[string]int64 `json:"frames_sent" yaml:"frames_sent"`
	FramesDropped      map[string]int64 `json:"frames_dropped" yaml:"frames_dropped"`
	Reconnects         map[string]int64 `json:"reconnects" yaml:"reconnects"`
	SuggestionsShown   int              `json:"suggestions_shown" yaml:"suggestions_shown"`
	DroppedCooldown    int              `json:"dropped_cooldown" yaml:"dropped_cooldown"`
	DroppedSelf        int              `json:"dropped_speaker_filter" yaml:"dropped_speaker_filter"`
	DroppedSilent      int              `json:"dropped_silent" yaml:"dropped_silent"`
	DroppedAfterStop   int              `json:"dropped_after_stop" yaml:"dropped_after_stop"`
	SuggestionFailures int              `json:"suggestion_failures" yaml:"suggestion_failures"`
}

// Metadata describes a finished session for persistence.
type Metadata struct {
	Start                time.Time      `json:"start" yaml:"start"`
	End                  time.Time      `json:"end" yaml:"end"`
	DurationSeconds      float64        `json:"duration_seconds" yaml:"duration_seconds"`
	SpeakersCount        int            `json:"speakers_count" yaml:"speakers_count"`
	TranscriptsCount     int            `json:"transcripts_count" yaml:"transcripts_count"`
	SuggestionsCount     int            `json:"suggestions_count" yaml:"suggestions_count"`
	SpeakerFilterEnabled bool           `json:"speaker_filter_enabled" yaml:"speaker_filter_enabled"`
	PersonaID            string         `json:"persona_id,omitempty" yaml:"persona_id,omitempty"`
	Emotions             map[string]int `json:"emotions,omitempty" yaml:"emotions,omitempty"`
	Counters             Counters       `json:"counters" yaml:"counters"`
}

// Record is everything handed to the persistence collaborator.
type Record struct {
	SessionID  string           `json:"session_id" yaml:"session_id"`
	Transcript []Utterance      `json:"transcript" yaml:"transcript"`
	Metadata   Metadata         `json:"metadata" yaml:"metadata"`
	Summary    *summary.Summary `json:"summary,omitempty" yaml:"summary,omitempty"`
}

// StopResult is returned by Stop once the shutdown protocol has resolved.
type StopResult struct {
	SessionID string
	SurfaceID string
	Reason    StopReason
	Outcome   TeardownOutcome
	Persist   PersistResult
	// Transcript is the session's utterance log. The orchestrator keeps no copy.
	Transcript []Utterance
	Metadata   Metadata
}
