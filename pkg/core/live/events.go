package live

import (
	"github.com/vango-go/vai-wingman/pkg/core/stream"
	"github.com/vango-go/vai-wingman/pkg/core/suggest"
	"github.com/vango-go/vai-wingman/pkg/core/summary"
)

// Event is the interface for all presentation events.
type Event interface {
	// EventType returns the event type string for serialization.
	EventType() string
}

// LoadingEvent is emitted while the post-call summary is being generated.
type LoadingEvent struct {
	SessionID string `json:"session_id"`
}

func (e *LoadingEvent) EventType() string { return "loading" }

// TranscriptUpdateEvent carries either a finalized utterance or the interim
// preview of the open turn.
type TranscriptUpdateEvent struct {
	SessionID string                `json:"session_id"`
	Utterance *Utterance            `json:"utterance,omitempty"`
	Interim   bool                  `json:"interim,omitempty"`
	Preview   string                `json:"preview,omitempty"`
	Emotion   *stream.EmotionSample `json:"emotion,omitempty"`
}

func (e *TranscriptUpdateEvent) EventType() string { return "transcript-update" }

// SuggestionEvent surfaces one suggestion. Silent results never become events.
type SuggestionEvent struct {
	SessionID string         `json:"session_id"`
	Trigger   Utterance      `json:"trigger"`
	Result    suggest.Result `json:"result"`
	Provider  string         `json:"provider"`
}

func (e *SuggestionEvent) EventType() string { return "suggestion" }

// SummaryEvent is the terminal notification for a successful summary.
type SummaryEvent struct {
	SessionID string          `json:"session_id"`
	Summary   summary.Summary `json:"summary"`
	Persist   PersistResult   `json:"persist"`
}

func (e *SummaryEvent) EventType() string { return "summary" }

// SummaryErrorEvent is the terminal notification when summarization failed.
type SummaryErrorEvent struct {
	SessionID string        `json:"session_id"`
	Message   string        `json:"message"`
	Persist   PersistResult `json:"persist"`
}

func (e *SummaryErrorEvent) EventType() string { return "summary-error" }

// HiddenEvent is the terminal notification when there is no summary to show.
type HiddenEvent struct {
	SessionID string        `json:"session_id"`
	Outcome   OutcomeKind   `json:"outcome"`
	Persist   PersistResult `json:"persist"`
}

func (e *HiddenEvent) EventType() string { return "hidden" }
