// Package stream holds the plumbing shared by the provider stream adapters:
// the origin-tagged event bus both adapters publish to, and the supervisor that
// owns a provider connection, its ordered send queue and its reconnect policy.
package stream

import "time"

// Origin identifies which provider stream produced an event.
type Origin string

const (
	OriginSTT     Origin = "stt"
	OriginEmotion Origin = "emotion"
)

// Event is the single envelope both adapters publish. Exactly one payload is set.
type Event struct {
	Origin     Origin
	At         time.Time
	Transcript *TranscriptEvent
	Emotion    *EmotionSample
	Status     *StatusEvent
}

// Kind returns a short label for logging.
func (e Event) Kind() string {
	switch {
	case e.Transcript != nil:
		return "transcript"
	case e.Emotion != nil:
		return "emotion"
	case e.Status != nil:
		return "status"
	default:
		return "empty"
	}
}

// TranscriptEvent is an interim or final partial result from speech-to-text.
type TranscriptEvent struct {
	SpeakerID int
	Text      string
	// Final means the provider will not revise this fragment.
	Final bool
	// EndOfTurn means the speaker paused long enough to close the turn.
	EndOfTurn  bool
	Confidence float64
	// Start and End are provider offsets in seconds from stream start.
	Start float64
	End   float64
}

// EmotionState is a coarse paralinguistic classification.
type EmotionState string

const (
	EmotionNeutral   EmotionState = "neutral"
	EmotionPositive  EmotionState = "positive"
	EmotionNegative  EmotionState = "negative"
	EmotionUncertain EmotionState = "uncertain"
	EmotionEngaged   EmotionState = "engaged"
)

// EmotionSample is a time-windowed classification. It is not ordered against transcripts.
type EmotionSample struct {
	State EmotionState `json:"state"`
	// Score is the summed weight of the raw labels that mapped to State.
	Score float64 `json:"score"`
	// Top is the strongest raw provider label in the window.
	Top   string  `json:"top,omitempty"`
	Begin float64 `json:"begin"`
	End   float64 `json:"end"`
}

// Status reports adapter connection changes.
type Status string

const (
	StatusConnected    Status = "connected"
	StatusReconnecting Status = "reconnecting"
	StatusLost         Status = "lost"
	StatusClosed       Status = "closed"
)

// StatusEvent is published when an adapter changes connection state.
type StatusEvent struct {
	Status  Status
	Attempt int
	Err     error
}
