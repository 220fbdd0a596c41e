package live

import (
	"context"
	"strconv"
	"strings"

	"github.com/vango-go/vai-wingman/pkg/core/audio"
	"github.com/vango-go/vai-wingman/pkg/core/suggest"
	"github.com/vango-go/vai-wingman/pkg/core/summary"
)

// Surface is the capture surface a session is attached to: a window, a tab or
// a device. Gone is closed when it disappears.
type Surface interface {
	ID() string
	Gone() <-chan struct{}
}

// Capture is a running audio capture. *audio.Capture satisfies it.
type Capture interface {
	Frames() <-chan audio.Frame
	Lost() <-chan struct{}
	Err() error
	Stop() error
}

// CaptureOpener starts capture on a surface.
type CaptureOpener interface {
	Open(ctx context.Context, s Surface) (Capture, error)
}

// Settings is the read-only settings and persona store.
type Settings interface {
	// Read returns the values for keys in one batch. Missing keys are absent
	// from the map.
	Read(ctx context.Context, keys ...string) (map[string]string, error)
}

// Settings keys read by the orchestrator.
const (
	KeyActivePersona      = "persona.active"
	KeySpeakerFilter      = "speaker_filter.enabled"
	KeySummaryEnabled     = "summary.enabled"
	KeyPersistEnabled     = "persistence.enabled"
	KeyKeyMoments         = "summary.key_moments"
	KeyPersistDestination = "persistence.destination"
)

// PersonaInstructionsKey returns the settings key for a persona's instructions.
func PersonaInstructionsKey(id string) string { return "persona." + id + ".instructions" }

// PersonaDocumentsKey returns the settings key for a persona's comma-separated
// document scope.
func PersonaDocumentsKey(id string) string { return "persona." + id + ".documents" }

// Persister saves a finished session and returns a locator for it.
type Persister interface {
	Save(ctx context.Context, destination string, rec Record) (string, error)
}

// Presenter receives presentation events. It must not block.
type Presenter interface {
	Present(Event)
}

// Summarizer produces the post-call summary.
type Summarizer interface {
	Summarize(ctx context.Context, req summary.Request) (*summary.Summary, error)
}

// Suggester runs the suggestion pipeline. *suggest.Pipeline satisfies it.
type Suggester interface {
	// Provider names the completion provider; it keys the cooldown.
	Provider() string
	Run(ctx context.Context, req suggest.Request) (suggest.Result, error)
}

// Credentials reports whether a provider credential is configured.
type Credentials interface {
	Credential(name string) string
}

// Credential names checked by the orchestrator.
const (
	CredentialSTT        = "stt"
	CredentialEmotion    = "emotion"
	CredentialCompletion = "completion"
	CredentialSummary    = "summary"
)

// Obligations keeps the process alive while awaited work is outstanding.
// *lifecycle.Lifecycle satisfies it.
type Obligations interface {
	Hold(name string) (release func())
}

// CredentialMap is a static Credentials.
type CredentialMap map[string]string

func (m CredentialMap) Credential(name string) string { return m[name] }

func settingBool(v map[string]string, key string) bool {
	b, err := strconv.ParseBool(strings.TrimSpace(v[key]))
	return err == nil && b
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

var (
	_ Capture    = (*audio.Capture)(nil)
	_ Suggester  = (*suggest.Pipeline)(nil)
	_ Summarizer = (*summary.Summarizer)(nil)
)
