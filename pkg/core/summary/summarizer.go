package summary

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/vango-go/vai-wingman/pkg/core/providers/gemini"
)

// Line is one transcript line handed to the summarizer.
type Line struct {
	Timestamp string
	Speaker   string
	Text      string
}

// Request describes the transcript to summarize.
type Request struct {
	Transcript []Line
	KeyMoments bool
	// Instructions are the persona instructions, used as framing.
	Instructions string
}

// Generator is the subset of the Gemini provider the summarizer uses.
type Generator interface {
	Generate(ctx context.Context, req gemini.Request) (string, error)
}

// Summarizer asks a completion model for a JSON summary.
type Summarizer struct {
	gen       Generator
	model     string
	maxTokens int32
}

// NewSummarizer creates a summarizer. An empty model uses the provider default.
func NewSummarizer(gen Generator, model string) *Summarizer {
	return &Summarizer{gen: gen, model: model, maxTokens: 2048}
}

const systemPrompt = `You summarize recorded meetings for the person who attended them.
Respond with a single JSON object and nothing else.`

// Summarize returns a validated summary. Provider and validation failures are
// returned as errors; the caller turns them into an error outcome.
func (s *Summarizer) Summarize(ctx context.Context, req Request) (*Summary, error) {
	if len(req.Transcript) == 0 {
		return nil, errors.New("summarize: empty transcript")
	}
	temp := float32(0.2)
	raw, err := s.gen.Generate(ctx, gemini.Request{
		Model:       s.model,
		System:      systemPrompt,
		Prompt:      BuildPrompt(req),
		MaxTokens:   s.maxTokens,
		Temperature: &temp,
		JSON:        true,
	})
	if err != nil {
		return nil, fmt.Errorf("summarize: %w", err)
	}
	return Parse(raw, req.KeyMoments)
}

// BuildPrompt renders the schema and the transcript.
func BuildPrompt(req Request) string {
	var b strings.Builder
	if req.Instructions != "" {
		b.WriteString("Context about the attendee's role:\n")
		b.WriteString(strings.TrimSpace(req.Instructions))
		b.WriteString("\n\n")
	}
	b.WriteString("Return JSON with these fields:\n")
	b.WriteString(`- "overview": two or three sentences on what the meeting covered` + "\n")
	b.WriteString(`- "key_points": array of the important points raised` + "\n")
	b.WriteString(`- "action_items": array of follow-ups, empty if none` + "\n")
	if req.KeyMoments {
		b.WriteString(`- "key_moments": array of {"timestamp","speaker","description"} for notable turns` + "\n")
	}
	b.WriteString("\nTRANSCRIPT:\n")
	for _, l := range req.Transcript {
		fmt.Fprintf(&b, "[%s] %s: %s\n", l.Timestamp, l.Speaker, l.Text)
	}
	return b.String()
}
