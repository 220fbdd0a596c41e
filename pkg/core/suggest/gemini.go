package suggest

import (
	"context"
	"strings"

	"github.com/vango-go/vai-wingman/pkg/core/providers/gemini"
)

// GeminiCompleter adapts a Gemini provider to Completer.
type GeminiCompleter struct {
	Provider    *gemini.Provider
	Model       string
	MaxTokens   int32
	Temperature float32
}

// Name returns the cooldown key for the configured model: "gemini-flash-lite"
// for lite models, "gemini" otherwise.
func (g *GeminiCompleter) Name() string {
	model := g.Model
	if model == "" {
		model = g.Provider.Model()
	}
	if strings.Contains(model, "flash-lite") {
		return "gemini-flash-lite"
	}
	return "gemini"
}

// Complete runs one generation call.
func (g *GeminiCompleter) Complete(ctx context.Context, c Completion) (string, error) {
	temp := g.Temperature
	return g.Provider.Generate(ctx, gemini.Request{
		Model:       g.Model,
		System:      c.System,
		Prompt:      c.Prompt,
		MaxTokens:   g.MaxTokens,
		Temperature: &temp,
	})
}
