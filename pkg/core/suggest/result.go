// Package suggest turns a finalized utterance into either an advisory
// suggestion or an explicit decision to stay silent.
package suggest

import "strings"

// SilentSentinel is the literal a completion returns to decline to suggest.
const SilentSentinel = "[SILENT]"

// Kind tags a Result.
type Kind int

const (
	KindSilent Kind = iota
	KindSuggest
)

// String returns the kind name.
func (k Kind) String() string {
	switch k {
	case KindSilent:
		return "silent"
	case KindSuggest:
		return "suggest"
	default:
		return "unknown"
	}
}

// Result is Suggest(text) or Silent. Raw completion text never travels past
// Parse.
type Result struct {
	Kind         Kind         `json:"kind"`
	Text         string       `json:"text,omitempty"`
	KeyPoints    []string     `json:"key_points,omitempty"`
	QuestionType QuestionType `json:"question_type,omitempty"`
	// Sources are labels of the retrieved passages given to the completion.
	Sources []string `json:"sources,omitempty"`
}

// MarshalText encodes the kind by name.
func (k Kind) MarshalText() ([]byte, error) { return []byte(k.String()), nil }

// Silent returns the stay-silent result.
func Silent() Result { return Result{Kind: KindSilent} }

// Suggest returns a result that surfaces text.
func Suggest(text string) Result {
	return Result{Kind: KindSuggest, Text: text, KeyPoints: keyPoints(text)}
}

// IsSilent reports whether r surfaces nothing.
func (r Result) IsSilent() bool { return r.Kind != KindSuggest }

// Parse classifies raw completion output. The sentinel, on its own or wrapped
// in quotes or markdown emphasis, means silent. Empty output is silent too.
func Parse(raw string) Result {
	text := strings.TrimSpace(raw)
	bare := strings.Trim(text, "\"'`*_ \n\t.")
	if bare == "" || strings.EqualFold(bare, strings.Trim(SilentSentinel, "[]")) ||
		strings.EqualFold(bare, SilentSentinel) {
		return Silent()
	}
	return Suggest(text)
}

// keyPoints pulls bullet lines out of a suggestion, at most five.
func keyPoints(text string) []string {
	var points []string
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if !strings.HasPrefix(line, "-") && !strings.HasPrefix(line, "*") &&
			!strings.HasPrefix(line, "+") && !strings.HasPrefix(line, "•") {
			continue
		}
		point := strings.TrimSpace(strings.TrimLeft(line, "-*+• "))
		if len(point) > 10 {
			points = append(points, point)
		}
		if len(points) == 5 {
			break
		}
	}
	return points
}
