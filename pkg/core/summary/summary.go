// Package summary produces and validates the post-call meeting summary.
package summary

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/vango-go/vai-wingman/pkg/core"
)

// ErrInvalidSummary marks a provider response that is not a usable summary.
var ErrInvalidSummary = errors.New("invalid summary")

// Summary is the structured post-call summary.
type Summary struct {
	Overview    string      `json:"overview" yaml:"overview"`
	KeyPoints   []string    `json:"key_points" yaml:"key_points"`
	ActionItems []string    `json:"action_items" yaml:"action_items"`
	KeyMoments  []KeyMoment `json:"key_moments,omitempty" yaml:"key_moments,omitempty"`
}

// KeyMoment is a notable point in the call.
type KeyMoment struct {
	Timestamp   string `json:"timestamp" yaml:"timestamp"`
	Speaker     string `json:"speaker,omitempty" yaml:"speaker,omitempty"`
	Description string `json:"description" yaml:"description"`
}

// Validate checks the summary schema. Key moments are required only when
// requested and dropped otherwise.
func (s *Summary) Validate(keyMoments bool) error {
	if strings.TrimSpace(s.Overview) == "" {
		return fmt.Errorf("%w: overview is empty", ErrInvalidSummary)
	}
	if s.KeyPoints == nil {
		return fmt.Errorf("%w: key_points is missing", ErrInvalidSummary)
	}
	if s.ActionItems == nil {
		return fmt.Errorf("%w: action_items is missing", ErrInvalidSummary)
	}
	for i, p := range s.KeyPoints {
		if strings.TrimSpace(p) == "" {
			return fmt.Errorf("%w: key_points[%d] is empty", ErrInvalidSummary, i)
		}
	}
	if keyMoments {
		if s.KeyMoments == nil {
			return fmt.Errorf("%w: key_moments is missing", ErrInvalidSummary)
		}
		for i, m := range s.KeyMoments {
			if strings.TrimSpace(m.Description) == "" {
				return fmt.Errorf("%w: key_moments[%d] has no description", ErrInvalidSummary, i)
			}
		}
	}
	return nil
}

// Parse decodes a JSON summary, tolerating a surrounding markdown fence, and
// validates it. Failures are core.Error values of type summary_invalid.
func Parse(raw string, keyMoments bool) (*Summary, error) {
	body := stripFence(raw)
	var s Summary
	if err := json.Unmarshal([]byte(body), &s); err != nil {
		return nil, core.NewSummaryInvalidError(fmt.Errorf("%w: %v", ErrInvalidSummary, err))
	}
	if err := s.Validate(keyMoments); err != nil {
		return nil, core.NewSummaryInvalidError(err)
	}
	if !keyMoments {
		s.KeyMoments = nil
	}
	return &s, nil
}

func stripFence(raw string) string {
	s := strings.TrimSpace(raw)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = s[i+1:]
	}
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}
