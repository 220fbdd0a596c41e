package suggest

import (
	"regexp"
	"strings"
)

// QuestionType is the topic a triggering utterance is about.
type QuestionType string

const (
	QuestionGeneral     QuestionType = "general"
	QuestionPricing     QuestionType = "pricing"
	QuestionTechnical   QuestionType = "technical"
	QuestionSecurity    QuestionType = "security"
	QuestionComparison  QuestionType = "comparison"
	QuestionTimeline    QuestionType = "timeline"
	QuestionIntegration QuestionType = "integration"
	QuestionSupport     QuestionType = "support"
)

// questionPatterns are checked in order; the first match wins.
var questionPatterns = []struct {
	kind     QuestionType
	patterns []*regexp.Regexp
}{
	{QuestionPricing, compile(
		`(price|pricing|cost|budget|expensive|cheap|afford|pay|fee|subscription|license)`,
		`(how much|what.*cost|pricing model|payment)`,
	)},
	{QuestionTechnical, compile(
		`(api|sdk|integration|architecture|infrastructure|scalab|perform|latency)`,
		`(technical|technology|stack|framework|language|database|cloud)`,
		`(kubernetes|docker|aws|azure|gcp|terraform|ci/cd|devops)`,
	)},
	{QuestionSecurity, compile(
		`(security|secure|encrypt|compliance|gdpr|hipaa|soc|iso|audit)`,
		`(authentication|authorization|permission|access control|sso|mfa)`,
	)},
	{QuestionComparison, compile(
		`(compare|comparison|versus|vs\.|differ|better|worse|alternative)`,
		`(competitor|similar|like.*other|choose between)`,
	)},
	{QuestionTimeline, compile(
		`(timeline|deadline|time|when|how long|duration|schedule)`,
		`(implement|deploy|rollout|migration|onboard)`,
	)},
	{QuestionIntegration, compile(
		`(integrate|integration|connect|compatible|work with|support)`,
		`(plugin|extension|addon|api|webhook|sync)`,
	)},
	{QuestionSupport, compile(
		`(support|help|assistance|service|sla|uptime|guarantee)`,
		`(customer success|onboarding|training|documentation)`,
	)},
}

func compile(exprs ...string) []*regexp.Regexp {
	out := make([]*regexp.Regexp, len(exprs))
	for i, e := range exprs {
		out[i] = regexp.MustCompile(e)
	}
	return out
}

// Classify returns the topic of text, or QuestionGeneral.
func Classify(text string) QuestionType {
	lower := strings.ToLower(text)
	for _, qp := range questionPatterns {
		for _, re := range qp.patterns {
			if re.MatchString(lower) {
				return qp.kind
			}
		}
	}
	return QuestionGeneral
}

var questionWords = []string{
	"what", "how", "why", "when", "where", "who", "which", "can", "could",
	"would", "should", "is", "are", "do", "does", "did", "tell me",
}

// IsQuestion reports whether text ends in a question mark or opens with a
// question word.
func IsQuestion(text string) bool {
	lower := strings.ToLower(strings.TrimSpace(text))
	if strings.HasSuffix(lower, "?") {
		return true
	}
	for _, w := range questionWords {
		if strings.HasPrefix(lower, w) {
			return true
		}
	}
	return false
}
