package suggest

import (
	"fmt"
	"strings"
)

// DefaultInstructions are used when the active persona has none.
const DefaultInstructions = `You are a live meeting assistant helping the operator during a customer call.
Offer short, practical guidance the operator can use immediately.`

const responseRules = `RULES:
- Be extremely concise: the operator glances at this mid-call.
- Use 2-4 bullet points at most, most important first.
- Use plain language the operator can repeat verbatim.
- Never invent specific prices, dates or commitments.
- If nothing useful can be added right now, reply with exactly ` + SilentSentinel + ` and nothing else.`

var typeGuidance = map[QuestionType]string{
	QuestionPricing:     "The customer is asking about cost. Focus on value and offer a scoped quote rather than numbers.",
	QuestionTechnical:   "The customer is asking a technical question. Keep the answer simple; offer a follow-up with a specialist if it gets deep.",
	QuestionSecurity:    "The customer is asking about security or compliance. Name relevant practices and ask which requirements they must meet.",
	QuestionComparison:  "The customer is comparing options. Do not disparage alternatives; focus on concrete strengths.",
	QuestionTimeline:    "The customer is asking about timing. Give realistic ranges and ask what drives their deadline.",
	QuestionIntegration: "The customer is asking how this fits their stack. Ask about their current systems.",
	QuestionSupport:     "The customer is asking about support. Describe support options and ask what level they need.",
	QuestionGeneral:     "Connect the topic to the customer's goals and suggest a discovery question.",
}

// BuildSystem assembles the system instruction from the persona and the
// topic of the triggering utterance.
func BuildSystem(persona Persona, qtype QuestionType) string {
	instructions := strings.TrimSpace(persona.Instructions)
	if instructions == "" {
		instructions = DefaultInstructions
	}
	var b strings.Builder
	b.WriteString(instructions)
	b.WriteString("\n\n")
	b.WriteString(responseRules)
	if g, ok := typeGuidance[qtype]; ok {
		b.WriteString("\n\nGUIDANCE:\n")
		b.WriteString(g)
	}
	return b.String()
}

// BuildPrompt renders the recent conversation, retrieved passages and the
// current utterance. At most contextTurns prior turns are included.
func BuildPrompt(req Request, contextTurns int, passages []Passage) string {
	var b strings.Builder

	turns := req.Context
	if contextTurns >= 0 && len(turns) > contextTurns {
		turns = turns[len(turns)-contextTurns:]
	}
	if len(turns) > 0 {
		b.WriteString("RECENT CONVERSATION:\n")
		for _, t := range turns {
			fmt.Fprintf(&b, "[%s]: %s\n", t.Label(), t.Text)
		}
		b.WriteString("\n")
	}

	if len(passages) > 0 {
		b.WriteString("RELEVANT INFORMATION FROM KNOWLEDGE BASE:\n")
		for i, ps := range passages {
			label := ps.SourceLabel
			if label == "" {
				label = fmt.Sprintf("source %d", i+1)
			}
			fmt.Fprintf(&b, "--- %s ---\n%s\n", label, strings.TrimSpace(ps.Text))
		}
		b.WriteString("Use this information for accurate, specific answers.\n\n")
	}

	fmt.Fprintf(&b, "CURRENT UTTERANCE [%s]: %q\n\n", req.Utterance.Label(), req.Utterance.Text)
	b.WriteString("Provide a suggestion for the operator, or " + SilentSentinel + ":")
	return b.String()
}
