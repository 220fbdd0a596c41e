package persist

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/vango-go/vai-wingman/pkg/core/live"
)

// Format is a transcript rendering.
type Format string

const (
	FormatMarkdown Format = "markdown"
	FormatText     Format = "text"
	FormatJSON     Format = "json"
	FormatYAML     Format = "yaml"
)

// ParseFormat accepts the format names and their file extensions.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "markdown", "md":
		return FormatMarkdown, nil
	case "text", "txt":
		return FormatText, nil
	case "json":
		return FormatJSON, nil
	case "yaml", "yml":
		return FormatYAML, nil
	default:
		return "", fmt.Errorf("unknown transcript format %q", s)
	}
}

// Ext returns the file extension, with the dot.
func (f Format) Ext() string {
	switch f {
	case FormatText:
		return ".txt"
	case FormatJSON:
		return ".json"
	case FormatYAML:
		return ".yaml"
	default:
		return ".md"
	}
}

// Render renders rec in format f.
func Render(rec live.Record, f Format) ([]byte, error) {
	switch f {
	case FormatMarkdown:
		return renderMarkdown(rec), nil
	case FormatText:
		return renderText(rec), nil
	case FormatJSON:
		b, err := json.MarshalIndent(rec, "", "  ")
		if err != nil {
			return nil, fmt.Errorf("render json: %w", err)
		}
		return append(b, '\n'), nil
	case FormatYAML:
		var buf bytes.Buffer
		enc := yaml.NewEncoder(&buf)
		enc.SetIndent(2)
		if err := enc.Encode(rec); err != nil {
			return nil, fmt.Errorf("render yaml: %w", err)
		}
		if err := enc.Close(); err != nil {
			return nil, fmt.Errorf("render yaml: %w", err)
		}
		return buf.Bytes(), nil
	default:
		return nil, fmt.Errorf("unknown transcript format %q", f)
	}
}

func speakerLabel(u live.Utterance) string {
	switch {
	case u.Role == live.RoleCustomer:
		return u.Speaker + " (Customer)"
	case u.IsSelf:
		return u.Speaker + " (You)"
	default:
		return u.Speaker
	}
}

func enabled(b bool) string {
	if b {
		return "Enabled"
	}
	return "Disabled"
}

const dateLayout = "January 2, 2006 03:04 PM"

func renderMarkdown(rec live.Record) []byte {
	m := rec.Metadata
	var b strings.Builder
	b.WriteString("# Meeting Transcript\n\n")
	fmt.Fprintf(&b, "**Date:** %s\n", m.Start.Format(dateLayout))
	fmt.Fprintf(&b, "**Duration:** %d minutes\n", int(m.DurationSeconds)/60)
	fmt.Fprintf(&b, "**Speakers:** %d\n\n---\n\n", m.SpeakersCount)

	if s := rec.Summary; s != nil {
		b.WriteString("## Summary\n\n")
		b.WriteString(s.Overview + "\n\n")
		writeList(&b, "### Key Points", s.KeyPoints)
		writeList(&b, "### Action Items", s.ActionItems)
		if len(s.KeyMoments) > 0 {
			b.WriteString("### Key Moments\n\n")
			for _, km := range s.KeyMoments {
				fmt.Fprintf(&b, "- **%s** %s\n", km.Timestamp, km.Description)
			}
			b.WriteString("\n")
		}
		b.WriteString("---\n\n")
	}

	b.WriteString("## Conversation\n\n")
	current := ""
	for _, u := range rec.Transcript {
		label := speakerLabel(u)
		if label != current {
			current = label
			fmt.Fprintf(&b, "**[%s] %s**\n\n", live.Elapsed(u.Timestamp.Sub(m.Start)), label)
		}
		b.WriteString(u.Text + "\n\n")
	}

	b.WriteString("---\n\n## Session Info\n\n")
	fmt.Fprintf(&b, "- Transcripts: %d\n", m.TranscriptsCount)
	fmt.Fprintf(&b, "- AI Suggestions: %d\n", m.SuggestionsCount)
	fmt.Fprintf(&b, "- Speaker Filter: %s\n", enabled(m.SpeakerFilterEnabled))
	return []byte(b.String())
}

func writeList(b *strings.Builder, heading string, items []string) {
	if len(items) == 0 {
		return
	}
	b.WriteString(heading + "\n\n")
	for _, it := range items {
		b.WriteString("- " + it + "\n")
	}
	b.WriteString("\n")
}

func renderText(rec live.Record) []byte {
	m := rec.Metadata
	rule := strings.Repeat("-", 50)
	var b strings.Builder
	b.WriteString("MEETING TRANSCRIPT\n" + strings.Repeat("=", 50) + "\n\n")
	fmt.Fprintf(&b, "Date: %s\n", m.Start.Format(dateLayout))
	fmt.Fprintf(&b, "Duration: %d minutes\n", int(m.DurationSeconds)/60)
	fmt.Fprintf(&b, "Speakers: %d\n\n%s\n\n", m.SpeakersCount, rule)

	if s := rec.Summary; s != nil {
		b.WriteString("SUMMARY\n" + s.Overview + "\n\n")
		for _, p := range s.KeyPoints {
			b.WriteString("* " + p + "\n")
		}
		for _, a := range s.ActionItems {
			b.WriteString("[ ] " + a + "\n")
		}
		b.WriteString("\n" + rule + "\n\n")
	}

	for _, u := range rec.Transcript {
		fmt.Fprintf(&b, "[%s] %s:\n%s\n\n", live.Elapsed(u.Timestamp.Sub(m.Start)), speakerLabel(u), u.Text)
	}
	b.WriteString(rule + "\n\nSESSION INFO\n")
	fmt.Fprintf(&b, "Transcripts: %d\n", m.TranscriptsCount)
	fmt.Fprintf(&b, "AI Suggestions: %d\n", m.SuggestionsCount)
	return []byte(b.String())
}
