package main

import (
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/charmbracelet/lipgloss"

	"github.com/vango-go/vai-wingman/pkg/core/live"
)

var (
	headerStyle     = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("62"))
	speakerStyle    = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("135"))
	selfStyle       = lipgloss.NewStyle().Foreground(lipgloss.Color("243"))
	timeStyle       = lipgloss.NewStyle().Foreground(lipgloss.Color("240"))
	previewStyle    = lipgloss.NewStyle().Italic(true).Foreground(lipgloss.Color("243"))
	errorStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	suggestionStyle = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(lipgloss.Color("42")).Padding(0, 1)
)

// console prints presentation events to a terminal.
type console struct {
	mu      sync.Mutex
	w       io.Writer
	interim bool
}

func newConsole(w io.Writer, interim bool) *console {
	return &console{w: w, interim: interim}
}

func (c *console) Present(e live.Event) {
	c.mu.Lock()
	defer c.mu.Unlock()
	switch ev := e.(type) {
	case *live.TranscriptUpdateEvent:
		c.transcript(ev)
	case *live.SuggestionEvent:
		c.suggestion(ev)
	case *live.LoadingEvent:
		fmt.Fprintln(c.w, headerStyle.Render("Summarizing the call..."))
	case *live.SummaryEvent:
		c.summary(ev)
	case *live.SummaryErrorEvent:
		fmt.Fprintln(c.w, errorStyle.Render(ev.Message))
		c.persisted(ev.Persist)
	case *live.HiddenEvent:
		fmt.Fprintln(c.w, headerStyle.Render("Session ended")+timeStyle.Render(" ("+string(ev.Outcome)+")"))
		c.persisted(ev.Persist)
	}
}

func (c *console) transcript(ev *live.TranscriptUpdateEvent) {
	if ev.Utterance == nil {
		if c.interim && ev.Preview != "" {
			fmt.Fprintln(c.w, previewStyle.Render("  ... "+ev.Preview))
		}
		return
	}
	u := ev.Utterance
	label := speakerStyle.Render(u.Speaker)
	switch {
	case u.IsSelf:
		label = selfStyle.Render(u.Speaker + " (you)")
	case u.Role != "" && u.Role != live.RoleUnknown:
		label = speakerStyle.Render(u.Speaker + " (" + string(u.Role) + ")")
	}
	line := timeStyle.Render(u.Timestamp.Format("15:04:05")) + " " + label + ": " + u.Text
	if ev.Emotion != nil && ev.Emotion.State != "" {
		line += timeStyle.Render(" [" + string(ev.Emotion.State) + "]")
	}
	fmt.Fprintln(c.w, line)
}

func (c *console) suggestion(ev *live.SuggestionEvent) {
	var b strings.Builder
	title := "Suggestion"
	if ev.Result.QuestionType != "" {
		title += " · " + string(ev.Result.QuestionType)
	}
	b.WriteString(headerStyle.Render(title))
	b.WriteString("\n")
	b.WriteString(ev.Result.Text)
	if len(ev.Result.Sources) > 0 {
		b.WriteString("\n")
		b.WriteString(timeStyle.Render("sources: " + strings.Join(ev.Result.Sources, ", ")))
	}
	fmt.Fprintln(c.w, suggestionStyle.Render(b.String()))
}

func (c *console) summary(ev *live.SummaryEvent) {
	s := ev.Summary
	fmt.Fprintln(c.w, headerStyle.Render("Summary"))
	fmt.Fprintln(c.w, s.Overview)
	writeBullets(c.w, "Key points", s.KeyPoints)
	writeBullets(c.w, "Action items", s.ActionItems)
	if len(s.KeyMoments) > 0 {
		fmt.Fprintln(c.w, headerStyle.Render("Key moments"))
		for _, m := range s.KeyMoments {
			fmt.Fprintf(c.w, "  %s %s\n", timeStyle.Render(m.Timestamp), m.Description)
		}
	}
	c.persisted(ev.Persist)
}

func (c *console) persisted(p live.PersistResult) {
	switch {
	case p.Attempted && p.Error != "":
		fmt.Fprintln(c.w, errorStyle.Render("Transcript was not saved: "+p.Error))
	case p.Saved():
		fmt.Fprintln(c.w, timeStyle.Render("Transcript saved to "+p.Locator))
	}
}

func writeBullets(w io.Writer, heading string, items []string) {
	if len(items) == 0 {
		return
	}
	fmt.Fprintln(w, headerStyle.Render(heading))
	for _, it := range items {
		fmt.Fprintln(w, "  • "+it)
	}
}

// sessionEnd closes Done on the first terminal presentation event.
type sessionEnd struct {
	once sync.Once
	done chan struct{}
}

func newSessionEnd() *sessionEnd {
	return &sessionEnd{done: make(chan struct{})}
}

func (s *sessionEnd) Present(e live.Event) {
	switch e.(type) {
	case *live.SummaryEvent, *live.SummaryErrorEvent, *live.HiddenEvent:
		s.once.Do(func() { close(s.done) })
	}
}

func (s *sessionEnd) Done() <-chan struct{} { return s.done }
