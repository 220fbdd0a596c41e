package live

import (
	"strings"
	"time"
	"unicode"
	"unicode/utf8"

	"github.com/vango-go/vai-wingman/pkg/core/stream"
)

// Segment is one closed turn produced by the Segmenter.
type Segment struct {
	SpeakerID int
	Text      string
	// At is when the turn's first final fragment arrived.
	At time.Time
}

// Segmenter folds transcript fragments into turns. Final fragments accumulate
// in the open turn; only an end-of-turn fragment closes it. Interim fragments
// only update the preview.
//
// A speaker change while a turn is open closes the open turn first, so two
// speakers never share one turn.
//
// A Segmenter is owned by the session loop and is not safe for concurrent use.
type Segmenter struct {
	open    bool
	speaker int
	buf     strings.Builder
	at      time.Time
	preview string
}

// NewSegmenter returns an empty segmenter.
func NewSegmenter() *Segmenter {
	return &Segmenter{}
}

// Push consumes one event and returns the turns it closed, in order.
func (s *Segmenter) Push(ev stream.TranscriptEvent, at time.Time) []Segment {
	if !ev.Final {
		s.preview = joinFragment(s.buf.String(), ev.Text)
		return nil
	}

	var out []Segment
	if s.open && ev.SpeakerID != s.speaker && strings.TrimSpace(ev.Text) != "" {
		if seg, ok := s.close(); ok {
			out = append(out, seg)
		}
	}
	if ev.Text != "" {
		if !s.open {
			s.open, s.speaker, s.at = true, ev.SpeakerID, at
		}
		joined := joinFragment(s.buf.String(), ev.Text)
		s.buf.Reset()
		s.buf.WriteString(joined)
	}
	s.preview = s.buf.String()

	if ev.EndOfTurn {
		if seg, ok := s.close(); ok {
			out = append(out, seg)
		}
	}
	return out
}

// Flush closes any open turn regardless of end-of-turn.
func (s *Segmenter) Flush() (Segment, bool) {
	return s.close()
}

// Preview returns the open turn's text plus the latest interim fragment.
func (s *Segmenter) Preview() string { return s.preview }

func (s *Segmenter) close() (Segment, bool) {
	text := strings.TrimSpace(s.buf.String())
	seg := Segment{SpeakerID: s.speaker, Text: text, At: s.at}
	s.open = false
	s.buf.Reset()
	s.preview = ""
	return seg, text != ""
}

// joinFragment appends frag to buf. A space is inserted only between two
// word characters that would otherwise run together; fragments that bring
// their own leading space or start with punctuation are appended verbatim.
func joinFragment(buf, frag string) string {
	if buf == "" {
		return frag
	}
	if frag == "" {
		return buf
	}
	last, _ := utf8.DecodeLastRuneInString(buf)
	first, _ := utf8.DecodeRuneInString(frag)
	if unicode.IsSpace(last) || unicode.IsSpace(first) || unicode.IsPunct(first) {
		return buf + frag
	}
	return buf + " " + frag
}
