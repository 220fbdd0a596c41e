package live

import (
	"sort"
	"strconv"
	"time"

	"github.com/vango-go/vai-wingman/pkg/core/suggest"
)

// Role is a speaker's inferred part in the conversation.
type Role string

const (
	RoleUnknown    Role = "unknown"
	RoleCustomer   Role = "customer"
	RoleConsultant Role = "consultant"
)

// Utterance is a finalized, speaker-attributed turn. It is never mutated once
// appended to a session's transcript.
type Utterance struct {
	ID        string    `json:"id" yaml:"id"`
	SpeakerID int       `json:"speaker_id" yaml:"speaker_id"`
	Speaker   string    `json:"speaker" yaml:"speaker"`
	Role      Role      `json:"speaker_role" yaml:"speaker_role"`
	IsSelf    bool      `json:"is_self" yaml:"is_self"`
	Text      string    `json:"text" yaml:"text"`
	Timestamp time.Time `json:"timestamp" yaml:"timestamp"`
}

// ISOTime returns the timestamp in RFC 3339 form.
func (u Utterance) ISOTime() string {
	return u.Timestamp.UTC().Format(time.RFC3339)
}

// Turn converts u for the suggestion pipeline.
func (u Utterance) Turn() suggest.Turn {
	return suggest.Turn{Speaker: u.Speaker, Role: string(u.Role), Text: u.Text, IsSelf: u.IsSelf}
}

// SpeakerLabel returns the display name for a diarized speaker id.
func SpeakerLabel(id int) string {
	return "Speaker " + strconv.Itoa(id)
}

type speakerStats struct {
	utterances int
	questions  int
	words      int
}

// SpeakerTracker attributes speakers. The first speaker heard is taken to be
// the operator; there is no correction if that guess is wrong. Roles are
// assigned once two speakers have asked at least three questions between
// them and one has asked strictly more: that one is the customer.
//
// A SpeakerTracker is owned by the session loop and is not safe for
// concurrent use.
type SpeakerTracker struct {
	self     int
	haveSelf bool
	stats    map[int]*speakerStats
	roles    map[int]Role
}

// NewSpeakerTracker returns an empty tracker.
func NewSpeakerTracker() *SpeakerTracker {
	return &SpeakerTracker{
		stats: make(map[int]*speakerStats),
		roles: make(map[int]Role),
	}
}

// Observe records one finalized turn and returns the speaker's role and
// whether the speaker is the operator.
func (t *SpeakerTracker) Observe(speakerID int, text string, words int) (Role, bool) {
	if !t.haveSelf {
		t.self, t.haveSelf = speakerID, true
	}
	st, ok := t.stats[speakerID]
	if !ok {
		st = &speakerStats{}
		t.stats[speakerID] = st
	}
	st.utterances++
	st.words += words
	if suggest.IsQuestion(text) {
		st.questions++
	}
	t.assignRoles()
	return t.Role(speakerID), speakerID == t.self
}

// Role returns the current role for a speaker.
func (t *SpeakerTracker) Role(speakerID int) Role {
	if r, ok := t.roles[speakerID]; ok {
		return r
	}
	return RoleUnknown
}

// Speakers returns how many distinct speakers have been observed.
func (t *SpeakerTracker) Speakers() int { return len(t.stats) }

func (t *SpeakerTracker) assignRoles() {
	if len(t.stats) < 2 {
		return
	}
	ids := make([]int, 0, len(t.stats))
	for id := range t.stats {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool {
		qi, qj := t.stats[ids[i]].questions, t.stats[ids[j]].questions
		if qi != qj {
			return qi > qj
		}
		return ids[i] < ids[j]
	})
	q1, q2 := t.stats[ids[0]].questions, t.stats[ids[1]].questions
	if q1+q2 >= 3 && q1 > q2 {
		t.roles[ids[0]] = RoleCustomer
		t.roles[ids[1]] = RoleConsultant
	}
}
