package live

import (
	"testing"
	"time"
)

func TestSpeakerTracker_FirstSpeakerIsSelf(t *testing.T) {
	tr := NewSpeakerTracker()
	if _, self := tr.Observe(3, "Thanks for joining.", 3); !self {
		t.Fatal("first speaker should be self")
	}
	if _, self := tr.Observe(0, "Happy to be here.", 4); self {
		t.Fatal("second speaker should not be self")
	}
	if _, self := tr.Observe(3, "Shall we start?", 3); !self {
		t.Fatal("first speaker should stay self")
	}
}

func TestSpeakerTracker_AssignsRolesByQuestions(t *testing.T) {
	tr := NewSpeakerTracker()
	tr.Observe(0, "Let me walk you through it.", 6)
	tr.Observe(1, "How does billing work?", 4)
	if r := tr.Role(1); r != RoleUnknown {
		t.Fatalf("role=%s before enough questions, want unknown", r)
	}
	tr.Observe(1, "What about SSO?", 3)
	role, _ := tr.Observe(1, "Can we export data?", 4)
	if role != RoleCustomer {
		t.Fatalf("role=%s, want customer", role)
	}
	if r := tr.Role(0); r != RoleConsultant {
		t.Fatalf("role=%s, want consultant", r)
	}
	if tr.Speakers() != 2 {
		t.Fatalf("speakers=%d, want 2", tr.Speakers())
	}
}

func TestSpeakerTracker_NeedsThreeQuestionsAndALeader(t *testing.T) {
	tr := NewSpeakerTracker()
	tr.Observe(0, "Why now?", 2)
	tr.Observe(1, "Why not?", 2)
	if tr.Role(0) != RoleUnknown || tr.Role(1) != RoleUnknown {
		t.Fatalf("roles=%s/%s, want unknown below three questions", tr.Role(0), tr.Role(1))
	}
	tr.Observe(2, "Who decides?", 2)
	if tr.Role(0) != RoleUnknown || tr.Role(1) != RoleUnknown {
		t.Fatalf("roles=%s/%s, want unknown while the top two are tied", tr.Role(0), tr.Role(1))
	}
}

func TestElapsed(t *testing.T) {
	tests := []struct {
		d    time.Duration
		want string
	}{
		{0, "00:00:00"},
		{130 * time.Second, "00:02:10"},
		{time.Hour + 5*time.Second, "01:00:05"},
		{-time.Second, "00:00:00"},
	}
	for _, tc := range tests {
		if got := Elapsed(tc.d); got != tc.want {
			t.Fatalf("Elapsed(%v)=%q, want %q", tc.d, got, tc.want)
		}
	}
}

func TestState_String(t *testing.T) {
	if StateStopping.String() != "STOPPING" || State(42).String() != "UNKNOWN" {
		t.Fatalf("unexpected state names %q %q", StateStopping, State(42))
	}
}
