package sqlite

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/vango-go/vai-wingman/pkg/core/live"
	"github.com/vango-go/vai-wingman/pkg/core/summary"
	"github.com/vango-go/vai-wingman/pkg/store"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(context.Background(), filepath.Join(t.TempDir(), "wingman.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func testRecord(id string, start time.Time, withSummary bool) live.Record {
	rec := live.Record{
		SessionID: id,
		Transcript: []live.Utterance{
			{ID: "u1", SpeakerID: 0, Speaker: "Speaker 0", Role: live.RoleUnknown, IsSelf: true, Text: "Thanks for joining.", Timestamp: start.Add(time.Second)},
			{ID: "u2", SpeakerID: 1, Speaker: "Speaker 1", Role: live.RoleCustomer, Text: "How does SSO work?", Timestamp: start.Add(4 * time.Second)},
		},
		Metadata: live.Metadata{
			Start:            start,
			End:              start.Add(90 * time.Second),
			DurationSeconds:  90,
			SpeakersCount:    2,
			TranscriptsCount: 2,
			SuggestionsCount: 1,
			PersonaID:        "sales",
			Emotions:         map[string]int{"calm": 3},
		},
	}
	if withSummary {
		rec.Summary = &summary.Summary{Overview: "SSO questions.", KeyPoints: []string{"SAML"}, ActionItems: []string{}}
	}
	return rec
}

func TestOpen_MigratesTwice(t *testing.T) {
	path := filepath.Join(t.TempDir(), "wingman.db")
	s, err := Open(context.Background(), path)
	require.NoError(t, err)
	require.NoError(t, s.Close())

	s, err = Open(context.Background(), path)
	require.NoError(t, err)
	require.NoError(t, s.Close())
}

func TestSaveAndLoadSession(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	start := time.Date(2026, 3, 2, 15, 0, 0, 0, time.UTC)
	rec := testRecord("sess-1", start, true)

	require.NoError(t, s.SaveSession(ctx, rec))

	got, err := s.LoadSession(ctx, "sess-1")
	require.NoError(t, err)
	require.Equal(t, rec.SessionID, got.SessionID)
	require.Len(t, got.Transcript, 2)
	require.Equal(t, "How does SSO work?", got.Transcript[1].Text)
	require.Equal(t, live.RoleCustomer, got.Transcript[1].Role)
	require.True(t, got.Transcript[0].IsSelf)
	require.True(t, got.Transcript[1].Timestamp.Equal(rec.Transcript[1].Timestamp))
	require.Equal(t, "sales", got.Metadata.PersonaID)
	require.Equal(t, 3, got.Metadata.Emotions["calm"])
	require.NotNil(t, got.Summary)
	require.Equal(t, "SSO questions.", got.Summary.Overview)
}

func TestSaveSession_ReplacesAndLists(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	start := time.Date(2026, 3, 2, 15, 0, 0, 0, time.UTC)

	require.NoError(t, s.SaveSession(ctx, testRecord("older", start, false)))
	require.NoError(t, s.SaveSession(ctx, testRecord("newer", start.Add(time.Hour), true)))
	// Saving again replaces rather than duplicating utterances.
	require.NoError(t, s.SaveSession(ctx, testRecord("newer", start.Add(time.Hour), true)))

	list, err := s.Sessions(ctx, 0)
	require.NoError(t, err)
	require.Len(t, list, 2)
	require.Equal(t, "newer", list[0].ID)
	require.True(t, list[0].HasSummary)
	require.False(t, list[1].HasSummary)
	require.Equal(t, 2, list[0].Utterances)

	got, err := s.LoadSession(ctx, "newer")
	require.NoError(t, err)
	require.Len(t, got.Transcript, 2)

	list, err = s.Sessions(ctx, 1)
	require.NoError(t, err)
	require.Len(t, list, 1)
}

func TestLoadSession_NotFound(t *testing.T) {
	s := openTestStore(t)
	_, err := s.LoadSession(context.Background(), "missing")
	require.ErrorIs(t, err, store.ErrNotFound)
}

func TestSettings_ReadSetSeed(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.Seed(ctx, map[string]string{
		live.KeySummaryEnabled: "true",
		live.KeyPersistEnabled: "false",
	}))
	require.NoError(t, s.Set(ctx, live.KeyPersistEnabled, "true"))
	// Seeding never overwrites.
	require.NoError(t, s.Seed(ctx, map[string]string{live.KeyPersistEnabled: "false"}))
	require.Error(t, s.Set(ctx, " ", "x"))

	got, err := s.Read(ctx, live.KeySummaryEnabled, live.KeyPersistEnabled, live.KeyKeyMoments)
	require.NoError(t, err)
	require.Equal(t, map[string]string{
		live.KeySummaryEnabled: "true",
		live.KeyPersistEnabled: "true",
	}, got)

	all, err := s.All(ctx)
	require.NoError(t, err)
	require.Len(t, all, 2)
	require.Equal(t, live.KeyPersistEnabled, all[0].Key)
}

func TestSearch_ScopedBM25(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.AddPassage(ctx, "security-faq", "Security FAQ", "Single sign-on is supported through SAML 2.0 and OIDC."))
	require.NoError(t, s.AddPassage(ctx, "security-faq", "Security FAQ", "Data is encrypted at rest with AES-256."))
	require.NoError(t, s.AddPassage(ctx, "pricing", "Pricing 2026", "SAML single sign-on is included in the Enterprise plan."))

	got, err := s.Search(ctx, "How does single sign-on work with SAML?", []string{"security-faq"}, 4)
	require.NoError(t, err)
	require.Len(t, got, 1)
	require.Equal(t, "Security FAQ", got[0].SourceLabel)
	require.Greater(t, got[0].Score, 0.0)

	got, err = s.Search(ctx, "SAML", []string{"security-faq", "pricing"}, 4)
	require.NoError(t, err)
	require.Len(t, got, 2)

	got, err = s.Search(ctx, "SAML", nil, 4)
	require.NoError(t, err)
	require.Empty(t, got)

	got, err = s.Search(ctx, "?!", []string{"pricing"}, 4)
	require.NoError(t, err)
	require.Empty(t, got)
}

func TestMatchExpr(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"How does SSO work?", `"sso" OR "work"`},
		{`"quoted" AND NOT x`, `"quoted" OR "not"`},
		{"the and you", ""},
		{"SAML saml Saml", `"saml"`},
	}
	for _, tc := range tests {
		if got := matchExpr(tc.in); got != tc.want {
			t.Fatalf("matchExpr(%q)=%q, want %q", tc.in, got, tc.want)
		}
	}
}
