package persist

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/vango-go/vai-wingman/pkg/core/live"
	"github.com/vango-go/vai-wingman/pkg/core/summary"
	"github.com/vango-go/vai-wingman/pkg/store"
	"github.com/vango-go/vai-wingman/pkg/store/sqlite"
)

var start = time.Date(2026, 3, 2, 15, 4, 0, 0, time.UTC)

func sampleRecord() live.Record {
	return live.Record{
		SessionID: "sess-42",
		Transcript: []live.Utterance{
			{ID: "a", SpeakerID: 0, Speaker: "Speaker 0", Role: live.RoleConsultant, IsSelf: true, Text: "Welcome.", Timestamp: start.Add(2 * time.Second)},
			{ID: "b", SpeakerID: 1, Speaker: "Speaker 1", Role: live.RoleCustomer, Text: "Do you support SCIM?", Timestamp: start.Add(65 * time.Second)},
			{ID: "c", SpeakerID: 1, Speaker: "Speaker 1", Role: live.RoleCustomer, Text: "And Okta?", Timestamp: start.Add(70 * time.Second)},
		},
		Metadata: live.Metadata{
			Start:                start,
			End:                  start.Add(3 * time.Minute),
			DurationSeconds:      180,
			SpeakersCount:        2,
			TranscriptsCount:     3,
			SuggestionsCount:     1,
			SpeakerFilterEnabled: true,
		},
		Summary: &summary.Summary{
			Overview:    "Identity provisioning questions.",
			KeyPoints:   []string{"SCIM is supported"},
			ActionItems: []string{"Send Okta guide"},
		},
	}
}

func TestParseDestination(t *testing.T) {
	tests := []struct {
		in      string
		kind    Kind
		target  string
		format  Format
		wantErr bool
	}{
		{in: "sqlite:wingman.db", kind: KindSQLite, target: "wingman.db"},
		{in: "sqlite:///var/lib/w.db", kind: KindSQLite, target: "/var/lib/w.db"},
		{in: "postgres://u:p@db:5432/wingman", kind: KindPostgres, target: "postgres://u:p@db:5432/wingman"},
		{in: "file:///tmp/calls", kind: KindFile, target: "/tmp/calls", format: FormatMarkdown},
		{in: "file:out?format=yaml", kind: KindFile, target: "out", format: FormatYAML},
		{in: "file:out?format=docx", wantErr: true},
		{in: "drive://folder", wantErr: true},
		{in: "nowhere", wantErr: true},
	}
	for _, tc := range tests {
		d, err := ParseDestination(tc.in)
		if tc.wantErr {
			if err == nil {
				t.Fatalf("ParseDestination(%q) succeeded, want error", tc.in)
			}
			continue
		}
		if err != nil {
			t.Fatalf("ParseDestination(%q): %v", tc.in, err)
		}
		if d.Kind != tc.kind || d.Target != tc.target || d.Format != tc.format {
			t.Fatalf("ParseDestination(%q)=%+v", tc.in, d)
		}
	}
}

func TestDestination_RedactsCredentials(t *testing.T) {
	d, _ := ParseDestination("postgres://user:secret@db:5432/wingman?sslmode=require")
	if got := d.Redacted(); strings.Contains(got, "secret") || got != "postgres://db:5432/wingman" {
		t.Fatalf("Redacted()=%q", got)
	}
}

func TestRender_Markdown(t *testing.T) {
	out, err := Render(sampleRecord(), FormatMarkdown)
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	md := string(out)
	for _, want := range []string{
		"# Meeting Transcript",
		"**Date:** March 2, 2026 03:04 PM",
		"**Duration:** 3 minutes",
		"## Summary",
		"- Send Okta guide",
		"**[00:00:02] Speaker 0 (You)**",
		"**[00:01:05] Speaker 1 (Customer)**",
		"- Speaker Filter: Enabled",
	} {
		if !strings.Contains(md, want) {
			t.Fatalf("markdown missing %q:\n%s", want, md)
		}
	}
	// Consecutive turns by one speaker share a header.
	if n := strings.Count(md, "Speaker 1 (Customer)**"); n != 1 {
		t.Fatalf("customer headers=%d, want 1", n)
	}
}

func TestRender_Text(t *testing.T) {
	out, err := Render(sampleRecord(), FormatText)
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	txt := string(out)
	if !strings.Contains(txt, "[00:01:10] Speaker 1 (Customer):\nAnd Okta?") {
		t.Fatalf("text missing turn:\n%s", txt)
	}
	if !strings.Contains(txt, "[ ] Send Okta guide") {
		t.Fatalf("text missing action item:\n%s", txt)
	}
}

func TestRender_StructuredFormatsEmbedSummary(t *testing.T) {
	for _, f := range []Format{FormatJSON, FormatYAML} {
		out, err := Render(sampleRecord(), f)
		if err != nil {
			t.Fatalf("Render(%s): %v", f, err)
		}
		var doc map[string]any
		if f == FormatJSON {
			err = json.Unmarshal(out, &doc)
		} else {
			err = yaml.Unmarshal(out, &doc)
		}
		if err != nil {
			t.Fatalf("%s output does not parse: %v", f, err)
		}
		if _, ok := doc["summary"]; !ok {
			t.Fatalf("%s output has no summary", f)
		}
		if _, ok := doc["metadata"]; !ok {
			t.Fatalf("%s output has no metadata", f)
		}
	}
}

func TestRouter_File(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "calls")
	r := NewRouter(Options{})

	loc, err := r.Save(context.Background(), "file:"+dir+"?format=json", sampleRecord())
	if err != nil {
		t.Fatalf("Save: %v", err)
	}
	if want := filepath.Join(dir, "transcript-20260302-150400-sess-42.json"); loc != want {
		t.Fatalf("locator=%q, want %q", loc, want)
	}
	if _, err := os.Stat(loc); err != nil {
		t.Fatalf("file not written: %v", err)
	}
	entries, _ := os.ReadDir(dir)
	if len(entries) != 1 {
		t.Fatalf("dir entries=%d, want 1 (no temp files left)", len(entries))
	}
}

func TestRouter_SQLite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "archive.db")
	r := NewRouter(Options{})
	defer r.Close()

	loc, err := r.Save(context.Background(), "sqlite:"+path, sampleRecord())
	if err != nil {
		t.Fatalf("Save: %v", err)
	}
	if loc != "sqlite:"+path+"#sess-42" {
		t.Fatalf("locator=%q", loc)
	}
	if err := r.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	s, err := sqlite.Open(context.Background(), path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer s.Close()
	rec, err := s.LoadSession(context.Background(), "sess-42")
	if err != nil {
		t.Fatalf("LoadSession: %v", err)
	}
	if len(rec.Transcript) != 3 || rec.Summary == nil {
		t.Fatalf("loaded transcript=%d summary=%v", len(rec.Transcript), rec.Summary)
	}
}

type memArchive struct {
	saved  []live.Record
	closed bool
}

func (m *memArchive) SaveSession(_ context.Context, rec live.Record) error {
	m.saved = append(m.saved, rec)
	return nil
}

func (m *memArchive) Sessions(context.Context, int) ([]store.SessionInfo, error) { return nil, nil }

func (m *memArchive) LoadSession(context.Context, string) (live.Record, error) {
	return live.Record{}, store.ErrNotFound
}

func (m *memArchive) Close() error {
	m.closed = true
	return nil
}

func TestRouter_OpensArchiveOnce(t *testing.T) {
	var opens atomic.Int64
	mem := &memArchive{}
	r := NewRouter(Options{Open: func(context.Context, Destination) (store.Archive, error) {
		opens.Add(1)
		return mem, nil
	}})

	for i := 0; i < 3; i++ {
		if _, err := r.Save(context.Background(), "postgres://u:p@db/wingman", sampleRecord()); err != nil {
			t.Fatalf("Save: %v", err)
		}
	}
	if opens.Load() != 1 || len(mem.saved) != 3 {
		t.Fatalf("opens=%d saves=%d, want 1 and 3", opens.Load(), len(mem.saved))
	}
	r.Close()
	if !mem.closed {
		t.Fatal("archive not closed")
	}
}

func TestRouter_BadDestination(t *testing.T) {
	r := NewRouter(Options{})
	if _, err := r.Save(context.Background(), "drive://x", sampleRecord()); err == nil {
		t.Fatal("Save to unsupported destination succeeded")
	}
}
