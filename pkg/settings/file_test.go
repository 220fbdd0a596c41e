package settings

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/vango-go/vai-wingman/pkg/core/live"
)

func TestOpenFile_CreatesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings.yaml")
	s, err := OpenFile(path, FileOptions{})
	if err != nil {
		t.Fatalf("OpenFile: %v", err)
	}
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("settings file not created: %v", err)
	}

	got, err := s.Read(context.Background(), live.KeySpeakerFilter, live.KeyActivePersona, "no.such.key")
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if got[live.KeySpeakerFilter] != "true" || got[live.KeyActivePersona] != "default" {
		t.Fatalf("read=%v, want defaults", got)
	}
	if _, ok := got["no.such.key"]; ok {
		t.Fatal("missing key present in result")
	}
}

func TestFileStore_ReadsNestedYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings.yaml")
	body := `
persona:
  active: sales
  sales:
    instructions: Keep it short.
    documents: [pricing-2025, security-faq]
summary:
  enabled: false
persistence:
  enabled: true
  destination: sqlite:///tmp/w.db
`
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatal(err)
	}
	s, err := OpenFile(path, FileOptions{})
	if err != nil {
		t.Fatalf("OpenFile: %v", err)
	}

	got, _ := s.Read(context.Background(),
		live.KeyActivePersona,
		live.PersonaInstructionsKey("sales"),
		live.PersonaDocumentsKey("sales"),
		live.KeySummaryEnabled,
		live.KeyPersistDestination,
	)
	want := map[string]string{
		live.KeyActivePersona:                "sales",
		live.PersonaInstructionsKey("sales"): "Keep it short.",
		live.PersonaDocumentsKey("sales"):    "pricing-2025,security-faq",
		live.KeySummaryEnabled:               "false",
		live.KeyPersistDestination:           "sqlite:///tmp/w.db",
	}
	for k, v := range want {
		if got[k] != v {
			t.Fatalf("%s=%q, want %q", k, got[k], v)
		}
	}
}

func TestFileStore_SetPersists(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings.yaml")
	s, err := OpenFile(path, FileOptions{})
	if err != nil {
		t.Fatalf("OpenFile: %v", err)
	}
	ctx := context.Background()
	if err := s.Set(ctx, live.KeyPersistEnabled, "true"); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if err := s.Set(ctx, "", "x"); err == nil {
		t.Fatal("Set with empty key succeeded")
	}

	reopened, err := OpenFile(path, FileOptions{})
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	got, _ := reopened.Read(ctx, live.KeyPersistEnabled)
	if got[live.KeyPersistEnabled] != "true" {
		t.Fatalf("persisted value=%q, want true", got[live.KeyPersistEnabled])
	}

	all, _ := reopened.All(ctx)
	for i := 1; i < len(all); i++ {
		if all[i-1].Key > all[i].Key {
			t.Fatalf("All not sorted at %d: %q > %q", i, all[i-1].Key, all[i].Key)
		}
	}
}

func TestFileStore_WatchReloads(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings.yaml")
	reloaded := make(chan struct{}, 8)
	s, err := OpenFile(path, FileOptions{
		Watch:    true,
		OnReload: func() { reloaded <- struct{}{} },
	})
	if err != nil {
		t.Fatalf("OpenFile: %v", err)
	}

	if err := os.WriteFile(path, []byte("speaker_filter:\n  enabled: false\n"), 0o600); err != nil {
		t.Fatal(err)
	}

	deadline := time.After(3 * time.Second)
	for {
		got, _ := s.Read(context.Background(), live.KeySpeakerFilter)
		if got[live.KeySpeakerFilter] == "false" {
			return
		}
		select {
		case <-reloaded:
		case <-deadline:
			t.Fatalf("speaker filter=%q after edit, want false", got[live.KeySpeakerFilter])
		}
	}
}

func TestFileStore_SetWhileWatching(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings.yaml")
	s, err := OpenFile(path, FileOptions{Watch: true})
	if err != nil {
		t.Fatalf("OpenFile: %v", err)
	}
	ctx := context.Background()

	var wg sync.WaitGroup
	for w := 0; w < 2; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < 10; i++ {
				key := fmt.Sprintf("persona.p%d.instructions", w)
				if err := s.Set(ctx, key, strconv.Itoa(i)); err != nil {
					t.Errorf("Set(%s): %v", key, err)
					return
				}
			}
		}(w)
	}
	wg.Wait()

	got, _ := s.Read(ctx, "persona.p0.instructions", "persona.p1.instructions", live.KeySummaryEnabled)
	if got["persona.p0.instructions"] != "9" || got["persona.p1.instructions"] != "9" {
		t.Fatalf("after concurrent sets got=%v, want both 9", got)
	}
	if got[live.KeySummaryEnabled] != "true" {
		t.Fatalf("summary.enabled=%q, want default true", got[live.KeySummaryEnabled])
	}
}

func TestOpenFile_RequiresPath(t *testing.T) {
	if _, err := OpenFile(" ", FileOptions{}); err == nil {
		t.Fatal("OpenFile with blank path succeeded")
	}
}
