// Package settings implements the settings and persona store the session
// orchestrator reads at start and at shutdown.
package settings

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"

	"github.com/vango-go/vai-wingman/pkg/core/live"
)

// Defaults seeds a new settings file.
func Defaults() map[string]string {
	d := map[string]string{
		live.KeyActivePersona:      "default",
		live.KeySpeakerFilter:      "true",
		live.KeySummaryEnabled:     "true",
		live.KeyPersistEnabled:     "false",
		live.KeyKeyMoments:         "false",
		live.KeyPersistDestination: "",
	}
	d[live.PersonaInstructionsKey("default")] = "You are a discreet sales engineering assistant. " +
		"Answer the customer's technical questions with short, factual talking points."
	d[live.PersonaDocumentsKey("default")] = ""
	return d
}

// FileOptions configures a FileStore.
type FileOptions struct {
	// Watch reloads the file when it changes on disk.
	Watch  bool
	Logger *slog.Logger
	// OnReload is called after a successful reload from disk.
	OnReload func()
}

// FileStore is a YAML settings file. Reads serve a snapshot that is swapped
// whole on reload, so a batch read never mixes two versions of the file.
// The watching viper instance is left to its watcher goroutine; reloads and
// writes parse the file with instances of their own.
type FileStore struct {
	path   string
	opts   FileOptions
	logger *slog.Logger

	mu   sync.RWMutex
	snap map[string]string
}

// OpenFile opens the settings file at path, creating it with Defaults when it
// does not exist.
func OpenFile(path string, opts FileOptions) (*FileStore, error) {
	if strings.TrimSpace(path) == "" {
		return nil, errors.New("settings: path is required")
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
		// Seed through a separate instance: values Set on the reading instance would shadow the
		// file on every later reload.
		seed := viper.New()
		for k, val := range Defaults() {
			seed.Set(k, val)
		}
		if err := seed.WriteConfigAs(path); err != nil {
			return nil, fmt.Errorf("settings: create %s: %w", path, err)
		}
	}
	v, err := readFile(path)
	if err != nil {
		return nil, err
	}

	s := &FileStore{path: path, opts: opts, logger: opts.Logger, snap: flatten(v)}
	if opts.Watch {
		v.OnConfigChange(s.onChange)
		v.WatchConfig()
	}
	return s, nil
}

func readFile(path string) (*viper.Viper, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("settings: read %s: %w", path, err)
	}
	return v, nil
}

func (s *FileStore) onChange(e fsnotify.Event) {
	if !e.Has(fsnotify.Write) && !e.Has(fsnotify.Create) {
		return
	}
	s.mu.Lock()
	v, err := readFile(s.path)
	if err != nil {
		s.mu.Unlock()
		s.logger.Warn("settings reload failed; keeping previous values", "error", err)
		return
	}
	s.snap = flatten(v)
	s.mu.Unlock()
	s.logger.Info("settings reloaded", "path", s.path, "op", e.Op.String())
	if s.opts.OnReload != nil {
		s.opts.OnReload()
	}
}

// Path returns the backing file.
func (s *FileStore) Path() string { return s.path }

// Read implements live.Settings.
func (s *FileStore) Read(_ context.Context, keys ...string) (map[string]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]string, len(keys))
	for _, k := range keys {
		if v, ok := s.snap[strings.ToLower(k)]; ok {
			out[k] = v
		}
	}
	return out, nil
}

// Set writes one key and saves the file.
func (s *FileStore) Set(_ context.Context, key, value string) error {
	key = strings.ToLower(strings.TrimSpace(key))
	if key == "" {
		return errors.New("settings: key is required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	w, err := readFile(s.path)
	if err != nil {
		return err
	}
	w.Set(key, value)
	if err := w.WriteConfig(); err != nil {
		return fmt.Errorf("settings: write %s: %w", s.path, err)
	}
	// Re-read so the snapshot matches what a reload from disk would produce.
	r, err := readFile(s.path)
	if err != nil {
		return err
	}
	s.snap = flatten(r)
	return nil
}

// All returns every key and value, sorted by key.
func (s *FileStore) All(context.Context) ([]KV, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return sortedKVs(s.snap), nil
}

// KV is one settings entry.
type KV struct {
	Key   string
	Value string
}

func sortedKVs(m map[string]string) []KV {
	out := make([]KV, 0, len(m))
	for k, v := range m {
		out = append(out, KV{Key: k, Value: v})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out
}

func flatten(v *viper.Viper) map[string]string {
	keys := v.AllKeys()
	out := make(map[string]string, len(keys))
	for _, k := range keys {
		out[k] = stringify(v.Get(k))
	}
	return out
}

func stringify(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case bool:
		return strconv.FormatBool(t)
	case []any:
		parts := make([]string, 0, len(t))
		for _, p := range t {
			parts = append(parts, stringify(p))
		}
		return strings.Join(parts, ",")
	case []string:
		return strings.Join(t, ",")
	default:
		return fmt.Sprint(t)
	}
}

var _ live.Settings = (*FileStore)(nil)
