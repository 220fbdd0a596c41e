package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"

	"github.com/vango-go/vai-wingman/pkg/config"
	"github.com/vango-go/vai-wingman/pkg/settings"
	"github.com/vango-go/vai-wingman/pkg/store/sqlite"
)

// cliDeps are the process-level hooks the commands use. Tests replace them.
type cliDeps struct {
	loadConfig   func(path string) (config.Config, error)
	openStore    func(ctx context.Context, path string) (*sqlite.Store, error)
	signalNotify func(c chan<- os.Signal, sig ...os.Signal)
	signalStop   func(c chan<- os.Signal)
}

func defaultCLIDeps() cliDeps {
	return cliDeps{
		loadConfig:   config.Load,
		openStore:    sqlite.Open,
		signalNotify: signal.Notify,
		signalStop:   signal.Stop,
	}
}

// settingsStore is the settings backend the CLI reads and edits.
type settingsStore interface {
	Read(ctx context.Context, keys ...string) (map[string]string, error)
	Set(ctx context.Context, key, value string) error
	All(ctx context.Context) ([]settings.KV, error)
}

// sqliteSettings adapts the store's settings table to settingsStore.
type sqliteSettings struct {
	*sqlite.Store
}

func (s sqliteSettings) All(ctx context.Context) ([]settings.KV, error) {
	rows, err := s.Store.All(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]settings.KV, 0, len(rows))
	for _, r := range rows {
		out = append(out, settings.KV{Key: r.Key, Value: r.Value})
	}
	return out, nil
}

// openSettings opens the configured settings store. db is reused for the
// sqlite backend when it is already open; the returned func releases only what
// openSettings itself opened.
func (a *app) openSettings(ctx context.Context, db *sqlite.Store, watch bool) (settingsStore, func() error, error) {
	nop := func() error { return nil }
	if a.cfg.Settings.Store != "sqlite" {
		file, err := settings.OpenFile(a.cfg.Settings.Path, settings.FileOptions{Watch: watch, Logger: a.logger})
		if err != nil {
			return nil, nil, err
		}
		return file, nop, nil
	}

	release := nop
	if db == nil {
		var err error
		if db, err = a.deps.openStore(ctx, a.cfg.Store.SQLitePath); err != nil {
			return nil, nil, err
		}
		release = db.Close
	}
	if err := db.Seed(ctx, settings.Defaults()); err != nil {
		_ = release()
		return nil, nil, fmt.Errorf("seed settings: %w", err)
	}
	return sqliteSettings{db}, release, nil
}
