// Package store defines the session archive shared by the SQL backends.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/vango-go/vai-wingman/pkg/core/live"
)

// ErrNotFound is returned when a session id is unknown.
var ErrNotFound = errors.New("store: not found")

// SessionInfo is one row of a session listing.
type SessionInfo struct {
	ID          string    `json:"id"`
	Start       time.Time `json:"start"`
	End         time.Time `json:"end"`
	Duration    float64   `json:"duration_seconds"`
	PersonaID   string    `json:"persona_id,omitempty"`
	Utterances  int       `json:"utterances"`
	Suggestions int       `json:"suggestions"`
	HasSummary  bool      `json:"has_summary"`
}

// Archive saves and loads finished sessions.
type Archive interface {
	SaveSession(ctx context.Context, rec live.Record) error
	Sessions(ctx context.Context, limit int) ([]SessionInfo, error)
	LoadSession(ctx context.Context, id string) (live.Record, error)
	Close() error
}
