// Package postgres is the shared session archive on PostgreSQL, for teams
// that collect call transcripts centrally.
package postgres

import (
	"context"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"

	"github.com/vango-go/vai-wingman/pkg/core/live"
	"github.com/vango-go/vai-wingman/pkg/core/summary"
	"github.com/vango-go/vai-wingman/pkg/store"
)

//go:embed migrations/*.sql
var migrations embed.FS

var _ store.Archive = (*Store)(nil)

// Store archives sessions through a pgx pool.
type Store struct {
	pool *pgxpool.Pool
}

// Open connects to dsn, pings and migrates.
func Open(ctx context.Context, dsn string) (*Store, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse database config: %w", err)
	}
	cfg.MaxConns = 4
	cfg.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	if err := migrate(ctx, pool); err != nil {
		pool.Close()
		return nil, err
	}
	return &Store{pool: pool}, nil
}

func migrate(ctx context.Context, pool *pgxpool.Pool) error {
	fsys, err := fs.Sub(migrations, "migrations")
	if err != nil {
		return fmt.Errorf("migrations: %w", err)
	}
	db := stdlib.OpenDBFromPool(pool)
	defer db.Close()
	p, err := goose.NewProvider(goose.DialectPostgres, db, fsys)
	if err != nil {
		return fmt.Errorf("migrations: %w", err)
	}
	if _, err := p.Up(ctx); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	return nil
}

func (s *Store) Close() error {
	s.pool.Close()
	return nil
}

// SaveSession writes rec in one transaction, replacing any earlier copy.
func (s *Store) SaveSession(ctx context.Context, rec live.Record) error {
	if rec.SessionID == "" {
		return errors.New("save session: empty session id")
	}
	meta, err := json.Marshal(rec.Metadata)
	if err != nil {
		return fmt.Errorf("marshal metadata: %w", err)
	}
	return pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `DELETE FROM sessions WHERE id = $1`, rec.SessionID); err != nil {
			return fmt.Errorf("replace session: %w", err)
		}
		_, err := tx.Exec(ctx, `
			INSERT INTO sessions (id, started_at, ended_at, duration_seconds, persona_id,
				transcripts_count, suggestions_count, metadata)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
			rec.SessionID, rec.Metadata.Start, rec.Metadata.End, rec.Metadata.DurationSeconds,
			rec.Metadata.PersonaID, len(rec.Transcript), rec.Metadata.SuggestionsCount, meta)
		if err != nil {
			return fmt.Errorf("insert session: %w", err)
		}

		rows := make([][]any, 0, len(rec.Transcript))
		for i, u := range rec.Transcript {
			rows = append(rows, []any{rec.SessionID, i, u.ID, u.SpeakerID, u.Speaker, string(u.Role), u.IsSelf, u.Text, u.Timestamp})
		}
		if _, err := tx.CopyFrom(ctx,
			pgx.Identifier{"utterances"},
			[]string{"session_id", "seq", "id", "speaker_id", "speaker", "role", "is_self", "text", "spoken_at"},
			pgx.CopyFromRows(rows),
		); err != nil {
			return fmt.Errorf("copy utterances: %w", err)
		}

		if rec.Summary != nil {
			body, err := json.Marshal(rec.Summary)
			if err != nil {
				return fmt.Errorf("marshal summary: %w", err)
			}
			if _, err := tx.Exec(ctx, `INSERT INTO summaries (session_id, body) VALUES ($1, $2)`, rec.SessionID, body); err != nil {
				return fmt.Errorf("insert summary: %w", err)
			}
		}
		return nil
	})
}

// Sessions lists the most recent sessions first. limit <= 0 lists all.
func (s *Store) Sessions(ctx context.Context, limit int) ([]store.SessionInfo, error) {
	q := `
		SELECT s.id, s.started_at, s.ended_at, s.duration_seconds, s.persona_id,
			s.transcripts_count, s.suggestions_count, m.session_id IS NOT NULL
		FROM sessions s
		LEFT JOIN summaries m ON m.session_id = s.id
		ORDER BY s.started_at DESC`
	args := []any{}
	if limit > 0 {
		q += ` LIMIT $1`
		args = append(args, limit)
	}
	rows, err := s.pool.Query(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("query sessions: %w", err)
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (store.SessionInfo, error) {
		var info store.SessionInfo
		err := row.Scan(&info.ID, &info.Start, &info.End, &info.Duration, &info.PersonaID,
			&info.Utterances, &info.Suggestions, &info.HasSummary)
		return info, err
	})
}

// LoadSession reads one session back into a Record.
func (s *Store) LoadSession(ctx context.Context, id string) (live.Record, error) {
	var meta []byte
	err := s.pool.QueryRow(ctx, `SELECT metadata FROM sessions WHERE id = $1`, id).Scan(&meta)
	if errors.Is(err, pgx.ErrNoRows) {
		return live.Record{}, store.ErrNotFound
	}
	if err != nil {
		return live.Record{}, fmt.Errorf("query session: %w", err)
	}
	rec := live.Record{SessionID: id}
	if err := json.Unmarshal(meta, &rec.Metadata); err != nil {
		return live.Record{}, fmt.Errorf("decode metadata: %w", err)
	}

	rows, err := s.pool.Query(ctx, `
		SELECT id, speaker_id, speaker, role, is_self, text, spoken_at
		FROM utterances WHERE session_id = $1 ORDER BY seq`, id)
	if err != nil {
		return live.Record{}, fmt.Errorf("query utterances: %w", err)
	}
	rec.Transcript, err = pgx.CollectRows(rows, func(row pgx.CollectableRow) (live.Utterance, error) {
		var u live.Utterance
		var role string
		err := row.Scan(&u.ID, &u.SpeakerID, &u.Speaker, &role, &u.IsSelf, &u.Text, &u.Timestamp)
		u.Role = live.Role(role)
		return u, err
	})
	if err != nil {
		return live.Record{}, fmt.Errorf("read utterances: %w", err)
	}

	var body []byte
	err = s.pool.QueryRow(ctx, `SELECT body FROM summaries WHERE session_id = $1`, id).Scan(&body)
	switch {
	case errors.Is(err, pgx.ErrNoRows):
	case err != nil:
		return live.Record{}, fmt.Errorf("query summary: %w", err)
	default:
		var sum summary.Summary
		if err := json.Unmarshal(body, &sum); err != nil {
			return live.Record{}, fmt.Errorf("decode summary: %w", err)
		}
		rec.Summary = &sum
	}
	return rec, nil
}
