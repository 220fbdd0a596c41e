package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/vango-go/vai-wingman/pkg/core/live"
	"github.com/vango-go/vai-wingman/pkg/core/summary"
	"github.com/vango-go/vai-wingman/pkg/store"
)

var _ store.Archive = (*Store)(nil)

// SaveSession writes rec in one transaction. Saving the same session id again
// replaces the earlier copy.
func (s *Store) SaveSession(ctx context.Context, rec live.Record) error {
	if rec.SessionID == "" {
		return errors.New("save session: empty session id")
	}
	meta, err := json.Marshal(rec.Metadata)
	if err != nil {
		return fmt.Errorf("marshal metadata: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM sessions WHERE id = ?`, rec.SessionID); err != nil {
		return fmt.Errorf("replace session: %w", err)
	}
	_, err = tx.ExecContext(ctx, `
		INSERT INTO sessions (id, started_at, ended_at, duration_seconds, persona_id,
			transcripts_count, suggestions_count, metadata, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.SessionID,
		formatTime(rec.Metadata.Start),
		formatTime(rec.Metadata.End),
		rec.Metadata.DurationSeconds,
		rec.Metadata.PersonaID,
		len(rec.Transcript),
		rec.Metadata.SuggestionsCount,
		string(meta),
		formatTime(s.now()),
	)
	if err != nil {
		return fmt.Errorf("insert session: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO utterances (session_id, seq, id, speaker_id, speaker, role, is_self, text, spoken_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare utterance: %w", err)
	}
	defer stmt.Close()
	for i, u := range rec.Transcript {
		if _, err := stmt.ExecContext(ctx, rec.SessionID, i, u.ID, u.SpeakerID, u.Speaker,
			string(u.Role), u.IsSelf, u.Text, formatTime(u.Timestamp)); err != nil {
			return fmt.Errorf("insert utterance %d: %w", i, err)
		}
	}

	if rec.Summary != nil {
		body, err := json.Marshal(rec.Summary)
		if err != nil {
			return fmt.Errorf("marshal summary: %w", err)
		}
		if _, err := tx.ExecContext(ctx, `INSERT INTO summaries (session_id, body) VALUES (?, ?)`,
			rec.SessionID, string(body)); err != nil {
			return fmt.Errorf("insert summary: %w", err)
		}
	}
	return tx.Commit()
}

// Sessions lists the most recent sessions first. limit <= 0 lists all.
func (s *Store) Sessions(ctx context.Context, limit int) ([]store.SessionInfo, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT s.id, s.started_at, s.ended_at, s.duration_seconds, s.persona_id,
			s.transcripts_count, s.suggestions_count, m.session_id IS NOT NULL
		FROM sessions s
		LEFT JOIN summaries m ON m.session_id = s.id
		ORDER BY s.started_at DESC
		LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query sessions: %w", err)
	}
	defer rows.Close()

	var out []store.SessionInfo
	for rows.Next() {
		var info store.SessionInfo
		var start, end string
		if err := rows.Scan(&info.ID, &start, &end, &info.Duration, &info.PersonaID,
			&info.Utterances, &info.Suggestions, &info.HasSummary); err != nil {
			return nil, fmt.Errorf("scan session: %w", err)
		}
		info.Start, info.End = parseTime(start), parseTime(end)
		out = append(out, info)
	}
	return out, rows.Err()
}

// LoadSession reads one session back into a Record.
func (s *Store) LoadSession(ctx context.Context, id string) (live.Record, error) {
	var meta string
	err := s.db.QueryRowContext(ctx, `SELECT metadata FROM sessions WHERE id = ?`, id).Scan(&meta)
	if errors.Is(err, sql.ErrNoRows) {
		return live.Record{}, store.ErrNotFound
	}
	if err != nil {
		return live.Record{}, fmt.Errorf("query session: %w", err)
	}
	rec := live.Record{SessionID: id}
	if err := json.Unmarshal([]byte(meta), &rec.Metadata); err != nil {
		return live.Record{}, fmt.Errorf("decode metadata: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, speaker_id, speaker, role, is_self, text, spoken_at
		FROM utterances WHERE session_id = ? ORDER BY seq`, id)
	if err != nil {
		return live.Record{}, fmt.Errorf("query utterances: %w", err)
	}
	for rows.Next() {
		var u live.Utterance
		var role, at string
		if err := rows.Scan(&u.ID, &u.SpeakerID, &u.Speaker, &role, &u.IsSelf, &u.Text, &at); err != nil {
			rows.Close()
			return live.Record{}, fmt.Errorf("scan utterance: %w", err)
		}
		u.Role, u.Timestamp = live.Role(role), parseTime(at)
		rec.Transcript = append(rec.Transcript, u)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return live.Record{}, fmt.Errorf("read utterances: %w", err)
	}

	var body string
	err = s.db.QueryRowContext(ctx, `SELECT body FROM summaries WHERE session_id = ?`, id).Scan(&body)
	switch {
	case errors.Is(err, sql.ErrNoRows):
	case err != nil:
		return live.Record{}, fmt.Errorf("query summary: %w", err)
	default:
		var sum summary.Summary
		if err := json.Unmarshal([]byte(body), &sum); err != nil {
			return live.Record{}, fmt.Errorf("decode summary: %w", err)
		}
		rec.Summary = &sum
	}
	return rec, nil
}
