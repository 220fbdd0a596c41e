package sqlite

import (
	"context"
	"fmt"
	"strings"
	"unicode"

	"github.com/vango-go/vai-wingman/pkg/core/suggest"
)

var _ suggest.Retriever = (*Store)(nil)

// AddPassage indexes one excerpt of a knowledge-base document.
func (s *Store) AddPassage(ctx context.Context, documentID, label, text string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO passages (document_id, label, text) VALUES (?, ?, ?)`,
		documentID, label, text)
	if err != nil {
		return fmt.Errorf("index passage: %w", err)
	}
	return nil
}

// Search ranks passages from the scoped documents against query with FTS5
// bm25. An empty scope matches nothing.
func (s *Store) Search(ctx context.Context, query string, scope []string, limit int) ([]suggest.Passage, error) {
	match := matchExpr(query)
	if match == "" || len(scope) == 0 {
		return nil, nil
	}
	if limit <= 0 {
		limit = 4
	}
	args := []any{match}
	for _, id := range scope {
		args = append(args, id)
	}
	args = append(args, limit)

	q := `SELECT text, label, bm25(passages) AS rank
		FROM passages
		WHERE passages MATCH ? AND document_id IN (?` + strings.Repeat(", ?", len(scope)-1) + `)
		ORDER BY rank
		LIMIT ?`
	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("search passages: %w", err)
	}
	defer rows.Close()

	var out []suggest.Passage
	for rows.Next() {
		var p suggest.Passage
		var rank float64
		if err := rows.Scan(&p.Text, &p.SourceLabel, &rank); err != nil {
			return nil, fmt.Errorf("scan passage: %w", err)
		}
		// bm25 is lower-is-better and negative for matches.
		p.Score = -rank
		out = append(out, p)
	}
	return out, rows.Err()
}

// matchExpr turns free text into an FTS5 OR query of quoted terms, so user
// punctuation is never parsed as query syntax.
func matchExpr(text string) string {
	words := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	seen := make(map[string]bool, len(words))
	terms := make([]string, 0, len(words))
	for _, w := range words {
		if len(w) < 3 || stopWords[w] || seen[w] {
			continue
		}
		seen[w] = true
		terms = append(terms, `"`+w+`"`)
	}
	return strings.Join(terms, " OR ")
}

var stopWords = map[string]bool{
	"the": true, "and": true, "you": true, "your": true, "are": true, "for": true,
	"what": true, "how": true, "does": true, "can": true, "with": true, "this": true,
	"that": true, "have": true, "has": true, "our": true, "was": true, "will": true,
}
