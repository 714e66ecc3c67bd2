package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nextlevelbuilder/replygate/internal/store"
)

// PatternStore implements store.PatternStore on SQLite.
type PatternStore struct {
	db *sql.DB
}

func NewPatternStore(db *sql.DB) *PatternStore {
	return &PatternStore{db: db}
}

const patternCols = `pattern_id, regex, message_type, description, response_template,
	variants, priority, keywords, requires_context, min_confidence, enabled,
	created_at, updated_at`

func (s *PatternStore) ListPatterns(ctx context.Context) ([]store.PatternData, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+patternCols+` FROM patterns ORDER BY pattern_id`)
	if err != nil {
		return nil, fmt.Errorf("list patterns: %w", err)
	}
	defer rows.Close()

	var out []store.PatternData
	for rows.Next() {
		p, err := scanPattern(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (s *PatternStore) GetPattern(ctx context.Context, patternID string) (*store.PatternData, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+patternCols+` FROM patterns WHERE pattern_id = ?`, patternID)
	p, err := scanPattern(row)
	if err == sql.ErrNoRows {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (s *PatternStore) UpsertPattern(ctx context.Context, p store.PatternData) error {
	keywords, _ := json.Marshal(p.Keywords)
	variants, _ := json.Marshal(p.Variants)
	now := time.Now().UTC()
	if p.CreatedAt.IsZero() {
		p.CreatedAt = now
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO patterns (`+patternCols+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (pattern_id) DO UPDATE SET
			regex = excluded.regex,
			message_type = excluded.message_type,
			description = excluded.description,
			response_template = excluded.response_template,
			variants = excluded.variants,
			priority = excluded.priority,
			keywords = excluded.keywords,
			requires_context = excluded.requires_context,
			min_confidence = excluded.min_confidence,
			enabled = excluded.enabled,
			updated_at = excluded.updated_at`,
		p.PatternID, p.Regex, p.MessageType, p.Description, p.ResponseTemplate,
		string(variants), p.Priority, string(keywords), p.RequiresContext,
		p.MinConfidence, p.Enabled, p.CreatedAt, now)
	if err != nil {
		return fmt.Errorf("upsert pattern %q: %w", p.PatternID, err)
	}
	return nil
}

func (s *PatternStore) DisablePattern(ctx context.Context, patternID string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE patterns SET enabled = 0, updated_at = ? WHERE pattern_id = ?`,
		time.Now().UTC(), patternID)
	if err != nil {
		return fmt.Errorf("disable pattern %q: %w", patternID, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return store.ErrNotFound
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanPattern(row rowScanner) (store.PatternData, error) {
	var p store.PatternData
	var keywords, variants string
	err := row.Scan(&p.PatternID, &p.Regex, &p.MessageType, &p.Description,
		&p.ResponseTemplate, &variants, &p.Priority, &keywords,
		&p.RequiresContext, &p.MinConfidence, &p.Enabled, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return p, err
	}
	if keywords != "" {
		json.Unmarshal([]byte(keywords), &p.Keywords)
	}
	if variants != "" {
		json.Unmarshal([]byte(variants), &p.Variants)
	}
	return p, nil
}
