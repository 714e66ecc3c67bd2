package pg

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/nextlevelbuilder/replygate/internal/store"
)

// StatStore implements store.StatStore on Postgres.
type StatStore struct {
	db *sql.DB
}

func NewStatStore(db *sql.DB) *StatStore {
	return &StatStore{db: db}
}

func (s *StatStore) InsertStat(ctx context.Context, rec store.StatData) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO auto_response_stats
			(id, pattern_id, user_id, message_text, response_text, was_accepted, feedback_text, created_at)
		VALUES ($1, $2, $3, $4, $5, NULL, NULL, $6)`,
		rec.ID, rec.PatternID, rec.UserID, rec.MessageText, rec.ResponseText, rec.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert stat %q: %w", rec.ID, err)
	}
	return nil
}

func (s *StatStore) GetStat(ctx context.Context, id string) (*store.StatData, error) {
	var rec store.StatData
	var accepted sql.NullBool
	var feedback sql.NullString
	err := s.db.QueryRowContext(ctx, `
		SELECT id, pattern_id, user_id, message_text, response_text, was_accepted, feedback_text, created_at
		FROM auto_response_stats WHERE id = $1`, id).
		Scan(&rec.ID, &rec.PatternID, &rec.UserID, &rec.MessageText,
			&rec.ResponseText, &accepted, &feedback, &rec.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get stat %q: %w", id, err)
	}
	if accepted.Valid {
		v := accepted.Bool
		rec.WasAccepted = &v
	}
	rec.FeedbackText = feedback.String
	return &rec, nil
}

// ResolveStat flips a pending record exactly once; the WHERE clause makes
// double feedback submissions fail closed.
func (s *StatStore) ResolveStat(ctx context.Context, id string, accepted bool, feedback string) (bool, error) {
	res, err := s.db.ExecContext(ctx, `
		UPDATE auto_response_stats
		SET was_accepted = $1, feedback_text = $2
		WHERE id = $3 AND was_accepted IS NULL`,
		accepted, feedback, id)
	if err != nil {
		return false, fmt.Errorf("resolve stat %q: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

func (s *StatStore) Summarize(ctx context.Context, patternID string, since, until time.Time) (*store.Summary, error) {
	query := `
		SELECT pattern_id, was_accepted FROM auto_response_stats
		WHERE created_at >= $1 AND created_at < $2`
	args := []any{since, until}
	if patternID != "" {
		query += ` AND pattern_id = $3`
		args = append(args, patternID)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("summarize stats: %w", err)
	}
	defer rows.Close()

	return store.AggregateOutcomes(rows)
}
