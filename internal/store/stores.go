package store

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned when a pattern or stat record does not exist.
var ErrNotFound = errors.New("not found")

// PatternData is the persisted form of a response pattern. Keyed by PatternID.
// Patterns are retired by disabling, never deleted, while stat records still
// reference them.
type PatternData struct {
	PatternID        string
	Regex            string
	MessageType      string
	Description      string
	ResponseTemplate string
	Variants         []string
	Priority         int
	Keywords         []string
	RequiresContext  bool
	MinConfidence    float64
	Enabled          bool
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// StatData is one auto-response outcome record. WasAccepted is tri-state:
// nil = pending, true/false = resolved by feedback.
type StatData struct {
	ID           string
	PatternID    string
	UserID       string
	MessageText  string
	ResponseText string
	WasAccepted  *bool
	FeedbackText string
	CreatedAt    time.Time
}

// PatternSummary is the per-pattern slice of a stats summary.
type PatternSummary struct {
	Total    int `json:"total"`
	Accepted int `json:"accepted"`
}

// Summary aggregates decision outcomes over a time window.
type Summary struct {
	Total          int                       `json:"total"`
	Accepted       int                       `json:"accepted"`
	Rejected       int                       `json:"rejected"`
	Pending        int                       `json:"pending"`
	AcceptanceRate float64                   `json:"acceptance_rate"`
	Patterns       map[string]PatternSummary `json:"patterns,omitempty"`
}

// PatternStore persists the pattern table.
type PatternStore interface {
	// ListPatterns returns every persisted pattern, including disabled ones,
	// ordered by pattern id.
	ListPatterns(ctx context.Context) ([]PatternData, error)
	GetPattern(ctx context.Context, patternID string) (*PatternData, error)
	// UpsertPattern inserts or fully replaces a pattern row.
	UpsertPattern(ctx context.Context, p PatternData) error
	// DisablePattern retires a pattern without deleting it.
	DisablePattern(ctx context.Context, patternID string) error
}

// StatStore persists auto-response outcome records.
type StatStore interface {
	InsertStat(ctx context.Context, s StatData) error
	GetStat(ctx context.Context, id string) (*StatData, error)
	// ResolveStat records feedback against a still-pending record. It returns
	// false (with nil error) when the record is already resolved or missing:
	// feedback fails closed, it never overwrites.
	ResolveStat(ctx context.Context, id string, accepted bool, feedback string) (bool, error)
	// Summarize aggregates records created in [since, until), optionally
	// scoped to one pattern id.
	Summarize(ctx context.Context, patternID string, since, until time.Time) (*Summary, error)
}

// Stores is the top-level container for all storage backends.
type Stores struct {
	Patterns PatternStore
	Stats    StatStore

	// Close releases the underlying connection pool.
	Close func() error
}
