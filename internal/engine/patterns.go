package engine

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"sort"
	"strings"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/nextlevelbuilder/replygate/internal/store"
)

const (
	// maxRegexLen caps admin-supplied expressions. Go regexps are RE2 (linear
	// time, no backtracking), so the remaining DoS surface is sheer size.
	maxRegexLen = 1024

	// canaryBudget bounds a single canary match during validation.
	canaryBudget = 5 * time.Millisecond

	// matchBudget bounds one matcher run on the hot path. A pattern that
	// exceeds it is flagged degraded and skipped from then on.
	matchBudget = 2 * time.Millisecond
)

// canaryInputs exercise each candidate matcher before it is admitted to a
// snapshot. The long line approximates the worst input the classifier will
// feed a matcher after normalization.
var canaryInputs = []string{
	"",
	"hello there, how are you doing today?",
	"/help me asap!! this is urgent " + strings.Repeat("aa aaaa ", 64),
}

type compiledMatcher struct {
	re       *regexp.Regexp
	degraded atomic.Bool
}

// match runs the matcher against normalized text. Runs that blow the per-match
// budget poison the matcher: it reports non-match for the rest of the
// snapshot's life.
func (m *compiledMatcher) match(text string) bool {
	if m.degraded.Load() {
		return false
	}
	start := time.Now()
	ok := m.re.MatchString(text)
	if time.Since(start) > matchBudget {
		if m.degraded.CompareAndSwap(false, true) {
			slog.Warn("patterns.matcher_degraded", "regex", m.re.String())
		}
		return false
	}
	return ok
}

// Snapshot is an immutable, fully-validated pattern set. Readers share it
// without locking; writers build a replacement and swap the pointer.
type Snapshot struct {
	ID       string
	LoadedAt time.Time

	// Patterns holds enabled and disabled patterns sorted by PatternID, so
	// classification order (and therefore tie-breaking) is deterministic.
	Patterns []*Pattern
	byID     map[string]*Pattern
}

// Get returns the pattern with the given id, if present.
func (s *Snapshot) Get(patternID string) (*Pattern, bool) {
	p, ok := s.byID[patternID]
	return p, ok
}

// Enabled returns how many patterns in the snapshot are enabled.
func (s *Snapshot) Enabled() int {
	n := 0
	for _, p := range s.Patterns {
		if p.Enabled {
			n++
		}
	}
	return n
}

// PatternStore holds the active pattern snapshot and mediates persistence.
// Current is lock-free; Load/Reload/Sync are infrequent and copy-then-swap.
type PatternStore struct {
	cur     atomic.Pointer[Snapshot]
	persist store.PatternStore // nil in ephemeral mode (tests, dry runs)
}

// NewPatternStore creates an empty store. No snapshot is published until the
// first Load or ReloadFromStore.
func NewPatternStore(persist store.PatternStore) *PatternStore {
	return &PatternStore{persist: persist}
}

// Current returns the active snapshot. ok is false before the first load.
func (ps *PatternStore) Current() (*Snapshot, bool) {
	s := ps.cur.Load()
	return s, s != nil
}

// Load validates the given patterns, builds a fresh snapshot off to the side,
// and atomically publishes it. Patterns that fail validation are excluded and
// reported via the returned errors; they never abort the rest of the load.
func (ps *PatternStore) Load(patterns []Pattern) (string, []error) {
	snap := &Snapshot{
		ID:       uuid.Must(uuid.NewV7()).String(),
		LoadedAt: time.Now().UTC(),
		byID:     make(map[string]*Pattern, len(patterns)),
	}

	var errs []error
	for i := range patterns {
		p := patterns[i] // copy; the snapshot owns its patterns
		if err := validatePattern(&p); err != nil {
			errs = append(errs, fmt.Errorf("pattern %q: %w", p.PatternID, err))
			slog.Warn("patterns.excluded", "pattern_id", p.PatternID, "error", err)
			continue
		}
		if _, dup := snap.byID[p.PatternID]; dup {
			errs = append(errs, fmt.Errorf("pattern %q: %w", p.PatternID, ErrDuplicatePatternID))
			continue
		}
		snap.byID[p.PatternID] = &p
		snap.Patterns = append(snap.Patterns, &p)
	}

	sort.Slice(snap.Patterns, func(i, j int) bool {
		return snap.Patterns[i].PatternID < snap.Patterns[j].PatternID
	})

	ps.cur.Store(snap)
	slog.Info("patterns.loaded", "snapshot_id", snap.ID,
		"patterns", len(snap.Patterns), "enabled", snap.Enabled(), "excluded", len(errs))
	return snap.ID, errs
}

// ReloadFromStore re-reads the full pattern table and publishes a new
// snapshot. On persistence failure the last-good snapshot stays active.
func (ps *PatternStore) ReloadFromStore(ctx context.Context) (int, error) {
	if ps.persist == nil {
		return 0, fmt.Errorf("reload: %w", ErrPersistenceUnavailable)
	}
	rows, err := ps.persist.ListPatterns(ctx)
	if err != nil {
		slog.Error("patterns.reload_failed", "error", err)
		return 0, fmt.Errorf("%w: %v", ErrPersistenceUnavailable, err)
	}
	patterns := make([]Pattern, 0, len(rows))
	for _, row := range rows {
		p, convErr := PatternFromData(row)
		if convErr != nil {
			slog.Warn("patterns.row_skipped", "pattern_id", row.PatternID, "error", convErr)
			continue
		}
		patterns = append(patterns, p)
	}
	ps.Load(patterns)
	snap, _ := ps.Current()
	return len(snap.Patterns), nil
}

// SyncToStore writes the current in-memory snapshot back to persistence.
func (ps *PatternStore) SyncToStore(ctx context.Context) (int, error) {
	if ps.persist == nil {
		return 0, fmt.Errorf("sync: %w", ErrPersistenceUnavailable)
	}
	snap, ok := ps.Current()
	if !ok {
		return 0, ErrNoSnapshot
	}
	count := 0
	for _, p := range snap.Patterns {
		if err := ps.persist.UpsertPattern(ctx, PatternToData(*p)); err != nil {
			return count, fmt.Errorf("%w: upsert %q: %v", ErrPersistenceUnavailable, p.PatternID, err)
		}
		count++
	}
	slog.Info("patterns.synced", "count", count)
	return count, nil
}

// Validate checks a pattern exactly the way snapshot loading does, so admin
// surfaces can reject bad input before persisting it.
func Validate(p *Pattern) error {
	return validatePattern(p)
}

// validatePattern compiles the matcher, runs it against canary inputs under a
// time budget, and checks field invariants. The compiled matcher is attached
// to the pattern on success.
func validatePattern(p *Pattern) error {
	if p.PatternID == "" {
		return fmt.Errorf("%w: empty pattern_id", ErrPatternInvalid)
	}
	if p.MinConfidence < 0 || p.MinConfidence > 1 {
		return fmt.Errorf("%w: min_confidence %v outside [0,1]", ErrPatternInvalid, p.MinConfidence)
	}
	if _, err := ParsePriority(int(p.Priority)); err != nil {
		return err
	}
	if _, err := ParseMessageType(string(p.MessageType)); err != nil {
		return err
	}
	if len(p.Regex) == 0 || len(p.Regex) > maxRegexLen {
		return fmt.Errorf("%w: regex length %d outside (0,%d]", ErrPatternInvalid, len(p.Regex), maxRegexLen)
	}
	re, err := regexp.Compile("(?i)" + p.Regex)
	if err != nil {
		return fmt.Errorf("%w: compile: %v", ErrPatternInvalid, err)
	}
	for _, canary := range canaryInputs {
		start := time.Now()
		re.MatchString(canary)
		if elapsed := time.Since(start); elapsed > canaryBudget {
			return fmt.Errorf("%w: canary match took %v (budget %v)", ErrPatternInvalid, elapsed, canaryBudget)
		}
	}
	p.re = &compiledMatcher{re: re}
	return nil
}

// PatternFromData converts a persisted row into an engine pattern, validating
// enum fields at the boundary.
func PatternFromData(d store.PatternData) (Pattern, error) {
	mt, err := ParseMessageType(d.MessageType)
	if err != nil {
		return Pattern{}, err
	}
	prio, err := ParsePriority(d.Priority)
	if err != nil {
		return Pattern{}, err
	}
	return Pattern{
		PatternID:        d.PatternID,
		Regex:            d.Regex,
		MessageType:      mt,
		Description:      d.Description,
		ResponseTemplate: d.ResponseTemplate,
		Variants:         d.Variants,
		Priority:         prio,
		Keywords:         d.Keywords,
		RequiresContext:  d.RequiresContext,
		MinConfidence:    d.MinConfidence,
		Enabled:          d.Enabled,
		UpdatedAt:        d.UpdatedAt,
	}, nil
}

// PatternToData converts an engine pattern to its persisted form.
func PatternToData(p Pattern) store.PatternData {
	return store.PatternData{
		PatternID:        p.PatternID,
		Regex:            p.Regex,
		MessageType:      string(p.MessageType),
		Description:      p.Description,
		ResponseTemplate: p.ResponseTemplate,
		Variants:         p.Variants,
		Priority:         int(p.Priority),
		Keywords:         p.Keywords,
		RequiresContext:  p.RequiresContext,
		MinConfidence:    p.MinConfidence,
		Enabled:          p.Enabled,
		UpdatedAt:        p.UpdatedAt,
	}
}
