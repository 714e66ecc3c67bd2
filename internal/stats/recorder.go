// Package stats persists auto-response outcomes and aggregates acceptance
// rates used to tune patterns over time. Writes are queued so the decision
// hot path never blocks on storage.
package stats

import (
	"context"
	"log/slog"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/nextlevelbuilder/replygate/internal/store"
)

const (
	// maxStoredTextLen truncates message/response text before persisting.
	maxStoredTextLen = 500

	defaultQueueSize = 256

	// insertTimeout bounds one background insert attempt.
	insertTimeout = 5 * time.Second
)

// Recorder persists stat records asynchronously. RecordPending issues the id
// immediately and enqueues the insert best-effort; a full queue drops the
// record rather than stalling the caller. Feedback and summaries go straight
// to storage since they are not latency-critical.
type Recorder struct {
	store store.StatStore
	queue chan store.StatData
	wg    sync.WaitGroup

	// mu guards closed AND is held (read) across every queue send, so Close
	// cannot close the channel while a send is in flight.
	mu     sync.RWMutex
	closed bool
}

// NewRecorder starts the recorder's background writer. queueSize <= 0 uses
// the default.
func NewRecorder(st store.StatStore, queueSize int) *Recorder {
	if queueSize <= 0 {
		queueSize = defaultQueueSize
	}
	r := &Recorder{
		store: st,
		queue: make(chan store.StatData, queueSize),
	}
	r.wg.Add(1)
	go r.run()
	return r
}

// RecordPending registers an accepted decision as a pending record and
// returns its stat id. Never blocks: if the write queue is full the record
// is dropped and logged, and the id is still returned (feedback against it
// will then fail closed, which is safe).
func (r *Recorder) RecordPending(ctx context.Context, patternID, userID, messageText, responseText string) string {
	rec := store.StatData{
		ID:           uuid.Must(uuid.NewV7()).String(),
		PatternID:    patternID,
		UserID:       userID,
		MessageText:  truncate(messageText),
		ResponseText: truncate(responseText),
		CreatedAt:    time.Now().UTC(),
	}

	r.mu.RLock()
	if !r.closed {
		select {
		case r.queue <- rec:
		default:
			slog.Warn("stats.dropped", "stat_id", rec.ID, "pattern_id", patternID)
		}
	}
	r.mu.RUnlock()
	return rec.ID
}

// RecordFeedback resolves a pending record. Returns false when the record is
// already resolved (double submission) or unknown; it never overwrites.
func (r *Recorder) RecordFeedback(ctx context.Context, statID string, accepted bool, feedbackText string) (bool, error) {
	return r.store.ResolveStat(ctx, statID, accepted, truncate(feedbackText))
}

// Summary aggregates acceptance metrics over [since, until), optionally
// scoped to one pattern.
func (r *Recorder) Summary(ctx context.Context, patternID string, since, until time.Time) (*store.Summary, error) {
	return r.store.Summarize(ctx, patternID, since, until)
}

// Close drains the queue and stops the background writer. Safe against
// concurrent RecordPending calls: once the write lock is acquired, every
// in-flight send has completed and later calls observe closed.
func (r *Recorder) Close() {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return
	}
	r.closed = true
	r.mu.Unlock()

	close(r.queue)
	r.wg.Wait()
}

func (r *Recorder) run() {
	defer r.wg.Done()
	for rec := range r.queue {
		r.insert(rec)
	}
}

// insert writes one record, retrying once before dropping it. Stat loss is
// acceptable; blocking the pipeline is not.
func (r *Recorder) insert(rec store.StatData) {
	for attempt := 0; attempt < 2; attempt++ {
		ctx, cancel := context.WithTimeout(context.Background(), insertTimeout)
		err := r.store.InsertStat(ctx, rec)
		cancel()
		if err == nil {
			return
		}
		if attempt == 1 {
			slog.Error("stats.insert_failed", "stat_id", rec.ID, "error", err)
		}
	}
}

func truncate(s string) string {
	if len(s) <= maxStoredTextLen {
		return s
	}
	cut := maxStoredTextLen
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut]
}
