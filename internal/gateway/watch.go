package gateway

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/adhocore/gronx"
	"github.com/fsnotify/fsnotify"
	"github.com/titanous/json5"

	"github.com/nextlevelbuilder/replygate/internal/engine"
)

// loadSeedFile parses the JSON5 seed file, publishes a fresh snapshot, and
// upserts the loaded patterns into persistence. Stat rows reference patterns
// by id with a foreign key, so a snapshot-only pattern would make every stat
// insert fail. Invalid entries are excluded by Load and logged; they never
// abort the rest.
func (s *Server) loadSeedFile(ctx context.Context) error {
	data, err := os.ReadFile(s.cfg.Patterns.SeedFile)
	if err != nil {
		return err
	}
	var patterns []engine.Pattern
	if err := json5.Unmarshal(data, &patterns); err != nil {
		return err
	}
	snapshotID, errs := s.patterns.Load(patterns)
	slog.Info("patterns.seed_loaded", "file", s.cfg.Patterns.SeedFile,
		"snapshot_id", snapshotID, "excluded", len(errs))
	if _, err := s.patterns.SyncToStore(ctx); err != nil {
		return fmt.Errorf("persist seed patterns: %w", err)
	}
	return nil
}

// watchSeedFile hot-reloads the pattern snapshot when the seed file changes.
// Editors replace files rather than write in place, so Create counts too.
// Events are debounced; a failed reload keeps the last-good snapshot.
func (s *Server) watchSeedFile(ctx context.Context) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		slog.Error("patterns.watch_failed", "error", err)
		return
	}
	defer watcher.Close()

	if err := watcher.Add(s.cfg.Patterns.SeedFile); err != nil {
		slog.Error("patterns.watch_failed", "file", s.cfg.Patterns.SeedFile, "error", err)
		return
	}
	slog.Info("patterns.watching", "file", s.cfg.Patterns.SeedFile)

	var debounce *time.Timer
	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-watcher.Events:
			if !ok {
				return
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
				continue
			}
			if debounce != nil {
				debounce.Stop()
			}
			debounce = time.AfterFunc(200*time.Millisecond, func() {
				if err := s.loadSeedFile(ctx); err != nil {
					slog.Error("patterns.seed_reload_failed", "error", err)
				}
			})
		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}
			slog.Warn("patterns.watch_error", "error", err)
		}
	}
}

// runReloadSchedule periodically reloads patterns from persistence on the
// configured cron expression, picking up admin edits made by other instances.
func (s *Server) runReloadSchedule(ctx context.Context) {
	expr := s.cfg.Patterns.ReloadSchedule
	g := gronx.New()
	if !g.IsValid(expr) {
		slog.Error("patterns.bad_reload_schedule", "expr", expr)
		return
	}
	slog.Info("patterns.reload_scheduled", "expr", expr)

	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			due, err := g.IsDue(expr, now)
			if err != nil || !due {
				continue
			}
			if _, err := s.patterns.ReloadFromStore(ctx); err != nil {
				slog.Warn("patterns.scheduled_reload_failed", "error", err)
			}
		}
	}
}
