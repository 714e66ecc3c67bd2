package sqlite

import (
	"database/sql"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/nextlevelbuilder/replygate/internal/store"
)

func newTestDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := OpenDB(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	schema, err := os.ReadFile(filepath.Join("..", "..", "..", "migrations", "sqlite", "0001_init.up.sql"))
	if err != nil {
		t.Fatalf("read schema: %v", err)
	}
	if _, err := db.Exec(string(schema)); err != nil {
		t.Fatalf("apply schema: %v", err)
	}
	return db
}

func testPattern(id string) store.PatternData {
	return store.PatternData{
		PatternID:        id,
		Regex:            `^hello`,
		MessageType:      "greeting",
		Description:      "test pattern",
		ResponseTemplate: "hi there",
		Variants:         []string{"hey", "howdy"},
		Priority:         2,
		Keywords:         []string{"hello", "hi"},
		RequiresContext:  false,
		MinConfidence:    0.9,
		Enabled:          true,
	}
}

func TestPatternStore_RoundTrip(t *testing.T) {
	ps := NewPatternStore(newTestDB(t))
	ctx := t.Context()

	orig := testPattern("greeting_hello")
	if err := ps.UpsertPattern(ctx, orig); err != nil {
		t.Fatalf("upsert: %v", err)
	}

	got, err := ps.GetPattern(ctx, "greeting_hello")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Regex != orig.Regex || got.MessageType != orig.MessageType ||
		got.ResponseTemplate != orig.ResponseTemplate || got.Priority != orig.Priority ||
		got.MinConfidence != orig.MinConfidence || !got.Enabled {
		t.Errorf("round trip mismatch: %+v", got)
	}
	if len(got.Keywords) != 2 || got.Keywords[0] != "hello" {
		t.Errorf("keywords = %v", got.Keywords)
	}
	if len(got.Variants) != 2 || got.Variants[1] != "howdy" {
		t.Errorf("variants = %v", got.Variants)
	}
	if got.CreatedAt.IsZero() || got.UpdatedAt.IsZero() {
		t.Error("timestamps not set on insert")
	}
}

func TestPatternStore_UpsertReplaces(t *testing.T) {
	ps := NewPatternStore(newTestDB(t))
	ctx := t.Context()

	p := testPattern("p1")
	if err := ps.UpsertPattern(ctx, p); err != nil {
		t.Fatal(err)
	}
	p.ResponseTemplate = "updated reply"
	p.MinConfidence = 0.5
	if err := ps.UpsertPattern(ctx, p); err != nil {
		t.Fatal(err)
	}

	got, err := ps.GetPattern(ctx, "p1")
	if err != nil {
		t.Fatal(err)
	}
	if got.ResponseTemplate != "updated reply" || got.MinConfidence != 0.5 {
		t.Errorf("upsert did not replace: %+v", got)
	}

	all, err := ps.ListPatterns(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(all) != 1 {
		t.Errorf("upsert created a second row: %d rows", len(all))
	}
}

func TestPatternStore_DisableKeepsRow(t *testing.T) {
	ps := NewPatternStore(newTestDB(t))
	ctx := t.Context()

	if err := ps.UpsertPattern(ctx, testPattern("retired")); err != nil {
		t.Fatal(err)
	}
	if err := ps.DisablePattern(ctx, "retired"); err != nil {
		t.Fatalf("disable: %v", err)
	}

	got, err := ps.GetPattern(ctx, "retired")
	if err != nil {
		t.Fatalf("disabled pattern deleted: %v", err)
	}
	if got.Enabled {
		t.Error("pattern still enabled after disable")
	}

	if err := ps.DisablePattern(ctx, "missing"); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("disable missing = %v, want ErrNotFound", err)
	}
}

func TestPatternStore_GetMissing(t *testing.T) {
	ps := NewPatternStore(newTestDB(t))
	if _, err := ps.GetPattern(t.Context(), "nope"); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("get missing = %v, want ErrNotFound", err)
	}
}

func TestPatternStore_ListOrdered(t *testing.T) {
	ps := NewPatternStore(newTestDB(t))
	ctx := t.Context()

	for _, id := range []string{"zeta", "alpha", "mid"} {
		if err := ps.UpsertPattern(ctx, testPattern(id)); err != nil {
			t.Fatal(err)
		}
	}
	all, err := ps.ListPatterns(ctx)
	if err != nil {
		t.Fatal(err)
	}
	want := []string{"alpha", "mid", "zeta"}
	for i, id := range want {
		if all[i].PatternID != id {
			t.Fatalf("order = %v, want %v", all, want)
		}
	}
}

func newStatFixture(t *testing.T) (*PatternStore, *StatStore) {
	t.Helper()
	db := newTestDB(t)
	ps, ss := NewPatternStore(db), NewStatStore(db)
	if err := ps.UpsertPattern(t.Context(), testPattern("greeting_hello")); err != nil {
		t.Fatal(err)
	}
	return ps, ss
}

func insertStat(t *testing.T, ss *StatStore, createdAt time.Time) string {
	t.Helper()
	rec := store.StatData{
		ID:           uuid.Must(uuid.NewV7()).String(),
		PatternID:    "greeting_hello",
		UserID:       "u1",
		MessageText:  "hello",
		ResponseText: "hi there",
		CreatedAt:    createdAt,
	}
	if err := ss.InsertStat(t.Context(), rec); err != nil {
		t.Fatalf("insert stat: %v", err)
	}
	return rec.ID
}

func TestStatStore_InsertAndResolve(t *testing.T) {
	_, ss := newStatFixture(t)
	ctx := t.Context()

	id := insertStat(t, ss, time.Now().UTC())

	rec, err := ss.GetStat(ctx, id)
	if err != nil {
		t.Fatal(err)
	}
	if rec.WasAccepted != nil {
		t.Error("fresh stat is not pending")
	}

	ok, err := ss.ResolveStat(ctx, id, true, "useful")
	if err != nil || !ok {
		t.Fatalf("resolve = (%v, %v)", ok, err)
	}
	rec, _ = ss.GetStat(ctx, id)
	if rec.WasAccepted == nil || !*rec.WasAccepted || rec.FeedbackText != "useful" {
		t.Errorf("resolution not persisted: %+v", rec)
	}

	// Double feedback never overwrites.
	ok, err = ss.ResolveStat(ctx, id, false, "actually no")
	if err != nil {
		t.Fatal(err)
	}
	if ok {
		t.Error("double resolve reported success")
	}
	rec, _ = ss.GetStat(ctx, id)
	if !*rec.WasAccepted || rec.FeedbackText != "useful" {
		t.Error("double resolve overwrote the record")
	}

	// Unknown id resolves to false without error.
	ok, err = ss.ResolveStat(ctx, "missing", true, "")
	if err != nil || ok {
		t.Errorf("resolve missing = (%v, %v), want (false, nil)", ok, err)
	}
}

func TestStatStore_Summarize(t *testing.T) {
	_, ss := newStatFixture(t)
	ctx := t.Context()
	now := time.Now().UTC()

	accepted := insertStat(t, ss, now)
	rejected := insertStat(t, ss, now)
	insertStat(t, ss, now)                     // stays pending
	outside := insertStat(t, ss, now.Add(-48*time.Hour)) // outside window

	ss.ResolveStat(ctx, accepted, true, "")
	ss.ResolveStat(ctx, rejected, false, "")
	ss.ResolveStat(ctx, outside, true, "")

	sum, err := ss.Summarize(ctx, "", now.Add(-time.Hour), now.Add(time.Hour))
	if err != nil {
		t.Fatal(err)
	}
	if sum.Total != 3 || sum.Accepted != 1 || sum.Rejected != 1 || sum.Pending != 1 {
		t.Errorf("summary = %+v", sum)
	}
	if sum.AcceptanceRate != 0.5 {
		t.Errorf("acceptance rate = %v, want 0.5 (pending excluded)", sum.AcceptanceRate)
	}
	per, ok := sum.Patterns["greeting_hello"]
	if !ok || per.Total != 3 || per.Accepted != 1 {
		t.Errorf("per-pattern summary = %+v", sum.Patterns)
	}

	// Pattern filter with no matching rows yields an empty summary.
	sum, err = ss.Summarize(ctx, "other_pattern", now.Add(-time.Hour), now.Add(time.Hour))
	if err != nil {
		t.Fatal(err)
	}
	if sum.Total != 0 || sum.AcceptanceRate != 0 {
		t.Errorf("filtered summary = %+v", sum)
	}
}
