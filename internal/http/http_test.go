package http

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/nextlevelbuilder/replygate/internal/engine"
	"github.com/nextlevelbuilder/replygate/internal/stats"
	"github.com/nextlevelbuilder/replygate/internal/store"
)

// memStores is an in-memory store.PatternStore + store.StatStore for handler
// tests.
type memStores struct {
	mu       sync.Mutex
	patterns map[string]store.PatternData
	stats    map[string]store.StatData
}

func newMemStores() *memStores {
	return &memStores{
		patterns: make(map[string]store.PatternData),
		stats:    make(map[string]store.StatData),
	}
}

func (m *memStores) ListPatterns(context.Context) ([]store.PatternData, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]store.PatternData, 0, len(m.patterns))
	for _, p := range m.patterns {
		out = append(out, p)
	}
	return out, nil
}

func (m *memStores) GetPattern(_ context.Context, id string) (*store.PatternData, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.patterns[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &p, nil
}

func (m *memStores) UpsertPattern(_ context.Context, p store.PatternData) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.patterns[p.PatternID] = p
	return nil
}

func (m *memStores) DisablePattern(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.patterns[id]
	if !ok {
		return store.ErrNotFound
	}
	p.Enabled = false
	m.patterns[id] = p
	return nil
}

func (m *memStores) InsertStat(_ context.Context, s store.StatData) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stats[s.ID] = s
	return nil
}

func (m *memStores) GetStat(_ context.Context, id string) (*store.StatData, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.stats[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &s, nil
}

func (m *memStores) ResolveStat(_ context.Context, id string, accepted bool, feedback string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.stats[id]
	if !ok || s.WasAccepted != nil {
		return false, nil
	}
	s.WasAccepted = &accepted
	s.FeedbackText = feedback
	m.stats[id] = s
	return true, nil
}

func (m *memStores) Summarize(context.Context, string, time.Time, time.Time) (*store.Summary, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	sum := &store.Summary{}
	for _, s := range m.stats {
		sum.Total++
		switch {
		case s.WasAccepted == nil:
			sum.Pending++
		case *s.WasAccepted:
			sum.Accepted++
		default:
			sum.Rejected++
		}
	}
	return sum, nil
}

type testServer struct {
	mux      *http.ServeMux
	stores   *memStores
	engine   *engine.Engine
	recorder *stats.Recorder
}

func newTestServer(t *testing.T, token string) *testServer {
	t.Helper()
	stores := newMemStores()

	ps := engine.NewPatternStore(stores)
	if _, errs := ps.Load(engine.DefaultPatterns()); len(errs) > 0 {
		t.Fatalf("default patterns failed validation: %v", errs)
	}
	recorder := stats.NewRecorder(stores, 16)
	t.Cleanup(recorder.Close)
	e := engine.New(ps, engine.Config{}, recorder)

	mux := http.NewServeMux()
	NewRespondHandler(e, token, 0).RegisterRoutes(mux)
	NewPatternsHandler(stores, ps, token).RegisterRoutes(mux)
	NewStatsHandler(recorder, token).RegisterRoutes(mux)
	return &testServer{mux: mux, stores: stores, engine: e, recorder: recorder}
}

func (s *testServer) do(t *testing.T, method, path, token string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var rd *bytes.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			t.Fatal(err)
		}
		rd = bytes.NewReader(b)
	} else {
		rd = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, rd)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	s.mux.ServeHTTP(w, req)
	return w
}

func decodeBody(t *testing.T, w *httptest.ResponseRecorder, dst interface{}) {
	t.Helper()
	if err := json.NewDecoder(w.Body).Decode(dst); err != nil {
		t.Fatalf("decode response: %v (body %q)", err, w.Body.String())
	}
}

func TestAuth(t *testing.T) {
	s := newTestServer(t, "secret")

	if w := s.do(t, "GET", "/v1/patterns", "", nil); w.Code != http.StatusUnauthorized {
		t.Errorf("no token: status = %d, want 401", w.Code)
	}
	if w := s.do(t, "GET", "/v1/patterns", "wrong", nil); w.Code != http.StatusUnauthorized {
		t.Errorf("wrong token: status = %d, want 401", w.Code)
	}
	if w := s.do(t, "GET", "/v1/patterns", "secret", nil); w.Code != http.StatusOK {
		t.Errorf("valid token: status = %d, want 200", w.Code)
	}
}

func TestAuthDisabledWhenNoToken(t *testing.T) {
	s := newTestServer(t, "")
	if w := s.do(t, "GET", "/v1/patterns", "", nil); w.Code != http.StatusOK {
		t.Errorf("status = %d, want 200 with auth disabled", w.Code)
	}
}

func TestRespond(t *testing.T) {
	s := newTestServer(t, "")

	w := s.do(t, "POST", "/v1/respond", "", map[string]interface{}{
		"message_id": "m1",
		"user_id":    "alice",
		"text":       "Hello!",
	})
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", w.Code, w.Body.String())
	}
	var resp struct {
		ShouldRespond bool    `json:"should_respond"`
		Priority      string  `json:"priority"`
		PatternID     string  `json:"pattern_id"`
		DetectedType  string  `json:"detected_type"`
		Confidence    float64 `json:"confidence"`
		Response      string  `json:"response"`
		StatID        string  `json:"stat_id"`
	}
	decodeBody(t, w, &resp)
	if !resp.ShouldRespond {
		t.Fatalf("greeting rejected: %+v", resp)
	}
	if resp.PatternID != "greeting_hello" || resp.DetectedType != "greeting" {
		t.Errorf("classification = %+v", resp)
	}
	if resp.Priority != "immediate" {
		t.Errorf("priority = %q, want immediate", resp.Priority)
	}
	if resp.Response == "" || resp.StatID == "" {
		t.Errorf("accepted reply missing response/stat id: %+v", resp)
	}
}

func TestRespond_Validation(t *testing.T) {
	s := newTestServer(t, "")

	w := s.do(t, "POST", "/v1/respond", "", map[string]interface{}{"text": "hi"})
	if w.Code != http.StatusBadRequest {
		t.Errorf("missing user_id: status = %d, want 400", w.Code)
	}

	req := httptest.NewRequest("POST", "/v1/respond", strings.NewReader("{not json"))
	rec := httptest.NewRecorder()
	s.mux.ServeHTTP(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("bad json: status = %d, want 400", rec.Code)
	}
}

func TestRespond_OversizedMultibyteText(t *testing.T) {
	s := newTestServer(t, "")

	// Over the 8000-byte cap with 3-byte runes; truncation must not split a
	// rune and the request still gets a normal decision.
	w := s.do(t, "POST", "/v1/respond", "", map[string]interface{}{
		"user_id": "alice",
		"text":    strings.Repeat("世", 3000),
	})
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", w.Code, w.Body.String())
	}
	var resp struct {
		ShouldRespond bool   `json:"should_respond"`
		DetectedType  string `json:"detected_type"`
	}
	decodeBody(t, w, &resp)
	if resp.ShouldRespond {
		t.Error("unmatched text accepted")
	}
	if resp.DetectedType == "" {
		t.Error("no classification for truncated text")
	}
}

func TestPatternsCRUD(t *testing.T) {
	s := newTestServer(t, "")

	body := map[string]interface{}{
		"Regex":            "^ping",
		"MessageType":      "statement",
		"ResponseTemplate": "pong",
		"Priority":         3,
		"MinConfidence":    0.5,
		"Enabled":          true,
	}
	if w := s.do(t, "PUT", "/v1/patterns/ping_pong", "", body); w.Code != http.StatusOK {
		t.Fatalf("put: status = %d, body %s", w.Code, w.Body.String())
	}

	w := s.do(t, "GET", "/v1/patterns/ping_pong", "", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("get: status = %d", w.Code)
	}
	var got store.PatternData
	decodeBody(t, w, &got)
	if got.Regex != "^ping" || got.ResponseTemplate != "pong" {
		t.Errorf("stored pattern = %+v", got)
	}

	if w := s.do(t, "DELETE", "/v1/patterns/ping_pong", "", nil); w.Code != http.StatusOK {
		t.Fatalf("delete: status = %d", w.Code)
	}
	w = s.do(t, "GET", "/v1/patterns/ping_pong", "", nil)
	decodeBody(t, w, &got)
	if got.Enabled {
		t.Error("pattern still enabled after delete")
	}

	if w := s.do(t, "GET", "/v1/patterns/missing", "", nil); w.Code != http.StatusNotFound {
		t.Errorf("get missing: status = %d, want 404", w.Code)
	}
	if w := s.do(t, "DELETE", "/v1/patterns/missing", "", nil); w.Code != http.StatusNotFound {
		t.Errorf("delete missing: status = %d, want 404", w.Code)
	}
}

func TestPatternsUpsert_RejectsInvalid(t *testing.T) {
	s := newTestServer(t, "")

	tests := []struct {
		name string
		body map[string]interface{}
	}{
		{"bad regex", map[string]interface{}{
			"Regex": "([a-z", "MessageType": "statement", "ResponseTemplate": "x",
			"Priority": 3, "MinConfidence": 0.5,
		}},
		{"bad message type", map[string]interface{}{
			"Regex": "^x", "MessageType": "shouting", "ResponseTemplate": "x",
			"Priority": 3, "MinConfidence": 0.5,
		}},
		{"priority out of range", map[string]interface{}{
			"Regex": "^x", "MessageType": "statement", "ResponseTemplate": "x",
			"Priority": 7, "MinConfidence": 0.5,
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if w := s.do(t, "PUT", "/v1/patterns/bad", "", tt.body); w.Code != http.StatusBadRequest {
				t.Errorf("status = %d, want 400 (body %s)", w.Code, w.Body.String())
			}
		})
	}
	// Nothing invalid reached persistence.
	if w := s.do(t, "GET", "/v1/patterns/bad", "", nil); w.Code != http.StatusNotFound {
		t.Errorf("invalid pattern persisted: status = %d", w.Code)
	}
}

func TestPatternsActiveAndReload(t *testing.T) {
	s := newTestServer(t, "")

	w := s.do(t, "GET", "/v1/patterns/active", "", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("active: status = %d", w.Code)
	}
	var active struct {
		Total   int `json:"total"`
		Enabled int `json:"enabled"`
	}
	decodeBody(t, w, &active)
	if active.Total != len(engine.DefaultPatterns()) {
		t.Errorf("active total = %d, want %d", active.Total, len(engine.DefaultPatterns()))
	}

	// Sync the snapshot to persistence, then reload it back.
	w = s.do(t, "POST", "/v1/patterns/sync", "", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("sync: status = %d, body %s", w.Code, w.Body.String())
	}
	w = s.do(t, "POST", "/v1/patterns/reload", "", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("reload: status = %d, body %s", w.Code, w.Body.String())
	}
	var reload struct {
		Loaded int `json:"loaded"`
	}
	decodeBody(t, w, &reload)
	if reload.Loaded != len(engine.DefaultPatterns()) {
		t.Errorf("reloaded %d patterns, want %d", reload.Loaded, len(engine.DefaultPatterns()))
	}
}

func TestFeedbackFlow(t *testing.T) {
	s := newTestServer(t, "")

	w := s.do(t, "POST", "/v1/respond", "", map[string]interface{}{
		"message_id": "m1", "user_id": "alice", "text": "hello",
	})
	var resp struct {
		StatID string `json:"stat_id"`
	}
	decodeBody(t, w, &resp)
	if resp.StatID == "" {
		t.Fatal("no stat id issued")
	}

	// Wait for the async insert to land before submitting feedback.
	deadline := time.Now().Add(2 * time.Second)
	for {
		if _, err := s.stores.GetStat(t.Context(), resp.StatID); err == nil {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("stat record never persisted")
		}
		time.Sleep(5 * time.Millisecond)
	}

	fb := map[string]interface{}{"accepted": true, "feedback": "helpful"}
	if w := s.do(t, "POST", "/v1/stats/"+resp.StatID+"/feedback", "", fb); w.Code != http.StatusOK {
		t.Fatalf("feedback: status = %d, body %s", w.Code, w.Body.String())
	}

	// Double submission conflicts.
	if w := s.do(t, "POST", "/v1/stats/"+resp.StatID+"/feedback", "", fb); w.Code != http.StatusConflict {
		t.Errorf("double feedback: status = %d, want 409", w.Code)
	}
	// Unknown id conflicts too (fail closed).
	if w := s.do(t, "POST", "/v1/stats/no-such-id/feedback", "", fb); w.Code != http.StatusConflict {
		t.Errorf("unknown stat: status = %d, want 409", w.Code)
	}
}

func TestStatsSummary(t *testing.T) {
	s := newTestServer(t, "")

	w := s.do(t, "GET", "/v1/stats/summary", "", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("summary: status = %d", w.Code)
	}
	var sum store.Summary
	decodeBody(t, w, &sum)
	if sum.Total != 0 {
		t.Errorf("fresh summary total = %d, want 0", sum.Total)
	}

	if w := s.do(t, "GET", "/v1/stats/summary?since=not-a-time", "", nil); w.Code != http.StatusBadRequest {
		t.Errorf("bad since: status = %d, want 400", w.Code)
	}
}
