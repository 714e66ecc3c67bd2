package http

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/nextlevelbuilder/replygate/internal/stats"
)

// StatsHandler exposes aggregate acceptance metrics and per-record feedback
// submission.
type StatsHandler struct {
	recorder *stats.Recorder
	token    string
}

// NewStatsHandler creates a handler for stats endpoints.
func NewStatsHandler(recorder *stats.Recorder, token string) *StatsHandler {
	return &StatsHandler{recorder: recorder, token: token}
}

// RegisterRoutes registers all stats routes on the given mux.
func (h *StatsHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /v1/stats/summary", requireAuth(h.token, h.handleSummary))
	mux.HandleFunc("POST /v1/stats/{id}/feedback", requireAuth(h.token, h.handleFeedback))
}

func (h *StatsHandler) handleSummary(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	until := time.Now().UTC()
	since := until.AddDate(0, 0, -7)
	if v := q.Get("since"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			writeError(w, http.StatusBadRequest, "since: want RFC3339 timestamp")
			return
		}
		since = t
	}
	if v := q.Get("until"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			writeError(w, http.StatusBadRequest, "until: want RFC3339 timestamp")
			return
		}
		until = t
	}

	summary, err := h.recorder.Summary(r.Context(), q.Get("pattern_id"), since, until)
	if err != nil {
		slog.Error("stats.summary", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to aggregate stats")
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

type feedbackRequest struct {
	Accepted bool   `json:"accepted"`
	Feedback string `json:"feedback,omitempty"`
}

func (h *StatsHandler) handleFeedback(w http.ResponseWriter, r *http.Request) {
	var req feedbackRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	id := r.PathValue("id")
	ok, err := h.recorder.RecordFeedback(r.Context(), id, req.Accepted, req.Feedback)
	if err != nil {
		slog.Error("stats.feedback", "stat_id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to record feedback")
		return
	}
	if !ok {
		// Already resolved or unknown: fail closed, never overwrite.
		writeError(w, http.StatusConflict, "feedback already recorded or stat unknown")
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"stat_id": id, "recorded": true})
}
