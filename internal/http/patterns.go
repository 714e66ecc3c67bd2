package http

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/nextlevelbuilder/replygate/internal/engine"
	"github.com/nextlevelbuilder/replygate/internal/store"
)

// PatternsHandler handles pattern administration: CRUD against persistence
// plus reload/sync of the in-memory snapshot. Not latency-critical, so
// unlike the decision surface it surfaces structured errors.
type PatternsHandler struct {
	persist  store.PatternStore
	patterns *engine.PatternStore
	token    string
}

// NewPatternsHandler creates a handler for pattern management endpoints.
func NewPatternsHandler(persist store.PatternStore, patterns *engine.PatternStore, token string) *PatternsHandler {
	return &PatternsHandler{persist: persist, patterns: patterns, token: token}
}

// RegisterRoutes registers all pattern management routes on the given mux.
func (h *PatternsHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /v1/patterns", requireAuth(h.token, h.handleList))
	mux.HandleFunc("GET /v1/patterns/active", requireAuth(h.token, h.handleActive))
	mux.HandleFunc("GET /v1/patterns/{id}", requireAuth(h.token, h.handleGet))
	mux.HandleFunc("PUT /v1/patterns/{id}", requireAuth(h.token, h.handleUpsert))
	mux.HandleFunc("DELETE /v1/patterns/{id}", requireAuth(h.token, h.handleDisable))
	mux.HandleFunc("POST /v1/patterns/reload", requireAuth(h.token, h.handleReload))
	mux.HandleFunc("POST /v1/patterns/sync", requireAuth(h.token, h.handleSync))
}

func (h *PatternsHandler) handleList(w http.ResponseWriter, r *http.Request) {
	rows, err := h.persist.ListPatterns(r.Context())
	if err != nil {
		slog.Error("patterns.list", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to list patterns")
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"patterns": rows, "total": len(rows)})
}

// handleActive reports the live snapshot, not persistence.
func (h *PatternsHandler) handleActive(w http.ResponseWriter, r *http.Request) {
	snap, ok := h.patterns.Current()
	if !ok {
		writeError(w, http.StatusServiceUnavailable, "no pattern snapshot loaded")
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"snapshot_id": snap.ID,
		"loaded_at":   snap.LoadedAt,
		"total":       len(snap.Patterns),
		"enabled":     snap.Enabled(),
	})
}

func (h *PatternsHandler) handleGet(w http.ResponseWriter, r *http.Request) {
	p, err := h.persist.GetPattern(r.Context(), r.PathValue("id"))
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusNotFound, "pattern not found")
		return
	}
	if err != nil {
		slog.Error("patterns.get", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to get pattern")
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (h *PatternsHandler) handleUpsert(w http.ResponseWriter, r *http.Request) {
	var data store.PatternData
	if err := json.NewDecoder(r.Body).Decode(&data); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	data.PatternID = r.PathValue("id")

	// Validate at the admin boundary: enum fields, matcher compile, canary
	// budget. Invalid patterns never reach persistence.
	p, err := engine.PatternFromData(data)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := engine.Validate(&p); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := h.persist.UpsertPattern(r.Context(), data); err != nil {
		slog.Error("patterns.upsert", "pattern_id", data.PatternID, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to save pattern")
		return
	}
	slog.Info("patterns.upserted", "pattern_id", data.PatternID)
	writeJSON(w, http.StatusOK, map[string]string{"pattern_id": data.PatternID})
}

// handleDisable retires a pattern. Rows are never physically deleted while
// stat records reference them.
func (h *PatternsHandler) handleDisable(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	err := h.persist.DisablePattern(r.Context(), id)
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusNotFound, "pattern not found")
		return
	}
	if err != nil {
		slog.Error("patterns.disable", "pattern_id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to disable pattern")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"pattern_id": id, "status": "disabled"})
}

func (h *PatternsHandler) handleReload(w http.ResponseWriter, r *http.Request) {
	count, err := h.patterns.ReloadFromStore(r.Context())
	if err != nil {
		slog.Error("patterns.reload", "error", err)
		writeError(w, http.StatusBadGateway, "reload failed; last-good snapshot kept")
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"loaded": count})
}

func (h *PatternsHandler) handleSync(w http.ResponseWriter, r *http.Request) {
	count, err := h.patterns.SyncToStore(r.Context())
	if err != nil {
		slog.Error("patterns.sync", "error", err)
		writeError(w, http.StatusBadGateway, "sync failed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"synced": count})
}
