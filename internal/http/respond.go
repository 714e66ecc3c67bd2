package http

import (
	"encoding/json"
	"net/http"
	"unicode/utf8"

	"github.com/nextlevelbuilder/replygate/internal/bus"
	"github.com/nextlevelbuilder/replygate/internal/engine"
)

// RespondHandler exposes the decision surface to the message-handling
// collaborator. It decides; it never delivers.
type RespondHandler struct {
	engine   *engine.Engine
	token    string
	maxChars int
}

// NewRespondHandler creates the decision endpoint handler.
func NewRespondHandler(e *engine.Engine, token string, maxChars int) *RespondHandler {
	if maxChars <= 0 {
		maxChars = 8000
	}
	return &RespondHandler{engine: e, token: token, maxChars: maxChars}
}

// RegisterRoutes registers the decision route on the given mux.
func (h *RespondHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /v1/respond", requireAuth(h.token, h.handleRespond))
}

type respondRequest struct {
	MessageID string      `json:"message_id,omitempty"`
	UserID    string      `json:"user_id"`
	Text      string      `json:"text"`
	IsPremium bool        `json:"is_premium,omitempty"`
	History   bus.History `json:"history,omitempty"`
}

type respondResponse struct {
	ShouldRespond bool    `json:"should_respond"`
	Priority      string  `json:"priority"`
	Reason        string  `json:"reason"`
	PatternID     string  `json:"pattern_id,omitempty"`
	DetectedType  string  `json:"detected_type"`
	Confidence    float64 `json:"confidence"`
	Response      string  `json:"response,omitempty"`
	StatID        string  `json:"stat_id,omitempty"`
}

func (h *RespondHandler) handleRespond(w http.ResponseWriter, r *http.Request) {
	var req respondRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if req.UserID == "" {
		writeError(w, http.StatusBadRequest, "user_id required")
		return
	}
	if len(req.Text) > h.maxChars {
		cut := h.maxChars
		for cut > 0 && !utf8.RuneStart(req.Text[cut]) {
			cut--
		}
		req.Text = req.Text[:cut]
	}

	reply := h.engine.Respond(r.Context(), bus.InboundMessage{
		MessageID: req.MessageID,
		UserID:    req.UserID,
		Text:      req.Text,
		IsPremium: req.IsPremium,
	}, engine.UserContext{
		UserID:    req.UserID,
		IsPremium: req.IsPremium,
	}, req.History)

	writeJSON(w, http.StatusOK, respondResponse{
		ShouldRespond: reply.Decision.ShouldRespond,
		Priority:      reply.Decision.Priority.String(),
		Reason:        reply.Decision.Reason,
		PatternID:     reply.Decision.PatternID,
		DetectedType:  string(reply.MessageContext.DetectedType),
		Confidence:    reply.MessageContext.Confidence,
		Response:      reply.Response,
		StatID:        reply.StatID,
	})
}
