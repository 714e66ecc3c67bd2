package bus

import "time"

// Provenance of a conversation history entry. The decision engine only cares
// whether a prior reply came from the cheap auto-response path or from the
// heavier AI pipeline.
const (
	ProvenanceUser         = "user"
	ProvenanceAutoResponse = "auto_response"
	ProvenanceAIResponse   = "ai_response"
)

// InboundMessage is a normalized message received from a channel
// (Telegram, Discord, webhook, etc.). Channels are external collaborators;
// the gateway only consumes this shape.
type InboundMessage struct {
	MessageID string            `json:"message_id,omitempty"` // channel-assigned id, used as render seed
	Channel   string            `json:"channel,omitempty"`
	UserID    string            `json:"user_id"`
	Text      string            `json:"text"`
	IsPremium bool              `json:"is_premium,omitempty"`
	Metadata  map[string]string `json:"metadata,omitempty"`
}

// HistoryEntry is one prior turn of the conversation.
type HistoryEntry struct {
	Provenance string    `json:"provenance"` // Provenance* constants
	Text       string    `json:"text,omitempty"`
	At         time.Time `json:"at,omitempty"`
}

// History is a conversation transcript ordered oldest → newest.
type History []HistoryEntry

// FromAI reports whether the entry was produced by the AI pipeline.
func (h HistoryEntry) FromAI() bool { return h.Provenance == ProvenanceAIResponse }
