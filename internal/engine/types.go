package engine

import (
	"errors"
	"fmt"
	"time"
)

// MessageType classifies what kind of message the user sent.
type MessageType string

const (
	TypeGreeting  MessageType = "greeting"
	TypeQuestion  MessageType = "question"
	TypeCommand   MessageType = "command"
	TypeStatement MessageType = "statement"
	TypeRequest   MessageType = "request"
	TypeFeedback  MessageType = "feedback"
	TypeUrgent    MessageType = "urgent"
	TypeSmallTalk MessageType = "small_talk"
)

// ParseMessageType validates a message type string at the admin boundary.
func ParseMessageType(s string) (MessageType, error) {
	switch t := MessageType(s); t {
	case TypeGreeting, TypeQuestion, TypeCommand, TypeStatement,
		TypeRequest, TypeFeedback, TypeUrgent, TypeSmallTalk:
		return t, nil
	}
	return "", fmt.Errorf("%w: unknown message type %q", ErrPatternInvalid, s)
}

// Priority ranks qualifying patterns and labels reply urgency.
// Lower ordinal is served first.
type Priority int

const (
	PriorityImmediate Priority = 1
	PriorityHigh      Priority = 2
	PriorityMedium    Priority = 3
	PriorityLow       Priority = 4
	PriorityDefer     Priority = 5
)

func (p Priority) String() string {
	switch p {
	case PriorityImmediate:
		return "immediate"
	case PriorityHigh:
		return "high"
	case PriorityMedium:
		return "medium"
	case PriorityLow:
		return "low"
	case PriorityDefer:
		return "defer"
	}
	return fmt.Sprintf("priority(%d)", int(p))
}

// ParsePriority validates an integer priority at the admin boundary.
// Raw integers are never trusted inside the engine.
func ParsePriority(n int) (Priority, error) {
	if n < int(PriorityImmediate) || n > int(PriorityDefer) {
		return 0, fmt.Errorf("%w: priority %d out of range [1,5]", ErrPatternInvalid, n)
	}
	return Priority(n), nil
}

// Sentinel errors for the engine. The hot decision path never returns these to
// its caller; they surface only through administrative operations.
var (
	ErrPatternInvalid           = errors.New("pattern invalid")
	ErrNoSnapshot               = errors.New("no pattern snapshot loaded")
	ErrFeedbackAlreadyRecorded  = errors.New("feedback already recorded")
	ErrPersistenceUnavailable   = errors.New("persistence unavailable")
	ErrDuplicatePatternID       = errors.New("duplicate pattern id")
)

// Pattern is a named auto-response rule: a matcher, a message-type label,
// a response template, and firing thresholds.
type Pattern struct {
	PatternID        string      `json:"pattern_id"`
	Regex            string      `json:"regex"`
	MessageType      MessageType `json:"message_type"`
	Description      string      `json:"description,omitempty"`
	ResponseTemplate string      `json:"response_template"`
	Variants         []string    `json:"variants,omitempty"` // optional alternates to ResponseTemplate
	Priority         Priority    `json:"priority"`
	Keywords         []string    `json:"keywords,omitempty"`
	RequiresContext  bool        `json:"requires_context,omitempty"`
	MinConfidence    float64     `json:"min_confidence"`
	Enabled          bool        `json:"enabled"`
	UpdatedAt        time.Time   `json:"updated_at,omitempty"`

	re *compiledMatcher // set during snapshot validation
}

// MessageContext is the classifier's verdict for one inbound message.
// Immutable after creation.
type MessageContext struct {
	Text               string      `json:"text"` // normalized
	DetectedType       MessageType `json:"detected_type"`
	Confidence         float64     `json:"confidence"`
	MatchedPatternID   string      `json:"matched_pattern_id,omitempty"` // empty when only a lexical fallback fired
	ConversationLength int         `json:"conversation_length"`
	HasUrgencyMarkers  bool        `json:"has_urgency_markers,omitempty"`
	Sentiment          string      `json:"sentiment,omitempty"` // "positive", "negative", "neutral"
}

// UserContext describes the sender. Owned by the calling collaborator; the
// engine reads it and only mutates the embedded recent-response window.
type UserContext struct {
	UserID    string            `json:"user_id"`
	IsPremium bool              `json:"is_premium"`
	Metadata  map[string]string `json:"metadata,omitempty"`

	// Recent holds timestamps of auto-responses already served to this user.
	// Updated by the engine on accept; nil is valid (no history tracked).
	Recent *ResponseWindow `json:"-"`
}

// DecisionResult is the engine's final verdict for one message.
type DecisionResult struct {
	ShouldRespond bool     `json:"should_respond"`
	Priority      Priority `json:"priority"`
	Reason        string   `json:"reason"` // audit/debug only, not user-facing
	PatternID     string   `json:"pattern_id,omitempty"`
}

// ResponseWindow is a bounded ring buffer of recent auto-response timestamps.
// Not safe for concurrent use; callers scope one window per user context.
type ResponseWindow struct {
	at   []time.Time
	next int
	size int
}

// NewResponseWindow creates a window tracking at most n timestamps.
func NewResponseWindow(n int) *ResponseWindow {
	if n < 1 {
		n = 1
	}
	return &ResponseWindow{at: make([]time.Time, n)}
}

// Record appends a timestamp, evicting the oldest when full.
func (w *ResponseWindow) Record(t time.Time) {
	w.at[w.next] = t
	w.next = (w.next + 1) % len(w.at)
	if w.size < len(w.at) {
		w.size++
	}
}

// CountSince returns how many recorded timestamps are at or after cutoff.
func (w *ResponseWindow) CountSince(cutoff time.Time) int {
	n := 0
	for i := 0; i < w.size; i++ {
		if !w.at[i].Before(cutoff) {
			n++
		}
	}
	return n
}

// Len returns the number of tracked timestamps.
func (w *ResponseWindow) Len() int { return w.size }
