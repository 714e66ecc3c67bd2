package engine

import (
	"github.com/nextlevelbuilder/replygate/internal/bus"
)

// GuardConfig bounds how often the cheap auto-response path may pre-empt a
// conversation the AI pipeline is already handling.
type GuardConfig struct {
	// Window is how many trailing history entries are inspected.
	Window int `json:"window,omitempty"` // default 5
	// Threshold suppresses auto-response once this many of the inspected
	// entries came from the AI pipeline.
	Threshold int `json:"threshold,omitempty"` // default 2
}

// DefaultGuardConfig returns the production suppression window.
func DefaultGuardConfig() GuardConfig {
	return GuardConfig{Window: 5, Threshold: 2}
}

// ConversationGuard suppresses auto-responses for conversations already
// escalated to the AI pipeline. Stateless; the sliding window is computed
// over the caller-supplied history on every check.
type ConversationGuard struct {
	cfg GuardConfig
}

// NewConversationGuard creates a guard, falling back to defaults for zero
// or negative config values.
func NewConversationGuard(cfg GuardConfig) *ConversationGuard {
	def := DefaultGuardConfig()
	if cfg.Window <= 0 {
		cfg.Window = def.Window
	}
	if cfg.Threshold <= 0 {
		cfg.Threshold = def.Threshold
	}
	return &ConversationGuard{cfg: cfg}
}

// Suppress reports whether the trailing window of history contains enough
// AI-generated replies that the auto-response path should stand down.
func (g *ConversationGuard) Suppress(history bus.History) bool {
	start := len(history) - g.cfg.Window
	if start < 0 {
		start = 0
	}
	aiReplies := 0
	for _, entry := range history[start:] {
		if entry.FromAI() {
			aiReplies++
			if aiReplies >= g.cfg.Threshold {
				return true
			}
		}
	}
	return false
}
