package engine

import (
	"hash/fnv"
	"strings"
	"time"
)

// Renderer turns a chosen pattern into a concrete reply string. Pure
// templating: no I/O, no side effects, and variant selection is seeded by
// (pattern_id, message_id) instead of wall-clock randomness so identical
// inputs render identical output.
type Renderer struct {
	now func() time.Time // injectable for deterministic time_of_day
}

// NewRenderer creates a renderer using the real clock.
func NewRenderer() *Renderer {
	return &Renderer{now: time.Now}
}

// WithClock overrides the clock used for the {time_of_day} placeholder.
func (r *Renderer) WithClock(now func() time.Time) *Renderer {
	r.now = now
	return r
}

// Render substitutes the template's placeholder slots and applies the
// contextual decorations (premium prefix, urgency prefix, conversation
// suffix). messageID seeds variant selection.
func (r *Renderer) Render(p *Pattern, msgCtx MessageContext, userCtx UserContext, messageID string) string {
	tmpl := r.pickVariant(p, messageID)

	replacer := strings.NewReplacer(
		"{user_id}", userCtx.UserID,
		"{time_of_day}", timeOfDay(r.now()),
		"{keywords}", strings.Join(p.Keywords, ", "),
		"{type}", string(msgCtx.DetectedType),
	)
	out := replacer.Replace(tmpl)

	if msgCtx.HasUrgencyMarkers {
		out = "🚨 " + out
	}
	if userCtx.IsPremium {
		out = "✨ " + out
	}
	if msgCtx.ConversationLength > 1 {
		out += "\n\n(Based on our conversation so far)"
	}
	return out
}

// pickVariant selects among the template and its variants deterministically.
func (r *Renderer) pickVariant(p *Pattern, messageID string) string {
	if len(p.Variants) == 0 {
		return p.ResponseTemplate
	}
	candidates := append([]string{p.ResponseTemplate}, p.Variants...)
	h := fnv.New64a()
	h.Write([]byte(p.PatternID))
	h.Write([]byte{':'})
	h.Write([]byte(messageID))
	return candidates[h.Sum64()%uint64(len(candidates))]
}

func timeOfDay(t time.Time) string {
	switch h := t.Hour(); {
	case h < 6:
		return "night"
	case h < 12:
		return "morning"
	case h < 18:
		return "afternoon"
	default:
		return "evening"
	}
}
