package engine

import (
	"fmt"
	"log/slog"

	"github.com/nextlevelbuilder/replygate/internal/bus"
)

// DecisionEngine composes the classifier's verdict with the rate limiter,
// conversation guard, and user context into a final accept/reject decision.
// Stateless across calls: all mutable state lives in the rate limiter and the
// pattern store.
type DecisionEngine struct {
	patterns *PatternStore
	limiter  *RateLimiter
	guard    *ConversationGuard
}

// NewDecisionEngine wires the decision gates together.
func NewDecisionEngine(ps *PatternStore, limiter *RateLimiter, guard *ConversationGuard) *DecisionEngine {
	return &DecisionEngine{patterns: ps, limiter: limiter, guard: guard}
}

func reject(reason string) DecisionResult {
	return DecisionResult{ShouldRespond: false, Priority: PriorityDefer, Reason: reason}
}

// Decide runs the gate sequence. Every gate short-circuits to a rejecting
// result; nothing on this path returns an error, so the caller's fallback to
// the heavier pipeline is always safe.
func (d *DecisionEngine) Decide(msgCtx MessageContext, userCtx UserContext, history bus.History) DecisionResult {
	snap, ok := d.patterns.Current()
	if !ok {
		slog.Warn("engine.decide_degraded", "reason", "no pattern snapshot")
		return reject("pattern snapshot unavailable")
	}

	if msgCtx.MatchedPatternID == "" {
		return reject("no confident pattern match")
	}
	pattern, ok := snap.Get(msgCtx.MatchedPatternID)
	if !ok {
		// Snapshot swapped between classify and decide; degrade, don't fail.
		return reject(fmt.Sprintf("pattern %q not in active snapshot", msgCtx.MatchedPatternID))
	}

	if msgCtx.Confidence < pattern.MinConfidence {
		return reject(fmt.Sprintf("confidence %.2f below pattern threshold %.2f",
			msgCtx.Confidence, pattern.MinConfidence))
	}

	if pattern.RequiresContext && len(history) == 0 {
		return reject(fmt.Sprintf("pattern %q requires conversation context", pattern.PatternID))
	}

	// The guard check is pure; run it before the limiter so a suppressed
	// message never consumes a token from the user's budget.
	if d.guard.Suppress(history) {
		return reject("conversation already escalated to AI pipeline")
	}

	if allowed, tier := d.limiter.Allow(userCtx.UserID, userCtx.IsPremium); !allowed {
		return reject(fmt.Sprintf("rate limit exceeded (%s tier)", tier))
	}

	return DecisionResult{
		ShouldRespond: true,
		Priority:      pattern.Priority,
		Reason:        fmt.Sprintf("pattern %q matched with confidence %.2f", pattern.PatternID, msgCtx.Confidence),
		PatternID:     pattern.PatternID,
	}
}
