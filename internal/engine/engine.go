// Package engine implements the auto-response decision core: pattern
// snapshots, message classification with confidence scoring, per-user rate
// limiting, conversation-loop suppression, and deterministic response
// rendering. The surrounding gateway delivers nothing itself — it hands an
// accepted reply back to the channel collaborator, whose later feedback is
// recorded against the issued stat id.
package engine

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/nextlevelbuilder/replygate/internal/bus"
)

// StatsSink receives decision outcomes. Implementations must be best-effort
// and non-blocking: the hot path never waits on persistence.
type StatsSink interface {
	// RecordPending registers an accepted decision and returns the stat id
	// the caller uses for later feedback submission.
	RecordPending(ctx context.Context, patternID, userID, messageText, responseText string) string
}

// Config collects the tunable knobs of the decision core.
type Config struct {
	Tunables  Tunables        `json:"tunables,omitempty"`
	RateLimit RateLimitConfig `json:"rate_limit,omitempty"`
	Guard     GuardConfig     `json:"guard,omitempty"`
}

// Reply is the engine's answer for one inbound message: the decision, the
// classification it was based on, and — when accepted — the rendered
// response plus the stat id for feedback.
type Reply struct {
	Decision       DecisionResult `json:"decision"`
	MessageContext MessageContext `json:"message_context"`
	Response       string         `json:"response,omitempty"`
	StatID         string         `json:"stat_id,omitempty"`
}

// Engine is the decision surface exposed to the message-handling
// collaborator. One shared instance serves all concurrent requests.
type Engine struct {
	patterns   *PatternStore
	classifier *Classifier
	decider    *DecisionEngine
	renderer   *Renderer
	stats      StatsSink // nil = stats disabled
	tracer     trace.Tracer
}

// New assembles the engine around a pattern store. sink may be nil.
func New(ps *PatternStore, cfg Config, sink StatsSink) *Engine {
	if cfg.Tunables == (Tunables{}) {
		cfg.Tunables = DefaultTunables()
	}
	return &Engine{
		patterns:   ps,
		classifier: NewClassifier(ps, cfg.Tunables),
		decider:    NewDecisionEngine(ps, NewRateLimiter(cfg.RateLimit), NewConversationGuard(cfg.Guard)),
		renderer:   NewRenderer(),
		stats:      sink,
		tracer:     otel.Tracer("github.com/nextlevelbuilder/replygate/internal/engine"),
	}
}

// Patterns exposes the underlying pattern store for admin surfaces.
func (e *Engine) Patterns() *PatternStore { return e.patterns }

// Classifier exposes the classifier for diagnostic endpoints.
func (e *Engine) Classifier() *Classifier { return e.classifier }

// Renderer exposes the renderer, mainly so tests can pin its clock.
func (e *Engine) Renderer() *Renderer { return e.renderer }

// Respond runs the full decision path for one inbound message: classify,
// gate, render, record. It never returns an error; every failure mode
// degrades to a rejecting Reply so the caller can fall back to the heavier
// pipeline.
func (e *Engine) Respond(ctx context.Context, msg bus.InboundMessage, userCtx UserContext, history bus.History) Reply {
	ctx, span := e.tracer.Start(ctx, "engine.respond")
	defer span.End()

	msgCtx := e.classifier.Classify(msg.Text, len(history))
	decision := e.decider.Decide(msgCtx, userCtx, history)

	span.SetAttributes(
		attribute.String("replygate.user_id", userCtx.UserID),
		attribute.String("replygate.detected_type", string(msgCtx.DetectedType)),
		attribute.Float64("replygate.confidence", msgCtx.Confidence),
		attribute.Bool("replygate.accepted", decision.ShouldRespond),
		attribute.String("replygate.reason", decision.Reason),
	)

	reply := Reply{Decision: decision, MessageContext: msgCtx}
	if !decision.ShouldRespond {
		return reply
	}

	snap, ok := e.patterns.Current()
	if !ok {
		reply.Decision = reject("pattern snapshot unavailable")
		return reply
	}
	pattern, ok := snap.Get(decision.PatternID)
	if !ok {
		reply.Decision = reject("pattern vanished from active snapshot")
		return reply
	}

	span.SetAttributes(attribute.String("replygate.pattern_id", pattern.PatternID))

	reply.Response = e.renderer.Render(pattern, msgCtx, userCtx, msg.MessageID)
	if userCtx.Recent != nil {
		userCtx.Recent.Record(time.Now())
	}
	if e.stats != nil {
		reply.StatID = e.stats.RecordPending(ctx, pattern.PatternID, userCtx.UserID, msgCtx.Text, reply.Response)
	}
	return reply
}
