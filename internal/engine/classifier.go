package engine

import (
	"math"
	"strings"
	"unicode"
	"unicode/utf8"
)

// maxTextLen caps normalized input length. Longer messages are truncated
// before matching; they are never rejected.
const maxTextLen = 4096

// Tunables are the classifier's scoring constants. The observed behavior of
// the system only pins a few example confidence values, so these stay
// configurable rather than hard-coded.
type Tunables struct {
	// BaseConfidence is the seed confidence for any regex match.
	BaseConfidence float64 `json:"base_confidence,omitempty"`
	// KeywordBoostWeight scales the boost from the fraction of a pattern's
	// keywords found in the text. Total confidence is capped at 1.0.
	KeywordBoostWeight float64 `json:"keyword_boost_weight,omitempty"`
	// QuestionFallback is the confidence assigned when no pattern matched but
	// the text contains a question mark.
	QuestionFallback float64 `json:"question_fallback,omitempty"`
	// FeedbackFallback is the confidence assigned when no pattern matched but
	// the text contains a positive-sentiment token.
	FeedbackFallback float64 `json:"feedback_fallback,omitempty"`
	// StatementConfidence is the floor confidence for the default fallback.
	StatementConfidence float64 `json:"statement_confidence,omitempty"`
}

// DefaultTunables returns the scoring constants used in production. With
// these, a one-of-three keyword hit scores exactly 0.90 and a full keyword
// hit saturates at 1.0.
func DefaultTunables() Tunables {
	return Tunables{
		BaseConfidence:      0.80,
		KeywordBoostWeight:  0.30,
		QuestionFallback:    0.30,
		FeedbackFallback:    0.30,
		StatementConfidence: 0.10,
	}
}

var urgencyMarkers = []string{"asap", "urgent", "emergency", "critical", "!!", "now"}

var positiveTokens = []string{"thanks", "thank you", "appreciate", "awesome", "great", "love it", "well done"}

var negativeTokens = []string{"bad", "terrible", "hate", "awful", "broken"}

// Classifier scores inbound text against the active pattern snapshot.
// Classify is a pure function of (text, snapshot): no state, no locking.
type Classifier struct {
	patterns *PatternStore
	tun      Tunables
}

// NewClassifier creates a classifier reading snapshots from ps.
func NewClassifier(ps *PatternStore, tun Tunables) *Classifier {
	return &Classifier{patterns: ps, tun: tun}
}

// Normalize sanitizes raw input: invalid UTF-8 and control characters are
// stripped, whitespace collapsed, case folded, length capped. Adversarial
// input degrades, it never errors.
func Normalize(text string) string {
	text = strings.ToValidUTF8(text, "")
	var b strings.Builder
	b.Grow(len(text))
	lastSpace := true
	for _, r := range text {
		switch {
		case unicode.IsSpace(r):
			if !lastSpace {
				b.WriteByte(' ')
				lastSpace = true
			}
		case unicode.IsControl(r):
			// dropped
		default:
			b.WriteRune(unicode.ToLower(r))
			lastSpace = false
		}
	}
	out := strings.TrimRight(b.String(), " ")
	if len(out) > maxTextLen {
		// Cut on a rune boundary; a byte-index slice could split a multi-byte
		// rune and reintroduce the invalid UTF-8 stripped above.
		cut := maxTextLen
		for cut > 0 && !utf8.RuneStart(out[cut]) {
			cut--
		}
		out = out[:cut]
	}
	return out
}

// Classify scores text against every enabled pattern in the current snapshot
// and returns the best candidate, falling back to lexical heuristics when
// nothing matches. Identical (text, snapshot) inputs always yield identical
// output.
func (c *Classifier) Classify(text string, conversationLength int) MessageContext {
	norm := Normalize(text)

	ctx := MessageContext{
		Text:               norm,
		DetectedType:       TypeStatement,
		Confidence:         c.tun.StatementConfidence,
		ConversationLength: conversationLength,
		Sentiment:          "neutral",
	}
	for _, marker := range urgencyMarkers {
		if strings.Contains(norm, marker) {
			ctx.HasUrgencyMarkers = true
			break
		}
	}
	if containsAny(norm, positiveTokens) {
		ctx.Sentiment = "positive"
	} else if containsAny(norm, negativeTokens) {
		ctx.Sentiment = "negative"
	}

	snap, ok := c.patterns.Current()
	if !ok {
		return ctx
	}

	var best *Pattern
	bestConf := 0.0
	// Snapshot patterns are sorted by id, so on full ties the
	// lexicographically smaller pattern_id wins by iteration order.
	for _, p := range snap.Patterns {
		if !p.Enabled || p.re == nil {
			continue
		}
		if !p.re.match(norm) {
			continue
		}
		conf := c.score(p, norm)
		if best == nil || conf > bestConf || (conf == bestConf && p.Priority < best.Priority) {
			best, bestConf = p, conf
		}
	}

	if best != nil {
		ctx.DetectedType = best.MessageType
		ctx.Confidence = bestConf
		ctx.MatchedPatternID = best.PatternID
		return ctx
	}

	// Ordered lexical fallbacks.
	switch {
	case strings.Contains(norm, "?"):
		ctx.DetectedType = TypeQuestion
		ctx.Confidence = c.tun.QuestionFallback
	case ctx.Sentiment == "positive":
		ctx.DetectedType = TypeFeedback
		ctx.Confidence = c.tun.FeedbackFallback
	}
	return ctx
}

// score computes base confidence plus a keyword boost proportional to the
// fraction of the pattern's keywords present in the text, capped at 1.0.
// Rounded to 4 decimals so threshold comparisons are not at the mercy of
// float representation (0.8 + 0.3/3 must equal 0.9).
func (c *Classifier) score(p *Pattern, norm string) float64 {
	conf := c.tun.BaseConfidence
	if len(p.Keywords) > 0 {
		hits := 0
		for _, kw := range p.Keywords {
			if strings.Contains(norm, strings.ToLower(kw)) {
				hits++
			}
		}
		conf += c.tun.KeywordBoostWeight * float64(hits) / float64(len(p.Keywords))
	}
	conf = math.Round(conf*1e4) / 1e4
	if conf > 1.0 {
		conf = 1.0
	}
	return conf
}

func containsAny(s string, tokens []string) bool {
	for _, tok := range tokens {
		if strings.Contains(s, tok) {
			return true
		}
	}
	return false
}
