package engine

import (
	"reflect"
	"strings"
	"testing"
	"unicode/utf8"
)

func newTestClassifier(t *testing.T, patterns []Pattern) *Classifier {
	t.Helper()
	ps := NewPatternStore(nil)
	if _, errs := ps.Load(patterns); len(errs) > 0 {
		t.Fatalf("test patterns failed validation: %v", errs)
	}
	return NewClassifier(ps, DefaultTunables())
}

func TestNormalize(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"trims and lowers", "  Hello World  ", "hello world"},
		{"collapses whitespace", "a \t\n  b", "a b"},
		{"strips control chars", "he\x00ll\x07o", "hello"},
		{"invalid utf8 sanitized", "ok\xff\xfe!", "ok!"},
		{"empty", "", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Normalize(tt.in); got != tt.want {
				t.Errorf("Normalize(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestNormalize_TruncatesOnRuneBoundary(t *testing.T) {
	// 3-byte runes so the byte cap does not land on a rune boundary.
	in := strings.Repeat("世", 2000)
	got := Normalize(in)
	if len(got) > maxTextLen {
		t.Fatalf("len = %d, want <= %d", len(got), maxTextLen)
	}
	if !utf8.ValidString(got) {
		t.Fatal("truncation split a multi-byte rune")
	}
	if len(got)%3 != 0 {
		t.Errorf("len = %d, not a whole number of runes", len(got))
	}
}

func TestClassify_GreetingScenario(t *testing.T) {
	c := newTestClassifier(t, DefaultPatterns())

	got := c.Classify("Hello!", 0)
	if got.DetectedType != TypeGreeting {
		t.Fatalf("detected type = %s, want %s", got.DetectedType, TypeGreeting)
	}
	if got.MatchedPatternID != "greeting_hello" {
		t.Fatalf("matched pattern = %q, want greeting_hello", got.MatchedPatternID)
	}
	if got.Confidence < 0.9 {
		t.Errorf("confidence = %v, want >= 0.9", got.Confidence)
	}
}

func TestClassify_CommandScenario(t *testing.T) {
	c := newTestClassifier(t, DefaultPatterns())

	got := c.Classify("/help", 0)
	if got.DetectedType != TypeCommand {
		t.Fatalf("detected type = %s, want %s", got.DetectedType, TypeCommand)
	}
	if got.Confidence < 0.95 {
		t.Errorf("confidence = %v, want >= 0.95", got.Confidence)
	}
}

func TestClassify_LexicalFallbacks(t *testing.T) {
	// Empty snapshot: every classification goes through the fallbacks.
	c := newTestClassifier(t, nil)
	tun := DefaultTunables()

	tests := []struct {
		name     string
		text     string
		wantType MessageType
		wantConf float64
	}{
		{"question mark", "is this a thing?", TypeQuestion, tun.QuestionFallback},
		{"positive token", "awesome work", TypeFeedback, tun.FeedbackFallback},
		{"default statement", "the sky is blue", TypeStatement, tun.StatementConfidence},
		{"adversarial input degrades", "\x00\xff\xfe", TypeStatement, tun.StatementConfidence},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := c.Classify(tt.text, 0)
			if got.DetectedType != tt.wantType {
				t.Errorf("type = %s, want %s", got.DetectedType, tt.wantType)
			}
			if got.Confidence != tt.wantConf {
				t.Errorf("confidence = %v, want %v", got.Confidence, tt.wantConf)
			}
		})
	}
}

func TestClassify_Deterministic(t *testing.T) {
	c := newTestClassifier(t, DefaultPatterns())

	for _, text := range []string{"Hello!", "/status", "how does this work?", "random words"} {
		a := c.Classify(text, 3)
		b := c.Classify(text, 3)
		if !reflect.DeepEqual(a, b) {
			t.Errorf("classify(%q) not deterministic:\n  first:  %+v\n  second: %+v", text, a, b)
		}
	}
}

func TestClassify_TieBreaks(t *testing.T) {
	base := Pattern{
		Regex:            `ping`,
		MessageType:      TypeStatement,
		ResponseTemplate: "pong",
		MinConfidence:    0.5,
		Enabled:          true,
	}

	// Same confidence (no keywords): lower priority ordinal wins.
	a, b := base, base
	a.PatternID, a.Priority = "zz_immediate", PriorityImmediate
	b.PatternID, b.Priority = "aa_medium", PriorityMedium
	c := newTestClassifier(t, []Pattern{a, b})
	if got := c.Classify("ping", 0); got.MatchedPatternID != "zz_immediate" {
		t.Errorf("priority tie-break: matched %q, want zz_immediate", got.MatchedPatternID)
	}

	// Same confidence and priority: lexicographically smaller id wins.
	a, b = base, base
	a.PatternID, a.Priority = "bbb", PriorityMedium
	b.PatternID, b.Priority = "aaa", PriorityMedium
	c = newTestClassifier(t, []Pattern{a, b})
	if got := c.Classify("ping", 0); got.MatchedPatternID != "aaa" {
		t.Errorf("id tie-break: matched %q, want aaa", got.MatchedPatternID)
	}
}

func TestClassify_DisabledPatternsSkipped(t *testing.T) {
	p := DefaultPatterns()
	for i := range p {
		if p[i].PatternID == "greeting_hello" {
			p[i].Enabled = false
		}
	}
	c := newTestClassifier(t, p)

	got := c.Classify("hello", 0)
	if got.MatchedPatternID == "greeting_hello" {
		t.Fatal("disabled pattern still matched")
	}
}

func TestClassify_UrgencyAndSentiment(t *testing.T) {
	c := newTestClassifier(t, nil)

	got := c.Classify("this is urgent!!", 0)
	if !got.HasUrgencyMarkers {
		t.Error("urgency markers not detected")
	}
	got = c.Classify("thanks a lot", 0)
	if got.Sentiment != "positive" {
		t.Errorf("sentiment = %q, want positive", got.Sentiment)
	}
	got = c.Classify("this is terrible", 0)
	if got.Sentiment != "negative" {
		t.Errorf("sentiment = %q, want negative", got.Sentiment)
	}
}

func TestScore_KeywordBoost(t *testing.T) {
	c := newTestClassifier(t, nil)
	p := &Pattern{Keywords: []string{"hello", "hi", "hey"}}

	tests := []struct {
		name string
		text string
		want float64
	}{
		{"one of three keywords", "hello!", 0.9},
		{"no keywords present", "bonjour", 0.8},
		{"all keywords present", "hello hi hey", 1.0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := c.score(p, tt.text); got != tt.want {
				t.Errorf("score(%q) = %v, want %v", tt.text, got, tt.want)
			}
		})
	}
}
