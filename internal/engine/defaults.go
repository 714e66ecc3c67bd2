package engine

// DefaultPatterns is the built-in seed set. It ships with the binary and can
// be written to persistence with `replygate patterns seed`.
func DefaultPatterns() []Pattern {
	return []Pattern{
		{
			PatternID:        "greeting_hello",
			Regex:            `^(hello|hi|hey|greetings|salut|bonjour|bonsoir)`,
			MessageType:      TypeGreeting,
			Description:      "Greetings at the start of a message",
			ResponseTemplate: "👋 Hello! How can I help you today?",
			Variants: []string{
				"👋 Hi there! What can I do for you this {time_of_day}?",
				"Hey! Good {time_of_day} — how can I help?",
			},
			Priority:      PriorityImmediate,
			Keywords:      []string{"hello", "hi", "hey"},
			MinConfidence: 0.9,
			Enabled:       true,
		},
		{
			PatternID:        "question_what",
			Regex:            `(^|\s)(what|why|when|which|whose|whom)\s+.*\?`,
			MessageType:      TypeQuestion,
			Description:      "Questions starting with what/why/when/which",
			ResponseTemplate: "🤔 Great question! Let me gather some context...",
			Priority:         PriorityHigh,
			Keywords:         []string{"what", "why", "when", "which"},
			MinConfidence:    0.75,
			Enabled:          true,
		},
		{
			PatternID:        "question_how",
			Regex:            `(^|\s)how\s+.*\?`,
			MessageType:      TypeQuestion,
			Description:      "Questions starting with how",
			ResponseTemplate: "💡 Here's what I know about that...",
			Priority:         PriorityHigh,
			Keywords:         []string{"how"},
			MinConfidence:    0.75,
			Enabled:          true,
		},
		{
			PatternID:        "command_help",
			Regex:            `^/help`,
			MessageType:      TypeCommand,
			Description:      "/help command",
			ResponseTemplate: "📚 Available commands:\n• /help - Show this menu\n• /status - Current status\n• /config - Configuration\n• /stats - Statistics",
			Priority:         PriorityImmediate,
			Keywords:         []string{"/help"},
			MinConfidence:    0.95,
			Enabled:          true,
		},
		{
			PatternID:        "command_status",
			Regex:            `^/status`,
			MessageType:      TypeCommand,
			Description:      "/status command",
			ResponseTemplate: "✅ System status: Online and operational",
			Priority:         PriorityImmediate,
			Keywords:         []string{"/status"},
			MinConfidence:    0.95,
			Enabled:          true,
		},
		{
			PatternID:        "command_config",
			Regex:            `^/config`,
			MessageType:      TypeCommand,
			Description:      "/config command",
			ResponseTemplate: "⚙️ Configuration options available. What would you like to configure?",
			Priority:         PriorityHigh,
			Keywords:         []string{"/config"},
			MinConfidence:    0.95,
			Enabled:          true,
		},
		{
			PatternID:        "topic_crypto",
			Regex:            `(bitcoin|btc|crypto|ethereum|eth|blockchain)`,
			MessageType:      TypeStatement,
			Description:      "Crypto/blockchain mention, only mid-conversation",
			ResponseTemplate: "🔗 Crypto topic detected. Analyzing...",
			Priority:         PriorityMedium,
			Keywords:         []string{"bitcoin", "btc", "crypto", "ethereum", "eth", "blockchain"},
			RequiresContext:  true,
			MinConfidence:    0.7,
			Enabled:          true,
		},
		{
			PatternID:        "feedback_thanks",
			Regex:            `(thanks|thank you|appreciate|good job|well done)`,
			MessageType:      TypeFeedback,
			Description:      "Positive feedback",
			ResponseTemplate: "😊 Thank you! Happy to help.",
			Priority:         PriorityLow,
			Keywords:         []string{"thanks", "thank you", "appreciate"},
			MinConfidence:    0.8,
			Enabled:          true,
		},
		{
			PatternID:        "urgent_asap",
			Regex:            `(asap|urgent|emergency|critical|help me now|now!|!!)`,
			MessageType:      TypeUrgent,
			Description:      "Urgency markers",
			ResponseTemplate: "⚠️ I see this is urgent! Prioritizing...",
			Priority:         PriorityImmediate,
			Keywords:         []string{"asap", "urgent", "emergency", "critical"},
			MinConfidence:    0.85,
			Enabled:          true,
		},
	}
}
