package conversationturn

import "chatbot-parser/internal/chatbot"

// Input starts or continues a session. A missing conversationHistory means
// the stored history is used; an explicit empty list means none.
type Input struct {
	SessionID           string   `json:"sessionId"`
	UserMessage         string   `json:"userMessage"`
	ConversationHistory []string `json:"conversationHistory"`
}

type Output struct {
	SessionID           string            `json:"sessionId"`
	Intent              chatbot.Intent    `json:"intent"`
	Entities            map[string]string `json:"entities"`
	ChatbotResponse     string            `json:"chatbotResponse"`
	ConversationHistory []string          `json:"conversationHistory"`
}
