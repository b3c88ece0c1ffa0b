package generateresponse

import "chatbot-parser/internal/chatbot"

// Input carries a parse result. Unrecognised intent names decode to unknown.
type Input struct {
	Intent   chatbot.Intent    `json:"intent"`
	Entities map[string]string `json:"entities"`
}

type Output struct {
	ChatbotResponse string `json:"chatbotResponse"`
}
