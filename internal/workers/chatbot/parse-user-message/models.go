package parseusermessage

import "chatbot-parser/internal/chatbot"

type Input struct {
	UserMessage string `json:"userMessage"`
}

type Output struct {
	Intent   chatbot.Intent    `json:"intent"`
	Entities map[string]string `json:"entities"`
}
