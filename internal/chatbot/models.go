package chatbot

import "sort"

// Slot names produced by SlotExtractor.
const (
	SlotOrigin           = "origin"
	SlotDestination      = "destination"
	SlotDate             = "date"
	SlotLocation         = "location"
	SlotName             = "name"
	SlotBookingReference = "bookingReference"
)

// ConversationModel holds one turn's input and output plus the prior turns.
// History is append-only; the session holder owns it.
type ConversationModel struct {
	UserMessage         string   `json:"userMessage"`
	ChatbotResponse     *string  `json:"chatbotResponse,omitempty"`
	ConversationHistory []string `json:"conversationHistory"`
}

// NewConversation starts a session from previously stored history.
func NewConversation(history []string) *ConversationModel {
	h := make([]string, len(history))
	copy(h, history)
	return &ConversationModel{ConversationHistory: h}
}

// RecordUserMessage starts a new turn and appends the message to history.
func (c *ConversationModel) RecordUserMessage(message string) {
	c.UserMessage = message
	c.ChatbotResponse = nil
	c.ConversationHistory = append(c.ConversationHistory, message)
}

// RecordResponse completes the current turn and appends the response to history.
func (c *ConversationModel) RecordResponse(response string) {
	c.ChatbotResponse = &response
	c.ConversationHistory = append(c.ConversationHistory, response)
}

// Response returns the current turn's response, or "" when none was recorded.
func (c *ConversationModel) Response() string {
	if c.ChatbotResponse == nil {
		return ""
	}
	return *c.ChatbotResponse
}

// History returns a copy of the conversation history.
func (c *ConversationModel) History() []string {
	out := make([]string, len(c.ConversationHistory))
	copy(out, c.ConversationHistory)
	return out
}

// EntityModel is the parse result of one utterance.
type EntityModel struct {
	Intent   Intent            `json:"intent"`
	Entities map[string]string `json:"entities"`
}

// NewEntityModel copies entities so the result cannot be mutated through the
// caller's map.
func NewEntityModel(intent Intent, entities map[string]string) EntityModel {
	return EntityModel{Intent: intent, Entities: copySlots(entities)}
}

// Slot returns the value of a named slot.
func (e EntityModel) Slot(name string) (string, bool) {
	v, ok := e.Entities[name]
	return v, ok
}

// SlotNames returns the filled slot names in sorted order.
func (e EntityModel) SlotNames() []string {
	names := make([]string, 0, len(e.Entities))
	for k := range e.Entities {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}

func copySlots(in map[string]string) map[string]string {
	out := make(map[string]string, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}
