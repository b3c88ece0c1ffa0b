package generateresponse

import (
	"context"
	"testing"

	"chatbot-parser/internal/chatbot"
	chaterrors "chatbot-parser/internal/common/errors"
	"chatbot-parser/internal/common/logger"
	"chatbot-parser/pkg/registry"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func createTestHandler(t *testing.T) *Handler {
	schema, err := registry.Default().InputSchema(TaskType)
	require.NoError(t, err)
	return NewHandler(LoadConfig(), chatbot.NewDefaultParser(), schema, logger.NewTestLogger(t))
}

// ==========================
// Core Functionality Tests
// ==========================

func TestHandler_Execute(t *testing.T) {
	tests := []struct {
		name     string
		input    *Input
		expected string
	}{
		{
			name:     "weather with location",
			input:    &Input{Intent: chatbot.IntentAskAboutWeather, Entities: map[string]string{"location": "Oslo"}},
			expected: "Let me check the current weather in Oslo.",
		},
		{
			name:     "booking missing origin",
			input:    &Input{Intent: chatbot.IntentBookFlight, Entities: map[string]string{"destination": "Rome", "date": "friday"}},
			expected: "I can help you book a flight to Rome. Could you tell me the city you're flying from?",
		},
		{
			name:     "unknown intent",
			input:    &Input{Intent: chatbot.IntentUnknown},
			expected: chatbot.DefaultFallback,
		},
		{
			name:     "invalid intent value",
			input:    &Input{Intent: chatbot.Intent("orderPizza")},
			expected: chatbot.DefaultFallback,
		},
	}

	h := createTestHandler(t)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := h.Execute(context.Background(), tt.input)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, out.ChatbotResponse)
		})
	}
}

func TestHandler_Decode(t *testing.T) {
	h := createTestHandler(t)

	input, err := h.decode(`{"intent":"book_flight","entities":{"destination":"Rome"}}`)
	require.NoError(t, err)
	assert.Equal(t, chatbot.IntentBookFlight, input.Intent)
	assert.Equal(t, "Rome", input.Entities["destination"])

	input, err = h.decode(`{"intent":"somethingElse"}`)
	require.NoError(t, err)
	assert.Equal(t, chatbot.IntentUnknown, input.Intent)

	for _, vars := range []string{`{}`, `{"intent":"greet","entities":{"name":5}}`, `[]`} {
		_, err := h.decode(vars)
		stdErr, ok := chaterrors.AsStandardError(err)
		require.True(t, ok, vars)
		assert.Equal(t, chaterrors.ErrCodeInvalidInput, stdErr.Code, vars)
	}
}
