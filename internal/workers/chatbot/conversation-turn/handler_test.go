package conversationturn

import (
	"context"
	"testing"

	"chatbot-parser/internal/chatbot"
	"chatbot-parser/internal/common/camunda/jobtest"
	chaterrors "chatbot-parser/internal/common/errors"
	"chatbot-parser/internal/common/logger"
	"chatbot-parser/internal/conversation"
	"chatbot-parser/internal/history"
	"chatbot-parser/pkg/registry"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func createTestHandler(t *testing.T, store history.Store) *Handler {
	schema, err := registry.Default().InputSchema(TaskType)
	require.NoError(t, err)
	svc := conversation.NewService(chatbot.NewDefaultParser(), logger.NewTestLogger(t), conversation.WithStore(store))
	return NewHandler(LoadConfig(), svc, schema, logger.NewTestLogger(t))
}

// ==========================
// Core Functionality Tests
// ==========================

func TestHandler_Execute_NewSession(t *testing.T) {
	h := createTestHandler(t, history.NewMemoryStore(0))

	out, err := h.Execute(context.Background(), &Input{UserMessage: "hi, my name is ana"})
	require.NoError(t, err)

	assert.NotEmpty(t, out.SessionID)
	assert.Equal(t, chatbot.IntentGreet, out.Intent)
	assert.Equal(t, "Ana", out.Entities["name"])
	assert.Equal(t, "Hello Ana! How can I help you today?", out.ChatbotResponse)
	assert.Equal(t, []string{"hi, my name is ana", out.ChatbotResponse}, out.ConversationHistory)
}

func TestHandler_Execute_ContinuesStoredSession(t *testing.T) {
	store := history.NewMemoryStore(0)
	h := createTestHandler(t, store)
	ctx := context.Background()

	first, err := h.Execute(ctx, &Input{SessionID: "s-42", UserMessage: "hello"})
	require.NoError(t, err)
	second, err := h.Execute(ctx, &Input{SessionID: "s-42", UserMessage: "cancel my flight"})
	require.NoError(t, err)

	assert.Equal(t, "s-42", second.SessionID)
	assert.Equal(t, chatbot.IntentCancelFlight, second.Intent)
	assert.Equal(t, "I can cancel a flight for you. Could you tell me your booking reference?", second.ChatbotResponse)
	assert.Equal(t, []string{"hello", first.ChatbotResponse, "cancel my flight", second.ChatbotResponse}, second.ConversationHistory)
}

func TestHandler_Execute_ExplicitHistory(t *testing.T) {
	h := createTestHandler(t, history.NewMemoryStore(0))

	out, err := h.Execute(context.Background(), &Input{
		SessionID:           "s-1",
		UserMessage:         "thanks",
		ConversationHistory: []string{"hi", "Hello!"},
	})
	require.NoError(t, err)
	assert.Equal(t, chatbot.IntentUnknown, out.Intent)
	assert.Equal(t, chatbot.DefaultFallback, out.ChatbotResponse)
	assert.Equal(t, []string{"hi", "Hello!", "thanks", chatbot.DefaultFallback}, out.ConversationHistory)
}

// ==========================
// Input Validation Tests
// ==========================

func TestHandler_Decode(t *testing.T) {
	h := createTestHandler(t, history.NewMemoryStore(0))

	input, err := h.decode(`{"userMessage":"hi"}`)
	require.NoError(t, err)
	assert.Nil(t, input.ConversationHistory)

	input, err = h.decode(`{"userMessage":"hi","conversationHistory":[]}`)
	require.NoError(t, err)
	assert.NotNil(t, input.ConversationHistory)

	for _, vars := range []string{`{"sessionId":"x"}`, `{"userMessage":"hi","conversationHistory":[1]}`} {
		_, err := h.decode(vars)
		stdErr, ok := chaterrors.AsStandardError(err)
		require.True(t, ok, vars)
		assert.Equal(t, chaterrors.ErrCodeInvalidInput, stdErr.Code, vars)
	}
}

func TestHandler_Handle_CompletesJob(t *testing.T) {
	store := history.NewMemoryStore(0)
	h := createTestHandler(t, store)
	client := jobtest.NewClient()

	h.Handle(client, jobtest.NewJob(7, TaskType, map[string]interface{}{
		"sessionId":   "bpmn-1",
		"userMessage": "hello",
	}))

	completed := client.Completed()
	require.Len(t, completed, 1)
	assert.Equal(t, "bpmn-1", completed[0]["sessionId"])
	assert.Equal(t, "greet", completed[0]["intent"])
	assert.Len(t, completed[0]["conversationHistory"], 2)

	stored, err := store.Load(context.Background(), "bpmn-1", 0)
	require.NoError(t, err)
	assert.Len(t, stored, 2)
}
