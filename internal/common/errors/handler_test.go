package errors

import (
	"context"
	stderrors "errors"
	"testing"

	"chatbot-parser/internal/common/camunda/jobtest"
	"chatbot-parser/internal/common/logger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestErrorHandler_RetryableErrorFailsJob(t *testing.T) {
	h := NewErrorHandler(logger.NewTestLogger(t))
	client := jobtest.NewClient()
	job := jobtest.NewJob(11, "chatbot-conversation-turn", map[string]interface{}{})

	code := h.HandleJobError(context.Background(), client, job, NewHistoryLoadFailedError("s-1", stderrors.New("redis down")))
	assert.Equal(t, "HISTORY_LOAD_FAILED", code)

	failed := client.Failed()
	require.Len(t, failed, 1)
	assert.Equal(t, int64(11), failed[0].JobKey)
	assert.Equal(t, int32(2), failed[0].Retries)
	assert.Equal(t, "Failed to load conversation history", failed[0].ErrorMessage)

	vars := jobtest.Variables(failed[0].Variables)
	assert.Equal(t, "HISTORY_LOAD_FAILED", vars["errorCode"])
	assert.Equal(t, "s-1", vars["sessionId"])
	assert.Empty(t, client.Thrown())
}

func TestErrorHandler_NonRetryableErrorThrows(t *testing.T) {
	h := NewErrorHandler(logger.NewTestLogger(t))
	client := jobtest.NewClient()
	job := jobtest.NewJob(12, "chatbot-parse-message", map[string]interface{}{})

	code := h.HandleJobError(context.Background(), client, job, NewInvalidInputError("userMessage is required"))
	assert.Equal(t, "INVALID_INPUT", code)

	thrown := client.Thrown()
	require.Len(t, thrown, 1)
	assert.Equal(t, "INVALID_INPUT", thrown[0].ErrorCode)
	assert.Empty(t, client.Failed())
}

func TestErrorHandler_UnknownErrorIsInternal(t *testing.T) {
	h := NewErrorHandler(logger.NewTestLogger(t))
	client := jobtest.NewClient()

	code := h.HandleJobError(context.Background(), client, jobtest.NewJob(13, "x", "{}"), stderrors.New("boom"))
	assert.Equal(t, "INTERNAL_ERROR", code)
	require.Len(t, client.Thrown(), 1)
	assert.Equal(t, "boom", jobtest.Variables(client.Thrown()[0].Variables)["errorDetails"])
}
