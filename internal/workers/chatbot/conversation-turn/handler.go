package conversationturn

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	chaterrors "chatbot-parser/internal/common/errors"
	"chatbot-parser/internal/common/logger"
	"chatbot-parser/internal/common/metrics"
	"chatbot-parser/internal/common/validation"
	"chatbot-parser/internal/conversation"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
)

const TaskType = "chatbot-conversation-turn"

type Handler struct {
	config       *Config
	service      *conversation.Service
	schema       *validation.Schema
	errorHandler *chaterrors.ErrorHandler
	logger       logger.Logger
}

func NewHandler(config *Config, service *conversation.Service, schema *validation.Schema, log logger.Logger) *Handler {
	if config == nil {
		config = LoadConfig()
	}
	log = log.WithFields(map[string]interface{}{"taskType": TaskType})
	return &Handler{
		config:       config,
		service:      service,
		schema:       schema,
		errorHandler: chaterrors.NewErrorHandler(log),
		logger:       log,
	}
}

func (h *Handler) Handle(client worker.JobClient, job entities.Job) {
	start := time.Now()
	h.logger.Info("processing job", map[string]interface{}{
		"jobKey":      job.Key,
		"workflowKey": job.ProcessInstanceKey,
	})

	ctx, cancel := context.WithTimeout(context.Background(), h.config.Timeout)
	defer cancel()

	input, err := h.decode(job.Variables)
	if err == nil {
		var output *Output
		output, err = h.Execute(ctx, input)
		if err == nil {
			h.completeJob(ctx, client, job, output)
			metrics.ObserveJob(TaskType, "", time.Since(start).Seconds())
			return
		}
	}

	code := h.errorHandler.HandleJobError(ctx, client, job, err)
	metrics.ObserveJob(TaskType, code, time.Since(start).Seconds())
}

func (h *Handler) decode(variables string) (*Input, error) {
	if h.schema != nil {
		if res := h.schema.ValidateJSON(variables); !res.Valid {
			return nil, chaterrors.NewInvalidInputError(strings.Join(res.GetErrorMessages(), "; "))
		}
	}
	var input Input
	if err := json.Unmarshal([]byte(variables), &input); err != nil {
		return nil, chaterrors.NewInvalidInputError(fmt.Sprintf("parse input: %v", err))
	}
	return &input, nil
}

func (h *Handler) Execute(ctx context.Context, input *Input) (*Output, error) {
	if err := ctx.Err(); err != nil {
		return nil, chaterrors.NewTimeoutError(TaskType, err)
	}

	turn := h.service.HandleTurn(ctx, input.SessionID, input.UserMessage, input.ConversationHistory)

	return &Output{
		SessionID:           turn.SessionID,
		Intent:              turn.Intent,
		Entities:            turn.Entities,
		ChatbotResponse:     turn.ChatbotResponse,
		ConversationHistory: turn.ConversationHistory,
	}, nil
}

func (h *Handler) completeJob(ctx context.Context, client worker.JobClient, job entities.Job, output *Output) {
	cmd, err := client.NewCompleteJobCommand().
		JobKey(job.Key).
		VariablesFromObject(output)
	if err != nil {
		h.logger.Error("failed to create complete job command", map[string]interface{}{"error": err})
		return
	}
	if _, err := cmd.Send(ctx); err != nil {
		h.logger.Error("failed to send complete job command", map[string]interface{}{"error": err})
	}
}
