// Package conversation runs chatbot turns against stored session history.
package conversation

import (
	"context"
	"time"

	"chatbot-parser/internal/analytics"
	"chatbot-parser/internal/chatbot"
	chaterrors "chatbot-parser/internal/common/errors"
	"chatbot-parser/internal/common/logger"
	"chatbot-parser/internal/common/observability"
	"chatbot-parser/internal/history"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
)

// Turn is the outcome of one HandleTurn call.
type Turn struct {
	SessionID           string            `json:"sessionId"`
	UserMessage         string            `json:"userMessage"`
	Intent              chatbot.Intent    `json:"intent"`
	Entities            map[string]string `json:"entities"`
	ChatbotResponse     string            `json:"chatbotResponse"`
	ConversationHistory []string          `json:"conversationHistory"`
}

type Service struct {
	parser       chatbot.ChatbotParser
	store        history.Store
	recorder     analytics.Recorder
	obs          *observability.Observability
	logger       logger.Logger
	historyLimit int
	now          func() time.Time
}

type Option func(*Service)

func WithStore(s history.Store) Option {
	return func(svc *Service) { svc.store = s }
}

func WithRecorder(r analytics.Recorder) Option {
	return func(svc *Service) { svc.recorder = r }
}

func WithObservability(o *observability.Observability) Option {
	return func(svc *Service) { svc.obs = o }
}

// WithHistoryLimit caps how many stored entries are loaded per turn.
func WithHistoryLimit(n int) Option {
	return func(svc *Service) { svc.historyLimit = n }
}

func WithClock(now func() time.Time) Option {
	return func(svc *Service) { svc.now = now }
}

func NewService(parser chatbot.ChatbotParser, log logger.Logger, opts ...Option) *Service {
	if parser == nil {
		parser = chatbot.NewDefaultParser()
	}
	if log == nil {
		log = logger.NewNoOpLogger()
	}
	s := &Service{
		parser: parser,
		logger: log.WithFields(map[string]interface{}{"component": "conversation"}),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.store == nil {
		s.store = history.NewMemoryStore(s.historyLimit)
	}
	if s.recorder == nil {
		s.recorder = analytics.NopRecorder{}
	}
	return s
}

func (s *Service) Parser() chatbot.ChatbotParser { return s.parser }

// HandleTurn answers message within sessionID. An empty sessionID starts a
// new session. When prior is nil the session's stored history is used as
// context. Storage and indexing failures are logged and never change the
// reply.
func (s *Service) HandleTurn(ctx context.Context, sessionID, message string, prior []string) Turn {
	start := s.now()
	if sessionID == "" {
		sessionID = uuid.NewString()
	}

	ctx, span := s.obs.StartSpan(ctx, "conversation.turn", attribute.String("session.id", sessionID))
	defer span.End()

	status := "ok"
	if prior == nil {
		loaded, err := s.store.Load(ctx, sessionID, s.historyLimit)
		if err != nil {
			status = "degraded"
			s.logFailure(chaterrors.NewHistoryLoadFailedError(sessionID, err))
		}
		prior = loaded
	}

	conv := chatbot.NewConversation(prior)
	entity := chatbot.Converse(s.parser, conv, message)
	reply := conv.Response()
	span.SetAttributes(attribute.String("chatbot.intent", entity.Intent.String()))

	if err := s.store.Append(ctx, sessionID, message, reply); err != nil {
		status = "degraded"
		s.logFailure(chaterrors.NewHistoryAppendFailedError(sessionID, err))
	}

	record := analytics.TurnRecord{
		ID:              uuid.NewString(),
		SessionID:       sessionID,
		UserMessage:     message,
		Intent:          entity.Intent.String(),
		Entities:        entity.Entities,
		ChatbotResponse: reply,
		Timestamp:       start.UTC(),
	}
	if err := s.recorder.Record(ctx, record); err != nil {
		status = "degraded"
		stdErr, ok := chaterrors.AsStandardError(err)
		if !ok {
			stdErr = chaterrors.NewTurnIndexingFailedError(err)
		}
		s.logFailure(stdErr.WithMetadata("sessionId", sessionID))
	}

	s.obs.RecordTurn(ctx, entity.Intent.String(), status, s.now().Sub(start))
	s.logger.Info("turn handled", map[string]interface{}{
		"sessionId": sessionID,
		"intent":    entity.Intent.String(),
		"entities":  len(entity.Entities),
		"status":    status,
	})

	return Turn{
		SessionID:           sessionID,
		UserMessage:         message,
		Intent:              entity.Intent,
		Entities:            entity.Entities,
		ChatbotResponse:     reply,
		ConversationHistory: conv.History(),
	}
}

func (s *Service) History(ctx context.Context, sessionID string) ([]string, error) {
	out, err := s.store.Load(ctx, sessionID, s.historyLimit)
	if err != nil {
		return nil, chaterrors.NewHistoryLoadFailedError(sessionID, err)
	}
	return out, nil
}

// Reset forgets the stored history of sessionID.
func (s *Service) Reset(ctx context.Context, sessionID string) error {
	if err := s.store.Clear(ctx, sessionID); err != nil {
		return chaterrors.NewHistoryAppendFailedError(sessionID, err)
	}
	return nil
}

func (s *Service) logFailure(err *chaterrors.StandardError) {
	fields := map[string]interface{}{
		"errorCode": string(err.Code),
		"details":   err.Details,
	}
	for k, v := range err.Metadata {
		fields[k] = v
	}
	s.logger.Warn(err.Message, fields)
}
