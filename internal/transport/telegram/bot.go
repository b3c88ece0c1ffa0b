// Package telegram serves the chatbot as a Telegram bot. Each chat is one
// conversation session.
package telegram

import (
	"context"
	"fmt"
	"runtime/debug"
	"strconv"
	"strings"

	"chatbot-parser/internal/chatbot"
	"chatbot-parser/internal/common/logger"
	"chatbot-parser/internal/conversation"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
)

const resetReply = "Okay, I've forgotten our conversation. What can I do for you?"

// SessionID maps a chat to its conversation session.
func SessionID(chatID int64) string {
	return "telegram:" + strconv.FormatInt(chatID, 10)
}

type Handler struct {
	service *conversation.Service
	logger  logger.Logger
}

func NewHandler(service *conversation.Service, log logger.Logger) *Handler {
	return &Handler{
		service: service,
		logger:  log.WithFields(map[string]interface{}{"component": "telegram"}),
	}
}

// Reply computes the answer to one incoming text. firstName personalises the
// /start greeting and may be empty.
func (h *Handler) Reply(ctx context.Context, chatID int64, firstName, text string) string {
	sessionID := SessionID(chatID)

	switch command(text) {
	case "/start":
		entities := map[string]string{}
		if firstName != "" {
			entities[chatbot.SlotName] = firstName
		}
		return h.service.Parser().GenerateResponse(chatbot.NewEntityModel(chatbot.IntentGreet, entities))
	case "/reset":
		if err := h.service.Reset(ctx, sessionID); err != nil {
			h.logger.Warn("reset failed", map[string]interface{}{"sessionId": sessionID, "error": err})
		}
		return resetReply
	}

	return h.service.HandleTurn(ctx, sessionID, text, nil).ChatbotResponse
}

// command returns the bot command in text, without any @botname suffix, or
// "" for plain messages.
func command(text string) string {
	if !strings.HasPrefix(text, "/") {
		return ""
	}
	cmd := strings.Fields(text)[0]
	if at := strings.IndexByte(cmd, '@'); at > 0 {
		cmd = cmd[:at]
	}
	return strings.ToLower(cmd)
}

func (h *Handler) handleUpdate(ctx context.Context, b *bot.Bot, update *models.Update) {
	if update.Message == nil || update.Message.Text == "" {
		return
	}
	msg := update.Message

	firstName := ""
	if msg.From != nil {
		firstName = msg.From.FirstName
	}
	reply := h.Reply(ctx, msg.Chat.ID, firstName, msg.Text)

	if _, err := b.SendMessage(ctx, &bot.SendMessageParams{
		ChatID: msg.Chat.ID,
		Text:   reply,
	}); err != nil {
		h.logger.Error("send message failed", map[string]interface{}{
			"chatId": msg.Chat.ID,
			"error":  err,
		})
	}
}

func (h *Handler) recoverMiddleware(next bot.HandlerFunc) bot.HandlerFunc {
	return func(ctx context.Context, b *bot.Bot, update *models.Update) {
		defer func() {
			if r := recover(); r != nil {
				h.logger.Error("panic recovered in handler", map[string]interface{}{
					"panic": fmt.Sprint(r),
					"stack": string(debug.Stack()),
				})
			}
		}()
		next(ctx, b, update)
	}
}

// New creates the bot. Extra options are appended after the defaults.
func New(token string, handler *Handler, opts ...bot.Option) (*bot.Bot, error) {
	all := append([]bot.Option{
		bot.WithMiddlewares(handler.recoverMiddleware),
		bot.WithDefaultHandler(handler.handleUpdate),
	}, opts...)

	b, err := bot.New(token, all...)
	if err != nil {
		return nil, fmt.Errorf("create telegram bot: %w", err)
	}
	return b, nil
}

// Run polls for updates until ctx is cancelled.
func Run(ctx context.Context, b *bot.Bot, log logger.Logger) {
	log.Info("telegram bot started", nil)
	b.Start(ctx)
	log.Info("telegram bot stopped", nil)
}
