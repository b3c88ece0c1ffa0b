package server

import (
	"context"
	"time"

	"chatbot-parser/internal/chatbot"

	"github.com/gofiber/fiber/v2"
)

type chatRequest struct {
	SessionID           string   `json:"sessionId"`
	UserMessage         string   `json:"userMessage"`
	ConversationHistory []string `json:"conversationHistory"`
}

type parseRequest struct {
	UserMessage string `json:"userMessage"`
}

type respondRequest struct {
	Intent   chatbot.Intent    `json:"intent"`
	Entities map[string]string `json:"entities"`
}

type respondResponse struct {
	ChatbotResponse string `json:"chatbotResponse"`
}

func (s *Server) chat(c *fiber.Ctx) error {
	var req chatRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}
	turn := s.service.HandleTurn(c.UserContext(), req.SessionID, req.UserMessage, req.ConversationHistory)
	return c.JSON(turn)
}

func (s *Server) parse(c *fiber.Ctx) error {
	var req parseRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}
	return c.JSON(s.parser().ParseUserMessage(req.UserMessage))
}

func (s *Server) respond(c *fiber.Ctx) error {
	var req respondRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}
	if !req.Intent.Valid() {
		req.Intent = chatbot.IntentUnknown
	}
	reply := s.parser().GenerateResponse(chatbot.NewEntityModel(req.Intent, req.Entities))
	return c.JSON(respondResponse{ChatbotResponse: reply})
}

func (s *Server) sessionHistory(c *fiber.Ctx) error {
	id := c.Params("id")
	entries, err := s.service.History(c.UserContext(), id)
	if err != nil {
		return fiber.NewError(fiber.StatusServiceUnavailable, err.Error())
	}
	return c.JSON(fiber.Map{"sessionId": id, "conversationHistory": entries})
}

func (s *Server) resetSession(c *fiber.Ctx) error {
	if err := s.service.Reset(c.UserContext(), c.Params("id")); err != nil {
		return fiber.NewError(fiber.StatusServiceUnavailable, err.Error())
	}
	return c.SendStatus(fiber.StatusNoContent)
}

func (s *Server) health(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"status": "ok"})
}

func (s *Server) ready(c *fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(c.UserContext(), 2*time.Second)
	defer cancel()

	results := make(map[string]string, len(s.checks))
	healthy := true
	for _, check := range s.checks {
		if err := check.Ping(ctx); err != nil {
			healthy = false
			results[check.Name] = err.Error()
			continue
		}
		results[check.Name] = "ok"
	}

	if !healthy {
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{"status": "unavailable", "checks": results})
	}
	return c.JSON(fiber.Map{"status": "ready", "checks": results})
}
