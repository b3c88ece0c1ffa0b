// Package server exposes the chatbot over HTTP with fiber.
package server

import (
	"context"
	"time"

	"chatbot-parser/internal/chatbot"
	"chatbot-parser/internal/common/config"
	"chatbot-parser/internal/common/logger"
	"chatbot-parser/internal/conversation"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Check is one dependency pinged by /ready.
type Check struct {
	Name string
	Ping func(ctx context.Context) error
}

type Server struct {
	app     *fiber.App
	service *conversation.Service
	checks  []Check
	cfg     config.ServerConfig
	logger  logger.Logger
}

func New(cfg config.ServerConfig, service *conversation.Service, log logger.Logger, checks ...Check) *Server {
	log = log.WithFields(map[string]interface{}{"component": "http"})
	s := &Server{
		service: service,
		checks:  checks,
		cfg:     cfg,
		logger:  log,
	}

	s.app = fiber.New(fiber.Config{
		AppName:               "chatbot-parser",
		DisableStartupMessage: true,
		ReadTimeout:           time.Duration(cfg.ReadTimeout) * time.Millisecond,
		WriteTimeout:          time.Duration(cfg.WriteTimeout) * time.Millisecond,
		ErrorHandler:          errorHandler(log),
	})
	s.app.Use(recover.New())
	s.app.Use(requestid.New())
	s.app.Use(requestLogger(log))

	s.routes()
	return s
}

func (s *Server) routes() {
	s.app.Get("/health", s.health)
	s.app.Get("/ready", s.ready)
	s.app.Get("/metrics", adaptor.HTTPHandler(promhttp.Handler()))

	v1 := s.app.Group("/api/v1")
	v1.Post("/chat", s.chat)
	v1.Post("/parse", s.parse)
	v1.Post("/respond", s.respond)
	v1.Get("/sessions/:id/history", s.sessionHistory)
	v1.Delete("/sessions/:id", s.resetSession)
}

// App exposes the fiber app, mainly for app.Test.
func (s *Server) App() *fiber.App { return s.app }

// Listen blocks until the server stops.
func (s *Server) Listen() error {
	s.logger.Info("http server listening", map[string]interface{}{"address": s.cfg.Address})
	return s.app.Listen(s.cfg.Address)
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.app.ShutdownWithContext(ctx)
}

func (s *Server) parser() chatbot.ChatbotParser {
	return s.service.Parser()
}
