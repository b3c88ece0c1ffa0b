package server

import (
	"errors"
	"time"

	"chatbot-parser/internal/common/logger"

	"github.com/gofiber/fiber/v2"
)

func errorHandler(log logger.Logger) fiber.ErrorHandler {
	return func(c *fiber.Ctx, err error) error {
		code := fiber.StatusInternalServerError

		var fe *fiber.Error
		if errors.As(err, &fe) {
			code = fe.Code
		}

		if code == fiber.StatusInternalServerError {
			log.Error("internal server error", map[string]interface{}{
				"path":  c.Path(),
				"error": err,
			})
		}

		return c.Status(code).JSON(fiber.Map{
			"error": err.Error(),
		})
	}
}

func requestLogger(log logger.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()
		err := c.Next()
		log.Debug("request", map[string]interface{}{
			"method":    c.Method(),
			"path":      c.Path(),
			"status":    c.Response().StatusCode(),
			"duration":  time.Since(start).String(),
			"requestId": c.GetRespHeader(fiber.HeaderXRequestID),
		})
		return err
	}
}
