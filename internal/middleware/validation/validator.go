// Package validation rejects malformed requests before they reach the
// handlers.
package validation

import (
	"strings"

	"github.com/gofiber/fiber/v2"
)

type Config struct {
	MaxBodySize         int
	AllowedContentTypes []string
}

func Middleware(cfg Config) fiber.Handler {
	if cfg.MaxBodySize <= 0 {
		cfg.MaxBodySize = 64 * 1024 * 1024
	}
	if len(cfg.AllowedContentTypes) == 0 {
		cfg.AllowedContentTypes = []string{"application/json", "multipart/form-data"}
	}

	return func(c *fiber.Ctx) error {
		if c.Method() != fiber.MethodPost && c.Method() != fiber.MethodPut {
			return c.Next()
		}

		if len(c.Body()) > cfg.MaxBodySize {
			return c.Status(fiber.StatusRequestEntityTooLarge).JSON(fiber.Map{
				"error": "Request body exceeds the size limit",
			})
		}

		contentType := c.Get("Content-Type")
		if contentType == "" {
			return c.Next()
		}
		for _, allowed := range cfg.AllowedContentTypes {
			if strings.Contains(contentType, allowed) {
				return c.Next()
			}
		}
		return c.Status(fiber.StatusUnsupportedMediaType).JSON(fiber.Map{
			"error": "Unsupported content type",
		})
	}
}
