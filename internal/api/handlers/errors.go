package handlers

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	"github.com/studyowl/backend/internal/ai"
	"github.com/studyowl/backend/internal/extraction"
	"github.com/studyowl/backend/internal/review"
	"github.com/studyowl/backend/internal/snippet"
	"github.com/studyowl/backend/internal/storage"
)

// fail translates domain errors into stable response codes so clients can
// branch on "code" instead of matching message strings.
func fail(c *fiber.Ctx, err error) error {
	if errors.Is(err, storage.ErrNotFound) {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "Resource not found",
			"code":  "not_found",
		})
	}
	if errors.Is(err, snippet.ErrNoContent) {
		return c.Status(fiber.StatusUnprocessableEntity).JSON(fiber.Map{
			"error": "Knowledge base has no extractable content",
			"code":  "no_content",
		})
	}
	if errors.Is(err, review.ErrNoQuestions) {
		return c.Status(fiber.StatusUnprocessableEntity).JSON(fiber.Map{
			"error": "Knowledge base has no questions yet",
			"code":  "no_questions",
		})
	}
	if errors.Is(err, review.ErrSessionNotFound) {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "Review session not found",
			"code":  "session_not_found",
		})
	}
	if errors.Is(err, ai.ErrNotConfigured) {
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{
			"error": "AI provider is not configured",
			"code":  "ai_not_configured",
		})
	}

	var exErr *extraction.Error
	if errors.As(err, &exErr) {
		return failExtraction(c, exErr)
	}

	var aiErr *ai.Error
	if errors.As(err, &aiErr) {
		return failAI(c, aiErr)
	}

	return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
		"error": "Internal server error",
		"code":  "internal",
	})
}

func failExtraction(c *fiber.Ctx, err *extraction.Error) error {
	switch err.Kind {
	case extraction.KindTooLarge:
		return c.Status(fiber.StatusRequestEntityTooLarge).JSON(fiber.Map{
			"error": "File exceeds the size limit",
			"code":  "file_too_large",
		})
	case extraction.KindUnsupportedType:
		return c.Status(fiber.StatusUnsupportedMediaType).JSON(fiber.Map{
			"error": "Unsupported file type",
			"code":  "unsupported_type",
		})
	case extraction.KindEncoding:
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "File is not valid UTF-8 text",
			"code":  "invalid_encoding",
		})
	default:
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "File is corrupt or unreadable",
			"code":  "corrupt_file",
		})
	}
}

func failAI(c *fiber.Ctx, err *ai.Error) error {
	switch err.Kind {
	case ai.KindUnauthorized:
		return c.Status(fiber.StatusBadGateway).JSON(fiber.Map{
			"error": "AI provider rejected the configured credentials",
			"code":  "ai_unauthorized",
		})
	case ai.KindRateLimited:
		return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{
			"error": "AI provider rate limit reached",
			"code":  "ai_rate_limited",
		})
	case ai.KindTimeout:
		return c.Status(fiber.StatusGatewayTimeout).JSON(fiber.Map{
			"error": "AI provider did not respond in time",
			"code":  "ai_timeout",
		})
	case ai.KindMalformedResponse:
		return c.Status(fiber.StatusBadGateway).JSON(fiber.Map{
			"error": "AI provider returned an unusable response",
			"code":  "ai_malformed_response",
		})
	default:
		return c.Status(fiber.StatusBadGateway).JSON(fiber.Map{
			"error": "AI provider is unreachable",
			"code":  "ai_unreachable",
		})
	}
}
