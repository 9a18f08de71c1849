package handlers

import (
	"strings"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/studyowl/backend/internal/ingestion"
	"github.com/studyowl/backend/internal/storage/models"
	"github.com/studyowl/backend/pkg/logger"
)

type QuizHandler struct {
	processor *ingestion.Processor
}

func NewQuizHandler(processor *ingestion.Processor) *QuizHandler {
	return &QuizHandler{processor: processor}
}

func questionResponse(q *models.Question) fiber.Map {
	return fiber.Map{
		"id":              q.ID,
		"question":        q.QuestionText,
		"context_snippet": q.ContextSnippet,
		"generated_at":    q.GeneratedAt.Unix(),
	}
}

func answerResponse(a *models.Answer) fiber.Map {
	resp := fiber.Map{
		"id":          a.ID,
		"question_id": a.QuestionID,
		"user_answer": a.UserAnswer,
		"feedback":    a.AIFeedback,
		"suggestions": a.AISuggestions,
		"answered_at": a.AnsweredAt.Unix(),
	}
	if a.AIScore != nil {
		resp["score"] = *a.AIScore
	}
	return resp
}

// GenerateQuestion asks the AI provider for a fresh question over the
// knowledge base content.
func (h *QuizHandler) GenerateQuestion(c *fiber.Ctx) error {
	kbID := c.Params("id")

	question, err := h.processor.GenerateQuestion(c.Context(), kbID)
	if err != nil {
		logger.Error("Question generation failed", zap.String("kb_id", kbID), zap.Error(err))
		return fail(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(questionResponse(question))
}

// SubmitAnswer evaluates the learner's answer to a question.
func (h *QuizHandler) SubmitAnswer(c *fiber.Ctx) error {
	var req struct {
		Answer string `json:"answer"`
	}

	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}

	if strings.TrimSpace(req.Answer) == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Answer is required",
		})
	}

	questionID := c.Params("questionId")
	answer, err := h.processor.SubmitAnswer(c.Context(), questionID, req.Answer)
	if err != nil {
		logger.Error("Answer evaluation failed",
			zap.String("question_id", questionID), zap.Error(err))
		return fail(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(answerResponse(answer))
}
