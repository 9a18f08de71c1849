package handlers

import (
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/studyowl/backend/internal/review"
	"github.com/studyowl/backend/internal/storage/models"
	"github.com/studyowl/backend/pkg/logger"
)

// ReviewStore serves the read-only history queries behind the review
// endpoints.
type ReviewStore interface {
	QuestionAnswerHistory(kbID string, filter models.HistoryFilter) ([]models.HistoryItem, error)
	ListReviewSessions(kbID string, filter models.HistoryFilter) ([]models.ReviewSession, error)
}

type ReviewHandler struct {
	engine        *review.Engine
	store         ReviewStore
	sessionLength int
}

func NewReviewHandler(engine *review.Engine, store ReviewStore, sessionLength int) *ReviewHandler {
	if sessionLength <= 0 {
		sessionLength = review.DefaultSessionLength
	}
	return &ReviewHandler{engine: engine, store: store, sessionLength: sessionLength}
}

// RandomQuestion returns one previously generated question, picked uniformly.
func (h *ReviewHandler) RandomQuestion(c *fiber.Ctx) error {
	question, err := h.engine.RandomQuestion(c.Params("id"))
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(questionResponse(question))
}

// ReviewQuestions returns a batch of distinct questions for stateless review.
func (h *ReviewHandler) ReviewQuestions(c *fiber.Ctx) error {
	count := c.QueryInt("count", h.sessionLength)

	batch, err := h.engine.ReviewQuestions(c.Params("id"), count)
	if err != nil {
		return fail(c, err)
	}

	out := make([]fiber.Map, 0, len(batch))
	for i := range batch {
		out = append(out, questionResponse(&batch[i]))
	}
	return c.JSON(fiber.Map{"questions": out})
}

// StartSession opens a stateful review session and returns the first question.
func (h *ReviewHandler) StartSession(c *fiber.Ctx) error {
	var req struct {
		Target int `json:"target"`
	}
	if err := c.BodyParser(&req); err != nil && len(c.Body()) > 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}

	target := req.Target
	if target <= 0 {
		target = h.sessionLength
	}

	snap, err := h.engine.StartSession(c.Params("id"), target)
	if err != nil {
		return fail(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"session_id": snap.SessionID,
		"target":     snap.Target,
		"question":   questionResponse(&snap.Question),
	})
}

// SubmitSessionAnswer answers the session's pending question.
func (h *ReviewHandler) SubmitSessionAnswer(c *fiber.Ctx) error {
	var req struct {
		Answer string `json:"answer"`
	}
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}
	if req.Answer == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Answer is required",
		})
	}

	sessionID := c.Params("sessionId")
	result, err := h.engine.SubmitAnswer(c.Context(), sessionID, req.Answer)
	if err != nil {
		logger.Error("Session answer failed", zap.String("session_id", sessionID), zap.Error(err))
		return fail(c, err)
	}

	resp := fiber.Map{
		"answer":    answerResponse(result.Answer),
		"completed": result.Completed,
	}
	if result.Next != nil {
		resp["next_question"] = questionResponse(result.Next)
	}
	if result.Session != nil {
		resp["session"] = sessionResponse(result.Session)
	}
	return c.JSON(resp)
}

// EndSession finishes a session before the target is reached, recording
// whatever was answered so far. A session with no answers is discarded.
func (h *ReviewHandler) EndSession(c *fiber.Ctx) error {
	record, err := h.engine.EndSession(c.Params("sessionId"))
	if err != nil {
		return fail(c, err)
	}

	resp := fiber.Map{"recorded": record != nil}
	if record != nil {
		resp["session"] = sessionResponse(record)
	}
	return c.JSON(resp)
}

// AbandonSession drops an in-flight session without recording it.
func (h *ReviewHandler) AbandonSession(c *fiber.Ctx) error {
	if err := h.engine.Abandon(c.Params("sessionId")); err != nil {
		return fail(c, err)
	}
	return c.JSON(fiber.Map{"message": "Session abandoned"})
}

func sessionResponse(s *models.ReviewSession) fiber.Map {
	return fiber.Map{
		"id":              s.ID,
		"questions_count": s.QuestionsCount,
		"average_score":   s.AverageScore,
		"duration_sec":    s.DurationSec,
		"session_date":    s.SessionDate.Unix(),
	}
}

// parseHistoryFilter reads the shared score/date/paging query parameters.
func parseHistoryFilter(c *fiber.Ctx) (models.HistoryFilter, error) {
	var filter models.HistoryFilter

	if v := c.Query("min_score"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return filter, err
		}
		filter.MinScore = &n
	}
	if v := c.Query("max_score"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return filter, err
		}
		filter.MaxScore = &n
	}
	if v := c.Query("start_date"); v != "" {
		ts, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return filter, err
		}
		t := time.Unix(ts, 0)
		filter.StartDate = &t
	}
	if v := c.Query("end_date"); v != "" {
		ts, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return filter, err
		}
		t := time.Unix(ts, 0)
		filter.EndDate = &t
	}
	filter.Limit = c.QueryInt("limit", 0)
	filter.Offset = c.QueryInt("offset", 0)

	return filter, nil
}

// History lists answered questions with optional score and date filters.
func (h *ReviewHandler) History(c *fiber.Ctx) error {
	filter, err := parseHistoryFilter(c)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid filter parameter",
		})
	}

	items, err := h.store.QuestionAnswerHistory(c.Params("id"), filter)
	if err != nil {
		logger.Error("Failed to load history", zap.Error(err))
		return fail(c, err)
	}

	out := make([]fiber.Map, 0, len(items))
	for i := range items {
		out = append(out, fiber.Map{
			"question": questionResponse(&items[i].Question),
			"answer":   answerResponse(&items[i].Answer),
		})
	}
	return c.JSON(fiber.Map{"history": out})
}

// Sessions lists persisted review sessions, newest first.
func (h *ReviewHandler) Sessions(c *fiber.Ctx) error {
	filter, err := parseHistoryFilter(c)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid filter parameter",
		})
	}

	sessions, err := h.store.ListReviewSessions(c.Params("id"), filter)
	if err != nil {
		logger.Error("Failed to list sessions", zap.Error(err))
		return fail(c, err)
	}

	out := make([]fiber.Map, 0, len(sessions))
	for i := range sessions {
		out = append(out, sessionResponse(&sessions[i]))
	}
	return c.JSON(fiber.Map{"sessions": out})
}

// Stats aggregates persisted sessions for a knowledge base.
func (h *ReviewHandler) Stats(c *fiber.Ctx) error {
	stats, err := h.engine.SessionStats(c.Params("id"))
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(fiber.Map{
		"total_sessions":     stats.TotalSessions,
		"mean_average_score": stats.MeanAverageScore,
		"max_average_score":  stats.MaxAverageScore,
		"total_duration_sec": stats.TotalDurationSec,
	})
}

// Progress summarizes answer history and improvement trend.
func (h *ReviewHandler) Progress(c *fiber.Ctx) error {
	progress, err := h.engine.LearningProgress(c.Params("id"))
	if err != nil {
		return fail(c, err)
	}

	resp := fiber.Map{
		"total_questions_answered": progress.TotalQuestionsAnswered,
		"total_review_sessions":    progress.TotalReviewSessions,
		"improvement_trend":        progress.ImprovementTrend,
	}
	if progress.AverageScore != nil {
		resp["average_score"] = *progress.AverageScore
	}
	if progress.RecentAverageScore != nil {
		resp["recent_average_score"] = *progress.RecentAverageScore
	}
	return c.JSON(resp)
}
