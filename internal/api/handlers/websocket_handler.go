package handlers

import (
	"context"

	"github.com/gofiber/websocket/v2"
	"go.uber.org/zap"

	"github.com/studyowl/backend/internal/review"
	"github.com/studyowl/backend/internal/storage/models"
	"github.com/studyowl/backend/pkg/logger"
)

// WebSocketHandler runs an interactive review session over one connection.
// The connection owns its session: an explicit end message records what was
// answered so far, while closing the socket abandons the session without
// persisting anything.
type WebSocketHandler struct {
	engine *review.Engine
}

func NewWebSocketHandler(engine *review.Engine) *WebSocketHandler {
	return &WebSocketHandler{engine: engine}
}

type wsMessage struct {
	Type   string `json:"type"`
	KBID   string `json:"kb_id,omitempty"`
	Target int    `json:"target,omitempty"`
	Answer string `json:"answer,omitempty"`
}

func (h *WebSocketHandler) HandleConnection(c *websocket.Conn) {
	logger.Info("Review WebSocket connected")

	var sessionID string
	defer func() {
		if sessionID != "" {
			// A dropped connection abandons the session.
			h.engine.Abandon(sessionID)
		}
		c.Close()
		logger.Info("Review WebSocket closed")
	}()

	for {
		var msg wsMessage
		if err := c.ReadJSON(&msg); err != nil {
			break
		}

		switch msg.Type {
		case "start":
			if sessionID != "" {
				h.sendError(c, "A session is already active on this connection")
				continue
			}
			snap, err := h.engine.StartSession(msg.KBID, msg.Target)
			if err != nil {
				h.sendError(c, errorMessage(err))
				continue
			}
			sessionID = snap.SessionID
			h.send(c, "question", map[string]interface{}{
				"session_id": snap.SessionID,
				"target":     snap.Target,
				"question":   wsQuestion(&snap.Question),
			})

		case "answer":
			if sessionID == "" {
				h.sendError(c, "No active session; send a start message first")
				continue
			}
			result, err := h.engine.SubmitAnswer(context.Background(), sessionID, msg.Answer)
			if err != nil {
				h.sendError(c, errorMessage(err))
				continue
			}

			h.send(c, "evaluation", map[string]interface{}{
				"score":       scoreOf(result.Answer),
				"feedback":    result.Answer.AIFeedback,
				"suggestions": result.Answer.AISuggestions,
			})

			if result.Completed {
				h.send(c, "complete", map[string]interface{}{
					"questions_count": result.Session.QuestionsCount,
					"average_score":   result.Session.AverageScore,
					"duration_sec":    result.Session.DurationSec,
				})
				sessionID = ""
				continue
			}
			h.send(c, "question", map[string]interface{}{
				"question": wsQuestion(result.Next),
			})

		case "end":
			if sessionID == "" {
				h.sendError(c, "No active session; send a start message first")
				continue
			}
			record, err := h.engine.EndSession(sessionID)
			if err != nil {
				h.sendError(c, errorMessage(err))
				continue
			}
			sessionID = ""
			if record == nil {
				h.send(c, "ended", map[string]interface{}{"recorded": false})
				continue
			}
			h.send(c, "complete", map[string]interface{}{
				"questions_count": record.QuestionsCount,
				"average_score":   record.AverageScore,
				"duration_sec":    record.DurationSec,
			})

		default:
			h.sendError(c, "Unknown message type")
		}
	}
}

func wsQuestion(q *models.Question) map[string]interface{} {
	return map[string]interface{}{
		"id":       q.ID,
		"question": q.QuestionText,
	}
}

func scoreOf(a *models.Answer) int {
	if a.AIScore == nil {
		return 0
	}
	return *a.AIScore
}

func errorMessage(err error) string {
	switch err {
	case review.ErrNoQuestions:
		return "Knowledge base has no questions yet"
	case review.ErrSessionNotFound:
		return "Review session not found"
	default:
		return "Failed to process message"
	}
}

func (h *WebSocketHandler) send(c *websocket.Conn, msgType string, payload map[string]interface{}) {
	payload["type"] = msgType
	if err := c.WriteJSON(payload); err != nil {
		logger.Error("Failed to write WebSocket message", zap.Error(err))
	}
}

func (h *WebSocketHandler) sendError(c *websocket.Conn, msg string) {
	h.send(c, "error", map[string]interface{}{"message": msg})
}
