package handlers

import (
	"context"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/studyowl/backend/internal/storage/models"
	"github.com/studyowl/backend/pkg/logger"
)

// KnowledgeBaseStore is the store surface the knowledge base endpoints use.
type KnowledgeBaseStore interface {
	CreateKnowledgeBase(kb *models.KnowledgeBase) error
	ListKnowledgeBases() ([]models.KnowledgeBase, error)
	GetKnowledgeBase(id string) (*models.KnowledgeBase, error)
	UpdateKnowledgeBase(id, name, description string) error
	ListDocuments(kbID string) ([]models.Document, error)
}

// KnowledgeBaseDeleter tears down a knowledge base including its stored
// blob files, not just the rows.
type KnowledgeBaseDeleter interface {
	DeleteKnowledgeBase(ctx context.Context, kbID string) error
}

type KnowledgeBaseHandler struct {
	store   KnowledgeBaseStore
	deleter KnowledgeBaseDeleter
}

func NewKnowledgeBaseHandler(store KnowledgeBaseStore, deleter KnowledgeBaseDeleter) *KnowledgeBaseHandler {
	return &KnowledgeBaseHandler{store: store, deleter: deleter}
}

func kbResponse(kb *models.KnowledgeBase) fiber.Map {
	return fiber.Map{
		"id":          kb.ID,
		"name":        kb.Name,
		"description": kb.Description,
		"created_at":  kb.CreatedAt.Unix(),
		"updated_at":  kb.UpdatedAt.Unix(),
	}
}

func (h *KnowledgeBaseHandler) Create(c *fiber.Ctx) error {
	var req struct {
		Name        string `json:"name"`
		Description string `json:"description"`
	}

	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}

	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Name is required",
		})
	}

	now := time.Now()
	kb := &models.KnowledgeBase{
		ID:          uuid.New().String(),
		Name:        req.Name,
		Description: req.Description,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	if err := h.store.CreateKnowledgeBase(kb); err != nil {
		logger.Error("Failed to create knowledge base", zap.Error(err))
		return fail(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(kbResponse(kb))
}

func (h *KnowledgeBaseHandler) List(c *fiber.Ctx) error {
	kbs, err := h.store.ListKnowledgeBases()
	if err != nil {
		logger.Error("Failed to list knowledge bases", zap.Error(err))
		return fail(c, err)
	}

	out := make([]fiber.Map, 0, len(kbs))
	for i := range kbs {
		out = append(out, kbResponse(&kbs[i]))
	}
	return c.JSON(fiber.Map{"knowledge_bases": out})
}

func (h *KnowledgeBaseHandler) Get(c *fiber.Ctx) error {
	kb, err := h.store.GetKnowledgeBase(c.Params("id"))
	if err != nil {
		return fail(c, err)
	}

	docs, err := h.store.ListDocuments(kb.ID)
	if err != nil {
		logger.Error("Failed to list documents", zap.Error(err))
		return fail(c, err)
	}

	resp := kbResponse(kb)
	resp["document_count"] = len(docs)
	return c.JSON(resp)
}

func (h *KnowledgeBaseHandler) Update(c *fiber.Ctx) error {
	var req struct {
		Name        string `json:"name"`
		Description string `json:"description"`
	}

	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}

	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Name is required",
		})
	}

	if err := h.store.UpdateKnowledgeBase(c.Params("id"), req.Name, req.Description); err != nil {
		return fail(c, err)
	}

	return c.JSON(fiber.Map{"message": "Knowledge base updated"})
}

func (h *KnowledgeBaseHandler) Delete(c *fiber.Ctx) error {
	id := c.Params("id")
	if err := h.deleter.DeleteKnowledgeBase(c.Context(), id); err != nil {
		return fail(c, err)
	}

	logger.Info("Knowledge base deleted via API", zap.String("kb_id", id))
	return c.JSON(fiber.Map{"message": "Knowledge base deleted"})
}
