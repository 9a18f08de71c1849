package handlers

import (
	"io"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/studyowl/backend/internal/ingestion"
	"github.com/studyowl/backend/internal/storage/models"
	"github.com/studyowl/backend/pkg/logger"
)

// DocumentStore lists and fetches persisted document rows; the write path
// goes through the ingestion processor.
type DocumentStore interface {
	ListDocuments(kbID string) ([]models.Document, error)
	GetDocument(id string) (*models.Document, error)
}

type DocumentHandler struct {
	processor *ingestion.Processor
	store     DocumentStore
}

func NewDocumentHandler(processor *ingestion.Processor, store DocumentStore) *DocumentHandler {
	return &DocumentHandler{processor: processor, store: store}
}

func docResponse(doc *models.Document) fiber.Map {
	return fiber.Map{
		"id":          doc.ID,
		"filename":    doc.Filename,
		"file_type":   string(doc.FileType),
		"file_size":   doc.FileSize,
		"upload_date": doc.UploadDate.Unix(),
	}
}

// Upload accepts a multipart form with a single "file" field.
func (h *DocumentHandler) Upload(c *fiber.Ctx) error {
	kbID := c.Params("id")

	fileHeader, err := c.FormFile("file")
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "A file field is required",
		})
	}

	f, err := fileHeader.Open()
	if err != nil {
		logger.Error("Failed to open uploaded file", zap.Error(err))
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Failed to read uploaded file",
		})
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		logger.Error("Failed to read uploaded file", zap.Error(err))
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Failed to read uploaded file",
		})
	}

	doc, err := h.processor.UploadDocument(c.Context(), kbID, fileHeader.Filename, data)
	if err != nil {
		logger.Error("Document upload failed",
			zap.String("kb_id", kbID),
			zap.String("filename", fileHeader.Filename),
			zap.Error(err),
		)
		return fail(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(docResponse(doc))
}

func (h *DocumentHandler) List(c *fiber.Ctx) error {
	docs, err := h.store.ListDocuments(c.Params("id"))
	if err != nil {
		logger.Error("Failed to list documents", zap.Error(err))
		return fail(c, err)
	}

	out := make([]fiber.Map, 0, len(docs))
	for i := range docs {
		out = append(out, docResponse(&docs[i]))
	}
	return c.JSON(fiber.Map{"documents": out})
}

func (h *DocumentHandler) Get(c *fiber.Ctx) error {
	doc, err := h.store.GetDocument(c.Params("docId"))
	if err != nil {
		return fail(c, err)
	}

	resp := docResponse(doc)
	resp["content_text"] = doc.ContentText
	return c.JSON(resp)
}

func (h *DocumentHandler) Delete(c *fiber.Ctx) error {
	if err := h.processor.DeleteDocument(c.Context(), c.Params("docId")); err != nil {
		return fail(c, err)
	}
	return c.JSON(fiber.Map{"message": "Document deleted"})
}
