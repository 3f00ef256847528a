package handlers

import (
	"io"
	"strconv"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/docqa/backend/internal/catalog"
	"github.com/docqa/backend/internal/ingestion"
	"github.com/docqa/backend/internal/query"
	"github.com/docqa/backend/internal/storage/models"
	"github.com/docqa/backend/pkg/logger"
)

type DocumentHandler struct {
	pipeline *ingestion.Pipeline
	catalog  *catalog.Catalog
	engine   *query.Engine
}

func NewDocumentHandler(pipeline *ingestion.Pipeline, cat *catalog.Catalog, engine *query.Engine) *DocumentHandler {
	return &DocumentHandler{
		pipeline: pipeline,
		catalog:  cat,
		engine:   engine,
	}
}

func (h *DocumentHandler) UploadDocument(c *fiber.Ctx) error {
	fileHeader, err := c.FormFile("file")
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "A file is required in the 'file' form field",
		})
	}

	file, err := fileHeader.Open()
	if err != nil {
		logger.Error("Failed to open uploaded file", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to read uploaded file",
		})
	}
	defer file.Close()

	content, err := io.ReadAll(file)
	if err != nil {
		logger.Error("Failed to read uploaded file", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to read uploaded file",
		})
	}

	record, err := h.pipeline.AddDocument(c.Context(), fileHeader.Filename, content)
	if err != nil {
		return fail(c, err)
	}

	return c.JSON(fiber.Map{
		"message":  "Document uploaded and indexed",
		"document": record,
	})
}

func (h *DocumentHandler) ListDocuments(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"documents": h.catalog.List(),
		"total":     h.catalog.Count(),
	})
}

func (h *DocumentHandler) GetDocument(c *fiber.Ctx) error {
	record, ok := h.catalog.Get(c.Params("id"))
	if !ok {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "Document not found",
		})
	}
	return c.JSON(record)
}

func (h *DocumentHandler) DeleteDocument(c *fiber.Ctx) error {
	docID := c.Params("id")

	removed, err := h.pipeline.RemoveDocument(c.Context(), docID)
	if err != nil {
		return fail(c, err)
	}
	if !removed {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "Document not found",
		})
	}

	return c.JSON(fiber.Map{
		"message": "Document deleted",
		"doc_id":  docID,
	})
}

func (h *DocumentHandler) SearchDocuments(c *fiber.Ctx) error {
	q := c.Query("q")
	if q == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Query parameter 'q' is required",
		})
	}

	k := 0
	if raw := c.Query("k"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": "Query parameter 'k' must be an integer",
			})
		}
		k = parsed
	}

	results, err := h.engine.Search(c.Context(), q, k)
	if err != nil {
		return fail(c, err)
	}
	if results == nil {
		results = []models.SearchResult{}
	}

	return c.JSON(fiber.Map{
		"query":   q,
		"results": results,
		"total":   len(results),
	})
}
