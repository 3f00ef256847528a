package handlers

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/docqa/backend/pkg/faults"
	"github.com/docqa/backend/pkg/logger"
)

// fail maps a failure kind onto an HTTP status. Validation details are safe
// to echo back; everything else gets a generic message and a server log.
func fail(c *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, faults.ErrValidation):
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": err.Error(),
		})
	case errors.Is(err, faults.ErrNotFound):
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": err.Error(),
		})
	case errors.Is(err, faults.ErrEmbedding), errors.Is(err, faults.ErrGeneration):
		logger.Error("Upstream model call failed",
			zap.String("path", c.Path()),
			zap.Error(err),
		)
		return c.Status(fiber.StatusBadGateway).JSON(fiber.Map{
			"error": "Upstream model unavailable",
		})
	default:
		logger.Error("Request failed",
			zap.String("path", c.Path()),
			zap.Error(err),
		)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Internal server error",
		})
	}
}
