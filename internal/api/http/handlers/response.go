package handlers

import (
	"strconv"

	"github.com/gofiber/fiber/v2"

	apperrors "github.com/spec-kit/clinic-crm/pkg/util"
)

// respond writes the success envelope.
func respond(c *fiber.Ctx, status int, data any, message string) error {
	return c.Status(status).JSON(fiber.Map{
		"status":  "success",
		"data":    data,
		"message": message,
	})
}

// pathID parses the :id route parameter. Anything that is not a positive integer cannot
// name a record.
func pathID(c *fiber.Ctx, resource string) (int64, error) {
	raw := c.Params("id")
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, apperrors.NewNotFound(resource, map[string]any{"id": raw})
	}
	return id, nil
}

func invalidPayload() error {
	return apperrors.NewValidationError("invalid payload", nil)
}
