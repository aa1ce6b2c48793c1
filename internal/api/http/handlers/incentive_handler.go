package handlers

import (
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/clinic-crm/internal/api/dto"
	"github.com/spec-kit/clinic-crm/internal/domain"
	"github.com/spec-kit/clinic-crm/internal/service"
)

// IncentiveHandler serves derived incentives.
type IncentiveHandler struct {
	service *service.IncentiveService
}

func NewIncentiveHandler(incentiveService *service.IncentiveService) *IncentiveHandler {
	return &IncentiveHandler{service: incentiveService}
}

// BySource GET /api/incentives/:source/:id.
func (h *IncentiveHandler) BySource(c *fiber.Ctx) error {
	id, err := pathID(c, "incentive")
	if err != nil {
		return err
	}
	inc, err := h.service.BySource(c.UserContext(), domain.SourceType(c.Params("source")), id)
	if err != nil {
		return err
	}
	return respond(c, http.StatusOK, dto.IncentiveResponse{
		ID:              inc.ID,
		SourceType:      string(inc.SourceType),
		SourceID:        inc.SourceID,
		AgentID:         inc.AgentID,
		Amount:          inc.Amount,
		Percentage:      inc.Percentage,
		IncentiveAmount: inc.IncentiveAmount,
		CreatedAt:       inc.CreatedAt,
		UpdatedAt:       inc.UpdatedAt,
	}, "")
}
