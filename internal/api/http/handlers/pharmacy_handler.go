package handlers

import (
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/clinic-crm/internal/api/dto"
	"github.com/spec-kit/clinic-crm/internal/auth"
	"github.com/spec-kit/clinic-crm/internal/domain"
	"github.com/spec-kit/clinic-crm/internal/service"
	"github.com/spec-kit/clinic-crm/internal/validation"
)

// PharmacyHandler manages pharmacy record endpoints.
type PharmacyHandler struct {
	service *service.PharmacyService
}

// NewPharmacyHandler constructs handler.
func NewPharmacyHandler(pharmacyService *service.PharmacyService) *PharmacyHandler {
	return &PharmacyHandler{service: pharmacyService}
}

// List GET /api/pharmacy.
func (h *PharmacyHandler) List(c *fiber.Ctx) error {
	records, err := h.service.List(c.UserContext(), c.QueryInt("limit", 50), c.QueryInt("offset", 0))
	if err != nil {
		return err
	}
	items := make([]dto.PharmacyResponse, 0, len(records))
	for i := range records {
		items = append(items, pharmacyResponse(&records[i]))
	}
	return respond(c, http.StatusOK, items, "")
}

// Get GET /api/pharmacy/:id.
func (h *PharmacyHandler) Get(c *fiber.Ctx) error {
	id, err := pathID(c, "pharmacy record")
	if err != nil {
		return err
	}
	record, err := h.service.Get(c.UserContext(), id)
	if err != nil {
		return err
	}
	return respond(c, http.StatusOK, pharmacyResponse(record), "")
}

// Create POST /api/pharmacy.
func (h *PharmacyHandler) Create(c *fiber.Ctx) error {
	var req dto.PharmacyRequest
	if err := c.BodyParser(&req); err != nil {
		return invalidPayload()
	}
	if err := validation.Struct(&req); err != nil {
		return err
	}
	input := service.PharmacyInput{AgentID: req.AgentID}
	if req.PatientName != nil {
		input.PatientName = *req.PatientName
	}
	if req.Medicine != nil {
		input.Medicine = *req.Medicine
	}
	if req.Amount != nil {
		input.Amount = *req.Amount
	}
	if req.Status != nil {
		input.Status = domain.PharmacyStatus(*req.Status)
	}

	record, err := h.service.Create(c.UserContext(), actorID(c), input)
	if err != nil {
		return err
	}
	return respond(c, http.StatusCreated, pharmacyResponse(record), "Pharmacy record created.")
}

// Update PUT /api/pharmacy/:id.
func (h *PharmacyHandler) Update(c *fiber.Ctx) error {
	id, err := pathID(c, "pharmacy record")
	if err != nil {
		return err
	}
	var req dto.PharmacyRequest
	if err := c.BodyParser(&req); err != nil {
		return invalidPayload()
	}
	if err := validation.Struct(&req); err != nil {
		return err
	}
	patch := service.PharmacyPatch{
		PatientName:   req.PatientName,
		Medicine:      req.Medicine,
		Amount:        req.Amount,
		AgentID:       req.AgentID,
		UnassignAgent: req.UnassignAgent,
	}
	if req.Status != nil {
		status := domain.PharmacyStatus(*req.Status)
		patch.Status = &status
	}

	record, err := h.service.Update(c.UserContext(), actorID(c), id, patch)
	if err != nil {
		return err
	}
	return respond(c, http.StatusOK, pharmacyResponse(record), "Pharmacy record updated.")
}

// Delete DELETE /api/pharmacy/:id.
func (h *PharmacyHandler) Delete(c *fiber.Ctx) error {
	id, err := pathID(c, "pharmacy record")
	if err != nil {
		return err
	}
	if err := h.service.Delete(c.UserContext(), actorID(c), id); err != nil {
		return err
	}
	return respond(c, http.StatusOK, nil, "Pharmacy record deleted.")
}

func pharmacyResponse(record *domain.PharmacyRecord) dto.PharmacyResponse {
	return dto.PharmacyResponse{
		ID:          record.ID,
		PatientName: record.PatientName,
		Medicine:    record.Medicine,
		Amount:      record.Amount,
		AgentID:     record.AgentID,
		Status:      string(record.Status),
		CreatedAt:   record.CreatedAt,
		UpdatedAt:   record.UpdatedAt,
	}
}

func actorID(c *fiber.Ctx) int64 {
	if principal, ok := auth.PrincipalFromContext(c); ok && principal.Identity != nil {
		return principal.Identity.ID
	}
	return 0
}
