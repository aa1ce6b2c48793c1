package handlers

import (
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/clinic-crm/internal/api/dto"
	"github.com/spec-kit/clinic-crm/internal/domain"
	"github.com/spec-kit/clinic-crm/internal/service"
	"github.com/spec-kit/clinic-crm/internal/validation"
)

// AppointmentHandler manages appointment endpoints.
type AppointmentHandler struct {
	service *service.AppointmentService
}

// NewAppointmentHandler constructs handler.
func NewAppointmentHandler(appointmentService *service.AppointmentService) *AppointmentHandler {
	return &AppointmentHandler{service: appointmentService}
}

// List GET /api/appointments.
func (h *AppointmentHandler) List(c *fiber.Ctx) error {
	appts, err := h.service.List(c.UserContext(), c.QueryInt("limit", 50), c.QueryInt("offset", 0))
	if err != nil {
		return err
	}
	items := make([]dto.AppointmentResponse, 0, len(appts))
	for i := range appts {
		items = append(items, appointmentResponse(&appts[i]))
	}
	return respond(c, http.StatusOK, items, "")
}

// Get GET /api/appointments/:id.
func (h *AppointmentHandler) Get(c *fiber.Ctx) error {
	id, err := pathID(c, "appointment")
	if err != nil {
		return err
	}
	appt, err := h.service.Get(c.UserContext(), id)
	if err != nil {
		return err
	}
	return respond(c, http.StatusOK, appointmentResponse(appt), "")
}

// Create POST /api/appointments.
func (h *AppointmentHandler) Create(c *fiber.Ctx) error {
	var req dto.AppointmentRequest
	if err := c.BodyParser(&req); err != nil {
		return invalidPayload()
	}
	if err := validation.Struct(&req); err != nil {
		return err
	}
	input := service.AppointmentInput{DoctorID: req.DoctorID, AgentID: req.AgentID}
	if req.PatientName != nil {
		input.PatientName = *req.PatientName
	}
	if req.ScheduledAt != nil {
		input.ScheduledAt = *req.ScheduledAt
	}
	if req.Amount != nil {
		input.Amount = *req.Amount
	}
	if req.Status != nil {
		input.Status = domain.AppointmentStatus(*req.Status)
	}

	appt, err := h.service.Create(c.UserContext(), actorID(c), input)
	if err != nil {
		return err
	}
	return respond(c, http.StatusCreated, appointmentResponse(appt), "Appointment created.")
}

// Update PUT /api/appointments/:id.
func (h *AppointmentHandler) Update(c *fiber.Ctx) error {
	id, err := pathID(c, "appointment")
	if err != nil {
		return err
	}
	var req dto.AppointmentRequest
	if err := c.BodyParser(&req); err != nil {
		return invalidPayload()
	}
	if err := validation.Struct(&req); err != nil {
		return err
	}
	patch := service.AppointmentPatch{
		PatientName:   req.PatientName,
		DoctorID:      req.DoctorID,
		ScheduledAt:   req.ScheduledAt,
		Amount:        req.Amount,
		AgentID:       req.AgentID,
		UnassignAgent: req.UnassignAgent,
	}
	if req.Status != nil {
		status := domain.AppointmentStatus(*req.Status)
		patch.Status = &status
	}

	appt, err := h.service.Update(c.UserContext(), actorID(c), id, patch)
	if err != nil {
		return err
	}
	return respond(c, http.StatusOK, appointmentResponse(appt), "Appointment updated.")
}

// Delete DELETE /api/appointments/:id.
func (h *AppointmentHandler) Delete(c *fiber.Ctx) error {
	id, err := pathID(c, "appointment")
	if err != nil {
		return err
	}
	if err := h.service.Delete(c.UserContext(), actorID(c), id); err != nil {
		return err
	}
	return respond(c, http.StatusOK, nil, "Appointment deleted.")
}

func appointmentResponse(appt *domain.Appointment) dto.AppointmentResponse {
	return dto.AppointmentResponse{
		ID:          appt.ID,
		PatientName: appt.PatientName,
		DoctorID:    appt.DoctorID,
		ScheduledAt: appt.ScheduledAt,
		Amount:      appt.Amount,
		AgentID:     appt.AgentID,
		Status:      string(appt.Status),
		CreatedAt:   appt.CreatedAt,
		UpdatedAt:   appt.UpdatedAt,
	}
}
