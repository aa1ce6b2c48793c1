package service

import (
	"context"
	"strings"
	"time"

	"github.com/spec-kit/clinic-crm/internal/domain"
	"github.com/spec-kit/clinic-crm/internal/events"
	"github.com/spec-kit/clinic-crm/internal/incentive"
	"github.com/spec-kit/clinic-crm/internal/repository"
	"github.com/spec-kit/clinic-crm/internal/validation"
	apperrors "github.com/spec-kit/clinic-crm/pkg/util"
)

// AppointmentService manages appointments and their incentives.
type AppointmentService struct {
	backend    repository.Backend
	incentives incentiveSync
	dispatcher events.Dispatcher
}

// AppointmentInput describes a new appointment.
type AppointmentInput struct {
	PatientName string
	DoctorID    *int64
	ScheduledAt time.Time
	Amount      float64
	AgentID     *int64
	Status      domain.AppointmentStatus
}

// AppointmentPatch carries the fields of a partial update.
type AppointmentPatch struct {
	PatientName   *string
	DoctorID      *int64
	ScheduledAt   *time.Time
	Amount        *float64
	AgentID       *int64
	UnassignAgent bool
	Status        *domain.AppointmentStatus
}

func NewAppointmentService(deps RecordDependencies) *AppointmentService {
	return &AppointmentService{
		backend:    deps.Backend,
		incentives: deps.sync(),
		dispatcher: deps.Dispatcher,
	}
}

func (s *AppointmentService) Create(ctx context.Context, actorID int64, in AppointmentInput) (*domain.Appointment, error) {
	if in.Status == "" {
		in.Status = domain.AppointmentStatusBooked
	}
	appt := &domain.Appointment{
		PatientName: strings.TrimSpace(in.PatientName),
		DoctorID:    in.DoctorID,
		ScheduledAt: in.ScheduledAt.UTC(),
		Amount:      in.Amount,
		AgentID:     in.AgentID,
		Status:      in.Status,
	}
	if err := validation.Struct(appt); err != nil {
		return nil, err
	}
	if err := checkAgent(ctx, s.backend.Identities(), appt.AgentID); err != nil {
		return nil, err
	}

	var outcome incentive.Outcome
	err := s.backend.WithinTx(ctx, func(ctx context.Context, store repository.Store) error {
		if err := store.Appointments().Create(ctx, appt); err != nil {
			return err
		}
		outcome = s.incentives.created(ctx, store, appt.CommissionSource())
		return nil
	})
	if err != nil {
		return nil, apperrors.NewInternalError(err)
	}

	recordEvents(ctx, s.dispatcher, actorID, appt.CommissionSource().Ref, "created", outcome)
	return appt, nil
}

func (s *AppointmentService) Update(ctx context.Context, actorID, id int64, patch AppointmentPatch) (*domain.Appointment, error) {
	if !patch.UnassignAgent {
		if err := checkAgent(ctx, s.backend.Identities(), patch.AgentID); err != nil {
			return nil, err
		}
	}

	var (
		appt    *domain.Appointment
		outcome incentive.Outcome
	)
	err := s.backend.WithinTx(ctx, func(ctx context.Context, store repository.Store) error {
		current, err := store.Appointments().GetByIDForUpdate(ctx, id)
		if err != nil {
			return err
		}
		before := current.CommissionSource()

		applyAppointmentPatch(current, patch)
		if err := validation.Struct(current); err != nil {
			return err
		}
		if err := store.Appointments().Update(ctx, current); err != nil {
			return err
		}
		outcome = s.incentives.updated(ctx, store, before, current.CommissionSource())
		appt = current
		return nil
	})
	if err != nil {
		return nil, recordError("appointment", id, err)
	}

	recordEvents(ctx, s.dispatcher, actorID, appt.CommissionSource().Ref, "updated", outcome)
	return appt, nil
}

// Delete removes the appointment together with its incentive.
func (s *AppointmentService) Delete(ctx context.Context, actorID, id int64) error {
	ref := domain.SourceRef{Type: domain.SourceAppointment, ID: id}
	var outcome incentive.Outcome
	err := s.backend.WithinTx(ctx, func(ctx context.Context, store repository.Store) error {
		if err := store.Appointments().Delete(ctx, id); err != nil {
			return err
		}
		outcome = s.incentives.deleted(ctx, store, ref)
		return nil
	})
	if err != nil {
		return recordError("appointment", id, err)
	}

	recordEvents(ctx, s.dispatcher, actorID, ref, "deleted", outcome)
	return nil
}

func (s *AppointmentService) Get(ctx context.Context, id int64) (*domain.Appointment, error) {
	appt, err := s.backend.Appointments().GetByID(ctx, id)
	if err != nil {
		return nil, recordError("appointment", id, err)
	}
	return appt, nil
}

func (s *AppointmentService) List(ctx context.Context, limit, offset int) ([]domain.Appointment, error) {
	appts, err := s.backend.Appointments().List(ctx, limit, offset)
	if err != nil {
		return nil, apperrors.NewInternalError(err)
	}
	return appts, nil
}

func applyAppointmentPatch(appt *domain.Appointment, patch AppointmentPatch) {
	if patch.PatientName != nil {
		appt.PatientName = strings.TrimSpace(*patch.PatientName)
	}
	if patch.DoctorID != nil {
		appt.DoctorID = patch.DoctorID
	}
	if patch.ScheduledAt != nil {
		appt.ScheduledAt = patch.ScheduledAt.UTC()
	}
	if patch.Amount != nil {
		appt.Amount = *patch.Amount
	}
	if patch.UnassignAgent {
		appt.AgentID = nil
	} else if patch.AgentID != nil {
		appt.AgentID = patch.AgentID
	}
	if patch.Status != nil {
		appt.Status = *patch.Status
	}
}
