package service

import (
	"context"
	"errors"
	"strings"

	"go.uber.org/zap"

	"github.com/spec-kit/clinic-crm/internal/domain"
	"github.com/spec-kit/clinic-crm/internal/events"
	"github.com/spec-kit/clinic-crm/internal/incentive"
	"github.com/spec-kit/clinic-crm/internal/observability"
	"github.com/spec-kit/clinic-crm/internal/repository"
	"github.com/spec-kit/clinic-crm/internal/validation"
	apperrors "github.com/spec-kit/clinic-crm/pkg/util"
)

// RecordDependencies bundles collaborators shared by the record services.
type RecordDependencies struct {
	Backend    repository.Backend
	Engine     *incentive.Engine
	Dispatcher events.Dispatcher
	Logger     *zap.Logger
	Metrics    *observability.Metrics
}

func (d RecordDependencies) sync() incentiveSync {
	logger := d.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return incentiveSync{engine: d.Engine, logger: logger, metrics: d.Metrics}
}

// PharmacyService manages pharmacy records and their incentives.
type PharmacyService struct {
	backend    repository.Backend
	incentives incentiveSync
	dispatcher events.Dispatcher
}

// PharmacyInput describes a new pharmacy record.
type PharmacyInput struct {
	PatientName string
	Medicine    string
	Amount      float64
	AgentID     *int64
	Status      domain.PharmacyStatus
}

// PharmacyPatch carries the fields of a partial update. UnassignAgent clears the agent.
type PharmacyPatch struct {
	PatientName   *string
	Medicine      *string
	Amount        *float64
	AgentID       *int64
	UnassignAgent bool
	Status        *domain.PharmacyStatus
}

func NewPharmacyService(deps RecordDependencies) *PharmacyService {
	return &PharmacyService{
		backend:    deps.Backend,
		incentives: deps.sync(),
		dispatcher: deps.Dispatcher,
	}
}

// Create stores the record and derives its incentive in the same transaction.
func (s *PharmacyService) Create(ctx context.Context, actorID int64, in PharmacyInput) (*domain.PharmacyRecord, error) {
	if in.Status == "" {
		in.Status = domain.PharmacyStatusPending
	}
	record := &domain.PharmacyRecord{
		PatientName: strings.TrimSpace(in.PatientName),
		Medicine:    strings.TrimSpace(in.Medicine),
		Amount:      in.Amount,
		AgentID:     in.AgentID,
		Status:      in.Status,
	}
	if err := validation.Struct(record); err != nil {
		return nil, err
	}
	if err := checkAgent(ctx, s.backend.Identities(), record.AgentID); err != nil {
		return nil, err
	}

	var outcome incentive.Outcome
	err := s.backend.WithinTx(ctx, func(ctx context.Context, store repository.Store) error {
		if err := store.Pharmacy().Create(ctx, record); err != nil {
			return err
		}
		outcome = s.incentives.created(ctx, store, record.CommissionSource())
		return nil
	})
	if err != nil {
		return nil, apperrors.NewInternalError(err)
	}

	recordEvents(ctx, s.dispatcher, actorID, record.CommissionSource().Ref, "created", outcome)
	return record, nil
}

// Update applies patch under a row lock and re-evaluates the incentive when the
// commission inputs changed.
func (s *PharmacyService) Update(ctx context.Context, actorID, id int64, patch PharmacyPatch) (*domain.PharmacyRecord, error) {
	if !patch.UnassignAgent {
		if err := checkAgent(ctx, s.backend.Identities(), patch.AgentID); err != nil {
			return nil, err
		}
	}

	var (
		record  *domain.PharmacyRecord
		outcome incentive.Outcome
	)
	err := s.backend.WithinTx(ctx, func(ctx context.Context, store repository.Store) error {
		current, err := store.Pharmacy().GetByIDForUpdate(ctx, id)
		if err != nil {
			return err
		}
		before := current.CommissionSource()

		applyPharmacyPatch(current, patch)
		if err := validation.Struct(current); err != nil {
			return err
		}
		if err := store.Pharmacy().Update(ctx, current); err != nil {
			return err
		}
		outcome = s.incentives.updated(ctx, store, before, current.CommissionSource())
		record = current
		return nil
	})
	if err != nil {
		return nil, recordError("pharmacy record", id, err)
	}

	recordEvents(ctx, s.dispatcher, actorID, record.CommissionSource().Ref, "updated", outcome)
	return record, nil
}

// Delete removes the record together with its incentive.
func (s *PharmacyService) Delete(ctx context.Context, actorID, id int64) error {
	ref := domain.SourceRef{Type: domain.SourcePharmacy, ID: id}
	var outcome incentive.Outcome
	err := s.backend.WithinTx(ctx, func(ctx context.Context, store repository.Store) error {
		if err := store.Pharmacy().Delete(ctx, id); err != nil {
			return err
		}
		outcome = s.incentives.deleted(ctx, store, ref)
		return nil
	})
	if err != nil {
		return recordError("pharmacy record", id, err)
	}

	recordEvents(ctx, s.dispatcher, actorID, ref, "deleted", outcome)
	return nil
}

func (s *PharmacyService) Get(ctx context.Context, id int64) (*domain.PharmacyRecord, error) {
	record, err := s.backend.Pharmacy().GetByID(ctx, id)
	if err != nil {
		return nil, recordError("pharmacy record", id, err)
	}
	return record, nil
}

func (s *PharmacyService) List(ctx context.Context, limit, offset int) ([]domain.PharmacyRecord, error) {
	records, err := s.backend.Pharmacy().List(ctx, limit, offset)
	if err != nil {
		return nil, apperrors.NewInternalError(err)
	}
	return records, nil
}

func applyPharmacyPatch(record *domain.PharmacyRecord, patch PharmacyPatch) {
	if patch.PatientName != nil {
		record.PatientName = strings.TrimSpace(*patch.PatientName)
	}
	if patch.Medicine != nil {
		record.Medicine = strings.TrimSpace(*patch.Medicine)
	}
	if patch.Amount != nil {
		record.Amount = *patch.Amount
	}
	if patch.UnassignAgent {
		record.AgentID = nil
	} else if patch.AgentID != nil {
		record.AgentID = patch.AgentID
	}
	if patch.Status != nil {
		record.Status = *patch.Status
	}
}

// checkAgent rejects an agent that is not a known identity. A nil agent is unassigned.
func checkAgent(ctx context.Context, identities repository.IdentityRepository, agentID *int64) error {
	if agentID == nil {
		return nil
	}
	if *agentID <= 0 {
		return validation.Field("agent_id", "The agent id must be greater than 0.")
	}
	if _, err := identities.GetByID(ctx, *agentID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return validation.Field("agent_id", "The selected agent id is invalid.")
		}
		return apperrors.NewInternalError(err)
	}
	return nil
}

// recordError maps repository failures of a record operation to API errors.
func recordError(resource string, id int64, err error) error {
	var domainErr *apperrors.DomainError
	switch {
	case errors.As(err, &domainErr):
		return domainErr
	case errors.Is(err, repository.ErrNotFound):
		return apperrors.NewNotFound(resource, map[string]any{"id": id})
	default:
		return apperrors.NewInternalError(err)
	}
}
