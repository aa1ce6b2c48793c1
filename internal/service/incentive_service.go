package service

import (
	"context"

	"github.com/spec-kit/clinic-crm/internal/domain"
	"github.com/spec-kit/clinic-crm/internal/repository"
	"github.com/spec-kit/clinic-crm/internal/validation"
)

// IncentiveService exposes derived incentives read-only.
type IncentiveService struct {
	incentives repository.IncentiveRepository
}

func NewIncentiveService(store repository.Store) *IncentiveService {
	return &IncentiveService{incentives: store.Incentives()}
}

// BySource returns the incentive derived from one source record.
func (s *IncentiveService) BySource(ctx context.Context, sourceType domain.SourceType, id int64) (*domain.Incentive, error) {
	if !sourceType.Valid() {
		return nil, validation.Field("source", "The selected source is invalid.")
	}
	inc, err := s.incentives.GetBySource(ctx, domain.SourceRef{Type: sourceType, ID: id})
	if err != nil {
		return nil, recordError("incentive", id, err)
	}
	return inc, nil
}
