package repository

import (
	"context"

	"github.com/spec-kit/clinic-crm/internal/domain"
)

// IncentiveRepository persists incentives keyed by their source record.
type IncentiveRepository interface {
	GetBySource(ctx context.Context, ref domain.SourceRef) (*domain.Incentive, error)
	// Upsert inserts or replaces the incentive of inc's source.
	Upsert(ctx context.Context, inc *domain.Incentive) error
	DeleteBySource(ctx context.Context, ref domain.SourceRef) (bool, error)
}

type incentiveRepository struct {
	db DBTX
}

// NewIncentiveRepository instantiates the repository.
func NewIncentiveRepository(db DBTX) IncentiveRepository {
	return &incentiveRepository{db: db}
}

func (r *incentiveRepository) GetBySource(ctx context.Context, ref domain.SourceRef) (*domain.Incentive, error) {
	const query = `
        SELECT id, source_type, source_id, agent_id, amount, percentage, incentive_amount, created_at, updated_at
        FROM incentives WHERE source_type=$1 AND source_id=$2`

	var inc domain.Incentive
	if err := r.db.QueryRow(ctx, query, ref.Type, ref.ID).Scan(
		&inc.ID,
		&inc.SourceType,
		&inc.SourceID,
		&inc.AgentID,
		&inc.Amount,
		&inc.Percentage,
		&inc.IncentiveAmount,
		&inc.CreatedAt,
		&inc.UpdatedAt,
	); err != nil {
		return nil, notFound(err)
	}
	return &inc, nil
}

func (r *incentiveRepository) Upsert(ctx context.Context, inc *domain.Incentive) error {
	const query = `
        INSERT INTO incentives (source_type, source_id, agent_id, amount, percentage, incentive_amount)
        VALUES ($1,$2,$3,$4,$5,$6)
        ON CONFLICT (source_type, source_id) DO UPDATE
        SET agent_id=EXCLUDED.agent_id,
            amount=EXCLUDED.amount,
            percentage=EXCLUDED.percentage,
            incentive_amount=EXCLUDED.incentive_amount,
            updated_at=NOW()
        RETURNING id, created_at, updated_at`

	return r.db.QueryRow(ctx, query,
		inc.SourceType,
		inc.SourceID,
		inc.AgentID,
		inc.Amount,
		inc.Percentage,
		inc.IncentiveAmount,
	).Scan(&inc.ID, &inc.CreatedAt, &inc.UpdatedAt)
}

func (r *incentiveRepository) DeleteBySource(ctx context.Context, ref domain.SourceRef) (bool, error) {
	const query = `DELETE FROM incentives WHERE source_type=$1 AND source_id=$2`
	cmd, err := r.db.Exec(ctx, query, ref.Type, ref.ID)
	if err != nil {
		return false, err
	}
	return cmd.RowsAffected() > 0, nil
}
