package repository

import (
	"context"
	"fmt"

	"github.com/spec-kit/clinic-crm/internal/domain"
)

// PharmacyRepository handles persistence for pharmacy records.
type PharmacyRepository interface {
	Create(ctx context.Context, record *domain.PharmacyRecord) error
	Update(ctx context.Context, record *domain.PharmacyRecord) error
	Delete(ctx context.Context, id int64) error
	GetByID(ctx context.Context, id int64) (*domain.PharmacyRecord, error)
	// GetByIDForUpdate locks the row until the surrounding transaction ends.
	GetByIDForUpdate(ctx context.Context, id int64) (*domain.PharmacyRecord, error)
	List(ctx context.Context, limit, offset int) ([]domain.PharmacyRecord, error)
}

type pharmacyRepository struct {
	db DBTX
}

// NewPharmacyRepository instantiates the repository.
func NewPharmacyRepository(db DBTX) PharmacyRepository {
	return &pharmacyRepository{db: db}
}

const pharmacyColumns = `id, patient_name, medicine, amount, agent_id, status, created_at, updated_at`

func (r *pharmacyRepository) Create(ctx context.Context, record *domain.PharmacyRecord) error {
	const query = `
        INSERT INTO pharmacy_records (patient_name, medicine, amount, agent_id, status)
        VALUES ($1,$2,$3,$4,$5)
        RETURNING id, created_at, updated_at`

	return r.db.QueryRow(ctx, query,
		record.PatientName,
		record.Medicine,
		record.Amount,
		record.AgentID,
		record.Status,
	).Scan(&record.ID, &record.CreatedAt, &record.UpdatedAt)
}

func (r *pharmacyRepository) Update(ctx context.Context, record *domain.PharmacyRecord) error {
	const query = `
        UPDATE pharmacy_records
        SET patient_name=$1, medicine=$2, amount=$3, agent_id=$4, status=$5, updated_at=NOW()
        WHERE id=$6
        RETURNING updated_at`

	err := r.db.QueryRow(ctx, query,
		record.PatientName,
		record.Medicine,
		record.Amount,
		record.AgentID,
		record.Status,
		record.ID,
	).Scan(&record.UpdatedAt)
	return notFound(err)
}

func (r *pharmacyRepository) Delete(ctx context.Context, id int64) error {
	cmd, err := r.db.Exec(ctx, `DELETE FROM pharmacy_records WHERE id=$1`, id)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *pharmacyRepository) GetByID(ctx context.Context, id int64) (*domain.PharmacyRecord, error) {
	query := `SELECT ` + pharmacyColumns + ` FROM pharmacy_records WHERE id=$1`
	return r.scanOne(ctx, query, id)
}

func (r *pharmacyRepository) GetByIDForUpdate(ctx context.Context, id int64) (*domain.PharmacyRecord, error) {
	query := `SELECT ` + pharmacyColumns + ` FROM pharmacy_records WHERE id=$1 FOR UPDATE`
	return r.scanOne(ctx, query, id)
}

func (r *pharmacyRepository) List(ctx context.Context, limit, offset int) ([]domain.PharmacyRecord, error) {
	if limit <= 0 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}
	query := `SELECT ` + pharmacyColumns + ` FROM pharmacy_records ORDER BY created_at DESC` +
		fmt.Sprintf(" LIMIT %d OFFSET %d", limit, offset)

	rows, err := r.db.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.PharmacyRecord
	for rows.Next() {
		var record domain.PharmacyRecord
		if err := rows.Scan(
			&record.ID,
			&record.PatientName,
			&record.Medicine,
			&record.Amount,
			&record.AgentID,
			&record.Status,
			&record.CreatedAt,
			&record.UpdatedAt,
		); err != nil {
			return nil, err
		}
		result = append(result, record)
	}
	return result, rows.Err()
}

func (r *pharmacyRepository) scanOne(ctx context.Context, query string, id int64) (*domain.PharmacyRecord, error) {
	var record domain.PharmacyRecord
	if err := r.db.QueryRow(ctx, query, id).Scan(
		&record.ID,
		&record.PatientName,
		&record.Medicine,
		&record.Amount,
		&record.AgentID,
		&record.Status,
		&record.CreatedAt,
		&record.UpdatedAt,
	); err != nil {
		return nil, notFound(err)
	}
	return &record, nil
}
