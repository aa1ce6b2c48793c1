package repository

import (
	"context"

	"github.com/spec-kit/clinic-crm/internal/domain"
)

// IdentityRepository defines persistence access for identities.
type IdentityRepository interface {
	Create(ctx context.Context, identity *domain.Identity) error
	GetByID(ctx context.Context, id int64) (*domain.Identity, error)
	GetByEmail(ctx context.Context, email string) (*domain.Identity, error)
}

type identityRepository struct {
	db DBTX
}

// NewIdentityRepository returns a Postgres-backed implementation.
func NewIdentityRepository(db DBTX) IdentityRepository {
	return &identityRepository{db: db}
}

func (r *identityRepository) Create(ctx context.Context, identity *domain.Identity) error {
	const query = `
        INSERT INTO users (name, email, password_hash, account_type_id)
        VALUES ($1, $2, $3, $4)
        RETURNING id, created_at, updated_at`

	err := r.db.QueryRow(ctx, query,
		identity.Name,
		identity.Email,
		identity.PasswordHash,
		identity.AccountTypeID,
	).Scan(&identity.ID, &identity.CreatedAt, &identity.UpdatedAt)
	return duplicate(err)
}

func (r *identityRepository) GetByID(ctx context.Context, id int64) (*domain.Identity, error) {
	const query = `
        SELECT id, name, email, password_hash, account_type_id, created_at, updated_at
        FROM users WHERE id=$1`

	return r.scanOne(ctx, query, id)
}

func (r *identityRepository) GetByEmail(ctx context.Context, email string) (*domain.Identity, error) {
	const query = `
        SELECT id, name, email, password_hash, account_type_id, created_at, updated_at
        FROM users WHERE email=$1`

	return r.scanOne(ctx, query, email)
}

func (r *identityRepository) scanOne(ctx context.Context, query string, arg any) (*domain.Identity, error) {
	var identity domain.Identity
	if err := r.db.QueryRow(ctx, query, arg).Scan(
		&identity.ID,
		&identity.Name,
		&identity.Email,
		&identity.PasswordHash,
		&identity.AccountTypeID,
		&identity.CreatedAt,
		&identity.UpdatedAt,
	); err != nil {
		return nil, notFound(err)
	}
	return &identity, nil
}
