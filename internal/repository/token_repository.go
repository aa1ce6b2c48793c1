package repository

import (
	"context"
	"time"

	"github.com/spec-kit/clinic-crm/internal/domain"
)

// TokenRepository manages personal access tokens.
type TokenRepository interface {
	Create(ctx context.Context, token *domain.Token) error
	GetByID(ctx context.Context, id int64) (*domain.Token, error)
	GetByHash(ctx context.Context, hash string) (*domain.Token, error)
	Touch(ctx context.Context, id int64, at time.Time) error
	DeleteByIdentity(ctx context.Context, identityID int64) (int64, error)
}

type tokenRepository struct {
	db DBTX
}

// NewTokenRepository constructs repository.
func NewTokenRepository(db DBTX) TokenRepository {
	return &tokenRepository{db: db}
}

func (r *tokenRepository) Create(ctx context.Context, token *domain.Token) error {
	const query = `
        INSERT INTO personal_access_tokens (user_id, name, token_hash, abilities, expires_at, created_at)
        VALUES ($1,$2,$3,$4,$5,$6)
        RETURNING id`
	return r.db.QueryRow(ctx, query,
		token.IdentityID,
		token.Name,
		token.Hash,
		token.Abilities,
		token.ExpiresAt,
		token.CreatedAt,
	).Scan(&token.ID)
}

func (r *tokenRepository) GetByID(ctx context.Context, id int64) (*domain.Token, error) {
	const query = `
        SELECT id, user_id, name, token_hash, abilities, last_used_at, expires_at, created_at
        FROM personal_access_tokens WHERE id=$1`
	return r.scanOne(ctx, query, id)
}

func (r *tokenRepository) GetByHash(ctx context.Context, hash string) (*domain.Token, error) {
	const query = `
        SELECT id, user_id, name, token_hash, abilities, last_used_at, expires_at, created_at
        FROM personal_access_tokens WHERE token_hash=$1`
	return r.scanOne(ctx, query, hash)
}

func (r *tokenRepository) Touch(ctx context.Context, id int64, at time.Time) error {
	const query = `
        UPDATE personal_access_tokens SET last_used_at=$1
        WHERE id=$2`
	_, err := r.db.Exec(ctx, query, at, id)
	return err
}

func (r *tokenRepository) DeleteByIdentity(ctx context.Context, identityID int64) (int64, error) {
	const query = `DELETE FROM personal_access_tokens WHERE user_id=$1`
	cmd, err := r.db.Exec(ctx, query, identityID)
	if err != nil {
		return 0, err
	}
	return cmd.RowsAffected(), nil
}

func (r *tokenRepository) scanOne(ctx context.Context, query string, arg any) (*domain.Token, error) {
	var token domain.Token
	if err := r.db.QueryRow(ctx, query, arg).Scan(
		&token.ID,
		&token.IdentityID,
		&token.Name,
		&token.Hash,
		&token.Abilities,
		&token.LastUsedAt,
		&token.ExpiresAt,
		&token.CreatedAt,
	); err != nil {
		return nil, notFound(err)
	}
	return &token, nil
}
