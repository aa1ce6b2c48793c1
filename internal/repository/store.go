package repository

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

var (
	// ErrNotFound is returned when a lookup matches no row.
	ErrNotFound = errors.New("record not found")
	// ErrDuplicate is returned when a unique constraint rejects a write.
	ErrDuplicate = errors.New("record already exists")
)

const uniqueViolation = "23505"

// DBTX is satisfied by both *pgxpool.Pool and pgx.Tx.
type DBTX interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Begin(ctx context.Context) (pgx.Tx, error)
}

// Store groups the repositories that share one unit of work.
type Store interface {
	Identities() IdentityRepository
	Tokens() TokenRepository
	Permissions() PermissionRepository
	Pharmacy() PharmacyRepository
	Appointments() AppointmentRepository
	Incentives() IncentiveRepository

	// Savepoint runs fn in a nested unit of work; its writes are discarded if fn fails
	// while the enclosing work continues.
	Savepoint(ctx context.Context, fn func(Store) error) error
}

// TxManager runs a function inside a transaction.
type TxManager interface {
	WithinTx(ctx context.Context, fn func(ctx context.Context, store Store) error) error
}

// Backend is a Store that can also open transactions.
type Backend interface {
	Store
	TxManager
}

// PostgresStore implements Backend on top of pgx.
type PostgresStore struct {
	db DBTX
}

// NewPostgresStore wraps a pgx pool.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{db: pool}
}

func (s *PostgresStore) Identities() IdentityRepository      { return NewIdentityRepository(s.db) }
func (s *PostgresStore) Tokens() TokenRepository             { return NewTokenRepository(s.db) }
func (s *PostgresStore) Permissions() PermissionRepository   { return NewPermissionRepository(s.db) }
func (s *PostgresStore) Pharmacy() PharmacyRepository        { return NewPharmacyRepository(s.db) }
func (s *PostgresStore) Appointments() AppointmentRepository { return NewAppointmentRepository(s.db) }
func (s *PostgresStore) Incentives() IncentiveRepository     { return NewIncentiveRepository(s.db) }

// WithinTx commits when fn returns nil and rolls back otherwise.
func (s *PostgresStore) WithinTx(ctx context.Context, fn func(ctx context.Context, store Store) error) error {
	return pgx.BeginFunc(ctx, s.db, func(tx pgx.Tx) error {
		return fn(ctx, &PostgresStore{db: tx})
	})
}

// Savepoint uses a pgx nested transaction, which is a SAVEPOINT inside an open tx.
func (s *PostgresStore) Savepoint(ctx context.Context, fn func(Store) error) error {
	return pgx.BeginFunc(ctx, s.db, func(tx pgx.Tx) error {
		return fn(&PostgresStore{db: tx})
	})
}

func notFound(err error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	return err
}

func duplicate(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
		return ErrDuplicate
	}
	return err
}
