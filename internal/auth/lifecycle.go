package auth

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/clinic-crm/internal/domain"
	"github.com/spec-kit/clinic-crm/internal/repository"
	"github.com/spec-kit/clinic-crm/internal/session"
)

// TokenTypeBearer is the type tag returned with every issued token.
const TokenTypeBearer = "Bearer"

// Token names recorded per issuance path.
const (
	TokenNameLogin    = "auth_token"
	TokenNameRegister = "register_token"
	TokenNameRefresh  = "refresh_token"
)

// SessionManager rotates and destroys server-side sessions.
type SessionManager interface {
	Regenerate(ctx context.Context, currentID string, identityID int64) (*session.Session, error)
	Destroy(ctx context.Context, id string) error
}

// IssuedToken is handed to the client once; PlainText is never stored.
type IssuedToken struct {
	PlainText string
	Type      string
	ExpiresAt *time.Time
	Token     *domain.Token
}

// LifecycleConfig wires a Lifecycle. Sessions may be nil for token-only deployments.
type LifecycleConfig struct {
	Tx        repository.TxManager
	Sessions  SessionManager
	Generator *TokenGenerator
	LoginTTL  time.Duration
	Logger    *zap.Logger
	Now       func() time.Time
}

// Lifecycle issues, revokes and rotates tokens.
type Lifecycle struct {
	tx        repository.TxManager
	sessions  SessionManager
	generator *TokenGenerator
	loginTTL  time.Duration
	logger    *zap.Logger
	now       func() time.Time
}

func NewLifecycle(cfg LifecycleConfig) *Lifecycle {
	l := &Lifecycle{
		tx:        cfg.Tx,
		sessions:  cfg.Sessions,
		generator: cfg.Generator,
		loginTTL:  cfg.LoginTTL,
		logger:    cfg.Logger,
		now:       cfg.Now,
	}
	if l.generator == nil {
		l.generator = NewTokenGenerator()
	}
	if l.loginTTL <= 0 {
		l.loginTTL = 24 * time.Hour
	}
	if l.logger == nil {
		l.logger = zap.NewNop()
	}
	if l.now == nil {
		l.now = time.Now
	}
	return l
}

// Issue creates a token for identity inside store. A zero ttl issues a token without expiry.
func (l *Lifecycle) Issue(ctx context.Context, store repository.Store, identity *domain.Identity, name string, ttl time.Duration) (*IssuedToken, error) {
	secret, hash, err := l.generator.Generate()
	if err != nil {
		return nil, err
	}

	now := l.now().UTC()
	token := &domain.Token{
		IdentityID: identity.ID,
		Name:       name,
		Hash:       hash,
		Abilities:  []string{domain.AbilityAll},
		CreatedAt:  now,
	}
	if ttl > 0 {
		expiresAt := now.Add(ttl)
		token.ExpiresAt = &expiresAt
	}
	if err := store.Tokens().Create(ctx, token); err != nil {
		return nil, fmt.Errorf("create token: %w", err)
	}

	return &IssuedToken{
		PlainText: FormatPlainText(token.ID, secret),
		Type:      TokenTypeBearer,
		ExpiresAt: token.ExpiresAt,
		Token:     token,
	}, nil
}

// IssueForLogin issues a token valid for the login window and rotates the session bound
// to identity. A session failure is logged and yields a nil session; the token stands.
func (l *Lifecycle) IssueForLogin(ctx context.Context, identity *domain.Identity, currentSessionID string) (*IssuedToken, *session.Session, error) {
	var issued *IssuedToken
	err := l.tx.WithinTx(ctx, func(ctx context.Context, store repository.Store) error {
		var err error
		issued, err = l.Issue(ctx, store, identity, TokenNameLogin, l.loginTTL)
		return err
	})
	if err != nil {
		return nil, nil, err
	}

	if l.sessions == nil {
		return issued, nil, nil
	}
	sess, err := l.sessions.Regenerate(ctx, currentSessionID, identity.ID)
	if err != nil {
		l.logger.Warn("session rotation failed", zap.Int64("identity_id", identity.ID), zap.Error(err))
		return issued, nil, nil
	}
	return issued, sess, nil
}

// IssueForRegistration issues a token without expiry inside the registration unit of work.
func (l *Lifecycle) IssueForRegistration(ctx context.Context, store repository.Store, identity *domain.Identity) (*IssuedToken, error) {
	return l.Issue(ctx, store, identity, TokenNameRegister, 0)
}

// RevokeAll deletes every token of identity and destroys sessionID. Calling it with
// nothing left to revoke succeeds.
func (l *Lifecycle) RevokeAll(ctx context.Context, identity *domain.Identity, sessionID string) (int64, error) {
	if identity == nil {
		return 0, ErrUnauthenticated
	}

	var revoked int64
	err := l.tx.WithinTx(ctx, func(ctx context.Context, store repository.Store) error {
		var err error
		revoked, err = store.Tokens().DeleteByIdentity(ctx, identity.ID)
		return err
	})
	if err != nil {
		return 0, fmt.Errorf("revoke tokens: %w", err)
	}

	if l.sessions != nil && sessionID != "" {
		if err := l.sessions.Destroy(ctx, sessionID); err != nil {
			l.logger.Warn("session destroy failed", zap.Int64("identity_id", identity.ID), zap.Error(err))
		}
	}
	return revoked, nil
}

// Rotate replaces every token of identity with one new token without expiry, atomically.
func (l *Lifecycle) Rotate(ctx context.Context, identity *domain.Identity) (*IssuedToken, error) {
	if identity == nil {
		return nil, ErrUnauthenticated
	}

	var issued *IssuedToken
	err := l.tx.WithinTx(ctx, func(ctx context.Context, store repository.Store) error {
		if _, err := store.Tokens().DeleteByIdentity(ctx, identity.ID); err != nil {
			return fmt.Errorf("revoke tokens: %w", err)
		}
		var err error
		issued, err = l.Issue(ctx, store, identity, TokenNameRefresh, 0)
		return err
	})
	if err != nil {
		return nil, err
	}
	return issued, nil
}
