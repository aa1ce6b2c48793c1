package service

import (
	"context"
	"errors"
	"strings"

	"go.uber.org/zap"

	"github.com/spec-kit/clinic-crm/internal/auth"
	"github.com/spec-kit/clinic-crm/internal/config"
	"github.com/spec-kit/clinic-crm/internal/domain"
	"github.com/spec-kit/clinic-crm/internal/events"
	"github.com/spec-kit/clinic-crm/internal/repository"
	"github.com/spec-kit/clinic-crm/internal/session"
	"github.com/spec-kit/clinic-crm/internal/validation"
	apperrors "github.com/spec-kit/clinic-crm/pkg/util"
)

// AuthService coordinates registration, login and token lifecycle flows.
type AuthService struct {
	backend    repository.Backend
	lifecycle  *auth.Lifecycle
	dispatcher events.Dispatcher
	logger     *zap.Logger
	bcryptCost int
}

// AuthDependencies encapsulates collaborators of the auth service.
type AuthDependencies struct {
	Backend    repository.Backend
	Lifecycle  *auth.Lifecycle
	Dispatcher events.Dispatcher
	Logger     *zap.Logger
}

// NewAuthService builds the service.
func NewAuthService(cfg config.AuthConfig, deps AuthDependencies) *AuthService {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AuthService{
		backend:    deps.Backend,
		lifecycle:  deps.Lifecycle,
		dispatcher: deps.Dispatcher,
		logger:     logger,
		bcryptCost: cfg.BcryptCost,
	}
}

// RegisterInput is the payload of a registration.
type RegisterInput struct {
	Name          string `validate:"required,max=255"`
	Email         string `validate:"required,email,max=255"`
	Password      string `validate:"required,min=8,max=72"`
	AccountTypeID *int64 `validate:"omitempty,gt=0"`
}

type credentials struct {
	Email    string `validate:"required"`
	Password string `validate:"required"`
}

// LoginResult carries the issued token and the rotated session, if any.
type LoginResult struct {
	Identity *domain.Identity
	Token    *auth.IssuedToken
	Session  *session.Session
}

// Profile describes the caller with its access grants.
type Profile struct {
	Identity    *domain.Identity
	Roles       []string
	Permissions []string
}

// Register creates an identity and issues a token without expiry.
func (s *AuthService) Register(ctx context.Context, in RegisterInput) (*domain.Identity, *auth.IssuedToken, error) {
	in.Name = strings.TrimSpace(in.Name)
	in.Email = strings.ToLower(strings.TrimSpace(in.Email))
	if err := validation.Struct(in); err != nil {
		return nil, nil, err
	}

	hash, err := auth.HashPassword(in.Password, s.bcryptCost)
	if err != nil {
		return nil, nil, apperrors.NewInternalError(err)
	}

	identity := &domain.Identity{
		Name:          in.Name,
		Email:         in.Email,
		PasswordHash:  hash,
		AccountTypeID: in.AccountTypeID,
	}

	var issued *auth.IssuedToken
	err = s.backend.WithinTx(ctx, func(ctx context.Context, store repository.Store) error {
		if err := store.Identities().Create(ctx, identity); err != nil {
			return err
		}
		var err error
		issued, err = s.lifecycle.IssueForRegistration(ctx, store, identity)
		return err
	})
	if err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, nil, validation.Field("email", "The email has already been taken.")
		}
		return nil, nil, apperrors.NewInternalError(err)
	}

	s.publish(ctx, events.New(events.EventIdentityRegistered, identity.ID, nil))
	s.publishIssued(ctx, identity.ID, issued)
	return identity, issued, nil
}

// Login verifies credentials, issues a time-boxed token and rotates the session.
func (s *AuthService) Login(ctx context.Context, email, password, currentSessionID string) (*LoginResult, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if err := validation.Struct(credentials{Email: email, Password: password}); err != nil {
		return nil, err
	}

	identity, err := s.backend.Identities().GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperrors.NewInvalidCredentials()
		}
		return nil, apperrors.NewInternalError(err)
	}
	if err := auth.ComparePassword(identity.PasswordHash, password); err != nil {
		return nil, apperrors.NewInvalidCredentials()
	}

	issued, sess, err := s.lifecycle.IssueForLogin(ctx, identity, currentSessionID)
	if err != nil {
		return nil, apperrors.NewInternalError(err)
	}

	s.publishIssued(ctx, identity.ID, issued)
	return &LoginResult{Identity: identity, Token: issued, Session: sess}, nil
}

// Logout revokes every token of the principal and destroys its session. Repeating it
// once nothing is left succeeds.
func (s *AuthService) Logout(ctx context.Context, principal *auth.Principal) error {
	if principal == nil || principal.Identity == nil {
		return apperrors.NewUnauthenticated()
	}
	revoked, err := s.lifecycle.RevokeAll(ctx, principal.Identity, principal.SessionID)
	if err != nil {
		return apperrors.NewInternalError(err)
	}
	s.publish(ctx, events.New(events.EventTokensRevoked, principal.Identity.ID,
		events.TokensRevokedPayload{Revoked: revoked, Reason: "logout"}))
	return nil
}

// Refresh replaces all tokens of the principal with a single new one.
func (s *AuthService) Refresh(ctx context.Context, principal *auth.Principal) (*auth.IssuedToken, error) {
	var identity *domain.Identity
	if principal != nil {
		identity = principal.Identity
	}
	issued, err := s.lifecycle.Rotate(ctx, identity)
	if err != nil {
		if errors.Is(err, auth.ErrUnauthenticated) {
			return nil, apperrors.NewUnauthenticated()
		}
		return nil, apperrors.NewInternalError(err)
	}

	s.publish(ctx, events.New(events.EventTokensRevoked, identity.ID,
		events.TokensRevokedPayload{Reason: "refresh"}))
	s.publishIssued(ctx, identity.ID, issued)
	return issued, nil
}

// Profile loads the roles and effective permission names of identity.
func (s *AuthService) Profile(ctx context.Context, identity *domain.Identity) (*Profile, error) {
	if identity == nil {
		return nil, apperrors.NewUnauthenticated()
	}
	roles, err := s.backend.Permissions().RolesForIdentity(ctx, identity.ID)
	if err != nil {
		return nil, apperrors.NewInternalError(err)
	}
	perms, err := s.backend.Permissions().EffectivePermissions(ctx, identity.ID)
	if err != nil {
		return nil, apperrors.NewInternalError(err)
	}

	profile := &Profile{Identity: identity, Roles: []string{}, Permissions: []string{}}
	for _, role := range roles {
		profile.Roles = append(profile.Roles, role.Name)
	}
	for _, perm := range perms {
		profile.Permissions = append(profile.Permissions, perm.Name)
	}
	return profile, nil
}

func (s *AuthService) publishIssued(ctx context.Context, identityID int64, issued *auth.IssuedToken) {
	s.publish(ctx, events.New(events.EventTokenIssued, identityID, events.TokenIssuedPayload{
		TokenID:   issued.Token.ID,
		Name:      issued.Token.Name,
		ExpiresAt: issued.ExpiresAt,
	}))
}

func (s *AuthService) publish(ctx context.Context, event events.Event) {
	if s.dispatcher == nil {
		return
	}
	_ = s.dispatcher.Publish(ctx, event)
}
