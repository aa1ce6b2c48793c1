package service

import (
	"context"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/clinic-crm/internal/auth"
	"github.com/spec-kit/clinic-crm/internal/domain"
	"github.com/spec-kit/clinic-crm/internal/events"
	"github.com/spec-kit/clinic-crm/internal/repository/memory"
	apperrors "github.com/spec-kit/clinic-crm/pkg/util"
)

func registerAda(t *testing.T, svc *AuthService) *domain.Identity {
	t.Helper()
	identity, issued, err := svc.Register(context.Background(), RegisterInput{
		Name:     "Ada",
		Email:    " Ada@Clinic.test ",
		Password: "s3cret-pass",
	})
	require.NoError(t, err)
	require.Nil(t, issued.ExpiresAt)
	return identity
}

func TestRegisterIssuesTokenWithoutExpiry(t *testing.T) {
	store := memory.New()
	rec := newRecorder()
	svc, _ := newAuthService(t, store, rec)

	identity, issued, err := svc.Register(context.Background(), RegisterInput{
		Name:     "Ada",
		Email:    "ada@clinic.test",
		Password: "s3cret-pass",
	})
	require.NoError(t, err)
	assert.NotZero(t, identity.ID)
	assert.NotEqual(t, "s3cret-pass", identity.PasswordHash)
	assert.Equal(t, auth.TokenTypeBearer, issued.Type)
	assert.Equal(t, auth.TokenNameRegister, issued.Token.Name)
	assert.Nil(t, issued.ExpiresAt)

	assert.Equal(t, []events.EventType{events.EventIdentityRegistered, events.EventTokenIssued}, rec.types())
}

func TestRegisterRejectsDuplicateEmail(t *testing.T) {
	store := memory.New()
	svc, _ := newAuthService(t, store, nil)
	registerAda(t, svc)

	_, _, err := svc.Register(context.Background(), RegisterInput{
		Name:     "Other",
		Email:    "ada@clinic.test",
		Password: "another-pass",
	})
	de := apperrors.ToDomainError(err)
	require.NotNil(t, de)
	assert.Equal(t, http.StatusUnprocessableEntity, de.HTTPStatus)
	assert.Contains(t, de.Details, "email")
}

func TestRegisterValidation(t *testing.T) {
	svc, _ := newAuthService(t, memory.New(), nil)

	tests := map[string]struct {
		in     RegisterInput
		fields []string
	}{
		"all missing":    {in: RegisterInput{}, fields: []string{"name", "email", "password"}},
		"bad email":      {in: RegisterInput{Name: "A", Email: "not-an-email", Password: "long-enough"}, fields: []string{"email"}},
		"short password": {in: RegisterInput{Name: "A", Email: "a@b.test", Password: "short"}, fields: []string{"password"}},
		"long password":  {in: RegisterInput{Name: "A", Email: "a@b.test", Password: strings.Repeat("x", 73)}, fields: []string{"password"}},
		"bad account":    {in: RegisterInput{Name: "A", Email: "a@b.test", Password: "long-enough", AccountTypeID: ptr(int64(-1))}, fields: []string{"account_type_id"}},
	}
	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			_, _, err := svc.Register(context.Background(), tc.in)
			de := apperrors.ToDomainError(err)
			require.NotNil(t, de)
			assert.Equal(t, apperrors.CodeValidationFailed, de.Code)
			assert.Len(t, de.Details, len(tc.fields))
			for _, field := range tc.fields {
				assert.Contains(t, de.Details, field)
			}
		})
	}
}

func TestLoginIssuesExpiringTokenAndSession(t *testing.T) {
	store := memory.New()
	svc, sessions := newAuthService(t, store, nil)
	registerAda(t, svc)

	before := time.Now().UTC()
	result, err := svc.Login(context.Background(), "ADA@clinic.test", "s3cret-pass", "")
	require.NoError(t, err)

	require.NotNil(t, result.Token.ExpiresAt)
	assert.Equal(t, result.Token.Token.CreatedAt.Add(24*time.Hour), *result.Token.ExpiresAt)
	assert.False(t, result.Token.Token.CreatedAt.Before(before.Truncate(time.Second)))
	assert.Equal(t, auth.TokenNameLogin, result.Token.Token.Name)

	require.NotNil(t, result.Session)
	stored, err := sessions.Get(context.Background(), result.Session.ID)
	require.NoError(t, err)
	assert.Equal(t, result.Identity.ID, stored.IdentityID)
}

func TestLoginRejectsBadCredentials(t *testing.T) {
	store := memory.New()
	svc, _ := newAuthService(t, store, nil)
	registerAda(t, svc)

	for name, creds := range map[string][2]string{
		"unknown email":  {"nobody@clinic.test", "s3cret-pass"},
		"wrong password": {"ada@clinic.test", "wrong-pass"},
	} {
		t.Run(name, func(t *testing.T) {
			_, err := svc.Login(context.Background(), creds[0], creds[1], "")
			de := apperrors.ToDomainError(err)
			assert.Equal(t, apperrors.CodeInvalidCredentials, de.Code)
			assert.Equal(t, http.StatusUnauthorized, de.HTTPStatus)
		})
	}

	_, err := svc.Login(context.Background(), "", "", "")
	assert.Equal(t, apperrors.CodeValidationFailed, apperrors.ToDomainError(err).Code)
}

func TestLogoutTwiceSucceeds(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	svc, sessions := newAuthService(t, store, nil)
	registerAda(t, svc)

	result, err := svc.Login(ctx, "ada@clinic.test", "s3cret-pass", "")
	require.NoError(t, err)
	principal := &auth.Principal{Identity: result.Identity, SessionID: result.Session.ID}

	require.NoError(t, svc.Logout(ctx, principal))
	require.NoError(t, svc.Logout(ctx, principal))

	_, err = store.Tokens().GetByID(ctx, result.Token.Token.ID)
	assert.Error(t, err)
	_, err = sessions.Get(ctx, result.Session.ID)
	assert.Error(t, err)
}

func TestLogoutWithoutPrincipal(t *testing.T) {
	svc, _ := newAuthService(t, memory.New(), nil)
	err := svc.Logout(context.Background(), nil)
	assert.Equal(t, apperrors.CodeInvalidToken, apperrors.ToDomainError(err).Code)
}

func TestRefreshReplacesAllTokens(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	svc, _ := newAuthService(t, store, nil)
	registerAda(t, svc)

	first, err := svc.Login(ctx, "ada@clinic.test", "s3cret-pass", "")
	require.NoError(t, err)
	second, err := svc.Login(ctx, "ada@clinic.test", "s3cret-pass", "")
	require.NoError(t, err)

	issued, err := svc.Refresh(ctx, &auth.Principal{Identity: first.Identity, Token: first.Token.Token})
	require.NoError(t, err)
	assert.Nil(t, issued.ExpiresAt)
	assert.Equal(t, auth.TokenNameRefresh, issued.Token.Name)

	for _, old := range []*auth.IssuedToken{first.Token, second.Token} {
		_, err := store.Tokens().GetByID(ctx, old.Token.ID)
		assert.Error(t, err)
	}
	_, err = store.Tokens().GetByID(ctx, issued.Token.ID)
	assert.NoError(t, err)
}

func TestRefreshRequiresIdentity(t *testing.T) {
	svc, _ := newAuthService(t, memory.New(), nil)
	_, err := svc.Refresh(context.Background(), nil)
	assert.Equal(t, http.StatusUnauthorized, apperrors.ToDomainError(err).HTTPStatus)
}

func TestProfileListsRolesAndPermissions(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	svc, _ := newAuthService(t, store, nil)
	identity := registerAda(t, svc)

	perms := store.Permissions()
	role := &domain.Role{Name: "pharmacist"}
	require.NoError(t, perms.CreateRole(ctx, role))
	view := &domain.Permission{Name: "pharmacy.view", Module: ptr("pharmacy")}
	require.NoError(t, perms.CreatePermission(ctx, view))
	incentives := &domain.Permission{Name: "incentives.view"}
	require.NoError(t, perms.CreatePermission(ctx, incentives))
	require.NoError(t, perms.AttachPermission(ctx, role.ID, view.ID))
	require.NoError(t, perms.AssignRole(ctx, identity.ID, role.ID))
	require.NoError(t, perms.GivePermission(ctx, identity.ID, incentives.ID))

	profile, err := svc.Profile(ctx, identity)
	require.NoError(t, err)
	assert.Equal(t, []string{"pharmacist"}, profile.Roles)
	assert.Equal(t, []string{"pharmacy.view", "incentives.view"}, profile.Permissions)
}
