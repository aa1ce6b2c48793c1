package app

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/spec-kit/clinic-crm/internal/config"
	"github.com/spec-kit/clinic-crm/internal/domain"
	"github.com/spec-kit/clinic-crm/internal/observability"
	"github.com/spec-kit/clinic-crm/internal/persistence"
	"github.com/spec-kit/clinic-crm/internal/repository/memory"
)

type server struct {
	app   *fiber.App
	store *memory.Store
}

type envelope struct {
	Status  string          `json:"status"`
	Message string          `json:"message"`
	Error   string          `json:"error"`
	Code    string          `json:"code"`
	Details map[string]any  `json:"details"`
	Data    json.RawMessage `json:"data"`
}

type tokenData struct {
	Token     string  `json:"token"`
	TokenType string  `json:"token_type"`
	ExpiresAt *string `json:"expires_at"`
}

func testConfig() *config.Config {
	return &config.Config{
		App: config.AppConfig{Name: "clinic-crm", Env: "test", Version: "test"},
		Auth: config.AuthConfig{
			AppKey:            "test-app-key",
			BcryptCost:        bcrypt.MinCost,
			SessionCookieName: "clinic_session",
			LoginRoute:        "/login",
		},
		Incentive: config.IncentiveConfig{Percentage: 1.00},
	}
}

func newServer(t *testing.T, mutate func(*config.Config)) *server {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	cfg := testConfig()
	if mutate != nil {
		mutate(cfg)
	}
	store := memory.New()
	app := New(cfg, Dependencies{
		Backend:  store,
		Postgres: &persistence.Postgres{},
		Redis:    &persistence.Redis{Client: client},
		Logger:   zap.NewNop(),
		Metrics:  observability.NewMetrics(),
	})
	return &server{app: app, store: store}
}

func (s *server) call(t *testing.T, method, path string, body any, headers map[string]string) (*http.Response, envelope) {
	t.Helper()
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	resp, err := s.app.Test(req, -1)
	require.NoError(t, err)

	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	var env envelope
	if len(raw) > 0 && raw[0] == '{' {
		require.NoError(t, json.Unmarshal(raw, &env))
	}
	return resp, env
}

func bearer(token string) map[string]string {
	return map[string]string{"Authorization": "Bearer " + token}
}

func (s *server) register(t *testing.T, email string) tokenData {
	t.Helper()
	resp, env := s.call(t, http.MethodPost, "/api/register", map[string]any{
		"name": "Agent", "email": email, "password": "s3cret-pass",
	}, nil)
	require.Equal(t, http.StatusCreated, resp.StatusCode, env.Message)
	var data tokenData
	require.NoError(t, json.Unmarshal(env.Data, &data))
	return data
}

func (s *server) login(t *testing.T, email string) (tokenData, *http.Response) {
	t.Helper()
	resp, env := s.call(t, http.MethodPost, "/api/login", map[string]any{
		"email": email, "password": "s3cret-pass",
	}, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode, env.Message)
	var data tokenData
	require.NoError(t, json.Unmarshal(env.Data, &data))
	return data, resp
}

// grant gives the identity a role carrying the named permissions, all scoped to module.
func (s *server) grant(t *testing.T, email, module string, names ...string) {
	t.Helper()
	ctx := context.Background()
	identity, err := s.store.Identities().GetByEmail(ctx, email)
	require.NoError(t, err)

	perms := s.store.Permissions()
	role := &domain.Role{Name: email + ":" + module}
	require.NoError(t, perms.CreateRole(ctx, role))
	for _, name := range names {
		perm := &domain.Permission{Name: name}
		if module != "" {
			perm.Module = &module
		}
		require.NoError(t, perms.CreatePermission(ctx, perm))
		require.NoError(t, perms.AttachPermission(ctx, role.ID, perm.ID))
	}
	require.NoError(t, perms.AssignRole(ctx, identity.ID, role.ID))
}

func TestGateCodesOverHTTP(t *testing.T) {
	s := newServer(t, nil)

	tests := map[string]struct {
		header string
		code   string
	}{
		"missing header":  {header: "", code: "MISSING_TOKEN"},
		"basic scheme":    {header: "Basic dXNlcjpwYXNz", code: "INVALID_FORMAT"},
		"empty token":     {header: "Bearer ", code: "EMPTY_TOKEN"},
		"unknown token":   {header: "Bearer 1|nope", code: "INVALID_TOKEN"},
		"bare bad secret": {header: "Bearer nope", code: "INVALID_TOKEN"},
	}
	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			headers := map[string]string{}
			if tc.header != "" {
				headers["Authorization"] = tc.header
			}
			resp, env := s.call(t, http.MethodGet, "/api/me", nil, headers)
			assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
			assert.Equal(t, tc.code, env.Code)
			assert.Equal(t, "error", env.Status)
			assert.Equal(t, "Unauthorized", env.Error)
		})
	}

	_, env := s.call(t, http.MethodGet, "/api/me", nil, bearer("1|nope"))
	assert.Equal(t, "Unauthenticated.", env.Message)
}

func TestRegisterLoginAndProfile(t *testing.T) {
	s := newServer(t, nil)

	registered := s.register(t, "ada@clinic.test")
	assert.Equal(t, "Bearer", registered.TokenType)
	assert.Nil(t, registered.ExpiresAt)

	loggedIn, _ := s.login(t, "ada@clinic.test")
	require.NotNil(t, loggedIn.ExpiresAt)
	assert.True(t, strings.HasSuffix(*loggedIn.ExpiresAt, "Z"))

	resp, env := s.call(t, http.MethodGet, "/api/me", nil, bearer(loggedIn.Token))
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var profile struct {
		User struct {
			Email string `json:"email"`
		} `json:"user"`
		Roles []string `json:"roles"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &profile))
	assert.Equal(t, "ada@clinic.test", profile.User.Email)
	assert.Empty(t, profile.Roles)
}

func TestLoginRejectsWrongPassword(t *testing.T) {
	s := newServer(t, nil)
	s.register(t, "ada@clinic.test")

	resp, env := s.call(t, http.MethodPost, "/api/login", map[string]any{
		"email": "ada@clinic.test", "password": "wrong-pass",
	}, nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.Equal(t, "INVALID_CREDENTIALS", env.Code)
}

func TestRegisterDuplicateEmailIsValidationError(t *testing.T) {
	s := newServer(t, nil)
	s.register(t, "ada@clinic.test")

	resp, env := s.call(t, http.MethodPost, "/api/register", map[string]any{
		"name": "Again", "email": "ada@clinic.test", "password": "s3cret-pass",
	}, nil)
	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
	assert.Equal(t, "VALIDATION_FAILED", env.Code)
	assert.Contains(t, env.Details, "email")
}

func TestLogoutRevokesToken(t *testing.T) {
	s := newServer(t, nil)
	s.register(t, "ada@clinic.test")
	token, _ := s.login(t, "ada@clinic.test")

	resp, _ := s.call(t, http.MethodPost, "/api/logout", nil, bearer(token.Token))
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp, env := s.call(t, http.MethodGet, "/api/me", nil, bearer(token.Token))
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.Equal(t, "INVALID_TOKEN", env.Code)

	resp, _ = s.call(t, http.MethodPost, "/api/logout", nil, bearer(token.Token))
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestRefreshInvalidatesPreviousTokens(t *testing.T) {
	s := newServer(t, nil)
	registered := s.register(t, "ada@clinic.test")
	token, _ := s.login(t, "ada@clinic.test")

	resp, env := s.call(t, http.MethodPost, "/api/refresh", nil, bearer(token.Token))
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var refreshed tokenData
	require.NoError(t, json.Unmarshal(env.Data, &refreshed))
	assert.Nil(t, refreshed.ExpiresAt)

	for _, old := range []string{registered.Token, token.Token} {
		resp, _ := s.call(t, http.MethodGet, "/api/me", nil, bearer(old))
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	}
	resp, _ = s.call(t, http.MethodGet, "/api/me", nil, bearer(refreshed.Token))
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestSessionCookieResolves(t *testing.T) {
	s := newServer(t, nil)
	s.register(t, "ada@clinic.test")
	_, loginResp := s.login(t, "ada@clinic.test")

	var cookie *http.Cookie
	for _, c := range loginResp.Cookies() {
		if c.Name == "clinic_session" {
			cookie = c
		}
	}
	require.NotNil(t, cookie)
	assert.True(t, cookie.HttpOnly)

	resp, _ := s.call(t, http.MethodGet, "/api/me", nil, map[string]string{
		"Cookie": "clinic_session=" + cookie.Value,
	})
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var slid bool
	for _, c := range resp.Cookies() {
		slid = slid || (c.Name == "clinic_session" && c.Value != "")
	}
	assert.True(t, slid, "a resolved session re-issues its cookie")
}

func TestBrowserWithStaleCookieIsRedirected(t *testing.T) {
	s := newServer(t, nil)

	resp, _ := s.call(t, http.MethodGet, "/api/me", nil, map[string]string{
		"Cookie": "clinic_session=stale",
		"Accept": "text/html,application/xhtml+xml",
	})
	assert.Equal(t, http.StatusFound, resp.StatusCode)
	assert.Equal(t, "/login", resp.Header.Get("Location"))

	resp, env := s.call(t, http.MethodGet, "/api/me", nil, map[string]string{
		"Cookie": "clinic_session=stale",
	})
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.Equal(t, "INVALID_TOKEN", env.Code)
}

func TestPharmacyRoutesEnforcePermissions(t *testing.T) {
	s := newServer(t, nil)
	s.register(t, "agent@clinic.test")
	token, _ := s.login(t, "agent@clinic.test")
	auth := bearer(token.Token)

	resp, env := s.call(t, http.MethodGet, "/api/pharmacy", nil, auth)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	assert.Equal(t, "FORBIDDEN", env.Code)
	assert.Equal(t, []any{"pharmacy.view", "pharmacy.manage"}, env.Details["required_permissions"])

	s.grant(t, "agent@clinic.test", "appointments", "pharmacy.view")
	resp, _ = s.call(t, http.MethodGet, "/api/pharmacy", nil, auth)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode, "module-scoped permission must not cross modules")

	s.grant(t, "agent@clinic.test", "pharmacy", "pharmacy.manage")
	resp, _ = s.call(t, http.MethodGet, "/api/pharmacy", nil, auth)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestPharmacyCreateDerivesIncentive(t *testing.T) {
	s := newServer(t, nil)
	s.register(t, "agent@clinic.test")
	s.grant(t, "agent@clinic.test", "pharmacy", "pharmacy.manage")
	s.grant(t, "agent@clinic.test", "", "incentives.view")
	token, _ := s.login(t, "agent@clinic.test")
	auth := bearer(token.Token)
	s.register(t, "seller@clinic.test")
	seller, err := s.store.Identities().GetByEmail(context.Background(), "seller@clinic.test")
	require.NoError(t, err)

	resp, env := s.call(t, http.MethodPost, "/api/pharmacy", map[string]any{
		"patient_name": "Ada", "medicine": "Insulin", "amount": 500.00, "agent_id": seller.ID,
	}, auth)
	require.Equal(t, http.StatusCreated, resp.StatusCode, env.Message)
	var record struct {
		ID int64 `json:"id"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &record))

	resp, env = s.call(t, http.MethodGet, "/api/incentives/pharmacy/"+itoa(record.ID), nil, auth)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var inc struct {
		AgentID         int64   `json:"agent_id"`
		IncentiveAmount float64 `json:"incentive_amount"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &inc))
	assert.Equal(t, seller.ID, inc.AgentID)
	assert.Equal(t, 5.00, inc.IncentiveAmount)

	resp, _ = s.call(t, http.MethodPut, "/api/pharmacy/"+itoa(record.ID), map[string]any{"amount": 0}, auth)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	resp, env = s.call(t, http.MethodGet, "/api/incentives/pharmacy/"+itoa(record.ID), nil, auth)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Equal(t, "NOT_FOUND", env.Code)
}

func TestPharmacyCreateRejectsInvalidPayload(t *testing.T) {
	s := newServer(t, nil)
	s.register(t, "agent@clinic.test")
	s.grant(t, "agent@clinic.test", "pharmacy", "pharmacy.manage")
	token, _ := s.login(t, "agent@clinic.test")
	auth := bearer(token.Token)

	cases := []struct {
		name  string
		body  map[string]any
		field string
	}{
		{"amount overflows the column", map[string]any{"patient_name": "Ada", "medicine": "Insulin", "amount": 1e15}, "amount"},
		{"fractional cents", map[string]any{"patient_name": "Ada", "medicine": "Insulin", "amount": 10.005}, "amount"},
		{"negative agent", map[string]any{"patient_name": "Ada", "medicine": "Insulin", "amount": 10, "agent_id": -1}, "agent_id"},
		{"zero agent", map[string]any{"patient_name": "Ada", "medicine": "Insulin", "amount": 10, "agent_id": 0}, "agent_id"},
		{"unknown agent", map[string]any{"patient_name": "Ada", "medicine": "Insulin", "amount": 10, "agent_id": 9999}, "agent_id"},
		{"missing medicine", map[string]any{"patient_name": "Ada", "amount": 10}, "medicine"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			resp, env := s.call(t, http.MethodPost, "/api/pharmacy", tc.body, auth)
			assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
			assert.Equal(t, "VALIDATION_FAILED", env.Code)
			assert.Equal(t, "The given data was invalid.", env.Message)
			assert.Contains(t, env.Details, tc.field)
		})
	}

	resp, env := s.call(t, http.MethodGet, "/api/pharmacy", nil, auth)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.JSONEq(t, "[]", string(env.Data))
}

func TestLoginIsThrottled(t *testing.T) {
	s := newServer(t, func(cfg *config.Config) {
		cfg.Auth.LoginAttemptsPerMinute = 1
		cfg.Auth.LoginBurst = 1
	})

	body := map[string]any{"email": "nobody@clinic.test", "password": "whatever"}
	resp, _ := s.call(t, http.MethodPost, "/api/login", body, nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp, env := s.call(t, http.MethodPost, "/api/login", body, nil)
	assert.Equal(t, http.StatusTooManyRequests, resp.StatusCode)
	assert.Equal(t, "TOO_MANY_ATTEMPTS", env.Code)
	assert.Equal(t, "60", resp.Header.Get("Retry-After"))
}

func TestUnknownRouteUsesErrorEnvelope(t *testing.T) {
	s := newServer(t, nil)
	resp, env := s.call(t, http.MethodGet, "/nope", nil, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Equal(t, "NOT_FOUND", env.Code)
	assert.Equal(t, "error", env.Status)
}

func TestHealthAndMetrics(t *testing.T) {
	s := newServer(t, nil)

	resp, _ := s.call(t, http.MethodGet, "/health/ready", nil, nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, _ = s.call(t, http.MethodGet, "/metrics", nil, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	resp, err := s.app.Test(req, -1)
	require.NoError(t, err)
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(raw), "http_requests_total")
}

func TestMetricsLabelRouteTemplates(t *testing.T) {
	s := newServer(t, nil)
	s.register(t, "agent@clinic.test")
	s.grant(t, "agent@clinic.test", "pharmacy", "pharmacy.manage")
	token, _ := s.login(t, "agent@clinic.test")

	resp, _ := s.call(t, http.MethodGet, "/api/pharmacy/123", nil, bearer(token.Token))
	require.Equal(t, http.StatusNotFound, resp.StatusCode)
	for _, path := range []string{"/nope-1", "/nope-2"} {
		resp, _ = s.call(t, http.MethodGet, path, nil, nil)
		require.Equal(t, http.StatusNotFound, resp.StatusCode)
	}

	resp, err := s.app.Test(httptest.NewRequest(http.MethodGet, "/metrics", nil), -1)
	require.NoError(t, err)
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	exposition := string(raw)

	assert.Contains(t, exposition, `path="/api/pharmacy/:id"`)
	assert.Contains(t, exposition, `path="unmatched"`)
	assert.NotContains(t, exposition, "/api/pharmacy/123")
	assert.NotContains(t, exposition, "/nope-")
}
