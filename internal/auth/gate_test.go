package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"

	apperrors "github.com/spec-kit/clinic-crm/pkg/util"
)

func TestClassify(t *testing.T) {
	cases := []struct {
		name    string
		header  string
		outcome GateOutcome
		token   string
	}{
		{"absent", "", GateAbsent, ""},
		{"blank header", "   ", GateMalformedScheme, ""},
		{"tab only", "\t", GateMalformedScheme, ""},
		{"basic scheme", "Basic dXNlcjpwYXNz", GateMalformedScheme, ""},
		{"lowercase scheme", "bearer abc", GateMalformedScheme, ""},
		{"bare scheme", "Bearer", GateEmptyToken, ""},
		{"scheme glued to token", "Bearerabc", GateMalformedScheme, ""},
		{"empty token", "Bearer ", GateEmptyToken, ""},
		{"only spaces", "Bearer    ", GateEmptyToken, ""},
		{"well formed", "Bearer 7|secret", GateWellFormed, "7|secret"},
		{"padded token", "Bearer  abc ", GateWellFormed, "abc"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := Classify(tc.header)
			assert.Equal(t, tc.outcome, got.Outcome)
			assert.Equal(t, tc.token, got.Token)
		})
	}
}

func TestGateRejectsWithCodes(t *testing.T) {
	app := testApp()
	gate := NewTokenGate("clinic_session", nil)
	app.Get("/api/me", gate.Handle, func(c *fiber.Ctx) error {
		token, _ := c.Locals(bearerKey).(string)
		return c.SendString(token)
	})

	cases := map[string]string{
		"":          apperrors.CodeMissingToken,
		"Token abc": apperrors.CodeInvalidFormat,
		"Bearer ":   apperrors.CodeEmptyToken,
	}
	for header, code := range cases {
		req := httptest.NewRequest(http.MethodGet, "/api/me", nil)
		if header != "" {
			req.Header.Set("Authorization", header)
		}
		resp, body := do(t, app, req)
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode, header)
		assert.Equal(t, code, body.Code, header)
	}

	req := httptest.NewRequest(http.MethodGet, "/api/me", nil)
	req.Header.Set("Authorization", "Bearer 1|abc")
	resp, err := app.Test(req)
	assert.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestGatePassesSessionCookieThrough(t *testing.T) {
	app := testApp()
	gate := NewTokenGate("clinic_session", nil)
	app.Get("/api/me", gate.Handle, func(c *fiber.Ctx) error { return c.SendStatus(http.StatusNoContent) })

	req := httptest.NewRequest(http.MethodGet, "/api/me", nil)
	req.AddCookie(&http.Cookie{Name: "clinic_session", Value: "anything"})
	resp, err := app.Test(req)
	assert.NoError(t, err)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
}
