package handlers

import (
	"net/http"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/spec-kit/clinic-crm/internal/api/dto"
	"github.com/spec-kit/clinic-crm/internal/auth"
	"github.com/spec-kit/clinic-crm/internal/domain"
	"github.com/spec-kit/clinic-crm/internal/service"
	apperrors "github.com/spec-kit/clinic-crm/pkg/util"
)

// AuthHandler exposes registration, login and token lifecycle endpoints.
type AuthHandler struct {
	auth   *service.AuthService
	cookie *auth.SessionCookie
	logger *zap.Logger
}

// NewAuthHandler constructs handler.
func NewAuthHandler(authService *service.AuthService, cookie *auth.SessionCookie, logger *zap.Logger) *AuthHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AuthHandler{auth: authService, cookie: cookie, logger: logger}
}

// Register handles POST /api/register.
func (h *AuthHandler) Register(c *fiber.Ctx) error {
	var req dto.RegisterRequest
	if err := c.BodyParser(&req); err != nil {
		return invalidPayload()
	}

	identity, issued, err := h.auth.Register(c.UserContext(), service.RegisterInput{
		Name:          req.Name,
		Email:         req.Email,
		Password:      req.Password,
		AccountTypeID: req.AccountTypeID,
	})
	if err != nil {
		return err
	}

	return respond(c, http.StatusCreated, dto.AuthResponse{
		User:          identityResponse(identity),
		TokenResponse: tokenResponse(issued),
	}, "User registered successfully.")
}

// Login handles POST /api/login.
func (h *AuthHandler) Login(c *fiber.Ctx) error {
	var req dto.LoginRequest
	if err := c.BodyParser(&req); err != nil {
		return invalidPayload()
	}

	result, err := h.auth.Login(c.UserContext(), req.Email, req.Password, h.currentSession(c))
	if err != nil {
		return err
	}
	if result.Session != nil {
		h.setSessionCookie(c, result.Session.ID)
	}

	return respond(c, http.StatusOK, dto.AuthResponse{
		User:          identityResponse(result.Identity),
		TokenResponse: tokenResponse(result.Token),
	}, "Login successful.")
}

// Logout handles POST /api/logout.
func (h *AuthHandler) Logout(c *fiber.Ctx) error {
	principal, _ := auth.PrincipalFromContext(c)
	if principal != nil && principal.SessionID == "" {
		// A bearer logout from a browser also ends the cookie session.
		scoped := *principal
		scoped.SessionID = h.currentSession(c)
		principal = &scoped
	}
	if err := h.auth.Logout(c.UserContext(), principal); err != nil {
		return err
	}
	h.clearSessionCookie(c)
	return respond(c, http.StatusOK, nil, "Logged out successfully.")
}

// Refresh handles POST /api/refresh.
func (h *AuthHandler) Refresh(c *fiber.Ctx) error {
	principal, _ := auth.PrincipalFromContext(c)
	issued, err := h.auth.Refresh(c.UserContext(), principal)
	if err != nil {
		return err
	}
	return respond(c, http.StatusOK, tokenResponse(issued), "Token refreshed.")
}

// Me handles GET /api/me.
func (h *AuthHandler) Me(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok {
		return apperrors.NewUnauthenticated()
	}
	profile, err := h.auth.Profile(c.UserContext(), principal.Identity)
	if err != nil {
		return err
	}
	return respond(c, http.StatusOK, dto.ProfileResponse{
		User:        identityResponse(profile.Identity),
		Roles:       profile.Roles,
		Permissions: profile.Permissions,
	}, "")
}

func (h *AuthHandler) currentSession(c *fiber.Ctx) string {
	return h.cookie.SessionID(c)
}

func (h *AuthHandler) setSessionCookie(c *fiber.Ctx, sessionID string) {
	if err := h.cookie.Set(c, sessionID); err != nil {
		h.logger.Warn("session cookie encoding failed", zap.Error(err))
	}
}

func (h *AuthHandler) clearSessionCookie(c *fiber.Ctx) {
	h.cookie.Clear(c)
}

func identityResponse(identity *domain.Identity) dto.IdentityResponse {
	return dto.IdentityResponse{
		ID:            identity.ID,
		Name:          identity.Name,
		Email:         identity.Email,
		AccountTypeID: identity.AccountTypeID,
		CreatedAt:     identity.CreatedAt,
	}
}

func tokenResponse(issued *auth.IssuedToken) dto.TokenResponse {
	return dto.TokenResponse{
		Token:     issued.PlainText,
		TokenType: issued.Type,
		ExpiresAt: dto.ISOTime(issued.ExpiresAt),
	}
}
