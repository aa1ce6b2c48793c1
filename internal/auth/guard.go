package auth

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/spec-kit/clinic-crm/internal/domain"
	"github.com/spec-kit/clinic-crm/internal/observability"
	"github.com/spec-kit/clinic-crm/internal/repository"
	"github.com/spec-kit/clinic-crm/internal/session"
	apperrors "github.com/spec-kit/clinic-crm/pkg/util"
)

// ErrUnauthenticated is the single outcome for credentials that do not resolve.
var ErrUnauthenticated = errors.New("unauthenticated")

// SessionReader loads server-side sessions.
type SessionReader interface {
	Get(ctx context.Context, id string) (*session.Session, error)
}

// CookieDecoder verifies a session cookie and returns the session id.
type CookieDecoder interface {
	Decode(value string) (string, error)
}

// GuardConfig wires the guard's collaborators. Sessions and Codec may be nil, in which
// case only bearer tokens resolve.
type GuardConfig struct {
	Identities repository.IdentityRepository
	Tokens     repository.TokenRepository
	Sessions   SessionReader
	Codec      CookieDecoder
	Generator  *TokenGenerator
	CookieName string
	// Cookie, when set, is re-issued on every resolved session so its expiry slides
	// together with the server-side TTL.
	Cookie    *SessionCookie
	LoginPath string
	Logger    *zap.Logger
	Metrics   *observability.Metrics
	Now       func() time.Time
}

// Guard resolves the presented credential to an Identity.
type Guard struct {
	cfg GuardConfig
}

func NewGuard(cfg GuardConfig) *Guard {
	if cfg.Generator == nil {
		cfg.Generator = NewTokenGenerator()
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	if cfg.LoginPath == "" {
		cfg.LoginPath = "/login"
	}
	return &Guard{cfg: cfg}
}

// ResolveToken maps a plaintext bearer token to its principal. Unknown, expired and
// orphaned tokens all yield ErrUnauthenticated; other errors are infrastructure faults.
func (g *Guard) ResolveToken(ctx context.Context, plain string) (*Principal, error) {
	var (
		token *domain.Token
		err   error
	)
	if id, secret, ok := SplitPlainText(plain); ok {
		token, err = g.cfg.Tokens.GetByID(ctx, id)
		if err == nil && !g.cfg.Generator.Matches(secret, token.Hash) {
			return nil, ErrUnauthenticated
		}
	} else {
		token, err = g.cfg.Tokens.GetByHash(ctx, g.cfg.Generator.Hash(plain))
	}
	if err != nil {
		return nil, unresolved(err)
	}

	now := g.cfg.Now()
	if token.Expired(now) {
		return nil, ErrUnauthenticated
	}

	identity, err := g.cfg.Identities.GetByID(ctx, token.IdentityID)
	if err != nil {
		return nil, unresolved(err)
	}

	if err := g.cfg.Tokens.Touch(ctx, token.ID, now); err != nil {
		g.cfg.Logger.Warn("token last_used touch failed", zap.Int64("token_id", token.ID), zap.Error(err))
	} else {
		token.LastUsedAt = &now
	}
	return &Principal{Identity: identity, Token: token}, nil
}

// ResolveSession maps a signed session cookie to its principal.
func (g *Guard) ResolveSession(ctx context.Context, cookie string) (*Principal, error) {
	if g.cfg.Sessions == nil || g.cfg.Codec == nil {
		return nil, ErrUnauthenticated
	}
	sid, err := g.cfg.Codec.Decode(cookie)
	if err != nil {
		return nil, ErrUnauthenticated
	}
	sess, err := g.cfg.Sessions.Get(ctx, sid)
	if err != nil {
		return nil, unresolved(err)
	}
	identity, err := g.cfg.Identities.GetByID(ctx, sess.IdentityID)
	if err != nil {
		return nil, unresolved(err)
	}
	return &Principal{Identity: identity, SessionID: sess.ID}, nil
}

func unresolved(err error) error {
	if errors.Is(err, repository.ErrNotFound) || errors.Is(err, session.ErrNotFound) {
		return ErrUnauthenticated
	}
	return err
}

// Handle is the fiber middleware. A bearer token takes precedence over the session cookie.
func (g *Guard) Handle(c *fiber.Ctx) error {
	ctx := c.UserContext()

	var (
		principal *Principal
		err       = ErrUnauthenticated
	)
	if token, ok := bearerFromContext(c); ok {
		principal, err = g.ResolveToken(ctx, token)
	} else if cookie := g.cookie(c); cookie != "" {
		principal, err = g.ResolveSession(ctx, cookie)
	}

	if err != nil {
		if !errors.Is(err, ErrUnauthenticated) {
			g.cfg.Metrics.RecordAuth(observability.StageGuard, "error")
			g.cfg.Logger.Error("credential resolution failed", zap.Error(err))
			return apperrors.NewInternalError(err)
		}
		g.cfg.Metrics.RecordAuth(observability.StageGuard, "unauthenticated")
		if wantsHTML(c) {
			return c.Redirect(g.cfg.LoginPath, http.StatusFound)
		}
		return apperrors.NewUnauthenticated()
	}

	g.cfg.Metrics.RecordAuth(observability.StageGuard, "resolved")
	if principal.SessionID != "" {
		if err := g.cfg.Cookie.Set(c, principal.SessionID); err != nil {
			g.cfg.Logger.Warn("session cookie refresh failed", zap.Error(err))
		}
	}
	attachPrincipal(c, principal)
	return c.Next()
}

func (g *Guard) cookie(c *fiber.Ctx) string {
	if g.cfg.CookieName == "" {
		return ""
	}
	return c.Cookies(g.cfg.CookieName)
}

// wantsHTML reports a browser navigation: it accepts HTML and is neither XHR nor a JSON request.
func wantsHTML(c *fiber.Ctx) bool {
	if c.XHR() {
		return false
	}
	accept := c.Get(fiber.HeaderAccept)
	if strings.Contains(accept, "/json") || strings.Contains(accept, "+json") {
		return false
	}
	return strings.Contains(accept, fiber.MIMETextHTML)
}
