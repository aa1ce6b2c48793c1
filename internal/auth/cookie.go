package auth

import (
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/clinic-crm/internal/session"
)

// SessionCookie reads and writes the signed cookie that carries a session id.
type SessionCookie struct {
	Name   string
	TTL    time.Duration
	Secure bool
	Codec  *session.Codec
	Now    func() time.Time
}

func (sc *SessionCookie) enabled() bool {
	return sc != nil && sc.Codec != nil && sc.Name != ""
}

func (sc *SessionCookie) now() time.Time {
	if sc.Now != nil {
		return sc.Now()
	}
	return time.Now()
}

// Set issues a cookie for sessionID that lives for a full TTL from now.
func (sc *SessionCookie) Set(c *fiber.Ctx, sessionID string) error {
	if !sc.enabled() {
		return nil
	}
	value, err := sc.Codec.Encode(sessionID, sc.TTL)
	if err != nil {
		return err
	}
	c.Cookie(&fiber.Cookie{
		Name:     sc.Name,
		Value:    value,
		Path:     "/",
		Expires:  sc.now().Add(sc.TTL),
		Secure:   sc.Secure,
		HTTPOnly: true,
		SameSite: fiber.CookieSameSiteLaxMode,
	})
	return nil
}

// Clear expires the cookie in the browser.
func (sc *SessionCookie) Clear(c *fiber.Ctx) {
	if sc == nil || sc.Name == "" {
		return
	}
	c.Cookie(&fiber.Cookie{
		Name:     sc.Name,
		Value:    "",
		Path:     "/",
		Expires:  time.Unix(0, 0),
		Secure:   sc.Secure,
		HTTPOnly: true,
		SameSite: fiber.CookieSameSiteLaxMode,
	})
}

// SessionID returns the verified session id of the request cookie, or "".
func (sc *SessionCookie) SessionID(c *fiber.Ctx) string {
	if !sc.enabled() {
		return ""
	}
	raw := c.Cookies(sc.Name)
	if raw == "" {
		return ""
	}
	id, err := sc.Codec.Decode(raw)
	if err != nil {
		return ""
	}
	return id
}
