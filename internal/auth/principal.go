package auth

import (
	"context"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/clinic-crm/internal/domain"
)

const principalKey = "auth_principal"

type principalCtxKey struct{}

// Principal represents the authenticated caller of one request.
// Exactly one of Token and SessionID is set.
type Principal struct {
	Identity  *domain.Identity
	Token     *domain.Token
	SessionID string
}

// Can reports whether the credential allows the ability. Session principals carry all.
func (p *Principal) Can(ability string) bool {
	if p == nil {
		return false
	}
	if p.Token == nil {
		return true
	}
	return p.Token.Can(ability)
}

// PrincipalFromContext retrieves the authenticated entity.
func PrincipalFromContext(c *fiber.Ctx) (*Principal, bool) {
	val := c.Locals(principalKey)
	if val == nil {
		return nil, false
	}
	principal, ok := val.(*Principal)
	return principal, ok && principal != nil
}

func ContextWithPrincipal(ctx context.Context, p *Principal) context.Context {
	return context.WithValue(ctx, principalCtxKey{}, p)
}

// PrincipalFrom returns the principal attached to ctx by the guard.
func PrincipalFrom(ctx context.Context) (*Principal, bool) {
	p, ok := ctx.Value(principalCtxKey{}).(*Principal)
	return p, ok && p != nil
}

func attachPrincipal(c *fiber.Ctx, p *Principal) {
	c.Locals(principalKey, p)
	c.SetUserContext(ContextWithPrincipal(c.UserContext(), p))
}
