package auth

import (
	"github.com/gofiber/fiber/v2"

	apperrors "github.com/spec-kit/clinic-crm/pkg/util"
)

// Token abilities checked by routes.
const (
	AbilityRecordsWrite = "records:write"
)

// RequireAbility ensures the credential's ability scope covers ability. A token that
// does not cover it is not valid for the request, so it gets the generic 401.
func RequireAbility(ability string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		principal, ok := PrincipalFromContext(c)
		if !ok || !principal.Can(ability) {
			return apperrors.NewUnauthenticated()
		}
		return c.Next()
	}
}

// RequireAnyRole ensures caller is authenticated.
func RequireAnyRole() fiber.Handler {
	return func(c *fiber.Ctx) error {
		if _, ok := PrincipalFromContext(c); !ok {
			return apperrors.NewUnauthenticated()
		}
		return c.Next()
	}
}
