package middleware

import (
	"errors"
	"log"

	"github.com/gofiber/fiber/v2"

	"ordersvc/internal/clients"
)

// Locals keys set by AuthRequired for downstream handlers.
const (
	PrincipalKey = "principal"
)

// Authenticator validates a raw Authorization header against the auth
// service and returns the caller's principal.
type Authenticator interface {
	Authenticate(header string) (*clients.Principal, error)
}

// AuthRequired is a Fiber middleware that gates protected routes behind the
// remote auth service. On failure the request is rejected here and never
// reaches the order service. On success the principal (with its bearer
// token) is stored in Locals; handlers pass it explicitly into service
// calls rather than reading ambient state further down.
func AuthRequired(auth Authenticator) fiber.Handler {
	return func(c *fiber.Ctx) error {
		principal, err := auth.Authenticate(c.Get("Authorization"))
		if err != nil {
			status := fiber.StatusUnauthorized
			if errors.Is(err, clients.ErrAuthUnavailable) {
				status = fiber.StatusServiceUnavailable
				log.Printf("Auth service unreachable: %v", err)
			}
			return c.Status(status).JSON(fiber.Map{
				"msg": err.Error(),
			})
		}

		c.Locals(PrincipalKey, principal)
		return c.Next()
	}
}

// PrincipalFromCtx returns the principal stored by AuthRequired, or nil on
// an unprotected route.
func PrincipalFromCtx(c *fiber.Ctx) *clients.Principal {
	principal, _ := c.Locals(PrincipalKey).(*clients.Principal)
	return principal
}
