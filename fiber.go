package crm

import (
	"github.com/gofiber/fiber/v2"
)

// GetFiberClaims pulls validated session claims out of a fiber handler
// context. The middleware stores claims under the configured context key,
// "user" by default.
func GetFiberClaims(c *fiber.Ctx, key string) (*SessionClaims, error) {
	if key == "" {
		key = "user"
	}

	raw := c.Locals(key)
	if raw == nil {
		return nil, ErrSessionInvalid
	}

	claims, ok := raw.(*SessionClaims)
	if !ok || claims == nil {
		return nil, ErrSessionInvalid
	}

	return claims, nil
}

// FiberClaimsGuard rejects requests whose session does not satisfy check.
func FiberClaimsGuard(key string, check func(*SessionClaims) bool) fiber.Handler {
	return func(c *fiber.Ctx) error {
		claims, err := GetFiberClaims(c, key)
		if err != nil {
			return fiber.NewError(fiber.StatusUnauthorized, "invalid session")
		}

		if check != nil && !check(claims) {
			return fiber.NewError(fiber.StatusForbidden, "insufficient role")
		}

		return c.Next()
	}
}
