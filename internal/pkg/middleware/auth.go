package middleware

import (
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/tricket/tricket-integrations/internal/pkg/apperror"
	"github.com/tricket/tricket-integrations/internal/pkg/authgate"
	"github.com/tricket/tricket-integrations/internal/pkg/usercontext"
)

// RequireAuth accepts any caller holding a valid bearer token.
func RequireAuth(gate *authgate.Gate) fiber.Handler {
	return RequireRoles(gate)
}

// RequireRoles authenticates the bearer token and, when roles are given,
// requires any one of them. The principal is stored in the request locals.
func RequireRoles(gate *authgate.Gate, roles ...string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		principal, err := gate.Authenticate(c.UserContext(), extractBearer(c), roles...)
		if err != nil {
			return apperror.Respond(c, err)
		}
		usercontext.Set(c, usercontext.FromPrincipal(principal))
		return c.Next()
	}
}

func extractBearer(c *fiber.Ctx) string {
	auth := strings.TrimSpace(c.Get(fiber.HeaderAuthorization))
	if len(auth) > 7 && strings.EqualFold(auth[:7], "bearer ") {
		return strings.TrimSpace(auth[7:])
	}
	return ""
}
