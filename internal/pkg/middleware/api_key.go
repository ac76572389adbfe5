package middleware

import (
	"crypto/subtle"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"

	"github.com/tricket/tricket-integrations/internal/pkg/apperror"
	"github.com/tricket/tricket-integrations/internal/pkg/usercontext"
)

// ServiceKeyHeader carries the shared key for service-to-service routes.
const ServiceKeyHeader = "X-Service-Key"

// ServiceKeyAuthMiddleware authenticates internal callers by a shared key.
func ServiceKeyAuthMiddleware(serviceKey string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if serviceKey == "" {
			log.Error("[Auth] Internal service key is not configured")
			return apperror.Respond(c, apperror.Configuration("INTERNAL_SERVICE_KEY"))
		}

		key := extractServiceKeyFromHeader(c)
		if key == "" {
			return apperror.Respond(c, apperror.Authentication("Missing service key"))
		}
		if subtle.ConstantTimeCompare([]byte(key), []byte(serviceKey)) != 1 {
			return apperror.Respond(c, apperror.Authentication("Invalid service key"))
		}

		c.Locals(usercontext.KeyServiceCall, true)
		return c.Next()
	}
}

func extractServiceKeyFromHeader(c *fiber.Ctx) string {
	if key := strings.TrimSpace(c.Get(ServiceKeyHeader)); key != "" {
		return key
	}
	return extractBearer(c)
}
