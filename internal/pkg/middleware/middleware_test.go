package middleware

import (
	"context"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tricket/tricket-integrations/internal/pkg/authgate"
	"github.com/tricket/tricket-integrations/internal/pkg/usercontext"
)

type fixedRoles map[string][]string

func (f fixedRoles) RolesForUser(_ context.Context, userID string) ([]string, error) {
	return f[userID], nil
}

func bearerFor(t *testing.T, sub string) string {
	t.Helper()
	tok, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": sub,
		"exp": time.Now().Add(time.Hour).Unix(),
	}).SignedString([]byte("secret"))
	require.NoError(t, err)
	return "Bearer " + tok
}

func TestRequireRoles(t *testing.T) {
	gate := authgate.New(authgate.NewJWTVerifier("secret", ""), fixedRoles{"admin": {"SUPER_ADMIN"}, "op": {"pos_operator"}})

	app := fiber.New()
	app.Get("/admin", RequireRoles(gate, "ADMIN", "SUPER_ADMIN"), func(c *fiber.Ctx) error {
		uc := usercontext.GetUserContext(c)
		assert.True(t, uc.IsAdmin)
		return c.SendString(usercontext.Actor(c))
	})
	app.Get("/any", RequireAuth(gate), func(c *fiber.Ctx) error {
		return c.SendString(usercontext.GetUserID(c))
	})

	tests := []struct {
		name   string
		path   string
		auth   string
		status int
	}{
		{"missing header", "/any", "", fiber.StatusUnauthorized},
		{"bad scheme", "/any", "Basic abc", fiber.StatusUnauthorized},
		{"authenticated", "/any", bearerFor(t, "op"), fiber.StatusOK},
		{"lowercase scheme", "/any", "bearer " + bearerFor(t, "op")[7:], fiber.StatusOK},
		{"admin allowed", "/admin", bearerFor(t, "admin"), fiber.StatusOK},
		{"operator forbidden", "/admin", bearerFor(t, "op"), fiber.StatusForbidden},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(fiber.MethodGet, tt.path, nil)
			if tt.auth != "" {
				req.Header.Set(fiber.HeaderAuthorization, tt.auth)
			}
			resp, err := app.Test(req)
			require.NoError(t, err)
			assert.Equal(t, tt.status, resp.StatusCode)
		})
	}
}

func TestServiceKeyAuthMiddleware(t *testing.T) {
	newApp := func(key string) *fiber.App {
		app := fiber.New()
		app.Post("/internal", ServiceKeyAuthMiddleware(key), func(c *fiber.Ctx) error {
			return c.SendStatus(fiber.StatusNoContent)
		})
		return app
	}

	tests := []struct {
		name       string
		configured string
		header     string
		status     int
	}{
		{"valid key", "svc-key", "svc-key", fiber.StatusNoContent},
		{"wrong key", "svc-key", "nope", fiber.StatusUnauthorized},
		{"missing key", "svc-key", "", fiber.StatusUnauthorized},
		{"not configured", "", "svc-key", fiber.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(fiber.MethodPost, "/internal", nil)
			if tt.header != "" {
				req.Header.Set(ServiceKeyHeader, tt.header)
			}
			resp, err := newApp(tt.configured).Test(req)
			require.NoError(t, err)
			assert.Equal(t, tt.status, resp.StatusCode)
		})
	}
}
