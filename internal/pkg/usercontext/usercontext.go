package usercontext

import (
	"github.com/gofiber/fiber/v2"

	"github.com/tricket/tricket-integrations/app/models"
	"github.com/tricket/tricket-integrations/internal/pkg/authgate"
)

// UserContext represents the authenticated caller of a request
type UserContext struct {
	UserID     string   `json:"user_id"`
	Roles      []string `json:"roles,omitempty"`
	IsLoggedIn bool     `json:"is_logged_in"`
	IsAdmin    bool     `json:"is_admin"`
}

// FromPrincipal builds the request context for an authenticated principal
func FromPrincipal(p *authgate.Principal) UserContext {
	return UserContext{
		UserID:     p.UserID,
		Roles:      p.Roles,
		IsLoggedIn: true,
		IsAdmin:    p.HasAnyRole(models.AdminRoles...),
	}
}

// Set stores the user context and the flat compatibility locals
func Set(c *fiber.Ctx, uc UserContext) {
	c.Locals(KeyUserContext, uc)
	c.Locals(KeyFromProtected, uc.IsLoggedIn)
	c.Locals(KeyUserID, uc.UserID)
	c.Locals(KeyIsAdmin, uc.IsAdmin)
}

// GetUserContext retrieves the user context from fiber context
// Returns a default anonymous context if none is set
func GetUserContext(c *fiber.Ctx) UserContext {
	if uc, ok := c.Locals(KeyUserContext).(UserContext); ok {
		return uc
	}
	return UserContext{}
}

// IsLoggedIn checks if the current user is logged in
func IsLoggedIn(c *fiber.Ctx) bool {
	return GetUserContext(c).IsLoggedIn
}

// IsAdmin checks if the current user is an admin
func IsAdmin(c *fiber.Ctx) bool {
	return GetUserContext(c).IsAdmin
}

// GetUserID returns the current user's ID, or "" if not logged in
func GetUserID(c *fiber.Ctx) string {
	return GetUserContext(c).UserID
}

// Actor names who performed a write: the user id, or SystemActor.
func Actor(c *fiber.Ctx) string {
	if id := GetUserID(c); id != "" {
		return id
	}
	return SystemActor
}
