// Package authgate resolves a bearer token to a principal and enforces
// role requirements.
package authgate

import (
	"context"
	"slices"

	"github.com/gofiber/fiber/v2/log"

	"github.com/tricket/tricket-integrations/internal/pkg/apperror"
)

// Principal is the authenticated caller.
type Principal struct {
	UserID string   `json:"user_id"`
	Roles  []string `json:"roles,omitempty"`
}

// HasAnyRole reports whether the principal holds at least one of roles.
func (p *Principal) HasAnyRole(roles ...string) bool {
	for _, r := range roles {
		if slices.Contains(p.Roles, r) {
			return true
		}
	}
	return false
}

// IdentityProvider verifies a bearer token and returns the user id it names.
type IdentityProvider interface {
	Identify(ctx context.Context, token string) (string, error)
}

// RoleProvider lists the roles held by a user.
type RoleProvider interface {
	RolesForUser(ctx context.Context, userID string) ([]string, error)
}

type Gate struct {
	identities IdentityProvider
	roles      RoleProvider
}

func New(identities IdentityProvider, roles RoleProvider) *Gate {
	return &Gate{identities: identities, roles: roles}
}

// Authenticate verifies bearer and, when requiredRoles is non-empty,
// requires the user to hold any one of them.
func (g *Gate) Authenticate(ctx context.Context, bearer string, requiredRoles ...string) (*Principal, error) {
	if bearer == "" {
		return nil, apperror.Authentication("Missing bearer token")
	}

	userID, err := g.identities.Identify(ctx, bearer)
	if err != nil {
		log.Warnf("[AuthGate] Token rejected: %v", err)
		return nil, apperror.Authentication("Invalid or expired token")
	}

	principal := &Principal{UserID: userID}
	if len(requiredRoles) == 0 {
		return principal, nil
	}

	roles, err := g.roles.RolesForUser(ctx, userID)
	if err != nil {
		return nil, apperror.Internal("failed to load user roles", err)
	}
	principal.Roles = roles
	if !principal.HasAnyRole(requiredRoles...) {
		log.Warnf("[AuthGate] User %s lacks any of roles %v", userID, requiredRoles)
		return nil, apperror.Authorization("Insufficient permissions")
	}
	return principal, nil
}
