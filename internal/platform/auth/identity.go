// Package auth provides JWT authentication, the acting-identity context,
// and role-gated route middleware.
package auth

import (
	"context"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
)

// Roles known to the system. Role is a static attribute assigned at user
// creation; there are no transition rules.
const (
	RoleAdmin           = "admin"
	RoleClaimsProcessor = "claims_processor"
	RoleProvider        = "provider"
	RolePatient         = "patient"
)

// ValidRole reports whether r is one of the known roles.
func ValidRole(r string) bool {
	switch r {
	case RoleAdmin, RoleClaimsProcessor, RoleProvider, RolePatient:
		return true
	}
	return false
}

// StaffRoles are the roles allowed to manage patients and create claims.
func StaffRoles() []string {
	return []string{RoleAdmin, RoleClaimsProcessor, RoleProvider}
}

// Identity is the authenticated acting user for one request, as asserted by
// the verified token. OrgID is the tenant every data access is scoped to.
type Identity struct {
	UserID uuid.UUID
	OrgID  uuid.UUID
	Email  string
	Role   string
}

type contextKey string

const identityKey contextKey = "identity"

// WithIdentity returns a context carrying the acting identity.
func WithIdentity(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, identityKey, id)
}

// IdentityFromContext returns the acting identity, if any.
func IdentityFromContext(ctx context.Context) (Identity, bool) {
	id, ok := ctx.Value(identityKey).(Identity)
	return id, ok
}

// CurrentIdentity returns the acting identity from an echo context.
func CurrentIdentity(c echo.Context) (Identity, bool) {
	return IdentityFromContext(c.Request().Context())
}
