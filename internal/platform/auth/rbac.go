package auth

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/claimdesk/claimdesk/internal/platform/db"
)

// RequireRole returns middleware that admits callers holding one of the
// given roles. Admin always passes this coarse gate; object-level rules in
// the domain services can still reject an admin (the single-item status
// path does).
func RequireRole(roles ...string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			id, ok := CurrentIdentity(c)
			if !ok {
				return echo.NewHTTPError(http.StatusUnauthorized, "not authenticated")
			}
			if id.Role == RoleAdmin {
				return next(c)
			}
			for _, required := range roles {
				if id.Role == required {
					return next(c)
				}
			}
			return echo.NewHTTPError(http.StatusForbidden,
				fmt.Sprintf("required role: %s", strings.Join(roles, " or ")))
		}
	}
}

// TenantMiddleware copies the authenticated identity's organization into
// the database scoping context. Every repository read below this point is
// filtered to that organization; there is no code path from a request to an
// unscoped query.
func TenantMiddleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			id, ok := CurrentIdentity(c)
			if !ok {
				return echo.NewHTTPError(http.StatusUnauthorized, "not authenticated")
			}
			ctx := db.WithOrg(c.Request().Context(), id.OrgID)
			c.SetRequest(c.Request().WithContext(ctx))
			return next(c)
		}
	}
}
