package middleware

import (
	"time"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/claimdesk/claimdesk/internal/platform/auth"
	"github.com/claimdesk/claimdesk/internal/platform/db"
)

// Logger emits one structured line per request. The acting identity and
// ambient organization are read after the handler chain runs, so
// authenticated requests carry user_id/role/org_id on their log line.
func Logger(logger zerolog.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()

			err := next(c)

			req := c.Request()
			evt := logger.Info()
			if err != nil {
				evt = logger.Error().Err(err)
			}
			if rid, ok := c.Get("request_id").(string); ok && rid != "" {
				evt = evt.Str("request_id", rid)
			}
			if id, ok := auth.IdentityFromContext(req.Context()); ok {
				evt = evt.Stringer("user_id", id.UserID).Str("role", id.Role)
			}
			if orgID, ok := db.OrgFromContext(req.Context()); ok {
				evt = evt.Stringer("org_id", orgID)
			}

			evt.
				Str("method", req.Method).
				Str("path", req.URL.Path).
				Int("status", c.Response().Status).
				Dur("latency", time.Since(start)).
				Str("remote_ip", c.RealIP()).
				Msg("request")

			return err
		}
	}
}
