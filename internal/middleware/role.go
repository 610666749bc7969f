package middleware

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/avmironov/project-auth/internal/model"
	"github.com/avmironov/project-auth/internal/service"
)

// RequireRole returns middleware that enforces that the authenticated
// principal's role type is one of the given types. It assumes
// Authenticate ran earlier in the chain; a request with no principal
// or no role is rejected with 403.
func RequireRole(types ...model.RoleType) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			p := CurrentPrincipal(c)
			if p == nil || !service.Authorize(p.Role, types...) {
				return c.JSON(http.StatusForbidden, echo.Map{"error": "forbidden"})
			}
			return next(c)
		}
	}
}
