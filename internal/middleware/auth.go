package middleware // middleware provides shared request processing for handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/avmironov/project-auth/internal/service"
	"github.com/avmironov/project-auth/internal/utils"
)

// CookieName is the HTTP-only cookie carrying the session token.
const CookieName = "auth-token"

// PrincipalKey is the echo context key under which Authenticate
// stores the resolved *service.Principal.
const PrincipalKey = "principal"

// Authenticate returns middleware that authenticates the request's
// session token end to end (signature, expiry, blacklist, account)
// and stores the resolved principal in the context. The token is read
// from the auth-token cookie first, with an Authorization bearer
// fallback for non-browser clients.
func Authenticate(auth *service.AuthService) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			raw := tokenFromRequest(c)
			if raw == "" {
				return c.JSON(http.StatusUnauthorized, echo.Map{"error": "missing auth token"})
			}

			principal, err := auth.AuthenticateRequest(c.Request().Context(), raw)
			if err != nil {
				switch {
				case errors.Is(err, utils.ErrTokenExpired):
					return c.JSON(http.StatusUnauthorized, echo.Map{"error": "token expired"})
				case errors.Is(err, utils.ErrTokenMalformed):
					return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid token"})
				case errors.Is(err, service.ErrTokenRevoked):
					return c.JSON(http.StatusUnauthorized, echo.Map{"error": "token revoked"})
				case errors.Is(err, service.ErrUnauthorized):
					return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
				}
				return c.JSON(http.StatusInternalServerError, echo.Map{"error": "authentication failed"})
			}

			c.Set(PrincipalKey, principal)
			// Raw token kept for logout/refresh, which revoke by jti.
			c.Set("auth_token", raw)
			return next(c)
		}
	}
}

// CurrentPrincipal returns the principal stored by Authenticate, nil
// when the route is not protected.
func CurrentPrincipal(c echo.Context) *service.Principal {
	p, _ := c.Get(PrincipalKey).(*service.Principal)
	return p
}

func tokenFromRequest(c echo.Context) string {
	if cookie, err := c.Cookie(CookieName); err == nil && cookie.Value != "" {
		return cookie.Value
	}
	auth := c.Request().Header.Get("Authorization")
	if strings.HasPrefix(auth, "Bearer ") {
		return strings.TrimPrefix(auth, "Bearer ")
	}
	return ""
}
