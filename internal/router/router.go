package router // package router defines how HTTP routes are registered for the API

import (
	"github.com/labstack/echo/v4"

	"github.com/avmironov/project-auth/internal/handler"
	"github.com/avmironov/project-auth/internal/middleware"
	"github.com/avmironov/project-auth/internal/model"
	"github.com/avmironov/project-auth/internal/service"
)

// RegisterRoutes registers routes that do not require authentication.
// Currently it exposes only a health check.
func RegisterRoutes(e *echo.Echo) {
	e.GET("/healthz", handler.Health)
}

// RegisterAuth registers the session lifecycle endpoints. Register
// and login are public (login throttles itself through the core's
// rate limiter); logout, refresh and me require a live session.
func RegisterAuth(e *echo.Echo, a *handler.AuthHandler, auth *service.AuthService) {
	g := e.Group("/api/auth")
	g.POST("/register", a.Register)
	g.POST("/login", a.Login)

	protected := e.Group("/api/auth")
	protected.Use(middleware.Authenticate(auth))
	protected.POST("/logout", a.Logout)
	protected.POST("/refresh", a.Refresh)
	protected.GET("/me", a.Me)
}

// RegisterRoles registers role administration endpoints. All of them
// require a session with an ADMIN role; lookups are further scoped to
// the administrator's project inside the handler.
func RegisterRoles(e *echo.Echo, r *handler.RoleHandler, auth *service.AuthService) {
	g := e.Group("/api/roles")
	g.Use(middleware.Authenticate(auth))
	g.Use(middleware.RequireRole(model.RoleAdmin))
	g.GET("", r.List)
	g.GET("/:uuid", r.Get)
	g.POST("", r.Create)
	g.PUT("/:uuid", r.Update)
	g.DELETE("/:uuid", r.Delete)
}
