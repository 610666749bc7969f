package handler

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/avmironov/project-auth/internal/config"
	"github.com/avmironov/project-auth/internal/limiter"
	"github.com/avmironov/project-auth/internal/middleware"
	"github.com/avmironov/project-auth/internal/repository"
	"github.com/avmironov/project-auth/internal/service"
)

// AuthHandler adapts the session orchestrator to HTTP: it binds
// request bodies, translates the core's error kinds into status
// codes, and manages the auth-token cookie. No auth decision is made
// here.
type AuthHandler struct {
	Auth *service.AuthService
	Cfg  config.Config
}

func NewAuthHandler(auth *service.AuthService, cfg config.Config) *AuthHandler {
	return &AuthHandler{Auth: auth, Cfg: cfg}
}

// ----- DTOs -----

type registerReq struct {
	Email       string `json:"email"`
	Name        string `json:"name"`
	Password    string `json:"password"`
	ProjectUUID string `json:"project_uuid"`
	RoleUUID    string `json:"role_uuid"`
}
type loginReq struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type sessionResp struct {
	AccessToken string              `json:"access_token"`
	ExpiresAt   time.Time           `json:"expires_at"`
	ProjectUUID string              `json:"project_uuid"`
	User        service.UserSummary `json:"user"`
}

// Register: create an account in a project and report its public projection.
func (h *AuthHandler) Register(c echo.Context) error {
	var req registerReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	if req.Email == "" || req.Password == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "email/password required"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	sum, err := h.Auth.Register(ctx, service.RegisterParams{
		Email:       req.Email,
		Name:        req.Name,
		Password:    req.Password,
		ProjectUUID: req.ProjectUUID,
		RoleUUID:    req.RoleUUID,
	})
	if err != nil {
		switch {
		case errors.Is(err, repository.ErrEmailExists):
			return c.JSON(http.StatusConflict, echo.Map{"error": "email already exists"})
		case errors.Is(err, service.ErrNotFound):
			return c.JSON(http.StatusNotFound, echo.Map{"error": "project or role not found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "create user failed"})
	}
	return c.JSON(http.StatusCreated, echo.Map{"user": sum})
}

// Login: authenticate credentials and bind the session token to an
// HTTP-only cookie. The token is also returned in the body for
// non-browser clients.
func (h *AuthHandler) Login(c echo.Context) error {
	var req loginReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	if req.Email == "" || req.Password == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "email/password required"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 10*time.Second)
	defer cancel()

	res, err := h.Auth.Login(ctx, c.RealIP(), req.Email, req.Password)
	if err != nil {
		var rl *limiter.RateLimitError
		var locked *service.AccountLockedError
		switch {
		case errors.As(err, &rl):
			return c.JSON(http.StatusTooManyRequests, echo.Map{
				"error": "too many login attempts", "retry_after_minutes": rl.RemainingMinutes,
			})
		case errors.As(err, &locked):
			return c.JSON(http.StatusLocked, echo.Map{
				"error": "account locked", "retry_after_minutes": locked.RemainingMinutes,
			})
		case errors.Is(err, service.ErrInvalidCredentials):
			return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid credentials"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "login failed"})
	}

	h.setSessionCookie(c, res.Token, res.ExpiresAt)
	return c.JSON(http.StatusOK, sessionResp{
		AccessToken: res.Token,
		ExpiresAt:   res.ExpiresAt,
		ProjectUUID: res.ProjectUUID,
		User:        res.User,
	})
}

// Logout: revoke the presented token and clear the cookie. Protected
// route, so the middleware already verified the token.
func (h *AuthHandler) Logout(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	raw, _ := c.Get("auth_token").(string)
	if err := h.Auth.Logout(ctx, raw); err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "logout failed"})
	}
	h.clearSessionCookie(c)
	return c.JSON(http.StatusOK, echo.Map{"message": "logged out"})
}

// Refresh: rotate the session token. The old token's jti is revoked
// and a fresh token replaces the cookie.
func (h *AuthHandler) Refresh(c echo.Context) error {
	p := middleware.CurrentPrincipal(c)
	if p == nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	raw, _ := c.Get("auth_token").(string)
	res, err := h.Auth.Refresh(ctx, raw, p.User.UUID)
	if err != nil {
		if errors.Is(err, service.ErrUnauthorized) {
			h.clearSessionCookie(c)
			return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "refresh failed"})
	}

	h.setSessionCookie(c, res.Token, res.ExpiresAt)
	return c.JSON(http.StatusOK, sessionResp{
		AccessToken: res.Token,
		ExpiresAt:   res.ExpiresAt,
		ProjectUUID: res.ProjectUUID,
		User:        res.User,
	})
}

// Me: return the authenticated account's public projection.
func (h *AuthHandler) Me(c echo.Context) error {
	p := middleware.CurrentPrincipal(c)
	if p == nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	sum, err := h.Auth.Whoami(ctx, p.User.UUID)
	if err != nil {
		if errors.Is(err, service.ErrNotFound) {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "user not found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "query failed"})
	}
	return c.JSON(http.StatusOK, sum)
}

// ----- cookie helpers -----

func (h *AuthHandler) setSessionCookie(c echo.Context, token string, exp time.Time) {
	c.SetCookie(&http.Cookie{
		Name:     middleware.CookieName,
		Value:    token,
		Path:     "/",
		Expires:  exp,
		HttpOnly: true,
		Secure:   h.Cfg.CookieSecure,
		SameSite: sameSite(h.Cfg.CookieSameSite),
		Domain:   h.Cfg.CookieDomain,
	})
}

func (h *AuthHandler) clearSessionCookie(c echo.Context) {
	c.SetCookie(&http.Cookie{
		Name:     middleware.CookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.Cfg.CookieSecure,
		SameSite: sameSite(h.Cfg.CookieSameSite),
		Domain:   h.Cfg.CookieDomain,
	})
}

func sameSite(s string) http.SameSite {
	switch strings.ToLower(s) {
	case "strict":
		return http.SameSiteStrictMode
	case "none":
		return http.SameSiteNoneMode
	default:
		return http.SameSiteLaxMode
	}
}
