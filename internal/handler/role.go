package handler

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/avmironov/project-auth/internal/middleware"
	"github.com/avmironov/project-auth/internal/model"
	"github.com/avmironov/project-auth/internal/repository"
)

// RoleHandler exposes role administration for a project. Routes are
// registered behind RequireRole(ADMIN); every lookup is additionally
// scoped to the administrator's own project so one tenant can never
// touch another tenant's roles.
type RoleHandler struct {
	Roles *repository.RoleRepo
}

func NewRoleHandler(roles *repository.RoleRepo) *RoleHandler { return &RoleHandler{Roles: roles} }

type roleReq struct {
	Name        string   `json:"name"`
	Key         string   `json:"key"`
	Type        string   `json:"type"`
	Description string   `json:"description"`
	Permissions []string `json:"permissions"`
}

// List returns the live roles of the caller's project.
func (h *RoleHandler) List(c echo.Context) error {
	p := middleware.CurrentPrincipal(c)
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	roles, err := h.Roles.ListByProject(ctx, p.User.ProjectUUID)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "query failed"})
	}
	if roles == nil {
		roles = []model.Role{}
	}
	return c.JSON(http.StatusOK, echo.Map{"roles": roles})
}

// Get returns a single role of the caller's project.
func (h *RoleHandler) Get(c echo.Context) error {
	p := middleware.CurrentPrincipal(c)
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	role, err := h.roleInProject(ctx, c.Param("uuid"), p.User.ProjectUUID)
	if err != nil {
		return roleError(c, err)
	}
	return c.JSON(http.StatusOK, role)
}

// Create adds a role to the caller's project. The type must be one of
// the closed enum; the key must be globally unique.
func (h *RoleHandler) Create(c echo.Context) error {
	p := middleware.CurrentPrincipal(c)
	var req roleReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	req.Type = strings.ToUpper(strings.TrimSpace(req.Type))
	if req.Name == "" || req.Key == "" || !model.ValidRoleType(req.Type) {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "name, key and a valid type are required"})
	}
	if req.Permissions == nil {
		req.Permissions = []string{}
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	role := model.Role{
		UUID:        uuid.NewString(),
		Name:        req.Name,
		Key:         req.Key,
		Type:        model.RoleType(req.Type),
		Description: req.Description,
		Permissions: req.Permissions,
		ProjectUUID: p.User.ProjectUUID,
	}
	if err := h.Roles.Create(ctx, role); err != nil {
		if errors.Is(err, repository.ErrKeyExists) {
			return c.JSON(http.StatusConflict, echo.Map{"error": "role key already exists"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "create role failed"})
	}
	return c.JSON(http.StatusCreated, role)
}

// Update rewrites a role's mutable fields (name, type, description,
// permissions). The key stays fixed: it is an external reference.
func (h *RoleHandler) Update(c echo.Context) error {
	p := middleware.CurrentPrincipal(c)
	var req roleReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	role, err := h.roleInProject(ctx, c.Param("uuid"), p.User.ProjectUUID)
	if err != nil {
		return roleError(c, err)
	}
	if req.Name != "" {
		role.Name = req.Name
	}
	if req.Type != "" {
		t := strings.ToUpper(strings.TrimSpace(req.Type))
		if !model.ValidRoleType(t) {
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid role type"})
		}
		role.Type = model.RoleType(t)
	}
	if req.Description != "" {
		role.Description = req.Description
	}
	if req.Permissions != nil {
		role.Permissions = req.Permissions
	}

	if err := h.Roles.Update(ctx, role); err != nil {
		return roleError(c, err)
	}
	return c.JSON(http.StatusOK, role)
}

// Delete soft-deletes a role. Accounts referencing it lose the
// reference but are never deleted with it.
func (h *RoleHandler) Delete(c echo.Context) error {
	p := middleware.CurrentPrincipal(c)
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	if _, err := h.roleInProject(ctx, c.Param("uuid"), p.User.ProjectUUID); err != nil {
		return roleError(c, err)
	}
	if err := h.Roles.SoftDelete(ctx, c.Param("uuid")); err != nil {
		return roleError(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *RoleHandler) roleInProject(ctx context.Context, uuid, projectUUID string) (model.Role, error) {
	role, err := h.Roles.GetByUUID(ctx, uuid)
	if err != nil {
		return model.Role{}, err
	}
	if role.ProjectUUID != projectUUID {
		// Cross-tenant lookups answer like a miss.
		return model.Role{}, repository.ErrNotFound
	}
	return role, nil
}

func roleError(c echo.Context, err error) error {
	if errors.Is(err, repository.ErrNotFound) {
		return c.JSON(http.StatusNotFound, echo.Map{"error": "role not found"})
	}
	return c.JSON(http.StatusInternalServerError, echo.Map{"error": "query failed"})
}
