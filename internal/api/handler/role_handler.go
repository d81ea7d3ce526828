package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/velora/commerce-api/internal/core/ports"
)

// RoleHandler exposes role permission management. All routes are gated with
// an admin:role requirement at registration.
type RoleHandler struct {
	permissions ports.PermissionService
}

func NewRoleHandler(permissions ports.PermissionService) *RoleHandler {
	return &RoleHandler{permissions: permissions}
}

type permissionRequest struct {
	Permission string `json:"permission" validate:"required,permission"`
}

type permissionsRequest struct {
	Permissions []string `json:"permissions" validate:"required,dive,permission"`
}

type rolePermissionsResponse struct {
	RoleID    string   `json:"role_id"`
	Effective []string `json:"effective"`
	Direct    []string `json:"direct"`
}

// GetPermissions returns a role's direct and effective permission sets.
//
// @Summary      Get role permissions
// @Tags         roles
// @Produce      json
// @Security     BearerAuth
// @Param        id   path      string  true  "Role ID"
// @Success      200  {object}  rolePermissionsResponse
// @Failure      404  {object}  map[string]string
// @Router       /roles/{id}/permissions [get]
func (h *RoleHandler) GetPermissions(c echo.Context) error {
	roleID := c.Param("id")

	effective, err := h.permissions.EffectivePermissions(c.Request().Context(), roleID)
	if err != nil {
		return err
	}
	direct, err := h.permissions.DirectPermissions(c.Request().Context(), roleID)
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, rolePermissionsResponse{
		RoleID:    roleID,
		Effective: effective,
		Direct:    direct,
	})
}

// AddPermission attaches a permission to a role and invalidates its cache.
//
// @Summary      Add a permission to a role
// @Tags         roles
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        id    path      string             true  "Role ID"
// @Param        body  body      permissionRequest  true  "Permission string"
// @Success      204
// @Failure      400   {object}  map[string]string
// @Failure      404   {object}  map[string]string
// @Router       /roles/{id}/permissions [post]
func (h *RoleHandler) AddPermission(c echo.Context) error {
	var req permissionRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid payload")
	}
	if err := c.Validate(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	if err := h.permissions.AddPermissionToRole(c.Request().Context(), c.Param("id"), req.Permission); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}

// RemovePermission detaches a permission from a role and invalidates its
// cache.
//
// @Summary      Remove a permission from a role
// @Tags         roles
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        id    path      string             true  "Role ID"
// @Param        body  body      permissionRequest  true  "Permission string"
// @Success      204
// @Failure      404   {object}  map[string]string
// @Router       /roles/{id}/permissions [delete]
func (h *RoleHandler) RemovePermission(c echo.Context) error {
	var req permissionRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid payload")
	}
	if err := c.Validate(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	if err := h.permissions.RemovePermissionFromRole(c.Request().Context(), c.Param("id"), req.Permission); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}

// SetPermissions replaces a role's permission set wholesale.
//
// @Summary      Replace a role's permissions
// @Tags         roles
// @Accept       json
// @Security     BearerAuth
// @Param        id    path      string              true  "Role ID"
// @Param        body  body      permissionsRequest  true  "Full permission set"
// @Success      204
// @Failure      400   {object}  map[string]string
// @Failure      404   {object}  map[string]string
// @Router       /roles/{id}/permissions [put]
func (h *RoleHandler) SetPermissions(c echo.Context) error {
	var req permissionsRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid payload")
	}
	if err := c.Validate(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	if err := h.permissions.SetRolePermissions(c.Request().Context(), c.Param("id"), req.Permissions); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}

// InvalidateAll wipes every cached permission entry. Used when the
// role-permission schema itself changes.
//
// @Summary      Invalidate all cached permissions
// @Tags         roles
// @Produce      json
// @Security     BearerAuth
// @Success      204
// @Router       /roles/permissions/invalidate [post]
func (h *RoleHandler) InvalidateAll(c echo.Context) error {
	if err := h.permissions.InvalidateAllPermissions(c.Request().Context()); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}
