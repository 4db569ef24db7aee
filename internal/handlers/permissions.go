package handlers

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/mirrorstack/mirror_server/internal/access"
	"github.com/mirrorstack/mirror_server/internal/logging"
	"github.com/mirrorstack/mirror_server/internal/middleware"
	"github.com/mirrorstack/mirror_server/internal/repo"
	"github.com/mirrorstack/mirror_server/internal/sanitize"
)

type PermissionHandler struct {
	Repo  *repo.Repo
	Guard *access.Guard
}

// GetMirrorUsers lists every user holding access to the mirror.
func (h *PermissionHandler) GetMirrorUsers(c echo.Context) error {
	ctx := c.Request().Context()
	identity := middleware.IdentityFrom(c)

	mirrorID, err := mirrorIDParam(c)
	if err != nil {
		return err
	}
	if err := h.Guard.Authorize(ctx, identity, mirrorID, access.ActionRead); err != nil {
		return guardError(err)
	}

	users, err := h.Repo.MirrorMembers(ctx, mirrorID)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "internal error")
	}
	return c.JSON(http.StatusOK, echo.Map{"users": users})
}

// AddUser grants another user access to the mirror, looked up by email.
func (h *PermissionHandler) AddUser(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "permission_add_user")
	identity := middleware.IdentityFrom(c)

	mirrorID, err := mirrorIDParam(c)
	if err != nil {
		return err
	}

	var req struct {
		Email string `json:"email"`
	}
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid body")
	}
	if req.Email == "" || !sanitize.Clean(req.Email) {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid fields, please check for special characters")
	}

	if err := h.Guard.Authorize(ctx, identity, mirrorID, access.ActionManageUsers); err != nil {
		return guardError(err)
	}

	userToAdd, err := h.Repo.FindUserByEmail(ctx, req.Email)
	if err != nil {
		if errors.Is(err, repo.ErrUserNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, "user not found")
		}
		return echo.NewHTTPError(http.StatusInternalServerError, "internal error")
	}

	if err := h.Repo.AddMembership(ctx, userToAdd.ID, mirrorID); err != nil {
		if errors.Is(err, repo.ErrMembershipExists) {
			l.Warn("add_user_failed", "status", 409, "reason", "already_member")
			return echo.NewHTTPError(http.StatusConflict, "user already has access to this mirror")
		}
		l.Error("add_user_failed", "status", 500, "error", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "internal error")
	}

	l.Info("user_added_to_mirror", "mirror_id", mirrorID, "target_user_id", userToAdd.ID)
	return c.JSON(http.StatusCreated, echo.Map{
		"message": "user added to mirror",
		"user":    userToAdd,
	})
}

// RemoveUser revokes another member's access. Self-removal must go
// through DELETE /mirrors/:id instead.
func (h *PermissionHandler) RemoveUser(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "permission_remove_user")
	identity := middleware.IdentityFrom(c)

	mirrorID, err := mirrorIDParam(c)
	if err != nil {
		return err
	}
	targetID, err := userIDParam(c)
	if err != nil {
		return err
	}

	if err := h.Guard.Authorize(ctx, identity, mirrorID, access.ActionManageUsers); err != nil {
		return guardError(err)
	}

	member, err := h.Repo.HasMembership(ctx, targetID, mirrorID)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "internal error")
	}
	if !member {
		return echo.NewHTTPError(http.StatusNotFound, "user does not have access to this mirror")
	}

	if targetID == identity.ID {
		return echo.NewHTTPError(http.StatusBadRequest, "you cannot remove yourself from the mirror")
	}

	if _, err := h.Repo.RemoveMembership(ctx, targetID, mirrorID); err != nil {
		l.Error("remove_user_failed", "status", 500, "error", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "internal error")
	}

	l.Info("user_removed_from_mirror", "mirror_id", mirrorID, "target_user_id", targetID)
	return c.JSON(http.StatusOK, echo.Map{"message": "user removed from mirror"})
}

// UpdateRole flips a user's global admin flag. Admin-only regardless
// of mirror membership.
func (h *PermissionHandler) UpdateRole(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "permission_update_role")
	identity := middleware.IdentityFrom(c)

	mirrorID, err := mirrorIDParam(c)
	if err != nil {
		return err
	}
	targetID, err := userIDParam(c)
	if err != nil {
		return err
	}

	var req struct {
		Role string `json:"role"`
	}
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid body")
	}
	if req.Role != "user" && req.Role != "admin" {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid role, accepted values are 'user' or 'admin'")
	}

	if err := h.Guard.Authorize(ctx, identity, mirrorID, access.ActionChangeRole); err != nil {
		return guardError(err)
	}

	target, err := h.Repo.FindUserByID(ctx, targetID)
	if err != nil {
		if errors.Is(err, repo.ErrUserNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, "user not found")
		}
		return echo.NewHTTPError(http.StatusInternalServerError, "internal error")
	}

	if err := h.Repo.SetAdmin(ctx, targetID, req.Role == "admin"); err != nil {
		l.Error("role_update_failed", "status", 500, "error", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "internal error")
	}

	l.Info("role_updated", "target_user_id", targetID, "new_role", req.Role)
	return c.JSON(http.StatusOK, echo.Map{
		"message": "user role updated",
		"user": echo.Map{
			"id":    target.ID,
			"email": target.Email,
			"role":  req.Role,
		},
	})
}
