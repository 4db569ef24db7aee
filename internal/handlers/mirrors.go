package handlers

import (
	"fmt"
	"net/http"

	"github.com/elastic/go-elasticsearch/v9"
	"github.com/labstack/echo/v4"

	"github.com/mirrorstack/mirror_server/internal/access"
	"github.com/mirrorstack/mirror_server/internal/logging"
	"github.com/mirrorstack/mirror_server/internal/middleware"
	"github.com/mirrorstack/mirror_server/internal/mirrorcfg"
	"github.com/mirrorstack/mirror_server/internal/models"
	"github.com/mirrorstack/mirror_server/internal/mykafka"
	"github.com/mirrorstack/mirror_server/internal/repo"
	"github.com/mirrorstack/mirror_server/internal/sanitize"
	"github.com/mirrorstack/mirror_server/internal/search"
)

type MirrorHandler struct {
	Repo     *repo.Repo
	Guard    *access.Guard
	Producer mykafka.Publisher
	ES       *elasticsearch.Client
}

// List returns the caller's mirrors; admins see every mirror.
func (h *MirrorHandler) List(c echo.Context) error {
	ctx := c.Request().Context()
	identity := middleware.IdentityFrom(c)

	var (
		mirrors []models.Mirror
		err     error
	)
	if identity.IsAdmin() {
		mirrors, err = h.Repo.AllMirrors(ctx)
	} else {
		mirrors, err = h.Repo.MirrorsForUser(ctx, identity.ID)
	}
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "internal error")
	}
	return c.JSON(http.StatusOK, echo.Map{"mirrors": mirrors})
}

func (h *MirrorHandler) Get(c echo.Context) error {
	ctx := c.Request().Context()
	identity := middleware.IdentityFrom(c)

	mirrorID, err := mirrorIDParam(c)
	if err != nil {
		return err
	}
	if err := h.Guard.Authorize(ctx, identity, mirrorID, access.ActionRead); err != nil {
		return guardError(err)
	}

	mirror, err := h.Repo.FindMirror(ctx, mirrorID)
	if err != nil {
		return echo.NewHTTPError(http.StatusNotFound, "mirror not found")
	}
	return c.JSON(http.StatusOK, echo.Map{"mirror": mirror})
}

func (h *MirrorHandler) Create(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "mirror_create")
	identity := middleware.IdentityFrom(c)

	var req struct {
		Name      string `json:"name"`
		Config    string `json:"config"`
		IPAddress string `json:"ip_address"`
	}
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid body")
	}
	if req.Name == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "mirror name is required")
	}
	if !sanitize.AllClean(req.Name, req.IPAddress) {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid fields, please check for special characters")
	}

	cfg := req.Config
	if _, fellBack := mirrorcfg.Parse(cfg); fellBack {
		l.Warn("config_parse_failed", "reason", "storing empty document instead")
		cfg = ""
	}

	mirror := models.Mirror{
		Name:      req.Name,
		Config:    cfg,
		IPAddress: req.IPAddress,
	}
	if err := h.Repo.CreateMirror(ctx, &mirror, identity.ID); err != nil {
		l.Error("mirror_create_failed", "status", 500, "error", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "internal error")
	}

	h.indexMirror(c, &mirror)
	publish(ctx, h.Producer, fmt.Sprint(mirror.ID), map[string]interface{}{
		"type":      "mirror_created",
		"mirror_id": mirror.ID,
		"user_id":   identity.ID,
	})

	l.Info("mirror_created", "mirror_id", mirror.ID, "user_id", identity.ID)
	return c.JSON(http.StatusCreated, echo.Map{
		"message": "mirror created",
		"mirror":  mirror,
	})
}

func (h *MirrorHandler) Update(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "mirror_update")
	identity := middleware.IdentityFrom(c)

	mirrorID, err := mirrorIDParam(c)
	if err != nil {
		return err
	}

	var req struct {
		Name      *string `json:"name"`
		Config    *string `json:"config"`
		IPAddress *string `json:"ip_address"`
	}
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid body")
	}
	if req.Name != nil && !sanitize.Clean(*req.Name) {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid fields, please check for special characters")
	}
	if req.IPAddress != nil && !sanitize.Clean(*req.IPAddress) {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid fields, please check for special characters")
	}
	if req.Name != nil && *req.Name == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "mirror name is required")
	}

	if err := h.Guard.Authorize(ctx, identity, mirrorID, access.ActionUpdate); err != nil {
		return guardError(err)
	}

	mirror, err := h.Repo.UpdateMirror(ctx, mirrorID, repo.MirrorUpdate{
		Name:      req.Name,
		Config:    req.Config,
		IPAddress: req.IPAddress,
	})
	if err != nil {
		l.Error("mirror_update_failed", "status", 500, "error", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "internal error")
	}

	h.indexMirror(c, mirror)
	l.Info("mirror_updated", "mirror_id", mirrorID)
	return c.JSON(http.StatusOK, echo.Map{
		"message": "mirror updated",
		"mirror":  mirror,
	})
}

// UpdateStatus stores the mirror status inside the config document.
func (h *MirrorHandler) UpdateStatus(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "mirror_status")
	identity := middleware.IdentityFrom(c)

	mirrorID, err := mirrorIDParam(c)
	if err != nil {
		return err
	}

	var req struct {
		Status string `json:"status"`
	}
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid body")
	}

	if err := h.Guard.Authorize(ctx, identity, mirrorID, access.ActionUpdate); err != nil {
		return guardError(err)
	}

	_, fellBack, err := h.Repo.UpdateConfig(ctx, mirrorID, func(doc *mirrorcfg.Document) error {
		doc.Status = req.Status
		return nil
	})
	if err != nil {
		l.Error("status_update_failed", "status", 500, "error", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "internal error")
	}
	if fellBack {
		l.Warn("config_parse_failed", "mirror_id", mirrorID, "reason", "stored config was corrupt, replaced with empty document")
	}

	l.Info("status_updated", "mirror_id", mirrorID, "new_status", req.Status)
	return c.JSON(http.StatusOK, echo.Map{
		"message": "mirror status updated",
		"status":  req.Status,
	})
}

// Delete removes the caller's access; when the caller was the last
// member the mirror row goes with it in the same transaction.
func (h *MirrorHandler) Delete(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "mirror_delete")
	identity := middleware.IdentityFrom(c)

	mirrorID, err := mirrorIDParam(c)
	if err != nil {
		return err
	}
	if err := h.Guard.Authorize(ctx, identity, mirrorID, access.ActionDelete); err != nil {
		return guardError(err)
	}

	mirrorDeleted, err := h.Repo.RemoveAccess(ctx, identity.ID, mirrorID)
	if err != nil {
		l.Error("mirror_delete_failed", "status", 500, "error", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "internal error")
	}

	if mirrorDeleted {
		h.deleteFromIndex(c, mirrorID)
		publish(ctx, h.Producer, fmt.Sprint(mirrorID), map[string]interface{}{
			"type":      "mirror_deleted",
			"mirror_id": mirrorID,
			"user_id":   identity.ID,
		})
		l.Info("mirror_deleted", "mirror_id", mirrorID)
		return c.JSON(http.StatusOK, echo.Map{"message": "mirror deleted"})
	}

	l.Info("mirror_access_removed", "mirror_id", mirrorID, "user_id", identity.ID)
	return c.JSON(http.StatusOK, echo.Map{"message": "your access to the mirror was removed"})
}

func (h *MirrorHandler) indexMirror(c echo.Context, m *models.Mirror) {
	if h.ES == nil {
		return
	}
	ctx := c.Request().Context()
	if err := search.IndexMirror(ctx, h.ES, m); err != nil {
		logging.FromContext(ctx).Error("es_index_failed", "mirror_id", m.ID, "error", err)
	}
}

func (h *MirrorHandler) deleteFromIndex(c echo.Context, id uint) {
	if h.ES == nil {
		return
	}
	ctx := c.Request().Context()
	if err := search.DeleteMirror(ctx, h.ES, id); err != nil {
		logging.FromContext(ctx).Error("es_delete_failed", "mirror_id", id, "error", err)
	}
}
