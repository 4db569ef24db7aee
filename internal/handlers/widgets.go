package handlers

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/mirrorstack/mirror_server/internal/access"
	"github.com/mirrorstack/mirror_server/internal/logging"
	"github.com/mirrorstack/mirror_server/internal/middleware"
	"github.com/mirrorstack/mirror_server/internal/mirrorcfg"
	"github.com/mirrorstack/mirror_server/internal/mykafka"
	"github.com/mirrorstack/mirror_server/internal/repo"
)

var errWidgetNotFound = errors.New("widget not found")

type WidgetHandler struct {
	Repo     *repo.Repo
	Guard    *access.Guard
	Producer mykafka.Publisher
}

// GetWidgets returns the widget list from the mirror's config
// document. A corrupt document degrades to an empty list.
func (h *WidgetHandler) GetWidgets(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "widgets_get")
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

	doc, fellBack := mirrorcfg.Parse(mirror.Config)
	if fellBack {
		l.Warn("config_parse_failed", "mirror_id", mirrorID, "reason", "returning empty widget list")
	}
	widgets := doc.Widgets
	if widgets == nil {
		widgets = []mirrorcfg.Widget{}
	}
	return c.JSON(http.StatusOK, echo.Map{"widgets": widgets})
}

// Toggle flips exactly one widget's enabled flag and bumps lastUpdate.
// An unknown widget name leaves the config untouched and returns 404.
func (h *WidgetHandler) Toggle(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "widget_toggle")
	identity := middleware.IdentityFrom(c)

	mirrorID, err := mirrorIDParam(c)
	if err != nil {
		return err
	}
	name := c.Param("name")
	if name == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "widget name is required")
	}

	if err := h.Guard.Authorize(ctx, identity, mirrorID, access.ActionUpdate); err != nil {
		return guardError(err)
	}

	var toggled mirrorcfg.Widget
	_, fellBack, err := h.Repo.UpdateConfig(ctx, mirrorID, func(doc *mirrorcfg.Document) error {
		if !doc.Toggle(name) {
			return errWidgetNotFound
		}
		toggled, _ = doc.FindWidget(name)
		return nil
	})
	if err != nil {
		if errors.Is(err, errWidgetNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, "widget not found")
		}
		if errors.Is(err, repo.ErrMirrorNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, "mirror not found")
		}
		l.Error("widget_toggle_failed", "status", 500, "error", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "internal error")
	}
	if fellBack {
		l.Warn("config_parse_failed", "mirror_id", mirrorID, "reason", "stored config was corrupt")
	}

	publish(ctx, h.Producer, fmt.Sprint(mirrorID), map[string]interface{}{
		"type":      "widget_toggled",
		"mirror_id": mirrorID,
		"widget":    toggled.Name,
		"enabled":   toggled.Enabled,
	})

	l.Info("widget_toggled", "mirror_id", mirrorID, "widget", name, "enabled", toggled.Enabled)
	return c.JSON(http.StatusOK, echo.Map{
		"message": "widget toggled",
		"widget":  toggled,
	})
}
