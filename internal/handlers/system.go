package handlers

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/mirrorstack/mirror_server/internal/access"
	"github.com/mirrorstack/mirror_server/internal/logging"
	"github.com/mirrorstack/mirror_server/internal/middleware"
	"github.com/mirrorstack/mirror_server/internal/mirrorcfg"
	"github.com/mirrorstack/mirror_server/internal/repo"
	"github.com/mirrorstack/mirror_server/internal/token"
)

type SystemHandler struct {
	Repo  *repo.Repo
	Guard *access.Guard
	Codec *token.Codec
	// AppSentinel is the uname claim embedded in minted app tokens.
	AppSentinel string
}

// Status reports the mirror status stored in the config document.
func (h *SystemHandler) Status(c echo.Context) error {
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

	doc, fellBack := mirrorcfg.Parse(mirror.Config)
	if fellBack {
		logging.FromContext(ctx).Warn("config_parse_failed", "mirror_id", mirrorID)
	}
	return c.JSON(http.StatusOK, echo.Map{
		"status":      doc.Status,
		"last_update": mirror.LastUpdate,
	})
}

// Info returns a device-facing summary of the mirror.
func (h *SystemHandler) Info(c echo.Context) error {
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

	doc, _ := mirrorcfg.Parse(mirror.Config)
	return c.JSON(http.StatusOK, echo.Map{
		"id":           mirror.ID,
		"name":         mirror.Name,
		"ip_address":   mirror.IPAddress,
		"status":       doc.Status,
		"widget_count": len(doc.Widgets),
		"last_update":  mirror.LastUpdate,
	})
}

// MintAppToken issues an internal application token for mirror
// devices. Admin-only.
func (h *SystemHandler) MintAppToken(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "system_mint_app_token")

	if h.AppSentinel == "" {
		return echo.NewHTTPError(http.StatusInternalServerError, "app tokens are not configured")
	}
	signed, err := h.Codec.EncodeAppToken(h.AppSentinel)
	if err != nil {
		l.Error("app_token_mint_failed", "error", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "internal error")
	}
	l.Info("app_token_minted")
	return c.JSON(http.StatusOK, echo.Map{"token": signed})
}

// Ping is the device heartbeat endpoint, guarded by the app-token
// middleware.
func (h *SystemHandler) Ping(c echo.Context) error {
	return c.JSON(http.StatusOK, echo.Map{"message": "pong"})
}
