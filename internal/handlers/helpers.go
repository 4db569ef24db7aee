package handlers

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/mirrorstack/mirror_server/internal/access"
	"github.com/mirrorstack/mirror_server/internal/logging"
	"github.com/mirrorstack/mirror_server/internal/mykafka"
)

const eventsTopic = "mirror_events"

// guardError translates access guard failures into HTTP errors; any
// other error is a 500 contained to this request.
func guardError(err error) error {
	switch {
	case errors.Is(err, access.ErrAdminOnly):
		return echo.NewHTTPError(http.StatusForbidden, "only an administrator may change roles")
	case errors.Is(err, access.ErrForbidden):
		return echo.NewHTTPError(http.StatusForbidden, "access denied to this mirror")
	case errors.Is(err, access.ErrNotFound):
		return echo.NewHTTPError(http.StatusNotFound, "mirror not found")
	default:
		return echo.NewHTTPError(http.StatusInternalServerError, "internal error")
	}
}

func mirrorIDParam(c echo.Context) (uint, error) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		return 0, echo.NewHTTPError(http.StatusBadRequest, "invalid mirror id")
	}
	return uint(id), nil
}

func userIDParam(c echo.Context) (uint, error) {
	id, err := strconv.ParseUint(c.Param("userId"), 10, 32)
	if err != nil {
		return 0, echo.NewHTTPError(http.StatusBadRequest, "invalid user id")
	}
	return uint(id), nil
}

// publish sends a domain event best-effort; delivery problems are
// logged and never fail the request.
func publish(ctx context.Context, p mykafka.Publisher, key string, event map[string]interface{}) {
	if p == nil {
		return
	}
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := p.PublishEvent(ctx, eventsTopic, key, event); err != nil {
		logging.FromContext(ctx).Error("kafka_publish_failed", "error", err)
	}
}
