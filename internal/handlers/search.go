package handlers

import (
	"net/http"

	"github.com/elastic/go-elasticsearch/v9"
	"github.com/labstack/echo/v4"

	"github.com/mirrorstack/mirror_server/internal/logging"
	"github.com/mirrorstack/mirror_server/internal/repo"
	"github.com/mirrorstack/mirror_server/internal/search"
)

type SearchHandler struct {
	ES   *elasticsearch.Client
	Repo *repo.Repo
}

// Search runs an admin fuzzy name search across all mirrors. Hits come
// back from the index as ids and are resolved against the database so
// the response never shows stale documents.
func (h *SearchHandler) Search(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "mirror_search")

	query := c.QueryParam("q")
	if query == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "query parameter q is required")
	}
	if h.ES == nil {
		return echo.NewHTTPError(http.StatusServiceUnavailable, "search is not configured")
	}

	from, size := search.ParsePagination(c.QueryParam("from"), c.QueryParam("size"))
	total, ids, err := search.Search(ctx, h.ES, query, from, size)
	if err != nil {
		l.Error("search_failed", "error", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "internal error")
	}

	mirrors, err := h.Repo.MirrorsByIDs(ctx, ids)
	if err != nil {
		l.Error("search_resolve_failed", "error", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "internal error")
	}

	return c.JSON(http.StatusOK, echo.Map{
		"total":   total,
		"mirrors": mirrors,
	})
}
