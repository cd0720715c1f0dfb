package handler

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/venue-occupancy-map/internal/dashboard"
	"github.com/iliyamo/venue-occupancy-map/internal/middleware"
	"github.com/iliyamo/venue-occupancy-map/internal/repository"
	"github.com/iliyamo/venue-occupancy-map/internal/settings"
)

// dbTimeout bounds every database round trip started by a handler.
const dbTimeout = 5 * time.Second

func dbCtx(c echo.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(c.Request().Context(), dbTimeout)
}

// parseAreaID reads the :id path parameter as an area id.
func parseAreaID(c echo.Context) (uint64, bool) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	return id, err == nil && id > 0
}

// parseThresholdID reads the :id path parameter as a persisted threshold id.
func parseThresholdID(c echo.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	return id, err == nil && id > 0
}

// errorStatuses maps sentinel errors to HTTP statuses.  The first match
// wins and its message becomes the response body.
var errorStatuses = []struct {
	err    error
	status int
}{
	{repository.ErrAreaNotFound, http.StatusNotFound},
	{repository.ErrThresholdNotFound, http.StatusNotFound},
	{dashboard.ErrAreaNotFound, http.StatusNotFound},
	{repository.ErrInvalidGeometry, http.StatusBadRequest},
	{repository.ErrInvalidBound, http.StatusBadRequest},
	{repository.ErrInvalidCount, http.StatusBadRequest},
	{settings.ErrUnknownField, http.StatusBadRequest},
	{repository.ErrDuplicateBound, http.StatusConflict},
	{repository.ErrEmailExists, http.StatusConflict},
}

// respondErr writes the JSON error for err.  Unknown errors become a 500
// with the fallback message so internals do not leak.
func respondErr(c echo.Context, err error, fallback string) error {
	for _, e := range errorStatuses {
		if errors.Is(err, e.err) {
			return c.JSON(e.status, echo.Map{"error": e.err.Error()})
		}
	}
	c.Set(middleware.CtxHandlerError, err.Error())
	return c.JSON(http.StatusInternalServerError, echo.Map{"error": fallback})
}
