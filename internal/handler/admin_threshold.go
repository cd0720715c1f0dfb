package handler

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/venue-occupancy-map/internal/model"
	"github.com/iliyamo/venue-occupancy-map/internal/queue"
	"github.com/iliyamo/venue-occupancy-map/internal/repository"
	"github.com/iliyamo/venue-occupancy-map/internal/settings"
)

type createThresholdReq struct {
	UpperBound   int    `json:"upper_bound"`
	Color        string `json:"color"`
	Alert        bool   `json:"alert"`
	AlertMessage string `json:"alert_message"`
}

// CreateThreshold adds a band to an area.  A missing colour falls back to
// the neutral colour of new bands.
func (h *AdminHandler) CreateThreshold(c echo.Context) error {
	areaID, ok := parseAreaID(c)
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid id"})
	}
	var req createThresholdReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	if req.UpperBound <= 0 {
		return respondErr(c, repository.ErrInvalidBound, "")
	}
	t := model.Threshold{
		AreaID:       areaID,
		UpperBound:   req.UpperBound,
		Color:        strings.TrimSpace(req.Color),
		Alert:        req.Alert,
		AlertMessage: strings.TrimSpace(req.AlertMessage),
	}
	if t.Color == "" {
		t.Color = settings.NewThresholdColor
	}

	ctx, cancel := dbCtx(c)
	defer cancel()
	if err := h.Thresholds.Create(ctx, &t); err != nil {
		return respondErr(c, err, "create threshold failed")
	}
	h.afterWrite(c, queue.AreaChangedEvent{Kind: queue.ThresholdCreated, AreaID: areaID, ThresholdID: t.ID})
	return c.JSON(http.StatusCreated, t)
}

// UpdateThreshold changes the given fields of a band.  PUT and PATCH are
// treated alike.
func (h *AdminHandler) UpdateThreshold(c echo.Context) error {
	id, ok := parseThresholdID(c)
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid id"})
	}
	var p model.ThresholdPatch
	if err := c.Bind(&p); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	if p.Empty() {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "no fields to update"})
	}
	if p.UpperBound != nil && *p.UpperBound <= 0 {
		return respondErr(c, repository.ErrInvalidBound, "")
	}

	ctx, cancel := dbCtx(c)
	defer cancel()
	t, err := h.Thresholds.Update(ctx, id, p)
	if err != nil {
		return respondErr(c, err, "update threshold failed")
	}
	h.afterWrite(c, queue.AreaChangedEvent{Kind: queue.ThresholdUpdated, AreaID: t.AreaID, ThresholdID: id})
	return c.JSON(http.StatusOK, t)
}

// DeleteThreshold removes a band.
func (h *AdminHandler) DeleteThreshold(c echo.Context) error {
	id, ok := parseThresholdID(c)
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid id"})
	}

	ctx, cancel := dbCtx(c)
	defer cancel()
	// loaded first so the event can name the area
	t, err := h.Thresholds.GetByID(ctx, id)
	if err != nil {
		return respondErr(c, err, "load threshold failed")
	}
	if err := h.Thresholds.Delete(ctx, id); err != nil {
		return respondErr(c, err, "delete threshold failed")
	}
	h.afterWrite(c, queue.AreaChangedEvent{Kind: queue.ThresholdDeleted, AreaID: t.AreaID, ThresholdID: id})
	return c.NoContent(http.StatusNoContent)
}
