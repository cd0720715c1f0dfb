package handler

import (
	"bytes"
	"context"
	"net/http"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/venue-occupancy-map/internal/chart"
	"github.com/iliyamo/venue-occupancy-map/internal/config"
	"github.com/iliyamo/venue-occupancy-map/internal/dashboard"
	"github.com/iliyamo/venue-occupancy-map/internal/mapview"
	"github.com/iliyamo/venue-occupancy-map/internal/model"
	"github.com/iliyamo/venue-occupancy-map/internal/occupancy"
)

// ThresholdLister reads the bands of one area.
type ThresholdLister interface {
	ListByArea(ctx context.Context, areaID uint64) ([]model.Threshold, error)
}

// MapHandler serves the public occupancy map from the board snapshot.
// Nothing here needs a login.
type MapHandler struct {
	Board      *dashboard.Board
	Thresholds ThresholdLister
	Cfg        config.MapConfig
}

func NewMapHandler(b *dashboard.Board, t ThresholdLister, cfg config.MapConfig) *MapHandler {
	return &MapHandler{Board: b, Thresholds: t, Cfg: cfg}
}

// AreaItem is an area of the snapshot together with its classification.
type AreaItem struct {
	model.AreaStatus
	BandUpperBound *int            `json:"band_upper_bound,omitempty"`
	Level          occupancy.Level `json:"level"`
	Color          string          `json:"color"`
}

func newAreaItem(a model.AreaStatus) AreaItem {
	res := occupancy.Evaluate(a)
	a.Thresholds = occupancy.Sorted(a.Thresholds)
	item := AreaItem{AreaStatus: a, Level: res.Level, Color: res.Color}
	if res.Matched {
		bound := res.Band.UpperBound
		item.BandUpperBound = &bound
	}
	return item
}

// ListAreas returns every area of the current snapshot.
func (h *MapHandler) ListAreas(c echo.Context) error {
	areas := h.Board.Snapshot()
	out := make([]AreaItem, 0, len(areas))
	for _, a := range areas {
		out = append(out, newAreaItem(a))
	}
	return c.JSON(http.StatusOK, echo.Map{"items": out, "status": h.Board.Status()})
}

// GetArea returns one classified area.
func (h *MapHandler) GetArea(c echo.Context) error {
	id, ok := parseAreaID(c)
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid id"})
	}
	a, found := h.Board.Area(id)
	if !found {
		return c.JSON(http.StatusNotFound, echo.Map{"error": "area not found"})
	}
	return c.JSON(http.StatusOK, newAreaItem(a))
}

// ListThresholds reads the bands of an area from the database, ascending.
func (h *MapHandler) ListThresholds(c echo.Context) error {
	id, ok := parseAreaID(c)
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid id"})
	}
	ctx, cancel := dbCtx(c)
	defer cancel()
	ts, err := h.Thresholds.ListByArea(ctx, id)
	if err != nil {
		return respondErr(c, err, "database error")
	}
	return c.JSON(http.StatusOK, echo.Map{"items": occupancy.Sorted(ts)})
}

func (h *MapHandler) renderOptions(selected uint64) mapview.Options {
	return mapview.Options{
		Width:      h.Cfg.ViewBoxWidth,
		Height:     h.Cfg.ViewBoxHeight,
		SelectedID: selected,
		SelectURL:  h.Cfg.SelectURL,
		Labels:     mapview.StreetLabels(),
		Legend:     true,
	}
}

// selectedParam reads ?selected=; anything unparsable means no selection.
func selectedParam(c echo.Context) uint64 {
	id, _ := strconv.ParseUint(c.QueryParam("selected"), 10, 64)
	return id
}

// MapSVG renders the map as a standalone SVG document.
func (h *MapHandler) MapSVG(c echo.Context) error {
	var buf bytes.Buffer
	if err := mapview.Render(&buf, h.Board.Snapshot(), h.renderOptions(selectedParam(c))); err != nil {
		return respondErr(c, err, "render failed")
	}
	return c.Blob(http.StatusOK, "image/svg+xml; charset=utf-8", buf.Bytes())
}

// MapPage renders the HTML page with the embedded map, the status line and
// the details of the selected area.
func (h *MapHandler) MapPage(c echo.Context) error {
	selected := selectedParam(c)
	st := h.Board.Status()
	page := mapview.Page{
		RefreshSeconds: int(h.Cfg.RefreshInterval.Seconds()),
		RefreshedAt:    st.RefreshedAt,
		Refreshing:     st.Refreshing,
		Notice:         st.LastError,
	}
	if a, ok := h.Board.Area(selected); ok {
		page.Selected = &a
	}
	var buf bytes.Buffer
	if err := mapview.RenderPage(&buf, h.Board.Snapshot(), page, h.renderOptions(selected)); err != nil {
		return respondErr(c, err, "render failed")
	}
	return c.HTMLBlob(http.StatusOK, buf.Bytes())
}

// Select emits the selection event for an area and returns its data.
func (h *MapHandler) Select(c echo.Context) error {
	id, ok := parseAreaID(c)
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid id"})
	}
	a, err := h.Board.Select(id)
	if err != nil {
		return respondErr(c, err, "select failed")
	}
	return c.JSON(http.StatusOK, newAreaItem(a))
}

// Refresh triggers an immediate fetch.  Form posts from the map page are
// redirected back to it; the notice there reports a failure.
func (h *MapHandler) Refresh(c echo.Context) error {
	err := h.Board.Refresh(c.Request().Context())
	if strings.HasPrefix(c.Request().Header.Get(echo.HeaderContentType), echo.MIMEApplicationForm) {
		return c.Redirect(http.StatusSeeOther, "/map")
	}
	if err != nil {
		return c.JSON(http.StatusBadGateway, echo.Map{"error": dashboard.FetchFailedMessage, "status": h.Board.Status()})
	}
	return c.JSON(http.StatusOK, h.Board.Status())
}

// Status reports the refresh state of the board.
func (h *MapHandler) Status(c echo.Context) error {
	return c.JSON(http.StatusOK, h.Board.Status())
}

// OccupancyChart renders visitors against capacity per area.
func (h *MapHandler) OccupancyChart(c echo.Context) error {
	var buf bytes.Buffer
	if err := chart.RenderOccupancy(&buf, h.Board.Snapshot()); err != nil {
		return respondErr(c, err, "render failed")
	}
	return c.HTMLBlob(http.StatusOK, buf.Bytes())
}
