package handler

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/iliyamo/venue-occupancy-map/internal/middleware"
	"github.com/iliyamo/venue-occupancy-map/internal/model"
	"github.com/iliyamo/venue-occupancy-map/internal/queue"
	"github.com/iliyamo/venue-occupancy-map/internal/repository"
	"github.com/iliyamo/venue-occupancy-map/internal/service"
	"github.com/iliyamo/venue-occupancy-map/internal/settings"
)

// AreaStore is the subset of repository.AreaRepo the admin endpoints use.
type AreaStore interface {
	GetStatus(ctx context.Context, id uint64) (*model.AreaStatus, error)
	Create(ctx context.Context, a *model.Area) error
	Update(ctx context.Context, id uint64, p model.AreaPatch) (*model.Area, error)
	Delete(ctx context.Context, id uint64) error
}

// ThresholdStore is the subset of repository.ThresholdRepo the admin
// endpoints use.
type ThresholdStore interface {
	GetByID(ctx context.Context, id int64) (*model.Threshold, error)
	Create(ctx context.Context, t *model.Threshold) error
	Update(ctx context.Context, id int64, p model.ThresholdPatch) (*model.Threshold, error)
	Delete(ctx context.Context, id int64) error
}

// SnapshotStore records visitor counts.
type SnapshotStore interface {
	Record(ctx context.Context, areaID uint64, visitors int, at time.Time) (*model.VisitorSnapshot, error)
	Latest(ctx context.Context, areaID uint64) (*model.VisitorSnapshot, error)
}

// Refresher rebuilds the public snapshot.
type Refresher interface {
	Refresh(ctx context.Context) error
}

// AdminHandler bundles everything the management endpoints write to.
// Purge, when set, drops cached public responses after each write.
type AdminHandler struct {
	Areas      AreaStore
	Thresholds ThresholdStore
	Snapshots  SnapshotStore
	Writer     settings.Writer
	Board      Refresher
	Events     service.EventPublisher
	Purge      func(ctx context.Context) error
	Log        *zap.Logger
}

// NewAdminHandler panics if a store is missing.  A nil publisher disables
// events and a nil logger discards output.
func NewAdminHandler(areas AreaStore, thresholds ThresholdStore, snapshots SnapshotStore, w settings.Writer, board Refresher, events service.EventPublisher, log *zap.Logger) *AdminHandler {
	if areas == nil || thresholds == nil || snapshots == nil || w == nil || board == nil {
		panic("nil dependency passed to NewAdminHandler")
	}
	if events == nil {
		events = service.Nop{}
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &AdminHandler{
		Areas:      areas,
		Thresholds: thresholds,
		Snapshots:  snapshots,
		Writer:     w,
		Board:      board,
		Events:     events,
		Log:        log.Named("admin"),
	}
}

// afterWrite makes a successful write visible: the board is refreshed,
// cached public responses are dropped and the change is announced.  None
// of these failing turns the write into an error.
func (h *AdminHandler) afterWrite(c echo.Context, ev queue.AreaChangedEvent) {
	ctx := c.Request().Context()
	if uid, ok := middleware.UserID(c); ok {
		ev.ActorID = uid
	}
	fields := []zap.Field{
		zap.String("kind", ev.Kind),
		zap.Uint64("area_id", ev.AreaID),
		zap.String("request_id", middleware.GetRequestID(c)),
	}

	if err := h.Board.Refresh(ctx); err != nil {
		h.Log.Warn("board refresh after write failed", append(fields, zap.Error(err))...)
	}
	if h.Purge != nil {
		if err := h.Purge(ctx); err != nil {
			h.Log.Warn("cache purge failed", append(fields, zap.Error(err))...)
		}
	}
	if err := h.Events.PublishAreaChanged(ctx, service.Stamp(ev)); err != nil {
		h.Log.Warn("publish area change failed", append(fields, zap.Error(err))...)
	}
}

// ----- DTOs -----

type createAreaReq struct {
	Name      string `json:"name"`
	X         int    `json:"x"`
	Y         int    `json:"y"`
	Width     int    `json:"width"`
	Height    int    `json:"height"`
	Highlight string `json:"highlight"`
	Capacity  int    `json:"capacity"`
}

type settingsReq struct {
	Fields     map[string]string `json:"fields"`
	Thresholds *[]bandInput      `json:"thresholds"`
}

// bandInput is one row of the threshold list in a settings submit.  A
// non-positive ID marks a band that is new in this submit.
type bandInput struct {
	ID         int64  `json:"id"`
	UpperBound int    `json:"upper_bound"`
	Color      string `json:"color"`
}

type visitorsReq struct {
	Visitors   *int       `json:"visitors"`
	ObservedAt *time.Time `json:"observed_at"`
}

// CreateArea adds an area to the map.
func (h *AdminHandler) CreateArea(c echo.Context) error {
	var req createAreaReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	a := model.Area{
		Name:      strings.TrimSpace(req.Name),
		X:         req.X,
		Y:         req.Y,
		Width:     req.Width,
		Height:    req.Height,
		Highlight: strings.TrimSpace(req.Highlight),
		Capacity:  req.Capacity,
	}
	if a.Name == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "name required"})
	}
	if !a.ValidGeometry() {
		return respondErr(c, repository.ErrInvalidGeometry, "")
	}

	ctx, cancel := dbCtx(c)
	defer cancel()
	if err := h.Areas.Create(ctx, &a); err != nil {
		return respondErr(c, err, "create area failed")
	}
	h.afterWrite(c, queue.AreaChangedEvent{Kind: queue.AreaCreated, AreaID: a.ID})
	return c.JSON(http.StatusCreated, a)
}

// UpdateArea applies a partial update of the area attributes.
func (h *AdminHandler) UpdateArea(c echo.Context) error {
	id, ok := parseAreaID(c)
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid id"})
	}
	var p model.AreaPatch
	if err := c.Bind(&p); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	if p.Empty() {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "no fields to update"})
	}
	if (p.Width != nil && *p.Width <= 0) || (p.Height != nil && *p.Height <= 0) {
		return respondErr(c, repository.ErrInvalidGeometry, "")
	}

	ctx, cancel := dbCtx(c)
	defer cancel()
	a, err := h.Areas.Update(ctx, id, p)
	if err != nil {
		return respondErr(c, err, "update area failed")
	}
	h.afterWrite(c, queue.AreaChangedEvent{Kind: queue.AreaUpdated, AreaID: id})
	return c.JSON(http.StatusOK, a)
}

// DeleteArea removes an area with its bands and readings.
func (h *AdminHandler) DeleteArea(c echo.Context) error {
	id, ok := parseAreaID(c)
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid id"})
	}
	ctx, cancel := dbCtx(c)
	defer cancel()
	if err := h.Areas.Delete(ctx, id); err != nil {
		return respondErr(c, err, "delete area failed")
	}
	h.afterWrite(c, queue.AreaChangedEvent{Kind: queue.AreaDeleted, AreaID: id})
	return c.NoContent(http.StatusNoContent)
}

// GetSettings returns the stored state the settings form starts from.
func (h *AdminHandler) GetSettings(c echo.Context) error {
	id, ok := parseAreaID(c)
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid id"})
	}
	ctx, cancel := dbCtx(c)
	defer cancel()
	cur, err := h.Areas.GetStatus(ctx, id)
	if err != nil {
		return respondErr(c, err, "load area failed")
	}
	form := settings.NewForm(cur.Area, cur.Thresholds)
	return c.JSON(http.StatusOK, echo.Map{"area": form.Area(), "thresholds": form.Thresholds()})
}

// SaveSettings applies a full settings submit.  Attribute fields arrive
// as raw strings; the threshold list, when present, replaces the stored
// one.  Only the difference to the stored state is written.
func (h *AdminHandler) SaveSettings(c echo.Context) error {
	id, ok := parseAreaID(c)
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid id"})
	}
	var req settingsReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}

	ctx, cancel := dbCtx(c)
	defer cancel()
	cur, err := h.Areas.GetStatus(ctx, id)
	if err != nil {
		return respondErr(c, err, "load area failed")
	}

	form := settings.NewForm(cur.Area, cur.Thresholds)
	for field, raw := range req.Fields {
		if err := form.Set(field, raw); err != nil {
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "unknown field: " + field})
		}
	}
	if req.Thresholds != nil {
		if err := applyBands(form, *req.Thresholds); err != nil {
			return respondErr(c, err, "invalid thresholds")
		}
	}

	changes, err := form.Save(ctx, h.Writer)
	if err != nil {
		if pending(form.Diff()) < pending(changes) {
			// part of the submit is stored, make it visible
			h.afterWrite(c, queue.AreaChangedEvent{Kind: queue.AreaUpdated, AreaID: id})
		}
		return respondErr(c, err, "save failed")
	}
	saved := !changes.Empty()
	if saved {
		h.afterWrite(c, queue.AreaChangedEvent{Kind: queue.AreaUpdated, AreaID: id})
	}
	return c.JSON(http.StatusOK, echo.Map{
		"saved":      saved,
		"changes":    changes,
		"area":       form.Area(),
		"thresholds": form.Thresholds(),
	})
}

// applyBands turns the submitted list into form edits: stored bands
// missing from the list are removed, listed ones are edited and new ones
// added, in that order so a bound freed by a removal can be reused.
func applyBands(form *settings.Form, in []bandInput) error {
	keep := make(map[int64]bool, len(in))
	for _, b := range in {
		if b.ID > 0 {
			keep[b.ID] = true
		}
	}
	for _, t := range form.Thresholds() {
		if !keep[t.ID] {
			if err := form.DeleteThreshold(t.ID); err != nil {
				return err
			}
		}
	}
	edits := make([]settings.BandEdit, 0, len(in))
	for _, b := range in {
		if b.ID > 0 {
			edits = append(edits, settings.BandEdit{ID: b.ID, UpperBound: b.UpperBound, Color: b.Color})
		}
	}
	if err := form.EditThresholds(edits); err != nil {
		return err
	}
	for _, b := range in {
		if b.ID <= 0 {
			if _, err := form.AddThreshold(b.UpperBound, b.Color); err != nil {
				return err
			}
		}
	}
	return nil
}

// pending counts the writes a change set stands for.
func pending(cs settings.ChangeSet) int {
	n := len(cs.Added) + len(cs.Changed) + len(cs.Removed)
	if !cs.Area.Empty() {
		n++
	}
	return n
}

// RecordVisitors stores a visitor count for an area.
func (h *AdminHandler) RecordVisitors(c echo.Context) error {
	id, ok := parseAreaID(c)
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid id"})
	}
	var req visitorsReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	if req.Visitors == nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "visitors required"})
	}
	if *req.Visitors < 0 {
		return respondErr(c, repository.ErrInvalidCount, "")
	}
	var at time.Time
	if req.ObservedAt != nil {
		at = *req.ObservedAt
	}

	ctx, cancel := dbCtx(c)
	defer cancel()
	snap, err := h.Snapshots.Record(ctx, id, *req.Visitors, at)
	if err != nil {
		return respondErr(c, err, "record visitors failed")
	}
	h.afterWrite(c, queue.AreaChangedEvent{Kind: queue.VisitorsRecorded, AreaID: id})
	return c.JSON(http.StatusCreated, snap)
}

// LatestVisitors returns the newest recorded count of an area together
// with its observation time.
func (h *AdminHandler) LatestVisitors(c echo.Context) error {
	id, ok := parseAreaID(c)
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid id"})
	}

	ctx, cancel := dbCtx(c)
	defer cancel()
	snap, err := h.Snapshots.Latest(ctx, id)
	if err != nil {
		return respondErr(c, err, "load visitors failed")
	}
	if snap == nil {
		return c.JSON(http.StatusNotFound, echo.Map{"error": "no visitor count recorded"})
	}
	return c.JSON(http.StatusOK, snap)
}
