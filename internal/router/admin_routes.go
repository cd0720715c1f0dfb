package router

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/venue-occupancy-map/internal/handler"
	"github.com/iliyamo/venue-occupancy-map/internal/middleware"
	"github.com/iliyamo/venue-occupancy-map/internal/model"
)

// RegisterAdmin registers the management endpoints under /v1/admin.
// All routes require a valid JWT and the ADMIN role.
func RegisterAdmin(e *echo.Echo, a *handler.AdminHandler, jwtSecret string) {
	g := e.Group(
		"/v1/admin",
		middleware.JWTAuth(jwtSecret),
		middleware.RequireRole(model.RoleAdmin),
	)

	// ---- Areas ----
	g.POST("/areas", a.CreateArea)
	g.PATCH("/areas/:id", a.UpdateArea)
	g.DELETE("/areas/:id", a.DeleteArea)
	g.GET("/areas/:id/settings", a.GetSettings)
	g.PUT("/areas/:id/settings", a.SaveSettings)
	g.GET("/areas/:id/visitors", a.LatestVisitors)
	g.POST("/areas/:id/visitors", a.RecordVisitors)

	// ---- Thresholds ----
	g.POST("/areas/:id/thresholds", a.CreateThreshold)
	g.PUT("/thresholds/:id", a.UpdateThreshold)
	g.PATCH("/thresholds/:id", a.UpdateThreshold) // alias for clients that use PATCH
	g.DELETE("/thresholds/:id", a.DeleteThreshold)
}
