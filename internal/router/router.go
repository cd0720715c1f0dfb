package router // package router defines how HTTP routes are registered for the API

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/venue-occupancy-map/internal/handler"
	"github.com/iliyamo/venue-occupancy-map/internal/middleware"
	"github.com/iliyamo/venue-occupancy-map/internal/model"
)

// RegisterRoutes registers the probes.  /healthz only says the process is
// up; /readyz also checks the database.
func RegisterRoutes(e *echo.Echo, ready echo.HandlerFunc) {
	e.GET("/healthz", handler.Health)
	if ready != nil {
		e.GET("/readyz", ready)
	}
}

// RegisterAuth registers the session endpoints.  Login, refresh, logout
// and the session probe live under /v1/auth without JWT; /v1/me needs a
// valid access token of any known role.
func RegisterAuth(e *echo.Echo, a *handler.AuthHandler, jwtSecret string) {
	g := e.Group("/v1/auth")
	g.POST("/login", a.Login)
	g.POST("/refresh", a.Refresh)
	// logout accepts either a refresh token in the body or a bearer token
	g.POST("/logout", a.Logout)
	g.GET("/session", a.Session)

	e.GET("/v1/me", a.Me,
		middleware.JWTAuth(jwtSecret),
		middleware.RequireRole(model.RoleAdmin, model.RoleViewer),
	)
}

// RegisterPublic registers the map endpoints.  Reads that depend only on
// the snapshot run behind limited and cached (rate limiter, then redis
// cache); the page, the selection and the refresh trigger only behind
// limited, so a refresh shows up at once.
func RegisterPublic(e *echo.Echo, m *handler.MapHandler, limited, cached []echo.MiddlewareFunc) {
	both := append(append([]echo.MiddlewareFunc{}, limited...), cached...)
	e.GET("/v1/areas", m.ListAreas, both...)
	e.GET("/v1/areas/:id", m.GetArea, both...)
	e.GET("/v1/areas/:id/thresholds", m.ListThresholds, both...)
	e.GET("/v1/map.svg", m.MapSVG, both...)
	e.GET("/charts/occupancy", m.OccupancyChart, both...)

	e.GET("/map", m.MapPage, limited...)
	e.GET("/v1/map/select/:id", m.Select, limited...)
	e.POST("/v1/map/refresh", m.Refresh, limited...)
	e.GET("/v1/map/status", m.Status, limited...)
}
