package middleware // declare the middleware package; contains reusable HTTP middleware functions

import (
	"net/http" // HTTP status codes for responses
	"strings"  // prefix checking and trimming

	"github.com/labstack/echo/v4" // Echo framework used for defining middleware and handlers

	"github.com/iliyamo/venue-occupancy-map/internal/utils" // access token verification
)

// Context keys set by JWTAuth.
const (
	CtxUserID      = "user_id"
	CtxRole        = "role"
	CtxDisplayName = "display_name"
)

// JWTAuth returns an Echo middleware that validates a Bearer access token and
// injects the token's subject, role and display name into the request
// context.  The provided secret must match the one used when issuing tokens.
// Handlers read the values with c.Get(CtxUserID) (a uint64), c.Get(CtxRole)
// and c.Get(CtxDisplayName).
func JWTAuth(secret string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			// A valid header starts with "Bearer " followed by the JWT.
			auth := c.Request().Header.Get("Authorization")
			if !strings.HasPrefix(auth, "Bearer ") {
				return c.JSON(http.StatusUnauthorized, echo.Map{"error": "missing bearer token"})
			}
			raw := strings.TrimPrefix(auth, "Bearer ")

			// Signature, algorithm and expiry are all checked here.
			claims, err := utils.ParseAccessToken(secret, raw)
			if err != nil {
				return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid token"})
			}

			c.Set(CtxUserID, claims.UserID)
			c.Set(CtxRole, claims.Role)
			c.Set(CtxDisplayName, claims.DisplayName)
			return next(c)
		}
	}
}
