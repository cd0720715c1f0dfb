package middleware

// identity.go defines helpers shared across middleware files and handlers
// for reading the caller identity that JWTAuth stored in the Echo context.

import (
	"strconv"

	"github.com/labstack/echo/v4"
)

// UserID returns the authenticated user id, or false when the request is
// anonymous.
func UserID(c echo.Context) (uint64, bool) {
	switch v := c.Get(CtxUserID).(type) {
	case uint64:
		return v, v != 0
	case string:
		n, err := strconv.ParseUint(v, 10, 64)
		return n, err == nil && n != 0
	}
	return 0, false
}

// userKey renders the caller for cache and rate limit keys.  Anonymous
// callers share the "anon" key.
func userKey(c echo.Context) string {
	if id, ok := UserID(c); ok {
		return strconv.FormatUint(id, 10)
	}
	return "anon"
}
