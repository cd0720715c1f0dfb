package handler

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/venue-occupancy-map/internal/middleware"
	"github.com/iliyamo/venue-occupancy-map/internal/session"
)

// AuthHandler exposes the session lifecycle over HTTP.
type AuthHandler struct {
	Sessions *session.Manager
}

func NewAuthHandler(m *session.Manager) *AuthHandler {
	return &AuthHandler{Sessions: m}
}

// ----- DTOs -----

type loginReq struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}
type refreshReq struct {
	RefreshToken string `json:"refresh_token"`
}

type tokenPart struct {
	Token   string    `json:"token"`
	Expires time.Time `json:"expires"`
}
type authResp struct {
	User    session.Identity `json:"user"`
	Access  tokenPart        `json:"access"`
	Refresh tokenPart        `json:"refresh"`
}

func newAuthResp(t session.Tokens) authResp {
	return authResp{
		User:    t.User,
		Access:  tokenPart{Token: t.AccessToken, Expires: t.AccessExpiresAt},
		Refresh: tokenPart{Token: t.RefreshToken, Expires: t.RefreshExpiresAt},
	}
}

// Login: verify credentials and return a new pair.
func (h *AuthHandler) Login(c echo.Context) error {
	var req loginReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	if strings.TrimSpace(req.Email) == "" || req.Password == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "email/password required"})
	}

	ctx, cancel := dbCtx(c)
	defer cancel()

	tokens, err := h.Sessions.Login(ctx, req.Email, req.Password)
	if err != nil {
		if errors.Is(err, session.ErrInvalidCredentials) {
			return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid credentials"})
		}
		return respondErr(c, err, "login failed")
	}
	return c.JSON(http.StatusOK, newAuthResp(tokens))
}

// Refresh: rotate the refresh token and issue a new pair.
func (h *AuthHandler) Refresh(c echo.Context) error {
	var req refreshReq
	if err := c.Bind(&req); err != nil || strings.TrimSpace(req.RefreshToken) == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "refresh_token required"})
	}

	ctx, cancel := dbCtx(c)
	defer cancel()

	tokens, err := h.Sessions.Refresh(ctx, req.RefreshToken)
	if err != nil {
		if errors.Is(err, session.ErrInvalidRefresh) {
			return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid refresh"})
		}
		return respondErr(c, err, "refresh failed")
	}
	return c.JSON(http.StatusOK, newAuthResp(tokens))
}

// Logout revokes the refresh token in the body, or every refresh token of
// the bearer when the body carries none.
func (h *AuthHandler) Logout(c echo.Context) error {
	var req refreshReq
	_ = c.Bind(&req)
	bearer := c.Request().Header.Get("Authorization")
	if strings.TrimSpace(req.RefreshToken) == "" && !strings.HasPrefix(bearer, "Bearer ") {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "provide Authorization header or refresh_token"})
	}

	ctx, cancel := dbCtx(c)
	defer cancel()

	switch err := h.Sessions.Logout(ctx, bearer, req.RefreshToken); {
	case err == nil:
		return c.NoContent(http.StatusNoContent)
	case errors.Is(err, session.ErrInvalidRefresh):
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid refresh token"})
	case errors.Is(err, session.ErrInvalidCredentials):
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	default:
		return respondErr(c, err, "logout failed")
	}
}

// Session reports who is logged in.  Anonymous callers get
// authenticated=false rather than a 401 so the page header can always
// render.
func (h *AuthHandler) Session(c echo.Context) error {
	return c.JSON(http.StatusOK, h.Sessions.Current(c.Request().Header.Get("Authorization")))
}

// Me: simple protected endpoint.
func (h *AuthHandler) Me(c echo.Context) error {
	return c.JSON(http.StatusOK, echo.Map{
		"user_id":      c.Get(middleware.CtxUserID),
		"role":         c.Get(middleware.CtxRole),
		"display_name": c.Get(middleware.CtxDisplayName),
	})
}
