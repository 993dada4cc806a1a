// Package api provides the HTTP handlers and routing for the core's public
// surface: authentication, entity graph CRUD, and snippet schema listing.
package api

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/reedcms/reed/auth"
	"github.com/reedcms/reed/rbac"
	"github.com/reedcms/reed/snippet"
	"github.com/reedcms/reed/ucg"
)

// Handlers holds the service dependencies every route needs.
type Handlers struct {
	Auth     auth.AuthService
	Graph    *ucg.Graph
	Snippets *snippet.Registry
	Roles    *rbac.RoleRegistry
}

func clientAddr(c echo.Context) string { return c.RealIP() }

// LoginRequest is the POST /auth/login payload.
type LoginRequest struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
}

// Login exchanges a username/password for a session and a token pair.
func (h *Handlers) Login(c echo.Context) error {
	var req LoginRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}

	result, err := h.Auth.LoginWithPassword(c.Request().Context(), req.Username, req.Password, clientAddr(c), c.Request().UserAgent())
	if err != nil {
		return translateAuthErr(err)
	}

	c.SetCookie(&http.Cookie{Name: "reed_session", Value: result.Session.ID, Path: "/", HttpOnly: true, Secure: true, SameSite: http.SameSiteLaxMode})
	return c.JSON(http.StatusOK, map[string]interface{}{
		"user":          result.User.ToResponse(),
		"access_token":  result.Tokens.AccessToken,
		"refresh_token": result.Tokens.RefreshToken,
		"expires_at":    result.Tokens.ExpiresAt,
	})
}

// OAuthCallbackRequest is the POST /auth/oauth/callback payload.
type OAuthCallbackRequest struct {
	Code string `json:"code" validate:"required"`
}

// OAuthCallback completes the OAuth-code credential exchange (§4.8).
func (h *Handlers) OAuthCallback(c echo.Context) error {
	var req OAuthCallbackRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}

	result, err := h.Auth.LoginWithOAuthCode(c.Request().Context(), req.Code, clientAddr(c), c.Request().UserAgent())
	if err != nil {
		return translateAuthErr(err)
	}

	c.SetCookie(&http.Cookie{Name: "reed_session", Value: result.Session.ID, Path: "/", HttpOnly: true, Secure: true, SameSite: http.SameSiteLaxMode})
	return c.JSON(http.StatusOK, map[string]interface{}{
		"user":          result.User.ToResponse(),
		"access_token":  result.Tokens.AccessToken,
		"refresh_token": result.Tokens.RefreshToken,
	})
}

// RefreshRequest is the POST /auth/refresh payload.
type RefreshRequest struct {
	RefreshToken string `json:"refresh_token" validate:"required"`
}

// Refresh rotates an access/refresh token pair.
func (h *Handlers) Refresh(c echo.Context) error {
	var req RefreshRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	pair, err := h.Auth.RefreshAccessToken(c.Request().Context(), req.RefreshToken)
	if err != nil {
		return translateAuthErr(err)
	}
	return c.JSON(http.StatusOK, pair)
}

// Logout revokes the caller's session.
func (h *Handlers) Logout(c echo.Context) error {
	cookie, err := c.Cookie("reed_session")
	if err != nil || cookie.Value == "" {
		return c.NoContent(http.StatusNoContent)
	}
	if err := h.Auth.Logout(c.Request().Context(), cookie.Value); err != nil {
		return translateAuthErr(err)
	}
	c.SetCookie(&http.Cookie{Name: "reed_session", Value: "", Path: "/", MaxAge: -1})
	return c.NoContent(http.StatusNoContent)
}

// IssueAPIKey mints a non-expiring api_key-scope token for the caller.
func (h *Handlers) IssueAPIKey(c echo.Context) error {
	p, ok := rbac.GetPrincipal(c)
	if !ok {
		return echo.NewHTTPError(http.StatusUnauthorized, "authentication required")
	}
	key, err := h.Auth.IssueAPIKey(c.Request().Context(), p.ID)
	if err != nil {
		return translateAuthErr(err)
	}
	return c.JSON(http.StatusOK, map[string]string{"api_key": key})
}

func translateAuthErr(err error) error {
	switch err {
	case auth.ErrInvalidCredentials, auth.ErrInvalidToken, auth.ErrExpiredToken, auth.ErrRevokedToken, auth.ErrWrongTokenScope, auth.ErrOAuthExchangeFailed:
		return echo.NewHTTPError(http.StatusUnauthorized, err.Error())
	case auth.ErrAccountLocked, auth.ErrAccountDisabled, auth.ErrForbidden:
		return echo.NewHTTPError(http.StatusForbidden, err.Error())
	case auth.ErrUserNotFound, auth.ErrSessionNotFound:
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
	default:
		return err
	}
}
