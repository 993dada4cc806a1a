package requestpipeline

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/reedcms/reed/auth"
	"github.com/reedcms/reed/rbac"
	"github.com/reedcms/reed/templates"
)

const (
	contextKeyRequestContext = "reed_request_context"
	sessionCookieName        = "reed_session"
)

// SetRequestContext stashes rc in c for downstream handlers and middleware.
func SetRequestContext(c echo.Context, rc *templates.Context) {
	c.Set(contextKeyRequestContext, rc)
}

// GetRequestContext retrieves the templates.Context built earlier in the
// chain by RequestContextMiddleware.
func GetRequestContext(c echo.Context) (*templates.Context, bool) {
	rc, ok := c.Get(contextKeyRequestContext).(*templates.Context)
	return rc, ok
}

// RequestContextMiddleware builds the per-request templates.Context
// (§4.8 step 1) and stores it for the rest of the chain.
func RequestContextMiddleware(neg NegotiationConfig) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			rc := BuildContext(c, neg, "")
			SetRequestContext(c, rc)
			return next(c)
		}
	}
}

// principalFromEcho is a best-effort lookup used by the rate limiter, which
// runs ahead of authentication in the default chain and so usually finds
// nothing; it exists so a caller that assembles the chain with
// authentication first (e.g. for an already-authenticated API surface)
// still gets per-user rather than per-IP buckets.
func principalFromEcho(c echo.Context) (rbac.Principal, bool) {
	return rbac.GetPrincipal(c)
}

// AuthMiddleware authenticates the request (§4.8 step 3) via bearer token
// or session cookie, attaching the resolved user to both rbac (for
// authorisation) and the request's templates.Context (for rendering). A
// missing or invalid credential is not itself an error here: routes that
// require authentication enforce that via rbac.RequirePermission or
// RequireAuthenticated downstream.
func AuthMiddleware(svc auth.AuthService) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			ctx := c.Request().Context()

			var user *auth.User
			var err error

			if token, ok := bearerToken(c.Request()); ok {
				user, _, err = svc.AuthenticateToken(ctx, token)
			} else if cookie, cookieErr := c.Cookie(sessionCookieName); cookieErr == nil && cookie.Value != "" {
				user, _, err = svc.AuthenticateSession(ctx, cookie.Value)
			}

			if err == nil && user != nil {
				rbac.SetPrincipal(c, user.ToPrincipal())
				if rc, ok := GetRequestContext(c); ok {
					rc.User = &templates.User{ID: user.ID, Roles: user.Roles, Permissions: user.Permissions}
				}
			}

			return next(c)
		}
	}
}

func bearerToken(r *http.Request) (string, bool) {
	h := r.Header.Get("Authorization")
	const prefix = "Bearer "
	if strings.HasPrefix(h, prefix) {
		return strings.TrimPrefix(h, prefix), true
	}
	if key := r.Header.Get("X-API-Key"); key != "" {
		return key, true
	}
	return "", false
}

// RequireAuthenticated returns middleware that rejects requests carrying no
// authenticated principal, for routes authorisation doesn't otherwise gate
// (e.g. "logged in, any role").
func RequireAuthenticated() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if _, ok := rbac.GetPrincipal(c); !ok {
				return echo.NewHTTPError(http.StatusUnauthorized, "authentication required")
			}
			return next(c)
		}
	}
}
