package rbac

import (
	"net/http"

	"github.com/labstack/echo/v4"
)

// contextKeyPrincipal is where authentication middleware stores the
// authenticated Principal for downstream authorisation middleware to read.
const contextKeyPrincipal = "rbac_principal"

// SetPrincipal stores the authenticated principal in the Echo context.
// Called by authentication middleware after validating credentials.
func SetPrincipal(c echo.Context, p Principal) {
	c.Set(contextKeyPrincipal, p)
}

// GetPrincipal retrieves the authenticated principal from the Echo context.
func GetPrincipal(c echo.Context) (Principal, bool) {
	p, ok := c.Get(contextKeyPrincipal).(Principal)
	return p, ok
}

// RequirePermission returns Echo middleware that enforces colon-delimited
// wildcard permission authorisation: the request is allowed only if the
// authenticated principal's effective permission set matches required under
// Matches' wildcard semantics. No principal in context is a 401; a
// principal lacking the permission is a 403.
func RequirePermission(roles *RoleRegistry, required string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			p, ok := GetPrincipal(c)
			if !ok {
				return echo.NewHTTPError(http.StatusUnauthorized, "authentication required")
			}
			if !roles.Allowed(p, required) {
				return echo.NewHTTPError(http.StatusForbidden, "insufficient permissions")
			}
			return next(c)
		}
	}
}

// RequireAllPermissions returns Echo middleware requiring the principal's
// effective permission set to authorise every permission in required.
func RequireAllPermissions(roles *RoleRegistry, required ...string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			p, ok := GetPrincipal(c)
			if !ok {
				return echo.NewHTTPError(http.StatusUnauthorized, "authentication required")
			}
			effective := roles.EffectivePermissions(p)
			for _, perm := range required {
				if !HasPermission(effective, perm) {
					return echo.NewHTTPError(http.StatusForbidden, "insufficient permissions")
				}
			}
			return next(c)
		}
	}
}

// RequireEngine returns Echo middleware that authorises via engine instead
// of a bare permission check, so resource-aware rules (owner policy, custom
// attribute checks) participate in the decision. resourceFromContext
// extracts the Resource being acted on for this specific route.
func RequireEngine(engine *Engine, action string, resourceFromContext func(c echo.Context) Resource) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			p, ok := GetPrincipal(c)
			if !ok {
				return echo.NewHTTPError(http.StatusUnauthorized, "authentication required")
			}
			resource := Resource{}
			if resourceFromContext != nil {
				resource = resourceFromContext(c)
			}
			ctx := Context{User: p, Action: action, Resource: resource}
			if !engine.Evaluate(ctx) {
				return echo.NewHTTPError(http.StatusForbidden, "insufficient permissions")
			}
			return next(c)
		}
	}
}
