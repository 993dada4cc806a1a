package requestpipeline

import (
	"github.com/labstack/echo/v4"

	"github.com/reedcms/reed/auth"
	"github.com/reedcms/reed/config"
	"github.com/reedcms/reed/epc"
	"github.com/reedcms/reed/logging"
	"github.com/reedcms/reed/rbac"
	"github.com/reedcms/reed/templates"
)

// Dependencies bundles everything the request pipeline needs to build a
// fully wired Echo instance: every core subsystem that participates in
// §4.8's request flow.
type Dependencies struct {
	Config    config.ServerConfig
	Negotiate NegotiationConfig
	Logger    *logging.ContextLogger
	Auth      auth.AuthService
	Roles     *rbac.RoleRegistry
	Engine    *rbac.Engine
	Resolver  *epc.Resolver
	Renderer  *templates.Renderer
	Cache     *templates.ResponseCache
}

// New builds an Echo instance with the full core middleware chain, in this
// order: logging, recovery, body limit, CORS, request id, rate limiting and
// security headers (all mounted by NewEchoServer), then request-context
// construction, then authentication. Route registration and per-route
// authorisation (rbac.RequirePermission/RequireEngine) are left to the
// caller, since those are route-specific.
func New(deps Dependencies) *echo.Echo {
	e := NewEchoServer(deps.Config, deps.Logger)
	e.Use(RequestContextMiddleware(deps.Negotiate))
	if deps.Auth != nil {
		e.Use(AuthMiddleware(deps.Auth))
	}
	return e
}
