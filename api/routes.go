package api

import (
	"github.com/labstack/echo/v4"

	"github.com/reedcms/reed/rbac"
)

// SetupRoutes configures the public authentication surface and the
// RBAC-protected entity graph surface.
//
// Public routes:
//   - POST /auth/login
//   - POST /auth/oauth/callback
//   - POST /auth/refresh
//   - POST /auth/logout
//
// Protected routes (require an authenticated principal, see
// requestpipeline.AuthMiddleware, plus the listed content permission):
//   - POST   /api/entities              content:create
//   - GET    /api/entities/:id           content:read
//   - PUT    /api/entities/:id           content:update
//   - DELETE /api/entities/:id           content:delete
//   - POST   /api/entities/:id/children  content:update
//   - GET    /api/entities/:id/children  content:read
//   - DELETE /api/associations/:assocId  content:update
//   - GET    /api/resolve                content:read
//   - POST   /api/query                  content:read
//   - GET    /api/schemas                content:read
//   - POST   /auth/api-key               (authenticated only)
func SetupRoutes(e *echo.Echo, h *Handlers, roles *rbac.RoleRegistry) {
	public := e.Group("/auth")
	public.POST("/login", h.Login)
	public.POST("/oauth/callback", h.OAuthCallback)
	public.POST("/refresh", h.Refresh)
	public.POST("/logout", h.Logout)
	public.POST("/api-key", h.IssueAPIKey)

	entities := e.Group("/api/entities")
	entities.POST("", h.CreateEntity, rbac.RequirePermission(roles, "content:create"))
	entities.GET("/:id", h.GetEntity, rbac.RequirePermission(roles, "content:read"))
	entities.PUT("/:id", h.UpdateEntity, rbac.RequirePermission(roles, "content:update"))
	entities.DELETE("/:id", h.DeleteEntity, rbac.RequirePermission(roles, "content:delete"))
	entities.POST("/:id/children", h.Attach, rbac.RequirePermission(roles, "content:update"))
	entities.GET("/:id/children", h.ChildrenOf, rbac.RequirePermission(roles, "content:read"))

	e.DELETE("/api/associations/:assocId", h.Detach, rbac.RequirePermission(roles, "content:update"))
	e.GET("/api/resolve", h.ResolvePath, rbac.RequirePermission(roles, "content:read"))
	e.POST("/api/query", h.Query, rbac.RequirePermission(roles, "content:read"))
	e.GET("/api/schemas", h.Schemas, rbac.RequirePermission(roles, "content:read"))
}
