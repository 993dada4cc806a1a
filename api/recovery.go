package api

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/spf13/afero"

	"github.com/reedcms/reed/csvrecovery"
)

// RecoveryHandlers wraps disaster-recovery operations the admin surface
// exposes: manual rebuild-from-CSV and export-to-CSV, both long-running
// and both requiring the admin-only recovery:run permission.
type RecoveryHandlers struct {
	Recoverer *csvrecovery.Recoverer
	Fs        afero.Fs
	Dir       string
}

// RebuildRequest is the POST /admin/recovery/rebuild payload.
type RebuildRequest struct {
	Dir string `json:"dir,omitempty"`
}

// Rebuild triggers a synchronous rebuild from the CSV source-of-truth
// files. The caller blocks until the rebuild completes or fails; a
// concurrent rebuild in progress fails immediately (csvrecovery serialises
// on its own lock).
func (h *RecoveryHandlers) Rebuild(c echo.Context) error {
	var req RebuildRequest
	_ = c.Bind(&req)
	dir := req.Dir
	if dir == "" {
		dir = h.Dir
	}
	if err := h.Recoverer.RebuildFromCSV(c.Request().Context(), h.Fs, dir); err != nil {
		return translateUCGErr(err)
	}
	return c.NoContent(http.StatusNoContent)
}

// Export writes the live state back to the CSV source-of-truth files.
func (h *RecoveryHandlers) Export(c echo.Context) error {
	var req RebuildRequest
	_ = c.Bind(&req)
	dir := req.Dir
	if dir == "" {
		dir = h.Dir
	}
	if err := h.Recoverer.Export(c.Request().Context(), h.Fs, dir); err != nil {
		return translateUCGErr(err)
	}
	return c.NoContent(http.StatusNoContent)
}

// SetupRecoveryRoutes mounts the admin recovery surface under
// /admin/recovery, gated by the recovery:run permission.
func SetupRecoveryRoutes(e *echo.Echo, h *RecoveryHandlers, requirePermission echo.MiddlewareFunc) {
	group := e.Group("/admin/recovery", requirePermission)
	group.POST("/rebuild", h.Rebuild)
	group.POST("/export", h.Export)
}
