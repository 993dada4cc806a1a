package requestpipeline

import (
	"context"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/reedcms/reed/templates"
)

// RenderCached executes §4.8 steps 6-7 for a templated response: render (via
// renderer, through the response cache keyed on rc plus contentVersion), a
// 304 short-circuit against If-None-Match, and writing the body with
// caching headers. contentVersion is supplied by the caller (the UCG
// revision or snippet version the render observed) so a content mutation
// naturally produces a fresh cache key instead of requiring explicit
// invalidation.
func RenderCached(c echo.Context, renderer *templates.Renderer, cache *templates.ResponseCache, rc *templates.Context, templateName, contentVersion string) error {
	ctx := c.Request().Context()

	roles := []string{}
	if rc.User != nil {
		roles = rc.User.Roles
	}
	fp := templates.Fingerprint{
		Method:         rc.Method,
		Path:           rc.URI,
		Query:          rc.QueryParams,
		Locale:         rc.Locale,
		Theme:          rc.Theme,
		DeviceClass:    rc.Device.Class,
		Roles:          roles,
		ContentVersion: contentVersion,
	}

	entry, err := cache.GetOrRender(ctx, fp, func(ctx context.Context) ([]byte, error) {
		return renderer.Render(ctx, templateName, rc)
	})
	if err != nil {
		return err
	}

	if templates.NotModified(entry, c.Request().Header.Get("If-None-Match")) {
		return c.NoContent(http.StatusNotModified)
	}

	c.Response().Header().Set("ETag", entry.ETag)
	c.Response().Header().Set("Last-Modified", entry.LastModified.UTC().Format(http.TimeFormat))
	c.Response().Header().Set(CacheControlFor(templateName))
	return c.HTMLBlob(http.StatusOK, entry.Body)
}

// CacheControlFor returns the Cache-Control header key/value pair for a
// given asset/template class (§4 wire protocol): long-lived immutable
// caching for fingerprinted assets, a short revalidation window for
// css/js, and a conservative default otherwise.
func CacheControlFor(name string) (string, string) {
	switch extensionClass(name) {
	case "image", "font":
		return "Cache-Control", "public, max-age=31536000, immutable"
	case "style", "script":
		return "Cache-Control", "public, max-age=86400, stale-while-revalidate=604800"
	default:
		return "Cache-Control", "public, max-age=3600"
	}
}

func extensionClass(name string) string {
	for _, suffix := range []string{".png", ".jpg", ".jpeg", ".gif", ".webp", ".svg"} {
		if hasSuffix(name, suffix) {
			return "image"
		}
	}
	for _, suffix := range []string{".woff", ".woff2", ".ttf", ".otf"} {
		if hasSuffix(name, suffix) {
			return "font"
		}
	}
	if hasSuffix(name, ".css") {
		return "style"
	}
	if hasSuffix(name, ".js") {
		return "script"
	}
	return "other"
}

func hasSuffix(s, suffix string) bool {
	return len(s) >= len(suffix) && s[len(s)-len(suffix):] == suffix
}
