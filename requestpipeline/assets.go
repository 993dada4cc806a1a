package requestpipeline

import (
	"io"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/spf13/afero"

	"github.com/reedcms/reed/epc"
	"github.com/reedcms/reed/reederr"
)

// AssetHandler serves theme-resolved static assets (§4 "Asset path
// grammar"): resolution (and so path-traversal rejection) is delegated to
// epc.Resolver.Resolve, which normalises the request path and refuses "..",
// backslashes, and absolute roots before ever touching the filesystem.
// Range requests and conditional GETs are handled by the standard library's
// http.ServeContent, reached through echo's *http.Request/ResponseWriter.
func AssetHandler(fs afero.Fs, resolver *epc.Resolver) echo.HandlerFunc {
	return func(c echo.Context) error {
		rc, ok := GetRequestContext(c)
		theme := "default"
		if ok {
			theme = rc.Theme
		}

		assetPath := c.Param("*")
		resolution, found, err := resolver.Resolve(c.Request().Context(), theme, epc.KindAssets, assetPath)
		if err != nil {
			return err
		}
		if !found {
			return reederr.TemplateNotFound("assets", assetPath)
		}

		f, err := fs.Open(resolution.FilePath)
		if err != nil {
			return reederr.IOError("open asset %s: %v", resolution.FilePath, err)
		}
		defer f.Close()

		info, err := f.Stat()
		if err != nil {
			return reederr.IOError("stat asset %s: %v", resolution.FilePath, err)
		}

		key, value := CacheControlFor(resolution.FilePath)
		c.Response().Header().Set(key, value)

		http.ServeContent(c.Response(), c.Request(), resolution.FilePath, modTimeOrNow(info.ModTime()), f.(io.ReadSeeker))
		return nil
	}
}

func modTimeOrNow(t time.Time) time.Time {
	if t.IsZero() {
		return time.Now()
	}
	return t
}
