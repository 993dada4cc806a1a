// Package webassets embeds the static files the built-in admin UI and
// default error pages serve, so a single binary never depends on a
// filesystem layout at deploy time.
package webassets

import (
	"embed"
	"io/fs"
	"net/http"

	"github.com/labstack/echo/v4"
)

//go:embed assets/*
var assetsFS embed.FS

// Register mounts /assets/* against the embedded files.
func Register(e *echo.Echo) {
	sub, err := fs.Sub(assetsFS, "assets")
	if err != nil {
		panic(err)
	}
	e.GET("/assets/*", echo.WrapHandler(http.StripPrefix("/assets/", http.FileServer(http.FS(sub)))))
}

// AdminCSS returns the default admin UI stylesheet, for callers that want
// to inline it rather than serve it as a static file.
func AdminCSS() ([]byte, error) {
	return assetsFS.ReadFile("assets/reed-admin.css")
}
