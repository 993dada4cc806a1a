package requestpipeline

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"

	"github.com/reedcms/reed/reederr"
)

func TestPathClassBucketsKnownPrefixes(t *testing.T) {
	assert.Equal(t, "auth", pathClass("/auth/login"))
	assert.Equal(t, "assets", pathClass("/assets/app.css"))
	assert.Equal(t, "api", pathClass("/api/entities"))
	assert.Equal(t, "default", pathClass("/home"))
}

func TestSecurityHeadersMiddlewareSetsExpectedHeaders(t *testing.T) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	handler := SecurityHeadersMiddleware()(func(c echo.Context) error { return c.NoContent(http.StatusOK) })
	assert.NoError(t, handler(c))

	assert.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))
	assert.Equal(t, "DENY", rec.Header().Get("X-Frame-Options"))
	assert.NotEmpty(t, rec.Header().Get("Content-Security-Policy"))
}

func TestErrorHandlerMapsReedErrorToItsHTTPStatus(t *testing.T) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	handler := ErrorHandler(nil)
	handler(reederr.PermissionDenied("content:update"), c)

	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestErrorHandlerDefaultsToInternalServerError(t *testing.T) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	handler := ErrorHandler(nil)
	handler(errors.New("boom"), c)

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}
