package requestpipeline

import (
	"net/http"

	"github.com/labstack/echo/v4"
)

// HealthResponse is the /health response body.
type HealthResponse struct {
	Status  string                 `json:"status"`
	Service string                 `json:"service,omitempty"`
	Version string                 `json:"version,omitempty"`
	Details map[string]interface{} `json:"details,omitempty"`
}

// HealthCheckHandler returns a bare liveness handler.
func HealthCheckHandler(serviceName, version string) echo.HandlerFunc {
	return func(c echo.Context) error {
		return c.JSON(http.StatusOK, HealthResponse{Status: "healthy", Service: serviceName, Version: version})
	}
}

// HealthCheckHandlerWithDetails returns a liveness handler that also reports
// detailsFunc's result, e.g. store connectivity or plugin counts.
func HealthCheckHandlerWithDetails(serviceName, version string, detailsFunc func() map[string]interface{}) echo.HandlerFunc {
	return func(c echo.Context) error {
		var details map[string]interface{}
		if detailsFunc != nil {
			details = detailsFunc()
		}
		return c.JSON(http.StatusOK, HealthResponse{Status: "healthy", Service: serviceName, Version: version, Details: details})
	}
}
