package requestpipeline

import (
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/reedcms/reed/templates"
)

// NegotiationConfig supplies the defaults/supported sets locale and theme
// negotiation fall back to when a request carries no explicit signal.
type NegotiationConfig struct {
	DefaultLocale     string
	SupportedLocales  []string
	DefaultTheme      string
}

// BuildContext assembles a templates.Context from an in-flight request
// (§4.8 step 1): request metadata, cookies/headers, device classification,
// and negotiated locale/theme. User is left nil; AuthMiddleware fills it in
// once a credential has been validated.
func BuildContext(c echo.Context, neg NegotiationConfig, themeSessionPref string) *templates.Context {
	req := c.Request()

	cookies := map[string]string{}
	for _, ck := range req.Cookies() {
		cookies[ck.Name] = ck.Value
	}

	query := map[string][]string{}
	for k, v := range req.URL.Query() {
		query[k] = v
	}

	rc := &templates.Context{
		Method:      req.Method,
		URI:         req.RequestURI,
		Host:        req.Host,
		Scheme:      scheme(c),
		RemoteAddr:  c.RealIP(),
		RequestID:   c.Response().Header().Get(echo.HeaderXRequestID),
		PathParams:  pathParams(c),
		QueryParams: query,
		Headers:     req.Header,
		Cookies:     cookies,
		Device:      classifyDevice(req.Header.Get("User-Agent")),
		Timestamp:   time.Now().Unix(),
		Bag:         map[string]interface{}{},
	}

	rc.Locale = templates.NegotiateLocale(templates.NegotiationInput{
		Query:          query1(query, "locale"),
		Cookie:         cookies["reed_locale"],
		AcceptLanguage: req.Header.Get("Accept-Language"),
		Default:        neg.DefaultLocale,
		Supported:      neg.SupportedLocales,
	})
	rc.Theme = templates.NegotiateTheme(templates.NegotiationInput{
		Query:      query1(query, "theme"),
		Cookie:     cookies["reed_theme"],
		SessionBag: themeSessionPref,
		Default:    neg.DefaultTheme,
	})

	return rc
}

func scheme(c echo.Context) string {
	if c.IsTLS() {
		return "https"
	}
	if s := c.Request().Header.Get("X-Forwarded-Proto"); s != "" {
		return s
	}
	return "http"
}

func pathParams(c echo.Context) map[string]string {
	names := c.ParamNames()
	out := make(map[string]string, len(names))
	for _, n := range names {
		out[n] = c.Param(n)
	}
	return out
}

func query1(q map[string][]string, key string) string {
	if v, ok := q[key]; ok && len(v) > 0 {
		return v[0]
	}
	return ""
}

// classifyDevice performs a coarse User-Agent sniff: enough to bucket
// mobile/tablet/bot/desktop for theme and extension purposes (§4.4), not a
// full device-detection library.
func classifyDevice(ua string) templates.Device {
	lower := strings.ToLower(ua)
	d := templates.Device{Class: "desktop"}

	switch {
	case strings.Contains(lower, "bot") || strings.Contains(lower, "spider") || strings.Contains(lower, "crawler"):
		d.Class = "bot"
	case strings.Contains(lower, "ipad") || strings.Contains(lower, "tablet"):
		d.Class = "tablet"
	case strings.Contains(lower, "mobi") || strings.Contains(lower, "iphone") || strings.Contains(lower, "android"):
		d.Class = "mobile"
		d.IsMobile = true
	}

	switch {
	case strings.Contains(lower, "firefox"):
		d.Browser = "firefox"
	case strings.Contains(lower, "edg/"):
		d.Browser = "edge"
	case strings.Contains(lower, "chrome"):
		d.Browser = "chrome"
	case strings.Contains(lower, "safari"):
		d.Browser = "safari"
	}

	switch {
	case strings.Contains(lower, "windows"):
		d.OS = "windows"
	case strings.Contains(lower, "iphone") || strings.Contains(lower, "ipad"):
		d.OS = "ios"
	case strings.Contains(lower, "mac os"):
		d.OS = "macos"
	case strings.Contains(lower, "android"):
		d.OS = "android"
	case strings.Contains(lower, "linux"):
		d.OS = "linux"
	}

	return d
}
