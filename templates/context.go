// Package templates implements the request-context pipeline: locale/theme
// negotiation, pluggable context extensions, html/template rendering, and a
// single-flight response cache with ETag/304 support.
package templates

import (
	"net/http"
	"strconv"
	"strings"
)

// Device classifies the requesting client.
type Device struct {
	Class    string // "desktop" | "mobile" | "tablet" | "bot"
	Browser  string
	OS       string
	IsMobile bool
}

// User carries the authenticated identity, if any.
type User struct {
	ID          string
	Roles       []string
	Permissions []string
}

// Context is the per-request bag handed to every template and extension.
type Context struct {
	Method        string
	URI           string
	Host          string
	Scheme        string
	RemoteAddr    string
	RequestID     string
	PathParams    map[string]string
	QueryParams   map[string][]string
	Headers       http.Header
	Cookies       map[string]string
	Locale        string
	Theme         string
	Device        Device
	User          *User
	Timestamp     int64
	Bag           map[string]interface{}
}

// Authenticated reports whether the request carries a user.
func (c *Context) Authenticated() bool { return c.User != nil }

// NegotiationInput is the full signal set theme/locale negotiation reads
// from, kept distinct from Context so negotiation stays a pure function of
// its inputs (P7) independent of how the caller assembled Context.
type NegotiationInput struct {
	Query          string
	Cookie         string
	AcceptLanguage string
	SessionBag     string
	Default        string
	Supported      []string
}

// NegotiateLocale resolves the active locale: query, then cookie, then the
// first supported Accept-Language entry (q-sorted), then the configured
// default (P7).
func NegotiateLocale(in NegotiationInput) string {
	if in.Query != "" {
		return in.Query
	}
	if in.Cookie != "" {
		return in.Cookie
	}
	if locale := bestAcceptLanguage(in.AcceptLanguage, in.Supported); locale != "" {
		return locale
	}
	return in.Default
}

// NegotiateTheme resolves the active theme: query, then cookie, then the
// session-stored preference, then the globally active theme. An explicit
// per-request signal always outranks the session preference, even for
// authenticated users (Open Question (c), resolved in SPEC_FULL.md §9).
func NegotiateTheme(in NegotiationInput) string {
	if in.Query != "" {
		return in.Query
	}
	if in.Cookie != "" {
		return in.Cookie
	}
	if in.SessionBag != "" {
		return in.SessionBag
	}
	return in.Default
}

type weightedTag struct {
	tag    string
	weight float64
}

// bestAcceptLanguage parses an RFC 7231 Accept-Language header and returns
// the highest-q supported tag, or "" if none match.
func bestAcceptLanguage(header string, supported []string) string {
	if header == "" || len(supported) == 0 {
		return ""
	}

	supportedSet := make(map[string]bool, len(supported))
	for _, s := range supported {
		supportedSet[strings.ToLower(s)] = true
	}

	var tags []weightedTag
	for _, part := range strings.Split(header, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		tag := part
		weight := 1.0
		if idx := strings.Index(part, ";"); idx >= 0 {
			tag = strings.TrimSpace(part[:idx])
			qPart := strings.TrimSpace(part[idx+1:])
			if strings.HasPrefix(qPart, "q=") {
				if parsed, err := strconv.ParseFloat(qPart[2:], 64); err == nil {
					weight = parsed
				}
			}
		}
		tags = append(tags, weightedTag{tag: tag, weight: weight})
	}

	best := ""
	bestWeight := -1.0
	for _, t := range tags {
		if !supportedSet[strings.ToLower(t.tag)] {
			continue
		}
		if t.weight > bestWeight {
			bestWeight = t.weight
			best = t.tag
		}
	}
	return best
}

