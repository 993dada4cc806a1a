package snippet

import (
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

// htmlPolicy allows a minimal rich-text subset (the structural and
// formatting tags a snippet body needs) and rewrites links to carry
// rel="nofollow noopener noreferrer", per spec.
var htmlPolicy = newHTMLPolicy()

func newHTMLPolicy() *bluemonday.Policy {
	p := bluemonday.NewPolicy()
	p.AllowStandardURLs()
	p.AllowElements("p", "br", "strong", "em", "ul", "ol", "li", "blockquote", "h2", "h3", "h4")
	p.AllowAttrs("href").OnElements("a")
	p.AllowURLSchemes("http", "https", "mailto")
	p.RequireNoFollowOnLinks(true)
	p.AddTargetBlankToFullyQualifiedLinks(true)
	p.RequireNoReferrerOnFullyQualifiedLinks(true)
	return p
}

// Sanitize applies the HTML allowlist policy and trims surrounding
// whitespace. It is an explicit, separate step from ValidateFields: a
// caller decides per-field whether to sanitise (rich-text body) or reject
// outright (a slug, a URL).
func Sanitize(s string) string {
	return strings.TrimSpace(htmlPolicy.Sanitize(s))
}

// SanitizePayload rewrites every string field flagged Sanitize in schema,
// leaving other fields untouched. It operates on a copy; the input map is
// not mutated.
func SanitizePayload(schema SchemaDef, payload map[string]interface{}) map[string]interface{} {
	out := make(map[string]interface{}, len(payload))
	for k, v := range payload {
		out[k] = v
	}
	for _, field := range schema.Fields {
		if !field.Sanitize {
			continue
		}
		if s, ok := out[field.Name].(string); ok {
			out[field.Name] = Sanitize(s)
		}
	}
	return out
}
