package snippet

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSanitizeStripsDisallowedTags(t *testing.T) {
	out := Sanitize("  <p>hello <script>alert(1)</script>world</p>  ")
	assert.Contains(t, out, "hello")
	assert.Contains(t, out, "world")
	assert.NotContains(t, out, "<script>")
}

func TestSanitizeAddsRelOnLinks(t *testing.T) {
	out := Sanitize(`<a href="https://example.com">link</a>`)
	assert.Contains(t, out, `rel="nofollow`)
}

func TestSanitizePayloadOnlyTouchesFlaggedFields(t *testing.T) {
	schema := SchemaDef{Fields: []FieldDef{
		{Name: "body", Type: FieldText, Sanitize: true},
		{Name: "slug", Type: FieldSlug, Sanitize: false},
	}}
	payload := map[string]interface{}{
		"body": "<script>bad()</script>clean text",
		"slug": "<script>bad()</script>",
	}
	out := SanitizePayload(schema, payload)
	assert.NotContains(t, out["body"], "<script>")
	assert.Equal(t, "<script>bad()</script>", out["slug"])
}
