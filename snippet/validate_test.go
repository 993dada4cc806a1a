package snippet

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func ptrInt(i int) *int         { return &i }
func ptrFloat(f float64) *float64 { return &f }

func TestValidateFieldsRequiredMissing(t *testing.T) {
	schema := SchemaDef{Fields: []FieldDef{{Name: "title", Type: FieldString, Required: true}}}
	result := ValidateFields(schema, map[string]interface{}{})
	assert.False(t, result.OK())
	assert.Equal(t, "required", result.Errors[0].Code)
}

func TestValidateFieldsTypeMismatch(t *testing.T) {
	schema := SchemaDef{Fields: []FieldDef{{Name: "views", Type: FieldNumber}}}
	result := ValidateFields(schema, map[string]interface{}{"views": "not-a-number"})
	assert.False(t, result.OK())
	assert.Equal(t, "invalid_type", result.Errors[0].Code)
}

func TestValidateFieldsLengthConstraints(t *testing.T) {
	schema := SchemaDef{Fields: []FieldDef{{Name: "title", Type: FieldString, MinLength: ptrInt(5), MaxLength: ptrInt(10)}}}

	tooShort := ValidateFields(schema, map[string]interface{}{"title": "hi"})
	assert.False(t, tooShort.OK())

	tooLong := ValidateFields(schema, map[string]interface{}{"title": "way too long a title"})
	assert.False(t, tooLong.OK())

	justRight := ValidateFields(schema, map[string]interface{}{"title": "hello"})
	assert.True(t, justRight.OK())
}

func TestValidateFieldsNumericRange(t *testing.T) {
	schema := SchemaDef{Fields: []FieldDef{{Name: "rating", Type: FieldNumber, Min: ptrFloat(1), Max: ptrFloat(5)}}}

	assert.False(t, ValidateFields(schema, map[string]interface{}{"rating": float64(0)}).OK())
	assert.False(t, ValidateFields(schema, map[string]interface{}{"rating": float64(6)}).OK())
	assert.True(t, ValidateFields(schema, map[string]interface{}{"rating": float64(3)}).OK())
}

func TestValidateFieldsEnum(t *testing.T) {
	schema := SchemaDef{Fields: []FieldDef{{Name: "status", Type: FieldString, Enum: []string{"draft", "published"}}}}

	assert.True(t, ValidateFields(schema, map[string]interface{}{"status": "draft"}).OK())
	assert.False(t, ValidateFields(schema, map[string]interface{}{"status": "archived"}).OK())
}

func TestValidateFieldsFormatValidators(t *testing.T) {
	schema := SchemaDef{Fields: []FieldDef{
		{Name: "email", Type: FieldEmail},
		{Name: "site", Type: FieldURL},
		{Name: "slug", Type: FieldSlug},
		{Name: "published", Type: FieldDate},
	}}

	ok := ValidateFields(schema, map[string]interface{}{
		"email":     "person@example.com",
		"site":      "https://example.com",
		"slug":      "hello-world",
		"published": "2026-07-30",
	})
	assert.True(t, ok.OK())

	bad := ValidateFields(schema, map[string]interface{}{
		"email":     "not-an-email",
		"site":      "not a url",
		"slug":      "Not A Slug!",
		"published": "not-a-date",
	})
	assert.False(t, bad.OK())
	assert.Len(t, bad.Errors, 4)
}

func TestValidateFieldsFirewallBlocksXSS(t *testing.T) {
	schema := SchemaDef{Fields: []FieldDef{{Name: "body", Type: FieldText}}}
	result := ValidateFields(schema, map[string]interface{}{"body": "hello <script>alert(1)</script>"})
	assert.False(t, result.OK())
	assert.Contains(t, result.Errors[0].Code, "xss")
}

func TestValidateFieldsFirewallBlocksSQLInjection(t *testing.T) {
	schema := SchemaDef{Fields: []FieldDef{{Name: "q", Type: FieldString}}}
	result := ValidateFields(schema, map[string]interface{}{"q": "1 OR 1=1"})
	assert.False(t, result.OK())
}

func TestValidateFieldsFirewallBlocksPathTraversal(t *testing.T) {
	schema := SchemaDef{Fields: []FieldDef{{Name: "path", Type: FieldString}}}
	result := ValidateFields(schema, map[string]interface{}{"path": "../../etc/passwd"})
	assert.False(t, result.OK())
}
