package snippet

import (
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const snippetsCSV = `snippet_name,field_name,field_type,required,default_value
article,title,string,true,
article,body,text,false,
article,views,number,false,0
event,starts_at,date,true,
`

func TestRegistryLoadFromCSV(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "/snap/snippets.csv", []byte(snippetsCSV), 0o644))

	r := NewRegistry()
	require.NoError(t, r.Load(fs, "/snap/snippets.csv"))

	article, ok := r.Get("article")
	require.True(t, ok)
	assert.Len(t, article.Fields, 3)

	title, ok := article.field("title")
	require.True(t, ok)
	assert.True(t, title.Required)
	assert.Equal(t, FieldString, title.Type)

	_, ok = r.Get("nonexistent")
	assert.False(t, ok)
}

func TestRegistryRegisterCopyOnWrite(t *testing.T) {
	r := NewRegistry()
	r.Register(SchemaDef{Name: "page", Fields: []FieldDef{{Name: "title", Type: FieldString, Required: true}}})

	before := r.Schemas()
	r.Register(SchemaDef{Name: "other", Fields: nil})

	// The snapshot returned before the second Register is unaffected.
	_, existedBefore := before["other"]
	assert.False(t, existedBefore)

	after := r.Schemas()
	_, existsAfter := after["other"]
	assert.True(t, existsAfter)
}

func TestRegistryReplaceAllDiscardsPrevious(t *testing.T) {
	r := NewRegistry()
	r.Register(SchemaDef{Name: "old"})

	r.ReplaceAll([]SchemaDef{{Name: "article", Fields: []FieldDef{{Name: "title", Type: FieldString, Required: true}}}})

	_, ok := r.Get("old")
	assert.False(t, ok)
	article, ok := r.Get("article")
	require.True(t, ok)
	assert.Len(t, article.Fields, 1)
	assert.Len(t, r.Schemas(), 1)
}

func TestValidatorUnknownTagAccepted(t *testing.T) {
	r := NewRegistry()
	v := NewValidator(r)
	assert.NoError(t, v.Validate("unregistered-tag", map[string]interface{}{"anything": true}))
}

func TestValidatorRejectsMissingRequiredField(t *testing.T) {
	r := NewRegistry()
	r.Register(SchemaDef{Name: "article", Fields: []FieldDef{{Name: "title", Type: FieldString, Required: true}}})
	v := NewValidator(r)

	err := v.Validate("article", map[string]interface{}{})
	assert.Error(t, err)
}
