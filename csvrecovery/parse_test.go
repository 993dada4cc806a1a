package csvrecovery

import (
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseThemes(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "/themes.csv",
		[]byte("name,parent,context_type,context_value,active\nbase,,,,true\ndark,base,location,us,false\n"), 0o644))

	themes, err := parseThemes(fs, "/themes.csv")
	require.NoError(t, err)
	require.Len(t, themes, 2)
	assert.Equal(t, "base", themes[0].Name)
	assert.True(t, themes[0].Active)
	assert.Equal(t, "base", themes[1].Parent)
	assert.Equal(t, "location", themes[1].ContextType)
}

func TestParseThemesMissingColumn(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "/themes.csv", []byte("name,parent\nbase,\n"), 0o644))

	_, err := parseThemes(fs, "/themes.csv")
	assert.Error(t, err)
}

func TestParseSnippetsGroupsByName(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "/snippets.csv", []byte(
		"snippet_name,field_name,field_type,required,default_value\n"+
			"article,title,string,true,\n"+
			"article,body,text,false,\n"+
			"page,title,string,true,\n"), 0o644))

	defs, err := parseSnippets(fs, "/snippets.csv")
	require.NoError(t, err)
	require.Len(t, defs, 2)
	assert.Equal(t, "article", defs[0].Name)
	assert.Len(t, defs[0].Fields, 2)
	assert.Equal(t, "page", defs[1].Name)
}

func TestParseEntitiesParsesTimestampAndOptionalColumns(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "/entities.csv", []byte(
		"id,tag,semantic_name,data_json,created_by,created_at\n"+
			"e1,article,,{\"title\":\"Hi\"},,2024-01-02T15:04:05Z\n"+
			"e2,article,root,{},user-1,2024-01-02T15:04:05Z\n"), 0o644))

	rows, err := parseEntities(fs, "/entities.csv")
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Nil(t, rows[0].semanticName)
	assert.Equal(t, "root", *rows[1].semanticName)
	assert.Equal(t, "user-1", *rows[1].createdBy)
	assert.Equal(t, 2024, rows[0].createdAt.Year())
}

func TestParseEntitiesInvalidTimestamp(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "/entities.csv", []byte(
		"id,tag,semantic_name,data_json,created_by,created_at\n"+
			"e1,article,,{},,not-a-time\n"), 0o644))

	_, err := parseEntities(fs, "/entities.csv")
	assert.Error(t, err)
}

func TestParseAssociations(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "/associations.csv", []byte(
		"parent_id,child_id,path,kind,weight\n"+
			"p1,c1,root.1,contains,0\n"), 0o644))

	rows, err := parseAssociations(fs, "/associations.csv")
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "p1", rows[0].parentID)
	assert.Equal(t, "contains", rows[0].kind)
}

func TestParseAssociationsInvalidWeight(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "/associations.csv", []byte(
		"parent_id,child_id,path,kind,weight\n"+
			"p1,c1,root.1,contains,not-a-number\n"), 0o644))

	_, err := parseAssociations(fs, "/associations.csv")
	assert.Error(t, err)
}

func TestParseTranslations(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "/translations.en.csv", []byte("key,value\nhello,Hello\n"), 0o644))

	rows, err := parseTranslations(fs, "/translations.en.csv")
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "hello", rows[0].key)
	assert.Equal(t, "Hello", rows[0].value)
}

func TestParseAllDiscoversTranslationFilesByLocale(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "/dump/themes.csv", []byte("name,parent,context_type,context_value,active\nbase,,,,true\n"), 0o644))
	require.NoError(t, afero.WriteFile(fs, "/dump/snippets.csv", []byte("snippet_name,field_name,field_type,required,default_value\n"), 0o644))
	require.NoError(t, afero.WriteFile(fs, "/dump/entities.csv", []byte("id,tag,semantic_name,data_json,created_by,created_at\n"), 0o644))
	require.NoError(t, afero.WriteFile(fs, "/dump/associations.csv", []byte("parent_id,child_id,path,kind,weight\n"), 0o644))
	require.NoError(t, afero.WriteFile(fs, "/dump/translations.en.csv", []byte("key,value\nhello,Hello\n"), 0o644))
	require.NoError(t, afero.WriteFile(fs, "/dump/translations.de.csv", []byte("key,value\nhello,Hallo\n"), 0o644))

	parsed, err := parseAll(fs, "/dump")
	require.NoError(t, err)
	require.Contains(t, parsed.translations, "en")
	require.Contains(t, parsed.translations, "de")
	assert.Equal(t, "Hallo", parsed.translations["de"][0].value)
}

func TestTokenizeDedupsAndLowercases(t *testing.T) {
	toks := tokenize(map[string]interface{}{
		"title": "Hello World Hello",
		"views": float64(12),
	})
	assert.ElementsMatch(t, []string{"hello", "world"}, toks)
}

func TestTokenizeSkipsShortTokens(t *testing.T) {
	toks := tokenize(map[string]interface{}{"title": "a bb ccc"})
	assert.ElementsMatch(t, []string{"bb", "ccc"}, toks)
}
