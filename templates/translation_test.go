package templates

import (
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCatalogResolvesGlobalLayer(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "/i18n/global.en.csv", []byte("key,value\nhello.world,Hello!\n"), 0o644))

	c := NewCatalog("en", nil)
	require.NoError(t, c.LoadGlobal(fs, "en", "/i18n/global.en.csv"))

	assert.Equal(t, "Hello!", c.Resolve("en", "hello.world"))
}

func TestCatalogSnippetLocalOutranksTheme(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "/i18n/theme.en.csv", []byte("key,value\ngreeting,Theme greeting\n"), 0o644))
	require.NoError(t, afero.WriteFile(fs, "/i18n/snippet.en.csv", []byte("key,value\ngreeting,Snippet greeting\n"), 0o644))

	c := NewCatalog("en", nil)
	require.NoError(t, c.LoadTheme(fs, "en", "/i18n/theme.en.csv"))
	require.NoError(t, c.LoadSnippetLocal(fs, "en", "/i18n/snippet.en.csv"))

	assert.Equal(t, "Snippet greeting", c.Resolve("en", "greeting"))
}

func TestCatalogThemeOutranksGlobal(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "/i18n/global.en.csv", []byte("key,value\ngreeting,Global greeting\n"), 0o644))
	require.NoError(t, afero.WriteFile(fs, "/i18n/theme.en.csv", []byte("key,value\ngreeting,Theme greeting\n"), 0o644))

	c := NewCatalog("en", nil)
	require.NoError(t, c.LoadGlobal(fs, "en", "/i18n/global.en.csv"))
	require.NoError(t, c.LoadTheme(fs, "en", "/i18n/theme.en.csv"))

	assert.Equal(t, "Theme greeting", c.Resolve("en", "greeting"))
}

func TestCatalogFallsBackToFallbackLocale(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "/i18n/global.en.csv", []byte("key,value\ngreeting,Hello\n"), 0o644))

	c := NewCatalog("en", nil)
	require.NoError(t, c.LoadGlobal(fs, "en", "/i18n/global.en.csv"))

	assert.Equal(t, "Hello", c.Resolve("de", "greeting"))
}

func TestCatalogPublishGlobalWithoutFile(t *testing.T) {
	c := NewCatalog("en", nil)
	c.PublishGlobal("en", map[string]string{"greeting": "Hello"})
	assert.Equal(t, "Hello", c.Resolve("en", "greeting"))
}

func TestCatalogMissingKeyReturnsKeyItself(t *testing.T) {
	c := NewCatalog("en", nil)
	assert.Equal(t, "totally.missing", c.Resolve("en", "totally.missing"))
}
