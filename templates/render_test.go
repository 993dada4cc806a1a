package templates

import (
	"context"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/reedcms/reed/epc"
)

func newTestRenderer(t *testing.T) (*Renderer, afero.Fs) {
	fs := afero.NewMemMapFs()
	registry := epc.NewThemeRegistry()
	registry.Register(epc.Theme{Name: "base"})

	resolver, err := epc.New(epc.Config{Fs: fs, ThemesDir: "/themes", Registry: registry})
	require.NoError(t, err)

	catalog := NewCatalog("en", nil)
	return NewRenderer(fs, resolver, catalog), fs
}

func TestRendererRendersSimpleTemplate(t *testing.T) {
	ctx := context.Background()
	r, fs := newTestRenderer(t)
	require.NoError(t, afero.WriteFile(fs, "/themes/base/templates/home.html", []byte("<h1>{{.Bag.title}}</h1>"), 0o644))

	rc := &Context{Theme: "base", Locale: "en", Bag: map[string]interface{}{"title": "Welcome"}}
	out, err := r.Render(ctx, "home.html", rc)
	require.NoError(t, err)
	assert.Equal(t, "<h1>Welcome</h1>", string(out))
}

func TestRendererEscapesUntrustedContent(t *testing.T) {
	ctx := context.Background()
	r, fs := newTestRenderer(t)
	require.NoError(t, afero.WriteFile(fs, "/themes/base/templates/echo.html", []byte("<p>{{.Bag.body}}</p>"), 0o644))

	rc := &Context{Theme: "base", Locale: "en", Bag: map[string]interface{}{"body": "<script>alert(1)</script>"}}
	out, err := r.Render(ctx, "echo.html", rc)
	require.NoError(t, err)
	assert.NotContains(t, string(out), "<script>")
}

func TestRendererMissingTemplateReturnsError(t *testing.T) {
	ctx := context.Background()
	r, _ := newTestRenderer(t)
	rc := &Context{Theme: "base", Locale: "en"}
	_, err := r.Render(ctx, "missing.html", rc)
	assert.Error(t, err)
}

func TestRendererUsesTranslationFunc(t *testing.T) {
	ctx := context.Background()
	r, fs := newTestRenderer(t)
	require.NoError(t, afero.WriteFile(fs, "/themes/base/templates/greet.html", []byte("{{t \"hello.world\"}}"), 0o644))
	require.NoError(t, afero.WriteFile(fs, "/i18n/global.en.csv", []byte("key,value\nhello.world,Hello!\n"), 0o644))
	require.NoError(t, r.catalog.LoadGlobal(fs, "en", "/i18n/global.en.csv"))

	rc := &Context{Theme: "base", Locale: "en"}
	out, err := r.Render(ctx, "greet.html", rc)
	require.NoError(t, err)
	assert.Equal(t, "Hello!", string(out))
}

func TestRendererBindsCorrectLocalePerRequest(t *testing.T) {
	ctx := context.Background()
	r, fs := newTestRenderer(t)
	require.NoError(t, afero.WriteFile(fs, "/themes/base/templates/greet.html", []byte("{{t \"hello.world\"}}"), 0o644))
	require.NoError(t, afero.WriteFile(fs, "/i18n/global.en.csv", []byte("key,value\nhello.world,Hello!\n"), 0o644))
	require.NoError(t, afero.WriteFile(fs, "/i18n/global.de.csv", []byte("key,value\nhello.world,Hallo!\n"), 0o644))
	require.NoError(t, r.catalog.LoadGlobal(fs, "en", "/i18n/global.en.csv"))
	require.NoError(t, r.catalog.LoadGlobal(fs, "de", "/i18n/global.de.csv"))

	// Render the SAME compiled template under two different locales; the
	// cache is keyed by file path only, so this exercises the clone+rebind.
	enOut, err := r.Render(ctx, "greet.html", &Context{Theme: "base", Locale: "en"})
	require.NoError(t, err)
	deOut, err := r.Render(ctx, "greet.html", &Context{Theme: "base", Locale: "de"})
	require.NoError(t, err)

	assert.Equal(t, "Hello!", string(enOut))
	assert.Equal(t, "Hallo!", string(deOut))
}
