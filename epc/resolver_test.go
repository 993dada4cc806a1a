package epc

import (
	"context"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestResolver(t *testing.T) (*Resolver, afero.Fs, *ThemeRegistry) {
	fs := afero.NewMemMapFs()
	registry := NewThemeRegistry()
	registry.Register(Theme{Name: "base"})
	registry.Register(Theme{Name: "corporate", Parent: "base"})

	r, err := New(Config{Fs: fs, ThemesDir: "/themes", Registry: registry})
	require.NoError(t, err)
	return r, fs, registry
}

func TestResolverFindsFileInActiveTheme(t *testing.T) {
	ctx := context.Background()
	r, fs, _ := newTestResolver(t)

	require.NoError(t, afero.WriteFile(fs, "/themes/corporate/templates/home.html", []byte("<h1>home</h1>"), 0o644))

	res, ok, err := r.Resolve(ctx, "corporate", KindTemplates, "home.html")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "corporate", res.SourceTheme)
	assert.Equal(t, "/themes/corporate/templates/home.html", res.FilePath)
}

func TestResolverFallsBackToParentTheme(t *testing.T) {
	ctx := context.Background()
	r, fs, _ := newTestResolver(t)

	require.NoError(t, afero.WriteFile(fs, "/themes/base/templates/home.html", []byte("<h1>base home</h1>"), 0o644))

	res, ok, err := r.Resolve(ctx, "corporate", KindTemplates, "home.html")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "base", res.SourceTheme)
}

func TestResolverMissReturnsNotFound(t *testing.T) {
	ctx := context.Background()
	r, _, _ := newTestResolver(t)

	_, ok, err := r.Resolve(ctx, "corporate", KindTemplates, "missing.html")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestResolverRejectsPathTraversal(t *testing.T) {
	ctx := context.Background()
	r, _, _ := newTestResolver(t)

	_, _, err := r.Resolve(ctx, "corporate", KindTemplates, "../../etc/passwd")
	assert.Error(t, err)
}

func TestResolverMemoizesHit(t *testing.T) {
	ctx := context.Background()
	r, fs, _ := newTestResolver(t)
	require.NoError(t, afero.WriteFile(fs, "/themes/corporate/assets/app.css", []byte("body{}"), 0o644))

	first, ok, err := r.Resolve(ctx, "corporate", KindAssets, "app.css")
	require.NoError(t, err)
	require.True(t, ok)

	// Remove the file; a memoised hit should still be returned without
	// touching the filesystem again.
	require.NoError(t, fs.Remove("/themes/corporate/assets/app.css"))

	second, ok, err := r.Resolve(ctx, "corporate", KindAssets, "app.css")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, first, second)
}

func TestResolverInvalidateThemeClearsMemo(t *testing.T) {
	ctx := context.Background()
	r, fs, _ := newTestResolver(t)
	require.NoError(t, afero.WriteFile(fs, "/themes/corporate/assets/app.css", []byte("body{}"), 0o644))

	_, ok, err := r.Resolve(ctx, "corporate", KindAssets, "app.css")
	require.NoError(t, err)
	require.True(t, ok)

	require.NoError(t, fs.Remove("/themes/corporate/assets/app.css"))
	r.InvalidateTheme(ctx, "corporate")

	_, ok, err = r.Resolve(ctx, "corporate", KindAssets, "app.css")
	require.NoError(t, err)
	assert.False(t, ok)
}
