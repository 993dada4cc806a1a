package ucg

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGraphResolvePathAndPathRoundTrip(t *testing.T) {
	ctx := context.Background()
	g := newForTest(newFakeStore(), nil)

	root, err := g.CreateEntity(ctx, "root", strPtr(RootSemanticName), map[string]interface{}{}, nil)
	require.NoError(t, err)

	section, err := g.CreateEntity(ctx, "page", nil, map[string]interface{}{"title": "Section"}, nil)
	require.NoError(t, err)
	_, err = g.Attach(ctx, root.ID, section.ID, KindContains, 1)
	require.NoError(t, err)

	leaf, err := g.CreateEntity(ctx, "page", nil, map[string]interface{}{"title": "Leaf"}, nil)
	require.NoError(t, err)
	_, err = g.Attach(ctx, section.ID, leaf.ID, KindContains, 1)
	require.NoError(t, err)

	resolved, children, err := g.ResolvePath(ctx, "root.1.1")
	require.NoError(t, err)
	require.NotNil(t, resolved)
	assert.Equal(t, leaf.ID, resolved.ID)
	assert.Empty(t, children)

	path, err := g.Path(ctx, leaf.ID)
	require.NoError(t, err)
	assert.Equal(t, "root.1.1", path)

	rootPath, err := g.Path(ctx, root.ID)
	require.NoError(t, err)
	assert.Equal(t, "root", rootPath)
}

func TestGraphResolvePathRejectsMalformedSegment(t *testing.T) {
	ctx := context.Background()
	g := newForTest(newFakeStore(), nil)

	_, err := g.CreateEntity(ctx, "root", strPtr(RootSemanticName), map[string]interface{}{}, nil)
	require.NoError(t, err)

	_, _, err = g.ResolvePath(ctx, "root.x")
	assert.Error(t, err)

	_, _, err = g.ResolvePath(ctx, "not-root")
	assert.Error(t, err)
}

func TestGraphResolvePathOutOfRangePosition(t *testing.T) {
	ctx := context.Background()
	g := newForTest(newFakeStore(), nil)

	_, err := g.CreateEntity(ctx, "root", strPtr(RootSemanticName), map[string]interface{}{}, nil)
	require.NoError(t, err)

	_, _, err = g.ResolvePath(ctx, "root.1")
	assert.Error(t, err)
}
