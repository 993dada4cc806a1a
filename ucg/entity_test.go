package ucg

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func strPtr(s string) *string { return &s }

func TestGraphCreateAndGetEntity(t *testing.T) {
	ctx := context.Background()
	g := newForTest(newFakeStore(), nil)

	e, err := g.CreateEntity(ctx, "page", strPtr("home"), map[string]interface{}{"title": "Home"}, nil)
	require.NoError(t, err)
	require.NotEmpty(t, e.ID)
	assert.Equal(t, "page", e.Tag)
	assert.Equal(t, "Home", e.Payload["title"])

	fetched, err := g.GetEntity(ctx, e.ID)
	require.NoError(t, err)
	assert.Equal(t, e.ID, fetched.ID)
	assert.Equal(t, "Home", fetched.Payload["title"])
}

func TestGraphCreateEntitySemanticNameUniquePerTag(t *testing.T) {
	ctx := context.Background()
	g := newForTest(newFakeStore(), nil)

	_, err := g.CreateEntity(ctx, "page", strPtr("home"), map[string]interface{}{}, nil)
	require.NoError(t, err)

	_, err = g.CreateEntity(ctx, "page", strPtr("home"), map[string]interface{}{}, nil)
	assert.Error(t, err)

	// Same semantic name, different tag: allowed.
	_, err = g.CreateEntity(ctx, "snippet", strPtr("home"), map[string]interface{}{}, nil)
	assert.NoError(t, err)
}

func TestGraphCreateEntityValidatorRejection(t *testing.T) {
	ctx := context.Background()
	v := &rejectingValidator{}
	g := newForTest(newFakeStore(), v)

	_, err := g.CreateEntity(ctx, "page", nil, map[string]interface{}{"bad": true}, nil)
	assert.Error(t, err)
}

type rejectingValidator struct{}

func (rejectingValidator) Validate(tag string, payload map[string]interface{}) error {
	return assertError{}
}

type assertError struct{}

func (assertError) Error() string { return "schema rejected" }

func TestGraphUpdateEntityAppendsVersion(t *testing.T) {
	ctx := context.Background()
	g := newForTest(newFakeStore(), nil)

	e, err := g.CreateEntity(ctx, "page", nil, map[string]interface{}{"title": "v1"}, nil)
	require.NoError(t, err)

	v, err := g.UpdateEntity(ctx, e.ID, map[string]interface{}{"title": "v2"}, nil, "edit title")
	require.NoError(t, err)
	assert.Equal(t, 1, v)

	fetched, err := g.GetEntity(ctx, e.ID)
	require.NoError(t, err)
	assert.Equal(t, "v2", fetched.Payload["title"])
}

func TestGraphDeleteEntityNonCascadeBlockedByChildren(t *testing.T) {
	ctx := context.Background()
	g := newForTest(newFakeStore(), nil)

	parent, err := g.CreateEntity(ctx, "page", nil, map[string]interface{}{}, nil)
	require.NoError(t, err)
	child, err := g.CreateEntity(ctx, "page", nil, map[string]interface{}{}, nil)
	require.NoError(t, err)

	_, err = g.Attach(ctx, parent.ID, child.ID, KindContains, 0)
	require.NoError(t, err)

	err = g.DeleteEntity(ctx, parent.ID, false)
	assert.Error(t, err)
}

func TestGraphDeleteEntityCascadeRemovesChildren(t *testing.T) {
	ctx := context.Background()
	g := newForTest(newFakeStore(), nil)

	parent, err := g.CreateEntity(ctx, "page", nil, map[string]interface{}{}, nil)
	require.NoError(t, err)
	child, err := g.CreateEntity(ctx, "page", nil, map[string]interface{}{}, nil)
	require.NoError(t, err)

	_, err = g.Attach(ctx, parent.ID, child.ID, KindContains, 0)
	require.NoError(t, err)

	err = g.DeleteEntity(ctx, parent.ID, true)
	require.NoError(t, err)

	_, err = g.GetEntity(ctx, parent.ID)
	assert.Error(t, err)
	_, err = g.GetEntity(ctx, child.ID)
	assert.Error(t, err)
}

func TestGraphAttachRejectsCycle(t *testing.T) {
	ctx := context.Background()
	g := newForTest(newFakeStore(), nil)

	a, err := g.CreateEntity(ctx, "page", nil, map[string]interface{}{}, nil)
	require.NoError(t, err)
	b, err := g.CreateEntity(ctx, "page", nil, map[string]interface{}{}, nil)
	require.NoError(t, err)
	c, err := g.CreateEntity(ctx, "page", nil, map[string]interface{}{}, nil)
	require.NoError(t, err)

	_, err = g.Attach(ctx, a.ID, b.ID, KindContains, 0)
	require.NoError(t, err)
	_, err = g.Attach(ctx, b.ID, c.ID, KindContains, 0)
	require.NoError(t, err)

	_, err = g.Attach(ctx, c.ID, a.ID, KindContains, 0)
	assert.Error(t, err)
}

func TestGraphAttachAllowsReferenceCycle(t *testing.T) {
	ctx := context.Background()
	g := newForTest(newFakeStore(), nil)

	a, err := g.CreateEntity(ctx, "page", nil, map[string]interface{}{}, nil)
	require.NoError(t, err)
	b, err := g.CreateEntity(ctx, "page", nil, map[string]interface{}{}, nil)
	require.NoError(t, err)

	_, err = g.Attach(ctx, a.ID, b.ID, KindReferences, 0)
	require.NoError(t, err)
	_, err = g.Attach(ctx, b.ID, a.ID, KindReferences, 0)
	assert.NoError(t, err)
}

func TestGraphChildrenOfOrdering(t *testing.T) {
	ctx := context.Background()
	g := newForTest(newFakeStore(), nil)

	parent, err := g.CreateEntity(ctx, "page", nil, map[string]interface{}{}, nil)
	require.NoError(t, err)

	var childIDs []string
	for i := 0; i < 3; i++ {
		c, err := g.CreateEntity(ctx, "page", nil, map[string]interface{}{}, nil)
		require.NoError(t, err)
		childIDs = append(childIDs, c.ID)
	}

	// Attach in reverse weight order; ChildrenOf must come back weight-ascending.
	_, err = g.Attach(ctx, parent.ID, childIDs[2], KindContains, 3)
	require.NoError(t, err)
	_, err = g.Attach(ctx, parent.ID, childIDs[0], KindContains, 1)
	require.NoError(t, err)
	_, err = g.Attach(ctx, parent.ID, childIDs[1], KindContains, 2)
	require.NoError(t, err)

	children, err := g.ChildrenOf(ctx, parent.ID)
	require.NoError(t, err)
	require.Len(t, children, 3)
	assert.Equal(t, childIDs[0], children[0].ID)
	assert.Equal(t, childIDs[1], children[1].ID)
	assert.Equal(t, childIDs[2], children[2].ID)
}

func TestGraphDetachRemovesAssociation(t *testing.T) {
	ctx := context.Background()
	g := newForTest(newFakeStore(), nil)

	parent, err := g.CreateEntity(ctx, "page", nil, map[string]interface{}{}, nil)
	require.NoError(t, err)
	child, err := g.CreateEntity(ctx, "page", nil, map[string]interface{}{}, nil)
	require.NoError(t, err)

	assoc, err := g.Attach(ctx, parent.ID, child.ID, KindContains, 0)
	require.NoError(t, err)

	err = g.Detach(ctx, assoc.ID, parent.ID)
	require.NoError(t, err)

	children, err := g.ChildrenOf(ctx, parent.ID)
	require.NoError(t, err)
	assert.Empty(t, children)
}
