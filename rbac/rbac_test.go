package rbac

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEffectivePermissionsUnionsDirectAndRolePermissions(t *testing.T) {
	roles := NewRoleRegistry()
	roles.Register(Role{Name: "editor", Permissions: []string{"content:update:*"}})

	p := Principal{ID: "u1", Permissions: []string{"content:read"}, Roles: []string{"editor"}}
	effective := roles.EffectivePermissions(p)

	assert.Contains(t, effective, "content:read")
	assert.Contains(t, effective, "content:update:*")
}

func TestEffectivePermissionsDedupesOverlap(t *testing.T) {
	roles := NewRoleRegistry()
	roles.Register(Role{Name: "viewer", Permissions: []string{"content:read"}})

	p := Principal{Permissions: []string{"content:read"}, Roles: []string{"viewer"}}
	effective := roles.EffectivePermissions(p)

	assert.Len(t, effective, 1)
}

func TestEffectivePermissionsIgnoresUnknownRole(t *testing.T) {
	roles := NewRoleRegistry()
	p := Principal{Roles: []string{"ghost"}}
	assert.Empty(t, roles.EffectivePermissions(p))
}

func TestAllowedMatchesThroughRole(t *testing.T) {
	roles := NewRoleRegistry()
	roles.Register(Role{Name: "admin", Permissions: []string{"*"}})

	p := Principal{Roles: []string{"admin"}}
	assert.True(t, roles.Allowed(p, "content:delete:99"))
}

func TestRoleRegistryReplaceAllDiscardsPrevious(t *testing.T) {
	roles := NewRoleRegistry()
	roles.Register(Role{Name: "old", Permissions: []string{"x"}})
	roles.ReplaceAll([]Role{{Name: "new", Permissions: []string{"y"}}})

	_, ok := roles.Get("old")
	assert.False(t, ok)
	role, ok := roles.Get("new")
	assert.True(t, ok)
	assert.Equal(t, []string{"y"}, role.Permissions)
}
