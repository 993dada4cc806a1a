package rbac

import "sync/atomic"

// Role carries a set of permissions granted to every user holding it.
type Role struct {
	Name        string
	Permissions []string
}

// Principal is the minimal user shape rbac needs: its own direct
// permissions plus the role names it holds. auth.User satisfies this via a
// thin adapter rather than rbac importing the auth package.
type Principal struct {
	ID          string
	Permissions []string
	Roles       []string
}

// RoleRegistry holds the set of known roles behind an atomic snapshot,
// following the same copy-on-write discipline as the theme and snippet
// registries: readers take a lock-free snapshot, Register/ReplaceAll swap
// the whole map in one atomic pointer store.
type RoleRegistry struct {
	snapshot atomic.Pointer[map[string]Role]
}

// NewRoleRegistry returns an empty RoleRegistry.
func NewRoleRegistry() *RoleRegistry {
	r := &RoleRegistry{}
	empty := map[string]Role{}
	r.snapshot.Store(&empty)
	return r
}

// Register adds or replaces a single role.
func (r *RoleRegistry) Register(role Role) {
	current := *r.snapshot.Load()
	next := make(map[string]Role, len(current)+1)
	for k, v := range current {
		next[k] = v
	}
	next[role.Name] = role
	r.snapshot.Store(&next)
}

// ReplaceAll atomically swaps the entire role set.
func (r *RoleRegistry) ReplaceAll(roles []Role) {
	next := make(map[string]Role, len(roles))
	for _, role := range roles {
		next[role.Name] = role
	}
	r.snapshot.Store(&next)
}

// Get returns the named role, if registered.
func (r *RoleRegistry) Get(name string) (Role, bool) {
	m := *r.snapshot.Load()
	role, ok := m[name]
	return role, ok
}

// EffectivePermissions returns the union of a principal's direct
// permissions and every permission carried by its roles. Unknown role names
// are silently skipped — a role name that doesn't resolve grants nothing,
// it doesn't error the whole computation.
func (r *RoleRegistry) EffectivePermissions(p Principal) []string {
	seen := make(map[string]struct{}, len(p.Permissions))
	var out []string
	add := func(perm string) {
		if _, dup := seen[perm]; dup {
			return
		}
		seen[perm] = struct{}{}
		out = append(out, perm)
	}

	for _, perm := range p.Permissions {
		add(perm)
	}
	for _, roleName := range p.Roles {
		role, ok := r.Get(roleName)
		if !ok {
			continue
		}
		for _, perm := range role.Permissions {
			add(perm)
		}
	}
	return out
}

// Allowed reports whether p's effective permission set authorises required.
func (r *RoleRegistry) Allowed(p Principal, required string) bool {
	return HasPermission(r.EffectivePermissions(p), required)
}
