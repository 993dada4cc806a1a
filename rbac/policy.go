package rbac

// Decision is a single policy Rule's verdict.
type Decision int

const (
	// Continue defers to the next rule; if no rule ever returns Allow or
	// Deny, the engine's default is Deny.
	Continue Decision = iota
	Allow
	Deny
)

// Resource names what an action targets, for rules that need to reason
// about ownership or attributes beyond the bare permission string.
type Resource struct {
	Type       string
	OwnerID    string
	Attributes map[string]interface{}
}

// Context is everything a policy Rule evaluates against.
type Context struct {
	User        Principal
	Action      string
	Resource    Resource
	Environment map[string]interface{}
}

// Rule evaluates one authorisation concern and returns Allow, Deny, or
// Continue to defer to the next rule in the chain.
type Rule func(ctx Context) Decision

// Engine evaluates an ordered chain of rules. The first rule to return
// Allow or Deny wins; if every rule returns Continue, the engine denies by
// default.
type Engine struct {
	roles *RoleRegistry
	rules []Rule
}

// NewEngine builds an Engine backed by roles, with the given rule chain
// evaluated in order. A permission-check rule consulting roles is prepended
// automatically, so callers only need to supply policy rules beyond
// plain RBAC (e.g. OwnerPolicy).
func NewEngine(roles *RoleRegistry, rules ...Rule) *Engine {
	e := &Engine{roles: roles}
	e.rules = append([]Rule{e.permissionRule}, rules...)
	return e
}

func (e *Engine) permissionRule(ctx Context) Decision {
	if e.roles.Allowed(ctx.User, ctx.Action) {
		return Allow
	}
	return Continue
}

// Evaluate runs the rule chain and reports whether ctx is authorised.
// Default is deny.
func (e *Engine) Evaluate(ctx Context) bool {
	for _, rule := range e.rules {
		switch rule(ctx) {
		case Allow:
			return true
		case Deny:
			return false
		}
	}
	return false
}

// OwnerPolicy is the built-in "owner may always act on their own resource"
// rule: resource.owner_id == user.id => allow.
func OwnerPolicy(ctx Context) Decision {
	if ctx.Resource.OwnerID != "" && ctx.Resource.OwnerID == ctx.User.ID {
		return Allow
	}
	return Continue
}
