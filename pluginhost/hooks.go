package pluginhost

import (
	"context"
	"sort"

	lua "github.com/yuin/gopher-lua"
)

// Well-known hook names dispatched by the core at fixed points in the
// request/content lifecycle.
const (
	HookBeforeRender  = "before_render"
	HookAfterRender   = "after_render"
	HookBeforeSave    = "before_save"
	HookAfterSave     = "after_save"
	HookBeforeDelete  = "before_delete"
	HookAfterDelete   = "after_delete"
	HookValidateData  = "validate_data"
	HookTransformData = "transform_data"
	HookRouteMatch    = "route_match"
	HookAuthCheck     = "auth_check"
)

// Dispatcher invokes the plugins registered for a hook, in ascending
// priority order, each under its own sandboxed VM.
type Dispatcher struct {
	registry *Registry
	sandbox  Sandbox
	api      API
}

// NewDispatcher builds a Dispatcher over registry, running every hook
// invocation under sandbox with api as the granted capability surface.
func NewDispatcher(registry *Registry, sandbox Sandbox, api API) *Dispatcher {
	return &Dispatcher{registry: registry, sandbox: sandbox, api: api}
}

// handlersFor returns the active plugins that registered hookName, ordered
// by ascending priority.
func (d *Dispatcher) handlersFor(hookName string) []*Instance {
	all := d.registry.All()
	var handlers []*Instance
	for _, inst := range all {
		if inst.State != StateActive {
			continue
		}
		for _, h := range inst.Metadata.Hooks {
			if h == hookName {
				handlers = append(handlers, inst)
				break
			}
		}
	}
	sort.SliceStable(handlers, func(i, j int) bool {
		return handlers[i].Metadata.Priority < handlers[j].Metadata.Priority
	})
	return handlers
}

// Dispatch runs hookName across every registered handler in priority order,
// threading each handler's return value into the next as input (a
// transform-style pipeline). It stops and returns the error of the first
// handler that fails.
func (d *Dispatcher) Dispatch(ctx context.Context, hookName string, input lua.LValue) (lua.LValue, error) {
	current := input
	for _, inst := range d.handlersFor(hookName) {
		out, err := d.sandbox.Run(ctx, inst.Metadata.ID, inst, d.api, hookName, current)
		if err != nil {
			return nil, err
		}
		if out != nil && out != lua.LNil {
			current = out
		}
	}
	return current, nil
}
