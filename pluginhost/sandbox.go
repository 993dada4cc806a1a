package pluginhost

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/reedcms/reed/reederr"
	lua "github.com/yuin/gopher-lua"
)

// Sandbox limits what a single plugin invocation's Lua VM can do: how much
// memory and stack it may use, how long it may run, and which capability-
// scoped Go functions it can call.
type Sandbox struct {
	MemoryLimitBytes int
	StackLimit       int
	Timeout          time.Duration
}

// DefaultSandbox returns the spec's default caps: 64 MiB memory, 1 MiB
// stack, 30s wall clock.
func DefaultSandbox() Sandbox {
	return Sandbox{
		MemoryLimitBytes: 64 * 1024 * 1024,
		StackLimit:       1024 * 1024,
		Timeout:          30 * time.Second,
	}
}

// API is the capability-scoped surface a plugin's Lua code can call into.
// Each field is nil unless the plugin's metadata grants the matching
// Capability; registerGlobals skips nil fields instead of registering a
// function that always fails, so an ungranted capability is simply absent
// from the Lua global namespace rather than present-but-denied.
type API struct {
	Content          func(L *lua.LState) int
	Storage          func(L *lua.LState) int
	Cache            func(L *lua.LState) int
	HTTP             func(L *lua.LState) int
	Events           func(L *lua.LState) int
	Hooks            func(L *lua.LState) int
	Logger           func(L *lua.LState) int
	Config           func(L *lua.LState) int
}

// capabilityAPI pairs a Capability with the Go closure that backs it.
type capabilityAPI struct {
	cap  Capability
	name string
	fn   func(L *lua.LState) int
}

func (a API) entries() []capabilityAPI {
	return []capabilityAPI{
		{CapContent, "reed_content", a.Content},
		{CapStorage, "reed_storage", a.Storage},
		{CapCache, "reed_cache", a.Cache},
		{CapHTTP, "reed_http", a.HTTP},
		{CapEvents, "reed_events", a.Events},
		{CapHooks, "reed_hooks", a.Hooks},
		{CapLogger, "reed_logger", a.Logger},
		{CapConfig, "reed_config", a.Config},
	}
}

// newState builds a gopher-lua VM with only base/table/string/math opened.
// io, os, and net are never registered, so a plugin has no filesystem or
// network access beyond whatever capability-scoped Go functions it is
// granted explicitly.
func newState(sb Sandbox) *lua.LState {
	L := lua.NewState(lua.Options{
		SkipOpenLibs:        true,
		CallStackSize:       sb.StackLimit / 64, // approximate frames-per-byte budget
		RegistryMaxSize:     sb.MemoryLimitBytes / 64,
		IncludeGoStackTrace: false,
	})
	for _, pair := range []struct {
		name string
		fn   lua.LGFunction
	}{
		{lua.BaseLibName, lua.OpenBase},
		{lua.TabLibName, lua.OpenTable},
		{lua.StringLibName, lua.OpenString},
		{lua.MathLibName, lua.OpenMath},
	} {
		L.Push(L.NewFunction(pair.fn))
		L.Push(lua.LString(pair.name))
		L.Call(1, 0)
	}
	return L
}

// Run executes source under a fresh, single-use VM scoped to this call, with
// api's granted functions registered as globals and the sandbox's caps
// enforced. The VM is discarded afterward; plugins hold no state across
// invocations except through the Storage capability.
func (sb Sandbox) Run(ctx context.Context, pluginID string, inst *Instance, api API, fnName string, args ...lua.LValue) (lua.LValue, error) {
	L := newState(sb)
	defer L.Close()

	for _, e := range api.entries() {
		if e.fn == nil || !inst.Metadata.hasCapability(e.cap) {
			continue
		}
		L.SetGlobal(e.name, L.NewFunction(e.fn))
	}

	runCtx, cancel := context.WithTimeout(ctx, sb.Timeout)
	defer cancel()
	L.SetContext(runCtx)

	if err := L.DoString(inst.Source); err != nil {
		return nil, classifyLuaErr(pluginID, err)
	}

	fnVal := L.GetGlobal(fnName)
	if fnVal == lua.LNil {
		return lua.LNil, nil
	}
	if fnVal.Type() != lua.LTFunction {
		return nil, reederr.PluginAPIMismatch(pluginID)
	}

	L.Push(fnVal)
	for _, a := range args {
		L.Push(a)
	}
	if err := L.PCall(len(args), 1, nil); err != nil {
		return nil, classifyLuaErr(pluginID, err)
	}

	ret := L.Get(-1)
	L.Pop(1)
	return ret, nil
}

func classifyLuaErr(pluginID string, err error) error {
	if err == context.DeadlineExceeded {
		return reederr.PluginTimeout(pluginID)
	}
	if apiErr, ok := err.(*lua.ApiError); ok {
		if apiErr.Cause == context.DeadlineExceeded {
			return reederr.PluginTimeout(pluginID)
		}
		if isResourceExhausted(apiErr.Error()) {
			return reederr.PluginResourceExceeded(pluginID, "memory")
		}
		return fmt.Errorf("plugin %s: %w", pluginID, apiErr)
	}
	if isResourceExhausted(err.Error()) {
		return reederr.PluginResourceExceeded(pluginID, "memory")
	}
	return fmt.Errorf("plugin %s: %w", pluginID, err)
}

// isResourceExhausted matches gopher-lua's own panic/error text for stack
// and registry overflow, since it has no typed error for either.
func isResourceExhausted(msg string) bool {
	return strings.Contains(msg, "stack overflow") || strings.Contains(msg, "registry overflow") || strings.Contains(msg, "too many")
}
