// Package pluginhost loads, sandboxes, and invokes plugins that extend the
// core through hooks, events, content types, and template functions. Each
// plugin runs Lua source under a dedicated gopher-lua VM with enforced
// memory, stack, and wall-clock caps, and only the capability-scoped Go API
// it was granted.
package pluginhost

import "github.com/reedcms/reed/graph"

// Capability names a scoped API surface a plugin may call into.
type Capability string

const (
	CapContent Capability = "content"
	CapStorage Capability = "storage"
	CapCache   Capability = "cache"
	CapHTTP    Capability = "http"
	CapEvents  Capability = "events"
	CapHooks   Capability = "hooks"
	CapLogger  Capability = "logger"
	CapConfig  Capability = "config"
)

// Dependency names another plugin this one requires to initialize first.
type Dependency struct {
	ID       string
	Version  string
	Optional bool
}

// Metadata describes a plugin: identity, ordering, and what it is allowed
// to touch.
type Metadata struct {
	ID           string
	Name         string
	Version      string
	Author       string
	Priority     int // ascending: lower priority value initializes first
	Dependencies []Dependency
	Capabilities []Capability
	Hooks        []string // hook names this plugin handles, e.g. "before_render"
	ConfigSchema map[string]interface{}
}

// Key implements graph.Node: a plugin's identity for dependency ordering.
func (m Metadata) Key() string { return m.ID }

// DependsOn implements graph.Node: non-optional dependencies must resolve
// before this plugin initializes; optional ones are hints, not constraints.
func (m Metadata) DependsOn() []string {
	var deps []string
	for _, d := range m.Dependencies {
		if !d.Optional {
			deps = append(deps, d.ID)
		}
	}
	return deps
}

func (m Metadata) hasCapability(c Capability) bool {
	for _, got := range m.Capabilities {
		if got == c {
			return true
		}
	}
	return false
}

var _ graph.Node = Metadata{}

// LifecycleState is a plugin instance's position in initialize → activate →
// deactivate → shutdown.
type LifecycleState string

const (
	StateLoaded      LifecycleState = "loaded"
	StateInitialized LifecycleState = "initialized"
	StateActive      LifecycleState = "active"
	StateInactive    LifecycleState = "inactive"
	StateFailed      LifecycleState = "failed"
	StateShutdown    LifecycleState = "shutdown"
)

// Instance is one loaded plugin: its metadata, Lua source, and current
// lifecycle state.
type Instance struct {
	Metadata Metadata
	Source   string `json:"-"`

	State   LifecycleState
	LastErr string

	// Disabled reflects an operator's persisted enable/disable decision
	// (durable.PluginRegistryRecord.Enabled == false). A disabled plugin is
	// loaded for introspection but never initialized or activated.
	Disabled bool
}
