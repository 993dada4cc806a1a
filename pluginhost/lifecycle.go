package pluginhost

import (
	"context"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/reedcms/reed/logging"
	"github.com/reedcms/reed/reederr"
)

// entryPoint names the Lua global functions the lifecycle calls at each
// stage, if the plugin source defines them. A plugin need not define all
// four; a missing one is simply skipped.
const (
	entryInitialize = "initialize"
	entryActivate   = "activate"
	entryDeactivate = "deactivate"
	entryShutdown   = "shutdown"
)

// Lifecycle drives every loaded plugin through initialize → activate →
// (deactivate) → shutdown, in dependency-then-priority order, and tracks
// each plugin's current state for introspection.
type Lifecycle struct {
	registry *Registry
	sandbox  Sandbox
	api      API
	logger   *logging.ContextLogger
}

// NewLifecycle builds a Lifecycle over registry, running each stage call
// under sandbox with api as the granted capability surface.
func NewLifecycle(registry *Registry, sandbox Sandbox, api API, logger *logging.ContextLogger) *Lifecycle {
	return &Lifecycle{registry: registry, sandbox: sandbox, api: api, logger: logger}
}

// InitializeAll runs initialize then activate for every loaded plugin, in
// InitOrder. A plugin whose initialize or activate call fails is marked
// StateFailed and skipped for activate, but does not stop the remaining
// plugins from initializing.
func (lc *Lifecycle) InitializeAll(ctx context.Context) error {
	ordered, err := lc.registry.InitOrder()
	if err != nil {
		return err
	}

	for _, inst := range ordered {
		if _, err := lc.sandbox.Run(ctx, inst.Metadata.ID, inst, lc.api, entryInitialize); err != nil {
			inst.State = StateFailed
			inst.LastErr = err.Error()
			if lc.logger != nil {
				lc.logger.WithField("plugin", inst.Metadata.ID).WithError(err).Warn("plugin initialize failed")
			}
			continue
		}
		inst.State = StateInitialized

		if _, err := lc.sandbox.Run(ctx, inst.Metadata.ID, inst, lc.api, entryActivate); err != nil {
			inst.State = StateFailed
			inst.LastErr = err.Error()
			if lc.logger != nil {
				lc.logger.WithField("plugin", inst.Metadata.ID).WithError(err).Warn("plugin activate failed")
			}
			continue
		}
		inst.State = StateActive
	}
	return nil
}

// Deactivate transitions a single active plugin to inactive.
func (lc *Lifecycle) Deactivate(ctx context.Context, id string) error {
	inst, ok := lc.registry.Get(id)
	if !ok {
		return reederr.PluginNotFound(id)
	}
	if _, err := lc.sandbox.Run(ctx, id, inst, lc.api, entryDeactivate); err != nil {
		return err
	}
	inst.State = StateInactive
	return nil
}

// ShutdownAll runs shutdown for every active or inactive plugin, in reverse
// of InitOrder so dependents shut down before their dependencies.
func (lc *Lifecycle) ShutdownAll(ctx context.Context) {
	ordered, err := lc.registry.InitOrder()
	if err != nil {
		return
	}
	for i := len(ordered) - 1; i >= 0; i-- {
		inst := ordered[i]
		if inst.State != StateActive && inst.State != StateInactive {
			continue
		}
		if _, err := lc.sandbox.Run(ctx, inst.Metadata.ID, inst, lc.api, entryShutdown); err != nil && lc.logger != nil {
			lc.logger.WithField("plugin", inst.Metadata.ID).WithError(err).Warn("plugin shutdown failed")
		}
		inst.State = StateShutdown
	}
}

// RegisterRoutes exposes plugin state for operational introspection.
func (lc *Lifecycle) RegisterRoutes(g *echo.Group) {
	g.GET("/plugins", lc.handleList)
	g.GET("/plugins/:id", lc.handleGet)
}

func (lc *Lifecycle) handleList(c echo.Context) error {
	all := lc.registry.All()
	out := make([]*Instance, 0, len(all))
	for _, inst := range all {
		out = append(out, inst)
	}
	return c.JSON(http.StatusOK, out)
}

func (lc *Lifecycle) handleGet(c echo.Context) error {
	id := c.Param("id")
	inst, ok := lc.registry.Get(id)
	if !ok {
		return c.JSON(http.StatusNotFound, map[string]string{"error": "plugin not found"})
	}
	return c.JSON(http.StatusOK, inst)
}
