package pluginhost

import (
	"encoding/json"
	"fmt"
	"path/filepath"
	"sort"
	"sync"
	"sync/atomic"

	"github.com/reedcms/reed/graph"
	"github.com/reedcms/reed/logging"
	"github.com/reedcms/reed/reederr"
	"github.com/spf13/afero"
)

// manifestFile is the metadata sidecar expected in every plugin directory.
// sourceFile is its Lua entry point. A plugin directory looks like:
//
//	plugins/
//	  my-plugin/
//	    plugin.json
//	    main.lua
const (
	manifestFile = "plugin.json"
	sourceFile   = "main.lua"
)

// PersistentStore is the subset of durable.GormDB the registry uses to
// remember an operator's enable/disable decision across restarts. Runtime
// lifecycle state (loaded/active/failed) is never persisted here — only
// whether a discovered plugin should be initialized at all. Defined in
// terms of primitive types, not durable.PluginRegistryRecord, so pluginhost
// carries no dependency on the storage layer.
type PersistentStore interface {
	UpsertPlugin(id, version, author string, priority int) error
	IsEnabled(id string) (enabled bool, known bool)
}

// manifest is the on-disk JSON shape of plugin.json.
type manifest struct {
	ID           string                 `json:"id"`
	Name         string                 `json:"name"`
	Version      string                 `json:"version"`
	Author       string                 `json:"author"`
	Priority     int                    `json:"priority"`
	Dependencies []Dependency           `json:"dependencies"`
	Capabilities []Capability           `json:"capabilities"`
	Hooks        []string               `json:"hooks"`
	ConfigSchema map[string]interface{} `json:"config_schema"`
}

// Registry holds the loaded set of plugin instances behind an atomic
// snapshot, following the copy-on-write discipline used by the snippet and
// theme registries: readers take a lock-free snapshot, Load swaps the whole
// set in one atomic pointer store.
type Registry struct {
	snapshot atomic.Pointer[map[string]*Instance]
	mu       sync.Mutex // serializes Load calls; readers never block
	logger   *logging.ContextLogger
	store    PersistentStore
}

// NewRegistry returns an empty Registry. store may be nil, in which case
// every discovered plugin is treated as enabled and nothing persists across
// restarts.
func NewRegistry(logger *logging.ContextLogger, store PersistentStore) *Registry {
	r := &Registry{logger: logger, store: store}
	empty := map[string]*Instance{}
	r.snapshot.Store(&empty)
	return r
}

// Get returns the named plugin instance, if loaded.
func (r *Registry) Get(id string) (*Instance, bool) {
	m := *r.snapshot.Load()
	inst, ok := m[id]
	return inst, ok
}

// All returns every loaded instance. Callers must not mutate the result.
func (r *Registry) All() map[string]*Instance {
	return *r.snapshot.Load()
}

// Load scans dir for plugin subdirectories, each holding a plugin.json
// manifest and a main.lua source file, and replaces the registry's entire
// contents atomically. Malformed manifests abort the load; nothing already
// loaded is touched until every plugin directory parses successfully.
func (r *Registry) Load(fs afero.Fs, dir string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	entries, err := afero.ReadDir(fs, dir)
	if err != nil {
		return reederr.IOError("read plugin dir %s: %v", dir, err)
	}

	next := make(map[string]*Instance, len(entries))
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		pluginDir := filepath.Join(dir, entry.Name())

		manifestPath := filepath.Join(pluginDir, manifestFile)
		raw, err := afero.ReadFile(fs, manifestPath)
		if err != nil {
			return reederr.IOError("read %s: %v", manifestPath, err)
		}
		var m manifest
		if err := json.Unmarshal(raw, &m); err != nil {
			return reederr.IOError("parse %s: %v", manifestPath, err)
		}
		if m.ID == "" {
			return reederr.IOError("%s: missing id", manifestPath)
		}

		sourcePath := filepath.Join(pluginDir, sourceFile)
		source, err := afero.ReadFile(fs, sourcePath)
		if err != nil {
			return reederr.IOError("read %s: %v", sourcePath, err)
		}

		if _, dup := next[m.ID]; dup {
			return reederr.IOError("%s: duplicate plugin id %q", manifestPath, m.ID)
		}

		inst := &Instance{
			Metadata: Metadata{
				ID:           m.ID,
				Name:         m.Name,
				Version:      m.Version,
				Author:       m.Author,
				Priority:     m.Priority,
				Dependencies: m.Dependencies,
				Capabilities: m.Capabilities,
				Hooks:        m.Hooks,
				ConfigSchema: m.ConfigSchema,
			},
			Source: string(source),
			State:  StateLoaded,
		}

		if r.store != nil {
			if err := r.store.UpsertPlugin(m.ID, m.Version, m.Author, m.Priority); err != nil && r.logger != nil {
				r.logger.WithField("plugin", m.ID).WithError(err).Warn("plugin registry persistence failed")
			}
			if enabled, known := r.store.IsEnabled(m.ID); known {
				inst.Disabled = !enabled
			}
		}

		next[m.ID] = inst
	}

	r.snapshot.Store(&next)
	if r.logger != nil {
		r.logger.WithField("count", len(next)).Info("plugin registry loaded")
	}
	return nil
}

// InitOrder returns loaded plugins ordered for initialization: dependency
// order first (via graph.TopologicalSort, which ignores unresolved/optional
// dependencies), then stable by ascending priority among plugins with no
// ordering constraint between them.
func (r *Registry) InitOrder() ([]*Instance, error) {
	m := r.All()

	nodes := make([]graph.Node, 0, len(m))
	byID := make(map[string]*Instance, len(m))
	ids := make([]string, 0, len(m))
	for id, inst := range m {
		if inst.Disabled {
			continue
		}
		nodes = append(nodes, inst.Metadata)
		byID[id] = inst
		ids = append(ids, id)
	}
	// Stable input order for TopologicalSort's tie-breaking, independent of
	// map iteration order.
	sort.Strings(ids)
	sorted := make([]graph.Node, 0, len(nodes))
	for _, id := range ids {
		sorted = append(sorted, byID[id].Metadata)
	}
	// Secondary ordering: ascending priority within whatever the dependency
	// graph leaves free. TopologicalSort is stable given input order, so
	// pre-sort by priority before feeding it in.
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].(Metadata).Priority < sorted[j].(Metadata).Priority
	})

	ordered, err := graph.TopologicalSort(sorted)
	if err != nil {
		return nil, fmt.Errorf("plugin dependency order: %w", err)
	}

	out := make([]*Instance, 0, len(ordered))
	for _, n := range ordered {
		out = append(out, byID[n.(Metadata).ID])
	}
	return out, nil
}
