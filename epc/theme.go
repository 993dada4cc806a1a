// Package epc implements the Explicit Path Chain resolver: deterministic
// theme-inheritance file lookup with hot-store memoisation and fsnotify
// invalidation.
package epc

import (
	"encoding/csv"
	"io"
	"strconv"
	"sync/atomic"

	"github.com/spf13/afero"

	"github.com/reedcms/reed/reederr"
)

// Theme is one row of the theme registry: a name, an optional parent it
// inherits from, an optional context overlay, and whether it is active.
type Theme struct {
	Name         string
	Parent       string
	ContextType  string
	ContextValue string
	Active       bool
}

// BaseThemeName terminates every chain.
const BaseThemeName = "base"

// ThemeRegistry holds the published set of themes, copy-on-write like
// snippet.Registry.
type ThemeRegistry struct {
	snapshot atomic.Pointer[map[string]Theme]
}

// NewThemeRegistry returns an empty registry.
func NewThemeRegistry() *ThemeRegistry {
	r := &ThemeRegistry{}
	empty := map[string]Theme{}
	r.snapshot.Store(&empty)
	return r
}

// Themes returns the currently published snapshot. Callers must not mutate
// the returned map.
func (r *ThemeRegistry) Themes() map[string]Theme {
	return *r.snapshot.Load()
}

// Get returns the theme named name, if registered.
func (r *ThemeRegistry) Get(name string) (Theme, bool) {
	t, ok := (*r.snapshot.Load())[name]
	return t, ok
}

// Active returns the name of the currently active theme, or "" if none is
// marked active.
func (r *ThemeRegistry) Active() string {
	for name, t := range *r.snapshot.Load() {
		if t.Active {
			return name
		}
	}
	return ""
}

// Register publishes a single theme via copy-on-write.
func (r *ThemeRegistry) Register(t Theme) {
	old := *r.snapshot.Load()
	next := make(map[string]Theme, len(old)+1)
	for k, v := range old {
		next[k] = v
	}
	next[t.Name] = t
	r.snapshot.Store(&next)
}

// ReplaceAll atomically swaps the entire registry, discarding every
// previously registered theme. Used by a CSV rebuild, which replaces the
// full theme set in one pass rather than registering incrementally.
func (r *ThemeRegistry) ReplaceAll(themes []Theme) {
	next := make(map[string]Theme, len(themes))
	for _, t := range themes {
		next[t.Name] = t
	}
	r.snapshot.Store(&next)
}

// Load reads themes.csv (name, parent, context_type, context_value,
// active), replacing the entire registry in one atomic swap.
func (r *ThemeRegistry) Load(fs afero.Fs, path string) error {
	f, err := fs.Open(path)
	if err != nil {
		return reederr.IOError("open %s: %v", path, err)
	}
	defer f.Close()

	reader := csv.NewReader(f)
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err != nil {
		return reederr.IOError("read header of %s: %v", path, err)
	}
	col := make(map[string]int, len(header))
	for i, name := range header {
		col[name] = i
	}
	for _, want := range []string{"name", "parent", "context_type", "context_value", "active"} {
		if _, ok := col[want]; !ok {
			return reederr.IOError("%s missing column %q", path, want)
		}
	}

	next := map[string]Theme{}
	for {
		row, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return reederr.IOError("read row of %s: %v", path, err)
		}
		active, _ := strconv.ParseBool(row[col["active"]])
		t := Theme{
			Name:         row[col["name"]],
			Parent:       row[col["parent"]],
			ContextType:  row[col["context_type"]],
			ContextValue: row[col["context_value"]],
			Active:       active,
		}
		next[t.Name] = t
	}
	r.snapshot.Store(&next)
	return nil
}
