// Package buildinfo reports the running binary's build and dependency
// manifest, for the /version endpoint and cli version command.
package buildinfo

import (
	"runtime/debug"
	"sort"
)

// Dependency is one entry from the build's module graph.
type Dependency struct {
	Path    string `json:"path"`
	Version string `json:"version"`
	Replace string `json:"replace,omitempty"`
}

// Info is the full build manifest.
type Info struct {
	GoVersion    string       `json:"goVersion"`
	Module       string       `json:"module"`
	Version      string       `json:"version"`
	Dependencies []Dependency `json:"dependencies"`
}

// Get extracts Info from the binary's embedded build manifest
// (runtime/debug.BuildInfo), sorted by dependency path for stable output.
func Get() *Info {
	raw, ok := debug.ReadBuildInfo()
	if !ok {
		return &Info{GoVersion: "unknown", Module: "unknown", Version: "unknown"}
	}

	info := &Info{
		GoVersion:    raw.GoVersion,
		Module:       raw.Path,
		Version:      raw.Main.Version,
		Dependencies: make([]Dependency, 0, len(raw.Deps)),
	}

	for _, dep := range raw.Deps {
		d := Dependency{Path: dep.Path, Version: dep.Version}
		if dep.Replace != nil {
			d.Replace = dep.Replace.Path + "@" + dep.Replace.Version
		}
		info.Dependencies = append(info.Dependencies, d)
	}

	sort.Slice(info.Dependencies, func(i, j int) bool {
		return info.Dependencies[i].Path < info.Dependencies[j].Path
	})

	return info
}

// ModuleVersion returns the resolved version of modulePath as it appears in
// the build manifest, or "" if it isn't a dependency of this build.
func ModuleVersion(modulePath string) string {
	raw, ok := debug.ReadBuildInfo()
	if !ok {
		return ""
	}
	if raw.Path == modulePath {
		if raw.Main.Version != "" && raw.Main.Version != "(devel)" {
			return raw.Main.Version
		}
		return "dev"
	}
	for _, dep := range raw.Deps {
		if dep.Path == modulePath {
			if dep.Replace != nil {
				return dep.Replace.Version + " (replaced)"
			}
			return dep.Version
		}
	}
	return ""
}
