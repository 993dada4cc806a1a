package epc

import (
	"context"
	"path"
	"strings"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/spf13/afero"
	"golang.org/x/sync/singleflight"

	"github.com/reedcms/reed/hotstore"
	"github.com/reedcms/reed/reederr"
)

// Kind names one of the four asset categories EPC resolves.
type Kind string

const (
	KindTemplates Kind = "templates"
	KindAssets    Kind = "assets"
	KindLayouts   Kind = "layouts"
	KindPartials  Kind = "partials"
)

// Resolution is a successful lookup result: the resolved file path and the
// theme in the chain that provided it.
type Resolution struct {
	FilePath    string
	SourceTheme string
}

// Resolver walks theme chains against a filesystem, memoising hits
// in-process (golang-lru) and in the hot store, with concurrent misses for
// the same key coalesced via singleflight.
type Resolver struct {
	fs        afero.Fs
	themesDir string
	registry  *ThemeRegistry
	hot       *hotstore.Store
	memo      *lru.Cache[string, Resolution]
	group     singleflight.Group
}

// Config configures a Resolver.
type Config struct {
	Fs         afero.Fs
	ThemesDir  string
	Registry   *ThemeRegistry
	Hot        *hotstore.Store
	MemoSize   int // in-process LRU entries; default 4096
}

// New builds a Resolver.
func New(cfg Config) (*Resolver, error) {
	size := cfg.MemoSize
	if size <= 0 {
		size = 4096
	}
	cache, err := lru.New[string, Resolution](size)
	if err != nil {
		return nil, reederr.InvalidConfig("epc memo cache: %v", err)
	}
	return &Resolver{
		fs:        cfg.Fs,
		themesDir: cfg.ThemesDir,
		registry:  cfg.Registry,
		hot:       cfg.Hot,
		memo:      cache,
	}, nil
}

func normalise(requestPath string) (string, error) {
	if requestPath == "" {
		return "", reederr.InvalidPath(requestPath)
	}
	if strings.Contains(requestPath, "..") || strings.ContainsAny(requestPath, `\`) || path.IsAbs(requestPath) {
		return "", reederr.InvalidPath(requestPath)
	}
	return path.Clean(requestPath), nil
}

// memoKey mirrors the hot-store key shape "epc:<theme>:<kind>:<path>" (§4.3).
func memoKey(themeName string, kind Kind, requestPath string) string {
	return themeName + ":" + string(kind) + ":" + requestPath
}

// Resolve returns the first file the theme chain of themeName provides for
// (kind, requestPath), or ok=false if none does.
func (r *Resolver) Resolve(ctx context.Context, themeName string, kind Kind, requestPath string) (Resolution, bool, error) {
	clean, err := normalise(requestPath)
	if err != nil {
		return Resolution{}, false, err
	}

	key := memoKey(themeName, kind, clean)

	if cached, ok := r.memo.Get(key); ok {
		return cached, true, nil
	}

	if r.hot != nil {
		var cached Resolution
		found, err := r.hot.GetJSON(ctx, hotstore.ClassEPC, &cached, key)
		if err == nil && found {
			r.memo.Add(key, cached)
			return cached, true, nil
		}
	}

	result, err, _ := r.group.Do(key, func() (interface{}, error) {
		resolution, found := r.walk(themeName, kind, clean)
		return resolutionOrMiss{resolution, found}, nil
	})
	if err != nil {
		return Resolution{}, false, err
	}

	rm := result.(resolutionOrMiss)
	if !rm.found {
		return Resolution{}, false, nil
	}

	r.memo.Add(key, rm.resolution)
	if r.hot != nil {
		r.hot.SetJSON(ctx, hotstore.ClassEPC, rm.resolution, key)
	}
	return rm.resolution, true, nil
}

type resolutionOrMiss struct {
	resolution Resolution
	found      bool
}

func (r *Resolver) walk(themeName string, kind Kind, requestPath string) (Resolution, bool) {
	chain := BuildChain(r.registry, themeName, "")
	for _, theme := range chain {
		candidate := path.Join(r.themesDir, theme, string(kind), requestPath)
		if exists, _ := afero.Exists(r.fs, candidate); exists {
			return Resolution{FilePath: candidate, SourceTheme: theme}, true
		}
	}
	return Resolution{}, false
}

// InvalidateTheme purges the whole in-process memo (every theme, every
// kind) and drops theme's memoised resolutions from the hot store. Used by
// the file watcher on a
// write/remove/rename event under that theme's directory.
func (r *Resolver) InvalidateTheme(ctx context.Context, theme string) {
	r.memo.Purge()
	if r.hot != nil {
		r.hot.InvalidatePrefix(ctx, hotstore.ClassEPC, theme)
	}
}
