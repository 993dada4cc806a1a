package epc

import (
	"context"
	"os"
	"path/filepath"
	"strings"

	"github.com/fsnotify/fsnotify"

	"github.com/reedcms/reed/logging"
	"github.com/reedcms/reed/reederr"
)

// Watcher observes the themes directory tree and invalidates a Resolver's
// memo on any write, remove, rename, or create event, grounded on the fact
// that fsnotify and golang-lru/v2 are already indirect teacher dependencies
// (§4.3). afero's in-memory filesystem used by tests is not watched: the
// watcher only attaches to a real OS directory tree.
type Watcher struct {
	fsw      *fsnotify.Watcher
	resolver *Resolver
	themes   string
	logger   *logging.ContextLogger
	done     chan struct{}
}

// NewWatcher opens an OS filesystem watcher for themesDir. It registers no
// directories itself; callers add them with Add or AddRecursive.
func NewWatcher(themesDir string, resolver *Resolver, logger *logging.ContextLogger) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, reederr.IOError("create theme watcher: %v", err)
	}

	w := &Watcher{fsw: fsw, resolver: resolver, themes: themesDir, logger: logger, done: make(chan struct{})}
	return w, nil
}

// Add registers dir for events.
func (w *Watcher) Add(dir string) error {
	if err := w.fsw.Add(dir); err != nil {
		return reederr.IOError("watch %s: %v", dir, err)
	}
	return nil
}

// AddRecursive walks root and registers every directory it finds, since
// fsnotify only watches the directories it is explicitly given, not their
// descendants.
func (w *Watcher) AddRecursive(root string) error {
	err := filepath.Walk(root, func(p string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() {
			return w.fsw.Add(p)
		}
		return nil
	})
	if err != nil {
		return reederr.IOError("watch %s recursively: %v", root, err)
	}
	return nil
}

// Run consumes fsnotify events until ctx is cancelled, invalidating the
// resolver's memo for the theme the changed path belongs to.
func (w *Watcher) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-w.done:
			return
		case event, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			theme := w.themeOf(event.Name)
			if theme == "" {
				continue
			}
			w.resolver.InvalidateTheme(ctx, theme)
			if w.logger != nil {
				w.logger.WithField("theme", theme).WithField("op", event.Op.String()).Debug("epc: theme invalidated")
			}
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			if w.logger != nil {
				w.logger.WithError(err).Warn("epc: watcher error")
			}
		}
	}
}

// themeOf extracts the theme name from a path rooted at w.themes
// (<themes>/<theme>/<kind>/...).
func (w *Watcher) themeOf(eventPath string) string {
	rel, err := filepath.Rel(w.themes, eventPath)
	if err != nil {
		return ""
	}
	parts := strings.Split(rel, string(filepath.Separator))
	if len(parts) == 0 || parts[0] == "." || parts[0] == ".." {
		return ""
	}
	return parts[0]
}

// Close stops Run and releases the underlying OS watcher.
func (w *Watcher) Close() error {
	close(w.done)
	return w.fsw.Close()
}
