package templates

import (
	"encoding/csv"
	"io"
	"sync"
	"sync/atomic"

	"github.com/spf13/afero"

	"github.com/reedcms/reed/logging"
	"github.com/reedcms/reed/reederr"
)

// translationLayer is one precedence tier of key->value translations for a
// single locale.
type translationLayer map[string]string

// localeEntry holds, per locale, three of the four precedence layers (§4.5):
// snippet-local, theme, global. Fallback locale and bare-key return are
// handled by the resolver, not stored per locale.
type localeEntry struct {
	snippetLocal translationLayer
	theme        translationLayer
	global       translationLayer
}

// Catalog is the published set of per-locale translation layers,
// copy-on-write like the other registries.
type Catalog struct {
	snapshot     atomic.Pointer[map[string]localeEntry]
	fallback     string
	missLogged   sync.Map // (locale,key) -> struct{}, dedup set for "missing key" log lines
	logger       *logging.ContextLogger
}

// NewCatalog builds an empty Catalog. fallback is the locale consulted
// after all layers of the requested locale miss.
func NewCatalog(fallback string, logger *logging.ContextLogger) *Catalog {
	c := &Catalog{fallback: fallback, logger: logger}
	empty := map[string]localeEntry{}
	c.snapshot.Store(&empty)
	return c
}

func (c *Catalog) entryFor(locale string) localeEntry {
	e, ok := (*c.snapshot.Load())[locale]
	if !ok {
		return localeEntry{}
	}
	return e
}

func (c *Catalog) publish(locale string, mutate func(*localeEntry)) {
	old := *c.snapshot.Load()
	next := make(map[string]localeEntry, len(old)+1)
	for k, v := range old {
		next[k] = v
	}
	entry := next[locale]
	mutate(&entry)
	next[locale] = entry
	c.snapshot.Store(&next)
}

// LoadGlobal reads translations.<locale>.csv (key, value) into the global
// layer for locale.
func (c *Catalog) LoadGlobal(fs afero.Fs, locale, path string) error {
	rows, err := readTranslationCSV(fs, path)
	if err != nil {
		return err
	}
	c.publish(locale, func(e *localeEntry) { e.global = rows })
	return nil
}

// LoadTheme merges rows into the theme layer for locale, additively (a
// theme chain may contribute rows from multiple themes; the first write
// wins per key, mirroring EPC's "first theme in chain wins" semantics).
func (c *Catalog) LoadTheme(fs afero.Fs, locale, path string) error {
	rows, err := readTranslationCSV(fs, path)
	if err != nil {
		return err
	}
	c.publish(locale, func(e *localeEntry) {
		if e.theme == nil {
			e.theme = translationLayer{}
		}
		for k, v := range rows {
			if _, exists := e.theme[k]; !exists {
				e.theme[k] = v
			}
		}
	})
	return nil
}

// LoadSnippetLocal merges rows into the snippet-local layer for locale.
func (c *Catalog) LoadSnippetLocal(fs afero.Fs, locale, path string) error {
	rows, err := readTranslationCSV(fs, path)
	if err != nil {
		return err
	}
	c.publish(locale, func(e *localeEntry) {
		if e.snippetLocal == nil {
			e.snippetLocal = translationLayer{}
		}
		for k, v := range rows {
			e.snippetLocal[k] = v
		}
	})
	return nil
}

// PublishGlobal replaces locale's global layer with rows directly, without
// reading a file. Used by csvrecovery, which parses translations.<locale>.csv
// itself as part of a single all-or-nothing rebuild pass.
func (c *Catalog) PublishGlobal(locale string, rows map[string]string) {
	c.publish(locale, func(e *localeEntry) { e.global = translationLayer(rows) })
}

func readTranslationCSV(fs afero.Fs, path string) (translationLayer, error) {
	f, err := fs.Open(path)
	if err != nil {
		return nil, reederr.IOError("open %s: %v", path, err)
	}
	defer f.Close()

	reader := csv.NewReader(f)
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err != nil {
		return nil, reederr.IOError("read header of %s: %v", path, err)
	}
	col := map[string]int{}
	for i, name := range header {
		col[name] = i
	}
	if _, ok := col["key"]; !ok {
		return nil, reederr.IOError("%s missing column \"key\"", path)
	}
	if _, ok := col["value"]; !ok {
		return nil, reederr.IOError("%s missing column \"value\"", path)
	}

	rows := translationLayer{}
	for {
		row, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, reederr.IOError("read row of %s: %v", path, err)
		}
		rows[row[col["key"]]] = row[col["value"]]
	}
	return rows, nil
}

// Resolve looks up key for locale across the four precedence layers
// (snippet-local, theme, global, fallback locale), returning key itself on
// a total miss. A total miss is logged once per process lifetime per
// (locale, key), via the sync.Map-backed dedup set.
func (c *Catalog) Resolve(locale, key string) string {
	if v, ok := c.lookupLocale(locale, key); ok {
		return v
	}
	if c.fallback != "" && c.fallback != locale {
		if v, ok := c.lookupLocale(c.fallback, key); ok {
			return v
		}
	}

	dedupKey := locale + "\x00" + key
	if _, already := c.missLogged.LoadOrStore(dedupKey, struct{}{}); !already && c.logger != nil {
		c.logger.WithField("locale", locale).WithField("key", key).Warn("templates: missing translation key")
	}
	return key
}

func (c *Catalog) lookupLocale(locale, key string) (string, bool) {
	entry := c.entryFor(locale)
	if v, ok := entry.snippetLocal[key]; ok {
		return v, true
	}
	if v, ok := entry.theme[key]; ok {
		return v, true
	}
	if v, ok := entry.global[key]; ok {
		return v, true
	}
	return "", false
}
