package templates

import (
	"bytes"
	"context"
	"html/template"
	"sync"

	"github.com/spf13/afero"

	"github.com/reedcms/reed/epc"
	"github.com/reedcms/reed/reederr"
)

// Renderer looks templates up via EPC, parses and caches the compiled
// template (keyed by the resolved file path; a file edited in place keeps
// its path, so its compiled template stays cached until InvalidateTemplate
// drops it), and executes them against a Context plus its Bag.
//
// html/template is used, not a third-party engine, specifically for its
// contextual auto-escaping: the content firewall (§4.6) assumes the final
// render step can't be tricked into emitting unescaped markup.
type Renderer struct {
	fs       afero.Fs
	resolver *epc.Resolver
	catalog  *Catalog

	mu     sync.RWMutex
	parsed map[string]*template.Template // keyed by resolved file path
}

// NewRenderer builds a Renderer.
func NewRenderer(fs afero.Fs, resolver *epc.Resolver, catalog *Catalog) *Renderer {
	return &Renderer{fs: fs, resolver: resolver, catalog: catalog, parsed: map[string]*template.Template{}}
}

// Render resolves templateName via EPC against rc.Theme, compiles it
// (cached by resolved path), and executes it with rc's bag plus a
// translation helper bound to rc.Locale.
func (r *Renderer) Render(ctx context.Context, templateName string, rc *Context) ([]byte, error) {
	resolution, ok, err := r.resolver.Resolve(ctx, rc.Theme, epc.KindTemplates, templateName)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, reederr.TemplateNotFound("templates", templateName)
	}

	tmpl, err := r.compiled(resolution.FilePath)
	if err != nil {
		return nil, err
	}

	// Clone before binding the locale-specific "t" function: the cached
	// template is shared across concurrent renders in every locale, so the
	// per-request translation binding must not mutate the shared copy.
	bound, err := tmpl.Clone()
	if err != nil {
		return nil, reederr.RenderError("clone %s: %v", templateName, err)
	}
	bound = bound.Funcs(template.FuncMap{
		"t": func(key string) string { return r.catalog.Resolve(rc.Locale, key) },
	})

	var buf bytes.Buffer
	data := map[string]interface{}{
		"Context": rc,
		"Bag":     rc.Bag,
	}
	if err := bound.Execute(&buf, data); err != nil {
		return nil, reederr.RenderError("execute %s: %v", templateName, err)
	}
	return buf.Bytes(), nil
}

// compiled parses and caches filePath, keyed by path alone: the "t"
// translation function is a placeholder at parse time (it must exist for
// parsing to succeed) and is rebound per locale in Render via Clone+Funcs.
func (r *Renderer) compiled(filePath string) (*template.Template, error) {
	r.mu.RLock()
	tmpl, ok := r.parsed[filePath]
	r.mu.RUnlock()
	if ok {
		return tmpl, nil
	}

	source, err := afero.ReadFile(r.fs, filePath)
	if err != nil {
		return nil, reederr.IOError("read template %s: %v", filePath, err)
	}

	tmpl, err = template.New(filePath).Funcs(template.FuncMap{
		"t": func(string) string { return "" },
	}).Parse(string(source))
	if err != nil {
		return nil, reederr.RenderError("parse %s: %v", filePath, err)
	}

	r.mu.Lock()
	r.parsed[filePath] = tmpl
	r.mu.Unlock()
	return tmpl, nil
}

// InvalidateTemplate drops a compiled template from the cache. The EPC file
// watcher does not call it.
func (r *Renderer) InvalidateTemplate(filePath string) {
	r.mu.Lock()
	delete(r.parsed, filePath)
	r.mu.Unlock()
}
