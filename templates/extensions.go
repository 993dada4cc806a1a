package templates

import "context"

// Extension writes additional keys into a Context's Bag before rendering.
// Core extensions (navigation, breadcrumbs, site config, CSRF token,
// device info) and plugin-registered extensions share this interface.
type Extension interface {
	Name() string
	Extend(ctx context.Context, rc *Context) error
}

// ExtensionFunc adapts a plain function to Extension.
type ExtensionFunc struct {
	FuncName string
	Fn       func(ctx context.Context, rc *Context) error
}

func (e ExtensionFunc) Name() string { return e.FuncName }
func (e ExtensionFunc) Extend(ctx context.Context, rc *Context) error {
	return e.Fn(ctx, rc)
}

// Pipeline runs a fixed, ordered set of extensions over a Context,
// deterministic given (extensions, context bag) per §4.4.
type Pipeline struct {
	extensions []Extension
}

// NewPipeline builds a Pipeline from extensions, run in the given order.
func NewPipeline(extensions ...Extension) *Pipeline {
	return &Pipeline{extensions: extensions}
}

// Run executes every extension in order, stopping at the first error.
func (p *Pipeline) Run(ctx context.Context, rc *Context) error {
	if rc.Bag == nil {
		rc.Bag = map[string]interface{}{}
	}
	for _, ext := range p.extensions {
		if err := ext.Extend(ctx, rc); err != nil {
			return err
		}
	}
	return nil
}

// DeviceInfoExtension exposes rc.Device, already classified from the
// User-Agent by the caller (device classification itself lives in the request
// pipeline, which owns User-Agent parsing); this extension only copies it
// into the rendering bag under "device".
func DeviceInfoExtension() Extension {
	return ExtensionFunc{FuncName: "device_info", Fn: func(_ context.Context, rc *Context) error {
		rc.Bag["device"] = rc.Device
		return nil
	}}
}

// CSRFTokenExtension writes a pre-issued CSRF token into the bag for
// authenticated requests only.
func CSRFTokenExtension(token func(rc *Context) string) Extension {
	return ExtensionFunc{FuncName: "csrf_token", Fn: func(_ context.Context, rc *Context) error {
		if !rc.Authenticated() {
			return nil
		}
		rc.Bag["csrf_token"] = token(rc)
		return nil
	}}
}

// SiteConfigExtension writes a static site-config map into the bag.
func SiteConfigExtension(config map[string]interface{}) Extension {
	return ExtensionFunc{FuncName: "site_config", Fn: func(_ context.Context, rc *Context) error {
		rc.Bag["site"] = config
		return nil
	}}
}

// NavigationSource supplies the site's navigation tree, typically backed by
// the UCG (children_of the navigation root).
type NavigationSource func(ctx context.Context) (interface{}, error)

// NavigationExtension writes the navigation tree into the bag.
func NavigationExtension(source NavigationSource) Extension {
	return ExtensionFunc{FuncName: "navigation", Fn: func(ctx context.Context, rc *Context) error {
		nav, err := source(ctx)
		if err != nil {
			return err
		}
		rc.Bag["navigation"] = nav
		return nil
	}}
}

// BreadcrumbSource resolves the ancestor chain for the current entity.
type BreadcrumbSource func(ctx context.Context, rc *Context) (interface{}, error)

// BreadcrumbExtension writes the breadcrumb trail into the bag.
func BreadcrumbExtension(source BreadcrumbSource) Extension {
	return ExtensionFunc{FuncName: "breadcrumbs", Fn: func(ctx context.Context, rc *Context) error {
		crumbs, err := source(ctx, rc)
		if err != nil {
			return err
		}
		rc.Bag["breadcrumbs"] = crumbs
		return nil
	}}
}
