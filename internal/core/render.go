package core

import (
	"context"
	"errors"
	"fmt"
	"maps"
)

// Props is the render input of a component: the page data and, for
// wrappers, the already rendered markup of the wrapped tree.
type Props struct {
	Data     map[string]any
	Children string
}

// Head is out-of-band document metadata produced while rendering.
type Head struct {
	Title     string
	Tags      []string
	HTMLAttrs map[string]string
	BodyAttrs map[string]string
}

// Merge layers other on top of h. A non-empty title in other wins and
// attributes in other override those in h.
func (h Head) Merge(other Head) Head {
	out := Head{
		Title:     h.Title,
		Tags:      append(append([]string(nil), h.Tags...), other.Tags...),
		HTMLAttrs: mergeAttrs(h.HTMLAttrs, other.HTMLAttrs),
		BodyAttrs: mergeAttrs(h.BodyAttrs, other.BodyAttrs),
	}
	if other.Title != "" {
		out.Title = other.Title
	}
	return out
}

func mergeAttrs(a, b map[string]string) map[string]string {
	if len(a) == 0 && len(b) == 0 {
		return nil
	}
	out := make(map[string]string, len(a)+len(b))
	maps.Copy(out, a)
	maps.Copy(out, b)
	return out
}

// Fragment is the server rendering of one component.
type Fragment struct {
	HTML string
	Head Head
}

// Component renders to a string. Implementations must be safe for
// concurrent use across pages.
type Component interface {
	Render(ctx context.Context, props Props) (Fragment, error)
}

type ComponentFunc func(ctx context.Context, props Props) (Fragment, error)

func (f ComponentFunc) Render(ctx context.Context, props Props) (Fragment, error) {
	return f(ctx, props)
}

// IdentityWrapper renders its children unchanged.
var IdentityWrapper Component = ComponentFunc(func(_ context.Context, props Props) (Fragment, error) {
	return Fragment{HTML: props.Children}, nil
})

type RenderContext struct {
	Component              Component
	PageWrapper            Component
	Data                   map[string]any
	BrowserComponentPath   string
	BrowserPageWrapperPath string
	BrowserDataPath        string
	RuntimeModule          string
	Preload                bool
	ImportMap              map[string]string
}

// Bootstrap is what the client script needs to re-render the page.
type Bootstrap struct {
	ComponentPath        string
	WrapperComponentPath string
	DataPath             string
	RuntimeModule        string
}

type RenderedDocument struct {
	HTML      string
	Bootstrap Bootstrap
}

// Render renders wrapper(data, component(data)) and splices the result into
// the HTML document. It holds no state and may run concurrently.
func Render(ctx context.Context, rc RenderContext) (RenderedDocument, error) {
	if rc.Component == nil {
		return RenderedDocument{}, fmt.Errorf("%w: no component for %s", ErrComponentImport, rc.BrowserComponentPath)
	}
	if rc.BrowserComponentPath == "" {
		return RenderedDocument{}, errors.New("missing browser component path")
	}

	wrapper := rc.PageWrapper
	wrapperPath := ""
	if wrapper == nil {
		wrapper = IdentityWrapper
	} else {
		wrapperPath = BrowserPath(rc.BrowserPageWrapperPath)
	}

	page, err := rc.Component.Render(ctx, Props{Data: rc.Data})
	if err != nil {
		return RenderedDocument{}, fmt.Errorf("failed to render component %s: %w", rc.BrowserComponentPath, err)
	}

	outer, err := wrapper.Render(ctx, Props{Data: rc.Data, Children: page.HTML})
	if err != nil {
		return RenderedDocument{}, fmt.Errorf("failed to render wrapper %s: %w", rc.BrowserPageWrapperPath, err)
	}

	bootstrap := Bootstrap{
		ComponentPath:        BrowserPath(rc.BrowserComponentPath),
		WrapperComponentPath: wrapperPath,
		RuntimeModule:        rc.RuntimeModule,
	}
	if len(rc.Data) > 0 && rc.BrowserDataPath != "" {
		bootstrap.DataPath = BrowserPath(rc.BrowserDataPath)
	}
	if bootstrap.RuntimeModule == "" {
		bootstrap.RuntimeModule = DefaultRuntimeModule
	}

	html, err := RenderDocument(Document{
		Body:      outer.HTML,
		Head:      outer.Head.Merge(page.Head),
		Bootstrap: bootstrap,
		Preload:   rc.Preload,
		ImportMap: rc.ImportMap,
	})
	if err != nil {
		return RenderedDocument{}, err
	}

	return RenderedDocument{HTML: html, Bootstrap: bootstrap}, nil
}
