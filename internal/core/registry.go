package core

import (
	"maps"
	"slices"
	"strings"
	"sync"
)

// Page is the accumulated state of one slug during sourcing.
type Page struct {
	Slug       string
	Component  *Descriptor
	Wrapper    *Descriptor
	Data       map[string]any
	ModuleType string
}

// Registry collects registrations from concurrent requests. Each Apply call
// is atomic; there is no cross-call transaction.
type Registry struct {
	mu    sync.Mutex
	pages map[string]*Page
	order []string
}

func NewRegistry() *Registry {
	return &Registry{pages: make(map[string]*Page)}
}

func (r *Registry) page(slug string) *Page {
	p, ok := r.pages[slug]
	if !ok {
		p = &Page{Slug: slug}
		r.pages[slug] = p
		r.order = append(r.order, slug)
	}
	return p
}

func (r *Registry) ApplyPage(reg PageRegistration) {
	reg = reg.Normalize()

	r.mu.Lock()
	defer r.mu.Unlock()

	p := r.page(reg.Slug)
	if reg.Component != nil {
		c := *reg.Component
		p.Component = &c
	}
	if reg.Wrapper != nil {
		w := *reg.Wrapper
		p.Wrapper = &w
	}
	if reg.Data != nil {
		p.Data = maps.Clone(reg.Data)
	}
	if reg.ModuleType != "" {
		p.ModuleType = reg.ModuleType
	}
}

func (r *Registry) ApplyCreatePage(c CreatePage) {
	c = c.Normalize()
	component := Source(c.Module)
	r.ApplyPage(PageRegistration{
		Slug:       c.Slug,
		Component:  &component,
		Data:       c.Data,
		ModuleType: c.ModuleType,
	})
}

// ApplyData shallow merges data onto the slug.
func (r *Registry) ApplyData(d DataRegistration) {
	d = d.Normalize()

	r.mu.Lock()
	defer r.mu.Unlock()

	p := r.page(d.Slug)
	if len(d.Data) == 0 {
		return
	}
	if p.Data == nil {
		p.Data = make(map[string]any, len(d.Data))
	}
	maps.Copy(p.Data, d.Data)
}

func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.pages)
}

// Finalize returns the pages that have a component, sorted by slug, and the
// slugs that only ever received data.
func (r *Registry) Finalize() (pages []Page, orphans []string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, slug := range r.order {
		p := r.pages[slug]
		if p.Component == nil {
			orphans = append(orphans, slug)
			continue
		}
		cp := *p
		cp.Data = maps.Clone(p.Data)
		pages = append(pages, cp)
	}

	slices.SortFunc(pages, func(a, b Page) int {
		return strings.Compare(a.Slug, b.Slug)
	})
	slices.Sort(orphans)
	return pages, orphans
}
