package core

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
)

// PageRegistration declares one output document backed by a component
// descriptor. A nil Component or Wrapper leaves the previously registered
// value for the slug unchanged.
type PageRegistration struct {
	Slug       string         `json:"slug"`
	Component  *Descriptor    `json:"component,omitempty"`
	Wrapper    *Descriptor    `json:"wrapper,omitempty"`
	Data       map[string]any `json:"data,omitempty"`
	ModuleType string         `json:"moduleType,omitempty"`
}

// CreatePage registers a page from fully formed inline module source.
type CreatePage struct {
	Module     string         `json:"module"`
	Slug       string         `json:"slug"`
	Data       map[string]any `json:"data,omitempty"`
	ModuleType string         `json:"moduleType,omitempty"`
}

// DataRegistration merges data onto a slug without touching its component.
type DataRegistration struct {
	Slug string         `json:"slug"`
	Data map[string]any `json:"data,omitempty"`
}

type pageRegistrationWire struct {
	Slug       string          `json:"slug"`
	Component  json.RawMessage `json:"component"`
	Wrapper    json.RawMessage `json:"wrapper"`
	Data       map[string]any  `json:"data"`
	ModuleType string          `json:"moduleType"`
}

// UnmarshalJSON keeps an explicit null component or wrapper as NoModule
// instead of collapsing it into an absent field.
func (p *PageRegistration) UnmarshalJSON(data []byte) error {
	var wire pageRegistrationWire
	if err := json.Unmarshal(data, &wire); err != nil {
		return err
	}

	reg := PageRegistration{
		Slug:       wire.Slug,
		Data:       wire.Data,
		ModuleType: wire.ModuleType,
	}

	var err error
	if reg.Component, err = decodeOptionalDescriptor(wire.Component); err != nil {
		return fmt.Errorf("component for slug %q: %w", wire.Slug, err)
	}
	if reg.Wrapper, err = decodeOptionalDescriptor(wire.Wrapper); err != nil {
		return fmt.Errorf("wrapper for slug %q: %w", wire.Slug, err)
	}

	*p = reg
	return nil
}

func decodeOptionalDescriptor(raw json.RawMessage) (*Descriptor, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	var d Descriptor
	if bytes.Equal(bytes.TrimSpace(raw), []byte("null")) {
		d = NoModule()
	} else if err := json.Unmarshal(raw, &d); err != nil {
		return nil, err
	}
	return &d, nil
}

// Normalize applies the canonical slug and drops empty data.
func (p PageRegistration) Normalize() PageRegistration {
	p.Slug = NormalizeSlug(p.Slug)
	p.Data = normalizeData(p.Data)
	return p
}

func (c CreatePage) Normalize() CreatePage {
	c.Slug = NormalizeSlug(c.Slug)
	c.Data = normalizeData(c.Data)
	return c
}

func (d DataRegistration) Normalize() DataRegistration {
	d.Slug = NormalizeSlug(d.Slug)
	d.Data = normalizeData(d.Data)
	return d
}

func normalizeData(data map[string]any) map[string]any {
	if len(data) == 0 {
		return nil
	}
	return data
}

// NormalizeSlug ensures a leading slash.
func NormalizeSlug(slug string) string {
	if !strings.HasPrefix(slug, "/") {
		return "/" + slug
	}
	return slug
}

// SlugRelativePath maps a slug to a slash separated path without extension.
// "/" and any slug ending in "/" map to an index file.
func SlugRelativePath(slug string) string {
	rel := strings.TrimPrefix(NormalizeSlug(slug), "/")
	if rel == "" || strings.HasSuffix(rel, "/") {
		rel += "index"
	}
	return rel
}
