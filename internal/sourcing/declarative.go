package sourcing

import (
	"bytes"
	"context"
	"fmt"
	"maps"
	"os"
	"path"
	"path/filepath"
	"strings"
	"text/template"

	"github.com/adrg/frontmatter"
	"github.com/bmatcuk/doublestar/v4"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/parser"
	"github.com/yuin/goldmark/renderer/html"
	"gopkg.in/yaml.v3"

	"github.com/3-lines-studio/toast/internal/core"
)

var markdown = goldmark.New(
	goldmark.WithExtensions(extension.GFM),
	goldmark.WithParserOptions(parser.WithAutoHeadingID()),
	goldmark.WithRendererOptions(html.WithUnsafe()),
)

type declarativeModule struct {
	Pages       []map[string]any `yaml:"pages"`
	Data        []map[string]any `yaml:"data"`
	Collections []collection     `yaml:"collections"`
}

// collection registers one page per file matched by Glob.
type collection struct {
	Glob       string         `yaml:"glob"`
	Slug       string         `yaml:"slug"`
	Component  map[string]any `yaml:"component"`
	Wrapper    map[string]any `yaml:"wrapper"`
	Data       map[string]any `yaml:"data"`
	ModuleType string         `yaml:"moduleType"`
}

// CollectionEntry is the data available to a collection slug template.
type CollectionEntry struct {
	Path string
	Dir  string
	Stem string
	Data map[string]any
}

// LoadDeclarative parses a YAML or JSON sourcing module. Collection globs
// are resolved relative to the module's directory.
func LoadDeclarative(modulePath string) (SourceFunc, error) {
	content, err := os.ReadFile(modulePath)
	if err != nil {
		return nil, fmt.Errorf("failed to read source module: %w", err)
	}

	var mod declarativeModule
	if err := yaml.Unmarshal(content, &mod); err != nil {
		return nil, fmt.Errorf("failed to parse source module %s: %w", modulePath, err)
	}

	root := filepath.Dir(modulePath)
	return func(ctx context.Context, actions Actions) error {
		return mod.run(ctx, root, actions)
	}, nil
}

func (m declarativeModule) run(ctx context.Context, root string, actions Actions) error {
	for i, page := range m.Pages {
		if err := registerPage(ctx, actions, page); err != nil {
			return fmt.Errorf("pages[%d]: %w", i, err)
		}
	}

	for i, c := range m.Collections {
		if err := c.register(ctx, root, actions); err != nil {
			return fmt.Errorf("collections[%d] (%s): %w", i, c.Glob, err)
		}
	}

	for i, entry := range m.Data {
		slug, _ := entry["slug"].(string)
		data, _ := normalizeYAML(entry["data"]).(map[string]any)
		if _, err := actions.SetData(ctx, core.DataRegistration{Slug: slug, Data: data}); err != nil {
			return fmt.Errorf("data[%d]: %w", i, err)
		}
	}

	return nil
}

func registerPage(ctx context.Context, actions Actions, page map[string]any) error {
	page, _ = normalizeYAML(page).(map[string]any)

	if module, ok := page["module"].(string); ok {
		slug, _ := page["slug"].(string)
		data, _ := page["data"].(map[string]any)
		moduleType, _ := page["moduleType"].(string)
		_, err := actions.CreatePage(ctx, core.CreatePage{Module: module, Slug: slug, Data: data, ModuleType: moduleType})
		return err
	}

	args := maps.Clone(page)
	slug := args["slug"]
	delete(args, "slug")
	_, err := actions.SetDataForSlug(ctx, slug, args)
	return err
}

func (c collection) register(ctx context.Context, root string, actions Actions) error {
	if c.Glob == "" {
		return fmt.Errorf("collection requires a glob")
	}
	slugTmpl, err := template.New("slug").Option("missingkey=error").Parse(c.Slug)
	if err != nil {
		return fmt.Errorf("invalid slug template: %w", err)
	}

	matches, err := doublestar.Glob(os.DirFS(root), filepath.ToSlash(c.Glob))
	if err != nil {
		return fmt.Errorf("invalid glob: %w", err)
	}

	for _, match := range matches {
		entry, body, err := readEntry(root, match)
		if err != nil {
			return err
		}

		var slug bytes.Buffer
		if err := slugTmpl.Execute(&slug, entry); err != nil {
			return fmt.Errorf("slug for %s: %w", match, err)
		}

		data := make(map[string]any, len(c.Data)+len(entry.Data)+2)
		maps.Copy(data, normalizeYAML(c.Data).(map[string]any))
		maps.Copy(data, entry.Data)
		data["body"] = body
		data["path"] = entry.Path

		args := map[string]any{"data": data}
		if c.Component != nil {
			args["component"] = normalizeYAML(c.Component)
		}
		if c.Wrapper != nil {
			args["wrapper"] = normalizeYAML(c.Wrapper)
		}
		if c.ModuleType != "" {
			args["moduleType"] = c.ModuleType
		}

		if _, err := actions.SetDataForSlug(ctx, slug.String(), args); err != nil {
			return err
		}
	}
	return nil
}

func readEntry(root, rel string) (CollectionEntry, string, error) {
	content, err := os.ReadFile(filepath.Join(root, filepath.FromSlash(rel)))
	if err != nil {
		return CollectionEntry{}, "", fmt.Errorf("failed to read %s: %w", rel, err)
	}

	matter := map[string]any{}
	rest, err := frontmatter.Parse(bytes.NewReader(content), &matter)
	if err != nil {
		return CollectionEntry{}, "", fmt.Errorf("failed to parse frontmatter of %s: %w", rel, err)
	}

	body := string(rest)
	if strings.EqualFold(path.Ext(rel), ".md") {
		var buf bytes.Buffer
		if err := markdown.Convert(rest, &buf); err != nil {
			return CollectionEntry{}, "", fmt.Errorf("failed to render markdown %s: %w", rel, err)
		}
		body = buf.String()
	}

	entry := CollectionEntry{
		Path: rel,
		Dir:  path.Dir(rel),
		Stem: strings.TrimSuffix(path.Base(rel), path.Ext(rel)),
		Data: normalizeYAML(matter).(map[string]any),
	}
	return entry, body, nil
}

// normalizeYAML converts map[any]any (as produced by some YAML decoders)
// into map[string]any so values stay JSON encodable.
func normalizeYAML(v any) any {
	switch t := v.(type) {
	case nil:
		return map[string]any(nil)
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, val := range t {
			out[k] = normalizeValue(val)
		}
		return out
	case map[any]any:
		out := make(map[string]any, len(t))
		for k, val := range t {
			out[fmt.Sprint(k)] = normalizeValue(val)
		}
		return out
	default:
		return v
	}
}

func normalizeValue(v any) any {
	switch t := v.(type) {
	case map[string]any, map[any]any:
		return normalizeYAML(t)
	case []any:
		out := make([]any, len(t))
		for i, item := range t {
			out[i] = normalizeValue(item)
		}
		return out
	default:
		return v
	}
}
