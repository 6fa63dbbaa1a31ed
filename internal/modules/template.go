package modules

import (
	"bytes"
	"context"
	"fmt"
	"html/template"
	"os"
	"path/filepath"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/3-lines-studio/toast/internal/core"
)

// TemplateData is the dot value of an html/template component.
type TemplateData struct {
	Data     map[string]any
	Children template.HTML
}

// TemplateEngine compiles html/template components. Partials matched by
// the glob patterns are parsed into every component.
type TemplateEngine struct {
	siteDir  string
	partials []string
}

func NewTemplateEngine(siteDir string, partialGlobs ...string) *TemplateEngine {
	return &TemplateEngine{siteDir: siteDir, partials: partialGlobs}
}

// head funcs are placeholders so templates parse; each render binds real
// ones on a clone.
var baseFuncs = template.FuncMap{
	"title":    func(string) string { return "" },
	"head":     func(string) string { return "" },
	"htmlAttr": func(string, string) string { return "" },
	"bodyAttr": func(string, string) string { return "" },
	// safe marks trusted markup, such as rendered markdown bodies.
	"safe": func(v any) template.HTML {
		if v == nil {
			return ""
		}
		return template.HTML(fmt.Sprint(v))
	},
}

func (e *TemplateEngine) Compile(_ context.Context, name string, source []byte) (core.Component, error) {
	tmpl := template.New(name).Funcs(baseFuncs)

	for _, pattern := range e.partials {
		matches, err := doublestar.FilepathGlob(filepath.Join(e.siteDir, pattern))
		if err != nil {
			return nil, fmt.Errorf("invalid partials glob %s: %w", pattern, err)
		}
		for _, match := range matches {
			content, err := os.ReadFile(match)
			if err != nil {
				return nil, fmt.Errorf("failed to read partial %s: %w", match, err)
			}
			rel, _ := filepath.Rel(e.siteDir, match)
			if _, err := tmpl.New(filepath.ToSlash(rel)).Parse(string(content)); err != nil {
				return nil, fmt.Errorf("failed to parse partial %s: %w", rel, err)
			}
		}
	}

	if _, err := tmpl.Parse(string(source)); err != nil {
		return nil, fmt.Errorf("failed to parse template %s: %w", name, err)
	}

	return &templateComponent{name: name, base: tmpl}, nil
}

type templateComponent struct {
	name string
	base *template.Template
}

func (c *templateComponent) Kind() string {
	return ModuleTypeHTML
}

func (c *templateComponent) Render(_ context.Context, props core.Props) (core.Fragment, error) {
	var head core.Head

	tmpl, err := c.base.Clone()
	if err != nil {
		return core.Fragment{}, fmt.Errorf("failed to clone template %s: %w", c.name, err)
	}
	tmpl.Funcs(template.FuncMap{
		"title": func(s string) string {
			head.Title = s
			return ""
		},
		"head": func(tag string) string {
			head.Tags = append(head.Tags, tag)
			return ""
		},
		"htmlAttr": func(k, v string) string {
			if head.HTMLAttrs == nil {
				head.HTMLAttrs = map[string]string{}
			}
			head.HTMLAttrs[k] = v
			return ""
		},
		"bodyAttr": func(k, v string) string {
			if head.BodyAttrs == nil {
				head.BodyAttrs = map[string]string{}
			}
			head.BodyAttrs[k] = v
			return ""
		},
	})

	var buf bytes.Buffer
	data := TemplateData{Data: props.Data, Children: template.HTML(props.Children)}
	if err := tmpl.ExecuteTemplate(&buf, c.name, data); err != nil {
		return core.Fragment{}, fmt.Errorf("failed to execute template %s: %w", c.name, err)
	}

	return core.Fragment{HTML: buf.String(), Head: head}, nil
}
