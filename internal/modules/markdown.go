package modules

import (
	"bytes"
	"context"
	"fmt"
	"html"

	"github.com/adrg/frontmatter"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/parser"
	gmhtml "github.com/yuin/goldmark/renderer/html"

	"github.com/3-lines-studio/toast/internal/core"
)

type markdownMatter struct {
	Title       string `yaml:"title"`
	Description string `yaml:"description"`
}

// MarkdownEngine renders markdown documents. The output does not depend on
// page data; frontmatter title and description populate the head.
type MarkdownEngine struct {
	md goldmark.Markdown
}

func NewMarkdownEngine() *MarkdownEngine {
	return &MarkdownEngine{
		md: goldmark.New(
			goldmark.WithExtensions(extension.GFM),
			goldmark.WithParserOptions(parser.WithAutoHeadingID()),
			goldmark.WithRendererOptions(gmhtml.WithUnsafe()),
		),
	}
}

func (e *MarkdownEngine) Compile(_ context.Context, name string, source []byte) (core.Component, error) {
	var matter markdownMatter
	rest, err := frontmatter.Parse(bytes.NewReader(source), &matter)
	if err != nil {
		return nil, fmt.Errorf("failed to parse frontmatter of %s: %w", name, err)
	}

	var buf bytes.Buffer
	if err := e.md.Convert(rest, &buf); err != nil {
		return nil, fmt.Errorf("failed to render markdown %s: %w", name, err)
	}

	head := core.Head{Title: matter.Title}
	if matter.Description != "" {
		head.Tags = []string{fmt.Sprintf(`<meta name="description" content="%s" />`, html.EscapeString(matter.Description))}
	}

	return &markdownComponent{fragment: core.Fragment{HTML: buf.String(), Head: head}}, nil
}

type markdownComponent struct {
	fragment core.Fragment
}

func (c *markdownComponent) Kind() string {
	return ModuleTypeMarkdown
}

func (c *markdownComponent) Render(context.Context, core.Props) (core.Fragment, error) {
	return c.fragment, nil
}
