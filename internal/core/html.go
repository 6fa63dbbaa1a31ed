package core

import (
	"encoding/json"
	"fmt"
	"html"
	"slices"
	"strings"
)

const (
	DefaultRuntimeModule = "/web_modules/preact.js"
	MountID              = "toast-page-section"
)

// Document is everything RenderDocument needs to produce a page.
type Document struct {
	Body      string
	Head      Head
	Bootstrap Bootstrap
	Preload   bool
	// ImportMap is written as a browser import map so bare specifiers in
	// vendored modules resolve to the same URLs as compiled pages.
	ImportMap map[string]string
}

const bootstrapScript = `async function renderPage() {
  const [PageModule, PageWrapperModule, pageData, { render, h }] = await Promise.all([
    import(window.componentPath),
    window.wrapperComponentPath ? import(window.wrapperComponentPath) : undefined,
    window.dataPath ? fetch(window.dataPath).then((response) => response.json()) : {},
    import(%s),
  ]);
  const Page = PageModule.default;
  const PageWrapper = PageWrapperModule ? PageWrapperModule.default : ({ children }) => children;
  render(h(PageWrapper, pageData, h(Page, pageData)), document.getElementById(%s));
}

renderPage();
`

func RenderDocument(doc Document) (string, error) {
	if doc.Bootstrap.ComponentPath == "" {
		return "", fmt.Errorf("missing component path")
	}

	runtime := doc.Bootstrap.RuntimeModule
	if runtime == "" {
		runtime = DefaultRuntimeModule
	}

	globals, err := bootstrapGlobals(doc.Bootstrap)
	if err != nil {
		return "", err
	}

	var head strings.Builder
	head.WriteString(`<meta charset="UTF-8" /><meta name="viewport" content="width=device-width, initial-scale=1.0" />`)
	if len(doc.ImportMap) > 0 {
		importMap, err := importMapScript(doc.ImportMap)
		if err != nil {
			return "", err
		}
		head.WriteString(importMap)
	}
	if doc.Head.Title != "" {
		fmt.Fprintf(&head, "<title>%s</title>", html.EscapeString(doc.Head.Title))
	}
	for _, tag := range doc.Head.Tags {
		head.WriteString(tag)
	}
	if doc.Preload {
		for _, p := range []string{doc.Bootstrap.ComponentPath, doc.Bootstrap.WrapperComponentPath, runtime} {
			if p != "" {
				fmt.Fprintf(&head, `<link rel="modulepreload" href="%s" />`, html.EscapeString(p))
			}
		}
	}

	runtimeLit, err := scriptLiteral(runtime)
	if err != nil {
		return "", err
	}
	mountLit, err := scriptLiteral(MountID)
	if err != nil {
		return "", err
	}

	out := fmt.Sprintf(`<!doctype html>
<html%s>
  <head>
    %s
    <script>
%s    </script>
  </head>
  <body%s>
    <div id="%s">%s</div>
    <script type="module">
%s    </script>
  </body>
</html>
`, renderAttrs(doc.Head.HTMLAttrs), head.String(), globals, renderAttrs(doc.Head.BodyAttrs),
		MountID, doc.Body, fmt.Sprintf(bootstrapScript, runtimeLit, mountLit))

	return out, nil
}

func bootstrapGlobals(b Bootstrap) (string, error) {
	var sb strings.Builder
	entries := []struct {
		name  string
		value string
	}{
		{"componentPath", b.ComponentPath},
		{"wrapperComponentPath", b.WrapperComponentPath},
		{"dataPath", b.DataPath},
	}
	for _, e := range entries {
		if e.value == "" {
			continue
		}
		lit, err := scriptLiteral(e.value)
		if err != nil {
			return "", err
		}
		fmt.Fprintf(&sb, "window.%s = %s;\n", e.name, lit)
	}
	return sb.String(), nil
}

func importMapScript(imports map[string]string) (string, error) {
	// encoding/json sorts map keys, so output is stable.
	b, err := json.Marshal(struct {
		Imports map[string]string `json:"imports"`
	}{imports})
	if err != nil {
		return "", err
	}
	return `<script type="importmap">` + strings.ReplaceAll(string(b), "</", "<\\/") + `</script>`, nil
}

// scriptLiteral encodes s as a JS string literal that cannot close the
// surrounding script element.
func scriptLiteral(s string) (string, error) {
	b, err := json.Marshal(s)
	if err != nil {
		return "", err
	}
	return strings.ReplaceAll(string(b), "</", "<\\/"), nil
}

func renderAttrs(attrs map[string]string) string {
	if len(attrs) == 0 {
		return ""
	}
	keys := make([]string, 0, len(attrs))
	for k := range attrs {
		keys = append(keys, k)
	}
	slices.Sort(keys)

	var sb strings.Builder
	for _, k := range keys {
		fmt.Fprintf(&sb, ` %s="%s"`, html.EscapeString(k), html.EscapeString(attrs[k]))
	}
	return sb.String()
}
