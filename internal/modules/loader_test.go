package modules

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/3-lines-studio/toast/internal/core"
)

func writeSiteFile(t *testing.T, dir, rel, content string) {
	t.Helper()
	path := filepath.Join(dir, rel)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func newTestLoader(dir string) *Loader {
	l := NewLoader(dir)
	l.Register(ModuleTypeHTML, NewTemplateEngine(dir, "src/partials/*.html"), ".html", ".tmpl")
	l.Register(ModuleTypeMarkdown, NewMarkdownEngine(), ".md")
	return l
}

func TestLoader_TemplateComponent(t *testing.T) {
	dir := t.TempDir()
	writeSiteFile(t, dir, "src/partials/nav.html", `{{define "nav"}}<nav>{{.}}</nav>{{end}}`)
	writeSiteFile(t, dir, "src/pages/about.html",
		`{{title .Data.title}}{{bodyAttr "class" "about"}}{{template "nav" "home"}}<h1>{{.Data.title}}</h1><div>{{.Children}}</div>`)

	l := newTestLoader(dir)
	c, err := l.Load(context.Background(), core.Filepath("src/pages/about.html"), "")
	require.NoError(t, err)
	assert.True(t, IsStatic(c))

	frag, err := c.Render(context.Background(), core.Props{
		Data:     map[string]any{"title": "About <us>"},
		Children: "<p>kid</p>",
	})
	require.NoError(t, err)
	assert.Equal(t, `<nav>home</nav><h1>About &lt;us&gt;</h1><div><p>kid</p></div>`, frag.HTML)
	assert.Equal(t, "About <us>", frag.Head.Title)
	assert.Equal(t, "about", frag.Head.BodyAttrs["class"])

	again, err := l.Load(context.Background(), core.Filepath("src/pages/about.html"), "")
	require.NoError(t, err)
	assert.Same(t, c, again)
}

func TestLoader_TemplateConcurrentRenders(t *testing.T) {
	dir := t.TempDir()
	writeSiteFile(t, dir, "page.html", `{{title .Data.t}}<p>{{.Data.t}}</p>`)

	c, err := newTestLoader(dir).Load(context.Background(), core.Filepath("page.html"), "")
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := range 20 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			title := string(rune('a' + i))
			frag, err := c.Render(context.Background(), core.Props{Data: map[string]any{"t": title}})
			assert.NoError(t, err)
			assert.Equal(t, title, frag.Head.Title)
		}()
	}
	wg.Wait()
}

func TestLoader_Markdown(t *testing.T) {
	dir := t.TempDir()
	writeSiteFile(t, dir, "content/post.md", "---\ntitle: Post\ndescription: A \"post\"\n---\n# Heading\n")

	c, err := newTestLoader(dir).Load(context.Background(), core.Filepath("content/post.md"), "")
	require.NoError(t, err)

	frag, err := c.Render(context.Background(), core.Props{})
	require.NoError(t, err)
	assert.Contains(t, frag.HTML, `<h1 id="heading">Heading</h1>`)
	assert.Equal(t, "Post", frag.Head.Title)
	assert.Equal(t, []string{`<meta name="description" content="A &#34;post&#34;" />`}, frag.Head.Tags)
}

func TestLoader_InlineAndErrors(t *testing.T) {
	dir := t.TempDir()
	l := newTestLoader(dir)
	ctx := context.Background()

	c, err := l.Load(ctx, core.Source(`<b>{{.Data.x}}</b>`), ModuleTypeHTML)
	require.NoError(t, err)
	frag, err := c.Render(ctx, core.Props{Data: map[string]any{"x": 1}})
	require.NoError(t, err)
	assert.Equal(t, "<b>1</b>", frag.HTML)

	none, err := l.Load(ctx, core.NoModule(), "")
	require.NoError(t, err)
	assert.Nil(t, none)

	_, err = l.Load(ctx, core.Filepath("missing.html"), "")
	assert.ErrorIs(t, err, core.ErrComponentImport)

	_, err = l.Load(ctx, core.Filepath("page.vue"), "")
	assert.ErrorIs(t, err, core.ErrComponentImport)

	_, err = l.Load(ctx, core.Source("x"), "js")
	assert.ErrorIs(t, err, core.ErrComponentImport)

	_, err = l.Load(ctx, core.Source("{{"), ModuleTypeHTML)
	assert.ErrorIs(t, err, core.ErrComponentImport)

	assert.Equal(t, ModuleTypeHTML, l.Kind(core.Filepath("a.tmpl"), ""))
	assert.Equal(t, ModuleTypeJS, l.Kind(core.Source("x"), ""))
}

func TestStaticModules(t *testing.T) {
	page, err := StaticPageModule("/web_modules/preact.js", `<h1>"hi"</h1>`)
	require.NoError(t, err)
	assert.Contains(t, page, `import { h } from "/web_modules/preact.js";`)
	assert.Contains(t, page, `export default function StaticPage()`)

	wrapper, err := StaticWrapperModule("/web_modules/preact.js", "<main><p>x</p></main>", "<p>x</p>")
	require.NoError(t, err)
	assert.Contains(t, wrapper, `const before = "<main>";`)
	assert.Contains(t, wrapper, `const after = "</main>";`)
}
