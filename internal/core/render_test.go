package core

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/gkampitakis/go-snaps/snaps"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func staticComponent(html string, head Head) Component {
	return ComponentFunc(func(_ context.Context, props Props) (Fragment, error) {
		return Fragment{HTML: html, Head: head}, nil
	})
}

func layoutComponent() Component {
	return ComponentFunc(func(_ context.Context, props Props) (Fragment, error) {
		return Fragment{
			HTML: "<main>" + props.Children + "</main>",
			Head: Head{Title: "Site", HTMLAttrs: map[string]string{"lang": "en"}},
		}, nil
	})
}

func TestRender_DataPathOmittedWhenEmpty(t *testing.T) {
	base := RenderContext{
		Component:            staticComponent("<h1>hi</h1>", Head{}),
		BrowserComponentPath: "/src/pages/index.js",
		BrowserDataPath:      "/index.json",
	}

	withData := base
	withData.Data = map[string]any{"a": 1}

	for i := 0; i < 2; i++ {
		doc, err := Render(context.Background(), withData)
		require.NoError(t, err)
		assert.Equal(t, "/index.json", doc.Bootstrap.DataPath)
		assert.Contains(t, doc.HTML, `window.dataPath = "/index.json";`)

		empty, err := Render(context.Background(), base)
		require.NoError(t, err)
		assert.Empty(t, empty.Bootstrap.DataPath)
		assert.NotContains(t, empty.HTML, "window.dataPath =")
	}
}

func TestRender_IdentityWrapperWhenAbsent(t *testing.T) {
	doc, err := Render(context.Background(), RenderContext{
		Component:              staticComponent("<p>body</p>", Head{}),
		BrowserComponentPath:   "/src/pages/about.js",
		BrowserPageWrapperPath: "/src/page-wrapper.js",
	})
	require.NoError(t, err)

	assert.Contains(t, doc.HTML, `<div id="toast-page-section"><p>body</p></div>`)
	assert.Empty(t, doc.Bootstrap.WrapperComponentPath)
	assert.NotContains(t, doc.HTML, "window.wrapperComponentPath =")
}

func TestRender_WrapperReceivesChildrenAndData(t *testing.T) {
	var wrapperData map[string]any
	wrapper := ComponentFunc(func(_ context.Context, props Props) (Fragment, error) {
		wrapperData = props.Data
		return Fragment{HTML: "<section>" + props.Children + "</section>"}, nil
	})

	doc, err := Render(context.Background(), RenderContext{
		Component:              staticComponent("<p>x</p>", Head{}),
		PageWrapper:            wrapper,
		Data:                   map[string]any{"k": "v"},
		BrowserComponentPath:   `src\pages\x.js`,
		BrowserPageWrapperPath: "src/page-wrapper.js",
		BrowserDataPath:        "x.json",
	})
	require.NoError(t, err)

	assert.Equal(t, "v", wrapperData["k"])
	assert.Contains(t, doc.HTML, "<section><p>x</p></section>")
	assert.Equal(t, "/src/pages/x.js", doc.Bootstrap.ComponentPath)
	assert.Equal(t, "/src/page-wrapper.js", doc.Bootstrap.WrapperComponentPath)
	assert.Equal(t, "/x.json", doc.Bootstrap.DataPath)
}

func TestRender_HeadMerge(t *testing.T) {
	doc, err := Render(context.Background(), RenderContext{
		Component: staticComponent("<p>x</p>", Head{
			Title:     "Page",
			Tags:      []string{`<meta name="description" content="d" />`},
			BodyAttrs: map[string]string{"class": "page"},
		}),
		PageWrapper:            layoutComponent(),
		BrowserComponentPath:   "/src/pages/x.js",
		BrowserPageWrapperPath: "/src/page-wrapper.js",
	})
	require.NoError(t, err)

	assert.Contains(t, doc.HTML, "<title>Page</title>")
	assert.NotContains(t, doc.HTML, "<title>Site</title>")
	assert.Contains(t, doc.HTML, `<html lang="en">`)
	assert.Contains(t, doc.HTML, `<body class="page">`)
	assert.Contains(t, doc.HTML, `<meta name="description" content="d" />`)
}

func TestRender_ComponentErrors(t *testing.T) {
	_, err := Render(context.Background(), RenderContext{BrowserComponentPath: "/a.js"})
	assert.ErrorIs(t, err, ErrComponentImport)

	boom := errors.New("boom")
	_, err = Render(context.Background(), RenderContext{
		Component: ComponentFunc(func(context.Context, Props) (Fragment, error) {
			return Fragment{}, boom
		}),
		BrowserComponentPath: "/a.js",
	})
	assert.ErrorIs(t, err, boom)
}

func TestRenderDocument_EscapesScriptPaths(t *testing.T) {
	html, err := RenderDocument(Document{
		Bootstrap: Bootstrap{ComponentPath: "/a</script>.js"},
	})
	require.NoError(t, err)
	assert.False(t, strings.Contains(html, "/a</script>.js"))
	assert.Contains(t, html, `import("/web_modules/preact.js")`)
}

func TestRenderDocument_ImportMap(t *testing.T) {
	html, err := RenderDocument(Document{
		Head:      Head{Title: "Home"},
		Bootstrap: Bootstrap{ComponentPath: "/src/pages/index.js"},
		ImportMap: map[string]string{
			"preact":    "/web_modules/preact.js",
			"evil</sc>": "/x.js",
		},
	})
	require.NoError(t, err)

	script := `<script type="importmap">{"imports":{"evil\u003c/sc\u003e":"/x.js","preact":"/web_modules/preact.js"}}</script>`
	assert.Contains(t, html, script)
	assert.Less(t, strings.Index(html, script), strings.Index(html, "<title>Home</title>"), "import map must precede module scripts")

	plain, err := RenderDocument(Document{Bootstrap: Bootstrap{ComponentPath: "/a.js"}})
	require.NoError(t, err)
	assert.NotContains(t, plain, "importmap")
}

func TestRenderDocument_Snapshot(t *testing.T) {
	html, err := RenderDocument(Document{
		Body: "<main><h1>Hello</h1></main>",
		Head: Head{Title: "Hello", HTMLAttrs: map[string]string{"lang": "en"}},
		Bootstrap: Bootstrap{
			ComponentPath:        "/src/pages/index.js",
			WrapperComponentPath: "/src/page-wrapper.js",
			DataPath:             "/index.json",
		},
		Preload: true,
	})
	require.NoError(t, err)
	snaps.MatchSnapshot(t, html)
}
