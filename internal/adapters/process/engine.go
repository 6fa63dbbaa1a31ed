package process

import (
	"context"
	"fmt"
	"path"
	"path/filepath"
	"strings"
	"sync"

	esbuild "github.com/evanw/esbuild/pkg/api"

	"github.com/3-lines-studio/toast/internal/adapters/compile"
	"github.com/3-lines-studio/toast/internal/core"
	"github.com/3-lines-studio/toast/internal/modules"
)

type serverRenderer interface {
	Render(ctx context.Context, req RenderRequest) (core.Fragment, error)
	Stop() error
}

// Engine compiles JS components for node and renders them through a lazily
// started Renderer.
type Engine struct {
	opts     Options
	compiler *compile.Compiler
	start    func(Options) (serverRenderer, error)

	mu       sync.Mutex
	renderer serverRenderer
}

func NewEngine(opts Options) *Engine {
	return &Engine{
		opts:     opts,
		compiler: &compile.Compiler{JSXFactory: "h", JSXFragment: "Fragment", Platform: esbuild.PlatformNode},
		start: func(o Options) (serverRenderer, error) {
			return NewRenderer(o)
		},
	}
}

func (e *Engine) Compile(_ context.Context, name string, source []byte) (core.Component, error) {
	code, err := e.compiler.TransformPage(name, source)
	if err != nil {
		return nil, err
	}

	stem := strings.TrimSuffix(filepath.ToSlash(name), path.Ext(name))
	file := fmt.Sprintf("%s-%s.mjs", stem, modules.ContentHash([]byte(code)))
	modulePath, err := WriteServerModule(filepath.Join(e.opts.SiteDir, TmpDir), filepath.FromSlash(file), code)
	if err != nil {
		return nil, err
	}

	return &jsComponent{engine: e, path: modulePath}, nil
}

func (e *Engine) ensureRenderer() (serverRenderer, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.renderer != nil {
		return e.renderer, nil
	}
	r, err := e.start(e.opts)
	if err != nil {
		return nil, err
	}
	e.renderer = r
	return r, nil
}

// Close stops the node process if one was started.
func (e *Engine) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.renderer == nil {
		return nil
	}
	err := e.renderer.Stop()
	e.renderer = nil
	return err
}

type jsComponent struct {
	engine *Engine
	path   string
}

func (c *jsComponent) Kind() string {
	return modules.ModuleTypeJS
}

func (c *jsComponent) Render(ctx context.Context, props core.Props) (core.Fragment, error) {
	r, err := c.engine.ensureRenderer()
	if err != nil {
		return core.Fragment{}, err
	}
	data := props.Data
	if data == nil {
		data = map[string]any{}
	}
	return r.Render(ctx, RenderRequest{Path: c.path, Props: data, Children: props.Children})
}
