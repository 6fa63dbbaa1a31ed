// Package modules resolves component descriptors to render-capable
// components. Engines are chosen by file extension for filepath
// descriptors and by module type for inline source.
package modules

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/3-lines-studio/toast/internal/core"
)

// Engine compiles module source into a component. name is the site relative
// path of the module or a synthetic name for inline source.
type Engine interface {
	Compile(ctx context.Context, name string, source []byte) (core.Component, error)
}

const (
	ModuleTypeJS       = "js"
	ModuleTypeHTML     = "html"
	ModuleTypeMarkdown = "markdown"
)

type Loader struct {
	siteDir     string
	byExt       map[string]Engine
	extType     map[string]string
	byType      map[string]Engine
	defaultType string

	mu    sync.Mutex
	cache map[string]core.Component
}

func NewLoader(siteDir string) *Loader {
	return &Loader{
		siteDir:     siteDir,
		byExt:       make(map[string]Engine),
		extType:     make(map[string]string),
		byType:      make(map[string]Engine),
		defaultType: ModuleTypeJS,
		cache:       make(map[string]core.Component),
	}
}

// Register binds engine to a module type and to the given file extensions.
func (l *Loader) Register(moduleType string, engine Engine, exts ...string) {
	l.byType[moduleType] = engine
	for _, ext := range exts {
		l.byExt[strings.ToLower(ext)] = engine
		l.extType[strings.ToLower(ext)] = moduleType
	}
}

func (l *Loader) SiteDir() string {
	return l.siteDir
}

// Kind reports the module type that will handle d.
func (l *Loader) Kind(d core.Descriptor, moduleType string) string {
	if d.Mode() == core.ModeFilepath {
		return l.extType[strings.ToLower(filepath.Ext(d.Value()))]
	}
	if moduleType == "" {
		return l.defaultType
	}
	return moduleType
}

// Load resolves d into a component. NoModule yields a nil component and no
// error. Failures wrap core.ErrComponentImport.
func (l *Loader) Load(ctx context.Context, d core.Descriptor, moduleType string) (core.Component, error) {
	switch d.Mode() {
	case core.ModeNoModule:
		return nil, nil
	case core.ModeFilepath:
		return l.loadFile(ctx, d.Value())
	case core.ModeSource:
		return l.loadSource(ctx, d.Value(), moduleType)
	default:
		return nil, fmt.Errorf("%w: invalid descriptor %s", core.ErrComponentImport, d)
	}
}

func (l *Loader) loadFile(ctx context.Context, rel string) (core.Component, error) {
	key := "file:" + filepath.ToSlash(rel)
	if c := l.cached(key); c != nil {
		return c, nil
	}

	engine, ok := l.byExt[strings.ToLower(filepath.Ext(rel))]
	if !ok {
		return nil, fmt.Errorf("%w: no engine for %s", core.ErrComponentImport, rel)
	}

	source, err := os.ReadFile(filepath.Join(l.siteDir, filepath.FromSlash(rel)))
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", core.ErrComponentImport, rel, err)
	}

	c, err := engine.Compile(ctx, filepath.ToSlash(rel), source)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", core.ErrComponentImport, rel, err)
	}
	l.store(key, c)
	return c, nil
}

func (l *Loader) loadSource(ctx context.Context, source, moduleType string) (core.Component, error) {
	if moduleType == "" {
		moduleType = l.defaultType
	}
	engine, ok := l.byType[moduleType]
	if !ok {
		return nil, fmt.Errorf("%w: unknown module type %q", core.ErrComponentImport, moduleType)
	}

	name := "inline-" + ContentHash([]byte(source))
	key := moduleType + ":" + name
	if c := l.cached(key); c != nil {
		return c, nil
	}

	c, err := engine.Compile(ctx, name, []byte(source))
	if err != nil {
		return nil, fmt.Errorf("%w: inline %s module: %v", core.ErrComponentImport, moduleType, err)
	}
	l.store(key, c)
	return c, nil
}

func (l *Loader) cached(key string) core.Component {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.cache[key]
}

func (l *Loader) store(key string, c core.Component) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.cache[key] = c
}
