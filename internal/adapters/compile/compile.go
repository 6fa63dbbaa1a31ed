// Package compile turns page and wrapper modules into browser ESM.
package compile

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	esbuild "github.com/evanw/esbuild/pkg/api"
	"github.com/tdewolff/parse/v2"
	"github.com/tdewolff/parse/v2/js"
)

var ErrNoDefaultExport = errors.New("module has no default export")

type Compiler struct {
	JSXFactory  string
	JSXFragment string
	Platform    esbuild.Platform
	// ImportMap rewrites every import for the browser. Nil leaves imports
	// as written, which is what node needs.
	ImportMap *ImportMap
}

// NewBrowserCompiler targets the browser runtime. JSX compiles to calls of
// the runtime's h and Fragment, and imports are rewritten through imports.
func NewBrowserCompiler(imports *ImportMap) *Compiler {
	return &Compiler{JSXFactory: "h", JSXFragment: "Fragment", Platform: esbuild.PlatformBrowser, ImportMap: imports}
}

// LoaderFor picks the esbuild loader from a module name. Plain .js modules
// and inline modules may contain JSX.
func LoaderFor(name string) esbuild.Loader {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".ts":
		return esbuild.LoaderTS
	case ".tsx":
		return esbuild.LoaderTSX
	default:
		return esbuild.LoaderJSX
	}
}

// Transform compiles src to an ES module. name is used for diagnostics and
// loader selection.
func (c *Compiler) Transform(name string, src []byte) (string, error) {
	if c.ImportMap != nil {
		return c.build(name, src)
	}

	result := esbuild.Transform(string(src), esbuild.TransformOptions{
		Sourcefile:  name,
		Loader:      LoaderFor(name),
		Format:      esbuild.FormatESModule,
		Platform:    c.Platform,
		Target:      esbuild.ES2020,
		JSX:         esbuild.JSXTransform,
		JSXFactory:  c.JSXFactory,
		JSXFragment: c.JSXFragment,
	})
	if len(result.Errors) > 0 {
		return "", fmt.Errorf("esbuild transform of %s failed: %s", name, formatMessages(result.Errors))
	}
	return string(result.Code), nil
}

// build runs a bundle in which every import is external, so the output is
// the single compiled module with its import specifiers resolved.
func (c *Compiler) build(name string, src []byte) (string, error) {
	result := esbuild.Build(esbuild.BuildOptions{
		Stdin: &esbuild.StdinOptions{
			Contents:   string(src),
			Sourcefile: name,
			Loader:     LoaderFor(name),
		},
		Bundle:      true,
		Write:       false,
		Format:      esbuild.FormatESModule,
		Platform:    c.Platform,
		Target:      esbuild.ES2020,
		JSX:         esbuild.JSXTransform,
		JSXFactory:  c.JSXFactory,
		JSXFragment: c.JSXFragment,
		LogLevel:    esbuild.LogLevelSilent,
		Plugins:     []esbuild.Plugin{c.importMapPlugin()},
	})
	if len(result.Errors) > 0 {
		return "", fmt.Errorf("esbuild build of %s failed: %s", name, formatMessages(result.Errors))
	}
	if len(result.OutputFiles) == 0 {
		return "", fmt.Errorf("esbuild build of %s produced no output", name)
	}
	return string(result.OutputFiles[0].Contents), nil
}

func (c *Compiler) importMapPlugin() esbuild.Plugin {
	return esbuild.Plugin{
		Name: "toast-import-map",
		Setup: func(build esbuild.PluginBuild) {
			build.OnResolve(esbuild.OnResolveOptions{Filter: ".*"},
				func(args esbuild.OnResolveArgs) (esbuild.OnResolveResult, error) {
					if args.Kind == esbuild.ResolveEntryPoint {
						return esbuild.OnResolveResult{}, nil
					}
					return esbuild.OnResolveResult{
						Path:     c.ImportMap.Resolve(args.Path),
						External: true,
					}, nil
				},
			)
		},
	}
}

// TransformPage compiles src and rejects modules without a default export.
func (c *Compiler) TransformPage(name string, src []byte) (string, error) {
	code, err := c.Transform(name, src)
	if err != nil {
		return "", err
	}
	ok, err := HasDefaultExport(code)
	if err != nil {
		return "", fmt.Errorf("failed to parse %s: %w", name, err)
	}
	if !ok {
		return "", fmt.Errorf("%s: %w", name, ErrNoDefaultExport)
	}
	return code, nil
}

// HasDefaultExport reports whether compiled ESM code exports a default.
func HasDefaultExport(code string) (bool, error) {
	ast, err := js.Parse(parse.NewInputString(code), js.Options{})
	if err != nil {
		return false, err
	}

	for _, stmt := range ast.BlockStmt.List {
		export, ok := stmt.(*js.ExportStmt)
		if !ok {
			continue
		}
		if export.Default {
			return true, nil
		}
		for _, alias := range export.List {
			if string(alias.Binding) == "default" || (len(alias.Binding) == 0 && string(alias.Name) == "default") {
				return true, nil
			}
		}
	}
	return false, nil
}

func formatMessages(msgs []esbuild.Message) string {
	parts := make([]string, 0, len(msgs))
	for _, m := range msgs {
		if m.Location != nil {
			parts = append(parts, fmt.Sprintf("%s:%d:%d: %s", m.Location.File, m.Location.Line, m.Location.Column, m.Text))
			continue
		}
		parts = append(parts, m.Text)
	}
	return strings.Join(parts, "; ")
}
