package usecase

import (
	"context"
	"encoding/json"
	"fmt"
	iofs "io/fs"
	"log/slog"
	"path/filepath"

	"github.com/3-lines-studio/toast/internal/core"
	"github.com/3-lines-studio/toast/internal/modules"
)

// PageSource is what the renderer needs to know about one emitted page file.
type PageSource struct {
	Slug       string
	Component  core.Descriptor
	ModuleType string
	// Wrapper is the effective wrapper, per page or site wide. Nil renders
	// with the identity wrapper.
	Wrapper           *core.Descriptor
	WrapperModuleType string
	// WrapperFile is the site relative browser module of Wrapper.
	WrapperFile string
	// WrapperError is set when the wrapper could not be emitted; the page is
	// then rendered without it.
	WrapperError string
}

type EmitInput struct {
	SiteDir   string
	OutputDir string
	Pages     []core.Page
	// Wrapper is the site wide page wrapper, used by pages that did not
	// register their own.
	Wrapper *core.Descriptor
}

type EmitOutput struct {
	Files    []string
	Sources  map[string]PageSource
	DataOnly []string
	Failures []core.PageOutcome
	Error    error
}

// EmitService writes the browser side of every sourced page: one ES module
// per page and a JSON data file per page with data.
type EmitService struct {
	fs       FileSystem
	loader   ModuleLoader
	compiler BrowserCompiler
	logger   *slog.Logger
}

func NewEmitService(fs FileSystem, loader ModuleLoader, compiler BrowserCompiler) *EmitService {
	return &EmitService{fs: fs, loader: loader, compiler: compiler, logger: slog.Default()}
}

func (s *EmitService) Emit(ctx context.Context, input EmitInput) EmitOutput {
	out := EmitOutput{Sources: make(map[string]PageSource, len(input.Pages))}

	siteWrapperErr := ""
	if input.Wrapper != nil && !input.Wrapper.IsNoModule() &&
		s.loader.Kind(*input.Wrapper, "") == modules.ModuleTypeJS {
		if err := s.emitModule(input.SiteDir, input.OutputDir, core.WrapperModulePath, *input.Wrapper, false); err != nil {
			siteWrapperErr = err.Error()
			s.logger.Warn("site wrapper could not be emitted, pages render without it", "error", err)
		}
	}

	if err := s.copyWebModules(input.SiteDir, input.OutputDir); err != nil {
		out.Error = err
		return out
	}

	// Pages arrive sorted by slug, so the first claimant of a file is stable.
	claimed := make(map[string]string, len(input.Pages))

	for _, page := range input.Pages {
		if err := ctx.Err(); err != nil {
			out.Error = err
			return out
		}

		file := core.PageFileForSlug(page.Slug)
		if err := core.ValidatePageFile(file); err != nil {
			out.Failures = append(out.Failures, failed(file, err))
			continue
		}
		if owner, dup := claimed[file]; dup {
			err := fmt.Errorf("%w: slug %s and slug %s both map to %s", core.ErrDuplicateOutput, owner, page.Slug, file)
			s.logger.Error("skipping page with a conflicting slug", "slug", page.Slug, "file", file, "owner", owner)
			out.Failures = append(out.Failures, failed(file, err))
			continue
		}
		claimed[file] = page.Slug

		if len(page.Data) > 0 {
			if err := s.writeData(input.OutputDir, file, page.Data); err != nil {
				out.Failures = append(out.Failures, failed(file, err))
				continue
			}
		}

		if page.Component.IsNoModule() {
			out.DataOnly = append(out.DataOnly, page.Slug)
			continue
		}

		src := PageSource{
			Slug:       page.Slug,
			Component:  *page.Component,
			ModuleType: page.ModuleType,
		}

		if s.loader.Kind(src.Component, src.ModuleType) == modules.ModuleTypeJS {
			if err := s.emitModule(input.SiteDir, input.OutputDir, file, src.Component, true); err != nil {
				out.Failures = append(out.Failures, failed(file, fmt.Errorf("%w: %v", core.ErrComponentImport, err)))
				continue
			}
		}

		s.resolveWrapper(input, page, file, siteWrapperErr, &src)

		out.Files = append(out.Files, file)
		out.Sources[file] = src
	}

	return out
}

func (s *EmitService) resolveWrapper(input EmitInput, page core.Page, file, siteWrapperErr string, src *PageSource) {
	switch {
	case page.Wrapper != nil && page.Wrapper.IsNoModule():
		return
	case page.Wrapper != nil:
		src.Wrapper = page.Wrapper
		src.WrapperModuleType = page.ModuleType
		src.WrapperFile = core.WrapperFileForPage(file)
		if s.loader.Kind(*page.Wrapper, page.ModuleType) != modules.ModuleTypeJS {
			return
		}
		if err := s.emitModule(input.SiteDir, input.OutputDir, src.WrapperFile, *page.Wrapper, false); err != nil {
			s.logger.Warn("page wrapper could not be emitted", "slug", page.Slug, "error", err)
			src.WrapperError = err.Error()
		}
	case input.Wrapper != nil && !input.Wrapper.IsNoModule():
		src.Wrapper = input.Wrapper
		if s.loader.Kind(*input.Wrapper, "") == modules.ModuleTypeJS {
			src.WrapperFile = core.WrapperModulePath
			src.WrapperError = siteWrapperErr
		} else {
			// static wrappers render differently per page
			src.WrapperFile = core.WrapperFileForPage(file)
		}
	}
}

// emitModule compiles a JS component and writes it to the output relative
// path rel. Page modules must have a default export.
func (s *EmitService) emitModule(siteDir, outputDir, rel string, d core.Descriptor, page bool) error {
	var (
		name   string
		source []byte
	)
	switch d.Mode() {
	case core.ModeFilepath:
		name = d.Value()
		data, err := s.fs.ReadFile(filepath.Join(siteDir, filepath.FromSlash(d.Value())))
		if err != nil {
			return fmt.Errorf("failed to read %s: %w", d.Value(), err)
		}
		source = data
	case core.ModeSource:
		name = rel
		source = []byte(d.Value())
	default:
		return fmt.Errorf("cannot emit %s", d)
	}

	compile := s.compiler.Transform
	if page {
		compile = s.compiler.TransformPage
	}
	code, err := compile(name, source)
	if err != nil {
		return err
	}

	return s.fs.WriteFile(filepath.Join(outputDir, filepath.FromSlash(rel)), []byte(code), 0o644)
}

// copyWebModules publishes the site's browser builds of bare imports, which
// compiled pages and the import map point at.
func (s *EmitService) copyWebModules(siteDir, outputDir string) error {
	root := filepath.Join(siteDir, core.WebModulesDir)
	if !s.fs.FileExists(root) {
		return nil
	}
	return s.fs.WalkDir(root, func(path string, d iofs.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return err
		}
		rel, err := filepath.Rel(siteDir, path)
		if err != nil {
			return err
		}
		if err := s.fs.CopyFile(path, filepath.Join(outputDir, rel)); err != nil {
			return fmt.Errorf("failed to copy %s: %w", rel, err)
		}
		return nil
	})
}

func (s *EmitService) writeData(outputDir, file string, data map[string]any) error {
	b, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("failed to encode data for %s: %w", file, err)
	}
	path := filepath.Join(outputDir, filepath.FromSlash(core.DataFilePath(file)))
	if err := s.fs.WriteFile(path, b, 0o644); err != nil {
		return fmt.Errorf("failed to write data for %s: %w", file, err)
	}
	return nil
}

func failed(file string, err error) core.PageOutcome {
	return core.PageOutcome{File: file, Status: core.PageFailed, Error: err.Error()}
}
