package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/3-lines-studio/toast/internal/core"
	"github.com/3-lines-studio/toast/internal/modules"
)

type RenderInput struct {
	InputDir  string
	OutputDir string
	Files     []string
	// Sources describes emitted files. Files without an entry are loaded
	// from InputDir as filepath components.
	Sources map[string]PageSource
	// Wrapper applies to files without a Sources entry.
	Wrapper *core.Descriptor
	// Prior outcomes, such as emit failures, are carried into the manifest.
	Prior []core.PageOutcome
}

type RenderOutput struct {
	Manifest *core.RenderManifest
	Error    error
}

type RenderOptions struct {
	// Concurrency caps parallel renders; zero is unbounded.
	Concurrency   int
	RuntimeModule string
	Preload       bool
	// PageTimeout bounds a single page render; zero disables it.
	PageTimeout time.Duration
	// ImportMap is written into every document.
	ImportMap map[string]string
}

// RenderService renders page files to HTML. Every page gets an outcome;
// one failing page never stops the others.
type RenderService struct {
	fs      FileSystem
	loader  ModuleLoader
	opts    RenderOptions
	metrics Metrics
	logger  *slog.Logger
}

func NewRenderService(fs FileSystem, loader ModuleLoader, opts RenderOptions, metrics Metrics) *RenderService {
	if metrics == nil {
		metrics = noopMetrics{}
	}
	if opts.RuntimeModule == "" {
		opts.RuntimeModule = core.DefaultRuntimeModule
	}
	return &RenderService{fs: fs, loader: loader, opts: opts, metrics: metrics, logger: slog.Default()}
}

func (s *RenderService) RenderPages(ctx context.Context, input RenderInput) RenderOutput {
	outcomes := make([]core.PageOutcome, len(input.Files))

	g, gctx := errgroup.WithContext(ctx)
	if s.opts.Concurrency > 0 {
		g.SetLimit(s.opts.Concurrency)
	}

	for i, file := range input.Files {
		g.Go(func() error {
			start := time.Now()
			outcomes[i] = s.renderPage(gctx, input, file)
			s.metrics.ObservePageRender(string(outcomes[i].Status), time.Since(start))
			return nil
		})
	}
	_ = g.Wait()

	manifest := core.NewRenderManifest(append(outcomes, input.Prior...))
	out := RenderOutput{Manifest: manifest}

	if err := s.writeManifest(input.OutputDir, manifest); err != nil {
		out.Error = err
		return out
	}

	if failures := manifest.Failures(); len(failures) > 0 {
		out.Error = fmt.Errorf("%w: %d of %d pages failed", core.ErrRenderFailures, len(failures), len(manifest.Pages))
	}
	return out
}

func (s *RenderService) renderPage(ctx context.Context, input RenderInput, file string) (outcome core.PageOutcome) {
	outcome = core.PageOutcome{File: file, Status: core.PageFailed}

	if err := core.ValidatePageFile(file); err != nil {
		outcome.Error = err.Error()
		return outcome
	}

	// A failed page must not leave the previous build's HTML behind.
	defer func() {
		if outcome.Status != core.PageFailed {
			return
		}
		stale := core.OutputHTMLPath(input.OutputDir, file)
		if err := s.fs.Remove(stale); err != nil {
			s.logger.Warn("failed to remove stale page output", "path", stale, "error", err)
		}
	}()

	if s.opts.PageTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.opts.PageTimeout)
		defer cancel()
	}

	src, ok := input.Sources[file]
	if !ok {
		src = PageSource{Component: core.Filepath(file), Wrapper: input.Wrapper, WrapperFile: core.WrapperModulePath}
		if input.Wrapper != nil && s.loader.Kind(*input.Wrapper, "") != modules.ModuleTypeJS {
			src.WrapperFile = core.WrapperFileForPage(file)
		}
	}

	component, err := s.loader.Load(ctx, src.Component, src.ModuleType)
	if err == nil && component == nil {
		err = fmt.Errorf("%w: %s has no component", core.ErrComponentImport, file)
	}
	if err != nil {
		outcome.Error = err.Error()
		s.logger.Error("page component could not be loaded", "file", file, "error", err)
		return outcome
	}

	wrapper, wrapperErr := s.loadWrapper(ctx, src)
	if wrapperErr != nil {
		outcome.WrapperSkipped = true
		s.logger.Warn("rendering page without wrapper", "file", file, "error", wrapperErr)
	}

	data, err := s.readData(input.OutputDir, file)
	if err != nil {
		outcome.Error = err.Error()
		return outcome
	}

	// Browsers only run module scripts served as JavaScript, so html and
	// markdown page files are re-rendered from a .js sibling.
	moduleFile := core.BrowserModuleFile(file)

	page := &recordingComponent{Component: component}
	rc := core.RenderContext{
		Component:            page,
		Data:                 data,
		BrowserComponentPath: moduleFile,
		BrowserDataPath:      core.DataFilePath(file),
		RuntimeModule:        s.opts.RuntimeModule,
		Preload:              s.opts.Preload,
		ImportMap:            s.opts.ImportMap,
	}

	var outer *recordingComponent
	if wrapper != nil {
		outer = &recordingComponent{Component: wrapper}
		rc.PageWrapper = outer
		rc.BrowserPageWrapperPath = src.WrapperFile
	}

	doc, err := core.Render(ctx, rc)
	if err != nil {
		outcome.Error = err.Error()
		s.logger.Error("page render failed", "file", file, "error", err)
		return outcome
	}

	if modules.IsStatic(component) {
		if err := s.writeStaticPage(input.OutputDir, moduleFile, page.fragment.HTML); err != nil {
			outcome.Error = err.Error()
			return outcome
		}
	}
	if outer != nil && modules.IsStatic(wrapper) {
		if err := s.writeStaticWrapper(input.OutputDir, src.WrapperFile, outer); err != nil {
			outcome.Error = err.Error()
			return outcome
		}
	}

	outputPath := core.OutputHTMLPath(input.OutputDir, file)
	if err := s.fs.WriteFile(outputPath, []byte(doc.HTML), 0o644); err != nil {
		outcome.Error = fmt.Sprintf("failed to write %s: %v", outputPath, err)
		return outcome
	}

	rel, err := filepath.Rel(input.OutputDir, outputPath)
	if err != nil {
		rel = outputPath
	}
	outcome.Output = filepath.ToSlash(rel)
	outcome.Status = core.PageRendered
	if outcome.WrapperSkipped {
		outcome.Error = wrapperErr.Error()
	}
	return outcome
}

func (s *RenderService) loadWrapper(ctx context.Context, src PageSource) (core.Component, error) {
	if src.Wrapper == nil || src.Wrapper.IsNoModule() {
		return nil, nil
	}
	if src.WrapperError != "" {
		return nil, fmt.Errorf("%w: %s", core.ErrWrapperImport, src.WrapperError)
	}
	w, err := s.loader.Load(ctx, *src.Wrapper, src.WrapperModuleType)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", core.ErrWrapperImport, err)
	}
	return w, nil
}

// readData loads the page's JSON data file. A missing file is empty data.
func (s *RenderService) readData(outputDir, file string) (map[string]any, error) {
	path := filepath.Join(outputDir, filepath.FromSlash(core.DataFilePath(file)))
	raw, err := s.fs.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return map[string]any{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read data for %s: %w", file, err)
	}

	var data map[string]any
	if err := json.Unmarshal(raw, &data); err != nil {
		return nil, fmt.Errorf("malformed data file %s: %w", path, err)
	}
	if data == nil {
		data = map[string]any{}
	}
	return data, nil
}

func (s *RenderService) writeStaticPage(outputDir, file, markup string) error {
	code, err := modules.StaticPageModule(s.opts.RuntimeModule, markup)
	if err != nil {
		return err
	}
	return s.fs.WriteFile(filepath.Join(outputDir, filepath.FromSlash(file)), []byte(code), 0o644)
}

func (s *RenderService) writeStaticWrapper(outputDir, file string, wrapper *recordingComponent) error {
	code, err := modules.StaticWrapperModule(s.opts.RuntimeModule, wrapper.fragment.HTML, wrapper.children)
	if err != nil {
		return err
	}
	return s.fs.WriteFile(filepath.Join(outputDir, filepath.FromSlash(file)), []byte(code), 0o644)
}

func (s *RenderService) writeManifest(outputDir string, m *core.RenderManifest) error {
	data, err := m.JSON()
	if err != nil {
		return fmt.Errorf("failed to encode render manifest: %w", err)
	}
	path := filepath.Join(outputDir, filepath.FromSlash(core.RenderManifestPath))
	if err := s.fs.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write render manifest: %w", err)
	}
	return nil
}

// recordingComponent keeps the last fragment it rendered. It is used for a
// single page render only.
type recordingComponent struct {
	core.Component
	fragment core.Fragment
	children string
}

func (r *recordingComponent) Render(ctx context.Context, props core.Props) (core.Fragment, error) {
	frag, err := r.Component.Render(ctx, props)
	r.fragment = frag
	r.children = props.Children
	return frag, err
}
