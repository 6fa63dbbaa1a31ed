package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/3-lines-studio/toast/internal/adapters/cli"
	"github.com/3-lines-studio/toast/internal/config"
	"github.com/3-lines-studio/toast/internal/core"
	"github.com/3-lines-studio/toast/internal/sourcing"
)

type BuildInput struct {
	Config *config.Config
	// Source replaces the configured module with an in-process function.
	Source sourcing.SourceFunc
}

type BuildOutput struct {
	Success  bool
	Pages    int
	Orphans  []string
	Manifest *core.RenderManifest
	Error    error
}

type textfileWriter interface {
	WriteTextfile(path string) error
}

// BuildService chains sourcing, emit and render for one site.
type BuildService struct {
	source  *SourceService
	emit    *EmitService
	render  *RenderService
	out     *cli.Output
	metrics Metrics
}

func NewBuildService(source *SourceService, emit *EmitService, render *RenderService, out *cli.Output, metrics Metrics) *BuildService {
	if metrics == nil {
		metrics = noopMetrics{}
	}
	return &BuildService{source: source, emit: emit, render: render, out: out, metrics: metrics}
}

func (s *BuildService) Build(ctx context.Context, input BuildInput) BuildOutput {
	start := time.Now()
	cfg := input.Config
	outputDir := cfg.OutputDir()

	s.out.PrintHeader("toast build")
	report := cli.NewBuildReport(s.out, outputDir)
	defer report.Render()

	mode, err := sourcing.ParseBuildMode(cfg.Source.Mode)
	if err != nil {
		return BuildOutput{Error: err}
	}

	step := report.StartStep("Sourcing pages")
	sourced := s.source.Source(ctx, SourceInput{
		SiteDir:    cfg.Site.Dir,
		ModulePath: cfg.ModulePath(),
		Worker:     cfg.Source.Worker,
		Mode:       mode,
		Timeout:    cfg.Source.Timeout,
		Source:     input.Source,
		Stdout:     s.out.Out(),
		Stderr:     s.out.Err(),
	})
	report.EndStep(step, sourced.Error)
	if sourced.Error != nil {
		return BuildOutput{Error: fmt.Errorf("sourcing failed: %w", sourced.Error)}
	}
	report.SetPageCount(len(sourced.Pages))
	for _, slug := range sourced.Orphans {
		report.AddWarning(slug, "received data but no component, skipped")
	}

	var wrapper *core.Descriptor
	if cfg.Site.Wrapper != "" {
		w := core.Filepath(cfg.Site.Wrapper)
		wrapper = &w
	}

	step = report.StartStep("Emitting browser modules")
	emitted := s.emit.Emit(ctx, EmitInput{
		SiteDir:   cfg.Site.Dir,
		OutputDir: outputDir,
		Pages:     sourced.Pages,
		Wrapper:   wrapper,
	})
	report.EndStep(step, emitted.Error)
	if emitted.Error != nil {
		return BuildOutput{Error: fmt.Errorf("emit failed: %w", emitted.Error)}
	}
	for _, slug := range emitted.DataOnly {
		slog.Debug("page has no component, only data was written", "slug", slug)
	}

	step = report.StartStep("Rendering pages")
	rendered := s.render.RenderPages(ctx, RenderInput{
		InputDir:  cfg.Site.Dir,
		OutputDir: outputDir,
		Files:     emitted.Files,
		Sources:   emitted.Sources,
		Wrapper:   wrapper,
		Prior:     emitted.Failures,
	})
	report.EndStep(step, rendered.Error)
	if rendered.Manifest != nil {
		report.AddManifest(rendered.Manifest)
	}

	s.metrics.ObserveBuild(time.Since(start))
	if tw, ok := s.metrics.(textfileWriter); ok && cfg.Metrics.Textfile != "" {
		if err := tw.WriteTextfile(cfg.Metrics.Textfile); err != nil {
			report.AddWarning("metrics", "failed to write metrics textfile", err.Error())
		}
	}

	return BuildOutput{
		Success:  rendered.Error == nil,
		Pages:    len(sourced.Pages),
		Orphans:  sourced.Orphans,
		Manifest: rendered.Manifest,
		Error:    rendered.Error,
	}
}
