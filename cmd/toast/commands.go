package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/alecthomas/kong"

	"github.com/3-lines-studio/toast/internal/adapters/cli"
	"github.com/3-lines-studio/toast/internal/adapters/compile"
	"github.com/3-lines-studio/toast/internal/adapters/fs"
	toasthttp "github.com/3-lines-studio/toast/internal/adapters/http"
	"github.com/3-lines-studio/toast/internal/adapters/process"
	"github.com/3-lines-studio/toast/internal/config"
	"github.com/3-lines-studio/toast/internal/initcmd"
	"github.com/3-lines-studio/toast/internal/metrics"
	"github.com/3-lines-studio/toast/internal/modules"
	"github.com/3-lines-studio/toast/internal/usecase"
)

const envLogLevel = "TOAST_LOG_LEVEL"

// CLI holds the global flags and subcommands.
type CLI struct {
	Config  string           `short:"c" help:"Configuration file path" default:"toast.yaml"`
	Verbose bool             `short:"v" help:"Enable debug logging"`
	Version kong.VersionFlag `name:"version" help:"Show version and exit"`

	Build   BuildCmd   `cmd:"" help:"Source, emit and render the site"`
	Init    InitCmd    `cmd:"" help:"Create a new site from a starter template"`
	Doctor  DoctorCmd  `cmd:"" help:"Check that the environment can build the site"`
	Preview PreviewCmd `cmd:"" help:"Serve the built site locally"`
}

// AfterApply installs the default logger once flags are parsed.
func (c *CLI) AfterApply() error {
	level := slog.LevelInfo
	if raw := os.Getenv(envLogLevel); raw != "" {
		if err := level.UnmarshalText([]byte(raw)); err != nil {
			return fmt.Errorf("invalid %s: %w", envLogLevel, err)
		}
	}
	if c.Verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)
	return nil
}

func (c *CLI) loadConfig() (*config.Config, error) {
	if c.Config == "" {
		return config.Load(config.DefaultPath)
	}
	return config.Load(c.Config)
}

type BuildCmd struct {
	Output      string        `short:"o" help:"Output directory, overrides site.output"`
	Mode        string        `help:"Sourcing build mode (descriptor or inline), overrides source.mode"`
	Concurrency int           `short:"j" help:"Maximum concurrent page renders, overrides render.concurrency"`
	Timeout     time.Duration `help:"Sourcing session timeout, overrides source.timeout"`
}

func (b *BuildCmd) Run(ctx context.Context, root *CLI) error {
	cfg, err := root.loadConfig()
	if err != nil {
		return err
	}
	b.apply(cfg)
	if err := cfg.Validate(); err != nil {
		return err
	}

	out := cli.NewOutput()
	recorder := metrics.NewRecorder(nil)

	osfs := fs.NewOSFileSystem()
	engine := process.NewEngine(process.Options{
		Node:    cfg.Render.Node,
		SiteDir: cfg.Site.Dir,
		Stdout:  out.Out(),
		Stderr:  out.Err(),
	})
	defer func() {
		if err := engine.Close(); err != nil {
			slog.Warn("failed to stop node renderer", "error", err)
		}
	}()

	imports, err := compile.LoadImportMap(cfg.Site.Dir, cfg.Render.RuntimeModule)
	if err != nil {
		return err
	}

	loader := newLoader(cfg, engine)
	build := usecase.NewBuildService(
		usecase.NewSourceService(recorder),
		usecase.NewEmitService(osfs, loader, compile.NewBrowserCompiler(imports)),
		usecase.NewRenderService(osfs, loader, usecase.RenderOptions{
			Concurrency:   cfg.Render.Concurrency,
			RuntimeModule: cfg.Render.RuntimeModule,
			Preload:       cfg.Render.Preload,
			PageTimeout:   cfg.Render.Timeout,
			ImportMap:     imports.Imports,
		}, recorder),
		out,
		recorder,
	)

	result := build.Build(ctx, usecase.BuildInput{Config: cfg})
	return result.Error
}

func (b *BuildCmd) apply(cfg *config.Config) {
	if b.Output != "" {
		cfg.Site.Output = b.Output
	}
	if b.Mode != "" {
		cfg.Source.Mode = b.Mode
	}
	if b.Concurrency > 0 {
		cfg.Render.Concurrency = b.Concurrency
	}
	if b.Timeout > 0 {
		cfg.Source.Timeout = b.Timeout
	}
}

func newLoader(cfg *config.Config, engine *process.Engine) *modules.Loader {
	loader := modules.NewLoader(cfg.Site.Dir)
	loader.Register(modules.ModuleTypeHTML, modules.NewTemplateEngine(cfg.Site.Dir, cfg.Site.Partials...), ".html", ".tmpl")
	loader.Register(modules.ModuleTypeMarkdown, modules.NewMarkdownEngine(), ".md", ".markdown")
	loader.Register(modules.ModuleTypeJS, engine, ".js", ".jsx", ".mjs", ".ts", ".tsx")
	return loader
}

type InitCmd struct {
	Dir      string `arg:"" help:"Directory to create the site in" type:"path"`
	Template string `short:"t" help:"Starter template" enum:"minimal,preact" default:"minimal"`
}

func (i *InitCmd) Run() error {
	return initcmd.Run(i.Dir, i.Template, cli.NewOutput())
}

type DoctorCmd struct{}

func (d *DoctorCmd) Run(ctx context.Context, root *CLI) error {
	cfg, err := root.loadConfig()
	if err != nil {
		return err
	}
	result := usecase.NewDoctorService(fs.NewOSFileSystem(), cli.NewOutput()).Check(ctx, cfg)
	return result.Error
}

type PreviewCmd struct {
	Addr string `help:"Listen address" default:"127.0.0.1:4000"`
}

func (p *PreviewCmd) Run(ctx context.Context, root *CLI) error {
	cfg, err := root.loadConfig()
	if err != nil {
		return err
	}

	srv := toasthttp.NewPreviewServer(p.Addr, toasthttp.PreviewOptions{
		OutputDir: cfg.OutputDir(),
		SiteDir:   cfg.Site.Dir,
		Logger:    slog.Default(),
	})

	out := cli.NewOutput()
	out.PrintHeader("toast preview")
	out.PrintStep("Serving %s at http://%s", cfg.OutputDir(), p.Addr)

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}
