// Package config loads toast.yaml, the site .env file and TOAST_*
// environment overrides.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const DefaultPath = "toast.yaml"

type Config struct {
	Site    SiteConfig    `yaml:"site"`
	Source  SourceConfig  `yaml:"source"`
	Render  RenderConfig  `yaml:"render"`
	Metrics MetricsConfig `yaml:"metrics"`
}

type SiteConfig struct {
	Dir    string `yaml:"dir"`
	Output string `yaml:"output"`
	// Wrapper is the site relative page wrapper module; empty renders pages
	// with the identity wrapper.
	Wrapper  string   `yaml:"wrapper"`
	Partials []string `yaml:"partials"`
}

type SourceConfig struct {
	Module  string        `yaml:"module"`
	Worker  string        `yaml:"worker"`
	Mode    string        `yaml:"mode"`
	Timeout time.Duration `yaml:"timeout"`
}

type RenderConfig struct {
	Concurrency   int           `yaml:"concurrency"`
	RuntimeModule string        `yaml:"runtimeModule"`
	Node          string        `yaml:"node"`
	Timeout       time.Duration `yaml:"timeout"`
	Preload       bool          `yaml:"preload"`
}

type MetricsConfig struct {
	Textfile string `yaml:"textfile"`
}

func Default() *Config {
	return &Config{
		Site: SiteConfig{
			Dir:      ".",
			Output:   "public",
			Partials: []string{"src/partials/**/*.html"},
		},
		Source: SourceConfig{
			Module:  "toast.source.yaml",
			Worker:  "toast-source",
			Mode:    "descriptor",
			Timeout: 30 * time.Second,
		},
		Render: RenderConfig{
			Concurrency:   runtime.NumCPU(),
			RuntimeModule: "/web_modules/preact.js",
			Node:          "node",
			Timeout:       30 * time.Second,
			Preload:       true,
		},
	}
}

// Load reads path on top of Default and applies environment overrides. A
// missing file is only an error when path is not DefaultPath. The .env file
// next to the config never overrides variables already set.
func Load(path string) (*Config, error) {
	if path == "" {
		path = DefaultPath
	}

	if err := godotenv.Load(filepath.Join(filepath.Dir(path), ".env")); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	cfg := Default()

	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, os.ErrNotExist) && path == DefaultPath:
	case err != nil:
		return nil, fmt.Errorf("failed to read config file: %w", err)
	default:
		if err := yaml.Unmarshal([]byte(os.ExpandEnv(string(data))), cfg); err != nil {
			return nil, fmt.Errorf("failed to parse %s: %w", path, err)
		}
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}

	if !filepath.IsAbs(cfg.Site.Dir) {
		cfg.Site.Dir = filepath.Join(filepath.Dir(path), cfg.Site.Dir)
	}
	// The worker and node renderer run with the site as their working
	// directory, so every derived path must be absolute.
	if cfg.Site.Dir, err = filepath.Abs(cfg.Site.Dir); err != nil {
		return nil, fmt.Errorf("failed to resolve site directory: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return cfg, nil
}

func (c *Config) applyEnv() error {
	strs := []struct {
		key string
		dst *string
	}{
		{"TOAST_SITE_DIR", &c.Site.Dir},
		{"TOAST_OUTPUT_DIR", &c.Site.Output},
		{"TOAST_WRAPPER", &c.Site.Wrapper},
		{"TOAST_SOURCE_MODULE", &c.Source.Module},
		{"TOAST_WORKER", &c.Source.Worker},
		{"TOAST_BUILD_MODE", &c.Source.Mode},
		{"TOAST_RUNTIME_MODULE", &c.Render.RuntimeModule},
		{"TOAST_NODE", &c.Render.Node},
		{"TOAST_METRICS_TEXTFILE", &c.Metrics.Textfile},
	}
	for _, s := range strs {
		if v, ok := os.LookupEnv(s.key); ok && v != "" {
			*s.dst = v
		}
	}

	durations := []struct {
		key string
		dst *time.Duration
	}{
		{"TOAST_SOURCE_TIMEOUT", &c.Source.Timeout},
		{"TOAST_RENDER_TIMEOUT", &c.Render.Timeout},
	}
	for _, d := range durations {
		v, ok := os.LookupEnv(d.key)
		if !ok || v == "" {
			continue
		}
		parsed, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("invalid %s: %w", d.key, err)
		}
		*d.dst = parsed
	}

	if v, ok := os.LookupEnv("TOAST_RENDER_CONCURRENCY"); ok && v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid TOAST_RENDER_CONCURRENCY: %w", err)
		}
		c.Render.Concurrency = n
	}
	return nil
}

func (c *Config) Validate() error {
	var errs []error
	if c.Site.Output == "" {
		errs = append(errs, errors.New("site.output cannot be empty"))
	}
	if c.Source.Module == "" {
		errs = append(errs, errors.New("source.module cannot be empty"))
	}
	if c.Source.Mode != "descriptor" && c.Source.Mode != "inline" {
		errs = append(errs, fmt.Errorf("source.mode must be descriptor or inline, got %q", c.Source.Mode))
	}
	if c.Source.Timeout < 0 || c.Render.Timeout < 0 {
		errs = append(errs, errors.New("timeouts cannot be negative"))
	}
	if c.Render.Concurrency < 0 {
		errs = append(errs, fmt.Errorf("render.concurrency cannot be negative, got %d", c.Render.Concurrency))
	}
	if c.Render.RuntimeModule == "" {
		errs = append(errs, errors.New("render.runtimeModule cannot be empty"))
	}
	return errors.Join(errs...)
}

// OutputDir resolves the output directory against the site directory.
func (c *Config) OutputDir() string {
	if filepath.IsAbs(c.Site.Output) {
		return c.Site.Output
	}
	return filepath.Join(c.Site.Dir, c.Site.Output)
}

// ModulePath resolves the sourcing module against the site directory.
// Registered Go source names ("go:<name>") are returned unchanged.
func (c *Config) ModulePath() string {
	if strings.HasPrefix(c.Source.Module, "go:") || filepath.IsAbs(c.Source.Module) {
		return c.Source.Module
	}
	return filepath.Join(c.Site.Dir, c.Source.Module)
}
