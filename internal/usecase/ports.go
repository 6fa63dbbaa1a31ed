package usecase

import (
	"context"
	"time"

	"github.com/3-lines-studio/toast/internal/adapters/fs"
	"github.com/3-lines-studio/toast/internal/core"
)

// ModuleLoader resolves descriptors to server renderable components.
type ModuleLoader interface {
	Load(ctx context.Context, d core.Descriptor, moduleType string) (core.Component, error)
	Kind(d core.Descriptor, moduleType string) string
}

// BrowserCompiler turns JS component source into browser ESM.
type BrowserCompiler interface {
	Transform(name string, src []byte) (string, error)
	TransformPage(name string, src []byte) (string, error)
}

type CLIOutput interface {
	PrintHeader(msg string)
	PrintStep(msg string, args ...any)
	PrintSuccess(msg string, args ...any)
	PrintWarning(msg string, args ...any)
	PrintError(msg string, args ...any)
	PrintFile(path string)
	PrintDone(msg string)
}

// Metrics is satisfied by *metrics.Recorder, including a nil one.
type Metrics interface {
	ObserveRegistration(endpoint, outcome string)
	ObserveSession(d time.Duration)
	ObservePageRender(status string, d time.Duration)
	AddOrphans(n int)
	ObserveBuild(d time.Duration)
}

type FileSystem = fs.FileSystem

type noopMetrics struct{}

func (noopMetrics) ObserveRegistration(string, string) {}
func (noopMetrics) ObserveSession(time.Duration) {}
func (noopMetrics) ObservePageRender(string, time.Duration) {}
func (noopMetrics) AddOrphans(int) {}
func (noopMetrics) ObserveBuild(time.Duration) {}
