// Package toast is the public surface for Go sourcing code. A site registers
// its page sources under a name and builds a worker binary around WorkerMain;
// toast.yaml then points source.module at "go:<name>" and source.worker at
// that binary.
package toast

import (
	"context"
	"os"

	"github.com/3-lines-studio/toast/internal/core"
	"github.com/3-lines-studio/toast/internal/sourcing"
)

type (
	Actions           = sourcing.Actions
	SourceFunc        = sourcing.SourceFunc
	Result            = sourcing.Result
	BuildMode         = sourcing.BuildMode
	Descriptor        = core.Descriptor
	CreatePage        = core.CreatePage
	DataRegistration  = core.DataRegistration
	RegistrationError = core.RegistrationError
)

const (
	BuildModeDescriptor = sourcing.BuildModeDescriptor
	BuildModeInline     = sourcing.BuildModeInline
)

var (
	ErrInvalidSlug           = core.ErrInvalidSlug
	ErrMalformedComponent    = core.ErrMalformedComponent
	ErrMisplacedMode         = core.ErrMisplacedMode
	ErrNotReady              = core.ErrNotReady
	ErrUnprocessablePayload  = core.ErrUnprocessablePayload
	ErrTransportFailure      = core.ErrTransportFailure
	ErrSessionClosed         = core.ErrSessionClosed
	ErrCapabilityUnavailable = core.ErrCapabilityUnavailable
)

// Filepath references a component module by site relative path.
func Filepath(path string) Descriptor {
	return core.Filepath(path)
}

// Source carries component module code inline.
func Source(code string) Descriptor {
	return core.Source(code)
}

// NoModule registers a page that only has data.
func NoModule() Descriptor {
	return core.NoModule()
}

// RegisterSource makes fn available as module "go:<name>". It panics when
// name is already registered.
func RegisterSource(name string, fn SourceFunc) {
	sourcing.Register(name, fn)
}

// WorkerMain runs the sourcing worker with the process arguments and returns
// its exit code.
func WorkerMain(ctx context.Context) int {
	return sourcing.RunWorker(ctx, os.Args[1:], os.Stderr)
}
