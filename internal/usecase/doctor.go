package usecase

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/3-lines-studio/toast/internal/adapters/process"
	"github.com/3-lines-studio/toast/internal/config"
	"github.com/3-lines-studio/toast/internal/sourcing"
)

type DoctorCheck struct {
	Name   string
	OK     bool
	Detail string
	// Optional checks only warn.
	Optional bool
}

type DoctorOutput struct {
	Checks []DoctorCheck
	Error  error
}

// DoctorService verifies the environment a build needs.
type DoctorService struct {
	fs  FileSystem
	cli CLIOutput
}

func NewDoctorService(fs FileSystem, cli CLIOutput) *DoctorService {
	return &DoctorService{fs: fs, cli: cli}
}

func (s *DoctorService) Check(_ context.Context, cfg *config.Config) DoctorOutput {
	s.cli.PrintHeader("toast doctor")

	checks := []DoctorCheck{
		s.checkNode(cfg),
		s.checkModule(cfg),
		s.checkWorker(cfg),
		s.checkDir("output directory", cfg.OutputDir()),
		s.checkDir("socket directory", os.TempDir()),
		s.checkPreact(cfg),
	}

	failed := 0
	for _, c := range checks {
		switch {
		case c.OK:
			s.cli.PrintSuccess("%s: %s", c.Name, c.Detail)
		case c.Optional:
			s.cli.PrintWarning("%s: %s", c.Name, c.Detail)
		default:
			failed++
			s.cli.PrintError("%s: %s", c.Name, c.Detail)
		}
	}

	out := DoctorOutput{Checks: checks}
	if failed > 0 {
		out.Error = fmt.Errorf("%d checks failed", failed)
	}
	return out
}

func (s *DoctorService) checkNode(cfg *config.Config) DoctorCheck {
	path, err := process.LookNode(cfg.Render.Node)
	if err != nil {
		return DoctorCheck{Name: "node", Detail: err.Error(), Optional: true}
	}
	return DoctorCheck{Name: "node", OK: true, Detail: path}
}

func (s *DoctorService) checkModule(cfg *config.Config) DoctorCheck {
	module := cfg.ModulePath()
	if strings.HasPrefix(module, "go:") {
		return DoctorCheck{Name: "source module", OK: true, Detail: module + " (resolved by the worker binary)"}
	}
	if _, err := sourcing.LoadModule(module); err != nil {
		return DoctorCheck{Name: "source module", Detail: err.Error()}
	}
	return DoctorCheck{Name: "source module", OK: true, Detail: module}
}

func (s *DoctorService) checkWorker(cfg *config.Config) DoctorCheck {
	if cfg.Source.Worker == "" {
		return DoctorCheck{Name: "worker", OK: true, Detail: "in process"}
	}
	path, err := exec.LookPath(cfg.Source.Worker)
	if err != nil {
		return DoctorCheck{Name: "worker", Detail: err.Error()}
	}
	return DoctorCheck{Name: "worker", OK: true, Detail: path}
}

func (s *DoctorService) checkDir(name, dir string) DoctorCheck {
	if err := s.fs.Writable(dir); err != nil {
		return DoctorCheck{Name: name, Detail: fmt.Sprintf("%s is not writable: %v", dir, err)}
	}
	return DoctorCheck{Name: name, OK: true, Detail: dir}
}

func (s *DoctorService) checkPreact(cfg *config.Config) DoctorCheck {
	for _, pkg := range []string{"preact", "preact-render-to-string"} {
		if !s.fs.FileExists(filepath.Join(cfg.Site.Dir, "node_modules", pkg)) {
			return DoctorCheck{
				Name:     "preact",
				Detail:   pkg + " is not installed, JS components cannot be server rendered",
				Optional: true,
			}
		}
	}
	return DoctorCheck{Name: "preact", OK: true, Detail: "installed"}
}
