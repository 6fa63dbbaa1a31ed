package process

import (
	_ "embed"
	"fmt"
	"os"
	"path/filepath"
)

//go:embed renderer.mjs
var RendererSource string

const (
	TmpDir         = ".tmp"
	rendererScript = "toast-renderer.mjs"
)

// ExtractRenderer writes the embedded renderer script into dir. The script
// has to live inside the site so node resolves preact from its node_modules.
func ExtractRenderer(dir string) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create renderer dir: %w", err)
	}

	path := filepath.Join(dir, rendererScript)
	if err := os.WriteFile(path, []byte(RendererSource), 0o644); err != nil {
		return "", fmt.Errorf("failed to write renderer script: %w", err)
	}
	return path, nil
}

// WriteServerModule stores compiled server code under dir and returns its
// absolute path.
func WriteServerModule(dir, name, code string) (string, error) {
	path := filepath.Join(dir, name)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", fmt.Errorf("failed to create module dir: %w", err)
	}
	if err := os.WriteFile(path, []byte(code), 0o644); err != nil {
		return "", fmt.Errorf("failed to write server module %s: %w", name, err)
	}
	return filepath.Abs(path)
}
