// Package initcmd scaffolds a new toast site from an embedded starter.
package initcmd

import (
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"strings"

	"github.com/3-lines-studio/toast/internal/adapters/cli"
	toastfs "github.com/3-lines-studio/toast/internal/adapters/fs"
	"github.com/3-lines-studio/toast/internal/templates"
)

func Run(siteDir, templateName string, out *cli.Output) error {
	out.PrintHeader("toast init")

	dst := toastfs.NewOSFileSystem()
	if dst.FileExists(siteDir) {
		entries, err := dst.ReadDir(siteDir)
		if err != nil {
			return fmt.Errorf("failed to read directory: %w", err)
		}
		if len(entries) > 0 {
			return fmt.Errorf("directory '%s' already exists and is not empty", siteDir)
		}
	}

	templateFS, err := templates.GetTemplate(templateName)
	if err != nil {
		if errors.Is(err, templates.ErrInvalidTemplate) {
			return fmt.Errorf("invalid template '%s' (available: %s)", templateName, strings.Join(templates.Names(), ", "))
		}
		return err
	}

	src := toastfs.NewReadOnlyFileSystem(templateFS)

	if err := dst.MkdirAll(siteDir, 0o755); err != nil {
		return fmt.Errorf("failed to create site directory: %w", err)
	}

	data := templates.TemplateData{Name: templates.DeriveSiteName(siteDir)}
	created := 0

	err = src.WalkDir(".", func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return dst.MkdirAll(filepath.Join(siteDir, path), 0o755)
		}

		content, err := src.ReadFile(path)
		if err != nil {
			return fmt.Errorf("failed to read template file %s: %w", path, err)
		}

		targetPath, isTemplate := templates.ProcessFilename(path)
		targetPath = filepath.Join(siteDir, filepath.FromSlash(targetPath))

		if err := dst.WriteFile(targetPath, templates.ProcessContent(content, isTemplate, data), 0o644); err != nil {
			return fmt.Errorf("failed to write file %s: %w", targetPath, err)
		}

		if isTemplate {
			out.PrintFile(targetPath + " (generated)")
		} else {
			out.PrintFile(targetPath)
		}
		created++
		return nil
	})
	if err != nil {
		return err
	}

	out.PrintDone(fmt.Sprintf("Created %d files using '%s' template", created, templateName))
	out.PrintStep("Next steps:")
	out.PrintStep("  cd %s", siteDir)
	if src.FileExists("package.json.scaffold") {
		out.PrintStep("  npm install")
	}
	out.PrintStep("  toast build && toast preview")

	return nil
}
