// Package templates holds the embedded starter sites used by toast init.
package templates

import (
	"embed"
	"errors"
	"io/fs"
	"path/filepath"
	"slices"
	"strings"
)

//go:embed all:minimal
var minimalFS embed.FS

//go:embed all:preact
var preactFS embed.FS

// ScaffoldSuffix marks files whose content has placeholders filled in.
const ScaffoldSuffix = ".scaffold"

var validTemplates = []string{"minimal", "preact"}

var ErrInvalidTemplate = errors.New("invalid template name")

func Names() []string {
	return slices.Clone(validTemplates)
}

func GetTemplate(name string) (fs.FS, error) {
	switch name {
	case "minimal":
		return fs.Sub(minimalFS, "minimal")
	case "preact":
		return fs.Sub(preactFS, "preact")
	default:
		return nil, ErrInvalidTemplate
	}
}

type TemplateData struct {
	Name string
}

func ProcessFilename(filename string) (string, bool) {
	if before, ok := strings.CutSuffix(filename, ScaffoldSuffix); ok {
		return before, true
	}
	return filename, false
}

// ProcessContent only substitutes {{.Name}}; other template actions in
// scaffold files belong to the generated site.
func ProcessContent(content []byte, isTemplate bool, data TemplateData) []byte {
	if !isTemplate {
		return content
	}
	return []byte(strings.ReplaceAll(string(content), "{{.Name}}", data.Name))
}

func DeriveSiteName(siteDir string) string {
	base := filepath.Base(siteDir)
	if base == "." || base == "/" || base == "" {
		return "my-site"
	}
	return base
}
