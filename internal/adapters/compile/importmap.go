package compile

import (
	"encoding/json"
	"errors"
	"fmt"
	"maps"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/3-lines-studio/toast/internal/core"
)

// WebModulesDir is where browser builds of bare specifiers are served from.
const WebModulesDir = "/" + core.WebModulesDir

// ImportMap maps bare module specifiers to browser URLs. It uses the shape
// of a browser import map so it can be written into documents unchanged.
type ImportMap struct {
	Imports map[string]string `json:"imports"`
}

// DefaultImportMap points the runtime packages at runtimeModule and its
// siblings: "preact" -> runtimeModule, "preact/hooks" -> <dir>/preact/hooks.js.
func DefaultImportMap(runtimeModule string) *ImportMap {
	dir := path.Dir(runtimeModule)
	return &ImportMap{Imports: map[string]string{
		"preact":       runtimeModule,
		"preact/hooks": path.Join(dir, "preact", "hooks.js"),
	}}
}

// ParseImportMap decodes an import-map.json. Values starting with "./" are
// relative to WebModulesDir.
func ParseImportMap(data []byte) (*ImportMap, error) {
	var m ImportMap
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("invalid import map: %w", err)
	}
	for spec, target := range m.Imports {
		if rest, ok := strings.CutPrefix(target, "./"); ok {
			m.Imports[spec] = path.Join(WebModulesDir, rest)
		}
	}
	return &m, nil
}

// LoadImportMap is the default map for runtimeModule overlaid with the
// site's web_modules/import-map.json when it exists.
func LoadImportMap(siteDir, runtimeModule string) (*ImportMap, error) {
	base := DefaultImportMap(runtimeModule)
	data, err := os.ReadFile(filepath.Join(siteDir, core.WebModulesDir, "import-map.json"))
	if errors.Is(err, os.ErrNotExist) {
		return base, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read import map: %w", err)
	}
	site, err := ParseImportMap(data)
	if err != nil {
		return nil, err
	}
	return base.Merge(site), nil
}

// Merge returns a copy of m with other's entries taking precedence.
func (m *ImportMap) Merge(other *ImportMap) *ImportMap {
	out := &ImportMap{Imports: make(map[string]string)}
	if m != nil {
		maps.Copy(out.Imports, m.Imports)
	}
	if other != nil {
		maps.Copy(out.Imports, other.Imports)
	}
	return out
}

// Resolve rewrites an import specifier for the browser. Mapped specifiers
// use the map, other bare specifiers resolve under WebModulesDir and
// extensionless relative imports get a .js extension.
func (m *ImportMap) Resolve(spec string) string {
	if m != nil {
		if target, ok := m.Imports[spec]; ok {
			return target
		}
	}
	if isURL(spec) {
		return spec
	}
	if isRelative(spec) {
		if path.Ext(spec) == "" {
			return spec + ".js"
		}
		return spec
	}
	return path.Join(WebModulesDir, spec) + ".js"
}

func isRelative(spec string) bool {
	return strings.HasPrefix(spec, "/") || strings.HasPrefix(spec, "./") || strings.HasPrefix(spec, "../")
}

func isURL(spec string) bool {
	return strings.HasPrefix(spec, "http://") || strings.HasPrefix(spec, "https://") || strings.HasPrefix(spec, "data:")
}
