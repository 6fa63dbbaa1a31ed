package sourcing

import (
	"context"
	"fmt"
	"path/filepath"
	"slices"
	"strings"
	"sync"
)

// SourceFunc is user sourcing code. It declares pages through actions and
// returns when its work is complete.
type SourceFunc func(ctx context.Context, actions Actions) error

const goModulePrefix = "go:"

var (
	registryMu sync.RWMutex
	registry   = map[string]SourceFunc{}
)

// Register makes fn loadable as module "go:<name>". It panics on a
// duplicate name, like database/sql.Register.
func Register(name string, fn SourceFunc) {
	registryMu.Lock()
	defer registryMu.Unlock()
	if fn == nil {
		panic("sourcing: Register source is nil")
	}
	if _, dup := registry[name]; dup {
		panic("sourcing: Register called twice for source " + name)
	}
	registry[name] = fn
}

// Registered lists the names of registered Go sources.
func Registered() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// LoadModule resolves a module path to a SourceFunc: "go:<name>" refers to
// a registered function, .yaml/.yml/.json files are declarative modules.
func LoadModule(modulePath string) (SourceFunc, error) {
	if name, ok := strings.CutPrefix(modulePath, goModulePrefix); ok {
		registryMu.RLock()
		fn, found := registry[name]
		registryMu.RUnlock()
		if !found {
			return nil, fmt.Errorf("no Go source registered as %q (registered: %s)", name, strings.Join(Registered(), ", "))
		}
		return fn, nil
	}

	switch strings.ToLower(filepath.Ext(modulePath)) {
	case ".yaml", ".yml", ".json":
		return LoadDeclarative(modulePath)
	default:
		return nil, fmt.Errorf("unsupported source module %s: expected go:<name> or a .yaml/.yml/.json file", modulePath)
	}
}
