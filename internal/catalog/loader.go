package catalog

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"
)

// Catalog loads and caches the known content modules from the filesystem.
// It is the fixed set of module identifiers the all-modules progress query
// iterates.
type Catalog struct {
	rootDir string
	modules map[string]Module
	mu      sync.RWMutex
}

// NewCatalog creates a catalog and loads all module definitions under
// rootDir.
func NewCatalog(rootDir string) (*Catalog, error) {
	c := &Catalog{
		rootDir: rootDir,
		modules: make(map[string]Module),
	}

	if err := c.loadAll(); err != nil {
		return nil, fmt.Errorf("loading module catalog: %w", err)
	}

	slog.Info("module catalog loaded", "modules", len(c.modules))
	return c, nil
}

// GetModule returns a module by ID.
func (c *Catalog) GetModule(id string) (Module, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	m, ok := c.modules[id]
	return m, ok
}

// ModuleIDs returns all known module IDs in stable order.
func (c *Catalog) ModuleIDs() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	ids := make([]string, 0, len(c.modules))
	for id := range c.modules {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// TotalExercises returns the exercise count for a module, summed across its
// parts. The second return is false for unknown modules.
func (c *Catalog) TotalExercises(id string) (int, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	m, ok := c.modules[id]
	if !ok {
		return 0, false
	}
	return m.TotalExercises(), true
}

func (c *Catalog) loadAll() error {
	return filepath.Walk(c.rootDir, func(path string, info os.FileInfo, err error) error {
		if err != nil || info.IsDir() {
			return nil
		}

		if !strings.HasSuffix(path, ".yaml") && !strings.HasSuffix(path, ".yml") {
			return nil
		}
		if strings.HasSuffix(path, ".assets.yaml") {
			return nil // Asset manifests belong to the viewer, not the engine
		}
		return c.loadModule(path)
	})
}

func (c *Catalog) loadModule(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	var mod Module
	if err := yaml.Unmarshal(data, &mod); err != nil {
		slog.Warn("skipping invalid module YAML", "path", path, "error", err)
		return nil
	}

	if mod.ID == "" {
		return nil // Not a module file
	}

	c.mu.Lock()
	c.modules[mod.ID] = mod
	c.mu.Unlock()

	return nil
}
