package catalog_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/lumen-edu/progress-engine/internal/catalog"
)

func TestCatalog_LoadModules(t *testing.T) {
	dir := setupTestCatalog(t)

	c, err := catalog.NewCatalog(dir)
	if err != nil {
		t.Fatalf("NewCatalog() error = %v", err)
	}

	ids := c.ModuleIDs()
	if len(ids) != 2 {
		t.Errorf("ModuleIDs() = %d modules, want 2", len(ids))
	}
	if ids[0] != "anatomy-heart" || ids[1] != "chem-atoms" {
		t.Errorf("ModuleIDs() = %v, want sorted [anatomy-heart chem-atoms]", ids)
	}
}

func TestCatalog_GetModule(t *testing.T) {
	dir := setupTestCatalog(t)

	c, err := catalog.NewCatalog(dir)
	if err != nil {
		t.Fatalf("NewCatalog() error = %v", err)
	}

	mod, found := c.GetModule("anatomy-heart")
	if !found {
		t.Fatal("GetModule(anatomy-heart) not found")
	}
	if mod.Title == "" {
		t.Error("Module.Title is empty")
	}
	if len(mod.Parts) != 2 {
		t.Errorf("Module.Parts = %d, want 2", len(mod.Parts))
	}
}

func TestCatalog_GetModule_NotFound(t *testing.T) {
	dir := setupTestCatalog(t)

	c, err := catalog.NewCatalog(dir)
	if err != nil {
		t.Fatalf("NewCatalog() error = %v", err)
	}

	_, found := c.GetModule("NONEXISTENT")
	if found {
		t.Error("GetModule(NONEXISTENT) should not be found")
	}
}

func TestCatalog_TotalExercises(t *testing.T) {
	dir := setupTestCatalog(t)

	c, err := catalog.NewCatalog(dir)
	if err != nil {
		t.Fatalf("NewCatalog() error = %v", err)
	}

	total, ok := c.TotalExercises("anatomy-heart")
	if !ok {
		t.Fatal("TotalExercises(anatomy-heart) not found")
	}
	if total != 8 {
		t.Errorf("TotalExercises() = %d, want 8 (5+3)", total)
	}

	if _, ok := c.TotalExercises("NONEXISTENT"); ok {
		t.Error("TotalExercises(NONEXISTENT) should not be found")
	}
}

func TestCatalog_SkipsAssetManifests(t *testing.T) {
	dir := setupTestCatalog(t)

	modulesDir := filepath.Join(dir, "modules")
	os.WriteFile(filepath.Join(modulesDir, "heart.assets.yaml"), []byte(`
id: anatomy-heart-assets
models:
  - heart.glb
`), 0o644)

	c, err := catalog.NewCatalog(dir)
	if err != nil {
		t.Fatalf("NewCatalog() error = %v", err)
	}

	if len(c.ModuleIDs()) != 2 {
		t.Errorf("ModuleIDs() = %d, want 2 (asset manifest should be skipped)", len(c.ModuleIDs()))
	}
}

func TestCatalog_EmptyDir(t *testing.T) {
	dir := t.TempDir()

	c, err := catalog.NewCatalog(dir)
	if err != nil {
		t.Fatalf("NewCatalog() error = %v", err)
	}

	if len(c.ModuleIDs()) != 0 {
		t.Errorf("ModuleIDs() = %d, want 0 for empty dir", len(c.ModuleIDs()))
	}
}

func setupTestCatalog(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()

	modulesDir := filepath.Join(dir, "modules")
	os.MkdirAll(modulesDir, 0o755)

	os.WriteFile(filepath.Join(modulesDir, "anatomy-heart.yaml"), []byte(`
id: anatomy-heart
title: "The Human Heart"
subject: anatomy
level: secondary
parts:
  - id: chambers
    title: "Chambers of the Heart"
    exercises: 5
  - id: valves
    title: "Valves & Blood Flow"
    exercises: 3
viewer:
  scene: heart_scene
  ar_model: heart.glb
revision: 2
`), 0o644)

	os.WriteFile(filepath.Join(modulesDir, "chem-atoms.yaml"), []byte(`
id: chem-atoms
title: "Atoms & Elements"
subject: chemistry
level: secondary
parts:
  - id: structure
    title: "Atomic Structure"
    exercises: 4
revision: 1
`), 0o644)

	return dir
}
