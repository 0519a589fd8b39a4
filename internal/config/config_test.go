package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDefault(t *testing.T) {
	cfg := Default()

	if cfg.Detection.MaxSearchDepth != 3 {
		t.Errorf("MaxSearchDepth = %d, want 3", cfg.Detection.MaxSearchDepth)
	}
	if len(cfg.Detection.FileExtensions) == 0 {
		t.Error("FileExtensions empty")
	}
	if cfg.Correction.SimilarityThreshold != 0.7 {
		t.Errorf("SimilarityThreshold = %v, want 0.7", cfg.Correction.SimilarityThreshold)
	}
	if cfg.Correction.ContextWindow != 5 {
		t.Errorf("ContextWindow = %d, want 5", cfg.Correction.ContextWindow)
	}
	if !cfg.Correction.FuzzyEnabled() {
		t.Error("fuzzy search disabled by default")
	}
	if cfg.Security.MaxFileSizeMB != 10 {
		t.Errorf("MaxFileSizeMB = %d, want 10", cfg.Security.MaxFileSizeMB)
	}
	if cfg.Security.MaxHunksPerPatch != 100 {
		t.Errorf("MaxHunksPerPatch = %d, want 100", cfg.Security.MaxHunksPerPatch)
	}
	if cfg.Security.MaxHunkLines != 1000 {
		t.Errorf("MaxHunkLines = %d, want 1000", cfg.Security.MaxHunkLines)
	}
	if !cfg.Security.ScanEnabled() {
		t.Error("dangerous-pattern scan disabled by default")
	}
	if cfg.Security.AllowSystemCalls {
		t.Error("system calls allowed by default")
	}
}

func TestLoadOverridesAndDefaults(t *testing.T) {
	yamlText := `
correction:
  similarity_threshold: 0.9
  fuzzy_search_enabled: false
security:
  max_hunks_per_patch: 5
  allow_system_calls: true
output:
  dir: /tmp/patched
`
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(yamlText), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.Correction.SimilarityThreshold != 0.9 {
		t.Errorf("SimilarityThreshold = %v, want 0.9", cfg.Correction.SimilarityThreshold)
	}
	if cfg.Correction.FuzzyEnabled() {
		t.Error("fuzzy search should be disabled")
	}
	if cfg.Security.MaxHunksPerPatch != 5 {
		t.Errorf("MaxHunksPerPatch = %d, want 5", cfg.Security.MaxHunksPerPatch)
	}
	if !cfg.Security.AllowSystemCalls {
		t.Error("AllowSystemCalls should be true")
	}
	if cfg.Output.Dir != "/tmp/patched" {
		t.Errorf("Output.Dir = %q", cfg.Output.Dir)
	}

	// Unset fields still get defaults.
	if cfg.Correction.ContextWindow != 5 {
		t.Errorf("ContextWindow = %d, want default 5", cfg.Correction.ContextWindow)
	}
	if cfg.Security.MaxFileSizeMB != 10 {
		t.Errorf("MaxFileSizeMB = %d, want default 10", cfg.Security.MaxFileSizeMB)
	}
}

func TestLoadResolvesBaseDir(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte("detection:\n  base_dir: .\n"), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if !filepath.IsAbs(cfg.Detection.BaseDir) {
		t.Errorf("BaseDir = %q, want absolute path", cfg.Detection.BaseDir)
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestLoadMalformedYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("correction: [not a map\n"), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(path); err == nil {
		t.Error("expected error for malformed yaml")
	}
}
