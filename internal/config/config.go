package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Config holds all engine settings. Components receive the sections they
// need through their constructors; there is no process-wide registry.
type Config struct {
	Detection  DetectionConfig  `yaml:"detection"`
	Correction CorrectionConfig `yaml:"correction"`
	Security   SecurityConfig   `yaml:"security"`
	Output     OutputConfig     `yaml:"output"`
	Logging    LoggingConfig    `yaml:"logging"`
}

// DetectionConfig configures target file resolution.
type DetectionConfig struct {
	FileExtensions []string `yaml:"file_extensions"`
	MaxSearchDepth int      `yaml:"max_search_depth"`
	BaseDir        string   `yaml:"base_dir"`
}

// CorrectionConfig configures line number correction.
type CorrectionConfig struct {
	SimilarityThreshold float64 `yaml:"similarity_threshold"`
	FuzzySearchEnabled  *bool   `yaml:"fuzzy_search_enabled"` // nil = default true
	ContextWindow       int     `yaml:"context_window"`
}

// FuzzyEnabled returns whether fuzzy search is on, defaulting to true.
func (c *CorrectionConfig) FuzzyEnabled() bool {
	if c.FuzzySearchEnabled == nil {
		return true
	}
	return *c.FuzzySearchEnabled
}

// SecurityConfig configures hard resource caps and the security scan.
type SecurityConfig struct {
	MaxFileSizeMB         int   `yaml:"max_file_size_mb"`
	MaxHunksPerPatch      int   `yaml:"max_hunks_per_patch"`
	MaxHunkLines          int   `yaml:"max_hunk_lines"`
	MaxLineLength         int   `yaml:"max_line_length"`
	ScanDangerousPatterns *bool `yaml:"scan_dangerous_patterns"` // nil = default true
	AllowSystemCalls      bool  `yaml:"allow_system_calls"`
}

// ScanEnabled returns whether the dangerous-pattern scan is on, defaulting
// to true.
func (s *SecurityConfig) ScanEnabled() bool {
	if s.ScanDangerousPatterns == nil {
		return true
	}
	return *s.ScanDangerousPatterns
}

// OutputConfig configures where patched content is written.
type OutputConfig struct {
	// Dir receives patched files when set. When empty, output is written
	// next to the target with a .patched suffix.
	Dir string `yaml:"dir"`
}

// LoggingConfig configures the zap logger.
type LoggingConfig struct {
	File        string `yaml:"file"`
	Development bool   `yaml:"development"`
}

// Default returns a Config with all defaults applied, usable without a file.
func Default() *Config {
	cfg := &Config{}
	cfg.applyDefaults()
	return cfg
}

// Load reads a YAML config file and fills in defaults for anything unset.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	// Resolve base dir to an absolute path so search order is stable
	// regardless of the process working directory.
	if cfg.Detection.BaseDir != "" {
		abs, err := filepath.Abs(cfg.Detection.BaseDir)
		if err != nil {
			return nil, fmt.Errorf("resolve base dir: %w", err)
		}
		cfg.Detection.BaseDir = abs
	}

	cfg.applyDefaults()
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if len(c.Detection.FileExtensions) == 0 {
		c.Detection.FileExtensions = []string{
			".py", ".js", ".ts", ".php", ".java", ".go", ".c", ".cpp",
		}
	}
	if c.Detection.MaxSearchDepth == 0 {
		c.Detection.MaxSearchDepth = 3
	}
	if c.Correction.SimilarityThreshold == 0 {
		c.Correction.SimilarityThreshold = 0.7
	}
	if c.Correction.ContextWindow == 0 {
		c.Correction.ContextWindow = 5
	}
	if c.Security.MaxFileSizeMB == 0 {
		c.Security.MaxFileSizeMB = 10
	}
	if c.Security.MaxHunksPerPatch == 0 {
		c.Security.MaxHunksPerPatch = 100
	}
	if c.Security.MaxHunkLines == 0 {
		c.Security.MaxHunkLines = 1000
	}
	if c.Security.MaxLineLength == 0 {
		c.Security.MaxLineLength = 1000
	}
}
