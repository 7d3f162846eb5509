package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/knadh/koanf/parsers/json"
	"github.com/knadh/koanf/parsers/toml"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	"github.com/panbanda/cpd/pkg/language"
)

// ErrInvalid is wrapped by every Validate failure.
var ErrInvalid = errors.New("invalid configuration")

// Config holds all configuration options for cpd.
type Config struct {
	// Detection settings
	Duplicates DuplicateConfig `koanf:"duplicates"`

	// File exclusion patterns
	Exclude ExcludeConfig `koanf:"exclude"`

	// Cache settings
	Cache CacheConfig `koanf:"cache"`

	// Output settings
	Output OutputConfig `koanf:"output"`

	// Custom tokenizer profiles, added to or replacing the built-ins by name
	Languages []language.Definition `koanf:"languages"`
}

// DuplicateConfig controls block chunking and reporting.
type DuplicateConfig struct {
	BlockSize   int   `koanf:"block_size"`    // lines (or statements) per block
	MinTokens   int   `koanf:"min_tokens"`    // shortest reported clone
	MaxFileSize int64 `koanf:"max_file_size"` // bytes, 0 means unlimited
	Workers     int   `koanf:"workers"`       // 0 means 2x NumCPU
}

// ExcludeConfig defines file exclusion patterns.
type ExcludeConfig struct {
	Patterns   []string `koanf:"patterns"`
	Extensions []string `koanf:"extensions"`
	Dirs       []string `koanf:"dirs"`
	Gitignore  bool     `koanf:"gitignore"`
}

// CacheConfig controls caching behavior.
type CacheConfig struct {
	Enabled bool   `koanf:"enabled"`
	Dir     string `koanf:"dir"`
	TTL     int    `koanf:"ttl"` // TTL in hours
}

// OutputConfig controls output formatting.
type OutputConfig struct {
	Format  string `koanf:"format"` // text, json, markdown, toon
	Color   bool   `koanf:"color"`
	Verbose bool   `koanf:"verbose"`
}

// DefaultDuplicateConfig returns the detection defaults.
func DefaultDuplicateConfig() DuplicateConfig {
	return DuplicateConfig{
		BlockSize:   10,
		MinTokens:   100,
		MaxFileSize: 1 << 20,
	}
}

// DefaultConfig returns a config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Duplicates: DefaultDuplicateConfig(),
		Exclude: ExcludeConfig{
			Patterns: []string{
				"*.min.js",
				"*.min.css",
				"*.pb.go",
				"*_generated.go",
			},
			Extensions: []string{
				".lock",
				".sum",
			},
			Dirs: []string{
				"vendor",
				"node_modules",
				".git",
				".cpd",
				"dist",
				"build",
				"__pycache__",
			},
			Gitignore: true,
		},
		Cache: CacheConfig{
			Enabled: true,
			Dir:     ".cpd/cache",
			TTL:     24,
		},
		Output: OutputConfig{
			Format: "text",
			Color:  true,
		},
	}
}

// Validate reports configuration errors. They are fatal for a run.
func (c *Config) Validate() error {
	var errs []error
	if c.Duplicates.BlockSize <= 0 {
		errs = append(errs, fmt.Errorf("%w: duplicates.block_size must be positive, got %d", ErrInvalid, c.Duplicates.BlockSize))
	}
	if c.Duplicates.MinTokens < 0 {
		errs = append(errs, fmt.Errorf("%w: duplicates.min_tokens must not be negative, got %d", ErrInvalid, c.Duplicates.MinTokens))
	}
	if c.Duplicates.MaxFileSize < 0 {
		errs = append(errs, fmt.Errorf("%w: duplicates.max_file_size must not be negative", ErrInvalid))
	}
	if c.Duplicates.Workers < 0 {
		errs = append(errs, fmt.Errorf("%w: duplicates.workers must not be negative", ErrInvalid))
	}
	if c.Cache.Enabled && c.Cache.TTL < 0 {
		errs = append(errs, fmt.Errorf("%w: cache.ttl must not be negative", ErrInvalid))
	}
	switch c.Output.Format {
	case "", "text", "json", "markdown", "toon":
	default:
		errs = append(errs, fmt.Errorf("%w: unknown output.format %q", ErrInvalid, c.Output.Format))
	}
	for _, def := range c.Languages {
		if _, err := language.NewProfile(def); err != nil {
			errs = append(errs, fmt.Errorf("%w: languages: %w", ErrInvalid, err))
		}
	}
	return errors.Join(errs...)
}

// Registry returns the built-in language profiles extended with the
// configured ones.
func (c *Config) Registry() (*language.Registry, error) {
	reg, err := language.NewRegistry()
	if err != nil {
		return nil, err
	}
	for _, def := range c.Languages {
		if err := reg.Register(def); err != nil {
			return nil, err
		}
	}
	if err := reg.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalid, err)
	}
	return reg, nil
}

// Load loads configuration from a file.
func Load(path string) (*Config, error) {
	k := koanf.New(".")
	cfg := DefaultConfig()

	// Determine parser based on extension
	var parser koanf.Parser
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		parser = yaml.Parser()
	case ".json":
		parser = json.Parser()
	default:
		parser = toml.Parser()
	}

	if err := k.Load(file.Provider(path), parser); err != nil {
		return nil, fmt.Errorf("loading config %s: %w", path, err)
	}

	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("decoding config %s: %w", path, err)
	}

	return cfg, nil
}

// Find returns the first config file found in the standard locations, or
// "" when there is none.
func Find() string {
	configNames := []string{
		"cpd.toml",
		"cpd.yaml",
		"cpd.yml",
		"cpd.json",
		".cpd.toml",
		".cpd.yaml",
		".cpd.yml",
		".cpd.json",
	}

	// Search in current directory and .cpd directory
	for _, dir := range []string{".", ".cpd"} {
		for _, name := range configNames {
			path := filepath.Join(dir, name)
			if _, err := os.Stat(path); err == nil {
				return path
			}
		}
	}
	return ""
}

// LoadOrDefault loads the first config found in the standard locations, or
// returns defaults when there is none. A config that exists but does not
// parse is an error.
func LoadOrDefault() (*Config, error) {
	path := Find()
	if path == "" {
		return DefaultConfig(), nil
	}
	return Load(path)
}

// ShouldExclude checks if a path should be excluded from analysis.
func (c *Config) ShouldExclude(path string) bool {
	sep := string(filepath.Separator)
	for _, dir := range c.Exclude.Dirs {
		if strings.Contains(path, sep+dir+sep) || strings.HasPrefix(path, dir+sep) {
			return true
		}
	}

	ext := filepath.Ext(path)
	for _, excludeExt := range c.Exclude.Extensions {
		if ext == excludeExt {
			return true
		}
	}

	base := filepath.Base(path)
	for _, pattern := range c.Exclude.Patterns {
		if matched, _ := filepath.Match(pattern, base); matched {
			return true
		}
	}

	return false
}
