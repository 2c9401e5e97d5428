// Package config provides configuration loading and structs for tri.
package config

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the application.
type Config struct {
	Debug   bool          `yaml:"debug"`
	Server  ServerConfig  `yaml:"server"`
	Storage StorageConfig `yaml:"storage"`
	Space   SpaceConfig   `yaml:"space"`
	Catalog CatalogConfig `yaml:"catalog"`
	Cluster ClusterConfig `yaml:"cluster"`
	Batch   BatchConfig   `yaml:"batch"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

// StorageConfig holds paths for the co-occurrence database, the period
// vector files and the term index.
type StorageConfig struct {
	DatabasePath   string `yaml:"database_path"`
	VectorsDir     string `yaml:"vectors_dir"`
	BleveIndexPath string `yaml:"bleve_index_path"`
}

// SpaceConfig holds Random Indexing parameters.
type SpaceConfig struct {
	Dimension int   `yaml:"dimension"`
	Seed      int64 `yaml:"seed"`
	NonZero   int   `yaml:"non_zero"`
	// ReaderMode is "memory" (load whole files) or "file" (stream on demand).
	ReaderMode       string `yaml:"reader_mode"`
	ContextCacheSize int    `yaml:"context_cache_size"`
}

// CatalogConfig selects the period files served from VectorsDir.
type CatalogConfig struct {
	StartYear int   `yaml:"start_year"`
	EndYear   int   `yaml:"end_year"`
	Watch     *bool `yaml:"watch"`
}

// WatchOrDefault returns whether to watch the vectors directory; defaults to true when unset.
func (c *CatalogConfig) WatchOrDefault() bool {
	if c.Watch != nil {
		return *c.Watch
	}
	return true
}

// ClusterConfig holds k-means settings. MaxIterations 0 runs to convergence.
type ClusterConfig struct {
	MaxIterations int `yaml:"max_iterations"`
}

// BatchConfig holds batch similarity settings.
type BatchConfig struct {
	Threshold float64 `yaml:"threshold"`
	Samples   int     `yaml:"samples"`
}

// Load reads and parses the config file at path, expands paths, and applies defaults.
// Returns an error if the file cannot be read or parsed.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	ApplyDefaults(&cfg)

	configDir := filepath.Dir(path)
	cfg.Storage.DatabasePath = expandPath(cfg.Storage.DatabasePath, configDir)
	cfg.Storage.VectorsDir = expandPath(cfg.Storage.VectorsDir, configDir)
	cfg.Storage.BleveIndexPath = expandPath(cfg.Storage.BleveIndexPath, configDir)

	return &cfg, nil
}

// Write encodes cfg as YAML to w.
func Write(w io.Writer, cfg *Config) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(cfg); err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	return enc.Close()
}

// Save writes the config to path.
func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}

// expandPath converts a path to absolute. Paths starting with "./" are relative to configDir;
// other relative paths are relative to the home directory.
func expandPath(path string, configDir string) string {
	if path == "" || filepath.IsAbs(path) {
		return path
	}
	if strings.HasPrefix(path, "./") || path == "." {
		return filepath.Join(configDir, path)
	}
	if home, err := os.UserHomeDir(); err == nil {
		return filepath.Join(home, path)
	}
	return path
}
