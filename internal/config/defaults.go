package config

import "github.com/munnellg/tri/internal/space"

// Default values for unset settings.
const (
	DefaultDimension        = 1000
	DefaultSeed             = 10
	DefaultNonZero          = 10
	DefaultContextCacheSize = 10000
	DefaultThreshold        = 0.001
	DefaultSamples          = 1000
	DefaultEndYear          = 9999
)

// ApplyDefaults sets default values for any zero values in cfg.
func ApplyDefaults(cfg *Config) {
	if cfg.Server.Host == "" {
		cfg.Server.Host = "localhost"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Storage.DatabasePath == "" {
		cfg.Storage.DatabasePath = "/usr/local/var/tri/data/db/cooccurrences.db"
	}
	if cfg.Storage.VectorsDir == "" {
		cfg.Storage.VectorsDir = "/usr/local/var/tri/data/vectors"
	}
	if cfg.Storage.BleveIndexPath == "" {
		cfg.Storage.BleveIndexPath = "/usr/local/var/tri/data/indices/terms.bleve"
	}
	if cfg.Space.Dimension == 0 {
		cfg.Space.Dimension = DefaultDimension
	}
	if cfg.Space.Seed == 0 {
		cfg.Space.Seed = DefaultSeed
	}
	if cfg.Space.NonZero == 0 {
		cfg.Space.NonZero = DefaultNonZero
	}
	if cfg.Space.ReaderMode == "" {
		cfg.Space.ReaderMode = string(space.ModeMemory)
	}
	if cfg.Space.ContextCacheSize == 0 {
		cfg.Space.ContextCacheSize = DefaultContextCacheSize
	}
	if cfg.Catalog.EndYear == 0 {
		cfg.Catalog.EndYear = DefaultEndYear
	}
	if cfg.Batch.Threshold == 0 {
		cfg.Batch.Threshold = DefaultThreshold
	}
	if cfg.Batch.Samples == 0 {
		cfg.Batch.Samples = DefaultSamples
	}
}
