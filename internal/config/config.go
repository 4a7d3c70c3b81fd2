// Package config loads the build/search configuration shared by the text
// and image pipelines: normalizer language, SPIMI flush thresholds,
// k-means parameters, and corpus-cache TTL.
//
// Load returns a fresh, immutable value per call rather than a process-wide
// singleton. Per-corpus state belongs to the caller, not to package
// globals, so multiple corpora with different settings can be built or
// searched concurrently in the same process without contending over shared
// config state.
package config

import (
	_ "embed"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/sondeo/sondeo/internal/ierrors"
)

//go:embed defaults.yaml
var defaultsYAML []byte

// TextConfig configures the normalizer and SPIMI block builder.
type TextConfig struct {
	Language          string `yaml:"language"`
	Stopwords         string `yaml:"stopwords"`
	MemoryBudgetBytes int    `yaml:"memory_budget_bytes"`
	FlushDocCount     int    `yaml:"flush_doc_count"`
}

// ImageConfig configures the visual vocabulary trainer and image indexer.
type ImageConfig struct {
	K             int `yaml:"k"`
	SampleSize    int `yaml:"sample_size"`
	BatchSize     int `yaml:"batch_size"`
	MaxIterations int `yaml:"max_iterations"`
}

// CacheConfig configures the corpus cache (internal/corpuscache).
type CacheConfig struct {
	TTLHours int `yaml:"ttl_hours"`
}

// Config is the fully resolved, immutable build/search configuration.
type Config struct {
	Text  TextConfig  `yaml:"text"`
	Image ImageConfig `yaml:"image"`
	Cache CacheConfig `yaml:"cache"`
}

// TTL returns the corpus cache entry lifetime as a time.Duration.
func (c Config) TTL() time.Duration {
	return time.Duration(c.Cache.TTLHours) * time.Hour
}

// Default returns the embedded default configuration.
func Default() Config {
	var cfg Config
	if err := yaml.Unmarshal(defaultsYAML, &cfg); err != nil {
		// The embedded defaults are part of the binary; a parse failure here
		// is a build-time programming error, not a runtime condition.
		panic(fmt.Sprintf("config: embedded defaults.yaml is invalid: %v", err))
	}
	return cfg
}

// Load reads a YAML configuration file at path, layering it over the
// embedded defaults (fields absent from the file keep their default
// value). An empty path returns the defaults unchanged.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, ierrors.MissingArtifact("config.Load", err)
		}
		return cfg, ierrors.IO("config.Load", err)
	}

	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, ierrors.Config("config.Load", err)
	}

	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// Validate checks configuration invariants, returning a *ierrors.Error with
// ierrors.KindConfig on the first violation found.
func (c Config) Validate() error {
	switch c.Text.Language {
	case "spanish", "english":
	default:
		return ierrors.Config("Config.Validate", fmt.Errorf("unknown stemmer language %q", c.Text.Language))
	}
	if c.Text.MemoryBudgetBytes <= 0 && c.Text.FlushDocCount <= 0 {
		return ierrors.Config("Config.Validate", fmt.Errorf("at least one of memory_budget_bytes or flush_doc_count must be > 0"))
	}
	if c.Image.K <= 0 {
		return ierrors.Config("Config.Validate", fmt.Errorf("image.k must be > 0, got %d", c.Image.K))
	}
	if c.Image.SampleSize <= 0 {
		return ierrors.Config("Config.Validate", fmt.Errorf("image.sample_size must be > 0, got %d", c.Image.SampleSize))
	}
	if c.Image.BatchSize <= 0 {
		return ierrors.Config("Config.Validate", fmt.Errorf("image.batch_size must be > 0, got %d", c.Image.BatchSize))
	}
	if c.Image.MaxIterations <= 0 {
		return ierrors.Config("Config.Validate", fmt.Errorf("image.max_iterations must be > 0, got %d", c.Image.MaxIterations))
	}
	return nil
}
