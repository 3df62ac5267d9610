// Package config provides configuration loading and validation for Parapet.
package config

import (
	"fmt"
	"math"
	"os"
	"regexp"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/parapet-sh/parapet/internal/models"
)

// regionPattern matches AWS region identifiers like us-east-1 or ap-southeast-2.
var regionPattern = regexp.MustCompile(`^[a-z]{2}(-[a-z]+)+-\d$`)

// Config is the complete engine configuration.
type Config struct {
	Weights         map[string]float64 `yaml:"pillar_weights,omitempty"`
	Scope           ScopeConfig        `yaml:"scope"`
	Cache           CacheConfig        `yaml:"cache,omitempty"`
	Sources         []string           `yaml:"sources,omitempty"`
	Aggregator      AggregatorConfig   `yaml:"aggregator,omitempty"`
	Recommendations RecommendConfig    `yaml:"recommendations,omitempty"`
}

// ScopeConfig constrains assessments to one account and region.
type ScopeConfig struct {
	Region    string `yaml:"region"`
	AccountID string `yaml:"account_id,omitempty"`
	Profile   string `yaml:"profile,omitempty"`
}

// AggregatorConfig controls fan-out behavior.
type AggregatorConfig struct {
	MaxWorkers    int           `yaml:"max_workers,omitempty"`
	SourceTimeout time.Duration `yaml:"source_timeout,omitempty"`
	Deadline      time.Duration `yaml:"deadline,omitempty"`
	RetryAttempts int           `yaml:"retry_attempts,omitempty"`
}

// CacheConfig controls the assessment context store.
type CacheConfig struct {
	Backend       string        `yaml:"backend,omitempty"` // memory or bolt
	Path          string        `yaml:"path,omitempty"`
	TTL           time.Duration `yaml:"ttl,omitempty"`
	SweepInterval time.Duration `yaml:"sweep_interval,omitempty"`
}

// RecommendConfig controls recommendation output.
type RecommendConfig struct {
	Limit int `yaml:"limit,omitempty"`
}

// Default returns a configuration with every tunable at its default.
func Default() *Config {
	return &Config{
		Scope: ScopeConfig{Region: "us-east-1"},
		Aggregator: AggregatorConfig{
			MaxWorkers:    4,
			SourceTimeout: 10 * time.Second,
			Deadline:      45 * time.Second,
			RetryAttempts: 2,
		},
		Cache: CacheConfig{
			Backend:       "memory",
			TTL:           15 * time.Minute,
			SweepInterval: 5 * time.Minute,
		},
		Recommendations: RecommendConfig{Limit: 5},
	}
}

// Load reads and parses a YAML configuration file, applying defaults for
// anything left unset.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path) //nolint:gosec // Path comes from the operator.
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config YAML: %w", err)
	}

	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

func (c *Config) applyDefaults() {
	d := Default()
	if c.Aggregator.MaxWorkers == 0 {
		c.Aggregator.MaxWorkers = d.Aggregator.MaxWorkers
	}
	if c.Aggregator.SourceTimeout == 0 {
		c.Aggregator.SourceTimeout = d.Aggregator.SourceTimeout
	}
	if c.Aggregator.Deadline == 0 {
		c.Aggregator.Deadline = d.Aggregator.Deadline
	}
	if c.Aggregator.RetryAttempts == 0 {
		c.Aggregator.RetryAttempts = d.Aggregator.RetryAttempts
	}
	if c.Cache.Backend == "" {
		c.Cache.Backend = d.Cache.Backend
	}
	if c.Cache.TTL == 0 {
		c.Cache.TTL = d.Cache.TTL
	}
	if c.Cache.SweepInterval == 0 {
		c.Cache.SweepInterval = d.Cache.SweepInterval
	}
	if c.Recommendations.Limit == 0 {
		c.Recommendations.Limit = d.Recommendations.Limit
	}
}

// Validate checks the configuration for internal consistency.
func (c *Config) Validate() error {
	if c.Scope.Region == "" {
		return fmt.Errorf("scope.region is required")
	}
	if !ValidRegion(c.Scope.Region) {
		return fmt.Errorf("scope.region %q is not a valid region identifier", c.Scope.Region)
	}

	for _, name := range c.Sources {
		if !validSource(name) {
			return fmt.Errorf("unknown source %q", name)
		}
	}

	if c.Aggregator.MaxWorkers < 1 {
		return fmt.Errorf("aggregator.max_workers must be at least 1")
	}
	if c.Aggregator.SourceTimeout <= 0 {
		return fmt.Errorf("aggregator.source_timeout must be positive")
	}
	if c.Aggregator.Deadline < c.Aggregator.SourceTimeout {
		return fmt.Errorf("aggregator.deadline must be at least the source timeout")
	}
	if c.Aggregator.RetryAttempts < 0 {
		return fmt.Errorf("aggregator.retry_attempts must not be negative")
	}

	switch c.Cache.Backend {
	case "memory":
	case "bolt":
		if c.Cache.Path == "" {
			return fmt.Errorf("cache.path is required for the bolt backend")
		}
	default:
		return fmt.Errorf("unknown cache backend %q (want memory or bolt)", c.Cache.Backend)
	}

	if len(c.Weights) > 0 {
		if err := validateWeights(c.Weights); err != nil {
			return err
		}
	}

	if c.Recommendations.Limit < 0 {
		return fmt.Errorf("recommendations.limit must not be negative")
	}

	return nil
}

// EnabledSources resolves the configured source list; an empty list means
// every known source.
func (c *Config) EnabledSources() []models.Source {
	if len(c.Sources) == 0 {
		return models.AllSources()
	}
	sources := make([]models.Source, 0, len(c.Sources))
	for _, name := range c.Sources {
		sources = append(sources, models.Source(name))
	}
	return sources
}

// PillarWeights returns the configured weight overrides keyed by pillar, or
// nil when the defaults should be used.
func (c *Config) PillarWeights() map[models.Pillar]float64 {
	if len(c.Weights) == 0 {
		return nil
	}
	weights := make(map[models.Pillar]float64, len(c.Weights))
	for name, w := range c.Weights {
		weights[models.Pillar(name)] = w
	}
	return weights
}

// ValidRegion reports whether s looks like a region identifier.
func ValidRegion(s string) bool {
	return regionPattern.MatchString(s)
}

func validSource(name string) bool {
	for _, s := range models.AllSources() {
		if string(s) == name {
			return true
		}
	}
	return false
}

func validateWeights(weights map[string]float64) error {
	scored := make(map[string]bool, 5)
	for _, p := range models.ScoredPillars() {
		scored[string(p)] = true
	}

	sum := 0.0
	for name, w := range weights {
		if !scored[name] {
			return fmt.Errorf("pillar_weights: unknown pillar %q", name)
		}
		if w < 0 {
			return fmt.Errorf("pillar_weights: weight for %s must not be negative", name)
		}
		sum += w
	}
	if len(weights) != len(scored) {
		return fmt.Errorf("pillar_weights: all %d scored pillars must be weighted", len(scored))
	}
	if math.Abs(sum-1.0) > 1e-9 {
		return fmt.Errorf("pillar_weights: weights must sum to 1.0, got %v", sum)
	}
	return nil
}
