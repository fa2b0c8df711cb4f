// Package config defines service configuration structures and loading hooks.
//
// Conventions:
// - Provide New() to build a Config with defaults.
// - Load layers defaults, an optional YAML file and JOBREC_* env vars.
// - External errors are wrapped with this package's sentinel errors.
package config

import (
	"fmt"
	"runtime"
	"time"
)

// Config contains process configuration.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`

	// MetricsAddr is the listen address of the serve command, e.g. ":9090".
	MetricsAddr string `koanf:"metrics_addr"`

	// ArtifactPath points at the SQLite file holding embeddings and scorer weights.
	ArtifactPath string `koanf:"artifact_path"`

	// DatabaseURL is the Postgres DSN of the graph-backed knowledge store.
	DatabaseURL string `koanf:"database_url"`
	// GraphName is the Apache AGE graph queried by the knowledge store.
	GraphName string `koanf:"graph_name"`
	// MaxConns bounds the knowledge store connection pool and in-flight queries.
	MaxConns int `koanf:"max_conns"`
	// QueryTimeoutMS is the per-query timeout.
	QueryTimeoutMS int `koanf:"query_timeout_ms"`
	// MaxRetries is the number of retries after a transient query failure.
	MaxRetries int `koanf:"max_retries"`
	// RetryBackoffMS is the first backoff delay; it doubles per retry.
	RetryBackoffMS int `koanf:"retry_backoff_ms"`
	// ItemCacheSize bounds the item attribute LRU.
	ItemCacheSize int `koanf:"item_cache_size"`

	// Funnel sizes used when a request does not override them.
	RecallK int `koanf:"recall_k"`
	RankK   int `koanf:"rank_k"`
	FinalK  int `koanf:"final_k"`

	// BatchSize is the number of items scored per scorer call.
	BatchSize int `koanf:"batch_size"`
	// RankParallelism bounds concurrently scored batches.
	RankParallelism int `koanf:"rank_parallelism"`
	// FusionParallelism bounds items fused concurrently.
	FusionParallelism int `koanf:"fusion_parallelism"`

	// MinMatchScore drops skill-weighted results below this final score.
	MinMatchScore float64 `koanf:"min_match_score"`

	// Default fusion weights.
	WeightDeep  float64 `koanf:"weight_deep"`
	WeightSkill float64 `koanf:"weight_skill"`
	WeightRule  float64 `koanf:"weight_rule"`
}

// New creates a Config populated with defaults.
func New() *Config {
	return &Config{
		LogLevel:          "info",
		MetricsAddr:       ":9090",
		ArtifactPath:      "artifacts/model.db",
		DatabaseURL:       "",
		GraphName:         "job_graph",
		MaxConns:          16,
		QueryTimeoutMS:    2000,
		MaxRetries:        2,
		RetryBackoffMS:    50,
		ItemCacheSize:     10_000,
		RecallK:           500,
		RankK:             50,
		FinalK:            10,
		BatchSize:         128,
		RankParallelism:   runtime.NumCPU(),
		FusionParallelism: 16,
		MinMatchScore:     0.3,
		WeightDeep:        0.6,
		WeightSkill:       0.3,
		WeightRule:        0.1,
	}
}

// QueryTimeout returns QueryTimeoutMS as a duration.
func (c *Config) QueryTimeout() time.Duration {
	return time.Duration(c.QueryTimeoutMS) * time.Millisecond
}

// RetryBackoff returns RetryBackoffMS as a duration.
func (c *Config) RetryBackoff() time.Duration {
	return time.Duration(c.RetryBackoffMS) * time.Millisecond
}

// Validate checks cross-field constraints.
func (c *Config) Validate() error {
	switch {
	case c.RecallK < 0 || c.RankK < 0 || c.FinalK < 0:
		return fmt.Errorf("%w: funnel sizes must not be negative", ErrInvalidConfig)
	case c.RecallK < c.RankK || c.RankK < c.FinalK:
		return fmt.Errorf("%w: recall_k >= rank_k >= final_k required (got %d, %d, %d)",
			ErrInvalidConfig, c.RecallK, c.RankK, c.FinalK)
	case c.WeightDeep < 0 || c.WeightSkill < 0 || c.WeightRule < 0:
		return fmt.Errorf("%w: fusion weights must not be negative", ErrInvalidConfig)
	case c.BatchSize <= 0:
		return fmt.Errorf("%w: batch_size must be positive", ErrInvalidConfig)
	case c.MaxConns <= 0:
		return fmt.Errorf("%w: max_conns must be positive", ErrInvalidConfig)
	case c.MaxRetries < 0:
		return fmt.Errorf("%w: max_retries must not be negative", ErrInvalidConfig)
	case c.QueryTimeoutMS <= 0:
		return fmt.Errorf("%w: query_timeout_ms must be positive", ErrInvalidConfig)
	case c.ItemCacheSize <= 0:
		return fmt.Errorf("%w: item_cache_size must be positive", ErrInvalidConfig)
	}
	return nil
}
