package main

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/Aruomeng/JobRec-KG/internal/adapters/artifact"
	"github.com/Aruomeng/JobRec-KG/internal/adapters/knowledge"
	"github.com/Aruomeng/JobRec-KG/internal/app"
	"github.com/Aruomeng/JobRec-KG/internal/config"
	"github.com/Aruomeng/JobRec-KG/internal/domain/model"
	"github.com/Aruomeng/JobRec-KG/internal/domain/recall"
	"github.com/Aruomeng/JobRec-KG/pkg/logger"
)

const (
	retryMaxWait = time.Second
	retryBudget  = 50
	retryBurst   = 100
)

// stack is everything a command needs to serve recommendations.
type stack struct {
	cfg   *config.Config
	log   logger.Logger
	svc   *app.Service
	cache *knowledge.CachedStore
	close func()
}

// loadConfig loads configuration and applies its log level.
func loadConfig(ctx context.Context) (*config.Config, logger.Logger, error) {
	log := logger.Get()
	cfg, err := config.Load(ctx, configPath)
	if err != nil {
		return nil, log, err
	}
	// Apply configured log level (fallback to info on invalid input)
	if err := logger.SetLevelString(cfg.LogLevel); err != nil {
		log.Warn(ctx, "invalid log_level; falling back to info",
			logger.String("log_level", cfg.LogLevel), logger.Error(err))
		_ = logger.SetLevelString("info")
	}
	return cfg, log, nil
}

// loadIndex reads the artifact and builds the recall index from its items.
func loadIndex(ctx context.Context, path string, log logger.Logger) (*artifact.Table, *recall.BruteForce, error) {
	tbl, err := artifact.LoadSQLite(ctx, path, log.Named("artifact"))
	if err != nil {
		return nil, nil, err
	}
	idx, err := recall.Build(ctx, tbl.Items(),
		recall.WithDimension(tbl.Dim()),
		recall.WithBuildLogger(log.Named("index")))
	if err != nil {
		return nil, nil, fmt.Errorf("build index: %w", err)
	}
	return tbl, idx, nil
}

// connectStore builds the knowledge store stack: AGE, retries, item cache.
func connectStore(ctx context.Context, cfg *config.Config, log logger.Logger) (*knowledge.AGEStore, *knowledge.CachedStore, error) {
	age, err := knowledge.ConnectAGE(ctx, cfg.DatabaseURL, cfg.GraphName,
		knowledge.WithMaxConns(cfg.MaxConns),
		knowledge.WithAGELogger(log.Named("knowledge")))
	if err != nil {
		return nil, nil, fmt.Errorf("connect knowledge store: %w", err)
	}
	retrier := knowledge.NewRetrier(knowledge.RetryConfig{
		MaxRetries:  cfg.MaxRetries,
		InitialWait: cfg.RetryBackoff(),
		MaxWait:     retryMaxWait,
		Multiplier:  2,
		Timeout:     cfg.QueryTimeout(),
		Budget:      retryBudget,
		Burst:       retryBurst,
	}, log.Named("retry"))
	cached, err := knowledge.WithItemCache(knowledge.WithRetry(age, retrier), cfg.ItemCacheSize)
	if err != nil {
		age.Close()
		return nil, nil, err
	}
	return age, cached, nil
}

func serviceOptions(cfg *config.Config, log logger.Logger) []app.Option {
	return []app.Option{
		app.WithLogger(log),
		app.WithBatchSize(cfg.BatchSize),
		app.WithRankParallelism(cfg.RankParallelism),
		app.WithFusionParallelism(cfg.FusionParallelism),
		app.WithDefaultWeights(model.FusionWeights{Deep: cfg.WeightDeep, Skill: cfg.WeightSkill, Rule: cfg.WeightRule}),
		app.WithMinMatchScore(cfg.MinMatchScore),
	}
}

// bootstrap loads config, artifact and index, and connects the store.
func bootstrap(ctx context.Context) (*stack, error) {
	cfg, log, err := loadConfig(ctx)
	if err != nil {
		return nil, err
	}
	tbl, idx, err := loadIndex(ctx, cfg.ArtifactPath, log)
	if err != nil {
		return nil, err
	}
	age, cached, err := connectStore(ctx, cfg, log)
	if err != nil {
		return nil, err
	}

	svc := app.New(idx, tbl, cached, serviceOptions(cfg, log)...)
	return &stack{cfg: cfg, log: log, svc: svc, cache: cached, close: age.Close}, nil
}

// parseWeights reads "deep,skill,rule".
func parseWeights(s string) (*model.FusionWeights, error) {
	if strings.TrimSpace(s) == "" {
		return nil, nil
	}
	parts := strings.Split(s, ",")
	if len(parts) != 3 {
		return nil, fmt.Errorf("weights must be deep,skill,rule, got %q", s)
	}
	var v [3]float64
	for i, p := range parts {
		f, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return nil, fmt.Errorf("weight %d: %w", i+1, err)
		}
		v[i] = f
	}
	return &model.FusionWeights{Deep: v[0], Skill: v[1], Rule: v[2]}, nil
}

// splitList splits a comma separated list, dropping blanks.
func splitList(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
