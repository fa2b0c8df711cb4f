package recall

import (
	"context"
	"fmt"
	"time"

	"github.com/cespare/xxhash/v2"

	"github.com/Aruomeng/JobRec-KG/internal/domain/model"
	"github.com/Aruomeng/JobRec-KG/pkg/logger"
	"github.com/Aruomeng/JobRec-KG/pkg/metrics"
)

// Mode tells how the query embedding of a recall was obtained.
type Mode int

const (
	// ModeEmbedding used the candidate's own embedding.
	ModeEmbedding Mode = iota
	// ModeProxy averaged the embeddings of the candidate's features.
	ModeProxy
	// ModeColdStart had no query embedding at all.
	ModeColdStart
)

func (m Mode) String() string {
	switch m {
	case ModeEmbedding:
		return "embedding"
	case ModeProxy:
		return "proxy"
	case ModeColdStart:
		return "cold_start"
	}
	return fmt.Sprintf("mode(%d)", int(m))
}

// EmbeddingSource resolves artifact keys to embeddings.
type EmbeddingSource interface {
	EmbeddingOf(key string) (model.Embedding, bool)
}

// Result is the output of one recall.
type Result struct {
	Hits []model.ScoredItem
	// Query is the raw query embedding, nil in cold start.
	Query model.Embedding
	Mode  Mode
	// FeaturesUsed counts the features that contributed to a proxy query.
	FeaturesUsed int
}

// Option configures a Recaller.
type Option func(*Recaller)

// WithLogger sets the logger.
func WithLogger(l logger.Logger) Option {
	return func(r *Recaller) {
		if l != nil {
			r.logger = l
		}
	}
}

// Recaller resolves a candidate's query embedding and searches an Index.
type Recaller struct {
	features EmbeddingSource
	logger   logger.Logger
}

// NewRecaller builds a Recaller that looks up feature embeddings in features.
func NewRecaller(features EmbeddingSource, opts ...Option) *Recaller {
	r := &Recaller{features: features, logger: logger.Nop()}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Recall returns up to topK items for the candidate. topK <= 0 yields an
// empty result. Without any usable embedding the recall falls back to cold
// start, which returns items without a similarity guarantee.
func (r *Recaller) Recall(ctx context.Context, idx Index, c model.CandidateProfile, topK int) (Result, error) {
	if err := ctx.Err(); err != nil {
		return Result{}, err
	}
	if topK <= 0 {
		return Result{Mode: ModeEmbedding}, nil
	}
	start := time.Now()
	defer func() { metrics.RecordStageLatency(metrics.StageRecall, time.Since(start)) }()

	query, mode, used := r.resolveQuery(ctx, idx.Dim(), c)
	if mode == ModeColdStart {
		metrics.RecordColdStart()
		r.logger.Info(ctx, "cold start recall", logger.String("candidate_id", c.ID), logger.Int("top_k", topK))
		return Result{Hits: coldStart(idx, c.ID, topK), Mode: ModeColdStart}, nil
	}
	if mode == ModeProxy {
		metrics.RecordProxyEmbedding()
	}

	hits := idx.Search(query, topK)
	metrics.RecordFunnelSize(metrics.StageRecall, len(hits))
	return Result{Hits: hits, Query: query, Mode: mode, FeaturesUsed: used}, nil
}

func (r *Recaller) resolveQuery(ctx context.Context, dim int, c model.CandidateProfile) (model.Embedding, Mode, int) {
	if len(c.Embedding) > 0 {
		if _, ok := c.Embedding.Normalized(); ok && c.Embedding.Valid(dim) {
			return c.Embedding, ModeEmbedding, 0
		}
		r.logger.Warn(ctx, "candidate embedding unusable, ignoring",
			logger.String("candidate_id", c.ID), logger.Int("len", len(c.Embedding)), logger.Int("dim", dim))
	}

	if r.features == nil {
		return nil, ModeColdStart, 0
	}
	var found []model.Embedding
	seen := make(map[string]struct{}, len(c.Features))
	for _, name := range c.Features {
		key := model.FeatureKey(name)
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		if e, ok := r.features.EmbeddingOf(key); ok && e.Valid(dim) {
			found = append(found, e)
		}
	}
	if len(found) == 0 {
		return nil, ModeColdStart, 0
	}
	mean := model.Mean(found)
	if _, ok := mean.Normalized(); !ok {
		// Opposing feature vectors can cancel out.
		return nil, ModeColdStart, 0
	}
	return mean, ModeProxy, len(found)
}

// coldStart walks the index order from a candidate-specific offset so that
// different cold candidates see different items, deterministically.
func coldStart(idx Index, candidateID string, topK int) []model.ScoredItem {
	ids := idx.IDs()
	if len(ids) == 0 {
		return nil
	}
	if topK > len(ids) {
		topK = len(ids)
	}
	offset := int(xxhash.Sum64String(candidateID) % uint64(len(ids)))
	out := make([]model.ScoredItem, topK)
	for i := range out {
		out[i] = model.ScoredItem{ID: ids[(offset+i)%len(ids)]}
	}
	return out
}
