// Package ranking scores a recalled candidate set with the pairwise scorer.
package ranking

import (
	"context"
	"fmt"
	"math"
	"sort"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/Aruomeng/JobRec-KG/internal/domain/model"
	"github.com/Aruomeng/JobRec-KG/internal/domain/scoring"
	"github.com/Aruomeng/JobRec-KG/pkg/logger"
	"github.com/Aruomeng/JobRec-KG/pkg/metrics"
)

// NeutralScore is assigned to items that cannot be scored.
const NeutralScore = 0.5

const (
	defaultBatchSize   = 128
	defaultParallelism = 4
)

// EmbeddingSource resolves artifact keys to embeddings.
type EmbeddingSource interface {
	EmbeddingOf(key string) (model.Embedding, bool)
}

// Option applies a configuration option to the Ranker.
type Option func(*Ranker)

// WithBatchSize sets the number of items per scorer call.
func WithBatchSize(n int) Option {
	return func(r *Ranker) {
		if n > 0 {
			r.batchSize = n
		}
	}
}

// WithParallelism bounds the number of batches scored at once.
func WithParallelism(n int) Option {
	return func(r *Ranker) {
		if n > 0 {
			r.parallelism = n
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l logger.Logger) Option {
	return func(r *Ranker) {
		if l != nil {
			r.logger = l
		}
	}
}

// Ranker scores items against a query embedding in fixed-size batches.
type Ranker struct {
	scorer      scoring.PairScorer
	embeddings  EmbeddingSource
	batchSize   int
	parallelism int
	logger      logger.Logger
}

// New creates a Ranker reading item embeddings from embeddings.
func New(scorer scoring.PairScorer, embeddings EmbeddingSource, opts ...Option) *Ranker {
	r := &Ranker{
		scorer:      scorer,
		embeddings:  embeddings,
		batchSize:   defaultBatchSize,
		parallelism: defaultParallelism,
		logger:      logger.Nop(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Rank returns one score per id, ordered by score descending and id ascending.
// With no usable query every item gets NeutralScore and the input order is kept.
// Items without a usable embedding, or whose score is not finite, get NeutralScore.
func (r *Ranker) Rank(ctx context.Context, query model.Embedding, ids []string) ([]model.ScoredItem, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	start := time.Now()
	defer func() { metrics.RecordStageLatency(metrics.StageRank, time.Since(start)) }()

	out := make([]model.ScoredItem, len(ids))
	if _, ok := query.Normalized(); !ok {
		for i, id := range ids {
			out[i] = model.ScoredItem{ID: id, Score: NeutralScore}
		}
		metrics.RecordNeutralScores(len(ids))
		return out, nil
	}

	neutral := make([]int, (len(ids)+r.batchSize-1)/r.batchSize)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.parallelism)
	for b, lo := 0, 0; lo < len(ids); b, lo = b+1, lo+r.batchSize {
		b, lo := b, lo
		hi := min(lo+r.batchSize, len(ids))
		g.Go(func() error {
			n, err := r.scoreBatch(gctx, query, ids[lo:hi], out[lo:hi])
			neutral[b] = n
			return err
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("rank: %w", err)
	}

	total := 0
	for _, n := range neutral {
		total += n
	}
	if total > 0 {
		metrics.RecordNeutralScores(total)
		r.logger.Debug(ctx, "items ranked with neutral score", logger.Int("count", total))
	}

	sort.SliceStable(out, func(i, j int) bool { return model.Less(out[i], out[j]) })
	metrics.RecordFunnelSize(metrics.StageRank, len(out))
	return out, nil
}

// scoreBatch fills dst and returns how many items received the neutral score.
func (r *Ranker) scoreBatch(ctx context.Context, query model.Embedding, ids []string, dst []model.ScoredItem) (int, error) {
	vecs := make([]model.Embedding, 0, len(ids))
	pos := make([]int, 0, len(ids))
	neutral := 0
	for i, id := range ids {
		dst[i] = model.ScoredItem{ID: id, Score: NeutralScore}
		e, ok := r.embeddings.EmbeddingOf(model.ItemKey(id))
		if !ok || !e.Valid(len(query)) {
			neutral++
			continue
		}
		vecs = append(vecs, e)
		pos = append(pos, i)
	}
	if len(vecs) == 0 {
		return neutral, nil
	}

	scores, err := r.scorer.Score(ctx, query, vecs)
	if err != nil {
		return 0, err
	}
	if len(scores) != len(vecs) {
		return 0, fmt.Errorf("scorer returned %d scores for %d items", len(scores), len(vecs))
	}
	for k, s := range scores {
		if math.IsNaN(s) || math.IsInf(s, 0) {
			neutral++
			continue
		}
		dst[pos[k]].Score = math.Max(0, math.Min(1, s))
	}
	return neutral, nil
}
