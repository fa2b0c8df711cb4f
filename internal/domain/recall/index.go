// Package recall holds the vector index and the first funnel stage: a cheap
// similarity search that narrows the item population to a candidate set.
package recall

import (
	"container/heap"
	"context"
	"fmt"

	"github.com/Aruomeng/JobRec-KG/internal/domain/model"
	"github.com/Aruomeng/JobRec-KG/pkg/logger"
)

// Index answers top-K similarity queries over item embeddings. An Index is
// immutable once built and safe for concurrent readers.
type Index interface {
	// Search returns up to k items by descending cosine similarity to query,
	// ties broken by item id ascending. An invalid query yields nil.
	Search(query model.Embedding, k int) []model.ScoredItem
	// IDs returns every indexed item id in insertion order.
	IDs() []string
	Len() int
	Dim() int
}

// BruteForce is the reference Index: it compares the query with every item.
type BruteForce struct {
	dim     int
	ids     []string
	vecs    []model.Embedding // unit length
	dropped int
}

// BuildOption configures Build.
type BuildOption func(*buildConfig)

type buildConfig struct {
	dim    int
	logger logger.Logger
}

// WithDimension fixes the expected embedding dimension. Without it the
// dimension of the first item is used.
func WithDimension(dim int) BuildOption {
	return func(c *buildConfig) {
		if dim > 0 {
			c.dim = dim
		}
	}
}

// WithBuildLogger sets the logger used to report rejected items.
func WithBuildLogger(l logger.Logger) BuildOption {
	return func(c *buildConfig) {
		if l != nil {
			c.logger = l
		}
	}
}

// Build normalizes and stores item embeddings. Items with a wrong dimension,
// non-finite components, a zero norm or a duplicate id are dropped and counted.
func Build(ctx context.Context, items []model.ItemProfile, opts ...BuildOption) (*BruteForce, error) {
	cfg := buildConfig{logger: logger.Nop()}
	for _, opt := range opts {
		opt(&cfg)
	}

	idx := &BruteForce{
		dim:  cfg.dim,
		ids:  make([]string, 0, len(items)),
		vecs: make([]model.Embedding, 0, len(items)),
	}
	seen := make(map[string]struct{}, len(items))
	for _, it := range items {
		if idx.dim == 0 && len(it.Embedding) > 0 {
			idx.dim = len(it.Embedding)
		}
		if _, dup := seen[it.ID]; dup || it.ID == "" || !it.Embedding.Valid(idx.dim) {
			idx.dropped++
			cfg.logger.Debug(ctx, "item rejected from index", logger.String("item_id", it.ID), logger.Int("len", len(it.Embedding)))
			continue
		}
		unit, ok := it.Embedding.Normalized()
		if !ok {
			idx.dropped++
			continue
		}
		seen[it.ID] = struct{}{}
		idx.ids = append(idx.ids, it.ID)
		idx.vecs = append(idx.vecs, unit)
	}

	if len(idx.ids) == 0 {
		return nil, fmt.Errorf("%w: %d items rejected", ErrEmptyIndex, idx.dropped)
	}
	if idx.dropped > 0 {
		cfg.logger.Warn(ctx, "items dropped while building index",
			logger.Int("dropped", idx.dropped), logger.Int("indexed", len(idx.ids)), logger.Int("dim", idx.dim))
	}
	return idx, nil
}

// Len returns the number of indexed items.
func (b *BruteForce) Len() int { return len(b.ids) }

// Dim returns the embedding dimension.
func (b *BruteForce) Dim() int { return b.dim }

// Dropped returns how many items Build rejected.
func (b *BruteForce) Dropped() int { return b.dropped }

// IDs returns a copy of the ids in insertion order.
func (b *BruteForce) IDs() []string {
	out := make([]string, len(b.ids))
	copy(out, b.ids)
	return out
}

// Search implements Index.
func (b *BruteForce) Search(query model.Embedding, k int) []model.ScoredItem {
	if k <= 0 || !query.Valid(b.dim) {
		return nil
	}
	q, ok := query.Normalized()
	if !ok {
		return nil
	}
	if k > len(b.ids) {
		k = len(b.ids)
	}

	// Min-heap of the best k seen so far; the root is the weakest keeper.
	h := make(topK, 0, k)
	for i, v := range b.vecs {
		it := model.ScoredItem{ID: b.ids[i], Score: model.Dot(q, v)}
		if len(h) < k {
			heap.Push(&h, it)
			continue
		}
		if model.Less(it, h[0]) {
			h[0] = it
			heap.Fix(&h, 0)
		}
	}

	out := make([]model.ScoredItem, len(h))
	for i := len(h) - 1; i >= 0; i-- {
		out[i] = heap.Pop(&h).(model.ScoredItem)
	}
	return out
}

// topK is a heap whose root is the item ranked last under model.Less.
type topK []model.ScoredItem

func (h topK) Len() int           { return len(h) }
func (h topK) Less(i, j int) bool { return model.Less(h[j], h[i]) }
func (h topK) Swap(i, j int)      { h[i], h[j] = h[j], h[i] }
func (h *topK) Push(x any)        { *h = append(*h, x.(model.ScoredItem)) }
func (h *topK) Pop() any {
	old := *h
	n := len(old)
	x := old[n-1]
	*h = old[:n-1]
	return x
}
