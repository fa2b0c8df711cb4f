// Package artifact holds the trained embedding table and pair scorer the
// recommender consumes. Training happens elsewhere; this package only loads.
package artifact

import (
	"context"
	"fmt"
	"sort"

	"github.com/Aruomeng/JobRec-KG/internal/domain/model"
	"github.com/Aruomeng/JobRec-KG/internal/domain/scoring"
)

// Table is a loaded artifact. It is read-only after construction and safe
// for concurrent use.
type Table struct {
	dim     int
	vectors map[string]model.Embedding
	scorer  *scoring.LinearScorer
	dropped int
}

// New builds a Table. A zero dim is inferred from the first key in sorted
// order with a usable vector. Vectors of the wrong dimension or with
// non-finite values are dropped. A nil scorer scores by dot product.
func New(dim int, vectors map[string]model.Embedding, scorer *scoring.LinearScorer) (*Table, error) {
	keys := make([]string, 0, len(vectors))
	for k := range vectors {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	if dim <= 0 {
		for _, k := range keys {
			if v := vectors[k]; len(v) > 0 && v.Valid(len(v)) {
				dim = len(v)
				break
			}
		}
	}
	if dim <= 0 {
		return nil, fmt.Errorf("%w: no usable vectors", ErrArtifactNotLoaded)
	}

	if scorer == nil {
		scorer = scoring.NewLinearScorer()
	}
	if scorer.HasHead() && scorer.Dim() != dim {
		return nil, fmt.Errorf("%w: scorer %d, embeddings %d", ErrDimensionMismatch, scorer.Dim(), dim)
	}

	t := &Table{dim: dim, vectors: make(map[string]model.Embedding, len(vectors)), scorer: scorer}
	for _, k := range keys {
		v := vectors[k]
		if !v.Valid(dim) {
			t.dropped++
			continue
		}
		t.vectors[k] = append(model.Embedding(nil), v...)
	}
	return t, nil
}

// EmbeddingOf returns the vector stored under key. Callers must not modify it.
func (t *Table) EmbeddingOf(key string) (model.Embedding, bool) {
	v, ok := t.vectors[key]
	return v, ok
}

// Score implements scoring.PairScorer.
func (t *Table) Score(ctx context.Context, query model.Embedding, items []model.Embedding) ([]float64, error) {
	return t.scorer.Score(ctx, query, items)
}

// Dim returns the embedding dimension.
func (t *Table) Dim() int { return t.dim }

// Len returns the number of stored vectors.
func (t *Table) Len() int { return len(t.vectors) }

// Dropped returns how many vectors were rejected at load time.
func (t *Table) Dropped() int { return t.dropped }

// Items returns every item vector as a profile, ordered by id, ready for
// building a recall index.
func (t *Table) Items() []model.ItemProfile {
	var out []model.ItemProfile
	for k, v := range t.vectors {
		if id, ok := model.ItemIDFromKey(k); ok {
			out = append(out, model.ItemProfile{ID: id, Embedding: v})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}
