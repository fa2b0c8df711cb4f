// Package scoring defines the pairwise compatibility scorer used by the
// ranking stage.
package scoring

import (
	"context"
	"errors"
	"fmt"
	"math"

	"github.com/Aruomeng/JobRec-KG/internal/domain/model"
)

// ErrHeadMismatch is returned when a linear head does not fit the query dimension.
var ErrHeadMismatch = errors.New("scorer head does not match embedding dimension")

// PairScorer scores one query embedding against many item embeddings.
// Every returned score is in [0,1]; an item that cannot be scored gets NaN.
type PairScorer interface {
	Score(ctx context.Context, query model.Embedding, items []model.Embedding) ([]float64, error)
}

// Option applies a configuration option to the LinearScorer.
type Option func(*LinearScorer)

// WithLinearHead sets trained weights over concat(query, item) plus a bias.
// The weight vector must hold 2*D values for embeddings of dimension D.
func WithLinearHead(weights []float64, bias float64) Option {
	return func(s *LinearScorer) {
		if len(weights) == 0 || len(weights)%2 != 0 {
			return
		}
		s.weights = append([]float64(nil), weights...)
		s.bias = bias
	}
}

// LinearScorer applies a logistic linear head to a (query, item) pair. Without
// a head it falls back to the logistic of the raw dot product.
type LinearScorer struct {
	weights []float64
	bias    float64
}

// NewLinearScorer creates a scorer with configuration options.
func NewLinearScorer(opts ...Option) *LinearScorer {
	s := &LinearScorer{}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// HasHead reports whether trained weights are configured.
func (s *LinearScorer) HasHead() bool { return len(s.weights) > 0 }

// Dim returns the embedding dimension the head was trained for, or 0.
func (s *LinearScorer) Dim() int { return len(s.weights) / 2 }

// Score implements PairScorer.
func (s *LinearScorer) Score(ctx context.Context, query model.Embedding, items []model.Embedding) ([]float64, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("context cancelled: %w", err)
	}
	dim := len(query)
	if s.HasHead() && s.Dim() != dim {
		return nil, fmt.Errorf("%w: head %d, query %d", ErrHeadMismatch, s.Dim(), dim)
	}

	var qPart float64
	if s.HasHead() {
		qPart = model.Dot(s.weights[:dim], query) + s.bias
	}

	out := make([]float64, len(items))
	for i, it := range items {
		if !it.Valid(dim) {
			out[i] = math.NaN()
			continue
		}
		var z float64
		if s.HasHead() {
			z = qPart + model.Dot(s.weights[dim:], it)
		} else {
			z = model.Dot(query, it)
		}
		out[i] = Sigmoid(z)
	}
	return out, nil
}

// Sigmoid is the logistic function.
func Sigmoid(z float64) float64 {
	if z >= 0 {
		return 1 / (1 + math.Exp(-z))
	}
	e := math.Exp(z)
	return e / (1 + e)
}
