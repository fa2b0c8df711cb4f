package model

import (
	"math"
	"strings"
)

// Embedding is a dense vector in the shared embedding space.
type Embedding []float64

// Key prefixes of the artifact embedding table.
const (
	candidateKeyPrefix = "candidate:"
	itemKeyPrefix      = "item:"
	featureKeyPrefix   = "feature:"
)

// CandidateKey returns the artifact key of a candidate embedding.
func CandidateKey(id string) string { return candidateKeyPrefix + id }

// ItemKey returns the artifact key of an item embedding.
func ItemKey(id string) string { return itemKeyPrefix + id }

// FeatureKey returns the artifact key of a named feature (skill) embedding.
// Names are matched case-insensitively and without surrounding whitespace.
func FeatureKey(name string) string {
	return featureKeyPrefix + strings.ToLower(strings.TrimSpace(name))
}

// ItemIDFromKey extracts the item id from an item key.
func ItemIDFromKey(key string) (string, bool) {
	if !strings.HasPrefix(key, itemKeyPrefix) {
		return "", false
	}
	return key[len(itemKeyPrefix):], true
}

// Valid reports whether e has exactly dim finite components.
// A dim of zero accepts any non-empty length.
func (e Embedding) Valid(dim int) bool {
	if len(e) == 0 || (dim > 0 && len(e) != dim) {
		return false
	}
	for _, x := range e {
		if math.IsNaN(x) || math.IsInf(x, 0) {
			return false
		}
	}
	return true
}

// Norm returns the L2 norm.
func (e Embedding) Norm() float64 {
	var s float64
	for _, x := range e {
		s += x * x
	}
	return math.Sqrt(s)
}

// Normalized returns a unit-length copy of e. It returns false for the zero
// vector and for vectors with non-finite components.
func (e Embedding) Normalized() (Embedding, bool) {
	if !e.Valid(0) {
		return nil, false
	}
	n := e.Norm()
	if n == 0 || math.IsInf(n, 0) {
		return nil, false
	}
	out := make(Embedding, len(e))
	for i, x := range e {
		out[i] = x / n
	}
	return out, true
}

// Dot returns the inner product. Lengths must match; callers validate first.
func Dot(a, b Embedding) float64 {
	var s float64
	for i := range a {
		s += a[i] * b[i]
	}
	return s
}

// Mean returns the element-wise mean of vs. All vectors must share one length.
func Mean(vs []Embedding) Embedding {
	if len(vs) == 0 {
		return nil
	}
	out := make(Embedding, len(vs[0]))
	for _, v := range vs {
		for i, x := range v {
			out[i] += x
		}
	}
	inv := 1 / float64(len(vs))
	for i := range out {
		out[i] *= inv
	}
	return out
}
