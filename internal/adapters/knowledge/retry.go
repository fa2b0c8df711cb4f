package knowledge

import (
	"context"
	"errors"
	"math"
	"time"

	"golang.org/x/time/rate"

	"github.com/Aruomeng/JobRec-KG/internal/domain/model"
	"github.com/Aruomeng/JobRec-KG/pkg/logger"
	"github.com/Aruomeng/JobRec-KG/pkg/metrics"
)

// RetryConfig controls retry behavior.
type RetryConfig struct {
	MaxRetries  int
	InitialWait time.Duration
	MaxWait     time.Duration
	Multiplier  float64
	// Timeout bounds each attempt. Zero means no per-attempt deadline.
	Timeout time.Duration
	// Budget caps retries per second across all callers; Burst is its bucket size.
	Budget rate.Limit
	Burst  int
}

// DefaultRetryConfig suits an interactive request against a nearby database.
var DefaultRetryConfig = RetryConfig{
	MaxRetries:  2,
	InitialWait: 50 * time.Millisecond,
	MaxWait:     time.Second,
	Multiplier:  2.0,
	Timeout:     2 * time.Second,
	Budget:      50,
	Burst:       100,
}

// Retrier runs queries with bounded exponential backoff. The retry budget is
// shared, so a failing database does not multiply its own load.
type Retrier struct {
	cfg    RetryConfig
	budget *rate.Limiter
	logger logger.Logger
}

// NewRetrier creates a Retrier. A nil log disables retry logging.
func NewRetrier(cfg RetryConfig, log logger.Logger) *Retrier {
	if cfg.Multiplier < 1 {
		cfg.Multiplier = 1
	}
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}
	if cfg.Burst <= 0 {
		cfg.Burst = 1
	}
	if cfg.Budget <= 0 {
		cfg.Budget = rate.Inf
	}
	if log == nil {
		log = logger.Nop()
	}
	return &Retrier{cfg: cfg, budget: rate.NewLimiter(cfg.Budget, cfg.Burst), logger: log}
}

// RetryDo runs fn until it succeeds, fails permanently, runs out of attempts
// or budget, or ctx ends. Failures come back as *QueryError; the caller's
// own cancellation comes back unwrapped.
func RetryDo[T any](ctx context.Context, r *Retrier, op string, fn func(ctx context.Context) (T, error)) (T, error) {
	var zero T
	var lastErr error
	attempts := 0

	for attempt := 0; attempt <= r.cfg.MaxRetries; attempt++ {
		if ctx.Err() != nil {
			return zero, ctx.Err()
		}

		attempts++
		start := time.Now()
		result, err := runAttempt(ctx, r.cfg.Timeout, fn)
		metrics.RecordKnowledgeQuery(op, time.Since(start))
		if err == nil {
			return result, nil
		}
		lastErr = err

		if ctx.Err() != nil {
			return zero, ctx.Err()
		}
		if errors.Is(err, ErrNotFound) {
			return zero, err
		}
		if !IsTransient(err) {
			metrics.RecordKnowledgeError(op)
			return zero, &QueryError{Op: op, Attempts: attempts, Err: err}
		}
		if attempt == r.cfg.MaxRetries || !r.budget.Allow() {
			break
		}

		wait := r.backoff(attempt)
		metrics.RecordKnowledgeRetry(op)
		r.logger.Debug(ctx, "retrying knowledge query",
			logger.String("op", op), logger.Int("attempt", attempt+1),
			logger.Duration("wait", wait), logger.Error(err))
		select {
		case <-time.After(wait):
		case <-ctx.Done():
			return zero, ctx.Err()
		}
	}

	metrics.RecordKnowledgeError(op)
	return zero, &QueryError{Op: op, Attempts: attempts, Transient: true, Err: lastErr}
}

func runAttempt[T any](ctx context.Context, timeout time.Duration, fn func(ctx context.Context) (T, error)) (T, error) {
	if timeout <= 0 {
		return fn(ctx)
	}
	actx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return fn(actx)
}

func (r *Retrier) backoff(attempt int) time.Duration {
	wait := time.Duration(float64(r.cfg.InitialWait) * math.Pow(r.cfg.Multiplier, float64(attempt)))
	if r.cfg.MaxWait > 0 && wait > r.cfg.MaxWait {
		wait = r.cfg.MaxWait
	}
	return wait
}

// RetryingStore retries every query of the wrapped Store.
type RetryingStore struct {
	next    Store
	retrier *Retrier
}

// WithRetry wraps next so every query goes through r.
func WithRetry(next Store, r *Retrier) *RetryingStore {
	return &RetryingStore{next: next, retrier: r}
}

func (s *RetryingStore) FeatureOverlap(ctx context.Context, candidateID, itemID string) (model.FeatureOverlap, error) {
	return RetryDo(ctx, s.retrier, OpFeatureOverlap, func(ctx context.Context) (model.FeatureOverlap, error) {
		return s.next.FeatureOverlap(ctx, candidateID, itemID)
	})
}

func (s *RetryingStore) CandidateAttributes(ctx context.Context, candidateID string) (model.CandidateAttributes, error) {
	return RetryDo(ctx, s.retrier, OpCandidateAttributes, func(ctx context.Context) (model.CandidateAttributes, error) {
		return s.next.CandidateAttributes(ctx, candidateID)
	})
}

func (s *RetryingStore) ItemAttributes(ctx context.Context, itemID string) (model.ItemAttributes, error) {
	return RetryDo(ctx, s.retrier, OpItemAttributes, func(ctx context.Context) (model.ItemAttributes, error) {
		return s.next.ItemAttributes(ctx, itemID)
	})
}

func (s *RetryingStore) FilterByLocation(ctx context.Context, itemIDs []string, location string) ([]string, error) {
	return RetryDo(ctx, s.retrier, OpFilterByLocation, func(ctx context.Context) ([]string, error) {
		return s.next.FilterByLocation(ctx, itemIDs, location)
	})
}

func (s *RetryingStore) CandidateFeatures(ctx context.Context, candidateID string) ([]string, error) {
	return RetryDo(ctx, s.retrier, OpCandidateFeatures, func(ctx context.Context) ([]string, error) {
		return s.next.CandidateFeatures(ctx, candidateID)
	})
}
