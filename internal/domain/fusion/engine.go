// Package fusion merges the deep score with knowledge-store evidence, applies
// a fusion policy, and explains every result.
package fusion

import (
	"context"
	"errors"
	"sort"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/Aruomeng/JobRec-KG/internal/domain/model"
	"github.com/Aruomeng/JobRec-KG/pkg/logger"
	"github.com/Aruomeng/JobRec-KG/pkg/metrics"
)

const defaultParallelism = 8

// Evidence is the read side of the knowledge store used by fusion.
type Evidence interface {
	FeatureOverlap(ctx context.Context, candidateID, itemID string) (model.FeatureOverlap, error)
	CandidateAttributes(ctx context.Context, candidateID string) (model.CandidateAttributes, error)
	ItemAttributes(ctx context.Context, itemID string) (model.ItemAttributes, error)
}

// Option applies a configuration option to the Engine.
type Option func(*Engine)

// WithParallelism bounds the number of items fused at once.
func WithParallelism(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.parallelism = n
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l logger.Logger) Option {
	return func(e *Engine) {
		if l != nil {
			e.logger = l
		}
	}
}

// Engine runs the fusion stage.
type Engine struct {
	evidence    Evidence
	parallelism int
	logger      logger.Logger
}

// New creates an Engine over evidence.
func New(evidence Evidence, opts ...Option) *Engine {
	e := &Engine{evidence: evidence, parallelism: defaultParallelism, logger: logger.Nop()}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Request is the input of one fusion run.
type Request struct {
	CandidateID string
	// Ranked is the rank stage output; only the first RankK items are fused.
	Ranked []model.ScoredItem
	RankK  int
	FinalK int
	// Weights nil selects the policy defaults.
	Weights *model.FusionWeights
	Policy  Policy
}

// Output is the result of one fusion run.
type Output struct {
	Results []model.RecommendationResult
	// Degraded counts items whose skill score fell back to zero.
	Degraded int
	// BelowFloor counts items dropped by the policy floor.
	BelowFloor int
}

// Fuse scores, explains, re-sorts and truncates the ranked items. Knowledge
// store failures never fail the run: a failed overlap query degrades that
// item's skill score to zero and a failed attribute lookup is treated as
// unspecified.
func (e *Engine) Fuse(ctx context.Context, req Request) (Output, error) {
	if req.Policy == nil {
		return Output{}, ErrNoPolicy
	}
	ranked := req.Ranked
	if req.RankK >= 0 && len(ranked) > req.RankK {
		ranked = ranked[:req.RankK]
	}
	if len(ranked) == 0 || req.FinalK <= 0 {
		return Output{}, nil
	}
	start := time.Now()
	defer func() { metrics.RecordStageLatency(metrics.StageFuse, time.Since(start)) }()

	weights := req.Policy.DefaultWeights()
	if req.Weights != nil {
		weights = *req.Weights
	}
	log := e.logger.With(logger.String("candidate_id", req.CandidateID), logger.String("policy", req.Policy.Name()))

	cand, err := e.evidence.CandidateAttributes(ctx, req.CandidateID)
	if err != nil {
		metrics.RecordDegraded("attributes")
		log.Warn(ctx, "candidate attributes unavailable, treating as unspecified", logger.Error(err))
		cand = model.CandidateAttributes{}
	}

	results := make([]model.RecommendationResult, len(ranked))
	degraded := make([]bool, len(ranked))
	var g errgroup.Group
	g.SetLimit(e.parallelism)
	for i, it := range ranked {
		i, it := i, it
		g.Go(func() error {
			results[i], degraded[i] = e.fuseOne(ctx, log, req.CandidateID, cand, it, weights, req.Policy)
			return nil
		})
	}
	_ = g.Wait()

	out := Output{}
	kept := results[:0]
	floor := req.Policy.MinScore()
	for i, r := range results {
		if degraded[i] {
			out.Degraded++
		}
		// A degraded item lost its skill evidence, not its relevance.
		if floor > 0 && !degraded[i] && r.FinalScore < floor {
			out.BelowFloor++
			continue
		}
		kept = append(kept, r)
	}

	sort.SliceStable(kept, func(i, j int) bool {
		return model.Less(
			model.ScoredItem{ID: kept[i].ItemID, Score: kept[i].FinalScore},
			model.ScoredItem{ID: kept[j].ItemID, Score: kept[j].FinalScore},
		)
	})
	if len(kept) > req.FinalK {
		kept = kept[:req.FinalK]
	}
	out.Results = kept
	metrics.RecordFunnelSize(metrics.StageFuse, len(kept))
	return out, nil
}

func (e *Engine) fuseOne(
	ctx context.Context,
	log logger.Logger,
	candidateID string,
	cand model.CandidateAttributes,
	it model.ScoredItem,
	weights model.FusionWeights,
	policy Policy,
) (model.RecommendationResult, bool) {
	degraded := false

	overlap, err := e.evidence.FeatureOverlap(ctx, candidateID, it.ID)
	if err != nil {
		degraded = true
		overlap = model.FeatureOverlap{}
		metrics.RecordDegraded("skill_overlap")
		log.Warn(ctx, "feature overlap query failed, skill score set to 0",
			logger.String("item_id", it.ID), logger.Error(err))
	}

	attrs, err := e.evidence.ItemAttributes(ctx, it.ID)
	if err != nil {
		attrs = model.ItemAttributes{}
		if !errors.Is(err, context.Canceled) {
			log.Warn(ctx, "item attributes unavailable, treating requirement as unspecified",
				logger.String("item_id", it.ID), logger.Error(err))
		}
	}

	matched := normalizeFeatures(overlap.Matched)
	sig := Signals{
		Deep:      it.Score,
		Skill:     SkillScore(len(matched), overlap.Required),
		Rule:      RuleScore(cand.Education, attrs.Education),
		Education: MatchEducation(cand.Education, attrs.Education),
		Role:      RoleMatch(cand.TargetRole, attrs.Title),
	}
	c := policy.Combine(sig, weights)

	return model.RecommendationResult{
		ItemID:          it.ID,
		FinalScore:      c.Final,
		DeepScore:       sig.Deep,
		SkillScore:      sig.Skill,
		RuleScore:       sig.Rule,
		EducationBoost:  c.EducationBoost,
		RoleBoost:       c.RoleBoost,
		MatchedFeatures: matched,
		Explanation:     Explain(policy.Name(), matched, sig, c),
		Degraded:        degraded,
	}, degraded
}

// normalizeFeatures drops blanks and duplicates and sorts, so explanations
// do not depend on the order the store returned rows in.
func normalizeFeatures(in []string) []string {
	if len(in) == 0 {
		return []string{}
	}
	seen := make(map[string]struct{}, len(in))
	out := make([]string, 0, len(in))
	for _, f := range in {
		f = strings.TrimSpace(f)
		key := strings.ToLower(f)
		if f == "" {
			continue
		}
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, f)
	}
	sort.Strings(out)
	return out
}
