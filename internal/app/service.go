// Package app wires recall, ranking and fusion into the recommendation
// funnel and owns request validation, filtering and degradation.
package app

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/Aruomeng/JobRec-KG/internal/domain/fusion"
	"github.com/Aruomeng/JobRec-KG/internal/domain/model"
	"github.com/Aruomeng/JobRec-KG/internal/domain/ranking"
	"github.com/Aruomeng/JobRec-KG/internal/domain/recall"
	"github.com/Aruomeng/JobRec-KG/internal/domain/scoring"
	"github.com/Aruomeng/JobRec-KG/pkg/logger"
	"github.com/Aruomeng/JobRec-KG/pkg/metrics"
)

// Artifact is the trained embedding table and pair scorer.
type Artifact interface {
	EmbeddingOf(key string) (model.Embedding, bool)
	scoring.PairScorer
}

// KnowledgeStore is the read side of the knowledge store the funnel uses.
type KnowledgeStore interface {
	fusion.Evidence
	FilterByLocation(ctx context.Context, itemIDs []string, location string) ([]string, error)
	CandidateFeatures(ctx context.Context, candidateID string) ([]string, error)
}

// snapshot is the read-only state one request runs against. It is replaced
// as a whole, never modified.
type snapshot struct {
	index    recall.Index
	artifact Artifact
	recaller *recall.Recaller
	ranker   *ranking.Ranker
}

func (s *snapshot) ready() bool { return s.index != nil && s.artifact != nil }

// Service runs the recommendation funnel. It is safe for concurrent use;
// the index and artifact can be replaced while requests are in flight.
type Service struct {
	current atomic.Pointer[snapshot]
	store   KnowledgeStore
	fuser   *fusion.Engine

	skill    fusion.Policy
	boost    fusion.Policy
	weights  model.FusionWeights
	minMatch float64

	batchSize         int
	rankParallelism   int
	fusionParallelism int

	logger logger.Logger
}

// Option applies a configuration option to the Service.
type Option func(*Service)

// WithLogger sets a custom logger for the service.
func WithLogger(l logger.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithBatchSize sets the ranking batch size.
func WithBatchSize(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.batchSize = n
		}
	}
}

// WithRankParallelism bounds concurrently scored batches.
func WithRankParallelism(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.rankParallelism = n
		}
	}
}

// WithFusionParallelism bounds concurrently fused items, and so the number
// of knowledge store queries one request keeps in flight.
func WithFusionParallelism(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.fusionParallelism = n
		}
	}
}

// WithDefaultWeights sets the skill-weighted policy's default weights.
// Invalid weights are ignored.
func WithDefaultWeights(w model.FusionWeights) Option {
	return func(s *Service) {
		if w.Check() == "" {
			s.weights = w
		}
	}
}

// WithMinMatchScore sets the skill-weighted policy's floor.
func WithMinMatchScore(v float64) Option {
	return func(s *Service) {
		if v >= 0 {
			s.minMatch = v
		}
	}
}

// New creates a Service. Any nil dependency makes every request fail with
// ErrUnavailable instead of returning made-up results.
func New(index recall.Index, art Artifact, store KnowledgeStore, opts ...Option) *Service {
	s := &Service{
		store:             store,
		weights:           model.DefaultWeights(),
		minMatch:          fusion.DefaultMinMatchScore,
		batchSize:         128,
		rankParallelism:   4,
		fusionParallelism: 8,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = logger.Get()
	}

	var evidence fusion.Evidence
	if store != nil {
		evidence = store
	}
	s.fuser = fusion.New(evidence,
		fusion.WithParallelism(s.fusionParallelism),
		fusion.WithLogger(s.logger.Named("fusion")))
	s.skill = fusion.NewSkillWeighted(s.weights, s.minMatch)
	s.boost = fusion.NewAttributeBoost()
	s.current.Store(s.newSnapshot(index, art))
	return s
}

func (s *Service) newSnapshot(index recall.Index, art Artifact) *snapshot {
	snap := &snapshot{index: index, artifact: art}
	var features recall.EmbeddingSource
	if art != nil {
		features = art
	}
	snap.recaller = recall.NewRecaller(features, recall.WithLogger(s.logger.Named("recall")))
	snap.ranker = ranking.New(art, features,
		ranking.WithBatchSize(s.batchSize),
		ranking.WithParallelism(s.rankParallelism),
		ranking.WithLogger(s.logger.Named("ranking")))
	return snap
}

// Index returns the index currently serving requests, or nil.
func (s *Service) Index() recall.Index {
	return s.current.Load().index
}

// SwapIndex publishes a fully built index over the current artifact.
// Requests already running keep the index they started with.
func (s *Service) SwapIndex(idx recall.Index) {
	if idx == nil {
		return
	}
	s.publish(s.newSnapshot(idx, s.current.Load().artifact))
}

// Reload publishes a new artifact together with the index built from it.
func (s *Service) Reload(idx recall.Index, art Artifact) {
	if idx == nil || art == nil {
		return
	}
	s.publish(s.newSnapshot(idx, art))
}

func (s *Service) publish(snap *snapshot) {
	s.current.Store(snap)
	metrics.RecordIndexSwap()
	dropped := 0
	if d, ok := snap.index.(interface{ Dropped() int }); ok {
		dropped = d.Dropped()
	}
	metrics.UpdateIndexSize(snap.index.Len(), dropped)
	s.logger.Info(context.Background(), "index swapped",
		logger.Int("items", snap.index.Len()), logger.Int("dim", snap.index.Dim()), logger.Int("dropped", dropped))
}

// Recommend runs the funnel with the policy named in req.Policy.
func (s *Service) Recommend(ctx context.Context, req Request) (Response, error) {
	policy, err := fusion.ParsePolicy(req.Policy, s.weights, s.minMatch)
	if err != nil {
		metrics.RecordRequest(req.Policy, "invalid")
		return Response{}, &ValidationError{Param: "policy", Reason: err.Error()}
	}
	return s.run(ctx, req, policy)
}

// RecommendSkillWeighted runs the funnel with the skill-weighted policy:
// a linear blend of deep, skill and rule scores with a minimum-match floor.
func (s *Service) RecommendSkillWeighted(ctx context.Context, req Request) (Response, error) {
	return s.run(ctx, req, s.skill)
}

// RecommendAttributeBoost runs the funnel with the attribute-boost policy:
// the deep score multiplied by education and role boosts, without a floor.
func (s *Service) RecommendAttributeBoost(ctx context.Context, req Request) (Response, error) {
	return s.run(ctx, req, s.boost)
}

func (s *Service) run(ctx context.Context, req Request, policy fusion.Policy) (Response, error) {
	start := time.Now()
	name := policy.Name()

	if err := req.Validate(); err != nil {
		metrics.RecordRequest(name, "invalid")
		return Response{}, err
	}
	metrics.RecordStageLatency(metrics.StageValidate, time.Since(start))

	snap := s.current.Load()
	if !snap.ready() || s.store == nil {
		metrics.RecordRequest(name, "unavailable")
		return Response{}, ErrUnavailable
	}

	resp := Response{
		RequestID: uuid.NewString(),
		Policy:    name,
		Results:   []model.RecommendationResult{},
	}
	log := s.logger.With(
		logger.String("request_id", resp.RequestID),
		logger.String("candidate_id", req.CandidateID),
		logger.String("policy", name))

	resp, err := s.funnel(ctx, log, snap, req, policy, resp)
	if err != nil {
		metrics.RecordRequest(name, "error")
		log.Error(ctx, "recommendation failed", logger.Error(err))
		return Response{}, err
	}

	outcome := "ok"
	switch {
	case len(resp.Results) == 0:
		outcome = "empty"
	case resp.Degraded:
		outcome = "degraded"
	}
	metrics.RecordRequest(name, outcome)
	metrics.RecordStageLatency(metrics.StageTotal, time.Since(start))
	log.Debug(ctx, "recommendation served",
		logger.String("mode", resp.Mode),
		logger.Int("recalled", resp.Stages.Recalled),
		logger.Int("ranked", resp.Stages.Ranked),
		logger.Int("returned", resp.Stages.Returned),
		logger.Duration("took", time.Since(start)))
	return resp, nil
}

// funnel is Recall, Filter, Rank, Fuse. Each stage only sees the output of
// the one before it.
func (s *Service) funnel(
	ctx context.Context,
	log logger.Logger,
	snap *snapshot,
	req Request,
	policy fusion.Policy,
	resp Response,
) (Response, error) {
	if req.RecallK == 0 {
		return resp, nil
	}

	profile := s.profile(ctx, log, snap, req)
	rec, err := snap.recaller.Recall(ctx, snap.index, profile, req.RecallK)
	if err != nil {
		return resp, fmt.Errorf("recall: %w", err)
	}
	resp.Mode = rec.Mode.String()
	resp.ColdStart = rec.Mode == recall.ModeColdStart

	ids := make([]string, len(rec.Hits))
	for i, h := range rec.Hits {
		ids[i] = h.ID
	}
	resp.Stages.Recalled = len(ids)

	if req.Location != "" && len(ids) > 0 {
		filterStart := time.Now()
		ids, err = s.store.FilterByLocation(ctx, ids, req.Location)
		metrics.RecordStageLatency(metrics.StageFilter, time.Since(filterStart))
		if err != nil {
			return resp, fmt.Errorf("filter by location %q: %w", req.Location, err)
		}
		metrics.RecordFunnelSize(metrics.StageFilter, len(ids))
		if len(ids) == 0 {
			metrics.RecordFilterShortCircuit()
			log.Info(ctx, "location filter removed every item", logger.String("location", req.Location))
			return resp, nil
		}
	}
	resp.Stages.Filtered = len(ids)
	if len(ids) == 0 || req.RankK == 0 {
		return resp, nil
	}

	ranked, err := snap.ranker.Rank(ctx, rec.Query, ids)
	if err != nil {
		return resp, err
	}
	if len(ranked) > req.RankK {
		ranked = ranked[:req.RankK]
	}
	resp.Stages.Ranked = len(ranked)

	if err := ctx.Err(); err != nil {
		metrics.RecordDegraded("deadline")
		log.Warn(ctx, "deadline passed before fusion, returning deep scores only", logger.Error(err))
		resp.Results = fusion.DeepOnly(ranked, req.FinalK)
		resp.Degraded = true
		resp.Stages.Returned = len(resp.Results)
		resp.Stages.DegradedItems = len(resp.Results)
		return resp, nil
	}

	out, err := s.fuser.Fuse(ctx, fusion.Request{
		CandidateID: req.CandidateID,
		Ranked:      ranked,
		RankK:       req.RankK,
		FinalK:      req.FinalK,
		Weights:     req.Weights,
		Policy:      policy,
	})
	if err != nil {
		return resp, fmt.Errorf("fuse: %w", err)
	}
	if out.Results != nil {
		resp.Results = out.Results
	}
	resp.Degraded = out.Degraded > 0
	resp.Stages.DegradedItems = out.Degraded
	resp.Stages.BelowFloor = out.BelowFloor
	resp.Stages.Returned = len(resp.Results)
	return resp, nil
}

// profile assembles the candidate snapshot for recall. Features are only
// fetched when the stored embedding is missing or unusable.
func (s *Service) profile(ctx context.Context, log logger.Logger, snap *snapshot, req Request) model.CandidateProfile {
	p := model.CandidateProfile{ID: req.CandidateID}
	if e, ok := snap.artifact.EmbeddingOf(model.CandidateKey(req.CandidateID)); ok {
		p.Embedding = e
		if e.Valid(snap.index.Dim()) {
			return p
		}
	}

	if len(req.FeatureHints) > 0 {
		p.Features = req.FeatureHints
		return p
	}
	features, err := s.store.CandidateFeatures(ctx, req.CandidateID)
	if err != nil {
		log.Warn(ctx, "candidate features unavailable, recall may fall back to cold start", logger.Error(err))
		return p
	}
	p.Features = features
	return p
}

// GetStats returns service statistics for monitoring.
func (s *Service) GetStats() map[string]interface{} {
	snap := s.current.Load()
	stats := map[string]interface{}{
		"ready":          snap.ready() && s.store != nil,
		"defaultWeights": s.weights.String(),
		"minMatchScore":  s.minMatch,
		"batchSize":      s.batchSize,
	}
	if snap.index != nil {
		stats["indexSize"] = snap.index.Len()
		stats["dimension"] = snap.index.Dim()
	}
	return stats
}
