package app

import (
	"fmt"
	"strings"

	"github.com/Aruomeng/JobRec-KG/internal/domain/model"
)

// Request is one recommendation call.
type Request struct {
	CandidateID string
	// Funnel sizes; RecallK >= RankK >= FinalK >= 0 must hold.
	RecallK int
	RankK   int
	FinalK  int
	// Weights nil selects the policy defaults.
	Weights *model.FusionWeights
	// Location keeps only items located there when set.
	Location string
	// FeatureHints stand in for the candidate's stored features when the
	// candidate has no embedding.
	FeatureHints []string
	// Policy names the fusion policy for Recommend; "" is skill-weighted.
	Policy string
}

// Stages reports the funnel size after each stage.
type Stages struct {
	Recalled      int `json:"recalled"`
	Filtered      int `json:"filtered"`
	Ranked        int `json:"ranked"`
	Returned      int `json:"returned"`
	DegradedItems int `json:"degraded_items"`
	BelowFloor    int `json:"below_floor"`
}

// Response is the result of one recommendation call.
type Response struct {
	RequestID string                       `json:"request_id"`
	Policy    string                       `json:"policy"`
	Results   []model.RecommendationResult `json:"results"`
	// Mode is how the query embedding was obtained: embedding, proxy or cold_start.
	Mode      string `json:"mode"`
	ColdStart bool   `json:"cold_start"`
	// Degraded is set when any evidence was missing or fusion was skipped.
	Degraded bool   `json:"degraded"`
	Stages   Stages `json:"stages"`
}

// Validate checks the request without touching any dependency.
func (r Request) Validate() error {
	switch {
	case strings.TrimSpace(r.CandidateID) == "":
		return &ValidationError{Param: "candidate_id", Reason: "must not be empty"}
	case r.RecallK < 0:
		return &ValidationError{Param: "recall_k", Reason: "must not be negative"}
	case r.RankK < 0:
		return &ValidationError{Param: "rank_k", Reason: "must not be negative"}
	case r.FinalK < 0:
		return &ValidationError{Param: "final_k", Reason: "must not be negative"}
	case r.RankK > r.RecallK:
		return &ValidationError{Param: "rank_k", Reason: fmt.Sprintf("%d exceeds recall_k %d", r.RankK, r.RecallK)}
	case r.FinalK > r.RankK:
		return &ValidationError{Param: "final_k", Reason: fmt.Sprintf("%d exceeds rank_k %d", r.FinalK, r.RankK)}
	}
	if r.Weights != nil {
		if name := r.Weights.Check(); name != "" {
			return &ValidationError{Param: name, Reason: "must be a non-negative finite number"}
		}
	}
	return nil
}
