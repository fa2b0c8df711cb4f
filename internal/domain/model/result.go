package model

import (
	"fmt"
	"math"
)

// RecommendationResult is one recommended item. It is not modified after it
// leaves the fusion stage.
type RecommendationResult struct {
	ItemID          string   `json:"item_id"`
	FinalScore      float64  `json:"final_score"`
	DeepScore       float64  `json:"deep_score"`
	SkillScore      float64  `json:"skill_score"`
	RuleScore       float64  `json:"rule_score"`
	EducationBoost  float64  `json:"education_boost"`
	RoleBoost       float64  `json:"role_boost"`
	MatchedFeatures []string `json:"matched_features"`
	Explanation     string   `json:"explanation"`
	Degraded        bool     `json:"degraded,omitempty"`
}

// FusionWeights weight the deep, skill and rule scores. They need not sum to one.
type FusionWeights struct {
	Deep  float64 `json:"deep"`
	Skill float64 `json:"skill"`
	Rule  float64 `json:"rule"`
}

// DefaultWeights is the documented default of the skill-weighted policy.
func DefaultWeights() FusionWeights {
	return FusionWeights{Deep: 0.6, Skill: 0.3, Rule: 0.1}
}

// Check returns the name of the first negative or non-finite weight, or "" when all are valid.
func (w FusionWeights) Check() string {
	switch {
	case !(w.Deep >= 0) || math.IsInf(w.Deep, 0):
		return "w_deep"
	case !(w.Skill >= 0) || math.IsInf(w.Skill, 0):
		return "w_skill"
	case !(w.Rule >= 0) || math.IsInf(w.Rule, 0):
		return "w_rule"
	}
	return ""
}

func (w FusionWeights) String() string {
	return fmt.Sprintf("deep=%.2f skill=%.2f rule=%.2f", w.Deep, w.Skill, w.Rule)
}
