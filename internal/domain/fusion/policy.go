package fusion

import (
	"fmt"
	"strings"

	"github.com/Aruomeng/JobRec-KG/internal/domain/model"
)

// Policy names.
const (
	PolicySkillWeighted  = "skill_weighted"
	PolicyAttributeBoost = "attribute_boost"
)

// DefaultMinMatchScore is the skill-weighted policy's default final-score floor.
const DefaultMinMatchScore = 0.3

// Education and role boosts of the attribute-boost policy.
const (
	BoostEducationPerfect    = 1.3
	BoostEducationCompatible = 1.1
	BoostEducationMismatch   = 0.7
)

// Signals are the per-item inputs of a fusion policy.
type Signals struct {
	Deep      float64
	Skill     float64
	Rule      float64
	Education EducationMatch
	// Role is RoleMatch of the candidate's target role and the item title.
	Role float64
}

// Combined is a policy's verdict for one item.
type Combined struct {
	Final          float64
	EducationBoost float64
	RoleBoost      float64
}

// Policy turns signals into a final score.
type Policy interface {
	Name() string
	// DefaultWeights is used when a request carries no weights.
	DefaultWeights() model.FusionWeights
	Combine(s Signals, w model.FusionWeights) Combined
	// MinScore is the final-score floor; results below it are dropped.
	// Zero disables the floor.
	MinScore() float64
}

// SkillWeighted is the linear blend w_deep*deep + w_skill*skill + w_rule*rule.
type SkillWeighted struct {
	weights  model.FusionWeights
	minScore float64
}

// NewSkillWeighted returns the policy with the given default weights and floor.
func NewSkillWeighted(defaults model.FusionWeights, minScore float64) *SkillWeighted {
	if defaults.Check() != "" {
		defaults = model.DefaultWeights()
	}
	return &SkillWeighted{weights: defaults, minScore: max(minScore, 0)}
}

func (p *SkillWeighted) Name() string                        { return PolicySkillWeighted }
func (p *SkillWeighted) DefaultWeights() model.FusionWeights { return p.weights }
func (p *SkillWeighted) MinScore() float64                   { return p.minScore }

// Combine implements Policy.
func (p *SkillWeighted) Combine(s Signals, w model.FusionWeights) Combined {
	return Combined{
		Final:          w.Deep*s.Deep + w.Skill*s.Skill + w.Rule*s.Rule,
		EducationBoost: 1,
		RoleBoost:      1,
	}
}

// AttributeBoost multiplies the deep score by education and role boosts.
// Weights are ignored and no floor applies.
type AttributeBoost struct{}

// NewAttributeBoost returns the attribute-boost policy.
func NewAttributeBoost() *AttributeBoost { return &AttributeBoost{} }

func (p *AttributeBoost) Name() string { return PolicyAttributeBoost }

// DefaultWeights returns deep-only weights; they are informational.
func (p *AttributeBoost) DefaultWeights() model.FusionWeights {
	return model.FusionWeights{Deep: 1}
}

func (p *AttributeBoost) MinScore() float64 { return 0 }

// Combine implements Policy.
func (p *AttributeBoost) Combine(s Signals, _ model.FusionWeights) Combined {
	edu := EducationBoost(s.Education)
	role := RoleBoost(s.Role)
	return Combined{Final: s.Deep * edu * role, EducationBoost: edu, RoleBoost: role}
}

// EducationBoost maps an education match to its multiplier. An unknown
// match is neutral.
func EducationBoost(m EducationMatch) float64 {
	switch m {
	case EducationPerfect:
		return BoostEducationPerfect
	case EducationMismatch:
		return BoostEducationMismatch
	case EducationUnknown:
		return 1
	}
	return BoostEducationCompatible
}

// RoleBoost maps a role match ratio to its multiplier.
func RoleBoost(match float64) float64 {
	switch {
	case match >= 0.8:
		return 1.4
	case match >= 0.5:
		return 1.3
	case match >= 0.3:
		return 1.1
	}
	return 1.0
}

// ParsePolicy resolves a policy by name. The empty name selects skill-weighted.
func ParsePolicy(name string, defaults model.FusionWeights, minScore float64) (Policy, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", PolicySkillWeighted, "skill", "hybrid":
		return NewSkillWeighted(defaults, minScore), nil
	case PolicyAttributeBoost, "boost", "deep":
		return NewAttributeBoost(), nil
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownPolicy, name)
}
