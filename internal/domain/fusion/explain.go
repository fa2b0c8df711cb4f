package fusion

import (
	"fmt"
	"strings"
)

// MaxListedFeatures is how many matched features an explanation names.
const MaxListedFeatures = 3

// Deep-score buckets.
const (
	DeepHigh   = 0.8
	DeepMedium = 0.6
)

// Explain renders the deterministic explanation of one result.
func Explain(policy string, matched []string, s Signals, c Combined) string {
	parts := make([]string, 0, 4)
	parts = append(parts, featureClause(matched))
	parts = append(parts, deepClause(s.Deep))

	if policy == PolicyAttributeBoost {
		if c.RoleBoost >= 1.3 {
			parts = append(parts, "title closely fits your target role")
		} else if c.RoleBoost > 1 {
			parts = append(parts, "title relates to your target role")
		}
		switch s.Education {
		case EducationPerfect:
			parts = append(parts, "education matches the requirement exactly")
		case EducationMismatch:
			parts = append(parts, "education below the requirement")
		case EducationUnknown:
			parts = append(parts, "education not compared")
		default:
			parts = append(parts, "education requirement fully met")
		}
		return strings.Join(parts, "; ")
	}

	if s.Rule >= RuleFull {
		parts = append(parts, "education requirement fully met")
	} else {
		parts = append(parts, "education requirement not fully met")
	}
	return strings.Join(parts, "; ")
}

func featureClause(matched []string) string {
	switch n := len(matched); {
	case n == 0:
		return "no required skills matched"
	case n <= MaxListedFeatures:
		return "matches your skills: " + strings.Join(matched, ", ")
	default:
		return fmt.Sprintf("matches your skills: %s and %d more",
			strings.Join(matched[:MaxListedFeatures], ", "), n-MaxListedFeatures)
	}
}

func deepClause(deep float64) string {
	switch {
	case deep >= DeepHigh:
		return "high match"
	case deep >= DeepMedium:
		return "medium match"
	}
	return "low match"
}
