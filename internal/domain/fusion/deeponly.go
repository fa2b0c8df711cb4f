package fusion

import "github.com/Aruomeng/JobRec-KG/internal/domain/model"

// DeepOnly turns ranked items into results without consulting the knowledge
// store: the final score is the deep score and every result is marked
// degraded. ranked must already be sorted.
func DeepOnly(ranked []model.ScoredItem, finalK int) []model.RecommendationResult {
	if finalK < 0 {
		finalK = 0
	}
	if len(ranked) > finalK {
		ranked = ranked[:finalK]
	}
	out := make([]model.RecommendationResult, len(ranked))
	for i, it := range ranked {
		out[i] = model.RecommendationResult{
			ItemID:          it.ID,
			FinalScore:      it.Score,
			DeepScore:       it.Score,
			EducationBoost:  1,
			RoleBoost:       1,
			MatchedFeatures: []string{},
			Explanation:     deepClause(it.Score) + "; skill and education evidence skipped",
			Degraded:        true,
		}
	}
	return out
}
