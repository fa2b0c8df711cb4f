// Package model contains domain models passed between the funnel stages.
package model

// CandidateAttributes are the symbolic attributes of a candidate.
type CandidateAttributes struct {
	Education  string   `json:"education,omitempty"`
	Locations  []string `json:"locations,omitempty"`
	TargetRole string   `json:"target_role,omitempty"`
}

// CandidateProfile is a read-only snapshot of a candidate for one request.
type CandidateProfile struct {
	ID         string               `json:"id"`
	Embedding  Embedding            `json:"embedding,omitempty"`
	Features   []string             `json:"features,omitempty"`
	Attributes *CandidateAttributes `json:"attributes,omitempty"`
}

// ItemAttributes are the symbolic attributes of an item.
type ItemAttributes struct {
	RequiredFeatures []string `json:"required_features,omitempty"`
	Education        string   `json:"education,omitempty"`
	Location         string   `json:"location,omitempty"`
	Title            string   `json:"title,omitempty"`
}

// ItemProfile is an item as loaded into the vector index.
type ItemProfile struct {
	ID         string         `json:"id"`
	Embedding  Embedding      `json:"embedding"`
	Attributes ItemAttributes `json:"attributes"`
}

// FeatureOverlap is the knowledge store's answer to "which of the item's
// required features does the candidate have".
type FeatureOverlap struct {
	Matched  []string `json:"matched"`
	Required int      `json:"required"`
}

// ScoredItem pairs an item id with a stage score.
type ScoredItem struct {
	ID    string  `json:"id"`
	Score float64 `json:"score"`
}

// Less orders by score descending, then id ascending.
func Less(a, b ScoredItem) bool {
	if a.Score != b.Score {
		return a.Score > b.Score
	}
	return a.ID < b.ID
}
