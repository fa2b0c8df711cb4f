// Package knowledge adapts the graph-backed knowledge store: the source of
// skill overlap, education and location facts about candidates and items.
package knowledge

import (
	"context"

	"github.com/Aruomeng/JobRec-KG/internal/domain/model"
)

// Operation names, used in errors, logs and metrics labels.
const (
	OpFeatureOverlap      = "feature_overlap"
	OpCandidateAttributes = "candidate_attributes"
	OpItemAttributes      = "item_attributes"
	OpFilterByLocation    = "filter_by_location"
	OpCandidateFeatures   = "candidate_features"
)

// Store is the read-only query surface of the knowledge store.
type Store interface {
	// FeatureOverlap returns the item's required features the candidate has,
	// and how many features the item requires. An unknown item requires none.
	FeatureOverlap(ctx context.Context, candidateID, itemID string) (model.FeatureOverlap, error)
	// CandidateAttributes returns ErrNotFound for an unknown candidate.
	CandidateAttributes(ctx context.Context, candidateID string) (model.CandidateAttributes, error)
	// ItemAttributes returns ErrNotFound for an unknown item.
	ItemAttributes(ctx context.Context, itemID string) (model.ItemAttributes, error)
	// FilterByLocation keeps the ids located in location, preserving order.
	FilterByLocation(ctx context.Context, itemIDs []string, location string) ([]string, error)
	// CandidateFeatures lists the candidate's features (skills).
	CandidateFeatures(ctx context.Context, candidateID string) ([]string, error)
}
