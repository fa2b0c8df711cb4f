package knowledge

import (
	"context"
	"fmt"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/Aruomeng/JobRec-KG/internal/domain/model"
	"github.com/Aruomeng/JobRec-KG/pkg/metrics"
)

// CachedStore keeps item attributes in a bounded LRU. Items change rarely
// and every request asks for the same popular ones; candidate facts and
// overlaps are always read through.
type CachedStore struct {
	Store
	items *lru.Cache[string, model.ItemAttributes]
}

// WithItemCache wraps next with an item attribute cache of the given size.
func WithItemCache(next Store, size int) (*CachedStore, error) {
	c, err := lru.New[string, model.ItemAttributes](size)
	if err != nil {
		return nil, fmt.Errorf("create item cache: %w", err)
	}
	return &CachedStore{Store: next, items: c}, nil
}

// ItemAttributes serves from the cache; only successful reads are cached.
func (s *CachedStore) ItemAttributes(ctx context.Context, itemID string) (model.ItemAttributes, error) {
	if attrs, ok := s.items.Get(itemID); ok {
		metrics.RecordCacheHit()
		return attrs, nil
	}
	metrics.RecordCacheMiss()

	attrs, err := s.Store.ItemAttributes(ctx, itemID)
	if err != nil {
		return model.ItemAttributes{}, err
	}
	s.items.Add(itemID, attrs)
	return attrs, nil
}

// Purge drops every cached item, e.g. after the graph is reloaded.
func (s *CachedStore) Purge() {
	s.items.Purge()
}

// Len reports the number of cached items.
func (s *CachedStore) Len() int {
	return s.items.Len()
}
