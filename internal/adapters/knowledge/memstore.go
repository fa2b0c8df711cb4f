package knowledge

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/Aruomeng/JobRec-KG/internal/domain/model"
)

// MemCandidate is a candidate held by MemStore.
type MemCandidate struct {
	Attributes model.CandidateAttributes
	Features   []string
	// Courses name courses registered with PutCourse; their skills count
	// as held features.
	Courses []string
}

// MemStore is an in-memory Store. It answers from the same facts the graph
// holds, counts calls per operation, and can be told to fail, which makes it
// the store of choice for tests and offline runs.
type MemStore struct {
	mu         sync.Mutex
	candidates map[string]MemCandidate
	items      map[string]model.ItemAttributes
	courses    map[string][]string
	failures   map[string]*failure
	calls      map[string]int
}

type failure struct {
	err       error
	remaining int // negative fails forever
}

// NewMemStore creates an empty MemStore.
func NewMemStore() *MemStore {
	return &MemStore{
		candidates: make(map[string]MemCandidate),
		items:      make(map[string]model.ItemAttributes),
		courses:    make(map[string][]string),
		failures:   make(map[string]*failure),
		calls:      make(map[string]int),
	}
}

// PutCandidate adds or replaces a candidate.
func (m *MemStore) PutCandidate(id string, c MemCandidate) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.candidates[id] = c
}

// PutItem adds or replaces an item.
func (m *MemStore) PutItem(id string, attrs model.ItemAttributes) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.items[id] = attrs
}

// PutCourse adds or replaces a course and the skills it teaches.
func (m *MemStore) PutCourse(name string, skills ...string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.courses[name] = append([]string(nil), skills...)
}

// Fail makes the next times calls of op for key return err. key is the item
// id for item operations, the candidate id otherwise, and "" matches any.
// A negative times fails forever.
func (m *MemStore) Fail(op, key string, err error, times int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failures[op+"|"+key] = &failure{err: err, remaining: times}
}

// Calls reports how many times op was called.
func (m *MemStore) Calls(op string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls[op]
}

// enter counts a call and returns the injected failure, if any. Callers
// hold m.mu.
func (m *MemStore) enter(op, key string) error {
	m.calls[op]++
	for _, k := range []string{op + "|" + key, op + "|"} {
		f, ok := m.failures[k]
		if !ok || f.remaining == 0 {
			continue
		}
		if f.remaining > 0 {
			f.remaining--
		}
		return f.err
	}
	return nil
}

func (m *MemStore) FeatureOverlap(_ context.Context, candidateID, itemID string) (model.FeatureOverlap, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.enter(OpFeatureOverlap, itemID); err != nil {
		return model.FeatureOverlap{}, err
	}

	has := make(map[string]bool)
	for _, f := range m.features(candidateID) {
		has[strings.ToLower(strings.TrimSpace(f))] = true
	}

	var res model.FeatureOverlap
	seen := make(map[string]bool)
	for _, f := range m.items[itemID].RequiredFeatures {
		key := strings.ToLower(strings.TrimSpace(f))
		if key == "" || seen[key] {
			continue
		}
		seen[key] = true
		res.Required++
		if has[key] {
			res.Matched = append(res.Matched, f)
		}
	}
	return res, nil
}

func (m *MemStore) CandidateAttributes(_ context.Context, candidateID string) (model.CandidateAttributes, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.enter(OpCandidateAttributes, candidateID); err != nil {
		return model.CandidateAttributes{}, err
	}
	c, ok := m.candidates[candidateID]
	if !ok {
		return model.CandidateAttributes{}, fmt.Errorf("candidate %q: %w", candidateID, ErrNotFound)
	}
	return c.Attributes, nil
}

func (m *MemStore) ItemAttributes(_ context.Context, itemID string) (model.ItemAttributes, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.enter(OpItemAttributes, itemID); err != nil {
		return model.ItemAttributes{}, err
	}
	a, ok := m.items[itemID]
	if !ok {
		return model.ItemAttributes{}, fmt.Errorf("item %q: %w", itemID, ErrNotFound)
	}
	a.RequiredFeatures = append([]string(nil), a.RequiredFeatures...)
	sort.Strings(a.RequiredFeatures)
	return a, nil
}

func (m *MemStore) FilterByLocation(_ context.Context, itemIDs []string, location string) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.enter(OpFilterByLocation, ""); err != nil {
		return nil, err
	}
	keep := make(map[string]bool)
	for _, id := range itemIDs {
		if a, ok := m.items[id]; ok && strings.EqualFold(strings.TrimSpace(a.Location), strings.TrimSpace(location)) {
			keep[id] = true
		}
	}
	return keepOrder(itemIDs, keep), nil
}

func (m *MemStore) CandidateFeatures(_ context.Context, candidateID string) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.enter(OpCandidateFeatures, candidateID); err != nil {
		return nil, err
	}
	return m.features(candidateID), nil
}

// features returns the candidate's own features followed by the skills of
// its courses, without case-insensitive duplicates. Callers hold m.mu.
func (m *MemStore) features(candidateID string) []string {
	c := m.candidates[candidateID]
	out := make([]string, 0, len(c.Features))
	seen := make(map[string]bool)
	add := func(f string) {
		key := strings.ToLower(strings.TrimSpace(f))
		if key == "" || seen[key] {
			return
		}
		seen[key] = true
		out = append(out, f)
	}
	for _, f := range c.Features {
		add(f)
	}
	for _, course := range c.Courses {
		for _, f := range m.courses[course] {
			add(f)
		}
	}
	return out
}
