package knowledge

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"golang.org/x/sync/semaphore"

	"github.com/Aruomeng/JobRec-KG/internal/domain/model"
	"github.com/Aruomeng/JobRec-KG/pkg/logger"
)

const defaultMaxConns = 16

// AGEOption applies a configuration option to the AGEStore.
type AGEOption func(*AGEStore)

// WithMaxConns bounds the pool and the number of queries in flight.
func WithMaxConns(n int) AGEOption {
	return func(s *AGEStore) {
		if n > 0 {
			s.maxConns = n
		}
	}
}

// WithAGELogger sets the logger.
func WithAGELogger(l logger.Logger) AGEOption {
	return func(s *AGEStore) {
		if l != nil {
			s.logger = l
		}
	}
}

// AGEStore reads the knowledge graph from PostgreSQL with the Apache AGE
// extension. Students, jobs, skills, companies and cities are vertices:
//
//	(:Student)-[:HAS_SKILL]->(:Skill)<-[:REQUIRES_SKILL]-(:Job)
//	(:Job)-[:OFFERED_BY]->(:Company)-[:LOCATED_IN]->(:City)
//	(:Student)-[:PREFERS_CITY]->(:City)
//	(:Student)-[:TAKES]->(:Course)-[:TEACHES_SKILL]->(:Skill)
type AGEStore struct {
	pool     *pgxpool.Pool
	graph    string
	maxConns int
	inflight *semaphore.Weighted
	logger   logger.Logger
}

// ConnectAGE creates a connection pool against databaseURL and checks it.
func ConnectAGE(ctx context.Context, databaseURL, graph string, opts ...AGEOption) (*AGEStore, error) {
	if databaseURL == "" {
		return nil, errors.New("database url is required")
	}
	if !graphNamePattern.MatchString(graph) {
		return nil, fmt.Errorf("%w: %q", ErrBadGraph, graph)
	}

	s := &AGEStore{graph: graph, maxConns: defaultMaxConns, logger: logger.Nop()}
	for _, opt := range opts {
		opt(s)
	}

	config, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse database url: %w", err)
	}
	config.MaxConns = int32(s.maxConns) //nolint:gosec // bounded by config validation
	config.MinConns = 1
	config.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		_, err := conn.Exec(ctx, ageSetup)
		return err
	}

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("create pgx pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	s.pool = pool
	s.inflight = semaphore.NewWeighted(int64(s.maxConns))
	s.logger.Info(ctx, "knowledge store connected",
		logger.String("host", config.ConnConfig.Host),
		logger.String("graph", graph),
		logger.Int("max_conns", s.maxConns))
	return s, nil
}

// Close releases the pool.
func (s *AGEStore) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}

// query runs one AGE statement and returns the raw agtype text of each row.
// SQL NULLs come back as nil.
func (s *AGEStore) query(ctx context.Context, q cypherQuery, columns int) ([][]*string, error) {
	args, err := q.args()
	if err != nil {
		return nil, err
	}
	if err := s.inflight.Acquire(ctx, 1); err != nil {
		return nil, err
	}
	defer s.inflight.Release(1)

	rows, err := s.pool.Query(ctx, q.sql, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out [][]*string
	for rows.Next() {
		row := make([]*string, columns)
		dest := make([]any, columns)
		for i := range row {
			dest[i] = &row[i]
		}
		if err := rows.Scan(dest...); err != nil {
			return nil, fmt.Errorf("scan agtype row: %w", err)
		}
		out = append(out, row)
	}
	return out, rows.Err()
}

func (s *AGEStore) FeatureOverlap(ctx context.Context, candidateID, itemID string) (model.FeatureOverlap, error) {
	rows, err := s.query(ctx, overlapQuery(s.graph, candidateID, itemID), 2)
	if err != nil {
		return model.FeatureOverlap{}, err
	}

	seen := make(map[string]bool, len(rows))
	var res model.FeatureOverlap
	for _, row := range rows {
		name, err := parseAgString(row[0])
		if err != nil {
			return model.FeatureOverlap{}, err
		}
		key := strings.ToLower(strings.TrimSpace(name))
		if key == "" || seen[key] {
			continue
		}
		seen[key] = true
		res.Required++

		hits, err := parseAgInt(row[1])
		if err != nil {
			return model.FeatureOverlap{}, err
		}
		if hits > 0 {
			res.Matched = append(res.Matched, name)
		}
	}
	return res, nil
}

func (s *AGEStore) CandidateAttributes(ctx context.Context, candidateID string) (model.CandidateAttributes, error) {
	rows, err := s.query(ctx, candidateAttributesQuery(s.graph, candidateID), 3)
	if err != nil {
		return model.CandidateAttributes{}, err
	}
	if len(rows) == 0 {
		return model.CandidateAttributes{}, fmt.Errorf("candidate %q: %w", candidateID, ErrNotFound)
	}

	var attrs model.CandidateAttributes
	if attrs.Education, err = parseAgString(rows[0][0]); err != nil {
		return model.CandidateAttributes{}, err
	}
	if attrs.TargetRole, err = parseAgString(rows[0][1]); err != nil {
		return model.CandidateAttributes{}, err
	}
	if attrs.Locations, err = parseAgStrings(rows[0][2]); err != nil {
		return model.CandidateAttributes{}, err
	}
	sort.Strings(attrs.Locations)
	return attrs, nil
}

func (s *AGEStore) ItemAttributes(ctx context.Context, itemID string) (model.ItemAttributes, error) {
	rows, err := s.query(ctx, itemAttributesQuery(s.graph, itemID), 4)
	if err != nil {
		return model.ItemAttributes{}, err
	}
	if len(rows) == 0 {
		return model.ItemAttributes{}, fmt.Errorf("item %q: %w", itemID, ErrNotFound)
	}

	row := rows[0]
	var attrs model.ItemAttributes
	if attrs.Title, err = parseAgString(row[0]); err != nil {
		return model.ItemAttributes{}, err
	}
	if attrs.Education, err = parseAgString(row[1]); err != nil {
		return model.ItemAttributes{}, err
	}
	cities, err := parseAgStrings(row[2])
	if err != nil {
		return model.ItemAttributes{}, err
	}
	if len(cities) > 0 {
		sort.Strings(cities)
		attrs.Location = cities[0]
	}
	if attrs.RequiredFeatures, err = parseAgStrings(row[3]); err != nil {
		return model.ItemAttributes{}, err
	}
	sort.Strings(attrs.RequiredFeatures)
	return attrs, nil
}

func (s *AGEStore) FilterByLocation(ctx context.Context, itemIDs []string, location string) ([]string, error) {
	if len(itemIDs) == 0 {
		return nil, nil
	}

	located := make(map[string]bool, len(itemIDs))
	for start := 0; start < len(itemIDs); start += filterChunk {
		end := min(start+filterChunk, len(itemIDs))
		rows, err := s.query(ctx, filterQuery(s.graph, itemIDs[start:end], location), 1)
		if err != nil {
			return nil, err
		}
		for _, row := range rows {
			id, err := parseAgString(row[0])
			if err != nil {
				return nil, err
			}
			located[id] = true
		}
	}
	return keepOrder(itemIDs, located), nil
}

func (s *AGEStore) CandidateFeatures(ctx context.Context, candidateID string) ([]string, error) {
	rows, err := s.query(ctx, candidateFeaturesQuery(s.graph, candidateID), 1)
	if err != nil {
		return nil, err
	}
	out := make([]string, 0, len(rows))
	for _, row := range rows {
		name, err := parseAgString(row[0])
		if err != nil {
			return nil, err
		}
		if name != "" {
			out = append(out, name)
		}
	}
	return out, nil
}

// keepOrder returns the ids present in keep, in input order, without repeats.
func keepOrder(ids []string, keep map[string]bool) []string {
	out := make([]string, 0, len(keep))
	seen := make(map[string]bool, len(keep))
	for _, id := range ids {
		if keep[id] && !seen[id] {
			seen[id] = true
			out = append(out, id)
		}
	}
	return out
}
