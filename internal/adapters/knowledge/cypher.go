package knowledge

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// ageSetup runs once per pooled connection.
const ageSetup = `LOAD 'age'; SET search_path TO ag_catalog, "$user", public`

// filterChunk bounds the IN-list of one location filter query.
const filterChunk = 256

var graphNamePattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// cypherQuery is an AGE statement plus the parameter map bound to its
// single $1 placeholder. Values never enter the SQL text; the Cypher body
// refers to them as $name.
type cypherQuery struct {
	sql    string
	params map[string]any
}

// args encodes the parameter map as the agtype argument of cypher().
func (q cypherQuery) args() ([]any, error) {
	if q.params == nil {
		return nil, nil
	}
	b, err := json.Marshal(q.params)
	if err != nil {
		return nil, fmt.Errorf("encode cypher params: %w", err)
	}
	return []any{string(b)}, nil
}

// wrapCypher turns a Cypher body into an AGE SQL statement returning the
// named agtype columns. The graph name must already match graphNamePattern.
func wrapCypher(graph, body string, params map[string]any, columns ...string) cypherQuery {
	cols := make([]string, len(columns))
	for i, c := range columns {
		cols[i] = c + " ag_catalog.agtype"
	}
	placeholder := ""
	if params != nil {
		placeholder = ", $1"
	}
	return cypherQuery{
		sql: fmt.Sprintf("SELECT * FROM ag_catalog.cypher('%s', $$\n%s\n$$%s) AS (%s)",
			graph, strings.TrimSpace(body), placeholder, strings.Join(cols, ", ")),
		params: params,
	}
}

// overlapQuery counts, per required skill, whether the student holds it
// directly or through a course that teaches it.
func overlapQuery(graph, candidateID, itemID string) cypherQuery {
	return wrapCypher(graph, `
MATCH (j:Job {job_id: $item_id})-[:REQUIRES_SKILL]->(k:Skill)
OPTIONAL MATCH (s:Student {student_id: $student_id})-[:HAS_SKILL]->(k)
OPTIONAL MATCH (t:Student {student_id: $student_id})-[:TAKES]->(:Course)-[:TEACHES_SKILL]->(k)
RETURN k.name, count(DISTINCT s) + count(DISTINCT t)`,
		map[string]any{"student_id": candidateID, "item_id": itemID}, "name", "hits")
}

func candidateAttributesQuery(graph, candidateID string) cypherQuery {
	return wrapCypher(graph, `
MATCH (s:Student {student_id: $student_id})
OPTIONAL MATCH (s)-[:PREFERS_CITY]->(c:City)
RETURN s.education, s.expected_position, collect(DISTINCT c.name)`,
		map[string]any{"student_id": candidateID}, "education", "position", "cities")
}

func itemAttributesQuery(graph, itemID string) cypherQuery {
	return wrapCypher(graph, `
MATCH (j:Job {job_id: $item_id})
OPTIONAL MATCH (j)-[:OFFERED_BY]->(:Company)-[:LOCATED_IN]->(c:City)
OPTIONAL MATCH (j)-[:REQUIRES_SKILL]->(k:Skill)
RETURN j.title, j.education, collect(DISTINCT c.name), collect(DISTINCT k.name)`,
		map[string]any{"item_id": itemID}, "title", "education", "cities", "skills")
}

func filterQuery(graph string, itemIDs []string, location string) cypherQuery {
	return wrapCypher(graph, `
MATCH (j:Job)-[:OFFERED_BY]->(:Company)-[:LOCATED_IN]->(c:City {name: $location})
WHERE j.job_id IN $ids
RETURN DISTINCT j.job_id`,
		map[string]any{"ids": itemIDs, "location": location}, "job_id")
}

// candidateFeaturesQuery lists held skills and skills taught by taken courses.
func candidateFeaturesQuery(graph, candidateID string) cypherQuery {
	return wrapCypher(graph, `
MATCH (s:Student {student_id: $student_id})-[:HAS_SKILL]->(k:Skill)
RETURN k.name
UNION
MATCH (s:Student {student_id: $student_id})-[:TAKES]->(:Course)-[:TEACHES_SKILL]->(k:Skill)
RETURN k.name`,
		map[string]any{"student_id": candidateID}, "name")
}

// agtype text values are JSON, optionally followed by a ::vertex or ::edge
// annotation, which we never select.
func agText(raw *string) string {
	if raw == nil {
		return ""
	}
	return strings.TrimSpace(*raw)
}

func parseAgString(raw *string) (string, error) {
	s := agText(raw)
	if s == "" || s == "null" {
		return "", nil
	}
	if !strings.HasPrefix(s, `"`) {
		return s, nil
	}
	var out string
	if err := json.Unmarshal([]byte(s), &out); err != nil {
		return "", fmt.Errorf("agtype string %q: %w", s, err)
	}
	return out, nil
}

// parseAgStrings accepts a list, or a single scalar treated as one element.
// Nulls and blanks are dropped.
func parseAgStrings(raw *string) ([]string, error) {
	s := agText(raw)
	if s == "" || s == "null" {
		return nil, nil
	}
	if !strings.HasPrefix(s, "[") {
		one, err := parseAgString(raw)
		if err != nil || one == "" {
			return nil, err
		}
		return []string{one}, nil
	}

	var list []any
	if err := json.Unmarshal([]byte(s), &list); err != nil {
		return nil, fmt.Errorf("agtype list %q: %w", s, err)
	}
	out := make([]string, 0, len(list))
	for _, v := range list {
		switch x := v.(type) {
		case string:
			if strings.TrimSpace(x) != "" {
				out = append(out, x)
			}
		case float64:
			out = append(out, strconv.FormatFloat(x, 'f', -1, 64))
		}
	}
	return out, nil
}

func parseAgInt(raw *string) (int, error) {
	s := agText(raw)
	if s == "" || s == "null" {
		return 0, nil
	}
	n, err := strconv.Atoi(strings.Trim(s, `"`))
	if err != nil {
		return 0, fmt.Errorf("agtype integer %q: %w", s, err)
	}
	return n, nil
}
