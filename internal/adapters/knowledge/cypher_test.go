package knowledge

import (
	"encoding/json"
	"strings"
	"testing"

	. "github.com/smartystreets/goconvey/convey"
)

func ptr(s string) *string { return &s }

func paramsOf(q cypherQuery) map[string]any {
	args, err := q.args()
	So(err, ShouldBeNil)
	So(len(args), ShouldEqual, 1)
	var out map[string]any
	So(json.Unmarshal([]byte(args[0].(string)), &out), ShouldBeNil)
	return out
}

func TestQueries(t *testing.T) {
	Convey("Given the query builders", t, func() {
		Convey("Then ids are bound as parameters, not spliced into the body", func() {
			q := overlapQuery("job_graph", "s'1", "job-1")
			So(q.sql, ShouldStartWith, "SELECT * FROM ag_catalog.cypher('job_graph', $$")
			So(q.sql, ShouldContainSubstring, "{student_id: $student_id}")
			So(q.sql, ShouldContainSubstring, "{job_id: $item_id}")
			So(q.sql, ShouldContainSubstring, "$$, $1) AS (name ag_catalog.agtype, hits ag_catalog.agtype)")
			So(q.sql, ShouldNotContainSubstring, "s'1")
			So(paramsOf(q), ShouldResemble, map[string]any{"student_id": "s'1", "item_id": "job-1"})
		})

		Convey("Then an id that closes the dollar quote stays inert", func() {
			hostile := "x$$) AS (a ag_catalog.agtype) UNION SELECT usename::text::ag_catalog.agtype FROM pg_user --"
			builders := []cypherQuery{
				overlapQuery("g", hostile, "job-1"),
				overlapQuery("g", "s1", hostile),
				candidateAttributesQuery("g", hostile),
				itemAttributesQuery("g", hostile),
				filterQuery("g", []string{"a", hostile}, hostile),
				candidateFeaturesQuery("g", hostile),
			}
			for _, q := range builders {
				So(strings.Count(q.sql, "$$"), ShouldEqual, 2)
				So(q.sql, ShouldNotContainSubstring, "pg_user")
				So(q.sql, ShouldNotContainSubstring, "UNION SELECT")
			}
			So(paramsOf(builders[0])["student_id"], ShouldEqual, hostile)
			So(paramsOf(builders[4])["location"], ShouldEqual, hostile)
		})

		Convey("Then the overlap counts skills reached through courses", func() {
			q := overlapQuery("g", "s1", "job-1")
			So(q.sql, ShouldContainSubstring, "-[:HAS_SKILL]->(k)")
			So(q.sql, ShouldContainSubstring, "-[:TAKES]->(:Course)-[:TEACHES_SKILL]->(k)")
			So(q.sql, ShouldContainSubstring, "count(DISTINCT s) + count(DISTINCT t)")
		})

		Convey("Then candidate features union held and course skills", func() {
			q := candidateFeaturesQuery("g", "s1")
			So(q.sql, ShouldContainSubstring, "-[:HAS_SKILL]->(k:Skill)")
			So(q.sql, ShouldContainSubstring, "\nUNION\n")
			So(q.sql, ShouldContainSubstring, "-[:TAKES]->(:Course)-[:TEACHES_SKILL]->(k:Skill)")
		})

		Convey("Then the location filter binds every id as a list", func() {
			q := filterQuery("g", []string{"a", "b"}, "Beijing")
			So(q.sql, ShouldContainSubstring, "IN $ids")
			So(q.sql, ShouldContainSubstring, "{name: $location}")
			So(strings.Count(q.sql, "ag_catalog.agtype"), ShouldEqual, 1)
			p := paramsOf(q)
			So(p["ids"], ShouldResemble, []any{"a", "b"})
			So(p["location"], ShouldEqual, "Beijing")
		})

		Convey("Then a query without parameters has no placeholder", func() {
			q := wrapCypher("g", "MATCH (n) RETURN n", nil, "n")
			So(q.sql, ShouldNotContainSubstring, "$1")
			args, err := q.args()
			So(err, ShouldBeNil)
			So(args, ShouldBeNil)
		})

		Convey("Then graph names are restricted to identifiers", func() {
			So(graphNamePattern.MatchString("job_graph"), ShouldBeTrue)
			So(graphNamePattern.MatchString("g'); DROP"), ShouldBeFalse)
		})
	})
}

func TestAgtypeParsing(t *testing.T) {
	Convey("Given agtype text values", t, func() {
		Convey("Then strings are unquoted", func() {
			s, err := parseAgString(ptr(`"本科"`))
			So(err, ShouldBeNil)
			So(s, ShouldEqual, "本科")

			s, err = parseAgString(nil)
			So(err, ShouldBeNil)
			So(s, ShouldBeEmpty)

			s, _ = parseAgString(ptr("null"))
			So(s, ShouldBeEmpty)
		})

		Convey("Then lists drop nulls and blanks", func() {
			l, err := parseAgStrings(ptr(`["Go", null, " ", "SQL"]`))
			So(err, ShouldBeNil)
			So(l, ShouldResemble, []string{"Go", "SQL"})

			l, err = parseAgStrings(ptr(`"Beijing"`))
			So(err, ShouldBeNil)
			So(l, ShouldResemble, []string{"Beijing"})
		})

		Convey("Then integers are read", func() {
			n, err := parseAgInt(ptr("3"))
			So(err, ShouldBeNil)
			So(n, ShouldEqual, 3)

			_, err = parseAgInt(ptr("x"))
			So(err, ShouldNotBeNil)
		})

		Convey("Then broken JSON is an error", func() {
			_, err := parseAgStrings(ptr(`["Go"`))
			So(err, ShouldNotBeNil)
		})
	})
}

func TestKeepOrder(t *testing.T) {
	Convey("Given ids and a keep set", t, func() {
		out := keepOrder([]string{"c", "a", "b", "a"}, map[string]bool{"a": true, "c": true})
		So(out, ShouldResemble, []string{"c", "a"})
	})
}
