package fusion_test

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"sync"
	"testing"

	"github.com/Aruomeng/JobRec-KG/internal/domain/fusion"
	"github.com/Aruomeng/JobRec-KG/internal/domain/model"
	"github.com/Aruomeng/JobRec-KG/pkg/logger"
	. "github.com/smartystreets/goconvey/convey"
)

type fakeEvidence struct {
	mu           sync.Mutex
	overlap      map[string]model.FeatureOverlap
	items        map[string]model.ItemAttributes
	candidate    model.CandidateAttributes
	failOverlap  map[string]error
	failCand     error
	overlapCalls int
}

func (f *fakeEvidence) FeatureOverlap(_ context.Context, _ string, itemID string) (model.FeatureOverlap, error) {
	f.mu.Lock()
	f.overlapCalls++
	f.mu.Unlock()
	if err := f.failOverlap[itemID]; err != nil {
		return model.FeatureOverlap{}, err
	}
	return f.overlap[itemID], nil
}

func (f *fakeEvidence) CandidateAttributes(context.Context, string) (model.CandidateAttributes, error) {
	return f.candidate, f.failCand
}

func (f *fakeEvidence) ItemAttributes(_ context.Context, itemID string) (model.ItemAttributes, error) {
	a, ok := f.items[itemID]
	if !ok {
		return model.ItemAttributes{}, errors.New("not found")
	}
	return a, nil
}

func TestEngineFuse(t *testing.T) {
	Convey("Given an engine over in-memory evidence", t, func() {
		ctx := context.Background()
		ev := &fakeEvidence{
			overlap: map[string]model.FeatureOverlap{
				"job-1": {Matched: []string{"SQL", "Go"}, Required: 3},
				"job-2": {Matched: nil, Required: 0},
				"job-3": {Matched: []string{"Go", "go", " "}, Required: 1},
			},
			items: map[string]model.ItemAttributes{
				"job-1": {Education: "本科", Title: "Golang backend engineer"},
				"job-2": {Education: "博士", Title: "Researcher"},
				"job-3": {Education: "", Title: "Platform engineer"},
			},
			candidate:   model.CandidateAttributes{Education: "本科", TargetRole: "后端"},
			failOverlap: map[string]error{},
		}
		var logs bytes.Buffer
		eng := fusion.New(ev, fusion.WithParallelism(2),
			fusion.WithLogger(logger.NewWithWriter(&logs, slog.LevelWarn)))
		ranked := []model.ScoredItem{{ID: "job-1", Score: 0.9}, {ID: "job-2", Score: 0.7}, {ID: "job-3", Score: 0.6}}
		skill := fusion.NewSkillWeighted(model.DefaultWeights(), 0)

		Convey("When fusing with the skill-weighted policy", func() {
			out, err := eng.Fuse(ctx, fusion.Request{CandidateID: "s1", Ranked: ranked, RankK: 3, FinalK: 3, Policy: skill})
			So(err, ShouldBeNil)
			byID := map[string]model.RecommendationResult{}
			for _, r := range out.Results {
				byID[r.ItemID] = r
			}

			Convey("Then 2 of 3 required skills give two thirds", func() {
				r := byID["job-1"]
				So(r.SkillScore, ShouldAlmostEqual, 2.0/3.0, 1e-12)
				So(r.RuleScore, ShouldEqual, 1.0)
				So(r.MatchedFeatures, ShouldResemble, []string{"Go", "SQL"})
				So(r.FinalScore, ShouldAlmostEqual, 0.6*0.9+0.3*(2.0/3.0)+0.1, 1e-12)
				So(r.Explanation, ShouldStartWith, "matches your skills: Go, SQL; high match")
			})

			Convey("Then nothing required gives a zero skill score", func() {
				So(byID["job-2"].SkillScore, ShouldEqual, 0)
				So(byID["job-2"].RuleScore, ShouldEqual, 0.5)
			})

			Convey("Then duplicate matches are collapsed and clipped", func() {
				So(byID["job-3"].MatchedFeatures, ShouldResemble, []string{"Go"})
				So(byID["job-3"].SkillScore, ShouldEqual, 1)
			})

			Convey("Then results are ordered by final score", func() {
				for i := 1; i < len(out.Results); i++ {
					So(out.Results[i-1].FinalScore, ShouldBeGreaterThanOrEqualTo, out.Results[i].FinalScore)
				}
				So(ev.overlapCalls, ShouldEqual, 3)
			})
		})

		Convey("When one overlap query fails", func() {
			ev.failOverlap["job-1"] = errors.New("connection reset")
			out, err := eng.Fuse(ctx, fusion.Request{CandidateID: "s1", Ranked: ranked, RankK: 3, FinalK: 3, Policy: skill})

			Convey("Then only that item degrades and a warning is logged", func() {
				So(err, ShouldBeNil)
				So(out.Degraded, ShouldEqual, 1)
				So(len(out.Results), ShouldEqual, 3)
				for _, r := range out.Results {
					if r.ItemID == "job-1" {
						So(r.SkillScore, ShouldEqual, 0)
						So(r.Degraded, ShouldBeTrue)
					} else {
						So(r.Degraded, ShouldBeFalse)
					}
				}
				So(byItem(out.Results, "job-3").SkillScore, ShouldEqual, 1)
				So(logs.String(), ShouldContainSubstring, "feature overlap query failed")
				So(logs.String(), ShouldContainSubstring, "job-1")
			})
		})

		Convey("When the floor is set", func() {
			floored := fusion.NewSkillWeighted(model.FusionWeights{Deep: 0.1}, 0.08)
			out, err := eng.Fuse(ctx, fusion.Request{CandidateID: "s1", Ranked: ranked, RankK: 3, FinalK: 3, Policy: floored})
			So(err, ShouldBeNil)
			So(out.BelowFloor, ShouldEqual, 2)
			So(len(out.Results), ShouldEqual, 1)
			So(out.Results[0].ItemID, ShouldEqual, "job-1")
		})

		Convey("When an item below the floor lost its overlap evidence", func() {
			ev.failOverlap["job-3"] = errors.New("connection reset")
			floored := fusion.NewSkillWeighted(model.FusionWeights{Deep: 0.1, Skill: 0.9}, 0.1)
			out, err := eng.Fuse(ctx, fusion.Request{CandidateID: "s1", Ranked: ranked, RankK: 3, FinalK: 3, Policy: floored})

			Convey("Then it is kept as degraded while healthy items still face the floor", func() {
				So(err, ShouldBeNil)
				So(out.Degraded, ShouldEqual, 1)
				So(out.BelowFloor, ShouldEqual, 1)
				So(len(out.Results), ShouldEqual, 2)
				r := byItem(out.Results, "job-3")
				So(r.Degraded, ShouldBeTrue)
				So(r.SkillScore, ShouldEqual, 0)
				So(r.FinalScore, ShouldAlmostEqual, 0.06, 1e-12)
				So(out.Results[len(out.Results)-1].ItemID, ShouldEqual, "job-3")
			})
		})

		Convey("When fusing with the attribute-boost policy", func() {
			out, err := eng.Fuse(ctx, fusion.Request{CandidateID: "s1", Ranked: ranked, RankK: 3, FinalK: 3,
				Policy: fusion.NewAttributeBoost()})
			So(err, ShouldBeNil)
			r := byItem(out.Results, "job-1")

			Convey("Then boosts are reported and multiplied in", func() {
				So(r.EducationBoost, ShouldEqual, 1.3)
				So(r.RoleBoost, ShouldEqual, 1.1)
				So(r.FinalScore, ShouldAlmostEqual, 0.9*1.3*1.1, 1e-12)
				So(byItem(out.Results, "job-2").EducationBoost, ShouldEqual, 0.7)
			})

			Convey("Then an item without an education requirement is not boosted", func() {
				r := byItem(out.Results, "job-3")
				So(r.EducationBoost, ShouldEqual, 1)
				So(r.RuleScore, ShouldEqual, 1)
			})
		})

		Convey("When rank_k and final_k bound the work", func() {
			out, err := eng.Fuse(ctx, fusion.Request{CandidateID: "s1", Ranked: ranked, RankK: 2, FinalK: 1, Policy: skill})
			So(err, ShouldBeNil)
			So(ev.overlapCalls, ShouldEqual, 2)
			So(len(out.Results), ShouldEqual, 1)
		})

		Convey("When candidate attributes cannot be read", func() {
			ev.failCand = errors.New("timeout")
			out, err := eng.Fuse(ctx, fusion.Request{CandidateID: "s1", Ranked: ranked, RankK: 3, FinalK: 3, Policy: skill})
			So(err, ShouldBeNil)
			So(len(out.Results), ShouldEqual, 3)
			So(logs.String(), ShouldContainSubstring, "candidate attributes unavailable")
		})

		Convey("When item attributes are missing", func() {
			out, err := eng.Fuse(ctx, fusion.Request{CandidateID: "s1",
				Ranked: []model.ScoredItem{{ID: "job-x", Score: 0.5}}, RankK: 1, FinalK: 1, Policy: skill})
			So(err, ShouldBeNil)
			So(out.Results[0].RuleScore, ShouldEqual, 1.0)
		})

		Convey("When no policy is given", func() {
			_, err := eng.Fuse(ctx, fusion.Request{Ranked: ranked, RankK: 3, FinalK: 3})
			So(err, ShouldEqual, fusion.ErrNoPolicy)
		})

		Convey("When fusing twice", func() {
			a, _ := eng.Fuse(ctx, fusion.Request{CandidateID: "s1", Ranked: ranked, RankK: 3, FinalK: 3, Policy: skill})
			b, _ := eng.Fuse(ctx, fusion.Request{CandidateID: "s1", Ranked: ranked, RankK: 3, FinalK: 3, Policy: skill})
			So(a.Results, ShouldResemble, b.Results)
		})
	})
}

func byItem(rs []model.RecommendationResult, id string) model.RecommendationResult {
	for _, r := range rs {
		if r.ItemID == id {
			return r
		}
	}
	return model.RecommendationResult{}
}
