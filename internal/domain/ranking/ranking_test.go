package ranking_test

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"
	"testing"

	"github.com/Aruomeng/JobRec-KG/internal/domain/model"
	"github.com/Aruomeng/JobRec-KG/internal/domain/ranking"
	"github.com/Aruomeng/JobRec-KG/internal/domain/scoring"
	. "github.com/smartystreets/goconvey/convey"
)

type table map[string]model.Embedding

func (t table) EmbeddingOf(key string) (model.Embedding, bool) {
	e, ok := t[key]
	return e, ok
}

// countingScorer records batch sizes and delegates to the dot-product scorer.
type countingScorer struct {
	mu      sync.Mutex
	batches []int
	inner   *scoring.LinearScorer
	fail    error
	nanAt   int
}

func (c *countingScorer) Score(ctx context.Context, q model.Embedding, items []model.Embedding) ([]float64, error) {
	c.mu.Lock()
	c.batches = append(c.batches, len(items))
	c.mu.Unlock()
	if c.fail != nil {
		return nil, c.fail
	}
	out, err := c.inner.Score(ctx, q, items)
	if err == nil && c.nanAt > 0 && c.nanAt <= len(out) {
		out[c.nanAt-1] = math.NaN()
	}
	return out, err
}

func TestRanker(t *testing.T) {
	Convey("Given a ranker over ten items", t, func() {
		ctx := context.Background()
		embeddings := table{}
		var ids []string
		for i := 0; i < 10; i++ {
			id := fmt.Sprintf("job-%02d", i)
			ids = append(ids, id)
			embeddings[model.ItemKey(id)] = model.Embedding{float64(i) / 10, 1 - float64(i)/10}
		}
		scorer := &countingScorer{inner: scoring.NewLinearScorer()}
		r := ranking.New(scorer, embeddings, ranking.WithBatchSize(4), ranking.WithParallelism(2))

		Convey("When ranking with a query", func() {
			out, err := r.Rank(ctx, model.Embedding{1, 0}, ids)

			Convey("Then every item is scored once, in batches", func() {
				So(err, ShouldBeNil)
				So(len(out), ShouldEqual, 10)
				So(len(scorer.batches), ShouldEqual, 3)
				total := 0
				for _, b := range scorer.batches {
					So(b, ShouldBeLessThanOrEqualTo, 4)
					total += b
				}
				So(total, ShouldEqual, 10)
			})

			Convey("Then the result is sorted and in range", func() {
				So(out[0].ID, ShouldEqual, "job-09")
				So(out[9].ID, ShouldEqual, "job-00")
				for i, it := range out {
					So(it.Score, ShouldBeBetweenOrEqual, 0, 1)
					if i > 0 {
						So(out[i-1].Score, ShouldBeGreaterThanOrEqualTo, it.Score)
					}
				}
			})
		})

		Convey("When there is no query embedding", func() {
			shuffled := []string{"job-03", "job-01", "job-07"}
			out, err := r.Rank(ctx, nil, shuffled)

			Convey("Then every item is neutral and input order is kept", func() {
				So(err, ShouldBeNil)
				So(scorer.batches, ShouldBeEmpty)
				So(out, ShouldResemble, []model.ScoredItem{
					{ID: "job-03", Score: 0.5}, {ID: "job-01", Score: 0.5}, {ID: "job-07", Score: 0.5},
				})
			})
		})

		Convey("When some items lack embeddings or get a non-finite score", func() {
			embeddings[model.ItemKey("job-05")] = model.Embedding{1, 2, 3}
			scorer.nanAt = 1
			out, err := r.Rank(ctx, model.Embedding{1, 0}, []string{"ghost", "job-05", "job-09", "job-00"})

			Convey("Then they get the neutral score and ties are broken by id", func() {
				So(err, ShouldBeNil)
				byID := map[string]float64{}
				for _, it := range out {
					byID[it.ID] = it.Score
				}
				So(byID["ghost"], ShouldEqual, 0.5)
				So(byID["job-05"], ShouldEqual, 0.5)
				So(byID["job-09"], ShouldEqual, 0.5) // first scored item in the batch is forced to NaN
				So(byID["job-00"], ShouldEqual, 0.5)
				So(out[0].ID, ShouldEqual, "ghost")
			})
		})

		Convey("When the scorer fails", func() {
			scorer.fail = errors.New("model crashed")
			_, err := r.Rank(ctx, model.Embedding{1, 0}, ids)
			So(err, ShouldNotBeNil)
			So(err.Error(), ShouldContainSubstring, "model crashed")
		})

		Convey("When ranking nothing", func() {
			out, err := r.Rank(ctx, model.Embedding{1, 0}, nil)
			So(err, ShouldBeNil)
			So(out, ShouldBeEmpty)
		})

		Convey("When ranking twice", func() {
			a, _ := r.Rank(ctx, model.Embedding{0.3, 0.7}, ids)
			b, _ := r.Rank(ctx, model.Embedding{0.3, 0.7}, ids)
			So(a, ShouldResemble, b)
		})
	})
}
