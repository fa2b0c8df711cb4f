package artifact_test

import (
	"context"
	"database/sql"
	"errors"
	"math"
	"path/filepath"
	"testing"

	. "github.com/smartystreets/goconvey/convey"

	"github.com/Aruomeng/JobRec-KG/internal/adapters/artifact"
	"github.com/Aruomeng/JobRec-KG/internal/domain/model"
	"github.com/Aruomeng/JobRec-KG/internal/domain/scoring"
)

func TestNew(t *testing.T) {
	Convey("Given raw vectors", t, func() {
		vectors := map[string]model.Embedding{
			model.ItemKey("job-b"):      {0, 1},
			model.ItemKey("job-a"):      {1, 0},
			model.CandidateKey("s1"):    {1, 1},
			model.FeatureKey("go"):      {1, 0},
			model.ItemKey("broken"):     {math.NaN(), 1},
			model.ItemKey("wrong-size"): {1, 2, 3},
		}

		Convey("When the dimension is inferred", func() {
			tbl, err := artifact.New(0, vectors, nil)

			Convey("Then bad vectors are dropped and items are listed by id", func() {
				So(err, ShouldBeNil)
				So(tbl.Dim(), ShouldEqual, 2)
				So(tbl.Len(), ShouldEqual, 4)
				So(tbl.Dropped(), ShouldEqual, 2)
				items := tbl.Items()
				So(len(items), ShouldEqual, 2)
				So(items[0].ID, ShouldEqual, "job-a")
				So(items[1].ID, ShouldEqual, "job-b")

				_, ok := tbl.EmbeddingOf(model.ItemKey("broken"))
				So(ok, ShouldBeFalse)
				v, ok := tbl.EmbeddingOf(model.CandidateKey("s1"))
				So(ok, ShouldBeTrue)
				So(v, ShouldResemble, model.Embedding{1, 1})
			})

			Convey("Then scoring falls back to the logistic dot product", func() {
				s, err := tbl.Score(context.Background(), model.Embedding{1, 0}, []model.Embedding{{1, 0}})
				So(err, ShouldBeNil)
				So(s[0], ShouldAlmostEqual, scoring.Sigmoid(1), 1e-12)
			})
		})

		Convey("When the scorer was trained for another dimension", func() {
			head := scoring.NewLinearScorer(scoring.WithLinearHead([]float64{1, 1, 1, 1, 1, 1}, 0))
			_, err := artifact.New(2, vectors, head)
			So(errors.Is(err, artifact.ErrDimensionMismatch), ShouldBeTrue)
		})

		Convey("When nothing is usable", func() {
			_, err := artifact.New(0, map[string]model.Embedding{"x": {math.Inf(1)}}, nil)
			So(errors.Is(err, artifact.ErrArtifactNotLoaded), ShouldBeTrue)
		})
	})
}

func TestSQLite(t *testing.T) {
	Convey("Given an artifact file on disk", t, func() {
		ctx := context.Background()
		path := filepath.Join(t.TempDir(), "model.db")
		err := artifact.SaveSQLite(ctx, path, map[string]model.Embedding{
			model.ItemKey("job-1"): {0.5, 0.5},
			model.ItemKey("job-2"): {1, 0},
			model.FeatureKey("go"): {1, 0},
		}, &artifact.Head{Weights: []float64{1, 0, 1, 0}, Bias: -0.5})
		So(err, ShouldBeNil)

		Convey("When it is loaded", func() {
			tbl, err := artifact.LoadSQLite(ctx, path, nil)

			Convey("Then vectors and the trained head come back", func() {
				So(err, ShouldBeNil)
				So(tbl.Dim(), ShouldEqual, 2)
				So(tbl.Len(), ShouldEqual, 3)
				s, err := tbl.Score(ctx, model.Embedding{1, 0}, []model.Embedding{{1, 0}})
				So(err, ShouldBeNil)
				So(s[0], ShouldAlmostEqual, scoring.Sigmoid(1+1-0.5), 1e-12)
			})
		})

		Convey("When a row is corrupt", func() {
			db, err := sql.Open("sqlite", path)
			So(err, ShouldBeNil)
			_, err = db.Exec(`INSERT INTO embeddings (key, dim, vector) VALUES ('item:bad', 2, '[1,')`)
			So(err, ShouldBeNil)
			_, err = db.Exec(`INSERT INTO embeddings (key, dim, vector) VALUES ('item:short', 3, '[1,2]')`)
			So(err, ShouldBeNil)
			So(db.Close(), ShouldBeNil)

			tbl, err := artifact.LoadSQLite(ctx, path, nil)
			So(err, ShouldBeNil)
			So(tbl.Len(), ShouldEqual, 3)
			So(tbl.Dropped(), ShouldEqual, 2)
		})

		Convey("When the file does not exist", func() {
			_, err := artifact.LoadSQLite(ctx, filepath.Join(t.TempDir(), "missing.db"), nil)
			So(errors.Is(err, artifact.ErrArtifactNotLoaded), ShouldBeTrue)
		})
	})
}
